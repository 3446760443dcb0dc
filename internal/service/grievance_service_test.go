package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/dto"
	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/models"
	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/repository"
	appErrors "github.com/VenkatagirirajuJicate/tms-admin-api/pkg/errors"
)

type grStoreStub struct {
	grievance  *models.Grievance
	created    *models.Grievance
	comments   []models.GrievanceComment
	lastUpdate *repository.UpdateGrievanceParams
}

func (s *grStoreStub) Create(_ context.Context, grievance *models.Grievance) error {
	grievance.ID = "G42"
	grievance.CreatedAt = time.Now().UTC()
	copied := *grievance
	s.created = &copied
	s.grievance = grievance
	return nil
}

func (s *grStoreStub) GetByID(context.Context, string) (*models.Grievance, error) {
	if s.grievance == nil {
		return nil, sql.ErrNoRows
	}
	copied := *s.grievance
	return &copied, nil
}

func (s *grStoreStub) List(context.Context, models.GrievanceFilter) ([]models.Grievance, int, error) {
	if s.grievance == nil {
		return nil, 0, nil
	}
	return []models.Grievance{*s.grievance}, 1, nil
}

func (s *grStoreStub) Update(_ context.Context, _ string, params repository.UpdateGrievanceParams) error {
	s.lastUpdate = &params
	return nil
}

func (s *grStoreStub) AddComment(_ context.Context, comment *models.GrievanceComment) error {
	comment.ID = "c-1"
	s.comments = append(s.comments, *comment)
	return nil
}

func (s *grStoreStub) ListComments(context.Context, string) ([]models.GrievanceComment, error) {
	return s.comments, nil
}

type grStateReaderStub struct {
	state *models.WorkflowState
}

func (s *grStateReaderStub) Get(context.Context, string) (*models.WorkflowState, error) {
	if s.state == nil {
		return nil, sql.ErrNoRows
	}
	return s.state, nil
}

type grEventReaderStub struct {
	events []models.StatusEvent
}

func (s *grEventReaderStub) ListByGrievance(context.Context, string) ([]models.StatusEvent, error) {
	return s.events, nil
}

type grWorkflowStub struct {
	initialized []string
	err         error
}

func (s *grWorkflowStub) InitializeWorkflow(_ context.Context, grievance *models.Grievance) error {
	if s.err != nil {
		return s.err
	}
	s.initialized = append(s.initialized, grievance.ID)
	return nil
}

type grNotifierStub struct {
	comments   int
	authorName string
	recipients []models.Recipient
}

func (s *grNotifierStub) NotifyComment(_ context.Context, _ *models.Grievance, authorName, _ string, recipients []models.Recipient) {
	s.comments++
	s.authorName = authorName
	s.recipients = recipients
}

type grAuditStub struct {
	logs []models.AuditLog
}

func (s *grAuditStub) CreateAuditLog(_ context.Context, log *models.AuditLog) error {
	s.logs = append(s.logs, *log)
	return nil
}

type grFixture struct {
	store    *grStoreStub
	workflow *grWorkflowStub
	notifier *grNotifierStub
	audit    *grAuditStub
	svc      *GrievanceService
}

func newGrFixture() *grFixture {
	store := &grStoreStub{}
	workflow := &grWorkflowStub{}
	notifier := &grNotifierStub{}
	audit := &grAuditStub{}
	students := &wfStudentStoreStub{student: &models.Student{ID: "stu-1", FullName: "Asha", Email: "asha@example.edu", EmailOptIn: true, StudentType: "regular"}}
	admins := &wfAdminStoreStub{user: &models.User{ID: "admin-1", FullName: "Ravi", Email: "ravi@example.edu"}}
	svc := NewGrievanceService(store, &grStateReaderStub{}, &grEventReaderStub{}, students, admins, workflow, notifier, audit, nil, nil)
	return &grFixture{store: store, workflow: workflow, notifier: notifier, audit: audit, svc: svc}
}

func grCreateRequest() dto.CreateGrievanceRequest {
	return dto.CreateGrievanceRequest{
		StudentID:   "stu-1",
		Subject:     "Bus overcrowded",
		Description: "Route 5 morning bus runs over capacity",
		Category:    "complaint",
	}
}

func TestCreateDefaultsAndInitializesWorkflow(t *testing.T) {
	f := newGrFixture()

	grievance, err := f.svc.Create(context.Background(), grCreateRequest())
	require.NoError(t, err)

	require.Equal(t, models.StatusOpen, grievance.Status)
	require.Equal(t, models.PriorityMedium, grievance.Priority)
	require.Equal(t, string(models.PriorityMedium), grievance.Urgency)
	require.NotNil(t, grievance.Tags)

	require.Equal(t, []string{"G42"}, f.workflow.initialized)
	require.Len(t, f.audit.logs, 1)
	require.Equal(t, models.AuditActionGrievanceCreate, f.audit.logs[0].Action)
}

func TestCreateEchoesExplicitPriority(t *testing.T) {
	f := newGrFixture()
	req := grCreateRequest()
	req.Priority = "HIGH"

	grievance, err := f.svc.Create(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, models.PriorityHigh, grievance.Priority)
	require.Equal(t, "high", grievance.Urgency)
}

func TestCreateRejectsUnknownStudent(t *testing.T) {
	f := newGrFixture()
	f.svc.students = &wfStudentStoreStub{}

	_, err := f.svc.Create(context.Background(), grCreateRequest())
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
	require.Nil(t, f.store.created)
}

func TestCreateRejectsInvalidPayload(t *testing.T) {
	f := newGrFixture()
	req := grCreateRequest()
	req.Category = "wishlist"

	_, err := f.svc.Create(context.Background(), req)
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCreateSurfacesWorkflowFailure(t *testing.T) {
	f := newGrFixture()
	f.workflow.err = appErrors.Clone(appErrors.ErrInternal, "workflow down")

	_, err := f.svc.Create(context.Background(), grCreateRequest())
	require.Error(t, err)
	// The row was written before the workflow bootstrap failed.
	require.NotNil(t, f.store.created)
	require.Empty(t, f.audit.logs)
}

func TestGetBundlesDetail(t *testing.T) {
	f := newGrFixture()
	f.store.grievance = &models.Grievance{ID: "G42", StudentID: "stu-1", Status: models.StatusOpen}
	f.store.comments = []models.GrievanceComment{{ID: "c-1", GrievanceID: "G42"}}

	detail, err := f.svc.Get(context.Background(), "G42")
	require.NoError(t, err)
	require.Equal(t, "G42", detail.Grievance.ID)
	require.Len(t, detail.Comments, 1)
}

func TestGetMissingGrievance(t *testing.T) {
	f := newGrFixture()

	_, err := f.svc.Get(context.Background(), "G404")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestUpdateRejectsClosedGrievance(t *testing.T) {
	f := newGrFixture()
	f.store.grievance = &models.Grievance{ID: "G42", Status: models.StatusClosed}
	subject := "Edited"

	_, err := f.svc.Update(context.Background(), "G42", dto.UpdateGrievanceRequest{Subject: &subject}, "admin-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	require.Nil(t, f.store.lastUpdate)
}

func TestUpdateNormalizesPriorityAndAudits(t *testing.T) {
	f := newGrFixture()
	f.store.grievance = &models.Grievance{ID: "G42", Status: models.StatusOpen}
	priority := "URGENT"

	_, err := f.svc.Update(context.Background(), "G42", dto.UpdateGrievanceRequest{Priority: &priority}, "admin-1")
	require.NoError(t, err)
	require.Equal(t, models.PriorityUrgent, *f.store.lastUpdate.Priority)

	require.Len(t, f.audit.logs, 1)
	require.Equal(t, models.AuditActionGrievanceUpdate, f.audit.logs[0].Action)
}

func TestAddCommentByAdminNotifiesStudent(t *testing.T) {
	f := newGrFixture()
	f.store.grievance = &models.Grievance{ID: "G42", StudentID: "stu-1", Status: models.StatusInProgress}

	comment, err := f.svc.AddComment(context.Background(), "G42", dto.AddCommentRequest{Comment: "We are on it"}, "admin-1", models.RoleAdmin)
	require.NoError(t, err)
	require.Equal(t, "admin", comment.AuthorType)

	require.Equal(t, 1, f.notifier.comments)
	require.Equal(t, "Ravi", f.notifier.authorName)
	require.Len(t, f.notifier.recipients, 1)
	require.Equal(t, "stu-1", f.notifier.recipients[0].ID)
}

func TestAddCommentByStudentNotifiesAssignee(t *testing.T) {
	f := newGrFixture()
	assignee := "admin-1"
	f.store.grievance = &models.Grievance{ID: "G42", StudentID: "stu-1", Status: models.StatusInProgress, AssignedTo: &assignee}

	comment, err := f.svc.AddComment(context.Background(), "G42", dto.AddCommentRequest{Comment: "Any update?"}, "stu-1", models.RoleStudent)
	require.NoError(t, err)
	require.Equal(t, "student", comment.AuthorType)

	require.Equal(t, 1, f.notifier.comments)
	require.Equal(t, "Asha", f.notifier.authorName)
	require.Equal(t, "admin-1", f.notifier.recipients[0].ID)
}

func TestAddCommentUnassignedStudentThreadStaysQuiet(t *testing.T) {
	f := newGrFixture()
	f.store.grievance = &models.Grievance{ID: "G42", StudentID: "stu-1", Status: models.StatusOpen}

	_, err := f.svc.AddComment(context.Background(), "G42", dto.AddCommentRequest{Comment: "Hello?"}, "stu-1", models.RoleStudent)
	require.NoError(t, err)
	require.Zero(t, f.notifier.comments)
}
