package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/dto"
	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/models"
	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/repository"
	appErrors "github.com/VenkatagirirajuJicate/tms-admin-api/pkg/errors"
)

type grievanceStore interface {
	Create(ctx context.Context, grievance *models.Grievance) error
	GetByID(ctx context.Context, id string) (*models.Grievance, error)
	List(ctx context.Context, filter models.GrievanceFilter) ([]models.Grievance, int, error)
	Update(ctx context.Context, id string, params repository.UpdateGrievanceParams) error
	AddComment(ctx context.Context, comment *models.GrievanceComment) error
	ListComments(ctx context.Context, grievanceID string) ([]models.GrievanceComment, error)
}

type workflowInitializer interface {
	InitializeWorkflow(ctx context.Context, grievance *models.Grievance) error
}

type stateReader interface {
	Get(ctx context.Context, grievanceID string) (*models.WorkflowState, error)
}

type eventReader interface {
	ListByGrievance(ctx context.Context, grievanceID string) ([]models.StatusEvent, error)
}

type commentNotifier interface {
	NotifyComment(ctx context.Context, grievance *models.Grievance, authorName, comment string, recipients []models.Recipient)
}

// GrievanceDetail bundles a grievance with its workflow state and transition
// history for the detail endpoint.
type GrievanceDetail struct {
	Grievance *models.Grievance         `json:"grievance"`
	State     *models.WorkflowState     `json:"workflow_state,omitempty"`
	Events    []models.StatusEvent      `json:"events"`
	Comments  []models.GrievanceComment `json:"comments"`
}

// GrievanceService owns grievance CRUD and comment threads. Status changes go
// through TransitionService, never here.
type GrievanceService struct {
	repo      grievanceStore
	states    stateReader
	events    eventReader
	students  workflowStudentStore
	admins    workflowAdminStore
	workflow  workflowInitializer
	notifier  commentNotifier
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

type auditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// NewGrievanceService constructs the service.
func NewGrievanceService(
	repo grievanceStore,
	states stateReader,
	events eventReader,
	students workflowStudentStore,
	admins workflowAdminStore,
	workflow workflowInitializer,
	notifier commentNotifier,
	audit auditLogger,
	validate *validator.Validate,
	logger *zap.Logger,
) *GrievanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GrievanceService{
		repo:      repo,
		states:    states,
		events:    events,
		students:  students,
		admins:    admins,
		workflow:  workflow,
		notifier:  notifier,
		audit:     audit,
		validator: validate,
		logger:    logger,
	}
}

// Create registers a student submission and initialises its workflow.
func (s *GrievanceService) Create(ctx context.Context, req dto.CreateGrievanceRequest) (*models.Grievance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if _, err := s.students.FindByID(ctx, req.StudentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify student")
	}

	priority := models.GrievancePriority(strings.ToLower(req.Priority))
	if priority == "" {
		priority = models.PriorityMedium
	}
	urgency := strings.ToLower(req.Urgency)
	if urgency == "" {
		urgency = string(priority)
	}
	grievance := &models.Grievance{
		StudentID:   req.StudentID,
		RouteID:     req.RouteID,
		Subject:     strings.TrimSpace(req.Subject),
		Description: strings.TrimSpace(req.Description),
		Category:    models.GrievanceCategory(strings.ToLower(req.Category)),
		Priority:    priority,
		Urgency:     urgency,
		Status:      models.StatusOpen,
		Tags:        pq.StringArray{},
	}
	if err := s.repo.Create(ctx, grievance); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create grievance")
	}

	if err := s.workflow.InitializeWorkflow(ctx, grievance); err != nil {
		// The grievance row exists; workflow bootstrap failure must be visible.
		s.logger.Error("workflow initialisation failed", zap.String("grievance_id", grievance.ID), zap.Error(err))
		return nil, err
	}

	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &grievance.StudentID,
		Action:     models.AuditActionGrievanceCreate,
		Resource:   "grievance",
		ResourceID: &grievance.ID,
		NewValues:  marshalAudit(grievance),
	})
	return grievance, nil
}

// Get returns the grievance with its workflow state, history and comments.
func (s *GrievanceService) Get(ctx context.Context, id string) (*GrievanceDetail, error) {
	grievance, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grievance not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grievance")
	}
	detail := &GrievanceDetail{Grievance: grievance}

	if state, err := s.states.Get(ctx, id); err == nil {
		detail.State = state
	} else if !errors.Is(err, sql.ErrNoRows) {
		s.logger.Warn("workflow state lookup failed", zap.String("grievance_id", id), zap.Error(err))
	}
	if events, err := s.events.ListByGrievance(ctx, id); err == nil {
		detail.Events = events
	} else {
		s.logger.Warn("status events lookup failed", zap.String("grievance_id", id), zap.Error(err))
	}
	if comments, err := s.repo.ListComments(ctx, id); err == nil {
		detail.Comments = comments
	} else {
		s.logger.Warn("comments lookup failed", zap.String("grievance_id", id), zap.Error(err))
	}
	return detail, nil
}

// List returns grievances matching the filter with pagination metadata.
func (s *GrievanceService) List(ctx context.Context, filter models.GrievanceFilter) ([]models.Grievance, *models.Pagination, error) {
	grievances, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list grievances")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return grievances, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Update patches admin-editable fields.
func (s *GrievanceService) Update(ctx context.Context, id string, req dto.UpdateGrievanceRequest, actorID string) (*models.Grievance, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	before, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grievance not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grievance")
	}
	if before.Status == models.StatusClosed {
		return nil, appErrors.Clone(appErrors.ErrConflict, "closed grievances cannot be edited")
	}

	var priority *models.GrievancePriority
	if req.Priority != nil {
		value := models.GrievancePriority(strings.ToLower(*req.Priority))
		priority = &value
	}
	params := repository.UpdateGrievanceParams{
		Subject:     req.Subject,
		Description: req.Description,
		Priority:    priority,
		Urgency:     req.Urgency,
		AssignedTo:  req.AssignedTo,
		Resolution:  req.Resolution,
	}
	if req.Tags != nil {
		params.Tags = pq.StringArray(req.Tags)
	}
	if err := s.repo.Update(ctx, id, params); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grievance not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update grievance")
	}
	after, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload grievance")
	}

	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionGrievanceUpdate,
		Resource:   "grievance",
		ResourceID: &id,
		OldValues:  marshalAudit(before),
		NewValues:  marshalAudit(after),
	})
	return after, nil
}

// AddComment appends to the thread and notifies the other participants.
func (s *GrievanceService) AddComment(ctx context.Context, grievanceID string, req dto.AddCommentRequest, authorID string, authorRole models.UserRole) (*models.GrievanceComment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	grievance, err := s.repo.GetByID(ctx, grievanceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grievance not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grievance")
	}

	authorType := "admin"
	if authorRole == models.RoleStudent {
		authorType = "student"
	}
	comment := &models.GrievanceComment{
		GrievanceID: grievanceID,
		AuthorID:    authorID,
		AuthorType:  authorType,
		Comment:     strings.TrimSpace(req.Comment),
	}
	if err := s.repo.AddComment(ctx, comment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to add comment")
	}

	authorName, recipients := s.commentAudience(ctx, grievance, authorID, authorType)
	if len(recipients) > 0 {
		s.notifier.NotifyComment(ctx, grievance, authorName, comment.Comment, recipients)
	}

	s.emitAudit(ctx, &models.AuditLog{
		UserID:     &authorID,
		Action:     models.AuditActionGrievanceComment,
		Resource:   "grievance",
		ResourceID: &grievanceID,
		NewValues:  marshalAudit(comment),
	})
	return comment, nil
}

// commentAudience resolves the author's display name and the participants on
// the other side of the thread.
func (s *GrievanceService) commentAudience(ctx context.Context, grievance *models.Grievance, authorID, authorType string) (string, []models.Recipient) {
	authorName := "Transport Office"
	var recipients []models.Recipient

	if authorType == "student" {
		if student, err := s.students.FindByID(ctx, authorID); err == nil {
			authorName = student.FullName
		}
		if grievance.AssignedTo != nil {
			if assignee, err := s.admins.FindByID(ctx, *grievance.AssignedTo); err == nil {
				recipients = append(recipients, adminRecipient(assignee))
			}
		}
		return authorName, recipients
	}

	if admin, err := s.admins.FindByID(ctx, authorID); err == nil {
		authorName = admin.FullName
	}
	if student, err := s.students.FindByID(ctx, grievance.StudentID); err == nil {
		recipients = append(recipients, student.AsRecipient())
	}
	return authorName, recipients
}

func (s *GrievanceService) emitAudit(ctx context.Context, log *models.AuditLog) {
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("audit log write failed", zap.String("action", log.Action), zap.Error(err))
	}
}

func marshalAudit(value interface{}) []byte {
	payload, err := json.Marshal(value)
	if err != nil {
		return []byte("{}")
	}
	return payload
}
