package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/models"
	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/repository"
)

type wfRuleStoreStub struct {
	rules []models.WorkflowRule
}

func (s *wfRuleStoreStub) ListActive(context.Context) ([]models.WorkflowRule, error) {
	return s.rules, nil
}

type wfStateStoreStub struct {
	created *models.WorkflowState
	state   *models.WorkflowState
	applied []string
}

func (s *wfStateStoreStub) Create(_ context.Context, state *models.WorkflowState) error {
	s.created = state
	return nil
}

func (s *wfStateStoreStub) Get(context.Context, string) (*models.WorkflowState, error) {
	if s.state == nil {
		return nil, sql.ErrNoRows
	}
	return s.state, nil
}

func (s *wfStateStoreStub) AppendAppliedRule(_ context.Context, _, ruleID string) error {
	s.applied = append(s.applied, ruleID)
	return nil
}

type wfGrievanceStoreStub struct {
	grievance *models.Grievance
	updates   []repository.UpdateGrievanceParams
}

func (s *wfGrievanceStoreStub) GetByID(context.Context, string) (*models.Grievance, error) {
	if s.grievance == nil {
		return nil, sql.ErrNoRows
	}
	return s.grievance, nil
}

func (s *wfGrievanceStoreStub) Update(_ context.Context, _ string, params repository.UpdateGrievanceParams) error {
	s.updates = append(s.updates, params)
	return nil
}

type wfSLAConfigStub struct {
	config *models.CategoryConfig
}

func (s *wfSLAConfigStub) CategoryConfig(context.Context, models.GrievanceCategory) (*models.CategoryConfig, error) {
	if s.config == nil {
		return nil, sql.ErrNoRows
	}
	return s.config, nil
}

type wfStudentStoreStub struct {
	student *models.Student
}

func (s *wfStudentStoreStub) FindByID(context.Context, string) (*models.Student, error) {
	if s.student == nil {
		return nil, sql.ErrNoRows
	}
	return s.student, nil
}

type wfAdminStoreStub struct {
	user *models.User
}

func (s *wfAdminStoreStub) FindByID(context.Context, string) (*models.User, error) {
	if s.user == nil {
		return nil, sql.ErrNoRows
	}
	return s.user, nil
}

type wfNotifierStub struct {
	submitted int
	assigned  int
	slaHours  int
}

func (s *wfNotifierStub) NotifySubmitted(_ context.Context, _ *models.Grievance, _ models.Recipient, slaHours int) error {
	s.submitted++
	s.slaHours = slaHours
	return nil
}

func (s *wfNotifierStub) NotifyAssigned(context.Context, *models.Grievance, string, []models.Recipient) {
	s.assigned++
}

type wfEscalatorStub struct {
	calls   int
	targets []string
}

func (s *wfEscalatorStub) EscalateBySystem(_ context.Context, grievance *models.Grievance, _ string, escalateTo []string) error {
	s.calls++
	s.targets = escalateTo
	grievance.Status = models.StatusEscalated
	return nil
}

func ruleWith(id string, priority int, conditions models.RuleConditions, actions models.RuleActions) models.WorkflowRule {
	return models.WorkflowRule{ID: id, Name: id, Priority: priority, Active: true, Conditions: conditions, Actions: actions}
}

func wfTestService(rules *wfRuleStoreStub, states *wfStateStoreStub, grievances *wfGrievanceStoreStub, sla *wfSLAConfigStub, students *wfStudentStoreStub, admins *wfAdminStoreStub, notif *wfNotifierStub) *WorkflowService {
	return NewWorkflowService(rules, states, grievances, sla, students, admins, notif, SLADefaults{SLAHours: 72, EscalationHours: 48}, nil)
}

func TestEvaluateAppliesAllConditions(t *testing.T) {
	rules := &wfRuleStoreStub{rules: []models.WorkflowRule{
		ruleWith("r-urgent", 1,
			models.RuleConditions{
				Categories: []models.GrievanceCategory{models.CategoryComplaint},
				Priorities: []models.GrievancePriority{models.PriorityHigh, models.PriorityUrgent},
			},
			models.RuleActions{AddTags: []string{"fast-track"}},
		),
	}}
	svc := wfTestService(rules, &wfStateStoreStub{}, &wfGrievanceStoreStub{}, &wfSLAConfigStub{}, &wfStudentStoreStub{}, &wfAdminStoreStub{}, &wfNotifierStub{})

	matching := &models.Grievance{Category: models.CategoryComplaint, Priority: models.PriorityHigh, CreatedAt: time.Now()}
	actions, err := svc.Evaluate(context.Background(), matching, "regular")
	require.NoError(t, err)
	require.Equal(t, []string{"r-urgent"}, actions.MatchedIDs)
	require.Equal(t, []string{"fast-track"}, actions.AddTags)

	// Same category but wrong priority: every present clause must hold.
	nonMatching := &models.Grievance{Category: models.CategoryComplaint, Priority: models.PriorityLow, CreatedAt: time.Now()}
	actions, err = svc.Evaluate(context.Background(), nonMatching, "regular")
	require.NoError(t, err)
	require.True(t, actions.Empty())
}

func TestEvaluateKeywordMatchIsCaseInsensitive(t *testing.T) {
	rules := &wfRuleStoreStub{rules: []models.WorkflowRule{
		ruleWith("r-kw", 1,
			models.RuleConditions{Keywords: []string{"BRAKE"}},
			models.RuleActions{AddTags: []string{"safety"}},
		),
	}}
	svc := wfTestService(rules, &wfStateStoreStub{}, &wfGrievanceStoreStub{}, &wfSLAConfigStub{}, &wfStudentStoreStub{}, &wfAdminStoreStub{}, &wfNotifierStub{})

	grievance := &models.Grievance{Subject: "Worn brake pads", Description: "The bus sounds wrong", CreatedAt: time.Now()}
	actions, err := svc.Evaluate(context.Background(), grievance, "")
	require.NoError(t, err)
	require.False(t, actions.Empty())
}

func TestEvaluateMergesActionsInPriorityOrder(t *testing.T) {
	high := models.PriorityHigh
	urgent := models.PriorityUrgent
	admin1 := "admin-1"
	rules := &wfRuleStoreStub{rules: []models.WorkflowRule{
		ruleWith("r-1", 1,
			models.RuleConditions{},
			models.RuleActions{SetPriority: &high, AddTags: []string{"transport"}, Escalate: true, EscalateTo: []string{"head-1"}},
		),
		ruleWith("r-2", 2,
			models.RuleConditions{},
			models.RuleActions{SetPriority: &urgent, AutoAssign: &admin1, AddTags: []string{"transport", "repeat"}, Escalate: true, EscalateTo: []string{"head-2"}},
		),
	}}
	svc := wfTestService(rules, &wfStateStoreStub{}, &wfGrievanceStoreStub{}, &wfSLAConfigStub{}, &wfStudentStoreStub{}, &wfAdminStoreStub{}, &wfNotifierStub{})

	actions, err := svc.Evaluate(context.Background(), &models.Grievance{CreatedAt: time.Now()}, "")
	require.NoError(t, err)

	// Single-valued actions take the later rule, tags accumulate without
	// duplicates and escalation keeps the first rule's targets.
	require.Equal(t, models.PriorityUrgent, *actions.SetPriority)
	require.Equal(t, "admin-1", *actions.AutoAssign)
	require.Equal(t, []string{"transport", "repeat"}, actions.AddTags)
	require.True(t, actions.Escalate)
	require.Equal(t, []string{"head-1"}, actions.EscalateTo)
	require.Len(t, actions.MatchedIDs, 2)
}

func TestThresholdsFallBackToDefaults(t *testing.T) {
	svc := wfTestService(&wfRuleStoreStub{}, &wfStateStoreStub{}, &wfGrievanceStoreStub{}, &wfSLAConfigStub{}, &wfStudentStoreStub{}, &wfAdminStoreStub{}, &wfNotifierStub{})

	sla, esc := svc.Thresholds(context.Background(), models.CategoryComplaint)
	require.Equal(t, 72, sla)
	require.Equal(t, 48, esc)
}

func TestThresholdsUseCategoryOverride(t *testing.T) {
	sla := &wfSLAConfigStub{config: &models.CategoryConfig{Category: models.CategoryTechnicalIssue, SLAHours: 24, EscalationHours: 12}}
	svc := wfTestService(&wfRuleStoreStub{}, &wfStateStoreStub{}, &wfGrievanceStoreStub{}, sla, &wfStudentStoreStub{}, &wfAdminStoreStub{}, &wfNotifierStub{})

	slaHours, escHours := svc.Thresholds(context.Background(), models.CategoryTechnicalIssue)
	require.Equal(t, 24, slaHours)
	require.Equal(t, 12, escHours)
}

func TestInitializeWorkflowCreatesStateAndNotifies(t *testing.T) {
	states := &wfStateStoreStub{}
	notif := &wfNotifierStub{}
	students := &wfStudentStoreStub{student: &models.Student{ID: "stu-1", FullName: "Asha", Email: "asha@example.edu", EmailOptIn: true, StudentType: "regular"}}
	svc := wfTestService(&wfRuleStoreStub{}, states, &wfGrievanceStoreStub{}, &wfSLAConfigStub{}, students, &wfAdminStoreStub{}, notif)

	createdAt := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	grievance := &models.Grievance{ID: "G42", StudentID: "stu-1", Status: models.StatusOpen, CreatedAt: createdAt}
	require.NoError(t, svc.InitializeWorkflow(context.Background(), grievance))

	require.NotNil(t, states.created)
	require.Equal(t, models.StatusOpen, states.created.CurrentStatus)
	require.Equal(t, models.StageSubmitted, states.created.Stage)
	require.Equal(t, createdAt.Add(72*time.Hour), states.created.SLADeadline)
	require.Equal(t, createdAt.Add(48*time.Hour), states.created.EscalationDeadline)

	require.Equal(t, 1, notif.submitted)
	require.Equal(t, 72, notif.slaHours)
}

func TestInitializeWorkflowAppliesMatchingActions(t *testing.T) {
	admin1 := "admin-1"
	rules := &wfRuleStoreStub{rules: []models.WorkflowRule{
		ruleWith("r-assign", 1,
			models.RuleConditions{Categories: []models.GrievanceCategory{models.CategoryComplaint}},
			models.RuleActions{AutoAssign: &admin1, AddTags: []string{"auto"}},
		),
	}}
	grievances := &wfGrievanceStoreStub{}
	admins := &wfAdminStoreStub{user: &models.User{ID: "admin-1", FullName: "Ravi", Email: "ravi@example.edu"}}
	notif := &wfNotifierStub{}
	students := &wfStudentStoreStub{student: &models.Student{ID: "stu-1", FullName: "Asha", StudentType: "regular"}}
	svc := wfTestService(rules, &wfStateStoreStub{}, grievances, &wfSLAConfigStub{}, students, admins, notif)

	grievance := &models.Grievance{ID: "G42", StudentID: "stu-1", Category: models.CategoryComplaint, Status: models.StatusOpen, CreatedAt: time.Now()}
	require.NoError(t, svc.InitializeWorkflow(context.Background(), grievance))

	require.Len(t, grievances.updates, 1)
	require.Equal(t, "admin-1", *grievances.updates[0].AssignedTo)
	require.Equal(t, "admin-1", *grievance.AssignedTo)
	require.Equal(t, []string{"auto"}, []string(grievance.Tags))
	require.Equal(t, 1, notif.assigned)
}

func TestInitializeWorkflowRecordsAppliedRules(t *testing.T) {
	minHours := 0
	rules := &wfRuleStoreStub{rules: []models.WorkflowRule{
		ruleWith("r-now", 1,
			models.RuleConditions{MinHoursOpen: &minHours},
			models.RuleActions{AddTags: []string{"fresh"}},
		),
	}}
	states := &wfStateStoreStub{}
	grievance := &models.Grievance{ID: "G42", StudentID: "stu-1", Status: models.StatusOpen, CreatedAt: time.Now()}
	grievances := &wfGrievanceStoreStub{grievance: grievance}
	students := &wfStudentStoreStub{student: &models.Student{ID: "stu-1", FullName: "Asha", StudentType: "regular"}}
	svc := wfTestService(rules, states, grievances, &wfSLAConfigStub{}, students, &wfAdminStoreStub{}, &wfNotifierStub{})

	require.NoError(t, svc.InitializeWorkflow(context.Background(), grievance))
	require.Equal(t, []string{"r-now"}, states.applied)
	require.Len(t, grievances.updates, 1)

	// The automated pass must not fire the rule a second time.
	states.state = &models.WorkflowState{GrievanceID: "G42", AppliedRuleIDs: states.applied}
	actions, err := svc.ProcessAutomatedRules(context.Background(), "G42")
	require.NoError(t, err)
	require.True(t, actions.Empty())
	require.Len(t, grievances.updates, 1)
}

func TestProcessAutomatedRulesSkipsAppliedAndNonTimeBased(t *testing.T) {
	minHours := 24
	rules := &wfRuleStoreStub{rules: []models.WorkflowRule{
		ruleWith("r-immediate", 1,
			models.RuleConditions{},
			models.RuleActions{AddTags: []string{"immediate"}},
		),
		ruleWith("r-aged", 2,
			models.RuleConditions{MinHoursOpen: &minHours},
			models.RuleActions{AddTags: []string{"aged"}},
		),
		ruleWith("r-already", 3,
			models.RuleConditions{MinHoursOpen: &minHours},
			models.RuleActions{AddTags: []string{"dup"}},
		),
	}}
	states := &wfStateStoreStub{state: &models.WorkflowState{GrievanceID: "G42", AppliedRuleIDs: []string{"r-already"}}}
	grievances := &wfGrievanceStoreStub{grievance: &models.Grievance{
		ID:        "G42",
		StudentID: "stu-1",
		Status:    models.StatusOpen,
		CreatedAt: time.Now().Add(-30 * time.Hour),
	}}
	svc := wfTestService(rules, states, grievances, &wfSLAConfigStub{}, &wfStudentStoreStub{}, &wfAdminStoreStub{}, &wfNotifierStub{})

	actions, err := svc.ProcessAutomatedRules(context.Background(), "G42")
	require.NoError(t, err)

	// Only the unapplied time-based rule fires.
	require.Equal(t, []string{"r-aged"}, actions.MatchedIDs)
	require.Equal(t, []string{"r-aged"}, states.applied)
	require.Equal(t, []string{"aged"}, actions.AddTags)
}

func TestProcessAutomatedRulesNoMatchesIsNoop(t *testing.T) {
	minHours := 48
	rules := &wfRuleStoreStub{rules: []models.WorkflowRule{
		ruleWith("r-aged", 1, models.RuleConditions{MinHoursOpen: &minHours}, models.RuleActions{AddTags: []string{"aged"}}),
	}}
	states := &wfStateStoreStub{state: &models.WorkflowState{GrievanceID: "G42"}}
	grievances := &wfGrievanceStoreStub{grievance: &models.Grievance{ID: "G42", Status: models.StatusOpen, CreatedAt: time.Now().Add(-2 * time.Hour)}}
	svc := wfTestService(rules, states, grievances, &wfSLAConfigStub{}, &wfStudentStoreStub{}, &wfAdminStoreStub{}, &wfNotifierStub{})

	actions, err := svc.ProcessAutomatedRules(context.Background(), "G42")
	require.NoError(t, err)
	require.True(t, actions.Empty())
	require.Empty(t, states.applied)
	require.Empty(t, grievances.updates)
}

func TestApplyActionsRoutesEscalationThroughEscalator(t *testing.T) {
	rules := &wfRuleStoreStub{rules: []models.WorkflowRule{
		ruleWith("r-esc", 1, models.RuleConditions{}, models.RuleActions{Escalate: true, EscalateTo: []string{"head-1"}}),
	}}
	escalator := &wfEscalatorStub{}
	svc := wfTestService(rules, &wfStateStoreStub{}, &wfGrievanceStoreStub{}, &wfSLAConfigStub{}, &wfStudentStoreStub{}, &wfAdminStoreStub{}, &wfNotifierStub{})
	svc.SetEscalator(escalator)

	grievance := &models.Grievance{ID: "G42", Status: models.StatusOpen, CreatedAt: time.Now()}
	actions, err := svc.Evaluate(context.Background(), grievance, "")
	require.NoError(t, err)
	require.NoError(t, svc.applyActions(context.Background(), grievance, actions))

	require.Equal(t, 1, escalator.calls)
	require.Equal(t, []string{"head-1"}, escalator.targets)
	require.Equal(t, models.StatusEscalated, grievance.Status)
}
