package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/models"
	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/repository"
	appErrors "github.com/VenkatagirirajuJicate/tms-admin-api/pkg/errors"
)

type workflowRuleStore interface {
	ListActive(ctx context.Context) ([]models.WorkflowRule, error)
}

type workflowStateStore interface {
	Create(ctx context.Context, state *models.WorkflowState) error
	Get(ctx context.Context, grievanceID string) (*models.WorkflowState, error)
	AppendAppliedRule(ctx context.Context, grievanceID, ruleID string) error
}

type workflowGrievanceStore interface {
	GetByID(ctx context.Context, id string) (*models.Grievance, error)
	Update(ctx context.Context, id string, params repository.UpdateGrievanceParams) error
}

type slaConfigStore interface {
	CategoryConfig(ctx context.Context, category models.GrievanceCategory) (*models.CategoryConfig, error)
}

type workflowStudentStore interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
}

type workflowAdminStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type workflowNotifier interface {
	NotifySubmitted(ctx context.Context, grievance *models.Grievance, student models.Recipient, slaHours int) error
	NotifyAssigned(ctx context.Context, grievance *models.Grievance, assigneeName string, recipients []models.Recipient)
}

type workflowEscalator interface {
	EscalateBySystem(ctx context.Context, grievance *models.Grievance, reason string, escalateTo []string) error
}

// SLADefaults are the fallback thresholds when a category has no override.
type SLADefaults struct {
	SLAHours        int
	EscalationHours int
}

// ActionSet is the merged outcome of every matching rule. Single-valued
// actions are last-writer-wins in rule priority order; tags accumulate;
// escalation takes the target list of the first rule that set it.
type ActionSet struct {
	AutoAssign  *string
	SetPriority *models.GrievancePriority
	SetUrgency  *string
	AddTags     []string
	Notify      *string
	Escalate    bool
	EscalateTo  []string
	MatchedIDs  []string
}

// Empty reports whether no rule matched.
func (a *ActionSet) Empty() bool {
	return len(a.MatchedIDs) == 0
}

// WorkflowService evaluates declarative rules against grievances and owns the
// per-grievance workflow state lifecycle.
type WorkflowService struct {
	rules      workflowRuleStore
	states     workflowStateStore
	grievances workflowGrievanceStore
	slaConfig  slaConfigStore
	students   workflowStudentStore
	admins     workflowAdminStore
	notifier   workflowNotifier
	escalator  workflowEscalator
	defaults   SLADefaults
	logger     *zap.Logger
	now        func() time.Time
}

// NewWorkflowService constructs the evaluator.
func NewWorkflowService(
	rules workflowRuleStore,
	states workflowStateStore,
	grievances workflowGrievanceStore,
	slaConfig slaConfigStore,
	students workflowStudentStore,
	admins workflowAdminStore,
	notifier workflowNotifier,
	defaults SLADefaults,
	logger *zap.Logger,
) *WorkflowService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if defaults.SLAHours <= 0 {
		defaults.SLAHours = 72
	}
	if defaults.EscalationHours <= 0 {
		defaults.EscalationHours = 48
	}
	return &WorkflowService{
		rules:      rules,
		states:     states,
		grievances: grievances,
		slaConfig:  slaConfig,
		students:   students,
		admins:     admins,
		notifier:   notifier,
		defaults:   defaults,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SetEscalator wires the transition-backed escalation path. Set after
// construction to keep the service graph acyclic.
func (s *WorkflowService) SetEscalator(escalator workflowEscalator) {
	s.escalator = escalator
}

// Evaluate matches the grievance against every active rule and merges the
// actions of all matches in priority order.
func (s *WorkflowService) Evaluate(ctx context.Context, grievance *models.Grievance, studentType string) (*ActionSet, error) {
	rules, err := s.rules.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load workflow rules")
	}
	return s.merge(rules, grievance, studentType, false, nil), nil
}

func (s *WorkflowService) merge(rules []models.WorkflowRule, grievance *models.Grievance, studentType string, timeBasedOnly bool, skip map[string]bool) *ActionSet {
	now := s.now()
	actions := &ActionSet{}
	seenTags := map[string]bool{}
	for i := range rules {
		rule := &rules[i]
		if timeBasedOnly && !rule.IsTimeBased() {
			continue
		}
		if skip[rule.ID] {
			continue
		}
		if !ruleMatches(rule, grievance, studentType, now) {
			continue
		}
		actions.MatchedIDs = append(actions.MatchedIDs, rule.ID)
		if rule.Actions.AutoAssign != nil {
			actions.AutoAssign = rule.Actions.AutoAssign
		}
		if rule.Actions.SetPriority != nil {
			actions.SetPriority = rule.Actions.SetPriority
		}
		if rule.Actions.SetUrgency != nil {
			actions.SetUrgency = rule.Actions.SetUrgency
		}
		for _, tag := range rule.Actions.AddTags {
			if !seenTags[tag] {
				seenTags[tag] = true
				actions.AddTags = append(actions.AddTags, tag)
			}
		}
		if rule.Actions.Notify != nil {
			actions.Notify = rule.Actions.Notify
		}
		if rule.Actions.Escalate && !actions.Escalate {
			actions.Escalate = true
			actions.EscalateTo = rule.Actions.EscalateTo
		}
	}
	return actions
}

// ruleMatches applies AND semantics: every clause present on the rule must
// hold; absent clauses are vacuously satisfied.
func ruleMatches(rule *models.WorkflowRule, grievance *models.Grievance, studentType string, now time.Time) bool {
	conditions := rule.Conditions
	if len(conditions.Categories) > 0 && !containsCategory(conditions.Categories, grievance.Category) {
		return false
	}
	if len(conditions.Priorities) > 0 && !containsPriority(conditions.Priorities, grievance.Priority) {
		return false
	}
	if len(conditions.Urgencies) > 0 && !containsString(conditions.Urgencies, grievance.Urgency) {
		return false
	}
	if len(conditions.Keywords) > 0 {
		haystack := strings.ToLower(grievance.Subject + " " + grievance.Description)
		found := false
		for _, keyword := range conditions.Keywords {
			if strings.Contains(haystack, strings.ToLower(keyword)) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if conditions.MinHoursOpen != nil && grievance.HoursOpen(now) < float64(*conditions.MinHoursOpen) {
		return false
	}
	if len(conditions.StudentTypes) > 0 && !containsString(conditions.StudentTypes, studentType) {
		return false
	}
	return true
}

// Thresholds resolves the SLA and escalation hours for a category, falling
// back to the process defaults when no override exists.
func (s *WorkflowService) Thresholds(ctx context.Context, category models.GrievanceCategory) (slaHours, escalationHours int) {
	slaHours, escalationHours = s.defaults.SLAHours, s.defaults.EscalationHours
	config, err := s.slaConfig.CategoryConfig(ctx, category)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("category config lookup failed", zap.String("category", string(category)), zap.Error(err))
		}
		return slaHours, escalationHours
	}
	if config.SLAHours > 0 {
		slaHours = config.SLAHours
	}
	if config.EscalationHours > 0 {
		escalationHours = config.EscalationHours
	}
	return slaHours, escalationHours
}

// InitializeWorkflow runs once at submission: it persists the initial
// workflow state with computed deadlines, applies the merged action set and
// sends the submission confirmation to the student.
func (s *WorkflowService) InitializeWorkflow(ctx context.Context, grievance *models.Grievance) error {
	student, err := s.students.FindByID(ctx, grievance.StudentID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submitting student")
	}

	slaHours, escalationHours := s.Thresholds(ctx, grievance.Category)
	now := s.now()
	state := &models.WorkflowState{
		GrievanceID:        grievance.ID,
		CurrentStatus:      models.StatusOpen,
		Stage:              models.StageSubmitted,
		SLADeadline:        grievance.CreatedAt.Add(time.Duration(slaHours) * time.Hour),
		EscalationDeadline: grievance.CreatedAt.Add(time.Duration(escalationHours) * time.Hour),
		LastTransitionAt:   now,
	}
	if err := s.states.Create(ctx, state); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist workflow state")
	}

	actions, err := s.Evaluate(ctx, grievance, student.StudentType)
	if err != nil {
		return err
	}
	if err := s.applyActions(ctx, grievance, actions); err != nil {
		return err
	}
	for _, ruleID := range actions.MatchedIDs {
		if err := s.states.AppendAppliedRule(ctx, grievance.ID, ruleID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record applied rule")
		}
	}

	if err := s.notifier.NotifySubmitted(ctx, grievance, student.AsRecipient(), slaHours); err != nil {
		s.logger.Error("submission notification failed", zap.String("grievance_id", grievance.ID), zap.Error(err))
	}
	return nil
}

// ProcessAutomatedRules re-evaluates only time-based rules against the
// grievance's current age. Rules already recorded in the workflow state are
// skipped so a one-shot rule never fires twice.
func (s *WorkflowService) ProcessAutomatedRules(ctx context.Context, grievanceID string) (*ActionSet, error) {
	grievance, err := s.grievances.GetByID(ctx, grievanceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grievance not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load grievance")
	}
	state, err := s.states.Get(ctx, grievanceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "workflow state not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load workflow state")
	}

	studentType := ""
	if student, err := s.students.FindByID(ctx, grievance.StudentID); err == nil {
		studentType = student.StudentType
	}

	rules, err := s.rules.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load workflow rules")
	}
	applied := make(map[string]bool, len(state.AppliedRuleIDs))
	for _, id := range state.AppliedRuleIDs {
		applied[id] = true
	}

	actions := s.merge(rules, grievance, studentType, true, applied)
	if actions.Empty() {
		return actions, nil
	}
	if err := s.applyActions(ctx, grievance, actions); err != nil {
		return nil, err
	}
	for _, ruleID := range actions.MatchedIDs {
		if err := s.states.AppendAppliedRule(ctx, grievanceID, ruleID); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record applied rule")
		}
	}
	return actions, nil
}

func (s *WorkflowService) applyActions(ctx context.Context, grievance *models.Grievance, actions *ActionSet) error {
	if actions.Empty() {
		return nil
	}
	params := repository.UpdateGrievanceParams{
		Priority:   actions.SetPriority,
		Urgency:    actions.SetUrgency,
		AssignedTo: actions.AutoAssign,
	}
	if len(actions.AddTags) > 0 {
		merged := append([]string(nil), grievance.Tags...)
		seen := map[string]bool{}
		for _, tag := range merged {
			seen[tag] = true
		}
		for _, tag := range actions.AddTags {
			if !seen[tag] {
				seen[tag] = true
				merged = append(merged, tag)
			}
		}
		params.Tags = pq.StringArray(merged)
	}
	if params.Priority != nil || params.Urgency != nil || params.AssignedTo != nil || params.Tags != nil {
		if err := s.grievances.Update(ctx, grievance.ID, params); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply rule actions")
		}
		if actions.SetPriority != nil {
			grievance.Priority = *actions.SetPriority
		}
		if actions.SetUrgency != nil {
			grievance.Urgency = *actions.SetUrgency
		}
		if actions.AutoAssign != nil {
			grievance.AssignedTo = actions.AutoAssign
		}
		if params.Tags != nil {
			grievance.Tags = params.Tags
		}
	}

	if actions.AutoAssign != nil {
		s.notifyAssignment(ctx, grievance, *actions.AutoAssign)
	}
	if actions.Escalate && s.escalator != nil {
		reason := "workflow rule escalation"
		if err := s.escalator.EscalateBySystem(ctx, grievance, reason, actions.EscalateTo); err != nil {
			s.logger.Error("rule escalation failed", zap.String("grievance_id", grievance.ID), zap.Error(err))
		}
	}
	return nil
}

func (s *WorkflowService) notifyAssignment(ctx context.Context, grievance *models.Grievance, assigneeID string) {
	assignee, err := s.admins.FindByID(ctx, assigneeID)
	if err != nil {
		s.logger.Warn("assignee lookup failed", zap.String("assignee_id", assigneeID), zap.Error(err))
		return
	}
	recipients := []models.Recipient{adminRecipient(assignee)}
	if student, err := s.students.FindByID(ctx, grievance.StudentID); err == nil {
		recipients = append(recipients, student.AsRecipient())
	}
	s.notifier.NotifyAssigned(ctx, grievance, assignee.FullName, recipients)
}

func adminRecipient(user *models.User) models.Recipient {
	return models.Recipient{
		ID:           user.ID,
		Type:         models.RecipientAdmin,
		Name:         user.FullName,
		Email:        user.Email,
		EmailEnabled: true,
	}
}

func containsCategory(list []models.GrievanceCategory, value models.GrievanceCategory) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

func containsPriority(list []models.GrievancePriority, value models.GrievancePriority) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}

func containsString(list []string, value string) bool {
	for _, item := range list {
		if strings.EqualFold(item, value) {
			return true
		}
	}
	return false
}
