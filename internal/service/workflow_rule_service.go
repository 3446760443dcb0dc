package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/dto"
	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/models"
	appErrors "github.com/VenkatagirirajuJicate/tms-admin-api/pkg/errors"
)

type workflowRuleCRUDStore interface {
	Create(ctx context.Context, rule *models.WorkflowRule) error
	GetByID(ctx context.Context, id string) (*models.WorkflowRule, error)
	List(ctx context.Context) ([]models.WorkflowRule, error)
	Update(ctx context.Context, rule *models.WorkflowRule) error
	Delete(ctx context.Context, id string) error
}

// WorkflowRuleService manages the declarative automation rules evaluated
// against new and aging grievances.
type WorkflowRuleService struct {
	repo      workflowRuleCRUDStore
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewWorkflowRuleService constructs the service.
func NewWorkflowRuleService(repo workflowRuleCRUDStore, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *WorkflowRuleService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WorkflowRuleService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// Create validates and persists a new rule.
func (s *WorkflowRuleService) Create(ctx context.Context, req dto.CreateWorkflowRuleRequest, actorID string) (*models.WorkflowRule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if err := validateRuleActions(req.Actions); err != nil {
		return nil, err
	}
	rule := &models.WorkflowRule{
		Name:       req.Name,
		Priority:   req.Priority,
		Active:     req.Active,
		Conditions: req.Conditions,
		Actions:    req.Actions,
	}
	if err := s.repo.Create(ctx, rule); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create workflow rule")
	}
	s.auditRuleChange(ctx, actorID, rule, "create")
	return rule, nil
}

// Get returns a single rule.
func (s *WorkflowRuleService) Get(ctx context.Context, id string) (*models.WorkflowRule, error) {
	rule, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "workflow rule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load workflow rule")
	}
	return rule, nil
}

// List returns all rules including inactive ones.
func (s *WorkflowRuleService) List(ctx context.Context) ([]models.WorkflowRule, error) {
	rules, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list workflow rules")
	}
	return rules, nil
}

// Update replaces a rule's definition.
func (s *WorkflowRuleService) Update(ctx context.Context, id string, req dto.UpdateWorkflowRuleRequest, actorID string) (*models.WorkflowRule, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if err := validateRuleActions(req.Actions); err != nil {
		return nil, err
	}
	rule := &models.WorkflowRule{
		ID:         id,
		Name:       req.Name,
		Priority:   req.Priority,
		Active:     req.Active,
		Conditions: req.Conditions,
		Actions:    req.Actions,
	}
	if err := s.repo.Update(ctx, rule); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "workflow rule not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update workflow rule")
	}
	s.auditRuleChange(ctx, actorID, rule, "update")
	return rule, nil
}

// Delete removes a rule. Grievances it already fired on keep their applied
// rule ids.
func (s *WorkflowRuleService) Delete(ctx context.Context, id string, actorID string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "workflow rule not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete workflow rule")
	}
	s.auditRuleChange(ctx, actorID, &models.WorkflowRule{ID: id}, "delete")
	return nil
}

func validateRuleActions(actions models.RuleActions) error {
	if actions.SetPriority != nil && !models.ValidPriority(*actions.SetPriority) {
		return appErrors.Clone(appErrors.ErrValidation, "set_priority must be a known priority")
	}
	if actions.Escalate && len(actions.EscalateTo) == 0 {
		// Allowed: escalation targets fall back to the first active
		// escalation rule at evaluation time.
		return nil
	}
	return nil
}

func (s *WorkflowRuleService) auditRuleChange(ctx context.Context, actorID string, rule *models.WorkflowRule, op string) {
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionWorkflowRuleChange,
		Resource:   "workflow_rule",
		ResourceID: &rule.ID,
		NewValues:  marshalAudit(map[string]interface{}{"op": op, "rule": rule}),
	}); err != nil {
		s.logger.Warn("workflow rule audit failed", zap.Error(err))
	}
}
