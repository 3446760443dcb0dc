package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/dto"
	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/models"
	appErrors "github.com/VenkatagirirajuJicate/tms-admin-api/pkg/errors"
)

type ruleCRUDStoreStub struct {
	rules   map[string]*models.WorkflowRule
	deleted []string
}

func newRuleCRUDStoreStub() *ruleCRUDStoreStub {
	return &ruleCRUDStoreStub{rules: map[string]*models.WorkflowRule{}}
}

func (s *ruleCRUDStoreStub) Create(_ context.Context, rule *models.WorkflowRule) error {
	rule.ID = "r-1"
	s.rules[rule.ID] = rule
	return nil
}

func (s *ruleCRUDStoreStub) GetByID(_ context.Context, id string) (*models.WorkflowRule, error) {
	rule, ok := s.rules[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rule, nil
}

func (s *ruleCRUDStoreStub) List(context.Context) ([]models.WorkflowRule, error) {
	var out []models.WorkflowRule
	for _, rule := range s.rules {
		out = append(out, *rule)
	}
	return out, nil
}

func (s *ruleCRUDStoreStub) Update(_ context.Context, rule *models.WorkflowRule) error {
	if _, ok := s.rules[rule.ID]; !ok {
		return sql.ErrNoRows
	}
	s.rules[rule.ID] = rule
	return nil
}

func (s *ruleCRUDStoreStub) Delete(_ context.Context, id string) error {
	if _, ok := s.rules[id]; !ok {
		return sql.ErrNoRows
	}
	delete(s.rules, id)
	s.deleted = append(s.deleted, id)
	return nil
}

func TestWorkflowRuleCreatePersistsAndAudits(t *testing.T) {
	store := newRuleCRUDStoreStub()
	audit := &grAuditStub{}
	svc := NewWorkflowRuleService(store, audit, nil, nil)

	rule, err := svc.Create(context.Background(), dto.CreateWorkflowRuleRequest{
		Name:     "urgent complaints",
		Priority: 1,
		Active:   true,
		Conditions: models.RuleConditions{
			Categories: []models.GrievanceCategory{models.CategoryComplaint},
		},
		Actions: models.RuleActions{AddTags: []string{"fast-track"}},
	}, "admin-1")
	require.NoError(t, err)
	require.Equal(t, "r-1", rule.ID)

	require.Len(t, audit.logs, 1)
	require.Equal(t, models.AuditActionWorkflowRuleChange, audit.logs[0].Action)
}

func TestWorkflowRuleCreateRejectsUnknownPriorityAction(t *testing.T) {
	store := newRuleCRUDStoreStub()
	svc := NewWorkflowRuleService(store, nil, nil, nil)

	bogus := models.GrievancePriority("critical")
	_, err := svc.Create(context.Background(), dto.CreateWorkflowRuleRequest{
		Name:    "bad rule",
		Actions: models.RuleActions{SetPriority: &bogus},
	}, "admin-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	require.Empty(t, store.rules)
}

func TestWorkflowRuleCreateAllowsEscalateWithoutTargets(t *testing.T) {
	store := newRuleCRUDStoreStub()
	svc := NewWorkflowRuleService(store, nil, nil, nil)

	_, err := svc.Create(context.Background(), dto.CreateWorkflowRuleRequest{
		Name:    "escalate aged",
		Actions: models.RuleActions{Escalate: true},
	}, "admin-1")
	require.NoError(t, err)
}

func TestWorkflowRuleGetMissing(t *testing.T) {
	svc := NewWorkflowRuleService(newRuleCRUDStoreStub(), nil, nil, nil)

	_, err := svc.Get(context.Background(), "r-404")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestWorkflowRuleUpdateMissing(t *testing.T) {
	svc := NewWorkflowRuleService(newRuleCRUDStoreStub(), nil, nil, nil)

	_, err := svc.Update(context.Background(), "r-404", dto.UpdateWorkflowRuleRequest{Name: "renamed"}, "admin-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestWorkflowRuleDelete(t *testing.T) {
	store := newRuleCRUDStoreStub()
	store.rules["r-1"] = &models.WorkflowRule{ID: "r-1", Name: "old rule"}
	svc := NewWorkflowRuleService(store, nil, nil, nil)

	require.NoError(t, svc.Delete(context.Background(), "r-1", "admin-1"))
	require.Equal(t, []string{"r-1"}, store.deleted)

	err := svc.Delete(context.Background(), "r-1", "admin-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
