package dto

import "github.com/VenkatagirirajuJicate/tms-admin-api/internal/models"

// CreateWorkflowRuleRequest is the admin rule-authoring payload.
type CreateWorkflowRuleRequest struct {
	Name       string                `json:"name" validate:"required"`
	Priority   int                   `json:"priority"`
	Active     bool                  `json:"active"`
	Conditions models.RuleConditions `json:"conditions"`
	Actions    models.RuleActions    `json:"actions"`
}

// UpdateWorkflowRuleRequest mirrors create with all fields present.
type UpdateWorkflowRuleRequest struct {
	Name       string                `json:"name" validate:"required"`
	Priority   int                   `json:"priority"`
	Active     bool                  `json:"active"`
	Conditions models.RuleConditions `json:"conditions"`
	Actions    models.RuleActions    `json:"actions"`
}
