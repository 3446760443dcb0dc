package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// WorkflowStage is a finer-grained lifecycle marker than status, used for
// reporting.
type WorkflowStage string

const (
	StageSubmitted       WorkflowStage = "submitted"
	StageTriaged         WorkflowStage = "triaged"
	StageAssigned        WorkflowStage = "assigned"
	StageInvestigating   WorkflowStage = "investigating"
	StagePendingApproval WorkflowStage = "pending_approval"
	StageImplementing    WorkflowStage = "implementing"
	StageResolved        WorkflowStage = "resolved"
	StageClosed          WorkflowStage = "closed"
	StageEscalated       WorkflowStage = "escalated"
)

// RuleConditions are AND-combined filters; absent clauses are vacuously
// satisfied. Stored as JSONB.
type RuleConditions struct {
	Categories   []GrievanceCategory `json:"categories,omitempty"`
	Priorities   []GrievancePriority `json:"priorities,omitempty"`
	Urgencies    []string            `json:"urgencies,omitempty"`
	Keywords     []string            `json:"keywords,omitempty"`
	MinHoursOpen *int                `json:"min_hours_open,omitempty"`
	StudentTypes []string            `json:"student_types,omitempty"`
}

// Value implements driver.Valuer for JSONB persistence.
func (c RuleConditions) Value() (driver.Value, error) {
	return json.Marshal(c)
}

// Scan implements sql.Scanner.
func (c *RuleConditions) Scan(src interface{}) error {
	return scanJSON(src, c)
}

// RuleActions describe what a matching rule applies to a grievance.
type RuleActions struct {
	AutoAssign  *string            `json:"auto_assign,omitempty"`
	SetPriority *GrievancePriority `json:"set_priority,omitempty"`
	SetUrgency  *string            `json:"set_urgency,omitempty"`
	AddTags     []string           `json:"add_tags,omitempty"`
	Notify      *string            `json:"notify,omitempty"`
	Escalate    bool               `json:"escalate,omitempty"`
	EscalateTo  []string           `json:"escalate_to,omitempty"`
}

// Value implements driver.Valuer for JSONB persistence.
func (a RuleActions) Value() (driver.Value, error) {
	return json.Marshal(a)
}

// Scan implements sql.Scanner.
func (a *RuleActions) Scan(src interface{}) error {
	return scanJSON(src, a)
}

// WorkflowRule is a declarative condition/action record evaluated in priority
// order (ascending).
type WorkflowRule struct {
	ID         string         `db:"id" json:"id"`
	Name       string         `db:"name" json:"name"`
	Priority   int            `db:"priority" json:"priority"`
	Active     bool           `db:"active" json:"active"`
	Conditions RuleConditions `db:"conditions" json:"conditions"`
	Actions    RuleActions    `db:"actions" json:"actions"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

// IsTimeBased reports whether the rule only fires after a minimum age.
func (r *WorkflowRule) IsTimeBased() bool {
	return r.Conditions.MinHoursOpen != nil
}

// WorkflowState is the per-grievance workflow row, owned exclusively by the
// grievance it describes.
type WorkflowState struct {
	GrievanceID        string           `db:"grievance_id" json:"grievance_id"`
	CurrentStatus      GrievanceStatus  `db:"current_status" json:"current_status"`
	PreviousStatus     *GrievanceStatus `db:"previous_status" json:"previous_status,omitempty"`
	Stage              WorkflowStage    `db:"stage" json:"stage"`
	SLADeadline        time.Time        `db:"sla_deadline" json:"sla_deadline"`
	EscalationDeadline time.Time        `db:"escalation_deadline" json:"escalation_deadline"`
	LastTransitionAt   time.Time        `db:"last_transition_at" json:"last_transition_at"`
	AppliedRuleIDs     pq.StringArray   `db:"applied_rule_ids" json:"applied_rule_ids"`
	Metadata           []byte           `db:"metadata" json:"metadata,omitempty"`
	CreatedAt          time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time        `db:"updated_at" json:"updated_at"`
}

// HasAppliedRule reports whether a one-shot rule already fired for this
// grievance.
func (s *WorkflowState) HasAppliedRule(ruleID string) bool {
	for _, id := range s.AppliedRuleIDs {
		if id == ruleID {
			return true
		}
	}
	return false
}

// CategoryConfig holds per-category SLA and escalation thresholds.
type CategoryConfig struct {
	Category        GrievanceCategory `db:"category" json:"category"`
	SLAHours        int               `db:"sla_hours" json:"sla_hours"`
	EscalationHours int               `db:"escalation_hours" json:"escalation_hours"`
}

// EscalationRule names the admins an overdue grievance is escalated to.
type EscalationRule struct {
	ID         string         `db:"id" json:"id"`
	Name       string         `db:"name" json:"name"`
	Priority   int            `db:"priority" json:"priority"`
	Active     bool           `db:"active" json:"active"`
	EscalateTo pq.StringArray `db:"escalate_to" json:"escalate_to"`
	CreatedAt  time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at" json:"updated_at"`
}

func scanJSON(src, dest interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		return json.Unmarshal(v, dest)
	case string:
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported jsonb source type %T", src)
	}
}
