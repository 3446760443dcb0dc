package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/models"
)

const workflowStateColumns = `grievance_id, current_status, previous_status, stage, sla_deadline,
       escalation_deadline, last_transition_at, applied_rule_ids, metadata, created_at, updated_at`

// WorkflowStateRepository persists the per-grievance workflow state rows.
type WorkflowStateRepository struct {
	db *sqlx.DB
}

// NewWorkflowStateRepository constructs the repository.
func NewWorkflowStateRepository(db *sqlx.DB) *WorkflowStateRepository {
	return &WorkflowStateRepository{db: db}
}

// Create inserts the initial workflow state for a freshly submitted grievance.
func (r *WorkflowStateRepository) Create(ctx context.Context, state *models.WorkflowState) error {
	now := time.Now().UTC()
	if state.CreatedAt.IsZero() {
		state.CreatedAt = now
	}
	state.UpdatedAt = now
	if state.AppliedRuleIDs == nil {
		state.AppliedRuleIDs = pq.StringArray{}
	}
	const query = `INSERT INTO grievance_workflow_states
	(grievance_id, current_status, previous_status, stage, sla_deadline, escalation_deadline,
	 last_transition_at, applied_rule_ids, metadata, created_at, updated_at)
	VALUES (:grievance_id, :current_status, :previous_status, :stage, :sla_deadline, :escalation_deadline,
	 :last_transition_at, :applied_rule_ids, :metadata, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, state); err != nil {
		return fmt.Errorf("create workflow state: %w", err)
	}
	return nil
}

// Get fetches the workflow state owned by a grievance.
func (r *WorkflowStateRepository) Get(ctx context.Context, grievanceID string) (*models.WorkflowState, error) {
	query := fmt.Sprintf(`SELECT %s FROM grievance_workflow_states WHERE grievance_id = $1`, workflowStateColumns)
	var state models.WorkflowState
	if err := r.db.GetContext(ctx, &state, query, grievanceID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get workflow state: %w", err)
	}
	return &state, nil
}

// AppendAppliedRule records a one-shot rule firing so it never fires twice for
// the same grievance.
func (r *WorkflowStateRepository) AppendAppliedRule(ctx context.Context, grievanceID, ruleID string) error {
	const query = `UPDATE grievance_workflow_states
	SET applied_rule_ids = array_append(applied_rule_ids, $2), updated_at = $3
	WHERE grievance_id = $1 AND NOT ($2 = ANY(applied_rule_ids))`
	if _, err := r.db.ExecContext(ctx, query, grievanceID, ruleID, time.Now().UTC()); err != nil {
		return fmt.Errorf("append applied rule: %w", err)
	}
	return nil
}

// UpdateStage changes only the reporting stage.
func (r *WorkflowStateRepository) UpdateStage(ctx context.Context, grievanceID string, stage models.WorkflowStage) error {
	const query = `UPDATE grievance_workflow_states SET stage = $2, updated_at = $3 WHERE grievance_id = $1`
	result, err := r.db.ExecContext(ctx, query, grievanceID, stage, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update workflow stage: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check workflow stage rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
