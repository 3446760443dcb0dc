package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/models"
)

const workflowRuleColumns = `id, name, priority, active, conditions, actions, created_at, updated_at`

// WorkflowRuleRepository persists declarative workflow rules.
type WorkflowRuleRepository struct {
	db *sqlx.DB
}

// NewWorkflowRuleRepository constructs the repository.
func NewWorkflowRuleRepository(db *sqlx.DB) *WorkflowRuleRepository {
	return &WorkflowRuleRepository{db: db}
}

// Create inserts a rule.
func (r *WorkflowRuleRepository) Create(ctx context.Context, rule *models.WorkflowRule) error {
	if rule.ID == "" {
		rule.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if rule.CreatedAt.IsZero() {
		rule.CreatedAt = now
	}
	rule.UpdatedAt = now
	const query = `INSERT INTO workflow_rules (id, name, priority, active, conditions, actions, created_at, updated_at)
	VALUES (:id, :name, :priority, :active, :conditions, :actions, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, rule); err != nil {
		return fmt.Errorf("create workflow rule: %w", err)
	}
	return nil
}

// GetByID fetches a rule.
func (r *WorkflowRuleRepository) GetByID(ctx context.Context, id string) (*models.WorkflowRule, error) {
	query := fmt.Sprintf(`SELECT %s FROM workflow_rules WHERE id = $1`, workflowRuleColumns)
	var rule models.WorkflowRule
	if err := r.db.GetContext(ctx, &rule, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get workflow rule: %w", err)
	}
	return &rule, nil
}

// ListActive returns enabled rules ordered by ascending priority, then name
// for a deterministic tie-break.
func (r *WorkflowRuleRepository) ListActive(ctx context.Context) ([]models.WorkflowRule, error) {
	query := fmt.Sprintf(`SELECT %s FROM workflow_rules WHERE active = TRUE ORDER BY priority ASC, name ASC`, workflowRuleColumns)
	var rules []models.WorkflowRule
	if err := r.db.SelectContext(ctx, &rules, query); err != nil {
		return nil, fmt.Errorf("list active workflow rules: %w", err)
	}
	return rules, nil
}

// List returns all rules ordered by priority.
func (r *WorkflowRuleRepository) List(ctx context.Context) ([]models.WorkflowRule, error) {
	query := fmt.Sprintf(`SELECT %s FROM workflow_rules ORDER BY priority ASC, name ASC`, workflowRuleColumns)
	var rules []models.WorkflowRule
	if err := r.db.SelectContext(ctx, &rules, query); err != nil {
		return nil, fmt.Errorf("list workflow rules: %w", err)
	}
	return rules, nil
}

// Update replaces the mutable fields of a rule.
func (r *WorkflowRuleRepository) Update(ctx context.Context, rule *models.WorkflowRule) error {
	rule.UpdatedAt = time.Now().UTC()
	const query = `UPDATE workflow_rules SET name = :name, priority = :priority, active = :active,
	conditions = :conditions, actions = :actions, updated_at = :updated_at WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, rule)
	if err != nil {
		return fmt.Errorf("update workflow rule: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check workflow rule rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a rule.
func (r *WorkflowRuleRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM workflow_rules WHERE id = $1`
	result, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete workflow rule: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check workflow rule delete rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
