package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/models"
)

// EscalationRepository reads escalation routing rules and category SLA
// configuration.
type EscalationRepository struct {
	db *sqlx.DB
}

// NewEscalationRepository constructs the repository.
func NewEscalationRepository(db *sqlx.DB) *EscalationRepository {
	return &EscalationRepository{db: db}
}

// FirstActive returns the highest-priority active escalation rule, or
// sql.ErrNoRows when none is configured.
func (r *EscalationRepository) FirstActive(ctx context.Context) (*models.EscalationRule, error) {
	const query = `SELECT id, name, priority, active, escalate_to, created_at, updated_at
	FROM escalation_rules WHERE active = TRUE ORDER BY priority ASC LIMIT 1`
	var rule models.EscalationRule
	if err := r.db.GetContext(ctx, &rule, query); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("first active escalation rule: %w", err)
	}
	return &rule, nil
}

// CategoryConfig returns per-category SLA thresholds, or sql.ErrNoRows when
// the category has no override.
func (r *EscalationRepository) CategoryConfig(ctx context.Context, category models.GrievanceCategory) (*models.CategoryConfig, error) {
	const query = `SELECT category, sla_hours, escalation_hours FROM grievance_category_configs WHERE category = $1`
	var config models.CategoryConfig
	if err := r.db.GetContext(ctx, &config, query, category); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("category config: %w", err)
	}
	return &config, nil
}

// ListCategoryConfigs returns every configured category override.
func (r *EscalationRepository) ListCategoryConfigs(ctx context.Context) ([]models.CategoryConfig, error) {
	const query = `SELECT category, sla_hours, escalation_hours FROM grievance_category_configs ORDER BY category ASC`
	var configs []models.CategoryConfig
	if err := r.db.SelectContext(ctx, &configs, query); err != nil {
		return nil, fmt.Errorf("list category configs: %w", err)
	}
	return configs, nil
}

// UpsertCategoryConfig inserts or replaces a category's thresholds.
func (r *EscalationRepository) UpsertCategoryConfig(ctx context.Context, config *models.CategoryConfig) error {
	const query = `INSERT INTO grievance_category_configs (category, sla_hours, escalation_hours)
	VALUES (:category, :sla_hours, :escalation_hours)
	ON CONFLICT (category) DO UPDATE SET sla_hours = EXCLUDED.sla_hours, escalation_hours = EXCLUDED.escalation_hours`
	if _, err := r.db.NamedExecContext(ctx, query, config); err != nil {
		return fmt.Errorf("upsert category config: %w", err)
	}
	return nil
}
