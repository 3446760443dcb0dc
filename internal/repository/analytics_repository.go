package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/models"
)

// AnalyticsRepository exposes read-optimised aggregate queries over the
// grievance table.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository instantiates the repository.
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

type statusCount struct {
	Key   string `db:"key"`
	Count int    `db:"count"`
}

// Summary computes the dashboard counters in a handful of grouped queries.
// slaHours is the default SLA threshold used for the over-SLA counter.
func (r *AnalyticsRepository) Summary(ctx context.Context, slaHours int, now time.Time) (*models.GrievanceAnalytics, error) {
	analytics := &models.GrievanceAnalytics{
		ByStatus:    map[string]int{},
		ByCategory:  map[string]int{},
		ByPriority:  map[string]int{},
		GeneratedAt: now,
	}

	var statusRows []statusCount
	if err := r.db.SelectContext(ctx, &statusRows, `SELECT status AS key, COUNT(*) AS count FROM grievances GROUP BY status`); err != nil {
		return nil, fmt.Errorf("count by status: %w", err)
	}
	for _, row := range statusRows {
		analytics.ByStatus[row.Key] = row.Count
		analytics.Total += row.Count
	}
	analytics.Escalated = analytics.ByStatus[string(models.StatusEscalated)]

	var categoryRows []statusCount
	if err := r.db.SelectContext(ctx, &categoryRows, `SELECT category AS key, COUNT(*) AS count FROM grievances GROUP BY category`); err != nil {
		return nil, fmt.Errorf("count by category: %w", err)
	}
	for _, row := range categoryRows {
		analytics.ByCategory[row.Key] = row.Count
	}

	var priorityRows []statusCount
	if err := r.db.SelectContext(ctx, &priorityRows, `SELECT priority AS key, COUNT(*) AS count FROM grievances GROUP BY priority`); err != nil {
		return nil, fmt.Errorf("count by priority: %w", err)
	}
	for _, row := range priorityRows {
		analytics.ByPriority[row.Key] = row.Count
	}

	cutoff := now.Add(-time.Duration(slaHours) * time.Hour)
	const overSLAQuery = `SELECT COUNT(*) FROM grievances WHERE status IN ($1, $2) AND created_at < $3`
	if err := r.db.GetContext(ctx, &analytics.OpenOverSLA, overSLAQuery, models.StatusOpen, models.StatusInProgress, cutoff); err != nil {
		return nil, fmt.Errorf("count over sla: %w", err)
	}

	const avgQuery = `SELECT COALESCE(AVG(EXTRACT(EPOCH FROM (resolved_at - created_at)) / 3600), 0)
	FROM grievances WHERE resolved_at IS NOT NULL`
	if err := r.db.GetContext(ctx, &analytics.AvgResolutionHours, avgQuery); err != nil {
		return nil, fmt.Errorf("average resolution hours: %w", err)
	}

	return analytics, nil
}
