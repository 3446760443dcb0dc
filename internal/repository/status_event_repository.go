package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/models"
)

// StatusEventRepository reads the append-only transition log. Writes happen
// inside the transition transaction owned by GrievanceRepository.
type StatusEventRepository struct {
	db *sqlx.DB
}

// NewStatusEventRepository constructs the repository.
func NewStatusEventRepository(db *sqlx.DB) *StatusEventRepository {
	return &StatusEventRepository{db: db}
}

// ListByGrievance returns the transition history oldest first.
func (r *StatusEventRepository) ListByGrievance(ctx context.Context, grievanceID string) ([]models.StatusEvent, error) {
	const query = `SELECT id, grievance_id, from_status, to_status, actor_id, actor_role, reason, created_at
	FROM grievance_status_events WHERE grievance_id = $1 ORDER BY created_at ASC`
	var events []models.StatusEvent
	if err := r.db.SelectContext(ctx, &events, query, grievanceID); err != nil {
		return nil, fmt.Errorf("list status events: %w", err)
	}
	return events, nil
}
