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

const routeColumns = `id, route_number, route_name, start_location, end_location, capacity,
       current_passengers, driver_id, vehicle_id, status, created_at, updated_at`

// RouteRepository persists transport routes and their student allocations.
type RouteRepository struct {
	db *sqlx.DB
}

// NewRouteRepository constructs the repository.
func NewRouteRepository(db *sqlx.DB) *RouteRepository {
	return &RouteRepository{db: db}
}

// GetByID fetches a route.
func (r *RouteRepository) GetByID(ctx context.Context, id string) (*models.Route, error) {
	query := fmt.Sprintf(`SELECT %s FROM routes WHERE id = $1`, routeColumns)
	var route models.Route
	if err := r.db.GetContext(ctx, &route, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get route: %w", err)
	}
	return &route, nil
}

// List returns every route ordered by route number.
func (r *RouteRepository) List(ctx context.Context) ([]models.Route, error) {
	query := fmt.Sprintf(`SELECT %s FROM routes ORDER BY route_number ASC`, routeColumns)
	var routes []models.Route
	if err := r.db.SelectContext(ctx, &routes, query); err != nil {
		return nil, fmt.Errorf("list routes: %w", err)
	}
	return routes, nil
}

// SyncAllocations replaces a route's active allocations atomically: existing
// allocations are deactivated, the new set inserted, and the passenger count
// refreshed, all in one transaction.
func (r *RouteRepository) SyncAllocations(ctx context.Context, routeID string, allocations []models.RouteAllocation) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin allocation sync: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	const deactivate = `UPDATE route_allocations SET active = FALSE WHERE route_id = $1 AND active = TRUE`
	if _, err := tx.ExecContext(ctx, deactivate, routeID); err != nil {
		return fmt.Errorf("deactivate allocations: %w", err)
	}

	const insert = `INSERT INTO route_allocations (id, student_id, route_id, boarding_stop, active, allocated_at)
	VALUES ($1, $2, $3, $4, TRUE, $5)`
	for _, allocation := range allocations {
		id := allocation.ID
		if id == "" {
			id = uuid.NewString()
		}
		if _, err := tx.ExecContext(ctx, insert, id, allocation.StudentID, routeID, allocation.BoardingStop, now); err != nil {
			return fmt.Errorf("insert allocation: %w", err)
		}
	}

	const refresh = `UPDATE routes SET current_passengers = $2, updated_at = $3 WHERE id = $1`
	result, err := tx.ExecContext(ctx, refresh, routeID, len(allocations), now)
	if err != nil {
		return fmt.Errorf("refresh passenger count: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check route refresh rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit allocation sync: %w", err)
	}
	return nil
}

// ListAllocations returns the active allocations for a route.
func (r *RouteRepository) ListAllocations(ctx context.Context, routeID string) ([]models.RouteAllocation, error) {
	const query = `SELECT id, student_id, route_id, boarding_stop, active, allocated_at
	FROM route_allocations WHERE route_id = $1 AND active = TRUE ORDER BY boarding_stop ASC`
	var allocations []models.RouteAllocation
	if err := r.db.SelectContext(ctx, &allocations, query, routeID); err != nil {
		return nil, fmt.Errorf("list route allocations: %w", err)
	}
	return allocations, nil
}
