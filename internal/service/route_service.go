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

type routeStore interface {
	GetByID(ctx context.Context, id string) (*models.Route, error)
	List(ctx context.Context) ([]models.Route, error)
	SyncAllocations(ctx context.Context, routeID string, allocations []models.RouteAllocation) error
	ListAllocations(ctx context.Context, routeID string) ([]models.RouteAllocation, error)
}

// RouteService exposes route lookups and the transactional allocation sync
// used when a route's student list is replaced wholesale.
type RouteService struct {
	repo      routeStore
	audit     auditLogger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRouteService constructs the service.
func NewRouteService(repo routeStore, audit auditLogger, validate *validator.Validate, logger *zap.Logger) *RouteService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RouteService{repo: repo, audit: audit, validator: validate, logger: logger}
}

// List returns all routes.
func (s *RouteService) List(ctx context.Context) ([]models.Route, error) {
	routes, err := s.repo.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list routes")
	}
	return routes, nil
}

// Get returns a route with its active allocations.
func (s *RouteService) Get(ctx context.Context, id string) (*models.Route, []models.RouteAllocation, error) {
	route, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "route not found")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load route")
	}
	allocations, err := s.repo.ListAllocations(ctx, id)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load allocations")
	}
	return route, allocations, nil
}

// SyncAllocations replaces the route's active allocations in one transaction
// and enforces the route capacity.
func (s *RouteService) SyncAllocations(ctx context.Context, routeID string, req dto.SyncAllocationsRequest, actorID string) (*dto.SyncAllocationsResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	route, err := s.repo.GetByID(ctx, routeID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "route not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load route")
	}
	if len(req.Allocations) > route.Capacity {
		return nil, appErrors.Clone(appErrors.ErrConflict, "allocation count exceeds route capacity")
	}

	allocations := make([]models.RouteAllocation, 0, len(req.Allocations))
	seen := map[string]bool{}
	for _, entry := range req.Allocations {
		if seen[entry.StudentID] {
			return nil, appErrors.Clone(appErrors.ErrValidation, "duplicate student in allocation set")
		}
		seen[entry.StudentID] = true
		allocations = append(allocations, models.RouteAllocation{
			StudentID:    entry.StudentID,
			RouteID:      routeID,
			BoardingStop: entry.BoardingStop,
		})
	}

	if err := s.repo.SyncAllocations(ctx, routeID, allocations); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "route not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sync allocations")
	}

	if s.audit != nil {
		if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
			UserID:     &actorID,
			Action:     models.AuditActionRouteAllocationSync,
			Resource:   "route",
			ResourceID: &routeID,
			NewValues:  marshalAudit(allocations),
		}); err != nil {
			s.logger.Warn("allocation sync audit failed", zap.Error(err))
		}
	}

	return &dto.SyncAllocationsResponse{RouteID: routeID, Allocated: len(allocations)}, nil
}
