package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/models"
	appErrors "github.com/VenkatagirirajuJicate/tms-admin-api/pkg/errors"
)

const analyticsCacheKey = "analytics:grievances:summary"

type analyticsSource interface {
	Summary(ctx context.Context, slaHours int, now time.Time) (*models.GrievanceAnalytics, error)
}

type analyticsCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

// AnalyticsService serves dashboard counters with a short-lived Redis cache
// in front of the aggregate queries.
type AnalyticsService struct {
	source   analyticsSource
	cache    analyticsCache
	slaHours int
	ttl      time.Duration
	logger   *zap.Logger
	now      func() time.Time
}

// NewAnalyticsService constructs the service.
func NewAnalyticsService(source analyticsSource, cache analyticsCache, slaHours int, ttl time.Duration, logger *zap.Logger) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if slaHours <= 0 {
		slaHours = 72
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &AnalyticsService{
		source:   source,
		cache:    cache,
		slaHours: slaHours,
		ttl:      ttl,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Summary returns the cached analytics payload, recomputing on miss.
func (s *AnalyticsService) Summary(ctx context.Context) (*models.GrievanceAnalytics, error) {
	if s.cache != nil {
		var cached models.GrievanceAnalytics
		err := s.cache.Get(ctx, analyticsCacheKey, &cached)
		if err == nil {
			return &cached, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Warn("analytics cache read failed", zap.Error(err))
		}
	}

	analytics, err := s.source.Summary(ctx, s.slaHours, s.now())
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compute analytics")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, analyticsCacheKey, analytics, s.ttl); err != nil {
			s.logger.Warn("analytics cache write failed", zap.Error(err))
		}
	}
	return analytics, nil
}

// Invalidate drops cached analytics after grievance mutations.
func (s *AnalyticsService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteByPattern(ctx, "analytics:grievances:*"); err != nil {
		s.logger.Warn("analytics cache invalidation failed", zap.Error(err))
	}
}
