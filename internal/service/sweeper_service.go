package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/models"
	appErrors "github.com/VenkatagirirajuJicate/tms-admin-api/pkg/errors"
)

type sweeperGrievanceStore interface {
	ListActionable(ctx context.Context) ([]models.Grievance, error)
	MarkSLAWarningSent(ctx context.Context, id string, ts time.Time) error
}

type thresholdResolver interface {
	Thresholds(ctx context.Context, category models.GrievanceCategory) (slaHours, escalationHours int)
}

type sweeperNotifier interface {
	NotifySLAWarning(ctx context.Context, grievance *models.Grievance, assignee models.Recipient, hoursOpen, slaHours int) error
}

type sweeperEscalator interface {
	EscalateBySystem(ctx context.Context, grievance *models.Grievance, reason string, escalateTo []string) error
}

// SweepResult summarises one sweeper pass.
type SweepResult struct {
	Scanned      int       `json:"scanned"`
	WarningsSent int       `json:"warnings_sent"`
	Escalated    int       `json:"escalated"`
	RanAt        time.Time `json:"ran_at"`
}

// SweeperService is the periodic SLA watchdog: it warns assignees shortly
// before the SLA expires and auto-escalates grievances past the escalation
// threshold.
type SweeperService struct {
	grievances    sweeperGrievanceStore
	thresholds    thresholdResolver
	admins        workflowAdminStore
	notifier      sweeperNotifier
	escalator     sweeperEscalator
	warningWindow int
	logger        *zap.Logger
	now           func() time.Time
}

// NewSweeperService constructs the sweeper. warningWindowHours is the size of
// the pre-deadline window in which a warning fires (default 4).
func NewSweeperService(
	grievances sweeperGrievanceStore,
	thresholds thresholdResolver,
	admins workflowAdminStore,
	notifier sweeperNotifier,
	escalator sweeperEscalator,
	warningWindowHours int,
	logger *zap.Logger,
) *SweeperService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if warningWindowHours <= 0 {
		warningWindowHours = 4
	}
	return &SweeperService{
		grievances:    grievances,
		thresholds:    thresholds,
		admins:        admins,
		notifier:      notifier,
		escalator:     escalator,
		warningWindow: warningWindowHours,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// RunOnce executes both sweeps over a single scan of actionable grievances.
// Escalation takes precedence: a grievance past the escalation threshold is
// escalated, never warned. The warning can therefore only fire for categories
// whose escalation hours exceed the start of the warning window
// (slaHours - warningWindow); with thresholds the other way around every
// grievance reaches escalation first.
func (s *SweeperService) RunOnce(ctx context.Context) (*SweepResult, error) {
	grievances, err := s.grievances.ListActionable(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to scan grievances")
	}
	now := s.now()
	result := &SweepResult{Scanned: len(grievances), RanAt: now}

	for i := range grievances {
		grievance := &grievances[i]
		slaHours, escalationHours := s.thresholds.Thresholds(ctx, grievance.Category)
		hoursOpen := grievance.HoursOpen(now)

		if hoursOpen >= float64(escalationHours) {
			if s.escalate(ctx, grievance, hoursOpen, escalationHours) {
				result.Escalated++
			}
			continue
		}
		if s.warn(ctx, grievance, hoursOpen, slaHours, now) {
			result.WarningsSent++
		}
	}

	s.logger.Info("sla sweep complete",
		zap.Int("scanned", result.Scanned),
		zap.Int("warnings_sent", result.WarningsSent),
		zap.Int("escalated", result.Escalated),
	)
	return result, nil
}

// warn fires the one-shot SLA warning when the grievance sits inside the
// pre-deadline window. The dedup stamp is written before the notification so
// concurrent sweeps cannot double-send.
func (s *SweeperService) warn(ctx context.Context, grievance *models.Grievance, hoursOpen float64, slaHours int, now time.Time) bool {
	if grievance.AssignedTo == nil || grievance.SLAWarningSentAt != nil {
		return false
	}
	if hoursOpen < float64(slaHours-s.warningWindow) || hoursOpen >= float64(slaHours) {
		return false
	}
	if err := s.grievances.MarkSLAWarningSent(ctx, grievance.ID, now); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			s.logger.Error("sla warning stamp failed", zap.String("grievance_id", grievance.ID), zap.Error(err))
		}
		return false
	}

	assignee, err := s.admins.FindByID(ctx, *grievance.AssignedTo)
	if err != nil {
		s.logger.Warn("sla warning assignee lookup failed", zap.String("grievance_id", grievance.ID), zap.Error(err))
		return true
	}
	if err := s.notifier.NotifySLAWarning(ctx, grievance, adminRecipient(assignee), int(math.Floor(hoursOpen)), slaHours); err != nil {
		s.logger.Error("sla warning notification failed", zap.String("grievance_id", grievance.ID), zap.Error(err))
	}
	return true
}

func (s *SweeperService) escalate(ctx context.Context, grievance *models.Grievance, hoursOpen float64, escalationHours int) bool {
	reason := fmt.Sprintf("auto-escalated: open for %.0f hours (threshold %d)", hoursOpen, escalationHours)
	if err := s.escalator.EscalateBySystem(ctx, grievance, reason, nil); err != nil {
		s.logger.Error("auto escalation failed", zap.String("grievance_id", grievance.ID), zap.Error(err))
		return false
	}
	return grievance.Status == models.StatusEscalated
}
