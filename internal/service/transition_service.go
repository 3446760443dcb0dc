package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/dto"
	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/models"
	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/repository"
	appErrors "github.com/VenkatagirirajuJicate/tms-admin-api/pkg/errors"
)

// SystemActorID marks transitions performed by the platform itself (rule
// engine, sweeper) rather than a signed-in admin.
const SystemActorID = "system"

type transitionGrievanceStore interface {
	GetByID(ctx context.Context, id string) (*models.Grievance, error)
	ApplyTransition(ctx context.Context, params repository.ApplyTransitionParams) (*models.Grievance, error)
}

type escalationRuleStore interface {
	FirstActive(ctx context.Context) (*models.EscalationRule, error)
}

type transitionAdminStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByIDs(ctx context.Context, ids []string) ([]models.User, error)
}

type transitionNotifier interface {
	NotifyStatusUpdate(ctx context.Context, grievance *models.Grievance, from, to models.GrievanceStatus, recipients []models.Recipient)
	NotifyResolved(ctx context.Context, grievance *models.Grievance, student models.Recipient) error
	NotifyEscalated(ctx context.Context, grievance *models.Grievance, reason string, recipients []models.Recipient)
}

// TransitionService is the only write path for grievance status changes. It
// validates the requested change against the transition table, checks the
// actor's role, applies the full write set in one transaction and fires the
// rule's notifications afterwards.
type TransitionService struct {
	grievances  transitionGrievanceStore
	students    workflowStudentStore
	admins      transitionAdminStore
	escalations escalationRuleStore
	notifier    transitionNotifier
	logger      *zap.Logger
	now         func() time.Time
}

// NewTransitionService constructs the guard.
func NewTransitionService(
	grievances transitionGrievanceStore,
	students workflowStudentStore,
	admins transitionAdminStore,
	escalations escalationRuleStore,
	notifier transitionNotifier,
	logger *zap.Logger,
) *TransitionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TransitionService{
		grievances:  grievances,
		students:    students,
		admins:      admins,
		escalations: escalations,
		notifier:    notifier,
		logger:      logger,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Transition performs a guarded status change on behalf of an authenticated
// actor. Notification failures never fail the call; the transition itself is
// already committed.
func (s *TransitionService) Transition(ctx context.Context, grievanceID string, req dto.TransitionRequest, actorID string, actorRole models.UserRole) (*models.Grievance, error) {
	from := models.GrievanceStatus(strings.ToLower(strings.TrimSpace(req.FromStatus)))
	to := models.GrievanceStatus(strings.ToLower(strings.TrimSpace(req.ToStatus)))
	if !models.ValidStatus(from) || !models.ValidStatus(to) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown grievance status")
	}

	rule, ok := models.LookupTransition(from, to)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition, "no transition from "+string(from)+" to "+string(to))
	}
	if !rule.AllowsRole(actorRole) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "role not permitted for this transition")
	}

	updated, err := s.grievances.ApplyTransition(ctx, repository.ApplyTransitionParams{
		GrievanceID: grievanceID,
		From:        from,
		To:          to,
		Stage:       rule.Stage,
		Updates:     rule.Updates,
		ActorID:     actorID,
		ActorRole:   actorRole,
		Reason:      req.Reason,
		Now:         s.now(),
	})
	if err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, "grievance not found")
		case errors.Is(err, repository.ErrStatusConflict):
			return nil, appErrors.Clone(appErrors.ErrConflict, "grievance status changed, reload and retry")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply transition")
		}
	}

	s.fireTransitionNotifications(ctx, updated, rule, from, req.Reason)
	return updated, nil
}

// EscalateBySystem escalates a grievance without a human actor: the rule
// engine and the SLA sweeper both route through here. The escalation target
// list falls back to the first active escalation rule when empty.
func (s *TransitionService) EscalateBySystem(ctx context.Context, grievance *models.Grievance, reason string, escalateTo []string) error {
	rule, ok := models.LookupTransition(grievance.Status, models.StatusEscalated)
	if !ok {
		return appErrors.Clone(appErrors.ErrInvalidTransition, "grievance not eligible for escalation")
	}

	targets := escalateTo
	if len(targets) == 0 {
		escalation, err := s.escalations.FirstActive(ctx)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return appErrors.Clone(appErrors.ErrNotFound, "no active escalation rule configured")
			}
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load escalation rule")
		}
		targets = escalation.EscalateTo
	}
	if len(targets) == 0 {
		return appErrors.Clone(appErrors.ErrNotFound, "escalation rule has no targets")
	}

	primary := targets[0]
	updated, err := s.grievances.ApplyTransition(ctx, repository.ApplyTransitionParams{
		GrievanceID:      grievance.ID,
		From:             grievance.Status,
		To:               models.StatusEscalated,
		Stage:            rule.Stage,
		Updates:          rule.Updates,
		ActorID:          SystemActorID,
		ActorRole:        models.RoleSuperAdmin,
		Reason:           &reason,
		EscalatedTo:      &primary,
		EscalationReason: &reason,
		Now:              s.now(),
	})
	if err != nil {
		if errors.Is(err, repository.ErrStatusConflict) {
			// Someone transitioned it first; escalation is no longer needed.
			s.logger.Info("escalation skipped, status changed concurrently", zap.String("grievance_id", grievance.ID))
			return nil
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to escalate grievance")
	}
	*grievance = *updated

	recipients := s.adminRecipients(ctx, targets)
	if student, err := s.students.FindByID(ctx, updated.StudentID); err == nil {
		recipients = append(recipients, student.AsRecipient())
	}
	s.notifier.NotifyEscalated(ctx, updated, reason, recipients)
	return nil
}

func (s *TransitionService) fireTransitionNotifications(ctx context.Context, grievance *models.Grievance, rule models.TransitionRule, from models.GrievanceStatus, reason *string) {
	var student *models.Student
	if rule.Notify.Student {
		loaded, err := s.students.FindByID(ctx, grievance.StudentID)
		if err != nil {
			s.logger.Warn("student lookup for notification failed", zap.String("grievance_id", grievance.ID), zap.Error(err))
		} else {
			student = loaded
		}
	}

	switch rule.Event {
	case models.EventGrievanceResolved:
		if student != nil {
			if err := s.notifier.NotifyResolved(ctx, grievance, student.AsRecipient()); err != nil {
				s.logger.Error("resolution notification failed", zap.String("grievance_id", grievance.ID), zap.Error(err))
			}
		}
	case models.EventGrievanceEscalated:
		escalationReason := "manual escalation"
		if reason != nil && *reason != "" {
			escalationReason = *reason
		}
		recipients := s.escalationRecipients(ctx, grievance)
		if student != nil {
			recipients = append(recipients, student.AsRecipient())
		}
		s.notifier.NotifyEscalated(ctx, grievance, escalationReason, recipients)
	default:
		var recipients []models.Recipient
		if student != nil {
			recipients = append(recipients, student.AsRecipient())
		}
		if rule.Notify.Assignee && grievance.AssignedTo != nil {
			if assignee, err := s.admins.FindByID(ctx, *grievance.AssignedTo); err == nil {
				recipients = append(recipients, adminRecipient(assignee))
			}
		}
		if len(recipients) > 0 {
			s.notifier.NotifyStatusUpdate(ctx, grievance, from, grievance.Status, recipients)
		}
	}
}

func (s *TransitionService) escalationRecipients(ctx context.Context, grievance *models.Grievance) []models.Recipient {
	var targets []string
	if grievance.EscalatedTo != nil {
		targets = []string{*grievance.EscalatedTo}
	} else if escalation, err := s.escalations.FirstActive(ctx); err == nil {
		targets = escalation.EscalateTo
	}
	return s.adminRecipients(ctx, targets)
}

func (s *TransitionService) adminRecipients(ctx context.Context, ids []string) []models.Recipient {
	if len(ids) == 0 {
		return nil
	}
	users, err := s.admins.FindByIDs(ctx, ids)
	if err != nil {
		s.logger.Warn("escalation recipients lookup failed", zap.Error(err))
		return nil
	}
	recipients := make([]models.Recipient, 0, len(users))
	for i := range users {
		recipients = append(recipients, adminRecipient(&users[i]))
	}
	return recipients
}
