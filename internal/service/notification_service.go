package service

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"go.uber.org/zap"

	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/models"
	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/notifier"
	appErrors "github.com/VenkatagirirajuJicate/tms-admin-api/pkg/errors"
)

type notificationStore interface {
	Create(ctx context.Context, notification *models.Notification) error
	RecordDelivery(ctx context.Context, delivery *models.NotificationDelivery) error
	ListForUser(ctx context.Context, userID string, audience string, limit int) ([]models.Notification, error)
	ListDeliveries(ctx context.Context, event string, limit int) ([]models.NotificationDelivery, error)
}

// ChannelConfig toggles the external channels process-wide.
type ChannelConfig struct {
	EmailEnabled bool
	SMSEnabled   bool
}

// DispatchInput is one event delivery to one recipient.
type DispatchInput struct {
	Event     string
	Recipient models.Recipient
	Vars      map[string]string
	Severity  string
	Action    *models.NotificationAction
}

// NotificationService renders templates and fans deliveries out across
// channels. External channel failures are logged and swallowed; the in-app
// record is always written so every event stays visible even when email and
// SMS both fail.
type NotificationService struct {
	registry *TemplateRegistry
	store    notificationStore
	email    notifier.EmailSender
	sms      notifier.SMSSender
	channels ChannelConfig
	logger   *zap.Logger
}

// NewNotificationService constructs the dispatcher.
func NewNotificationService(registry *TemplateRegistry, store notificationStore, email notifier.EmailSender, sms notifier.SMSSender, channels ChannelConfig, logger *zap.Logger) *NotificationService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if registry == nil {
		registry = NewTemplateRegistry()
	}
	return &NotificationService{
		registry: registry,
		store:    store,
		email:    email,
		sms:      sms,
		channels: channels,
		logger:   logger,
	}
}

// Dispatch resolves and renders the event template, attempts the recipient's
// enabled external channels, writes the in-app record and appends one delivery
// audit row. Only the in-app write can fail the call.
func (s *NotificationService) Dispatch(ctx context.Context, input DispatchInput) error {
	template, known := s.registry.Resolve(input.Event)
	if !known {
		s.logger.Warn("unknown notification event, using fallback template", zap.String("event", input.Event))
	}
	rendered := s.registry.Render(template, input.Vars)

	attempted := []string{string(models.ChannelInApp)}
	var failed []string

	if s.channels.EmailEnabled && input.Recipient.EmailEnabled && s.email != nil {
		attempted = append(attempted, string(models.ChannelEmail))
		if err := s.email.SendEmail(ctx, input.Recipient.Email, rendered.Subject, rendered.EmailBody); err != nil {
			failed = append(failed, string(models.ChannelEmail))
			s.logger.Warn("email delivery failed",
				zap.String("event", input.Event),
				zap.String("recipient", input.Recipient.ID),
				zap.Error(err),
			)
		}
	}
	if s.channels.SMSEnabled && input.Recipient.SMSEnabled && input.Recipient.Mobile != nil && s.sms != nil {
		attempted = append(attempted, string(models.ChannelSMS))
		if err := s.sms.SendSMS(ctx, *input.Recipient.Mobile, rendered.SMSBody); err != nil {
			failed = append(failed, string(models.ChannelSMS))
			s.logger.Warn("sms delivery failed",
				zap.String("event", input.Event),
				zap.String("recipient", input.Recipient.ID),
				zap.Error(err),
			)
		}
	}

	severity := input.Severity
	if severity == "" {
		severity = "info"
	}
	notification := &models.Notification{
		Title:          rendered.Subject,
		Message:        rendered.PushBody,
		Type:           severity,
		Category:       "transport",
		TargetAudience: "specific",
		SpecificUsers:  []string{input.Recipient.ID},
		Actionable:     input.Action != nil,
		PrimaryAction:  input.Action,
	}
	if err := s.store.Create(ctx, notification); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to write in-app notification")
	}

	delivery := &models.NotificationDelivery{
		Event:             input.Event,
		RecipientID:       input.Recipient.ID,
		RecipientType:     input.Recipient.Type,
		ChannelsAttempted: attempted,
		ChannelsFailed:    failed,
	}
	if err := s.store.RecordDelivery(ctx, delivery); err != nil {
		s.logger.Error("failed to record notification delivery",
			zap.String("event", input.Event),
			zap.String("recipient", input.Recipient.ID),
			zap.Error(err),
		)
	}
	return nil
}

// DispatchAll delivers one event to many recipients concurrently. Delivery
// order across recipients is not guaranteed. The returned count is the number
// of recipients whose in-app record was written.
func (s *NotificationService) DispatchAll(ctx context.Context, event string, recipients []models.Recipient, vars map[string]string, severity string) int {
	var wg sync.WaitGroup
	var mu sync.Mutex
	delivered := 0
	for _, recipient := range recipients {
		wg.Add(1)
		go func(recipient models.Recipient) {
			defer wg.Done()
			if err := s.Dispatch(ctx, DispatchInput{Event: event, Recipient: recipient, Vars: vars, Severity: severity}); err != nil {
				s.logger.Error("dispatch failed",
					zap.String("event", event),
					zap.String("recipient", recipient.ID),
					zap.Error(err),
				)
				return
			}
			mu.Lock()
			delivered++
			mu.Unlock()
		}(recipient)
	}
	wg.Wait()
	return delivered
}

// NotifySubmitted confirms registration to the submitting student.
func (s *NotificationService) NotifySubmitted(ctx context.Context, grievance *models.Grievance, student models.Recipient, slaHours int) error {
	return s.Dispatch(ctx, DispatchInput{
		Event:     models.EventGrievanceSubmitted,
		Recipient: student,
		Vars: map[string]string{
			"studentName": student.Name,
			"subject":     grievance.Subject,
			"grievanceId": grievance.ID,
			"slaHours":    strconv.Itoa(slaHours),
		},
	})
}

// NotifyAssigned informs the student and the new assignee.
func (s *NotificationService) NotifyAssigned(ctx context.Context, grievance *models.Grievance, assigneeName string, recipients []models.Recipient) {
	for _, recipient := range recipients {
		vars := map[string]string{
			"recipientName": recipient.Name,
			"subject":       grievance.Subject,
			"grievanceId":   grievance.ID,
			"assigneeName":  assigneeName,
		}
		if err := s.Dispatch(ctx, DispatchInput{Event: models.EventGrievanceAssigned, Recipient: recipient, Vars: vars}); err != nil {
			s.logger.Error("assignment notification failed", zap.String("grievance_id", grievance.ID), zap.Error(err))
		}
	}
}

// NotifyStatusUpdate informs recipients of a lifecycle change.
func (s *NotificationService) NotifyStatusUpdate(ctx context.Context, grievance *models.Grievance, from, to models.GrievanceStatus, recipients []models.Recipient) {
	for _, recipient := range recipients {
		vars := map[string]string{
			"recipientName": recipient.Name,
			"grievanceId":   grievance.ID,
			"oldStatus":     string(from),
			"newStatus":     string(to),
		}
		if err := s.Dispatch(ctx, DispatchInput{Event: models.EventGrievanceStatusUpdate, Recipient: recipient, Vars: vars}); err != nil {
			s.logger.Error("status notification failed", zap.String("grievance_id", grievance.ID), zap.Error(err))
		}
	}
}

// NotifyResolved informs the student with the resolution text.
func (s *NotificationService) NotifyResolved(ctx context.Context, grievance *models.Grievance, student models.Recipient) error {
	resolution := ""
	if grievance.Resolution != nil {
		resolution = *grievance.Resolution
	}
	return s.Dispatch(ctx, DispatchInput{
		Event:     models.EventGrievanceResolved,
		Recipient: student,
		Severity:  "success",
		Vars: map[string]string{
			"studentName": student.Name,
			"grievanceId": grievance.ID,
			"resolution":  resolution,
		},
	})
}

// NotifyEscalated alerts the escalation targets and the student.
func (s *NotificationService) NotifyEscalated(ctx context.Context, grievance *models.Grievance, reason string, recipients []models.Recipient) {
	for _, recipient := range recipients {
		vars := map[string]string{
			"recipientName": recipient.Name,
			"subject":       grievance.Subject,
			"grievanceId":   grievance.ID,
			"reason":        reason,
		}
		if err := s.Dispatch(ctx, DispatchInput{Event: models.EventGrievanceEscalated, Recipient: recipient, Vars: vars, Severity: "warning"}); err != nil {
			s.logger.Error("escalation notification failed", zap.String("grievance_id", grievance.ID), zap.Error(err))
		}
	}
}

// NotifyComment informs the thread participants of a new comment.
func (s *NotificationService) NotifyComment(ctx context.Context, grievance *models.Grievance, authorName, comment string, recipients []models.Recipient) {
	for _, recipient := range recipients {
		vars := map[string]string{
			"recipientName": recipient.Name,
			"authorName":    authorName,
			"grievanceId":   grievance.ID,
			"comment":       comment,
		}
		if err := s.Dispatch(ctx, DispatchInput{Event: models.EventGrievanceComment, Recipient: recipient, Vars: vars}); err != nil {
			s.logger.Error("comment notification failed", zap.String("grievance_id", grievance.ID), zap.Error(err))
		}
	}
}

// NotifySLAWarning warns the assignee that the SLA window is closing.
func (s *NotificationService) NotifySLAWarning(ctx context.Context, grievance *models.Grievance, assignee models.Recipient, hoursOpen, slaHours int) error {
	return s.Dispatch(ctx, DispatchInput{
		Event:     models.EventSLAWarning,
		Recipient: assignee,
		Severity:  "warning",
		Vars: map[string]string{
			"assigneeName": assignee.Name,
			"subject":      grievance.Subject,
			"grievanceId":  grievance.ID,
			"hoursOpen":    strconv.Itoa(hoursOpen),
			"slaHours":     strconv.Itoa(slaHours),
		},
	})
}

// Broadcast writes a single in-app notification addressed to an audience and
// returns a summary of the fan-out. It backs the admin announcement endpoint.
func (s *NotificationService) Broadcast(ctx context.Context, title, message, severity, audience string, specificUsers []string, createdBy string) (*models.Notification, error) {
	if severity == "" {
		severity = "info"
	}
	notification := &models.Notification{
		Title:          title,
		Message:        message,
		Type:           severity,
		Category:       "announcement",
		TargetAudience: audience,
		SpecificUsers:  specificUsers,
		CreatedBy:      &createdBy,
	}
	if err := s.store.Create(ctx, notification); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("failed to broadcast notification to %s", audience))
	}
	return notification, nil
}

// Inbox returns the notifications visible to a user, newest first.
func (s *NotificationService) Inbox(ctx context.Context, userID string, role models.UserRole, limit int) ([]models.Notification, error) {
	audience := "admins"
	if role == models.RoleStudent {
		audience = "students"
	}
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	items, err := s.store.ListForUser(ctx, userID, audience, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notifications")
	}
	return items, nil
}

// Deliveries returns the per-channel delivery audit trail for an event type.
func (s *NotificationService) Deliveries(ctx context.Context, event string, limit int) ([]models.NotificationDelivery, error) {
	if limit <= 0 || limit > 200 {
		limit = 100
	}
	items, err := s.store.ListDeliveries(ctx, event, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list deliveries")
	}
	return items, nil
}
