package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/models"
)

// NotificationRepository persists in-app notifications and delivery audit
// rows.
type NotificationRepository struct {
	db *sqlx.DB
}

// NewNotificationRepository constructs the repository.
func NewNotificationRepository(db *sqlx.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create inserts an in-app notification row.
func (r *NotificationRepository) Create(ctx context.Context, notification *models.Notification) error {
	if notification.ID == "" {
		notification.ID = uuid.NewString()
	}
	if notification.CreatedAt.IsZero() {
		notification.CreatedAt = time.Now().UTC()
	}
	if notification.SpecificUsers == nil {
		notification.SpecificUsers = pq.StringArray{}
	}
	const query = `INSERT INTO notifications
	(id, title, message, type, category, target_audience, specific_users, actionable,
	 primary_action, secondary_action, created_by, created_at)
	VALUES (:id, :title, :message, :type, :category, :target_audience, :specific_users, :actionable,
	 :primary_action, :secondary_action, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, notification); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

// ListForUser returns notifications addressed to a user directly or via a
// broadcast audience, newest first.
func (r *NotificationRepository) ListForUser(ctx context.Context, userID string, audience string, limit int) ([]models.Notification, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT id, title, message, type, category, target_audience, specific_users, actionable,
	 primary_action, secondary_action, created_by, created_at
	FROM notifications
	WHERE target_audience = 'all' OR target_audience = $1 OR $2 = ANY(specific_users)
	ORDER BY created_at DESC LIMIT %d`, limit)
	var notifications []models.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, audience, userID); err != nil {
		return nil, fmt.Errorf("list notifications: %w", err)
	}
	return notifications, nil
}

// RecordDelivery appends one delivery audit row per dispatch attempt.
func (r *NotificationRepository) RecordDelivery(ctx context.Context, delivery *models.NotificationDelivery) error {
	if delivery.ID == "" {
		delivery.ID = uuid.NewString()
	}
	if delivery.CreatedAt.IsZero() {
		delivery.CreatedAt = time.Now().UTC()
	}
	if delivery.ChannelsAttempted == nil {
		delivery.ChannelsAttempted = pq.StringArray{}
	}
	if delivery.ChannelsFailed == nil {
		delivery.ChannelsFailed = pq.StringArray{}
	}
	const query = `INSERT INTO notification_deliveries
	(id, event, recipient_id, recipient_type, channels_attempted, channels_failed, created_at)
	VALUES (:id, :event, :recipient_id, :recipient_type, :channels_attempted, :channels_failed, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, delivery); err != nil {
		return fmt.Errorf("record notification delivery: %w", err)
	}
	return nil
}

// ListDeliveries returns the delivery audit trail for an event, newest first.
func (r *NotificationRepository) ListDeliveries(ctx context.Context, event string, limit int) ([]models.NotificationDelivery, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT id, event, recipient_id, recipient_type, channels_attempted, channels_failed, created_at
	FROM notification_deliveries WHERE event = $1 ORDER BY created_at DESC LIMIT %d`, limit)
	var deliveries []models.NotificationDelivery
	if err := r.db.SelectContext(ctx, &deliveries, query, event); err != nil {
		return nil, fmt.Errorf("list notification deliveries: %w", err)
	}
	return deliveries, nil
}
