package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/lib/pq"
)

// NotificationChannel identifies a delivery transport.
type NotificationChannel string

const (
	ChannelEmail NotificationChannel = "email"
	ChannelSMS   NotificationChannel = "sms"
	ChannelInApp NotificationChannel = "in_app"
)

// Notification event names resolved against the template registry.
const (
	EventGrievanceSubmitted    = "grievance_submitted"
	EventGrievanceAssigned     = "grievance_assigned"
	EventGrievanceStatusUpdate = "grievance_status_updated"
	EventGrievanceResolved     = "grievance_resolved"
	EventGrievanceEscalated    = "grievance_escalated"
	EventGrievanceComment      = "grievance_comment_added"
	EventSLAWarning            = "sla_warning"
)

// NotificationTemplate holds subject and per-channel body patterns containing
// `{{variable}}` placeholders.
type NotificationTemplate struct {
	Event     string   `json:"event"`
	Subject   string   `json:"subject"`
	EmailBody string   `json:"email_body"`
	SMSBody   string   `json:"sms_body"`
	PushBody  string   `json:"push_body"`
	Variables []string `json:"variables"`
}

// RecipientType distinguishes student and admin recipients.
type RecipientType string

const (
	RecipientStudent RecipientType = "student"
	RecipientAdmin   RecipientType = "admin"
)

// Recipient is a resolved notification target with channel preferences.
type Recipient struct {
	ID           string        `json:"id"`
	Type         RecipientType `json:"type"`
	Name         string        `json:"name"`
	Email        string        `json:"email"`
	Mobile       *string       `json:"mobile,omitempty"`
	EmailEnabled bool          `json:"email_enabled"`
	SMSEnabled   bool          `json:"sms_enabled"`
}

// NotificationAction is an optional call-to-action on an in-app notification.
type NotificationAction struct {
	Text string `json:"text"`
	URL  string `json:"url"`
}

// Value implements driver.Valuer for JSONB persistence.
func (a NotificationAction) Value() (driver.Value, error) {
	return json.Marshal(a)
}

// Scan implements sql.Scanner.
func (a *NotificationAction) Scan(src interface{}) error {
	return scanJSON(src, a)
}

// Notification is an in-app notification row. One is written for every
// dispatched event regardless of external channel preferences.
type Notification struct {
	ID              string              `db:"id" json:"id"`
	Title           string              `db:"title" json:"title"`
	Message         string              `db:"message" json:"message"`
	Type            string              `db:"type" json:"type"`
	Category        string              `db:"category" json:"category"`
	TargetAudience  string              `db:"target_audience" json:"target_audience"`
	SpecificUsers   pq.StringArray      `db:"specific_users" json:"specific_users"`
	Actionable      bool                `db:"actionable" json:"actionable"`
	PrimaryAction   *NotificationAction `db:"primary_action" json:"primary_action,omitempty"`
	SecondaryAction *NotificationAction `db:"secondary_action" json:"secondary_action,omitempty"`
	CreatedBy       *string             `db:"created_by" json:"created_by,omitempty"`
	CreatedAt       time.Time           `db:"created_at" json:"created_at"`
}

// NotificationDelivery is one audit row per dispatch attempt.
type NotificationDelivery struct {
	ID                string         `db:"id" json:"id"`
	Event             string         `db:"event" json:"event"`
	RecipientID       string         `db:"recipient_id" json:"recipient_id"`
	RecipientType     RecipientType  `db:"recipient_type" json:"recipient_type"`
	ChannelsAttempted pq.StringArray `db:"channels_attempted" json:"channels_attempted"`
	ChannelsFailed    pq.StringArray `db:"channels_failed" json:"channels_failed"`
	CreatedAt         time.Time      `db:"created_at" json:"created_at"`
}
