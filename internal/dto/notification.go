package dto

// BroadcastRequest is the admin-facing dispatch payload.
type BroadcastRequest struct {
	Title          string   `json:"title" validate:"required"`
	Message        string   `json:"message" validate:"required"`
	Type           string   `json:"type" validate:"omitempty,oneof=info warning error success"`
	TargetAudience string   `json:"target_audience" validate:"required,oneof=students admins all specific"`
	SpecificUsers  []string `json:"specific_users,omitempty"`
	Channels       []string `json:"channels,omitempty"`
}

// BroadcastResponse summarises fan-out results.
type BroadcastResponse struct {
	NotificationID string `json:"notification_id"`
	Recipients     int    `json:"recipients"`
	Delivered      int    `json:"delivered"`
	Failed         int    `json:"failed"`
}
