package models

import "time"

// Student is a transport-enrolled student row used for grievance ownership and
// notification recipient lookup.
type Student struct {
	ID             string    `db:"id" json:"id"`
	FullName       string    `db:"full_name" json:"full_name"`
	RollNumber     string    `db:"roll_number" json:"roll_number"`
	Email          string    `db:"email" json:"email"`
	Mobile         *string   `db:"mobile" json:"mobile,omitempty"`
	StudentType    string    `db:"student_type" json:"student_type"`
	RouteID        *string   `db:"route_id" json:"route_id,omitempty"`
	EmailOptIn     bool      `db:"email_opt_in" json:"email_opt_in"`
	SMSOptIn       bool      `db:"sms_opt_in" json:"sms_opt_in"`
	TransportActive bool     `db:"transport_active" json:"transport_active"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// AsRecipient converts the student into a notification recipient honoring
// channel opt-ins.
func (s *Student) AsRecipient() Recipient {
	return Recipient{
		ID:           s.ID,
		Type:         RecipientStudent,
		Name:         s.FullName,
		Email:        s.Email,
		Mobile:       s.Mobile,
		EmailEnabled: s.EmailOptIn,
		SMSEnabled:   s.SMSOptIn && s.Mobile != nil,
	}
}
