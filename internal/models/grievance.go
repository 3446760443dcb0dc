package models

import (
	"time"

	"github.com/lib/pq"
)

// GrievanceCategory classifies the nature of a submission.
type GrievanceCategory string

const (
	CategoryComplaint      GrievanceCategory = "complaint"
	CategorySuggestion     GrievanceCategory = "suggestion"
	CategoryCompliment     GrievanceCategory = "compliment"
	CategoryTechnicalIssue GrievanceCategory = "technical_issue"
)

// GrievancePriority orders handling urgency.
type GrievancePriority string

const (
	PriorityUrgent GrievancePriority = "urgent"
	PriorityHigh   GrievancePriority = "high"
	PriorityMedium GrievancePriority = "medium"
	PriorityLow    GrievancePriority = "low"
)

// GrievanceStatus enumerates lifecycle states. Closed is terminal; escalated
// is reachable from open/in_progress and keeps the grievance actionable.
type GrievanceStatus string

const (
	StatusOpen       GrievanceStatus = "open"
	StatusInProgress GrievanceStatus = "in_progress"
	StatusResolved   GrievanceStatus = "resolved"
	StatusClosed     GrievanceStatus = "closed"
	StatusEscalated  GrievanceStatus = "escalated"
)

// ValidCategory reports whether the category is a known enum member.
func ValidCategory(c GrievanceCategory) bool {
	switch c {
	case CategoryComplaint, CategorySuggestion, CategoryCompliment, CategoryTechnicalIssue:
		return true
	}
	return false
}

// ValidPriority reports whether the priority is a known enum member.
func ValidPriority(p GrievancePriority) bool {
	switch p {
	case PriorityUrgent, PriorityHigh, PriorityMedium, PriorityLow:
		return true
	}
	return false
}

// ValidStatus reports whether the status is a known enum member.
func ValidStatus(s GrievanceStatus) bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved, StatusClosed, StatusEscalated:
		return true
	}
	return false
}

// Grievance is a student-submitted complaint/suggestion/issue tracked through
// the transport grievance lifecycle.
type Grievance struct {
	ID               string            `db:"id" json:"id"`
	StudentID        string            `db:"student_id" json:"student_id"`
	RouteID          *string           `db:"route_id" json:"route_id,omitempty"`
	Subject          string            `db:"subject" json:"subject"`
	Description      string            `db:"description" json:"description"`
	Category         GrievanceCategory `db:"category" json:"category"`
	Priority         GrievancePriority `db:"priority" json:"priority"`
	Urgency          string            `db:"urgency" json:"urgency"`
	Status           GrievanceStatus   `db:"status" json:"status"`
	AssignedTo       *string           `db:"assigned_to" json:"assigned_to,omitempty"`
	EscalatedTo      *string           `db:"escalated_to" json:"escalated_to,omitempty"`
	EscalationReason *string           `db:"escalation_reason" json:"escalation_reason,omitempty"`
	Resolution       *string           `db:"resolution" json:"resolution,omitempty"`
	Tags             pq.StringArray    `db:"tags" json:"tags"`
	SLAWarningSentAt *time.Time        `db:"sla_warning_sent_at" json:"sla_warning_sent_at,omitempty"`
	CreatedAt        time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time         `db:"updated_at" json:"updated_at"`
	ResolvedAt       *time.Time        `db:"resolved_at" json:"resolved_at,omitempty"`
	EscalatedAt      *time.Time        `db:"escalated_at" json:"escalated_at,omitempty"`
}

// HoursOpen returns elapsed hours since submission.
func (g *Grievance) HoursOpen(now time.Time) float64 {
	return now.Sub(g.CreatedAt).Hours()
}

// GrievanceFilter constrains listing queries.
type GrievanceFilter struct {
	Statuses   []GrievanceStatus
	Categories []GrievanceCategory
	Priorities []GrievancePriority
	StudentID  string
	AssignedTo string
	RouteID    string
	Search     string
	Page       int
	PageSize   int
}

// GrievanceComment is a threaded follow-up on a grievance.
type GrievanceComment struct {
	ID          string    `db:"id" json:"id"`
	GrievanceID string    `db:"grievance_id" json:"grievance_id"`
	AuthorID    string    `db:"author_id" json:"author_id"`
	AuthorType  string    `db:"author_type" json:"author_type"`
	Comment     string    `db:"comment" json:"comment"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
