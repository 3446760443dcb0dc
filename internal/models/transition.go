package models

import (
	"fmt"
	"time"
)

// TransitionRecipients names the audiences notified after a successful
// transition.
type TransitionRecipients struct {
	Student    bool
	Assignee   bool
	Escalation bool
}

// TransitionUpdates are the typed field updates a transition applies alongside
// the status change.
type TransitionUpdates struct {
	SetResolvedAt   bool
	ClearResolvedAt bool
	SetEscalatedAt  bool
	ClearAssignee   bool
	ClearResolution bool
}

// TransitionRule declares which status changes are legal, by whom, and with
// what side effects. Keys follow `{from}_to_{to}` with an `any_to_{to}`
// wildcard fallback.
type TransitionRule struct {
	Key          string
	From         []GrievanceStatus
	To           GrievanceStatus
	AllowedRoles []UserRole
	Stage        WorkflowStage
	Updates      TransitionUpdates
	Notify       TransitionRecipients
	Event        string
}

// AllowsFrom reports whether the rule accepts the given source status.
func (r *TransitionRule) AllowsFrom(from GrievanceStatus) bool {
	for _, s := range r.From {
		if s == from {
			return true
		}
	}
	return false
}

// AllowsRole reports whether the actor role may perform the transition.
func (r *TransitionRule) AllowsRole(role UserRole) bool {
	for _, allowed := range r.AllowedRoles {
		if allowed == role {
			return true
		}
	}
	return false
}

// TransitionKey builds the exact lookup key for a from/to pair.
func TransitionKey(from, to GrievanceStatus) string {
	return fmt.Sprintf("%s_to_%s", from, to)
}

// WildcardTransitionKey builds the fallback key matching any source status the
// rule's From list admits.
func WildcardTransitionKey(to GrievanceStatus) string {
	return fmt.Sprintf("any_to_%s", to)
}

var adminRoles = []UserRole{RoleSuperAdmin, RoleAdmin, RoleTransportManager}

// TransitionRules is the process-wide read-only transition table. Closed is
// terminal: no rule leads out of it.
var TransitionRules = map[string]TransitionRule{
	"open_to_in_progress": {
		Key:          "open_to_in_progress",
		From:         []GrievanceStatus{StatusOpen},
		To:           StatusInProgress,
		AllowedRoles: adminRoles,
		Stage:        StageInvestigating,
		Notify:       TransitionRecipients{Student: true, Assignee: true},
		Event:        "grievance_status_updated",
	},
	"in_progress_to_resolved": {
		Key:          "in_progress_to_resolved",
		From:         []GrievanceStatus{StatusInProgress},
		To:           StatusResolved,
		AllowedRoles: adminRoles,
		Stage:        StageResolved,
		Updates:      TransitionUpdates{SetResolvedAt: true},
		Notify:       TransitionRecipients{Student: true},
		Event:        "grievance_resolved",
	},
	"escalated_to_resolved": {
		Key:          "escalated_to_resolved",
		From:         []GrievanceStatus{StatusEscalated},
		To:           StatusResolved,
		AllowedRoles: []UserRole{RoleSuperAdmin, RoleAdmin},
		Stage:        StageResolved,
		Updates:      TransitionUpdates{SetResolvedAt: true},
		Notify:       TransitionRecipients{Student: true},
		Event:        "grievance_resolved",
	},
	"resolved_to_closed": {
		Key:          "resolved_to_closed",
		From:         []GrievanceStatus{StatusResolved},
		To:           StatusClosed,
		AllowedRoles: adminRoles,
		Stage:        StageClosed,
		Notify:       TransitionRecipients{Student: true},
		Event:        "grievance_status_updated",
	},
	"resolved_to_in_progress": {
		Key:          "resolved_to_in_progress",
		From:         []GrievanceStatus{StatusResolved},
		To:           StatusInProgress,
		AllowedRoles: []UserRole{RoleSuperAdmin, RoleAdmin},
		Stage:        StageInvestigating,
		Updates:      TransitionUpdates{ClearResolvedAt: true, ClearResolution: true},
		Notify:       TransitionRecipients{Student: true, Assignee: true},
		Event:        "grievance_status_updated",
	},
	"in_progress_to_open": {
		Key:          "in_progress_to_open",
		From:         []GrievanceStatus{StatusInProgress},
		To:           StatusOpen,
		AllowedRoles: []UserRole{RoleSuperAdmin, RoleAdmin},
		Stage:        StageTriaged,
		Updates:      TransitionUpdates{ClearAssignee: true},
		Notify:       TransitionRecipients{Student: true},
		Event:        "grievance_status_updated",
	},
	"any_to_escalated": {
		Key:          "any_to_escalated",
		From:         []GrievanceStatus{StatusOpen, StatusInProgress},
		To:           StatusEscalated,
		AllowedRoles: []UserRole{RoleSuperAdmin, RoleAdmin},
		Stage:        StageEscalated,
		Updates:      TransitionUpdates{SetEscalatedAt: true},
		Notify:       TransitionRecipients{Student: true, Escalation: true},
		Event:        "grievance_escalated",
	},
}

// LookupTransition resolves the rule for a from/to pair, trying the exact key
// first and falling back to the wildcard. The second return is false when no
// rule admits the pair.
func LookupTransition(from, to GrievanceStatus) (TransitionRule, bool) {
	if rule, ok := TransitionRules[TransitionKey(from, to)]; ok && rule.AllowsFrom(from) {
		return rule, true
	}
	if rule, ok := TransitionRules[WildcardTransitionKey(to)]; ok && rule.AllowsFrom(from) {
		return rule, true
	}
	return TransitionRule{}, false
}

// StatusEvent is one row of the append-only transition log.
type StatusEvent struct {
	ID          string          `db:"id" json:"id"`
	GrievanceID string          `db:"grievance_id" json:"grievance_id"`
	FromStatus  GrievanceStatus `db:"from_status" json:"from_status"`
	ToStatus    GrievanceStatus `db:"to_status" json:"to_status"`
	ActorID     string          `db:"actor_id" json:"actor_id"`
	ActorRole   UserRole        `db:"actor_role" json:"actor_role"`
	Reason      *string         `db:"reason" json:"reason,omitempty"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}
