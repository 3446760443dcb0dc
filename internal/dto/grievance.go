package dto

// CreateGrievanceRequest is the student submission payload.
type CreateGrievanceRequest struct {
	StudentID   string  `json:"student_id" validate:"required"`
	RouteID     *string `json:"route_id,omitempty"`
	Subject     string  `json:"subject" validate:"required,max=200"`
	Description string  `json:"description" validate:"required"`
	Category    string  `json:"category" validate:"required,oneof=complaint suggestion compliment technical_issue"`
	Priority    string  `json:"priority" validate:"omitempty,oneof=urgent high medium low"`
	Urgency     string  `json:"urgency"`
}

// UpdateGrievanceRequest carries admin-editable fields.
type UpdateGrievanceRequest struct {
	Subject     *string  `json:"subject,omitempty"`
	Description *string  `json:"description,omitempty"`
	Priority    *string  `json:"priority,omitempty" validate:"omitempty,oneof=urgent high medium low"`
	Urgency     *string  `json:"urgency,omitempty"`
	AssignedTo  *string  `json:"assigned_to,omitempty"`
	Resolution  *string  `json:"resolution,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// TransitionRequest asks for a guarded status change.
type TransitionRequest struct {
	FromStatus string  `json:"from_status" validate:"required"`
	ToStatus   string  `json:"to_status" validate:"required"`
	Reason     *string `json:"reason,omitempty"`
}

// TransitionResponse reports the outcome of a transition attempt.
type TransitionResponse struct {
	Success   bool   `json:"success"`
	NewStatus string `json:"new_status,omitempty"`
}

// AddCommentRequest appends a threaded comment.
type AddCommentRequest struct {
	Comment string `json:"comment" validate:"required"`
}
