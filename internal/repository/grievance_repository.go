package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/models"
)

// ErrStatusConflict signals that the grievance status changed between the
// caller's read and the transition attempt.
var ErrStatusConflict = errors.New("grievance status conflict")

const grievanceColumns = `id, student_id, route_id, subject, description, category, priority, urgency, status,
       assigned_to, escalated_to, escalation_reason, resolution, tags, sla_warning_sent_at,
       created_at, updated_at, resolved_at, escalated_at`

// GrievanceRepository persists grievances, their workflow state and the
// append-only transition log.
type GrievanceRepository struct {
	db *sqlx.DB
}

// NewGrievanceRepository constructs the repository.
func NewGrievanceRepository(db *sqlx.DB) *GrievanceRepository {
	return &GrievanceRepository{db: db}
}

// Create inserts a new grievance row.
func (r *GrievanceRepository) Create(ctx context.Context, grievance *models.Grievance) error {
	if grievance.ID == "" {
		grievance.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if grievance.CreatedAt.IsZero() {
		grievance.CreatedAt = now
	}
	grievance.UpdatedAt = now
	if grievance.Status == "" {
		grievance.Status = models.StatusOpen
	}
	if grievance.Tags == nil {
		grievance.Tags = pq.StringArray{}
	}
	const query = `INSERT INTO grievances
	(id, student_id, route_id, subject, description, category, priority, urgency, status,
	 assigned_to, escalated_to, escalation_reason, resolution, tags, sla_warning_sent_at,
	 created_at, updated_at, resolved_at, escalated_at)
	VALUES (:id, :student_id, :route_id, :subject, :description, :category, :priority, :urgency, :status,
	 :assigned_to, :escalated_to, :escalation_reason, :resolution, :tags, :sla_warning_sent_at,
	 :created_at, :updated_at, :resolved_at, :escalated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, grievance); err != nil {
		return fmt.Errorf("create grievance: %w", err)
	}
	return nil
}

// GetByID fetches a grievance by identifier.
func (r *GrievanceRepository) GetByID(ctx context.Context, id string) (*models.Grievance, error) {
	query := fmt.Sprintf(`SELECT %s FROM grievances WHERE id = $1`, grievanceColumns)
	var grievance models.Grievance
	if err := r.db.GetContext(ctx, &grievance, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get grievance: %w", err)
	}
	return &grievance, nil
}

// List returns grievances matching the filter plus the total count.
func (r *GrievanceRepository) List(ctx context.Context, filter models.GrievanceFilter) ([]models.Grievance, int, error) {
	baseQuery := `FROM grievances WHERE 1=1`
	var conditions []string
	var args []interface{}

	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Categories) > 0 {
		placeholders := make([]string, len(filter.Categories))
		for i, category := range filter.Categories {
			args = append(args, category)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("category IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Priorities) > 0 {
		placeholders := make([]string, len(filter.Priorities))
		for i, priority := range filter.Priorities {
			args = append(args, priority)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("priority IN (%s)", strings.Join(placeholders, ",")))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("student_id = $%d", len(args)))
	}
	if filter.AssignedTo != "" {
		args = append(args, filter.AssignedTo)
		conditions = append(conditions, fmt.Sprintf("assigned_to = $%d", len(args)))
	}
	if filter.RouteID != "" {
		args = append(args, filter.RouteID)
		conditions = append(conditions, fmt.Sprintf("route_id = $%d", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("(LOWER(subject) LIKE $%d OR LOWER(description) LIKE $%d)", len(args), len(args)))
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", grievanceColumns, baseQuery, pageSize, offset)

	var grievances []models.Grievance
	if err := r.db.SelectContext(ctx, &grievances, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list grievances: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count grievances: %w", err)
	}
	return grievances, total, nil
}

// UpdateGrievanceParams groups admin-editable columns. Nil fields are left
// untouched.
type UpdateGrievanceParams struct {
	Subject     *string
	Description *string
	Priority    *models.GrievancePriority
	Urgency     *string
	AssignedTo  *string
	Resolution  *string
	Tags        pq.StringArray
}

// Update patches mutable fields of an open grievance.
func (r *GrievanceRepository) Update(ctx context.Context, id string, params UpdateGrievanceParams) error {
	setParts := []string{"updated_at = :updated_at"}
	values := map[string]interface{}{
		"id":         id,
		"updated_at": time.Now().UTC(),
	}
	if params.Subject != nil {
		setParts = append(setParts, "subject = :subject")
		values["subject"] = *params.Subject
	}
	if params.Description != nil {
		setParts = append(setParts, "description = :description")
		values["description"] = *params.Description
	}
	if params.Priority != nil {
		setParts = append(setParts, "priority = :priority")
		values["priority"] = *params.Priority
	}
	if params.Urgency != nil {
		setParts = append(setParts, "urgency = :urgency")
		values["urgency"] = *params.Urgency
	}
	if params.AssignedTo != nil {
		setParts = append(setParts, "assigned_to = :assigned_to")
		values["assigned_to"] = *params.AssignedTo
	}
	if params.Resolution != nil {
		setParts = append(setParts, "resolution = :resolution")
		values["resolution"] = *params.Resolution
	}
	if params.Tags != nil {
		setParts = append(setParts, "tags = :tags")
		values["tags"] = params.Tags
	}
	query := fmt.Sprintf("UPDATE grievances SET %s WHERE id = :id", strings.Join(setParts, ", "))
	result, err := r.db.NamedExecContext(ctx, query, values)
	if err != nil {
		return fmt.Errorf("update grievance: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check grievance update rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ApplyTransitionParams carries everything a guarded status change writes in
// one transaction.
type ApplyTransitionParams struct {
	GrievanceID      string
	From             models.GrievanceStatus
	To               models.GrievanceStatus
	Stage            models.WorkflowStage
	Updates          models.TransitionUpdates
	ActorID          string
	ActorRole        models.UserRole
	Reason           *string
	EscalatedTo      *string
	EscalationReason *string
	Now              time.Time
}

// ApplyTransition performs the full transition write set atomically: the
// grievance row, the workflow state row and the status event log. The
// grievance row is locked first; a status mismatch under the lock returns
// ErrStatusConflict.
func (r *GrievanceRepository) ApplyTransition(ctx context.Context, params ApplyTransitionParams) (*models.Grievance, error) {
	if params.Now.IsZero() {
		params.Now = time.Now().UTC()
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transition: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	lockQuery := fmt.Sprintf(`SELECT %s FROM grievances WHERE id = $1 FOR UPDATE`, grievanceColumns)
	var grievance models.Grievance
	if err := tx.GetContext(ctx, &grievance, lockQuery, params.GrievanceID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock grievance: %w", err)
	}
	if grievance.Status != params.From {
		return nil, ErrStatusConflict
	}

	setParts := []string{"status = $2", "updated_at = $3"}
	args := []interface{}{params.GrievanceID, params.To, params.Now}
	if params.Updates.SetResolvedAt {
		args = append(args, params.Now)
		setParts = append(setParts, fmt.Sprintf("resolved_at = $%d", len(args)))
	}
	if params.Updates.ClearResolvedAt {
		setParts = append(setParts, "resolved_at = NULL")
	}
	if params.Updates.SetEscalatedAt {
		args = append(args, params.Now)
		setParts = append(setParts, fmt.Sprintf("escalated_at = $%d", len(args)))
	}
	if params.Updates.ClearAssignee {
		setParts = append(setParts, "assigned_to = NULL")
	}
	if params.Updates.ClearResolution {
		setParts = append(setParts, "resolution = NULL")
	}
	if params.EscalatedTo != nil {
		args = append(args, *params.EscalatedTo)
		setParts = append(setParts, fmt.Sprintf("escalated_to = $%d", len(args)))
	}
	if params.EscalationReason != nil {
		args = append(args, *params.EscalationReason)
		setParts = append(setParts, fmt.Sprintf("escalation_reason = $%d", len(args)))
	}
	updateQuery := fmt.Sprintf("UPDATE grievances SET %s WHERE id = $1", strings.Join(setParts, ", "))
	if _, err := tx.ExecContext(ctx, updateQuery, args...); err != nil {
		return nil, fmt.Errorf("update grievance status: %w", err)
	}

	const stateQuery = `UPDATE grievance_workflow_states
	SET previous_status = current_status, current_status = $2, stage = $3, last_transition_at = $4, updated_at = $4
	WHERE grievance_id = $1`
	if _, err := tx.ExecContext(ctx, stateQuery, params.GrievanceID, params.To, params.Stage, params.Now); err != nil {
		return nil, fmt.Errorf("update workflow state: %w", err)
	}

	const eventQuery = `INSERT INTO grievance_status_events
	(id, grievance_id, from_status, to_status, actor_id, actor_role, reason, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := tx.ExecContext(ctx, eventQuery,
		uuid.NewString(), params.GrievanceID, params.From, params.To,
		params.ActorID, params.ActorRole, params.Reason, params.Now); err != nil {
		return nil, fmt.Errorf("insert status event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit transition: %w", err)
	}

	grievance.Status = params.To
	grievance.UpdatedAt = params.Now
	if params.Updates.SetResolvedAt {
		grievance.ResolvedAt = &params.Now
	}
	if params.Updates.ClearResolvedAt {
		grievance.ResolvedAt = nil
	}
	if params.Updates.SetEscalatedAt {
		grievance.EscalatedAt = &params.Now
	}
	if params.Updates.ClearAssignee {
		grievance.AssignedTo = nil
	}
	if params.Updates.ClearResolution {
		grievance.Resolution = nil
	}
	if params.EscalatedTo != nil {
		grievance.EscalatedTo = params.EscalatedTo
	}
	if params.EscalationReason != nil {
		grievance.EscalationReason = params.EscalationReason
	}
	return &grievance, nil
}

// ListActionable returns grievances in states the sweeper inspects.
func (r *GrievanceRepository) ListActionable(ctx context.Context) ([]models.Grievance, error) {
	query := fmt.Sprintf(`SELECT %s FROM grievances WHERE status IN ($1, $2) ORDER BY created_at ASC`, grievanceColumns)
	var grievances []models.Grievance
	if err := r.db.SelectContext(ctx, &grievances, query, models.StatusOpen, models.StatusInProgress); err != nil {
		return nil, fmt.Errorf("list actionable grievances: %w", err)
	}
	return grievances, nil
}

// MarkSLAWarningSent stamps the dedup column. The IS NULL guard makes a
// concurrent double-send a no-op reported via sql.ErrNoRows.
func (r *GrievanceRepository) MarkSLAWarningSent(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE grievances SET sla_warning_sent_at = $2, updated_at = $2 WHERE id = $1 AND sla_warning_sent_at IS NULL`
	result, err := r.db.ExecContext(ctx, query, id, ts)
	if err != nil {
		return fmt.Errorf("mark sla warning sent: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check sla warning rows: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// AddComment appends a threaded comment.
func (r *GrievanceRepository) AddComment(ctx context.Context, comment *models.GrievanceComment) error {
	if comment.ID == "" {
		comment.ID = uuid.NewString()
	}
	if comment.CreatedAt.IsZero() {
		comment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO grievance_comments (id, grievance_id, author_id, author_type, comment, created_at)
	VALUES (:id, :grievance_id, :author_id, :author_type, :comment, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, comment); err != nil {
		return fmt.Errorf("add grievance comment: %w", err)
	}
	return nil
}

// ListComments returns the comment thread oldest first.
func (r *GrievanceRepository) ListComments(ctx context.Context, grievanceID string) ([]models.GrievanceComment, error) {
	const query = `SELECT id, grievance_id, author_id, author_type, comment, created_at
	FROM grievance_comments WHERE grievance_id = $1 ORDER BY created_at ASC`
	var comments []models.GrievanceComment
	if err := r.db.SelectContext(ctx, &comments, query, grievanceID); err != nil {
		return nil, fmt.Errorf("list grievance comments: %w", err)
	}
	return comments, nil
}

// ListExportRows returns grievances for report generation within the window.
func (r *GrievanceRepository) ListExportRows(ctx context.Context, filter models.GrievanceFilter, from, to *time.Time) ([]models.Grievance, error) {
	var conditions []string
	var args []interface{}
	if len(filter.Statuses) > 0 {
		placeholders := make([]string, len(filter.Statuses))
		for i, status := range filter.Statuses {
			args = append(args, status)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("status IN (%s)", strings.Join(placeholders, ",")))
	}
	if len(filter.Categories) > 0 {
		placeholders := make([]string, len(filter.Categories))
		for i, category := range filter.Categories {
			args = append(args, category)
			placeholders[i] = fmt.Sprintf("$%d", len(args))
		}
		conditions = append(conditions, fmt.Sprintf("category IN (%s)", strings.Join(placeholders, ",")))
	}
	if from != nil {
		args = append(args, *from)
		conditions = append(conditions, fmt.Sprintf("created_at >= $%d", len(args)))
	}
	if to != nil {
		args = append(args, *to)
		conditions = append(conditions, fmt.Sprintf("created_at < $%d", len(args)))
	}
	query := fmt.Sprintf("SELECT %s FROM grievances", grievanceColumns)
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY created_at ASC"

	var grievances []models.Grievance
	if err := r.db.SelectContext(ctx, &grievances, query, args...); err != nil {
		return nil, fmt.Errorf("list export grievances: %w", err)
	}
	return grievances, nil
}
