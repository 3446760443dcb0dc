package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/models"
)

func newGrievanceRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func grievanceRows(id string, status models.GrievanceStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "student_id", "route_id", "subject", "description", "category", "priority", "urgency", "status",
		"assigned_to", "escalated_to", "escalation_reason", "resolution", "tags", "sla_warning_sent_at",
		"created_at", "updated_at", "resolved_at", "escalated_at",
	}).AddRow(id, "student-1", nil, "AC broken", "No cooling on route 12", "complaint", "high", "high", string(status),
		nil, nil, nil, nil, "{}", nil, time.Now().Add(-2*time.Hour), time.Now(), nil, nil)
}

func TestGrievanceRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newGrievanceRepoMock(t)
	defer cleanup()

	repo := NewGrievanceRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO grievances")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	grievance := &models.Grievance{
		StudentID:   "student-1",
		Subject:     "AC broken",
		Description: "No cooling on route 12",
		Category:    models.CategoryComplaint,
		Priority:    models.PriorityHigh,
		Urgency:     "high",
	}
	require.NoError(t, repo.Create(context.Background(), grievance))
	require.NotEmpty(t, grievance.ID)
	require.Equal(t, models.StatusOpen, grievance.Status)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, route_id")).
		WithArgs(grievance.ID).
		WillReturnRows(grievanceRows(grievance.ID, models.StatusOpen))

	found, err := repo.GetByID(context.Background(), grievance.ID)
	require.NoError(t, err)
	require.Equal(t, grievance.ID, found.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGrievanceRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newGrievanceRepoMock(t)
	defer cleanup()

	repo := NewGrievanceRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, route_id")).
		WithArgs("open", "complaint").
		WillReturnRows(grievanceRows("grv-1", models.StatusOpen))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs("open", "complaint").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	list, total, err := repo.List(context.Background(), models.GrievanceFilter{
		Statuses:   []models.GrievanceStatus{models.StatusOpen},
		Categories: []models.GrievanceCategory{models.CategoryComplaint},
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, 1, total)
	require.Equal(t, "grv-1", list[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGrievanceRepositoryApplyTransition(t *testing.T) {
	db, mock, cleanup := newGrievanceRepoMock(t)
	defer cleanup()

	repo := NewGrievanceRepository(db)
	now := time.Now().UTC()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("grv-1").
		WillReturnRows(grievanceRows("grv-1", models.StatusInProgress))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE grievances SET")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE grievance_workflow_states")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO grievance_status_events")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	updated, err := repo.ApplyTransition(context.Background(), ApplyTransitionParams{
		GrievanceID: "grv-1",
		From:        models.StatusInProgress,
		To:          models.StatusResolved,
		Stage:       models.StageResolved,
		Updates:     models.TransitionUpdates{SetResolvedAt: true},
		ActorID:     "admin-1",
		ActorRole:   models.RoleAdmin,
		Now:         now,
	})
	require.NoError(t, err)
	require.Equal(t, models.StatusResolved, updated.Status)
	require.NotNil(t, updated.ResolvedAt)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGrievanceRepositoryApplyTransitionConflict(t *testing.T) {
	db, mock, cleanup := newGrievanceRepoMock(t)
	defer cleanup()

	repo := NewGrievanceRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs("grv-1").
		WillReturnRows(grievanceRows("grv-1", models.StatusResolved))
	mock.ExpectRollback()

	_, err := repo.ApplyTransition(context.Background(), ApplyTransitionParams{
		GrievanceID: "grv-1",
		From:        models.StatusInProgress,
		To:          models.StatusResolved,
		ActorID:     "admin-1",
		ActorRole:   models.RoleAdmin,
	})
	require.ErrorIs(t, err, ErrStatusConflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGrievanceRepositoryMarkSLAWarningSent(t *testing.T) {
	db, mock, cleanup := newGrievanceRepoMock(t)
	defer cleanup()

	repo := NewGrievanceRepository(db)
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE grievances SET sla_warning_sent_at")).
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.MarkSLAWarningSent(context.Background(), "grv-1", now))

	mock.ExpectExec(regexp.QuoteMeta("UPDATE grievances SET sla_warning_sent_at")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.MarkSLAWarningSent(context.Background(), "grv-1", now)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}
