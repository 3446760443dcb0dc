package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/models"
)

func newWorkflowRuleRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestWorkflowRuleRepositoryListActive(t *testing.T) {
	db, mock, cleanup := newWorkflowRuleRepoMock(t)
	defer cleanup()

	repo := NewWorkflowRuleRepository(db)
	rows := sqlmock.NewRows([]string{"id", "name", "priority", "active", "conditions", "actions", "created_at", "updated_at"}).
		AddRow("rule-1", "urgent complaints", 10, true, `{"categories":["complaint"]}`, `{"set_priority":"urgent"}`, time.Now(), time.Now()).
		AddRow("rule-2", "stale escalation", 20, true, `{"min_hours_open":24}`, `{"escalate":true}`, time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("WHERE active = TRUE ORDER BY priority ASC")).
		WillReturnRows(rows)

	rules, err := repo.ListActive(context.Background())
	require.NoError(t, err)
	require.Len(t, rules, 2)
	require.Equal(t, "rule-1", rules[0].ID)
	require.Equal(t, []models.GrievanceCategory{models.CategoryComplaint}, rules[0].Conditions.Categories)
	require.True(t, rules[1].IsTimeBased())
	require.True(t, rules[1].Actions.Escalate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkflowRuleRepositoryUpdateMissing(t *testing.T) {
	db, mock, cleanup := newWorkflowRuleRepoMock(t)
	defer cleanup()

	repo := NewWorkflowRuleRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE workflow_rules SET")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Update(context.Background(), &models.WorkflowRule{ID: "missing", Name: "x"})
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
