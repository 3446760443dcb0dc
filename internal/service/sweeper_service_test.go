package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/models"
)

type swGrievanceStoreStub struct {
	grievances []models.Grievance
	markErr    error
	marked     []string
}

func (s *swGrievanceStoreStub) ListActionable(context.Context) ([]models.Grievance, error) {
	return s.grievances, nil
}

func (s *swGrievanceStoreStub) MarkSLAWarningSent(_ context.Context, id string, _ time.Time) error {
	if s.markErr != nil {
		return s.markErr
	}
	s.marked = append(s.marked, id)
	return nil
}

type swThresholdsStub struct {
	slaHours        int
	escalationHours int
}

func (s *swThresholdsStub) Thresholds(context.Context, models.GrievanceCategory) (int, int) {
	return s.slaHours, s.escalationHours
}

type swNotifierStub struct {
	warnings []string
	err      error
}

func (s *swNotifierStub) NotifySLAWarning(_ context.Context, grievance *models.Grievance, _ models.Recipient, _, _ int) error {
	if s.err != nil {
		return s.err
	}
	s.warnings = append(s.warnings, grievance.ID)
	return nil
}

type swEscalatorStub struct {
	calls []string
	err   error
	noOp  bool
}

func (s *swEscalatorStub) EscalateBySystem(_ context.Context, grievance *models.Grievance, _ string, _ []string) error {
	if s.err != nil {
		return s.err
	}
	s.calls = append(s.calls, grievance.ID)
	if !s.noOp {
		grievance.Status = models.StatusEscalated
	}
	return nil
}

func swGrievanceOpenFor(id string, hours float64, now time.Time, assigned bool) models.Grievance {
	g := models.Grievance{
		ID:        id,
		StudentID: "stu-1",
		Status:    models.StatusInProgress,
		CreatedAt: now.Add(-time.Duration(hours * float64(time.Hour))),
	}
	if assigned {
		assignee := "admin-1"
		g.AssignedTo = &assignee
	}
	return g
}

func swTestService(store *swGrievanceStoreStub, notif *swNotifierStub, escalator *swEscalatorStub, now time.Time) *SweeperService {
	admins := &trAdminStoreStub{users: map[string]*models.User{
		"admin-1": {ID: "admin-1", FullName: "Ravi", Email: "ravi@example.edu"},
	}}
	svc := NewSweeperService(store, &swThresholdsStub{slaHours: 72, escalationHours: 96}, admins, notif, escalator, 4, nil)
	svc.now = func() time.Time { return now }
	return svc
}

func TestRunOnceWarnsInsideWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := &swGrievanceStoreStub{grievances: []models.Grievance{
		swGrievanceOpenFor("G-warn", 69, now, true),
	}}
	notif := &swNotifierStub{}
	svc := swTestService(store, notif, &swEscalatorStub{}, now)

	result, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.Scanned)
	require.Equal(t, 1, result.WarningsSent)
	require.Zero(t, result.Escalated)
	require.Equal(t, []string{"G-warn"}, store.marked)
	require.Equal(t, []string{"G-warn"}, notif.warnings)
}

func TestRunOnceIgnoresGrievancesOutsideWindow(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := &swGrievanceStoreStub{grievances: []models.Grievance{
		// Too young for a warning, too young to escalate.
		swGrievanceOpenFor("G-young", 50, now, true),
	}}
	notif := &swNotifierStub{}
	svc := swTestService(store, notif, &swEscalatorStub{}, now)

	result, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	require.Zero(t, result.WarningsSent)
	require.Zero(t, result.Escalated)
	require.Empty(t, store.marked)
}

func TestRunOnceSkipsUnassignedForWarnings(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := &swGrievanceStoreStub{grievances: []models.Grievance{
		swGrievanceOpenFor("G-unassigned", 70, now, false),
	}}
	svc := swTestService(store, &swNotifierStub{}, &swEscalatorStub{}, now)

	result, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	require.Zero(t, result.WarningsSent)
	require.Empty(t, store.marked)
}

func TestRunOnceDoesNotRewarn(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	already := now.Add(-time.Hour)
	grievance := swGrievanceOpenFor("G-warned", 70, now, true)
	grievance.SLAWarningSentAt = &already
	store := &swGrievanceStoreStub{grievances: []models.Grievance{grievance}}
	notif := &swNotifierStub{}
	svc := swTestService(store, notif, &swEscalatorStub{}, now)

	result, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	require.Zero(t, result.WarningsSent)
	require.Empty(t, notif.warnings)
}

func TestRunOnceStampLostRaceSuppressesWarning(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := &swGrievanceStoreStub{
		grievances: []models.Grievance{swGrievanceOpenFor("G-race", 70, now, true)},
		markErr:    sql.ErrNoRows,
	}
	notif := &swNotifierStub{}
	svc := swTestService(store, notif, &swEscalatorStub{}, now)

	result, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	require.Zero(t, result.WarningsSent)
	require.Empty(t, notif.warnings)
}

func TestRunOnceEscalatesPastThreshold(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := &swGrievanceStoreStub{grievances: []models.Grievance{
		swGrievanceOpenFor("G-overdue", 100, now, true),
	}}
	escalator := &swEscalatorStub{}
	svc := swTestService(store, &swNotifierStub{}, escalator, now)

	result, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, result.Escalated)
	require.Zero(t, result.WarningsSent)
	require.Equal(t, []string{"G-overdue"}, escalator.calls)
}

func TestRunOnceCountsOnlyCommittedEscalations(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := &swGrievanceStoreStub{grievances: []models.Grievance{
		swGrievanceOpenFor("G-skipped", 100, now, true),
	}}
	// A concurrent transition makes escalation a no-op: the escalator returns
	// nil without flipping the status.
	escalator := &swEscalatorStub{noOp: true}
	svc := swTestService(store, &swNotifierStub{}, escalator, now)

	result, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	require.Zero(t, result.Escalated)
}

func TestRunOnceMixedBatch(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store := &swGrievanceStoreStub{grievances: []models.Grievance{
		swGrievanceOpenFor("G-warn", 70, now, true),
		swGrievanceOpenFor("G-young", 10, now, true),
		swGrievanceOpenFor("G-overdue", 120, now, true),
	}}
	notif := &swNotifierStub{}
	escalator := &swEscalatorStub{}
	svc := swTestService(store, notif, escalator, now)

	result, err := svc.RunOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, result.Scanned)
	require.Equal(t, 1, result.WarningsSent)
	require.Equal(t, 1, result.Escalated)
	require.Equal(t, []string{"G-warn"}, notif.warnings)
	require.Equal(t, []string{"G-overdue"}, escalator.calls)
}
