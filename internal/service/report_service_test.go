package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/dto"
	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/models"
	appErrors "github.com/VenkatagirirajuJicate/tms-admin-api/pkg/errors"
	"github.com/VenkatagirirajuJicate/tms-admin-api/pkg/jobs"
)

type reportStoreStub struct {
	jobs       map[string]*models.ReportJob
	failedMsg  string
	completed  string
	processing bool
}

func newReportStoreStub() *reportStoreStub {
	return &reportStoreStub{jobs: map[string]*models.ReportJob{}}
}

func (s *reportStoreStub) Create(_ context.Context, job *models.ReportJob) error {
	job.ID = "job-1"
	job.CreatedAt = time.Now().UTC()
	s.jobs[job.ID] = job
	return nil
}

func (s *reportStoreStub) GetByID(_ context.Context, id string) (*models.ReportJob, error) {
	job, ok := s.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return job, nil
}

func (s *reportStoreStub) MarkProcessing(_ context.Context, id string, _ time.Time) error {
	job, ok := s.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	job.Status = models.ReportStatusProcessing
	s.processing = true
	return nil
}

func (s *reportStoreStub) MarkCompleted(_ context.Context, id, resultURL string, _ time.Time) error {
	s.jobs[id].Status = models.ReportStatusCompleted
	s.completed = resultURL
	return nil
}

func (s *reportStoreStub) MarkFailed(_ context.Context, id, message string, _ time.Time) error {
	if job, ok := s.jobs[id]; ok {
		job.Status = models.ReportStatusFailed
	}
	s.failedMsg = message
	return nil
}

func (s *reportStoreStub) ListByCreator(_ context.Context, createdBy string, _ int) ([]models.ReportJob, error) {
	var out []models.ReportJob
	for _, job := range s.jobs {
		if job.CreatedBy == createdBy {
			out = append(out, *job)
		}
	}
	return out, nil
}

type rowSourceStub struct {
	rows []models.Grievance
	err  error
}

func (s *rowSourceStub) ListExportRows(context.Context, models.GrievanceFilter, *time.Time, *time.Time) ([]models.Grievance, error) {
	return s.rows, s.err
}

type signerStub struct {
	parseErr error
}

func (s *signerStub) Generate(jobID, relPath string) (string, time.Time, error) {
	return "signed-" + jobID, time.Now().Add(time.Hour), nil
}

func (s *signerStub) Parse(token string, _ bool) (string, string, time.Time, error) {
	if s.parseErr != nil {
		return "", "", time.Time{}, s.parseErr
	}
	return "job-1", "grievances/job-1.csv", time.Now().Add(time.Hour), nil
}

type storageStub struct {
	saved map[string][]byte
}

func (s *storageStub) Save(filename string, data []byte) (string, error) {
	if s.saved == nil {
		s.saved = map[string][]byte{}
	}
	s.saved[filename] = data
	return filename, nil
}

func (s *storageStub) Path(filename string) string {
	return "/var/reports/" + filename
}

type enqueuerStub struct {
	jobs []jobs.Job
	err  error
}

func (s *enqueuerStub) Enqueue(job jobs.Job) error {
	if s.err != nil {
		return s.err
	}
	s.jobs = append(s.jobs, job)
	return nil
}

func reportTestService(store *reportStoreStub, rows *rowSourceStub, storage *storageStub, queue *enqueuerStub) *ReportService {
	svc := NewReportService(store, rows, storage, &signerStub{}, nil)
	if queue != nil {
		svc.SetQueue(queue)
	}
	return svc
}

func TestReportRequestQueuesJob(t *testing.T) {
	store := newReportStoreStub()
	queue := &enqueuerStub{}
	svc := reportTestService(store, &rowSourceStub{}, &storageStub{}, queue)

	job, err := svc.Request(context.Background(), dto.ReportRequest{Format: models.ReportFormatCSV}, "admin-1")
	require.NoError(t, err)
	require.Equal(t, models.ReportStatusQueued, job.Status)
	require.Equal(t, "admin-1", job.CreatedBy)
	require.Len(t, queue.jobs, 1)
	require.Equal(t, job.ID, queue.jobs[0].Payload)
}

func TestReportRequestRejectsUnknownFormat(t *testing.T) {
	svc := reportTestService(newReportStoreStub(), &rowSourceStub{}, &storageStub{}, nil)

	_, err := svc.Request(context.Background(), dto.ReportRequest{Format: "xlsx"}, "admin-1")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestReportRequestMarksFailedWhenQueueDown(t *testing.T) {
	store := newReportStoreStub()
	queue := &enqueuerStub{err: errors.New("queue stopped")}
	svc := reportTestService(store, &rowSourceStub{}, &storageStub{}, queue)

	_, err := svc.Request(context.Background(), dto.ReportRequest{Format: models.ReportFormatCSV}, "admin-1")
	require.Error(t, err)
	require.Equal(t, models.ReportStatusFailed, store.jobs["job-1"].Status)
}

func TestReportStatusEnforcesOwnership(t *testing.T) {
	store := newReportStoreStub()
	store.jobs["job-1"] = &models.ReportJob{ID: "job-1", CreatedBy: "admin-1", Status: models.ReportStatusQueued}
	svc := reportTestService(store, &rowSourceStub{}, &storageStub{}, nil)

	_, err := svc.Status(context.Background(), "job-1", "admin-2")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	job, err := svc.Status(context.Background(), "job-1", "admin-1")
	require.NoError(t, err)
	require.Equal(t, "job-1", job.ID)
}

func TestHandleJobRendersAndCompletes(t *testing.T) {
	store := newReportStoreStub()
	store.jobs["job-1"] = &models.ReportJob{
		ID:        "job-1",
		Type:      models.ReportTypeGrievanceSummary,
		Params:    models.ReportJobParams{Format: models.ReportFormatCSV},
		Status:    models.ReportStatusQueued,
		CreatedBy: "admin-1",
	}
	rows := &rowSourceStub{rows: []models.Grievance{
		{ID: "G42", StudentID: "stu-1", Subject: "Bus overcrowded", Status: models.StatusOpen, CreatedAt: time.Now()},
	}}
	storage := &storageStub{}
	svc := reportTestService(store, rows, storage, nil)

	err := svc.HandleJob(context.Background(), jobs.Job{ID: "q1", Payload: "job-1"})
	require.NoError(t, err)

	require.True(t, store.processing)
	require.Equal(t, models.ReportStatusCompleted, store.jobs["job-1"].Status)
	require.Contains(t, store.completed, "/reports/download/signed-job-1")

	require.Len(t, storage.saved, 1)
	for name, payload := range storage.saved {
		require.True(t, strings.HasSuffix(name, ".csv"))
		require.Contains(t, string(payload), "G42")
	}
}

func TestHandleJobMarksFailedOnRenderError(t *testing.T) {
	store := newReportStoreStub()
	store.jobs["job-1"] = &models.ReportJob{
		ID:     "job-1",
		Params: models.ReportJobParams{Format: models.ReportFormatCSV},
		Status: models.ReportStatusQueued,
	}
	rows := &rowSourceStub{err: errors.New("db gone")}
	svc := reportTestService(store, rows, &storageStub{}, nil)

	err := svc.HandleJob(context.Background(), jobs.Job{ID: "q1", Payload: "job-1"})
	require.NoError(t, err)
	require.Equal(t, models.ReportStatusFailed, store.jobs["job-1"].Status)
	require.NotEmpty(t, store.failedMsg)
}

func TestHandleJobIgnoresMissingJob(t *testing.T) {
	svc := reportTestService(newReportStoreStub(), &rowSourceStub{}, &storageStub{}, nil)

	err := svc.HandleJob(context.Background(), jobs.Job{ID: "q1", Payload: "job-404"})
	require.NoError(t, err)
}

func TestResolveDownloadRejectsBadToken(t *testing.T) {
	store := newReportStoreStub()
	svc := NewReportService(store, &rowSourceStub{}, &storageStub{}, &signerStub{parseErr: errors.New("bad signature")}, nil)

	_, err := svc.ResolveDownload("tampered")
	require.Error(t, err)
	require.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestResolveDownloadReturnsStoragePath(t *testing.T) {
	svc := reportTestService(newReportStoreStub(), &rowSourceStub{}, &storageStub{}, nil)

	path, err := svc.ResolveDownload("valid")
	require.NoError(t, err)
	require.Equal(t, "/var/reports/grievances/job-1.csv", path)
}
