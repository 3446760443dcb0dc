package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/dto"
	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/models"
	appErrors "github.com/VenkatagirirajuJicate/tms-admin-api/pkg/errors"
	"github.com/VenkatagirirajuJicate/tms-admin-api/pkg/export"
	"github.com/VenkatagirirajuJicate/tms-admin-api/pkg/jobs"
)

type reportJobStore interface {
	Create(ctx context.Context, job *models.ReportJob) error
	GetByID(ctx context.Context, id string) (*models.ReportJob, error)
	MarkProcessing(ctx context.Context, id string, startedAt time.Time) error
	MarkCompleted(ctx context.Context, id, resultURL string, finishedAt time.Time) error
	MarkFailed(ctx context.Context, id, message string, finishedAt time.Time) error
	ListByCreator(ctx context.Context, createdBy string, limit int) ([]models.ReportJob, error)
}

type exportRowSource interface {
	ListExportRows(ctx context.Context, filter models.GrievanceFilter, from, to *time.Time) ([]models.Grievance, error)
}

type resultSigner interface {
	Generate(jobID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error)
}

type reportEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// fileStorage is the subset of pkg/storage used by report generation.
type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Path(filename string) string
}

// ReportService queues grievance exports, renders them in the background
// worker pool and hands out signed download URLs.
type ReportService struct {
	repo       reportJobStore
	grievances exportRowSource
	storage    fileStorage
	signer     resultSigner
	queue      reportEnqueuer
	csv        *export.CSVExporter
	pdf        *export.PDFExporter
	logger     *zap.Logger
}

// NewReportService constructs the service. Wire the queue afterwards with
// SetQueue since the queue handler needs the service.
func NewReportService(repo reportJobStore, grievances exportRowSource, storage fileStorage, signer resultSigner, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		repo:       repo,
		grievances: grievances,
		storage:    storage,
		signer:     signer,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		logger:     logger,
	}
}

// SetQueue wires the background queue used for rendering.
func (s *ReportService) SetQueue(queue reportEnqueuer) {
	s.queue = queue
}

// Request validates and queues an export job.
func (s *ReportService) Request(ctx context.Context, req dto.ReportRequest, createdBy string) (*models.ReportJob, error) {
	if req.Format != models.ReportFormatCSV && req.Format != models.ReportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	job := &models.ReportJob{
		Type: models.ReportTypeGrievanceSummary,
		Params: models.ReportJobParams{
			Format:     req.Format,
			Statuses:   req.Statuses,
			Categories: req.Categories,
			From:       req.From,
			To:         req.To,
		},
		Status:    models.ReportStatusQueued,
		CreatedBy: createdBy,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue report job")
	}
	if s.queue != nil {
		if err := s.queue.Enqueue(jobs.Job{ID: uuid.NewString(), Type: string(job.Type), Payload: job.ID}); err != nil {
			s.logger.Error("report enqueue failed", zap.String("job_id", job.ID), zap.Error(err))
			now := time.Now().UTC()
			_ = s.repo.MarkFailed(ctx, job.ID, "queue unavailable", now)
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enqueue report job")
		}
	}
	return job, nil
}

// Status returns the job with its signed download URL when completed.
func (s *ReportService) Status(ctx context.Context, jobID, requesterID string) (*models.ReportJob, error) {
	job, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "report job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load report job")
	}
	if job.CreatedBy != requesterID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "report belongs to another user")
	}
	return job, nil
}

// List returns the requester's recent jobs.
func (s *ReportService) List(ctx context.Context, requesterID string, limit int) ([]models.ReportJob, error) {
	records, err := s.repo.ListByCreator(ctx, requesterID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list report jobs")
	}
	return records, nil
}

// ResolveDownload validates a signed token and returns the on-disk path.
func (s *ReportService) ResolveDownload(token string) (string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download token")
	}
	return s.storage.Path(relPath), nil
}

// HandleJob is the queue handler: it renders the export and finalises the job
// row. Returning an error lets the queue retry.
func (s *ReportService) HandleJob(ctx context.Context, job jobs.Job) error {
	jobID, ok := job.Payload.(string)
	if !ok {
		s.logger.Error("report job payload is not a job id", zap.Any("payload", job.Payload))
		return nil
	}
	now := time.Now().UTC()
	if err := s.repo.MarkProcessing(ctx, jobID, now); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Already picked up by another worker or retried after completion.
			return nil
		}
		return fmt.Errorf("mark processing: %w", err)
	}

	record, err := s.repo.GetByID(ctx, jobID)
	if err != nil {
		return fmt.Errorf("load report job: %w", err)
	}

	payload, filename, err := s.render(ctx, record)
	if err != nil {
		s.logger.Error("report render failed", zap.String("job_id", jobID), zap.Error(err))
		return s.repo.MarkFailed(ctx, jobID, err.Error(), time.Now().UTC())
	}
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		s.logger.Error("report save failed", zap.String("job_id", jobID), zap.Error(err))
		return s.repo.MarkFailed(ctx, jobID, "failed to store rendered report", time.Now().UTC())
	}
	token, _, err := s.signer.Generate(jobID, relPath)
	if err != nil {
		return s.repo.MarkFailed(ctx, jobID, "failed to sign download url", time.Now().UTC())
	}
	resultURL := "/api/v1/reports/download/" + token
	if err := s.repo.MarkCompleted(ctx, jobID, resultURL, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark completed: %w", err)
	}
	s.logger.Info("report completed", zap.String("job_id", jobID), zap.String("file", relPath))
	return nil
}

func (s *ReportService) render(ctx context.Context, job *models.ReportJob) ([]byte, string, error) {
	filter := models.GrievanceFilter{
		Statuses:   job.Params.Statuses,
		Categories: job.Params.Categories,
	}
	rows, err := s.grievances.ListExportRows(ctx, filter, job.Params.From, job.Params.To)
	if err != nil {
		return nil, "", fmt.Errorf("load export rows: %w", err)
	}

	dataset := export.Dataset{
		Headers: []string{"ID", "Student", "Category", "Priority", "Status", "Subject", "Created", "Resolved"},
	}
	for i := range rows {
		grievance := &rows[i]
		resolved := ""
		if grievance.ResolvedAt != nil {
			resolved = grievance.ResolvedAt.Format(time.RFC3339)
		}
		dataset.Rows = append(dataset.Rows, map[string]string{
			"ID":       grievance.ID,
			"Student":  grievance.StudentID,
			"Category": string(grievance.Category),
			"Priority": string(grievance.Priority),
			"Status":   string(grievance.Status),
			"Subject":  grievance.Subject,
			"Created":  grievance.CreatedAt.Format(time.RFC3339),
			"Resolved": resolved,
		})
	}

	stamp := time.Now().UTC().Format("20060102T150405")
	switch job.Params.Format {
	case models.ReportFormatPDF:
		payload, err := s.pdf.Render(dataset, "Grievance Summary")
		if err != nil {
			return nil, "", err
		}
		return payload, fmt.Sprintf("grievances/%s-%s.pdf", job.ID, stamp), nil
	default:
		payload, err := s.csv.Render(dataset)
		if err != nil {
			return nil, "", err
		}
		return payload, fmt.Sprintf("grievances/%s-%s.csv", job.ID, stamp), nil
	}
}
