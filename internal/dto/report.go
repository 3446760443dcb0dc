package dto

import (
	"time"

	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/models"
)

// ReportRequest asks for an asynchronous grievance export.
type ReportRequest struct {
	Format     models.ReportFormat        `json:"format" validate:"required,oneof=csv pdf"`
	Statuses   []models.GrievanceStatus   `json:"statuses,omitempty"`
	Categories []models.GrievanceCategory `json:"categories,omitempty"`
	From       *time.Time                 `json:"from,omitempty"`
	To         *time.Time                 `json:"to,omitempty"`
}

// ReportJobResponse acknowledges job creation.
type ReportJobResponse struct {
	ID       string              `json:"id"`
	Status   models.ReportStatus `json:"status"`
	Progress int                 `json:"progress"`
}

// ReportStatusResponse exposes job progress and the signed result URL.
type ReportStatusResponse struct {
	ID        string              `json:"id"`
	Status    models.ReportStatus `json:"status"`
	Progress  int                 `json:"progress"`
	ResultURL *string             `json:"result_url,omitempty"`
	Error     *string             `json:"error,omitempty"`
}
