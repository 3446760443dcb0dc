package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// ReportType enumerates supported export jobs.
type ReportType string

const (
	ReportTypeGrievanceSummary ReportType = "GRIEVANCE_SUMMARY"
)

// ReportFormat selects the rendered output.
type ReportFormat string

const (
	ReportFormatCSV ReportFormat = "csv"
	ReportFormatPDF ReportFormat = "pdf"
)

// ReportStatus tracks the job lifecycle.
type ReportStatus string

const (
	ReportStatusQueued     ReportStatus = "QUEUED"
	ReportStatusProcessing ReportStatus = "PROCESSING"
	ReportStatusCompleted  ReportStatus = "COMPLETED"
	ReportStatusFailed     ReportStatus = "FAILED"
)

// ReportJobParams scope the export. Stored as JSONB.
type ReportJobParams struct {
	Format     ReportFormat        `json:"format"`
	Statuses   []GrievanceStatus   `json:"statuses,omitempty"`
	Categories []GrievanceCategory `json:"categories,omitempty"`
	From       *time.Time          `json:"from,omitempty"`
	To         *time.Time          `json:"to,omitempty"`
}

// Value implements driver.Valuer for JSONB persistence.
func (p ReportJobParams) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implements sql.Scanner.
func (p *ReportJobParams) Scan(src interface{}) error {
	return scanJSON(src, p)
}

// ReportJob is one asynchronous export request.
type ReportJob struct {
	ID           string          `db:"id" json:"id"`
	Type         ReportType      `db:"type" json:"type"`
	Params       ReportJobParams `db:"params" json:"params"`
	Status       ReportStatus    `db:"status" json:"status"`
	Progress     int             `db:"progress" json:"progress"`
	ResultURL    *string         `db:"result_url" json:"result_url,omitempty"`
	ErrorMessage *string         `db:"error_message" json:"error_message,omitempty"`
	CreatedBy    string          `db:"created_by" json:"created_by"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
	StartedAt    *time.Time      `db:"started_at" json:"started_at,omitempty"`
	FinishedAt   *time.Time      `db:"finished_at" json:"finished_at,omitempty"`
}
