package models

import "time"

// GrievanceAnalytics aggregates dashboard counters over the grievance table.
type GrievanceAnalytics struct {
	Total              int            `json:"total"`
	ByStatus           map[string]int `json:"by_status"`
	ByCategory         map[string]int `json:"by_category"`
	ByPriority         map[string]int `json:"by_priority"`
	OpenOverSLA        int            `json:"open_over_sla"`
	Escalated          int            `json:"escalated"`
	AvgResolutionHours float64        `json:"avg_resolution_hours"`
	GeneratedAt        time.Time      `json:"generated_at"`
}
