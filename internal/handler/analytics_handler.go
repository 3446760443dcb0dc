package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/service"
	"github.com/VenkatagirirajuJicate/tms-admin-api/pkg/response"
)

// AnalyticsHandler serves the grievance dashboard aggregates.
type AnalyticsHandler struct {
	analytics *service.AnalyticsService
}

// NewAnalyticsHandler constructs the handler.
func NewAnalyticsHandler(analytics *service.AnalyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// Summary godoc
// @Summary Grievance analytics summary
// @Tags Analytics
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /analytics/grievances [get]
func (h *AnalyticsHandler) Summary(c *gin.Context) {
	summary, err := h.analytics.Summary(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
