package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/service"
	"github.com/VenkatagirirajuJicate/tms-admin-api/pkg/response"
)

// SweeperHandler allows admins to trigger the SLA sweep outside its schedule.
type SweeperHandler struct {
	sweeper *service.SweeperService
}

// NewSweeperHandler constructs the handler.
func NewSweeperHandler(sweeper *service.SweeperService) *SweeperHandler {
	return &SweeperHandler{sweeper: sweeper}
}

// Run godoc
// @Summary Run the SLA sweeper once
// @Tags Workflow
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /workflow/sweep [post]
func (h *SweeperHandler) Run(c *gin.Context) {
	result, err := h.sweeper.RunOnce(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
