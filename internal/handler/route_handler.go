package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/dto"
	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/service"
	appErrors "github.com/VenkatagirirajuJicate/tms-admin-api/pkg/errors"
	"github.com/VenkatagirirajuJicate/tms-admin-api/pkg/response"
)

// RouteHandler exposes transport route lookups and allocation sync.
type RouteHandler struct {
	routes *service.RouteService
}

// NewRouteHandler constructs the handler.
func NewRouteHandler(routes *service.RouteService) *RouteHandler {
	return &RouteHandler{routes: routes}
}

// List godoc
// @Summary List transport routes
// @Tags Routes
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /routes [get]
func (h *RouteHandler) List(c *gin.Context) {
	routes, err := h.routes.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, routes, nil)
}

// Get godoc
// @Summary Get a route with its active allocations
// @Tags Routes
// @Produce json
// @Param id path string true "Route ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /routes/{id} [get]
func (h *RouteHandler) Get(c *gin.Context) {
	route, allocations, err := h.routes.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"route": route, "allocations": allocations}, nil)
}

// SyncAllocations godoc
// @Summary Replace a route's active allocations
// @Tags Routes
// @Accept json
// @Produce json
// @Param id path string true "Route ID"
// @Param payload body dto.SyncAllocationsRequest true "Allocations"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /routes/{id}/allocations [put]
func (h *RouteHandler) SyncAllocations(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.SyncAllocationsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid allocation payload"))
		return
	}

	result, err := h.routes.SyncAllocations(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
