package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/dto"
	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/models"
	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/service"
	appErrors "github.com/VenkatagirirajuJicate/tms-admin-api/pkg/errors"
	"github.com/VenkatagirirajuJicate/tms-admin-api/pkg/response"
)

type grievanceAPI interface {
	Create(ctx context.Context, req dto.CreateGrievanceRequest) (*models.Grievance, error)
	Get(ctx context.Context, id string) (*service.GrievanceDetail, error)
	List(ctx context.Context, filter models.GrievanceFilter) ([]models.Grievance, *models.Pagination, error)
	Update(ctx context.Context, id string, req dto.UpdateGrievanceRequest, actorID string) (*models.Grievance, error)
	AddComment(ctx context.Context, grievanceID string, req dto.AddCommentRequest, authorID string, authorRole models.UserRole) (*models.GrievanceComment, error)
}

type transitionAPI interface {
	Transition(ctx context.Context, grievanceID string, req dto.TransitionRequest, actorID string, actorRole models.UserRole) (*models.Grievance, error)
}

// GrievanceHandler exposes the grievance lifecycle endpoints.
type GrievanceHandler struct {
	grievances  grievanceAPI
	transitions transitionAPI
	metrics     *service.MetricsService
}

// NewGrievanceHandler constructs the handler.
func NewGrievanceHandler(grievances grievanceAPI, transitions transitionAPI, metrics *service.MetricsService) *GrievanceHandler {
	return &GrievanceHandler{grievances: grievances, transitions: transitions, metrics: metrics}
}

// Create godoc
// @Summary Submit a grievance
// @Tags Grievances
// @Accept json
// @Produce json
// @Param payload body dto.CreateGrievanceRequest true "Grievance payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /grievances [post]
func (h *GrievanceHandler) Create(c *gin.Context) {
	var req dto.CreateGrievanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid grievance payload"))
		return
	}

	claims := claimsFromContext(c)
	if claims != nil && claims.Role == models.RoleStudent {
		req.StudentID = claims.UserID
	}

	grievance, err := h.grievances.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.metrics.GrievanceCreated()
	response.Created(c, grievance)
}

// Get godoc
// @Summary Get a grievance with its workflow state, history and comments
// @Tags Grievances
// @Produce json
// @Param id path string true "Grievance ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /grievances/{id} [get]
func (h *GrievanceHandler) Get(c *gin.Context) {
	detail, err := h.grievances.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	claims := claimsFromContext(c)
	if claims != nil && claims.Role == models.RoleStudent && detail.Grievance.StudentID != claims.UserID {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "grievance belongs to another student"))
		return
	}

	response.JSON(c, http.StatusOK, detail, nil)
}

// List godoc
// @Summary List grievances with filters
// @Tags Grievances
// @Produce json
// @Param status query string false "Comma separated statuses"
// @Param category query string false "Comma separated categories"
// @Param priority query string false "Comma separated priorities"
// @Param search query string false "Free text search"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /grievances [get]
func (h *GrievanceHandler) List(c *gin.Context) {
	filter := models.GrievanceFilter{
		StudentID:  c.Query("student_id"),
		AssignedTo: c.Query("assigned_to"),
		RouteID:    c.Query("route_id"),
		Search:     c.Query("search"),
	}
	for _, s := range splitParam(c.Query("status")) {
		filter.Statuses = append(filter.Statuses, models.GrievanceStatus(s))
	}
	for _, s := range splitParam(c.Query("category")) {
		filter.Categories = append(filter.Categories, models.GrievanceCategory(s))
	}
	for _, s := range splitParam(c.Query("priority")) {
		filter.Priorities = append(filter.Priorities, models.GrievancePriority(s))
	}
	filter.Page, _ = strconv.Atoi(c.Query("page"))
	filter.PageSize, _ = strconv.Atoi(c.Query("page_size"))

	claims := claimsFromContext(c)
	if claims != nil && claims.Role == models.RoleStudent {
		filter.StudentID = claims.UserID
	}

	grievances, pagination, err := h.grievances.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grievances, pagination)
}

// Update godoc
// @Summary Update grievance fields
// @Tags Grievances
// @Accept json
// @Produce json
// @Param id path string true "Grievance ID"
// @Param payload body dto.UpdateGrievanceRequest true "Update payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /grievances/{id} [patch]
func (h *GrievanceHandler) Update(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.UpdateGrievanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid update payload"))
		return
	}

	grievance, err := h.grievances.Update(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grievance, nil)
}

// Transition godoc
// @Summary Apply a guarded status transition
// @Tags Grievances
// @Accept json
// @Produce json
// @Param id path string true "Grievance ID"
// @Param payload body dto.TransitionRequest true "Transition payload"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /grievances/{id}/transition [post]
func (h *GrievanceHandler) Transition(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.TransitionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid transition payload"))
		return
	}

	grievance, err := h.transitions.Transition(c.Request.Context(), c.Param("id"), req, claims.UserID, claims.Role)
	if err != nil {
		h.metrics.TransitionAttempt(req.FromStatus, req.ToStatus, transitionOutcome(err))
		response.Error(c, err)
		return
	}
	h.metrics.TransitionAttempt(req.FromStatus, req.ToStatus, "applied")
	if grievance.Status == models.StatusEscalated {
		h.metrics.Escalated()
	}
	response.JSON(c, http.StatusOK, dto.TransitionResponse{Success: true, NewStatus: string(grievance.Status)}, nil)
}

// AddComment godoc
// @Summary Append a comment to a grievance
// @Tags Grievances
// @Accept json
// @Produce json
// @Param id path string true "Grievance ID"
// @Param payload body dto.AddCommentRequest true "Comment payload"
// @Success 201 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /grievances/{id}/comments [post]
func (h *GrievanceHandler) AddComment(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.AddCommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid comment payload"))
		return
	}

	comment, err := h.grievances.AddComment(c.Request.Context(), c.Param("id"), req, claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, comment)
}

func splitParam(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func transitionOutcome(err error) string {
	appErr := appErrors.FromError(err)
	switch appErr.Code {
	case appErrors.ErrConflict.Code:
		return "conflict"
	case appErrors.ErrInvalidTransition.Code, appErrors.ErrForbidden.Code, appErrors.ErrValidation.Code:
		return "rejected"
	default:
		return "error"
	}
}
