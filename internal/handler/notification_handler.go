package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/dto"
	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/models"
	appErrors "github.com/VenkatagirirajuJicate/tms-admin-api/pkg/errors"
	"github.com/VenkatagirirajuJicate/tms-admin-api/pkg/response"
)

type notificationAPI interface {
	Broadcast(ctx context.Context, title, message, severity, audience string, specificUsers []string, createdBy string) (*models.Notification, error)
	Inbox(ctx context.Context, userID string, role models.UserRole, limit int) ([]models.Notification, error)
	Deliveries(ctx context.Context, event string, limit int) ([]models.NotificationDelivery, error)
}

// NotificationHandler exposes the notification inbox and admin broadcast.
type NotificationHandler struct {
	notifications notificationAPI
}

// NewNotificationHandler constructs the handler.
func NewNotificationHandler(notifications notificationAPI) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// Broadcast godoc
// @Summary Broadcast an announcement
// @Tags Notifications
// @Accept json
// @Produce json
// @Param payload body dto.BroadcastRequest true "Broadcast payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /notifications/broadcast [post]
func (h *NotificationHandler) Broadcast(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.BroadcastRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid broadcast payload"))
		return
	}
	if req.TargetAudience == "specific" && len(req.SpecificUsers) == 0 {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "specific audience requires specific_users"))
		return
	}

	notification, err := h.notifications.Broadcast(c.Request.Context(), req.Title, req.Message, req.Type, req.TargetAudience, req.SpecificUsers, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, dto.BroadcastResponse{
		NotificationID: notification.ID,
		Recipients:     len(req.SpecificUsers),
		Delivered:      1,
	})
}

// Inbox godoc
// @Summary List notifications for the current user
// @Tags Notifications
// @Produce json
// @Param limit query int false "Limit"
// @Success 200 {object} response.Envelope
// @Router /notifications [get]
func (h *NotificationHandler) Inbox(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	items, err := h.notifications.Inbox(c.Request.Context(), claims.UserID, claims.Role, limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Deliveries godoc
// @Summary List channel delivery records for an event type
// @Tags Notifications
// @Produce json
// @Param event query string false "Event type"
// @Param limit query int false "Limit"
// @Success 200 {object} response.Envelope
// @Router /notifications/deliveries [get]
func (h *NotificationHandler) Deliveries(c *gin.Context) {
	limit, _ := strconv.Atoi(c.Query("limit"))
	items, err := h.notifications.Deliveries(c.Request.Context(), c.Query("event"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}
