package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/dto"
	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/models"
)

type notificationServiceMock struct {
	broadcastResp *models.Notification
	broadcastErr  error
	inboxResp     []models.Notification
	lastAudience  string
	lastRole      models.UserRole
}

func (m *notificationServiceMock) Broadcast(_ context.Context, _, _, _, audience string, _ []string, _ string) (*models.Notification, error) {
	m.lastAudience = audience
	return m.broadcastResp, m.broadcastErr
}

func (m *notificationServiceMock) Inbox(_ context.Context, _ string, role models.UserRole, _ int) ([]models.Notification, error) {
	m.lastRole = role
	return m.inboxResp, nil
}

func (m *notificationServiceMock) Deliveries(context.Context, string, int) ([]models.NotificationDelivery, error) {
	return nil, nil
}

func TestNotificationHandlerBroadcast(t *testing.T) {
	mockSvc := &notificationServiceMock{broadcastResp: &models.Notification{ID: "n-1"}}
	handler := NewNotificationHandler(mockSvc)

	body := dto.BroadcastRequest{Title: "Service change", Message: "Route 5 suspended", TargetAudience: "students"}
	c, w := grievanceTestContext(t, http.MethodPost, "/notifications/broadcast", body, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})

	handler.Broadcast(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "students", mockSvc.lastAudience)
}

func TestNotificationHandlerBroadcastSpecificNeedsUsers(t *testing.T) {
	handler := NewNotificationHandler(&notificationServiceMock{})

	body := dto.BroadcastRequest{Title: "Heads up", Message: "See office", TargetAudience: "specific"}
	c, w := grievanceTestContext(t, http.MethodPost, "/notifications/broadcast", body, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})

	handler.Broadcast(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestNotificationHandlerInboxUsesClaims(t *testing.T) {
	mockSvc := &notificationServiceMock{inboxResp: []models.Notification{{ID: "n-1"}}}
	handler := NewNotificationHandler(mockSvc)

	c, w := grievanceTestContext(t, http.MethodGet, "/notifications?limit=10", nil, &models.JWTClaims{UserID: "stu-1", Role: models.RoleStudent})

	handler.Inbox(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.RoleStudent, mockSvc.lastRole)
}

func TestNotificationHandlerInboxRequiresAuth(t *testing.T) {
	handler := NewNotificationHandler(&notificationServiceMock{})

	c, w := grievanceTestContext(t, http.MethodGet, "/notifications", nil, nil)

	handler.Inbox(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
