package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/middleware"
	"github.com/VenkatagirirajuJicate/tms-admin-api/internal/models"
)

// claimsFromContext returns the JWT claims stored by the auth middleware,
// or nil when the request is unauthenticated.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, _ := value.(*models.JWTClaims)
	return claims
}
