package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/verichain/verichain-api/internal/middleware"
	"github.com/verichain/verichain-api/internal/models"
)

// claimsFromContext unwraps the JWT claims the auth middleware stored on the
// request, or nil when the route ran unauthenticated.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, ok := c.Get(middleware.ContextUserKey)
	if !ok {
		return nil
	}
	claims, _ := value.(*models.JWTClaims)
	return claims
}
