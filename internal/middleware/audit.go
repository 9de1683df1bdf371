package middleware

import (
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/verichain/verichain-api/internal/models"
	"github.com/verichain/verichain-api/internal/repository"
)

// Audit records an analytics event after successful mutating requests.
// eventType names the operation; the application id is read from the route.
func Audit(repo *repository.EventRepository, eventType string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}

		var userID *string
		if claims, ok := c.Get(ContextUserKey); ok {
			user := claims.(*models.JWTClaims)
			userID = &user.UserID
		}
		var applicationID *string
		if id := c.Param("id"); id != "" {
			applicationID = &id
		}

		body, _ := json.Marshal(map[string]interface{}{
			"path":    c.FullPath(),
			"method":  c.Request.Method,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Milliseconds(),
			"ip":      c.ClientIP(),
		})

		_ = repo.Insert(c.Request.Context(), &models.AnalyticsEvent{
			EventType:     eventType,
			ApplicationID: applicationID,
			UserID:        userID,
			EventData:     body,
		})
	}
}
