package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/verichain/verichain-api/internal/service"
)

// Metrics records per-request counters and latency histograms. Route
// templates (c.FullPath) are preferred over raw URLs to keep label
// cardinality bounded.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	if metricsSvc == nil {
		return func(c *gin.Context) { c.Next() }
	}

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
