package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/verichain/verichain-api/internal/service"
)

// MetricsHandler serves the Prometheus scrape endpoint and the health probe.
type MetricsHandler struct {
	metrics *service.MetricsService
}

func NewMetricsHandler(metrics *service.MetricsService) *MetricsHandler {
	return &MetricsHandler{metrics: metrics}
}

// Prometheus hands the request to the promhttp handler. Returns 503 when
// metrics collection is disabled so scrapers back off instead of parsing an
// empty body.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health is the liveness/readiness probe target.
func (h *MetricsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "verichain-api"})
}
