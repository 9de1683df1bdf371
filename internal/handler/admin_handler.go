package handler

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/verichain/verichain-api/internal/models"
	"github.com/verichain/verichain-api/internal/service"
	appErrors "github.com/verichain/verichain-api/pkg/errors"
	"github.com/verichain/verichain-api/pkg/response"
)

type adminApplicationService interface {
	Unflag(ctx context.Context, applicationID, adminID string) (*models.Application, error)
}

type exportService interface {
	Generate(ctx context.Context, applicationID string, format service.ExportFormat) (*service.ExportResult, error)
	Download(token string) (*os.File, error)
}

type metricsSnapshotter interface {
	Snapshot() models.SystemMetrics
}

// AdminHandler wires administrative overrides and exports.
type AdminHandler struct {
	applications adminApplicationService
	exports      exportService
	metrics      metricsSnapshotter
}

// NewAdminHandler creates a new handler.
func NewAdminHandler(applications adminApplicationService, exports exportService, metrics metricsSnapshotter) *AdminHandler {
	return &AdminHandler{applications: applications, exports: exports, metrics: metrics}
}

// Unflag godoc
// @Summary Clear a flag after manual review
// @Description Return a flagged application to the validator pool
// @Tags Admin
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/applications/{id}/unflag [post]
func (h *AdminHandler) Unflag(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	app, err := h.applications.Unflag(c.Request.Context(), c.Param("id"), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, app, nil)
}

// Export godoc
// @Summary Export an application's audit package
// @Tags Admin
// @Produce json
// @Param id path string true "Application ID"
// @Param format query string false "csv or pdf" default(csv)
// @Success 200 {object} response.Envelope
// @Router /admin/applications/{id}/export [get]
func (h *AdminHandler) Export(c *gin.Context) {
	format := service.ExportFormat(c.DefaultQuery("format", "csv"))
	result, err := h.exports.Generate(c.Request.Context(), c.Param("id"), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Download godoc
// @Summary Download a generated export
// @Description Stream an audit package referenced by a signed token
// @Tags Admin
// @Produce octet-stream
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /exports/download [get]
func (h *AdminHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token required"))
		return
	}

	file, err := h.exports.Download(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	c.Header("Content-Disposition", `attachment; filename="`+filepath.Base(file.Name())+`"`)
	c.Header("Content-Type", "application/octet-stream")
	c.Status(http.StatusOK)
	_, _ = io.Copy(c.Writer, file)
}

// Analytics godoc
// @Summary Aggregated system metrics snapshot
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/analytics [get]
func (h *AdminHandler) Analytics(c *gin.Context) {
	response.JSON(c, http.StatusOK, h.metrics.Snapshot(), nil)
}
