package handler

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/verichain/verichain-api/internal/models"
	"github.com/verichain/verichain-api/internal/service"
	"github.com/verichain/verichain-api/pkg/analysis"
	appErrors "github.com/verichain/verichain-api/pkg/errors"
	"github.com/verichain/verichain-api/pkg/response"
)

type applicationService interface {
	Submit(ctx context.Context, userID string, req service.SubmitApplicationRequest) (*models.Application, error)
	Resubmit(ctx context.Context, previousID, userID string, req service.SubmitApplicationRequest) (*models.Application, error)
	Withdraw(ctx context.Context, applicationID, actorID string, isAdmin bool) (*models.Application, error)
	Appeal(ctx context.Context, applicationID, userID, grounds string) error
	Get(ctx context.Context, applicationID, requesterID string, role models.UserRole) (*models.Application, error)
	List(ctx context.Context, filter models.ApplicationFilter, requesterID string, role models.UserRole) ([]models.Application, int, error)
	RecordAnalysis(ctx context.Context, applicationID string, req service.RecordAnalysisRequest) (*models.AIAnalysisResult, models.PreScreenOutcome, error)
	GetAnalysis(ctx context.Context, applicationID string) (*models.AIAnalysisResult, error)
	GetRejection(ctx context.Context, applicationID string) (*models.RejectionRecord, error)
	GetCertificate(ctx context.Context, applicationID string) (*models.NFTCertificate, *models.CertificateIssuanceRequest, error)
}

// ApplicationHandler wires HTTP endpoints to the application service.
type ApplicationHandler struct {
	service       applicationService
	webhookSecret string
}

// NewApplicationHandler creates a new handler. webhookSecret authenticates
// the analysis collaborator's result deliveries.
func NewApplicationHandler(svc applicationService, webhookSecret string) *ApplicationHandler {
	return &ApplicationHandler{service: svc, webhookSecret: webhookSecret}
}

// Submit godoc
// @Summary Submit a credential application
// @Description Create an application and hand its documents to automated analysis
// @Tags Applications
// @Accept json
// @Produce json
// @Param payload body service.SubmitApplicationRequest true "Application payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /applications [post]
func (h *ApplicationHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.SubmitApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid application payload"))
		return
	}

	app, err := h.service.Submit(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, app)
}

// List godoc
// @Summary List applications
// @Description List applications scoped to the requester's role
// @Tags Applications
// @Produce json
// @Param status query string false "Filter by status"
// @Param search query string false "Search title or institution"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /applications [get]
func (h *ApplicationHandler) List(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))
	filter := models.ApplicationFilter{
		Status:   models.ApplicationStatus(c.Query("status")),
		Search:   c.Query("search"),
		Page:     page,
		PageSize: pageSize,
	}
	if filter.Status != "" && !filter.Status.Valid() {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unknown status filter"))
		return
	}

	apps, total, err := h.service.List(c.Request.Context(), filter, claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}

	pagination := &models.Pagination{
		Page:       filter.Page,
		PageSize:   filter.PageSize,
		TotalCount: total,
	}
	response.JSON(c, http.StatusOK, apps, pagination)
}

// Get godoc
// @Summary Get one application
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /applications/{id} [get]
func (h *ApplicationHandler) Get(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	app, err := h.service.Get(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, app, nil)
}

// Withdraw godoc
// @Summary Withdraw an application
// @Description Take a non-terminal application out of the pipeline
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /applications/{id}/withdraw [post]
func (h *ApplicationHandler) Withdraw(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	app, err := h.service.Withdraw(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role == models.RoleAdmin)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, app, nil)
}

// Resubmit godoc
// @Summary Resubmit a rejected application
// @Description Create a fresh application superseding a rejected or flagged one
// @Tags Applications
// @Accept json
// @Produce json
// @Param id path string true "Previous application ID"
// @Param payload body service.SubmitApplicationRequest true "Application payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /applications/{id}/resubmit [post]
func (h *ApplicationHandler) Resubmit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.SubmitApplicationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid application payload"))
		return
	}

	app, err := h.service.Resubmit(c.Request.Context(), c.Param("id"), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, app)
}

// Appeal godoc
// @Summary Appeal a rejection
// @Tags Applications
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body map[string]string true "Appeal grounds"
// @Success 202 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /applications/{id}/appeal [post]
func (h *ApplicationHandler) Appeal(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var payload struct {
		Grounds string `json:"grounds" binding:"required"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "appeal grounds required"))
		return
	}

	if err := h.service.Appeal(c.Request.Context(), c.Param("id"), claims.UserID, payload.Grounds); err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusAccepted, gin.H{"status": "appeal recorded"}, nil)
}

// RecordAnalysis godoc
// @Summary Analysis result webhook
// @Description Receive the analysis collaborator's scoring result
// @Tags Applications
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param X-Signature header string true "HMAC-SHA256 of the body"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /applications/{id}/analysis [post]
func (h *ApplicationHandler) RecordAnalysis(c *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, 1<<20))
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "unreadable payload"))
		return
	}
	if !analysis.VerifySignature(h.webhookSecret, c.GetHeader("X-Signature"), body) {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "bad webhook signature"))
		return
	}

	var req service.RecordAnalysisRequest
	if err := json.Unmarshal(body, &req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid analysis payload"))
		return
	}

	result, outcome, err := h.service.RecordAnalysis(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, gin.H{"analysis": result, "outcome": outcome}, nil)
}

// GetAnalysis godoc
// @Summary Latest analysis result
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Router /applications/{id}/analysis [get]
func (h *ApplicationHandler) GetAnalysis(c *gin.Context) {
	result, err := h.service.GetAnalysis(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// GetRejection godoc
// @Summary Rejection record
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /applications/{id}/rejection [get]
func (h *ApplicationHandler) GetRejection(c *gin.Context) {
	record, err := h.service.GetRejection(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// GetCertificate godoc
// @Summary Certificate or issuance state
// @Tags Applications
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /applications/{id}/certificate [get]
func (h *ApplicationHandler) GetCertificate(c *gin.Context) {
	cert, request, err := h.service.GetCertificate(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if cert != nil {
		response.JSON(c, http.StatusOK, cert, nil)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"issuance": request}, nil)
}
