package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/verichain/verichain-api/internal/models"
	"github.com/verichain/verichain-api/internal/service"
	appErrors "github.com/verichain/verichain-api/pkg/errors"
	"github.com/verichain/verichain-api/pkg/response"
)

type registryService interface {
	Register(ctx context.Context, req service.RegisterValidatorRequest) (*models.Validator, error)
	Profile(ctx context.Context, address string) (*service.ValidatorProfile, error)
	List(ctx context.Context) ([]models.Validator, error)
	SetStake(ctx context.Context, address string, stake float64) error
	SetSuspended(ctx context.Context, address string, suspended bool) error
}

// ValidatorHandler wires HTTP endpoints to the validator registry.
type ValidatorHandler struct {
	service registryService
}

// NewValidatorHandler creates a new handler.
func NewValidatorHandler(svc registryService) *ValidatorHandler {
	return &ValidatorHandler{service: svc}
}

// Register godoc
// @Summary Register a validator
// @Tags Validators
// @Accept json
// @Produce json
// @Param payload body service.RegisterValidatorRequest true "Validator payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /validators [post]
func (h *ValidatorHandler) Register(c *gin.Context) {
	var req service.RegisterValidatorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid validator payload"))
		return
	}

	v, err := h.service.Register(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, v)
}

// List godoc
// @Summary List validators
// @Tags Validators
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /validators [get]
func (h *ValidatorHandler) List(c *gin.Context) {
	validators, err := h.service.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, validators, nil)
}

// Get godoc
// @Summary Get one validator with its vote count
// @Tags Validators
// @Produce json
// @Param address path string true "Wallet address"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /validators/{address} [get]
func (h *ValidatorHandler) Get(c *gin.Context) {
	v, err := h.service.Profile(c.Request.Context(), c.Param("address"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, v, nil)
}

// SetStake godoc
// @Summary Update validator stake
// @Tags Validators
// @Accept json
// @Produce json
// @Param address path string true "Wallet address"
// @Param payload body map[string]float64 true "Stake amount"
// @Success 204 {object} response.Envelope
// @Router /admin/validators/{address}/stake [post]
func (h *ValidatorHandler) SetStake(c *gin.Context) {
	var payload struct {
		StakeAmount float64 `json:"stake_amount" binding:"gte=0"`
	}
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid stake payload"))
		return
	}

	if err := h.service.SetStake(c.Request.Context(), c.Param("address"), payload.StakeAmount); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Suspend godoc
// @Summary Suspend a validator
// @Tags Validators
// @Produce json
// @Param address path string true "Wallet address"
// @Success 204 {object} response.Envelope
// @Router /admin/validators/{address}/suspend [post]
func (h *ValidatorHandler) Suspend(c *gin.Context) {
	if err := h.service.SetSuspended(c.Request.Context(), c.Param("address"), true); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Reinstate godoc
// @Summary Reinstate a suspended validator
// @Tags Validators
// @Produce json
// @Param address path string true "Wallet address"
// @Success 204 {object} response.Envelope
// @Router /admin/validators/{address}/reinstate [post]
func (h *ValidatorHandler) Reinstate(c *gin.Context) {
	if err := h.service.SetSuspended(c.Request.Context(), c.Param("address"), false); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
