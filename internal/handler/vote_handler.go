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

type voteService interface {
	Submit(ctx context.Context, applicationID, validatorAddress string, req service.SubmitVoteRequest) (*models.Vote, *models.ConsensusTally, error)
	Tally(ctx context.Context, applicationID string) (*models.ConsensusTally, error)
	List(ctx context.Context, applicationID string) ([]models.Vote, error)
}

// VoteHandler wires HTTP endpoints to the vote aggregator.
type VoteHandler struct {
	service voteService
}

// NewVoteHandler creates a new handler.
func NewVoteHandler(svc voteService) *VoteHandler {
	return &VoteHandler{service: svc}
}

// Submit godoc
// @Summary Cast a validator vote
// @Description Append a weighted vote and re-evaluate consensus
// @Tags Votes
// @Accept json
// @Produce json
// @Param id path string true "Application ID"
// @Param payload body service.SubmitVoteRequest true "Vote payload"
// @Success 201 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /applications/{id}/votes [post]
func (h *VoteHandler) Submit(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if claims.WalletAddress == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "account has no validator wallet"))
		return
	}

	var req service.SubmitVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid vote payload"))
		return
	}

	vote, tally, err := h.service.Submit(c.Request.Context(), c.Param("id"), claims.WalletAddress, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusCreated, gin.H{"vote": vote, "tally": tally}, nil)
}

// List godoc
// @Summary List votes for an application
// @Tags Votes
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Router /applications/{id}/votes [get]
func (h *VoteHandler) List(c *gin.Context) {
	votes, err := h.service.List(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, votes, nil)
}

// Tally godoc
// @Summary Current consensus tally
// @Description Recompute the weighted tally from the vote set
// @Tags Votes
// @Produce json
// @Param id path string true "Application ID"
// @Success 200 {object} response.Envelope
// @Router /applications/{id}/tally [get]
func (h *VoteHandler) Tally(c *gin.Context) {
	tally, err := h.service.Tally(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, tally, nil)
}
