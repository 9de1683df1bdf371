package handler

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verichain/verichain-api/internal/middleware"
	"github.com/verichain/verichain-api/internal/models"
	"github.com/verichain/verichain-api/internal/service"
	appErrors "github.com/verichain/verichain-api/pkg/errors"
)

type voteServiceMock struct {
	submitVote   *models.Vote
	submitTally  *models.ConsensusTally
	submitErr    error
	tallyResp    *models.ConsensusTally
	tallyErr     error
	listResp     []models.Vote
	listErr      error
	submitCalled bool
	lastAddress  string
	lastRequest  service.SubmitVoteRequest
}

func (m *voteServiceMock) Submit(ctx context.Context, applicationID, validatorAddress string, req service.SubmitVoteRequest) (*models.Vote, *models.ConsensusTally, error) {
	m.submitCalled = true
	m.lastAddress = validatorAddress
	m.lastRequest = req
	return m.submitVote, m.submitTally, m.submitErr
}

func (m *voteServiceMock) Tally(ctx context.Context, applicationID string) (*models.ConsensusTally, error) {
	return m.tallyResp, m.tallyErr
}

func (m *voteServiceMock) List(ctx context.Context, applicationID string) ([]models.Vote, error) {
	return m.listResp, m.listErr
}

func validatorClaims() *models.JWTClaims {
	return &models.JWTClaims{UserID: "user-1", Role: models.RoleValidator, WalletAddress: "0xvalidator001"}
}

func TestVoteHandlerSubmit(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &voteServiceMock{
		submitVote:  &models.Vote{ID: "vote-1", ValidatorAddress: "0xvalidator001", Value: models.VoteApprove, Weight: 2},
		submitTally: &models.ConsensusTally{ApplicationID: "app-1", DistinctVoters: 1, ApproveWeight: 2, TotalWeight: 2},
	}
	h := NewVoteHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/applications/app-1/votes", bytes.NewBufferString(`{"vote":"approve","reasoning":"transcript checks out"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "app-1"}}
	c.Set(middleware.ContextUserKey, validatorClaims())

	h.Submit(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.True(t, mockSvc.submitCalled)
	assert.Equal(t, "0xvalidator001", mockSvc.lastAddress)
	assert.Equal(t, models.VoteApprove, mockSvc.lastRequest.Value)
}

func TestVoteHandlerSubmitWithoutWallet(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &voteServiceMock{}
	h := NewVoteHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/applications/app-1/votes", bytes.NewBufferString(`{"vote":"approve"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleValidator})

	h.Submit(c)
	require.Equal(t, http.StatusForbidden, w.Code)
	assert.False(t, mockSvc.submitCalled)
}

func TestVoteHandlerSubmitUnauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewVoteHandler(&voteServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/applications/app-1/votes", bytes.NewBufferString(`{"vote":"approve"}`))
	c.Request = req

	h.Submit(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestVoteHandlerSubmitDuplicate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &voteServiceMock{submitErr: appErrors.ErrDuplicate}
	h := NewVoteHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/applications/app-1/votes", bytes.NewBufferString(`{"vote":"approve"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "app-1"}}
	c.Set(middleware.ContextUserKey, validatorClaims())

	h.Submit(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestVoteHandlerSubmitMalformedBody(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewVoteHandler(&voteServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/applications/app-1/votes", bytes.NewBufferString(`{"vote":`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, validatorClaims())

	h.Submit(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestVoteHandlerTally(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &voteServiceMock{
		tallyResp: &models.ConsensusTally{ApplicationID: "app-1", DistinctVoters: 3, ApproveWeight: 4, TotalWeight: 5},
	}
	h := NewVoteHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/applications/app-1/tally", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "app-1"}}

	h.Tally(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "approve_weight")
}
