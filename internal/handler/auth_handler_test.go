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
	appErrors "github.com/verichain/verichain-api/pkg/errors"
)

type authServiceMock struct {
	loginResp    *models.LoginResponse
	loginErr     error
	refreshResp  *models.RefreshTokenResponse
	refreshErr   error
	logoutErr    error
	loginCalled  bool
	logoutCalled bool
	lastLogin    models.LoginRequest
	lastUserID   string
}

func (m *authServiceMock) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	m.loginCalled = true
	m.lastLogin = req
	return m.loginResp, m.loginErr
}

func (m *authServiceMock) RefreshToken(ctx context.Context, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	return m.refreshResp, m.refreshErr
}

func (m *authServiceMock) Logout(ctx context.Context, refreshToken, userID string) error {
	m.logoutCalled = true
	m.lastUserID = userID
	return m.logoutErr
}

func TestAuthHandlerLogin(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &authServiceMock{
		loginResp: &models.LoginResponse{AccessToken: "token", ExpiresIn: 900},
	}
	h := NewAuthHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(`{"email":"alice@example.com","password":"secret123"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	h.Login(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, mockSvc.loginCalled)
	assert.Equal(t, "alice@example.com", mockSvc.lastLogin.Email)
}

func TestAuthHandlerLoginInvalidPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &authServiceMock{}
	h := NewAuthHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(`{"email":`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	h.Login(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.False(t, mockSvc.loginCalled)
}

func TestAuthHandlerLoginBadCredentials(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &authServiceMock{loginErr: appErrors.ErrInvalidCredentials}
	h := NewAuthHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(`{"email":"alice@example.com","password":"wrong"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req

	h.Login(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandlerLogout(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &authServiceMock{}
	h := NewAuthHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/auth/logout", bytes.NewBufferString(`{"refresh_token":"abc"}`))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleApplicant})

	h.Logout(c)
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.True(t, mockSvc.logoutCalled)
	assert.Equal(t, "user-1", mockSvc.lastUserID)
}

func TestAuthHandlerLogoutUnauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewAuthHandler(&authServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/auth/logout", bytes.NewBufferString(`{"refresh_token":"abc"}`))
	c.Request = req

	h.Logout(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
