package handler

import (
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

type notificationServiceMock struct {
	listResp       []models.Notification
	listErr        error
	markReadErr    error
	lastUnreadOnly bool
	lastID         string
	lastUserID     string
}

func (m *notificationServiceMock) List(ctx context.Context, userID string, unreadOnly bool) ([]models.Notification, error) {
	m.lastUserID = userID
	m.lastUnreadOnly = unreadOnly
	return m.listResp, m.listErr
}

func (m *notificationServiceMock) MarkRead(ctx context.Context, id, userID string) error {
	m.lastID = id
	m.lastUserID = userID
	return m.markReadErr
}

func TestNotificationHandlerList(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &notificationServiceMock{
		listResp: []models.Notification{{ID: "n-1", UserID: "user-1", Type: models.NotifyApproved}},
	}
	h := NewNotificationHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/notifications?unread=true", nil)
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleApplicant})

	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "user-1", mockSvc.lastUserID)
	assert.True(t, mockSvc.lastUnreadOnly)
}

func TestNotificationHandlerListUnauthenticated(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := NewNotificationHandler(&notificationServiceMock{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodGet, "/notifications", nil)
	c.Request = req

	h.List(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestNotificationHandlerMarkRead(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &notificationServiceMock{}
	h := NewNotificationHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/notifications/n-1/read", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "n-1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleApplicant})

	h.MarkRead(c)
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "n-1", mockSvc.lastID)
}

func TestNotificationHandlerMarkReadNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &notificationServiceMock{markReadErr: appErrors.ErrNotFound}
	h := NewNotificationHandler(mockSvc)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/notifications/n-404/read", nil)
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "n-404"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "user-1", Role: models.RoleApplicant})

	h.MarkRead(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}
