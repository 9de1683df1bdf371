package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/verichain/verichain-api/internal/models"
)

func rbacTestRouter(claims *models.JWTClaims, mw gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	if claims != nil {
		r.Use(func(c *gin.Context) {
			c.Set(ContextUserKey, claims)
			c.Next()
		})
	}
	r.Use(mw)
	r.GET("/protected", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestRequireRolesAllowsMatchingRole(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleValidator}
	r := rbacTestRouter(claims, RequireRoles(models.RoleValidator, models.RoleAdmin))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
}

func TestRequireRolesRejectsOtherRole(t *testing.T) {
	claims := &models.JWTClaims{UserID: "u1", Role: models.RoleApplicant}
	r := rbacTestRouter(claims, RequireRoles(models.RoleAdmin))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequireRolesWithoutClaims(t *testing.T) {
	r := rbacTestRouter(nil, RequireRoles(models.RoleAdmin))

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireWallet(t *testing.T) {
	withWallet := &models.JWTClaims{UserID: "u1", Role: models.RoleValidator, WalletAddress: "0xvalidator001"}
	r := rbacTestRouter(withWallet, RequireWallet())

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/protected", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	withoutWallet := &models.JWTClaims{UserID: "u2", Role: models.RoleValidator}
	r = rbacTestRouter(withoutWallet, RequireWallet())

	w = httptest.NewRecorder()
	req, _ = http.NewRequest(http.MethodGet, "/protected", nil)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusForbidden, w.Code)
}
