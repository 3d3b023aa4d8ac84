package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func roleRouter(allowed ...string) *gin.Engine {
	keys := map[string]string{
		"admin-key-0001":  RoleAdmin,
		"broker-key-0002": RoleBroker,
	}
	router := gin.New()
	router.GET("/guarded", RequireRole(keys, allowed...), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"actor": actorID(c)})
	})
	return router
}

func request(router *gin.Engine, apiKey string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/guarded", nil)
	if apiKey != "" {
		req.Header.Set(apiKeyHeader, apiKey)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestRequireRoleMissingKey(t *testing.T) {
	rec := request(roleRouter(RoleAdmin), "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRoleUnknownKey(t *testing.T) {
	rec := request(roleRouter(RoleAdmin), "nope")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireRoleWrongRole(t *testing.T) {
	rec := request(roleRouter(RoleAdmin), "broker-key-0002")
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequireRoleAllowed(t *testing.T) {
	rec := request(roleRouter(RoleAdmin, RoleBroker), "broker-key-0002")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "broker:0002")
	assert.NotContains(t, rec.Body.String(), "broker-key-0002", "full key must not leak")
}
