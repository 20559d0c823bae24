package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockledger/backend/internal/infrastructure/logger"
)

func setupTenantTest(cfg TenantConfig) *gin.Engine {
	gin.SetMode(gin.TestMode)
	engine := gin.New()
	engine.Use(Tenant(cfg))
	engine.POST("/stock/consume", func(c *gin.Context) {
		tenantID, ok := GetTenantID(c)
		if !ok {
			c.JSON(http.StatusOK, gin.H{"tenant": nil})
			return
		}
		c.JSON(http.StatusOK, gin.H{"tenant": tenantID.String()})
	})
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return engine
}

func TestTenant(t *testing.T) {
	t.Run("valid header is stored in context", func(t *testing.T) {
		engine := setupTenantTest(DefaultTenantConfig())
		tenantID := uuid.New()

		req := httptest.NewRequest(http.MethodPost, "/stock/consume", nil)
		req.Header.Set(TenantHeaderKey, tenantID.String())
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), tenantID.String())
	})

	t.Run("missing header is rejected", func(t *testing.T) {
		engine := setupTenantTest(DefaultTenantConfig())

		req := httptest.NewRequest(http.MethodPost, "/stock/consume", nil)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "ERR_TENANT_REQUIRED")
	})

	t.Run("malformed header is rejected", func(t *testing.T) {
		engine := setupTenantTest(DefaultTenantConfig())

		req := httptest.NewRequest(http.MethodPost, "/stock/consume", nil)
		req.Header.Set(TenantHeaderKey, "not-a-uuid")
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "ERR_TENANT_INVALID")
	})

	t.Run("skip paths pass without header", func(t *testing.T) {
		engine := setupTenantTest(DefaultTenantConfig())

		req := httptest.NewRequest(http.MethodGet, "/health", nil)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("tenant reaches the request context", func(t *testing.T) {
		gin.SetMode(gin.TestMode)
		engine := gin.New()
		engine.Use(Tenant(DefaultTenantConfig()))

		var fromCtx string
		engine.POST("/stock/consume", func(c *gin.Context) {
			fromCtx = logger.GetTenantID(c.Request.Context())
			c.Status(http.StatusNoContent)
		})

		tenantID := uuid.New()
		req := httptest.NewRequest(http.MethodPost, "/stock/consume", nil)
		req.Header.Set(TenantHeaderKey, tenantID.String())
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		require.Equal(t, http.StatusNoContent, w.Code)
		assert.Equal(t, tenantID.String(), fromCtx)
	})

	t.Run("optional mode passes without header", func(t *testing.T) {
		engine := setupTenantTest(TenantConfig{Required: false})

		req := httptest.NewRequest(http.MethodPost, "/stock/consume", nil)
		w := httptest.NewRecorder()
		engine.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "null")
	})
}
