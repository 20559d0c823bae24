package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/stockledger/backend/internal/domain/shared"
)

// IdempotencyHeaderKey is the header carrying the client's request key
const IdempotencyHeaderKey = "Idempotency-Key"

// Idempotency rejects replays of mutating requests that carry an
// Idempotency-Key header. The key is claimed atomically before the handler
// runs, so two racing retries cannot both execute; a replay within the TTL
// gets 409 with DUPLICATE_REQUEST. Requests without the header pass through.
func Idempotency(store shared.IdempotencyStore, cfg shared.IdempotencyConfig, logger *zap.Logger) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}

	return func(c *gin.Context) {
		if !cfg.Enabled || store == nil {
			c.Next()
			return
		}
		if c.Request.Method == http.MethodGet || c.Request.Method == http.MethodHead {
			c.Next()
			return
		}

		key := c.GetHeader(IdempotencyHeaderKey)
		if key == "" {
			c.Next()
			return
		}

		// Scope the key per tenant so tenants cannot collide.
		if tenantID, ok := GetTenantID(c); ok {
			key = tenantID.String() + ":" + key
		}

		marked, err := store.MarkProcessed(c.Request.Context(), key, cfg.TTL)
		if err != nil {
			// The store being down must not block stock operations.
			logger.Warn("idempotency store unavailable, allowing request", zap.Error(err))
			c.Next()
			return
		}
		if !marked {
			c.AbortWithStatusJSON(http.StatusConflict, gin.H{
				"success": false,
				"error": gin.H{
					"code":    "ERR_DUPLICATE_REQUEST",
					"message": "Request with this idempotency key was already processed",
				},
			})
			return
		}

		c.Next()
	}
}
