package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stockledger/backend/internal/infrastructure/persistence"
	"github.com/stockledger/backend/internal/interfaces/http/dto"
)

// Pinger reports whether a backing service is reachable
type Pinger interface {
	Ping() error
}

// PoolReporter exposes connection pool usage. The readiness endpoint
// includes it when the backing store provides one.
type PoolReporter interface {
	Stats() (persistence.PoolStats, error)
}

// SystemHandler exposes health and readiness endpoints
type SystemHandler struct {
	BaseHandler
	db        Pinger
	startedAt time.Time
	version   string
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(db Pinger, version string) *SystemHandler {
	return &SystemHandler{
		db:        db,
		startedAt: time.Now(),
		version:   version,
	}
}

// RegisterRoutes registers system routes on the given router group
func (h *SystemHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health", h.Health)
	rg.GET("/ready", h.Ready)
}

// Health handles GET /health: liveness plus process metadata
func (h *SystemHandler) Health(c *gin.Context) {
	h.Success(c, gin.H{
		"status":  "ok",
		"version": h.version,
		"uptime":  time.Since(h.startedAt).Round(time.Second).String(),
	})
}

// Ready handles GET /ready: fails when the database is unreachable
func (h *SystemHandler) Ready(c *gin.Context) {
	if h.db == nil {
		h.Success(c, gin.H{"status": "ready"})
		return
	}
	if err := h.db.Ping(); err != nil {
		c.JSON(http.StatusServiceUnavailable, dto.NewErrorResponse("ERR_NOT_READY", "database unreachable"))
		return
	}

	payload := gin.H{"status": "ready"}
	if reporter, ok := h.db.(PoolReporter); ok {
		if stats, err := reporter.Stats(); err == nil {
			payload["db_pool"] = stats
		}
	}
	h.Success(c, payload)
}
