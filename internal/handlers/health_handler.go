package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"tokenbridge/internal/db"
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	startedAt time.Time
}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{startedAt: time.Now()}
}

// Health handles GET /health.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"uptime": time.Since(h.startedAt).String(),
	})
}

// Ready handles GET /ready. Reports degraded when persistence is configured
// but unreachable.
func (h *HealthHandler) Ready(c *gin.Context) {
	status := http.StatusOK
	dbStatus := "disabled"
	if db.DB != nil {
		dbStatus = "ok"
		if sqlDB, err := db.DB.DB(); err != nil || sqlDB.Ping() != nil {
			dbStatus = "unreachable"
			status = http.StatusServiceUnavailable
		}
	}
	c.JSON(status, gin.H{
		"status":   "ok",
		"database": dbStatus,
	})
}
