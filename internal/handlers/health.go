package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"card-custody-service/internal/events"
)

// HealthHandler exposes liveness and readiness probes
type HealthHandler struct {
	db        *gorm.DB
	publisher *events.Publisher
	startedAt time.Time
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db *gorm.DB, publisher *events.Publisher) *HealthHandler {
	return &HealthHandler{db: db, publisher: publisher, startedAt: time.Now()}
}

// Health reports liveness
// @Summary Health check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /health [get]
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "healthy",
		"service": "card-custody-service",
		"uptime":  time.Since(h.startedAt).String(),
	})
}

// Ready reports readiness: the database must answer, event publishing is
// best-effort and only reported
// @Summary Readiness check
// @Tags health
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Router /ready [get]
func (h *HealthHandler) Ready(c *gin.Context) {
	sqlDB, err := h.db.DB()
	if err != nil || sqlDB.PingContext(c.Request.Context()) != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "unavailable",
			"checks": gin.H{"database": "down"},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"checks": gin.H{
			"database": "up",
			"events":   h.publisher.IsConnected(),
		},
	})
}
