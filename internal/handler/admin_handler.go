package handler

import (
	"context"
	"net/http"
	"time"

	"prakriti-service/internal/logger"
	"prakriti-service/internal/service"

	"github.com/gin-gonic/gin"
)

const healthTimeout = 2 * time.Second

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type AdminHandler struct {
	adminService *service.AdminService
	db           Pinger
	log          *logger.Logger
}

func NewAdminHandler(adminService *service.AdminService, db Pinger, log *logger.Logger) *AdminHandler {
	return &AdminHandler{adminService: adminService, db: db, log: log}
}

// Health reports 503 when the database does not answer a ping.
func (h *AdminHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	if err := h.db.PingContext(ctx); err != nil {
		h.log.WithError(err).Warn("health check: database unreachable")
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status":   "unhealthy",
			"service":  "prakriti-service",
			"database": "down",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status":   "healthy",
		"service":  "prakriti-service",
		"database": "up",
	})
}

// Handles GET /admin/outbox/stats
func (h *AdminHandler) GetOutboxStats(c *gin.Context) {
	actor, ok := mustActor(c)
	if !ok {
		return
	}

	stats, err := h.adminService.OutboxStats(c.Request.Context(), actor)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"outbox": stats})
}
