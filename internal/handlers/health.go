package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/innovasus/innovasus/internal/models"
	"github.com/innovasus/innovasus/internal/services"
)

// HealthHandler reports the state of the service's subsystems.
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler {
	return &HealthHandler{}
}

// CheckHealth returns the health status of all subsystems.
// GET /health
func (h *HealthHandler) CheckHealth(c *gin.Context) {
	overall := "healthy"

	// Database check
	dbStatus := "ok"
	sqlDB, err := models.GetDB().DB()
	if err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
	} else if err := sqlDB.Ping(); err != nil {
		dbStatus = "error: " + err.Error()
		overall = "unhealthy"
	}

	// Queue mode
	taskQueue := services.GetTaskQueue()
	queueMode := "sync"
	if taskQueue != nil && taskQueue.IsAsync() {
		queueMode = "async (Redis)"
	}

	// Requests awaiting review
	var pendingCount int64
	models.GetDB().Model(&models.AccessRequest{}).
		Where("status = ?", models.RequestPending).
		Count(&pendingCount)

	c.JSON(200, gin.H{
		"status":  overall,
		"service": "innovasus",
		"components": gin.H{
			"database":         dbStatus,
			"queue_mode":       queueMode,
			"pending_requests": pendingCount,
		},
	})
}
