package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/harvest/models"
)

// Version is reported by the health endpoint.
const Version = "0.1.0"

// Health returns a handler for GET /api/v1/health.
//
// Reports queue utilisation and degrades status when the queue is > 80% full.
func Health(q JobQueue, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		depth, size := q.QueueDepth(), q.QueueSize()

		status := "healthy"
		if size > 0 && depth > int(float64(size)*0.8) {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status:     status,
			Uptime:     time.Since(startTime).Round(time.Second).String(),
			QueueDepth: depth,
			QueueSize:  size,
			Version:    Version,
		})
	}
}
