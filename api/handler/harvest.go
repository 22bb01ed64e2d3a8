package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/jobs"
	"github.com/use-agent/harvest/models"
)

// JobQueue is the part of jobs.Runner the handlers need.
type JobQueue interface {
	Submit(req models.HarvestRequest) (*jobs.Job, error)
	Get(id string) (*jobs.Job, bool)
	QueueDepth() int
	QueueSize() int
}

// PostHarvest returns a handler for POST /api/v1/harvest.
// The job runs in the background; the response carries its ID.
func PostHarvest(q JobQueue) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.HarvestRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.HarvestResponse{
				Status: models.JobFailed,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}
		if err := config.ValidateSearchURL(req.SearchURL); err != nil {
			c.JSON(http.StatusBadRequest, models.HarvestResponse{
				Status: models.JobFailed,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}

		job, err := q.Submit(req)
		if err != nil {
			c.JSON(statusFor(err), models.HarvestResponse{
				Status: models.JobFailed,
				Error:  models.DetailOf(err),
			})
			return
		}

		c.JSON(http.StatusAccepted, models.HarvestResponse{
			ID:     job.ID(),
			Status: job.Status(),
		})
	}
}

// GetHarvest returns a handler for GET /api/v1/harvest/:id.
// ?records=false omits the record list.
func GetHarvest(q JobQueue) gin.HandlerFunc {
	return func(c *gin.Context) {
		job, ok := q.Get(c.Param("id"))
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{
				"error": models.ErrorDetail{
					Code:    models.ErrCodeNotFound,
					Message: "harvest job not found",
				},
			})
			return
		}

		withRecords, err := strconv.ParseBool(c.DefaultQuery("records", "true"))
		if err != nil {
			withRecords = true
		}
		c.JSON(http.StatusOK, job.Snapshot(withRecords))
	}
}

// statusFor maps an error code to an HTTP status.
func statusFor(err error) int {
	var he *models.HarvestError
	if !errors.As(err, &he) {
		return http.StatusInternalServerError
	}
	switch he.Code {
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest
	case models.ErrCodeNotFound:
		return http.StatusNotFound
	case models.ErrCodeQueueFull:
		return http.StatusServiceUnavailable
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
