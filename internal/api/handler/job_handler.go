package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/repwise/genjobs-be/internal/api/dto"
	"github.com/repwise/genjobs-be/internal/jobs"
	"github.com/repwise/genjobs-be/internal/scheduler"
)

// jobDTO maps a job record to its API representation
func jobDTO(job *jobs.Job) dto.JobDTO {
	out := dto.JobDTO{
		JobID:     job.JobID,
		UserID:    job.UserID,
		JobType:   job.JobType,
		Payload:   job.Payload,
		Status:    job.Status,
		CreatedAt: job.CreatedAt.Format(time.RFC3339),
		UpdatedAt: job.UpdatedAt.Format(time.RFC3339),
	}
	if job.SchedulerHandle != nil {
		out.SchedulerHandle = *job.SchedulerHandle
	}
	if job.ErrorMessage != nil {
		out.ErrorMessage = *job.ErrorMessage
	}
	return out
}

// SubmitJob handles POST /api/v1/jobs
// Persists a new job and dispatches it to the scheduler
func (h *JobHandler) SubmitJob(c *gin.Context) {
	var req dto.SubmitJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	job, err := h.service.Submit(c.Request.Context(), req.UserID, req.JobType, req.Payload)
	if err != nil {
		var dispatchErr *scheduler.DispatchError
		if errors.As(err, &dispatchErr) && job != nil {
			// The job is persisted but undispatched; a retry re-dispatches it
			c.JSON(http.StatusAccepted, jobDTO(job))
			return
		}

		h.logger.Error("Failed to submit job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to submit job",
		})
		return
	}

	c.JSON(http.StatusCreated, jobDTO(job))
}

// GetJob handles GET /api/v1/jobs/:job_id
// Retrieves detailed information about a specific job
func (h *JobHandler) GetJob(c *gin.Context) {
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		h.logger.Error("Invalid job_id format", slog.String("job_id", jobID), slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	job, err := h.service.GetByID(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobs.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
			})
			return
		}

		h.logger.Error("Failed to get job", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get job",
		})
		return
	}

	c.JSON(http.StatusOK, jobDTO(job))
}

// RetryJob handles POST /api/v1/jobs/:job_id/retry
// Re-dispatches a job. Unknown ids are accepted and ignored: the caller may
// be acting on stale information and there is nothing to repair.
func (h *JobHandler) RetryJob(c *gin.Context) {
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		h.logger.Error("Invalid job_id format", slog.String("job_id", jobID), slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	if err := h.service.Retry(c.Request.Context(), jobID); err != nil {
		var dispatchErr *scheduler.DispatchError
		if errors.As(err, &dispatchErr) {
			// Parked, not lost; another retry re-dispatches it
			c.JSON(http.StatusAccepted, gin.H{
				"job_id":  jobID,
				"status":  jobs.StatusPending,
				"message": "Dispatch failed, job parked for retry",
			})
			return
		}

		h.logger.Error("Failed to retry job", slog.String("job_id", jobID), slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to retry job",
		})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id":  jobID,
		"message": "Retry accepted",
	})
}

// ListJobs handles GET /api/v1/jobs
// Lists jobs with optional filtering and cursor pagination
func (h *JobHandler) ListJobs(c *gin.Context) {
	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = 20
	}

	if req.PageSize > 100 {
		req.PageSize = 100
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		h.logger.Error("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid cursor",
		})
		return
	}

	filter := jobs.Filter{
		UserID:   req.UserID,
		JobType:  req.JobType,
		Status:   req.Status,
		PageSize: req.PageSize,
		Cursor:   cursor,
	}

	page, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		h.logger.Error("Failed to list jobs", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list jobs",
		})
		return
	}

	// the store returns one extra row when more results exist
	hasMore := len(page) > req.PageSize
	if hasMore {
		page = page[:req.PageSize]
	}

	jobResponse := make([]dto.JobDTO, len(page))
	for i := range page {
		jobResponse[i] = jobDTO(&page[i])
	}

	var nextCursor string
	if hasMore {
		last := page[len(page)-1]
		nextCursor = EncodeJobCursor(&jobs.Cursor{
			CreatedAt: last.CreatedAt,
			JobID:     last.JobID,
		})
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       jobResponse,
		NextCursor: nextCursor,
	})
}
