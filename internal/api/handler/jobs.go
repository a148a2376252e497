package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	mw "github.com/replyforge/replyforge/internal/api/middleware"
	"github.com/replyforge/replyforge/internal/api/response"
	"github.com/replyforge/replyforge/internal/cache"
	"github.com/replyforge/replyforge/internal/store"
	"github.com/replyforge/replyforge/pkg/models"
)

// jobCacheTTL bounds how long terminal job snapshots live in Redis.
const jobCacheTTL = 30 * time.Minute

// NewSubmitJobHandler returns an http.HandlerFunc for POST /api/v1/jobs.
// The job is queued, not executed: the response is 202 and clients poll
// GET /api/v1/jobs/{jobID} until the worker finishes it.
func NewSubmitJobHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		var req struct {
			JobType string         `json:"job_type"`
			Payload map[string]any `json:"payload"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid JSON body", nil)
			return
		}

		if req.JobType == "" {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "job_type is required", nil)
			return
		}
		if !models.ValidJobType(req.JobType) {
			response.Error(w, http.StatusBadRequest, "INVALID_JOB_TYPE",
				"Unrecognized job_type", map[string]any{"recognized": models.JobTypes})
			return
		}

		if req.Payload == nil {
			req.Payload = map[string]any{}
		}

		now := time.Now().UTC()
		job := &models.Job{
			ID:        uuid.New(),
			UserID:    userID,
			Status:    models.JobStatusPending,
			JobType:   req.JobType,
			Payload:   req.Payload,
			CreatedAt: now,
			UpdatedAt: now,
		}

		if err := s.CreateJob(r.Context(), job); err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to create job", nil)
			return
		}

		_ = c.SetJobStatus(r.Context(), job.ID, models.JobStatusPending, jobCacheTTL)

		response.Accepted(w, job)
	}
}

// NewGetJobHandler returns an http.HandlerFunc for GET /api/v1/jobs/{jobID}.
// Terminal jobs are served from the Redis snapshot when present; everything
// else reads through to Postgres.
func NewGetJobHandler(s store.Store, c cache.Cache) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
		if err != nil {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST", "jobID must be a valid UUID", nil)
			return
		}

		if cached, found, cErr := c.GetJob(r.Context(), jobID); cErr == nil && found && cached.UserID == userID {
			response.JSON(w, cached)
			return
		}

		job, err := s.GetJob(r.Context(), jobID, userID)
		if errors.Is(err, store.ErrNotFound) {
			response.Error(w, http.StatusNotFound, "RESOURCE_NOT_FOUND", "Job not found", nil)
			return
		}
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to fetch job", nil)
			return
		}

		// Terminal rows never change again, so they are safe to cache.
		if job.Terminal() {
			_ = c.SetJob(r.Context(), job, jobCacheTTL)
		}

		response.JSON(w, job)
	}
}

// NewListJobsHandler returns an http.HandlerFunc for GET /api/v1/jobs.
func NewListJobsHandler(s store.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := mw.GetUserID(r)
		if !ok {
			response.Error(w, http.StatusUnauthorized, "INVALID_TOKEN", "Missing user", nil)
			return
		}

		q := r.URL.Query()

		status := q.Get("status")
		if status != "" &&
			status != models.JobStatusPending && status != models.JobStatusProcessing &&
			status != models.JobStatusCompleted && status != models.JobStatusFailed {
			response.Error(w, http.StatusBadRequest, "INVALID_REQUEST",
				"status must be one of pending, processing, completed, failed", nil)
			return
		}

		jobType := q.Get("job_type")
		if jobType != "" && !models.ValidJobType(jobType) {
			response.Error(w, http.StatusBadRequest, "INVALID_JOB_TYPE",
				"Unrecognized job_type", map[string]any{"recognized": models.JobTypes})
			return
		}

		page, _ := strconv.Atoi(q.Get("page"))
		if page <= 0 {
			page = 1
		}
		limit, _ := strconv.Atoi(q.Get("limit"))
		if limit <= 0 {
			limit = 20
		}
		if limit > 100 {
			limit = 100
		}

		jobs, total, err := s.ListJobs(r.Context(), store.JobFilter{
			UserID:  userID,
			Status:  status,
			JobType: jobType,
			Page:    page,
			Limit:   limit,
		})
		if err != nil {
			response.Error(w, http.StatusInternalServerError, "INTERNAL_ERROR",
				"Failed to list jobs", nil)
			return
		}
		if jobs == nil {
			jobs = []*models.Job{}
		}

		response.Collection(w, jobs, response.PaginationMeta{
			Page:    page,
			Limit:   limit,
			Total:   total,
			HasNext: page*limit < total,
		})
	}
}
