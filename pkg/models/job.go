// Package models contains shared data models used across the ReplyForge codebase.
package models

import (
	"time"

	"github.com/google/uuid"
)

const (
	JobStatusPending    = "pending"
	JobStatusProcessing = "processing"
	JobStatusCompleted  = "completed"
	JobStatusFailed     = "failed"
)

// Recognized job types. Any other value is rejected at submission and again
// at dispatch.
const (
	JobTypeAIGeneration      = "ai_generation"
	JobTypeReviewProcessing  = "review_processing"
	JobTypePromptAnalysis    = "prompt_analysis"
	JobTypeSentimentAnalysis = "sentiment_analysis"
)

// JobTypes lists every recognized job type in a stable order.
var JobTypes = []string{
	JobTypeAIGeneration,
	JobTypeReviewProcessing,
	JobTypePromptAnalysis,
	JobTypeSentimentAnalysis,
}

// ValidJobType reports whether jobType is one of the recognized types.
func ValidJobType(jobType string) bool {
	for _, t := range JobTypes {
		if t == jobType {
			return true
		}
	}
	return false
}

// Job is one unit of asynchronous work. Producers insert a pending row via
// POST /api/v1/jobs; the worker claims it, runs the matching handler against
// the completion API, and writes the terminal state back. Clients poll
// GET /api/v1/jobs/{job_id} until status is completed or failed.
//
// Status moves forward only: pending -> processing -> completed | failed.
type Job struct {
	ID         uuid.UUID      `db:"id"          json:"id"`
	UserID     uuid.UUID      `db:"user_id"     json:"user_id"`
	Status     string         `db:"status"      json:"status"`
	JobType    string         `db:"job_type"    json:"job_type"`
	Payload    map[string]any `db:"payload"     json:"payload"`
	Result     map[string]any `db:"result"      json:"result,omitempty"`
	Error      *string        `db:"error"       json:"error,omitempty"`
	RetryCount int            `db:"retry_count" json:"retry_count"`
	CreatedAt  time.Time      `db:"created_at"  json:"created_at"`
	UpdatedAt  time.Time      `db:"updated_at"  json:"updated_at"`
}

// Terminal reports whether the job has reached a final state.
func (j *Job) Terminal() bool {
	return j.Status == JobStatusCompleted || j.Status == JobStatusFailed
}
