package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/replyforge/replyforge/pkg/models"
)

var ErrNotFound = errors.New("resource not found")
var ErrDuplicateKey = errors.New("duplicate key violation")

// Store is the data access interface. All database operations go through here.
type Store interface {
	Ping(ctx context.Context) error

	CreateJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, id uuid.UUID, userID uuid.UUID) (*models.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]*models.Job, int, error)

	// ClaimNextJob atomically flips the oldest pending job to processing and
	// returns it. Returns (nil, nil) when no pending job exists.
	ClaimNextJob(ctx context.Context) (*models.Job, error)

	// FinalizeJob writes a job's terminal state. It only applies to jobs
	// currently in processing; finalizing an already-terminal job returns
	// ErrNotFound without mutating the row.
	FinalizeJob(ctx context.Context, id uuid.UUID, outcome JobOutcome) error

	GetAPIKeyByPrefix(ctx context.Context, prefix string) ([]*models.APIKey, error)
	UpdateAPIKeyLastUsed(ctx context.Context, id uuid.UUID) error
	CreateAPIKey(ctx context.Context, key *models.APIKey) error
	ListAPIKeys(ctx context.Context, userID uuid.UUID) ([]*models.APIKey, error)
	RevokeAPIKey(ctx context.Context, id uuid.UUID, userID uuid.UUID) error
}

type JobFilter struct {
	UserID  uuid.UUID
	Status  string
	JobType string
	Page    int
	Limit   int
}

// JobOutcome is a job's terminal state: completed with a result map, or
// failed with an error message. Result and Error are mutually exclusive.
type JobOutcome struct {
	Status string
	Result map[string]any
	Error  string
}

// Completed builds a successful outcome carrying the handler's result map.
func Completed(result map[string]any) JobOutcome {
	return JobOutcome{Status: models.JobStatusCompleted, Result: result}
}

// Failed builds a failed outcome carrying a human-readable error message.
func Failed(msg string) JobOutcome {
	return JobOutcome{Status: models.JobStatusFailed, Error: msg}
}
