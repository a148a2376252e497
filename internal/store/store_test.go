package store_test

import (
	"context"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/replyforge/replyforge/internal/store"
	"github.com/replyforge/replyforge/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// migrationsDir returns the absolute path to the migrations directory.
func migrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

// setupTestDB spins up a Postgres container, runs migrations, and returns a pool + cleanup.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("replyforge_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, pgContainer.Terminate(ctx))
	})

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	// Run migrations
	err = store.RunMigrations(connStr, migrationsDir())
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	return pool
}

func newPendingJob(userID uuid.UUID, jobType string, payload map[string]any, createdAt time.Time) *models.Job {
	return &models.Job{
		ID:        uuid.New(),
		UserID:    userID,
		Status:    models.JobStatusPending,
		JobType:   jobType,
		Payload:   payload,
		CreatedAt: createdAt,
		UpdatedAt: createdAt,
	}
}

// --- Job Tests ---

func TestJob_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	userID := uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)

	job := newPendingJob(userID, models.JobTypeSentimentAnalysis,
		map[string]any{"text_content": "Great service, fast delivery."}, now)
	require.NoError(t, s.CreateJob(ctx, job))

	got, err := s.GetJob(ctx, job.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusPending, got.Status)
	assert.Equal(t, models.JobTypeSentimentAnalysis, got.JobType)
	assert.Equal(t, "Great service, fast delivery.", got.Payload["text_content"])
	assert.Nil(t, got.Result)
	assert.Nil(t, got.Error)
}

func TestJob_GetNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	_, err := s.GetJob(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestJob_GetWrongUser(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	job := newPendingJob(uuid.New(), models.JobTypeAIGeneration,
		map[string]any{"review_text": "ok"}, now)
	require.NoError(t, s.CreateJob(ctx, job))

	// A different user must not see the job.
	_, err := s.GetJob(ctx, job.ID, uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestJob_DuplicateID(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	job := newPendingJob(uuid.New(), models.JobTypeAIGeneration,
		map[string]any{"review_text": "ok"}, now)
	require.NoError(t, s.CreateJob(ctx, job))

	err := s.CreateJob(ctx, job)
	assert.ErrorIs(t, err, store.ErrDuplicateKey)
}

func TestJob_List(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	userID := uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)

	for i := 0; i < 5; i++ {
		job := newPendingJob(userID, models.JobTypeReviewProcessing,
			map[string]any{"review_text": "r"}, now.Add(time.Duration(i)*time.Second))
		require.NoError(t, s.CreateJob(ctx, job))
	}
	// A second user's job must not leak into the list.
	other := newPendingJob(uuid.New(), models.JobTypeReviewProcessing,
		map[string]any{"review_text": "r"}, now)
	require.NoError(t, s.CreateJob(ctx, other))

	jobs, total, err := s.ListJobs(ctx, store.JobFilter{UserID: userID, Page: 1, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, 5, total)
	assert.Len(t, jobs, 3)
}

func TestJob_ListFilterByStatus(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	userID := uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)

	pending := newPendingJob(userID, models.JobTypeAIGeneration,
		map[string]any{"review_text": "a"}, now)
	require.NoError(t, s.CreateJob(ctx, pending))

	claimed := newPendingJob(userID, models.JobTypeAIGeneration,
		map[string]any{"review_text": "b"}, now.Add(time.Second))
	require.NoError(t, s.CreateJob(ctx, claimed))
	_, err := s.ClaimNextJob(ctx)
	require.NoError(t, err)

	jobs, total, err := s.ListJobs(ctx, store.JobFilter{
		UserID: userID, Status: models.JobStatusPending, Page: 1, Limit: 20,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, jobs, 1)
	assert.Equal(t, models.JobStatusPending, jobs[0].Status)
}

// --- Claim Tests ---

func TestClaimNextJob_EmptyQueue(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	job, err := s.ClaimNextJob(context.Background())
	require.NoError(t, err)
	assert.Nil(t, job)
}

func TestClaimNextJob_FlipsToProcessing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	userID := uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)

	job := newPendingJob(userID, models.JobTypeSentimentAnalysis,
		map[string]any{"text_content": "fine"}, now)
	require.NoError(t, s.CreateJob(ctx, job))

	claimed, err := s.ClaimNextJob(ctx)
	require.NoError(t, err)
	require.NotNil(t, claimed)
	assert.Equal(t, job.ID, claimed.ID)
	assert.Equal(t, models.JobStatusProcessing, claimed.Status)
	assert.Equal(t, "fine", claimed.Payload["text_content"])

	// The row itself is now processing; a second claim finds nothing.
	got, err := s.GetJob(ctx, job.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusProcessing, got.Status)

	again, err := s.ClaimNextJob(ctx)
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestClaimNextJob_FIFOOrder(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	userID := uuid.New()
	base := time.Now().UTC().Truncate(time.Microsecond).Add(-time.Minute)

	var ids []uuid.UUID
	for i := 0; i < 4; i++ {
		job := newPendingJob(userID, models.JobTypeReviewProcessing,
			map[string]any{"review_text": "r"}, base.Add(time.Duration(i)*time.Second))
		require.NoError(t, s.CreateJob(ctx, job))
		ids = append(ids, job.ID)
	}

	// Sequential claims come back oldest first.
	for i := 0; i < 4; i++ {
		claimed, err := s.ClaimNextJob(ctx)
		require.NoError(t, err)
		require.NotNil(t, claimed)
		assert.Equal(t, ids[i], claimed.ID, "claim %d out of order", i)
	}
}

func TestClaimNextJob_ConcurrentSingleWinner(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	userID := uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)

	job := newPendingJob(userID, models.JobTypeAIGeneration,
		map[string]any{"review_text": "race me"}, now)
	require.NoError(t, s.CreateJob(ctx, job))

	const claimers = 8
	results := make([]*models.Job, claimers)
	errs := make([]error, claimers)

	var wg sync.WaitGroup
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.ClaimNextJob(ctx)
		}(i)
	}
	wg.Wait()

	winners := 0
	for i := 0; i < claimers; i++ {
		require.NoError(t, errs[i])
		if results[i] != nil {
			winners++
			assert.Equal(t, job.ID, results[i].ID)
		}
	}
	assert.Equal(t, 1, winners, "exactly one claimer must win the job")

	got, err := s.GetJob(ctx, job.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusProcessing, got.Status)
}

// --- Finalize Tests ---

func TestFinalizeJob_Completed(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	userID := uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)

	job := newPendingJob(userID, models.JobTypeSentimentAnalysis,
		map[string]any{"text_content": "fine"}, now)
	require.NoError(t, s.CreateJob(ctx, job))
	_, err := s.ClaimNextJob(ctx)
	require.NoError(t, err)

	err = s.FinalizeJob(ctx, job.ID, store.Completed(map[string]any{
		"sentiment_score": 0.9,
		"primary_emotion": "satisfaction",
	}))
	require.NoError(t, err)

	got, err := s.GetJob(ctx, job.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, 0.9, got.Result["sentiment_score"])
	assert.Nil(t, got.Error)
}

func TestFinalizeJob_Failed(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	userID := uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)

	job := newPendingJob(userID, models.JobTypeAIGeneration, map[string]any{}, now)
	require.NoError(t, s.CreateJob(ctx, job))
	_, err := s.ClaimNextJob(ctx)
	require.NoError(t, err)

	err = s.FinalizeJob(ctx, job.ID, store.Failed("missing required field: review_text"))
	require.NoError(t, err)

	got, err := s.GetJob(ctx, job.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusFailed, got.Status)
	assert.Nil(t, got.Result)
	require.NotNil(t, got.Error)
	assert.Equal(t, "missing required field: review_text", *got.Error)
}

func TestFinalizeJob_TerminalStateIsImmutable(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	userID := uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)

	job := newPendingJob(userID, models.JobTypeSentimentAnalysis,
		map[string]any{"text_content": "fine"}, now)
	require.NoError(t, s.CreateJob(ctx, job))
	_, err := s.ClaimNextJob(ctx)
	require.NoError(t, err)

	require.NoError(t, s.FinalizeJob(ctx, job.ID, store.Completed(map[string]any{"sentiment_score": 0.5})))

	// A second finalize must not rewrite the terminal state.
	err = s.FinalizeJob(ctx, job.ID, store.Failed("late failure"))
	assert.ErrorIs(t, err, store.ErrNotFound)

	got, err := s.GetJob(ctx, job.ID, userID)
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Nil(t, got.Error)
}

func TestFinalizeJob_PendingJobNotFinalizable(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Microsecond)

	job := newPendingJob(uuid.New(), models.JobTypeAIGeneration,
		map[string]any{"review_text": "ok"}, now)
	require.NoError(t, s.CreateJob(ctx, job))

	// Finalize only applies to claimed jobs.
	err := s.FinalizeJob(ctx, job.ID, store.Completed(map[string]any{"x": 1}))
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestFinalizeJob_NonTerminalStatusRejected(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	err := s.FinalizeJob(context.Background(), uuid.New(), store.JobOutcome{Status: models.JobStatusPending})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a terminal status")
}

// --- API Key Tests ---

func TestAPIKey_CreateAndGet(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	userID := uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)

	key := &models.APIKey{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      "test-key",
		KeyHash:   "bcrypt-hash-here",
		KeyPrefix: "rf_abcd",
		Scopes:    []string{"jobs:write", "jobs:read"},
		CreatedAt: now,
		UpdatedAt: now,
	}

	require.NoError(t, s.CreateAPIKey(ctx, key))

	keys, err := s.GetAPIKeyByPrefix(ctx, "rf_abcd")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.Equal(t, key.ID, keys[0].ID)
	assert.Equal(t, "test-key", keys[0].Name)
}

func TestAPIKey_Revoke(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	userID := uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)

	key := &models.APIKey{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      "revoke-me",
		KeyHash:   "hash",
		KeyPrefix: "rf_revk",
		Scopes:    []string{"jobs:read"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateAPIKey(ctx, key))

	require.NoError(t, s.RevokeAPIKey(ctx, key.ID, userID))

	keys, err := s.ListAPIKeys(ctx, userID)
	require.NoError(t, err)
	assert.Empty(t, keys)

	keys, err = s.GetAPIKeyByPrefix(ctx, "rf_revk")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestAPIKey_RevokeNotFound(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	err := s.RevokeAPIKey(context.Background(), uuid.New(), uuid.New())
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestAPIKey_UpdateLastUsed(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)
	ctx := context.Background()
	userID := uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)

	key := &models.APIKey{
		ID:        uuid.New(),
		UserID:    userID,
		Name:      "usage-key",
		KeyHash:   "hash",
		KeyPrefix: "rf_used",
		Scopes:    []string{"jobs:read"},
		CreatedAt: now,
		UpdatedAt: now,
	}
	require.NoError(t, s.CreateAPIKey(ctx, key))

	require.NoError(t, s.UpdateAPIKeyLastUsed(ctx, key.ID))

	keys, err := s.GetAPIKeyByPrefix(ctx, "rf_used")
	require.NoError(t, err)
	require.Len(t, keys, 1)
	assert.NotNil(t, keys[0].LastUsedAt)
}

// --- Ping Test ---

func TestPing(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test")
	}
	pool := setupTestDB(t)
	s := store.NewPostgresStore(pool)

	err := s.Ping(context.Background())
	assert.NoError(t, err)
}
