// Package worker runs the claim -> dispatch -> finalize loop. One job is in
// flight at a time per process; multiple processes may poll the same table
// because the store's claim is atomic.
package worker

import (
	"context"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/replyforge/replyforge/internal/cache"
	"github.com/replyforge/replyforge/internal/config"
	"github.com/replyforge/replyforge/internal/retry"
	"github.com/replyforge/replyforge/internal/store"
	"github.com/replyforge/replyforge/pkg/models"
)

// finalizeBackoff is the fixed delay between finalize retry attempts.
const finalizeBackoff = 500 * time.Millisecond

// jobCacheTTL bounds how long job state lives in Redis for pollers.
const jobCacheTTL = 30 * time.Minute

// Dispatcher routes a claimed job to its handler.
type Dispatcher interface {
	Dispatch(ctx context.Context, jobType string, payload map[string]any) (map[string]any, error)
}

// Stats is a read-only summary of the worker's counters.
type Stats struct {
	Processed int64
	Failed    int64
	Uptime    time.Duration
}

// Worker owns the polling loop and its counters. Counters are mutated only
// inside the loop; Stats exposes them read-only.
type Worker struct {
	store      store.Store
	cache      cache.Cache
	dispatcher Dispatcher
	logger     *slog.Logger

	pollInterval    time.Duration
	finalizeRetries int

	startedAt time.Time
	processed atomic.Int64
	failed    atomic.Int64
}

// New creates a Worker. It does not start polling; call Run.
func New(st store.Store, ca cache.Cache, d Dispatcher, logger *slog.Logger, cfg config.WorkerConfig) *Worker {
	return &Worker{
		store:           st,
		cache:           ca,
		dispatcher:      d,
		logger:          logger,
		pollInterval:    cfg.PollInterval,
		finalizeRetries: cfg.FinalizeRetries,
	}
}

// Stats returns the current counters.
func (w *Worker) Stats() Stats {
	uptime := time.Duration(0)
	if !w.startedAt.IsZero() {
		uptime = time.Since(w.startedAt)
	}
	return Stats{
		Processed: w.processed.Load(),
		Failed:    w.failed.Load(),
		Uptime:    uptime,
	}
}

// Run polls until ctx is cancelled. Cancellation stops the loop after the
// current iteration; it never interrupts a job already in flight. Returns
// the final counters.
func (w *Worker) Run(ctx context.Context) Stats {
	w.startedAt = time.Now()
	w.logger.Info("worker started",
		"poll_interval", w.pollInterval,
		"finalize_retries", w.finalizeRetries)

	for {
		interval := w.pollInterval

		if err := w.processNext(ctx); err != nil {
			if isCriticalError(err) {
				// Store unreachable: back off and keep trying, the
				// process stays alive to drain the queue.
				interval = 2 * w.pollInterval
				w.logger.Error("infrastructure error, backing off",
					"error", err, "backoff", interval)
			} else {
				w.logger.Error("iteration error", "error", err)
			}
		}

		select {
		case <-ctx.Done():
			stats := w.Stats()
			w.logger.Info("worker stopped",
				"jobs_processed", stats.Processed,
				"jobs_failed", stats.Failed,
				"uptime", stats.Uptime.Round(time.Second))
			return stats
		case <-time.After(interval):
		}
	}
}

// processNext claims and handles at most one job. Claim failures are
// returned to Run for backoff; job-level failures are written to the row
// and never escape.
func (w *Worker) processNext(ctx context.Context) error {
	job, err := w.store.ClaimNextJob(ctx)
	if err != nil {
		return err
	}
	if job == nil {
		return nil
	}

	// Detach from the loop context: shutdown must not abort a claimed job.
	jobCtx := context.Background()

	_ = w.cache.SetJobStatus(jobCtx, job.ID, models.JobStatusProcessing, jobCacheTTL)

	start := time.Now()
	result, dispatchErr := w.dispatcher.Dispatch(jobCtx, job.JobType, job.Payload)
	elapsed := time.Since(start)

	var outcome store.JobOutcome
	if dispatchErr != nil {
		outcome = store.Failed(dispatchErr.Error())
		w.failed.Add(1)
		w.logger.Warn("job failed",
			"job_id", job.ID,
			"job_type", job.JobType,
			"duration", elapsed.Round(time.Millisecond),
			"error", dispatchErr)
	} else {
		outcome = store.Completed(result)
		w.processed.Add(1)
		w.logger.Info("job completed",
			"job_id", job.ID,
			"job_type", job.JobType,
			"duration", elapsed.Round(time.Millisecond))
	}

	finalizeErr := retry.Do(jobCtx, w.finalizeRetries, finalizeBackoff, func(ctx context.Context) error {
		return w.store.FinalizeJob(ctx, job.ID, outcome)
	})
	if finalizeErr != nil {
		// The terminal write is lost, but the loop must keep draining.
		w.logger.Error("finalize failed, terminal state may be lost",
			"job_id", job.ID, "status", outcome.Status, "error", finalizeErr)
		return nil
	}

	_ = w.cache.SetJobStatus(jobCtx, job.ID, outcome.Status, jobCacheTTL)

	return nil
}

// isCriticalError reports whether an error looks like infrastructure loss
// (connection, network, timeout) rather than an ordinary per-job failure.
func isCriticalError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection") ||
		strings.Contains(msg, "network") ||
		strings.Contains(msg, "timeout")
}
