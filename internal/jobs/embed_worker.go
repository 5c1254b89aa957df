package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ckr-labs/roofkb/internal/domain"
)

const (
	// MaxRetries is the maximum number of retries for a failed job
	MaxRetries = 3

	// claimBatchSize caps how many jobs one poll claims.
	claimBatchSize = 100

	// staleClaimAge is how long a claimed job may sit in processing before
	// it is assumed orphaned by a crashed worker and requeued.
	staleClaimAge = 10 * time.Minute
)

// EmbedJobRepository defines the interface for embed job persistence
type EmbedJobRepository interface {
	// ClaimPending retrieves and claims pending embed jobs
	ClaimPending(ctx context.Context, limit int) ([]*domain.EmbedJob, error)

	// UpdateStatus updates the status of an embed job
	UpdateStatus(ctx context.Context, jobID string, status domain.EmbedJobStatus, errMsg string) error

	// IncrementRetries increments the retry count for a job
	IncrementRetries(ctx context.Context, jobID string) error

	// RequeueStale returns processing jobs older than the cutoff to pending
	RequeueStale(ctx context.Context, olderThan time.Time) (int64, error)
}

// FileEmbedder re-chunks and re-embeds a file's current content.
type FileEmbedder interface {
	EmbedFile(ctx context.Context, fileID string) error
}

// EmbedWorker processes embed jobs
type EmbedWorker struct {
	repo     EmbedJobRepository
	embedder FileEmbedder
	log      zerolog.Logger
}

// NewEmbedWorker creates a new EmbedWorker instance
func NewEmbedWorker(repo EmbedJobRepository, embedder FileEmbedder, log zerolog.Logger) *EmbedWorker {
	return &EmbedWorker{
		repo:     repo,
		embedder: embedder,
		log:      log,
	}
}

// ProcessJobs implements the JobProcessor interface
func (w *EmbedWorker) ProcessJobs(ctx context.Context) error {
	// Claims abandoned by a crashed worker would otherwise sit in
	// processing forever. A requeue failure is logged, not fatal; the
	// poll itself can still make progress.
	requeued, err := w.repo.RequeueStale(ctx, time.Now().UTC().Add(-staleClaimAge))
	if err != nil {
		w.log.Error().Err(err).Msg("failed to requeue stale jobs")
	} else if requeued > 0 {
		w.log.Warn().Int64("jobs", requeued).Msg("requeued stale processing jobs")
	}

	jobs, err := w.repo.ClaimPending(ctx, claimBatchSize)
	if err != nil {
		return fmt.Errorf("failed to claim pending jobs: %w", err)
	}

	if len(jobs) == 0 {
		return nil
	}

	w.log.Info().Int("jobs", len(jobs)).Msg("processing pending embed jobs")

	for _, job := range jobs {
		if err := w.processJob(ctx, job); err != nil {
			w.log.Error().Err(err).Str("job_id", job.ID).Msg("error processing job")
		}
	}

	return nil
}

func (w *EmbedWorker) processJob(ctx context.Context, job *domain.EmbedJob) error {
	if job.FileID == "" {
		return fmt.Errorf("job %s has no file_id", job.ID)
	}

	w.log.Debug().Str("job_id", job.ID).Str("file_id", job.FileID).Msg("processing job")
	if err := w.embedder.EmbedFile(ctx, job.FileID); err != nil {
		return w.handleJobFailure(ctx, job, err)
	}

	if err := w.repo.UpdateStatus(ctx, job.ID, domain.EmbedJobStatusCompleted, ""); err != nil {
		return fmt.Errorf("failed to update job status to completed: %w", err)
	}

	w.log.Debug().Str("job_id", job.ID).Msg("job completed")
	return nil
}

// handleJobFailure handles a failed job with retry logic
func (w *EmbedWorker) handleJobFailure(ctx context.Context, job *domain.EmbedJob, jobErr error) error {
	w.log.Warn().Err(jobErr).Str("job_id", job.ID).Msg("job failed")

	if err := w.repo.IncrementRetries(ctx, job.ID); err != nil {
		return fmt.Errorf("failed to increment retries: %w", err)
	}

	if job.Retries+1 >= MaxRetries {
		w.log.Error().Str("job_id", job.ID).Int("max_retries", MaxRetries).Msg("job exceeded max retries, marking as failed")
		errMsg := fmt.Sprintf("max retries exceeded: %v", jobErr)
		if err := w.repo.UpdateStatus(ctx, job.ID, domain.EmbedJobStatusFailed, errMsg); err != nil {
			return fmt.Errorf("failed to update job status to failed: %w", err)
		}
		return nil
	}

	// Reset to pending for retry
	errMsg := fmt.Sprintf("retry %d: %v", job.Retries+1, jobErr)
	if err := w.repo.UpdateStatus(ctx, job.ID, domain.EmbedJobStatusPending, errMsg); err != nil {
		return fmt.Errorf("failed to reset job status to pending: %w", err)
	}

	return nil
}
