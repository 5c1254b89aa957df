package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ckr-labs/roofkb/internal/domain"
)

var ErrEmbedJobNotFound = errors.New("embed job not found")

type EmbedJobRepository struct {
	db dbtx
}

func NewEmbedJobRepository(pool *pgxpool.Pool) *EmbedJobRepository {
	return &EmbedJobRepository{db: pool}
}

func NewEmbedJobRepositoryWithTx(tx pgx.Tx) *EmbedJobRepository {
	return &EmbedJobRepository{db: tx}
}

func (r *EmbedJobRepository) Create(ctx context.Context, job *domain.EmbedJob) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO embed_jobs (id, file_id, status, retries, error, created_at, processed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		job.ID, job.FileID, job.Status, job.Retries, nullableString(job.Error), job.CreatedAt, job.ProcessedAt,
	)
	return err
}

func (r *EmbedJobRepository) GetByID(ctx context.Context, id string) (*domain.EmbedJob, error) {
	var job domain.EmbedJob
	var errMsg pgtype.Text
	err := r.db.QueryRow(ctx,
		`SELECT id, file_id, status, retries, error, created_at, processed_at
		 FROM embed_jobs WHERE id = $1`,
		id,
	).Scan(&job.ID, &job.FileID, &job.Status, &job.Retries, &errMsg, &job.CreatedAt, &job.ProcessedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEmbedJobNotFound
		}
		return nil, err
	}
	if errMsg.Valid {
		job.Error = errMsg.String
	}
	return &job, nil
}

// ClaimPending atomically marks up to limit pending jobs as processing and
// returns them. SKIP LOCKED keeps concurrent workers from claiming the same
// job.
func (r *EmbedJobRepository) ClaimPending(ctx context.Context, limit int) ([]*domain.EmbedJob, error) {
	if limit <= 0 {
		limit = 100
	}

	rows, err := r.db.Query(ctx,
		`WITH cte AS (
			 SELECT id
			 FROM embed_jobs
			 WHERE status = $1
			 ORDER BY created_at ASC
			 FOR UPDATE SKIP LOCKED
			 LIMIT $2
		 )
		 UPDATE embed_jobs
		 SET status = $3,
		     error = NULL,
		     processed_at = NULL
		 FROM cte
		 WHERE embed_jobs.id = cte.id
		 RETURNING embed_jobs.id, embed_jobs.file_id, embed_jobs.status,
		           embed_jobs.retries, embed_jobs.error, embed_jobs.created_at, embed_jobs.processed_at`,
		domain.EmbedJobStatusPending, limit, domain.EmbedJobStatusProcessing,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*domain.EmbedJob
	for rows.Next() {
		var job domain.EmbedJob
		var errMsg pgtype.Text
		if err := rows.Scan(&job.ID, &job.FileID, &job.Status, &job.Retries, &errMsg, &job.CreatedAt, &job.ProcessedAt); err != nil {
			return nil, err
		}
		if errMsg.Valid {
			job.Error = errMsg.String
		}
		jobs = append(jobs, &job)
	}

	return jobs, rows.Err()
}

func (r *EmbedJobRepository) UpdateStatus(ctx context.Context, id string, status domain.EmbedJobStatus, errMsg string) error {
	var processedAt *time.Time
	if status == domain.EmbedJobStatusCompleted || status == domain.EmbedJobStatusFailed {
		now := time.Now().UTC()
		processedAt = &now
	}

	cmdTag, err := r.db.Exec(ctx,
		`UPDATE embed_jobs SET status = $1, error = $2, processed_at = $3 WHERE id = $4`,
		status, nullableString(errMsg), processedAt, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrEmbedJobNotFound
	}
	return nil
}

func (r *EmbedJobRepository) IncrementRetries(ctx context.Context, id string) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE embed_jobs SET retries = retries + 1 WHERE id = $1`,
		id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrEmbedJobNotFound
	}
	return nil
}

// RequeueStale returns processing jobs older than the cutoff to pending so a
// crashed worker's claims are retried.
func (r *EmbedJobRepository) RequeueStale(ctx context.Context, olderThan time.Time) (int64, error) {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE embed_jobs SET status = $1 WHERE status = $2 AND created_at < $3`,
		domain.EmbedJobStatusPending, domain.EmbedJobStatusProcessing, olderThan,
	)
	if err != nil {
		return 0, err
	}
	return cmdTag.RowsAffected(), nil
}
