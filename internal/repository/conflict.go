package repository

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ckr-labs/roofkb/internal/domain"
)

const conflictColumns = `id, file_id, original_content, proposed_content, base_version,
	recommendation, status, resolution_strategy, resolved_content, resolved_by, created_at, resolved_at`

type ConflictRepository struct {
	db dbtx
}

func NewConflictRepository(pool *pgxpool.Pool) *ConflictRepository {
	return &ConflictRepository{db: pool}
}

func NewConflictRepositoryWithTx(tx pgx.Tx) *ConflictRepository {
	return &ConflictRepository{db: tx}
}

func (r *ConflictRepository) Create(ctx context.Context, c *domain.Conflict) error {
	var rec []byte
	if c.Recommendation != nil {
		var err error
		rec, err = json.Marshal(c.Recommendation)
		if err != nil {
			return err
		}
	}
	_, err := r.db.Exec(ctx,
		`INSERT INTO conflicts (id, file_id, original_content, proposed_content, base_version, recommendation, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		c.ID, c.FileID, c.OriginalContent, c.ProposedContent, c.BaseVersion, rec, c.Status, c.CreatedAt,
	)
	return err
}

func (r *ConflictRepository) GetByID(ctx context.Context, id string) (*domain.Conflict, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+conflictColumns+` FROM conflicts WHERE id = $1`,
		id,
	)
	return scanConflict(row)
}

func (r *ConflictRepository) ListByStatus(ctx context.Context, status domain.ConflictStatus) ([]*domain.Conflict, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+conflictColumns+` FROM conflicts WHERE status = $1 ORDER BY created_at DESC`,
		status,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.Conflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

func (r *ConflictRepository) ListByFile(ctx context.Context, fileID string) ([]*domain.Conflict, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+conflictColumns+` FROM conflicts WHERE file_id = $1 ORDER BY created_at DESC`,
		fileID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []*domain.Conflict
	for rows.Next() {
		c, err := scanConflict(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, c)
	}
	return results, rows.Err()
}

// MarkResolved transitions a pending conflict to resolved. The status guard
// in the WHERE clause makes resolution terminal at the database level.
func (r *ConflictRepository) MarkResolved(ctx context.Context, id string, strategy domain.ResolutionStrategy, resolvedContent, resolvedBy string, resolvedAt time.Time) error {
	cmdTag, err := r.db.Exec(ctx,
		`UPDATE conflicts
		 SET status = $1, resolution_strategy = $2, resolved_content = $3, resolved_by = $4, resolved_at = $5
		 WHERE id = $6 AND status = $7`,
		domain.ConflictStatusResolved, strategy, nullableString(resolvedContent), nullableString(resolvedBy), resolvedAt,
		id, domain.ConflictStatusPending,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return domain.ErrConflictResolved
	}
	return nil
}

func scanConflict(row pgx.Row) (*domain.Conflict, error) {
	var c domain.Conflict
	var rec []byte
	var strategy, resolvedContent, resolvedBy *string
	err := row.Scan(&c.ID, &c.FileID, &c.OriginalContent, &c.ProposedContent, &c.BaseVersion,
		&rec, &c.Status, &strategy, &resolvedContent, &resolvedBy, &c.CreatedAt, &c.ResolvedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrConflictNotFound
		}
		return nil, err
	}
	if len(rec) > 0 {
		var recommendation domain.Recommendation
		if err := json.Unmarshal(rec, &recommendation); err != nil {
			return nil, err
		}
		c.Recommendation = &recommendation
	}
	if strategy != nil {
		c.Strategy = domain.ResolutionStrategy(*strategy)
	}
	if resolvedContent != nil {
		c.ResolvedContent = *resolvedContent
	}
	if resolvedBy != nil {
		c.ResolvedBy = *resolvedBy
	}
	return &c, nil
}
