package repository

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ckr-labs/roofkb/internal/domain"
)

const syncRuleColumns = `id, name, source_category, target_category, strategy, priority, active, last_sync, created_at`

type SyncRuleRepository struct {
	pool *pgxpool.Pool
}

func NewSyncRuleRepository(pool *pgxpool.Pool) *SyncRuleRepository {
	return &SyncRuleRepository{pool: pool}
}

func (r *SyncRuleRepository) Create(ctx context.Context, rule *domain.SyncRule) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO sync_rules (id, name, source_category, target_category, strategy, priority, active, last_sync, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rule.ID, rule.Name, rule.SourceCategory, rule.TargetCategory, rule.Strategy, rule.Priority, rule.Active, rule.LastSync, rule.CreatedAt,
	)
	return err
}

func (r *SyncRuleRepository) GetByID(ctx context.Context, id string) (*domain.SyncRule, error) {
	var rule domain.SyncRule
	err := r.pool.QueryRow(ctx,
		`SELECT `+syncRuleColumns+` FROM sync_rules WHERE id = $1`,
		id,
	).Scan(&rule.ID, &rule.Name, &rule.SourceCategory, &rule.TargetCategory, &rule.Strategy,
		&rule.Priority, &rule.Active, &rule.LastSync, &rule.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSyncRuleNotFound
		}
		return nil, err
	}
	return &rule, nil
}

func (r *SyncRuleRepository) List(ctx context.Context) ([]*domain.SyncRule, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+syncRuleColumns+` FROM sync_rules ORDER BY priority DESC, created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSyncRules(rows)
}

func (r *SyncRuleRepository) ListActive(ctx context.Context) ([]*domain.SyncRule, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+syncRuleColumns+` FROM sync_rules WHERE active = TRUE ORDER BY priority DESC, created_at ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSyncRules(rows)
}

func (r *SyncRuleRepository) SetActive(ctx context.Context, id string, active bool) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE sync_rules SET active = $1 WHERE id = $2`,
		active, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrSyncRuleNotFound
	}
	return nil
}

func (r *SyncRuleRepository) UpdateLastSync(ctx context.Context, id string, at time.Time) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE sync_rules SET last_sync = $1 WHERE id = $2`,
		at, id,
	)
	if err != nil {
		return err
	}
	if cmdTag.RowsAffected() == 0 {
		return domain.ErrSyncRuleNotFound
	}
	return nil
}

func scanSyncRules(rows pgx.Rows) ([]*domain.SyncRule, error) {
	var results []*domain.SyncRule
	for rows.Next() {
		var rule domain.SyncRule
		if err := rows.Scan(&rule.ID, &rule.Name, &rule.SourceCategory, &rule.TargetCategory, &rule.Strategy,
			&rule.Priority, &rule.Active, &rule.LastSync, &rule.CreatedAt); err != nil {
			return nil, err
		}
		results = append(results, &rule)
	}
	return results, rows.Err()
}
