package repository

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ckr-labs/roofkb/internal/domain"
)

// MetricsRepository reads operational data from the business tables for the
// category summarizer.
type MetricsRepository struct {
	pool *pgxpool.Pool
}

func NewMetricsRepository(pool *pgxpool.Pool) *MetricsRepository {
	return &MetricsRepository{pool: pool}
}

// QuoteStatusCounts counts quotes by status created since the cutoff.
func (r *MetricsRepository) QuoteStatusCounts(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM quotes WHERE created_at >= $1 GROUP BY status`,
		since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// RecentQuotes returns the newest quotes, most recent first.
func (r *MetricsRepository) RecentQuotes(ctx context.Context, limit int) ([]domain.QuoteSummary, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := r.pool.Query(ctx,
		`SELECT id, quote_number, status, subtotal, created_at
		 FROM quotes ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var quotes []domain.QuoteSummary
	for rows.Next() {
		var q domain.QuoteSummary
		if err := rows.Scan(&q.ID, &q.QuoteNumber, &q.Status, &q.Subtotal, &q.CreatedAt); err != nil {
			return nil, err
		}
		quotes = append(quotes, q)
	}
	return quotes, rows.Err()
}

// RecentInspections returns the newest inspection reports plus the total count.
func (r *MetricsRepository) RecentInspections(ctx context.Context, limit int) ([]domain.InspectionSummary, int, error) {
	if limit <= 0 {
		limit = 5
	}

	var total int
	if err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM inspection_reports`).Scan(&total); err != nil {
		return nil, 0, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, client_name, status, created_at
		 FROM inspection_reports ORDER BY created_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var reports []domain.InspectionSummary
	for rows.Next() {
		var rep domain.InspectionSummary
		if err := rows.Scan(&rep.ID, &rep.ClientName, &rep.Status, &rep.CreatedAt); err != nil {
			return nil, 0, err
		}
		reports = append(reports, rep)
	}
	return reports, total, rows.Err()
}
