package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/ckr-labs/roofkb/internal/domain"
)

// ChunkRepository handles persistence and vector search of document chunks.
type ChunkRepository struct {
	pool *pgxpool.Pool
}

func NewChunkRepository(pool *pgxpool.Pool) *ChunkRepository {
	return &ChunkRepository{pool: pool}
}

// ReplaceChunks swaps the chunk generation for a document in one transaction.
// Readers see either the old generation or the new one, never a mix or a gap.
func (r *ChunkRepository) ReplaceChunks(ctx context.Context, docKey string, chunks []domain.Chunk) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM knowledge_chunks WHERE doc_key = $1`, docKey); err != nil {
		return err
	}

	for _, c := range chunks {
		id := c.ID
		if id == "" {
			id = uuid.NewString()
		}
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now().UTC()
		}
		meta, err := marshalMetadata(c.Metadata)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO knowledge_chunks
				(id, doc_key, title, category, section, chunk_index, content, embedding, metadata, active, created_at)
			 VALUES
				($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
			id,
			c.DocKey,
			c.Title,
			c.Category,
			nullableString(c.Section),
			c.ChunkIndex,
			c.Content,
			pgvector.NewVector(c.Embedding),
			meta,
			c.Active,
			createdAt,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// SearchByEmbedding returns active chunks whose cosine similarity to the
// query vector meets the threshold, best matches first.
func (r *ChunkRepository) SearchByEmbedding(ctx context.Context, embedding []float32, category domain.Category, threshold float32, limit int) ([]*domain.ChunkMatch, error) {
	if limit <= 0 {
		limit = 5
	}

	vec := pgvector.NewVector(embedding)

	query := `
		SELECT id, doc_key, title, category, section, chunk_index, content,
		       1 - (embedding <=> $1) AS similarity
		FROM knowledge_chunks
		WHERE active = TRUE AND 1 - (embedding <=> $1) >= $2`
	args := []any{vec, threshold}

	if category != "" {
		query += ` AND category = $3
		ORDER BY similarity DESC
		LIMIT $4`
		args = append(args, category, limit)
	} else {
		query += `
		ORDER BY similarity DESC
		LIMIT $3`
		args = append(args, limit)
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanChunkMatches(rows)
}

// CountByDocKey counts a document's active chunks.
func (r *ChunkRepository) CountByDocKey(ctx context.Context, docKey string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM knowledge_chunks WHERE doc_key = $1 AND active = TRUE`,
		docKey,
	).Scan(&count)
	return count, err
}

// DeactivateByDocKey retires a document's chunks from retrieval without
// deleting them.
func (r *ChunkRepository) DeactivateByDocKey(ctx context.Context, docKey string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE knowledge_chunks SET active = FALSE WHERE doc_key = $1`,
		docKey,
	)
	return err
}

func scanChunkMatches(rows pgx.Rows) ([]*domain.ChunkMatch, error) {
	results := make([]*domain.ChunkMatch, 0)
	for rows.Next() {
		var m domain.ChunkMatch
		var section *string
		var similarity float64
		if err := rows.Scan(&m.ChunkID, &m.DocKey, &m.Title, &m.Category, &section, &m.ChunkIndex, &m.Content, &similarity); err != nil {
			return nil, err
		}
		if section != nil {
			m.Section = *section
		}
		m.Similarity = float32(similarity)
		results = append(results, &m)
	}
	return results, rows.Err()
}
