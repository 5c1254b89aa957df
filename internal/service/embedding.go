package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/ckr-labs/roofkb/internal/domain"
)

// EmbeddingClient defines the interface for generating embeddings
type EmbeddingClient interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

// EmbeddingFileRepository provides file access for the embedding pipeline.
type EmbeddingFileRepository interface {
	GetByID(ctx context.Context, id string) (*domain.KnowledgeFile, error)
}

// ChunkRepository persists chunk generations. ReplaceChunks swaps the active
// generation for a document atomically: the previous generation stays
// queryable until the new one is fully written.
type ChunkRepository interface {
	ReplaceChunks(ctx context.Context, docKey string, chunks []domain.Chunk) error
}

// defaultEmbedRate allows ten embedding calls per second with no burst
// headroom beyond one, matching the provider's sustained limit.
const defaultEmbedRate = rate.Limit(10)

// EmbeddingService chunks a file's content and generates chunk embeddings.
type EmbeddingService struct {
	client    EmbeddingClient
	fileRepo  EmbeddingFileRepository
	chunkRepo ChunkRepository
	limiter   *rate.Limiter
	chunkCfg  ChunkConfig
	log       zerolog.Logger
}

// NewEmbeddingService creates a new EmbeddingService instance.
func NewEmbeddingService(client EmbeddingClient, fileRepo EmbeddingFileRepository, chunkRepo ChunkRepository, log zerolog.Logger) *EmbeddingService {
	return &EmbeddingService{
		client:    client,
		fileRepo:  fileRepo,
		chunkRepo: chunkRepo,
		limiter:   rate.NewLimiter(defaultEmbedRate, 1),
		chunkCfg:  DefaultChunkConfig(),
		log:       log,
	}
}

// WithLimiter overrides the rate limiter, mainly for tests.
func (s *EmbeddingService) WithLimiter(l *rate.Limiter) *EmbeddingService {
	s.limiter = l
	return s
}

// WithChunkConfig overrides the chunking parameters.
func (s *EmbeddingService) WithChunkConfig(cfg ChunkConfig) *EmbeddingService {
	s.chunkCfg = cfg
	return s
}

// EmbedFile re-chunks and re-embeds a file's current content.
// Chunks are embedded in index order, one provider call each, gated by the
// rate limiter. All vectors are collected before anything is written, so a
// mid-batch provider failure leaves the previous chunk generation intact.
func (s *EmbeddingService) EmbedFile(ctx context.Context, fileID string) error {
	file, err := s.fileRepo.GetByID(ctx, fileID)
	if err != nil {
		return err
	}
	if !file.Active {
		return domain.ErrFileInactive
	}

	texts := ChunkText(file.Content, s.chunkCfg)
	s.log.Info().
		Str("file_id", file.ID).
		Str("file_key", file.FileKey).
		Int("chunks", len(texts)).
		Msg("embedding file")

	now := time.Now().UTC()
	chunks := make([]domain.Chunk, 0, len(texts))
	for i, text := range texts {
		if err := s.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("rate limiter wait: %w", err)
		}

		embedding, err := s.client.GenerateEmbedding(ctx, text)
		if err != nil {
			return fmt.Errorf("failed to embed chunk %d of %s: %w", i, file.FileKey, err)
		}

		chunks = append(chunks, domain.Chunk{
			DocKey:     file.FileKey,
			Title:      file.Title,
			Category:   file.Category,
			Section:    ExtractSection(text),
			ChunkIndex: i,
			Content:    text,
			Embedding:  embedding,
			Metadata: map[string]any{
				"chunk_length": len(text),
				"total_chunks": len(texts),
				"file_version": file.Version,
			},
			Active:    true,
			CreatedAt: now,
		})
	}

	if err := s.chunkRepo.ReplaceChunks(ctx, file.FileKey, chunks); err != nil {
		return fmt.Errorf("failed to replace chunks for %s: %w", file.FileKey, err)
	}

	s.log.Info().
		Str("file_key", file.FileKey).
		Int("chunks", len(chunks)).
		Msg("file embedded")
	return nil
}
