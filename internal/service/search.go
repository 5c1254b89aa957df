package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/ckr-labs/roofkb/internal/domain"
	"github.com/ckr-labs/roofkb/internal/telemetry"
)

const (
	// DefaultSearchThreshold is the minimum cosine similarity for a match.
	DefaultSearchThreshold = float32(0.7)
	// DefaultSearchLimit caps the number of returned passages.
	DefaultSearchLimit = 5
)

// SearchInput represents a retrieval query.
type SearchInput struct {
	Query     string
	Threshold *float32
	Limit     int
	Category  domain.Category // optional filter; zero value searches all
}

// SearchOutput carries the ranked passages plus a pre-joined grounding
// context string for LLM prompts.
type SearchOutput struct {
	Query     string
	Results   []*domain.ChunkMatch
	Context   string
	Threshold float32
}

// ChunkSearchRepository performs nearest-neighbour search over stored chunks.
type ChunkSearchRepository interface {
	SearchByEmbedding(ctx context.Context, embedding []float32, category domain.Category, threshold float32, limit int) ([]*domain.ChunkMatch, error)
}

// SearchService embeds queries and retrieves ranked passages.
type SearchService struct {
	embedding EmbeddingClient
	repo      ChunkSearchRepository
}

// NewSearchService creates a new SearchService instance.
func NewSearchService(embedding EmbeddingClient, repo ChunkSearchRepository) *SearchService {
	return &SearchService{
		embedding: embedding,
		repo:      repo,
	}
}

// Search embeds the query and returns the chunks whose cosine similarity
// meets the threshold, ordered by descending similarity. An empty result is
// a valid outcome, distinct from a retrieval failure.
func (s *SearchService) Search(ctx context.Context, input SearchInput) (*SearchOutput, error) {
	ctx, span := telemetry.StartSpan(ctx, "SearchService.Search", telemetry.SpanAttributes{
		Category:  string(input.Category),
		Operation: "search",
	})
	defer span.End()

	query := strings.TrimSpace(input.Query)
	if query == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "query is required")
	}
	if input.Category != "" && !domain.IsValidCategory(input.Category) {
		return nil, domain.ErrInvalidCategory
	}

	threshold := DefaultSearchThreshold
	if input.Threshold != nil {
		threshold = *input.Threshold
	}
	limit := input.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	embedding, err := s.embedding.GenerateEmbedding(ctx, query)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeProvider, "failed to embed query", err)
	}

	matches, err := s.repo.SearchByEmbedding(ctx, embedding, input.Category, threshold, limit)
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	for _, m := range matches {
		m.Citation = buildCitation(m)
	}

	return &SearchOutput{
		Query:     query,
		Results:   matches,
		Context:   buildContext(matches),
		Threshold: threshold,
	}, nil
}

func buildCitation(m *domain.ChunkMatch) string {
	if m.Section != "" {
		return fmt.Sprintf("[%s § %s]", m.DocKey, m.Section)
	}
	return fmt.Sprintf("[%s]", m.DocKey)
}

// buildContext joins matches into a grounding block for completion prompts.
func buildContext(matches []*domain.ChunkMatch) string {
	if len(matches) == 0 {
		return ""
	}
	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		parts = append(parts, fmt.Sprintf("%s %s\n%s", buildCitation(m), m.Title, m.Content))
	}
	return strings.Join(parts, "\n\n--- Document Separator ---\n\n")
}
