package admin

import (
	"context"
	"fmt"

	"github.com/ckr-labs/roofkb/internal/domain"
	"github.com/ckr-labs/roofkb/internal/service"
)

// Search and summaries need the embedding provider; without OPENAI_API_KEY
// the routes stay mounted but answer with a configuration error.

type noOpSearchService struct{}

func (s *noOpSearchService) Search(ctx context.Context, input service.SearchInput) (*service.SearchOutput, error) {
	return nil, fmt.Errorf("search not configured: OPENAI_API_KEY required")
}

type noOpSummaryService struct{}

func (s *noOpSummaryService) Summarize(ctx context.Context, category domain.Category) (*service.CategorySummary, error) {
	return nil, fmt.Errorf("summaries not configured: OPENAI_API_KEY required")
}
