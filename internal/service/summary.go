package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ckr-labs/roofkb/internal/ai"
	"github.com/ckr-labs/roofkb/internal/domain"
	"github.com/ckr-labs/roofkb/internal/telemetry"
)

const (
	// summaryThreshold is looser than retrieval's default: a summary wants
	// broad coverage of the category, not only the tightest matches.
	summaryThreshold = float32(0.6)
	summaryLimit     = 10
	metricsWindow    = 30 * 24 * time.Hour
)

const summarySystemPromptFmt = `You are a knowledge base summarizer for a roofing business. Generate a concise, structured summary for the "%s" category. Include:
1. Overview (2-3 sentences)
2. Key Points (bullet list)
3. Recent Updates (if any)
4. Status/Metrics (if operational data provided)

Format as markdown with clear headings.`

// categoryQueries maps each category to the retrieval query that pulls its
// most representative passages.
var categoryQueries = map[domain.Category]string{
	domain.CategorySOPs:        "SOPs, procedures, workflows, safety protocols",
	domain.CategoryPricing:     "pricing, rates, cost calculations, labour rates",
	domain.CategoryInspections: "inspection procedures, reporting guidelines, assessment criteria",
	domain.CategoryQuotes:      "quote procedures, templates, approval workflow",
	domain.CategoryServices:    "services offered, service categories, capabilities",
}

// Searcher is the retrieval surface the summarizer uses.
type Searcher interface {
	Search(ctx context.Context, input SearchInput) (*SearchOutput, error)
}

// MetricsRepository reads operational data from the business tables.
type MetricsRepository interface {
	QuoteStatusCounts(ctx context.Context, since time.Time) (map[string]int, error)
	RecentInspections(ctx context.Context, limit int) ([]domain.InspectionSummary, int, error)
	RecentQuotes(ctx context.Context, limit int) ([]domain.QuoteSummary, error)
}

// SummaryFileLister is the file inventory slice the summarizer needs.
type SummaryFileLister interface {
	ListByCategory(ctx context.Context, category domain.Category) ([]*domain.KnowledgeFile, error)
}

// CategorySummary is the generated overview of one category.
type CategorySummary struct {
	Category    domain.Category `json:"category"`
	Summary     string          `json:"summary"`
	FileCount   int             `json:"file_count"`
	ChunksUsed  int             `json:"chunks_used"`
	GeneratedAt time.Time       `json:"generated_at"`
}

// SummaryService generates category overviews from retrieved passages plus
// operational metrics. Read-only; generating a summary never mutates the
// knowledge base.
type SummaryService struct {
	search     Searcher
	completion CompletionClient
	metrics    MetricsRepository
	files      SummaryFileLister
	now        func() time.Time
	log        zerolog.Logger
}

// NewSummaryService creates a new SummaryService instance. The metrics
// repository may be nil; summaries then omit operational data.
func NewSummaryService(search Searcher, completion CompletionClient, metrics MetricsRepository, files SummaryFileLister, log zerolog.Logger) *SummaryService {
	return &SummaryService{
		search:     search,
		completion: completion,
		metrics:    metrics,
		files:      files,
		now:        func() time.Time { return time.Now().UTC() },
		log:        log,
	}
}

// WithClock overrides the clock, for tests.
func (s *SummaryService) WithClock(now func() time.Time) *SummaryService {
	s.now = now
	return s
}

// Summarize generates a markdown summary for a category. Metrics failures
// degrade gracefully; retrieval and completion failures propagate.
func (s *SummaryService) Summarize(ctx context.Context, category domain.Category) (*CategorySummary, error) {
	ctx, span := telemetry.StartSpan(ctx, "SummaryService.Summarize", telemetry.SpanAttributes{
		Category:  string(category),
		Operation: "summarize",
	})
	defer span.End()

	if !domain.IsValidCategory(category) {
		return nil, domain.ErrInvalidCategory
	}
	if s.completion == nil {
		return nil, domain.NewDomainError(domain.ErrCodeProvider, "completion provider not configured")
	}

	query, ok := categoryQueries[category]
	if !ok {
		query = string(category)
	}

	threshold := summaryThreshold
	searchOut, err := s.search.Search(ctx, SearchInput{
		Query:     query,
		Threshold: &threshold,
		Limit:     summaryLimit,
		Category:  category,
	})
	if err != nil {
		span.SetError(err)
		return nil, err
	}

	kbContext := searchOut.Context
	if kbContext == "" {
		kbContext = "No knowledge base content found"
	}

	files, err := s.files.ListByCategory(ctx, category)
	if err != nil {
		return nil, err
	}

	operational := s.collectMetrics(ctx, category)

	prompt := fmt.Sprintf("**Knowledge Base Context:**\n%s\n\n**Operational Data:**\n%s\n\n**Available Files:**\n%s",
		kbContext, operational, formatFileList(files))

	summary, err := s.completion.Complete(ctx, fmt.Sprintf(summarySystemPromptFmt, category), []ai.Message{{Role: "user", Content: prompt}}, 0.5)
	if err != nil {
		span.SetError(err)
		return nil, domain.NewDomainErrorWithCause(domain.ErrCodeProvider, "summary generation failed", err)
	}

	return &CategorySummary{
		Category:    category,
		Summary:     summary,
		FileCount:   len(files),
		ChunksUsed:  len(searchOut.Results),
		GeneratedAt: s.now(),
	}, nil
}

// collectMetrics gathers category-specific operational data. Any failure is
// logged and replaced with a placeholder so the summary still generates.
func (s *SummaryService) collectMetrics(ctx context.Context, category domain.Category) string {
	if s.metrics == nil {
		return "No operational data available"
	}

	var b strings.Builder
	switch category {
	case domain.CategoryQuotes:
		counts, err := s.metrics.QuoteStatusCounts(ctx, s.now().Add(-metricsWindow))
		if err != nil {
			s.log.Warn().Err(err).Msg("quote metrics unavailable")
			return "No operational data available"
		}
		b.WriteString("Quote status counts (last 30 days):\n")
		for status, n := range counts {
			fmt.Fprintf(&b, "- %s: %d\n", status, n)
		}
	case domain.CategoryPricing:
		quotes, err := s.metrics.RecentQuotes(ctx, 10)
		if err != nil {
			s.log.Warn().Err(err).Msg("quote metrics unavailable")
			return "No operational data available"
		}
		b.WriteString("Recent quotes:\n")
		for _, q := range quotes {
			fmt.Fprintf(&b, "- %s: $%.2f (%s)\n", q.QuoteNumber, q.Subtotal, q.CreatedAt.Format("2006-01-02"))
		}
	case domain.CategoryInspections:
		reports, total, err := s.metrics.RecentInspections(ctx, 5)
		if err != nil {
			s.log.Warn().Err(err).Msg("inspection metrics unavailable")
			return "No operational data available"
		}
		fmt.Fprintf(&b, "Total inspection reports: %d\nRecent reports:\n", total)
		for _, r := range reports {
			fmt.Fprintf(&b, "- %s (%s)\n", r.ClientName, r.Status)
		}
	default:
		return "No operational data available"
	}

	return strings.TrimSpace(b.String())
}

func formatFileList(files []*domain.KnowledgeFile) string {
	if len(files) == 0 {
		return "(none)"
	}
	lines := make([]string, 0, len(files))
	for _, f := range files {
		if !f.Active {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s (%s) - updated %s", f.Title, f.FileKey, f.UpdatedAt.Format("2006-01-02")))
	}
	if len(lines) == 0 {
		return "(none)"
	}
	return strings.Join(lines, "\n")
}
