package service

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/ckr-labs/roofkb/internal/ai"
	"github.com/ckr-labs/roofkb/internal/domain"
	"github.com/ckr-labs/roofkb/internal/telemetry"
)

// CompletionClient defines the interface for chat completion generation.
type CompletionClient interface {
	Complete(ctx context.Context, system string, history []ai.Message, temperature float32) (string, error)
	CompleteJSON(ctx context.Context, system string, history []ai.Message, temperature float32) (string, error)
}

// ConflictRepository persists conflict records.
type ConflictRepository interface {
	Create(ctx context.Context, c *domain.Conflict) error
	GetByID(ctx context.Context, id string) (*domain.Conflict, error)
	ListByStatus(ctx context.Context, status domain.ConflictStatus) ([]*domain.Conflict, error)
	ListByFile(ctx context.Context, fileID string) ([]*domain.Conflict, error)
	MarkResolved(ctx context.Context, id string, strategy domain.ResolutionStrategy, resolvedContent, resolvedBy string, resolvedAt time.Time) error
}

const detectSystemPrompt = `You are a conflict detection system for a knowledge base. Analyze the differences between original and proposed content. Identify:
1. Additions (new information)
2. Deletions (removed information)
3. Modifications (changed information)
4. Conflicts (contradictory information)

Return a JSON object with structure:
{
  "hasConflict": boolean,
  "summary": "brief description",
  "additions": ["list of additions"],
  "deletions": ["list of deletions"],
  "modifications": ["list of modifications"],
  "recommendation": "keep_original" | "accept_proposed" | "merge" | "manual_review"
}`

const mergeSystemPrompt = `You are a merge assistant for a knowledge base. Combine the original and proposed content into a single coherent document. Preserve all non-contradictory information from both versions; where they contradict, prefer the proposed content and note the change inline. Return only the merged document text, no commentary.`

// ConflictService detects divergence between stored and proposed content and
// drives the resolution workflow.
type ConflictService struct {
	repo       ConflictRepository
	completion CompletionClient
	uuidGen    UUIDGenerator
	log        zerolog.Logger
}

// NewConflictService creates a new ConflictService instance. The completion
// client may be nil; detection then falls back to manual-review
// recommendations and merge resolutions are rejected.
func NewConflictService(repo ConflictRepository, completion CompletionClient, log zerolog.Logger) *ConflictService {
	return &ConflictService{
		repo:       repo,
		completion: completion,
		uuidGen:    &DefaultUUIDGenerator{},
		log:        log,
	}
}

// WithUUIDGen overrides the UUID generator, for tests.
func (s *ConflictService) WithUUIDGen(gen UUIDGenerator) *ConflictService {
	s.uuidGen = gen
	return s
}

// Detect compares proposed content against the file's stored content.
// Identical content (after trimming) is never a conflict, however many times
// it is checked. A detected conflict is persisted pending and returned; a
// trivial difference returns nil. When the AI analysis is unavailable or
// unparseable the conflict is still recorded, with a manual-review
// recommendation: content divergence is a fact, only the advice is missing.
func (s *ConflictService) Detect(ctx context.Context, file *domain.KnowledgeFile, proposed string, baseVersion int64) (*domain.Conflict, error) {
	ctx, span := telemetry.StartSpan(ctx, "ConflictService.Detect", telemetry.SpanAttributes{
		FileID:    file.ID,
		Operation: "detect",
	})
	defer span.End()

	if strings.TrimSpace(file.Content) == strings.TrimSpace(proposed) {
		return nil, nil
	}

	rec := s.analyze(ctx, file.Content, proposed)
	if rec == nil {
		// Analysis judged the difference trivial.
		return nil, nil
	}

	conflict := &domain.Conflict{
		ID:              s.uuidGen.NewString(),
		FileID:          file.ID,
		OriginalContent: file.Content,
		ProposedContent: proposed,
		BaseVersion:     baseVersion,
		Recommendation:  rec,
		Status:          domain.ConflictStatusPending,
		CreatedAt:       time.Now().UTC(),
	}
	if err := domain.ValidateConflict(conflict); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, conflict); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("conflict_id", conflict.ID).
		Str("file_id", file.ID).
		Str("recommendation", string(rec.Strategy)).
		Msg("conflict detected")
	return conflict, nil
}

// analyze asks the completion provider to classify the divergence. Returns
// nil when the difference is judged trivial, otherwise a recommendation.
func (s *ConflictService) analyze(ctx context.Context, original, proposed string) *domain.Recommendation {
	if s.completion == nil {
		return manualReview("AI analysis unavailable; completion provider not configured")
	}

	prompt := fmt.Sprintf("**Original Content:**\n%s\n\n**Proposed Content:**\n%s", original, proposed)
	raw, err := s.completion.CompleteJSON(ctx, detectSystemPrompt, []ai.Message{{Role: "user", Content: prompt}}, 0.3)
	if err != nil {
		s.log.Warn().Err(err).Msg("conflict analysis failed, recording for manual review")
		return manualReview("AI analysis failed; review the change manually")
	}

	analysis, err := parseAnalysis(raw)
	if err != nil {
		s.log.Warn().Err(err).Msg("conflict analysis unparseable, recording for manual review")
		return manualReview("Unable to parse AI analysis")
	}

	if !analysis.HasConflict {
		return nil
	}

	strategy := domain.ResolutionStrategy(analysis.Recommendation)
	if !domain.IsValidResolutionStrategy(strategy) && strategy != domain.ResolutionManualReview {
		strategy = domain.ResolutionManualReview
	}

	return &domain.Recommendation{
		Summary:       analysis.Summary,
		Additions:     analysis.Additions,
		Deletions:     analysis.Deletions,
		Modifications: analysis.Modifications,
		Strategy:      strategy,
	}
}

// GetByID retrieves a conflict record.
func (s *ConflictService) GetByID(ctx context.Context, id string) (*domain.Conflict, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByStatus lists conflict records by status.
func (s *ConflictService) ListByStatus(ctx context.Context, status domain.ConflictStatus) ([]*domain.Conflict, error) {
	return s.repo.ListByStatus(ctx, status)
}

// ListByFile lists a file's conflict history, pending and resolved alike.
func (s *ConflictService) ListByFile(ctx context.Context, fileID string) ([]*domain.Conflict, error) {
	return s.repo.ListByFile(ctx, fileID)
}

// MergeContents synthesizes a combined document from a conflict's two sides.
// Requires the completion provider; the conflict stays pending on failure.
func (s *ConflictService) MergeContents(ctx context.Context, c *domain.Conflict) (string, error) {
	if s.completion == nil {
		return "", domain.ErrMergeNeedsAI
	}

	prompt := fmt.Sprintf("**Original Content:**\n%s\n\n**Proposed Content:**\n%s", c.OriginalContent, c.ProposedContent)
	merged, err := s.completion.Complete(ctx, mergeSystemPrompt, []ai.Message{{Role: "user", Content: prompt}}, 0.3)
	if err != nil {
		return "", domain.NewDomainErrorWithCause(domain.ErrCodeProvider, "merge generation failed", err)
	}
	merged = strings.TrimSpace(merged)
	if merged == "" {
		return "", domain.NewDomainError(domain.ErrCodeProvider, "merge generation returned empty content")
	}
	return merged, nil
}

// MarkResolved transitions a conflict to its terminal resolved state.
func (s *ConflictService) MarkResolved(ctx context.Context, id string, strategy domain.ResolutionStrategy, resolvedContent, resolvedBy string, resolvedAt time.Time) error {
	return s.repo.MarkResolved(ctx, id, strategy, resolvedContent, resolvedBy, resolvedAt)
}

type aiAnalysis struct {
	HasConflict    bool     `json:"hasConflict"`
	Summary        string   `json:"summary"`
	Additions      []string `json:"additions"`
	Deletions      []string `json:"deletions"`
	Modifications  []string `json:"modifications"`
	Recommendation string   `json:"recommendation"`
}

var jsonFenceRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// parseAnalysis decodes the model's JSON, tolerating markdown code fences.
func parseAnalysis(raw string) (*aiAnalysis, error) {
	body := strings.TrimSpace(raw)
	if m := jsonFenceRe.FindStringSubmatch(body); len(m) == 2 {
		body = strings.TrimSpace(m[1])
	}

	var analysis aiAnalysis
	if err := json.Unmarshal([]byte(body), &analysis); err != nil {
		return nil, fmt.Errorf("decode analysis: %w", err)
	}
	return &analysis, nil
}

func manualReview(summary string) *domain.Recommendation {
	return &domain.Recommendation{
		Summary:  summary,
		Strategy: domain.ResolutionManualReview,
	}
}
