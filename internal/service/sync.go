package service

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ckr-labs/roofkb/internal/domain"
	"github.com/ckr-labs/roofkb/internal/telemetry"
)

// SyncRuleRepository persists sync rules.
type SyncRuleRepository interface {
	Create(ctx context.Context, rule *domain.SyncRule) error
	GetByID(ctx context.Context, id string) (*domain.SyncRule, error)
	ListActive(ctx context.Context) ([]*domain.SyncRule, error)
	List(ctx context.Context) ([]*domain.SyncRule, error)
	SetActive(ctx context.Context, id string, active bool) error
	UpdateLastSync(ctx context.Context, id string, at time.Time) error
}

// SyncFileReader is the read slice of the file repository the sync engine uses.
type SyncFileReader interface {
	ListByCategory(ctx context.Context, category domain.Category) ([]*domain.KnowledgeFile, error)
	GetByKey(ctx context.Context, fileKey string) (*domain.KnowledgeFile, error)
}

// SyncFileWriter is the write surface the sync engine drives. Mirror writes
// bypass conflict detection; merge writes go through it.
type SyncFileWriter interface {
	Create(ctx context.Context, input CreateFileInput) (*domain.KnowledgeFile, error)
	Overwrite(ctx context.Context, fileID, content, changeSummary, changedBy string) (*domain.KnowledgeFile, error)
}

// SyncResult reports the outcome of one rule execution.
type SyncResult struct {
	RuleID   string              `json:"rule_id"`
	Strategy domain.SyncStrategy `json:"strategy"`
	Synced   int                 `json:"synced"`
	Skipped  int                 `json:"skipped"`
	Errors   []string            `json:"errors,omitempty"`
}

// CreateSyncRuleInput represents the input for creating a sync rule.
type CreateSyncRuleInput struct {
	Name           string
	SourceCategory domain.Category
	TargetCategory domain.Category
	Strategy       domain.SyncStrategy
	Priority       int
}

// SyncService propagates files between categories according to declarative
// rules.
type SyncService struct {
	rules    SyncRuleRepository
	reader   SyncFileReader
	writer   SyncFileWriter
	detector ConflictDetector
	uuidGen  UUIDGenerator
	now      func() time.Time
	log      zerolog.Logger
}

// NewSyncService creates a new SyncService instance.
func NewSyncService(rules SyncRuleRepository, reader SyncFileReader, writer SyncFileWriter, detector ConflictDetector, log zerolog.Logger) *SyncService {
	return &SyncService{
		rules:    rules,
		reader:   reader,
		writer:   writer,
		detector: detector,
		uuidGen:  &DefaultUUIDGenerator{},
		now:      func() time.Time { return time.Now().UTC() },
		log:      log,
	}
}

// WithUUIDGen overrides the UUID generator, for tests.
func (s *SyncService) WithUUIDGen(gen UUIDGenerator) *SyncService {
	s.uuidGen = gen
	return s
}

// WithClock overrides the clock, for tests.
func (s *SyncService) WithClock(now func() time.Time) *SyncService {
	s.now = now
	return s
}

// CreateRule creates a new sync rule, active by default.
func (s *SyncService) CreateRule(ctx context.Context, input CreateSyncRuleInput) (*domain.SyncRule, error) {
	rule := &domain.SyncRule{
		ID:             s.uuidGen.NewString(),
		Name:           input.Name,
		SourceCategory: input.SourceCategory,
		TargetCategory: input.TargetCategory,
		Strategy:       input.Strategy,
		Priority:       input.Priority,
		Active:         true,
		CreatedAt:      s.now(),
	}
	if err := domain.ValidateSyncRule(rule); err != nil {
		return nil, err
	}
	if err := s.rules.Create(ctx, rule); err != nil {
		return nil, err
	}
	return rule, nil
}

// ListRules returns all sync rules, highest priority first.
func (s *SyncService) ListRules(ctx context.Context) ([]*domain.SyncRule, error) {
	return s.rules.List(ctx)
}

// SetRuleActive starts or stops a rule.
func (s *SyncService) SetRuleActive(ctx context.Context, id string, active bool) error {
	if _, err := s.rules.GetByID(ctx, id); err != nil {
		return err
	}
	return s.rules.SetActive(ctx, id, active)
}

// ExecuteRule runs one rule over every active file in its source category.
// Mirror replaces the target copy outright. Merge concatenates, but a target
// whose merge raises an unresolved conflict is skipped, never overwritten.
// Per-file failures are collected; the run continues.
func (s *SyncService) ExecuteRule(ctx context.Context, ruleID string) (*SyncResult, error) {
	ctx, span := telemetry.StartSpan(ctx, "SyncService.ExecuteRule", telemetry.SpanAttributes{
		Operation: "sync",
	})
	defer span.End()

	rule, err := s.rules.GetByID(ctx, ruleID)
	if err != nil {
		return nil, err
	}
	if !rule.Active {
		return nil, domain.ErrSyncRuleInactive
	}

	files, err := s.reader.ListByCategory(ctx, rule.SourceCategory)
	if err != nil {
		return nil, err
	}

	result := &SyncResult{RuleID: rule.ID, Strategy: rule.Strategy}
	for _, file := range files {
		if !file.Active {
			continue
		}

		var syncErr error
		switch rule.Strategy {
		case domain.SyncStrategyMirror:
			syncErr = s.mirrorFile(ctx, rule, file)
		case domain.SyncStrategyMerge:
			var skipped bool
			skipped, syncErr = s.mergeFile(ctx, rule, file)
			if skipped {
				result.Skipped++
				continue
			}
		default:
			syncErr = domain.ErrInvalidSyncStrategy
		}

		if syncErr != nil {
			s.log.Error().Err(syncErr).
				Str("rule_id", rule.ID).
				Str("file_key", file.FileKey).
				Msg("sync failed for file")
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", file.FileKey, syncErr))
			continue
		}
		result.Synced++
	}

	if err := s.rules.UpdateLastSync(ctx, rule.ID, s.now()); err != nil {
		return nil, err
	}

	s.log.Info().
		Str("rule_id", rule.ID).
		Str("strategy", string(rule.Strategy)).
		Int("synced", result.Synced).
		Int("skipped", result.Skipped).
		Int("errors", len(result.Errors)).
		Msg("sync rule executed")
	return result, nil
}

// ExecuteActive runs every active rule, highest priority first. A failing
// rule is logged and skipped so it cannot stall the rules behind it.
func (s *SyncService) ExecuteActive(ctx context.Context) ([]*SyncResult, error) {
	rules, err := s.rules.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	results := make([]*SyncResult, 0, len(rules))
	for _, rule := range rules {
		result, err := s.ExecuteRule(ctx, rule.ID)
		if err != nil {
			s.log.Error().Err(err).
				Str("rule_id", rule.ID).
				Msg("sync rule execution failed")
			continue
		}
		results = append(results, result)
	}
	return results, nil
}

// mirrorFile copies a source file into the target category, overwriting any
// existing target copy.
func (s *SyncService) mirrorFile(ctx context.Context, rule *domain.SyncRule, source *domain.KnowledgeFile) error {
	targetKey := targetFileKey(rule.TargetCategory, source.FileKey)
	summary := fmt.Sprintf("Mirrored from %s", rule.SourceCategory)

	target, err := s.reader.GetByKey(ctx, targetKey)
	if err == domain.ErrFileNotFound {
		_, err = s.writer.Create(ctx, CreateFileInput{
			FileKey:   targetKey,
			Title:     source.Title,
			Category:  rule.TargetCategory,
			Content:   source.Content,
			Metadata:  syncMetadata(source, s.now()),
			ChangedBy: "sync-engine",
		})
		return err
	}
	if err != nil {
		return err
	}

	_, err = s.writer.Overwrite(ctx, target.ID, source.Content, summary, "sync-engine")
	return err
}

// mergeFile concatenates the source content onto the target copy. Returns
// skipped=true when the merge raises a conflict; the conflict stays pending
// for resolution and the target is left untouched.
func (s *SyncService) mergeFile(ctx context.Context, rule *domain.SyncRule, source *domain.KnowledgeFile) (bool, error) {
	targetKey := targetFileKey(rule.TargetCategory, source.FileKey)

	target, err := s.reader.GetByKey(ctx, targetKey)
	if err == domain.ErrFileNotFound {
		_, err = s.writer.Create(ctx, CreateFileInput{
			FileKey:   targetKey,
			Title:     source.Title,
			Category:  rule.TargetCategory,
			Content:   source.Content,
			Metadata:  syncMetadata(source, s.now()),
			ChangedBy: "sync-engine",
		})
		return false, err
	}
	if err != nil {
		return false, err
	}

	merged := fmt.Sprintf("%s\n\n--- Synced from %s ---\n\n%s", target.Content, rule.SourceCategory, source.Content)
	conflict, err := s.detector.Detect(ctx, target, merged, target.Version)
	if err != nil {
		return false, err
	}
	if conflict != nil {
		s.log.Warn().
			Str("rule_id", rule.ID).
			Str("file_key", source.FileKey).
			Str("conflict_id", conflict.ID).
			Msg("merge conflict detected, skipping file")
		return true, nil
	}

	summary := fmt.Sprintf("Merged from %s", rule.SourceCategory)
	_, err = s.writer.Overwrite(ctx, target.ID, merged, summary, "sync-engine")
	return false, err
}

func targetFileKey(target domain.Category, sourceKey string) string {
	return fmt.Sprintf("%s_%s", target, sourceKey)
}

func syncMetadata(source *domain.KnowledgeFile, at time.Time) map[string]any {
	meta := make(map[string]any, len(source.Metadata)+2)
	for k, v := range source.Metadata {
		meta[k] = v
	}
	meta["synced_from"] = source.ID
	meta["synced_at"] = at.Format(time.RFC3339)
	return meta
}
