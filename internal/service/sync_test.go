package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ckr-labs/roofkb/internal/domain"
)

// MockSyncRuleRepository is a mock implementation of SyncRuleRepository
type MockSyncRuleRepository struct {
	mock.Mock
}

func (m *MockSyncRuleRepository) Create(ctx context.Context, rule *domain.SyncRule) error {
	args := m.Called(ctx, rule)
	return args.Error(0)
}

func (m *MockSyncRuleRepository) GetByID(ctx context.Context, id string) (*domain.SyncRule, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SyncRule), args.Error(1)
}

func (m *MockSyncRuleRepository) ListActive(ctx context.Context) ([]*domain.SyncRule, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.SyncRule), args.Error(1)
}

func (m *MockSyncRuleRepository) List(ctx context.Context) ([]*domain.SyncRule, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.SyncRule), args.Error(1)
}

func (m *MockSyncRuleRepository) SetActive(ctx context.Context, id string, active bool) error {
	args := m.Called(ctx, id, active)
	return args.Error(0)
}

func (m *MockSyncRuleRepository) UpdateLastSync(ctx context.Context, id string, at time.Time) error {
	args := m.Called(ctx, id, at)
	return args.Error(0)
}

// MockSyncFileWriter is a mock implementation of SyncFileWriter
type MockSyncFileWriter struct {
	mock.Mock
}

func (m *MockSyncFileWriter) Create(ctx context.Context, input CreateFileInput) (*domain.KnowledgeFile, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeFile), args.Error(1)
}

func (m *MockSyncFileWriter) Overwrite(ctx context.Context, fileID, content, changeSummary, changedBy string) (*domain.KnowledgeFile, error) {
	args := m.Called(ctx, fileID, content, changeSummary, changedBy)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.KnowledgeFile), args.Error(1)
}

func newTestSyncService(rules *MockSyncRuleRepository, reader *MockFileRepository, writer *MockSyncFileWriter, detector *MockConflictWorkflow) *SyncService {
	var d ConflictDetector
	if detector != nil {
		d = detector
	}
	svc := NewSyncService(rules, reader, writer, d, zerolog.Nop())
	svc.WithClock(func() time.Time { return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC) })
	return svc
}

func mirrorRule() *domain.SyncRule {
	return &domain.SyncRule{
		ID:             "rule-1",
		Name:           "sops to operations",
		SourceCategory: domain.CategorySOPs,
		TargetCategory: domain.CategoryOperations,
		Strategy:       domain.SyncStrategyMirror,
		Active:         true,
	}
}

func TestSyncService_CreateRule(t *testing.T) {
	ctx := context.Background()

	t.Run("creates an active rule", func(t *testing.T) {
		rules := new(MockSyncRuleRepository)
		svc := newTestSyncService(rules, new(MockFileRepository), new(MockSyncFileWriter), nil)
		svc.WithUUIDGen(NewMockUUIDGenerator("rule-1"))

		rules.On("Create", mock.Anything, mock.MatchedBy(func(r *domain.SyncRule) bool {
			return r.ID == "rule-1" && r.Active && r.Strategy == domain.SyncStrategyMerge
		})).Return(nil)

		rule, err := svc.CreateRule(ctx, CreateSyncRuleInput{
			Name:           "pricing to quotes",
			SourceCategory: domain.CategoryPricing,
			TargetCategory: domain.CategoryQuotes,
			Strategy:       domain.SyncStrategyMerge,
			Priority:       5,
		})

		require.NoError(t, err)
		assert.True(t, rule.Active)
		rules.AssertExpectations(t)
	})

	t.Run("rejects identical source and target", func(t *testing.T) {
		svc := newTestSyncService(new(MockSyncRuleRepository), new(MockFileRepository), new(MockSyncFileWriter), nil)

		rule, err := svc.CreateRule(ctx, CreateSyncRuleInput{
			Name:           "self sync",
			SourceCategory: domain.CategorySOPs,
			TargetCategory: domain.CategorySOPs,
			Strategy:       domain.SyncStrategyMirror,
		})

		require.Error(t, err)
		assert.Nil(t, rule)
		assert.Contains(t, err.Error(), "must differ")
	})

	t.Run("rejects unknown strategy", func(t *testing.T) {
		svc := newTestSyncService(new(MockSyncRuleRepository), new(MockFileRepository), new(MockSyncFileWriter), nil)

		rule, err := svc.CreateRule(ctx, CreateSyncRuleInput{
			Name:           "bad strategy",
			SourceCategory: domain.CategorySOPs,
			TargetCategory: domain.CategoryOperations,
			Strategy:       domain.SyncStrategy("replicate"),
		})

		require.Error(t, err)
		assert.Nil(t, rule)
	})
}

func TestSyncService_ExecuteRule_Mirror(t *testing.T) {
	ctx := context.Background()

	t.Run("creates missing target copies", func(t *testing.T) {
		rules := new(MockSyncRuleRepository)
		reader := new(MockFileRepository)
		writer := new(MockSyncFileWriter)
		svc := newTestSyncService(rules, reader, writer, nil)

		source := &domain.KnowledgeFile{ID: "src-1", FileKey: "pitch_guide", Title: "Pitch Guide", Category: domain.CategorySOPs, Content: "body", Active: true}

		rules.On("GetByID", mock.Anything, "rule-1").Return(mirrorRule(), nil)
		reader.On("ListByCategory", mock.Anything, domain.CategorySOPs).Return([]*domain.KnowledgeFile{source}, nil)
		reader.On("GetByKey", mock.Anything, "operations_pitch_guide").Return(nil, domain.ErrFileNotFound)
		writer.On("Create", mock.Anything, mock.MatchedBy(func(in CreateFileInput) bool {
			return in.FileKey == "operations_pitch_guide" &&
				in.Category == domain.CategoryOperations &&
				in.Content == "body" &&
				in.ChangedBy == "sync-engine" &&
				in.Metadata["synced_from"] == "src-1"
		})).Return(&domain.KnowledgeFile{ID: "tgt-1"}, nil)
		rules.On("UpdateLastSync", mock.Anything, "rule-1", mock.Anything).Return(nil)

		result, err := svc.ExecuteRule(ctx, "rule-1")

		require.NoError(t, err)
		assert.Equal(t, 1, result.Synced)
		assert.Equal(t, 0, result.Skipped)
		assert.Empty(t, result.Errors)
		writer.AssertExpectations(t)
	})

	t.Run("overwrites existing target copies", func(t *testing.T) {
		rules := new(MockSyncRuleRepository)
		reader := new(MockFileRepository)
		writer := new(MockSyncFileWriter)
		svc := newTestSyncService(rules, reader, writer, nil)

		source := &domain.KnowledgeFile{ID: "src-1", FileKey: "pitch_guide", Title: "Pitch Guide", Category: domain.CategorySOPs, Content: "updated body", Active: true}
		target := &domain.KnowledgeFile{ID: "tgt-1", FileKey: "operations_pitch_guide", Content: "stale body", Active: true}

		rules.On("GetByID", mock.Anything, "rule-1").Return(mirrorRule(), nil)
		reader.On("ListByCategory", mock.Anything, domain.CategorySOPs).Return([]*domain.KnowledgeFile{source}, nil)
		reader.On("GetByKey", mock.Anything, "operations_pitch_guide").Return(target, nil)
		writer.On("Overwrite", mock.Anything, "tgt-1", "updated body", "Mirrored from sops", "sync-engine").Return(target, nil)
		rules.On("UpdateLastSync", mock.Anything, "rule-1", mock.Anything).Return(nil)

		result, err := svc.ExecuteRule(ctx, "rule-1")

		require.NoError(t, err)
		assert.Equal(t, 1, result.Synced)
		writer.AssertExpectations(t)
	})

	t.Run("skips inactive source files", func(t *testing.T) {
		rules := new(MockSyncRuleRepository)
		reader := new(MockFileRepository)
		writer := new(MockSyncFileWriter)
		svc := newTestSyncService(rules, reader, writer, nil)

		inactive := &domain.KnowledgeFile{ID: "src-1", FileKey: "old_sop", Active: false}

		rules.On("GetByID", mock.Anything, "rule-1").Return(mirrorRule(), nil)
		reader.On("ListByCategory", mock.Anything, domain.CategorySOPs).Return([]*domain.KnowledgeFile{inactive}, nil)
		rules.On("UpdateLastSync", mock.Anything, "rule-1", mock.Anything).Return(nil)

		result, err := svc.ExecuteRule(ctx, "rule-1")

		require.NoError(t, err)
		assert.Equal(t, 0, result.Synced)
		writer.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		writer.AssertNotCalled(t, "Overwrite", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("collects per-file errors and continues", func(t *testing.T) {
		rules := new(MockSyncRuleRepository)
		reader := new(MockFileRepository)
		writer := new(MockSyncFileWriter)
		svc := newTestSyncService(rules, reader, writer, nil)

		fileA := &domain.KnowledgeFile{ID: "src-a", FileKey: "a", Title: "A", Category: domain.CategorySOPs, Content: "a", Active: true}
		fileB := &domain.KnowledgeFile{ID: "src-b", FileKey: "b", Title: "B", Category: domain.CategorySOPs, Content: "b", Active: true}

		rules.On("GetByID", mock.Anything, "rule-1").Return(mirrorRule(), nil)
		reader.On("ListByCategory", mock.Anything, domain.CategorySOPs).Return([]*domain.KnowledgeFile{fileA, fileB}, nil)
		reader.On("GetByKey", mock.Anything, "operations_a").Return(nil, errors.New("database error"))
		reader.On("GetByKey", mock.Anything, "operations_b").Return(nil, domain.ErrFileNotFound)
		writer.On("Create", mock.Anything, mock.Anything).Return(&domain.KnowledgeFile{ID: "tgt-b"}, nil)
		rules.On("UpdateLastSync", mock.Anything, "rule-1", mock.Anything).Return(nil)

		result, err := svc.ExecuteRule(ctx, "rule-1")

		require.NoError(t, err)
		assert.Equal(t, 1, result.Synced)
		require.Len(t, result.Errors, 1)
		assert.Contains(t, result.Errors[0], "a:")
	})

	t.Run("rejects inactive rule", func(t *testing.T) {
		rules := new(MockSyncRuleRepository)
		svc := newTestSyncService(rules, new(MockFileRepository), new(MockSyncFileWriter), nil)

		stopped := mirrorRule()
		stopped.Active = false
		rules.On("GetByID", mock.Anything, "rule-1").Return(stopped, nil)

		result, err := svc.ExecuteRule(ctx, "rule-1")

		require.Error(t, err)
		assert.Nil(t, result)
		assert.Equal(t, domain.ErrSyncRuleInactive, err)
	})
}

func TestSyncService_ExecuteRule_Merge(t *testing.T) {
	ctx := context.Background()

	mergeRule := func() *domain.SyncRule {
		r := mirrorRule()
		r.Strategy = domain.SyncStrategyMerge
		return r
	}

	t.Run("concatenates source onto existing target", func(t *testing.T) {
		rules := new(MockSyncRuleRepository)
		reader := new(MockFileRepository)
		writer := new(MockSyncFileWriter)
		detector := new(MockConflictWorkflow)
		svc := newTestSyncService(rules, reader, writer, detector)

		source := &domain.KnowledgeFile{ID: "src-1", FileKey: "pitch_guide", Title: "Pitch Guide", Category: domain.CategorySOPs, Content: "source body", Active: true}
		target := &domain.KnowledgeFile{ID: "tgt-1", FileKey: "operations_pitch_guide", Content: "target body", Version: 2, Active: true}
		wantMerged := "target body\n\n--- Synced from sops ---\n\nsource body"

		rules.On("GetByID", mock.Anything, "rule-1").Return(mergeRule(), nil)
		reader.On("ListByCategory", mock.Anything, domain.CategorySOPs).Return([]*domain.KnowledgeFile{source}, nil)
		reader.On("GetByKey", mock.Anything, "operations_pitch_guide").Return(target, nil)
		detector.On("Detect", mock.Anything, target, wantMerged, int64(2)).Return(nil, nil)
		writer.On("Overwrite", mock.Anything, "tgt-1", wantMerged, "Merged from sops", "sync-engine").Return(target, nil)
		rules.On("UpdateLastSync", mock.Anything, "rule-1", mock.Anything).Return(nil)

		result, err := svc.ExecuteRule(ctx, "rule-1")

		require.NoError(t, err)
		assert.Equal(t, 1, result.Synced)
		writer.AssertExpectations(t)
		detector.AssertExpectations(t)
	})

	t.Run("skips conflicted targets without overwriting", func(t *testing.T) {
		rules := new(MockSyncRuleRepository)
		reader := new(MockFileRepository)
		writer := new(MockSyncFileWriter)
		detector := new(MockConflictWorkflow)
		svc := newTestSyncService(rules, reader, writer, detector)

		source := &domain.KnowledgeFile{ID: "src-1", FileKey: "pitch_guide", Title: "Pitch Guide", Category: domain.CategorySOPs, Content: "contradictory body", Active: true}
		target := &domain.KnowledgeFile{ID: "tgt-1", FileKey: "operations_pitch_guide", Content: "target body", Version: 2, Active: true}
		pending := &domain.Conflict{ID: "conflict-1", FileID: "tgt-1", Status: domain.ConflictStatusPending}

		rules.On("GetByID", mock.Anything, "rule-1").Return(mergeRule(), nil)
		reader.On("ListByCategory", mock.Anything, domain.CategorySOPs).Return([]*domain.KnowledgeFile{source}, nil)
		reader.On("GetByKey", mock.Anything, "operations_pitch_guide").Return(target, nil)
		detector.On("Detect", mock.Anything, target, mock.Anything, int64(2)).Return(pending, nil)
		rules.On("UpdateLastSync", mock.Anything, "rule-1", mock.Anything).Return(nil)

		result, err := svc.ExecuteRule(ctx, "rule-1")

		require.NoError(t, err)
		assert.Equal(t, 0, result.Synced)
		assert.Equal(t, 1, result.Skipped)
		assert.Empty(t, result.Errors)
		writer.AssertNotCalled(t, "Overwrite", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("creates missing targets without a conflict check", func(t *testing.T) {
		rules := new(MockSyncRuleRepository)
		reader := new(MockFileRepository)
		writer := new(MockSyncFileWriter)
		detector := new(MockConflictWorkflow)
		svc := newTestSyncService(rules, reader, writer, detector)

		source := &domain.KnowledgeFile{ID: "src-1", FileKey: "pitch_guide", Title: "Pitch Guide", Category: domain.CategorySOPs, Content: "source body", Active: true}

		rules.On("GetByID", mock.Anything, "rule-1").Return(mergeRule(), nil)
		reader.On("ListByCategory", mock.Anything, domain.CategorySOPs).Return([]*domain.KnowledgeFile{source}, nil)
		reader.On("GetByKey", mock.Anything, "operations_pitch_guide").Return(nil, domain.ErrFileNotFound)
		writer.On("Create", mock.Anything, mock.Anything).Return(&domain.KnowledgeFile{ID: "tgt-1"}, nil)
		rules.On("UpdateLastSync", mock.Anything, "rule-1", mock.Anything).Return(nil)

		result, err := svc.ExecuteRule(ctx, "rule-1")

		require.NoError(t, err)
		assert.Equal(t, 1, result.Synced)
		detector.AssertNotCalled(t, "Detect", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestSyncService_ExecuteActive(t *testing.T) {
	ctx := context.Background()

	t.Run("runs every active rule and skips failing ones", func(t *testing.T) {
		rules := new(MockSyncRuleRepository)
		reader := new(MockFileRepository)
		writer := new(MockSyncFileWriter)
		svc := newTestSyncService(rules, reader, writer, nil)

		healthy := mirrorRule()
		broken := mirrorRule()
		broken.ID = "rule-2"

		rules.On("ListActive", mock.Anything).Return([]*domain.SyncRule{healthy, broken}, nil)
		rules.On("GetByID", mock.Anything, "rule-1").Return(healthy, nil)
		rules.On("GetByID", mock.Anything, "rule-2").Return(nil, errors.New("database error"))
		reader.On("ListByCategory", mock.Anything, domain.CategorySOPs).Return([]*domain.KnowledgeFile{}, nil)
		rules.On("UpdateLastSync", mock.Anything, "rule-1", mock.Anything).Return(nil)

		results, err := svc.ExecuteActive(ctx)

		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, "rule-1", results[0].RuleID)
		rules.AssertExpectations(t)
	})

	t.Run("propagates listing failure", func(t *testing.T) {
		rules := new(MockSyncRuleRepository)
		svc := newTestSyncService(rules, new(MockFileRepository), new(MockSyncFileWriter), nil)

		expectedErr := errors.New("database error")
		rules.On("ListActive", mock.Anything).Return(nil, expectedErr)

		results, err := svc.ExecuteActive(ctx)

		require.Error(t, err)
		assert.Nil(t, results)
		assert.Equal(t, expectedErr, err)
	})
}

func TestSyncService_SetRuleActive(t *testing.T) {
	ctx := context.Background()

	t.Run("stops an existing rule", func(t *testing.T) {
		rules := new(MockSyncRuleRepository)
		svc := newTestSyncService(rules, new(MockFileRepository), new(MockSyncFileWriter), nil)

		rules.On("GetByID", mock.Anything, "rule-1").Return(mirrorRule(), nil)
		rules.On("SetActive", mock.Anything, "rule-1", false).Return(nil)

		err := svc.SetRuleActive(ctx, "rule-1", false)

		require.NoError(t, err)
		rules.AssertExpectations(t)
	})

	t.Run("returns not found for unknown rule", func(t *testing.T) {
		rules := new(MockSyncRuleRepository)
		svc := newTestSyncService(rules, new(MockFileRepository), new(MockSyncFileWriter), nil)

		rules.On("GetByID", mock.Anything, "missing").Return(nil, domain.ErrSyncRuleNotFound)

		err := svc.SetRuleActive(ctx, "missing", true)

		require.Error(t, err)
		assert.Equal(t, domain.ErrSyncRuleNotFound, err)
		rules.AssertNotCalled(t, "SetActive", mock.Anything, mock.Anything, mock.Anything)
	})
}
