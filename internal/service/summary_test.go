package service

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/ckr-labs/roofkb/internal/ai"
	"github.com/ckr-labs/roofkb/internal/domain"
)

// MockSearcher is a mock implementation of Searcher
type MockSearcher struct {
	mock.Mock
}

func (m *MockSearcher) Search(ctx context.Context, input SearchInput) (*SearchOutput, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SearchOutput), args.Error(1)
}

// MockMetricsRepository is a mock implementation of MetricsRepository
type MockMetricsRepository struct {
	mock.Mock
}

func (m *MockMetricsRepository) QuoteStatusCounts(ctx context.Context, since time.Time) (map[string]int, error) {
	args := m.Called(ctx, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int), args.Error(1)
}

func (m *MockMetricsRepository) RecentInspections(ctx context.Context, limit int) ([]domain.InspectionSummary, int, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]domain.InspectionSummary), args.Int(1), args.Error(2)
}

func (m *MockMetricsRepository) RecentQuotes(ctx context.Context, limit int) ([]domain.QuoteSummary, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.QuoteSummary), args.Error(1)
}

func newTestSummaryService(search *MockSearcher, completion *MockCompletionClient, metrics *MockMetricsRepository, files *MockFileRepository) *SummaryService {
	var c CompletionClient
	if completion != nil {
		c = completion
	}
	var mr MetricsRepository
	if metrics != nil {
		mr = metrics
	}
	svc := NewSummaryService(search, c, mr, files, zerolog.Nop())
	svc.WithClock(func() time.Time { return time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC) })
	return svc
}

func sopsSearchOutput() *SearchOutput {
	return &SearchOutput{
		Results: []*domain.ChunkMatch{
			{Citation: "[safety_sop]", Content: "Always wear a harness above two storeys."},
			{Citation: "[tearoff_sop]", Content: "Strip from the ridge downward."},
		},
		Context: "Always wear a harness above two storeys.\n\n--- Document Separator ---\n\nStrip from the ridge downward.",
	}
}

func TestSummaryService_Summarize(t *testing.T) {
	ctx := context.Background()

	t.Run("generates a summary from retrieved passages", func(t *testing.T) {
		search := new(MockSearcher)
		completion := new(MockCompletionClient)
		files := new(MockFileRepository)
		svc := newTestSummaryService(search, completion, nil, files)

		search.On("Search", mock.Anything, mock.MatchedBy(func(in SearchInput) bool {
			return in.Category == domain.CategorySOPs &&
				in.Query == categoryQueries[domain.CategorySOPs] &&
				in.Threshold != nil && *in.Threshold == summaryThreshold &&
				in.Limit == summaryLimit
		})).Return(sopsSearchOutput(), nil)
		files.On("ListByCategory", mock.Anything, domain.CategorySOPs).Return([]*domain.KnowledgeFile{
			{FileKey: "safety_sop", Title: "Safety SOP", Active: true},
			{FileKey: "tearoff_sop", Title: "Tear-Off SOP", Active: true},
		}, nil)
		completion.On("Complete", mock.Anything, mock.Anything, mock.MatchedBy(func(history []ai.Message) bool {
			return len(history) == 1 &&
				!strings.Contains(history[0].Content, "No knowledge base content found")
		}), float32(0.5)).Return("## Overview\nTwo SOPs cover safety and tear-off.", nil)

		out, err := svc.Summarize(ctx, domain.CategorySOPs)

		require.NoError(t, err)
		assert.Equal(t, domain.CategorySOPs, out.Category)
		assert.Contains(t, out.Summary, "Overview")
		assert.Equal(t, 2, out.FileCount)
		assert.Equal(t, 2, out.ChunksUsed)
		assert.Equal(t, time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC), out.GeneratedAt)
	})

	t.Run("empty retrieval still summarizes with a placeholder", func(t *testing.T) {
		search := new(MockSearcher)
		completion := new(MockCompletionClient)
		files := new(MockFileRepository)
		svc := newTestSummaryService(search, completion, nil, files)

		search.On("Search", mock.Anything, mock.Anything).Return(&SearchOutput{}, nil)
		files.On("ListByCategory", mock.Anything, domain.CategoryGeneral).Return([]*domain.KnowledgeFile{}, nil)
		completion.On("Complete", mock.Anything, mock.Anything, mock.MatchedBy(func(history []ai.Message) bool {
			return strings.Contains(history[0].Content, "No knowledge base content found") &&
				strings.Contains(history[0].Content, "(none)")
		}), float32(0.5)).Return("Nothing here yet.", nil)

		out, err := svc.Summarize(ctx, domain.CategoryGeneral)

		require.NoError(t, err)
		assert.Equal(t, 0, out.FileCount)
		assert.Equal(t, 0, out.ChunksUsed)
	})

	t.Run("quotes summaries include status counts", func(t *testing.T) {
		search := new(MockSearcher)
		completion := new(MockCompletionClient)
		metrics := new(MockMetricsRepository)
		files := new(MockFileRepository)
		svc := newTestSummaryService(search, completion, metrics, files)

		search.On("Search", mock.Anything, mock.Anything).Return(sopsSearchOutput(), nil)
		files.On("ListByCategory", mock.Anything, domain.CategoryQuotes).Return([]*domain.KnowledgeFile{}, nil)
		metrics.On("QuoteStatusCounts", mock.Anything, mock.MatchedBy(func(since time.Time) bool {
			return since.Equal(time.Date(2026, 2, 13, 12, 0, 0, 0, time.UTC))
		})).Return(map[string]int{"draft": 3, "sent": 7}, nil)
		completion.On("Complete", mock.Anything, mock.Anything, mock.MatchedBy(func(history []ai.Message) bool {
			return strings.Contains(history[0].Content, "Quote status counts") &&
				strings.Contains(history[0].Content, "sent: 7")
		}), float32(0.5)).Return("summary", nil)

		_, err := svc.Summarize(ctx, domain.CategoryQuotes)

		require.NoError(t, err)
		metrics.AssertExpectations(t)
	})

	t.Run("metrics failure degrades to a placeholder", func(t *testing.T) {
		search := new(MockSearcher)
		completion := new(MockCompletionClient)
		metrics := new(MockMetricsRepository)
		files := new(MockFileRepository)
		svc := newTestSummaryService(search, completion, metrics, files)

		search.On("Search", mock.Anything, mock.Anything).Return(sopsSearchOutput(), nil)
		files.On("ListByCategory", mock.Anything, domain.CategoryInspections).Return([]*domain.KnowledgeFile{}, nil)
		metrics.On("RecentInspections", mock.Anything, 5).Return(nil, 0, errors.New("table missing"))
		completion.On("Complete", mock.Anything, mock.Anything, mock.MatchedBy(func(history []ai.Message) bool {
			return strings.Contains(history[0].Content, "No operational data available")
		}), float32(0.5)).Return("summary", nil)

		_, err := svc.Summarize(ctx, domain.CategoryInspections)

		require.NoError(t, err)
	})

	t.Run("rejects unknown category", func(t *testing.T) {
		svc := newTestSummaryService(new(MockSearcher), new(MockCompletionClient), nil, new(MockFileRepository))

		out, err := svc.Summarize(ctx, domain.Category("bogus"))

		require.Error(t, err)
		assert.Nil(t, out)
		assert.Equal(t, domain.ErrInvalidCategory, err)
	})

	t.Run("requires the completion provider", func(t *testing.T) {
		svc := newTestSummaryService(new(MockSearcher), nil, nil, new(MockFileRepository))

		out, err := svc.Summarize(ctx, domain.CategorySOPs)

		require.Error(t, err)
		assert.Nil(t, out)
		assert.Contains(t, err.Error(), "completion provider not configured")
	})

	t.Run("retrieval failure propagates", func(t *testing.T) {
		search := new(MockSearcher)
		completion := new(MockCompletionClient)
		svc := newTestSummaryService(search, completion, nil, new(MockFileRepository))

		search.On("Search", mock.Anything, mock.Anything).Return(nil, errors.New("embedding down"))

		out, err := svc.Summarize(ctx, domain.CategorySOPs)

		require.Error(t, err)
		assert.Nil(t, out)
		completion.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("completion failure is wrapped", func(t *testing.T) {
		search := new(MockSearcher)
		completion := new(MockCompletionClient)
		files := new(MockFileRepository)
		svc := newTestSummaryService(search, completion, nil, files)

		search.On("Search", mock.Anything, mock.Anything).Return(sopsSearchOutput(), nil)
		files.On("ListByCategory", mock.Anything, domain.CategorySOPs).Return([]*domain.KnowledgeFile{}, nil)
		completion.On("Complete", mock.Anything, mock.Anything, mock.Anything, float32(0.5)).Return("", errors.New("provider down"))

		out, err := svc.Summarize(ctx, domain.CategorySOPs)

		require.Error(t, err)
		assert.Nil(t, out)
		assert.Contains(t, err.Error(), "summary generation failed")
	})
}

func TestFormatFileList(t *testing.T) {
	t.Run("skips inactive files", func(t *testing.T) {
		files := []*domain.KnowledgeFile{
			{FileKey: "live", Title: "Live", Active: true},
			{FileKey: "dead", Title: "Dead", Active: false},
		}
		out := formatFileList(files)
		assert.Contains(t, out, "Live")
		assert.NotContains(t, out, "Dead")
	})

	t.Run("empty inventory", func(t *testing.T) {
		assert.Equal(t, "(none)", formatFileList(nil))
	})
}

