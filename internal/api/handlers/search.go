package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/ckr-labs/roofkb/internal/api"
	"github.com/ckr-labs/roofkb/internal/domain"
	"github.com/ckr-labs/roofkb/internal/service"
)

type SearchService interface {
	Search(ctx context.Context, input service.SearchInput) (*service.SearchOutput, error)
}

type SearchHandler struct {
	svc SearchService
}

func NewSearchHandler(svc SearchService) *SearchHandler {
	return &SearchHandler{svc: svc}
}

type SearchRequest struct {
	Query     string   `json:"query"`
	Threshold *float32 `json:"threshold,omitempty"`
	Limit     int      `json:"limit,omitempty"`
	Category  string   `json:"category,omitempty"`
}

type SearchResultResponse struct {
	ChunkID    string  `json:"chunk_id"`
	DocKey     string  `json:"doc_key"`
	Title      string  `json:"title"`
	Category   string  `json:"category"`
	Section    string  `json:"section,omitempty"`
	ChunkIndex int     `json:"chunk_index"`
	Content    string  `json:"content"`
	Similarity float32 `json:"similarity"`
	Citation   string  `json:"citation"`
}

type SearchResponse struct {
	Query     string                  `json:"query"`
	Results   []*SearchResultResponse `json:"results"`
	Context   string                  `json:"context"`
	Threshold float32                 `json:"threshold"`
}

func (h *SearchHandler) Search(w http.ResponseWriter, r *http.Request) {
	var req SearchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Query == "" {
		api.Error(w, http.StatusBadRequest, "query is required")
		return
	}

	output, err := h.svc.Search(r.Context(), service.SearchInput{
		Query:     req.Query,
		Threshold: req.Threshold,
		Limit:     req.Limit,
		Category:  domain.Category(req.Category),
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	results := make([]*SearchResultResponse, len(output.Results))
	for i, m := range output.Results {
		results[i] = &SearchResultResponse{
			ChunkID:    m.ChunkID,
			DocKey:     m.DocKey,
			Title:      m.Title,
			Category:   string(m.Category),
			Section:    m.Section,
			ChunkIndex: m.ChunkIndex,
			Content:    m.Content,
			Similarity: m.Similarity,
			Citation:   m.Citation,
		}
	}

	api.Success(w, http.StatusOK, SearchResponse{
		Query:     output.Query,
		Results:   results,
		Context:   output.Context,
		Threshold: output.Threshold,
	})
}
