package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ckr-labs/roofkb/internal/api"
	"github.com/ckr-labs/roofkb/internal/domain"
	"github.com/ckr-labs/roofkb/internal/service"
)

type SummaryService interface {
	Summarize(ctx context.Context, category domain.Category) (*service.CategorySummary, error)
}

type SummaryHandler struct {
	svc SummaryService
}

func NewSummaryHandler(svc SummaryService) *SummaryHandler {
	return &SummaryHandler{svc: svc}
}

type SummaryResponse struct {
	Category    string `json:"category"`
	Summary     string `json:"summary"`
	FileCount   int    `json:"file_count"`
	ChunksUsed  int    `json:"chunks_used"`
	GeneratedAt string `json:"generated_at"`
}

func (h *SummaryHandler) Get(w http.ResponseWriter, r *http.Request) {
	category := domain.Category(chi.URLParam(r, "category"))
	if !domain.IsValidCategory(category) {
		api.Error(w, http.StatusBadRequest, "invalid category")
		return
	}

	summary, err := h.svc.Summarize(r.Context(), category)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, SummaryResponse{
		Category:    string(summary.Category),
		Summary:     summary.Summary,
		FileCount:   summary.FileCount,
		ChunksUsed:  summary.ChunksUsed,
		GeneratedAt: summary.GeneratedAt.Format(time.RFC3339),
	})
}
