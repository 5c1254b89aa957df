package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ckr-labs/roofkb/internal/api"
	"github.com/ckr-labs/roofkb/internal/api/middleware"
	"github.com/ckr-labs/roofkb/internal/domain"
	"github.com/ckr-labs/roofkb/internal/service"
)

type ConflictService interface {
	GetByID(ctx context.Context, id string) (*domain.Conflict, error)
	ListByStatus(ctx context.Context, status domain.ConflictStatus) ([]*domain.Conflict, error)
	ListByFile(ctx context.Context, fileID string) ([]*domain.Conflict, error)
	Detect(ctx context.Context, file *domain.KnowledgeFile, proposed string, baseVersion int64) (*domain.Conflict, error)
}

type ConflictResolver interface {
	Get(ctx context.Context, idOrKey string) (*service.FileDetail, error)
	ResolveConflict(ctx context.Context, input service.ResolveConflictInput) (*domain.Conflict, error)
}

type ConflictHandler struct {
	svc   ConflictService
	files ConflictResolver
}

func NewConflictHandler(svc ConflictService, files ConflictResolver) *ConflictHandler {
	return &ConflictHandler{svc: svc, files: files}
}

type DetectConflictRequest struct {
	FileID          string `json:"file_id"`
	ProposedContent string `json:"proposed_content"`
	BaseVersion     int64  `json:"base_version"`
}

type ResolveConflictRequest struct {
	Strategy string `json:"strategy"`
}

type RecommendationResponse struct {
	Summary       string   `json:"summary"`
	Additions     []string `json:"additions,omitempty"`
	Deletions     []string `json:"deletions,omitempty"`
	Modifications []string `json:"modifications,omitempty"`
	Strategy      string   `json:"strategy"`
}

type ConflictResponse struct {
	ID              string                  `json:"id"`
	FileID          string                  `json:"file_id"`
	OriginalContent string                  `json:"original_content"`
	ProposedContent string                  `json:"proposed_content"`
	BaseVersion     int64                   `json:"base_version"`
	Recommendation  *RecommendationResponse `json:"recommendation,omitempty"`
	Status          string                  `json:"status"`
	Strategy        string                  `json:"strategy,omitempty"`
	ResolvedContent string                  `json:"resolved_content,omitempty"`
	ResolvedBy      string                  `json:"resolved_by,omitempty"`
	CreatedAt       string                  `json:"created_at"`
	ResolvedAt      string                  `json:"resolved_at,omitempty"`
}

func conflictToResponse(c *domain.Conflict) *ConflictResponse {
	resp := &ConflictResponse{
		ID:              c.ID,
		FileID:          c.FileID,
		OriginalContent: c.OriginalContent,
		ProposedContent: c.ProposedContent,
		BaseVersion:     c.BaseVersion,
		Status:          string(c.Status),
		Strategy:        string(c.Strategy),
		ResolvedContent: c.ResolvedContent,
		ResolvedBy:      c.ResolvedBy,
		CreatedAt:       c.CreatedAt.Format(time.RFC3339),
	}
	if c.Recommendation != nil {
		resp.Recommendation = &RecommendationResponse{
			Summary:       c.Recommendation.Summary,
			Additions:     c.Recommendation.Additions,
			Deletions:     c.Recommendation.Deletions,
			Modifications: c.Recommendation.Modifications,
			Strategy:      string(c.Recommendation.Strategy),
		}
	}
	if c.ResolvedAt != nil {
		resp.ResolvedAt = c.ResolvedAt.Format(time.RFC3339)
	}
	return resp
}

// Detect runs conflict detection for proposed content without committing
// anything. A nil conflict means the proposal can be written as-is.
func (h *ConflictHandler) Detect(w http.ResponseWriter, r *http.Request) {
	var req DetectConflictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.FileID == "" {
		api.Error(w, http.StatusBadRequest, "file_id is required")
		return
	}
	if req.ProposedContent == "" {
		api.Error(w, http.StatusBadRequest, "proposed_content is required")
		return
	}

	detail, err := h.files.Get(r.Context(), req.FileID)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	baseVersion := req.BaseVersion
	if baseVersion == 0 {
		baseVersion = detail.File.Version
	}

	conflict, err := h.svc.Detect(r.Context(), detail.File, req.ProposedContent, baseVersion)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	if conflict == nil {
		api.Success(w, http.StatusOK, map[string]any{"has_conflict": false})
		return
	}

	api.Success(w, http.StatusOK, map[string]any{
		"has_conflict": true,
		"conflict":     conflictToResponse(conflict),
	})
}

func (h *ConflictHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	conflict, err := h.svc.GetByID(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, conflictToResponse(conflict))
}

// List returns conflicts filtered by file_id when given, otherwise by
// status (pending by default).
func (h *ConflictHandler) List(w http.ResponseWriter, r *http.Request) {
	var conflicts []*domain.Conflict
	var err error

	if fileID := r.URL.Query().Get("file_id"); fileID != "" {
		conflicts, err = h.svc.ListByFile(r.Context(), fileID)
	} else {
		status := domain.ConflictStatus(r.URL.Query().Get("status"))
		if status == "" {
			status = domain.ConflictStatusPending
		}
		if status != domain.ConflictStatusPending && status != domain.ConflictStatusResolved {
			api.Error(w, http.StatusBadRequest, "invalid status")
			return
		}
		conflicts, err = h.svc.ListByStatus(r.Context(), status)
	}
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*ConflictResponse, len(conflicts))
	for i, c := range conflicts {
		responses[i] = conflictToResponse(c)
	}

	api.Success(w, http.StatusOK, responses)
}

func (h *ConflictHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	var req ResolveConflictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	strategy := domain.ResolutionStrategy(req.Strategy)
	if !domain.IsValidResolutionStrategy(strategy) {
		api.Error(w, http.StatusBadRequest, "invalid resolution strategy")
		return
	}

	conflict, err := h.files.ResolveConflict(r.Context(), service.ResolveConflictInput{
		ConflictID: id,
		Strategy:   strategy,
		ResolvedBy: middleware.GetActor(r.Context()),
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, conflictToResponse(conflict))
}
