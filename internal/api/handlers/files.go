package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ckr-labs/roofkb/internal/api"
	"github.com/ckr-labs/roofkb/internal/api/middleware"
	"github.com/ckr-labs/roofkb/internal/domain"
	"github.com/ckr-labs/roofkb/internal/service"
)

type FileService interface {
	Create(ctx context.Context, input service.CreateFileInput) (*domain.KnowledgeFile, error)
	Get(ctx context.Context, idOrKey string) (*service.FileDetail, error)
	List(ctx context.Context, input service.ListFilesInput) (*service.ListFilesOutput, error)
	GetVersions(ctx context.Context, fileID string) ([]*domain.FileVersion, error)
	GetVersion(ctx context.Context, fileID string, versionNumber int64) (*domain.FileVersion, error)
	Update(ctx context.Context, input service.UpdateFileInput) (*service.UpdateResult, error)
	Deactivate(ctx context.Context, id string) (*domain.KnowledgeFile, error)
	ReEmbed(ctx context.Context, id string) error
}

type FileHandler struct {
	svc FileService
}

func NewFileHandler(svc FileService) *FileHandler {
	return &FileHandler{svc: svc}
}

type CreateFileRequest struct {
	FileKey  string         `json:"file_key"`
	Title    string         `json:"title"`
	Category string         `json:"category"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata"`
}

type UpdateFileRequest struct {
	Title         string         `json:"title"`
	Category      string         `json:"category"`
	Content       string         `json:"content"`
	Metadata      map[string]any `json:"metadata"`
	BaseVersion   int64          `json:"base_version"`
	ChangeSummary string         `json:"change_summary"`
}

type FileResponse struct {
	ID        string         `json:"id"`
	FileKey   string         `json:"file_key"`
	Title     string         `json:"title"`
	Category  string         `json:"category"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Version   int64          `json:"version"`
	Active    bool           `json:"active"`
	CreatedAt string         `json:"created_at"`
	UpdatedAt string         `json:"updated_at"`
}

type VersionResponse struct {
	ID            string `json:"id"`
	FileID        string `json:"file_id"`
	VersionNumber int64  `json:"version_number"`
	Content       string `json:"content"`
	ChangeSummary string `json:"change_summary,omitempty"`
	ChangedBy     string `json:"changed_by,omitempty"`
	CreatedAt     string `json:"created_at"`
}

type FileDetailResponse struct {
	File       *FileResponse      `json:"file"`
	Versions   []*VersionResponse `json:"versions"`
	ChunkCount int                `json:"chunk_count"`
}

type UpdateFileResponse struct {
	File     *FileResponse     `json:"file"`
	Version  *VersionResponse  `json:"version,omitempty"`
	Conflict *ConflictResponse `json:"conflict,omitempty"`
}

func fileToResponse(f *domain.KnowledgeFile) *FileResponse {
	return &FileResponse{
		ID:        f.ID,
		FileKey:   f.FileKey,
		Title:     f.Title,
		Category:  string(f.Category),
		Content:   f.Content,
		Metadata:  f.Metadata,
		Version:   f.Version,
		Active:    f.Active,
		CreatedAt: f.CreatedAt.Format(time.RFC3339),
		UpdatedAt: f.UpdatedAt.Format(time.RFC3339),
	}
}

func versionToResponse(v *domain.FileVersion) *VersionResponse {
	return &VersionResponse{
		ID:            v.ID,
		FileID:        v.FileID,
		VersionNumber: v.VersionNumber,
		Content:       v.Content,
		ChangeSummary: v.ChangeSummary,
		ChangedBy:     v.ChangedBy,
		CreatedAt:     v.CreatedAt.Format(time.RFC3339),
	}
}

func (h *FileHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Title == "" {
		api.Error(w, http.StatusBadRequest, "title is required")
		return
	}
	if req.Content == "" {
		api.Error(w, http.StatusBadRequest, "content is required")
		return
	}
	if !domain.IsValidCategory(domain.Category(req.Category)) {
		api.Error(w, http.StatusBadRequest, "invalid category")
		return
	}

	file, err := h.svc.Create(r.Context(), service.CreateFileInput{
		FileKey:   req.FileKey,
		Title:     req.Title,
		Category:  domain.Category(req.Category),
		Content:   req.Content,
		Metadata:  req.Metadata,
		ChangedBy: middleware.GetActor(r.Context()),
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, fileToResponse(file))
}

func (h *FileHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	detail, err := h.svc.Get(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	versions := make([]*VersionResponse, len(detail.Versions))
	for i, v := range detail.Versions {
		versions[i] = versionToResponse(v)
	}

	api.Success(w, http.StatusOK, FileDetailResponse{
		File:       fileToResponse(detail.File),
		Versions:   versions,
		ChunkCount: detail.ChunkCount,
	})
}

type FileListResponse struct {
	Items   []*FileResponse `json:"items"`
	Cursor  string          `json:"cursor,omitempty"`
	HasMore bool            `json:"has_more"`
}

func (h *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	category := r.URL.Query().Get("category")
	cursor := r.URL.Query().Get("cursor")
	limitStr := r.URL.Query().Get("limit")
	limit := 20
	if limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	output, err := h.svc.List(r.Context(), service.ListFilesInput{
		Category: domain.Category(category),
		Cursor:   cursor,
		Limit:    limit,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*FileResponse, len(output.Items))
	for i, f := range output.Items {
		responses[i] = fileToResponse(f)
	}

	api.Success(w, http.StatusOK, FileListResponse{
		Items:   responses,
		Cursor:  output.Cursor,
		HasMore: output.HasMore,
	})
}

func (h *FileHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	var req UpdateFileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Content == "" {
		api.Error(w, http.StatusBadRequest, "content is required")
		return
	}

	result, err := h.svc.Update(r.Context(), service.UpdateFileInput{
		FileID:        id,
		BaseVersion:   req.BaseVersion,
		Title:         req.Title,
		Category:      domain.Category(req.Category),
		Content:       req.Content,
		Metadata:      req.Metadata,
		ChangeSummary: req.ChangeSummary,
		ChangedBy:     middleware.GetActor(r.Context()),
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	resp := UpdateFileResponse{File: fileToResponse(result.File)}
	if result.Version != nil {
		resp.Version = versionToResponse(result.Version)
	}
	if result.Conflict != nil {
		resp.Conflict = conflictToResponse(result.Conflict)
		// The write did not happen; the caller must resolve the conflict.
		api.Success(w, http.StatusConflict, resp)
		return
	}

	api.Success(w, http.StatusOK, resp)
}

func (h *FileHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	file, err := h.svc.Deactivate(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, fileToResponse(file))
}

func (h *FileHandler) ReEmbed(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.ReEmbed(r.Context(), id); err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusAccepted, map[string]string{"status": "queued"})
}

func (h *FileHandler) Versions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	versions, err := h.svc.GetVersions(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*VersionResponse, len(versions))
	for i, v := range versions {
		responses[i] = versionToResponse(v)
	}

	api.Success(w, http.StatusOK, responses)
}

func (h *FileHandler) Version(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	number, err := strconv.ParseInt(chi.URLParam(r, "number"), 10, 64)
	if err != nil || number < 1 {
		api.Error(w, http.StatusBadRequest, "invalid version number")
		return
	}

	version, err := h.svc.GetVersion(r.Context(), id, number)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, versionToResponse(version))
}
