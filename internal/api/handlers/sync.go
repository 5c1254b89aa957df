package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ckr-labs/roofkb/internal/api"
	"github.com/ckr-labs/roofkb/internal/domain"
	"github.com/ckr-labs/roofkb/internal/service"
)

type SyncService interface {
	CreateRule(ctx context.Context, input service.CreateSyncRuleInput) (*domain.SyncRule, error)
	ListRules(ctx context.Context) ([]*domain.SyncRule, error)
	SetRuleActive(ctx context.Context, id string, active bool) error
	ExecuteRule(ctx context.Context, ruleID string) (*service.SyncResult, error)
}

type SyncHandler struct {
	svc SyncService
}

func NewSyncHandler(svc SyncService) *SyncHandler {
	return &SyncHandler{svc: svc}
}

type CreateSyncRuleRequest struct {
	Name           string `json:"name"`
	SourceCategory string `json:"source_category"`
	TargetCategory string `json:"target_category"`
	Strategy       string `json:"strategy"`
	Priority       int    `json:"priority"`
}

type SyncRuleResponse struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	SourceCategory string `json:"source_category"`
	TargetCategory string `json:"target_category"`
	Strategy       string `json:"strategy"`
	Priority       int    `json:"priority"`
	Active         bool   `json:"active"`
	LastSync       string `json:"last_sync,omitempty"`
	CreatedAt      string `json:"created_at"`
}

func syncRuleToResponse(rule *domain.SyncRule) *SyncRuleResponse {
	resp := &SyncRuleResponse{
		ID:             rule.ID,
		Name:           rule.Name,
		SourceCategory: string(rule.SourceCategory),
		TargetCategory: string(rule.TargetCategory),
		Strategy:       string(rule.Strategy),
		Priority:       rule.Priority,
		Active:         rule.Active,
		CreatedAt:      rule.CreatedAt.Format(time.RFC3339),
	}
	if rule.LastSync != nil {
		resp.LastSync = rule.LastSync.Format(time.RFC3339)
	}
	return resp
}

func (h *SyncHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateSyncRuleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.Error(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		api.Error(w, http.StatusBadRequest, "name is required")
		return
	}

	rule, err := h.svc.CreateRule(r.Context(), service.CreateSyncRuleInput{
		Name:           req.Name,
		SourceCategory: domain.Category(req.SourceCategory),
		TargetCategory: domain.Category(req.TargetCategory),
		Strategy:       domain.SyncStrategy(req.Strategy),
		Priority:       req.Priority,
	})
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusCreated, syncRuleToResponse(rule))
}

func (h *SyncHandler) List(w http.ResponseWriter, r *http.Request) {
	rules, err := h.svc.ListRules(r.Context())
	if err != nil {
		api.HandleError(w, err)
		return
	}

	responses := make([]*SyncRuleResponse, len(rules))
	for i, rule := range rules {
		responses[i] = syncRuleToResponse(rule)
	}

	api.Success(w, http.StatusOK, responses)
}

func (h *SyncHandler) Run(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	result, err := h.svc.ExecuteRule(r.Context(), id)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	api.Success(w, http.StatusOK, result)
}

func (h *SyncHandler) Start(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, true)
}

func (h *SyncHandler) Stop(w http.ResponseWriter, r *http.Request) {
	h.setActive(w, r, false)
}

func (h *SyncHandler) setActive(w http.ResponseWriter, r *http.Request, active bool) {
	id := chi.URLParam(r, "id")
	if id == "" {
		api.Error(w, http.StatusBadRequest, "id is required")
		return
	}

	if err := h.svc.SetRuleActive(r.Context(), id, active); err != nil {
		api.HandleError(w, err)
		return
	}

	state := "stopped"
	if active {
		state = "started"
	}
	api.Success(w, http.StatusOK, map[string]string{"status": state})
}
