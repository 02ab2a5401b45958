// Package results serves read access to persisted answers and risk
// analyses.
package results

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/sanadhr/askhr-backend/internal/middleware"
	"github.com/sanadhr/askhr-backend/internal/models"
)

// Store reads persisted results, scoped by tenant.
type Store interface {
	ListAnswers(ctx context.Context, tenantID string) ([]models.AnswerRecord, error)
	GetAnswer(ctx context.Context, tenantID, id string) (*models.AnswerRecord, error)
	ListAnalyses(ctx context.Context, tenantID string) ([]models.RiskResult, error)
	GetAnalysis(ctx context.Context, tenantID, id string) (*models.RiskResult, error)
}

type Handler struct {
	store Store
}

func NewHandler(store Store) *Handler {
	return &Handler{store: store}
}

// ListAnswers handles GET /api/v1/answers.
func (h *Handler) ListAnswers(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())

	recs, err := h.store.ListAnswers(r.Context(), tenantID)
	if err != nil {
		log.Error().Err(err).Msg("failed to list answers")
		writeError(w, http.StatusInternalServerError, "failed to list answers")
		return
	}
	if recs == nil {
		recs = []models.AnswerRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"answers": recs})
}

// GetAnswer handles GET /api/v1/answers/{id}.
func (h *Handler) GetAnswer(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())
	id := chi.URLParam(r, "id")

	rec, err := h.store.GetAnswer(r.Context(), tenantID, id)
	if err != nil {
		writeError(w, http.StatusNotFound, "answer not found")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

// ListAnalyses handles GET /api/v1/analyses.
func (h *Handler) ListAnalyses(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())

	results, err := h.store.ListAnalyses(r.Context(), tenantID)
	if err != nil {
		log.Error().Err(err).Msg("failed to list analyses")
		writeError(w, http.StatusInternalServerError, "failed to list analyses")
		return
	}
	if results == nil {
		results = []models.RiskResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"analyses": results})
}

// GetAnalysis handles GET /api/v1/analyses/{id}.
func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())
	id := chi.URLParam(r, "id")

	result, err := h.store.GetAnalysis(r.Context(), tenantID, id)
	if err != nil {
		writeError(w, http.StatusNotFound, "analysis not found")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
