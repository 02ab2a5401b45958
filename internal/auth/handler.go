package auth

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog/log"
)

// TokenIssuer mints and revokes tenant-scoped API tokens.
type TokenIssuer interface {
	Issue(ctx context.Context, tenantID string) (string, error)
	Revoke(ctx context.Context, token string) error
}

// Handler provisions API tokens. Like the rest of the service this surface
// is demo-lenient: anyone can mint a token for a tenant id, isolation comes
// from the scope baked into the token, not from who requested it.
type Handler struct {
	tokens   TokenIssuer
	validate *validator.Validate
}

func NewHandler(tokens TokenIssuer) *Handler {
	return &Handler{tokens: tokens, validate: validator.New()}
}

type issueRequest struct {
	TenantID string `json:"tenant_id" validate:"required,max=64"`
}

// Issue handles POST /api/v1/tokens.
func (h *Handler) Issue(w http.ResponseWriter, r *http.Request) {
	var req issueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "tenant_id is required")
		return
	}

	token, err := h.tokens.Issue(r.Context(), req.TenantID)
	if err != nil {
		log.Error().Err(err).Str("tenant_id", req.TenantID).Msg("failed to issue token")
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"token":      token,
		"tenant_id":  req.TenantID,
		"expires_in": int(TokenTTL.Seconds()),
	})
}

// Revoke handles DELETE /api/v1/tokens/{token}.
func (h *Handler) Revoke(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")

	if err := h.tokens.Revoke(r.Context(), token); err != nil {
		log.Error().Err(err).Msg("failed to revoke token")
		writeError(w, http.StatusInternalServerError, "failed to revoke token")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
