// Package docs handles HR document intake: bodies go to object storage,
// metadata and a searchable content mirror go to PostgreSQL.
package docs

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/sanadhr/askhr-backend/internal/middleware"
	"github.com/sanadhr/askhr-backend/internal/models"
)

// MetadataStore persists document rows and serves lookups.
type MetadataStore interface {
	InsertDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, tenantID, id string) (*models.Document, error)
	ListDocuments(ctx context.Context, tenantID string) ([]models.Document, error)
}

// FileStore keeps document bodies in object storage.
type FileStore interface {
	Bucket() string
	Upload(ctx context.Context, path string, data []byte, contentType string) error
	Remove(ctx context.Context, path string) error
}

type Handler struct {
	meta     MetadataStore
	files    FileStore
	validate *validator.Validate
}

func NewHandler(meta MetadataStore, files FileStore) *Handler {
	return &Handler{meta: meta, files: files, validate: validator.New()}
}

// Create handles POST /api/v1/documents.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateDocumentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, "title and content are required")
		return
	}

	ctx := r.Context()
	tenantID := middleware.TenantID(ctx)
	id := uuid.New().String()
	path := tenantID + "/" + id + ".txt"

	if err := h.files.Upload(ctx, path, []byte(req.Content), "text/plain; charset=utf-8"); err != nil {
		log.Error().Err(err).Str("path", path).Msg("failed to upload document body")
		writeError(w, http.StatusInternalServerError, "failed to store document")
		return
	}

	doc := &models.Document{
		ID:            id,
		TenantID:      tenantID,
		Title:         req.Title,
		Portal:        req.Portal,
		DocType:       req.DocType,
		StorageBucket: h.files.Bucket(),
		StoragePath:   path,
		Content:       req.Content,
	}
	if err := h.meta.InsertDocument(ctx, doc); err != nil {
		log.Error().Err(err).Str("doc_id", id).Msg("failed to index document")
		// best effort: don't leave an orphaned object behind
		if rmErr := h.files.Remove(ctx, path); rmErr != nil {
			log.Warn().Err(rmErr).Str("path", path).Msg("failed to remove orphaned object")
		}
		writeError(w, http.StatusInternalServerError, "failed to index document")
		return
	}

	writeJSON(w, http.StatusCreated, doc)
}

// Get handles GET /api/v1/documents/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())
	id := chi.URLParam(r, "id")

	doc, err := h.meta.GetDocument(r.Context(), tenantID, id)
	if err != nil {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// List handles GET /api/v1/documents.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	tenantID := middleware.TenantID(r.Context())

	docs, err := h.meta.ListDocuments(r.Context(), tenantID)
	if err != nil {
		log.Error().Err(err).Msg("failed to list documents")
		writeError(w, http.StatusInternalServerError, "failed to list documents")
		return
	}
	if docs == nil {
		docs = []models.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
