package results

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanadhr/askhr-backend/internal/middleware"
	"github.com/sanadhr/askhr-backend/internal/models"
)

type fakeStore struct {
	answers  map[string]*models.AnswerRecord
	analyses map[string]*models.RiskResult
}

func (s *fakeStore) ListAnswers(ctx context.Context, tenantID string) ([]models.AnswerRecord, error) {
	var out []models.AnswerRecord
	for _, a := range s.answers {
		if a.TenantID == tenantID {
			out = append(out, *a)
		}
	}
	return out, nil
}

func (s *fakeStore) GetAnswer(ctx context.Context, tenantID, id string) (*models.AnswerRecord, error) {
	a, ok := s.answers[id]
	if !ok || a.TenantID != tenantID {
		return nil, errors.New("not found")
	}
	return a, nil
}

func (s *fakeStore) ListAnalyses(ctx context.Context, tenantID string) ([]models.RiskResult, error) {
	var out []models.RiskResult
	for _, r := range s.analyses {
		if r.TenantID == tenantID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (s *fakeStore) GetAnalysis(ctx context.Context, tenantID, id string) (*models.RiskResult, error) {
	r, ok := s.analyses[id]
	if !ok || r.TenantID != tenantID {
		return nil, errors.New("not found")
	}
	return r, nil
}

type nilResolver struct{}

func (nilResolver) Resolve(ctx context.Context, token string) (string, error) { return "", nil }

func router(h *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.ResolveTenant(nilResolver{}, "t1"))
	r.Get("/answers", h.ListAnswers)
	r.Get("/answers/{id}", h.GetAnswer)
	r.Get("/analyses", h.ListAnalyses)
	r.Get("/analyses/{id}", h.GetAnalysis)
	return r
}

func demoStore() *fakeStore {
	return &fakeStore{
		answers: map[string]*models.AnswerRecord{
			"a1": {RequestID: "a1", TenantID: "t1", Answer: "21 days", Source: models.SourceModel},
			"a2": {RequestID: "a2", TenantID: "other", Answer: "secret"},
		},
		analyses: map[string]*models.RiskResult{
			"r1": {RequestID: "r1", TenantID: "t1", Score: 82, RiskLevel: "high", Source: models.SourceModel},
		},
	}
}

func TestListAnswersScopedToTenant(t *testing.T) {
	h := NewHandler(demoStore())

	rec := httptest.NewRecorder()
	router(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/answers", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var payload struct {
		Answers []models.AnswerRecord `json:"answers"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&payload))
	require.Len(t, payload.Answers, 1)
	assert.Equal(t, "21 days", payload.Answers[0].Answer)
}

func TestGetAnswer(t *testing.T) {
	h := NewHandler(demoStore())

	rec := httptest.NewRecorder()
	router(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/answers/a1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	// other tenant's answer is invisible
	rec = httptest.NewRecorder()
	router(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/answers/a2", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetAnalysis(t *testing.T) {
	h := NewHandler(demoStore())

	rec := httptest.NewRecorder()
	router(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analyses/r1", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var result models.RiskResult
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&result))
	assert.Equal(t, 82, result.Score)

	rec = httptest.NewRecorder()
	router(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analyses/missing", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListAnalysesEmpty(t *testing.T) {
	h := NewHandler(&fakeStore{})

	rec := httptest.NewRecorder()
	router(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analyses", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"analyses":[]}`, rec.Body.String())
}
