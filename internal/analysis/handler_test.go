package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sanadhr/askhr-backend/internal/ai"
	"github.com/sanadhr/askhr-backend/internal/middleware"
	"github.com/sanadhr/askhr-backend/internal/models"
	"github.com/sanadhr/askhr-backend/internal/sse"
)

type stubDocs struct {
	doc *models.Document
	err error
}

func (s stubDocs) GetDocument(ctx context.Context, tenantID, id string) (*models.Document, error) {
	return s.doc, s.err
}

type stubFiles struct {
	body []byte
	err  error
}

func (s stubFiles) Fetch(ctx context.Context, path string) ([]byte, error) {
	return s.body, s.err
}

type stubRetriever struct {
	snippets []models.Snippet
	err      error
}

func (s stubRetriever) Search(ctx context.Context, tenantID, query string, filters models.AskFilters, limit int) ([]models.Snippet, error) {
	return s.snippets, s.err
}

type stubResults struct {
	result *models.RiskResult
	err    error
}

func (s *stubResults) InsertAnalysis(ctx context.Context, res *models.RiskResult) (string, error) {
	s.result = res
	return "id1", s.err
}

type stubGenerator struct {
	text   string
	name   string
	err    error
	prompt string
}

func (g *stubGenerator) Complete(ctx context.Context, req ai.CompletionRequest) (string, string, error) {
	g.prompt = req.Prompt
	return g.text, g.name, g.err
}

type nilResolver struct{}

func (nilResolver) Resolve(ctx context.Context, token string) (string, error) { return "", nil }

func doAnalyze(t *testing.T, h *Handler, body string) (*httptest.ResponseRecorder, []sse.Frame) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/analysis/stream", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler := middleware.ResolveTenant(nilResolver{}, "t1")(http.HandlerFunc(h.Stream))
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		return rec, nil
	}
	dec := &sse.Decoder{}
	frames, err := dec.Feed(rec.Body.Bytes())
	require.NoError(t, err)
	return rec, frames
}

func collectRun(t *testing.T, frames []sse.Frame) (phases []string, result *models.RiskResult) {
	t.Helper()
	for _, f := range frames {
		switch f.Event {
		case "progress":
			var ev models.ProgressEvent
			require.NoError(t, json.Unmarshal(f.Data, &ev))
			assert.Equal(t, "progress", ev.Type)
			assert.False(t, ev.Timestamp.IsZero())
			phases = append(phases, ev.Phase)
		case "result":
			var payload struct {
				Type string            `json:"type"`
				Data models.RiskResult `json:"data"`
			}
			require.NoError(t, json.Unmarshal(f.Data, &payload))
			assert.Equal(t, "result", payload.Type)
			result = &payload.Data
		}
	}
	return phases, result
}

var wantPhases = []string{
	models.PhasePreparing,
	models.PhaseRetrieval,
	models.PhaseAnalysis,
	models.PhaseMitigation,
	models.PhaseDone,
}

func TestAnalysisModelVerdict(t *testing.T) {
	gen := &stubGenerator{
		text: "```json\n{\"score\":82,\"risk_level\":\"high\",\"findings\":[{\"clause\":\"7.2\",\"issue\":\"unlimited non-compete\",\"severity\":\"high\"}],\"mitigations\":[\"cap the non-compete at 2 years\"]}\n```",
		name: "primary",
	}
	results := &stubResults{}
	h := NewHandler(stubDocs{}, stubFiles{}, stubRetriever{}, results, gen, 5)

	rec, frames := doAnalyze(t, h, `{"text":"contract body","lang":"en"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	phases, result := collectRun(t, frames)
	assert.Equal(t, wantPhases, phases)

	require.NotNil(t, result)
	assert.Equal(t, 82, result.Score)
	assert.Equal(t, "high", result.RiskLevel)
	require.Len(t, result.Findings, 1)
	assert.Equal(t, "7.2", result.Findings[0].Clause)
	assert.Equal(t, models.SourceModel, result.Source)
	assert.Equal(t, "primary", result.Provider)
	assert.Equal(t, "t1", result.TenantID)
	assert.Equal(t, "inline text", result.Title)

	assert.Contains(t, gen.prompt, "contract body")
	require.NotNil(t, results.result)
	assert.Equal(t, models.SourceModel, results.result.Source)
}

func TestAnalysisAllProvidersFailServesDefault(t *testing.T) {
	results := &stubResults{}
	h := NewHandler(stubDocs{}, stubFiles{}, stubRetriever{}, results,
		&stubGenerator{err: errors.New("all ai providers failed")}, 5)

	rec, frames := doAnalyze(t, h, `{"text":"contract body"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	phases, result := collectRun(t, frames)
	assert.Equal(t, wantPhases, phases)

	require.NotNil(t, result)
	assert.Equal(t, models.SourceDefault, result.Source)
	assert.Equal(t, defaultRiskScore, result.Score)
	assert.Equal(t, "medium", result.RiskLevel)
	assert.NotEmpty(t, result.Findings)
	assert.NotEmpty(t, result.Mitigations)
	assert.Empty(t, result.Provider)

	require.NotNil(t, results.result)
	assert.Equal(t, models.SourceDefault, results.result.Source)
}

func TestAnalysisMalformedVerdictServesDefault(t *testing.T) {
	h := NewHandler(stubDocs{}, stubFiles{}, stubRetriever{}, &stubResults{},
		&stubGenerator{text: "the contract looks risky", name: "primary"}, 5)

	rec, frames := doAnalyze(t, h, `{"text":"contract body"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	_, result := collectRun(t, frames)
	require.NotNil(t, result)
	assert.Equal(t, models.SourceDefault, result.Source)
}

func TestAnalysisDocumentPathUsesStoredBody(t *testing.T) {
	doc := &models.Document{
		ID: "d1", TenantID: "t1", Title: "Employment Contract",
		StorageBucket: "hr-documents", StoragePath: "t1/d1.txt",
		Content: "indexed mirror",
	}
	gen := &stubGenerator{text: `{"score":10,"risk_level":"low","findings":[],"mitigations":["none needed"]}`, name: "primary"}
	h := NewHandler(stubDocs{doc: doc}, stubFiles{body: []byte("full stored body")}, stubRetriever{}, &stubResults{}, gen, 5)

	rec, frames := doAnalyze(t, h, `{"doc_id":"d1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	_, result := collectRun(t, frames)
	require.NotNil(t, result)
	assert.Equal(t, "Employment Contract", result.Title)
	assert.Equal(t, "d1", result.DocID)
	assert.Contains(t, gen.prompt, "full stored body")
}

func TestAnalysisObjectFetchFallsBackToIndexedContent(t *testing.T) {
	doc := &models.Document{ID: "d1", Title: "Policy", StoragePath: "t1/d1.txt", Content: "indexed mirror"}
	gen := &stubGenerator{text: `{"score":10,"risk_level":"low","findings":[],"mitigations":["ok"]}`, name: "primary"}
	h := NewHandler(stubDocs{doc: doc}, stubFiles{err: errors.New("minio down")}, stubRetriever{}, &stubResults{}, gen, 5)

	rec, frames := doAnalyze(t, h, `{"doc_id":"d1"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	_, result := collectRun(t, frames)
	require.NotNil(t, result)
	assert.Contains(t, gen.prompt, "indexed mirror")
}

func TestAnalysisMissingDocumentDegrades(t *testing.T) {
	h := NewHandler(stubDocs{err: errors.New("no rows")}, stubFiles{}, stubRetriever{}, &stubResults{},
		&stubGenerator{err: errors.New("all ai providers failed")}, 5)

	rec, frames := doAnalyze(t, h, `{"doc_id":"missing"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	phases, result := collectRun(t, frames)
	assert.Equal(t, wantPhases, phases)
	require.NotNil(t, result)
	assert.Equal(t, "unknown document", result.Title)
}

func TestAnalysisRetrievalFailureShrinksCitations(t *testing.T) {
	gen := &stubGenerator{text: `{"score":10,"risk_level":"low","findings":[],"mitigations":["ok"]}`, name: "primary"}
	h := NewHandler(stubDocs{}, stubFiles{}, stubRetriever{err: errors.New("pg down")}, &stubResults{}, gen, 5)

	rec, frames := doAnalyze(t, h, `{"text":"body"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	_, result := collectRun(t, frames)
	require.NotNil(t, result)
	assert.Empty(t, result.Citations)
}

func TestAnalysisRejectsInvalidRequests(t *testing.T) {
	h := NewHandler(stubDocs{}, stubFiles{}, stubRetriever{}, &stubResults{}, &stubGenerator{}, 5)

	for name, body := range map[string]string{
		"not json":    `{`,
		"empty":       `{}`,
		"bad lang":    `{"text":"x","lang":"fr"}`,
		"text too long": `{"text":"` + strings.Repeat("x", 100001) + `"}`,
	} {
		t.Run(name, func(t *testing.T) {
			rec, _ := doAnalyze(t, h, body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestScoreLevelBands(t *testing.T) {
	assert.Equal(t, "low", scoreLevel(0))
	assert.Equal(t, "low", scoreLevel(33))
	assert.Equal(t, "medium", scoreLevel(34))
	assert.Equal(t, "medium", scoreLevel(66))
	assert.Equal(t, "high", scoreLevel(67))
	assert.Equal(t, "high", scoreLevel(100))
}

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a":1}`, stripFences("```json\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences("```\n{\"a\":1}\n```"))
	assert.Equal(t, `{"a":1}`, stripFences(`{"a":1}`))
}
