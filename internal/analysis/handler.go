// Package analysis streams contract and policy risk reviews. The pipeline is
// a fixed phase sequence narrated over SSE as progress frames, with the
// assembled risk result delivered in a terminal result frame.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/sanadhr/askhr-backend/internal/ai"
	"github.com/sanadhr/askhr-backend/internal/middleware"
	"github.com/sanadhr/askhr-backend/internal/models"
	"github.com/sanadhr/askhr-backend/internal/sse"
)

// DocumentSource resolves a document id to its stored metadata.
type DocumentSource interface {
	GetDocument(ctx context.Context, tenantID, id string) (*models.Document, error)
}

// FileFetcher reads a document body from object storage.
type FileFetcher interface {
	Fetch(ctx context.Context, path string) ([]byte, error)
}

// Retriever serves tenant-scoped keyword search for related policies.
type Retriever interface {
	Search(ctx context.Context, tenantID, query string, filters models.AskFilters, limit int) ([]models.Snippet, error)
}

// ResultStore appends completed risk results.
type ResultStore interface {
	InsertAnalysis(ctx context.Context, res *models.RiskResult) (string, error)
}

// Generator produces the risk assessment, reporting which provider served it.
type Generator interface {
	Complete(ctx context.Context, req ai.CompletionRequest) (string, string, error)
}

// Handler runs the risk analysis pipeline over SSE.
type Handler struct {
	docs      DocumentSource
	files     FileFetcher
	retriever Retriever
	results   ResultStore
	generator Generator
	topK      int
	validate  *validator.Validate
}

func NewHandler(docs DocumentSource, files FileFetcher, retriever Retriever, results ResultStore, generator Generator, topK int) *Handler {
	if topK <= 0 {
		topK = 5
	}
	return &Handler{
		docs:      docs,
		files:     files,
		retriever: retriever,
		results:   results,
		generator: generator,
		topK:      topK,
		validate:  validator.New(),
	}
}

// Stream handles POST /api/v1/analysis/stream. Every phase degrades rather
// than fails: a missing document analyzes whatever text was resolved,
// retrieval errors shrink the citation set to empty, and a failed or
// malformed provider response substitutes a deterministic default result.
// The stream always ends with a progress done frame followed by one result
// frame.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	var req models.AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, `{"error":"doc_id or text is required"}`, http.StatusBadRequest)
		return
	}
	if req.Lang == "" {
		req.Lang = "en"
	}

	ctx := r.Context()
	tenantID := middleware.TenantID(ctx)
	requestID := uuid.New().String()
	logger := log.With().
		Str("request_id", requestID).
		Str("tenant_id", tenantID).
		Logger()

	sse.SetHeaders(w)
	writer, err := sse.NewWriter(w)
	if err != nil {
		http.Error(w, `{"error":"streaming unsupported"}`, http.StatusInternalServerError)
		return
	}

	progress := func(phase, message string) bool {
		err := writer.WriteEvent("progress", models.ProgressEvent{
			Type:      "progress",
			Phase:     phase,
			Message:   message,
			Timestamp: time.Now().UTC(),
		})
		if err != nil {
			logger.Warn().Err(err).Str("phase", phase).Msg("client disconnected")
			return false
		}
		return true
	}

	if !progress(models.PhasePreparing, "resolving document text") {
		return
	}
	title, text := h.prepare(ctx, tenantID, &req, logger)

	if !progress(models.PhaseRetrieval, "searching related policies") {
		return
	}
	snippets, err := h.retriever.Search(ctx, tenantID, title+" "+firstWords(text, 30), models.AskFilters{}, h.topK)
	if err != nil {
		logger.Warn().Err(err).Msg("retrieval failed, analyzing without citations")
		snippets = nil
	}
	citations := buildCitations(snippets)

	if !progress(models.PhaseAnalysis, "assessing risks") {
		return
	}

	heartbeatDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				_ = writer.WriteKeepAlive()
			case <-heartbeatDone:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
	result := h.assess(ctx, &req, title, text, snippets, logger)
	close(heartbeatDone)

	if ctx.Err() != nil {
		logger.Info().Msg("analysis stream cancelled by client")
		return
	}

	if !progress(models.PhaseMitigation, "assembling mitigations") {
		return
	}
	if len(result.Mitigations) == 0 {
		result.Mitigations = defaultMitigations(req.Lang)
	}

	result.RequestID = requestID
	result.TenantID = tenantID
	result.DocID = req.DocID
	result.Title = title
	result.Citations = citations

	if _, err := h.results.InsertAnalysis(ctx, result); err != nil {
		logger.Error().Err(err).Msg("failed to persist analysis result")
	}

	if !progress(models.PhaseDone, "analysis complete") {
		return
	}
	if err := writer.WriteEvent("result", map[string]any{"type": "result", "data": result}); err != nil {
		logger.Warn().Err(err).Msg("client disconnected before result")
	}
}

// prepare resolves the text to analyze. Inline text wins; otherwise the
// document body is fetched from object storage, falling back to the metadata
// row's content mirror, falling back to empty.
func (h *Handler) prepare(ctx context.Context, tenantID string, req *models.AnalyzeRequest, logger zerolog.Logger) (title, text string) {
	if req.Text != "" {
		return "inline text", req.Text
	}

	doc, err := h.docs.GetDocument(ctx, tenantID, req.DocID)
	if err != nil {
		logger.Warn().Err(err).Str("doc_id", req.DocID).Msg("document lookup failed, analyzing empty text")
		return "unknown document", ""
	}

	body, err := h.files.Fetch(ctx, doc.StoragePath)
	if err != nil {
		logger.Warn().Err(err).Str("path", doc.StoragePath).Msg("object fetch failed, using indexed content")
		return doc.Title, doc.Content
	}
	return doc.Title, string(body)
}

// modelRiskPayload is the JSON shape the providers are instructed to return.
type modelRiskPayload struct {
	Score       int              `json:"score"`
	RiskLevel   string           `json:"risk_level"`
	Findings    []models.Finding `json:"findings"`
	Mitigations []string         `json:"mitigations"`
}

// assess calls the provider chain and parses its JSON verdict. Any failure,
// provider or parse, yields the deterministic default result.
func (h *Handler) assess(ctx context.Context, req *models.AnalyzeRequest, title, text string, snippets []models.Snippet, logger zerolog.Logger) *models.RiskResult {
	raw, provider, err := h.generator.Complete(ctx, ai.CompletionRequest{
		System: analysisSystemPrompt(req.Lang),
		Prompt: buildAnalysisPrompt(title, text, snippets),
		Lang:   req.Lang,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("all ai providers failed, serving default risk result")
		return defaultResult(req.Lang)
	}

	var payload modelRiskPayload
	if err := json.Unmarshal([]byte(stripFences(raw)), &payload); err != nil {
		logger.Warn().Err(err).Str("provider", provider).Msg("provider returned malformed risk JSON, serving default")
		return defaultResult(req.Lang)
	}

	if payload.Score < 0 {
		payload.Score = 0
	}
	if payload.Score > 100 {
		payload.Score = 100
	}
	if payload.RiskLevel == "" {
		payload.RiskLevel = scoreLevel(payload.Score)
	}

	return &models.RiskResult{
		Score:       payload.Score,
		RiskLevel:   payload.RiskLevel,
		Findings:    payload.Findings,
		Mitigations: payload.Mitigations,
		Source:      models.SourceModel,
		Provider:    provider,
	}
}

const defaultRiskScore = 50

// defaultResult is the deterministic substitute used when no provider could
// produce a parseable assessment. Marked SourceDefault so consumers can tell
// it apart from a genuine model verdict.
func defaultResult(lang string) *models.RiskResult {
	issue := "Automated assessment was unavailable; the document has not been reviewed."
	if lang == "ar" {
		issue = "تعذر إجراء التقييم الآلي؛ لم تتم مراجعة المستند."
	}
	return &models.RiskResult{
		Score:     defaultRiskScore,
		RiskLevel: scoreLevel(defaultRiskScore),
		Findings: []models.Finding{
			{Clause: "", Issue: issue, Severity: "medium"},
		},
		Mitigations: defaultMitigations(lang),
		Source:      models.SourceDefault,
	}
}

func defaultMitigations(lang string) []string {
	if lang == "ar" {
		return []string{
			"اعرض المستند على مختص موارد بشرية لمراجعته يدويًا.",
			"تحقق من توافق البنود مع نظام العمل السعودي.",
			"أعد المحاولة لاحقًا للحصول على تقييم آلي.",
		}
	}
	return []string{
		"Route the document to an HR specialist for manual review.",
		"Verify clause compliance against Saudi labor regulations.",
		"Retry later for an automated assessment.",
	}
}

func scoreLevel(score int) string {
	switch {
	case score < 34:
		return "low"
	case score < 67:
		return "medium"
	default:
		return "high"
	}
}

const analysisExcerptLimit = 800

func buildAnalysisPrompt(title, text string, snippets []models.Snippet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Document under review: %s\n\n%s\n\n", title, text)
	if len(snippets) > 0 {
		b.WriteString("Related policy excerpts:\n\n")
		for i, sn := range snippets {
			excerpt := sn.Doc.Content
			if len(excerpt) > analysisExcerptLimit {
				excerpt = excerpt[:analysisExcerptLimit]
			}
			fmt.Fprintf(&b, "[%d] %s\n%s\n\n", i+1, sn.Doc.Title, excerpt)
		}
	}
	b.WriteString(`Respond with JSON only: {"score":0-100,"risk_level":"low|medium|high","findings":[{"clause":"","issue":"","severity":"low|medium|high"}],"mitigations":[""]}`)
	return b.String()
}

func analysisSystemPrompt(lang string) string {
	if lang == "ar" {
		return "أنت محلل مخاطر لعقود وسياسات الموارد البشرية في السوق السعودي. قيّم المستند المقدم وأعد النتيجة بصيغة JSON فقط دون أي نص إضافي."
	}
	return "You are a risk analyst for HR contracts and policies in the Saudi market. Assess the provided document and respond with JSON only, no extra text."
}

// stripFences removes a surrounding markdown code fence, which several
// providers wrap JSON in despite instructions.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func buildCitations(snippets []models.Snippet) []models.Citation {
	citations := make([]models.Citation, 0, len(snippets))
	for i, sn := range snippets {
		created := sn.Doc.CreatedAt
		citations = append(citations, models.Citation{
			N:             i + 1,
			DocID:         sn.Doc.ID,
			Title:         sn.Doc.Title,
			Portal:        sn.Doc.Portal,
			DocType:       sn.Doc.DocType,
			CreatedAt:     &created,
			StorageBucket: sn.Doc.StorageBucket,
			StoragePath:   sn.Doc.StoragePath,
		})
	}
	return citations
}

// firstWords truncates s to at most n whitespace-separated words, enough to
// seed keyword retrieval without shipping the whole document as a query.
func firstWords(s string, n int) string {
	fields := strings.Fields(s)
	if len(fields) > n {
		fields = fields[:n]
	}
	return strings.Join(fields, " ")
}
