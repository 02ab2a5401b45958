package qa

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

// Retriever serves tenant-scoped keyword search over indexed documents.
type Retriever interface {
	Search(ctx context.Context, tenantID, query string, filters models.AskFilters, limit int) ([]models.Snippet, error)
}

// ResultStore appends completed answers for later review.
type ResultStore interface {
	InsertAnswer(ctx context.Context, rec *models.AnswerRecord) (string, error)
}

// Generator produces answer text, reporting which provider served it.
type Generator interface {
	Complete(ctx context.Context, req ai.CompletionRequest) (string, string, error)
}

// Handler streams answers to HR policy questions over SSE.
type Handler struct {
	retriever Retriever
	results   ResultStore
	generator Generator
	topK      int
	validate  *validator.Validate
}

func NewHandler(retriever Retriever, results ResultStore, generator Generator, topK int) *Handler {
	if topK <= 0 {
		topK = 5
	}
	return &Handler{
		retriever: retriever,
		results:   results,
		generator: generator,
		topK:      topK,
		validate:  validator.New(),
	}
}

// Stream handles POST /api/v1/qa/stream. It retrieves supporting documents,
// emits a citations frame, streams the generated answer token by token, and
// closes with a done frame. Retrieval, generation, and persistence failures
// all degrade rather than fail the stream: the only error responses are for
// invalid input.
func (h *Handler) Stream(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid request body"}`, http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(&req); err != nil {
		http.Error(w, `{"error":"question and lang (en or ar) are required"}`, http.StatusBadRequest)
		return
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

	snippets, err := h.retriever.Search(ctx, tenantID, req.Question, req.Filters, h.topK)
	if err != nil {
		logger.Warn().Err(err).Msg("retrieval failed, answering without citations")
		snippets = nil
	}
	citations := buildCitations(snippets)

	if err := writer.WriteEvent("citations", map[string]any{"citations": citations}); err != nil {
		logger.Warn().Err(err).Msg("client disconnected before citations")
		return
	}

	// Keep the connection warm while the provider call is in flight.
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

	answer, provider, source := h.generate(ctx, &req, snippets, logger)
	close(heartbeatDone)

	if ctx.Err() != nil {
		logger.Info().Msg("stream cancelled by client")
		return
	}

	for _, tok := range tokenize(answer) {
		if err := writer.WriteEvent("token", map[string]string{"token": tok}); err != nil {
			logger.Warn().Err(err).Msg("client disconnected mid-answer")
			return
		}
	}

	rec := &models.AnswerRecord{
		RequestID: requestID,
		TenantID:  tenantID,
		Question:  req.Question,
		Lang:      req.Lang,
		Answer:    answer,
		Citations: citations,
		Source:    source,
		Provider:  provider,
	}
	if _, err := h.results.InsertAnswer(ctx, rec); err != nil {
		logger.Error().Err(err).Msg("failed to persist answer")
	}

	if err := writer.WriteEvent("done", map[string]string{"request_id": requestID}); err != nil {
		logger.Warn().Err(err).Msg("client disconnected before done")
	}
}

// generate runs the provider chain and degrades to a deterministic default
// answer when every provider fails.
func (h *Handler) generate(ctx context.Context, req *models.AskRequest, snippets []models.Snippet, logger zerolog.Logger) (answer, provider, source string) {
	completion := ai.CompletionRequest{
		System: systemPrompt(req.Lang),
		Prompt: buildPrompt(req.Question, snippets),
		Lang:   req.Lang,
	}

	text, name, err := h.generator.Complete(ctx, completion)
	if err != nil {
		logger.Warn().Err(err).Msg("all ai providers failed, serving default answer")
		return defaultAnswer(req.Lang), "", models.SourceDefault
	}
	return text, name, models.SourceModel
}

// buildCitations numbers the retrieved snippets 1..n in rank order.
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

const snippetExcerptLimit = 1200

func buildPrompt(question string, snippets []models.Snippet) string {
	var b strings.Builder
	if len(snippets) > 0 {
		b.WriteString("Document excerpts:\n\n")
		for i, sn := range snippets {
			excerpt := sn.Doc.Content
			if len(excerpt) > snippetExcerptLimit {
				excerpt = excerpt[:snippetExcerptLimit]
			}
			fmt.Fprintf(&b, "[%d] %s\n%s\n\n", i+1, sn.Doc.Title, excerpt)
		}
	}
	b.WriteString("Question: ")
	b.WriteString(question)
	return b.String()
}

func systemPrompt(lang string) string {
	if lang == "ar" {
		return "أنت مساعد موارد بشرية لمؤسسات في السوق السعودي. أجب بالعربية معتمدًا فقط على مقتطفات المستندات المقدمة، واذكر المصدر داخل النص بالشكل [n]. إذا لم تكفِ المستندات للإجابة فقل ذلك صراحة."
	}
	return "You are an HR policy assistant for Saudi-market organizations. Answer using only the provided document excerpts and cite them inline as [n]. If the excerpts do not cover the question, say so explicitly."
}

func defaultAnswer(lang string) string {
	if lang == "ar" {
		return "تعذر توليد إجابة لهذا السؤال حاليًا. يرجى مراجعة المستندات المُشار إليها أو المحاولة لاحقًا."
	}
	return "We could not generate an answer for this question right now. Please review the cited documents or try again later."
}

// tokenize splits the answer into word-sized chunks for token frames.
// Whitespace is preserved so concatenating the chunks reproduces the answer
// byte for byte.
func tokenize(s string) []string {
	parts := strings.SplitAfter(s, " ")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
