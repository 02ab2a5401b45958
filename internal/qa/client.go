// Package qa implements the streaming question-answering contract: the
// producer handler that narrates retrieval and generation over SSE, and the
// client that consumes that stream into incrementally observable state.
package qa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/sanadhr/askhr-backend/internal/models"
	"github.com/sanadhr/askhr-backend/internal/sse"
)

// TokenSource supplies a bearer token for outgoing requests. Returning ""
// sends the request unauthenticated, which the server scopes to its default
// tenant.
type TokenSource func(ctx context.Context) (string, error)

// Client issues one streaming question at a time and exposes the answer as
// it arrives. At most one session is active per client: starting a new
// question cancels the previous session, and frames still in flight for a
// superseded session can no longer touch state.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource

	mu        sync.Mutex
	session   uint64
	cancel    context.CancelFunc
	running   bool
	text      strings.Builder
	citations []models.Citation
}

// NewClient creates a client for the Q&A endpoint at baseURL. tokens may be
// nil.
func NewClient(baseURL string, tokens TokenSource) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
		tokens:     tokens,
	}
}

// Ask streams one question and blocks until the stream completes, is
// aborted, or fails. Observable state is reset up front and the previous
// session, if any, is cancelled. A non-OK or bodyless response is a soft
// completion: state stays empty, running flips false, and no error is
// returned. Transport failures and malformed frames are returned to the
// caller.
func (c *Client) Ask(ctx context.Context, question, lang string, filters models.AskFilters) error {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.session++
	sid := c.session
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.running = true
	c.text.Reset()
	c.citations = nil
	c.mu.Unlock()

	defer c.finish(sid)

	var token string
	if c.tokens != nil {
		// Token resolution failure just means an unauthenticated request.
		if t, err := c.tokens(ctx); err == nil {
			token = t
		}
	}

	body, _ := json.Marshal(models.AskRequest{
		Question: question,
		Lang:     lang,
		Stream:   true,
		Filters:  filters,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/qa/stream", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("qa stream request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil // aborted locally
		}
		return fmt.Errorf("qa stream: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK || resp.Body == nil {
		return nil // soft failure: empty state, no error surfaced
	}

	dec := &sse.Decoder{}
	buf := make([]byte, 4096)
	for {
		n, readErr := resp.Body.Read(buf)
		if n > 0 {
			frames, feedErr := dec.Feed(buf[:n])
			for _, f := range frames {
				if done := c.apply(sid, f); done {
					return nil
				}
			}
			if feedErr != nil {
				return fmt.Errorf("qa stream: %w", feedErr)
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			if ctx.Err() != nil {
				return nil // aborted locally
			}
			return fmt.Errorf("qa stream read: %w", readErr)
		}
	}
}

// Abort cancels the in-flight session, if any. Idempotent; a no-op when
// nothing is running.
func (c *Client) Abort() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.running = false
}

// Text returns the answer accumulated so far. Append-only within one
// session, reset at the start of the next.
func (c *Client) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.text.String()
}

// Citations returns the current citation set. Each citations frame replaces
// the whole set.
func (c *Client) Citations() []models.Citation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.Citation(nil), c.citations...)
}

// Running reports whether a session is in flight.
func (c *Client) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.running
}

// apply routes one frame into the session's state and reports whether the
// stream terminated. Frames belonging to a superseded session are dropped
// and their read loop is told to stop.
func (c *Client) apply(sid uint64, f sse.Frame) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sid != c.session {
		return true
	}

	switch f.Event {
	case "citations":
		var payload struct {
			Citations []models.Citation `json:"citations"`
		}
		if f.Data != nil {
			_ = json.Unmarshal(f.Data, &payload)
		}
		c.citations = payload.Citations
	case "token":
		var payload struct {
			Token string `json:"token"`
		}
		if f.Data != nil {
			_ = json.Unmarshal(f.Data, &payload)
		}
		c.text.WriteString(payload.Token)
	case "done":
		c.running = false
		return true
	default:
		// unknown events are ignored for forward compatibility
	}
	return false
}

// finish releases the session's cancellation handle unless a newer session
// already owns the client.
func (c *Client) finish(sid uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sid != c.session {
		return
	}
	c.running = false
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}
