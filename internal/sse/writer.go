package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
)

// Writer emits SSE frames over an http.ResponseWriter, flushing after every
// frame so tokens reach the client immediately. Safe for concurrent use;
// a heartbeat goroutine may interleave with the handler's own writes.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
	mu      sync.Mutex
}

// NewWriter wraps w. It fails when the ResponseWriter cannot flush, which
// would silently buffer the whole stream.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("sse: response writer does not support flushing")
	}
	return &Writer{w: w, flusher: flusher}, nil
}

// WriteEvent marshals v and writes one "event:<name>\ndata:<json>\n\n" frame.
func (w *Writer) WriteEvent(event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("sse: marshal %s event: %w", event, err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := fmt.Fprintf(w.w, "event:%s\ndata:%s\n\n", event, data); err != nil {
		return fmt.Errorf("sse: write %s event: %w", event, err)
	}
	w.flusher.Flush()
	return nil
}

// WriteKeepAlive sends an SSE comment. Clients ignore it, but it resets
// idle-timeout counters on load balancers during slow provider calls.
func (w *Writer) WriteKeepAlive() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := fmt.Fprint(w.w, ": ping\n\n"); err != nil {
		return fmt.Errorf("sse: write keepalive: %w", err)
	}
	w.flusher.Flush()
	return nil
}

// SetHeaders configures the response for event streaming. Must be called
// before the first write.
func SetHeaders(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
}
