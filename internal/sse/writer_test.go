package sse

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// noFlushWriter is a ResponseWriter without Flush support.
type noFlushWriter struct {
	header http.Header
}

func (w noFlushWriter) Header() http.Header       { return w.header }
func (noFlushWriter) Write(p []byte) (int, error) { return len(p), nil }
func (noFlushWriter) WriteHeader(int)             {}

func TestNewWriterRequiresFlusher(t *testing.T) {
	_, err := NewWriter(noFlushWriter{header: http.Header{}})
	require.Error(t, err)

	w, err := NewWriter(httptest.NewRecorder())
	require.NoError(t, err)
	require.NotNil(t, w)
}

func TestWriterWireFormat(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec)
	require.NoError(t, err)

	require.NoError(t, w.WriteEvent("token", map[string]string{"token": "hi "}))
	require.NoError(t, w.WriteKeepAlive())
	require.NoError(t, w.WriteEvent("done", map[string]string{"request_id": "r1"}))

	body := rec.Body.String()
	assert.Equal(t,
		"event:token\ndata:{\"token\":\"hi \"}\n\n"+
			": ping\n\n"+
			"event:done\ndata:{\"request_id\":\"r1\"}\n\n",
		body)
	assert.True(t, rec.Flushed)
}

func TestWriterRoundTripsThroughDecoder(t *testing.T) {
	rec := httptest.NewRecorder()
	w, err := NewWriter(rec)
	require.NoError(t, err)

	require.NoError(t, w.WriteEvent("citations", map[string]any{"citations": []any{}}))
	require.NoError(t, w.WriteKeepAlive())
	require.NoError(t, w.WriteEvent("token", map[string]string{"token": "سياسة"}))
	require.NoError(t, w.WriteEvent("done", map[string]string{}))

	dec := &Decoder{}
	frames, err := dec.Feed(rec.Body.Bytes())
	require.NoError(t, err)
	require.Len(t, frames, 3)
	assert.Equal(t, "citations", frames[0].Event)
	assert.Equal(t, "token", frames[1].Event)
	assert.Equal(t, "done", frames[2].Event)
}

func TestSetHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SetHeaders(rec)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.Equal(t, "no-cache", rec.Header().Get("Cache-Control"))
	assert.Equal(t, "no", rec.Header().Get("X-Accel-Buffering"))
}
