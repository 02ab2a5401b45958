// Package sse implements the server-sent-events wire format used by the
// streaming Q&A and analysis endpoints: frames of the form
// "event:<name>\ndata:<json>\n\n", pushed one way over a long-lived response.
package sse

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Frame is one event/data block terminated by a blank line.
// Data is nil when the frame carried no data line (heartbeats).
type Frame struct {
	Event string
	Data  json.RawMessage
}

// Decoder incrementally parses a chunked SSE byte stream into frames.
// Chunks may split frames, lines, or multi-byte UTF-8 sequences at any byte
// boundary: the decoder buffers raw bytes between calls and only consumes
// complete frames, so the parsed sequence is identical regardless of how the
// transport chunked the stream. A Decoder is tied to one response body and
// is not restartable.
type Decoder struct {
	buf []byte
}

// Feed appends a chunk and returns every frame completed by it, in order.
// Malformed JSON in a data field is a fatal error for the stream; the caller
// must stop feeding after a non-nil error.
func (d *Decoder) Feed(chunk []byte) ([]Frame, error) {
	d.buf = append(d.buf, chunk...)

	var frames []Frame
	for {
		i := bytes.Index(d.buf, []byte("\n\n"))
		if i < 0 {
			return frames, nil
		}
		raw := d.buf[:i]
		d.buf = d.buf[i+2:]

		f, err := parseFrame(raw)
		if err != nil {
			return frames, err
		}
		if f != nil {
			frames = append(frames, *f)
		}
	}
}

// parseFrame parses one complete block. It returns nil for blocks containing
// only comments or padding, so keep-alive pings never surface as frames.
func parseFrame(raw []byte) (*Frame, error) {
	event := ""
	var dataLines []string

	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSuffix(line, "\r")
		switch {
		case line == "":
		case strings.HasPrefix(line, ":"):
			// comment / keep-alive
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(line[len("event:"):])
		case strings.HasPrefix(line, "data:"):
			dataLines = append(dataLines, strings.TrimPrefix(line[len("data:"):], " "))
		default:
			// id:, retry: and unknown fields are ignored
		}
	}

	if event == "" && len(dataLines) == 0 {
		return nil, nil
	}
	if event == "" {
		event = "message"
	}
	if len(dataLines) == 0 {
		return &Frame{Event: event}, nil
	}

	data := strings.Join(dataLines, "\n")
	if !json.Valid([]byte(data)) {
		return nil, fmt.Errorf("sse: event %q carries malformed JSON data", event)
	}
	return &Frame{Event: event, Data: json.RawMessage(data)}, nil
}
