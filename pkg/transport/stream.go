package transport

import (
	"errors"
	"fmt"
	"net/http"
	"sync"
)

// ErrStreamClosed is returned when writing to a closed stream.
var ErrStreamClosed = errors.New("stream closed")

// Stream is a server-sent-events output stream bound to one session.
// Writes are serialized; a write after Close fails with ErrStreamClosed.
type Stream struct {
	mu      sync.Mutex
	w       http.ResponseWriter
	flusher http.Flusher
	closed  bool
}

// NewStream prepares w as an SSE stream and writes the stream headers.
// The ResponseWriter must support flushing.
func NewStream(w http.ResponseWriter) (*Stream, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("response writer does not support streaming")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &Stream{w: w, flusher: flusher}, nil
}

// WriteEvent writes one SSE event and flushes it.
func (s *Stream) WriteEvent(event string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStreamClosed
	}
	if _, err := fmt.Fprintf(s.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return fmt.Errorf("writing stream event: %w", err)
	}
	s.flusher.Flush()
	return nil
}

// WriteComment writes an SSE comment line. Comments carry no payload
// and are used as keep-alive frames.
func (s *Stream) WriteComment(text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrStreamClosed
	}
	if _, err := fmt.Fprintf(s.w, ": %s\n\n", text); err != nil {
		return fmt.Errorf("writing stream comment: %w", err)
	}
	s.flusher.Flush()
	return nil
}

// Close marks the stream closed. Further writes fail with
// ErrStreamClosed. Safe to call more than once.
func (s *Stream) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}
