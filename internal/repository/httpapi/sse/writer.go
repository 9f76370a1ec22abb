package sse

import (
	"fmt"
	"net/http"

	"inkwell/internal/domain/models/stream"
)

// Writer writes an event stream to an HTTP response. It is the server side
// of the stream for httptest servers exercising the client.
type Writer struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// NewWriter sets the event-stream headers on w
func NewWriter(w http.ResponseWriter) *Writer {
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	flusher, _ := w.(http.Flusher)
	return &Writer{w: w, flusher: flusher}
}

// WriteEvent writes one event with a JSON payload and flushes
func (s *Writer) WriteEvent(name string, data interface{}) error {
	payload, err := stream.FormatSSE(name, data)
	if err != nil {
		return err
	}
	return s.writeRaw(payload)
}

// WriteRaw writes one event whose data is sent verbatim
func (s *Writer) WriteRaw(name, data string) error {
	return s.writeRaw(fmt.Sprintf("event: %s\ndata: %s\n\n", name, data))
}

// WriteKeepAlive writes an SSE comment (: keepalive\n\n) and flushes
func (s *Writer) WriteKeepAlive() error {
	return s.writeRaw(": keepalive\n\n")
}

func (s *Writer) writeRaw(text string) error {
	if _, err := fmt.Fprint(s.w, text); err != nil {
		return fmt.Errorf("write event failed: %w", err)
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}
