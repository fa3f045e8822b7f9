package api

import (
	"fmt"
	"io"
	"net/http"
)

// SSE event names.
const (
	eventReasoning = "reasoning"
	eventText      = "text"
	eventFinish    = "finish"
	eventError     = "error"
)

type streamError struct {
	Type  string `json:"type"`
	Error string `json:"error"`
}

type streamFinish struct {
	Type string `json:"type"`
}

func writeSSE(w io.Writer, event, data string) error {
	_, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data)
	return err
}

// sseWriter writes JSON-encoded events and flushes after each one.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

// startSSE commits the event-stream headers. It fails if w cannot flush.
func startSSE(w http.ResponseWriter) (*sseWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &sseWriter{w: w, flusher: flusher}, nil
}

func (s *sseWriter) send(event string, payload interface{}) error {
	data, err := jsonAPI.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event, err)
	}
	if err := writeSSE(s.w, event, string(data)); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}

func (s *sseWriter) finish() error {
	return s.send(eventFinish, streamFinish{Type: eventFinish})
}

func (s *sseWriter) fail(message string) error {
	return s.send(eventError, streamError{Type: eventError, Error: message})
}
