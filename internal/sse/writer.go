// Package sse frames generation progress as server-sent events. Every frame
// is a single "data: <json>\n\n" line and a stream ends with exactly one
// terminal event.
package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/yungbote/travelplanner-backend/internal/planner/contract"
)

type EventType string

const (
	EventDelta    EventType = "delta"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

var (
	ErrStreamingUnsupported = errors.New("streaming unsupported")
	ErrTerminated           = errors.New("stream already terminated")
)

type deltaFrame struct {
	Type EventType `json:"type"`
	Progress
}

type completeFrame struct {
	Type   EventType              `json:"type"`
	Report contract.PlannerReport `json:"report"`
	Mode   contract.Mode          `json:"mode"`
	PlanID string                 `json:"planId,omitempty"`
}

type errorFrame struct {
	Type    EventType `json:"type"`
	Code    string    `json:"code"`
	Message string    `json:"message"`
}

// Writer is safe for use by the generation goroutine and a heartbeat at the
// same time; frames are written whole and in call order.
type Writer struct {
	mu         sync.Mutex
	w          http.ResponseWriter
	flusher    http.Flusher
	terminated bool
	frames     int
}

// NewWriter sends the event-stream headers and a 200 status.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrStreamingUnsupported
	}
	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &Writer{w: w, flusher: flusher}, nil
}

func (s *Writer) Delta(p Progress) error {
	return s.send(deltaFrame{Type: EventDelta, Progress: p}, false)
}

func (s *Writer) Complete(report contract.PlannerReport, mode contract.Mode, planID string) error {
	return s.send(completeFrame{Type: EventComplete, Report: report, Mode: mode, PlanID: planID}, true)
}

func (s *Writer) Error(code, message string) error {
	return s.send(errorFrame{Type: EventError, Code: code, Message: message}, true)
}

// EnsureTerminal emits an error event unless a terminal event was already
// written. Handlers defer it so no stream closes without one.
func (s *Writer) EnsureTerminal(code, message string) {
	_ = s.Error(code, message)
}

// closed reports whether a terminal event was written.
func (s *Writer) closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.terminated
}

// Frames counts data frames written so far.
func (s *Writer) Frames() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

func (s *Writer) send(v any, terminal bool) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		return ErrTerminated
	}
	if terminal {
		s.terminated = true
	}
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", b); err != nil {
		return err
	}
	s.frames++
	s.flusher.Flush()
	return nil
}

// Heartbeat writes a comment line every interval until stop is closed or
// the stream terminates. Comments are ignored by EventSource clients. It is
// the only writer besides the generation goroutine, and it writes under the
// same lock, so a comment never lands inside or after a data frame.
func (s *Writer) Heartbeat(interval time.Duration, stop <-chan struct{}) {
	if interval <= 0 {
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C:
			if s.closed() {
				return
			}
			if err := s.ping(); err != nil {
				return
			}
		}
	}
}

func (s *Writer) ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.terminated {
		return ErrTerminated
	}
	if _, err := fmt.Fprint(s.w, ": ping\n\n"); err != nil {
		return err
	}
	s.flusher.Flush()
	return nil
}
