// Package ratelimit implements fixed-window request counting keyed by
// (namespace, identifier).
package ratelimit

import (
	"context"
	"math"
	"sync"
	"time"
)

type Decision struct {
	OK                bool
	RetryAfterSeconds int
}

type Limiter interface {
	// Check counts one request. Once more than max requests land in the
	// current window the decision is negative until the window ends.
	Check(ctx context.Context, namespace, id string, max int, window time.Duration) (Decision, error)
}

func key(namespace, id string) string {
	return "ratelimit:" + namespace + ":" + id
}

func retryAfter(remaining time.Duration) int {
	s := int(math.Ceil(remaining.Seconds()))
	if s < 1 {
		s = 1
	}
	return s
}

type window struct {
	start time.Time
	count int
}

// Memory is a process-local limiter.
type Memory struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
	checks  int
}

func NewMemory() *Memory {
	return &Memory{windows: map[string]*window{}, now: time.Now}
}

func NewMemoryWithClock(now func() time.Time) *Memory {
	m := NewMemory()
	m.now = now
	return m
}

func (m *Memory) Check(_ context.Context, namespace, id string, max int, win time.Duration) (Decision, error) {
	now := m.now()
	k := key(namespace, id)

	m.mu.Lock()
	defer m.mu.Unlock()

	m.checks++
	if m.checks%1024 == 0 {
		m.sweep(now, win)
	}

	w, ok := m.windows[k]
	if !ok || now.Sub(w.start) >= win {
		w = &window{start: now}
		m.windows[k] = w
	}
	w.count++
	if w.count > max {
		return Decision{OK: false, RetryAfterSeconds: retryAfter(w.start.Add(win).Sub(now))}, nil
	}
	return Decision{OK: true}, nil
}

// sweep drops windows that ended; win is the window of the current caller,
// which is the only one used in practice.
func (m *Memory) sweep(now time.Time, win time.Duration) {
	for k, w := range m.windows {
		if now.Sub(w.start) >= win {
			delete(m.windows, k)
		}
	}
}
