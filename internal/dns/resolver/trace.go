package resolver

import (
	"fmt"
	"sync"
	"time"
)

// TraceEvent is one step the resolver took while answering a query, in the
// informal "resolution trace" format of §9 (kept in memory, not wired to any
// wire-protocol diagnostic option).
type TraceEvent struct {
	Time   time.Time
	Kind   string
	Detail string
}

// Trace accumulates the steps of a single Resolve call when tracing is
// requested. A disabled Trace discards every Log call at no real cost, so
// callers can pass one unconditionally.
type Trace struct {
	Enabled bool

	mu     sync.Mutex
	events []TraceEvent
}

// NewTrace returns a Trace that records events only if enabled is true.
func NewTrace(enabled bool) *Trace {
	return &Trace{Enabled: enabled}
}

// Log appends one step, formatting detail like fmt.Sprintf. A no-op when
// tracing is disabled.
func (t *Trace) Log(now time.Time, kind, format string, args ...any) {
	if t == nil || !t.Enabled {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.events = append(t.events, TraceEvent{Time: now, Kind: kind, Detail: fmt.Sprintf(format, args...)})
}

// Events returns the recorded steps in order. Empty when tracing was
// disabled or nothing was logged.
func (t *Trace) Events() []TraceEvent {
	if t == nil {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TraceEvent, len(t.events))
	copy(out, t.events)
	return out
}
