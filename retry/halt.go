package retry

import (
	"sync"
	"sync/atomic"
)

// Halt is the process-wide circuit breaker. It is raised when a unit
// exhausts its transient-failure retries: sustained provider-side rate
// limiting is a signal to stop, not to retry indefinitely. Once
// raised it stays raised; the orchestrator checks it before scheduling
// any new batch.
type Halt struct {
	raised atomic.Bool

	mu     sync.Mutex
	reason string
}

// Raise sets the halt flag. The first reason wins.
func (h *Halt) Raise(reason string) {
	h.mu.Lock()
	if h.reason == "" {
		h.reason = reason
	}
	h.mu.Unlock()
	h.raised.Store(true)
}

// Raised reports whether the halt flag has been set.
func (h *Halt) Raised() bool {
	return h.raised.Load()
}

// Reason returns why the halt was raised, or "" if it wasn't.
func (h *Halt) Reason() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.reason
}
