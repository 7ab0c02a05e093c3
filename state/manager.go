package state

import (
	"fmt"
	"sync"
	"time"
)

// RunState represents the orchestrator run state machine
type RunState string

const (
	StateIdle    RunState = "idle"
	StateRunning RunState = "running"
	StateHalted  RunState = "halted"
	StateStopped RunState = "stopped"
	StateError   RunState = "error"
)

// LogEntry represents a single log line with timestamp
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// Status is the run-state snapshot served by GET /api/status,
// alongside the checkpoint.
type Status struct {
	State RunState   `json:"state"`
	Logs  []LogEntry `json:"logs"`
	Error string     `json:"error,omitempty"`
}

// Manager holds the orchestrator run state with thread-safe access.
// It is observability only: the durable source of truth is the
// checkpoint store.
type Manager struct {
	mu sync.RWMutex

	current RunState
	lastErr error

	// Logs (ring buffer)
	logs    []LogEntry
	maxLogs int
}

// NewManager creates a new run-state manager
func NewManager() *Manager {
	return &Manager{
		current: StateIdle,
		logs:    make([]LogEntry, 0),
		maxLogs: 50, // Keep last 50 log entries
	}
}

// AddLog adds a log entry (thread-safe)
func (m *Manager) AddLog(message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appendLog(message)
}

// appendLog must be called with the lock held.
func (m *Manager) appendLog(message string) {
	m.logs = append(m.logs, LogEntry{Timestamp: time.Now(), Message: message})
	if len(m.logs) > m.maxLogs {
		m.logs = m.logs[len(m.logs)-m.maxLogs:]
	}
}

// SetState sets the current run state (thread-safe)
func (m *Manager) SetState(state RunState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = state
}

// GetState gets the current run state (thread-safe)
func (m *Manager) GetState() RunState {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.current
}

// SetError records an error and transitions to the error state
func (m *Manager) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = StateError
	m.lastErr = err
	m.appendLog(fmt.Sprintf("Error: %v", err))
}

// GetStatus returns a snapshot of the run state (thread-safe)
func (m *Manager) GetStatus() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()

	resp := Status{
		State: m.current,
		Logs:  append([]LogEntry{}, m.logs...), // Copy slice
	}
	if m.lastErr != nil {
		resp.Error = m.lastErr.Error()
	}
	return resp
}
