package tui

import "time"

// Messages for the tea program (polling-based)

// StatusUpdateMsg is sent when we receive status from orchestrator
type StatusUpdateMsg struct {
	Status *StatusResponse
	Err    error
}

// TickMsg is sent periodically to trigger polling
type TickMsg struct {
	Time time.Time
}

// HaltRequestedMsg is sent after the operator requests a halt
type HaltRequestedMsg struct {
	Err error
}

// StateClearedMsg is sent after the operator resets the checkpoint
type StateClearedMsg struct {
	Err error
}
