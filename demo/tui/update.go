package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
)

// Update implements tea.Model interface
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	case TickMsg:
		return m, tea.Batch(pollStatus(m.OrchestratorClient), tickCmd())
	case StatusUpdateMsg:
		return m.handleStatusUpdate(msg)
	case HaltRequestedMsg:
		return m.handleHaltRequested(msg)
	case StateClearedMsg:
		return m.handleStateCleared(msg)
	}
	return m, nil
}

// handleKeyPress processes keyboard input
func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c", "q":
		return m, tea.Quit
	case "h", "H":
		m.Notice = "Requesting halt..."
		return m, triggerHalt(m.OrchestratorClient)
	case "c", "C":
		m.Notice = "Clearing checkpoint..."
		return m, triggerClearState(m.OrchestratorClient)
	}
	return m, nil
}

// handleStatusUpdate processes a polled status snapshot
func (m Model) handleStatusUpdate(msg StatusUpdateMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.Connected = false
		m.Err = msg.Err
		return m, nil
	}
	m.Connected = true
	m.Err = nil
	m.Status = msg.Status
	return m, nil
}

// handleHaltRequested processes the halt acknowledgement
func (m Model) handleHaltRequested(msg HaltRequestedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.Notice = fmt.Sprintf("Halt failed: %v", msg.Err)
		return m, nil
	}
	m.Notice = "Halt raised; in-flight units will finish"
	return m, nil
}

// handleStateCleared processes the checkpoint reset acknowledgement
func (m Model) handleStateCleared(msg StateClearedMsg) (tea.Model, tea.Cmd) {
	if msg.Err != nil {
		m.Notice = fmt.Sprintf("Clear failed: %v", msg.Err)
		return m, nil
	}
	m.Notice = "Checkpoint cleared"
	return m, nil
}
