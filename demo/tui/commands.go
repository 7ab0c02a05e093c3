package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// pollStatus creates a command to poll orchestrator status
func pollStatus(client *OrchestratorClient) tea.Cmd {
	return func() tea.Msg {
		status, err := client.GetStatus()
		return StatusUpdateMsg{
			Status: status,
			Err:    err,
		}
	}
}

// triggerHalt creates a command that raises the halt flag
func triggerHalt(client *OrchestratorClient) tea.Cmd {
	return func() tea.Msg {
		return HaltRequestedMsg{Err: client.Halt()}
	}
}

// triggerClearState creates a command that resets the checkpoint
func triggerClearState(client *OrchestratorClient) tea.Cmd {
	return func() tea.Msg {
		return StateClearedMsg{Err: client.ClearState()}
	}
}

// tickCmd creates a command that ticks every 500ms for polling
func tickCmd() tea.Cmd {
	return tea.Tick(500*time.Millisecond, func(t time.Time) tea.Msg {
		return TickMsg{Time: t}
	})
}
