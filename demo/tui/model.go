package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"campaignbot/state"
)

// Model represents the TUI monitor state (thin client). All real
// state lives in the orchestrator; the model is a polled mirror of
// GET /api/status plus local connection bookkeeping.
type Model struct {
	// Orchestrator client
	OrchestratorClient *OrchestratorClient

	// Last status snapshot synced from the orchestrator
	Status *StatusResponse

	// Connection status
	Connected bool
	Err       error

	// Pending operator action feedback
	Notice string
}

// NewModel creates a new TUI model
func NewModel(orchestratorURL string) Model {
	return Model{
		OrchestratorClient: NewOrchestratorClient(orchestratorURL),
		Connected:          false,
	}
}

// Init implements tea.Model interface
func (m Model) Init() tea.Cmd {
	// Start polling immediately
	return tea.Batch(
		pollStatus(m.OrchestratorClient),
		tickCmd(),
	)
}

// getStateText returns the appropriate state message
func (m Model) getStateText() string {
	if !m.Connected {
		return ErrorStyle.Render("❌ Not connected to orchestrator")
	}

	switch m.Status.Run.State {
	case state.StateIdle:
		return StatusStyle.Render("💤 Idle, waiting for backlog")
	case state.StateRunning:
		return StatusStyle.Render("▶️  Processing campaigns...")
	case state.StateHalted:
		return ErrorStyle.Render("🛑 Halted")
	case state.StateStopped:
		return HighlightStyle.Render("✅ Stopped")
	case state.StateError:
		return ErrorStyle.Render(fmt.Sprintf("❌ Error: %s", m.Status.Run.Error))
	default:
		return InfoStyle.Render(string(m.Status.Run.State))
	}
}
