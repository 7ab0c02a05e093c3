package tui

import (
	"fmt"
	"strings"
)

// View implements tea.Model interface
func (m Model) View() string {
	var b strings.Builder

	// Title
	b.WriteString(TitleStyle.Render("🤖 Campaign Orchestrator Monitor"))
	b.WriteString("\n\n")

	// Current state
	b.WriteString(m.getStateText())
	b.WriteString("\n\n")

	if m.Connected && m.Status != nil {
		cp := m.Status.Checkpoint

		// Current campaign progress
		if cp.CurrentCampaignID != "" {
			b.WriteString(InfoStyle.Render(fmt.Sprintf("📣 Campaign: %s (%s)", cp.CurrentCampaignID, cp.CurrentCampaignTitle)))
			b.WriteString("\n")
			b.WriteString(InfoStyle.Render(fmt.Sprintf("   Types done: %d | remaining: %d | items generated: %d",
				len(cp.Progress.ContentTypesCompleted), len(cp.Progress.ContentTypesRemaining), cp.Progress.GenerationCount)))
			b.WriteString("\n\n")
		}

		// Run statistics
		stats := fmt.Sprintf("Campaigns: %d | Content: %d | Errors: %d\nRate limits: %d | Retries: %d | Recovered: %d",
			cp.Stats.CampaignsProcessed, cp.Stats.ContentGenerated, cp.Stats.Errors,
			cp.Stats.RateLimitsHit, cp.Stats.RetriesAttempted, cp.Stats.RetriesSuccessful)
		b.WriteString(BoxStyle.Render(stats))
		b.WriteString("\n\n")

		// Logs
		if len(m.Status.Run.Logs) > 0 {
			b.WriteString(InfoStyle.Render("📝 Recent Activity:"))
			b.WriteString("\n")
			logs := m.Status.Run.Logs
			if len(logs) > 10 {
				logs = logs[len(logs)-10:]
			}
			for _, entry := range logs {
				line := fmt.Sprintf("   %s  %s", entry.Timestamp.Format("15:04:05"), entry.Message)
				b.WriteString(InfoStyle.Render(line))
				b.WriteString("\n")
			}
			b.WriteString("\n")
		}
	}

	// Operator action feedback
	if m.Notice != "" {
		b.WriteString(StatusStyle.Render(m.Notice))
		b.WriteString("\n\n")
	}

	// Help text
	b.WriteString(InfoStyle.Render("Press 'h' to halt | 'c' to clear checkpoint | 'q' or Ctrl+C to quit"))

	return b.String()
}
