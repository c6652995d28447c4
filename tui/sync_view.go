// ABOUTME: TUI view for ingestion driver status and controls
// ABOUTME: Displays per-driver sync state and triggers a Whoop poll or Strava backfill
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/fitsync/models"
)

var (
	driverHeaderStyle   = lipgloss.NewStyle().Bold(true).Underline(true).Foreground(lipgloss.Color("39"))
	driverNameStyle     = lipgloss.NewStyle().Bold(true).Width(18)
	driverOKStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	driverRunningStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("11"))
	driverFailedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	driverSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255")).Background(lipgloss.Color("235"))
	driverLogStyle      = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("240"))
)

// driverServices are listed in this order.
var driverServices = []string{
	models.ServiceWhoopPoll,
	models.ServiceStravaBackfill,
	models.ServiceStravaWebhook,
}

// SyncCompleteMsg is sent when a triggered driver run completes.
type SyncCompleteMsg struct {
	Service string
	Error   error
}

func (m Model) renderSyncView() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("Ingestion Drivers"))
	s.WriteString("\n\n")

	s.WriteString(driverHeaderStyle.Render("Driver Status"))
	s.WriteString("\n\n")

	for i, service := range driverServices {
		var state *models.SyncState
		for j := range m.syncStates {
			if m.syncStates[j].Service == service {
				state = &m.syncStates[j]
				break
			}
		}

		var row strings.Builder
		if i == m.selectedService {
			row.WriteString("▶ ")
			row.WriteString(driverSelectedStyle.Render(driverNameStyle.Render(service)))
		} else {
			row.WriteString("  ")
			row.WriteString(driverNameStyle.Render(service))
		}

		switch {
		case m.syncInProgress[service] || (state != nil && state.Status == models.StatusSyncing):
			row.WriteString(driverRunningStyle.Render("  ⟳ Syncing..."))
		case state == nil:
			row.WriteString(driverLogStyle.Render("  Never run"))
		case state.Status == models.StatusError:
			row.WriteString(driverFailedStyle.Render("  ✗ Error"))
			if state.ErrorMessage != nil {
				row.WriteString(driverFailedStyle.Render(": " + *state.ErrorMessage))
			}
		default:
			row.WriteString(driverOKStyle.Render("  ✓ Idle"))
			if state.LastSyncTime != nil {
				row.WriteString(driverLogStyle.Render(" • Last success " + formatTimeSince(*state.LastSyncTime)))
			}
		}

		s.WriteString(row.String())
		s.WriteString("\n")
	}
	s.WriteString("\n")

	if recent := lastN(m.syncMessages, 5); len(recent) > 0 {
		s.WriteString(driverHeaderStyle.Render("Recent Activity") + "\n\n")
		for _, line := range recent {
			s.WriteString(driverLogStyle.Render("  "+line) + "\n")
		}
		s.WriteString("\n")
	}

	s.WriteString(m.renderSyncHelp())
	return s.String()
}

func (m Model) renderSyncHelp() string {
	help := []string{
		"↑/↓: Select driver",
		"Enter: Run selected",
		"r: Refresh status",
		"Esc: Back",
		"q: Quit",
	}
	return helpStyle.Render(strings.Join(help, " • "))
}

func (m Model) handleSyncKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.selectedService > 0 {
			m.selectedService--
		}
	case "down", "j":
		if m.selectedService < len(driverServices)-1 {
			m.selectedService++
		}
	case "enter":
		service := driverServices[m.selectedService]
		job, ok := m.jobs[service]
		if !ok {
			m.addSyncMessage(fmt.Sprintf("%s runs only when Strava calls the webhook", service))
			return m, nil
		}
		if m.syncInProgress[service] {
			return m, nil
		}
		m.syncInProgress[service] = true
		m.addSyncMessage(fmt.Sprintf("Starting %s...", service))
		return m, runJob(service, job)
	case "r":
		return m, m.loadStates()
	case "esc":
		m.viewMode = ViewList
	}

	return m, nil
}

func runJob(service string, job Job) tea.Cmd {
	return func() tea.Msg {
		return SyncCompleteMsg{Service: service, Error: job(context.Background())}
	}
}

func (m *Model) addSyncMessage(msg string) {
	timestamp := time.Now().Format("15:04:05")
	m.syncMessages = append(m.syncMessages, fmt.Sprintf("[%s] %s", timestamp, msg))
}

func (m *Model) handleSyncComplete(msg SyncCompleteMsg) {
	m.syncInProgress[msg.Service] = false
	if msg.Error != nil {
		m.addSyncMessage(fmt.Sprintf("✗ %s failed: %v", msg.Service, msg.Error))
		return
	}
	m.addSyncMessage(fmt.Sprintf("✓ %s completed", msg.Service))
}

// formatTimeSince formats a time duration in a human-readable way.
func formatTimeSince(t time.Time) string {
	duration := time.Since(t)

	switch {
	case duration < time.Minute:
		return "just now"
	case duration < time.Hour:
		return plural(int(duration.Minutes()), "minute")
	case duration < 24*time.Hour:
		return plural(int(duration.Hours()), "hour")
	default:
		return plural(int(duration.Hours()/24), "day")
	}
}

func lastN(lines []string, n int) []string {
	if len(lines) > n {
		return lines[len(lines)-n:]
	}
	return lines
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
