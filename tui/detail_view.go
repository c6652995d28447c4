package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var detailLabelStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(lipgloss.Color("39")).
	Width(16)

func (m Model) renderDetailView() string {
	rec := m.selectedRecord()
	if rec == nil {
		return "No record selected"
	}

	var s strings.Builder
	s.WriteString(titleStyle.Render(fmt.Sprintf("%s %s", strings.ToUpper(string(rec.Source)), rec.SourceID)))
	s.WriteString("\n\n")

	line := func(label, value string) {
		s.WriteString(detailLabelStyle.Render(label))
		s.WriteString(value)
		s.WriteString("\n")
	}

	line("Type", rec.ActivityType)
	line("Calendar event", rec.CalendarEventID)
	if rec.ActivityStart != nil {
		line("Start", rec.ActivityStart.Local().Format("Mon Jan 2 2006 15:04"))
	}
	if rec.ActivityEnd != nil {
		line("End", rec.ActivityEnd.Local().Format("Mon Jan 2 2006 15:04"))
	}
	if rec.HasSpan() {
		line("Duration", rec.ActivityEnd.Sub(*rec.ActivityStart).Round(time.Minute).String())
	}
	line("Synced", fmt.Sprintf("%s (%s)", rec.SyncedAt.Local().Format("Mon Jan 2 2006 15:04"), formatTimeSince(rec.SyncedAt)))

	s.WriteString("\n")
	s.WriteString(helpStyle.Render("Esc: Back • q: Quit"))
	return s.String()
}

func (m Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "esc", "backspace":
		m.viewMode = ViewList
	}
	return m, nil
}
