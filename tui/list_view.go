package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/fitsync/models"
)

func (m Model) renderListView() string {
	var s strings.Builder

	s.WriteString(titleStyle.Render("FITSYNC LEDGER"))
	s.WriteString("\n\n")

	s.WriteString(m.renderTabs())
	s.WriteString("\n\n")

	if m.err != nil {
		s.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		s.WriteString("\n\n")
	}

	s.WriteString(m.renderTable())
	s.WriteString("\n\n")

	s.WriteString(m.renderListHelp())

	return s.String()
}

func (m Model) renderTabs() string {
	var rendered []string
	for i, source := range sourceFilters {
		label := "All"
		n := 0
		for _, c := range m.counts {
			n += c
		}
		if source != "" {
			label = strings.ToUpper(string(source[:1])) + string(source[1:])
			n = m.counts[source]
		}
		tab := fmt.Sprintf("%s (%d)", label, n)

		if i == m.filterIndex {
			rendered = append(rendered, tabActiveStyle.Render(tab))
		} else {
			rendered = append(rendered, tabInactiveStyle.Render(tab))
		}
	}

	return lipgloss.JoinHorizontal(lipgloss.Top, rendered...)
}

func (m Model) renderTable() string {
	columns := []table.Column{
		{Title: "Source", Width: 8},
		{Title: "Source ID", Width: 18},
		{Title: "Type", Width: 14},
		{Title: "Start", Width: 17},
		{Title: "Synced", Width: 17},
	}

	var rows []table.Row
	for _, rec := range m.records {
		start := "-"
		if rec.ActivityStart != nil {
			start = rec.ActivityStart.Local().Format("2006-01-02 15:04")
		}
		rows = append(rows, table.Row{
			string(rec.Source),
			rec.SourceID,
			rec.ActivityType,
			start,
			rec.SyncedAt.Local().Format("2006-01-02 15:04"),
		})
	}

	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(max(m.height-10, 5)),
	)

	if m.selectedRow < len(rows) {
		t.SetCursor(m.selectedRow)
	}

	return t.View()
}

func (m Model) renderListHelp() string {
	help := []string{
		"↑/↓: Navigate",
		"Tab: Switch source",
		"Enter: View details",
		"s: Drivers",
		"r: Refresh",
		"q: Quit",
	}
	return helpStyle.Render(strings.Join(help, " • "))
}

func (m Model) handleListKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "up", "k":
		if m.selectedRow > 0 {
			m.selectedRow--
		}
	case "down", "j":
		if m.selectedRow < len(m.records)-1 {
			m.selectedRow++
		}
	case "tab":
		m.filterIndex = (m.filterIndex + 1) % len(sourceFilters)
		m.selectedRow = 0
		return m, m.loadRecords()
	case "r":
		return m, m.loadRecords()
	case "enter":
		if m.selectedRecord() != nil {
			m.viewMode = ViewDetail
		}
	case "s":
		m.viewMode = ViewDrivers
		return m, m.loadStates()
	}

	return m, nil
}

func (m Model) selectedRecord() *models.SyncRecord {
	if m.selectedRow < 0 || m.selectedRow >= len(m.records) {
		return nil
	}
	return &m.records[m.selectedRow]
}
