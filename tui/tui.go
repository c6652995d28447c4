// ABOUTME: Terminal User Interface using bubbletea framework
// ABOUTME: Interactive browser for the sync ledger and ingestion driver status
package tui

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/harperreed/fitsync/models"
)

// ViewMode represents the current TUI view
type ViewMode int

const (
	ViewList ViewMode = iota
	ViewDetail
	ViewDrivers
)

const recordLimit = 200

// LedgerReader is the read side of the sync ledger.
type LedgerReader interface {
	List(ctx context.Context, filter models.ListFilter) ([]models.SyncRecord, error)
	Count(ctx context.Context) (map[models.Source]int, error)
}

type StateReader interface {
	All(ctx context.Context) ([]models.SyncState, error)
}

// Job runs one ingestion cycle for a driver.
type Job func(ctx context.Context) error

// sourceFilters are the list tabs; the empty source means all.
var sourceFilters = []models.Source{"", models.SourceStrava, models.SourceWhoop}

// Model is the main bubbletea model
type Model struct {
	ledger LedgerReader
	states StateReader
	jobs   map[string]Job

	viewMode ViewMode

	// List view state
	filterIndex int
	records     []models.SyncRecord
	counts      map[models.Source]int
	selectedRow int

	// Drivers view state
	syncStates      []models.SyncState
	selectedService int
	syncInProgress  map[string]bool
	syncMessages    []string

	// UI state
	width  int
	height int
	err    error
}

type recordsLoadedMsg struct {
	records []models.SyncRecord
	counts  map[models.Source]int
	err     error
}

type statesLoadedMsg struct {
	states []models.SyncState
	err    error
}

// NewModel creates a new TUI model. jobs maps driver services to the cycle
// the drivers view may trigger; services without a job are display-only.
func NewModel(ledger LedgerReader, states StateReader, jobs map[string]Job) Model {
	if jobs == nil {
		jobs = map[string]Job{}
	}
	return Model{
		ledger:         ledger,
		states:         states,
		jobs:           jobs,
		viewMode:       ViewList,
		counts:         map[models.Source]int{},
		syncInProgress: map[string]bool{},
		width:          80,
		height:         24,
	}
}

// Run starts the full-screen program and blocks until the user quits.
func Run(ledger LedgerReader, states StateReader, jobs map[string]Job) error {
	_, err := tea.NewProgram(NewModel(ledger, states, jobs), tea.WithAltScreen()).Run()
	return err
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.loadRecords(), m.loadStates())
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKeyPress(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil
	case recordsLoadedMsg:
		m.err = msg.err
		if msg.err == nil {
			m.records = msg.records
			if msg.counts != nil {
				m.counts = msg.counts
			}
		}
		if m.selectedRow >= len(m.records) {
			m.selectedRow = max(len(m.records)-1, 0)
		}
		return m, nil
	case statesLoadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.syncStates = msg.states
		return m, nil
	case SyncCompleteMsg:
		m.handleSyncComplete(msg)
		return m, tea.Batch(m.loadRecords(), m.loadStates())
	}
	return m, nil
}

func (m Model) View() string {
	switch m.viewMode {
	case ViewList:
		return m.renderListView()
	case ViewDetail:
		return m.renderDetailView()
	case ViewDrivers:
		return m.renderSyncView()
	}
	return ""
}

func (m Model) handleKeyPress(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	}

	switch m.viewMode {
	case ViewList:
		return m.handleListKeys(msg)
	case ViewDetail:
		return m.handleDetailKeys(msg)
	case ViewDrivers:
		return m.handleSyncKeys(msg)
	}
	return m, nil
}

func (m Model) currentSource() models.Source {
	return sourceFilters[m.filterIndex]
}

func (m Model) loadRecords() tea.Cmd {
	ledger := m.ledger
	filter := models.ListFilter{Source: m.currentSource(), Limit: recordLimit}
	return func() tea.Msg {
		ctx := context.Background()
		records, err := ledger.List(ctx, filter)
		if err != nil {
			return recordsLoadedMsg{err: err}
		}
		counts, err := ledger.Count(ctx)
		return recordsLoadedMsg{records: records, counts: counts, err: err}
	}
}

func (m Model) loadStates() tea.Cmd {
	states := m.states
	return func() tea.Msg {
		all, err := states.All(context.Background())
		return statesLoadedMsg{states: all, err: err}
	}
}

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			MarginBottom(1)

	tabActiveStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("170")).
			Background(lipgloss.Color("235")).
			Padding(0, 2)

	tabInactiveStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("240")).
				Padding(0, 2)

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			MarginTop(1)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("9"))
)
