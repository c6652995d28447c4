// ABOUTME: Tests for the TUI ledger browser and driver view
// ABOUTME: Verifies loading, filtering, navigation, and triggered driver runs
package tui

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/harperreed/fitsync/db"
	"github.com/harperreed/fitsync/models"
)

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()
	database, err := db.OpenDatabase(filepath.Join(t.TempDir(), "tui.db"))
	if err != nil {
		t.Fatalf("Failed to open test db: %v", err)
	}
	t.Cleanup(func() { _ = database.Close() })
	return database
}

func seedRecords(t *testing.T, database *sql.DB) {
	t.Helper()
	ledger := db.NewLedger(database)
	start := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)
	end := start.Add(time.Hour)

	records := []*models.SyncRecord{
		{Source: models.SourceStrava, SourceID: "12345", ActivityType: "Run", CalendarEventID: "evt-1", ActivityStart: &start, ActivityEnd: &end},
		{Source: models.SourceWhoop, SourceID: "sleep-9", ActivityType: models.ActivityTypeSleep, CalendarEventID: "evt-2"},
	}
	for _, rec := range records {
		if err := ledger.Insert(context.Background(), rec); err != nil {
			t.Fatalf("Failed to insert record: %v", err)
		}
	}
}

func newTestModel(t *testing.T, jobs map[string]Job) Model {
	t.Helper()
	database := setupTestDB(t)
	seedRecords(t, database)
	return NewModel(db.NewLedger(database), db.NewStateStore(database), jobs)
}

// apply runs a command synchronously and feeds its message back to the model.
func apply(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		t.Fatal("Expected a command")
	}
	updated, _ := m.Update(cmd())
	return updated.(Model)
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "down":
		return tea.KeyMsg{Type: tea.KeyDown}
	case "up":
		return tea.KeyMsg{Type: tea.KeyUp}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func press(m Model, s string) (Model, tea.Cmd) {
	updated, cmd := m.Update(key(s))
	return updated.(Model), cmd
}

func TestListViewLoadsRecords(t *testing.T) {
	m := newTestModel(t, nil)
	m = apply(t, m, m.loadRecords())

	if len(m.records) != 2 {
		t.Fatalf("Expected 2 records, got %d", len(m.records))
	}
	if m.counts[models.SourceStrava] != 1 || m.counts[models.SourceWhoop] != 1 {
		t.Errorf("Unexpected counts: %v", m.counts)
	}

	output := m.View()
	if !strings.Contains(output, "FITSYNC LEDGER") {
		t.Error("List view should contain title")
	}
	if !strings.Contains(output, "12345") || !strings.Contains(output, "sleep-9") {
		t.Error("List view should show both records")
	}
	if !strings.Contains(output, "All (2)") {
		t.Error("List view should show the total on the All tab")
	}
}

func TestSourceFilterCycle(t *testing.T) {
	m := newTestModel(t, nil)
	m = apply(t, m, m.loadRecords())

	m, cmd := press(m, "tab")
	if m.currentSource() != models.SourceStrava {
		t.Fatalf("Expected strava filter, got %q", m.currentSource())
	}
	m = apply(t, m, cmd)
	if len(m.records) != 1 || m.records[0].Source != models.SourceStrava {
		t.Errorf("Expected only strava records, got %+v", m.records)
	}

	m, cmd = press(m, "tab")
	m = apply(t, m, cmd)
	if len(m.records) != 1 || m.records[0].SourceID != "sleep-9" {
		t.Errorf("Expected only whoop records, got %+v", m.records)
	}

	m, _ = press(m, "tab")
	if m.currentSource() != "" {
		t.Error("Filter should wrap back to all sources")
	}
}

func TestListNavigationAndDetail(t *testing.T) {
	m := newTestModel(t, nil)
	m = apply(t, m, m.loadRecords())

	m, _ = press(m, "down")
	m, _ = press(m, "down")
	if m.selectedRow != 1 {
		t.Errorf("Selection should stop at the last row, got %d", m.selectedRow)
	}
	m, _ = press(m, "up")
	if m.selectedRow != 0 {
		t.Errorf("Expected selectedRow=0, got %d", m.selectedRow)
	}

	selected := m.selectedRecord()
	m, _ = press(m, "enter")
	if m.viewMode != ViewDetail {
		t.Fatal("Enter should open the detail view")
	}
	output := m.View()
	if !strings.Contains(output, selected.CalendarEventID) {
		t.Errorf("Detail view should show the calendar event id, got %q", output)
	}

	m, _ = press(m, "esc")
	if m.viewMode != ViewList {
		t.Error("Escape should return to the list")
	}
}

func TestEnterOnEmptyListStays(t *testing.T) {
	database := setupTestDB(t)
	m := NewModel(db.NewLedger(database), db.NewStateStore(database), nil)
	m = apply(t, m, m.loadRecords())

	m, _ = press(m, "enter")
	if m.viewMode != ViewList {
		t.Error("Enter with no records should stay on the list")
	}
}

func TestSyncViewWithStates(t *testing.T) {
	database := setupTestDB(t)
	states := db.NewStateStore(database)
	ctx := context.Background()
	if err := states.MarkSuccess(ctx, models.ServiceWhoopPoll); err != nil {
		t.Fatalf("MarkSuccess failed: %v", err)
	}
	if err := states.MarkFailed(ctx, models.ServiceStravaBackfill, errors.New("strava not connected")); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}

	m := NewModel(db.NewLedger(database), states, nil)
	m, cmd := press(m, "s")
	if m.viewMode != ViewDrivers {
		t.Fatal("s should open the drivers view")
	}
	m = apply(t, m, cmd)

	if len(m.syncStates) != 2 {
		t.Fatalf("Expected 2 states, got %d", len(m.syncStates))
	}
	output := m.View()
	if !strings.Contains(output, "✓ Idle") {
		t.Error("Should show the idle whoop poller")
	}
	if !strings.Contains(output, "strava not connected") {
		t.Error("Should show the backfill error")
	}
	if !strings.Contains(output, "Never run") {
		t.Error("Should show the webhook as never run")
	}
}

func TestSyncKeyNavigation(t *testing.T) {
	m := newTestModel(t, nil)
	m.viewMode = ViewDrivers

	m, _ = press(m, "up")
	if m.selectedService != 0 {
		t.Errorf("Expected selectedService=0, got %d", m.selectedService)
	}
	for i := 0; i < 5; i++ {
		m, _ = press(m, "down")
	}
	if m.selectedService != len(driverServices)-1 {
		t.Errorf("Selection should stop at the last driver, got %d", m.selectedService)
	}

	m, _ = press(m, "esc")
	if m.viewMode != ViewList {
		t.Error("Escape should return to the list")
	}
}

func TestTriggeredDriverRun(t *testing.T) {
	var calls int
	jobs := map[string]Job{
		models.ServiceWhoopPoll: func(context.Context) error {
			calls++
			return nil
		},
		models.ServiceStravaBackfill: func(context.Context) error {
			return errors.New("strava not connected")
		},
	}
	m := newTestModel(t, jobs)
	m.viewMode = ViewDrivers

	m, cmd := press(m, "enter")
	if !m.syncInProgress[models.ServiceWhoopPoll] {
		t.Fatal("Whoop poll should be marked in progress")
	}
	if _, again := press(m, "enter"); again != nil {
		t.Error("A running driver should not be started twice")
	}

	m = apply(t, m, cmd)
	if calls != 1 {
		t.Errorf("Expected the job to run once, got %d", calls)
	}
	if m.syncInProgress[models.ServiceWhoopPoll] {
		t.Error("Whoop poll should no longer be in progress")
	}
	if last := m.syncMessages[len(m.syncMessages)-1]; !strings.Contains(last, "✓ whoop-poll completed") {
		t.Errorf("Unexpected message: %q", last)
	}

	m, _ = press(m, "down")
	m, cmd = press(m, "enter")
	m = apply(t, m, cmd)
	if last := m.syncMessages[len(m.syncMessages)-1]; !strings.Contains(last, "✗ strava-backfill failed: strava not connected") {
		t.Errorf("Unexpected message: %q", last)
	}

	m, _ = press(m, "down")
	m, cmd = press(m, "enter")
	if cmd != nil {
		t.Error("The webhook driver has no job to run")
	}
	if last := m.syncMessages[len(m.syncMessages)-1]; !strings.Contains(last, "webhook") {
		t.Errorf("Unexpected message: %q", last)
	}
}

func TestFormatTimeSince(t *testing.T) {
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{90 * time.Second, "1 minute ago"},
		{5 * time.Minute, "5 minutes ago"},
		{2*time.Hour + time.Minute, "2 hours ago"},
		{49 * time.Hour, "2 days ago"},
	}
	for _, tt := range tests {
		if got := formatTimeSince(time.Now().Add(-tt.ago)); got != tt.want {
			t.Errorf("formatTimeSince(-%s) = %q, want %q", tt.ago, got, tt.want)
		}
	}
}

func TestSyncViewShowsRecentActivityOnly(t *testing.T) {
	m := newTestModel(t, nil)
	m.viewMode = ViewDrivers
	for i := 1; i <= 7; i++ {
		m.addSyncMessage(fmt.Sprintf("message %d", i))
	}

	output := m.View()
	if !strings.Contains(output, "Recent Activity") {
		t.Fatal("Should show the recent activity section")
	}
	for _, gone := range []string{"message 1", "message 2"} {
		if strings.Contains(output, gone) {
			t.Errorf("Older message %q should be trimmed", gone)
		}
	}
	for _, kept := range []string{"message 3", "message 7"} {
		if !strings.Contains(output, kept) {
			t.Errorf("Recent message %q should be shown", kept)
		}
	}
}
