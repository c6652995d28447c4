// ABOUTME: Status CLI command
// ABOUTME: Shows connections, driver state, and recent ledger records
package cli

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"

	"github.com/harperreed/fitsync/models"
	"github.com/harperreed/fitsync/sync"
)

var (
	statusHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	statusCellStyle   = lipgloss.NewStyle().Padding(0, 1)
	statusOKStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	statusErrorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
)

type statusReport struct {
	Connected map[string]bool
	States    []models.SyncState
	Counts    map[models.Source]int
	Records   []models.SyncRecord
}

// StatusCommand prints what is connected, how each driver last ran, and
// the most recently synced records.
func StatusCommand(ctx context.Context, app *App, args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	source := fs.String("source", "", "Only show records from this source (strava/whoop)")
	limit := fs.Int("limit", 20, "Maximum number of records to show")
	_ = fs.Parse(args)

	filter := models.ListFilter{Limit: *limit}
	if *source != "" {
		s, err := models.ParseSource(*source)
		if err != nil {
			return err
		}
		filter.Source = s
	}

	report := statusReport{Connected: map[string]bool{}}
	connected, err := app.Tokens.Connected(ctx)
	if err != nil {
		return err
	}
	for _, svc := range connected {
		report.Connected[svc] = true
	}
	if report.States, err = app.State.All(ctx); err != nil {
		return err
	}
	if report.Counts, err = app.Ledger.Count(ctx); err != nil {
		return err
	}
	if report.Records, err = app.Ledger.List(ctx, filter); err != nil {
		return err
	}

	styled := term.IsTerminal(int(os.Stdout.Fd()))
	return renderStatus(os.Stdout, report, styled)
}

func renderStatus(w io.Writer, report statusReport, styled bool) error {
	connRows := make([][]string, 0, len(sync.Services))
	for _, svc := range sync.Services {
		mark := "not connected"
		if report.Connected[svc] {
			mark = "connected"
		}
		connRows = append(connRows, []string{svc, mark})
	}

	stateRows := make([][]string, 0, len(report.States))
	for _, s := range report.States {
		last := "never"
		if s.LastSyncTime != nil {
			last = s.LastSyncTime.Local().Format("2006-01-02 15:04")
		}
		msg := ""
		if s.ErrorMessage != nil {
			msg = *s.ErrorMessage
		}
		stateRows = append(stateRows, []string{s.Service, s.Status, last, msg})
	}

	recordRows := make([][]string, 0, len(report.Records))
	for _, r := range report.Records {
		start := "-"
		if r.ActivityStart != nil {
			start = r.ActivityStart.Local().Format("2006-01-02 15:04")
		}
		recordRows = append(recordRows, []string{
			string(r.Source), r.SourceID, r.ActivityType, start, r.SyncedAt.Local().Format(time.DateTime),
		})
	}

	sections := []struct {
		title   string
		headers []string
		rows    [][]string
	}{
		{"CONNECTIONS", []string{"SERVICE", "STATUS"}, connRows},
		{"DRIVERS", []string{"DRIVER", "STATUS", "LAST SUCCESS", "ERROR"}, stateRows},
		{fmt.Sprintf("RECORDS (strava %d, whoop %d)", report.Counts[models.SourceStrava], report.Counts[models.SourceWhoop]),
			[]string{"SOURCE", "SOURCE ID", "TYPE", "START", "SYNCED"}, recordRows},
	}

	for i, sec := range sections {
		if i > 0 {
			_, _ = fmt.Fprintln(w)
		}
		if styled {
			_, _ = fmt.Fprintln(w, statusHeaderStyle.Render(sec.title))
			_, _ = fmt.Fprintln(w, styledTable(sec.headers, sec.rows).Render())
			continue
		}
		_, _ = fmt.Fprintln(w, sec.title)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		_, _ = fmt.Fprintln(tw, strings.Join(sec.headers, "\t"))
		for _, row := range sec.rows {
			_, _ = fmt.Fprintln(tw, strings.Join(row, "\t"))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func styledTable(headers []string, rows [][]string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return statusHeaderStyle.Padding(0, 1)
			}
			if col == 1 && row >= 0 && row < len(rows) {
				switch rows[row][1] {
				case "connected", models.StatusIdle:
					return statusOKStyle.Padding(0, 1)
				case "not connected", models.StatusError:
					return statusErrorStyle.Padding(0, 1)
				}
			}
			return statusCellStyle
		})
}
