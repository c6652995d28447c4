// ABOUTME: Entry point for the fitsync service and CLI
// ABOUTME: Routes to the server, one-shot sync runs, MCP, or the TUI based on arguments
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"

	"github.com/harperreed/fitsync/cli"
	"github.com/harperreed/fitsync/config"
	"github.com/harperreed/fitsync/db"
	"github.com/harperreed/fitsync/logging"
	"github.com/harperreed/fitsync/models"
	"github.com/harperreed/fitsync/tui"
)

const version = "0.1.0"

func main() {
	// Global flags
	showVersion := flag.Bool("version", false, "Show version and exit")
	dbPath := flag.String("db-path", "", "Database path (default: ~/.local/share/fitsync/fitsync.db)")
	envFile := flag.String("env-file", ".env", "Optional .env file to load")
	initOnly := flag.Bool("init", false, "Initialize database and exit")

	// Parse global flags but don't fail on unknown (for subcommands)
	_ = flag.CommandLine.Parse(os.Args[1:])

	if *showVersion {
		fmt.Printf("fitsync version %s\n", version)
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 && !*initOnly {
		printUsage()
		os.Exit(0)
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if *dbPath != "" {
		cfg.DBPath = *dbPath
	}

	logOutput := io.Writer(os.Stderr)
	if len(args) > 0 && args[0] == "tui" {
		// Log lines would tear the full-screen view.
		logOutput = io.Discard
	}
	logger, err := logging.NewWithWriter(logOutput, cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		log.Fatalf("Failed to configure logging: %v", err)
	}
	slog.SetDefault(logger)

	database, err := db.OpenDatabase(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer database.Close()

	if *initOnly {
		log.Printf("Database initialized at %s", cfg.DBPath)
		os.Exit(0)
	}

	ctx := context.Background()
	app, err := cli.NewApp(ctx, cfg, database, logger)
	if err != nil {
		log.Fatalf("Failed to start: %v", err)
	}
	defer func() { _ = app.Close() }()

	command := args[0]
	commandArgs := args[1:]

	switch command {
	case "serve":
		err = cli.ServeCommand(ctx, app, commandArgs)
	case "poll":
		err = cli.PollCommand(ctx, app, commandArgs)
	case "backfill":
		err = cli.BackfillCommand(ctx, app, commandArgs)
	case "status":
		err = cli.StatusCommand(ctx, app, commandArgs)
	case "delete":
		err = cli.DeleteCommand(ctx, app, commandArgs)
	case "auth":
		err = cli.AuthCommand(ctx, app, commandArgs)
	case "mcp":
		err = cli.MCPCommand(ctx, app, version)
	case "tui":
		jobs := map[string]tui.Job{models.ServiceWhoopPoll: app.Poller().Poll}
		jobs[models.ServiceStravaBackfill] = func(ctx context.Context) error {
			return app.Backfill().Run(ctx, cfg.StravaBackfillDays)
		}
		err = tui.Run(app.Ledger, app.State, jobs)
	default:
		fmt.Printf("Unknown command: %s\n\n", command)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		_ = app.Close()
		database.Close()
		log.Fatalf("Error: %v", err)
	}
}

func printUsage() {
	fmt.Printf(`fitsync v%s - Strava and Whoop activities on one Google Calendar

USAGE:
  fitsync [global flags] <command> [flags]

GLOBAL FLAGS:
  --version                 Show version and exit
  --db-path <path>          Database path (default: ~/.local/share/fitsync/fitsync.db)
  --env-file <path>         .env file to load (default: .env, missing is fine)
  --init                    Initialize database and exit

COMMANDS:
  fitsync serve             Run the webhook server and the Whoop poll loop
    --skip-startup-sync       Don't poll and backfill once at startup

  fitsync poll              Run one Whoop poll
    --lookback <duration>     Window to fetch (default: WHOOP_LOOKBACK)

  fitsync backfill          Sync recent Strava activities
    --days <n>                Days to look back, 1-90 (default: STRAVA_BACKFILL_DAYS)

  fitsync status            Show connections, driver state, and recent records
    --source <strava|whoop>   Only show one source
    --limit <n>               Max records (default: 20)

  fitsync delete <source> <source-id>
                            Remove a synced activity and its calendar event

  fitsync auth <strava|whoop|google>
                            Connect a service through its OAuth consent page
    --no-browser              Print the URL instead of opening a browser

  fitsync mcp               Start the MCP server on stdio
  fitsync tui               Browse the ledger interactively

EXAMPLES:
  # Connect everything, then run the service
  fitsync auth google
  fitsync auth strava
  fitsync auth whoop
  fitsync serve

  # Re-sync the last month of Strava activities
  fitsync backfill --days 30

  # Show only Whoop records
  fitsync status --source whoop

`, version)
}
