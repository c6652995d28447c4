// ABOUTME: Migration utility for moving the sync ledger from SQLite to Postgres.
// ABOUTME: Copies every record by key with upsert semantics, with a dry-run mode.

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"

	"github.com/harperreed/fitsync/db"
	"github.com/harperreed/fitsync/db/postgres"
	"github.com/harperreed/fitsync/models"
)

type recordLister interface {
	List(ctx context.Context, filter models.ListFilter) ([]models.SyncRecord, error)
}

type recordSink interface {
	Upsert(ctx context.Context, rec *models.SyncRecord) error
}

func main() {
	sqlitePath := flag.String("sqlite", db.DefaultPath(), "Path to the SQLite database")
	dsn := flag.String("postgres", os.Getenv("LEDGER_DSN"), "Postgres DSN (default: $LEDGER_DSN)")
	dryRun := flag.Bool("dry-run", false, "Show what would be copied without writing")
	flag.Parse()

	if *dsn == "" && !*dryRun {
		log.Fatal("Error: -postgres flag (or LEDGER_DSN) is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := migrate(ctx, *sqlitePath, *dsn, *dryRun); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}

	log.Println("Migration completed successfully")
}

func migrate(ctx context.Context, sqlitePath, dsn string, dryRun bool) error {
	if _, err := os.Stat(sqlitePath); os.IsNotExist(err) {
		return fmt.Errorf("database file does not exist: %s", sqlitePath)
	}

	database, err := db.OpenDatabase(sqlitePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = database.Close() }()

	source := db.NewLedger(database)

	if dryRun {
		counts, err := source.Count(ctx)
		if err != nil {
			return err
		}
		log.Printf("[DRY RUN] Would copy %d strava and %d whoop records into postgres",
			counts[models.SourceStrava], counts[models.SourceWhoop])
		return nil
	}

	target, err := postgres.Open(ctx, dsn)
	if err != nil {
		return err
	}
	defer target.Close()

	n, err := copyRecords(ctx, source, target)
	if err != nil {
		return err
	}
	log.Printf("Copied %d records", n)
	return nil
}

// copyRecords upserts every source record into dst. Re-running is safe;
// rows already present are overwritten with the SQLite values.
func copyRecords(ctx context.Context, src recordLister, dst recordSink) (int, error) {
	records, err := src.List(ctx, models.ListFilter{})
	if err != nil {
		return 0, fmt.Errorf("failed to read records: %w", err)
	}

	for i := range records {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		if err := dst.Upsert(ctx, &records[i]); err != nil {
			return i, fmt.Errorf("failed to copy %s: %w", records[i].Key(), err)
		}
	}
	return len(records), nil
}
