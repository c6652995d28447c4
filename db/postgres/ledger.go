// ABOUTME: Postgres-backed sync ledger for deployments sharing one ledger across processes
// ABOUTME: Same contract as the SQLite ledger; the unique key is enforced by Postgres
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/harperreed/fitsync/models"
)

const uniqueViolation = "23505"

const schema = `
CREATE TABLE IF NOT EXISTS sync_records (
	id BIGSERIAL PRIMARY KEY,
	source TEXT NOT NULL,
	source_id TEXT NOT NULL,
	activity_type TEXT NOT NULL DEFAULT '',
	calendar_event_id TEXT NOT NULL,
	synced_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

ALTER TABLE sync_records ADD COLUMN IF NOT EXISTS activity_start TIMESTAMPTZ;
ALTER TABLE sync_records ADD COLUMN IF NOT EXISTS activity_end TIMESTAMPTZ;

CREATE UNIQUE INDEX IF NOT EXISTS idx_sync_records_source_key ON sync_records(source, source_id);
CREATE INDEX IF NOT EXISTS idx_sync_records_span ON sync_records(source, activity_start, activity_end);
CREATE INDEX IF NOT EXISTS idx_sync_records_synced_at ON sync_records(synced_at);
`

// Ledger is the Postgres implementation of the sync ledger.
type Ledger struct {
	pool *pgxpool.Pool
}

func NewLedger(pool *pgxpool.Pool) *Ledger {
	return &Ledger{pool: pool}
}

// Open connects to dsn and ensures the schema exists.
func Open(ctx context.Context, dsn string) (*Ledger, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres ledger: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach postgres ledger: %w", err)
	}
	l := NewLedger(pool)
	if err := l.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return l, nil
}

// EnsureSchema creates or additively upgrades the ledger table.
func (l *Ledger) EnsureSchema(ctx context.Context) error {
	if _, err := l.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to initialize postgres schema: %w", err)
	}
	return nil
}

func (l *Ledger) Close() {
	l.pool.Close()
}

const recordColumns = `id, source, source_id, activity_type, calendar_event_id, activity_start, activity_end, synced_at`

func (l *Ledger) Get(ctx context.Context, source models.Source, sourceID string) (*models.SyncRecord, error) {
	row := l.pool.QueryRow(ctx, `SELECT `+recordColumns+` FROM sync_records WHERE source = $1 AND source_id = $2`,
		string(source), sourceID)

	rec, err := scanRecord(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync record: %w", err)
	}
	return rec, nil
}

func (l *Ledger) Insert(ctx context.Context, rec *models.SyncRecord) error {
	if rec.SyncedAt.IsZero() {
		rec.SyncedAt = time.Now().UTC()
	}
	err := l.pool.QueryRow(ctx, `
		INSERT INTO sync_records (source, source_id, activity_type, calendar_event_id, activity_start, activity_end, synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		string(rec.Source), rec.SourceID, rec.ActivityType, rec.CalendarEventID,
		rec.ActivityStart, rec.ActivityEnd, rec.SyncedAt,
	).Scan(&rec.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("%s: %w", rec.Key(), models.ErrDuplicateRecord)
		}
		return fmt.Errorf("failed to insert sync record: %w", err)
	}
	return nil
}

func (l *Ledger) Update(ctx context.Context, rec *models.SyncRecord) error {
	tag, err := l.pool.Exec(ctx, `
		UPDATE sync_records
		SET activity_type = $1, calendar_event_id = $2, activity_start = $3, activity_end = $4, synced_at = $5
		WHERE source = $6 AND source_id = $7`,
		rec.ActivityType, rec.CalendarEventID, rec.ActivityStart, rec.ActivityEnd, rec.SyncedAt,
		string(rec.Source), rec.SourceID)
	if err != nil {
		return fmt.Errorf("failed to update sync record: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("sync record %s not found", rec.Key())
	}
	return nil
}

// Upsert writes rec whether or not its key exists. Used by the SQLite import.
func (l *Ledger) Upsert(ctx context.Context, rec *models.SyncRecord) error {
	err := l.pool.QueryRow(ctx, `
		INSERT INTO sync_records (source, source_id, activity_type, calendar_event_id, activity_start, activity_end, synced_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (source, source_id) DO UPDATE SET
			activity_type = EXCLUDED.activity_type,
			calendar_event_id = EXCLUDED.calendar_event_id,
			activity_start = EXCLUDED.activity_start,
			activity_end = EXCLUDED.activity_end,
			synced_at = EXCLUDED.synced_at
		RETURNING id`,
		string(rec.Source), rec.SourceID, rec.ActivityType, rec.CalendarEventID,
		rec.ActivityStart, rec.ActivityEnd, rec.SyncedAt,
	).Scan(&rec.ID)
	if err != nil {
		return fmt.Errorf("failed to upsert sync record: %w", err)
	}
	return nil
}

func (l *Ledger) Delete(ctx context.Context, source models.Source, sourceID string) error {
	if _, err := l.pool.Exec(ctx, `DELETE FROM sync_records WHERE source = $1 AND source_id = $2`, string(source), sourceID); err != nil {
		return fmt.Errorf("failed to delete sync record: %w", err)
	}
	return nil
}

// FindOverlapping returns records of source whose span shares an open
// interval with [start, end).
func (l *Ledger) FindOverlapping(ctx context.Context, source models.Source, start, end time.Time) ([]models.SyncRecord, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT `+recordColumns+`
		FROM sync_records
		WHERE source = $1
		  AND activity_start IS NOT NULL
		  AND activity_end IS NOT NULL
		  AND activity_start < $2
		  AND activity_end > $3
		ORDER BY activity_start`,
		string(source), end.UTC(), start.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query overlapping records: %w", err)
	}
	return collectRecords(rows)
}

func (l *Ledger) List(ctx context.Context, filter models.ListFilter) ([]models.SyncRecord, error) {
	var (
		where []string
		args  []any
	)
	if filter.Source != "" {
		args = append(args, string(filter.Source))
		where = append(where, fmt.Sprintf("source = $%d", len(args)))
	}
	if filter.Since != nil {
		args = append(args, filter.Since.UTC())
		where = append(where, fmt.Sprintf("synced_at >= $%d", len(args)))
	}

	query := "SELECT " + recordColumns + " FROM sync_records"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY synced_at DESC, id DESC"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := l.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync records: %w", err)
	}
	return collectRecords(rows)
}

func (l *Ledger) Count(ctx context.Context) (map[models.Source]int, error) {
	rows, err := l.pool.Query(ctx, `SELECT source, COUNT(*) FROM sync_records GROUP BY source`)
	if err != nil {
		return nil, fmt.Errorf("failed to count sync records: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.Source]int)
	for rows.Next() {
		var source string
		var n int
		if err := rows.Scan(&source, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		counts[models.Source(source)] = n
	}
	return counts, rows.Err()
}

func scanRecord(row pgx.Row) (*models.SyncRecord, error) {
	var rec models.SyncRecord
	var source string
	if err := row.Scan(&rec.ID, &source, &rec.SourceID, &rec.ActivityType, &rec.CalendarEventID,
		&rec.ActivityStart, &rec.ActivityEnd, &rec.SyncedAt); err != nil {
		return nil, err
	}
	rec.Source = models.Source(source)
	rec.SyncedAt = rec.SyncedAt.UTC()
	if rec.ActivityStart != nil {
		t := rec.ActivityStart.UTC()
		rec.ActivityStart = &t
	}
	if rec.ActivityEnd != nil {
		t := rec.ActivityEnd.UTC()
		rec.ActivityEnd = &t
	}
	return &rec, nil
}

func collectRecords(rows pgx.Rows) ([]models.SyncRecord, error) {
	defer rows.Close()

	var records []models.SyncRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync record: %w", err)
		}
		records = append(records, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync records: %w", err)
	}
	return records, nil
}
