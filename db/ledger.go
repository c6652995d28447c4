// ABOUTME: SQLite-backed sync ledger mapping source activities to calendar events
// ABOUTME: Point lookups, single-statement mutations, and the overlap range query
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/harperreed/fitsync/models"
)

// timeLayout is fixed-width UTC so that text comparison is chronological.
const timeLayout = "2006-01-02 15:04:05"

// Ledger is the SQLite implementation of the sync ledger.
type Ledger struct {
	db *sql.DB
}

func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

const recordColumns = `id, source, source_id, activity_type, google_event_id, activity_start, activity_end, synced_at`

// Get returns the record for a key, or nil when none exists.
func (l *Ledger) Get(ctx context.Context, source models.Source, sourceID string) (*models.SyncRecord, error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT `+recordColumns+`
		FROM sync_records
		WHERE source = ? AND source_id = ?
	`, string(source), sourceID)

	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync record: %w", err)
	}
	return rec, nil
}

// Insert stores a new record and sets its ID.
func (l *Ledger) Insert(ctx context.Context, rec *models.SyncRecord) error {
	if rec.SyncedAt.IsZero() {
		rec.SyncedAt = time.Now().UTC()
	}
	res, err := l.db.ExecContext(ctx, `
		INSERT INTO sync_records (source, source_id, activity_type, google_event_id, activity_start, activity_end, synced_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, string(rec.Source), rec.SourceID, rec.ActivityType, rec.CalendarEventID,
		nullableTime(rec.ActivityStart), nullableTime(rec.ActivityEnd), formatTime(rec.SyncedAt))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%s: %w", rec.Key(), models.ErrDuplicateRecord)
		}
		return fmt.Errorf("failed to insert sync record: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read sync record id: %w", err)
	}
	rec.ID = id
	return nil
}

// Update overwrites every mutable field of the record identified by its key.
func (l *Ledger) Update(ctx context.Context, rec *models.SyncRecord) error {
	res, err := l.db.ExecContext(ctx, `
		UPDATE sync_records
		SET activity_type = ?, google_event_id = ?, activity_start = ?, activity_end = ?, synced_at = ?
		WHERE source = ? AND source_id = ?
	`, rec.ActivityType, rec.CalendarEventID, nullableTime(rec.ActivityStart), nullableTime(rec.ActivityEnd),
		formatTime(rec.SyncedAt), string(rec.Source), rec.SourceID)
	if err != nil {
		return fmt.Errorf("failed to update sync record: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update sync record: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("sync record %s not found", rec.Key())
	}
	return nil
}

// Delete removes the record for a key. Deleting a missing key is not an error.
func (l *Ledger) Delete(ctx context.Context, source models.Source, sourceID string) error {
	_, err := l.db.ExecContext(ctx, `
		DELETE FROM sync_records WHERE source = ? AND source_id = ?
	`, string(source), sourceID)
	if err != nil {
		return fmt.Errorf("failed to delete sync record: %w", err)
	}
	return nil
}

// FindOverlapping returns records of source whose span shares an open
// interval with [start, end). Touching endpoints do not overlap.
func (l *Ledger) FindOverlapping(ctx context.Context, source models.Source, start, end time.Time) ([]models.SyncRecord, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT `+recordColumns+`
		FROM sync_records
		WHERE source = ?
		  AND activity_start IS NOT NULL
		  AND activity_end IS NOT NULL
		  AND activity_start < ?
		  AND activity_end > ?
		ORDER BY activity_start
	`, string(source), formatTime(end), formatTime(start))
	if err != nil {
		return nil, fmt.Errorf("failed to query overlapping records: %w", err)
	}
	return collectRecords(rows)
}

// List returns records newest first.
func (l *Ledger) List(ctx context.Context, filter models.ListFilter) ([]models.SyncRecord, error) {
	var (
		where []string
		args  []any
	)
	if filter.Source != "" {
		where = append(where, "source = ?")
		args = append(args, string(filter.Source))
	}
	if filter.Since != nil {
		where = append(where, "synced_at >= ?")
		args = append(args, formatTime(*filter.Since))
	}

	query := "SELECT " + recordColumns + " FROM sync_records"
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY synced_at DESC, id DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list sync records: %w", err)
	}
	return collectRecords(rows)
}

// Count returns the number of records per source.
func (l *Ledger) Count(ctx context.Context) (map[models.Source]int, error) {
	rows, err := l.db.QueryContext(ctx, `SELECT source, COUNT(*) FROM sync_records GROUP BY source`)
	if err != nil {
		return nil, fmt.Errorf("failed to count sync records: %w", err)
	}
	defer func() { _ = rows.Close() }()

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

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.SyncRecord, error) {
	var rec models.SyncRecord
	var source string
	var start, end sql.NullString
	var syncedAt string

	if err := row.Scan(&rec.ID, &source, &rec.SourceID, &rec.ActivityType, &rec.CalendarEventID, &start, &end, &syncedAt); err != nil {
		return nil, err
	}
	rec.Source = models.Source(source)

	if start.Valid {
		rec.ActivityStart = parseTimePtr(start.String)
	}
	if end.Valid {
		rec.ActivityEnd = parseTimePtr(end.String)
	}
	if t := parseTimePtr(syncedAt); t != nil {
		rec.SyncedAt = *t
	}
	return &rec, nil
}

func collectRecords(rows *sql.Rows) ([]models.SyncRecord, error) {
	defer func() { _ = rows.Close() }()

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

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullableTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

// The driver may hand DATETIME columns back already converted, in which case
// database/sql renders them as RFC 3339. Legacy rows carry microseconds.
var readLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999-07:00",
}

func parseTimePtr(s string) *time.Time {
	for _, layout := range readLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
