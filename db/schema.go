// ABOUTME: Database schema definitions and migrations
// ABOUTME: Creates ledger, poll state, and token tables; upgrades legacy ledgers in place
package db

import (
	"database/sql"
	"fmt"
)

// sync_records and oauth_tokens keep the column names of the legacy ledger so
// an existing database file is adopted without a copy.
const schema = `
CREATE TABLE IF NOT EXISTS sync_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	source VARCHAR(50) NOT NULL,
	source_id VARCHAR(255) NOT NULL,
	activity_type VARCHAR(100) NOT NULL,
	google_event_id VARCHAR(255) NOT NULL,
	activity_start DATETIME,
	activity_end DATETIME,
	synced_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS sync_state (
	service TEXT PRIMARY KEY,
	last_sync_time DATETIME,
	status TEXT NOT NULL DEFAULT 'idle',
	error_message TEXT,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS oauth_tokens (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	service VARCHAR(50) NOT NULL UNIQUE,
	access_token TEXT NOT NULL,
	refresh_token TEXT,
	expires_at DATETIME,
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL
);
`

// Indexes are created after column migrations so they can reference
// columns added to legacy tables.
const indexes = `
CREATE UNIQUE INDEX IF NOT EXISTS idx_sync_records_source_key ON sync_records(source, source_id);
CREATE INDEX IF NOT EXISTS idx_sync_records_span ON sync_records(source, activity_start, activity_end);
CREATE INDEX IF NOT EXISTS idx_sync_records_synced_at ON sync_records(synced_at DESC);
`

type columnMigration struct {
	table  string
	column string
	ddl    string
}

// Additive, nullable columns only.
var columnMigrations = []columnMigration{
	{"sync_records", "activity_start", "ALTER TABLE sync_records ADD COLUMN activity_start DATETIME"},
	{"sync_records", "activity_end", "ALTER TABLE sync_records ADD COLUMN activity_end DATETIME"},
	{"oauth_tokens", "token_type", "ALTER TABLE oauth_tokens ADD COLUMN token_type TEXT"},
}

// Legacy ledgers had no uniqueness constraint; keep the newest row per key
// before the unique index is built.
const dedupeLegacyRows = `
DELETE FROM sync_records
WHERE id NOT IN (SELECT MAX(id) FROM sync_records GROUP BY source, source_id)
`

// Legacy writers stored microseconds ("2024-01-15 08:30:00.000000"). Span
// and sync columns are compared as text, so they are cut back to the
// fixed-width layout the ledger writes.
var legacyTimeColumns = []string{"activity_start", "activity_end", "synced_at"}

func normalizeLegacyTimes(db *sql.DB) error {
	for _, col := range legacyTimeColumns {
		stmt := fmt.Sprintf(`UPDATE sync_records SET %[1]s = substr(%[1]s, 1, 19)
			WHERE length(%[1]s) > 19 AND %[1]s LIKE '____-__-__ __:__:__.%%'`, col)
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to normalize %s: %w", col, err)
		}
	}
	return nil
}

func InitSchema(db *sql.DB) error {
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	for _, m := range columnMigrations {
		exists, err := columnExists(db, m.table, m.column)
		if err != nil {
			return err
		}
		if exists {
			continue
		}
		if _, err := db.Exec(m.ddl); err != nil {
			return fmt.Errorf("failed to add %s.%s: %w", m.table, m.column, err)
		}
	}

	if err := normalizeLegacyTimes(db); err != nil {
		return err
	}
	if _, err := db.Exec(dedupeLegacyRows); err != nil {
		return fmt.Errorf("failed to dedupe sync records: %w", err)
	}
	if _, err := db.Exec(indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func columnExists(db *sql.DB, table, column string) (bool, error) {
	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		return false, fmt.Errorf("failed to inspect %s: %w", table, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var (
			cid       int
			name      string
			colType   string
			notNull   int
			dfltValue sql.NullString
			pk        int
		)
		if err := rows.Scan(&cid, &name, &colType, &notNull, &dfltValue, &pk); err != nil {
			return false, fmt.Errorf("failed to scan column info: %w", err)
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}
