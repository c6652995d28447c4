// ABOUTME: Database operations for the sync_state table
// ABOUTME: Tracks status and last successful run of each ingestion driver
package db

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/harperreed/fitsync/models"
)

// GetSyncState retrieves the sync state for a service.
func GetSyncState(ctx context.Context, db *sql.DB, service string) (*models.SyncState, error) {
	row := db.QueryRowContext(ctx, `
		SELECT service, last_sync_time, status, error_message, created_at, updated_at
		FROM sync_state
		WHERE service = ?
	`, service)

	state, err := scanSyncState(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get sync state: %w", err)
	}
	return state, nil
}

// UpdateSyncStatus updates the sync status for a service.
func UpdateSyncStatus(ctx context.Context, db *sql.DB, service, status string, errorMsg *string) error {
	var errorMsgVal sql.NullString
	if errorMsg != nil {
		errorMsgVal = sql.NullString{String: *errorMsg, Valid: true}
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO sync_state (service, status, error_message, created_at, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(service) DO UPDATE SET
			status = excluded.status,
			error_message = excluded.error_message,
			updated_at = CURRENT_TIMESTAMP
	`, service, status, errorMsgVal)
	if err != nil {
		return fmt.Errorf("failed to update sync status: %w", err)
	}
	return nil
}

// MarkSyncSuccess records a completed run and resets the status to idle.
func MarkSyncSuccess(ctx context.Context, db *sql.DB, service string) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO sync_state (service, last_sync_time, status, created_at, updated_at)
		VALUES (?, CURRENT_TIMESTAMP, 'idle', CURRENT_TIMESTAMP, CURRENT_TIMESTAMP)
		ON CONFLICT(service) DO UPDATE SET
			last_sync_time = CURRENT_TIMESTAMP,
			status = 'idle',
			error_message = NULL,
			updated_at = CURRENT_TIMESTAMP
	`, service)
	if err != nil {
		return fmt.Errorf("failed to mark sync success: %w", err)
	}
	return nil
}

// GetAllSyncStates retrieves the sync state for all services.
func GetAllSyncStates(ctx context.Context, db *sql.DB) ([]models.SyncState, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT service, last_sync_time, status, error_message, created_at, updated_at
		FROM sync_state
		ORDER BY service
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync states: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var states []models.SyncState
	for rows.Next() {
		state, err := scanSyncState(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sync state: %w", err)
		}
		states = append(states, *state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sync states: %w", err)
	}
	return states, nil
}

func scanSyncState(row rowScanner) (*models.SyncState, error) {
	var state models.SyncState
	var lastSyncTime sql.NullString
	var errorMessage sql.NullString
	var createdAt, updatedAt string

	err := row.Scan(
		&state.Service,
		&lastSyncTime,
		&state.Status,
		&errorMessage,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		return nil, err
	}

	if lastSyncTime.Valid {
		state.LastSyncTime = parseTimePtr(lastSyncTime.String)
	}
	if errorMessage.Valid {
		state.ErrorMessage = &errorMessage.String
	}
	if t := parseTimePtr(createdAt); t != nil {
		state.CreatedAt = *t
	}
	if t := parseTimePtr(updatedAt); t != nil {
		state.UpdatedAt = *t
	}
	return &state, nil
}

// StateStore adapts the package functions to a handle, for callers that
// track driver status without holding the raw *sql.DB.
type StateStore struct {
	db *sql.DB
}

func NewStateStore(db *sql.DB) *StateStore {
	return &StateStore{db: db}
}

func (s *StateStore) MarkRunning(ctx context.Context, service string) error {
	return UpdateSyncStatus(ctx, s.db, service, models.StatusSyncing, nil)
}

func (s *StateStore) MarkSuccess(ctx context.Context, service string) error {
	return MarkSyncSuccess(ctx, s.db, service)
}

func (s *StateStore) MarkFailed(ctx context.Context, service string, cause error) error {
	msg := cause.Error()
	return UpdateSyncStatus(ctx, s.db, service, models.StatusError, &msg)
}

func (s *StateStore) All(ctx context.Context) ([]models.SyncState, error) {
	return GetAllSyncStates(ctx, s.db)
}
