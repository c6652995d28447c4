// ABOUTME: Tests for driver sync state and OAuth token persistence
// ABOUTME: Uses temp-dir SQLite files
package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/harperreed/fitsync/models"
)

func TestSyncStateLifecycle(t *testing.T) {
	ctx := context.Background()
	db, err := OpenDatabase(filepath.Join(t.TempDir(), "state.db"))
	if err != nil {
		t.Fatalf("OpenDatabase failed: %v", err)
	}
	defer func() { _ = db.Close() }()

	store := NewStateStore(db)

	state, err := GetSyncState(ctx, db, models.ServiceWhoopPoll)
	if err != nil {
		t.Fatalf("GetSyncState failed: %v", err)
	}
	if state != nil {
		t.Fatalf("expected no state before first run, got %+v", state)
	}

	if err := store.MarkRunning(ctx, models.ServiceWhoopPoll); err != nil {
		t.Fatalf("MarkRunning failed: %v", err)
	}
	state, _ = GetSyncState(ctx, db, models.ServiceWhoopPoll)
	if state.Status != models.StatusSyncing {
		t.Errorf("expected syncing, got %s", state.Status)
	}

	if err := store.MarkFailed(ctx, models.ServiceWhoopPoll, errors.New("whoop token missing")); err != nil {
		t.Fatalf("MarkFailed failed: %v", err)
	}
	state, _ = GetSyncState(ctx, db, models.ServiceWhoopPoll)
	if state.Status != models.StatusError || state.ErrorMessage == nil || *state.ErrorMessage != "whoop token missing" {
		t.Errorf("unexpected failed state: %+v", state)
	}

	if err := store.MarkSuccess(ctx, models.ServiceWhoopPoll); err != nil {
		t.Fatalf("MarkSuccess failed: %v", err)
	}
	state, _ = GetSyncState(ctx, db, models.ServiceWhoopPoll)
	if state.Status != models.StatusIdle {
		t.Errorf("expected idle, got %s", state.Status)
	}
	if state.ErrorMessage != nil {
		t.Errorf("expected error cleared, got %s", *state.ErrorMessage)
	}
	if state.LastSyncTime == nil {
		t.Errorf("expected last sync time to be set")
	}

	all, err := store.All(ctx)
	if err != nil {
		t.Fatalf("All failed: %v", err)
	}
	if len(all) != 1 {
		t.Errorf("expected 1 state, got %d", len(all))
	}
}

func TestTokenStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := OpenDatabase(filepath.Join(t.TempDir(), "tokens.db"))
	if err != nil {
		t.Fatalf("OpenDatabase failed: %v", err)
	}
	defer func() { _ = db.Close() }()

	store := NewTokenStore(db)
	expiry := time.Date(2024, 1, 15, 9, 0, 0, 0, time.UTC)

	if err := store.Save(ctx, "strava", &oauth2.Token{AccessToken: "a1", RefreshToken: "r1", TokenType: "Bearer", Expiry: expiry}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	// Refresh responses without a new refresh token keep the old one.
	if err := store.Save(ctx, "strava", &oauth2.Token{AccessToken: "a2", TokenType: "Bearer", Expiry: expiry.Add(time.Hour)}); err != nil {
		t.Fatalf("second Save failed: %v", err)
	}

	tok, err := store.Load(ctx, "strava")
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if tok.AccessToken != "a2" || tok.RefreshToken != "r1" {
		t.Errorf("unexpected token after refresh: %+v", tok)
	}
	if !tok.Expiry.Equal(expiry.Add(time.Hour)) {
		t.Errorf("expected expiry %v, got %v", expiry.Add(time.Hour), tok.Expiry)
	}

	missing, err := store.Load(ctx, "whoop")
	if err != nil || missing != nil {
		t.Errorf("expected nil token for unknown service, got %+v (err=%v)", missing, err)
	}

	services, err := store.Connected(ctx)
	if err != nil || len(services) != 1 || services[0] != "strava" {
		t.Errorf("unexpected connected services %v (err=%v)", services, err)
	}
}
