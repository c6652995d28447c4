// ABOUTME: Tests for the SQLite sync ledger
// ABOUTME: Verifies key uniqueness, full-field updates, and overlap range semantics
package db

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/fitsync/models"
)

func setupLedger(t *testing.T) *Ledger {
	t.Helper()
	db, err := OpenDatabase(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewLedger(db)
}

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestLedgerInsertAndGet(t *testing.T) {
	ctx := context.Background()
	ledger := setupLedger(t)

	rec := &models.SyncRecord{
		Source:          models.SourceStrava,
		SourceID:        "12345678",
		ActivityType:    "Run",
		CalendarEventID: "evt-1",
		ActivityStart:   ts("2024-01-15T07:30:00Z"),
		ActivityEnd:     ts("2024-01-15T08:23:20Z"),
	}
	require.NoError(t, ledger.Insert(ctx, rec))
	assert.NotZero(t, rec.ID)
	assert.False(t, rec.SyncedAt.IsZero())

	got, err := ledger.Get(ctx, models.SourceStrava, "12345678")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "evt-1", got.CalendarEventID)
	assert.Equal(t, "Run", got.ActivityType)
	require.True(t, got.HasSpan())
	assert.True(t, got.ActivityStart.Equal(*rec.ActivityStart))
	assert.True(t, got.ActivityEnd.Equal(*rec.ActivityEnd))
}

func TestLedgerGetMissing(t *testing.T) {
	ledger := setupLedger(t)
	got, err := ledger.Get(context.Background(), models.SourceWhoop, "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestLedgerInsertDuplicateKey(t *testing.T) {
	ctx := context.Background()
	ledger := setupLedger(t)

	first := &models.SyncRecord{Source: models.SourceWhoop, SourceID: "w1", ActivityType: "workout", CalendarEventID: "a"}
	require.NoError(t, ledger.Insert(ctx, first))

	dup := &models.SyncRecord{Source: models.SourceWhoop, SourceID: "w1", ActivityType: "workout", CalendarEventID: "b"}
	err := ledger.Insert(ctx, dup)
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrDuplicateRecord))

	// Same id under a different source is a different key.
	other := &models.SyncRecord{Source: models.SourceStrava, SourceID: "w1", ActivityType: "Run", CalendarEventID: "c"}
	require.NoError(t, ledger.Insert(ctx, other))
}

func TestLedgerConcurrentInsertsKeepOneRow(t *testing.T) {
	ctx := context.Background()
	ledger := setupLedger(t)

	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec := &models.SyncRecord{Source: models.SourceStrava, SourceID: "race", ActivityType: "Run", CalendarEventID: "evt"}
			if err := ledger.Insert(ctx, rec); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, succeeded)
	records, err := ledger.List(ctx, models.ListFilter{Source: models.SourceStrava})
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestLedgerUpdateOverwritesFields(t *testing.T) {
	ctx := context.Background()
	ledger := setupLedger(t)

	rec := &models.SyncRecord{Source: models.SourceStrava, SourceID: "1", ActivityType: "Run", CalendarEventID: "evt-1"}
	require.NoError(t, ledger.Insert(ctx, rec))

	rec.ActivityType = "Ride"
	rec.CalendarEventID = "evt-2"
	rec.ActivityStart = ts("2024-01-15T07:00:00Z")
	rec.ActivityEnd = ts("2024-01-15T08:00:00Z")
	rec.SyncedAt = time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, ledger.Update(ctx, rec))

	got, err := ledger.Get(ctx, models.SourceStrava, "1")
	require.NoError(t, err)
	assert.Equal(t, "Ride", got.ActivityType)
	assert.Equal(t, "evt-2", got.CalendarEventID)
	assert.True(t, got.HasSpan())
	assert.True(t, got.SyncedAt.Equal(rec.SyncedAt))
}

func TestLedgerUpdateMissingRecord(t *testing.T) {
	ledger := setupLedger(t)
	err := ledger.Update(context.Background(), &models.SyncRecord{Source: models.SourceStrava, SourceID: "ghost"})
	assert.Error(t, err)
}

func TestLedgerDelete(t *testing.T) {
	ctx := context.Background()
	ledger := setupLedger(t)

	rec := &models.SyncRecord{Source: models.SourceWhoop, SourceID: "sleep-1", ActivityType: "sleep", CalendarEventID: "e"}
	require.NoError(t, ledger.Insert(ctx, rec))
	require.NoError(t, ledger.Delete(ctx, models.SourceWhoop, "sleep-1"))

	got, err := ledger.Get(ctx, models.SourceWhoop, "sleep-1")
	require.NoError(t, err)
	assert.Nil(t, got)

	// Idempotent.
	require.NoError(t, ledger.Delete(ctx, models.SourceWhoop, "sleep-1"))
}

func TestLedgerFindOverlapping(t *testing.T) {
	ctx := context.Background()
	ledger := setupLedger(t)

	seed := []*models.SyncRecord{
		{Source: models.SourceStrava, SourceID: "run", ActivityType: "Run", CalendarEventID: "e1",
			ActivityStart: ts("2024-01-15T08:00:00Z"), ActivityEnd: ts("2024-01-15T09:00:00Z")},
		{Source: models.SourceStrava, SourceID: "nospan", ActivityType: "Run", CalendarEventID: "e2"},
		{Source: models.SourceWhoop, SourceID: "w", ActivityType: "workout", CalendarEventID: "e3",
			ActivityStart: ts("2024-01-15T08:00:00Z"), ActivityEnd: ts("2024-01-15T09:00:00Z")},
	}
	for _, rec := range seed {
		require.NoError(t, ledger.Insert(ctx, rec))
	}

	tests := []struct {
		name       string
		start, end string
		want       int
	}{
		{"contained", "2024-01-15T08:10:00Z", "2024-01-15T08:50:00Z", 1},
		{"partial overlap", "2024-01-15T08:30:00Z", "2024-01-15T09:30:00Z", 1},
		{"covers", "2024-01-15T07:00:00Z", "2024-01-15T10:00:00Z", 1},
		{"touches end", "2024-01-15T09:00:00Z", "2024-01-15T10:00:00Z", 0},
		{"touches start", "2024-01-15T07:00:00Z", "2024-01-15T08:00:00Z", 0},
		{"disjoint", "2024-01-16T08:00:00Z", "2024-01-16T09:00:00Z", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ledger.FindOverlapping(ctx, models.SourceStrava, *ts(tt.start), *ts(tt.end))
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
			for _, rec := range got {
				assert.Equal(t, models.SourceStrava, rec.Source)
			}
		})
	}
}

func TestLedgerListAndCount(t *testing.T) {
	ctx := context.Background()
	ledger := setupLedger(t)

	for i, id := range []string{"a", "b", "c"} {
		rec := &models.SyncRecord{
			Source: models.SourceStrava, SourceID: id, ActivityType: "Run", CalendarEventID: "e" + id,
			SyncedAt: time.Date(2024, 1, 10+i, 0, 0, 0, 0, time.UTC),
		}
		require.NoError(t, ledger.Insert(ctx, rec))
	}
	require.NoError(t, ledger.Insert(ctx, &models.SyncRecord{Source: models.SourceWhoop, SourceID: "w", ActivityType: "workout", CalendarEventID: "ew"}))

	records, err := ledger.List(ctx, models.ListFilter{Source: models.SourceStrava, Limit: 2})
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "c", records[0].SourceID)
	assert.Equal(t, "b", records[1].SourceID)

	since := time.Date(2024, 1, 11, 0, 0, 0, 0, time.UTC)
	records, err = ledger.List(ctx, models.ListFilter{Source: models.SourceStrava, Since: &since})
	require.NoError(t, err)
	assert.Len(t, records, 2)

	counts, err := ledger.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, counts[models.SourceStrava])
	assert.Equal(t, 1, counts[models.SourceWhoop])
}
