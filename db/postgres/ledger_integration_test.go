//go:build integration

package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/harperreed/fitsync/models"
)

func setupLedger(t *testing.T) *Ledger {
	t.Helper()
	ctx := context.Background()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("fitsync"),
		postgrescontainer.WithUsername("fitsync"),
		postgrescontainer.WithPassword("fitsync"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)
	require.NoError(t, waitForDatabase(ctx, connStr))

	ledger, err := Open(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(ledger.Close)

	// Schema creation must be repeatable.
	require.NoError(t, ledger.EnsureSchema(ctx))
	return ledger
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}

func at(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestPostgresLedgerLifecycle(t *testing.T) {
	ledger := setupLedger(t)
	ctx := context.Background()

	rec := &models.SyncRecord{
		Source:          models.SourceStrava,
		SourceID:        "12345",
		ActivityType:    "Run",
		CalendarEventID: "evt-1",
		ActivityStart:   at("2024-01-15T08:00:00Z"),
		ActivityEnd:     at("2024-01-15T09:00:00Z"),
	}
	require.NoError(t, ledger.Insert(ctx, rec))
	assert.NotZero(t, rec.ID)

	dup := *rec
	err := ledger.Insert(ctx, &dup)
	assert.True(t, errors.Is(err, models.ErrDuplicateRecord), "got %v", err)

	got, err := ledger.Get(ctx, models.SourceStrava, "12345")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "evt-1", got.CalendarEventID)
	assert.True(t, got.ActivityStart.Equal(*rec.ActivityStart))

	got.CalendarEventID = "evt-2"
	got.ActivityStart = nil
	got.ActivityEnd = nil
	require.NoError(t, ledger.Update(ctx, got))

	again, err := ledger.Get(ctx, models.SourceStrava, "12345")
	require.NoError(t, err)
	assert.Equal(t, "evt-2", again.CalendarEventID)
	assert.Nil(t, again.ActivityStart)

	require.NoError(t, ledger.Delete(ctx, models.SourceStrava, "12345"))
	require.NoError(t, ledger.Delete(ctx, models.SourceStrava, "12345"))
	gone, err := ledger.Get(ctx, models.SourceStrava, "12345")
	require.NoError(t, err)
	assert.Nil(t, gone)
}

func TestPostgresLedgerOverlapAndList(t *testing.T) {
	ledger := setupLedger(t)
	ctx := context.Background()

	require.NoError(t, ledger.Insert(ctx, &models.SyncRecord{
		Source: models.SourceStrava, SourceID: "1", CalendarEventID: "a",
		ActivityStart: at("2024-01-15T08:00:00Z"), ActivityEnd: at("2024-01-15T09:00:00Z"),
	}))
	require.NoError(t, ledger.Insert(ctx, &models.SyncRecord{
		Source: models.SourceWhoop, SourceID: "w1", CalendarEventID: "b",
		ActivityStart: at("2024-01-15T08:10:00Z"), ActivityEnd: at("2024-01-15T08:50:00Z"),
	}))

	hits, err := ledger.FindOverlapping(ctx, models.SourceStrava, *at("2024-01-15T08:30:00Z"), *at("2024-01-15T09:30:00Z"))
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "1", hits[0].SourceID)

	touching, err := ledger.FindOverlapping(ctx, models.SourceStrava, *at("2024-01-15T09:00:00Z"), *at("2024-01-15T10:00:00Z"))
	require.NoError(t, err)
	assert.Empty(t, touching)

	whoopOnly, err := ledger.List(ctx, models.ListFilter{Source: models.SourceWhoop, Limit: 10})
	require.NoError(t, err)
	require.Len(t, whoopOnly, 1)
	assert.Equal(t, "w1", whoopOnly[0].SourceID)

	counts, err := ledger.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[models.Source]int{models.SourceStrava: 1, models.SourceWhoop: 1}, counts)
}

func TestPostgresLedgerUpsert(t *testing.T) {
	ledger := setupLedger(t)
	ctx := context.Background()

	rec := &models.SyncRecord{Source: models.SourceWhoop, SourceID: "sleep-9", ActivityType: models.ActivityTypeSleep, CalendarEventID: "x", SyncedAt: time.Now().UTC()}
	require.NoError(t, ledger.Upsert(ctx, rec))
	rec.CalendarEventID = "y"
	require.NoError(t, ledger.Upsert(ctx, rec))

	got, err := ledger.Get(ctx, models.SourceWhoop, "sleep-9")
	require.NoError(t, err)
	assert.Equal(t, "y", got.CalendarEventID)
}
