// ABOUTME: Strava backfill over a bounded lookback window
// ABOUTME: Lists recent activities, fetches each in full, and syncs it
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/harperreed/fitsync/models"
	"github.com/harperreed/fitsync/sync"
)

// Backfill lookback bounds, in days.
const (
	DefaultBackfillDays = 7
	MaxBackfillDays     = 90
)

type Backfill struct {
	deps   Deps
	source StravaSource
	now    func() time.Time
}

func NewBackfill(deps Deps, source StravaSource) *Backfill {
	return &Backfill{deps: deps, source: source, now: time.Now}
}

// Run syncs every activity started in the last days days.
func (b *Backfill) Run(ctx context.Context, days int) error {
	if days < 1 || days > MaxBackfillDays {
		return fmt.Errorf("backfill days must be between 1 and %d, got %d", MaxBackfillDays, days)
	}
	return b.deps.runCycle(ctx, driverStravaBackfill, models.ServiceStravaBackfill, func(ctx context.Context, log *slog.Logger) (int, error) {
		return b.backfill(ctx, log.With("days", days), days)
	})
}

func (b *Backfill) backfill(ctx context.Context, log *slog.Logger, days int) (int, error) {
	conn, err := b.deps.connect(ctx, sync.ServiceStrava)
	if err != nil {
		log.Warn("skipping strava backfill", "error", err)
		return 0, err
	}

	after := b.now().AddDate(0, 0, -days)
	activities, err := b.source.ListActivities(ctx, conn.providerToken, after)
	if err != nil {
		return 0, fmt.Errorf("failed to list strava activities: %w", err)
	}
	log.Info("found strava activities", "count", len(activities))

	failures := 0
	for _, summary := range activities {
		id := strconv.FormatInt(summary.ID, 10)
		full, err := b.source.GetActivity(ctx, conn.providerToken, summary.ID)
		if err != nil {
			failures++
			log.Error("failed to fetch strava activity", "source_id", id, "error", err)
			continue
		}
		if _, err := b.deps.syncStrava(ctx, conn, *full); err != nil {
			failures++
			log.Error("failed to sync strava activity", "source_id", id, "error", err)
		}
	}
	return failures, nil
}
