// ABOUTME: Periodic Whoop pull of scored workouts and sleeps
// ABOUTME: Workouts defer to overlapping Strava records; sleeps always sync
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/harperreed/fitsync/models"
	"github.com/harperreed/fitsync/providers/whoop"
	"github.com/harperreed/fitsync/sync"
)

// DefaultLookback is how far back each poll reads. Polls overlap freely;
// the engine makes re-syncs idempotent.
const DefaultLookback = 24 * time.Hour

type Poller struct {
	deps     Deps
	source   WhoopSource
	lookback time.Duration
	now      func() time.Time
}

func NewPoller(deps Deps, source WhoopSource, lookback time.Duration) *Poller {
	if lookback <= 0 {
		lookback = DefaultLookback
	}
	return &Poller{deps: deps, source: source, lookback: lookback, now: time.Now}
}

// Poll runs one cycle. Missing credentials abort the cycle with
// sync.ErrNotConnected; per-record failures are logged and counted.
func (p *Poller) Poll(ctx context.Context) error {
	return p.deps.runCycle(ctx, driverWhoopPoll, models.ServiceWhoopPoll, p.poll)
}

func (p *Poller) poll(ctx context.Context, log *slog.Logger) (int, error) {
	conn, err := p.deps.connect(ctx, sync.ServiceWhoop)
	if err != nil {
		log.Warn("skipping whoop poll", "error", err)
		return 0, err
	}
	since := p.now().Add(-p.lookback).UTC()

	failures := 0
	var fetchErrs []error

	workouts, err := p.source.Workouts(ctx, conn.providerToken, since)
	if err != nil {
		log.Error("failed to fetch whoop workouts", "error", err)
		fetchErrs = append(fetchErrs, err)
	} else {
		failures += p.syncWorkouts(ctx, log, conn, workouts)
	}

	sleeps, err := p.source.Sleeps(ctx, conn.providerToken, since)
	if err != nil {
		log.Error("failed to fetch whoop sleeps", "error", err)
		fetchErrs = append(fetchErrs, err)
	} else {
		recoveries, err := p.source.Recoveries(ctx, conn.providerToken, since)
		if err != nil {
			// Sleeps still sync, just without the recovery block.
			log.Warn("failed to fetch whoop recoveries", "error", err)
		}
		failures += p.syncSleeps(ctx, log, conn, sleeps, whoop.MatchRecoveries(recoveries))
	}

	if len(fetchErrs) == 2 {
		return failures, errors.Join(fetchErrs...)
	}
	return failures + len(fetchErrs), nil
}

func (p *Poller) syncWorkouts(ctx context.Context, log *slog.Logger, conn connection, workouts []whoop.Workout) int {
	failures, synced, skipped := 0, 0, 0
	for _, w := range workouts {
		if !w.Scored() {
			continue
		}
		res, err := p.deps.Syncer.SyncActivity(ctx, sync.SyncRequest{
			Source:              models.SourceWhoop,
			SourceID:            w.ID.String(),
			ActivityType:        models.ActivityTypeWorkout,
			Event:               p.deps.Formatter.WhoopWorkout(w),
			Token:               conn.googleToken,
			CalendarID:          conn.calendarID,
			RequireOverlapCheck: true,
		})
		if err != nil {
			failures++
			log.Error("failed to sync whoop workout", "source_id", w.ID.String(), "error", err)
			continue
		}
		if res.Outcome == sync.OutcomeSkipped {
			skipped++
		} else {
			synced++
		}
	}
	log.Info("synced whoop workouts", "fetched", len(workouts), "synced", synced, "skipped", skipped)
	return failures
}

func (p *Poller) syncSleeps(ctx context.Context, log *slog.Logger, conn connection, sleeps []whoop.Sleep, recoveries map[whoop.FlexID]*whoop.Recovery) int {
	failures, synced := 0, 0
	for _, s := range sleeps {
		if !s.Scored() {
			continue
		}
		sourceID := models.SleepSourceID(s.ID.String())
		_, err := p.deps.Syncer.SyncActivity(ctx, sync.SyncRequest{
			Source:       models.SourceWhoop,
			SourceID:     sourceID,
			ActivityType: models.ActivityTypeSleep,
			Event:        p.deps.Formatter.WhoopSleep(s, recoveries[s.ID]),
			Token:        conn.googleToken,
			CalendarID:   conn.calendarID,
		})
		if err != nil {
			failures++
			log.Error("failed to sync whoop sleep", "source_id", sourceID, "error", err)
			continue
		}
		synced++
	}
	log.Info("synced whoop sleeps", "fetched", len(sleeps), "synced", synced)
	return failures
}
