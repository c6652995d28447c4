// ABOUTME: Shared plumbing for the ingestion drivers (poller, backfill, webhook)
// ABOUTME: Collaborator interfaces, token/calendar resolution, and per-run bookkeeping
package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/harperreed/fitsync/formatter"
	"github.com/harperreed/fitsync/models"
	"github.com/harperreed/fitsync/providers/strava"
	"github.com/harperreed/fitsync/providers/whoop"
	"github.com/harperreed/fitsync/sync"
)

// StravaSource fetches activities from the authoritative provider.
type StravaSource interface {
	ListActivities(ctx context.Context, token string, after time.Time) ([]strava.Activity, error)
	GetActivity(ctx context.Context, token string, id int64) (*strava.Activity, error)
}

// WhoopSource fetches scored records from the secondary provider.
type WhoopSource interface {
	Workouts(ctx context.Context, token string, since time.Time) ([]whoop.Workout, error)
	Sleeps(ctx context.Context, token string, since time.Time) ([]whoop.Sleep, error)
	Recoveries(ctx context.Context, token string, since time.Time) ([]whoop.Recovery, error)
}

// Syncer is the slice of sync.Engine the drivers call.
type Syncer interface {
	SyncActivity(ctx context.Context, req sync.SyncRequest) (sync.Result, error)
	DeleteActivity(ctx context.Context, req sync.DeleteRequest) (bool, error)
}

// CalendarLocator yields the managed calendar id.
type CalendarLocator interface {
	CalendarID(ctx context.Context, token string) (string, error)
}

// StateRecorder persists per-driver run status.
type StateRecorder interface {
	MarkRunning(ctx context.Context, service string) error
	MarkSuccess(ctx context.Context, service string) error
	MarkFailed(ctx context.Context, service string, cause error) error
}

// Deps wires the drivers to their collaborators. State and Logger are optional.
type Deps struct {
	Tokens    sync.TokenProvider
	Calendars CalendarLocator
	Syncer    Syncer
	Formatter *formatter.Formatter
	State     StateRecorder
	Logger    *slog.Logger
}

func (d Deps) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}

// connection holds everything needed to sync one provider's records.
type connection struct {
	providerToken string
	googleToken   string
	calendarID    string
}

// connect resolves both bearer tokens and the calendar id. A missing token
// surfaces as sync.ErrNotConnected.
func (d Deps) connect(ctx context.Context, provider string) (connection, error) {
	providerToken, err := d.Tokens.ValidToken(ctx, provider)
	if err != nil {
		return connection{}, err
	}
	googleToken, err := d.Tokens.ValidToken(ctx, sync.ServiceGoogle)
	if err != nil {
		return connection{}, err
	}
	calendarID, err := d.Calendars.CalendarID(ctx, googleToken)
	if err != nil {
		return connection{}, fmt.Errorf("failed to resolve calendar: %w", err)
	}
	return connection{providerToken: providerToken, googleToken: googleToken, calendarID: calendarID}, nil
}

// syncStrava formats a fetched activity and hands it to the engine.
// Authoritative records never take the overlap check.
func (d Deps) syncStrava(ctx context.Context, conn connection, a strava.Activity) (sync.Result, error) {
	return d.Syncer.SyncActivity(ctx, sync.SyncRequest{
		Source:       models.SourceStrava,
		SourceID:     a.SourceID(),
		ActivityType: a.ActivityType(),
		Event:        d.Formatter.StravaActivity(a),
		Token:        conn.googleToken,
		CalendarID:   conn.calendarID,
	})
}

// cycleFunc does one run's work and reports how many items failed.
type cycleFunc func(ctx context.Context, log *slog.Logger) (failures int, err error)

// runCycle tags a run with a ULID, tracks its SyncState row and records
// run metrics around fn.
func (d Deps) runCycle(ctx context.Context, driver, service string, fn cycleFunc) error {
	log := d.logger().With("driver", driver, "run_id", ulid.Make().String())
	started := time.Now()

	d.markState(ctx, log, func() error { return d.State.MarkRunning(ctx, service) })

	failures, err := fn(ctx, log)
	runDuration.WithLabelValues(driver).Observe(time.Since(started).Seconds())
	if failures > 0 {
		itemFailureCounter.WithLabelValues(driver).Add(float64(failures))
	}

	if err != nil {
		runCounter.WithLabelValues(driver, "error").Inc()
		d.markState(ctx, log, func() error { return d.State.MarkFailed(ctx, service, err) })
		return err
	}

	runCounter.WithLabelValues(driver, "ok").Inc()
	lastSuccessGauge.WithLabelValues(driver).SetToCurrentTime()
	d.markState(ctx, log, func() error { return d.State.MarkSuccess(ctx, service) })
	log.Info("run complete", "failures", failures, "duration", time.Since(started).String())
	return nil
}

func (d Deps) markState(ctx context.Context, log *slog.Logger, mark func() error) {
	if d.State == nil {
		return
	}
	if err := mark(); err != nil {
		log.Warn("failed to update sync state", "error", err)
	}
}
