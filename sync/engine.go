// ABOUTME: Sync engine deciding create, update, or skip for each source activity
// ABOUTME: Calendar call first, ledger commit second, serialized per (source, source_id)
package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/harperreed/fitsync/models"
	"github.com/harperreed/fitsync/notify"
)

// Outcome is the result of SyncActivity.
type Outcome string

const (
	OutcomeCreated Outcome = "created"
	OutcomeUpdated Outcome = "updated"
	OutcomeSkipped Outcome = "skipped"
)

// SyncRequest is one formatted activity to reconcile with the calendar.
type SyncRequest struct {
	Source       models.Source
	SourceID     string
	ActivityType string
	Event        models.FormattedEvent
	Token        string
	CalendarID   string
	// RequireOverlapCheck suppresses the activity when an authoritative
	// record already covers its span. Ignored for sleep.
	RequireOverlapCheck bool
}

func (r SyncRequest) key() string { return models.RecordKey(r.Source, r.SourceID) }

// Result carries the committed record. Record is nil when skipped.
type Result struct {
	Outcome Outcome
	Record  *models.SyncRecord
}

// DeleteRequest identifies a record whose calendar event should be removed.
type DeleteRequest struct {
	Source     models.Source
	SourceID   string
	Token      string
	CalendarID string
}

type Engine struct {
	ledger    Ledger
	calendar  CalendarGateway
	overlap   *OverlapResolver
	locks     *KeyedMutex
	publisher notify.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

func WithPublisher(p notify.Publisher) Option {
	return func(e *Engine) { e.publisher = p }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

func NewEngine(ledger Ledger, calendar CalendarGateway, opts ...Option) *Engine {
	e := &Engine{
		ledger:    ledger,
		calendar:  calendar,
		overlap:   NewOverlapResolver(ledger),
		locks:     NewKeyedMutex(),
		publisher: notify.Nop{},
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SyncActivity creates or updates the calendar event for one source activity
// and commits the mapping. A skipped result has no side effects.
func (e *Engine) SyncActivity(ctx context.Context, req SyncRequest) (Result, error) {
	if req.SourceID == "" {
		return Result{}, fmt.Errorf("sync %s: empty source id", req.Source)
	}
	unlock := e.locks.Lock(req.key())
	defer unlock()

	log := e.logger.With("source", string(req.Source), "source_id", req.SourceID)
	start, end, hasSpan := req.Event.Span()

	if req.RequireOverlapCheck && hasSpan && req.ActivityType != models.ActivityTypeSleep {
		covered, err := e.overlap.HasOverlap(ctx, req.Source, start, end)
		if err != nil {
			return Result{}, err
		}
		if covered {
			log.Info("skipping activity covered by authoritative record")
			outcomeCounter.WithLabelValues(string(req.Source), string(OutcomeSkipped)).Inc()
			return Result{Outcome: OutcomeSkipped}, nil
		}
	}

	existing, err := e.ledger.Get(ctx, req.Source, req.SourceID)
	if err != nil {
		return Result{}, err
	}

	var res Result
	if existing == nil {
		res, err = e.create(ctx, log, req)
	} else {
		res, err = e.update(ctx, log, req, existing)
	}
	if err != nil {
		return Result{}, err
	}

	outcomeCounter.WithLabelValues(string(req.Source), string(res.Outcome)).Inc()
	e.publish(ctx, res.Record, notify.Outcome(res.Outcome))

	if req.Source.IsAuthoritative() && res.Record.HasSpan() {
		e.supersede(ctx, req, *res.Record.ActivityStart, *res.Record.ActivityEnd)
	}
	return res, nil
}

func (e *Engine) create(ctx context.Context, log *slog.Logger, req SyncRequest) (Result, error) {
	eventID, err := e.calendar.CreateEvent(ctx, req.Token, req.CalendarID, req.Event)
	if err != nil {
		calendarErrorCounter.WithLabelValues("create").Inc()
		return Result{}, fmt.Errorf("failed to create calendar event for %s: %w", req.key(), err)
	}

	rec := &models.SyncRecord{
		Source:          req.Source,
		SourceID:        req.SourceID,
		ActivityType:    req.ActivityType,
		CalendarEventID: eventID,
		SyncedAt:        e.now().UTC(),
	}
	applySpan(rec, req.Event)

	if err := e.ledger.Insert(ctx, rec); err != nil {
		if errors.Is(err, models.ErrDuplicateRecord) {
			return e.resolveInsertRace(ctx, log, req, eventID)
		}
		orphanedEventCounter.Inc()
		log.Error("calendar event created but ledger write failed", "event_id", eventID, "error", err)
		return Result{}, fmt.Errorf("failed to record %s: %w", req.key(), err)
	}

	log.Info("created calendar event", "event_id", eventID, "activity_type", req.ActivityType)
	return Result{Outcome: OutcomeCreated, Record: rec}, nil
}

// resolveInsertRace handles a writer outside this process committing the key
// between our lookup and insert: our event is dropped and theirs updated.
func (e *Engine) resolveInsertRace(ctx context.Context, log *slog.Logger, req SyncRequest, orphanID string) (Result, error) {
	if err := e.calendar.DeleteEvent(ctx, req.Token, req.CalendarID, orphanID); err != nil && !errors.Is(err, ErrEventGone) {
		orphanedEventCounter.Inc()
		log.Warn("failed to remove duplicate calendar event", "event_id", orphanID, "error", err)
	}
	winner, err := e.ledger.Get(ctx, req.Source, req.SourceID)
	if err != nil {
		return Result{}, err
	}
	if winner == nil {
		return Result{}, fmt.Errorf("record %s vanished after duplicate insert", req.key())
	}
	log.Info("lost insert race, updating existing record", "event_id", winner.CalendarEventID)
	return e.update(ctx, log, req, winner)
}

func (e *Engine) update(ctx context.Context, log *slog.Logger, req SyncRequest, rec *models.SyncRecord) (Result, error) {
	err := e.calendar.UpdateEvent(ctx, req.Token, req.CalendarID, rec.CalendarEventID, req.Event)
	switch {
	case errors.Is(err, ErrEventGone):
		// Removed on the calendar side; put it back.
		eventID, cerr := e.calendar.CreateEvent(ctx, req.Token, req.CalendarID, req.Event)
		if cerr != nil {
			calendarErrorCounter.WithLabelValues("create").Inc()
			return Result{}, fmt.Errorf("failed to recreate calendar event for %s: %w", req.key(), cerr)
		}
		log.Info("recreated missing calendar event", "old_event_id", rec.CalendarEventID, "event_id", eventID)
		rec.CalendarEventID = eventID
	case err != nil:
		calendarErrorCounter.WithLabelValues("update").Inc()
		return Result{}, fmt.Errorf("failed to update calendar event for %s: %w", req.key(), err)
	}

	rec.ActivityType = req.ActivityType
	rec.SyncedAt = e.now().UTC()
	applySpan(rec, req.Event)

	if err := e.ledger.Update(ctx, rec); err != nil {
		return Result{}, fmt.Errorf("failed to record %s: %w", req.key(), err)
	}

	log.Info("updated calendar event", "event_id", rec.CalendarEventID)
	return Result{Outcome: OutcomeUpdated, Record: rec}, nil
}

// DeleteActivity removes the calendar event and ledger record for a key.
// It reports false, without error, when nothing was synced for the key.
func (e *Engine) DeleteActivity(ctx context.Context, req DeleteRequest) (bool, error) {
	key := models.RecordKey(req.Source, req.SourceID)
	unlock := e.locks.Lock(key)
	defer unlock()

	rec, err := e.ledger.Get(ctx, req.Source, req.SourceID)
	if err != nil {
		return false, err
	}
	if rec == nil {
		return false, nil
	}

	if err := e.removeRecord(ctx, req.Token, req.CalendarID, rec); err != nil {
		return false, err
	}

	outcomeCounter.WithLabelValues(string(req.Source), string(notify.OutcomeDeleted)).Inc()
	e.publish(ctx, rec, notify.OutcomeDeleted)
	e.logger.Info("deleted calendar event", "source", string(req.Source), "source_id", req.SourceID, "event_id", rec.CalendarEventID)
	return true, nil
}

func (e *Engine) removeRecord(ctx context.Context, token, calendarID string, rec *models.SyncRecord) error {
	if err := e.calendar.DeleteEvent(ctx, token, calendarID, rec.CalendarEventID); err != nil && !errors.Is(err, ErrEventGone) {
		calendarErrorCounter.WithLabelValues("delete").Inc()
		return fmt.Errorf("failed to delete calendar event for %s: %w", rec.Key(), err)
	}
	if err := e.ledger.Delete(ctx, rec.Source, rec.SourceID); err != nil {
		return fmt.Errorf("failed to forget %s: %w", rec.Key(), err)
	}
	return nil
}

// supersede retracts non-authoritative workouts that an authoritative record
// now covers, so the final ledger does not depend on arrival order.
// Failures are logged and left for a later sync to retry.
func (e *Engine) supersede(ctx context.Context, req SyncRequest, start, end time.Time) {
	for _, source := range models.Sources {
		if source.IsAuthoritative() {
			continue
		}
		covered, err := e.ledger.FindOverlapping(ctx, source, start, end)
		if err != nil {
			e.logger.Warn("failed to look up superseded records", "source", string(source), "error", err)
			continue
		}
		for _, candidate := range covered {
			if candidate.ActivityType == models.ActivityTypeSleep {
				continue
			}
			e.retract(ctx, req, candidate.Source, candidate.SourceID)
		}
	}
}

func (e *Engine) retract(ctx context.Context, req SyncRequest, source models.Source, sourceID string) {
	unlock := e.locks.Lock(models.RecordKey(source, sourceID))
	defer unlock()

	log := e.logger.With("source", string(source), "source_id", sourceID, "superseded_by", req.key())

	// Re-read under the lock; a concurrent delete may have won.
	rec, err := e.ledger.Get(ctx, source, sourceID)
	if err != nil || rec == nil || rec.ActivityType == models.ActivityTypeSleep {
		return
	}
	if err := e.removeRecord(ctx, req.Token, req.CalendarID, rec); err != nil {
		log.Warn("failed to retract superseded record", "error", err)
		return
	}
	supersededCounter.Inc()
	e.publish(ctx, rec, notify.OutcomeSuperseded)
	log.Info("retracted superseded record", "event_id", rec.CalendarEventID)
}

func (e *Engine) publish(ctx context.Context, rec *models.SyncRecord, outcome notify.Outcome) {
	t := notify.NewTransition(rec.Source, rec.SourceID, outcome)
	t.ActivityType = rec.ActivityType
	t.CalendarEventID = rec.CalendarEventID
	if err := e.publisher.Publish(ctx, t); err != nil {
		e.logger.Warn("failed to publish ledger transition", "key", rec.Key(), "outcome", string(outcome), "error", err)
	}
}

// applySpan copies a parseable event span onto the record; an unparseable
// span leaves whatever the record already has.
func applySpan(rec *models.SyncRecord, ev models.FormattedEvent) {
	start, end, ok := ev.Span()
	if !ok {
		return
	}
	rec.ActivityStart = &start
	rec.ActivityEnd = &end
}
