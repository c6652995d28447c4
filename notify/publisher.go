// ABOUTME: Ledger transition feed for downstream consumers
// ABOUTME: Publisher interface, transition payload, and a no-op implementation
package notify

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/harperreed/fitsync/models"
)

// Outcome names what happened to a ledger record.
type Outcome string

const (
	OutcomeCreated    Outcome = "created"
	OutcomeUpdated    Outcome = "updated"
	OutcomeDeleted    Outcome = "deleted"
	OutcomeSuperseded Outcome = "superseded"
)

// Transition is one ledger change.
type Transition struct {
	ID              string        `json:"id"`
	Source          models.Source `json:"source"`
	SourceID        string        `json:"source_id"`
	ActivityType    string        `json:"activity_type,omitempty"`
	CalendarEventID string        `json:"calendar_event_id,omitempty"`
	Outcome         Outcome       `json:"outcome"`
	OccurredAt      time.Time     `json:"occurred_at"`
}

// NewTransition stamps a transition with a fresh id and time.
func NewTransition(source models.Source, sourceID string, outcome Outcome) Transition {
	return Transition{
		ID:         uuid.NewString(),
		Source:     source,
		SourceID:   sourceID,
		Outcome:    outcome,
		OccurredAt: time.Now().UTC(),
	}
}

// Key groups transitions of the same record onto one partition.
func (t Transition) Key() string {
	return models.RecordKey(t.Source, t.SourceID)
}

type Publisher interface {
	Publish(ctx context.Context, t Transition) error
	Close() error
}

// Nop discards transitions.
type Nop struct{}

func (Nop) Publish(context.Context, Transition) error { return nil }
func (Nop) Close() error                              { return nil }
