// ABOUTME: Collaborator interfaces consumed by the sync engine
// ABOUTME: Ledger storage, calendar gateway, and token provider contracts
package sync

import (
	"context"
	"errors"
	"time"

	"github.com/harperreed/fitsync/models"
)

var (
	// ErrNotConnected means a service has no usable credentials.
	ErrNotConnected = errors.New("service not connected")
	// ErrEventGone means the calendar no longer has the referenced event.
	ErrEventGone = errors.New("calendar event no longer exists")
)

// Ledger is the durable (source, source_id) → calendar event mapping.
type Ledger interface {
	// Get returns nil, nil when the key is absent.
	Get(ctx context.Context, source models.Source, sourceID string) (*models.SyncRecord, error)
	// Insert returns models.ErrDuplicateRecord when the key already exists.
	Insert(ctx context.Context, rec *models.SyncRecord) error
	Update(ctx context.Context, rec *models.SyncRecord) error
	Delete(ctx context.Context, source models.Source, sourceID string) error
	FindOverlapping(ctx context.Context, source models.Source, start, end time.Time) ([]models.SyncRecord, error)
	List(ctx context.Context, filter models.ListFilter) ([]models.SyncRecord, error)
}

// CalendarGateway performs event operations against the managed calendar.
// Update and Delete return ErrEventGone when the event no longer exists.
type CalendarGateway interface {
	CreateEvent(ctx context.Context, token, calendarID string, ev models.FormattedEvent) (string, error)
	UpdateEvent(ctx context.Context, token, calendarID, eventID string, ev models.FormattedEvent) error
	DeleteEvent(ctx context.Context, token, calendarID, eventID string) error
	FindOrCreateCalendar(ctx context.Context, token, name string) (string, error)
}

// TokenProvider yields a currently valid bearer token for a service, or
// ErrNotConnected.
type TokenProvider interface {
	ValidToken(ctx context.Context, service string) (string, error)
}
