// ABOUTME: Data models for synced fitness activities
// ABOUTME: Defines Source, SyncRecord, FormattedEvent, and poll state structs
package models

import (
	"fmt"
	"strings"
	"time"
)

// Source identifies the provider an activity came from.
type Source string

const (
	SourceStrava Source = "strava"
	SourceWhoop  Source = "whoop"
)

// Sources lists every supported provider.
var Sources = []Source{SourceStrava, SourceWhoop}

// AuthoritativeSource wins whenever two providers describe the same session.
const AuthoritativeSource = SourceStrava

// Activity types stored in the ledger.
const (
	ActivityTypeWorkout = "workout"
	ActivityTypeSleep   = "sleep"
)

// ParseSource validates a source name.
func ParseSource(s string) (Source, error) {
	switch Source(strings.ToLower(strings.TrimSpace(s))) {
	case SourceStrava:
		return SourceStrava, nil
	case SourceWhoop:
		return SourceWhoop, nil
	}
	return "", fmt.Errorf("unknown source %q (expected strava or whoop)", s)
}

func (s Source) String() string { return string(s) }

// IsAuthoritative reports whether records from s are never suppressed.
func (s Source) IsAuthoritative() bool { return s == AuthoritativeSource }

// SyncRecord ties one source activity to one calendar event.
type SyncRecord struct {
	ID              int64      `json:"id"`
	Source          Source     `json:"source"`
	SourceID        string     `json:"source_id"`
	ActivityType    string     `json:"activity_type"`
	CalendarEventID string     `json:"calendar_event_id"`
	ActivityStart   *time.Time `json:"activity_start,omitempty"`
	ActivityEnd     *time.Time `json:"activity_end,omitempty"`
	SyncedAt        time.Time  `json:"synced_at"`
}

// Key is the ledger identity of the record.
func (r *SyncRecord) Key() string {
	return RecordKey(r.Source, r.SourceID)
}

// HasSpan reports whether both ends of the activity are known.
func (r *SyncRecord) HasSpan() bool {
	return r.ActivityStart != nil && r.ActivityEnd != nil
}

// RecordKey formats a (source, sourceID) pair.
func RecordKey(source Source, sourceID string) string {
	return string(source) + "/" + sourceID
}

// SleepSourceID namespaces sleep ids so they never collide with workout ids.
func SleepSourceID(id string) string {
	return "sleep-" + id
}

// EventTime is a calendar timestamp with its zone.
type EventTime struct {
	DateTime string `json:"dateTime"`
	TimeZone string `json:"timeZone"`
}

// Parse returns the instant, or false when DateTime is not RFC 3339.
func (t EventTime) Parse() (time.Time, bool) {
	parsed, err := time.Parse(time.RFC3339, t.DateTime)
	if err != nil {
		return time.Time{}, false
	}
	return parsed.UTC(), true
}

// FormattedEvent is the calendar payload built from a provider record.
type FormattedEvent struct {
	Title       string    `json:"summary"`
	Description string    `json:"description"`
	Location    string    `json:"location,omitempty"`
	Start       EventTime `json:"start"`
	End         EventTime `json:"end"`
}

// Span parses both ends of the event. ok is false when either end is
// unparseable or the event ends before it starts.
func (e FormattedEvent) Span() (start, end time.Time, ok bool) {
	start, okStart := e.Start.Parse()
	end, okEnd := e.End.Parse()
	if !okStart || !okEnd || end.Before(start) {
		return time.Time{}, time.Time{}, false
	}
	return start, end, true
}

// ListFilter narrows ledger listings. Zero values mean no constraint.
type ListFilter struct {
	Source Source
	Since  *time.Time
	Limit  int
}

// Poll state services.
const (
	ServiceWhoopPoll      = "whoop-poll"
	ServiceStravaBackfill = "strava-backfill"
	ServiceStravaWebhook  = "strava-webhook"
)

// Poll state statuses.
const (
	StatusIdle    = "idle"
	StatusSyncing = "syncing"
	StatusError   = "error"
)

// SyncState is the persisted status of one ingestion driver.
type SyncState struct {
	Service      string     `json:"service"`
	LastSyncTime *time.Time `json:"last_sync_time,omitempty"`
	Status       string     `json:"status"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}
