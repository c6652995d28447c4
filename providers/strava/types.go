// ABOUTME: Strava API payload types
// ABOUTME: Activity summaries, detailed activities, and webhook events
package strava

import (
	"strconv"
)

// Activity is the subset of a Strava activity the formatter needs. Summary
// listings and the detailed endpoint share the shape; listings leave some
// fields (calories) zero.
type Activity struct {
	ID                 int64     `json:"id"`
	Name               string    `json:"name"`
	Type               string    `json:"type"`
	SportType          string    `json:"sport_type"`
	Distance           float64   `json:"distance"`     // meters
	MovingTime         int       `json:"moving_time"`  // seconds
	ElapsedTime        int       `json:"elapsed_time"` // seconds
	TotalElevationGain float64   `json:"total_elevation_gain"`
	StartDate          string    `json:"start_date"`
	AverageHeartrate   float64   `json:"average_heartrate"`
	MaxHeartrate       float64   `json:"max_heartrate"`
	SufferScore        *float64  `json:"suffer_score"`
	Calories           float64   `json:"calories"`
	StartLatLng        []float64 `json:"start_latlng"`
}

// SourceID is the ledger identifier for the activity.
func (a Activity) SourceID() string {
	return strconv.FormatInt(a.ID, 10)
}

// ActivityType returns the coarse type, falling back to sport_type.
func (a Activity) ActivityType() string {
	if a.Type != "" {
		return a.Type
	}
	if a.SportType != "" {
		return a.SportType
	}
	return "unknown"
}

// Webhook aspect types.
const (
	AspectCreate = "create"
	AspectUpdate = "update"
	AspectDelete = "delete"
)

// WebhookEvent is a push subscription delivery.
type WebhookEvent struct {
	ObjectType     string         `json:"object_type"`
	ObjectID       int64          `json:"object_id"`
	AspectType     string         `json:"aspect_type"`
	OwnerID        int64          `json:"owner_id"`
	SubscriptionID int64          `json:"subscription_id"`
	EventTime      int64          `json:"event_time"`
	Updates        map[string]any `json:"updates,omitempty"`
}
