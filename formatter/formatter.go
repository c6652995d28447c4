// ABOUTME: Pure transforms from provider records to calendar event payloads
// ABOUTME: Shared title, time, and duration helpers for Strava and Whoop
package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/harperreed/fitsync/models"
)

const (
	// minDistance is the smallest distance (in display units) worth showing.
	minDistance = 0.1

	defaultIcon = "💪"
	sleepIcon   = "😴"
	titleSep    = " — "
	eventZone   = "UTC"
)

// Formatter renders provider records. The zero value formats in metric.
type Formatter struct {
	Units Units
}

func New(units Units) *Formatter {
	return &Formatter{Units: units}
}

func (f *Formatter) units() Units {
	if f == nil || f.Units == "" {
		return Metric
	}
	return f.Units
}

func (f *Formatter) distanceSuffix(meters float64) (string, bool) {
	u := f.units()
	d := u.Distance(meters)
	if d <= minDistance {
		return "", false
	}
	return fmt.Sprintf("%.1f %s", d, u.DistanceLabel()), true
}

func eventTime(t time.Time) models.EventTime {
	return models.EventTime{DateTime: t.UTC().Format(time.RFC3339), TimeZone: eventZone}
}

// rawTime passes an unparseable timestamp through unchanged.
func rawTime(s string) models.EventTime {
	return models.EventTime{DateTime: s, TimeZone: eventZone}
}

func parseTime(s string) (time.Time, bool) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// span normalizes a start/end pair, keeping raw strings when they do not parse.
func span(start, end string) (models.EventTime, models.EventTime) {
	s, okStart := parseTime(start)
	e, okEnd := parseTime(end)
	startTime, endTime := rawTime(start), rawTime(end)
	if okStart {
		startTime = eventTime(s)
	}
	if okEnd {
		endTime = eventTime(e)
	}
	return startTime, endTime
}

func formatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	minutes := int(d / time.Minute)
	return fmt.Sprintf("%dh %02dm", minutes/60, minutes%60)
}

func millis(ms int64) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
