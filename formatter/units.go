// ABOUTME: Unit systems for formatted distances, elevations, and paces
// ABOUTME: Converts provider meters into metric or imperial display values
package formatter

import (
	"fmt"
	"math"
	"strings"
)

type Units string

const (
	Metric   Units = "metric"
	Imperial Units = "imperial"
)

const (
	metersPerMile = 1609.344
	feetPerMeter  = 3.28084
)

// ParseUnits accepts "metric" or "imperial" in any case.
func ParseUnits(s string) (Units, error) {
	switch Units(strings.ToLower(strings.TrimSpace(s))) {
	case Metric, "":
		return Metric, nil
	case Imperial:
		return Imperial, nil
	}
	return "", fmt.Errorf("unknown unit system %q (expected metric or imperial)", s)
}

// Distance converts meters into the display unit.
func (u Units) Distance(meters float64) float64 {
	if u == Imperial {
		return meters / metersPerMile
	}
	return meters / 1000
}

func (u Units) DistanceLabel() string {
	if u == Imperial {
		return "mi"
	}
	return "km"
}

// Elevation converts meters into the display unit.
func (u Units) Elevation(meters float64) float64 {
	if u == Imperial {
		return meters * feetPerMeter
	}
	return meters
}

func (u Units) ElevationLabel() string {
	if u == Imperial {
		return "ft"
	}
	return "m"
}

// Pace formats seconds per distance unit as m:ss.
func (u Units) Pace(movingSeconds int, meters float64) string {
	dist := u.Distance(meters)
	if movingSeconds <= 0 || dist <= 0 {
		return ""
	}
	perUnit := int(math.Round(float64(movingSeconds) / dist))
	return fmt.Sprintf("%d:%02d /%s", perUnit/60, perUnit%60, u.DistanceLabel())
}
