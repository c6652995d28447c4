// ABOUTME: Strava activity formatting
// ABOUTME: Builds titles with sport icons and metric-line descriptions with a permalink
package formatter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/harperreed/fitsync/models"
	"github.com/harperreed/fitsync/providers/strava"
)

const stravaActivityURL = "https://www.strava.com/activities/"

var stravaIcons = map[string]string{
	"Run":              "🏃",
	"TrailRun":         "🏃",
	"VirtualRun":       "🏃",
	"Ride":             "🚴",
	"VirtualRide":      "🚴",
	"GravelRide":       "🚴",
	"MountainBikeRide": "🚴",
	"Swim":             "🏊",
	"WeightTraining":   "🏋️",
	"Hike":             "🚶",
	"Walk":             "🚶",
	"Yoga":             "🧘",
	"Rowing":           "🚣",
}

// StravaActivity renders a Strava activity.
func (f *Formatter) StravaActivity(a strava.Activity) models.FormattedEvent {
	u := f.units()
	sport := a.Type
	if sport == "" {
		sport = a.SportType
	}
	if sport == "" {
		sport = "Workout"
	}
	icon, ok := stravaIcons[sport]
	if !ok {
		icon = defaultIcon
	}
	name := strings.TrimSpace(a.Name)
	if name == "" {
		name = sport
	}

	title := icon + " " + name
	dist, hasDistance := f.distanceSuffix(a.Distance)
	if hasDistance {
		title += titleSep + dist
	}

	lines := []string{"Sport: " + sport}
	if hasDistance {
		lines = append(lines, fmt.Sprintf("Distance: %.2f %s", u.Distance(a.Distance), u.DistanceLabel()))
		if pace := u.Pace(a.MovingTime, a.Distance); pace != "" {
			lines = append(lines, "Pace: "+pace)
		}
	}
	if a.TotalElevationGain > 0 {
		lines = append(lines, fmt.Sprintf("Elevation: %.0f %s", u.Elevation(a.TotalElevationGain), u.ElevationLabel()))
	}
	if a.AverageHeartrate > 0 {
		lines = append(lines, fmt.Sprintf("HR: %.0f avg / %.0f max", a.AverageHeartrate, a.MaxHeartrate))
	}
	if a.SufferScore != nil && *a.SufferScore > 0 {
		lines = append(lines, fmt.Sprintf("Suffer Score: %.0f", *a.SufferScore))
	}
	if a.Calories > 0 {
		lines = append(lines, fmt.Sprintf("Calories: %.0f kcal", a.Calories))
	}
	if a.ID != 0 {
		lines = append(lines, "", stravaActivityURL+strconv.FormatInt(a.ID, 10))
	}

	ev := models.FormattedEvent{
		Title:       title,
		Description: strings.Join(lines, "\n"),
		Start:       rawTime(a.StartDate),
		End:         rawTime(a.StartDate),
	}
	if start, ok := parseTime(a.StartDate); ok {
		ev.Start = eventTime(start)
		ev.End = eventTime(start.Add(time.Duration(a.ElapsedTime) * time.Second))
	}
	if len(a.StartLatLng) == 2 {
		ev.Location = strconv.FormatFloat(a.StartLatLng[0], 'f', -1, 64) + "," +
			strconv.FormatFloat(a.StartLatLng[1], 'f', -1, 64)
	}
	return ev
}
