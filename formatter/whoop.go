// ABOUTME: Whoop workout and sleep formatting
// ABOUTME: Sleep titles report time asleep and optional matched recovery
package formatter

import (
	"fmt"
	"strings"

	"github.com/harperreed/fitsync/models"
	"github.com/harperreed/fitsync/providers/whoop"
)

const kilojoulesPerKcal = 4.184

var whoopIcons = map[string]string{
	"running":            "🏃",
	"cycling":            "🚴",
	"mountain biking":    "🚴",
	"swimming":           "🏊",
	"weightlifting":      "🏋️",
	"functional fitness": "🏋️",
	"powerlifting":       "🏋️",
	"walking":            "🚶",
	"hiking/rucking":     "🚶",
	"yoga":               "🧘",
	"rowing":             "🚣",
}

// WhoopWorkout renders a Whoop workout.
func (f *Formatter) WhoopWorkout(w whoop.Workout) models.FormattedEvent {
	u := f.units()
	name := strings.TrimSpace(w.SportName)
	icon, ok := whoopIcons[strings.ToLower(name)]
	if !ok {
		icon = defaultIcon
	}
	if name == "" {
		name = "Whoop Workout"
	}

	score := w.Score
	if score == nil {
		score = &whoop.WorkoutScore{}
	}

	parts := []string{icon + " " + name}
	dist, hasDistance := f.distanceSuffix(score.DistanceMeter)
	if hasDistance {
		parts = append(parts, dist)
	}
	if w.Score != nil {
		parts = append(parts, fmt.Sprintf("Strain %.1f", score.Strain))
	}

	var lines []string
	if hasDistance {
		lines = append(lines, fmt.Sprintf("Distance: %.2f %s", u.Distance(score.DistanceMeter), u.DistanceLabel()))
	}
	if score.AltitudeGain > 0 {
		lines = append(lines, fmt.Sprintf("Elevation: %.0f %s", u.Elevation(score.AltitudeGain), u.ElevationLabel()))
	}
	if score.AverageHeartRate > 0 {
		lines = append(lines, fmt.Sprintf("Avg HR: %.0f", score.AverageHeartRate))
	}
	if score.MaxHeartRate > 0 {
		lines = append(lines, fmt.Sprintf("Max HR: %.0f", score.MaxHeartRate))
	}
	if w.Score != nil {
		lines = append(lines, fmt.Sprintf("Strain: %.1f", score.Strain))
	}
	if score.Kilojoule > 0 {
		lines = append(lines, fmt.Sprintf("Calories: %.0f kcal", score.Kilojoule/kilojoulesPerKcal))
	}

	start, end := span(w.Start, w.End)
	return models.FormattedEvent{
		Title:       strings.Join(parts, titleSep),
		Description: strings.Join(lines, "\n"),
		Start:       start,
		End:         end,
	}
}

// WhoopSleep renders a sleep, appending recovery context when one was matched.
func (f *Formatter) WhoopSleep(s whoop.Sleep, recovery *whoop.Recovery) models.FormattedEvent {
	label := "Sleep"
	if s.Nap {
		label = "Nap"
	}

	var stages *whoop.StageSummary
	if s.Score != nil {
		stages = s.Score.StageSummary
	}

	asleep := ""
	if stages != nil {
		asleep = formatDuration(millis(stages.AsleepMilli()))
	} else if start, ok := parseTime(s.Start); ok {
		if end, ok := parseTime(s.End); ok {
			asleep = formatDuration(end.Sub(start))
		}
	}

	title := sleepIcon + " " + label
	if asleep != "" {
		title += titleSep + asleep
	}
	if recovery != nil && recovery.Score != nil && recovery.Score.RecoveryScore > 0 {
		title += fmt.Sprintf(" (%.0f%% recovery)", recovery.Score.RecoveryScore)
	}

	var lines []string
	if stages != nil {
		lines = append(lines,
			"Time Asleep: "+asleep,
			"Time in Bed: "+formatDuration(millis(stages.TotalInBedTimeMilli)),
		)
	}
	if s.Score != nil {
		if s.Score.SleepPerformancePercentage > 0 {
			lines = append(lines, fmt.Sprintf("Sleep Performance: %.0f%%", s.Score.SleepPerformancePercentage))
		}
		if s.Score.SleepEfficiencyPercentage > 0 {
			lines = append(lines, fmt.Sprintf("Sleep Efficiency: %.0f%%", s.Score.SleepEfficiencyPercentage))
		}
		if stages != nil {
			lines = append(lines, fmt.Sprintf("Disturbances: %d", stages.DisturbanceCount))
		}
		if s.Score.RespiratoryRate > 0 {
			lines = append(lines, fmt.Sprintf("Respiratory Rate: %.1f", s.Score.RespiratoryRate))
		}
	}
	if recovery != nil && recovery.Score != nil {
		r := recovery.Score
		lines = append(lines,
			fmt.Sprintf("Recovery: %.0f%%", r.RecoveryScore),
			fmt.Sprintf("HRV: %.1f ms", r.HrvRmssdMilli),
			fmt.Sprintf("Resting HR: %.0f bpm", r.RestingHeartRate),
		)
	}

	start, end := span(s.Start, s.End)
	return models.FormattedEvent{
		Title:       title,
		Description: strings.Join(lines, "\n"),
		Start:       start,
		End:         end,
	}
}
