// ABOUTME: Whoop developer API payload types
// ABOUTME: Workouts, sleeps, and recoveries with their score blocks
package whoop

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
)

// ScoreStateScored marks a record Whoop has finished scoring.
const ScoreStateScored = "SCORED"

// FlexID decodes identifiers Whoop has shipped as both numbers and strings.
type FlexID string

func (id *FlexID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = FlexID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("whoop id: %w", err)
	}
	if i, err := n.Int64(); err == nil {
		*id = FlexID(strconv.FormatInt(i, 10))
		return nil
	}
	*id = FlexID(n.String())
	return nil
}

func (id FlexID) String() string { return string(id) }

type WorkoutScore struct {
	Strain           float64 `json:"strain"`
	AverageHeartRate float64 `json:"average_heart_rate"`
	MaxHeartRate     float64 `json:"max_heart_rate"`
	Kilojoule        float64 `json:"kilojoule"`
	DistanceMeter    float64 `json:"distance_meter"`
	AltitudeGain     float64 `json:"altitude_gain_meter"`
}

type Workout struct {
	ID         FlexID        `json:"id"`
	SportID    int           `json:"sport_id"`
	SportName  string        `json:"sport_name"`
	Start      string        `json:"start"`
	End        string        `json:"end"`
	ScoreState string        `json:"score_state"`
	Score      *WorkoutScore `json:"score"`
}

// Scored reports whether the workout is ready to sync.
func (w Workout) Scored() bool { return w.ScoreState == ScoreStateScored }

type StageSummary struct {
	TotalInBedTimeMilli         int64 `json:"total_in_bed_time_milli"`
	TotalAwakeTimeMilli         int64 `json:"total_awake_time_milli"`
	TotalNoDataTimeMilli        int64 `json:"total_no_data_time_milli"`
	TotalLightSleepTimeMilli    int64 `json:"total_light_sleep_time_milli"`
	TotalSlowWaveSleepTimeMilli int64 `json:"total_slow_wave_sleep_time_milli"`
	TotalRemSleepTimeMilli      int64 `json:"total_rem_sleep_time_milli"`
	SleepCycleCount             int   `json:"sleep_cycle_count"`
	DisturbanceCount            int   `json:"disturbance_count"`
}

// AsleepMilli is light + slow wave + REM. Awake and no-data time are excluded.
func (s StageSummary) AsleepMilli() int64 {
	return s.TotalLightSleepTimeMilli + s.TotalSlowWaveSleepTimeMilli + s.TotalRemSleepTimeMilli
}

type SleepScore struct {
	StageSummary               *StageSummary `json:"stage_summary"`
	RespiratoryRate            float64       `json:"respiratory_rate"`
	SleepPerformancePercentage float64       `json:"sleep_performance_percentage"`
	SleepEfficiencyPercentage  float64       `json:"sleep_efficiency_percentage"`
	SleepConsistencyPercentage float64       `json:"sleep_consistency_percentage"`
}

type Sleep struct {
	ID         FlexID      `json:"id"`
	Start      string      `json:"start"`
	End        string      `json:"end"`
	Nap        bool        `json:"nap"`
	ScoreState string      `json:"score_state"`
	Score      *SleepScore `json:"score"`
}

func (s Sleep) Scored() bool { return s.ScoreState == ScoreStateScored }

type RecoveryScore struct {
	RecoveryScore    float64 `json:"recovery_score"`
	RestingHeartRate float64 `json:"resting_heart_rate"`
	HrvRmssdMilli    float64 `json:"hrv_rmssd_milli"`
}

type Recovery struct {
	CycleID    FlexID         `json:"cycle_id"`
	SleepID    FlexID         `json:"sleep_id"`
	ScoreState string         `json:"score_state"`
	Score      *RecoveryScore `json:"score"`
}

// MatchRecoveries indexes recoveries by the sleep they were derived from.
func MatchRecoveries(recoveries []Recovery) map[FlexID]*Recovery {
	bySleep := make(map[FlexID]*Recovery, len(recoveries))
	for i := range recoveries {
		r := &recoveries[i]
		if r.SleepID == "" || r.Score == nil {
			continue
		}
		bySleep[r.SleepID] = r
	}
	return bySleep
}
