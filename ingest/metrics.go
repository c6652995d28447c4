package ingest

import "github.com/prometheus/client_golang/prometheus"

// Driver label values.
const (
	driverWhoopPoll      = "whoop_poll"
	driverStravaBackfill = "strava_backfill"
	driverStravaWebhook  = "strava_webhook"
)

var (
	runCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitsync",
		Subsystem: "ingest",
		Name:      "runs_total",
		Help:      "Ingestion runs by driver and status.",
	}, []string{"driver", "status"})

	itemFailureCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitsync",
		Subsystem: "ingest",
		Name:      "item_failures_total",
		Help:      "Records that failed to fetch or sync, by driver.",
	}, []string{"driver"})

	runDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fitsync",
		Subsystem: "ingest",
		Name:      "run_duration_seconds",
		Help:      "Wall time of ingestion runs.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
	}, []string{"driver"})

	lastSuccessGauge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "fitsync",
		Subsystem: "ingest",
		Name:      "last_success_timestamp_seconds",
		Help:      "Unix time of the last successful run per driver.",
	}, []string{"driver"})
)

func init() {
	prometheus.MustRegister(runCounter, itemFailureCounter, runDuration, lastSuccessGauge)
}
