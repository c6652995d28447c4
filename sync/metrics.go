package sync

import "github.com/prometheus/client_golang/prometheus"

var (
	outcomeCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitsync",
		Subsystem: "engine",
		Name:      "outcomes_total",
		Help:      "Sync engine results by source and outcome.",
	}, []string{"source", "outcome"})

	calendarErrorCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitsync",
		Subsystem: "engine",
		Name:      "calendar_errors_total",
		Help:      "Calendar gateway failures by operation.",
	}, []string{"operation"})

	supersededCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fitsync",
		Subsystem: "engine",
		Name:      "superseded_total",
		Help:      "Non-authoritative records retracted because an authoritative record covers them.",
	})

	orphanedEventCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fitsync",
		Subsystem: "engine",
		Name:      "orphaned_events_total",
		Help:      "Calendar events created whose ledger write then failed.",
	})
)

func init() {
	prometheus.MustRegister(outcomeCounter, calendarErrorCounter, supersededCounter, orphanedEventCounter)
}
