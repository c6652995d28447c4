package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// DefaultPollInterval is the Whoop polling cadence.
const DefaultPollInterval = 15 * time.Minute

// Scheduler runs a job on a fixed interval until its context ends.
type Scheduler struct {
	job      func(context.Context) error
	interval time.Duration
	logger   *slog.Logger
	done     chan struct{}
}

func NewScheduler(job func(context.Context) error, interval time.Duration, logger *slog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{job: job, interval: interval, logger: logger, done: make(chan struct{})}
}

// Start blocks, running the job on every tick. The first run happens one
// interval after Start; callers wanting an immediate run invoke the job
// themselves. It should be called in a goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer func() {
		ticker.Stop()
		close(s.done)
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		if err := s.job(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Warn("scheduled job failed", "error", err)
		}
	}
}

// Wait blocks until Start returns.
func (s *Scheduler) Wait() {
	<-s.done
}
