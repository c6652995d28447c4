package ingest

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestSchedulerRunsUntilCancelled(t *testing.T) {
	var runs int32
	ctx, cancel := context.WithCancel(context.Background())
	s := NewScheduler(func(context.Context) error {
		atomic.AddInt32(&runs, 1)
		return errors.New("failures are logged, not fatal")
	}, 5*time.Millisecond, nil)

	go s.Start(ctx)

	deadline := time.After(2 * time.Second)
	for atomic.LoadInt32(&runs) < 2 {
		select {
		case <-deadline:
			t.Fatalf("expected at least 2 runs, got %d", atomic.LoadInt32(&runs))
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	s.Wait()
}

func TestSchedulerDefaultsInterval(t *testing.T) {
	s := NewScheduler(func(context.Context) error { return nil }, 0, nil)
	if s.interval != DefaultPollInterval {
		t.Errorf("expected default interval %v, got %v", DefaultPollInterval, s.interval)
	}
}
