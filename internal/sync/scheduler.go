package sync

import (
	"context"
	"errors"
	"log/slog"
	stdsync "sync"
	"time"
)

// Syncer runs one synchronization cycle.
type Syncer interface {
	Run(ctx context.Context) error
}

// Scheduler runs cycles on a fixed interval: one immediately at startup,
// then one per tick. At most one cycle runs at a time; a tick that fires
// while the previous cycle is still in flight is skipped with a warning
// rather than queued, so cycles never pile up behind a slow run.
type Scheduler struct {
	syncer   Syncer
	interval time.Duration
	logger   *slog.Logger

	mu stdsync.Mutex // held for the full duration of a cycle
	wg stdsync.WaitGroup
}

// NewScheduler creates a new cycle scheduler
func NewScheduler(syncer Syncer, interval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		syncer:   syncer,
		interval: interval,
		logger:   logger,
	}
}

// Run blocks until ctx is cancelled, dispatching cycles on the configured
// interval. On shutdown the in-flight cycle is allowed to finish its
// current operations before Run returns.
func (s *Scheduler) Run(ctx context.Context) error {
	s.kick(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler shutting down, waiting for in-flight cycle")
			s.wg.Wait()
			return ctx.Err()
		case <-ticker.C:
			s.kick(ctx)
		}
	}
}

// TriggerNow requests an immediate out-of-schedule cycle. It returns
// false when a cycle is already running; the request is dropped, not
// queued, matching the scheduler's no-overlap policy.
func (s *Scheduler) TriggerNow(ctx context.Context) bool {
	return s.kick(ctx)
}

func (s *Scheduler) kick(ctx context.Context) bool {
	if !s.mu.TryLock() {
		s.logger.Warn("skipping synchronization: previous cycle still running, consider a larger interval")
		return false
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.mu.Unlock()

		if err := s.syncer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Error("synchronization cycle failed", "error", err)
		}
	}()
	return true
}
