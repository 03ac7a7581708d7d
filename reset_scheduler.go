package codegate

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"codegate/internal/clock"
)

// ResetScheduler drives the periodic global session reset. The
// sessionResetCron settings document is re-read on every tick, so enabling,
// disabling or changing the interval takes effect at the next tick without
// restarting the process.
type ResetScheduler struct {
	engine *Engine
	clock  clock.Clock
	logger *slog.Logger

	// pollInterval is the tick rate while the reset is disabled, so a
	// re-enable is noticed promptly. Defaults to one minute.
	pollInterval time.Duration

	mu      sync.Mutex
	stop    chan struct{}
	stopped sync.WaitGroup
}

func NewResetScheduler(engine *Engine, logger *slog.Logger) *ResetScheduler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &ResetScheduler{
		engine:       engine,
		clock:        engine.clock,
		logger:       logger,
		pollInterval: time.Minute,
	}
}

// Start launches the scheduler goroutine. Calling Start on a running
// scheduler is a no-op.
func (s *ResetScheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.stopped.Add(1)
	go s.run(s.stop)
}

// Stop halts the scheduler and waits for the worker to exit.
func (s *ResetScheduler) Stop() {
	s.mu.Lock()
	stop := s.stop
	s.stop = nil
	s.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	s.stopped.Wait()
}

func (s *ResetScheduler) run(stop chan struct{}) {
	defer s.stopped.Done()

	interval := s.currentInterval(context.Background())
	ticker := s.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			ctx := context.Background()
			policy, err := s.engine.settings.ResetCron(ctx)
			if err != nil {
				s.logger.Warn("reset policy read failed", "error", err)
				continue
			}

			if policy.Enabled {
				if err := s.engine.ResetAllSessions(ctx); err != nil {
					s.logger.Error("scheduled reset failed", "error", err)
				} else {
					s.logger.Info("scheduled reset completed", "interval_hours", policy.Hours)
				}
			}

			if next := s.intervalFor(policy); next != interval {
				interval = next
				ticker.Reset(interval)
			}
		}
	}
}

func (s *ResetScheduler) currentInterval(ctx context.Context) time.Duration {
	policy, err := s.engine.settings.ResetCron(ctx)
	if err != nil {
		return s.pollInterval
	}
	return s.intervalFor(policy)
}

func (s *ResetScheduler) intervalFor(policy ResetCronPolicy) time.Duration {
	if !policy.Enabled || policy.Hours <= 0 {
		return s.pollInterval
	}
	return time.Duration(policy.Hours) * time.Hour
}
