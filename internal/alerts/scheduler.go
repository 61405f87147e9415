package alerts

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/bargn/bargn/pkg/logger"
)

// Scheduler runs the evaluator on a fixed interval inside a long-running
// process. Runs are not deduplicated against external triggers.
type Scheduler struct {
	evaluator *Evaluator
	interval  time.Duration
	log       *slog.Logger

	stop     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewScheduler(evaluator *Evaluator, interval time.Duration, log *slog.Logger) *Scheduler {
	if log == nil {
		log = logger.Discard()
	}
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	return &Scheduler{
		evaluator: evaluator,
		interval:  interval,
		log:       log.With("component", "alert_scheduler"),
		stop:      make(chan struct{}),
	}
}

// Start launches the evaluation loop in the background.
func (s *Scheduler) Start(ctx context.Context) {
	s.log.Info("starting alert scheduler", "interval", s.interval)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		// Evaluate once right away so alerts fire soon after startup.
		s.runOnce(ctx)

		for {
			select {
			case <-ticker.C:
				s.runOnce(ctx)
			case <-s.stop:
				s.log.Info("alert scheduler stopping")
				return
			case <-ctx.Done():
				s.log.Info("alert scheduler context cancelled")
				return
			}
		}
	}()
}

// Stop signals the loop to exit and waits for the current run to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.wg.Wait()
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if _, err := s.evaluator.EvaluateAll(ctx); err != nil {
		s.log.Error("scheduled alert evaluation failed", "error", err)
	}
}
