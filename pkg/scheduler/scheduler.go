// Package scheduler runs recurring background tasks: the activity lifecycle
// sweep every tick, and the daily report snapshot at a fixed wall-clock time.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/campushub/activity-attendance-api/pkg/clock"
)

// Task is a unit of scheduled work. Errors are logged, never fatal; the
// schedule keeps running.
type Task func(context.Context) error

// Scheduler owns a set of named recurring tasks and drives them on a shared
// lifecycle.
type Scheduler struct {
	clk    clock.Clock
	logger *zap.Logger

	mu      sync.Mutex
	entries []entry
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	started bool
}

type entry struct {
	name string
	next func(now time.Time) time.Time
	task Task
}

// New builds an empty scheduler around the given clock.
func New(clk clock.Clock, logger *zap.Logger) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{clk: clk, logger: logger}
}

// Every registers a task that fires at a fixed interval, starting one
// interval after Start.
func (s *Scheduler) Every(name string, interval time.Duration, task Task) {
	if interval <= 0 {
		interval = time.Second
	}
	s.register(entry{
		name: name,
		next: func(now time.Time) time.Time { return now.Add(interval) },
		task: task,
	})
}

// DailyAt registers a task that fires once a day at the given local
// wall-clock time, formatted "15:04".
func (s *Scheduler) DailyAt(name, at string, task Task) error {
	t, err := time.Parse("15:04", at)
	if err != nil {
		return fmt.Errorf("parse daily schedule %q: %w", at, err)
	}
	hour, minute := t.Hour(), t.Minute()
	s.register(entry{
		name: name,
		next: func(now time.Time) time.Time {
			run := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
			if !run.After(now) {
				run = run.AddDate(0, 0, 1)
			}
			return run
		},
		task: task,
	})
	return nil
}

func (s *Scheduler) register(e entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
}

// Start launches one goroutine per registered task. Safe to call once.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	for _, e := range s.entries {
		s.wg.Add(1)
		go s.run(ctx, e)
	}
	s.started = true
	s.logger.Sugar().Infow("scheduler started", "tasks", len(s.entries))
}

// Stop cancels all task loops and waits for them to exit.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	s.cancel()
	s.mu.Unlock()
	s.wg.Wait()
	s.logger.Sugar().Infow("scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context, e entry) {
	defer s.wg.Done()
	for {
		now := s.clk.Now()
		wait := e.next(now).Sub(now)
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
			if err := e.task(ctx); err != nil {
				s.logger.Sugar().Errorw("scheduled task failed", "task", e.name, "error", err)
			}
		}
	}
}
