package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/campushub/activity-attendance-api/internal/models"
	"github.com/campushub/activity-attendance-api/pkg/clock"
	appErrors "github.com/campushub/activity-attendance-api/pkg/errors"
)

type lifecycleRepository interface {
	Sweep(ctx context.Context, now time.Time) (models.SweepResult, error)
}

// LifecycleService advances activity statuses based on wall-clock time. Each
// Tick is idempotent: re-running it for the same instant changes nothing.
type LifecycleService struct {
	repo    lifecycleRepository
	clk     clock.Clock
	logger  *zap.Logger
	metrics *MetricsService
}

// NewLifecycleService constructs the service.
func NewLifecycleService(repo lifecycleRepository, clk clock.Clock, logger *zap.Logger, metrics *MetricsService) *LifecycleService {
	if clk == nil {
		clk = clock.System()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LifecycleService{repo: repo, clk: clk, logger: logger, metrics: metrics}
}

// Tick runs one lifecycle sweep at the injected clock's current instant.
func (s *LifecycleService) Tick(ctx context.Context) (models.SweepResult, error) {
	now := s.clk.Now()
	startedAt := time.Now()

	result, err := s.repo.Sweep(ctx, now)
	if err != nil {
		return result, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "lifecycle sweep failed")
	}

	if s.metrics != nil {
		s.metrics.ObserveSweep(result.Started, result.Completed, time.Since(startedAt))
	}
	if result.Changed() {
		s.logger.Sugar().Infow("lifecycle sweep applied transitions",
			"started", result.Started, "completed", result.Completed, "at", now.UTC())
	}
	return result, nil
}

// Run is the scheduler entry point; it discards the per-tick counts.
func (s *LifecycleService) Run(ctx context.Context) error {
	_, err := s.Tick(ctx)
	return err
}
