package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/campushub/activity-attendance-api/internal/models"
	"github.com/campushub/activity-attendance-api/pkg/clock"
	appErrors "github.com/campushub/activity-attendance-api/pkg/errors"
	"github.com/campushub/activity-attendance-api/pkg/jobs"
)

const overviewCacheKey = "reports:overview"

type reportRepositoryPort interface {
	Overview(ctx context.Context) (*models.OverviewReport, error)
	Trend(ctx context.Context, from, to time.Time) ([]models.TrendPoint, error)
	TopActivities(ctx context.Context, limit int) ([]models.ActivityRanking, error)
	SaveSnapshot(ctx context.Context, snapshot *models.ReportSnapshot) (*models.ReportSnapshot, error)
	LatestSnapshot(ctx context.Context) (*models.ReportSnapshot, error)
}

// ReportService aggregates platform-wide reporting. The overview is cached
// briefly in Redis; a background job persists a daily snapshot.
type ReportService struct {
	repo   reportRepositoryPort
	cache  *redis.Client
	clk    clock.Clock
	logger *zap.Logger
	ttl    time.Duration

	queue *jobs.Queue
}

// NewReportService constructs the service and its snapshot queue.
func NewReportService(repo reportRepositoryPort, cache *redis.Client, clk clock.Clock, logger *zap.Logger, ttl time.Duration, workers, retries int) *ReportService {
	if clk == nil {
		clk = clock.System()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	s := &ReportService{repo: repo, cache: cache, clk: clk, logger: logger, ttl: ttl}
	s.queue = jobs.NewQueue("report-snapshots", s.handleSnapshotJob, jobs.QueueConfig{
		Workers:    workers,
		MaxRetries: retries,
		Logger:     logger,
	})
	return s
}

// StartWorker launches the snapshot queue.
func (s *ReportService) StartWorker(ctx context.Context) {
	s.queue.Start(ctx)
}

// StopWorker drains the snapshot queue.
func (s *ReportService) StopWorker() {
	s.queue.Stop()
}

// Overview returns platform-wide counters, served from cache when fresh.
func (s *ReportService) Overview(ctx context.Context) (*models.OverviewReport, error) {
	if s.cache != nil {
		raw, err := s.cache.Get(ctx, overviewCacheKey).Bytes()
		if err == nil {
			var cached models.OverviewReport
			if json.Unmarshal(raw, &cached) == nil {
				return &cached, nil
			}
		} else if !errors.Is(err, redis.Nil) {
			s.logger.Warn("overview cache read failed", zap.Error(err))
		}
	}

	report, err := s.buildOverview(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(report); err == nil {
			if err := s.cache.Set(ctx, overviewCacheKey, raw, s.ttl).Err(); err != nil {
				s.logger.Warn("overview cache write failed", zap.Error(err))
			}
		}
	}
	return report, nil
}

func (s *ReportService) buildOverview(ctx context.Context) (*models.OverviewReport, error) {
	report, err := s.repo.Overview(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build overview report")
	}
	report.AttendanceRate = attendanceRate(report.TotalAttendances, report.TotalRegistrations)
	report.GeneratedAt = s.clk.Now().UTC()
	return report, nil
}

// Trend returns the per-day series for the trailing N days.
func (s *ReportService) Trend(ctx context.Context, days int) ([]models.TrendPoint, error) {
	if days <= 0 || days > 90 {
		days = 14
	}
	to := s.clk.Now().UTC()
	from := to.AddDate(0, 0, -(days - 1))
	points, err := s.repo.Trend(ctx, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build trend report")
	}
	return points, nil
}

// TopActivities ranks activities by attendance.
func (s *ReportService) TopActivities(ctx context.Context, limit int) ([]models.ActivityRanking, error) {
	rankings, err := s.repo.TopActivities(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to rank activities")
	}
	for i := range rankings {
		rankings[i].AttendanceRate = attendanceRate(rankings[i].Attendances, rankings[i].Registrations)
	}
	return rankings, nil
}

// EnqueueSnapshot schedules the daily snapshot job. The scheduler calls this
// once a day; failures are retried by the queue.
func (s *ReportService) EnqueueSnapshot(ctx context.Context) error {
	return s.queue.Enqueue(jobs.Job{
		ID:   uuid.NewString(),
		Type: "overview_snapshot",
	})
}

func (s *ReportService) handleSnapshotJob(ctx context.Context, job jobs.Job) error {
	report, err := s.buildOverview(ctx)
	if err != nil {
		return err
	}
	payload, err := json.Marshal(report)
	if err != nil {
		return err
	}
	day := s.clk.Now().UTC().Truncate(24 * time.Hour)
	if _, err := s.repo.SaveSnapshot(ctx, &models.ReportSnapshot{SnapshotDay: day, Payload: payload}); err != nil {
		return err
	}
	s.logger.Sugar().Infow("report snapshot stored", "day", day.Format("2006-01-02"), "job_id", job.ID)
	return nil
}

// LatestSnapshot returns the most recent stored daily snapshot.
func (s *ReportService) LatestSnapshot(ctx context.Context) (*models.ReportSnapshot, error) {
	snapshot, err := s.repo.LatestSnapshot(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no snapshot has been generated yet")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load snapshot")
	}
	return snapshot, nil
}
