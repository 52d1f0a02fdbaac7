package service

import (
	"context"
	"database/sql"
	"errors"

	"go.uber.org/zap"

	"github.com/campushub/activity-attendance-api/internal/models"
	"github.com/campushub/activity-attendance-api/internal/repository"
	"github.com/campushub/activity-attendance-api/pkg/clock"
	appErrors "github.com/campushub/activity-attendance-api/pkg/errors"
	"github.com/campushub/activity-attendance-api/pkg/export"
)

type registrationRepositoryPort interface {
	Register(ctx context.Context, activityID, userID int64, capacity *int) (*models.Registration, error)
	Find(ctx context.Context, activityID, userID int64) (*models.Registration, error)
	UpdateStatus(ctx context.Context, id int64, status models.RegistrationStatus) (*models.Registration, error)
	List(ctx context.Context, filter models.RegistrationFilter) ([]models.RegistrationRecord, int, error)
	Counts(ctx context.Context, activityID int64) (active, cancelled int, err error)
}

type registrationActivityPort interface {
	GetByID(ctx context.Context, id int64) (*models.Activity, error)
}

// RegistrationService owns the registration ledger: capacity-bounded,
// idempotent sign-up and cancellation for (activity, user) pairs.
type RegistrationService struct {
	repo       registrationRepositoryPort
	activities registrationActivityPort
	clk        clock.Clock
	logger     *zap.Logger
	metrics    *MetricsService
}

// NewRegistrationService constructs the service.
func NewRegistrationService(repo registrationRepositoryPort, activities registrationActivityPort, clk clock.Clock, logger *zap.Logger, metrics *MetricsService) *RegistrationService {
	if clk == nil {
		clk = clock.System()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationService{repo: repo, activities: activities, clk: clk, logger: logger, metrics: metrics}
}

func (s *RegistrationService) observe(outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveRegistration(outcome)
	}
}

// Register signs a user up for an upcoming activity. A cancelled pair is
// reactivated in place; the pair never owns a second row.
func (s *RegistrationService) Register(ctx context.Context, activityID, userID int64) (*models.Registration, error) {
	activity, err := s.activities.GetByID(ctx, activityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.observe("not_found")
			return nil, appErrors.Clone(appErrors.ErrNotFound, "activity not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity")
	}

	now := s.clk.Now()
	if activity.Status != models.ActivityUpcoming {
		s.observe("rejected")
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "registration is only open for upcoming activities")
	}
	if !now.Before(activity.StartTime) {
		s.observe("rejected")
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "activity has already started")
	}
	if activity.RegistrationDeadline != nil && !now.Before(*activity.RegistrationDeadline) {
		s.observe("rejected")
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "registration deadline has passed")
	}

	registration, err := s.repo.Register(ctx, activityID, userID, activity.MaxParticipants)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrActivityFull):
			s.observe("full")
			return nil, appErrors.Clone(appErrors.ErrConflict, "activity is full")
		case errors.Is(err, repository.ErrAlreadyRegistered):
			s.observe("duplicate")
			return nil, appErrors.Clone(appErrors.ErrConflict, "already registered for this activity")
		case errors.Is(err, sql.ErrNoRows):
			s.observe("not_found")
			return nil, appErrors.Clone(appErrors.ErrNotFound, "activity not found")
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to register")
		}
	}

	s.observe("registered")
	s.logger.Sugar().Infow("registration recorded", "activity_id", activityID, "user_id", userID, "registration_id", registration.ID)
	return registration, nil
}

// Cancel flips an Active registration to Cancelled. Started activities can
// no longer be cancelled.
func (s *RegistrationService) Cancel(ctx context.Context, activityID, userID int64) (*models.Registration, error) {
	registration, err := s.repo.Find(ctx, activityID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "registration not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}
	if registration.Status == models.RegistrationCancelled {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "registration is already cancelled")
	}

	activity, err := s.activities.GetByID(ctx, activityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "activity not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity")
	}
	if !s.clk.Now().Before(activity.StartTime) {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "cannot cancel after the activity has started")
	}

	cancelled, err := s.repo.UpdateStatus(ctx, registration.ID, models.RegistrationCancelled)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel registration")
	}
	s.observe("cancelled")
	return cancelled, nil
}

// List returns registration records with user and activity metadata.
func (s *RegistrationService) List(ctx context.Context, filter models.RegistrationFilter) ([]models.RegistrationRecord, *models.Pagination, error) {
	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list registrations")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 20
	}
	return records, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Stats summarises the registration ledger for an activity.
func (s *RegistrationService) Stats(ctx context.Context, activityID int64) (*models.RegistrationStats, error) {
	activity, err := s.activities.GetByID(ctx, activityID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "activity not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity")
	}

	active, cancelled, err := s.repo.Counts(ctx, activityID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count registrations")
	}

	stats := &models.RegistrationStats{
		ActivityID:      activityID,
		Active:          active,
		Cancelled:       cancelled,
		MaxParticipants: activity.MaxParticipants,
	}
	if activity.MaxParticipants != nil {
		stats.IsFull = active >= *activity.MaxParticipants
	}
	return stats, nil
}

// ExportCSV renders an activity's registration list as a CSV download.
func (s *RegistrationService) ExportCSV(ctx context.Context, activityID int64) ([]byte, error) {
	records, _, err := s.List(ctx, models.RegistrationFilter{ActivityID: activityID, PageSize: 200})
	if err != nil {
		return nil, err
	}
	table := export.Table{
		Columns: []string{"Username", "Full Name", "Email", "Activity", "Status", "Registered At"},
	}
	for _, record := range records {
		table.Rows = append(table.Rows, []string{
			record.Username,
			record.FullName,
			record.Email,
			record.ActivityName,
			string(record.Status),
			record.CreatedAt.UTC().Format("2006-01-02 15:04:05"),
		})
	}
	out, err := export.CSV(table)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	return out, nil
}
