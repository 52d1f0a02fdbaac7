package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/campushub/activity-attendance-api/internal/models"
	"github.com/campushub/activity-attendance-api/internal/repository"
	"github.com/campushub/activity-attendance-api/pkg/clock"
	appErrors "github.com/campushub/activity-attendance-api/pkg/errors"
	"github.com/campushub/activity-attendance-api/pkg/qr"
)

type checkinActivityPort interface {
	GetByID(ctx context.Context, id int64) (*models.Activity, error)
}

type checkinRegistrationPort interface {
	Find(ctx context.Context, activityID, userID int64) (*models.Registration, error)
}

type checkinAttendancePort interface {
	Find(ctx context.Context, activityID, userID int64) (*models.Attendance, error)
	Insert(ctx context.Context, attendance *models.Attendance) (*models.Attendance, error)
}

type checkinUserPort interface {
	GetByID(ctx context.Context, id int64) (*models.User, error)
}

// CheckinService orchestrates QR and manual check-in: it composes the QR
// codec, the activity's persisted lifecycle state, and the registration
// ledger, then writes exactly one attendance row on success.
type CheckinService struct {
	activities    checkinActivityPort
	registrations checkinRegistrationPort
	attendances   checkinAttendancePort
	users         checkinUserPort
	clk           clock.Clock
	logger        *zap.Logger
	metrics       *MetricsService
}

// NewCheckinService constructs the service.
func NewCheckinService(activities checkinActivityPort, registrations checkinRegistrationPort, attendances checkinAttendancePort, users checkinUserPort, clk clock.Clock, logger *zap.Logger, metrics *MetricsService) *CheckinService {
	if clk == nil {
		clk = clock.System()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckinService{
		activities:    activities,
		registrations: registrations,
		attendances:   attendances,
		users:         users,
		clk:           clk,
		logger:        logger,
		metrics:       metrics,
	}
}

func (s *CheckinService) observe(method models.CheckinMethod, outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveCheckin(string(method), outcome)
	}
}

// CheckinViaQR validates a scanned payload and records attendance for the
// scanning user.
func (s *CheckinService) CheckinViaQR(ctx context.Context, payloadText string, userID int64) (*models.Attendance, error) {
	now := s.clk.Now()
	payload, err := qr.Validate(payloadText, now)
	if err != nil {
		s.observe(models.MethodQRScan, "invalid_payload")
		return nil, err
	}

	activity, err := s.loadActivity(ctx, payload.ActivityID)
	if err != nil {
		s.observe(models.MethodQRScan, "rejected")
		return nil, err
	}
	attendance, err := s.checkin(ctx, activity, userID, models.MethodQRScan, now)
	if err != nil {
		return nil, err
	}
	return attendance, nil
}

// ValidateQR checks a payload without recording attendance. It is the dry-run
// the scanner app calls before showing the confirm screen, so it also requires
// the activity to be ongoing.
func (s *CheckinService) ValidateQR(ctx context.Context, payloadText string) (*models.Activity, error) {
	payload, err := qr.Validate(payloadText, s.clk.Now())
	if err != nil {
		return nil, err
	}
	activity, err := s.loadActivity(ctx, payload.ActivityID)
	if err != nil {
		return nil, err
	}
	if activity.Status != models.ActivityOngoing {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "activity is not ongoing")
	}
	return activity, nil
}

// CheckinManual records attendance on behalf of a student. Only the
// activity's creator or an admin may do this, and the target account must
// not be locked.
func (s *CheckinService) CheckinManual(ctx context.Context, activityID, targetUserID int64, actor *models.User) (*models.Attendance, error) {
	activity, err := s.loadActivity(ctx, activityID)
	if err != nil {
		s.observe(models.MethodManual, "rejected")
		return nil, err
	}
	if !activity.OwnedOrAdmin(actor) {
		s.observe(models.MethodManual, "forbidden")
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the creator or an admin may check in participants")
	}

	target, err := s.users.GetByID(ctx, targetUserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.observe(models.MethodManual, "rejected")
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if !target.Active() {
		s.observe(models.MethodManual, "rejected")
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "user account is locked")
	}

	return s.checkin(ctx, activity, targetUserID, models.MethodManual, s.clk.Now())
}

func (s *CheckinService) loadActivity(ctx context.Context, id int64) (*models.Activity, error) {
	activity, err := s.activities.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "activity not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity")
	}
	return activity, nil
}

// checkin runs the shared validation pipeline and inserts the single
// attendance row. It is single-pass: the first failing check is returned and
// nothing is written.
func (s *CheckinService) checkin(ctx context.Context, activity *models.Activity, userID int64, method models.CheckinMethod, now time.Time) (*models.Attendance, error) {
	registration, err := s.registrations.Find(ctx, activity.ID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.observe(method, "not_registered")
			return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "not registered for this activity")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}
	if registration.Status == models.RegistrationCancelled {
		s.observe(method, "registration_cancelled")
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "registration has been cancelled")
	}

	if activity.Status != models.ActivityOngoing {
		s.observe(method, "not_ongoing")
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "activity is not ongoing")
	}
	if now.Before(activity.StartTime) || now.After(activity.EndTime) {
		s.observe(method, "outside_window")
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "outside the activity time window")
	}

	if existing, err := s.attendances.Find(ctx, activity.ID, userID); err == nil {
		s.observe(method, "duplicate")
		return nil, appErrors.WithDetails(appErrors.ErrConflict, "already checked in", existing)
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check for existing attendance")
	}

	attendance, err := s.attendances.Insert(ctx, &models.Attendance{
		ActivityID:  activity.ID,
		UserID:      userID,
		CheckinTime: now,
		Method:      method,
	})
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateCheckin) {
			s.observe(method, "duplicate")
			return nil, appErrors.Clone(appErrors.ErrConflict, "already checked in")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}

	s.observe(method, "checked_in")
	s.logger.Sugar().Infow("attendance recorded",
		"activity_id", activity.ID, "user_id", userID, "method", method, "checkin_time", now.UTC())
	return attendance, nil
}
