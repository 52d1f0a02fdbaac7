package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campushub/activity-attendance-api/internal/models"
	"github.com/campushub/activity-attendance-api/pkg/clock"
	appErrors "github.com/campushub/activity-attendance-api/pkg/errors"
	"github.com/campushub/activity-attendance-api/pkg/qr"
)

type activityRepository interface {
	Create(ctx context.Context, activity *models.Activity) (*models.Activity, error)
	GetByID(ctx context.Context, id int64) (*models.Activity, error)
	List(ctx context.Context, filter models.ActivityFilter) ([]models.Activity, int, error)
	Update(ctx context.Context, activity *models.Activity) (*models.Activity, error)
	UpdateStatus(ctx context.Context, id int64, status models.ActivityStatus) error
	SaveQRPayload(ctx context.Context, id int64, payload string) error
	HasRegistrations(ctx context.Context, id int64) (bool, error)
	Delete(ctx context.Context, id int64) error
}

// ActivityService handles activity CRUD, manual status changes, and QR
// issuance.
type ActivityService struct {
	repo      activityRepository
	validator *validator.Validate
	logger    *zap.Logger
	clk       clock.Clock
	imageSize int
}

// NewActivityService constructs the service.
func NewActivityService(repo activityRepository, validate *validator.Validate, logger *zap.Logger, clk clock.Clock, imageSize int) *ActivityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if clk == nil {
		clk = clock.System()
	}
	return &ActivityService{repo: repo, validator: validate, logger: logger, clk: clk, imageSize: imageSize}
}

// Create validates and stores a new activity in the Upcoming state.
func (s *ActivityService) Create(ctx context.Context, req models.CreateActivityRequest, actor *models.User) (*models.Activity, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid activity payload")
	}
	if err := validateWindow(req.StartTime, req.EndTime, req.RegistrationDeadline); err != nil {
		return nil, err
	}

	activity := &models.Activity{
		Name:                 req.Name,
		Description:          req.Description,
		Location:             req.Location,
		StartTime:            req.StartTime.UTC(),
		EndTime:              req.EndTime.UTC(),
		MaxParticipants:      req.MaxParticipants,
		RegistrationDeadline: req.RegistrationDeadline,
		Status:               models.ActivityUpcoming,
		CreatedBy:            actor.ID,
	}
	stored, err := s.repo.Create(ctx, activity)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create activity")
	}
	s.logger.Sugar().Infow("activity created", "activity_id", stored.ID, "created_by", actor.ID)
	return stored, nil
}

// Get fetches a single activity.
func (s *ActivityService) Get(ctx context.Context, id int64) (*models.Activity, error) {
	activity, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "activity not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load activity")
	}
	return activity, nil
}

// List returns activities matching the filter.
func (s *ActivityService) List(ctx context.Context, filter models.ActivityFilter) ([]models.Activity, *models.Pagination, error) {
	activities, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list activities")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 20
	}
	return activities, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Update applies metadata changes. Only the creator or an admin may update,
// and a changed time window invalidates the stored QR payload.
func (s *ActivityService) Update(ctx context.Context, id int64, req models.UpdateActivityRequest, actor *models.User) (*models.Activity, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid activity payload")
	}
	activity, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !activity.OwnedOrAdmin(actor) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the creator or an admin may update this activity")
	}
	if activity.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "activity is completed or cancelled")
	}

	windowChanged := false
	if req.Name != nil {
		activity.Name = *req.Name
	}
	if req.Description != nil {
		activity.Description = req.Description
	}
	if req.Location != nil {
		activity.Location = *req.Location
	}
	if req.StartTime != nil {
		activity.StartTime = req.StartTime.UTC()
		windowChanged = true
	}
	if req.EndTime != nil {
		activity.EndTime = req.EndTime.UTC()
		windowChanged = true
	}
	if req.MaxParticipants != nil {
		activity.MaxParticipants = req.MaxParticipants
	}
	if req.RegistrationDeadline != nil {
		activity.RegistrationDeadline = req.RegistrationDeadline
	}
	if err := validateWindow(activity.StartTime, activity.EndTime, activity.RegistrationDeadline); err != nil {
		return nil, err
	}

	stored, err := s.repo.Update(ctx, activity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "activity not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update activity")
	}

	// The integrity hash covers the time window, so a previously issued
	// payload no longer verifies and must be re-issued.
	if windowChanged && activity.QRPayload != nil {
		if err := s.repo.SaveQRPayload(ctx, stored.ID, ""); err != nil {
			s.logger.Warn("failed to clear stale qr payload", zap.Int64("activity_id", stored.ID), zap.Error(err))
		} else {
			stored.QRPayload = nil
		}
	}
	return stored, nil
}

// ChangeStatus applies a manual lifecycle override. Transitions are forward
// only; Cancelled is reachable from any non-terminal state.
func (s *ActivityService) ChangeStatus(ctx context.Context, id int64, requested int, actor *models.User) (*models.Activity, error) {
	status := models.ActivityStatus(requested)
	if !status.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "status must be one of 1 (upcoming), 2 (ongoing), 3 (completed), 4 (cancelled)")
	}

	activity, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !activity.OwnedOrAdmin(actor) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the creator or an admin may change the status")
	}

	if status == activity.Status {
		return activity, nil
	}
	if activity.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "activity is already "+activity.Status.String())
	}
	if status != models.ActivityCancelled && status < activity.Status {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "cannot move activity back to "+status.String())
	}

	if err := s.repo.UpdateStatus(ctx, id, status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "activity not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to change activity status")
	}
	s.logger.Sugar().Infow("activity status changed",
		"activity_id", id, "from", activity.Status.String(), "to", status.String(), "actor", actor.ID)
	activity.Status = status
	return activity, nil
}

// QRCode issues (or re-issues) the attendance QR for an activity. The encoded
// payload is persisted so the last-issued text can be audited.
func (s *ActivityService) QRCode(ctx context.Context, id int64, actor *models.User) (*models.QRCodeResponse, error) {
	activity, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !activity.OwnedOrAdmin(actor) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the creator or an admin may issue the QR code")
	}
	if activity.Status == models.ActivityCancelled {
		return nil, appErrors.Clone(appErrors.ErrPreconditionFailed, "activity is cancelled")
	}

	issuedAt := s.clk.Now()
	payload, err := qr.EncodeString(activity.ID, activity.Name, activity.StartTime, activity.EndTime, issuedAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode qr payload")
	}
	if err := s.repo.SaveQRPayload(ctx, activity.ID, payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store qr payload")
	}
	image, err := qr.RenderPNG(payload, s.imageSize)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render qr image")
	}
	return &models.QRCodeResponse{
		ActivityID: activity.ID,
		Payload:    payload,
		Image:      image,
		IssuedAt:   issuedAt.UTC().Format(time.RFC3339),
	}, nil
}

// CurrentQR returns the stored QR payload re-rendered as a PNG. It fails with
// NotFound until a code has been issued.
func (s *ActivityService) CurrentQR(ctx context.Context, id int64, actor *models.User) (*models.QRCodeResponse, error) {
	activity, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !activity.OwnedOrAdmin(actor) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the creator or an admin may view the QR code")
	}
	if activity.QRPayload == nil || *activity.QRPayload == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no QR code has been issued for this activity")
	}

	payload, err := qr.Decode(*activity.QRPayload)
	if err != nil {
		return nil, err
	}
	image, err := qr.RenderPNG(*activity.QRPayload, s.imageSize)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render qr image")
	}
	return &models.QRCodeResponse{
		ActivityID: activity.ID,
		Payload:    *activity.QRPayload,
		Image:      image,
		IssuedAt:   payload.Timestamp,
	}, nil
}

// Delete removes an activity that never accumulated registrations. Anything
// with registration history must be cancelled instead.
func (s *ActivityService) Delete(ctx context.Context, id int64, actor *models.User) error {
	activity, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !activity.OwnedOrAdmin(actor) {
		return appErrors.Clone(appErrors.ErrForbidden, "only the creator or an admin may delete this activity")
	}
	has, err := s.repo.HasRegistrations(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check registrations")
	}
	if has {
		return appErrors.Clone(appErrors.ErrConflict, "activity has registrations; cancel it instead")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "activity not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete activity")
	}
	return nil
}

func validateWindow(start, end time.Time, deadline *time.Time) error {
	if !start.Before(end) {
		return appErrors.Clone(appErrors.ErrValidation, "start time must be before end time")
	}
	if deadline != nil && !deadline.Before(start) {
		return appErrors.Clone(appErrors.ErrValidation, "registration deadline must precede start time")
	}
	return nil
}
