package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campushub/activity-attendance-api/internal/models"
	"github.com/campushub/activity-attendance-api/pkg/clock"
	appErrors "github.com/campushub/activity-attendance-api/pkg/errors"
	"github.com/campushub/activity-attendance-api/pkg/qr"
)

type fakeActivityStore struct {
	activities map[int64]*models.Activity
}

func (f *fakeActivityStore) GetByID(ctx context.Context, id int64) (*models.Activity, error) {
	if a, ok := f.activities[id]; ok {
		copy := *a
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

type fakeRegistrationStore struct {
	rows map[string]*models.Registration
}

func pairKey(activityID, userID int64) string {
	return fmt.Sprintf("%d:%d", activityID, userID)
}

func (f *fakeRegistrationStore) Find(ctx context.Context, activityID, userID int64) (*models.Registration, error) {
	if r, ok := f.rows[pairKey(activityID, userID)]; ok {
		copy := *r
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

type fakeAttendanceStore struct {
	rows   map[string]*models.Attendance
	nextID int64
}

func (f *fakeAttendanceStore) Find(ctx context.Context, activityID, userID int64) (*models.Attendance, error) {
	if a, ok := f.rows[pairKey(activityID, userID)]; ok {
		copy := *a
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAttendanceStore) Insert(ctx context.Context, attendance *models.Attendance) (*models.Attendance, error) {
	if f.rows == nil {
		f.rows = make(map[string]*models.Attendance)
	}
	f.nextID++
	stored := *attendance
	stored.ID = f.nextID
	f.rows[pairKey(attendance.ActivityID, attendance.UserID)] = &stored
	return &stored, nil
}

type fakeUserStore struct {
	users map[int64]*models.User
}

func (f *fakeUserStore) GetByID(ctx context.Context, id int64) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		copy := *u
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

type checkinFixture struct {
	service     *CheckinService
	activities  *fakeActivityStore
	regs        *fakeRegistrationStore
	attendances *fakeAttendanceStore
	users       *fakeUserStore
	clk         *clock.Manual
	activity    *models.Activity
}

func newCheckinFixture(t *testing.T) *checkinFixture {
	t.Helper()
	start := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)
	activity := &models.Activity{
		ID:        3,
		Name:      "Robotics Workshop",
		StartTime: start,
		EndTime:   start.Add(2 * time.Hour),
		Status:    models.ActivityOngoing,
		CreatedBy: 100,
	}
	f := &checkinFixture{
		activities: &fakeActivityStore{activities: map[int64]*models.Activity{3: activity}},
		regs: &fakeRegistrationStore{rows: map[string]*models.Registration{
			pairKey(3, 8): {ID: 41, ActivityID: 3, UserID: 8, Status: models.RegistrationActive},
		}},
		attendances: &fakeAttendanceStore{},
		users: &fakeUserStore{users: map[int64]*models.User{
			8:   {ID: 8, Username: "liming", FullName: "Li Ming", Role: models.RoleStudent, Status: models.UserActive},
			100: {ID: 100, Username: "organizer", Role: models.RoleManager, Status: models.UserActive},
		}},
		clk:      clock.NewManual(start.Add(30 * time.Minute)),
		activity: activity,
	}
	f.service = NewCheckinService(f.activities, f.regs, f.attendances, f.users, f.clk, zap.NewNop(), nil)
	return f
}

func (f *checkinFixture) payload(t *testing.T) string {
	t.Helper()
	text, err := qr.EncodeString(f.activity.ID, f.activity.Name, f.activity.StartTime, f.activity.EndTime, f.clk.Now())
	require.NoError(t, err)
	return text
}

func assertErrorCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, code, appErrors.FromError(err).Code)
}

func TestCheckinViaQRSuccess(t *testing.T) {
	f := newCheckinFixture(t)

	attendance, err := f.service.CheckinViaQR(context.Background(), f.payload(t), 8)
	require.NoError(t, err)
	assert.Equal(t, models.MethodQRScan, attendance.Method)
	assert.Equal(t, int64(3), attendance.ActivityID)
	assert.Equal(t, int64(8), attendance.UserID)
	assert.Equal(t, f.clk.Now(), attendance.CheckinTime)
}

func TestCheckinViaQRMalformedPayload(t *testing.T) {
	f := newCheckinFixture(t)

	_, err := f.service.CheckinViaQR(context.Background(), "garbage", 8)
	assertErrorCode(t, err, appErrors.ErrValidation.Code)
}

func TestCheckinViaQRExpiredPayload(t *testing.T) {
	f := newCheckinFixture(t)
	payload := f.payload(t)
	f.clk.Set(f.activity.EndTime.Add(time.Minute))

	_, err := f.service.CheckinViaQR(context.Background(), payload, 8)
	assertErrorCode(t, err, appErrors.ErrValidation.Code)
	assert.Contains(t, appErrors.FromError(err).Message, "expired")
}

func TestCheckinViaQRTamperedPayload(t *testing.T) {
	f := newCheckinFixture(t)

	_, err := f.service.CheckinViaQR(context.Background(),
		`{"type":"attendance","activityId":3,"activityName":"Robotics Workshop","startTime":"2026-03-10T14:00:00.000Z","endTime":"2026-03-10T16:00:00.000Z","timestamp":"2026-03-10T14:30:00.000Z","hash":"deadbeef"}`, 8)
	assertErrorCode(t, err, appErrors.ErrValidation.Code)
	assert.Contains(t, appErrors.FromError(err).Message, "hash mismatch")
}

func TestCheckinViaQRNotRegistered(t *testing.T) {
	f := newCheckinFixture(t)

	_, err := f.service.CheckinViaQR(context.Background(), f.payload(t), 9)
	assertErrorCode(t, err, appErrors.ErrPreconditionFailed.Code)
	assert.Contains(t, appErrors.FromError(err).Message, "not registered")
}

func TestCheckinViaQRCancelledRegistration(t *testing.T) {
	f := newCheckinFixture(t)
	f.regs.rows[pairKey(3, 8)].Status = models.RegistrationCancelled

	_, err := f.service.CheckinViaQR(context.Background(), f.payload(t), 8)
	assertErrorCode(t, err, appErrors.ErrPreconditionFailed.Code)
	assert.Contains(t, appErrors.FromError(err).Message, "cancelled")
}

func TestCheckinViaQRActivityNotOngoing(t *testing.T) {
	f := newCheckinFixture(t)
	f.activity.Status = models.ActivityUpcoming

	_, err := f.service.CheckinViaQR(context.Background(), f.payload(t), 8)
	assertErrorCode(t, err, appErrors.ErrPreconditionFailed.Code)
	assert.Contains(t, appErrors.FromError(err).Message, "not ongoing")
}

func TestCheckinViaQROutsideWindow(t *testing.T) {
	f := newCheckinFixture(t)
	// Status still Ongoing but the clock sits before the window; the window
	// check is independent of the persisted status.
	f.clk.Set(f.activity.StartTime.Add(-time.Minute))

	_, err := f.service.CheckinViaQR(context.Background(), f.payload(t), 8)
	assertErrorCode(t, err, appErrors.ErrPreconditionFailed.Code)
	assert.Contains(t, appErrors.FromError(err).Message, "window")
}

func TestCheckinViaQRDuplicate(t *testing.T) {
	f := newCheckinFixture(t)

	first, err := f.service.CheckinViaQR(context.Background(), f.payload(t), 8)
	require.NoError(t, err)

	_, err = f.service.CheckinViaQR(context.Background(), f.payload(t), 8)
	assertErrorCode(t, err, appErrors.ErrConflict.Code)

	// The conflict carries the pre-existing record so the client can show
	// when the user already checked in.
	details, ok := appErrors.FromError(err).Details.(*models.Attendance)
	require.True(t, ok)
	assert.Equal(t, first.ID, details.ID)

	// The second attempt must not write another row.
	assert.Len(t, f.attendances.rows, 1)
}

func TestCheckinViaQRUnknownActivity(t *testing.T) {
	f := newCheckinFixture(t)
	text, err := qr.EncodeString(99, "Ghost", f.activity.StartTime, f.activity.EndTime, f.clk.Now())
	require.NoError(t, err)

	_, err = f.service.CheckinViaQR(context.Background(), text, 8)
	assertErrorCode(t, err, appErrors.ErrNotFound.Code)
}

func TestCheckinManualSuccess(t *testing.T) {
	f := newCheckinFixture(t)
	actor := &models.User{ID: 100, Role: models.RoleManager}

	attendance, err := f.service.CheckinManual(context.Background(), 3, 8, actor)
	require.NoError(t, err)
	assert.Equal(t, models.MethodManual, attendance.Method)
}

func TestCheckinManualAdminOverride(t *testing.T) {
	f := newCheckinFixture(t)
	actor := &models.User{ID: 999, Role: models.RoleAdmin}

	_, err := f.service.CheckinManual(context.Background(), 3, 8, actor)
	require.NoError(t, err)
}

func TestCheckinManualForbidden(t *testing.T) {
	f := newCheckinFixture(t)
	actor := &models.User{ID: 555, Role: models.RoleManager}

	_, err := f.service.CheckinManual(context.Background(), 3, 8, actor)
	assertErrorCode(t, err, appErrors.ErrForbidden.Code)
}

func TestCheckinManualLockedUser(t *testing.T) {
	f := newCheckinFixture(t)
	f.users.users[8].Status = models.UserLocked
	actor := &models.User{ID: 100, Role: models.RoleManager}

	_, err := f.service.CheckinManual(context.Background(), 3, 8, actor)
	assertErrorCode(t, err, appErrors.ErrPreconditionFailed.Code)
	assert.Contains(t, appErrors.FromError(err).Message, "locked")
}

func TestCheckinManualUnknownUser(t *testing.T) {
	f := newCheckinFixture(t)
	actor := &models.User{ID: 100, Role: models.RoleManager}

	_, err := f.service.CheckinManual(context.Background(), 3, 777, actor)
	assertErrorCode(t, err, appErrors.ErrNotFound.Code)
}

func TestCheckinManualUnknownActivity(t *testing.T) {
	f := newCheckinFixture(t)
	actor := &models.User{ID: 100, Role: models.RoleAdmin}

	_, err := f.service.CheckinManual(context.Background(), 42, 8, actor)
	assertErrorCode(t, err, appErrors.ErrNotFound.Code)
}
