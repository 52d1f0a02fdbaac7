package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/campushub/activity-attendance-api/internal/middleware"
	"github.com/campushub/activity-attendance-api/internal/models"
	"github.com/campushub/activity-attendance-api/internal/repository"
	"github.com/campushub/activity-attendance-api/internal/service"
	"github.com/campushub/activity-attendance-api/pkg/clock"
	"github.com/campushub/activity-attendance-api/pkg/response"
)

type registrationLedgerMock struct {
	registration *models.Registration
	registerErr  error
}

func (m *registrationLedgerMock) Register(ctx context.Context, activityID, userID int64, capacity *int) (*models.Registration, error) {
	if m.registerErr != nil {
		return nil, m.registerErr
	}
	return m.registration, nil
}

func (m *registrationLedgerMock) Find(ctx context.Context, activityID, userID int64) (*models.Registration, error) {
	if m.registration == nil {
		return nil, sql.ErrNoRows
	}
	return m.registration, nil
}

func (m *registrationLedgerMock) UpdateStatus(ctx context.Context, id int64, status models.RegistrationStatus) (*models.Registration, error) {
	updated := *m.registration
	updated.Status = status
	return &updated, nil
}

func (m *registrationLedgerMock) List(ctx context.Context, filter models.RegistrationFilter) ([]models.RegistrationRecord, int, error) {
	return nil, 0, nil
}

func (m *registrationLedgerMock) Counts(ctx context.Context, activityID int64) (int, int, error) {
	return 0, 0, nil
}

type activityGetterMock struct {
	activity *models.Activity
}

func (m *activityGetterMock) GetByID(ctx context.Context, id int64) (*models.Activity, error) {
	return m.activity, nil
}

func newHandlerContext(method, path string) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req := httptest.NewRequest(method, path, nil)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func newRegistrationHandlerFixture(t *testing.T) (*RegistrationHandler, *registrationLedgerMock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	start := time.Now().Add(48 * time.Hour)
	ledger := &registrationLedgerMock{
		registration: &models.Registration{ID: 1, ActivityID: 3, UserID: 8, Status: models.RegistrationActive},
	}
	activities := &activityGetterMock{activity: &models.Activity{
		ID:        3,
		Name:      "Robotics Workshop",
		StartTime: start,
		EndTime:   start.Add(2 * time.Hour),
		Status:    models.ActivityUpcoming,
		CreatedBy: 100,
	}}
	svc := service.NewRegistrationService(ledger, activities, clock.System(), nil, nil)
	return NewRegistrationHandler(svc), ledger
}

func TestRegistrationHandlerRegister(t *testing.T) {
	h, _ := newRegistrationHandlerFixture(t)

	c, w := newHandlerContext(http.MethodPost, "/activities/3/register")
	c.Params = gin.Params{{Key: "id", Value: "3"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: 8, Username: "liming", Role: models.RoleStudent})

	h.Register(c)
	require.Equal(t, http.StatusCreated, w.Code)

	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Nil(t, envelope.Error)
}

func TestRegistrationHandlerRegisterConflict(t *testing.T) {
	h, ledger := newRegistrationHandlerFixture(t)
	ledger.registerErr = repository.ErrAlreadyRegistered

	c, w := newHandlerContext(http.MethodPost, "/activities/3/register")
	c.Params = gin.Params{{Key: "id", Value: "3"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: 8, Role: models.RoleStudent})

	h.Register(c)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestRegistrationHandlerRegisterBadID(t *testing.T) {
	h, _ := newRegistrationHandlerFixture(t)

	c, w := newHandlerContext(http.MethodPost, "/activities/abc/register")
	c.Params = gin.Params{{Key: "id", Value: "abc"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: 8, Role: models.RoleStudent})

	h.Register(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRegistrationHandlerRegisterUnauthenticated(t *testing.T) {
	h, _ := newRegistrationHandlerFixture(t)

	c, w := newHandlerContext(http.MethodPost, "/activities/3/register")
	c.Params = gin.Params{{Key: "id", Value: "3"}}

	h.Register(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegistrationHandlerCancel(t *testing.T) {
	h, _ := newRegistrationHandlerFixture(t)

	c, w := newHandlerContext(http.MethodDelete, "/activities/3/register")
	c.Params = gin.Params{{Key: "id", Value: "3"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: 8, Role: models.RoleStudent})

	h.Cancel(c)
	require.Equal(t, http.StatusOK, w.Code)

	var envelope struct {
		Data models.Registration `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	require.Equal(t, models.RegistrationCancelled, envelope.Data.Status)
}
