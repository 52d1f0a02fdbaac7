package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/campushub/activity-attendance-api/internal/models"
)

func newRegistrationRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func registrationRow(id int64, status models.RegistrationStatus) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{"id", "activity_id", "user_id", "status", "created_at", "updated_at"}).
		AddRow(id, int64(3), int64(8), status, now, now)
}

func expectActivityLock(mock sqlmock.Sqlmock, activityID int64) {
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM activities WHERE id = $1 FOR UPDATE")).
		WithArgs(activityID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(activityID))
}

func TestRegistrationRepositoryRegisterInsertsNewRow(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)
	capacity := 30

	mock.ExpectBegin()
	expectActivityLock(mock, 3)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM registrations WHERE activity_id = $1 AND status = $2")).
		WithArgs(int64(3), models.RegistrationActive).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(5))
	mock.ExpectQuery(regexp.QuoteMeta("FROM registrations WHERE activity_id = $1 AND user_id = $2")).
		WithArgs(int64(3), int64(8)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO registrations")).
		WithArgs(int64(3), int64(8), models.RegistrationActive, sqlmock.AnyArg()).
		WillReturnRows(registrationRow(41, models.RegistrationActive))
	mock.ExpectCommit()

	registration, err := repo.Register(context.Background(), 3, 8, &capacity)
	require.NoError(t, err)
	require.Equal(t, models.RegistrationActive, registration.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryRegisterReusesCancelledRow(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectBegin()
	expectActivityLock(mock, 3)
	mock.ExpectQuery(regexp.QuoteMeta("FROM registrations WHERE activity_id = $1 AND user_id = $2")).
		WithArgs(int64(3), int64(8)).
		WillReturnRows(registrationRow(41, models.RegistrationCancelled))
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE registrations SET status = $2")).
		WithArgs(int64(41), models.RegistrationActive, sqlmock.AnyArg()).
		WillReturnRows(registrationRow(41, models.RegistrationActive))
	mock.ExpectCommit()

	registration, err := repo.Register(context.Background(), 3, 8, nil)
	require.NoError(t, err)
	require.Equal(t, int64(41), registration.ID)
	require.Equal(t, models.RegistrationActive, registration.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryRegisterFull(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)
	capacity := 30

	mock.ExpectBegin()
	expectActivityLock(mock, 3)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs(int64(3), models.RegistrationActive).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(30))
	mock.ExpectRollback()

	_, err := repo.Register(context.Background(), 3, 8, &capacity)
	require.ErrorIs(t, err, ErrActivityFull)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryRegisterAlreadyActive(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectBegin()
	expectActivityLock(mock, 3)
	mock.ExpectQuery(regexp.QuoteMeta("FROM registrations WHERE activity_id = $1 AND user_id = $2")).
		WithArgs(int64(3), int64(8)).
		WillReturnRows(registrationRow(41, models.RegistrationActive))
	mock.ExpectRollback()

	_, err := repo.Register(context.Background(), 3, 8, nil)
	require.ErrorIs(t, err, ErrAlreadyRegistered)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryRegisterUnknownActivity(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("FOR UPDATE")).
		WithArgs(int64(99)).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.Register(context.Background(), 99, 8, nil)
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryUpdateStatus(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("UPDATE registrations SET status = $2")).
		WithArgs(int64(41), models.RegistrationCancelled, sqlmock.AnyArg()).
		WillReturnRows(registrationRow(41, models.RegistrationCancelled))

	registration, err := repo.UpdateStatus(context.Background(), 41, models.RegistrationCancelled)
	require.NoError(t, err)
	require.Equal(t, models.RegistrationCancelled, registration.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryCountActive(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()
	repo := NewRegistrationRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM registrations WHERE activity_id = $1 AND status = $2")).
		WithArgs(int64(3), models.RegistrationActive).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(12))

	count, err := repo.CountActive(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, 12, count)
	require.NoError(t, mock.ExpectationsWereMet())
}
