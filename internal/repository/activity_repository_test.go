package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/campushub/activity-attendance-api/internal/models"
)

func newActivityRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func activityRows(id int64, status models.ActivityStatus) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "name", "description", "location", "start_time", "end_time",
		"max_participants", "registration_deadline", "status", "qr_payload",
		"created_by", "created_at", "updated_at",
	}).AddRow(id, "Robotics Workshop", nil, "Hall B", now, now.Add(2*time.Hour), nil, nil, status, nil, int64(7), now, now)
}

func TestActivityRepositoryGetByID(t *testing.T) {
	db, mock, cleanup := newActivityRepoMock(t)
	defer cleanup()
	repo := NewActivityRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM activities WHERE id = $1")).
		WithArgs(int64(12)).
		WillReturnRows(activityRows(12, models.ActivityUpcoming))

	activity, err := repo.GetByID(context.Background(), 12)
	require.NoError(t, err)
	require.Equal(t, int64(12), activity.ID)
	require.Equal(t, models.ActivityUpcoming, activity.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActivityRepositorySweep(t *testing.T) {
	db, mock, cleanup := newActivityRepoMock(t)
	defer cleanup()
	repo := NewActivityRepository(db)
	now := time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("WHERE status = $3 AND start_time <= $2 AND end_time > $2")).
		WithArgs(models.ActivityOngoing, now, models.ActivityUpcoming).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("WHERE status = $3 AND end_time <= $2")).
		WithArgs(models.ActivityCompleted, now, models.ActivityOngoing).
		WillReturnResult(sqlmock.NewResult(0, 1))

	result, err := repo.Sweep(context.Background(), now)
	require.NoError(t, err)
	require.Equal(t, int64(2), result.Started)
	require.Equal(t, int64(1), result.Completed)
	require.True(t, result.Changed())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActivityRepositorySweepNoChanges(t *testing.T) {
	db, mock, cleanup := newActivityRepoMock(t)
	defer cleanup()
	repo := NewActivityRepository(db)
	now := time.Now().UTC()

	mock.ExpectExec(regexp.QuoteMeta("start_time <= $2")).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("end_time <= $2")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	result, err := repo.Sweep(context.Background(), now)
	require.NoError(t, err)
	require.False(t, result.Changed())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActivityRepositoryUpdateStatusMissing(t *testing.T) {
	db, mock, cleanup := newActivityRepoMock(t)
	defer cleanup()
	repo := NewActivityRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE activities SET status = $2")).
		WithArgs(int64(99), models.ActivityCancelled, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateStatus(context.Background(), 99, models.ActivityCancelled)
	require.Error(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActivityRepositoryList(t *testing.T) {
	db, mock, cleanup := newActivityRepoMock(t)
	defer cleanup()
	repo := NewActivityRepository(db)

	status := models.ActivityOngoing
	mock.ExpectQuery("SELECT .* FROM activities WHERE 1=1 AND status = \\$1 ORDER BY start_time DESC").
		WithArgs(status).
		WillReturnRows(activityRows(3, status))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM activities WHERE")).
		WithArgs(status).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	activities, total, err := repo.List(context.Background(), models.ActivityFilter{Status: &status})
	require.NoError(t, err)
	require.Len(t, activities, 1)
	require.Equal(t, 1, total)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestActivityRepositoryHasRegistrations(t *testing.T) {
	db, mock, cleanup := newActivityRepoMock(t)
	defer cleanup()
	repo := NewActivityRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM registrations WHERE activity_id = $1)")).
		WithArgs(int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))

	has, err := repo.HasRegistrations(context.Background(), 3)
	require.NoError(t, err)
	require.True(t, has)
	require.NoError(t, mock.ExpectationsWereMet())
}
