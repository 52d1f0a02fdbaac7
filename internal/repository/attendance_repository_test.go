package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/campushub/activity-attendance-api/internal/models"
)

func newAttendanceRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestAttendanceRepositoryInsert(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)
	checkin := time.Date(2026, 3, 10, 14, 5, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "activity_id", "user_id", "checkin_time", "method", "created_at"}).
		AddRow(int64(77), int64(3), int64(8), checkin, models.MethodQRScan, checkin)
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO attendances")).
		WithArgs(int64(3), int64(8), checkin, models.MethodQRScan, sqlmock.AnyArg()).
		WillReturnRows(rows)

	attendance, err := repo.Insert(context.Background(), &models.Attendance{
		ActivityID:  3,
		UserID:      8,
		CheckinTime: checkin,
		Method:      models.MethodQRScan,
	})
	require.NoError(t, err)
	require.Equal(t, int64(77), attendance.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryInsertDuplicate(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO attendances")).
		WillReturnError(&pq.Error{Code: "23505"})

	_, err := repo.Insert(context.Background(), &models.Attendance{
		ActivityID:  3,
		UserID:      8,
		CheckinTime: time.Now().UTC(),
		Method:      models.MethodManual,
	})
	require.ErrorIs(t, err, ErrDuplicateCheckin)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryMethodCounts(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM attendances WHERE activity_id = $1")).
		WithArgs(int64(3), models.MethodQRScan, models.MethodManual).
		WillReturnRows(sqlmock.NewRows([]string{"qr_scan", "manual"}).AddRow(14, 3))

	breakdown, err := repo.MethodCounts(context.Background(), 3)
	require.NoError(t, err)
	require.Equal(t, 14, breakdown.QRScan)
	require.Equal(t, 3, breakdown.Manual)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryListFiltersBySearch(t *testing.T) {
	db, mock, cleanup := newAttendanceRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)
	now := time.Now()

	rows := sqlmock.NewRows([]string{
		"id", "activity_id", "user_id", "checkin_time", "method", "created_at",
		"username", "full_name", "email", "activity_name",
	}).AddRow(int64(77), int64(3), int64(8), now, models.MethodQRScan, now,
		"liming", "Li Ming", "liming@campus.edu", "Robotics Workshop")
	mock.ExpectQuery("SELECT .* FROM attendances t").
		WithArgs(int64(3), "%li%").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*)")).
		WithArgs(int64(3), "%li%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	records, total, err := repo.List(context.Background(), models.AttendanceFilter{ActivityID: 3, Search: "li"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, 1, total)
	require.Equal(t, "Li Ming", records[0].FullName)
	require.NoError(t, mock.ExpectationsWereMet())
}
