package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campushub/activity-attendance-api/internal/models"
)

type fakeAttendanceReader struct {
	records   []models.AttendanceRecord
	breakdown models.MethodBreakdown
	lastFiler models.AttendanceFilter
}

func (f *fakeAttendanceReader) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	f.lastFiler = filter
	return f.records, len(f.records), nil
}

func (f *fakeAttendanceReader) MethodCounts(ctx context.Context, activityID int64) (models.MethodBreakdown, error) {
	return f.breakdown, nil
}

type fakeActiveCounter struct {
	count int
}

func (f *fakeActiveCounter) CountActive(ctx context.Context, activityID int64) (int, error) {
	return f.count, nil
}

func TestAttendanceStats(t *testing.T) {
	svc := NewAttendanceService(
		&fakeAttendanceReader{breakdown: models.MethodBreakdown{QRScan: 14, Manual: 3}},
		&fakeActiveCounter{count: 20},
		zap.NewNop(),
	)

	stats, err := svc.Stats(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 20, stats.TotalActiveRegistrations)
	assert.Equal(t, 17, stats.TotalAttendances)
	// round(100 * 17 / 20)
	assert.Equal(t, 85, stats.AttendanceRate)
	assert.Equal(t, 14, stats.Methods.QRScan)
	assert.Equal(t, 3, stats.Methods.Manual)
}

func TestAttendanceStatsNoRegistrations(t *testing.T) {
	svc := NewAttendanceService(
		&fakeAttendanceReader{breakdown: models.MethodBreakdown{Manual: 2}},
		&fakeActiveCounter{count: 0},
		zap.NewNop(),
	)

	stats, err := svc.Stats(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.AttendanceRate)
	assert.Equal(t, 2, stats.TotalAttendances)
}

func TestAttendanceRateRounding(t *testing.T) {
	cases := []struct {
		attendances int
		active      int
		want        int
	}{
		{0, 0, 0},
		{1, 3, 33},
		{2, 3, 67},
		{1, 2, 50},
		{5, 5, 100},
		{1, 8, 13},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, attendanceRate(tc.attendances, tc.active))
	}
}

func TestAttendanceListScoping(t *testing.T) {
	reader := &fakeAttendanceReader{}
	svc := NewAttendanceService(reader, &fakeActiveCounter{}, zap.NewNop())

	_, _, err := svc.ListByUser(context.Background(), 8, models.AttendanceFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(8), reader.lastFiler.UserID)

	_, _, err = svc.ListByActivity(context.Background(), 3, models.AttendanceFilter{Search: "li"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), reader.lastFiler.ActivityID)
	assert.Equal(t, "li", reader.lastFiler.Search)
}

func TestAttendanceExportCSV(t *testing.T) {
	checkin := time.Date(2026, 3, 10, 14, 5, 0, 0, time.UTC)
	reader := &fakeAttendanceReader{records: []models.AttendanceRecord{
		{
			Attendance:   models.Attendance{ActivityID: 3, UserID: 8, CheckinTime: checkin, Method: models.MethodQRScan},
			Username:     "liming",
			FullName:     "Li Ming",
			Email:        "liming@campus.edu",
			ActivityName: "Robotics Workshop",
		},
	}}
	svc := NewAttendanceService(reader, &fakeActiveCounter{count: 1}, zap.NewNop())

	out, err := svc.ExportCSV(context.Background(), 3)
	require.NoError(t, err)
	text := string(out)
	assert.True(t, strings.Contains(text, "Li Ming"))
	assert.True(t, strings.Contains(text, "qr_scan"))
	assert.True(t, strings.Contains(text, "2026-03-10 14:05:00"))
}

func TestAttendanceExportPDF(t *testing.T) {
	reader := &fakeAttendanceReader{
		records: []models.AttendanceRecord{
			{
				Attendance: models.Attendance{CheckinTime: time.Now(), Method: models.MethodManual},
				FullName:   "Li Ming",
			},
		},
		breakdown: models.MethodBreakdown{Manual: 1},
	}
	svc := NewAttendanceService(reader, &fakeActiveCounter{count: 4}, zap.NewNop())

	out, err := svc.ExportPDF(context.Background(), 3, "Robotics Workshop")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "%PDF"))
}
