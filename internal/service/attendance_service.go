package service

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/campushub/activity-attendance-api/internal/models"
	"github.com/campushub/activity-attendance-api/pkg/export"
	appErrors "github.com/campushub/activity-attendance-api/pkg/errors"
)

type attendanceRepositoryPort interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error)
	MethodCounts(ctx context.Context, activityID int64) (models.MethodBreakdown, error)
}

type attendanceRegistrationPort interface {
	CountActive(ctx context.Context, activityID int64) (int, error)
}

// AttendanceService exposes the read side of the attendance ledger: listings
// and per-activity statistics. Statistics are snapshots derived from current
// rows on every call.
type AttendanceService struct {
	repo          attendanceRepositoryPort
	registrations attendanceRegistrationPort
	logger        *zap.Logger
}

// NewAttendanceService constructs the service.
func NewAttendanceService(repo attendanceRepositoryPort, registrations attendanceRegistrationPort, logger *zap.Logger) *AttendanceService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, registrations: registrations, logger: logger}
}

// ListByUser returns the user's attendance history.
func (s *AttendanceService) ListByUser(ctx context.Context, userID int64, filter models.AttendanceFilter) ([]models.AttendanceRecord, *models.Pagination, error) {
	filter.UserID = userID
	return s.list(ctx, filter)
}

// ListByActivity returns the attendance list for one activity, optionally
// filtered by attendee identity.
func (s *AttendanceService) ListByActivity(ctx context.Context, activityID int64, filter models.AttendanceFilter) ([]models.AttendanceRecord, *models.Pagination, error) {
	filter.ActivityID = activityID
	return s.list(ctx, filter)
}

func (s *AttendanceService) list(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, *models.Pagination, error) {
	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendances")
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

// Stats computes the per-activity statistics snapshot.
func (s *AttendanceService) Stats(ctx context.Context, activityID int64) (*models.AttendanceStats, error) {
	active, err := s.registrations.CountActive(ctx, activityID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count registrations")
	}
	breakdown, err := s.repo.MethodCounts(ctx, activityID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count attendances")
	}
	total := breakdown.QRScan + breakdown.Manual

	return &models.AttendanceStats{
		ActivityID:               activityID,
		TotalActiveRegistrations: active,
		TotalAttendances:         total,
		AttendanceRate:           attendanceRate(total, active),
		Methods:                  breakdown,
	}, nil
}

// ExportCSV renders the attendance list for an activity as a CSV download.
func (s *AttendanceService) ExportCSV(ctx context.Context, activityID int64) ([]byte, error) {
	records, _, err := s.ListByActivity(ctx, activityID, models.AttendanceFilter{PageSize: 200})
	if err != nil {
		return nil, err
	}
	table := export.Table{
		Columns: []string{"Username", "Full Name", "Email", "Activity", "Checked In At", "Method"},
	}
	for _, record := range records {
		table.Rows = append(table.Rows, []string{
			record.Username,
			record.FullName,
			record.Email,
			record.ActivityName,
			record.CheckinTime.UTC().Format("2006-01-02 15:04:05"),
			string(record.Method),
		})
	}
	out, err := export.CSV(table)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
	}
	return out, nil
}

// ExportPDF renders a printable attendance report for an activity.
func (s *AttendanceService) ExportPDF(ctx context.Context, activityID int64, activityName string) ([]byte, error) {
	stats, err := s.Stats(ctx, activityID)
	if err != nil {
		return nil, err
	}
	records, _, err := s.ListByActivity(ctx, activityID, models.AttendanceFilter{PageSize: 200})
	if err != nil {
		return nil, err
	}

	table := export.Table{Columns: []string{"Full Name", "Checked In At", "Method"}}
	for _, record := range records {
		table.Rows = append(table.Rows, []string{
			record.FullName,
			record.CheckinTime.UTC().Format("2006-01-02 15:04"),
			string(record.Method),
		})
	}
	summary := []export.Metric{
		{Label: "Active registrations", Value: fmt.Sprintf("%d", stats.TotalActiveRegistrations)},
		{Label: "Attendances", Value: fmt.Sprintf("%d", stats.TotalAttendances)},
		{Label: "Attendance rate", Value: fmt.Sprintf("%d%%", stats.AttendanceRate)},
	}
	out, err := export.PDF("Attendance Report: "+activityName, summary, table)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
	}
	return out, nil
}

// attendanceRate is round(100 * attendances / activeRegistrations), 0 when
// there are no active registrations.
func attendanceRate(attendances, activeRegistrations int) int {
	if activeRegistrations <= 0 {
		return 0
	}
	return int(math.Round(100 * float64(attendances) / float64(activeRegistrations)))
}
