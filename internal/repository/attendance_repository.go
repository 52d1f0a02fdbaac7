package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campushub/activity-attendance-api/internal/models"
)

// ErrDuplicateCheckin is returned when the unique (activity, user) constraint
// rejects a second attendance row.
var ErrDuplicateCheckin = errors.New("duplicate check-in")

// AttendanceRepository handles persistence for attendance rows.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

const attendanceColumns = `id, activity_id, user_id, checkin_time, method, created_at`

const uniqueViolation = "23505"

// Insert writes an attendance row. The unique index on (activity_id, user_id)
// is the last line of defense against concurrent duplicate check-ins; a
// violation surfaces as ErrDuplicateCheckin.
func (r *AttendanceRepository) Insert(ctx context.Context, attendance *models.Attendance) (*models.Attendance, error) {
	query := fmt.Sprintf(`INSERT INTO attendances (activity_id, user_id, checkin_time, method, created_at)
VALUES ($1, $2, $3, $4, $5) RETURNING %s`, attendanceColumns)
	var stored models.Attendance
	err := r.db.GetContext(ctx, &stored, query,
		attendance.ActivityID, attendance.UserID, attendance.CheckinTime, attendance.Method, time.Now().UTC())
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return nil, ErrDuplicateCheckin
		}
		return nil, fmt.Errorf("insert attendance: %w", err)
	}
	return &stored, nil
}

// Find fetches the attendance row for a pair. Missing rows surface as
// sql.ErrNoRows.
func (r *AttendanceRepository) Find(ctx context.Context, activityID, userID int64) (*models.Attendance, error) {
	var attendance models.Attendance
	if err := r.db.GetContext(ctx, &attendance,
		fmt.Sprintf("SELECT %s FROM attendances WHERE activity_id = $1 AND user_id = $2", attendanceColumns),
		activityID, userID); err != nil {
		return nil, err
	}
	return &attendance, nil
}

// List returns attendance records with user and activity metadata. Search
// matches the attendee's username, full name, or email.
func (r *AttendanceRepository) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecord, int, error) {
	base := `FROM attendances t
JOIN users u ON u.id = t.user_id
JOIN activities a ON a.id = t.activity_id`
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.ActivityID != 0 {
		where = append(where, fmt.Sprintf("t.activity_id = $%d", len(args)+1))
		args = append(args, filter.ActivityID)
	}
	if filter.UserID != 0 {
		where = append(where, fmt.Sprintf("t.user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.Method != nil && filter.Method.Valid() {
		where = append(where, fmt.Sprintf("t.method = $%d", len(args)+1))
		args = append(args, *filter.Method)
	}
	if filter.Search != "" {
		n := len(args) + 1
		where = append(where, fmt.Sprintf("(u.username ILIKE $%d OR u.full_name ILIKE $%d OR u.email ILIKE $%d)", n, n, n))
		args = append(args, "%"+filter.Search+"%")
	}
	whereClause := strings.Join(where, " AND ")

	allowedSort := map[string]string{
		"checkin_time": "t.checkin_time",
		"method":       "t.method",
		"full_name":    "u.full_name",
	}
	sortColumn, ok := allowedSort[filter.SortBy]
	if !ok {
		sortColumn = "t.checkin_time"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT t.id, t.activity_id, t.user_id, t.checkin_time, t.method, t.created_at,
        u.username, u.full_name, u.email, a.name AS activity_name
        %s WHERE %s
        ORDER BY %s %s
        LIMIT %d OFFSET %d`, base, whereClause, sortColumn, order, size, offset)
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list attendances: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count attendances: %w", err)
	}
	return records, total, nil
}

// MethodCounts counts attendances for an activity per capture method.
func (r *AttendanceRepository) MethodCounts(ctx context.Context, activityID int64) (models.MethodBreakdown, error) {
	var breakdown models.MethodBreakdown
	query := `SELECT
        COUNT(*) FILTER (WHERE method = $2) AS qr_scan,
        COUNT(*) FILTER (WHERE method = $3) AS manual
        FROM attendances WHERE activity_id = $1`
	if err := r.db.GetContext(ctx, &breakdown, query, activityID, models.MethodQRScan, models.MethodManual); err != nil {
		return breakdown, fmt.Errorf("count attendance methods: %w", err)
	}
	return breakdown, nil
}
