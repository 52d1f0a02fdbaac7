package models

import "time"

// CheckinMethod records how an attendance was captured.
type CheckinMethod string

const (
	MethodQRScan CheckinMethod = "qr_scan"
	MethodManual CheckinMethod = "manual"
)

// Valid returns true when the method is a supported value.
func (m CheckinMethod) Valid() bool {
	return m == MethodQRScan || m == MethodManual
}

// Attendance is a proof-of-presence row. At most one exists per
// (activity, user) pair and it is immutable once written.
type Attendance struct {
	ID          int64         `db:"id" json:"id"`
	ActivityID  int64         `db:"activity_id" json:"activity_id"`
	UserID      int64         `db:"user_id" json:"user_id"`
	CheckinTime time.Time     `db:"checkin_time" json:"checkin_time"`
	Method      CheckinMethod `db:"method" json:"method"`
	CreatedAt   time.Time     `db:"created_at" json:"created_at"`
}

// AttendanceRecord extends the row with user and activity metadata.
type AttendanceRecord struct {
	Attendance
	Username     string `db:"username" json:"username"`
	FullName     string `db:"full_name" json:"full_name"`
	Email        string `db:"email" json:"email"`
	ActivityName string `db:"activity_name" json:"activity_name"`
}

// AttendanceFilter scopes listing queries. Search matches the attendee's
// username, full name, or email.
type AttendanceFilter struct {
	ActivityID int64
	UserID     int64
	Method     *CheckinMethod
	Search     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}

// MethodBreakdown counts attendances per capture method.
type MethodBreakdown struct {
	QRScan int `db:"qr_scan" json:"qr_scan"`
	Manual int `db:"manual" json:"manual"`
}

// AttendanceStats is the point-in-time statistics snapshot for an activity.
// Counts are re-derived from current rows on every call.
type AttendanceStats struct {
	ActivityID               int64           `json:"activity_id"`
	TotalActiveRegistrations int             `json:"total_active_registrations"`
	TotalAttendances         int             `json:"total_attendances"`
	AttendanceRate           int             `json:"attendance_rate"`
	Methods                  MethodBreakdown `json:"methods"`
}

// QRCheckinRequest is the payload for a scanned check-in.
type QRCheckinRequest struct {
	Payload string `json:"payload" validate:"required"`
}

// ManualCheckinRequest is the payload for a staff-entered check-in.
type ManualCheckinRequest struct {
	UserID int64 `json:"user_id" validate:"required"`
}
