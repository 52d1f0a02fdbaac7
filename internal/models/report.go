package models

import "time"

// OverviewReport aggregates platform-wide counters for dashboards.
type OverviewReport struct {
	TotalActivities     int       `json:"total_activities"`
	UpcomingActivities  int       `json:"upcoming_activities"`
	OngoingActivities   int       `json:"ongoing_activities"`
	CompletedActivities int       `json:"completed_activities"`
	CancelledActivities int       `json:"cancelled_activities"`
	TotalRegistrations  int       `json:"total_registrations"`
	TotalAttendances    int       `json:"total_attendances"`
	TotalStudents       int       `json:"total_students"`
	TotalManagers       int       `json:"total_managers"`
	TotalAdmins         int       `json:"total_admins"`
	AttendanceRate      int       `json:"attendance_rate"`
	GeneratedAt         time.Time `json:"generated_at"`
}

// TrendPoint is one day in the attendance trend series.
type TrendPoint struct {
	Date          time.Time `db:"day" json:"date"`
	Registrations int       `db:"registrations" json:"registrations"`
	Attendances   int       `db:"attendances" json:"attendances"`
}

// ActivityRanking is one row of the top-activities report.
type ActivityRanking struct {
	ActivityID     int64  `db:"activity_id" json:"activity_id"`
	Name           string `db:"name" json:"name"`
	Registrations  int    `db:"registrations" json:"registrations"`
	Attendances    int    `db:"attendances" json:"attendances"`
	AttendanceRate int    `json:"attendance_rate"`
}

// ReportSnapshot is a persisted daily copy of the overview report, written
// by the background snapshot job.
type ReportSnapshot struct {
	ID          int64     `db:"id" json:"id"`
	SnapshotDay time.Time `db:"snapshot_day" json:"snapshot_day"`
	Payload     []byte    `db:"payload" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
