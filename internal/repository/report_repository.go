package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/campushub/activity-attendance-api/internal/models"
)

// ReportRepository aggregates cross-entity counters for reporting.
type ReportRepository struct {
	db *sqlx.DB
}

// NewReportRepository constructs the repository.
func NewReportRepository(db *sqlx.DB) *ReportRepository {
	return &ReportRepository{db: db}
}

type overviewRow struct {
	TotalActivities     int `db:"total_activities"`
	UpcomingActivities  int `db:"upcoming_activities"`
	OngoingActivities   int `db:"ongoing_activities"`
	CompletedActivities int `db:"completed_activities"`
	CancelledActivities int `db:"cancelled_activities"`
	TotalRegistrations  int `db:"total_registrations"`
	TotalAttendances    int `db:"total_attendances"`
	TotalStudents       int `db:"total_students"`
	TotalManagers       int `db:"total_managers"`
	TotalAdmins         int `db:"total_admins"`
}

// Overview collects platform-wide counters in one round-trip.
func (r *ReportRepository) Overview(ctx context.Context) (*models.OverviewReport, error) {
	query := `SELECT
        (SELECT COUNT(*) FROM activities) AS total_activities,
        (SELECT COUNT(*) FROM activities WHERE status = $1) AS upcoming_activities,
        (SELECT COUNT(*) FROM activities WHERE status = $2) AS ongoing_activities,
        (SELECT COUNT(*) FROM activities WHERE status = $3) AS completed_activities,
        (SELECT COUNT(*) FROM activities WHERE status = $4) AS cancelled_activities,
        (SELECT COUNT(*) FROM registrations WHERE status = $5) AS total_registrations,
        (SELECT COUNT(*) FROM attendances) AS total_attendances,
        (SELECT COUNT(*) FROM users WHERE role = $6) AS total_students,
        (SELECT COUNT(*) FROM users WHERE role = $7) AS total_managers,
        (SELECT COUNT(*) FROM users WHERE role = $8) AS total_admins`
	var row overviewRow
	if err := r.db.GetContext(ctx, &row, query,
		models.ActivityUpcoming, models.ActivityOngoing, models.ActivityCompleted, models.ActivityCancelled,
		models.RegistrationActive, models.RoleStudent, models.RoleManager, models.RoleAdmin); err != nil {
		return nil, fmt.Errorf("report overview: %w", err)
	}
	return &models.OverviewReport{
		TotalActivities:     row.TotalActivities,
		UpcomingActivities:  row.UpcomingActivities,
		OngoingActivities:   row.OngoingActivities,
		CompletedActivities: row.CompletedActivities,
		CancelledActivities: row.CancelledActivities,
		TotalRegistrations:  row.TotalRegistrations,
		TotalAttendances:    row.TotalAttendances,
		TotalStudents:       row.TotalStudents,
		TotalManagers:       row.TotalManagers,
		TotalAdmins:         row.TotalAdmins,
	}, nil
}

// Trend returns per-day registration and attendance counts over [from, to].
func (r *ReportRepository) Trend(ctx context.Context, from, to time.Time) ([]models.TrendPoint, error) {
	query := `SELECT d.day,
        COALESCE(reg.n, 0) AS registrations,
        COALESCE(att.n, 0) AS attendances
        FROM generate_series($1::date, $2::date, '1 day') AS d(day)
        LEFT JOIN (
            SELECT created_at::date AS day, COUNT(*) AS n FROM registrations
            WHERE created_at >= $1 AND created_at < $2::date + 1 GROUP BY 1
        ) reg ON reg.day = d.day
        LEFT JOIN (
            SELECT checkin_time::date AS day, COUNT(*) AS n FROM attendances
            WHERE checkin_time >= $1 AND checkin_time < $2::date + 1 GROUP BY 1
        ) att ON att.day = d.day
        ORDER BY d.day`
	var points []models.TrendPoint
	if err := r.db.SelectContext(ctx, &points, query, from, to); err != nil {
		return nil, fmt.Errorf("report trend: %w", err)
	}
	return points, nil
}

// TopActivities ranks activities by attendance count.
func (r *ReportRepository) TopActivities(ctx context.Context, limit int) ([]models.ActivityRanking, error) {
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	query := fmt.Sprintf(`SELECT a.id AS activity_id, a.name,
        COALESCE(reg.n, 0) AS registrations,
        COALESCE(att.n, 0) AS attendances
        FROM activities a
        LEFT JOIN (
            SELECT activity_id, COUNT(*) AS n FROM registrations WHERE status = $1 GROUP BY activity_id
        ) reg ON reg.activity_id = a.id
        LEFT JOIN (
            SELECT activity_id, COUNT(*) AS n FROM attendances GROUP BY activity_id
        ) att ON att.activity_id = a.id
        ORDER BY COALESCE(att.n, 0) DESC, a.id
        LIMIT %d`, limit)
	var rankings []models.ActivityRanking
	if err := r.db.SelectContext(ctx, &rankings, query, models.RegistrationActive); err != nil {
		return nil, fmt.Errorf("report top activities: %w", err)
	}
	return rankings, nil
}

// SaveSnapshot upserts the daily overview snapshot for its day.
func (r *ReportRepository) SaveSnapshot(ctx context.Context, snapshot *models.ReportSnapshot) (*models.ReportSnapshot, error) {
	query := `INSERT INTO report_snapshots (snapshot_day, payload, created_at)
VALUES ($1, $2, $3)
ON CONFLICT (snapshot_day) DO UPDATE SET payload = EXCLUDED.payload, created_at = EXCLUDED.created_at
RETURNING id, snapshot_day, payload, created_at`
	var stored models.ReportSnapshot
	if err := r.db.GetContext(ctx, &stored, query,
		snapshot.SnapshotDay, snapshot.Payload, time.Now().UTC()); err != nil {
		return nil, fmt.Errorf("save report snapshot: %w", err)
	}
	return &stored, nil
}

// LatestSnapshot returns the most recent stored snapshot. Missing rows
// surface as sql.ErrNoRows.
func (r *ReportRepository) LatestSnapshot(ctx context.Context) (*models.ReportSnapshot, error) {
	var snapshot models.ReportSnapshot
	if err := r.db.GetContext(ctx, &snapshot,
		"SELECT id, snapshot_day, payload, created_at FROM report_snapshots ORDER BY snapshot_day DESC LIMIT 1"); err != nil {
		return nil, err
	}
	return &snapshot, nil
}
