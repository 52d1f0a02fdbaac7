package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/campushub/activity-attendance-api/internal/models"
)

// ActivityRepository handles persistence for activities.
type ActivityRepository struct {
	db *sqlx.DB
}

// NewActivityRepository constructs the repository.
func NewActivityRepository(db *sqlx.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

const activityColumns = `id, name, description, location, start_time, end_time, max_participants, registration_deadline, status, qr_payload, created_by, created_at, updated_at`

// Create inserts a new activity and returns the stored row.
func (r *ActivityRepository) Create(ctx context.Context, activity *models.Activity) (*models.Activity, error) {
	now := time.Now().UTC()
	query := fmt.Sprintf(`INSERT INTO activities (name, description, location, start_time, end_time, max_participants, registration_deadline, status, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
RETURNING %s`, activityColumns)
	var stored models.Activity
	if err := r.db.GetContext(ctx, &stored, query,
		activity.Name, activity.Description, activity.Location,
		activity.StartTime, activity.EndTime, activity.MaxParticipants, activity.RegistrationDeadline,
		activity.Status, activity.CreatedBy, now, now); err != nil {
		return nil, fmt.Errorf("create activity: %w", err)
	}
	return &stored, nil
}

// GetByID fetches one activity. Missing rows surface as sql.ErrNoRows.
func (r *ActivityRepository) GetByID(ctx context.Context, id int64) (*models.Activity, error) {
	query := fmt.Sprintf("SELECT %s FROM activities WHERE id = $1", activityColumns)
	var activity models.Activity
	if err := r.db.GetContext(ctx, &activity, query, id); err != nil {
		return nil, err
	}
	return &activity, nil
}

// List returns activities matching the filter plus the unpaged total.
func (r *ActivityRepository) List(ctx context.Context, filter models.ActivityFilter) ([]models.Activity, int, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.Status != nil && filter.Status.Valid() {
		where = append(where, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Search != "" {
		where = append(where, fmt.Sprintf("(name ILIKE $%d OR location ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}
	if filter.DateFrom != nil {
		where = append(where, fmt.Sprintf("start_time >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		where = append(where, fmt.Sprintf("start_time <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	if filter.CreatedBy != nil {
		where = append(where, fmt.Sprintf("created_by = $%d", len(args)+1))
		args = append(args, *filter.CreatedBy)
	}
	whereClause := strings.Join(where, " AND ")

	allowedSort := map[string]string{
		"start_time": "start_time",
		"name":       "name",
		"status":     "status",
		"created_at": "created_at",
	}
	sortColumn, ok := allowedSort[filter.SortBy]
	if !ok {
		sortColumn = "start_time"
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

	query := fmt.Sprintf(`SELECT %s FROM activities WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d`,
		activityColumns, whereClause, sortColumn, order, size, offset)
	var activities []models.Activity
	if err := r.db.SelectContext(ctx, &activities, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list activities: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM activities WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count activities: %w", err)
	}
	return activities, total, nil
}

// Update rewrites the mutable metadata columns and returns the stored row.
func (r *ActivityRepository) Update(ctx context.Context, activity *models.Activity) (*models.Activity, error) {
	query := fmt.Sprintf(`UPDATE activities
SET name = $2, description = $3, location = $4, start_time = $5, end_time = $6,
    max_participants = $7, registration_deadline = $8, updated_at = $9
WHERE id = $1
RETURNING %s`, activityColumns)
	var stored models.Activity
	if err := r.db.GetContext(ctx, &stored, query,
		activity.ID, activity.Name, activity.Description, activity.Location,
		activity.StartTime, activity.EndTime, activity.MaxParticipants, activity.RegistrationDeadline,
		time.Now().UTC()); err != nil {
		return nil, err
	}
	return &stored, nil
}

// UpdateStatus sets the lifecycle status unconditionally. Callers are
// responsible for transition rules.
func (r *ActivityRepository) UpdateStatus(ctx context.Context, id int64, status models.ActivityStatus) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE activities SET status = $2, updated_at = $3 WHERE id = $1",
		id, status, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update activity status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update activity status: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SaveQRPayload stores the last-issued QR payload text for an activity.
func (r *ActivityRepository) SaveQRPayload(ctx context.Context, id int64, payload string) error {
	if _, err := r.db.ExecContext(ctx,
		"UPDATE activities SET qr_payload = $2, updated_at = $3 WHERE id = $1",
		id, payload, time.Now().UTC()); err != nil {
		return fmt.Errorf("save qr payload: %w", err)
	}
	return nil
}

// Sweep advances activity statuses for the given instant. Each transition is
// a conditional update that re-checks its precondition at write time, so
// concurrent sweeps and manual status changes cannot produce lost updates
// or backward moves.
func (r *ActivityRepository) Sweep(ctx context.Context, now time.Time) (models.SweepResult, error) {
	var result models.SweepResult

	started, err := r.db.ExecContext(ctx,
		`UPDATE activities SET status = $1, updated_at = $2 WHERE status = $3 AND start_time <= $2 AND end_time > $2`,
		models.ActivityOngoing, now, models.ActivityUpcoming)
	if err != nil {
		return result, fmt.Errorf("sweep upcoming activities: %w", err)
	}
	result.Started, err = started.RowsAffected()
	if err != nil {
		return result, fmt.Errorf("sweep upcoming activities: %w", err)
	}

	completed, err := r.db.ExecContext(ctx,
		`UPDATE activities SET status = $1, updated_at = $2 WHERE status = $3 AND end_time <= $2`,
		models.ActivityCompleted, now, models.ActivityOngoing)
	if err != nil {
		return result, fmt.Errorf("sweep ongoing activities: %w", err)
	}
	result.Completed, err = completed.RowsAffected()
	if err != nil {
		return result, fmt.Errorf("sweep ongoing activities: %w", err)
	}

	return result, nil
}

// HasRegistrations reports whether any registration row references the
// activity, cancelled rows included.
func (r *ActivityRepository) HasRegistrations(ctx context.Context, id int64) (bool, error) {
	var exists bool
	if err := r.db.GetContext(ctx, &exists,
		"SELECT EXISTS (SELECT 1 FROM registrations WHERE activity_id = $1)", id); err != nil {
		return false, fmt.Errorf("check activity registrations: %w", err)
	}
	return exists, nil
}

// Delete removes an activity row. Only valid for activities without
// registrations; the service enforces that.
func (r *ActivityRepository) Delete(ctx context.Context, id int64) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM activities WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("delete activity: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete activity: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
