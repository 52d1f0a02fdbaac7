package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/campushub/activity-attendance-api/internal/models"
)

// Outcomes of the transactional register path. The service layer maps these
// onto the API error taxonomy.
var (
	ErrActivityFull      = errors.New("activity full")
	ErrAlreadyRegistered = errors.New("already registered")
)

// RegistrationRepository handles persistence for registrations.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository constructs the repository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

const registrationColumns = `id, activity_id, user_id, status, created_at, updated_at`

// Register performs the capacity-checked registration as one atomic unit.
// It locks the activity row, counts Active rows, then inserts a new row or
// flips an existing Cancelled row back to Active. A pair therefore never
// owns more than one row, and with capacity N at most N rows are Active
// even under concurrent attempts.
func (r *RegistrationRepository) Register(ctx context.Context, activityID, userID int64, capacity *int) (*models.Registration, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin register: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			tx.Rollback()
		}
	}()

	// Serialises concurrent registrations for the same activity.
	var lockedID int64
	if err := tx.GetContext(ctx, &lockedID, "SELECT id FROM activities WHERE id = $1 FOR UPDATE", activityID); err != nil {
		return nil, err
	}

	if capacity != nil {
		var active int
		if err := tx.GetContext(ctx, &active,
			"SELECT COUNT(*) FROM registrations WHERE activity_id = $1 AND status = $2",
			activityID, models.RegistrationActive); err != nil {
			return nil, fmt.Errorf("count active registrations: %w", err)
		}
		if active >= *capacity {
			return nil, ErrActivityFull
		}
	}

	now := time.Now().UTC()
	var existing models.Registration
	err = tx.GetContext(ctx, &existing,
		fmt.Sprintf("SELECT %s FROM registrations WHERE activity_id = $1 AND user_id = $2", registrationColumns),
		activityID, userID)
	switch {
	case err == nil:
		if existing.Status == models.RegistrationActive {
			return nil, ErrAlreadyRegistered
		}
		var flipped models.Registration
		if err := tx.GetContext(ctx, &flipped,
			fmt.Sprintf(`UPDATE registrations SET status = $2, updated_at = $3 WHERE id = $1 RETURNING %s`, registrationColumns),
			existing.ID, models.RegistrationActive, now); err != nil {
			return nil, fmt.Errorf("reactivate registration: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit register: %w", err)
		}
		committed = true
		return &flipped, nil
	case errors.Is(err, sql.ErrNoRows):
		var created models.Registration
		if err := tx.GetContext(ctx, &created,
			fmt.Sprintf(`INSERT INTO registrations (activity_id, user_id, status, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4) RETURNING %s`, registrationColumns),
			activityID, userID, models.RegistrationActive, now); err != nil {
			return nil, fmt.Errorf("insert registration: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return nil, fmt.Errorf("commit register: %w", err)
		}
		committed = true
		return &created, nil
	default:
		return nil, fmt.Errorf("find registration: %w", err)
	}
}

// Find fetches the registration row for a pair. Missing rows surface as
// sql.ErrNoRows.
func (r *RegistrationRepository) Find(ctx context.Context, activityID, userID int64) (*models.Registration, error) {
	var registration models.Registration
	if err := r.db.GetContext(ctx, &registration,
		fmt.Sprintf("SELECT %s FROM registrations WHERE activity_id = $1 AND user_id = $2", registrationColumns),
		activityID, userID); err != nil {
		return nil, err
	}
	return &registration, nil
}

// UpdateStatus flips a registration row and returns the stored result.
func (r *RegistrationRepository) UpdateStatus(ctx context.Context, id int64, status models.RegistrationStatus) (*models.Registration, error) {
	var stored models.Registration
	if err := r.db.GetContext(ctx, &stored,
		fmt.Sprintf("UPDATE registrations SET status = $2, updated_at = $3 WHERE id = $1 RETURNING %s", registrationColumns),
		id, status, time.Now().UTC()); err != nil {
		return nil, err
	}
	return &stored, nil
}

// CountActive counts the Active rows for an activity.
func (r *RegistrationRepository) CountActive(ctx context.Context, activityID int64) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM registrations WHERE activity_id = $1 AND status = $2",
		activityID, models.RegistrationActive); err != nil {
		return 0, fmt.Errorf("count active registrations: %w", err)
	}
	return count, nil
}

// Counts returns active and cancelled totals for an activity.
func (r *RegistrationRepository) Counts(ctx context.Context, activityID int64) (active, cancelled int, err error) {
	row := struct {
		Active    int `db:"active"`
		Cancelled int `db:"cancelled"`
	}{}
	query := `SELECT
COUNT(*) FILTER (WHERE status = $2) AS active,
COUNT(*) FILTER (WHERE status = $3) AS cancelled
FROM registrations WHERE activity_id = $1`
	if err := r.db.GetContext(ctx, &row, query,
		activityID, models.RegistrationActive, models.RegistrationCancelled); err != nil {
		return 0, 0, fmt.Errorf("count registrations: %w", err)
	}
	return row.Active, row.Cancelled, nil
}

// List returns registration records with user and activity metadata.
func (r *RegistrationRepository) List(ctx context.Context, filter models.RegistrationFilter) ([]models.RegistrationRecord, int, error) {
	base := `FROM registrations r
JOIN users u ON u.id = r.user_id
JOIN activities a ON a.id = r.activity_id`
	where := []string{"1=1"}
	args := []interface{}{}
	if filter.ActivityID != 0 {
		where = append(where, fmt.Sprintf("r.activity_id = $%d", len(args)+1))
		args = append(args, filter.ActivityID)
	}
	if filter.UserID != 0 {
		where = append(where, fmt.Sprintf("r.user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.Status != nil {
		where = append(where, fmt.Sprintf("r.status = $%d", len(args)+1))
		args = append(args, *filter.Status)
	}
	if filter.Search != "" {
		n := len(args) + 1
		where = append(where, fmt.Sprintf("(u.username ILIKE $%d OR u.full_name ILIKE $%d OR u.email ILIKE $%d)", n, n, n))
		args = append(args, "%"+filter.Search+"%")
	}
	whereClause := strings.Join(where, " AND ")

	allowedSort := map[string]string{
		"created_at": "r.created_at",
		"status":     "r.status",
		"full_name":  "u.full_name",
	}
	sortColumn, ok := allowedSort[filter.SortBy]
	if !ok {
		sortColumn = "r.created_at"
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

	query := fmt.Sprintf(`SELECT r.id, r.activity_id, r.user_id, r.status, r.created_at, r.updated_at,
        u.username, u.full_name, u.email, a.name AS activity_name
        %s WHERE %s
        ORDER BY %s %s
        LIMIT %d OFFSET %d`, base, whereClause, sortColumn, order, size, offset)
	var records []models.RegistrationRecord
	if err := r.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list registrations: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s WHERE %s", base, whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count registrations: %w", err)
	}
	return records, total, nil
}
