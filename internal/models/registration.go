package models

import "time"

// RegistrationStatus is the state of a registration row. A (activity, user)
// pair owns at most one row for its entire history; cancel and re-register
// flip the status in place.
type RegistrationStatus string

const (
	RegistrationActive    RegistrationStatus = "ACTIVE"
	RegistrationCancelled RegistrationStatus = "CANCELLED"
)

// Registration links a user to an activity.
type Registration struct {
	ID         int64              `db:"id" json:"id"`
	ActivityID int64              `db:"activity_id" json:"activity_id"`
	UserID     int64              `db:"user_id" json:"user_id"`
	Status     RegistrationStatus `db:"status" json:"status"`
	CreatedAt  time.Time          `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time          `db:"updated_at" json:"updated_at"`
}

// RegistrationRecord extends the row with user and activity metadata for
// listings and exports.
type RegistrationRecord struct {
	Registration
	Username     string `db:"username" json:"username"`
	FullName     string `db:"full_name" json:"full_name"`
	Email        string `db:"email" json:"email"`
	ActivityName string `db:"activity_name" json:"activity_name"`
}

// RegistrationStats summarises the ledger for one activity.
type RegistrationStats struct {
	ActivityID      int64 `json:"activity_id"`
	Active          int   `db:"active" json:"active"`
	Cancelled       int   `db:"cancelled" json:"cancelled"`
	MaxParticipants *int  `json:"max_participants,omitempty"`
	IsFull          bool  `json:"is_full"`
}

// RegistrationFilter scopes listing queries.
type RegistrationFilter struct {
	ActivityID int64
	UserID     int64
	Status     *RegistrationStatus
	Search     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
