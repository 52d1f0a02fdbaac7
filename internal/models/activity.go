package models

import "time"

// ActivityStatus is the lifecycle state of an activity. The numeric values
// are part of the API contract and are stored as-is.
type ActivityStatus int

const (
	ActivityUpcoming  ActivityStatus = 1
	ActivityOngoing   ActivityStatus = 2
	ActivityCompleted ActivityStatus = 3
	ActivityCancelled ActivityStatus = 4
)

// Valid returns true when the status is one of the four lifecycle states.
func (s ActivityStatus) Valid() bool {
	return s >= ActivityUpcoming && s <= ActivityCancelled
}

// Terminal reports whether the lifecycle sweep must leave this status alone.
func (s ActivityStatus) Terminal() bool {
	return s == ActivityCompleted || s == ActivityCancelled
}

// String renders the status for logs and reports.
func (s ActivityStatus) String() string {
	switch s {
	case ActivityUpcoming:
		return "upcoming"
	case ActivityOngoing:
		return "ongoing"
	case ActivityCompleted:
		return "completed"
	case ActivityCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Activity represents a scheduled campus activity.
type Activity struct {
	ID                   int64          `db:"id" json:"id"`
	Name                 string         `db:"name" json:"name"`
	Description          *string        `db:"description" json:"description,omitempty"`
	Location             string         `db:"location" json:"location"`
	StartTime            time.Time      `db:"start_time" json:"start_time"`
	EndTime              time.Time      `db:"end_time" json:"end_time"`
	MaxParticipants      *int           `db:"max_participants" json:"max_participants,omitempty"`
	RegistrationDeadline *time.Time     `db:"registration_deadline" json:"registration_deadline,omitempty"`
	Status               ActivityStatus `db:"status" json:"status"`
	QRPayload            *string        `db:"qr_payload" json:"-"`
	CreatedBy            int64          `db:"created_by" json:"created_by"`
	CreatedAt            time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time      `db:"updated_at" json:"updated_at"`
}

// OwnedOrAdmin reports whether the user may administer this activity.
func (a *Activity) OwnedOrAdmin(user *User) bool {
	return user.IsAdmin() || a.CreatedBy == user.ID
}

// CreateActivityRequest is the payload for creating an activity.
type CreateActivityRequest struct {
	Name                 string     `json:"name" validate:"required,max=200"`
	Description          *string    `json:"description,omitempty"`
	Location             string     `json:"location" validate:"required,max=200"`
	StartTime            time.Time  `json:"start_time" validate:"required"`
	EndTime              time.Time  `json:"end_time" validate:"required"`
	MaxParticipants      *int       `json:"max_participants,omitempty" validate:"omitempty,min=1"`
	RegistrationDeadline *time.Time `json:"registration_deadline,omitempty"`
}

// UpdateActivityRequest is the payload for metadata updates. Nil fields are
// left untouched.
type UpdateActivityRequest struct {
	Name                 *string    `json:"name,omitempty" validate:"omitempty,max=200"`
	Description          *string    `json:"description,omitempty"`
	Location             *string    `json:"location,omitempty" validate:"omitempty,max=200"`
	StartTime            *time.Time `json:"start_time,omitempty"`
	EndTime              *time.Time `json:"end_time,omitempty"`
	MaxParticipants      *int       `json:"max_participants,omitempty" validate:"omitempty,min=1"`
	RegistrationDeadline *time.Time `json:"registration_deadline,omitempty"`
}

// ChangeActivityStatusRequest carries a manual status override.
type ChangeActivityStatusRequest struct {
	Status int `json:"status" validate:"required"`
}

// ActivityFilter scopes listing queries.
type ActivityFilter struct {
	Status    *ActivityStatus
	Search    string
	DateFrom  *time.Time
	DateTo    *time.Time
	CreatedBy *int64
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// SweepResult reports what a single lifecycle tick changed.
type SweepResult struct {
	Started   int64 `json:"started"`
	Completed int64 `json:"completed"`
}

// Changed reports whether the sweep moved any activity.
func (r SweepResult) Changed() bool {
	return r.Started > 0 || r.Completed > 0
}

// QRCodeResponse returns the encoded payload and a rendered image.
type QRCodeResponse struct {
	ActivityID int64  `json:"activity_id"`
	Payload    string `json:"payload"`
	Image      string `json:"image"`
	IssuedAt   string `json:"issued_at"`
}
