package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/campushub/activity-attendance-api/internal/models"
)

func userRows(id int64, username string) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "username", "email", "password_hash", "full_name", "role",
		"status", "last_login", "created_at", "updated_at",
	}).AddRow(id, username, username+"@campus.edu", "hash", "Li Ming", models.RoleStudent, models.UserActive, nil, now, now)
}

func TestUserRepositoryGetByUsername(t *testing.T) {
	db, mock, cleanup := newActivityRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE username = $1")).
		WithArgs("liming").
		WillReturnRows(userRows(8, "liming"))

	user, err := repo.GetByUsername(context.Background(), "liming")
	require.NoError(t, err)
	require.Equal(t, int64(8), user.ID)
	require.True(t, user.Active())
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryGetByUsernameMissing(t *testing.T) {
	db, mock, cleanup := newActivityRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE username = $1")).
		WithArgs("ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByUsername(context.Background(), "ghost")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryRevokeUserRefreshTokens(t *testing.T) {
	db, mock, cleanup := newActivityRepoMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE refresh_tokens SET revoked = TRUE, revoked_at = $2 WHERE user_id = $1 AND revoked = FALSE")).
		WithArgs(int64(8), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	require.NoError(t, repo.RevokeUserRefreshTokens(context.Background(), 8))
	require.NoError(t, mock.ExpectationsWereMet())
}
