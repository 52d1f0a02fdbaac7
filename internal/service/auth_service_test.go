package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/campushub/activity-attendance-api/internal/models"
	appErrors "github.com/campushub/activity-attendance-api/pkg/errors"
)

type fakeAuthRepo struct {
	users   map[string]*models.User
	tokens  map[string]*models.RefreshToken
	revoked []string
}

func newFakeAuthRepo() *fakeAuthRepo {
	return &fakeAuthRepo{
		users:  make(map[string]*models.User),
		tokens: make(map[string]*models.RefreshToken),
	}
}

func (f *fakeAuthRepo) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if u, ok := f.users[username]; ok {
		copy := *u
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAuthRepo) GetByID(ctx context.Context, id int64) (*models.User, error) {
	for _, u := range f.users {
		if u.ID == id {
			copy := *u
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAuthRepo) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	return nil
}

func (f *fakeAuthRepo) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	for _, u := range f.users {
		if u.ID == id {
			u.PasswordHash = passwordHash
		}
	}
	return nil
}

func (f *fakeAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	f.tokens[token.Token] = token
	return nil
}

func (f *fakeAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if t, ok := f.tokens[token]; ok {
		copy := *t
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	for _, t := range f.tokens {
		if t.ID == id {
			t.Revoked = true
		}
	}
	f.revoked = append(f.revoked, id)
	return nil
}

func (f *fakeAuthRepo) RevokeUserRefreshTokens(ctx context.Context, userID int64) error {
	for _, t := range f.tokens {
		if t.UserID == userID {
			t.Revoked = true
		}
	}
	return nil
}

func newAuthFixture(t *testing.T) (*AuthService, *fakeAuthRepo) {
	t.Helper()
	repo := newFakeAuthRepo()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret!"), bcrypt.MinCost)
	require.NoError(t, err)
	repo.users["liming"] = &models.User{
		ID:           8,
		Username:     "liming",
		Email:        "liming@campus.edu",
		PasswordHash: string(hash),
		FullName:     "Li Ming",
		Role:         models.RoleStudent,
		Status:       models.UserActive,
	}
	svc := NewAuthService(repo, nil, zap.NewNop(), AuthConfig{
		AccessTokenSecret:  "test-secret",
		AccessTokenExpiry:  15 * time.Minute,
		RefreshTokenExpiry: 24 * time.Hour,
		Issuer:             "activity-attendance-api",
	})
	return svc, repo
}

func TestLoginSuccess(t *testing.T) {
	svc, _ := newAuthFixture(t)

	resp, err := svc.Login(context.Background(), models.LoginRequest{Username: "liming", Password: "s3cret!"})
	require.NoError(t, err)
	assert.NotEmpty(t, resp.AccessToken)
	assert.NotEmpty(t, resp.RefreshToken)
	assert.Equal(t, int64(8), resp.User.ID)

	claims, err := svc.ParseAccessToken(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, int64(8), claims.UserID)
	assert.Equal(t, models.RoleStudent, claims.Role)
}

func TestLoginWrongPassword(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "liming", Password: "nope"})
	assertErrorCode(t, err, appErrors.ErrInvalidCredentials.Code)
}

func TestLoginUnknownUser(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "ghost", Password: "s3cret!"})
	assertErrorCode(t, err, appErrors.ErrInvalidCredentials.Code)
}

func TestLoginLockedAccount(t *testing.T) {
	svc, repo := newAuthFixture(t)
	repo.users["liming"].Status = models.UserLocked

	_, err := svc.Login(context.Background(), models.LoginRequest{Username: "liming", Password: "s3cret!"})
	assertErrorCode(t, err, appErrors.ErrInactiveAccount.Code)
}

func TestRefreshTokenRotation(t *testing.T) {
	svc, repo := newAuthFixture(t)
	resp, err := svc.Login(context.Background(), models.LoginRequest{Username: "liming", Password: "s3cret!"})
	require.NoError(t, err)

	refreshed, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: resp.RefreshToken})
	require.NoError(t, err)
	assert.NotEqual(t, resp.RefreshToken, refreshed.RefreshToken)

	// The used token is revoked and cannot be replayed.
	assert.True(t, repo.tokens[resp.RefreshToken].Revoked)
	_, err = svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: resp.RefreshToken})
	assertErrorCode(t, err, appErrors.ErrUnauthorized.Code)
}

func TestChangePassword(t *testing.T) {
	svc, _ := newAuthFixture(t)

	err := svc.ChangePassword(context.Background(), 8, models.ChangePasswordRequest{
		OldPassword: "s3cret!",
		NewPassword: "n3wpass!",
	})
	require.NoError(t, err)

	_, err = svc.Login(context.Background(), models.LoginRequest{Username: "liming", Password: "s3cret!"})
	require.Error(t, err)
	_, err = svc.Login(context.Background(), models.LoginRequest{Username: "liming", Password: "n3wpass!"})
	require.NoError(t, err)
}

func TestChangePasswordWrongOld(t *testing.T) {
	svc, _ := newAuthFixture(t)

	err := svc.ChangePassword(context.Background(), 8, models.ChangePasswordRequest{
		OldPassword: "wrong",
		NewPassword: "n3wpass!",
	})
	assertErrorCode(t, err, appErrors.ErrInvalidCredentials.Code)
}

func TestParseAccessTokenGarbage(t *testing.T) {
	svc, _ := newAuthFixture(t)

	_, err := svc.ParseAccessToken("not-a-token")
	assertErrorCode(t, err, appErrors.ErrUnauthorized.Code)
}
