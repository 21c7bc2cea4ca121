package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"planboard-backend/internal/middleware"
	"planboard-backend/internal/models"
	"planboard-backend/internal/repository"
)

func newAuthFixture(t *testing.T, allowRegistration bool) (*AuthService, *repository.MemorySessionRepo) {
	t.Helper()
	sessions := repository.NewMemorySessionRepo()
	svc := NewAuthService(repository.NewMemoryUserRepo(), sessions, middleware.NewJWTAuth("test-secret"), time.Hour, allowRegistration)
	svc.bcryptCost = bcrypt.MinCost
	return svc, sessions
}

func TestRegisterDefaultsToEditor(t *testing.T) {
	svc, _ := newAuthFixture(t, true)

	u, err := svc.Register(context.Background(), models.RegisterRequest{Username: "maya", Password: "password1"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleEditor, u.Role)
	assert.Nil(t, u.Email)
	assert.NotEqual(t, "password1", u.PasswordHash)
}

func TestRegisterValidation(t *testing.T) {
	svc, _ := newAuthFixture(t, true)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Username: "a b",
		Password: "short",
		Email:    strPtr("nope"),
		Role:     models.RoleAdmin,
	})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"email", "password", "role", "username"}, fieldNames(ve))
}

func TestPasswordLongerThanBcryptLimitIsRejected(t *testing.T) {
	svc, _ := newAuthFixture(t, true)
	ctx := context.Background()
	long := strings.Repeat("a", 80) + "1"

	_, err := svc.Register(ctx, models.RegisterRequest{Username: "maya", Password: long})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"password"}, fieldNames(ve))

	_, err = svc.Register(ctx, models.RegisterRequest{Username: "maya", Password: strings.Repeat("a", 71) + "1"})
	require.NoError(t, err, "72 bytes is accepted")

	resp, err := svc.Login(ctx, models.LoginRequest{Username: "maya", Password: strings.Repeat("a", 71) + "1"})
	require.NoError(t, err)
	auth, err := svc.ResolveSession(ctx, resp.SessionID)
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, auth, models.ChangePasswordRequest{CurrentPassword: strings.Repeat("a", 71) + "1", Password: long})
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "password")
}

func TestRegisterDuplicateUsername(t *testing.T) {
	svc, _ := newAuthFixture(t, true)
	ctx := context.Background()

	_, err := svc.Register(ctx, models.RegisterRequest{Username: "maya", Password: "password1"})
	require.NoError(t, err)

	_, err = svc.Register(ctx, models.RegisterRequest{Username: "maya", Password: "password2"})
	var ce *ConflictError
	require.ErrorAs(t, err, &ce)
}

func TestRegisterDisabled(t *testing.T) {
	svc, _ := newAuthFixture(t, false)

	_, err := svc.Register(context.Background(), models.RegisterRequest{Username: "maya", Password: "password1"})
	var fe *ForbiddenError
	require.ErrorAs(t, err, &fe)
}

func TestLoginIssuesSessionBoundToken(t *testing.T) {
	svc, _ := newAuthFixture(t, true)
	ctx := context.Background()

	_, err := svc.Register(ctx, models.RegisterRequest{Username: "maya", Password: "password1", Role: models.RoleViewer})
	require.NoError(t, err)

	resp, err := svc.Login(ctx, models.LoginRequest{Username: "maya", Password: "password1"})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Token)
	require.NotEmpty(t, resp.SessionID)

	claims, err := middleware.NewJWTAuth("test-secret").ParseToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, resp.SessionID, claims.SessionID)
	assert.Equal(t, resp.User.ID, claims.UserID)

	auth, err := svc.ResolveSession(ctx, resp.SessionID)
	require.NoError(t, err)
	require.True(t, auth.Authenticated())
	assert.Equal(t, models.RoleViewer, auth.Role)
	assert.False(t, auth.CanWrite())
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	svc, _ := newAuthFixture(t, true)
	ctx := context.Background()

	_, err := svc.Register(ctx, models.RegisterRequest{Username: "maya", Password: "password1"})
	require.NoError(t, err)

	var ue *UnauthorizedError
	_, err = svc.Login(ctx, models.LoginRequest{Username: "maya", Password: "password2"})
	require.ErrorAs(t, err, &ue)
	_, err = svc.Login(ctx, models.LoginRequest{Username: "ghost", Password: "password1"})
	require.ErrorAs(t, err, &ue)
}

func TestLogoutInvalidatesSession(t *testing.T) {
	svc, _ := newAuthFixture(t, true)
	ctx := context.Background()

	_, err := svc.Register(ctx, models.RegisterRequest{Username: "maya", Password: "password1"})
	require.NoError(t, err)
	resp, err := svc.Login(ctx, models.LoginRequest{Username: "maya", Password: "password1"})
	require.NoError(t, err)

	auth, err := svc.ResolveSession(ctx, resp.SessionID)
	require.NoError(t, err)
	require.NoError(t, svc.Logout(ctx, auth))

	_, err = svc.ResolveSession(ctx, resp.SessionID)
	assert.True(t, errors.Is(err, middleware.ErrInvalidSession))
}

func TestChangePasswordRevokesOtherSessions(t *testing.T) {
	svc, _ := newAuthFixture(t, true)
	ctx := context.Background()

	_, err := svc.Register(ctx, models.RegisterRequest{Username: "maya", Password: "password1"})
	require.NoError(t, err)
	first, err := svc.Login(ctx, models.LoginRequest{Username: "maya", Password: "password1"})
	require.NoError(t, err)
	second, err := svc.Login(ctx, models.LoginRequest{Username: "maya", Password: "password1"})
	require.NoError(t, err)

	auth, err := svc.ResolveSession(ctx, first.SessionID)
	require.NoError(t, err)

	err = svc.ChangePassword(ctx, auth, models.ChangePasswordRequest{CurrentPassword: "wrong1234", Password: "newpassword2"})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Contains(t, ve.Fields, "currentPassword")

	require.NoError(t, svc.ChangePassword(ctx, auth, models.ChangePasswordRequest{CurrentPassword: "password1", Password: "newpassword2"}))

	_, err = svc.ResolveSession(ctx, first.SessionID)
	require.NoError(t, err)
	_, err = svc.ResolveSession(ctx, second.SessionID)
	assert.True(t, errors.Is(err, middleware.ErrInvalidSession))

	_, err = svc.Login(ctx, models.LoginRequest{Username: "maya", Password: "newpassword2"})
	require.NoError(t, err)
}

func TestMeRequiresAuthentication(t *testing.T) {
	svc, _ := newAuthFixture(t, true)

	_, err := svc.Me(context.Background(), models.AuthContext{})
	var ue *UnauthorizedError
	require.ErrorAs(t, err, &ue)
}

func TestSeedAdminIsIdempotent(t *testing.T) {
	svc, _ := newAuthFixture(t, true)
	ctx := context.Background()

	require.NoError(t, svc.SeedAdmin(ctx, "root", "adminpass1"))
	require.NoError(t, svc.SeedAdmin(ctx, "root", "adminpass1"))

	resp, err := svc.Login(ctx, models.LoginRequest{Username: "root", Password: "adminpass1"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleAdmin, resp.User.Role)

	assert.Error(t, svc.SeedAdmin(ctx, "other", "weak"))
	assert.NoError(t, svc.SeedAdmin(ctx, "", ""))
}
