package directory_test

import (
	"context"
	"testing"
	"time"

	authsession "github.com/goliatone/go-auth-session"
	"github.com/goliatone/go-auth-session/directory"
	"github.com/goliatone/go-auth-session/internal/sqlite"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var fixedNow = time.Date(2025, 3, 4, 10, 0, 0, 0, time.UTC)

func setupDirectory(t *testing.T) *directory.Directory {
	t.Helper()
	db, err := sqlite.Open(sqlite.MemoryDSN, sqlite.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	dir := directory.New(db,
		directory.WithBcryptCost(bcrypt.MinCost),
		directory.WithClock(func() time.Time { return fixedNow }),
	)
	require.NoError(t, dir.Migrate(context.Background()))
	return dir
}

func registerAdmin(t *testing.T, dir *directory.Directory) *authsession.User {
	t.Helper()
	user, err := dir.Register(context.Background(), directory.Registration{
		Email:    "Admin@X.com",
		Password: "secret-pass",
		FullName: "Ada Admin",
		Role:     authsession.RoleMasterAdmin,
	})
	require.NoError(t, err)
	return user
}

func TestRegister(t *testing.T) {
	dir := setupDirectory(t)
	user := registerAdmin(t, dir)

	assert.NotEmpty(t, user.ID)
	assert.Equal(t, "admin@x.com", user.Email)
	assert.Equal(t, authsession.RoleMasterAdmin, user.Role)
	assert.True(t, user.IsActive)
	assert.Equal(t, authsession.DefaultTimezone, user.Timezone)
	assert.Equal(t, authsession.DefaultLanguage, user.Language)
	assert.True(t, user.CreatedAt.Equal(fixedNow))

	fetched, err := dir.Get(context.Background(), user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, fetched.Email)

	byEmail, err := dir.GetByEmail(context.Background(), "ADMIN@x.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)
}

func TestRegisterRejectsDuplicatesAndInvalidInput(t *testing.T) {
	dir := setupDirectory(t)
	registerAdmin(t, dir)
	ctx := context.Background()

	_, err := dir.Register(ctx, directory.Registration{
		Email:    "admin@x.com",
		Password: "another-pass",
		FullName: "Someone Else",
		Role:     authsession.RoleHotelStaff,
	})
	assert.ErrorIs(t, err, directory.ErrEmailTaken)

	tests := []struct {
		name string
		reg  directory.Registration
	}{
		{"bad email", directory.Registration{Email: "nope", Password: "long-enough", FullName: "N", Role: authsession.RoleHotelStaff}},
		{"short password", directory.Registration{Email: "a@b.com", Password: "short", FullName: "N", Role: authsession.RoleHotelStaff}},
		{"unknown role", directory.Registration{Email: "a@b.com", Password: "long-enough", FullName: "N", Role: "client"}},
		{"missing name", directory.Registration{Email: "a@b.com", Password: "long-enough", Role: authsession.RoleHotelStaff}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := dir.Register(ctx, tt.reg)
			assert.Error(t, err)
		})
	}
}

func TestVerifyCredentials(t *testing.T) {
	dir := setupDirectory(t)
	admin := registerAdmin(t, dir)
	ctx := context.Background()

	user, err := dir.VerifyCredentials(ctx, authsession.Credentials{Identifier: "admin@x.com", Secret: "secret-pass"})
	require.NoError(t, err)
	assert.Equal(t, admin.ID, user.ID)

	_, err = dir.VerifyCredentials(ctx, authsession.Credentials{Identifier: "admin@x.com", Secret: "wrong"})
	assert.ErrorIs(t, err, authsession.ErrInvalidCredentials)
	assert.Equal(t, authsession.CodeInvalidCredentials, authsession.CodeOf(err))

	_, err = dir.VerifyCredentials(ctx, authsession.Credentials{Identifier: "ghost@x.com", Secret: "secret-pass"})
	assert.ErrorIs(t, err, authsession.ErrInvalidCredentials)
}

func TestVerifyCredentialsInactive(t *testing.T) {
	dir := setupDirectory(t)
	admin := registerAdmin(t, dir)
	ctx := context.Background()

	require.NoError(t, dir.SetActive(ctx, admin.ID, false))

	_, err := dir.VerifyCredentials(ctx, authsession.Credentials{Identifier: "admin@x.com", Secret: "secret-pass"})
	assert.ErrorIs(t, err, authsession.ErrInactiveAccount)

	// a wrong password never reveals the account status
	_, err = dir.VerifyCredentials(ctx, authsession.Credentials{Identifier: "admin@x.com", Secret: "wrong"})
	assert.ErrorIs(t, err, authsession.ErrInvalidCredentials)
}

func TestRevalidate(t *testing.T) {
	dir := setupDirectory(t)
	admin := registerAdmin(t, dir)
	ctx := context.Background()

	user, err := dir.Revalidate(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, admin.Email, user.Email)

	require.NoError(t, dir.SetActive(ctx, admin.ID, false))
	_, err = dir.Revalidate(ctx, admin.ID)
	assert.ErrorIs(t, err, authsession.ErrSessionRejected)

	require.NoError(t, dir.SetActive(ctx, admin.ID, true))
	require.NoError(t, dir.Delete(ctx, admin.ID))
	_, err = dir.Revalidate(ctx, admin.ID)
	assert.ErrorIs(t, err, authsession.ErrSessionRejected)
}

func TestAdminOpsUnknownAccount(t *testing.T) {
	dir := setupDirectory(t)
	ctx := context.Background()

	assert.ErrorIs(t, dir.SetActive(ctx, "missing", false), directory.ErrAccountNotFound)
	assert.ErrorIs(t, dir.Delete(ctx, "missing"), directory.ErrAccountNotFound)
	_, err := dir.Get(ctx, "missing")
	assert.ErrorIs(t, err, directory.ErrAccountNotFound)

	unknown := uuid.NewString()
	assert.ErrorIs(t, dir.SetActive(ctx, unknown, false), directory.ErrAccountNotFound)
	assert.ErrorIs(t, dir.Delete(ctx, unknown), directory.ErrAccountNotFound)
	_, err = dir.Get(ctx, unknown)
	assert.ErrorIs(t, err, directory.ErrAccountNotFound)
}

func TestAccountsRepository(t *testing.T) {
	db, err := sqlite.Open(sqlite.MemoryDSN, sqlite.Options{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	dir := directory.New(db, directory.WithBcryptCost(bcrypt.MinCost))
	require.NoError(t, dir.Migrate(context.Background()))
	user := registerAdmin(t, dir)

	repo := directory.NewAccountsRepository(db)
	ctx := context.Background()

	byEmail, err := repo.GetByIdentifier(ctx, "admin@x.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID.String())
	assert.True(t, byEmail.IsActive)

	byID, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "admin@x.com", byID.Email)
	assert.NotEmpty(t, byID.PasswordHash)

	updated, err := dir.ChangePassword(ctx, user.ID, "secret-pass", "new-secret-pass")
	require.NoError(t, err)
	assert.Equal(t, user.ID, updated.ID)

	reloaded, err := repo.GetByID(ctx, user.ID)
	require.NoError(t, err)
	assert.NotEqual(t, byID.PasswordHash, reloaded.PasswordHash)
}

func TestUpdateProfile(t *testing.T) {
	dir := setupDirectory(t)
	admin := registerAdmin(t, dir)
	ctx := context.Background()

	user, err := dir.UpdateProfile(ctx, admin.ID, authsession.ProfileUpdate{
		FullName:    authsession.StringPtr("Ada Lovelace"),
		Phone:       authsession.StringPtr("(650) 253-0000"),
		Timezone:    authsession.StringPtr("Europe/London"),
		Preferences: map[string]any{"theme": "dark"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", user.FullName)
	assert.Equal(t, "+16502530000", user.Phone)
	assert.Equal(t, "Europe/London", user.Timezone)
	assert.Equal(t, "dark", user.Preferences["theme"])

	stored, err := dir.Get(ctx, admin.ID)
	require.NoError(t, err)
	assert.Equal(t, "+16502530000", stored.Phone)
	assert.Equal(t, "dark", stored.Preferences["theme"])
	assert.Equal(t, "admin@x.com", stored.Email)
}

func TestUpdateProfileRejections(t *testing.T) {
	dir := setupDirectory(t)
	admin := registerAdmin(t, dir)
	ctx := context.Background()

	_, err := dir.UpdateProfile(ctx, admin.ID, authsession.ProfileUpdate{Phone: authsession.StringPtr("12")})
	assert.ErrorIs(t, err, authsession.ErrUpdateRejected)
	assert.Equal(t, authsession.CodeUpdateRejected, authsession.CodeOf(err))

	_, err = dir.UpdateProfile(ctx, "missing", authsession.ProfileUpdate{FullName: authsession.StringPtr("X")})
	assert.ErrorIs(t, err, authsession.ErrUpdateRejected)

	require.NoError(t, dir.SetActive(ctx, admin.ID, false))
	_, err = dir.UpdateProfile(ctx, admin.ID, authsession.ProfileUpdate{FullName: authsession.StringPtr("X")})
	assert.ErrorIs(t, err, authsession.ErrInactiveAccount)
}

func TestChangePassword(t *testing.T) {
	dir := setupDirectory(t)
	admin := registerAdmin(t, dir)
	ctx := context.Background()

	_, err := dir.ChangePassword(ctx, admin.ID, "wrong", "new-secret-pass")
	assert.ErrorIs(t, err, authsession.ErrInvalidCredentials)

	_, err = dir.ChangePassword(ctx, admin.ID, "secret-pass", "short")
	assert.ErrorIs(t, err, authsession.ErrUpdateRejected)

	_, err = dir.ChangePassword(ctx, admin.ID, "secret-pass", "new-secret-pass")
	require.NoError(t, err)

	_, err = dir.VerifyCredentials(ctx, authsession.Credentials{Identifier: "admin@x.com", Secret: "secret-pass"})
	assert.ErrorIs(t, err, authsession.ErrInvalidCredentials)

	_, err = dir.VerifyCredentials(ctx, authsession.Credentials{Identifier: "admin@x.com", Secret: "new-secret-pass"})
	assert.NoError(t, err)
}
