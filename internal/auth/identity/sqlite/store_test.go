package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"

	"github.com/northbeam/tokend/internal/auth/domain"
	"github.com/northbeam/tokend/internal/auth/identity"
	"github.com/northbeam/tokend/pkg/cryptox"
	"github.com/northbeam/tokend/pkg/idx"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "test.db")
	store, err := NewStore(dsn)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	require.NoError(t, store.ApplyMigrations())
	return store
}

func seedUser(t *testing.T, store *Store, password string, twoFactorSecret string) domain.User {
	t.Helper()

	hash, err := cryptox.HashPassword(password)
	require.NoError(t, err)

	user := domain.User{
		ID:             idx.New().String(),
		Email:          idx.New().String() + "@example.com",
		PasswordHash:   hash,
		Active:         true,
		EmailConfirmed: true,
	}
	if twoFactorSecret != "" {
		user.TwoFactorEnabled = true
		user.TOTPSecret = &twoFactorSecret
	}

	require.NoError(t, store.CreateUser(context.Background(), user))

	// Re-read so timestamps and defaults come from the database.
	stored, err := store.FindByID(context.Background(), user.ID)
	require.NoError(t, err)
	return stored
}

func TestFindByEmail_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.FindByEmail(context.Background(), "nobody@example.com")
	require.ErrorIs(t, err, identity.ErrNotFound)
}

func TestCreateAndFindUser(t *testing.T) {
	store := newTestStore(t)
	user := seedUser(t, store, "pw", "")

	byEmail, err := store.FindByEmail(context.Background(), user.Email)
	require.NoError(t, err)
	require.Equal(t, user.ID, byEmail.ID)
	require.True(t, byEmail.Active)
	require.True(t, byEmail.EmailConfirmed)
	require.False(t, byEmail.TwoFactorEnabled)
	require.Nil(t, byEmail.TOTPSecret)
	require.Nil(t, byEmail.LockoutUntil)
}

func TestCheckPassword(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user := seedUser(t, store, "open sesame", "")

	result, err := store.CheckPassword(ctx, user, "open sesame")
	require.NoError(t, err)
	require.True(t, result.Succeeded)

	result, err = store.CheckPassword(ctx, user, "wrong")
	require.NoError(t, err)
	require.False(t, result.Succeeded)
	require.False(t, result.LockedOut)
}

func TestCheckPassword_TwoFactor(t *testing.T) {
	store := newTestStore(t)
	user := seedUser(t, store, "open sesame", "JBSWY3DPEHPK3PXP")

	result, err := store.CheckPassword(context.Background(), user, "open sesame")
	require.NoError(t, err)
	require.False(t, result.Succeeded)
	require.True(t, result.RequiresTwoFactor)
}

func TestCheckPassword_LockoutAfterRepeatedFailures(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user := seedUser(t, store, "open sesame", "")

	var result domain.SignInResult
	var err error
	for i := 0; i < maxFailedAttempts; i++ {
		result, err = store.CheckPassword(ctx, user, "wrong")
		require.NoError(t, err)
	}
	require.True(t, result.LockedOut)

	locked, err := store.IsLockedOut(ctx, user)
	require.NoError(t, err)
	require.True(t, locked)

	// Even the correct password is refused while locked.
	result, err = store.CheckPassword(ctx, user, "open sesame")
	require.NoError(t, err)
	require.False(t, result.Succeeded)
	require.True(t, result.LockedOut)
}

func TestCheckPassword_SuccessResetsFailureCounter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user := seedUser(t, store, "open sesame", "")

	for i := 0; i < maxFailedAttempts-1; i++ {
		_, err := store.CheckPassword(ctx, user, "wrong")
		require.NoError(t, err)
	}

	result, err := store.CheckPassword(ctx, user, "open sesame")
	require.NoError(t, err)
	require.True(t, result.Succeeded)

	stored, err := store.FindByID(ctx, user.ID)
	require.NoError(t, err)
	require.Zero(t, stored.FailedAttempts)
}

func TestTwoFactorSignIn(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	key, err := totp.Generate(totp.GenerateOpts{Issuer: "tokend-test", AccountName: "alice"})
	require.NoError(t, err)

	user := seedUser(t, store, "open sesame", key.Secret())

	code, err := totp.GenerateCode(key.Secret(), time.Now())
	require.NoError(t, err)

	ok, err := store.TwoFactorSignIn(ctx, user, code)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = store.TwoFactorSignIn(ctx, user, "000000")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestTwoFactorSignIn_NotEnrolled(t *testing.T) {
	store := newTestStore(t)
	user := seedUser(t, store, "open sesame", "")

	ok, err := store.TwoFactorSignIn(context.Background(), user, "123456")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestAuthTokens_UpsertAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user := seedUser(t, store, "pw", "")

	expires := time.Now().UTC().Add(time.Hour)
	require.NoError(t, store.SetAuthToken(ctx, user.ID, "SimpleJwt", "refresh", "digest-1", &expires))

	value, err := store.GetAuthToken(ctx, user.ID, "SimpleJwt", "refresh")
	require.NoError(t, err)
	require.Equal(t, "digest-1", value)

	// Same key overwrites instead of adding a second row.
	require.NoError(t, store.SetAuthToken(ctx, user.ID, "SimpleJwt", "refresh", "digest-2", &expires))

	value, err = store.GetAuthToken(ctx, user.ID, "SimpleJwt", "refresh")
	require.NoError(t, err)
	require.Equal(t, "digest-2", value)

	tokens, err := store.ListAuthTokens(ctx, "SimpleJwt", "refresh")
	require.NoError(t, err)
	require.Len(t, tokens, 1)
	require.NotNil(t, tokens[0].ExpiresAt)
}

func TestAuthTokens_GetMissing(t *testing.T) {
	store := newTestStore(t)
	user := seedUser(t, store, "pw", "")

	_, err := store.GetAuthToken(context.Background(), user.ID, "SimpleJwt", "refresh")
	require.ErrorIs(t, err, identity.ErrNotFound)
}

func TestAuthTokens_Remove(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user := seedUser(t, store, "pw", "")

	require.NoError(t, store.SetAuthToken(ctx, user.ID, "SimpleJwt", "refresh", "digest", nil))
	require.NoError(t, store.RemoveAuthToken(ctx, user.ID, "SimpleJwt", "refresh"))

	_, err := store.GetAuthToken(ctx, user.ID, "SimpleJwt", "refresh")
	require.ErrorIs(t, err, identity.ErrNotFound)

	// Removing again is a no-op.
	require.NoError(t, store.RemoveAuthToken(ctx, user.ID, "SimpleJwt", "refresh"))
}

func TestAuthTokens_BatchDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	past := time.Now().UTC().Add(-time.Hour)
	future := time.Now().UTC().Add(time.Hour)

	u1 := seedUser(t, store, "pw", "")
	u2 := seedUser(t, store, "pw", "")
	u3 := seedUser(t, store, "pw", "")

	require.NoError(t, store.SetAuthToken(ctx, u1.ID, "SimpleJwt", "refresh", "stale-1", &past))
	require.NoError(t, store.SetAuthToken(ctx, u2.ID, "SimpleJwt", "refresh", "stale-2", &past))
	require.NoError(t, store.SetAuthToken(ctx, u3.ID, "SimpleJwt", "refresh", "live", &future))

	tokens, err := store.ListAuthTokens(ctx, "SimpleJwt", "refresh")
	require.NoError(t, err)
	require.Len(t, tokens, 3)

	var stale []domain.AuthToken
	for _, tok := range tokens {
		if tok.ExpiresAt != nil && tok.ExpiresAt.Before(time.Now().UTC()) {
			stale = append(stale, tok)
		}
	}
	require.NoError(t, store.DeleteAuthTokens(ctx, stale))

	remaining, err := store.ListAuthTokens(ctx, "SimpleJwt", "refresh")
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, u3.ID, remaining[0].UserID)
}

func TestAuthTokens_CascadeOnUserDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	user := seedUser(t, store, "pw", "")

	require.NoError(t, store.SetAuthToken(ctx, user.ID, "SimpleJwt", "refresh", "digest", nil))

	_, err := store.db.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, user.ID)
	require.NoError(t, err)

	_, err = store.GetAuthToken(ctx, user.ID, "SimpleJwt", "refresh")
	require.ErrorIs(t, err, identity.ErrNotFound)
}
