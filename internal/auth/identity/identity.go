// Package identity defines the narrow capability interface the token
// service consumes for principals and their named authentication tokens.
// Concrete drivers (sqlite today) implement it; tests use an in-memory
// fake. Keeping the surface small avoids dragging a full identity
// framework into the token state machine.
package identity

import (
	"context"
	"errors"
	"time"

	"github.com/northbeam/tokend/internal/auth/domain"
)

var ErrNotFound = errors.New("identity: not found")

// Store persists users and their named per-user authentication tokens and
// exposes password, lockout, and two-factor checks.
type Store interface {
	// FindByEmail returns the principal with the given login email.
	FindByEmail(ctx context.Context, email string) (domain.User, error)

	// FindByID returns a principal by id.
	FindByID(ctx context.Context, id string) (domain.User, error)

	// CheckPassword verifies the first factor, counting failures toward
	// lockout. A correct password for a two-factor principal reports
	// RequiresTwoFactor instead of Succeeded.
	CheckPassword(ctx context.Context, user domain.User, password string) (domain.SignInResult, error)

	// IsLockedOut reports whether the principal is currently locked out.
	IsLockedOut(ctx context.Context, user domain.User) (bool, error)

	// CanSignIn reports whether the principal is allowed to sign in at all
	// (e.g. email confirmed).
	CanSignIn(ctx context.Context, user domain.User) (bool, error)

	// TwoFactorSignIn verifies a second-factor code for the principal.
	TwoFactorSignIn(ctx context.Context, user domain.User, code string) (bool, error)

	// GetAuthToken returns the stored value for (user, provider, name), or
	// ErrNotFound.
	GetAuthToken(ctx context.Context, userID, provider, name string) (string, error)

	// SetAuthToken upserts the single (user, provider, name) row. expiresAt
	// lets the expiration sweeper judge staleness without parsing values.
	SetAuthToken(ctx context.Context, userID, provider, name, value string, expiresAt *time.Time) error

	// RemoveAuthToken deletes the (user, provider, name) row if present.
	RemoveAuthToken(ctx context.Context, userID, provider, name string) error

	// ListAuthTokens returns every stored token with the given provider and
	// name, across all users. Used by the expiration sweeper.
	ListAuthTokens(ctx context.Context, provider, name string) ([]domain.AuthToken, error)

	// DeleteAuthTokens removes the given token rows as one batch.
	DeleteAuthTokens(ctx context.Context, tokens []domain.AuthToken) error

	// Ping verifies the backing store is reachable.
	Ping(ctx context.Context) error
}
