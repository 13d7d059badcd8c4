// Package service implements the token issuance and session lifecycle
// logic: password and two-factor login, refresh rotation, logout, and the
// background expiration sweep over persisted token fingerprints.
package service

import (
	"context"
	"crypto/subtle"
	"errors"
	"time"

	"github.com/northbeam/tokend/internal/auth/cache"
	"github.com/northbeam/tokend/internal/auth/domain"
	"github.com/northbeam/tokend/internal/auth/identity"
	"github.com/northbeam/tokend/pkg/cryptox"
	"github.com/northbeam/tokend/pkg/jwtx"
	"github.com/northbeam/tokend/pkg/slogx"
)

// Provider namespaces every token row this service writes, so rows from
// other authentication schemes can coexist in the same table.
const Provider = "SimpleJwt"

// Names of the per-user token rows the service maintains. Only fingerprints
// of tokens are stored under them, never the tokens themselves.
const (
	TokenNameRefresh  = "refresh"
	TokenNameMFALogin = "mfa_login"
)

// ErrUnauthorized is the single failure the service reports for any
// credential, token, or account-state problem. Collapsing the causes keeps
// the API from leaking which check failed.
var ErrUnauthorized = errors.New("service: unauthorized")

// TokenService owns the session lifecycle: it mints access/refresh pairs,
// drives the optional two-factor step, rotates refresh tokens, and revokes
// sessions on logout.
type TokenService struct {
	codec *jwtx.Codec
	store identity.Store
	cache *cache.TokenCache

	accessTTL  time.Duration
	refreshTTL time.Duration
	mfaTTL     time.Duration
}

func NewTokenService(codec *jwtx.Codec, store identity.Store, tokenCache *cache.TokenCache, accessTTL, refreshTTL, mfaTTL time.Duration) *TokenService {
	return &TokenService{
		codec:      codec,
		store:      store,
		cache:      tokenCache,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		mfaTTL:     mfaTTL,
	}
}

// LoginResult is the outcome of a successful first factor: either a full
// token pair, or a two-factor challenge the client must answer first.
// Exactly one of the fields is set.
type LoginResult struct {
	Challenge *domain.MFAChallenge
	Pair      *domain.TokenPair
}

// Login verifies the password and either issues a session or, for
// two-factor principals, a short-lived challenge token bound to the login
// email. All failures surface as ErrUnauthorized.
func (s *TokenService) Login(ctx context.Context, email, password string) (LoginResult, error) {
	log := slogx.FromContext(ctx)

	user, err := s.store.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, identity.ErrNotFound) {
			log.Error("login: user lookup failed", "error", err)
		}
		return LoginResult{}, ErrUnauthorized
	}

	if !user.Active {
		return LoginResult{}, ErrUnauthorized
	}

	allowed, err := s.store.CanSignIn(ctx, user)
	if err != nil {
		log.Error("login: sign-in gate check failed", "error", err)
		return LoginResult{}, ErrUnauthorized
	}
	if !allowed {
		return LoginResult{}, ErrUnauthorized
	}

	result, err := s.store.CheckPassword(ctx, user, password)
	if err != nil {
		log.Error("login: password check failed", "error", err)
		return LoginResult{}, ErrUnauthorized
	}

	switch {
	case result.LockedOut:
		log.Warn("login: account locked out", "user_id", user.ID)
		return LoginResult{}, ErrUnauthorized
	case result.RequiresTwoFactor:
		challenge, err := s.issueMFAChallenge(ctx, user)
		if err != nil {
			log.Error("login: issuing mfa challenge failed", "error", err)
			return LoginResult{}, ErrUnauthorized
		}
		return LoginResult{Challenge: &challenge}, nil
	case result.Succeeded:
		pair, err := s.issueSession(ctx, user)
		if err != nil {
			log.Error("login: issuing session failed", "error", err)
			return LoginResult{}, ErrUnauthorized
		}
		return LoginResult{Pair: &pair}, nil
	default:
		return LoginResult{}, ErrUnauthorized
	}
}

// Mfa answers a two-factor challenge. The presented challenge token must
// validate, match the stored fingerprint for the principal, and the code
// must verify. The challenge is single-use: it is consumed as soon as the
// fingerprint matches.
func (s *TokenService) Mfa(ctx context.Context, token, code string) (domain.TokenPair, error) {
	log := slogx.FromContext(ctx)

	claims, err := s.codec.Validate(token, jwtx.TokenTypeMFALogin)
	if err != nil {
		return domain.TokenPair{}, ErrUnauthorized
	}

	// The challenge token is bound to the login email, not the user id.
	user, err := s.store.FindByEmail(ctx, claims.Subject)
	if err != nil {
		if !errors.Is(err, identity.ErrNotFound) {
			log.Error("mfa: user lookup failed", "error", err)
		}
		return domain.TokenPair{}, ErrUnauthorized
	}

	if err := s.matchFingerprint(ctx, user.ID, TokenNameMFALogin, token); err != nil {
		return domain.TokenPair{}, ErrUnauthorized
	}

	// A matched challenge is consumed whether or not the code verifies. A
	// wrong guess costs the whole login, not just the second factor.
	s.discardToken(ctx, user.ID, TokenNameMFALogin)

	ok, err := s.store.TwoFactorSignIn(ctx, user, code)
	if err != nil {
		log.Error("mfa: code verification failed", "error", err)
		return domain.TokenPair{}, ErrUnauthorized
	}
	if !ok {
		return domain.TokenPair{}, ErrUnauthorized
	}

	pair, err := s.issueSession(ctx, user)
	if err != nil {
		log.Error("mfa: issuing session failed", "error", err)
		return domain.TokenPair{}, ErrUnauthorized
	}
	return pair, nil
}

// Refresh rotates a session. The presented refresh token must match the
// stored fingerprint for its subject and pass full validation; rotation
// overwrites the fingerprint, so each refresh token works at most once.
// A fingerprinted token that no longer validates is purged on the spot.
func (s *TokenService) Refresh(ctx context.Context, refreshToken string) (domain.TokenPair, error) {
	log := slogx.FromContext(ctx)

	// Unverified read, only to learn which principal to look up. Nothing is
	// granted until the fingerprint and signature checks below pass.
	unverified, err := s.codec.ReadUnverified(refreshToken)
	if err != nil {
		return domain.TokenPair{}, ErrUnauthorized
	}

	user, err := s.store.FindByID(ctx, unverified.Subject)
	if err != nil {
		if !errors.Is(err, identity.ErrNotFound) {
			log.Error("refresh: user lookup failed", "error", err)
		}
		return domain.TokenPair{}, ErrUnauthorized
	}

	if !user.Active {
		return domain.TokenPair{}, ErrUnauthorized
	}

	allowed, err := s.store.CanSignIn(ctx, user)
	if err != nil || !allowed {
		return domain.TokenPair{}, ErrUnauthorized
	}

	locked, err := s.store.IsLockedOut(ctx, user)
	if err != nil || locked {
		return domain.TokenPair{}, ErrUnauthorized
	}

	if err := s.matchFingerprint(ctx, user.ID, TokenNameRefresh, refreshToken); err != nil {
		return domain.TokenPair{}, ErrUnauthorized
	}

	if _, err := s.codec.Validate(refreshToken, jwtx.TokenTypeRefresh); err != nil {
		// Stored but no longer valid (typically expired). Purge the stale
		// fingerprint so the row does not linger until the sweeper runs.
		s.discardToken(ctx, user.ID, TokenNameRefresh)
		return domain.TokenPair{}, ErrUnauthorized
	}

	pair, err := s.issueSession(ctx, user)
	if err != nil {
		log.Error("refresh: issuing session failed", "error", err)
		return domain.TokenPair{}, ErrUnauthorized
	}
	return pair, nil
}

// Logout revokes the principal's session state: the refresh fingerprint and
// any outstanding two-factor challenge. Already-issued access tokens keep
// working until they expire.
func (s *TokenService) Logout(ctx context.Context, userID string) error {
	var errs []error
	for _, name := range []string{TokenNameRefresh, TokenNameMFALogin} {
		if err := s.store.RemoveAuthToken(ctx, userID, Provider, name); err != nil {
			errs = append(errs, err)
		}
		s.cache.Remove(name, userID)
	}
	return errors.Join(errs...)
}

// issueSession mints an access/refresh pair and persists the refresh
// token's fingerprint, replacing any previous session for the principal.
func (s *TokenService) issueSession(ctx context.Context, user domain.User) (domain.TokenPair, error) {
	access, err := s.codec.Issue(user.ID, jwtx.TokenTypeAccess, s.accessTTL)
	if err != nil {
		return domain.TokenPair{}, err
	}

	refresh, err := s.codec.Issue(user.ID, jwtx.TokenTypeRefresh, s.refreshTTL)
	if err != nil {
		return domain.TokenPair{}, err
	}

	fingerprint := cryptox.FingerprintToken(refresh)
	expiresAt := time.Now().UTC().Add(s.refreshTTL)

	if err := s.store.SetAuthToken(ctx, user.ID, Provider, TokenNameRefresh, fingerprint, &expiresAt); err != nil {
		return domain.TokenPair{}, err
	}
	s.cache.Set(TokenNameRefresh, user.ID, fingerprint, expiresAt)

	return domain.TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}

// issueMFAChallenge mints a short-lived challenge token bound to the login
// email and persists its fingerprint for the later Mfa call.
func (s *TokenService) issueMFAChallenge(ctx context.Context, user domain.User) (domain.MFAChallenge, error) {
	token, err := s.codec.Issue(user.Email, jwtx.TokenTypeMFALogin, s.mfaTTL)
	if err != nil {
		return domain.MFAChallenge{}, err
	}

	fingerprint := cryptox.FingerprintToken(token)
	expiresAt := time.Now().UTC().Add(s.mfaTTL)

	if err := s.store.SetAuthToken(ctx, user.ID, Provider, TokenNameMFALogin, fingerprint, &expiresAt); err != nil {
		return domain.MFAChallenge{}, err
	}
	s.cache.Set(TokenNameMFALogin, user.ID, fingerprint, expiresAt)

	return domain.MFAChallenge{TwoFactorRequired: true, Token: token}, nil
}

// matchFingerprint compares the presented token's fingerprint against the
// stored one, consulting the cache before the store. The cache is only a
// shortcut: a cached digest that does not match falls through to the
// persisted digest, which always wins.
func (s *TokenService) matchFingerprint(ctx context.Context, userID, name, token string) error {
	presented := cryptox.FingerprintToken(token)

	if cached, ok := s.cache.Get(name, userID); ok &&
		subtle.ConstantTimeCompare([]byte(cached), []byte(presented)) == 1 {
		return nil
	}

	stored, err := s.store.GetAuthToken(ctx, userID, Provider, name)
	if err != nil {
		if !errors.Is(err, identity.ErrNotFound) {
			slogx.FromContext(ctx).Error("token fingerprint lookup failed", "error", err)
		}
		s.cache.Remove(name, userID)
		return ErrUnauthorized
	}

	if subtle.ConstantTimeCompare([]byte(stored), []byte(presented)) != 1 {
		return ErrUnauthorized
	}

	// The cache entry was missing or stale; repair it from the store so the
	// next call hits. The absolute bound comes from the token's own expiry.
	if claims, err := s.codec.ReadUnverified(token); err == nil && claims.ExpiresAt != nil {
		s.cache.Set(name, userID, stored, claims.ExpiresAt.Time)
	} else {
		s.cache.Remove(name, userID)
	}
	return nil
}

// discardToken drops a stored token row and its cache entry, logging but
// otherwise ignoring store errors.
func (s *TokenService) discardToken(ctx context.Context, userID, name string) {
	if err := s.store.RemoveAuthToken(ctx, userID, Provider, name); err != nil {
		slogx.FromContext(ctx).Error("removing stored token failed", "name", name, "error", err)
	}
	s.cache.Remove(name, userID)
}
