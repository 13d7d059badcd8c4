package sqlite

import (
	"context"
	"errors"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/northbeam/tokend/internal/auth/domain"
	"github.com/northbeam/tokend/pkg/cryptox"
)

const userColumns = `id, email, password_hash, active, email_confirmed,
	two_factor_enabled, totp_secret, failed_attempts, lockout_until,
	created_at, updated_at`

func (s *Store) FindByEmail(ctx context.Context, email string) (domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return scanUser(row)
}

func (s *Store) FindByID(ctx context.Context, id string) (domain.User, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return scanUser(row)
}

// CreateUser inserts a new principal. The token service never calls this;
// it exists for seeding and tests, since registration is owned elsewhere.
func (s *Store) CreateUser(ctx context.Context, u domain.User) error {
	var totpSecret any
	if u.TOTPSecret != nil {
		totpSecret = *u.TOTPSecret
	}

	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash, active, email_confirmed,
			two_factor_enabled, totp_secret, failed_attempts, lockout_until,
			created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0, NULL, ?, ?)`,
		u.ID, u.Email, u.PasswordHash, u.Active, u.EmailConfirmed,
		u.TwoFactorEnabled, totpSecret, now, now,
	)
	return err
}

// CheckPassword verifies the first factor with lockout-on-failure. A
// correct password for a two-factor principal reports RequiresTwoFactor
// rather than Succeeded.
func (s *Store) CheckPassword(ctx context.Context, user domain.User, password string) (domain.SignInResult, error) {
	locked, err := s.IsLockedOut(ctx, user)
	if err != nil {
		return domain.SignInResult{}, err
	}
	if locked {
		return domain.SignInResult{LockedOut: true}, nil
	}

	if err := cryptox.VerifyPassword(password, user.PasswordHash); err != nil {
		if !errors.Is(err, cryptox.ErrPasswordMismatch) {
			return domain.SignInResult{}, err
		}
		lockedNow, err := s.recordFailedAttempt(ctx, user)
		if err != nil {
			return domain.SignInResult{}, err
		}
		return domain.SignInResult{LockedOut: lockedNow}, nil
	}

	if err := s.resetLockout(ctx, user.ID); err != nil {
		return domain.SignInResult{}, err
	}

	if user.TwoFactorEnabled {
		return domain.SignInResult{RequiresTwoFactor: true}, nil
	}
	return domain.SignInResult{Succeeded: true}, nil
}

func (s *Store) IsLockedOut(ctx context.Context, user domain.User) (bool, error) {
	var lockoutUntil *time.Time

	// Re-read so concurrent failures on another connection count.
	u, err := s.FindByID(ctx, user.ID)
	if err != nil {
		return false, err
	}
	lockoutUntil = u.LockoutUntil

	return lockoutUntil != nil && lockoutUntil.After(time.Now().UTC()), nil
}

func (s *Store) CanSignIn(ctx context.Context, user domain.User) (bool, error) {
	return user.EmailConfirmed, nil
}

// TwoFactorSignIn validates a TOTP code against the principal's enrolled
// secret. Failures count toward lockout just like password failures.
func (s *Store) TwoFactorSignIn(ctx context.Context, user domain.User, code string) (bool, error) {
	if !user.TwoFactorEnabled || user.TOTPSecret == nil || *user.TOTPSecret == "" {
		return false, nil
	}

	locked, err := s.IsLockedOut(ctx, user)
	if err != nil || locked {
		return false, err
	}

	if !totp.Validate(code, *user.TOTPSecret) {
		if _, err := s.recordFailedAttempt(ctx, user); err != nil {
			return false, err
		}
		return false, nil
	}

	if err := s.resetLockout(ctx, user.ID); err != nil {
		return false, err
	}
	return true, nil
}

// recordFailedAttempt bumps the failure counter and locks the account once
// the threshold is reached. Returns whether the account is now locked.
func (s *Store) recordFailedAttempt(ctx context.Context, user domain.User) (bool, error) {
	now := time.Now().UTC()

	var failed int
	err := s.db.QueryRowContext(ctx,
		`UPDATE users SET failed_attempts = failed_attempts + 1, updated_at = ?
		 WHERE id = ?
		 RETURNING failed_attempts`,
		now, user.ID,
	).Scan(&failed)
	if err != nil {
		return false, mapNotFound(err)
	}

	if failed < maxFailedAttempts {
		return false, nil
	}

	until := now.Add(lockoutDuration)
	_, err = s.db.ExecContext(ctx,
		`UPDATE users SET lockout_until = ?, failed_attempts = 0, updated_at = ? WHERE id = ?`,
		until, now, user.ID,
	)
	return true, err
}

func (s *Store) resetLockout(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE users SET failed_attempts = 0, lockout_until = NULL, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), userID,
	)
	return err
}
