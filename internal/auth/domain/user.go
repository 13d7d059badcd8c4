package domain

import "time"

// User is a principal record. The token service only reads
// active/locked/two-factor state; principal lifecycle (creation,
// deactivation, password resets) belongs to external user management.
type User struct {
	ID               string
	Email            string // unique, used as the login identifier
	PasswordHash     string // argon2id encoded
	Active           bool
	EmailConfirmed   bool
	TwoFactorEnabled bool
	TOTPSecret       *string // base32 encoded, nil unless two-factor is enrolled
	FailedAttempts   int
	LockoutUntil     *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// SignInResult reports the outcome of a first-factor password check.
// RequiresTwoFactor is only set when the password itself was correct.
type SignInResult struct {
	Succeeded         bool
	RequiresTwoFactor bool
	LockedOut         bool
}
