package domain

import "time"

// TokenPair is what a successful login, MFA exchange, or refresh returns:
// a short-lived access token and the rotating refresh token.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
}

// MFAChallenge is the success-shaped outcome of a first factor that still
// needs a second one. Token is the short-lived mfa_login challenge token
// the client must present back together with the TOTP code.
type MFAChallenge struct {
	TwoFactorRequired bool   `json:"twoFactorRequired"` // always true
	Token             string `json:"token"`
}

// AuthToken is a named, provider-scoped value attached to a principal.
// At most one row exists per (user, provider, name); setting overwrites.
// Value holds a SHA-512 fingerprint, never a raw bearer string.
type AuthToken struct {
	UserID    string
	Provider  string
	Name      string
	Value     string
	ExpiresAt *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}
