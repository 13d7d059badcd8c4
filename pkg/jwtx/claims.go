package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/northbeam/tokend/pkg/idx"
)

// Token type markers embedded in the token_type claim. Validators re-check
// the marker so an access token can never be replayed as a refresh token
// (or the other way around).
const (
	TokenTypeAccess   = "access"
	TokenTypeRefresh  = "refresh"
	TokenTypeMFALogin = "mfa_login"
)

// Claims are the claims this service mints and validates. Access and refresh
// tokens key sub on the principal id; MFA challenge tokens key sub on the
// email address, since no principal id is exposed before the second factor
// completes.
type Claims struct {
	jwt.RegisteredClaims

	TokenType string `json:"token_type,omitempty"`
}

// NewClaims builds minimally-correct claims for a token of the given type.
// The jti is a fresh ULID.
func NewClaims(subject, tokenType, issuer, audience string, ttl time.Duration, now time.Time) Claims {
	return Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{audience},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        idx.New().String(),
		},
		TokenType: tokenType,
	}
}
