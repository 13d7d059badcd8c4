package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinKeyBytes is the minimum symmetric key length. HS512 keys below 256
// bits are trivially brute-forceable.
const MinKeyBytes = 32

// DefaultLeeway allows small clock skew when validating exp/nbf.
const DefaultLeeway = 1 * time.Minute

var (
	ErrInvalidToken = errors.New("jwtx: invalid token")
	ErrMalformed    = errors.New("jwtx: malformed token")
	ErrKeyTooShort  = errors.New("jwtx: signing key must be at least 256 bits")
)

// Config is the immutable configuration a Codec is built from. CurrentKey
// is always used for signing; PreviousKey, when set, is additionally
// accepted for verification so tokens minted before a key rotation stay
// valid until they expire.
type Config struct {
	Issuer      string
	Audience    string
	CurrentKey  []byte
	PreviousKey []byte // optional rotation window key
	Leeway      time.Duration
}

// Codec issues and validates signed, time-boxed bearer tokens (HS512).
type Codec struct {
	issuer   string
	audience string
	signKey  []byte
	keys     jwt.VerificationKeySet
	leeway   time.Duration
	parser   *jwt.Parser
}

func NewCodec(cfg Config) (*Codec, error) {
	if cfg.Issuer == "" {
		return nil, errors.New("jwtx: issuer is required")
	}
	if cfg.Audience == "" {
		return nil, errors.New("jwtx: audience is required")
	}
	if len(cfg.CurrentKey) < MinKeyBytes {
		return nil, fmt.Errorf("%w: current key is %d bytes", ErrKeyTooShort, len(cfg.CurrentKey))
	}

	keys := jwt.VerificationKeySet{Keys: []jwt.VerificationKey{cfg.CurrentKey}}
	if cfg.PreviousKey != nil {
		if len(cfg.PreviousKey) < MinKeyBytes {
			return nil, fmt.Errorf("%w: previous key is %d bytes", ErrKeyTooShort, len(cfg.PreviousKey))
		}
		keys.Keys = append(keys.Keys, jwt.VerificationKey(cfg.PreviousKey))
	}

	leeway := cfg.Leeway
	if leeway <= 0 {
		leeway = DefaultLeeway
	}

	return &Codec{
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		signKey:  cfg.CurrentKey,
		keys:     keys,
		leeway:   leeway,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}),
			jwt.WithIssuer(cfg.Issuer),
			jwt.WithAudience(cfg.Audience),
			jwt.WithLeeway(leeway),
			jwt.WithExpirationRequired(),
		),
	}, nil
}

// Issue mints a signed token of the given type, expiring ttl from now.
// Signing always uses the current key, never the previous one.
func (c *Codec) Issue(subject, tokenType string, ttl time.Duration) (string, error) {
	claims := NewClaims(subject, tokenType, c.issuer, c.audience, ttl, time.Now().UTC())
	token := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)
	return token.SignedString(c.signKey)
}

// Validate verifies the signature against the active key set, checks
// issuer/audience/expiry, and requires the token_type claim to equal
// wantType. Every failure mode collapses into ErrInvalidToken; callers
// must not grant anything on the specifics, only log them.
func (c *Codec) Validate(tokenString, wantType string) (Claims, error) {
	var claims Claims
	_, err := c.parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (any, error) {
		return c.keys, nil
	})
	if err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if claims.TokenType != wantType {
		return Claims{}, fmt.Errorf("%w: token_type mismatch", ErrInvalidToken)
	}

	return claims, nil
}

// ReadUnverified parses the token structure without checking the signature.
// It exists only to extract the subject for a store lookup ahead of a full
// Validate call and must never authorize anything by itself.
func (c *Codec) ReadUnverified(tokenString string) (Claims, error) {
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(tokenString, &claims); err != nil {
		return Claims{}, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return claims, nil
}
