package jwtx_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/northbeam/tokend/pkg/jwtx"
)

const testIssuer = "tokend-test"
const testAudience = "tokend-api"

func newTestCodec(t *testing.T, previous []byte) *jwtx.Codec {
	t.Helper()
	codec, err := jwtx.NewCodec(jwtx.Config{
		Issuer:      testIssuer,
		Audience:    testAudience,
		CurrentKey:  []byte("0123456789abcdef0123456789abcdef"),
		PreviousKey: previous,
	})
	require.NoError(t, err)
	return codec
}

func TestNewCodecRejectsShortKeys(t *testing.T) {
	_, err := jwtx.NewCodec(jwtx.Config{
		Issuer:     testIssuer,
		Audience:   testAudience,
		CurrentKey: []byte("too-short"),
	})
	require.ErrorIs(t, err, jwtx.ErrKeyTooShort)

	_, err = jwtx.NewCodec(jwtx.Config{
		Issuer:      testIssuer,
		Audience:    testAudience,
		CurrentKey:  []byte("0123456789abcdef0123456789abcdef"),
		PreviousKey: []byte("short"),
	})
	require.ErrorIs(t, err, jwtx.ErrKeyTooShort)
}

func TestIssueAndValidate(t *testing.T) {
	codec := newTestCodec(t, nil)

	token, err := codec.Issue("user-1", jwtx.TokenTypeAccess, time.Minute)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := codec.Validate(token, jwtx.TokenTypeAccess)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, jwtx.TokenTypeAccess, claims.TokenType)
	require.Equal(t, testIssuer, claims.Issuer)
	require.NotEmpty(t, claims.ID)
}

func TestValidateRejectsWrongTokenType(t *testing.T) {
	codec := newTestCodec(t, nil)

	token, err := codec.Issue("user-1", jwtx.TokenTypeAccess, time.Minute)
	require.NoError(t, err)

	_, err = codec.Validate(token, jwtx.TokenTypeRefresh)
	require.ErrorIs(t, err, jwtx.ErrInvalidToken)
}

func TestValidateRejectsExpiredToken(t *testing.T) {
	codec := newTestCodec(t, nil)

	// Expiry beyond the default leeway.
	token, err := codec.Issue("user-1", jwtx.TokenTypeRefresh, -2*time.Minute)
	require.NoError(t, err)

	_, err = codec.Validate(token, jwtx.TokenTypeRefresh)
	require.ErrorIs(t, err, jwtx.ErrInvalidToken)
}

func TestValidateAcceptsPreviousKeyDuringRotation(t *testing.T) {
	oldKey := []byte("oldkey-0123456789abcdef0123456789")
	oldCodec, err := jwtx.NewCodec(jwtx.Config{
		Issuer:     testIssuer,
		Audience:   testAudience,
		CurrentKey: oldKey,
	})
	require.NoError(t, err)

	token, err := oldCodec.Issue("user-1", jwtx.TokenTypeRefresh, time.Minute)
	require.NoError(t, err)

	// Rotated: old key demoted to previous, new key signs.
	rotated := newTestCodec(t, oldKey)
	claims, err := rotated.Validate(token, jwtx.TokenTypeRefresh)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
}

func TestValidateRejectsUnknownKey(t *testing.T) {
	strangerCodec, err := jwtx.NewCodec(jwtx.Config{
		Issuer:     testIssuer,
		Audience:   testAudience,
		CurrentKey: []byte("stranger-0123456789abcdef0123456"),
	})
	require.NoError(t, err)

	token, err := strangerCodec.Issue("user-1", jwtx.TokenTypeAccess, time.Minute)
	require.NoError(t, err)

	codec := newTestCodec(t, []byte("previous-0123456789abcdef0123456"))
	_, err = codec.Validate(token, jwtx.TokenTypeAccess)
	require.ErrorIs(t, err, jwtx.ErrInvalidToken)
}

func TestValidateRejectsWrongIssuerAndAudience(t *testing.T) {
	other, err := jwtx.NewCodec(jwtx.Config{
		Issuer:     "someone-else",
		Audience:   testAudience,
		CurrentKey: []byte("0123456789abcdef0123456789abcdef"),
	})
	require.NoError(t, err)

	token, err := other.Issue("user-1", jwtx.TokenTypeAccess, time.Minute)
	require.NoError(t, err)

	codec := newTestCodec(t, nil)
	_, err = codec.Validate(token, jwtx.TokenTypeAccess)
	require.ErrorIs(t, err, jwtx.ErrInvalidToken)
}

func TestReadUnverified(t *testing.T) {
	codec := newTestCodec(t, nil)

	token, err := codec.Issue("user-42", jwtx.TokenTypeRefresh, time.Minute)
	require.NoError(t, err)

	claims, err := codec.ReadUnverified(token)
	require.NoError(t, err)
	require.Equal(t, "user-42", claims.Subject)
	require.Equal(t, jwtx.TokenTypeRefresh, claims.TokenType)

	_, err = codec.ReadUnverified("not-a-jwt")
	require.ErrorIs(t, err, jwtx.ErrMalformed)
}
