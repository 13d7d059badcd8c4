package cryptox_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/northbeam/tokend/pkg/cryptox"
)

func TestFingerprintToken(t *testing.T) {
	fp := cryptox.FingerprintToken("hello")

	// SHA-512 hex is 128 characters.
	require.Len(t, fp, 128)
	require.Equal(t, fp, cryptox.FingerprintToken("hello"))
	require.NotEqual(t, fp, cryptox.FingerprintToken("hello2"))

	// Known vector for "hello".
	require.Equal(t,
		"9b71d224bd62f3785d96d46ad3ea3d73319bfbc2890caadae2dff72519673ca7"+
			"2323c3d99ba5c11d7c7acc6e14b8c5da0c4663475c2e5c3adef46f73bcdec043",
		fp,
	)
}
