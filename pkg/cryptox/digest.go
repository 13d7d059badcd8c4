package cryptox

import (
	"crypto/sha512"
	"encoding/hex"
)

// FingerprintToken returns a deterministic SHA-512 hex fingerprint of a
// token string. Persisted token records store only this fingerprint, never
// the raw bearer string, so a leaked database does not leak live sessions.
//
// Hex keeps the value URL and cookie-name safe.
func FingerprintToken(token string) string {
	sum := sha512.Sum512([]byte(token))
	return hex.EncodeToString(sum[:])
}
