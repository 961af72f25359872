package security

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// TokenDigest returns the hex-encoded SHA-256 of a bearer token. Sessions store and look up
// tokens by digest so the raw credentials never sit in the table.
func TokenDigest(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// NewOpaqueToken returns 32 bytes from crypto/rand encoded as unpadded base64url.
// Used for password reset tokens.
func NewOpaqueToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
