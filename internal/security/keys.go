package security

import (
	"errors"
)

// ErrInvalidKey is returned when the signing secret is missing or too short.
var ErrInvalidKey = errors.New("invalid key")

// MinKeyLen is the minimum HMAC-SHA256 key length in bytes.
const MinKeyLen = 32

// SigningKey is an immutable HMAC key. It is built once at startup from configuration and
// shared by reference; the bytes are copied on construction so later changes to the source
// slice cannot alter the key.
type SigningKey struct {
	secret []byte
}

// NewSigningKey copies secret into a new SigningKey. Returns ErrInvalidKey when secret is
// shorter than MinKeyLen.
func NewSigningKey(secret []byte) (*SigningKey, error) {
	if len(secret) < MinKeyLen {
		return nil, ErrInvalidKey
	}
	b := make([]byte, len(secret))
	copy(b, secret)
	return &SigningKey{secret: b}, nil
}

// bytes returns the key material for the signer/verifier. Unexported so nothing outside the
// package can read or mutate it.
func (k *SigningKey) bytes() []byte {
	return k.secret
}
