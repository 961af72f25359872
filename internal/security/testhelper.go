package security

import "time"

// testSecret is an HMAC secret for unit tests only. Do not use in production.
const testSecret = "test-secret-0123456789abcdef-0123456789"

// NewTestCodec returns a TokenCodec using an embedded test secret, 15m access and 24h refresh validity.
// For unit tests only.
func NewTestCodec() *TokenCodec {
	key, err := NewSigningKey([]byte(testSecret))
	if err != nil {
		panic(err)
	}
	return NewTokenCodec(key, 15*time.Minute, 24*time.Hour)
}
