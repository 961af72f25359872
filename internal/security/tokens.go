package security

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrVerificationFailed is the single outcome of a failed Verify. Malformed, tampered, expired
// and wrongly-typed tokens are indistinguishable to the caller.
var ErrVerificationFailed = errors.New("token verification failed")

// ErrInvalidTokenRequest is returned by Issue for an empty subject, non-positive validity or unknown type.
var ErrInvalidTokenRequest = errors.New("invalid token request")

// TokenType marks a token as an access or a refresh credential.
type TokenType string

const (
	TokenTypeAccess  TokenType = "ACCESS"
	TokenTypeRefresh TokenType = "REFRESH"
)

// Claims holds the JWT claims carried by every bearer token.
type Claims struct {
	jwt.RegisteredClaims
	Role string    `json:"role,omitempty"`
	Type TokenType `json:"type"`
}

// VerifiedToken is the result of a successful Verify.
type VerifiedToken struct {
	Subject   string
	Role      string
	Type      TokenType
	ExpiresAt time.Time
}

// TokenPair is an access/refresh pair issued on login, registration or refresh.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// TokenCodec signs and verifies HS256 bearer tokens with an immutable SigningKey.
// Verification is pure: it never consults session state.
type TokenCodec struct {
	key        *SigningKey
	accessTTL  time.Duration
	refreshTTL time.Duration
	now        func() time.Time
}

// NewTokenCodec returns a TokenCodec that signs with key. accessTTL and refreshTTL are used by IssuePair.
func NewTokenCodec(key *SigningKey, accessTTL, refreshTTL time.Duration) *TokenCodec {
	return &TokenCodec{
		key:        key,
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// WithClock returns a copy of the codec that reads time from now. Used by tests.
func (c *TokenCodec) WithClock(now func() time.Time) *TokenCodec {
	cp := *c
	cp.now = now
	return &cp
}

// AccessTTL returns the configured access token validity.
func (c *TokenCodec) AccessTTL() time.Duration { return c.accessTTL }

// Issue signs a token for subject. role is only embedded for ACCESS tokens; a REFRESH token
// never carries a role, so the role must be re-resolved from the user at refresh time.
func (c *TokenCodec) Issue(subject, role string, tokenType TokenType, validity time.Duration) (string, time.Time, error) {
	if subject == "" || validity <= 0 {
		return "", time.Time{}, ErrInvalidTokenRequest
	}
	if tokenType != TokenTypeAccess && tokenType != TokenTypeRefresh {
		return "", time.Time{}, ErrInvalidTokenRequest
	}
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, err
	}
	now := c.now()
	expiresAt := now.Add(validity)
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Type: tokenType,
	}
	if tokenType == TokenTypeAccess {
		claims.Role = role
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key.bytes())
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// IssuePair issues an ACCESS token carrying role and a REFRESH token without it.
func (c *TokenCodec) IssuePair(subject, role string) (*TokenPair, error) {
	access, accessExp, err := c.Issue(subject, role, TokenTypeAccess, c.accessTTL)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := c.Issue(subject, "", TokenTypeRefresh, c.refreshTTL)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// Verify checks signature and expiry together and returns the embedded claims.
// Every failure returns ErrVerificationFailed.
func (c *TokenCodec) Verify(tokenString string) (*VerifiedToken, error) {
	if tokenString == "" {
		return nil, ErrVerificationFailed
	}
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrVerificationFailed
		}
		return c.key.bytes(), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, ErrVerificationFailed
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.Subject == "" || claims.ExpiresAt == nil {
		return nil, ErrVerificationFailed
	}
	if claims.Type != TokenTypeAccess && claims.Type != TokenTypeRefresh {
		return nil, ErrVerificationFailed
	}
	return &VerifiedToken{
		Subject:   claims.Subject,
		Role:      claims.Role,
		Type:      claims.Type,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// VerifyType is Verify plus a check that the token is of the expected type.
func (c *TokenCodec) VerifyType(tokenString string, want TokenType) (*VerifiedToken, error) {
	v, err := c.Verify(tokenString)
	if err != nil {
		return nil, err
	}
	if v.Type != want {
		return nil, ErrVerificationFailed
	}
	return v, nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
