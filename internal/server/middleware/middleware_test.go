package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestWithIdentity(t *testing.T) {
	ctx := WithIdentity(context.Background(), "u1", "ADMIN")
	id, ok := GetUserID(ctx)
	assert.True(t, ok)
	assert.Equal(t, "u1", id)
	role, ok := GetRole(ctx)
	assert.True(t, ok)
	assert.Equal(t, "ADMIN", role)

	_, ok = GetUserID(context.Background())
	assert.False(t, ok)
	_, ok = GetRole(WithIdentity(context.Background(), "u1", ""))
	assert.False(t, ok)
}

func TestBearerToken(t *testing.T) {
	cases := map[string]string{
		"":                  "",
		"Bearer":            "",
		"Basic abc":         "",
		"Bearer abc.def":    "abc.def",
		"bearer   abc.def ": "abc.def",
		"BEARER x":          "x",
	}
	for header, want := range cases {
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		if header != "" {
			r.Header.Set("Authorization", header)
		}
		assert.Equal(t, want, BearerToken(r), "header %q", header)
	}
}

func TestTrustedIdentity(t *testing.T) {
	var gotID, gotRole string
	var hasID bool
	h := TrustedIdentity(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotID, hasID = GetUserID(r.Context())
		gotRole, _ = GetRole(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	r.Header.Set(HeaderUserID, "u1")
	r.Header.Set(HeaderUserRole, "VENDOR")
	h.ServeHTTP(httptest.NewRecorder(), r)
	assert.True(t, hasID)
	assert.Equal(t, "u1", gotID)
	assert.Equal(t, "VENDOR", gotRole)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/users/me", nil))
	assert.False(t, hasID)
}

func TestRequestLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	h := RequestLogger(zap.New(core))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/auth/login", nil))

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	fields := entries[0].ContextMap()
	assert.Equal(t, "/api/auth/login", fields["path"])
	assert.EqualValues(t, http.StatusUnauthorized, fields["status"])
}
