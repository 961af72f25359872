package middleware

import (
	"net/http"
	"strings"
)

const bearerPrefix = "bearer "

// BearerToken returns the token of an "Authorization: Bearer <token>" header, or "" if the
// header is missing or malformed.
func BearerToken(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}

// TrustedIdentity copies the gateway identity headers into the request context. It never
// rejects: handlers that need an identity check GetUserID themselves.
func TrustedIdentity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(HeaderUserID))
		if userID == "" {
			next.ServeHTTP(w, r)
			return
		}
		role := strings.TrimSpace(r.Header.Get(HeaderUserRole))
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), userID, role)))
	})
}
