// Package gateway implements the edge: stateless bearer-token authentication, the admin route
// policy and the reverse proxy to internal services.
package gateway

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"bookfair/backend/internal/httpx"
	"bookfair/backend/internal/security"
	"bookfair/backend/internal/server/middleware"
	"bookfair/backend/internal/telemetry/metrics"
)

// Edge decision labels.
const (
	DecisionPublic    = "public"
	DecisionAllowed   = "allowed"
	DecisionRejected  = "rejected"
	DecisionForbidden = "forbidden"
)

// TokenVerifier is satisfied by *security.TokenCodec.
type TokenVerifier interface {
	VerifyType(token string, want security.TokenType) (*security.VerifiedToken, error)
}

// Authorizer decides whether an authenticated caller may reach a path. *RoutePolicy satisfies it.
type Authorizer interface {
	Allow(ctx context.Context, path, role string) (bool, error)
}

// EdgeAuthenticator authenticates requests at the gateway. It checks the token signature and
// expiry only; session activity is not consulted.
type EdgeAuthenticator struct {
	verifier TokenVerifier
	public   *PathMatcher
	policy   Authorizer
	logger   *zap.Logger
}

// NewEdgeAuthenticator returns an EdgeAuthenticator. policy may be nil to allow every
// authenticated caller everywhere.
func NewEdgeAuthenticator(verifier TokenVerifier, public *PathMatcher, policy Authorizer, logger *zap.Logger) *EdgeAuthenticator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &EdgeAuthenticator{verifier: verifier, public: public, policy: policy, logger: logger}
}

// Middleware strips client-supplied identity headers from every request, lets public paths
// through and requires a valid ACCESS token everywhere else. Authenticated requests continue
// with X-User-Id and X-User-Role set from the token.
func (a *EdgeAuthenticator) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.Header.Del(middleware.HeaderUserID)
		r.Header.Del(middleware.HeaderUserRole)

		if a.public.Match(r.URL.Path) {
			metrics.ObserveEdgeDecision(DecisionPublic)
			next.ServeHTTP(w, r)
			return
		}

		token := middleware.BearerToken(r)
		if token == "" {
			a.reject(w, r, "Missing or invalid Authorization header")
			return
		}
		claims, err := a.verifier.VerifyType(token, security.TokenTypeAccess)
		if err != nil {
			a.reject(w, r, "Invalid or expired token")
			return
		}

		if a.policy != nil {
			allowed, err := a.policy.Allow(r.Context(), r.URL.Path, claims.Role)
			if err != nil {
				a.logger.Error("route policy evaluation failed", zap.String("path", r.URL.Path), zap.Error(err))
			}
			if err != nil || !allowed {
				metrics.ObserveEdgeDecision(DecisionForbidden)
				httpx.Fail(w, http.StatusForbidden, "Access denied")
				return
			}
		}

		metrics.ObserveEdgeDecision(DecisionAllowed)
		r.Header.Set(middleware.HeaderUserID, claims.Subject)
		r.Header.Set(middleware.HeaderUserRole, claims.Role)
		next.ServeHTTP(w, r.WithContext(middleware.WithIdentity(r.Context(), claims.Subject, claims.Role)))
	})
}

func (a *EdgeAuthenticator) reject(w http.ResponseWriter, r *http.Request, message string) {
	metrics.ObserveEdgeDecision(DecisionRejected)
	a.logger.Debug("edge rejected request", zap.String("path", r.URL.Path), zap.String("reason", message))
	httpx.Fail(w, http.StatusUnauthorized, message)
}
