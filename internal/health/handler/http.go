package handler

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"bookfair/backend/internal/httpx"
)

// checkTimeout bounds every dependency probe.
const checkTimeout = 2 * time.Second

// Pinger is satisfied by *sql.DB and *sqlx.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Checker reports the health of a non-database dependency such as the edge policy engine.
type Checker interface {
	HealthCheck(ctx context.Context) error
}

// Server reports readiness for load balancers and orchestrators.
type Server struct {
	pinger  Pinger
	checker Checker
	logger  *zap.Logger
}

// NewServer returns a health Server. pinger and checker may be nil; a nil dependency is not probed.
func NewServer(pinger Pinger, checker Checker, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{pinger: pinger, checker: checker, logger: logger}
}

// ServeHTTP answers 200 {"status":"ok"} when every configured dependency is reachable and
// 503 {"status":"unavailable"} otherwise.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkTimeout)
	defer cancel()
	if s.pinger != nil {
		if err := s.pinger.PingContext(ctx); err != nil {
			s.logger.Warn("health: database ping failed", zap.Error(err))
			httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	if s.checker != nil {
		if err := s.checker.HealthCheck(ctx); err != nil {
			s.logger.Warn("health: dependency check failed", zap.Error(err))
			httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
