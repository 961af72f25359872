// Package server builds the HTTP router and middleware stack shared by every service binary
// and runs it with graceful shutdown.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/unrolled/secure"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"bookfair/backend/internal/httpx"
	"bookfair/backend/internal/server/middleware"
	"bookfair/backend/internal/telemetry/metrics"
)

// Options configures NewRouter.
type Options struct {
	Logger *zap.Logger
	// RateLimitPerMinute is the per-IP request budget; zero disables rate limiting.
	RateLimitPerMinute int
	// RequestTimeout bounds each request's context; zero selects 30s.
	RequestTimeout time.Duration
	// Production enables the HTTPS redirect and HSTS.
	Production bool
	// Health, if set, is mounted at /healthz. Otherwise /healthz always reports ok.
	Health http.Handler
}

// NewRouter returns a chi router carrying the shared middleware stack plus /healthz and /metrics.
func NewRouter(opts Options) chi.Router {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := opts.RequestTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		SSLRedirect:        opts.Production,
		STSSeconds:         stsSeconds(opts.Production),
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:      !opts.Production,
	})

	r := chi.NewRouter()
	r.Use(
		chimw.RealIP,
		chimw.RequestID,
		middleware.RequestLogger(logger),
		chimw.Recoverer,
		chimw.Timeout(timeout),
		secureMiddleware.Handler,
		metrics.HTTPMetricsMiddleware,
	)
	if opts.RateLimitPerMinute > 0 {
		r.Use(httprate.Limit(opts.RateLimitPerMinute, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				httpx.Fail(w, http.StatusTooManyRequests, "too many requests")
			}),
		))
	}

	health := opts.Health
	if health == nil {
		health = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
		})
	}
	r.Method(http.MethodGet, "/healthz", health)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		httpx.Fail(w, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		httpx.Fail(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	return r
}

func stsSeconds(production bool) int64 {
	if production {
		return 31536000
	}
	return 0
}

// Run serves handler on addr until ctx is cancelled, then shuts down gracefully within drain.
// The handler is wrapped with otelhttp using serviceName as the operation name.
func Run(ctx context.Context, addr, serviceName string, handler http.Handler, drain time.Duration, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           otelhttp.NewHandler(handler, serviceName),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("http server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), drain)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
