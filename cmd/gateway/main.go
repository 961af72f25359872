// gateway is the edge: it authenticates bearer tokens, enforces the admin route policy and
// proxies to internal services. Set JWT_SECRET and GATEWAY_ROUTES.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bookfair/backend/internal/config"
	"bookfair/backend/internal/gateway"
	healthhandler "bookfair/backend/internal/health/handler"
	"bookfair/backend/internal/logging"
	"bookfair/backend/internal/security"
	"bookfair/backend/internal/server"
	otelsetup "bookfair/backend/internal/telemetry/otel"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "gateway:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if err := cfg.RequireSecret(); err != nil {
		return err
	}
	routes, err := cfg.Routes()
	if err != nil {
		return err
	}

	logger, err := logging.New(logging.Options{Level: cfg.LogLevel, Dev: cfg.LogDev, Service: cfg.ServiceName})
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	providers, err := otelsetup.NewProviders(ctx, cfg.OTLPEndpoint, cfg.ServiceName, cfg.OTLPInsecure, logger)
	if err != nil {
		return fmt.Errorf("telemetry: %w", err)
	}
	providers.SetGlobal()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = providers.Shutdown(shutdownCtx)
	}()

	key, err := security.NewSigningKey([]byte(cfg.JWTSecret))
	if err != nil {
		return err
	}
	codec := security.NewTokenCodec(key, cfg.AccessTTL(), cfg.RefreshTTL())

	public, err := gateway.NewPathMatcher(cfg.PublicPaths())
	if err != nil {
		return err
	}
	policy, err := gateway.NewRoutePolicy(ctx, cfg.AdminPaths())
	if err != nil {
		return err
	}
	proxy, err := gateway.NewProxy(routes, nil, logger)
	if err != nil {
		return err
	}
	edge := gateway.NewEdgeAuthenticator(codec, public, policy, logger)

	router := server.NewRouter(server.Options{
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		RequestTimeout:     cfg.RequestTimeout,
		Production:         cfg.IsProduction(),
		Health:             healthhandler.NewServer(nil, policy, logger),
	})
	router.With(edge.Middleware).Handle("/*", proxy)

	return server.Run(ctx, cfg.HTTPAddr, cfg.ServiceName, router, 10*time.Second, logger)
}
