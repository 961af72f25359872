// authservice serves registration, login, token refresh, logout, password reset and profile
// management, and publishes user lifecycle events. Set DATABASE_URL and JWT_SECRET; set
// KAFKA_ENABLED and KAFKA_BROKERS to publish events.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"bookfair/backend/internal/config"
	"bookfair/backend/internal/db"
	healthhandler "bookfair/backend/internal/health/handler"
	identityhandler "bookfair/backend/internal/identity/handler"
	identityservice "bookfair/backend/internal/identity/service"
	"bookfair/backend/internal/logging"
	resetrepo "bookfair/backend/internal/passwordreset/repository"
	resetservice "bookfair/backend/internal/passwordreset/service"
	"bookfair/backend/internal/security"
	"bookfair/backend/internal/server"
	sessionrepo "bookfair/backend/internal/session/repository"
	"bookfair/backend/internal/telemetry"
	otelsetup "bookfair/backend/internal/telemetry/otel"
	userrepo "bookfair/backend/internal/user/repository"
	"bookfair/backend/internal/userevents"
)

const httpDrain = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "authservice:", err)
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
	if err := cfg.RequireDatabase(); err != nil {
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
	observer := telemetry.Multi(telemetry.NewLogObserver(logger), otelsetup.NewObserver(providers.LoggerProvider))

	conn, err := db.OpenX(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer conn.Close()

	key, err := security.NewSigningKey([]byte(cfg.JWTSecret))
	if err != nil {
		return err
	}
	codec := security.NewTokenCodec(key, cfg.AccessTTL(), cfg.RefreshTTL())
	hasher := security.NewHasher(cfg.BcryptCost)
	users := userrepo.NewPostgresRepository(conn)
	sessions := sessionrepo.NewPostgresRepository(conn)
	resetTokens := resetrepo.NewPostgresRepository(conn)

	var writer userevents.MessageWriter
	if cfg.KafkaEnabled {
		brokers := cfg.KafkaBrokersList()
		topic := cfg.UserEventsTopic
		if err := userevents.EnsureTopics(ctx, brokers, userevents.DefaultPartitions, logger, topic, userevents.DeadLetterTopic(topic)); err != nil {
			logger.Warn("kafka topic bootstrap failed", zap.Error(err))
		}
		kw, err := userevents.NewKafkaWriter(brokers, topic)
		if err != nil {
			return fmt.Errorf("kafka writer: %w", err)
		}
		defer kw.Close()
		writer = kw
		logger.Info("publishing user lifecycle events", zap.String("topic", topic), zap.Strings("brokers", brokers))
	}

	// Registered after the writer so the queue drains before the writer closes.
	dispatcher := userevents.NewDispatcher(cfg.PublishWorkers, cfg.PublishQueueSize, observer)
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), userevents.ShutdownDrainDuration)
		defer cancel()
		if err := dispatcher.Close(drainCtx); err != nil {
			logger.Warn("event dispatcher did not drain", zap.Error(err))
		}
	}()
	publisher := userevents.NewPublisher(cfg.KafkaEnabled, writer, dispatcher, observer, logger)

	auth := identityservice.NewAuthService(users, sessions, hasher, codec, publisher, logger)
	reset := resetservice.NewResetService(
		users, resetTokens, hasher,
		resetservice.NewLoggingNotifier(logger, cfg.PasswordResetEnabled),
		resetservice.Options{Enabled: cfg.PasswordResetEnabled, TTL: cfg.PasswordResetTTL, BaseURL: cfg.PasswordResetBaseURL},
		logger,
	)

	router := server.NewRouter(server.Options{
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		RequestTimeout:     cfg.RequestTimeout,
		Production:         cfg.IsProduction(),
		Health:             healthhandler.NewServer(conn, nil, logger),
	})
	identityhandler.NewHandler(auth, reset, logger).Routes(router)

	return server.Run(ctx, cfg.HTTPAddr, cfg.ServiceName, router, httpDrain, logger)
}
