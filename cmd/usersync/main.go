// usersync keeps a local read model of users in sync with the lifecycle event topic and serves
// it read-only. Failed records are retried with backoff and then moved to "<topic>.DLT", which
// a second consumer group logs for operators. Set DATABASE_URL, KAFKA_ENABLED, KAFKA_BROKERS and
// KAFKA_GROUP_ID (one group per downstream service).
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"bookfair/backend/internal/config"
	"bookfair/backend/internal/db"
	healthhandler "bookfair/backend/internal/health/handler"
	"bookfair/backend/internal/logging"
	"bookfair/backend/internal/server"
	snapshothandler "bookfair/backend/internal/snapshot/handler"
	snapshotrepo "bookfair/backend/internal/snapshot/repository"
	snapshotservice "bookfair/backend/internal/snapshot/service"
	otelsetup "bookfair/backend/internal/telemetry/otel"
	"bookfair/backend/internal/userevents"
	"bookfair/backend/internal/userevents/consumer"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "usersync:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
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

	conn, err := db.OpenX(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer conn.Close()

	snapshots := snapshotservice.NewService(snapshotrepo.NewPostgresRepository(conn))

	router := server.NewRouter(server.Options{
		Logger:             logger,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		RequestTimeout:     cfg.RequestTimeout,
		Production:         cfg.IsProduction(),
		Health:             healthhandler.NewServer(conn, nil, logger),
	})
	snapshothandler.NewHandler(snapshots, logger).Routes(router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return server.Run(gctx, cfg.HTTPAddr, cfg.ServiceName, router, 10*time.Second, logger)
	})

	if cfg.KafkaEnabled {
		if err := startConsumers(gctx, g, cfg, snapshots, logger); err != nil {
			stop()
			_ = g.Wait()
			return err
		}
	} else {
		logger.Warn("KAFKA_ENABLED is false, user snapshots will not be updated")
	}

	if err := g.Wait(); err != nil && !errors.Is(err, consumer.ErrStopped) {
		return err
	}
	return nil
}

// startConsumers launches the snapshot workers and the dead-letter logger on g.
func startConsumers(ctx context.Context, g *errgroup.Group, cfg *config.Config, applier consumer.Applier, logger *zap.Logger) error {
	brokers := cfg.KafkaBrokersList()
	topic := cfg.UserEventsTopic
	dltTopic := userevents.DeadLetterTopic(topic)

	if err := userevents.EnsureTopics(ctx, brokers, userevents.DefaultPartitions, logger, topic, dltTopic); err != nil {
		logger.Warn("kafka topic bootstrap failed", zap.Error(err))
	}

	dlt, err := consumer.NewDLTWriter(brokers, dltTopic)
	if err != nil {
		return err
	}
	readers, err := consumer.NewReaders(consumer.ReaderConfig{
		Brokers: brokers,
		Topic:   topic,
		GroupID: cfg.KafkaGroupID,
		Workers: cfg.ConsumerConcurrency,
	})
	if err != nil {
		_ = dlt.Close()
		return err
	}
	dltReaders, err := consumer.NewReaders(consumer.ReaderConfig{
		Brokers: brokers,
		Topic:   dltTopic,
		GroupID: cfg.KafkaGroupID + "-dlt",
		Workers: 1,
	})
	if err != nil {
		_ = dlt.Close()
		for _, r := range readers {
			_ = r.Close()
		}
		return err
	}

	c := consumer.New(applier, dlt, consumer.RetryConfig{
		MaxAttempts:     cfg.RetryMaxAttempts,
		InitialInterval: cfg.RetryInitialInterval,
		MaxInterval:     cfg.RetryMaxInterval,
		Multiplier:      cfg.RetryMultiplier,
	}, logger)

	logger.Info("consuming user lifecycle events",
		zap.String("topic", topic), zap.String("group", cfg.KafkaGroupID), zap.Int("workers", len(readers)))
	g.Go(func() error {
		defer dlt.Close()
		return consumer.Run(ctx, readers, c.OnEvent, logger.Named("snapshot-consumer"))
	})
	g.Go(func() error {
		return consumer.Run(ctx, dltReaders, consumer.NewDeadLetterLogger(logger).Handle, logger.Named("dlt-consumer"))
	})
	return nil
}
