// Package consumer applies user lifecycle events to a downstream service's local store.
// Every record is retried with exponential backoff, then forwarded verbatim to the
// dead-letter topic on the same partition number, then committed.
package consumer

import (
	"context"
	"strconv"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"bookfair/backend/internal/telemetry/metrics"
	"bookfair/backend/internal/userevents"
)

// Dead-letter headers attached to every forwarded record.
const (
	HeaderOriginalTopic     = "kafka_dlt-original-topic"
	HeaderOriginalPartition = "kafka_dlt-original-partition"
	HeaderOriginalOffset    = "kafka_dlt-original-offset"
	HeaderExceptionMessage  = "kafka_dlt-exception-message"
)

// Applier applies one well-formed event. It must be idempotent: the same event may be applied
// more than once after a restart or a retried attempt.
type Applier interface {
	Apply(ctx context.Context, e *userevents.UserLifecycleEvent) error
}

// Consumer processes records from the user events topic.
type Consumer struct {
	applier Applier
	dlt     userevents.MessageWriter
	retry   RetryConfig
	sleep   SleepFunc
	logger  *zap.Logger
}

// New returns a Consumer that applies events with applier and dead-letters through dlt.
// A zero retry selects DefaultRetryConfig.
func New(applier Applier, dlt userevents.MessageWriter, retry RetryConfig, logger *zap.Logger) *Consumer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if retry == (RetryConfig{}) {
		retry = DefaultRetryConfig()
	}
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}
	return &Consumer{
		applier: applier,
		dlt:     dlt,
		retry:   retry,
		sleep:   sleepContext,
		logger:  logger,
	}
}

// WithSleep replaces the backoff wait. Used by tests.
func (c *Consumer) WithSleep(sleep SleepFunc) *Consumer {
	c.sleep = sleep
	return c
}

// OnEvent processes one record read from msg.Topic at msg.Partition/msg.Offset. A nil return
// means the record is done with (applied, dropped as malformed, or dead-lettered) and may be
// committed. A non-nil return only happens when ctx ends first.
func (c *Consumer) OnEvent(ctx context.Context, msg kafka.Message) error {
	log := c.logger.With(
		zap.String("topic", msg.Topic),
		zap.Int("partition", msg.Partition),
		zap.Int64("offset", msg.Offset),
	)
	event, err := userevents.Decode(msg.Value)
	if err != nil {
		log.Warn("dropping malformed user lifecycle event", zap.Error(err))
		metrics.ObserveConsume(metrics.ResultDropped)
		return nil
	}
	log = log.With(zap.String("event_type", string(event.EventType)), zap.String("user_id", event.UserID))
	log.Info("consuming user lifecycle event")

	var lastErr error
	for attempt := 1; attempt <= c.retry.MaxAttempts; attempt++ {
		if lastErr = c.applier.Apply(ctx, event); lastErr == nil {
			metrics.ObserveConsume(metrics.ResultUpserted)
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt == c.retry.MaxAttempts {
			break
		}
		backoff := c.retry.Backoff(attempt)
		log.Warn("applying event failed, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", c.retry.MaxAttempts),
			zap.Duration("backoff", backoff),
			zap.Error(lastErr),
		)
		metrics.ObserveRetry()
		if err := c.sleep(ctx, backoff); err != nil {
			return err
		}
	}

	log.Error("retries exhausted, forwarding to dead-letter topic", zap.Error(lastErr))
	if err := c.deadLetter(ctx, msg, lastErr, log); err != nil {
		return err
	}
	metrics.ObserveConsume(metrics.ResultDeadLettered)
	return nil
}

// deadLetter keeps retrying the forward until it succeeds or ctx ends; the record is never
// committed without reaching the dead-letter topic.
func (c *Consumer) deadLetter(ctx context.Context, msg kafka.Message, cause error, log *zap.Logger) error {
	dl := DeadLetterMessage(msg, cause)
	for attempt := 1; ; attempt++ {
		err := c.dlt.WriteMessages(ctx, dl)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		backoff := c.retry.Backoff(attempt)
		log.Error("dead-letter write failed, retrying", zap.Int("attempt", attempt), zap.Duration("backoff", backoff), zap.Error(err))
		if err := c.sleep(ctx, backoff); err != nil {
			return err
		}
	}
}

// DeadLetterMessage copies msg's key, value and headers and adds the dead-letter headers.
// SamePartition reads HeaderOriginalPartition to place it on the same partition number.
func DeadLetterMessage(msg kafka.Message, cause error) kafka.Message {
	reason := "unknown error"
	if cause != nil {
		reason = cause.Error()
	}
	headers := make([]kafka.Header, 0, len(msg.Headers)+4)
	headers = append(headers, msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: HeaderOriginalTopic, Value: []byte(msg.Topic)},
		kafka.Header{Key: HeaderOriginalPartition, Value: []byte(strconv.Itoa(msg.Partition))},
		kafka.Header{Key: HeaderOriginalOffset, Value: []byte(strconv.FormatInt(msg.Offset, 10))},
		kafka.Header{Key: HeaderExceptionMessage, Value: []byte(reason)},
	)
	return kafka.Message{
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	}
}

// HeaderValue returns the value of the first header named key.
func HeaderValue(msg kafka.Message, key string) (string, bool) {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value), true
		}
	}
	return "", false
}
