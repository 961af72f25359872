package userevents

import (
	"context"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"bookfair/backend/internal/telemetry"
	"bookfair/backend/internal/telemetry/metrics"
	userdomain "bookfair/backend/internal/user/domain"
)

// MessageWriter is the transport used by the Publisher. *kafka.Writer satisfies it.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

// Submitter queues background work. *Dispatcher satisfies it.
type Submitter interface {
	Submit(t Task) error
}

// Publisher turns user changes into lifecycle events and hands them to the dispatcher.
// Publishing never fails the caller: every error is reported to the Observer.
type Publisher struct {
	enabled    bool
	writer     MessageWriter
	dispatcher Submitter
	observer   telemetry.Observer
	logger     *zap.Logger
	now        func() time.Time
}

// NewPublisher returns a Publisher. When enabled is false, Publish is a silent no-op and writer
// and dispatcher may be nil.
func NewPublisher(enabled bool, writer MessageWriter, dispatcher Submitter, observer telemetry.Observer, logger *zap.Logger) *Publisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if observer == nil {
		observer = telemetry.NewLogObserver(logger)
	}
	return &Publisher{
		enabled:    enabled && writer != nil && dispatcher != nil,
		writer:     writer,
		dispatcher: dispatcher,
		observer:   observer,
		logger:     logger,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Publish snapshots u into an event of type t and queues it for delivery.
func (p *Publisher) Publish(ctx context.Context, u *userdomain.User, t EventType) {
	if p == nil || !p.enabled || u == nil {
		return
	}
	event := NewEvent(u, t, p.now())
	attrs := map[string]string{
		"event_type": string(t),
		"event_id":   event.EventID,
		"email":      u.Email,
	}
	payload, err := event.Encode()
	if err != nil {
		p.fail(ctx, "encode", attrs, err)
		return
	}
	msg := kafka.Message{
		Key:     event.Key(),
		Value:   payload,
		Headers: []kafka.Header{{Key: HeaderEventType, Value: []byte(t)}},
	}
	err = p.dispatcher.Submit(Task{
		Operation: "publish",
		Attrs:     attrs,
		Run: func(ctx context.Context) error {
			if err := p.writer.WriteMessages(ctx, msg); err != nil {
				metrics.ObservePublish(string(t), metrics.ResultFailed)
				return err
			}
			metrics.ObservePublish(string(t), metrics.ResultOK)
			p.logger.Debug("user lifecycle event published",
				zap.String("event_type", string(t)), zap.String("user_id", u.ID))
			return nil
		},
	})
	if err != nil {
		p.fail(ctx, "enqueue", attrs, err)
	}
}

func (p *Publisher) fail(ctx context.Context, op string, attrs map[string]string, err error) {
	metrics.ObservePublish(attrs["event_type"], metrics.ResultDropped)
	p.observer.Failure(ctx, telemetry.Failure{Component: "userevents", Operation: op, Attrs: attrs, Err: err})
}
