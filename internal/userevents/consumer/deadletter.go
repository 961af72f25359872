package consumer

import (
	"context"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"bookfair/backend/internal/userevents"
)

// DeadLetterLogger reports records that reached the dead-letter topic. It reads the
// dead-letter topic with its own consumer group and never fails a record.
type DeadLetterLogger struct {
	logger *zap.Logger
}

// NewDeadLetterLogger returns a DeadLetterLogger writing to logger.
func NewDeadLetterLogger(logger *zap.Logger) *DeadLetterLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DeadLetterLogger{logger: logger}
}

// Handle logs msg at error level. It always returns nil.
func (d *DeadLetterLogger) Handle(_ context.Context, msg kafka.Message) error {
	fields := []zap.Field{
		zap.String("dlt_topic", msg.Topic),
		zap.Int64("dlt_offset", msg.Offset),
	}
	if e, err := userevents.Decode(msg.Value); err == nil {
		fields = append(fields, zap.String("user_id", e.UserID), zap.String("event_type", string(e.EventType)))
	}
	for _, h := range []string{HeaderOriginalTopic, HeaderOriginalPartition, HeaderOriginalOffset, HeaderExceptionMessage} {
		if v, ok := HeaderValue(msg, h); ok {
			fields = append(fields, zap.String(h, v))
		}
	}
	d.logger.Error("user lifecycle event routed to dead-letter topic, manual intervention required", fields...)
	return nil
}
