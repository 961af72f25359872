package otel

import (
	"context"
	"time"

	otellog "go.opentelemetry.io/otel/log"
	sdklog "go.opentelemetry.io/otel/sdk/log"

	"bookfair/backend/internal/telemetry"
)

// instrumentationName is the OTel logger scope for best-effort failure records.
const instrumentationName = "bookfair.telemetry"

// recordEmitter is the part of otellog.Logger the observer needs.
type recordEmitter interface {
	Emit(ctx context.Context, rec otellog.Record)
}

// NewObserver returns a telemetry.Observer that emits failures as OTel log records via provider.
// If provider is nil, returns a no-op observer.
func NewObserver(provider *sdklog.LoggerProvider) telemetry.Observer {
	if provider == nil {
		return noopObserver{}
	}
	return NewObserverWithLogger(provider.Logger(instrumentationName))
}

// NewObserverWithLogger returns an observer that emits through logger. Used by tests.
func NewObserverWithLogger(logger recordEmitter) telemetry.Observer {
	return &otelObserver{logger: logger, now: func() time.Time { return time.Now().UTC() }}
}

type noopObserver struct{}

func (noopObserver) Failure(context.Context, telemetry.Failure) {}

type otelObserver struct {
	logger recordEmitter
	now    func() time.Time
}

// Failure converts the failure to a WARN log record with component, operation and attrs as attributes.
func (o *otelObserver) Failure(ctx context.Context, f telemetry.Failure) {
	rec := otellog.Record{}
	rec.SetTimestamp(o.now())
	rec.SetSeverity(otellog.SeverityWarn)
	rec.SetSeverityText("WARN")
	if f.Err != nil {
		rec.SetBody(otellog.StringValue(f.Err.Error()))
	}
	if f.Component != "" {
		rec.AddAttributes(otellog.String("component", f.Component))
	}
	if f.Operation != "" {
		rec.AddAttributes(otellog.String("operation", f.Operation))
	}
	for k, v := range f.Attrs {
		rec.AddAttributes(otellog.String(k, v))
	}
	o.logger.Emit(ctx, rec)
}
