// Package telemetry holds the observability collaborators injected into components whose
// failures are recorded but never returned to the caller.
package telemetry

import (
	"context"

	"go.uber.org/zap"
)

// Failure describes a best-effort operation that failed.
type Failure struct {
	Component string
	Operation string
	Attrs     map[string]string
	Err       error
}

// Observer records best-effort failures. Implementations must not block for long and must not panic.
type Observer interface {
	Failure(ctx context.Context, f Failure)
}

// NewLogObserver returns an Observer that writes failures to logger at warn level.
func NewLogObserver(logger *zap.Logger) Observer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &logObserver{logger: logger}
}

type logObserver struct {
	logger *zap.Logger
}

func (o *logObserver) Failure(_ context.Context, f Failure) {
	fields := make([]zap.Field, 0, len(f.Attrs)+3)
	fields = append(fields, zap.String("component", f.Component), zap.String("operation", f.Operation))
	for k, v := range f.Attrs {
		fields = append(fields, zap.String(k, v))
	}
	fields = append(fields, zap.Error(f.Err))
	o.logger.Warn("best-effort operation failed", fields...)
}

// Multi fans a failure out to every non-nil observer.
func Multi(observers ...Observer) Observer {
	out := make(multiObserver, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			out = append(out, o)
		}
	}
	return out
}

type multiObserver []Observer

func (m multiObserver) Failure(ctx context.Context, f Failure) {
	for _, o := range m {
		o.Failure(ctx, f)
	}
}
