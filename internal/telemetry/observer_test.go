package telemetry

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type countingObserver struct {
	mu    sync.Mutex
	calls []Failure
}

func (c *countingObserver) Failure(_ context.Context, f Failure) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, f)
}

func TestLogObserver_WritesFields(t *testing.T) {
	core, logs := observer.New(zap.WarnLevel)
	obs := NewLogObserver(zap.New(core))

	obs.Failure(context.Background(), Failure{
		Component: "userevents",
		Operation: "publish",
		Attrs:     map[string]string{"event_type": "CREATED", "email": "a@x.com"},
		Err:       errors.New("broker unavailable"),
	})

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("log entries = %d, want 1", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["component"] != "userevents" || fields["operation"] != "publish" {
		t.Errorf("fields = %v", fields)
	}
	if fields["event_type"] != "CREATED" || fields["email"] != "a@x.com" {
		t.Errorf("attrs missing: %v", fields)
	}
	if fields["error"] != "broker unavailable" {
		t.Errorf("error = %v", fields["error"])
	}
}

func TestNewLogObserver_NilLogger(t *testing.T) {
	NewLogObserver(nil).Failure(context.Background(), Failure{Err: errors.New("x")})
}

func TestMulti_FansOutAndSkipsNil(t *testing.T) {
	a, b := &countingObserver{}, &countingObserver{}
	m := Multi(a, nil, b)
	m.Failure(context.Background(), Failure{Operation: "op"})
	if len(a.calls) != 1 || len(b.calls) != 1 {
		t.Errorf("calls = %d, %d; want 1, 1", len(a.calls), len(b.calls))
	}
}
