package userevents

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"bookfair/backend/internal/telemetry"
)

type recordingObserver struct {
	mu       sync.Mutex
	failures []telemetry.Failure
}

func (r *recordingObserver) Failure(_ context.Context, f telemetry.Failure) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures = append(r.failures, f)
}

func (r *recordingObserver) all() []telemetry.Failure {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]telemetry.Failure(nil), r.failures...)
}

func TestDispatcher_RunsTasksAndDrainsOnClose(t *testing.T) {
	d := NewDispatcher(3, 64, &recordingObserver{})
	var ran atomic.Int32
	for i := 0; i < 50; i++ {
		if err := d.Submit(Task{Operation: "t", Run: func(ctx context.Context) error {
			ran.Add(1)
			return nil
		}}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := d.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := ran.Load(); got != 50 {
		t.Errorf("ran = %d, want 50", got)
	}
	if err := d.Submit(Task{Run: func(context.Context) error { return nil }}); !errors.Is(err, ErrDispatcherClosed) {
		t.Errorf("Submit after Close: err = %v, want ErrDispatcherClosed", err)
	}
	if err := d.Close(ctx); err != nil {
		t.Errorf("second Close: %v", err)
	}
}

func TestDispatcher_QueueFullNeverBlocks(t *testing.T) {
	d := NewDispatcher(1, 1, &recordingObserver{})
	release := make(chan struct{})
	started := make(chan struct{})
	block := Task{Run: func(ctx context.Context) error {
		close(started)
		<-release
		return nil
	}}
	if err := d.Submit(block); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	<-started
	if err := d.Submit(Task{Run: func(context.Context) error { return nil }}); err != nil {
		t.Fatalf("Submit into free slot: %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- d.Submit(Task{Run: func(context.Context) error { return nil }}) }()
	select {
	case err := <-done:
		if !errors.Is(err, ErrQueueFull) {
			t.Errorf("Submit: err = %v, want ErrQueueFull", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Submit blocked on a full queue")
	}

	close(release)
	_ = d.Close(context.Background())
}

func TestDispatcher_FailuresGoToObserver(t *testing.T) {
	obs := &recordingObserver{}
	d := NewDispatcher(1, 4, obs)
	boom := errors.New("broker down")
	_ = d.Submit(Task{
		Operation: "publish",
		Attrs:     map[string]string{"event_type": "DELETED"},
		Run:       func(context.Context) error { return boom },
	})
	_ = d.Close(context.Background())

	failures := obs.all()
	if len(failures) != 1 {
		t.Fatalf("failures = %d, want 1", len(failures))
	}
	f := failures[0]
	if f.Operation != "publish" || f.Attrs["event_type"] != "DELETED" || !errors.Is(f.Err, boom) {
		t.Errorf("failure = %+v", f)
	}
}

func TestDispatcher_TaskContextIsDetachedAndBounded(t *testing.T) {
	d := NewDispatcher(1, 1, &recordingObserver{})
	deadline := make(chan bool, 1)
	_ = d.Submit(Task{Run: func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		deadline <- ok && ctx.Err() == nil
		return nil
	}})
	_ = d.Close(context.Background())
	if !<-deadline {
		t.Error("task context should carry a deadline and be live when the task starts")
	}
}
