package userevents

import (
	"context"
	"errors"
	"sync"
	"time"

	"bookfair/backend/internal/telemetry"
	"bookfair/backend/internal/telemetry/metrics"
)

// taskTimeout is the max time allowed for a single dispatched task.
const taskTimeout = 5 * time.Second

// ShutdownDrainDuration is how long the binaries wait for the dispatcher to drain on shutdown.
// Must be >= taskTimeout.
const ShutdownDrainDuration = 2 * taskTimeout

var (
	// ErrQueueFull is returned by Submit when the bounded queue has no free slot.
	ErrQueueFull = errors.New("dispatcher queue is full")
	// ErrDispatcherClosed is returned by Submit after Close.
	ErrDispatcherClosed = errors.New("dispatcher is closed")
)

// Task is a best-effort unit of background work.
type Task struct {
	Operation string
	Attrs     map[string]string
	Run       func(ctx context.Context) error
}

// Dispatcher runs tasks on a fixed set of workers fed by a bounded queue. Submit never blocks;
// task failures go to the Observer and are never returned to the submitter.
type Dispatcher struct {
	mu       sync.RWMutex
	closed   bool
	queue    chan Task
	wg       sync.WaitGroup
	observer telemetry.Observer
	timeout  time.Duration
}

// NewDispatcher starts workers goroutines reading from a queue of queueSize slots.
func NewDispatcher(workers, queueSize int, observer telemetry.Observer) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}
	if observer == nil {
		observer = telemetry.NewLogObserver(nil)
	}
	d := &Dispatcher{
		queue:    make(chan Task, queueSize),
		observer: observer,
		timeout:  taskTimeout,
	}
	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.work()
	}
	return d
}

// Submit enqueues t without blocking.
func (d *Dispatcher) Submit(t Task) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrDispatcherClosed
	}
	select {
	case d.queue <- t:
		metrics.SetDispatchQueueDepth(len(d.queue))
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting tasks and waits for queued tasks to finish or ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for t := range d.queue {
		metrics.SetDispatchQueueDepth(len(d.queue))
		d.run(t)
	}
}

// run uses a fresh context so the submitting request's cancellation does not abort the task.
func (d *Dispatcher) run(t Task) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := t.Run(ctx); err != nil {
		d.observer.Failure(ctx, telemetry.Failure{
			Component: "userevents",
			Operation: t.Operation,
			Attrs:     t.Attrs,
			Err:       err,
		})
	}
}
