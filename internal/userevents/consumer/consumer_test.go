package consumer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookfair/backend/internal/userevents"
)

type countingApplier struct {
	mu      sync.Mutex
	calls   int
	failFor int
	err     error
	applied map[string]*userevents.UserLifecycleEvent
}

func (a *countingApplier) Apply(_ context.Context, e *userevents.UserLifecycleEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.calls <= a.failFor {
		return a.err
	}
	if a.applied == nil {
		a.applied = map[string]*userevents.UserLifecycleEvent{}
	}
	a.applied[e.UserID] = e
	return nil
}

type memDLT struct {
	mu       sync.Mutex
	failures int
	attempts int
	msgs     []kafka.Message
}

func (w *memDLT) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.attempts++
	if w.attempts <= w.failures {
		return errors.New("dlt unavailable")
	}
	w.msgs = append(w.msgs, msgs...)
	return nil
}

type sleepRecorder struct {
	waits []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.waits = append(s.waits, d)
	return ctx.Err()
}

func eventMessage(t *testing.T, userID string, partition int, offset int64) kafka.Message {
	t.Helper()
	e := &userevents.UserLifecycleEvent{EventID: "e-" + userID, EventType: userevents.EventUpdated, UserID: userID, Email: userID + "@x.com"}
	b, err := e.Encode()
	require.NoError(t, err)
	return kafka.Message{Topic: "user-events", Partition: partition, Offset: offset, Key: e.Key(), Value: b}
}

func testRetry() RetryConfig {
	return RetryConfig{MaxAttempts: 5, InitialInterval: time.Second, MaxInterval: time.Minute, Multiplier: 2}
}

func TestOnEvent_AppliesWithoutRetry(t *testing.T) {
	applier := &countingApplier{}
	dlt := &memDLT{}
	sleeps := &sleepRecorder{}
	c := New(applier, dlt, testRetry(), nil).WithSleep(sleeps.sleep)

	require.NoError(t, c.OnEvent(context.Background(), eventMessage(t, "u1", 0, 10)))

	assert.Equal(t, 1, applier.calls)
	assert.Contains(t, applier.applied, "u1")
	assert.Empty(t, dlt.msgs)
	assert.Empty(t, sleeps.waits)
}

func TestOnEvent_MalformedIsDropped(t *testing.T) {
	applier := &countingApplier{}
	dlt := &memDLT{}
	c := New(applier, dlt, testRetry(), nil)

	for _, value := range []string{`not json`, `{"eventId":"e1","eventType":"CREATED"}`} {
		msg := kafka.Message{Topic: "user-events", Partition: 1, Offset: 3, Value: []byte(value)}
		require.NoError(t, c.OnEvent(context.Background(), msg))
	}
	assert.Zero(t, applier.calls)
	assert.Empty(t, dlt.msgs)
}

func TestOnEvent_RetriesThenDeadLettersOnSamePartition(t *testing.T) {
	applier := &countingApplier{failFor: 100, err: errors.New("snapshot store down")}
	dlt := &memDLT{}
	sleeps := &sleepRecorder{}
	c := New(applier, dlt, testRetry(), nil).WithSleep(sleeps.sleep)

	orig := eventMessage(t, "u7", 2, 41)
	orig.Headers = []kafka.Header{{Key: userevents.HeaderEventType, Value: []byte("UPDATED")}}
	require.NoError(t, c.OnEvent(context.Background(), orig))

	assert.Equal(t, 5, applier.calls)
	assert.Equal(t, []time.Duration{time.Second, 2 * time.Second, 4 * time.Second, 8 * time.Second}, sleeps.waits)

	require.Len(t, dlt.msgs, 1)
	dl := dlt.msgs[0]
	assert.Zero(t, dl.Partition, "Partition is read-only on writes")
	assert.Equal(t, 2, SamePartition().Balance(dl, 0, 1, 2))
	assert.Empty(t, dl.Topic)
	assert.Equal(t, orig.Key, dl.Key)
	assert.Equal(t, orig.Value, dl.Value)

	got := func(k string) string {
		v, ok := HeaderValue(dl, k)
		require.True(t, ok, "missing header %s", k)
		return v
	}
	assert.Equal(t, "UPDATED", got(userevents.HeaderEventType))
	assert.Equal(t, "user-events", got(HeaderOriginalTopic))
	assert.Equal(t, "2", got(HeaderOriginalPartition))
	assert.Equal(t, "41", got(HeaderOriginalOffset))
	assert.Equal(t, "snapshot store down", got(HeaderExceptionMessage))
}

func TestOnEvent_RecoversBeforeExhaustingRetries(t *testing.T) {
	applier := &countingApplier{failFor: 2, err: errors.New("deadlock detected")}
	dlt := &memDLT{}
	sleeps := &sleepRecorder{}
	c := New(applier, dlt, testRetry(), nil).WithSleep(sleeps.sleep)

	require.NoError(t, c.OnEvent(context.Background(), eventMessage(t, "u1", 0, 1)))
	assert.Equal(t, 3, applier.calls)
	assert.Len(t, sleeps.waits, 2)
	assert.Empty(t, dlt.msgs)
}

func TestOnEvent_DeadLetterWriteIsRetriedUntilItSucceeds(t *testing.T) {
	applier := &countingApplier{failFor: 100, err: errors.New("boom")}
	dlt := &memDLT{failures: 2}
	sleeps := &sleepRecorder{}
	c := New(applier, dlt, RetryConfig{MaxAttempts: 1, InitialInterval: time.Millisecond, MaxInterval: time.Second, Multiplier: 2}, nil).
		WithSleep(sleeps.sleep)

	require.NoError(t, c.OnEvent(context.Background(), eventMessage(t, "u1", 1, 5)))
	assert.Equal(t, 3, dlt.attempts)
	assert.Len(t, dlt.msgs, 1)
	assert.Equal(t, []time.Duration{time.Millisecond, 2 * time.Millisecond}, sleeps.waits)
}

func TestOnEvent_ShutdownDuringDeadLetterLeavesRecordUncommitted(t *testing.T) {
	applier := &countingApplier{failFor: 100, err: errors.New("boom")}
	dlt := &memDLT{failures: 1000}
	ctx, cancel := context.WithCancel(context.Background())
	sleep := func(ctx context.Context, d time.Duration) error {
		cancel()
		return ctx.Err()
	}
	c := New(applier, dlt, RetryConfig{MaxAttempts: 1}, nil).WithSleep(sleep)

	err := c.OnEvent(ctx, eventMessage(t, "u1", 0, 9))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, dlt.msgs)
}

func TestRetryConfig_Backoff(t *testing.T) {
	cfg := RetryConfig{InitialInterval: time.Second, MaxInterval: 10 * time.Second, Multiplier: 3}
	assert.Equal(t, time.Second, cfg.Backoff(1))
	assert.Equal(t, 3*time.Second, cfg.Backoff(2))
	assert.Equal(t, 9*time.Second, cfg.Backoff(3))
	assert.Equal(t, 10*time.Second, cfg.Backoff(4))
	assert.Equal(t, 10*time.Second, cfg.Backoff(60))
	assert.Equal(t, time.Second, cfg.Backoff(0))
}

func TestSamePartition(t *testing.T) {
	b := SamePartition()
	partitions := []int{0, 1, 2}
	withOrigin := func(p string) kafka.Message {
		return kafka.Message{Key: []byte("u1"), Headers: []kafka.Header{{Key: HeaderOriginalPartition, Value: []byte(p)}}}
	}

	assert.Equal(t, 2, b.Balance(withOrigin("2"), partitions...))
	assert.Equal(t, 0, b.Balance(withOrigin("0"), partitions...))

	for _, msg := range []kafka.Message{withOrigin("7"), withOrigin("x"), {Key: []byte("u1"), Partition: 2}} {
		assert.Contains(t, partitions, b.Balance(msg, partitions...))
	}
	assert.Equal(t, (&kafka.Hash{}).Balance(kafka.Message{Key: []byte("u1")}, partitions...),
		b.Balance(kafka.Message{Key: []byte("u1"), Partition: 2}, partitions...),
		"Partition on the message is ignored")
}

func TestNew_ZeroRetryUsesDefaults(t *testing.T) {
	c := New(&countingApplier{}, &memDLT{}, RetryConfig{}, nil)
	assert.Equal(t, DefaultRetryConfig(), c.retry)

	c = New(&countingApplier{}, &memDLT{}, RetryConfig{InitialInterval: time.Second}, nil)
	assert.Equal(t, 1, c.retry.MaxAttempts)
}
