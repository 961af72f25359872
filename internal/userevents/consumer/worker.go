package consumer

import (
	"context"
	"errors"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Reader is the record source of one worker. *kafka.Reader satisfies it.
type Reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ProcessFunc handles one record. A nil return allows the record to be committed.
type ProcessFunc func(ctx context.Context, msg kafka.Message) error

// ErrStopped is returned by Run when every worker exited because ctx ended.
var ErrStopped = errors.New("consumer stopped")

// fetchErrorBackoff is the pause after a transient fetch or commit error.
const fetchErrorBackoff = time.Second

// Run starts one worker per reader and blocks until ctx ends or a worker fails. Each worker
// handles its records sequentially and commits each one after process returns nil. Readers are
// closed before Run returns. Returns ErrStopped on a clean shutdown.
func Run(ctx context.Context, readers []Reader, process ProcessFunc, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	g, gctx := errgroup.WithContext(ctx)
	for i, r := range readers {
		g.Go(func() error {
			defer r.Close()
			return work(gctx, r, process, logger.With(zap.Int("worker", i)))
		})
	}
	err := g.Wait()
	if err == nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return ErrStopped
	}
	return err
}

func work(ctx context.Context, r Reader, process ProcessFunc, logger *zap.Logger) error {
	logger.Info("consumer worker started")
	for {
		msg, err := r.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				logger.Info("consumer worker stopped")
				return ctx.Err()
			}
			logger.Warn("fetch failed", zap.Error(err))
			if err := sleepContext(ctx, fetchErrorBackoff); err != nil {
				return err
			}
			continue
		}
		if err := process(ctx, msg); err != nil {
			// Not committed: the record is redelivered to the group after restart.
			return err
		}
		for {
			err := r.CommitMessages(ctx, msg)
			if err == nil {
				break
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("commit failed, retrying", zap.Int64("offset", msg.Offset), zap.Error(err))
			if err := sleepContext(ctx, fetchErrorBackoff); err != nil {
				return err
			}
		}
	}
}
