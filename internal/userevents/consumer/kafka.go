package consumer

import (
	"errors"
	"slices"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
)

// ReaderConfig describes the group readers of one worker pool.
type ReaderConfig struct {
	Brokers []string
	Topic   string
	GroupID string
	Workers int
}

// NewReaders creates cfg.Workers group readers on cfg.Topic. Offsets are committed explicitly
// by the worker, one record at a time.
func NewReaders(cfg ReaderConfig) ([]Reader, error) {
	if len(cfg.Brokers) == 0 || cfg.Topic == "" || cfg.GroupID == "" {
		return nil, errors.New("consumer: brokers, topic and group id are required")
	}
	n := max(cfg.Workers, 1)
	readers := make([]Reader, 0, n)
	for range n {
		readers = append(readers, kafka.NewReader(kafka.ReaderConfig{
			Brokers:        cfg.Brokers,
			Topic:          cfg.Topic,
			GroupID:        cfg.GroupID,
			MinBytes:       1,
			MaxBytes:       10e6, // 10MB
			MaxWait:        time.Second,
			CommitInterval: 0,
			StartOffset:    kafka.FirstOffset,
		}))
	}
	return readers, nil
}

// SamePartition routes a dead-letter record to the partition named by its
// HeaderOriginalPartition header when the topic has it, falling back to the key hash otherwise.
func SamePartition() kafka.Balancer {
	hash := &kafka.Hash{}
	return kafka.BalancerFunc(func(msg kafka.Message, partitions ...int) int {
		if v, ok := HeaderValue(msg, HeaderOriginalPartition); ok {
			if p, err := strconv.Atoi(v); err == nil && slices.Contains(partitions, p) {
				return p
			}
		}
		return hash.Balance(msg, partitions...)
	})
}

// NewDLTWriter creates the dead-letter writer for topic.
func NewDLTWriter(brokers []string, dltTopic string) (*kafka.Writer, error) {
	if len(brokers) == 0 || dltTopic == "" {
		return nil, errors.New("consumer: brokers and dead-letter topic are required")
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        dltTopic,
		Balancer:     SamePartition(),
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 10 * time.Millisecond,
	}, nil
}
