// Package kafka listens for entity lookup publish events from the indexing pipeline.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// PublishEvent announces a new revision of a lookup document.
type PublishEvent struct {
	Bucket  string `json:"bucket"`
	Key     string `json:"key"`
	Version string `json:"version,omitempty"`
}

// Invalidator drops cached lookups named by an event.
type Invalidator interface {
	Invalidate(bucket, key, version string)
}

// reader is the slice of kafka.Reader the listener uses (ISP).
type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Config holds consumer settings.
type Config struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Listener consumes publish events and forwards them to an Invalidator.
type Listener struct {
	reader  reader
	target  Invalidator
	logger  *zap.Logger
	backoff time.Duration
}

// NewListener creates a consumer-group reader for cfg.Topic.
func NewListener(cfg Config, target Invalidator, logger *zap.Logger) *Listener {
	r := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		MinBytes:    1,
		MaxBytes:    1e6,
		StartOffset: kafka.LastOffset,
	})
	return newListener(r, target, logger.With(zap.String("component", "lookup-listener"), zap.String("topic", cfg.Topic)))
}

func newListener(r reader, target Invalidator, logger *zap.Logger) *Listener {
	return &Listener{reader: r, target: target, logger: logger, backoff: time.Second}
}

// Run consumes until ctx is cancelled, then closes the reader.
func (l *Listener) Run(ctx context.Context) error {
	defer func() {
		if err := l.reader.Close(); err != nil {
			l.logger.Warn("close reader", zap.Error(err))
		}
	}()
	l.logger.Info("lookup listener started")

	for {
		msg, err := l.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				l.logger.Info("lookup listener stopping", zap.Error(ctx.Err()))
				return nil
			}
			l.logger.Error("fetch message", zap.Error(err))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(l.backoff):
			}
			continue
		}

		if err := l.handle(msg); err != nil {
			// malformed events are committed so they don't block the partition
			l.logger.Warn("skip lookup event",
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
		}

		if err := l.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			l.logger.Error("commit message",
				zap.Int("partition", msg.Partition),
				zap.Int64("offset", msg.Offset),
				zap.Error(err),
			)
		}
	}
}

func (l *Listener) handle(msg kafka.Message) error {
	ev, err := DecodeEvent(msg.Value)
	if err != nil {
		return err
	}
	l.target.Invalidate(ev.Bucket, ev.Key, ev.Version)
	l.logger.Info("lookup invalidated",
		zap.String("bucket", ev.Bucket),
		zap.String("key", ev.Key),
		zap.String("version", ev.Version),
	)
	return nil
}

// DecodeEvent parses and validates a publish event.
func DecodeEvent(value []byte) (PublishEvent, error) {
	var ev PublishEvent
	if err := json.Unmarshal(value, &ev); err != nil {
		return PublishEvent{}, fmt.Errorf("decode publish event: %w", err)
	}
	if ev.Bucket == "" || ev.Key == "" {
		return PublishEvent{}, fmt.Errorf("publish event requires bucket and key")
	}
	return ev, nil
}
