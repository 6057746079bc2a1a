package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/obsidianstack/slacknotify/pkg/types"
	"github.com/obsidianstack/slacknotify/server/internal/config"
)

const (
	// maxWait bounds how long a fetch waits for new data.
	maxWait = 500 * time.Millisecond

	// retryDelay is the pause after a failed fetch or commit.
	retryDelay = time.Second
)

// Request asks for one notification to run for one event.
type Request struct {
	Notification string             `json:"notification"`
	Context      types.EventContext `json:"context"`
}

// MessageReader fetches and commits Kafka messages. *kafka.Reader implements it.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Notifications resolves a notification by name. *config.Holder implements it.
type Notifications interface {
	Notification(name string) (config.Notification, bool)
}

// Executor runs a notification. *notification.Notifier implements it.
type Executor interface {
	Execute(ctx context.Context, name string, ectx *types.EventContext, cfg config.Notification) error
}

// Consumer runs notification requests from a topic.
type Consumer struct {
	reader MessageReader
	notes  Notifications
	exec   Executor
	log    *slog.Logger
}

// NewReader returns a consumer-group reader for cfg.
func NewReader(cfg config.KafkaConfig) (*kafka.Reader, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("consumer: brokers cannot be empty")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("consumer: topic cannot be empty")
	}
	if cfg.GroupID == "" {
		return nil, fmt.Errorf("consumer: group id cannot be empty")
	}
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		Topic:       cfg.Topic,
		GroupID:     cfg.GroupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		MaxWait:     maxWait,
		StartOffset: kafka.FirstOffset,
	}), nil
}

// New returns a Consumer. log may be nil.
func New(r MessageReader, notes Notifications, exec Executor, log *slog.Logger) *Consumer {
	if log == nil {
		log = slog.Default()
	}
	return &Consumer{reader: r, notes: notes, exec: exec, log: log}
}

// Run consumes until ctx is cancelled. It returns nil on cancellation.
func (c *Consumer) Run(ctx context.Context) error {
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("consumer: reader closed: %w", err)
			}
			c.log.Error("consumer: fetch", "err", err)
			if !sleep(ctx, retryDelay) {
				return nil
			}
			continue
		}

		c.handle(ctx, msg)

		for {
			err := c.reader.CommitMessages(ctx, msg)
			if err == nil {
				break
			}
			if ctx.Err() != nil {
				return nil
			}
			c.log.Error("consumer: commit", "partition", msg.Partition, "offset", msg.Offset, "err", err)
			if !sleep(ctx, retryDelay) {
				return nil
			}
		}
	}
}

// Close closes the reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}

func (c *Consumer) handle(ctx context.Context, msg kafka.Message) {
	var req Request
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		c.log.Error("consumer: decode request", "partition", msg.Partition, "offset", msg.Offset, "err", err)
		return
	}
	cfg, ok := c.notes.Notification(req.Notification)
	if !ok {
		c.log.Error("consumer: unknown notification", "notification", req.Notification, "offset", msg.Offset)
		return
	}
	if err := c.exec.Execute(ctx, req.Notification, &req.Context, cfg); err != nil {
		// Already logged and reported by the notifier.
		c.log.Debug("consumer: request failed", "notification", req.Notification, "offset", msg.Offset)
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
