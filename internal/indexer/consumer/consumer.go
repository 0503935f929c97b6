// Package consumer reads document change events from Kafka and applies them
// to the corpus index through the indexer engine.
package consumer

import (
	"context"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/document"
	apperrors "github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/kafka"
)

// Applier applies one change event to the index.
type Applier interface {
	Apply(ctx context.Context, ev document.ChangeEvent) error
}

// ChangeConsumer wraps a Kafka consumer to keep the index in step with the
// document store.
type ChangeConsumer struct {
	consumer *kafka.Consumer
	logger   *slog.Logger
}

// New creates a ChangeConsumer backed by the given Kafka consumer.
func New(kafkaConsumer *kafka.Consumer) *ChangeConsumer {
	return &ChangeConsumer{
		consumer: kafkaConsumer,
		logger:   slog.Default().With("component", "change-consumer"),
	}
}

// Start begins consuming Kafka messages. It blocks until ctx is cancelled.
func (c *ChangeConsumer) Start(ctx context.Context) error {
	c.logger.Info("change consumer starting")
	return c.consumer.Start(ctx)
}

// HandleMessage returns a Kafka MessageHandler that decodes change events
// and applies them. Undecodable or invalid events are logged and committed
// so they cannot block the partition; apply failures are returned so the
// message stays uncommitted.
func HandleMessage(applier Applier) kafka.MessageHandler {
	logger := slog.Default().With("component", "change-consumer")
	return func(ctx context.Context, key []byte, value []byte) error {
		ev, err := kafka.DecodeJSON[document.ChangeEvent](value)
		if err != nil {
			logger.Error("failed to decode change event", "error", err, "key", string(key))
			return nil
		}
		if err := ev.Validate(); err != nil {
			logger.Error("dropping invalid change event", "error", err, "key", string(key))
			return nil
		}
		if err := applier.Apply(ctx, ev); err != nil {
			if apperrors.Is(err, apperrors.ErrInvalidInput) {
				logger.Error("dropping change event with invalid document", "doc_id", ev.ID(), "error", err)
				return nil
			}
			return err
		}
		logger.Debug("change applied", "doc_id", ev.ID(), "op", ev.Op)
		return nil
	}
}
