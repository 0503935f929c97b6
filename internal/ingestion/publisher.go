// Package ingestion writes documents to the document store and announces
// each write on the document-changes topic so running search services pick
// it up without a rebuild.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/document"
	apperrors "github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/kafka"
)

// Store persists documents. *PostgresStore satisfies it.
type Store interface {
	Upsert(ctx context.Context, doc document.Document) (created bool, err error)
	Delete(ctx context.Context, id string) (bool, error)
}

type EventPublisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

// Publisher coordinates document persistence and change-event production.
type Publisher struct {
	store    Store
	producer EventPublisher
	now      func() time.Time
	logger   *slog.Logger
}

func New(store Store, producer EventPublisher) *Publisher {
	return &Publisher{
		store:    store,
		producer: producer,
		now:      time.Now,
		logger:   slog.Default().With("component", "publisher"),
	}
}

// Put validates and stores doc, then publishes a create or update event
// carrying the full document. The write is not rolled back when publishing
// fails; the next index rebuild still sees it.
func (p *Publisher) Put(ctx context.Context, doc document.Document) (document.ChangeOp, error) {
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = p.now().UTC()
	}
	if err := doc.Validate(); err != nil {
		return "", fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}

	created, err := p.store.Upsert(ctx, doc)
	if err != nil {
		return "", fmt.Errorf("storing document %s: %w", doc.ID, err)
	}
	op := document.OpUpdate
	if created {
		op = document.OpCreate
	}

	ev := document.ChangeEvent{Op: op, DocumentID: doc.ID, Document: &doc, OccurredAt: p.now().UTC()}
	if err := p.publish(ctx, ev); err != nil {
		return op, err
	}
	return op, nil
}

// Delete soft-deletes id and publishes a delete event. Deleting an unknown
// document is ErrDocumentNotFound.
func (p *Publisher) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.New(apperrors.ErrInvalidInput, 400, "document id is required")
	}
	found, err := p.store.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("deleting document %s: %w", id, err)
	}
	if !found {
		return fmt.Errorf("%w: %s", apperrors.ErrDocumentNotFound, id)
	}
	return p.publish(ctx, document.ChangeEvent{Op: document.OpDelete, DocumentID: id, OccurredAt: p.now().UTC()})
}

// publish keys events by document id so every change to one document lands
// on the same partition in order.
func (p *Publisher) publish(ctx context.Context, ev document.ChangeEvent) error {
	if err := p.producer.Publish(ctx, kafka.Event{Key: ev.ID(), Value: ev}); err != nil {
		p.logger.Error("change event not published, document is stored but not indexed until rebuild",
			"doc_id", ev.ID(),
			"op", ev.Op,
			"error", err,
		)
		return fmt.Errorf("publishing %s event for %s: %w", ev.Op, ev.ID(), err)
	}
	return nil
}
