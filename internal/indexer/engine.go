// Package indexer owns the corpus index lifecycle: the initial build from
// the document source, admin rebuilds, change-event application and
// shutdown.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/resilience"
)

// DocumentSource is the external document store as seen by the engine.
type DocumentSource interface {
	// ListVisibleDocuments returns up to limit non-deleted documents, newest
	// first. limit <= 0 means no limit.
	ListVisibleDocuments(ctx context.Context, limit int) ([]document.Document, error)
	// GetDocument returns ErrDocumentNotFound for unknown or deleted ids.
	GetDocument(ctx context.Context, id string) (document.Document, error)
}

type Engine struct {
	index  *index.CorpusIndex
	source DocumentSource
	cfg    config.IndexConfig
	logger *slog.Logger
	// retryDelay is the initial backoff between failed initial builds.
	retryDelay time.Duration
}

func NewEngine(idx *index.CorpusIndex, source DocumentSource, cfg config.IndexConfig) *Engine {
	return &Engine{
		index:      idx,
		source:     source,
		cfg:        cfg,
		logger:     slog.Default().With("component", "indexer"),
		retryDelay: 500 * time.Millisecond,
	}
}

// Index returns the managed corpus index.
func (e *Engine) Index() *index.CorpusIndex {
	return e.index
}

// Snapshot returns the index's current snapshot.
func (e *Engine) Snapshot() (*index.Snapshot, error) {
	return e.index.Snapshot()
}

// Init performs the startup build, retrying while the document source is
// unreachable. A returned error means the index is not ready and the
// service must not accept queries.
func (e *Engine) Init(ctx context.Context) (index.BuildStats, error) {
	var stats index.BuildStats
	err := resilience.Retry(ctx, "initial-index-build", resilience.RetryConfig{
		MaxAttempts:  e.cfg.BuildRetries,
		InitialDelay: e.retryDelay,
		MaxDelay:     30 * time.Second,
	}, func() error {
		var err error
		stats, err = e.build(ctx)
		return err
	})
	if err != nil {
		return index.BuildStats{}, fmt.Errorf("initializing corpus index: %w", err)
	}
	return stats, nil
}

// Rebuild replaces the index with a fresh build. On failure the previous
// snapshot keeps serving.
func (e *Engine) Rebuild(ctx context.Context) (index.BuildStats, error) {
	stats, err := e.build(ctx)
	if err != nil {
		e.logger.Error("index rebuild failed, keeping previous snapshot", "error", err)
		return index.BuildStats{}, fmt.Errorf("rebuilding corpus index: %w", err)
	}
	return stats, nil
}

func (e *Engine) build(ctx context.Context) (index.BuildStats, error) {
	return e.index.Build(ctx, e.source.ListVisibleDocuments, e.cfg.BuildLimit)
}

// Apply updates the index for one change event. A create or update without
// an inline document is resolved against the source; if the source no
// longer has it, the document is removed instead.
func (e *Engine) Apply(ctx context.Context, ev document.ChangeEvent) error {
	if err := ev.Validate(); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	id := ev.ID()
	if ev.Op == document.OpDelete {
		removed, err := e.index.Remove(id)
		if err != nil {
			return fmt.Errorf("removing document %s: %w", id, err)
		}
		e.logger.Debug("document removed", "doc_id", id, "present", removed)
		return nil
	}

	var doc document.Document
	if ev.Document != nil {
		doc = *ev.Document
	} else {
		var err error
		doc, err = e.source.GetDocument(ctx, id)
		if apperrors.Is(err, apperrors.ErrDocumentNotFound) {
			e.logger.Info("changed document no longer in source, removing", "doc_id", id)
			_, err = e.index.Remove(id)
			return err
		}
		if err != nil {
			return fmt.Errorf("fetching document %s: %w", id, err)
		}
	}

	changed, err := e.index.Upsert(doc)
	if err != nil {
		return fmt.Errorf("upserting document %s: %w", id, err)
	}
	e.logger.Debug("document upserted", "doc_id", id, "op", ev.Op, "changed", changed)
	return nil
}

// Shutdown releases the index. Queries fail with ErrIndexNotReady afterwards.
func (e *Engine) Shutdown() {
	e.index.Shutdown()
	e.logger.Info("corpus index shut down")
}
