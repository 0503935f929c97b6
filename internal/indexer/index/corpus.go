// Package index holds the in-memory corpus index: term postings for lexical
// retrieval and concept vectors for semantic retrieval. The index is
// published as immutable snapshots behind an atomic pointer; writers build a
// new snapshot and swap it in, so readers never block and never observe a
// half-applied write.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/panjf2000/ants/v2"

	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/document"
	apperrors "github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/metrics"
)

// Loader reads up to limit documents from the document source.
type Loader func(ctx context.Context, limit int) ([]document.Document, error)

// BuildStats describes a completed full build.
type BuildStats struct {
	Generation uint64        `json:"generation"`
	Indexed    int           `json:"indexed"`
	Skipped    int           `json:"skipped"`
	Truncated  bool          `json:"truncated"`
	Duration   time.Duration `json:"duration"`
}

type Option func(*CorpusIndex)

// WithWorkers sets the analysis pool size used by full builds.
func WithWorkers(n int) Option {
	return func(c *CorpusIndex) {
		if n > 0 {
			c.workers = n
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *CorpusIndex) { c.metrics = m }
}

// CorpusIndex owns the current snapshot. It is safe for concurrent use.
type CorpusIndex struct {
	current atomic.Pointer[Snapshot]
	// writeMu serialises writers; readers never take it.
	writeMu    sync.Mutex
	generation uint64
	workers    int
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func New(opts ...Option) *CorpusIndex {
	c := &CorpusIndex{
		workers: max(1, runtime.NumCPU()/2),
		logger:  slog.Default().With("component", "corpus-index"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Ready reports whether a full build has completed.
func (c *CorpusIndex) Ready() bool {
	return c.current.Load() != nil
}

// Snapshot returns the current snapshot, or ErrIndexNotReady before the
// first successful build.
func (c *CorpusIndex) Snapshot() (*Snapshot, error) {
	s := c.current.Load()
	if s == nil {
		return nil, apperrors.ErrIndexNotReady
	}
	return s, nil
}

// Generation returns the current snapshot generation, or 0 before the
// first build.
func (c *CorpusIndex) Generation() uint64 {
	if s := c.current.Load(); s != nil {
		return s.generation
	}
	return 0
}

// BuildFull replaces the index with docs, indexing at most limit of them.
// limit <= 0 indexes everything.
func (c *CorpusIndex) BuildFull(ctx context.Context, docs []document.Document, limit int) (BuildStats, error) {
	return c.Build(ctx, func(context.Context, int) ([]document.Document, error) {
		return docs, nil
	}, limit)
}

// Build loads documents and replaces the whole index with them. One document
// beyond limit is requested so a capped build can be reported as truncated.
// When an id repeats, the later document wins. Concurrent writes wait for
// the build and apply on top of its result.
func (c *CorpusIndex) Build(ctx context.Context, load Loader, limit int) (BuildStats, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	start := time.Now()
	fetch := limit
	if limit > 0 {
		fetch = limit + 1
	}
	docs, err := load(ctx, fetch)
	if err != nil {
		c.metrics.IndexBuild("error")
		return BuildStats{}, fmt.Errorf("loading documents: %w", err)
	}

	var stats BuildStats
	if limit > 0 && len(docs) > limit {
		stats.Truncated = true
		docs = docs[:limit]
		c.logger.Warn("document cap reached, tail not indexed", "limit", limit)
	}

	entries, skipped, err := c.analyzeAll(ctx, docs)
	if err != nil {
		c.metrics.IndexBuild("error")
		return BuildStats{}, err
	}

	next := emptySnapshot()
	last := make(map[string]int, len(entries))
	for i, e := range entries {
		if e != nil {
			last[e.Doc.ID] = i
		}
	}
	for i, e := range entries {
		if e != nil && last[e.Doc.ID] == i {
			next.insert(e)
		}
	}
	c.generation++
	next.generation = c.generation
	next.builtAt = time.Now()
	next.truncated = stats.Truncated
	c.current.Store(next)

	stats.Generation = next.generation
	stats.Indexed = next.Len()
	stats.Skipped = skipped
	stats.Duration = time.Since(start)

	c.metrics.IndexBuild("ok")
	c.metrics.IndexState(next.Len(), next.generation)
	c.logger.Info("corpus index built",
		"generation", stats.Generation,
		"documents", stats.Indexed,
		"terms", next.TermCount(),
		"skipped", skipped,
		"truncated", stats.Truncated,
		"duration", stats.Duration,
	)
	return stats, nil
}

// analyzeAll runs Analyze over docs on a bounded worker pool. Invalid
// documents are skipped and leave a nil entry.
func (c *CorpusIndex) analyzeAll(ctx context.Context, docs []document.Document) ([]*Entry, int, error) {
	entries := make([]*Entry, len(docs))
	pool, err := ants.NewPool(c.workers)
	if err != nil {
		return nil, 0, fmt.Errorf("creating analysis pool: %w", err)
	}
	defer pool.Release()

	var (
		wg      sync.WaitGroup
		skipped atomic.Int64
	)
	for i := range docs {
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			if err := docs[i].Validate(); err != nil {
				skipped.Add(1)
				c.logger.Warn("skipping invalid document", "error", err)
				return
			}
			entries[i] = Analyze(docs[i])
		}); err != nil {
			wg.Done()
			wg.Wait()
			return nil, 0, fmt.Errorf("submitting analysis task: %w", err)
		}
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, 0, fmt.Errorf("building index: %w", err)
	}
	return entries, int(skipped.Load()), nil
}

// Upsert indexes doc, replacing any previous version. It reports whether the
// index changed; re-indexing identical content is a no-op.
func (c *CorpusIndex) Upsert(doc document.Document) (bool, error) {
	if err := doc.Validate(); err != nil {
		return false, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	entry := Analyze(doc)

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	cur := c.current.Load()
	if cur == nil {
		return false, apperrors.ErrIndexNotReady
	}
	if old, ok := cur.entries[doc.ID]; ok && old.Equal(entry) && sameDocument(old.Doc, doc) {
		return false, nil
	}
	c.swap(cur.with(doc.ID, entry))
	c.metrics.IndexWrite("upsert")
	return true, nil
}

// Remove drops id from the index and reports whether it was present.
func (c *CorpusIndex) Remove(id string) (bool, error) {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	cur := c.current.Load()
	if cur == nil {
		return false, apperrors.ErrIndexNotReady
	}
	if _, ok := cur.entries[id]; !ok {
		return false, nil
	}
	c.swap(cur.with(id, nil))
	c.metrics.IndexWrite("remove")
	return true, nil
}

// Shutdown drops the current snapshot. The index reports not ready until
// the next build.
func (c *CorpusIndex) Shutdown() {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	c.current.Store(nil)
}

func (c *CorpusIndex) swap(next *Snapshot) {
	c.generation++
	next.generation = c.generation
	c.current.Store(next)
	c.metrics.IndexState(next.Len(), next.generation)
}

func sameDocument(a, b document.Document) bool {
	return a.ID == b.ID &&
		a.Title == b.Title &&
		a.Description == b.Description &&
		slices.Equal(a.Keywords, b.Keywords) &&
		a.OwnerID == b.OwnerID &&
		a.Visibility == b.Visibility &&
		slices.Equal(a.AllowedUsers, b.AllowedUsers) &&
		a.Kind == b.Kind &&
		slices.Equal(a.Entities, b.Entities) &&
		a.CreatedAt.Equal(b.CreatedAt)
}
