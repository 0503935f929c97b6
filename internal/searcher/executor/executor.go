// Package executor runs the lexical and semantic retrieval branches against
// one index snapshot. The branches are fault-isolated: either may fail and
// the other's candidates are still returned.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/searcher/enhancer"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/metrics"
)

type SearchType string

const (
	SearchText     SearchType = "text"
	SearchSemantic SearchType = "semantic"
	SearchHybrid   SearchType = "hybrid"
)

// ParseSearchType accepts text, semantic or hybrid. Empty means hybrid.
func ParseSearchType(s string) (SearchType, bool) {
	switch SearchType(s) {
	case "", SearchHybrid:
		return SearchHybrid, true
	case SearchText:
		return SearchText, true
	case SearchSemantic:
		return SearchSemantic, true
	}
	return "", false
}

func (t SearchType) runsText() bool     { return t == SearchText || t == SearchHybrid }
func (t SearchType) runsSemantic() bool { return t == SearchSemantic || t == SearchHybrid }

// PermissionFilter decides whether callerID may see doc. An error is never
// treated as allow or deny; it fails the whole query.
type PermissionFilter interface {
	Allow(ctx context.Context, doc document.Document, callerID string) (bool, error)
}

// PermissionFunc adapts a function to PermissionFilter.
type PermissionFunc func(ctx context.Context, doc document.Document, callerID string) (bool, error)

func (f PermissionFunc) Allow(ctx context.Context, doc document.Document, callerID string) (bool, error) {
	return f(ctx, doc, callerID)
}

// Vectorizer builds the query's concept vector for the semantic branch.
type Vectorizer func(q *enhancer.EnhancedQuery) (index.ConceptVector, error)

func defaultVectorizer(q *enhancer.EnhancedQuery) (index.ConceptVector, error) {
	return q.ConceptVector(), nil
}

// Filter narrows candidates before permission checks and scoring.
type Filter struct {
	Kind  document.Kind
	Since time.Time
}

func (f Filter) match(doc document.Document) bool {
	if f.Kind != "" && doc.Kind != f.Kind {
		return false
	}
	if !f.Since.IsZero() && doc.CreatedAt.Before(f.Since) {
		return false
	}
	return true
}

type Request struct {
	Query    *enhancer.EnhancedQuery
	Type     SearchType
	CallerID string
	Filter   Filter
}

// Candidate is a permitted document found by one retrieval branch.
type Candidate struct {
	DocID         string
	Entry         *index.Entry
	TextScore     float64
	SemanticScore float64
	Types         []SearchType
}

// Retrieval holds each branch's candidates and the names of branches that
// failed.
type Retrieval struct {
	Text     []Candidate
	Semantic []Candidate
	Failed   []SearchType
}

// Degraded reports whether any requested branch failed.
func (r *Retrieval) Degraded() bool { return len(r.Failed) > 0 }

type Option func(*Executor)

func WithVectorizer(v Vectorizer) Option {
	return func(e *Executor) { e.vectorize = v }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Executor) { e.metrics = m }
}

type Executor struct {
	threshold     float64
	semanticLimit int
	vectorize     Vectorizer
	metrics       *metrics.Metrics
	logger        *slog.Logger
}

func New(cfg config.SearchConfig, opts ...Option) *Executor {
	e := &Executor{
		threshold:     cfg.SemanticThreshold,
		semanticLimit: cfg.SemanticLimit,
		vectorize:     defaultVectorizer,
		logger:        slog.Default().With("component", "query-executor"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Retrieve runs the branches req.Type asks for and waits for both to
// settle. It fails only when the permission filter fails or ctx is done.
func (e *Executor) Retrieve(ctx context.Context, snap *index.Snapshot, req Request, perm PermissionFilter) (*Retrieval, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var (
		g               errgroup.Group
		textOut, semOut []Candidate
		textErr, semErr error
	)
	if req.Type.runsText() {
		g.Go(func() error {
			textErr = guard(func() error {
				var err error
				textOut, err = e.lexical(ctx, snap, req, perm)
				return err
			})
			return nil
		})
	}
	if req.Type.runsSemantic() {
		g.Go(func() error {
			semErr = guard(func() error {
				var err error
				semOut, err = e.semantic(ctx, snap, req, perm)
				return err
			})
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for _, err := range []error{textErr, semErr} {
		if errors.Is(err, apperrors.ErrPermissionFilter) {
			return nil, err
		}
	}

	out := &Retrieval{Text: textOut, Semantic: semOut}
	log := logger.FromContext(ctx).With("component", "query-executor")
	if textErr != nil {
		out.Text = nil
		out.Failed = append(out.Failed, SearchText)
		e.metrics.BranchFailed(string(SearchText))
		log.Warn("text branch failed", "error", textErr)
	}
	if semErr != nil {
		out.Semantic = nil
		out.Failed = append(out.Failed, SearchSemantic)
		e.metrics.BranchFailed(string(SearchSemantic))
		log.Warn("semantic branch failed", "error", semErr)
	}

	log.Debug("retrieval complete",
		"search_type", req.Type,
		"text_candidates", len(out.Text),
		"semantic_candidates", len(out.Semantic),
		"failed", out.Failed,
	)
	return out, nil
}

func (e *Executor) lexical(ctx context.Context, snap *index.Snapshot, req Request, perm PermissionFilter) ([]Candidate, error) {
	matches := snap.LexicalCandidates(req.Query.ExpandedTerms)
	ids := make([]string, 0, len(matches))
	for id := range matches {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	out := make([]Candidate, 0, len(ids))
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry, ok := e.admit(snap, id, req.Filter)
		if !ok {
			continue
		}
		allowed, err := allow(ctx, perm, entry.Doc, req.CallerID)
		if err != nil {
			return nil, err
		}
		if !allowed {
			continue
		}
		out = append(out, Candidate{
			DocID:     id,
			Entry:     entry,
			TextScore: TextScore(matches[id], len(req.Query.Stems)),
			Types:     []SearchType{SearchText},
		})
	}
	return out, nil
}

// semantic scores every vector above the threshold, filters, then keeps the
// configured number of best hits, so hidden documents never crowd out
// visible ones.
func (e *Executor) semantic(ctx context.Context, snap *index.Snapshot, req Request, perm PermissionFilter) ([]Candidate, error) {
	vec, err := e.vectorize(req.Query)
	if err != nil {
		return nil, fmt.Errorf("building query vector: %w", err)
	}
	hits := snap.SemanticCandidates(vec, e.threshold, 0)

	out := make([]Candidate, 0, min(len(hits), e.semanticLimit))
	for _, hit := range hits {
		if e.semanticLimit > 0 && len(out) >= e.semanticLimit {
			break
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry, ok := e.admit(snap, hit.DocID, req.Filter)
		if !ok {
			continue
		}
		allowed, err := allow(ctx, perm, entry.Doc, req.CallerID)
		if err != nil {
			return nil, err
		}
		if !allowed {
			continue
		}
		out = append(out, Candidate{
			DocID:         hit.DocID,
			Entry:         entry,
			SemanticScore: hit.Similarity,
			Types:         []SearchType{SearchSemantic},
		})
	}
	return out, nil
}

func (e *Executor) admit(snap *index.Snapshot, id string, f Filter) (*index.Entry, bool) {
	entry, ok := snap.Entry(id)
	if !ok || !f.match(entry.Doc) {
		return nil, false
	}
	return entry, true
}

// TextScore is the match density of a document: each matched term counts
// min(1, weight/3), so one title hit saturates, and the sum is divided by
// the number of query stems.
func TextScore(matched index.TermWeights, stems int) float64 {
	var sum float64
	for _, w := range matched {
		sum += min(1, float64(w)/index.TitleWeight)
	}
	return min(1, max(0, sum/float64(max(1, stems))))
}

func allow(ctx context.Context, perm PermissionFilter, doc document.Document, callerID string) (ok bool, err error) {
	if perm == nil {
		return false, fmt.Errorf("%w: no permission filter supplied", apperrors.ErrPermissionFilter)
	}
	defer func() {
		if r := recover(); r != nil {
			ok, err = false, fmt.Errorf("%w: panic: %v", apperrors.ErrPermissionFilter, r)
		}
	}()
	ok, err = perm.Allow(ctx, doc, callerID)
	if err != nil {
		return false, fmt.Errorf("%w: document %s: %v", apperrors.ErrPermissionFilter, doc.ID, err)
	}
	return ok, nil
}

// guard turns a panicking branch into a branch failure.
func guard(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("branch panicked: %v", r)
		}
	}()
	return fn()
}
