// Package searcher serves hybrid searches: it enhances the query, runs the
// lexical and semantic branches against the current index snapshot, fuses
// and scores the candidates, and pages and decorates the results.
package searcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/concepts"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/searcher/enhancer"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/searcher/formatter"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/searcher/personalize"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/searcher/ranker"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/searcher/validator"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/tracing"
)

// Result is one ranked document as returned to callers.
type Result struct {
	ID             string                `json:"id"`
	Title          string                `json:"title"`
	Description    string                `json:"description"`
	Keywords       []string              `json:"keywords"`
	OwnerID        string                `json:"ownerId"`
	Kind           document.Kind         `json:"kind,omitempty"`
	CreatedAt      time.Time             `json:"createdAt"`
	RelevanceScore float64               `json:"relevanceScore"`
	TextScore      float64               `json:"textScore"`
	SemanticScore  float64               `json:"semanticScore"`
	SearchTypes    []executor.SearchType `json:"searchTypes"`
	Breakdown      ranker.Breakdown      `json:"scoringBreakdown"`
	Highlight      formatter.Highlight   `json:"highlight"`
}

type Metadata struct {
	Intent          concepts.Intent       `json:"intent"`
	IntentSource    enhancer.IntentSource `json:"intentSource"`
	SearchType      executor.SearchType   `json:"searchType"`
	FilterType      validator.FilterType  `json:"filterType"`
	AppliedKind     document.Kind         `json:"appliedKind,omitempty"`
	SortBy          ranker.SortBy         `json:"sortBy"`
	Degraded        []string              `json:"degraded,omitempty"`
	ExpandedTerms   []string              `json:"expandedTerms"`
	Entities        []document.Entity     `json:"entities,omitempty"`
	Personalized    bool                  `json:"personalized"`
	IndexGeneration uint64                `json:"indexGeneration"`
	Cached          bool                  `json:"cached"`
	Stages          map[string]float64    `json:"stagesMs,omitempty"`
}

type Response struct {
	Query        string   `json:"query"`
	Results      []Result `json:"results"`
	Suggestions  []string `json:"suggestions"`
	TotalResults int      `json:"totalResults"`
	SearchTimeMs int64    `json:"searchTimeMs"`
	Metadata     Metadata `json:"metadata"`
}

// IndexReader yields the snapshot a search runs against. *index.CorpusIndex
// satisfies it.
type IndexReader interface {
	Snapshot() (*index.Snapshot, error)
}

// EventTracker receives one analytics event per completed search.
type EventTracker interface {
	Track(event analytics.SearchEvent)
}

// HistoryRecorder appends to a caller's search history.
type HistoryRecorder interface {
	Record(userID string, e personalize.Entry) error
}

type Option func(*Service)

func WithCache(c *cache.QueryCache[*Response]) Option {
	return func(s *Service) { s.cache = c }
}

func WithTracker(t EventTracker) Option {
	return func(s *Service) { s.tracker = t }
}

func WithHistory(h HistoryRecorder) Option {
	return func(s *Service) { s.history = h }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

type Service struct {
	index    IndexReader
	enhancer *enhancer.Enhancer
	executor *executor.Executor
	scorer   *ranker.Scorer
	perm     executor.PermissionFilter
	cfg      config.SearchConfig

	cache   *cache.QueryCache[*Response]
	tracker EventTracker
	history HistoryRecorder
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(idx IndexReader, enh *enhancer.Enhancer, exec *executor.Executor, perm executor.PermissionFilter, cfg config.SearchConfig, opts ...Option) *Service {
	s := &Service{
		index:    idx,
		enhancer: enh,
		executor: exec,
		scorer:   ranker.NewScorer(cfg.Boosts),
		perm:     perm,
		cfg:      cfg,
		logger:   logger.WithComponent("search-service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Search runs query for callerID. Personalized searches are never cached
// because their ranking depends on the caller's history.
func (s *Service) Search(ctx context.Context, query string, opts validator.Options, callerID string) (*Response, error) {
	start := time.Now()
	opts = validator.Clamp(opts, s.cfg)
	personalized := opts.EnablePersonalization && callerID != ""

	resp, cached, err := s.search(ctx, query, opts, callerID, personalized)
	elapsed := time.Since(start)
	if err != nil {
		s.observe(opts.SearchType, outcomeFor(err, nil), cached, elapsed, 0)
		return nil, err
	}

	resp.SearchTimeMs = elapsed.Milliseconds()
	s.observe(opts.SearchType, outcomeFor(nil, resp), cached, elapsed, len(resp.Results))
	s.recordHistory(ctx, callerID, query, resp.TotalResults)
	s.track(ctx, query, resp)

	logger.FromContext(ctx).Debug("search completed",
		"query", query,
		"total", resp.TotalResults,
		"returned", len(resp.Results),
		"cached", cached,
		"degraded", resp.Metadata.Degraded,
		"latency_ms", resp.SearchTimeMs,
	)
	return resp, nil
}

func (s *Service) search(ctx context.Context, query string, opts validator.Options, callerID string, personalized bool) (*Response, bool, error) {
	if strings.TrimSpace(tokenizer.Clean(query)) == "" {
		return nil, false, apperrors.InvalidQuery("query must contain at least one letter or digit")
	}
	snap, err := s.index.Snapshot()
	if err != nil {
		return nil, false, err
	}

	if s.cfg.QueryTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.QueryTimeout)
		defer cancel()
	}
	ctx, span := tracing.StartSpan(ctx, "search", logger.RequestID(ctx))
	defer func() {
		span.End()
		span.Log(logger.FromContext(ctx))
	}()

	// A shared computation runs detached from the first caller, so it
	// carries its own QueryTimeout bound.
	compute := func(ctx context.Context) (*Response, error) {
		if s.cfg.QueryTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, s.cfg.QueryTimeout)
			defer cancel()
		}
		return s.execute(ctx, snap, query, opts, callerID, personalized)
	}

	var (
		resp   *Response
		cached bool
	)
	if personalized {
		resp, err = compute(ctx)
	} else {
		key := cache.Key{
			Generation: snap.Generation(),
			CallerID:   callerID,
			Query:      query,
			Options:    opts.CacheKey(),
		}
		resp, cached, err = s.cache.GetOrCompute(ctx, key, compute)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, false, fmt.Errorf("%w: %v", apperrors.ErrTimeout, err)
		}
		return nil, false, err
	}

	// Cached and singleflight-shared responses are shared; hand out a copy.
	out := *resp
	out.Query = query
	out.Metadata.Cached = cached
	out.Metadata.Stages = span.Stages()
	return &out, cached, nil
}

func (s *Service) execute(ctx context.Context, snap *index.Snapshot, query string, opts validator.Options, callerID string, personalized bool) (*Response, error) {
	userID := ""
	if personalized {
		userID = callerID
	}

	stageCtx, span := tracing.StartChildSpan(ctx, "enhance")
	q, err := s.enhancer.Enhance(stageCtx, query, userID)
	span.End()
	if err != nil {
		return nil, err
	}

	filter := executor.Filter{Since: opts.Since}
	if kind, ok := filterKind(opts.FilterType, q.Intent); ok {
		filter.Kind = kind
	}

	stageCtx, span = tracing.StartChildSpan(ctx, "retrieve")
	retrieval, err := s.executor.Retrieve(stageCtx, snap, executor.Request{
		Query:    q,
		Type:     opts.SearchType,
		CallerID: callerID,
		Filter:   filter,
	}, s.perm)
	span.End()
	if err != nil {
		return nil, err
	}

	_, span = tracing.StartChildSpan(ctx, "rank")
	scored := s.scorer.ScoreAll(q, merger.Fuse(retrieval), personalized)
	page := ranker.Page(scored, opts.SortBy, opts.Offset, opts.MaxResults)
	span.SetAttr("candidates", len(scored))
	span.End()

	_, span = tracing.StartChildSpan(ctx, "format")
	results := make([]Result, 0, len(page))
	for _, r := range page {
		results = append(results, toResult(r, formatter.HighlightFor(q, r.Entry.Doc, s.cfg.SnippetLength)))
	}
	suggestions := formatter.Suggestions(q, page, s.cfg.MaxSuggestions)
	span.End()

	var degraded []string
	for _, b := range retrieval.Failed {
		degraded = append(degraded, string(b))
	}

	return &Response{
		Query:        query,
		Results:      results,
		Suggestions:  suggestions,
		TotalResults: len(scored),
		Metadata: Metadata{
			Intent:          q.Intent,
			IntentSource:    q.IntentSource,
			SearchType:      opts.SearchType,
			FilterType:      opts.FilterType,
			AppliedKind:     filter.Kind,
			SortBy:          opts.SortBy,
			Degraded:        degraded,
			ExpandedTerms:   q.ExpandedTerms,
			Entities:        q.Entities,
			Personalized:    personalized,
			IndexGeneration: snap.Generation(),
		},
	}, nil
}

// filterKind resolves the kind a search is narrowed to. Auto follows the
// intent; general and search intents do not narrow.
func filterKind(ft validator.FilterType, intent concepts.Intent) (document.Kind, bool) {
	if ft == validator.FilterAuto {
		return intent.DocumentKind()
	}
	return ft.Kind()
}

func toResult(r ranker.ScoredResult, hl formatter.Highlight) Result {
	doc := r.Entry.Doc
	return Result{
		ID:             doc.ID,
		Title:          doc.Title,
		Description:    doc.Description,
		Keywords:       doc.Keywords,
		OwnerID:        doc.OwnerID,
		Kind:           doc.Kind,
		CreatedAt:      doc.CreatedAt,
		RelevanceScore: r.RelevanceScore,
		TextScore:      r.TextScore,
		SemanticScore:  r.SemanticScore,
		SearchTypes:    r.Types,
		Breakdown:      r.Breakdown,
		Highlight:      hl,
	}
}

// recordHistory is best-effort. Failures and panics are logged and never
// reach the caller.
func (s *Service) recordHistory(ctx context.Context, callerID, query string, total int) {
	if s.history == nil || callerID == "" {
		return
	}
	log := logger.FromContext(ctx)
	defer func() {
		if r := recover(); r != nil {
			log.Warn("search history panicked", "panic", r)
			s.metrics.HistoryRecord("error")
		}
	}()
	err := s.history.Record(callerID, personalize.Entry{
		Query:       query,
		Terms:       tokenizer.UniqueTerms(query),
		Timestamp:   time.Now().UTC(),
		ResultCount: total,
	})
	if err != nil {
		log.Warn("failed to record search history", "error", err)
		s.metrics.HistoryRecord("error")
		return
	}
	s.metrics.HistoryRecord("ok")
}

func (s *Service) track(ctx context.Context, query string, resp *Response) {
	if s.tracker == nil {
		return
	}
	md := resp.Metadata
	s.tracker.Track(analytics.SearchEvent{
		Type:         analytics.TypeFor(resp.TotalResults, len(md.Degraded) > 0),
		Query:        query,
		Terms:        tokenizer.UniqueTerms(query),
		SearchType:   string(md.SearchType),
		Intent:       string(md.Intent),
		TotalResults: resp.TotalResults,
		Returned:     len(resp.Results),
		LatencyMs:    resp.SearchTimeMs,
		CacheHit:     md.Cached,
		Personalized: md.Personalized,
		Degraded:     md.Degraded,
		Generation:   md.IndexGeneration,
		Timestamp:    time.Now().UTC(),
		RequestID:    logger.RequestID(ctx),
	})
}

func (s *Service) observe(st executor.SearchType, outcome string, cached bool, elapsed time.Duration, n int) {
	status := "miss"
	if cached {
		status = "hit"
	}
	s.metrics.ObserveSearch(string(st), outcome, status, elapsed.Seconds(), n)
}

func outcomeFor(err error, resp *Response) string {
	switch {
	case apperrors.Is(err, apperrors.ErrInvalidQuery):
		return "invalid"
	case err != nil:
		return "error"
	case len(resp.Metadata.Degraded) > 0:
		return "degraded"
	case resp.TotalResults == 0:
		return "zero_result"
	default:
		return "ok"
	}
}
