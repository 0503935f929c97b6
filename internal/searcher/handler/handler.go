package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/searcher/personalize"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/searcher/validator"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/logger"
)

type SearchService interface {
	Search(ctx context.Context, query string, opts validator.Options, callerID string) (*searcher.Response, error)
}

type HistoryReader interface {
	History(userID string) []personalize.Entry
}

// IndexAdmin exposes the corpus index to operators. *indexer.Engine
// satisfies it.
type IndexAdmin interface {
	Snapshot() (*index.Snapshot, error)
	Rebuild(ctx context.Context) (index.BuildStats, error)
}

type Handler struct {
	service SearchService
	history HistoryReader
	index   IndexAdmin
	cache   *cache.QueryCache[*searcher.Response]
	limits  config.SearchConfig
	admins  []string
	logger  *slog.Logger
}

type Option func(*Handler)

// WithAdmins restricts the rebuild and invalidate routes to the given
// callers. Without it any authenticated caller may use them.
func WithAdmins(ids []string) Option {
	return func(h *Handler) { h.admins = ids }
}

func New(service SearchService, history HistoryReader, idx IndexAdmin, queryCache *cache.QueryCache[*searcher.Response], limits config.SearchConfig, opts ...Option) *Handler {
	h := &Handler{
		service: service,
		history: history,
		index:   idx,
		cache:   queryCache,
		limits:  limits,
		logger:  slog.Default().With("component", "search-handler"),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts every search route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/search", h.Search)
	mux.HandleFunc("GET /api/v1/history", h.History)
	mux.HandleFunc("GET /api/v1/index/stats", h.IndexStats)
	mux.HandleFunc("POST /api/v1/index/rebuild", h.requireAdmin(h.Rebuild))
	mux.HandleFunc("GET /api/v1/cache/stats", h.CacheStats)
	mux.HandleFunc("POST /api/v1/cache/invalidate", h.requireAdmin(h.CacheInvalidate))
}

func (h *Handler) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		callerID := logger.CallerID(r.Context())
		if callerID == "" {
			h.writeError(w, http.StatusUnauthorized, "authentication required")
			return
		}
		if len(h.admins) > 0 && !slices.Contains(h.admins, callerID) {
			h.logger.Warn("admin route refused", "caller_id", callerID, "path", r.URL.Path)
			h.writeError(w, http.StatusForbidden, "caller is not an administrator")
			return
		}
		next(w, r)
	}
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	personalize := q.Get("enablePersonalization")
	if personalize == "" {
		personalize = q.Get("personalize")
	}
	opts, err := validator.Parse(validator.Request{
		Query:       q.Get("q"),
		SearchType:  q.Get("searchType"),
		FilterType:  q.Get("filterType"),
		SortBy:      q.Get("sortBy"),
		MaxResults:  q.Get("maxResults"),
		Offset:      q.Get("offset"),
		Since:       q.Get("since"),
		Personalize: personalize,
	}, h.limits)
	if err != nil {
		h.writeErr(ctx, w, err)
		return
	}

	resp, err := h.service.Search(ctx, q.Get("q"), opts, logger.CallerID(ctx))
	if err != nil {
		h.writeErr(ctx, w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) History(w http.ResponseWriter, r *http.Request) {
	callerID := logger.CallerID(r.Context())
	if callerID == "" {
		h.writeError(w, http.StatusUnauthorized, "history requires an authenticated caller")
		return
	}
	entries := h.history.History(callerID)
	if entries == nil {
		entries = []personalize.Entry{}
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"userId":  callerID,
		"entries": entries,
	})
}

func (h *Handler) IndexStats(w http.ResponseWriter, r *http.Request) {
	snap, err := h.index.Snapshot()
	if err != nil {
		h.writeErr(r.Context(), w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"generation": snap.Generation(),
		"documents":  snap.Len(),
		"terms":      snap.TermCount(),
		"vectors":    snap.VectorCount(),
		"truncated":  snap.Truncated(),
		"builtAt":    snap.BuiltAt().UTC().Format(time.RFC3339),
	})
}

func (h *Handler) Rebuild(w http.ResponseWriter, r *http.Request) {
	stats, err := h.index.Rebuild(r.Context())
	if err != nil {
		h.logger.Error("index rebuild failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "index rebuild failed")
		return
	}
	h.logger.Info("index rebuilt on request",
		"generation", stats.Generation,
		"indexed", stats.Indexed,
		"truncated", stats.Truncated,
	)
	h.writeJSON(w, http.StatusOK, stats)
}

func (h *Handler) CacheStats(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeJSON(w, http.StatusOK, map[string]string{"status": "disabled"})
		return
	}

	stats, err := h.cache.Stats(r.Context())
	if err != nil {
		h.logger.Warn("cache key count unavailable", "error", err)
	}
	total := stats.Hits + stats.Misses
	var hitRate float64
	if total > 0 {
		hitRate = float64(stats.Hits) / float64(total)
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":     stats.Hits,
		"misses":   stats.Misses,
		"keys":     stats.Keys,
		"total":    total,
		"hit_rate": hitRate,
	})
}

func (h *Handler) CacheInvalidate(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		h.writeError(w, http.StatusServiceUnavailable, "caching is disabled")
		return
	}

	deleted, err := h.cache.Invalidate(r.Context())
	if err != nil {
		h.logger.Error("cache invalidation failed", "error", err)
		h.writeError(w, http.StatusInternalServerError, "cache invalidation failed")
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{"status": "invalidated", "deleted": deleted})
}

// writeErr maps err onto a status. Server-side failures get a generic
// message; caller errors echo the reason.
func (h *Handler) writeErr(ctx context.Context, w http.ResponseWriter, err error) {
	var verr *validator.ValidationError
	if apperrors.As(err, &verr) {
		h.writeJSON(w, http.StatusBadRequest, map[string]any{
			"error":  "invalid search parameters",
			"fields": verr.Fields,
		})
		return
	}

	status := apperrors.HTTPStatusCode(err)
	switch {
	case status >= http.StatusInternalServerError && apperrors.Is(err, apperrors.ErrIndexNotReady):
		h.writeError(w, status, "search index is not ready")
	case status == http.StatusServiceUnavailable:
		h.writeError(w, status, "search timed out")
	case status >= http.StatusInternalServerError:
		logger.FromContext(ctx).Error("search failed", "error", err)
		h.writeError(w, status, "search failed")
	default:
		h.writeError(w, status, err.Error())
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
