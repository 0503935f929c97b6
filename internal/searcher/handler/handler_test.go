package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/searcher"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/searcher/enhancer"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/searcher/personalize"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/logger"
	pkgredis "github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/redis"
)

type fixture struct {
	mux     *http.ServeMux
	source  *indexer.MemorySource
	engine  *indexer.Engine
	history *personalize.Store
}

func newFixture(t *testing.T, queryCache *cache.QueryCache[*searcher.Response], build bool) *fixture {
	t.Helper()
	cfg := config.Default()
	source := indexer.NewMemorySource(
		document.Document{
			ID: "budget", Title: "Quarterly Budget Report", Keywords: []string{"finance", "budget"},
			OwnerID: "alice", Visibility: document.VisibilityPublic, CreatedAt: time.Now().Add(-time.Hour),
		},
		document.Document{
			ID: "private", Title: "Budget Report Draft", Keywords: []string{"budget"},
			OwnerID: "alice", Visibility: document.VisibilityOwner,
		},
	)
	engine := indexer.NewEngine(index.New(), source, cfg.Index)
	if build {
		_, err := engine.Rebuild(context.Background())
		require.NoError(t, err)
	}

	history := personalize.New(cfg.Personalization)
	perm := executor.PermissionFunc(func(_ context.Context, doc document.Document, callerID string) (bool, error) {
		return doc.VisibleTo(callerID), nil
	})
	svc := searcher.New(engine.Index(),
		enhancer.New(enhancer.WithHistory(history, cfg.Personalization.BiasTerms)),
		executor.New(cfg.Search), perm, cfg.Search,
		searcher.WithCache(queryCache), searcher.WithHistory(history))

	mux := http.NewServeMux()
	New(svc, history, engine, queryCache, cfg.Search, WithAdmins([]string{"ops"})).Register(mux)
	return &fixture{mux: mux, source: source, engine: engine, history: history}
}

func (f *fixture) do(t *testing.T, method, target, callerID string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	if callerID != "" {
		req = req.WithContext(logger.WithCallerID(req.Context(), callerID))
	}
	rec := httptest.NewRecorder()
	f.mux.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestSearchEndpoint(t *testing.T) {
	f := newFixture(t, nil, true)

	rec := f.do(t, http.MethodGet, "/api/v1/search?q=budget+report&maxResults=5", "bob")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	resp := decode[searcher.Response](t, rec)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "budget", resp.Results[0].ID)
	assert.Equal(t, 1, resp.TotalResults)
	assert.Equal(t, executor.SearchHybrid, resp.Metadata.SearchType)
}

func TestSearchRejectsBadInput(t *testing.T) {
	f := newFixture(t, nil, true)

	rec := f.do(t, http.MethodGet, "/api/v1/search?q=%20%20", "bob")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/search?q=budget&searchType=fuzzy&since=not-a-date", "bob")
	require.Equal(t, http.StatusBadRequest, rec.Code)
	body := decode[map[string]any](t, rec)
	fields, ok := body["fields"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, fields, "searchType")
	assert.Contains(t, fields, "since")
}

func TestSearchClampsPagination(t *testing.T) {
	f := newFixture(t, nil, true)

	rec := f.do(t, http.MethodGet, "/api/v1/search?q=budget&maxResults=-3&offset=-1", "alice")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[searcher.Response](t, rec)
	assert.Len(t, resp.Results, 2)
}

func TestSearchBeforeIndexReady(t *testing.T) {
	f := newFixture(t, nil, false)

	rec := f.do(t, http.MethodGet, "/api/v1/search?q=budget", "bob")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/index/stats", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHistoryEndpoint(t *testing.T) {
	f := newFixture(t, nil, true)

	f.do(t, http.MethodGet, "/api/v1/search?q=budget+report", "bob")
	f.do(t, http.MethodGet, "/api/v1/search?q=quarterly", "bob")

	rec := f.do(t, http.MethodGet, "/api/v1/history", "bob")
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode[struct {
		UserID  string              `json:"userId"`
		Entries []personalize.Entry `json:"entries"`
	}](t, rec)
	assert.Equal(t, "bob", body.UserID)
	require.Len(t, body.Entries, 2)
	assert.Equal(t, "quarterly", body.Entries[1].Query)

	rec = f.do(t, http.MethodGet, "/api/v1/history", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestIndexStatsAndRebuild(t *testing.T) {
	f := newFixture(t, nil, true)

	rec := f.do(t, http.MethodGet, "/api/v1/index/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	before := decode[map[string]any](t, rec)
	assert.EqualValues(t, 2, before["documents"])

	f.source.Put(document.Document{
		ID: "travel", Title: "Travel Plan", OwnerID: "bob", Visibility: document.VisibilityPublic,
	})
	rec = f.do(t, http.MethodPost, "/api/v1/index/rebuild", "ops")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[index.BuildStats](t, rec)
	assert.Equal(t, 3, stats.Indexed)
	assert.Greater(t, stats.Generation, uint64(before["generation"].(float64)))

	rec = f.do(t, http.MethodGet, "/api/v1/search?q=travel", "bob")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[searcher.Response](t, rec).TotalResults)
}

type failingSource struct{ *indexer.MemorySource }

func (failingSource) ListVisibleDocuments(context.Context, int) ([]document.Document, error) {
	return nil, errors.New("connection refused")
}

func TestRebuildFailureKeepsServing(t *testing.T) {
	idx := index.New()
	_, err := idx.BuildFull(context.Background(), []document.Document{
		{ID: "budget", Title: "Budget", OwnerID: "alice", Visibility: document.VisibilityPublic},
	}, 0)
	require.NoError(t, err)
	engine := indexer.NewEngine(idx, failingSource{indexer.NewMemorySource()}, config.Default().Index)

	h := New(nil, nil, engine, nil, config.Default().Search)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/index/rebuild", nil)
	h.Rebuild(rec, req.WithContext(logger.WithCallerID(req.Context(), "ops")))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	snap, err := engine.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 1, snap.Len())
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	f := newFixture(t, nil, true)
	before, err := f.engine.Snapshot()
	require.NoError(t, err)

	for _, target := range []string{"/api/v1/index/rebuild", "/api/v1/cache/invalidate"} {
		assert.Equal(t, http.StatusUnauthorized, f.do(t, http.MethodPost, target, "").Code, target)
		assert.Equal(t, http.StatusForbidden, f.do(t, http.MethodPost, target, "bob").Code, target)
	}

	after, err := f.engine.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, before.Generation(), after.Generation())
}

func TestAdminRoutesWithoutAllowList(t *testing.T) {
	engine := indexer.NewEngine(index.New(), indexer.NewMemorySource(), config.Default().Index)
	mux := http.NewServeMux()
	New(nil, nil, engine, nil, config.Default().Search).Register(mux)

	send := func(callerID string) int {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/index/rebuild", nil)
		if callerID != "" {
			req = req.WithContext(logger.WithCallerID(req.Context(), callerID))
		}
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec.Code
	}
	assert.Equal(t, http.StatusUnauthorized, send(""))
	assert.Equal(t, http.StatusOK, send("bob"))
}

func TestCacheEndpoints(t *testing.T) {
	f := newFixture(t, nil, true)
	rec := f.do(t, http.MethodGet, "/api/v1/cache/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "disabled", decode[map[string]string](t, rec)["status"])
	rec = f.do(t, http.MethodPost, "/api/v1/cache/invalidate", "ops")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	mr := miniredis.RunT(t)
	client := pkgredis.Wrap(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	t.Cleanup(func() { _ = client.Close() })
	qc := cache.New[*searcher.Response](client, config.RedisConfig{CacheTTL: time.Minute}, nil)
	f = newFixture(t, qc, true)

	f.do(t, http.MethodGet, "/api/v1/search?q=budget", "bob")
	rec = f.do(t, http.MethodGet, "/api/v1/search?q=budget", "bob")
	assert.True(t, decode[searcher.Response](t, rec).Metadata.Cached)

	rec = f.do(t, http.MethodGet, "/api/v1/cache/stats", "")
	require.Equal(t, http.StatusOK, rec.Code)
	stats := decode[map[string]any](t, rec)
	assert.EqualValues(t, 1, stats["hits"])
	assert.EqualValues(t, 1, stats["keys"])

	rec = f.do(t, http.MethodPost, "/api/v1/cache/invalidate", "ops")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, decode[map[string]any](t, rec)["deleted"])
}
