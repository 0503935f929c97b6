package ranker

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/searcher/enhancer"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/config"
)

var now = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func testScorer() *Scorer {
	s := NewScorer(config.DefaultBoosts())
	s.now = func() time.Time { return now }
	return s
}

func enhance(t *testing.T, raw string, opts ...enhancer.Option) *enhancer.EnhancedQuery {
	t.Helper()
	q, err := enhancer.New(opts...).Enhance(context.Background(), raw, "u1")
	require.NoError(t, err)
	return q
}

func fused(doc document.Document, base float64) merger.Fused {
	return merger.Fused{
		Candidate: executor.Candidate{
			DocID:     doc.ID,
			Entry:     index.Analyze(doc),
			TextScore: base,
			Types:     []executor.SearchType{executor.SearchText},
		},
		BaseScore: base,
	}
}

func TestTitleAndKeywordBoosts(t *testing.T) {
	doc := document.Document{
		ID: "d1", OwnerID: "u1", Title: "Quarterly Budget Report",
		Keywords: []string{"finance", "budget"}, CreatedAt: now.AddDate(-2, 0, 0),
	}
	r := testScorer().Score(enhance(t, "budget report"), fused(doc, 0.3), false)

	assert.Equal(t, 2, r.Breakdown.TitleMatches)
	assert.Equal(t, 2, r.Breakdown.KeywordMatches)
	assert.InDelta(t, 0.6, r.Breakdown.TitleBoost, 1e-9)
	assert.InDelta(t, 0.4, r.Breakdown.KeywordBoost, 1e-9)
	assert.Zero(t, r.Breakdown.FreshnessScore)
	assert.Equal(t, 1.0, r.RelevanceScore, "total is clamped")
}

func TestBoostCaps(t *testing.T) {
	doc := document.Document{
		ID: "d1", OwnerID: "u1", Title: "budget finance expense cost",
		Keywords: []string{"budget", "finance", "expense", "cost"},
	}
	r := testScorer().Score(enhance(t, "budget"), fused(doc, 0), false)
	assert.Equal(t, 4, r.Breakdown.TitleMatches)
	assert.InDelta(t, 0.6, r.Breakdown.TitleBoost, 1e-9)
	assert.InDelta(t, 0.4, r.Breakdown.KeywordBoost, 1e-9)
	assert.LessOrEqual(t, r.RelevanceScore, 1.0)
}

func TestFreshness(t *testing.T) {
	s := testScorer()
	assert.InDelta(t, 0.1, s.freshness(now), 1e-9)
	assert.InDelta(t, 0.05, s.freshness(now.Add(-365*24*time.Hour/2)), 1e-9)
	assert.Zero(t, s.freshness(now.AddDate(-2, 0, 0)))
	assert.InDelta(t, 0.1, s.freshness(now.Add(48*time.Hour)), 1e-9, "future dates count as new")
	assert.Zero(t, s.freshness(time.Time{}))
}

type history map[string][]string

func (h history) FrequentTerms(userID string, _ int) []string { return h[userID] }

func TestPersonalBoostOnlyWhenEnabled(t *testing.T) {
	doc := document.Document{
		ID: "d1", OwnerID: "u1", Title: "Roadmap",
		Keywords: []string{"forecast", "travel", "hiring"},
	}
	q := enhance(t, "roadmap", enhancer.WithHistory(history{"u1": {"forecast", "travel", "hir"}}, 3))
	s := testScorer()

	off := s.Score(q, fused(doc, 0.2), false)
	assert.Zero(t, off.Breakdown.PersonalBoost)

	on := s.Score(q, fused(doc, 0.2), true)
	assert.Equal(t, 3, on.Breakdown.PersonalMatches)
	assert.InDelta(t, 0.1, on.Breakdown.PersonalBoost, 1e-9)
	assert.Greater(t, on.RelevanceScore, off.RelevanceScore)
}

func TestScoreBoundsHold(t *testing.T) {
	s := testScorer()
	q := enhance(t, "budget report meeting")
	for i, base := range []float64{0, 0.2, 0.5, 1} {
		doc := document.Document{
			ID: fmt.Sprintf("d%d", i), OwnerID: "u1",
			Title:     "budget report meeting",
			Keywords:  []string{"budget", "report", "meeting"},
			CreatedAt: now,
		}
		r := s.Score(q, fused(doc, base), true)
		assert.GreaterOrEqual(t, r.RelevanceScore, 0.0)
		assert.LessOrEqual(t, r.RelevanceScore, 1.0)
	}
}

func scored(id string, score float64, created time.Time) ScoredResult {
	return ScoredResult{
		Fused: merger.Fused{Candidate: executor.Candidate{
			DocID: id,
			Entry: &index.Entry{Doc: document.Document{ID: id, CreatedAt: created}},
		}},
		RelevanceScore: score,
	}
}

func ids(rs []ScoredResult) []string {
	out := make([]string, len(rs))
	for i, r := range rs {
		out[i] = r.DocID
	}
	return out
}

func TestPageRelevanceOrder(t *testing.T) {
	results := []ScoredResult{
		scored("old", 0.8, now.AddDate(0, -2, 0)),
		scored("new", 0.8, now),
		scored("top", 0.9, now.AddDate(-1, 0, 0)),
		scored("low", 0.1, now),
	}
	assert.Equal(t, []string{"top", "new", "old", "low"}, ids(Page(results, SortRelevance, 0, 10)))
	assert.Equal(t, []string{"top", "new"}, ids(Page(results, SortRelevance, 0, 2)))
	assert.Equal(t, []string{"old", "low"}, ids(Page(results, SortRelevance, 2, 2)))
	assert.Empty(t, Page(results, SortRelevance, 10, 2))
	assert.Empty(t, Page(nil, SortRelevance, 0, 5))
}

func TestPageDateOrder(t *testing.T) {
	results := []ScoredResult{
		scored("a", 0.2, now.AddDate(0, 0, -1)),
		scored("b", 0.9, now.AddDate(0, 0, -3)),
		scored("c", 0.5, now),
		scored("d", 0.7, now),
	}
	assert.Equal(t, []string{"d", "c", "a", "b"}, ids(Page(results, SortDate, 0, 10)))
}

func TestParseSortBy(t *testing.T) {
	by, ok := ParseSortBy("")
	assert.True(t, ok)
	assert.Equal(t, SortRelevance, by)
	_, ok = ParseSortBy("popularity")
	assert.False(t, ok)
}
