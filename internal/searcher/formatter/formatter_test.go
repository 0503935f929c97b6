package formatter

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/searcher/enhancer"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/searcher/merger"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/searcher/ranker"
)

type history []string

func (h history) FrequentTerms(string, int) []string { return h }

func enhance(t *testing.T, raw string, opts ...enhancer.Option) *enhancer.EnhancedQuery {
	t.Helper()
	q, err := enhancer.New(opts...).Enhance(context.Background(), raw, "u1")
	require.NoError(t, err)
	return q
}

func result(doc document.Document) ranker.ScoredResult {
	return ranker.ScoredResult{Fused: merger.Fused{Candidate: executor.Candidate{
		DocID: doc.ID,
		Entry: index.Analyze(doc),
	}}}
}

func TestHighlightPicksBusiestField(t *testing.T) {
	doc := document.Document{
		Title:       "Q3 planning",
		Description: "The budget review covers every budget line and the cost report.",
		Keywords:    []string{"finance"},
	}
	h := HighlightFor(enhance(t, "budget"), doc, 160)
	assert.Equal(t, "description", h.Field)
	assert.Equal(t, 3, h.Matches)
	assert.Equal(t, doc.Description, h.Snippet)
}

func TestHighlightTitleWinsTies(t *testing.T) {
	doc := document.Document{Title: "Budget Report", Description: "budget report"}
	h := HighlightFor(enhance(t, "budget report"), doc, 160)
	assert.Equal(t, "title", h.Field)
	assert.Equal(t, "Budget Report", h.Snippet)
}

func TestHighlightWithoutMatchesUsesDescription(t *testing.T) {
	doc := document.Document{Title: "Q3 Numbers", Description: "Revenue by region"}
	h := HighlightFor(enhance(t, "budget"), doc, 160)
	assert.Equal(t, "description", h.Field)
	assert.Zero(t, h.Matches)
}

func TestSnippetTruncatesAroundMatch(t *testing.T) {
	long := strings.Repeat("filler words here ", 20) + "budget summary " + strings.Repeat("tail text ", 20)
	doc := document.Document{Title: "x", Description: long}
	h := HighlightFor(enhance(t, "budget"), doc, 60)

	assert.Contains(t, h.Snippet, "budget")
	assert.True(t, strings.HasPrefix(h.Snippet, "…"))
	assert.True(t, strings.HasSuffix(h.Snippet, "…"))
	assert.LessOrEqual(t, utf8.RuneCountInString(h.Snippet), 62)
}

func TestSuggestions(t *testing.T) {
	results := []ranker.ScoredResult{
		result(document.Document{ID: "a", Keywords: []string{"Budget", "finance", "Forecast"}}),
		result(document.Document{ID: "b", Keywords: []string{"finances", "travel", "budget planning"}}),
		result(document.Document{ID: "c", Keywords: []string{"hiring", "roadmap", "offsite", "okr"}}),
	}
	got := Suggestions(enhance(t, "budget"), results, 5)
	assert.Equal(t, []string{"finance", "forecast", "travel", "budget planning", "hiring"}, got)
}

func TestSuggestionsPreferPersonalTerms(t *testing.T) {
	results := []ranker.ScoredResult{
		result(document.Document{ID: "a", Keywords: []string{"finance", "forecast", "travel"}}),
	}
	q := enhance(t, "budget", enhancer.WithHistory(history{"travel"}, 3))
	got := Suggestions(q, results, 2)
	assert.Equal(t, []string{"travel", "finance"}, got)
}

func TestSuggestionsEmpty(t *testing.T) {
	got := Suggestions(enhance(t, "budget"), nil, 5)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
