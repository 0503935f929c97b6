package enhancer

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/concepts"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/document"
	apperrors "github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/errors"
)

type stubAnalyzer struct {
	result concepts.Result
	calls  int
}

func (s *stubAnalyzer) Analyze(_ context.Context, _ string) concepts.Result {
	s.calls++
	return s.result
}

type stubHistory map[string][]string

func (h stubHistory) FrequentTerms(userID string, n int) []string {
	terms := h[userID]
	if len(terms) > n {
		terms = terms[:n]
	}
	return terms
}

func TestEnhanceRejectsEmptyQueries(t *testing.T) {
	e := New()
	for _, raw := range []string{"", "   ", "?!...", "\xff\xfe"} {
		_, err := e.Enhance(context.Background(), raw, "")
		require.Error(t, err, "query %q", raw)
		assert.True(t, apperrors.Is(err, apperrors.ErrInvalidQuery))
	}
}

func TestEnhanceExpandsSynonyms(t *testing.T) {
	q, err := New().Enhance(context.Background(), "Budget, Report!", "")
	require.NoError(t, err)

	assert.Equal(t, "Budget Report", q.Cleaned)
	assert.Equal(t, []string{"budget", "report"}, q.Tokens)
	assert.Equal(t, []string{"budget", "report"}, q.Stems)
	for _, term := range []string{"budget", "report", "finance", "expense", "cost", "summary", "analysis"} {
		assert.True(t, q.HasTerm(term), "missing %q", term)
	}
	assert.Equal(t, []string{"budget", "finance", "expense", "cost", "report", "summary", "analysis"}, q.ExpandedTerms)
}

func TestConceptVectorSharesStemRank(t *testing.T) {
	q, err := New().Enhance(context.Background(), "budget report", "")
	require.NoError(t, err)

	v := q.ConceptVector()
	assert.Equal(t, 1.0, v["budget"])
	assert.Equal(t, 1.0, v["finance"])
	assert.Equal(t, 0.5, v["report"])
	assert.Equal(t, 0.5, v["summary"])
}

func TestIntentRulesWinOverCollaborator(t *testing.T) {
	stub := &stubAnalyzer{result: concepts.Result{Value: concepts.Analysis{
		Intent:   concepts.IntentFile,
		Entities: []document.Entity{{Type: "person", Name: "Alice"}},
	}}}
	q, err := New(WithAnalyzer(stub)).Enhance(context.Background(), "pending tasks before the meeting", "")
	require.NoError(t, err)

	assert.Equal(t, concepts.IntentTask, q.Intent)
	assert.Equal(t, IntentFromRule, q.IntentSource)
	assert.Equal(t, 1, stub.calls, "entities still come from the collaborator")
	assert.True(t, q.HasEntity("alice"))
	assert.True(t, q.HasTerm("alice"))
}

func TestCollaboratorDecidesWhenNoRuleMatches(t *testing.T) {
	stub := &stubAnalyzer{result: concepts.Result{Value: concepts.Analysis{
		Intent: concepts.IntentConversation,
		Entities: []document.Entity{
			{Type: "topic", Name: "Machine Learning"},
			{Type: "topic", Name: "machine learning"},
		},
	}}}
	q, err := New(WithAnalyzer(stub)).Enhance(context.Background(), "budget", "")
	require.NoError(t, err)

	assert.Equal(t, concepts.IntentConversation, q.Intent)
	assert.Equal(t, IntentFromCollaborator, q.IntentSource)
	require.Len(t, q.Entities, 1)
	assert.Equal(t, []string{"machine learn"}, q.EntityKeys())
	assert.True(t, q.HasTerm("machine"))
	assert.True(t, q.HasTerm("learn"))

	v := q.ConceptVector()
	assert.Equal(t, 0.5, v["machine learn"], "entities rank after the last stem")
}

func TestCollaboratorFailureFallsBack(t *testing.T) {
	stub := &stubAnalyzer{result: concepts.Result{Value: concepts.Fallback(), Err: errors.New("boom")}}
	q, err := New(WithAnalyzer(stub)).Enhance(context.Background(), "budget", "")
	require.NoError(t, err)

	assert.Equal(t, concepts.IntentGeneral, q.Intent)
	assert.Equal(t, IntentFromFallback, q.IntentSource)
	assert.Empty(t, q.Entities)
	assert.Equal(t, []string{"budget", "finance", "expense", "cost"}, q.ExpandedTerms)
}

func TestNoAnalyzerFallsBack(t *testing.T) {
	q, err := New().Enhance(context.Background(), "quarterly numbers", "")
	require.NoError(t, err)
	assert.Equal(t, concepts.IntentGeneral, q.Intent)
	assert.Equal(t, IntentFromFallback, q.IntentSource)
}

func TestPersonalTermsNeverExpandRetrieval(t *testing.T) {
	h := stubHistory{"alice": {"forecast", "hir", "forecast"}}
	e := New(WithHistory(h, 3))

	q, err := e.Enhance(context.Background(), "budget", "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"forecast", "hir"}, q.PersonalTerms)
	assert.True(t, q.IsPersonalTerm("forecast"))
	assert.False(t, q.HasTerm("forecast"))

	anon, err := e.Enhance(context.Background(), "budget", "")
	require.NoError(t, err)
	assert.Empty(t, anon.PersonalTerms)
	assert.Equal(t, q.ExpandedTerms, anon.ExpandedTerms)
}

func TestCustomSynonymTable(t *testing.T) {
	e := New(WithSynonyms(NewSynonymTable(map[string][]string{"trip": {"travel", "journey"}})))

	q, err := e.Enhance(context.Background(), "trip", "")
	require.NoError(t, err)
	assert.True(t, q.HasTerm("travel"))
	assert.True(t, q.HasTerm("journey"))

	q, err = e.Enhance(context.Background(), "budget", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"budget"}, q.ExpandedTerms)
}

func TestSynonymTableStemsEntries(t *testing.T) {
	table := NewSynonymTable(map[string][]string{
		"Meetings": {"appointments", "the meeting", "calls"},
	})
	assert.Equal(t, []string{"appointment", "call"}, table.Lookup("meet"))
	assert.Nil(t, table.Lookup("meetings"))
}

func TestIntentRuleOrder(t *testing.T) {
	tests := []struct {
		query string
		want  concepts.Intent
		ok    bool
	}{
		{"overdue action items", concepts.IntentTask, true},
		{"meeting with finance tomorrow", concepts.IntentSchedule, true},
		{"what did bob say in the chat", concepts.IntentConversation, true},
		{"uploaded pdf invoices", concepts.IntentFile, true},
		{"draft notes", concepts.IntentDocument, true},
		{"find budget", concepts.IntentSearch, true},
		{"quarterly budget", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, ok := matchIntentRule(tt.query)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
