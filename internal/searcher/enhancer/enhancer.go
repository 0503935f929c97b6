package enhancer

import (
	"context"
	"log/slog"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/concepts"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/indexer/index"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/indexer/tokenizer"
	apperrors "github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/logger"
)

// Analyzer is the guarded concept-extraction collaborator.
type Analyzer interface {
	Analyze(ctx context.Context, text string) concepts.Result
}

// HistorySource supplies a user's most frequent recent query terms.
type HistorySource interface {
	FrequentTerms(userID string, n int) []string
}

type Option func(*Enhancer)

func WithAnalyzer(a Analyzer) Option {
	return func(e *Enhancer) { e.analyzer = a }
}

func WithHistory(h HistorySource, terms int) Option {
	return func(e *Enhancer) {
		e.history = h
		e.biasTerms = terms
	}
}

func WithSynonyms(t SynonymTable) Option {
	return func(e *Enhancer) { e.synonyms = t }
}

// Enhancer builds EnhancedQuery values. It is safe for concurrent use.
type Enhancer struct {
	analyzer  Analyzer
	history   HistorySource
	biasTerms int
	synonyms  SynonymTable
	logger    *slog.Logger
}

func New(opts ...Option) *Enhancer {
	e := &Enhancer{
		synonyms: NewSynonymTable(DefaultSynonyms),
		logger:   logger.WithComponent("query-enhancer"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Enhance cleans, tokenizes and expands raw. An empty userID skips the
// personalization lookup. Collaborator failures fall back to the general
// intent with no entities; the only error is ErrInvalidQuery.
func (e *Enhancer) Enhance(ctx context.Context, raw, userID string) (*EnhancedQuery, error) {
	cleaned := tokenizer.Clean(raw)
	if strings.TrimSpace(cleaned) == "" {
		return nil, apperrors.InvalidQuery("query must contain at least one letter or digit")
	}

	q := &EnhancedQuery{
		Original: raw,
		Cleaned:  cleaned,
		Tokens:   tokenizer.Tokenize(cleaned),
		Stems:    tokenizer.UniqueTerms(cleaned),
		expanded: make(map[string]struct{}),
		personal: make(map[string]struct{}),
		entities: make(map[string]struct{}),
	}

	e.classify(ctx, q)
	e.expand(q)

	if userID != "" && e.history != nil && e.biasTerms > 0 {
		for _, t := range e.history.FrequentTerms(userID, e.biasTerms) {
			if _, dup := q.personal[t]; dup {
				continue
			}
			q.personal[t] = struct{}{}
			q.PersonalTerms = append(q.PersonalTerms, t)
		}
	}

	e.logger.Debug("query enhanced",
		"stems", q.Stems,
		"expanded", len(q.ExpandedTerms),
		"intent", q.Intent,
		"intent_source", q.IntentSource,
		"entities", len(q.Entities),
	)
	return q, nil
}

// classify resolves intent and entities. A matching rule decides the
// intent; the collaborator is still asked for entities.
func (e *Enhancer) classify(ctx context.Context, q *EnhancedQuery) {
	ruleIntent, ruled := matchIntentRule(strings.ToLower(q.Cleaned))

	var res concepts.Result
	if e.analyzer != nil {
		res = e.analyzer.Analyze(ctx, q.Cleaned)
	} else {
		res = concepts.Result{Value: concepts.Fallback(), Err: concepts.ErrDisabled}
	}
	analysis := res.OrFallback()

	switch {
	case ruled:
		q.Intent, q.IntentSource = ruleIntent, IntentFromRule
	case res.OK():
		q.Intent, q.IntentSource = analysis.Intent, IntentFromCollaborator
	default:
		q.Intent, q.IntentSource = concepts.IntentGeneral, IntentFromFallback
		logger.FromContext(ctx).Debug("intent fell back to general", "reason", res.Err)
	}

	for _, ent := range analysis.Entities {
		key := normalizedEntity(ent)
		if key == "" {
			continue
		}
		if _, dup := q.entities[key]; dup {
			continue
		}
		q.entities[key] = struct{}{}
		q.Entities = append(q.Entities, ent)
	}
}

// expand unions stems, their synonyms and entity terms into ExpandedTerms
// and records the ranked concepts behind the query vector.
func (e *Enhancer) expand(q *EnhancedQuery) {
	add := func(term string) {
		if _, dup := q.expanded[term]; dup {
			return
		}
		q.expanded[term] = struct{}{}
		q.ExpandedTerms = append(q.ExpandedTerms, term)
	}

	for rank, stem := range q.Stems {
		add(stem)
		q.concepts = append(q.concepts, index.RankedConcept{Concept: stem, Rank: rank})
		for _, syn := range e.synonyms.Lookup(stem) {
			add(syn)
			q.concepts = append(q.concepts, index.RankedConcept{Concept: syn, Rank: rank})
		}
	}

	next := len(q.Stems)
	for _, ent := range q.Entities {
		key := normalizedEntity(ent)
		for _, t := range strings.Fields(key) {
			add(t)
		}
		q.concepts = append(q.concepts, index.RankedConcept{Concept: key, Rank: next})
		next++
	}
}

func normalizedEntity(e document.Entity) string {
	return tokenizer.Normalize(e.Name)
}
