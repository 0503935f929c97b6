// Package enhancer turns a raw query string into an EnhancedQuery: cleaned
// tokens, stems, synonym expansion, intent and entities.
package enhancer

import (
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/concepts"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/indexer/index"
)

// IntentSource records which step decided the intent.
type IntentSource string

const (
	IntentFromRule         IntentSource = "rule"
	IntentFromCollaborator IntentSource = "collaborator"
	IntentFromFallback     IntentSource = "fallback"
)

// EnhancedQuery is immutable once returned by Enhance. Callers must not
// modify its slices.
type EnhancedQuery struct {
	Original      string
	Cleaned       string
	Tokens        []string
	Stems         []string
	ExpandedTerms []string
	Intent        concepts.Intent
	IntentSource  IntentSource
	Entities      []document.Entity
	// PersonalTerms come from the caller's history. They never widen
	// retrieval; they only feed the personal boost and suggestion order.
	PersonalTerms []string

	concepts []index.RankedConcept
	expanded map[string]struct{}
	personal map[string]struct{}
	entities map[string]struct{}
}

// HasTerm reports whether term is in the expanded term set.
func (q *EnhancedQuery) HasTerm(term string) bool {
	_, ok := q.expanded[term]
	return ok
}

// IsPersonalTerm reports whether term is one of the caller's frequent terms.
func (q *EnhancedQuery) IsPersonalTerm(term string) bool {
	_, ok := q.personal[term]
	return ok
}

// HasEntity reports whether the normalised entity name was extracted from
// the query.
func (q *EnhancedQuery) HasEntity(normalized string) bool {
	_, ok := q.entities[normalized]
	return ok
}

// EntityKeys returns the normalised names of the query's entities.
func (q *EnhancedQuery) EntityKeys() []string {
	keys := make([]string, 0, len(q.entities))
	for _, e := range q.Entities {
		if k := normalizedEntity(e); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

// ConceptVector builds the query's concept vector. Stems are ranked by
// position, synonyms share their stem's rank, and entity names follow the
// last stem.
func (q *EnhancedQuery) ConceptVector() index.ConceptVector {
	return index.RankedVector(q.concepts)
}
