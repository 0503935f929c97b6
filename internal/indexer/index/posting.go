package index

import (
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/indexer/tokenizer"
)

// Field weights used when deriving a posting weight from term frequency.
const (
	TitleWeight       = 3
	KeywordWeight     = 2
	DescriptionWeight = 1
)

// TermWeights maps a term to its weight within one document.
type TermWeights map[string]int

// Entry is a document together with everything the index derived from it.
// Entries are never mutated after construction.
type Entry struct {
	Doc      document.Document
	Terms    TermWeights
	Title    map[string]struct{}
	Keywords map[string]struct{}
	Entities map[string]struct{}
	Vector   ConceptVector
}

// Analyze derives the postings, field term sets and concept vector for doc.
func Analyze(doc document.Document) *Entry {
	e := &Entry{
		Doc:      doc,
		Terms:    make(TermWeights),
		Title:    make(map[string]struct{}),
		Keywords: make(map[string]struct{}),
		Entities: make(map[string]struct{}, len(doc.Entities)),
		Vector:   DocumentVector(doc.Keywords),
	}
	for _, t := range tokenizer.Terms(doc.Title) {
		e.Terms[t] += TitleWeight
		e.Title[t] = struct{}{}
	}
	for _, kw := range doc.Keywords {
		for _, t := range tokenizer.Terms(kw) {
			e.Terms[t] += KeywordWeight
			e.Keywords[t] = struct{}{}
		}
	}
	for _, t := range tokenizer.Terms(doc.Description) {
		e.Terms[t] += DescriptionWeight
	}
	for _, ent := range doc.Entities {
		if name := tokenizer.Normalize(ent.Name); name != "" {
			e.Entities[name] = struct{}{}
		}
	}
	return e
}

// Equal reports whether two entries index identically.
func (e *Entry) Equal(o *Entry) bool {
	if e == nil || o == nil {
		return e == o
	}
	if len(e.Terms) != len(o.Terms) {
		return false
	}
	for t, w := range e.Terms {
		if o.Terms[t] != w {
			return false
		}
	}
	return e.Vector.Equal(o.Vector)
}
