// Package merger fuses the lexical and semantic candidate sets into one
// candidate per document.
package merger

import (
	"sort"

	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/searcher/executor"
)

// Fused is a candidate with its pre-boost base score.
type Fused struct {
	executor.Candidate
	BaseScore float64
}

// Fuse merges by document id. A document found by both branches scores the
// mean of its two scores; a document found by one keeps that branch's score
// unchanged rather than being averaged with zero.
func Fuse(r *executor.Retrieval) []Fused {
	if r == nil {
		return nil
	}
	byID := make(map[string]*Fused, len(r.Text)+len(r.Semantic))
	for _, c := range r.Text {
		byID[c.DocID] = &Fused{Candidate: c}
	}
	for _, c := range r.Semantic {
		f, ok := byID[c.DocID]
		if !ok {
			byID[c.DocID] = &Fused{Candidate: c}
			continue
		}
		f.SemanticScore = c.SemanticScore
		f.Types = []executor.SearchType{executor.SearchText, executor.SearchSemantic}
	}

	out := make([]Fused, 0, len(byID))
	for _, f := range byID {
		f.BaseScore = baseScore(f.Candidate)
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DocID < out[j].DocID })
	return out
}

func baseScore(c executor.Candidate) float64 {
	if len(c.Types) == 2 {
		return (c.TextScore + c.SemanticScore) / 2
	}
	if len(c.Types) == 1 && c.Types[0] == executor.SearchSemantic {
		return c.SemanticScore
	}
	return c.TextScore
}
