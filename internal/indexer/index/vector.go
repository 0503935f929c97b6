package index

import (
	"math"

	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/indexer/tokenizer"
)

// ConceptVector is a sparse concept -> weight map standing in for an
// embedding. Weights are in (0,1].
type ConceptVector map[string]float64

// RankWeight is the weight of a concept at the given zero-based rank.
func RankWeight(rank int) float64 {
	return 1 / float64(rank+1)
}

// DocumentVector builds a vector from an ordered keyword list, weighting
// each normalised keyword by its rank. A keyword repeated later keeps its
// first rank. No usable keywords yields nil.
func DocumentVector(keywords []string) ConceptVector {
	var v ConceptVector
	rank := 0
	for _, kw := range keywords {
		concept := tokenizer.Normalize(kw)
		if concept == "" {
			continue
		}
		if v == nil {
			v = make(ConceptVector, len(keywords))
		}
		if _, ok := v[concept]; !ok {
			v[concept] = RankWeight(rank)
		}
		rank++
	}
	return v
}

// RankedConcept is a concept with an explicit rank, used for query vectors
// where expansions share the rank of the term they came from.
type RankedConcept struct {
	Concept string
	Rank    int
}

// RankedVector builds a vector from explicitly ranked concepts. Duplicate
// concepts keep their best rank.
func RankedVector(concepts []RankedConcept) ConceptVector {
	var v ConceptVector
	for _, c := range concepts {
		if c.Concept == "" || c.Rank < 0 {
			continue
		}
		if v == nil {
			v = make(ConceptVector, len(concepts))
		}
		if w := RankWeight(c.Rank); w > v[c.Concept] {
			v[c.Concept] = w
		}
	}
	return v
}

func (v ConceptVector) norm() float64 {
	var sum float64
	for _, w := range v {
		sum += w * w
	}
	return math.Sqrt(sum)
}

// Cosine returns the cosine similarity of a and b over the union of their
// keys. Concepts present in only one vector contribute zero to the dot
// product and their full weight to that vector's norm.
func Cosine(a, b ConceptVector) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	var dot float64
	for k, w := range small {
		dot += w * large[k]
	}
	if dot == 0 {
		return 0
	}
	sim := dot / (a.norm() * b.norm())
	return math.Min(1, math.Max(0, sim))
}

// Equal reports whether v and o hold the same concepts and weights.
func (v ConceptVector) Equal(o ConceptVector) bool {
	if len(v) != len(o) {
		return false
	}
	for k, w := range v {
		ow, ok := o[k]
		if !ok || math.Abs(ow-w) > 1e-12 {
			return false
		}
	}
	return true
}
