package ranker

import (
	"container/heap"
)

type SortBy string

const (
	SortRelevance SortBy = "relevance"
	SortDate      SortBy = "date"
)

// ParseSortBy accepts relevance or date. Empty means relevance.
func ParseSortBy(s string) (SortBy, bool) {
	switch SortBy(s) {
	case "", SortRelevance:
		return SortRelevance, true
	case SortDate:
		return SortDate, true
	}
	return "", false
}

// before reports whether a ranks ahead of b. Relevance order breaks ties by
// newer createdAt; date order breaks ties by relevance. Doc id settles the
// rest so the order is total.
func before(by SortBy, a, b ScoredResult) bool {
	ca, cb := a.Entry.Doc.CreatedAt, b.Entry.Doc.CreatedAt
	if by == SortDate {
		if !ca.Equal(cb) {
			return ca.After(cb)
		}
		if a.RelevanceScore != b.RelevanceScore {
			return a.RelevanceScore > b.RelevanceScore
		}
		return a.DocID < b.DocID
	}
	if a.RelevanceScore != b.RelevanceScore {
		return a.RelevanceScore > b.RelevanceScore
	}
	if !ca.Equal(cb) {
		return ca.After(cb)
	}
	return a.DocID < b.DocID
}

// Page returns results[offset:offset+limit] of the ordering by, selecting
// with a bounded heap so only offset+limit results are ever sorted.
func Page(results []ScoredResult, by SortBy, offset, limit int) []ScoredResult {
	offset = max(0, offset)
	if limit <= 0 || offset >= len(results) {
		return []ScoredResult{}
	}
	k := min(len(results), offset+limit)

	h := &resultHeap{by: by}
	for _, r := range results {
		heap.Push(h, r)
		if h.Len() > k {
			heap.Pop(h)
		}
	}
	ranked := make([]ScoredResult, h.Len())
	for i := len(ranked) - 1; i >= 0; i-- {
		ranked[i] = heap.Pop(h).(ScoredResult)
	}
	return ranked[offset:]
}

// resultHeap is a min-heap on the ranking order: its root is the weakest
// result kept so far.
type resultHeap struct {
	items []ScoredResult
	by    SortBy
}

func (h resultHeap) Len() int { return len(h.items) }

func (h resultHeap) Less(i, j int) bool { return before(h.by, h.items[j], h.items[i]) }

func (h resultHeap) Swap(i, j int) { h.items[i], h.items[j] = h.items[j], h.items[i] }

func (h *resultHeap) Push(x interface{}) {
	h.items = append(h.items, x.(ScoredResult))
}

func (h *resultHeap) Pop() interface{} {
	old := h.items
	n := len(old)
	item := old[n-1]
	h.items = old[:n-1]
	return item
}
