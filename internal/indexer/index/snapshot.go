package index

import (
	"sort"
	"time"
)

// Snapshot is one immutable generation of the corpus index. Readers may
// hold a Snapshot for as long as they like; writers never modify it.
type Snapshot struct {
	generation uint64
	builtAt    time.Time
	truncated  bool
	entries    map[string]*Entry
	postings   map[string]map[string]int
}

func emptySnapshot() *Snapshot {
	return &Snapshot{
		entries:  make(map[string]*Entry),
		postings: make(map[string]map[string]int),
	}
}

func (s *Snapshot) Generation() uint64 { return s.generation }

// BuiltAt is when the last full build of this lineage completed.
func (s *Snapshot) BuiltAt() time.Time { return s.builtAt }

// Truncated reports whether the last full build hit its document cap.
func (s *Snapshot) Truncated() bool { return s.truncated }

// Len is the number of indexed documents.
func (s *Snapshot) Len() int { return len(s.entries) }

// TermCount is the number of distinct indexed terms.
func (s *Snapshot) TermCount() int { return len(s.postings) }

// VectorCount is the number of documents carrying a concept vector.
func (s *Snapshot) VectorCount() int {
	n := 0
	for _, e := range s.entries {
		if e.Vector != nil {
			n++
		}
	}
	return n
}

// Entry returns the indexed entry for id.
func (s *Snapshot) Entry(id string) (*Entry, bool) {
	e, ok := s.entries[id]
	return e, ok
}

// Entries calls fn for every indexed entry in unspecified order until fn
// returns false.
func (s *Snapshot) Entries(fn func(*Entry) bool) {
	for _, e := range s.entries {
		if !fn(e) {
			return
		}
	}
}

// LexicalCandidates returns every document containing at least one of terms,
// with the weights of the terms it matched.
func (s *Snapshot) LexicalCandidates(terms []string) map[string]TermWeights {
	out := make(map[string]TermWeights)
	for _, term := range terms {
		for docID, w := range s.postings[term] {
			matched, ok := out[docID]
			if !ok {
				matched = make(TermWeights, 2)
				out[docID] = matched
			}
			matched[term] = w
		}
	}
	return out
}

// SemanticHit is a document whose concept vector is similar to the query's.
type SemanticHit struct {
	DocID      string
	Similarity float64
}

// SemanticCandidates scores every document vector against query and returns
// those at or above threshold, most similar first. limit <= 0 returns all.
func (s *Snapshot) SemanticCandidates(query ConceptVector, threshold float64, limit int) []SemanticHit {
	if len(query) == 0 {
		return nil
	}
	var hits []SemanticHit
	for id, e := range s.entries {
		if e.Vector == nil {
			continue
		}
		sim := Cosine(query, e.Vector)
		if sim <= 0 || sim < threshold {
			continue
		}
		hits = append(hits, SemanticHit{DocID: id, Similarity: sim})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Similarity != hits[j].Similarity {
			return hits[i].Similarity > hits[j].Similarity
		}
		return hits[i].DocID < hits[j].DocID
	})
	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	return hits
}

// with returns a copy of s in which id maps to e (or is absent when e is
// nil). Only the posting lists touched by the old or new entry are cloned.
func (s *Snapshot) with(id string, e *Entry) *Snapshot {
	next := &Snapshot{
		generation: s.generation + 1,
		builtAt:    s.builtAt,
		truncated:  s.truncated,
		entries:    make(map[string]*Entry, len(s.entries)+1),
		postings:   make(map[string]map[string]int, len(s.postings)+8),
	}
	for k, v := range s.entries {
		next.entries[k] = v
	}
	for k, v := range s.postings {
		next.postings[k] = v
	}

	touched := make(map[string]struct{})
	if old, ok := s.entries[id]; ok {
		for term := range old.Terms {
			touched[term] = struct{}{}
		}
	}
	if e != nil {
		for term := range e.Terms {
			touched[term] = struct{}{}
		}
	}
	for term := range touched {
		list := make(map[string]int, len(s.postings[term])+1)
		for docID, w := range s.postings[term] {
			if docID != id {
				list[docID] = w
			}
		}
		if e != nil {
			if w, ok := e.Terms[term]; ok {
				list[id] = w
			}
		}
		if len(list) == 0 {
			delete(next.postings, term)
		} else {
			next.postings[term] = list
		}
	}

	if e == nil {
		delete(next.entries, id)
	} else {
		next.entries[id] = e
	}
	return next
}

// insert adds e to a snapshot under construction.
func (s *Snapshot) insert(e *Entry) {
	s.entries[e.Doc.ID] = e
	for term, w := range e.Terms {
		list, ok := s.postings[term]
		if !ok {
			list = make(map[string]int)
			s.postings[term] = list
		}
		list[e.Doc.ID] = w
	}
}
