// Package personalize keeps a bounded search history per user and derives
// the user's frequent query terms from it.
package personalize

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/config"
	apperrors "github.com/Adithya-Monish-Kumar-K/hybrid-document-search/pkg/errors"
)

// Entry is one recorded search.
type Entry struct {
	Query       string    `json:"query"`
	Terms       []string  `json:"terms,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
	ResultCount int       `json:"resultCount"`
}

// ring is a fixed-capacity FIFO. Only its owner's searches touch it, so the
// lock is per user.
type ring struct {
	mu      sync.Mutex
	entries []Entry
	head    int
	n       int
}

func newRing(size int) *ring {
	return &ring{entries: make([]Entry, size)}
}

func (r *ring) push(e Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := (r.head + r.n) % len(r.entries)
	r.entries[idx] = e
	if r.n < len(r.entries) {
		r.n++
		return
	}
	r.head = (r.head + 1) % len(r.entries)
}

// snapshot returns the last k entries, oldest first. k <= 0 returns all.
func (r *ring) snapshot(k int) []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	if k <= 0 || k > r.n {
		k = r.n
	}
	out := make([]Entry, k)
	skip := r.n - k
	for i := range k {
		out[i] = r.entries[(r.head+skip+i)%len(r.entries)]
	}
	return out
}

// Store is the per-user search history. It is safe for concurrent use.
type Store struct {
	size   int
	window int
	users  sync.Map
}

func New(cfg config.PersonalizationConfig) *Store {
	size := cfg.HistorySize
	if size <= 0 {
		size = 100
	}
	window := cfg.BiasWindow
	if window <= 0 || window > size {
		window = size
	}
	return &Store{size: size, window: window}
}

// Record appends e to userID's history, evicting the oldest entry when full.
func (s *Store) Record(userID string, e Entry) error {
	if userID == "" {
		return fmt.Errorf("recording history: %w: empty user id", apperrors.ErrInvalidInput)
	}
	v, _ := s.users.LoadOrStore(userID, newRing(s.size))
	v.(*ring).push(e)
	return nil
}

// History returns userID's entries, oldest first.
func (s *Store) History(userID string) []Entry {
	v, ok := s.users.Load(userID)
	if !ok {
		return []Entry{}
	}
	return v.(*ring).snapshot(0)
}

// Len returns how many entries userID has.
func (s *Store) Len(userID string) int {
	v, ok := s.users.Load(userID)
	if !ok {
		return 0
	}
	r := v.(*ring)
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

// FrequentTerms returns up to n terms used most often in userID's recent
// searches. Ties go to the term used most recently, then alphabetical.
func (s *Store) FrequentTerms(userID string, n int) []string {
	if n <= 0 {
		return nil
	}
	v, ok := s.users.Load(userID)
	if !ok {
		return nil
	}
	recent := v.(*ring).snapshot(s.window)

	type stat struct {
		term  string
		count int
		last  int
	}
	stats := make(map[string]*stat)
	for i, e := range recent {
		seen := make(map[string]struct{}, len(e.Terms))
		for _, t := range e.Terms {
			if _, dup := seen[t]; dup {
				continue
			}
			seen[t] = struct{}{}
			st, ok := stats[t]
			if !ok {
				st = &stat{term: t}
				stats[t] = st
			}
			st.count++
			st.last = i
		}
	}

	ranked := make([]*stat, 0, len(stats))
	for _, st := range stats {
		ranked = append(ranked, st)
	}
	sort.Slice(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.count != b.count {
			return a.count > b.count
		}
		if a.last != b.last {
			return a.last > b.last
		}
		return a.term < b.term
	})
	if len(ranked) > n {
		ranked = ranked[:n]
	}
	out := make([]string, len(ranked))
	for i, st := range ranked {
		out[i] = st.term
	}
	return out
}
