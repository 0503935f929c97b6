// Package formatter builds the presentation extras of a result page:
// highlight snippets and related keyword suggestions.
package formatter

import (
	"strings"
	"unicode"

	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/document"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/indexer/tokenizer"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/searcher/enhancer"
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/searcher/ranker"
)

const ellipsis = "…"

type Highlight struct {
	Field   string `json:"field"`
	Snippet string `json:"snippet"`
	Matches int    `json:"matches"`
}

type field struct {
	name string
	text string
}

// HighlightFor picks the field with the most expanded-term occurrences and
// returns at most maxRunes runes of it around the first match. Earlier
// fields win ties: title, then description, then keywords.
func HighlightFor(q *enhancer.EnhancedQuery, doc document.Document, maxRunes int) Highlight {
	fields := []field{
		{"title", doc.Title},
		{"description", doc.Description},
		{"keywords", strings.Join(doc.Keywords, ", ")},
	}

	best := -1
	var bestCount int
	for i, f := range fields {
		if f.text == "" {
			continue
		}
		n := countMatches(q, f.text)
		if best < 0 || n > bestCount {
			best, bestCount = i, n
		}
	}
	if best < 0 {
		return Highlight{}
	}
	if bestCount == 0 && doc.Description != "" {
		best = 1
	}
	f := fields[best]
	return Highlight{
		Field:   f.name,
		Snippet: snippet(q, f.text, maxRunes),
		Matches: bestCount,
	}
}

func countMatches(q *enhancer.EnhancedQuery, text string) int {
	n := 0
	for _, term := range tokenizer.Terms(text) {
		if q.HasTerm(term) {
			n++
		}
	}
	return n
}

// snippet truncates text to maxRunes, starting a little before the first
// matching word so the match is visible.
func snippet(q *enhancer.EnhancedQuery, text string, maxRunes int) string {
	runes := []rune(text)
	if maxRunes <= 0 || len(runes) <= maxRunes {
		return text
	}

	first := firstMatch(q, runes)
	start := max(0, first-maxRunes/4)
	end := min(len(runes), start+maxRunes)
	start = max(0, end-maxRunes)

	out := strings.TrimSpace(string(runes[start:end]))
	if start > 0 {
		out = ellipsis + out
	}
	if end < len(runes) {
		out += ellipsis
	}
	return out
}

func firstMatch(q *enhancer.EnhancedQuery, runes []rune) int {
	wordStart := -1
	for i := 0; i <= len(runes); i++ {
		inWord := i < len(runes) && (unicode.IsLetter(runes[i]) || unicode.IsDigit(runes[i]) || runes[i] == '_')
		switch {
		case inWord && wordStart < 0:
			wordStart = i
		case !inWord && wordStart >= 0:
			if q.HasTerm(tokenizer.Stem(string(runes[wordStart:i]))) {
				return wordStart
			}
			wordStart = -1
		}
	}
	return 0
}

// Suggestions returns up to limit keywords from results that the query does
// not already contain. Keywords touching the caller's frequent terms come
// first; otherwise result order is kept.
func Suggestions(q *enhancer.EnhancedQuery, results []ranker.ScoredResult, limit int) []string {
	if limit <= 0 {
		return []string{}
	}
	inQuery := make(map[string]struct{}, len(q.Stems))
	for _, s := range q.Stems {
		inQuery[s] = struct{}{}
	}

	seen := make(map[string]struct{})
	var personal, rest []string
	for _, r := range results {
		for _, kw := range r.Entry.Doc.Keywords {
			terms := tokenizer.Terms(kw)
			key := strings.Join(terms, " ")
			if key == "" || covered(terms, inQuery) {
				continue
			}
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			label := strings.ToLower(strings.TrimSpace(kw))
			if touchesPersonal(q, terms) {
				personal = append(personal, label)
			} else {
				rest = append(rest, label)
			}
		}
	}

	out := append(personal, rest...)
	if len(out) > limit {
		out = out[:limit]
	}
	if out == nil {
		return []string{}
	}
	return out
}

func covered(terms []string, inQuery map[string]struct{}) bool {
	for _, t := range terms {
		if _, ok := inQuery[t]; !ok {
			return false
		}
	}
	return true
}

func touchesPersonal(q *enhancer.EnhancedQuery, terms []string) bool {
	for _, t := range terms {
		if q.IsPersonalTerm(t) {
			return true
		}
	}
	return false
}
