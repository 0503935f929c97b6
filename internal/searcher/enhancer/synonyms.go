package enhancer

import (
	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/indexer/tokenizer"
)

// DefaultSynonyms is the built-in expansion table. Lists stay short so an
// expansion never outweighs the query's own terms in the concept vector.
var DefaultSynonyms = map[string][]string{
	"budget":       {"finance", "expense", "cost"},
	"report":       {"summary", "analysis"},
	"meeting":      {"appointment", "call", "sync"},
	"task":         {"todo", "assignment", "action"},
	"schedule":     {"calendar", "agenda"},
	"document":     {"doc", "note"},
	"email":        {"message", "mail"},
	"message":      {"chat", "email"},
	"project":      {"initiative", "program"},
	"plan":         {"roadmap", "strategy"},
	"issue":        {"bug", "problem", "ticket"},
	"invoice":      {"bill", "payment", "receipt"},
	"contract":     {"agreement"},
	"presentation": {"slides", "deck"},
	"note":         {"memo"},
	"deadline":     {"due", "milestone"},
	"customer":     {"client"},
	"revenue":      {"sales", "income"},
	"hire":         {"recruit", "hiring"},
	"photo":        {"image", "picture"},
}

// SynonymTable maps a stem to the stems of its synonyms.
type SynonymTable map[string][]string

// NewSynonymTable stems keys and values so lookups work on query stems.
// Synonyms that reduce to their own key are dropped.
func NewSynonymTable(raw map[string][]string) SynonymTable {
	t := make(SynonymTable, len(raw))
	for key, syns := range raw {
		k := tokenizer.Normalize(key)
		if k == "" {
			continue
		}
		seen := map[string]struct{}{k: {}}
		for _, s := range t[k] {
			seen[s] = struct{}{}
		}
		for _, syn := range syns {
			for _, term := range tokenizer.Terms(syn) {
				if _, dup := seen[term]; dup {
					continue
				}
				seen[term] = struct{}{}
				t[k] = append(t[k], term)
			}
		}
	}
	return t
}

// Lookup returns the synonym stems for stem.
func (t SynonymTable) Lookup(stem string) []string {
	return t[stem]
}
