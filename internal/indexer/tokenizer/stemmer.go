package tokenizer

import (
	"strings"
	"unicode/utf8"
)

type suffixRule struct {
	suffix      string
	replacement string
	minLen      int
	when        func(stem string) bool
}

// sibilant guards the "es" plural so "finances" and "finance" agree while
// "boxes" still becomes "box".
func sibilant(stem string) bool {
	return strings.HasSuffix(stem, "s") || strings.HasSuffix(stem, "x") ||
		strings.HasSuffix(stem, "z") || strings.HasSuffix(stem, "ch") ||
		strings.HasSuffix(stem, "sh")
}

var suffixRules = []suffixRule{
	{suffix: "ational", replacement: "ate", minLen: 2},
	{suffix: "tional", replacement: "tion", minLen: 2},
	{suffix: "encies", replacement: "ence", minLen: 2},
	{suffix: "ances", replacement: "ance", minLen: 2},
	{suffix: "ments", replacement: "ment", minLen: 2},
	{suffix: "izing", replacement: "ize", minLen: 2},
	{suffix: "ating", replacement: "ate", minLen: 2},
	{suffix: "iness", replacement: "y", minLen: 2},
	{suffix: "ously", replacement: "ous", minLen: 2},
	{suffix: "ively", replacement: "ive", minLen: 2},
	{suffix: "tion", replacement: "t", minLen: 3},
	{suffix: "sion", replacement: "s", minLen: 3},
	{suffix: "ying", replacement: "y", minLen: 2},
	{suffix: "ies", replacement: "y", minLen: 2},
	{suffix: "ing", replacement: "", minLen: 3},
	{suffix: "ers", replacement: "er", minLen: 2},
	{suffix: "ed", replacement: "", minLen: 3},
	{suffix: "ly", replacement: "", minLen: 3},
	{suffix: "es", replacement: "", minLen: 3, when: sibilant},
	{suffix: "ss", replacement: "ss", minLen: 2},
	{suffix: "us", replacement: "us", minLen: 2},
	{suffix: "is", replacement: "is", minLen: 2},
	{suffix: "s", replacement: "", minLen: 3},
}

// Stem reduces a lower-case token to its stem. Rules are applied until the
// word stops changing, so Stem(Stem(w)) == Stem(w) for every w.
func Stem(word string) string {
	if !utf8.ValidString(word) {
		return ""
	}
	word = strings.ToLower(word)
	for {
		next := stemOnce(word)
		if next == word {
			return word
		}
		word = next
	}
}

func stemOnce(word string) string {
	for _, rule := range suffixRules {
		if !strings.HasSuffix(word, rule.suffix) {
			continue
		}
		base := word[:len(word)-len(rule.suffix)]
		if rule.when != nil && !rule.when(base) {
			continue
		}
		if len(base)+len(rule.replacement) >= rule.minLen {
			return base + rule.replacement
		}
	}
	return word
}
