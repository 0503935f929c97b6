// Package tokenizer turns free text into normalised search terms. It
// lower-cases input, splits on non-word boundaries and between CJK
// ideographs, removes stop-words, and applies a suffix-based stemmer.
package tokenizer

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {},
	"be": {}, "by": {}, "for": {}, "from": {}, "has": {}, "he": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "of": {}, "on": {},
	"or": {}, "that": {}, "the": {}, "to": {}, "was": {}, "were": {},
	"will": {}, "with": {}, "this": {}, "but": {}, "they": {},
	"have": {}, "had": {}, "what": {}, "when": {}, "where": {},
	"who": {}, "which": {}, "their": {}, "if": {}, "each": {},
	"do": {}, "not": {}, "no": {}, "so": {}, "can": {}, "my": {},
	"me": {}, "i": {}, "all": {}, "about": {}, "any": {}, "some": {},
}

// IsStopWord reports whether the lower-cased word carries no search value.
func IsStopWord(word string) bool {
	_, ok := stopWords[word]
	return ok
}

// isCJK reports whether r is written without spaces between words, so each
// rune is indexed on its own.
func isCJK(r rune) bool {
	return unicode.Is(unicode.Han, r) ||
		unicode.Is(unicode.Hiragana, r) ||
		unicode.Is(unicode.Katakana, r) ||
		unicode.Is(unicode.Hangul, r)
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.Is(unicode.Mn, r) || r == '_'
}

// Clean removes every character that is not a letter, digit, underscore or
// whitespace and collapses runs of whitespace to a single space.
func Clean(text string) string {
	if !utf8.ValidString(text) {
		return ""
	}
	var b strings.Builder
	b.Grow(len(text))
	space := false
	for _, r := range text {
		switch {
		case unicode.IsSpace(r):
			space = b.Len() > 0
		case isWordRune(r):
			if space {
				b.WriteByte(' ')
				space = false
			}
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Tokenize lower-cases text and splits it into words. CJK ideographs become
// one token each. Stop-words are kept. Invalid UTF-8 yields no tokens.
func Tokenize(text string) []string {
	if text == "" || !utf8.ValidString(text) {
		return nil
	}
	text = strings.ToLower(text)
	tokens := make([]string, 0, len(text)/5+1)
	start := -1
	flush := func(end int) {
		if start >= 0 {
			tokens = append(tokens, text[start:end])
			start = -1
		}
	}
	for i, r := range text {
		switch {
		case isCJK(r):
			flush(i)
			tokens = append(tokens, string(r))
		case isWordRune(r):
			if start < 0 {
				start = i
			}
		default:
			flush(i)
		}
	}
	flush(len(text))
	return tokens
}

// Terms tokenizes text, drops stop-words and single latin letters, and stems
// what remains. Order and duplicates are preserved.
func Terms(text string) []string {
	tokens := Tokenize(text)
	terms := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if IsStopWord(tok) {
			continue
		}
		if len(tok) == 1 && tok[0] < utf8.RuneSelf && !unicode.IsDigit(rune(tok[0])) {
			continue
		}
		terms = append(terms, Stem(tok))
	}
	return terms
}

// UniqueTerms is Terms with later duplicates removed.
func UniqueTerms(text string) []string {
	terms := Terms(text)
	seen := make(map[string]struct{}, len(terms))
	out := terms[:0]
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Normalize reduces a phrase such as a keyword or entity name to a canonical
// concept key: its terms joined by single spaces.
func Normalize(phrase string) string {
	return strings.Join(Terms(phrase), " ")
}
