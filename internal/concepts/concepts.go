// Package concepts is the boundary to the external concept-extraction
// collaborator that classifies a query's intent and names its entities.
// The collaborator is best-effort: every call yields a Result whose
// fallback value is always safe to use.
package concepts

import (
	"context"
	"errors"

	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/document"
)

// Intent is what a query is looking for.
type Intent string

const (
	IntentTask         Intent = "task"
	IntentDocument     Intent = "document"
	IntentSearch       Intent = "search"
	IntentSchedule     Intent = "schedule"
	IntentConversation Intent = "conversation"
	IntentFile         Intent = "file"
	IntentGeneral      Intent = "general"
)

// Intents lists every intent in classification order.
var Intents = []Intent{
	IntentTask, IntentDocument, IntentSearch, IntentSchedule,
	IntentConversation, IntentFile, IntentGeneral,
}

var intentKinds = map[Intent]document.Kind{
	IntentTask:         document.KindTask,
	IntentDocument:     document.KindDocument,
	IntentSchedule:     document.KindSchedule,
	IntentConversation: document.KindConversation,
	IntentFile:         document.KindFile,
}

// ParseIntent maps a collaborator label onto an Intent.
func ParseIntent(s string) (Intent, bool) {
	for _, in := range Intents {
		if string(in) == s {
			return in, true
		}
	}
	return IntentGeneral, false
}

// DocumentKind returns the document kind an intent narrows results to.
// General and search intents do not narrow.
func (i Intent) DocumentKind() (document.Kind, bool) {
	k, ok := intentKinds[i]
	return k, ok
}

// Analysis is the collaborator's answer for one piece of text.
type Analysis struct {
	Intent   Intent            `json:"intent"`
	Entities []document.Entity `json:"entities"`
}

// Fallback is the analysis used whenever the collaborator cannot answer.
func Fallback() Analysis {
	return Analysis{Intent: IntentGeneral}
}

// Extractor classifies text. Implementations may be slow or fail.
type Extractor interface {
	Analyze(ctx context.Context, text string) (Analysis, error)
}

// Func adapts a function to Extractor.
type Func func(ctx context.Context, text string) (Analysis, error)

func (f Func) Analyze(ctx context.Context, text string) (Analysis, error) {
	return f(ctx, text)
}

var (
	ErrDisabled  = errors.New("concept extraction disabled")
	ErrMalformed = errors.New("malformed concept extraction response")
)

// Result is the outcome of a guarded collaborator call.
type Result struct {
	Value Analysis
	Err   error
}

// OK reports whether the collaborator answered.
func (r Result) OK() bool { return r.Err == nil }

// OrFallback returns the collaborator's answer, or Fallback on failure.
func (r Result) OrFallback() Analysis {
	if r.Err != nil {
		return Fallback()
	}
	return r.Value
}
