package enhancer

import (
	"regexp"

	"github.com/Adithya-Monish-Kumar-K/hybrid-document-search/internal/concepts"
)

type intentRule struct {
	intent  concepts.Intent
	pattern *regexp.Regexp
}

// intentRules are tried in order against the lower-cased cleaned query. The
// first match wins.
var intentRules = []intentRule{
	{concepts.IntentTask, regexp.MustCompile(`\b(todo|to do|tasks?|assigned|action items?|pending|overdue|deadlines?)\b`)},
	{concepts.IntentSchedule, regexp.MustCompile(`\b(meetings?|calendar|schedule[ds]?|appointments?|events?|tomorrow|today|next week)\b`)},
	{concepts.IntentConversation, regexp.MustCompile(`\b(messages?|chats?|conversations?|threads?|said|replied|emails?)\b`)},
	{concepts.IntentFile, regexp.MustCompile(`\b(files?|pdfs?|uploads?|uploaded|attachments?|spreadsheets?|images?|csv|xlsx)\b`)},
	{concepts.IntentDocument, regexp.MustCompile(`\b(documents?|docs?|notes?|reports?|wiki|pages?|drafts?)\b`)},
	{concepts.IntentSearch, regexp.MustCompile(`^(find|search|look ?up|look for|where is|show me)\b`)},
}

func matchIntentRule(cleanedLower string) (concepts.Intent, bool) {
	for _, r := range intentRules {
		if r.pattern.MatchString(cleanedLower) {
			return r.intent, true
		}
	}
	return "", false
}
