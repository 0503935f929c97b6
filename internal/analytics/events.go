// Package analytics publishes one event per search to Kafka and aggregates
// those events into dashboard statistics.
package analytics

import "time"

type EventType string

const (
	EventSearch     EventType = "search"
	EventZeroResult EventType = "zero_result"
	EventDegraded   EventType = "degraded"
)

type SearchEvent struct {
	Type         EventType `json:"type"`
	Query        string    `json:"query"`
	Terms        []string  `json:"terms"`
	SearchType   string    `json:"search_type"`
	Intent       string    `json:"intent"`
	TotalResults int       `json:"total_results"`
	Returned     int       `json:"returned"`
	LatencyMs    int64     `json:"latency_ms"`
	CacheHit     bool      `json:"cache_hit"`
	Personalized bool      `json:"personalized"`
	Degraded     []string  `json:"degraded,omitempty"`
	Generation   uint64    `json:"index_generation"`
	Timestamp    time.Time `json:"timestamp"`
	RequestID    string    `json:"request_id"`
}

// TypeFor classifies a search outcome.
func TypeFor(total int, degraded bool) EventType {
	switch {
	case degraded:
		return EventDegraded
	case total == 0:
		return EventZeroResult
	default:
		return EventSearch
	}
}
