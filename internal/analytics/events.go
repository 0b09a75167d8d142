package analytics

import "time"

type EventType string

const (
	EventSearch       EventType = "search"
	EventZeroResult   EventType = "zero_result"
	EventAutocomplete EventType = "autocomplete"
	EventError        EventType = "error"
)

// SearchEvent records one served query. It is published to Kafka as JSON
// and folded into the in-process Aggregator.
type SearchEvent struct {
	Type         EventType `json:"type"`
	Mode         string    `json:"mode"`
	Query        string    `json:"query"`
	Terms        []string  `json:"terms,omitempty"`
	TotalResults int       `json:"total_results"`
	Returned     int       `json:"returned"`
	Page         int       `json:"page,omitempty"`
	LatencyMs    float64   `json:"latency_ms"`
	CacheHit     bool      `json:"cache_hit"`
	BuildID      string    `json:"build_id,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	RequestID    string    `json:"request_id,omitempty"`
}
