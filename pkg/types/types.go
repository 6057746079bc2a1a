package types

import "time"

// AggregationProcessorType is the processor config type of aggregation event
// definitions. Only these carry a search query usable in stream deep links.
const AggregationProcessorType = "aggregation-v1"

// SearchWindow is the half-width of the time range synthesized around an
// event's timestamp when the event carries no explicit timerange.
const SearchWindow = 15 * time.Second

// Event is a fired alerting event.
type Event struct {
	ID                  string            `json:"id"`
	EventDefinitionID   string            `json:"event_definition_id"`
	EventDefinitionType string            `json:"event_definition_type"`
	OriginContext       string            `json:"origin_context,omitempty"`
	Timestamp           time.Time         `json:"timestamp"`
	TimestampProcessing time.Time         `json:"timestamp_processing"`
	TimerangeStart      *time.Time        `json:"timerange_start,omitempty"`
	TimerangeEnd        *time.Time        `json:"timerange_end,omitempty"`
	Streams             []string          `json:"streams"`
	SourceStreams       []string          `json:"source_streams"`
	Message             string            `json:"message"`
	Source              string            `json:"source"`
	KeyTuple            []string          `json:"key_tuple"`
	Key                 string            `json:"key"`
	Priority            int               `json:"priority"`
	Alert               bool              `json:"alert"`
	Fields              map[string]string `json:"fields"`
}

// SearchRange returns the time range used to scope searches for this event:
// the explicit timerange when both bounds are present, otherwise a window of
// SearchWindow around Timestamp.
func (e Event) SearchRange() (from, to time.Time) {
	if e.TimerangeStart != nil && e.TimerangeEnd != nil {
		return *e.TimerangeStart, *e.TimerangeEnd
	}
	return e.Timestamp.Add(-SearchWindow), e.Timestamp.Add(SearchWindow)
}

// ProcessorConfig is the processor-specific part of an event definition.
type ProcessorConfig struct {
	// Type is the processor type, e.g. "aggregation-v1".
	Type string `json:"type"`

	// Query is the search query of aggregation definitions.
	Query string `json:"query,omitempty"`

	// Streams lists the streams the definition searches in.
	Streams []string `json:"streams,omitempty"`
}

// IsAggregation reports whether the config belongs to an aggregation definition.
func (c ProcessorConfig) IsAggregation() bool {
	return c.Type == AggregationProcessorType
}

// EventDefinition is the stored rule that produced an event.
type EventDefinition struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Priority    int             `json:"priority"`
	Alert       bool            `json:"alert"`
	Config      ProcessorConfig `json:"config"`
}

// JobTrigger is the scheduling record that caused the evaluation run.
type JobTrigger struct {
	ID              string    `json:"id"`
	JobDefinitionID string    `json:"job_definition_id"`
	TriggeredAt     time.Time `json:"triggered_at,omitempty"`
}

// MessageSummary is one log message that matched the event.
type MessageSummary struct {
	ID        string         `json:"id"`
	Index     string         `json:"index,omitempty"`
	StreamID  string         `json:"stream_id"`
	Source    string         `json:"source"`
	Message   string         `json:"message"`
	Timestamp time.Time      `json:"timestamp"`
	Fields    map[string]any `json:"fields,omitempty"`
}

// Stream is a named message stream.
type Stream struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}

// EventContext is everything a notification knows about one fired event.
type EventContext struct {
	Event           Event            `json:"event"`
	EventDefinition *EventDefinition `json:"event_definition,omitempty"`
	JobTrigger      *JobTrigger      `json:"job_trigger,omitempty"`

	// Backlog holds the matched messages when the caller already resolved
	// them. A nil Backlog is looked up on demand.
	Backlog []MessageSummary `json:"backlog,omitempty"`
}
