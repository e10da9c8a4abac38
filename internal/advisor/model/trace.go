package model

import "time"

// TraceStatus is the lifecycle state of an execution trace.
type TraceStatus string

const (
	TraceInProgress TraceStatus = "in_progress"
	TraceCompleted  TraceStatus = "completed"
	TraceError      TraceStatus = "error"
)

// DetailLevel controls how raw prompt/response payloads are persisted on the
// trace. This is a compliance/privacy knob, not a correctness one.
type DetailLevel string

const (
	DetailOmitted   DetailLevel = "omitted"
	DetailTruncated DetailLevel = "truncated"
	DetailFull      DetailLevel = "full"
)

// ParseDetailLevel normalises the configured value, falling back to full.
func ParseDetailLevel(v string) DetailLevel {
	switch DetailLevel(v) {
	case DetailOmitted:
		return DetailOmitted
	case DetailTruncated:
		return DetailTruncated
	default:
		return DetailFull
	}
}

// GraphStep records one node execution within a turn.
type GraphStep struct {
	NodeName   string    `json:"node_name"`
	Input      string    `json:"input,omitempty"`
	Output     string    `json:"output,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	Timestamp  time.Time `json:"timestamp"`
}

// EdgeRecord records one transition taken between nodes.
type EdgeRecord struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Condition string `json:"condition"`
}

// ToolCallRecord records one actual tool invocation, including failed ones.
type ToolCallRecord struct {
	ToolName   string `json:"tool_name"`
	Input      string `json:"input,omitempty"`
	Output     string `json:"output,omitempty"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// ErrorRecord records a non-recovered (or notable recovered) error on the trace.
type ErrorRecord struct {
	Kind      string    `json:"kind"`
	Message   string    `json:"message"`
	Detail    string    `json:"detail,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// AccessEntry is trace-level audit metadata; the only mutation allowed after finalize.
type AccessEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor,omitempty"`
}

// ExecutionTrace is the complete, append-only record of one conversation turn.
type ExecutionTrace struct {
	TraceID        string           `json:"trace_id"`
	ConversationID string           `json:"conversation_id"`
	Intent         Intent           `json:"intent,omitempty"`
	Route          Route            `json:"route,omitempty"`
	HandoffReason  string           `json:"handoff_reason,omitempty"`
	Steps          []GraphStep      `json:"steps"`
	Edges          []EdgeRecord     `json:"edges"`
	ToolCalls      []ToolCallRecord `json:"tool_calls"`
	Errors         []ErrorRecord    `json:"errors"`
	FinalOutput    string           `json:"final_output,omitempty"`
	Explanation    *Explanation     `json:"explanation,omitempty"`
	Status         TraceStatus      `json:"status"`
	StartedAt      time.Time        `json:"started_at"`
	FinalizedAt    *time.Time       `json:"finalized_at,omitempty"`
	AccessLog      []AccessEntry    `json:"access_log,omitempty"`
}

// Explanation summarises how an answer was produced, returned alongside it.
type Explanation struct {
	ToolsUsed []string `json:"tools_used"`
}

// TraceSummary is the listing projection of a trace.
type TraceSummary struct {
	TraceID        string      `json:"trace_id"`
	ConversationID string      `json:"conversation_id"`
	Intent         Intent      `json:"intent,omitempty"`
	Route          Route       `json:"route,omitempty"`
	Status         TraceStatus `json:"status"`
	HasHandoff     bool        `json:"has_handoff"`
	StartedAt      time.Time   `json:"started_at"`
}

// TraceFilter narrows ListTraces results. Zero values mean "no constraint".
type TraceFilter struct {
	ConversationID string
	Status         TraceStatus
	Intent         Intent
	HasHandoff     *bool
	From           time.Time
	To             time.Time
}
