package trace

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Advisor-core-poc-v1/server/internal/advisor/model"
	"github.com/Advisor-core-poc-v1/server/internal/metrics"
	logx "github.com/Advisor-core-poc-v1/server/pkg/logger"
)

// Recorder is the append-only execution log, one trace per conversation turn.
// Every recording call is best-effort: a failed persist is logged and counted,
// never surfaced to the turn. Appends for a given trace_id are serialized by a
// per-trace mutex; different trace ids are independent.
type Recorder struct {
	store  Store
	redact redactor

	mu   sync.Mutex
	live map[string]*liveTrace
}

type liveTrace struct {
	mu sync.Mutex
	t  *model.ExecutionTrace
}

func NewRecorder(store Store, level model.DetailLevel) *Recorder {
	return &Recorder{
		store:  store,
		redact: redactor{level: level},
		live:   make(map[string]*liveTrace),
	}
}

// Start opens a new in-progress trace for a turn and returns its id.
func (r *Recorder) Start(ctx context.Context, conversationID string) string {
	t := &model.ExecutionTrace{
		TraceID:        uuid.NewString(),
		ConversationID: conversationID,
		Steps:          []model.GraphStep{},
		Edges:          []model.EdgeRecord{},
		ToolCalls:      []model.ToolCallRecord{},
		Errors:         []model.ErrorRecord{},
		Status:         model.TraceInProgress,
		StartedAt:      time.Now().UTC(),
	}

	lt := &liveTrace{t: t}
	r.mu.Lock()
	r.live[t.TraceID] = lt
	r.mu.Unlock()

	r.persist(ctx, t)
	return t.TraceID
}

// SetRouting stamps the classified intent and chosen route onto the trace.
func (r *Recorder) SetRouting(ctx context.Context, traceID string, intent model.Intent, route model.Route, handoffReason string) {
	r.append(ctx, traceID, func(t *model.ExecutionTrace) {
		t.Intent = intent
		t.Route = route
		t.HandoffReason = handoffReason
	})
}

// RecordStep appends one node execution.
func (r *Recorder) RecordStep(ctx context.Context, traceID, node, input, output string, dur time.Duration) {
	r.append(ctx, traceID, func(t *model.ExecutionTrace) {
		t.Steps = append(t.Steps, model.GraphStep{
			NodeName:   node,
			Input:      r.redact.payload(input),
			Output:     r.redact.payload(output),
			DurationMS: dur.Milliseconds(),
			Timestamp:  time.Now().UTC(),
		})
	})
}

// RecordEdge appends one transition taken.
func (r *Recorder) RecordEdge(ctx context.Context, traceID, from, to, condition string) {
	r.append(ctx, traceID, func(t *model.ExecutionTrace) {
		t.Edges = append(t.Edges, model.EdgeRecord{From: from, To: to, Condition: condition})
	})
}

// RecordToolCall appends one tool invocation, recorded even on error.
func (r *Recorder) RecordToolCall(ctx context.Context, traceID, name, input, output string, dur time.Duration, callErr string) {
	r.append(ctx, traceID, func(t *model.ExecutionTrace) {
		t.ToolCalls = append(t.ToolCalls, model.ToolCallRecord{
			ToolName:   name,
			Input:      r.redact.payload(input),
			Output:     r.redact.payload(output),
			DurationMS: dur.Milliseconds(),
			Error:      callErr,
		})
	})
}

// RecordError appends an error with enough context to reproduce it.
func (r *Recorder) RecordError(ctx context.Context, traceID, kind, message, detail string) {
	r.append(ctx, traceID, func(t *model.ExecutionTrace) {
		t.Errors = append(t.Errors, model.ErrorRecord{
			Kind:      kind,
			Message:   message,
			Detail:    r.redact.payload(detail),
			Timestamp: time.Now().UTC(),
		})
	})
}

// Finalize closes the trace exactly once. Further Finalize calls are ignored;
// further appends are rejected because the trace leaves the live set.
func (r *Recorder) Finalize(ctx context.Context, traceID, finalOutput string, explanation *model.Explanation, status model.TraceStatus) {
	r.mu.Lock()
	lt, ok := r.live[traceID]
	delete(r.live, traceID)
	r.mu.Unlock()
	if !ok {
		logx.Warn().Str("trace_id", traceID).Msg("finalize on unknown or already finalized trace")
		return
	}

	lt.mu.Lock()
	defer lt.mu.Unlock()
	now := time.Now().UTC()
	lt.t.FinalOutput = finalOutput
	lt.t.Explanation = explanation
	lt.t.Status = status
	lt.t.FinalizedAt = &now
	r.persist(ctx, lt.t)
}

// GetTrace loads a trace and appends an access-log entry (the only mutation
// allowed after finalize). The returned copy excludes the access log so that
// repeated reads of a completed trace are byte-identical.
func (r *Recorder) GetTrace(ctx context.Context, traceID, actor string) (*model.ExecutionTrace, error) {
	t, err := r.store.Get(ctx, traceID)
	if err != nil {
		return nil, err
	}

	stored := *t
	stored.AccessLog = append(stored.AccessLog, model.AccessEntry{Timestamp: time.Now().UTC(), Actor: actor})
	if err := r.store.Put(ctx, &stored); err != nil {
		metrics.TracePersistFailures.Inc()
		logx.Warn().Err(err).Str("trace_id", traceID).Msg("failed to persist trace access entry")
	}

	t.AccessLog = nil
	return t, nil
}

// ListTraces returns summaries matching the filter, newest first.
func (r *Recorder) ListTraces(ctx context.Context, filter model.TraceFilter) ([]model.TraceSummary, error) {
	return r.store.List(ctx, filter)
}

// append serializes a mutation plus its persist for one trace id.
func (r *Recorder) append(ctx context.Context, traceID string, fn func(*model.ExecutionTrace)) {
	r.mu.Lock()
	lt, ok := r.live[traceID]
	r.mu.Unlock()
	if !ok {
		logx.Warn().Str("trace_id", traceID).Msg("append on unknown or finalized trace, dropping entry")
		return
	}

	lt.mu.Lock()
	defer lt.mu.Unlock()
	fn(lt.t)
	r.persist(ctx, lt.t)
}

func (r *Recorder) persist(ctx context.Context, t *model.ExecutionTrace) {
	if err := r.store.Put(ctx, t); err != nil {
		metrics.TracePersistFailures.Inc()
		logx.Warn().Err(err).Str("trace_id", t.TraceID).Msg("trace persist failed, continuing turn")
	}
}
