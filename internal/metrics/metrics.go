package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Turn-level counters. Trace persistence failures are deliberately only
// surfaced here: audit completeness must never block user-facing service.
var (
	TurnsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "advisor_turns_total",
		Help: "Conversation turns processed, by route and status.",
	}, []string{"route", "status"})

	TracePersistFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "advisor_trace_persist_failures_total",
		Help: "Trace write attempts that failed and were swallowed.",
	})

	GatewayErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "advisor_gateway_errors_total",
		Help: "Model gateway calls that failed or timed out.",
	})

	ComplianceDegradations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "advisor_compliance_degradations_total",
		Help: "Turns answered with an unreviewed draft because the compliance pass was unavailable.",
	})

	ToolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "advisor_tool_calls_total",
		Help: "Tool invocations, by tool name and outcome.",
	}, []string{"tool", "outcome"})
)
