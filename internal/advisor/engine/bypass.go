package engine

import (
	"context"
	"time"

	"github.com/Advisor-core-poc-v1/server/internal/advisor/model"
	"github.com/Advisor-core-poc-v1/server/internal/advisor/tools"
	"github.com/Advisor-core-poc-v1/server/internal/metrics"
	errx "github.com/Advisor-core-poc-v1/server/internal/core/error"
	logx "github.com/Advisor-core-poc-v1/server/pkg/logger"
)

// bypassPipelines maps each bypass intent to its fixed tool sequence. The
// information need of these intents is known in advance, so no model is used
// to select tools; the answer stays reproducible and cheap.
var bypassPipelines = map[model.Intent][]string{
	model.IntentSimpleProfileQuery: {
		tools.ToolGetInvestorProfile,
	},
	model.IntentAdequacyAnalysis: {
		tools.ToolGetInvestorProfile,
		tools.ToolAnalyzeAdequacy,
		tools.ToolAnalyzeGoals,
		tools.ToolAnalyzeDiversity,
		tools.ToolRecommendRebalance,
	},
	model.IntentDiversification: {
		tools.ToolGetPortfolio,
		tools.ToolAnalyzeDiversity,
	},
	model.IntentRebalance: {
		tools.ToolGetInvestorProfile,
		tools.ToolAnalyzeAdequacy,
		tools.ToolRecommendRebalance,
	},
	model.IntentProjection: {
		tools.ToolGetInvestorProfile,
		tools.ToolProjectPortfolio,
	},
	model.IntentOpportunitySearch: {
		tools.ToolGetInvestorProfile,
		tools.ToolSearchOpportunities,
	},
}

// runBypass executes the fixed pipeline for the intent and returns the
// aggregated structured outputs. Any tool failure is terminal for the turn.
func (e *Engine) runBypass(ctx context.Context, traceID string, intent model.Intent) ([]analysisResult, []string, error) {
	pipeline, ok := bypassPipelines[intent]
	if !ok {
		// Router and pipeline catalogs are kept in sync; reaching this means a
		// bypass intent without a pipeline.
		return nil, nil, errx.NewKind(nil, errx.KindExternalService, "no pipeline for intent")
	}

	var results []analysisResult
	var used []string
	for _, name := range pipeline {
		start := time.Now()
		out, err := e.registry.Invoke(ctx, name, "{}")
		elapsed := time.Since(start)

		if err != nil {
			metrics.ToolCallsTotal.WithLabelValues(name, "error").Inc()
			e.recorder.RecordToolCall(ctx, traceID, name, "{}", "", elapsed, err.Error())
			logx.Error().Err(err).Str("tool", name).Str("trace_id", traceID).Msg("bypass pipeline tool failed")
			return nil, used, err
		}

		metrics.ToolCallsTotal.WithLabelValues(name, "ok").Inc()
		e.recorder.RecordToolCall(ctx, traceID, name, "{}", out, elapsed, "")
		results = append(results, analysisResult{Tool: name, Output: out})
		used = append(used, name)

		if ctx.Err() != nil {
			return nil, used, ctx.Err()
		}
	}
	return results, used, nil
}
