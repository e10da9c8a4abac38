package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/Advisor-core-poc-v1/server/internal/advisor/tools"
	"github.com/Advisor-core-poc-v1/server/internal/metrics"
	errx "github.com/Advisor-core-poc-v1/server/internal/core/error"
	logx "github.com/Advisor-core-poc-v1/server/pkg/logger"
)

// loopState is the explicit state of the tool-augmented reasoning loop.
type loopState int

const (
	stateCallModel loopState = iota
	stateExecuteTools
	stateDone
)

// capNotice asks the model to wrap up with what it has when the iteration cap
// is reached mid-conversation.
const capNotice = "SYSTEM NOTICE: limite de chamadas de ferramenta atingido. " +
	"Responda da melhor forma possível com as informações já coletadas e " +
	"indique eventuais limitações da resposta."

// runReasoningLoop drives the {call_model, execute_tools, done} state machine
// until the model yields free text or the iteration cap bounds the loop.
func (e *Engine) runReasoningLoop(ctx context.Context, traceID string, messages []*schema.Message) (string, []string, error) {
	var (
		state     = stateCallModel
		last      *schema.Message
		bestText  string
		used      []string
		idSeq     int
		iteration int
	)

	for state != stateDone {
		if err := ctx.Err(); err != nil {
			return bestText, used, err
		}

		switch state {
		case stateCallModel:
			iteration++
			if iteration > e.agentMaxIterations {
				e.recorder.RecordError(ctx, traceID, string(errx.KindExternalService),
					"reasoning loop iteration cap reached",
					fmt.Sprintf("cap=%d", e.agentMaxIterations))
				logx.Warn().Int("cap", e.agentMaxIterations).Str("trace_id", traceID).Msg("reasoning loop cap reached")

				// One uncounted wrap-up call with the notice attached; tool
				// calls in the reply are ignored, only free text is taken.
				messages = append(messages, schema.SystemMessage(capNotice))
				if out, err := e.agentGW.Complete(ctx, messages); err != nil {
					metrics.GatewayErrors.Inc()
					logx.Warn().Err(err).Str("trace_id", traceID).Msg("wrap-up call after cap failed")
				} else if c := strings.TrimSpace(out.Content); c != "" {
					bestText = c
				}

				if bestText == "" {
					bestText = errx.ServiceUnavailableMessage
				}
				state = stateDone
				continue
			}

			out, err := e.agentGW.Complete(ctx, messages)
			if err != nil {
				metrics.GatewayErrors.Inc()
				return bestText, used, err
			}
			last = out
			if c := strings.TrimSpace(out.Content); c != "" {
				bestText = c
			}

			if len(out.ToolCalls) == 0 {
				state = stateDone
				continue
			}

			// Some providers omit tool_call ids; synthesize them so the tool
			// results can be correlated.
			for i := range out.ToolCalls {
				if strings.TrimSpace(out.ToolCalls[i].ID) == "" {
					idSeq++
					out.ToolCalls[i].ID = fmt.Sprintf("call_%d", idSeq)
				}
			}
			messages = append(messages, out)
			state = stateExecuteTools

		case stateExecuteTools:
			for _, call := range last.ToolCalls {
				result, err := e.executeToolCall(ctx, traceID, call, &used)
				if err != nil {
					return bestText, used, err
				}
				messages = append(messages, schema.ToolMessage(result, call.ID))
			}
			state = stateCallModel
		}
	}

	return bestText, used, nil
}

// executeToolCall runs one requested tool and returns the observation to feed
// back to the model. Unknown tool names become an error observation instead of
// failing the loop, so the model can retry or answer anyway; a failure inside
// a registered tool is terminal for the turn.
func (e *Engine) executeToolCall(ctx context.Context, traceID string, call schema.ToolCall, used *[]string) (string, error) {
	name := call.Function.Name
	args := call.Function.Arguments

	start := time.Now()
	out, err := e.registry.Invoke(ctx, name, args)
	elapsed := time.Since(start)

	if err != nil {
		if errors.Is(err, tools.ErrToolNotFound) {
			metrics.ToolCallsTotal.WithLabelValues(name, "not_found").Inc()
			e.recorder.RecordToolCall(ctx, traceID, name, args, "", elapsed, "tool not found")
			logx.Warn().Str("tool_name", name).Str("trace_id", traceID).Msg("model requested unknown tool")
			return fmt.Sprintf("{\"error\":\"unknown_tool\",\"name\":%q,\"note\":\"tool does not exist, answer with available data\"}", name), nil
		}
		metrics.ToolCallsTotal.WithLabelValues(name, "error").Inc()
		e.recorder.RecordToolCall(ctx, traceID, name, args, "", elapsed, err.Error())
		return "", err
	}

	metrics.ToolCallsTotal.WithLabelValues(name, "ok").Inc()
	e.recorder.RecordToolCall(ctx, traceID, name, args, out, elapsed, "")
	*used = append(*used, name)
	return out, nil
}
