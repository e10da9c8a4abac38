package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/Advisor-core-poc-v1/server/internal/advisor/model"
	"github.com/Advisor-core-poc-v1/server/internal/advisor/tools"
	"github.com/Advisor-core-poc-v1/server/internal/metrics"
	errx "github.com/Advisor-core-poc-v1/server/internal/core/error"
	logx "github.com/Advisor-core-poc-v1/server/pkg/logger"
)

const complianceSystemPrompt = `Você é o revisor de compliance de um assistente financeiro.
Receberá a pergunta do cliente e a resposta rascunhada pelo assistente.
Consulte as políticas de compliance vigentes pelas ferramentas disponíveis e verifique se a resposta as respeita.
Se a resposta estiver em conformidade, devolva EXATAMENTE o mesmo texto.
Se violar alguma política, devolva a versão corrigida do texto, sem comentários adicionais.
Nunca devolva explicações sobre a revisão; devolva apenas o texto final para o cliente.`

// reviewCompliance runs the second, independent gateway pass over the draft
// answer. A failed pass degrades to the unreviewed draft: a compliance gap is
// logged and flagged on the trace, never surfaced as a user-facing error.
func (e *Engine) reviewCompliance(ctx context.Context, traceID, question, draft string) model.ComplianceOutcome {
	degraded := func(err error) model.ComplianceOutcome {
		metrics.ComplianceDegradations.Inc()
		e.recorder.RecordError(ctx, traceID, string(errx.KindComplianceUnavailable),
			"compliance review unavailable, returning unreviewed draft", err.Error())
		logx.Warn().Err(err).Str("trace_id", traceID).Msg("compliance pass failed, degrading to unreviewed draft")
		return model.ComplianceOutcome{ValidatedText: draft, Reviewed: false}
	}

	messages := []*schema.Message{
		schema.SystemMessage(complianceSystemPrompt),
		schema.UserMessage(fmt.Sprintf("Pergunta do cliente:\n%s\n\nResposta rascunhada:\n%s", question, draft)),
	}

	var (
		consulted []string
		validated string
		idSeq     int
	)

	for iteration := 1; ; iteration++ {
		if err := ctx.Err(); err != nil {
			return degraded(err)
		}
		if iteration > e.complianceMaxIterations {
			e.recorder.RecordError(ctx, traceID, string(errx.KindComplianceUnavailable),
				"compliance review iteration cap reached",
				fmt.Sprintf("cap=%d", e.complianceMaxIterations))
			if validated == "" {
				return degraded(fmt.Errorf("iteration cap %d reached without a verdict", e.complianceMaxIterations))
			}
			break
		}

		out, err := e.complianceGW.Complete(ctx, messages)
		if err != nil {
			metrics.GatewayErrors.Inc()
			return degraded(err)
		}
		if c := strings.TrimSpace(out.Content); c != "" {
			validated = c
		}

		if len(out.ToolCalls) == 0 {
			break
		}

		for i := range out.ToolCalls {
			if strings.TrimSpace(out.ToolCalls[i].ID) == "" {
				idSeq++
				out.ToolCalls[i].ID = fmt.Sprintf("review_call_%d", idSeq)
			}
		}
		messages = append(messages, out)

		for _, call := range out.ToolCalls {
			name := call.Function.Name
			start := time.Now()
			result, err := e.policyRegistry.Invoke(ctx, name, call.Function.Arguments)
			elapsed := time.Since(start)
			if err != nil {
				e.recorder.RecordToolCall(ctx, traceID, name, call.Function.Arguments, "", elapsed, err.Error())
				messages = append(messages, schema.ToolMessage(
					fmt.Sprintf("{\"error\":\"policy_lookup_failed\",\"name\":%q}", name), call.ID))
				continue
			}
			e.recorder.RecordToolCall(ctx, traceID, name, call.Function.Arguments, result, elapsed, "")
			consulted = appendConsulted(consulted, name, call.Function.Arguments)
			messages = append(messages, schema.ToolMessage(result, call.ID))
		}
	}

	if validated == "" {
		return degraded(fmt.Errorf("compliance review returned empty verdict"))
	}
	return model.ComplianceOutcome{ValidatedText: validated, PoliciesConsulted: consulted, Reviewed: true}
}

// appendConsulted tracks which policy documents the reviewer actually read.
func appendConsulted(consulted []string, toolName, argsJSON string) []string {
	if toolName != tools.ToolGetCompliancePolicy {
		return consulted
	}
	var in tools.GetCompliancePolicyInput
	if err := json.Unmarshal([]byte(argsJSON), &in); err != nil || in.PolicyID == "" {
		return consulted
	}
	for _, id := range consulted {
		if id == in.PolicyID {
			return consulted
		}
	}
	return append(consulted, in.PolicyID)
}
