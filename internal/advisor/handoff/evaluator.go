package handoff

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/Advisor-core-poc-v1/server/internal/advisor/gateway"
	logx "github.com/Advisor-core-poc-v1/server/pkg/logger"
)

// Notice is the fixed hand-off reply. It is never model-generated.
const Notice = "Sua solicitação será encaminhada para um de nossos especialistas. Um atendente humano dará continuidade a este atendimento em breve."

// UnlistedMatch is attached as the reason when the classifier signals a match
// but its output cannot be mapped back to a listed rule. A positive signal is
// never silently dropped.
const UnlistedMatch = "matched but unlisted"

const sentinelNone = "NONE"

// Evaluator decides whether a message triggers escalation to a human, by
// phrasing both checks as a constrained classification call to the gateway.
type Evaluator struct {
	gw gateway.ModelGateway
}

func NewEvaluator(gw gateway.ModelGateway) *Evaluator {
	return &Evaluator{gw: gw}
}

// MatchesRedirectRule asks the classifier whether the message falls under any
// of the redirect rules. Gateway failures propagate so the caller can fail
// closed to "no match".
func (e *Evaluator) MatchesRedirectRule(ctx context.Context, message string, rules []string) (string, bool, error) {
	if len(rules) == 0 {
		return "", false, nil
	}

	var sb strings.Builder
	sb.WriteString("Você é um classificador de regras de encaminhamento de um assistente financeiro.\n")
	sb.WriteString("Regras vigentes:\n")
	for i, r := range rules {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, r)
	}
	sb.WriteString("\nSe a mensagem do cliente se enquadrar em alguma regra, responda com o texto EXATO da regra.\n")
	sb.WriteString("Se nenhuma regra se aplicar, responda exatamente " + sentinelNone + ".\n")
	sb.WriteString("Responda apenas com a regra ou " + sentinelNone + ", sem comentários.")

	verdict, err := e.classify(ctx, sb.String(), message)
	if err != nil {
		return "", false, err
	}
	if verdict == "" || strings.EqualFold(verdict, sentinelNone) {
		return "", false, nil
	}

	if rule, ok := matchBack(verdict, rules); ok {
		return rule, true, nil
	}
	logx.Warn().Str("verdict", verdict).Msg("redirect classifier returned unlisted rule text")
	return UnlistedMatch, true, nil
}

// RequestsDisallowedTopic asks the classifier whether the message requests a
// topic whose permission is false.
func (e *Evaluator) RequestsDisallowedTopic(ctx context.Context, message string, permissions map[string]bool) (string, bool, error) {
	var denied []string
	for topic, allowed := range permissions {
		if !allowed {
			denied = append(denied, topic)
		}
	}
	if len(denied) == 0 {
		return "", false, nil
	}

	var sb strings.Builder
	sb.WriteString("Você é um classificador de temas de um assistente financeiro.\n")
	sb.WriteString("Temas vedados: " + strings.Join(denied, ", ") + "\n")
	sb.WriteString("\nSe a mensagem do cliente pedir orientação sobre algum tema vedado, responda com o nome EXATO do tema.\n")
	sb.WriteString("Caso contrário, responda exatamente " + sentinelNone + ".\n")
	sb.WriteString("Responda apenas com o tema ou " + sentinelNone + ", sem comentários.")

	verdict, err := e.classify(ctx, sb.String(), message)
	if err != nil {
		return "", false, err
	}
	if verdict == "" || strings.EqualFold(verdict, sentinelNone) {
		return "", false, nil
	}

	if topic, ok := matchBack(verdict, denied); ok {
		return topic, true, nil
	}
	logx.Warn().Str("verdict", verdict).Msg("topic classifier returned unlisted topic")
	return UnlistedMatch, true, nil
}

func (e *Evaluator) classify(ctx context.Context, system, message string) (string, error) {
	out, err := e.gw.Complete(ctx, []*schema.Message{
		schema.SystemMessage(system),
		schema.UserMessage(message),
	})
	if err != nil {
		return "", err
	}
	if out == nil {
		return "", nil
	}
	return strings.TrimSpace(out.Content), nil
}

// matchBack maps a free-text verdict onto a listed entry by substring
// containment in either direction.
func matchBack(verdict string, listed []string) (string, bool) {
	v := strings.ToLower(verdict)
	for _, item := range listed {
		l := strings.ToLower(item)
		if strings.Contains(v, l) || strings.Contains(l, v) {
			return item, true
		}
	}
	return "", false
}
