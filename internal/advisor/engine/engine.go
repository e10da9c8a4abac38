package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/Advisor-core-poc-v1/server/internal/advisor/calc"
	"github.com/Advisor-core-poc-v1/server/internal/advisor/gateway"
	"github.com/Advisor-core-poc-v1/server/internal/advisor/handoff"
	"github.com/Advisor-core-poc-v1/server/internal/advisor/intent"
	"github.com/Advisor-core-poc-v1/server/internal/advisor/model"
	"github.com/Advisor-core-poc-v1/server/internal/advisor/policy"
	"github.com/Advisor-core-poc-v1/server/internal/advisor/router"
	"github.com/Advisor-core-poc-v1/server/internal/advisor/tools"
	"github.com/Advisor-core-poc-v1/server/internal/advisor/trace"
	"github.com/Advisor-core-poc-v1/server/internal/metrics"
	errx "github.com/Advisor-core-poc-v1/server/internal/core/error"
	logx "github.com/Advisor-core-poc-v1/server/pkg/logger"
)

// Graph node names, recorded on every step and edge.
const (
	nodeStart      = "start"
	nodeClassifier = "intent_classifier"
	nodePolicy     = "policy_fetch"
	nodeRouter     = "router"
	nodeCalculator = "calculator"
	nodeHandoff    = "human_handoff"
	nodeBypass     = "bypass_executor"
	nodeAgent      = "reasoning_loop"
	nodeCompliance = "compliance_reviewer"
	nodeFormatter  = "formatter"
	nodeEnd        = "end"
)

const agentSystemPrompt = `Você é um assistente de investimentos de um banco brasileiro.
Responda em português, de forma objetiva e cordial.
Use as ferramentas disponíveis para consultar perfil, carteira, análises e oportunidades antes de responder.
Nunca garanta rentabilidade futura e nunca recomende produtos incompatíveis com o perfil do cliente.`

// divisionByZeroMessage is the fixed, non-leaking reply for the one fatal
// calculator error.
const divisionByZeroMessage = "Não é possível calcular uma divisão por zero."

// Config wires the engine's collaborators.
type Config struct {
	ReasoningGateway  gateway.ModelGateway
	ClassifierGateway gateway.ModelGateway
	Registry          *tools.Registry
	PolicyRegistry    *tools.Registry
	PolicySource      policy.Source
	Recorder          *trace.Recorder
	Conversations     model.ConversationRepository

	AgentMaxIterations      int
	ComplianceMaxIterations int
}

// Engine orchestrates one conversation turn end to end: classify, route,
// execute the chosen path, review, format, persist, trace.
type Engine struct {
	classifier *intent.Classifier
	router     *router.Router

	agentGW      gateway.ModelGateway
	complianceGW gateway.ModelGateway

	registry       *tools.Registry
	policyRegistry *tools.Registry
	policySource   policy.Source
	recorder       *trace.Recorder
	conversations  model.ConversationRepository

	locks *keyedMutex

	agentMaxIterations      int
	complianceMaxIterations int
}

// TurnResult is the outcome of one processed turn.
type TurnResult struct {
	Response      string
	TraceID       string
	Explanation   *model.Explanation
	HandoffReason string

	routeLabel string
}

// NewEngine binds the tool catalogs to the reasoning gateway and assembles the
// orchestrator. Registries are immutable after this point.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.ReasoningGateway == nil || cfg.ClassifierGateway == nil {
		return nil, fmt.Errorf("gateways are not configured")
	}
	if cfg.Registry == nil || cfg.PolicyRegistry == nil {
		return nil, fmt.Errorf("tool registries are not configured")
	}
	if cfg.Recorder == nil {
		return nil, fmt.Errorf("trace recorder is nil")
	}
	if cfg.Conversations == nil {
		return nil, fmt.Errorf("conversation repo is nil")
	}

	agentGW, err := cfg.ReasoningGateway.WithTools(cfg.Registry.Infos())
	if err != nil {
		return nil, fmt.Errorf("bind analysis tools: %w", err)
	}
	complianceGW, err := cfg.ReasoningGateway.WithTools(cfg.PolicyRegistry.Infos())
	if err != nil {
		return nil, fmt.Errorf("bind policy tools: %w", err)
	}

	agentMax := cfg.AgentMaxIterations
	if agentMax <= 0 {
		agentMax = 10
	}
	complianceMax := cfg.ComplianceMaxIterations
	if complianceMax <= 0 {
		complianceMax = 3
	}

	return &Engine{
		classifier:              intent.NewClassifier(),
		router:                  router.New(handoff.NewEvaluator(cfg.ClassifierGateway)),
		agentGW:                 agentGW,
		complianceGW:            complianceGW,
		registry:                cfg.Registry,
		policyRegistry:          cfg.PolicyRegistry,
		policySource:            cfg.PolicySource,
		recorder:                cfg.Recorder,
		conversations:           cfg.Conversations,
		locks:                   newKeyedMutex(),
		agentMaxIterations:      agentMax,
		complianceMaxIterations: complianceMax,
	}, nil
}

// ProcessTurn handles one user message. Turns for the same conversation id are
// serialized; different conversations proceed concurrently.
func (e *Engine) ProcessTurn(ctx context.Context, conversationID, message string) (*TurnResult, error) {
	if strings.TrimSpace(message) == "" {
		return nil, errx.NewKind(fmt.Errorf("empty message"), errx.KindValidation, "message is required")
	}
	if strings.TrimSpace(conversationID) == "" {
		return nil, errx.NewKind(fmt.Errorf("empty conversation id"), errx.KindValidation, "conversation id is required")
	}

	unlock := e.locks.Lock(conversationID)
	defer unlock()

	traceID := e.recorder.Start(ctx, conversationID)
	result, status, err := e.runTurn(ctx, traceID, conversationID, message)

	// Finalize must succeed even when the caller already cancelled.
	finalCtx := context.WithoutCancel(ctx)
	if err != nil && isCancellation(err) {
		e.recorder.RecordError(finalCtx, traceID, string(errx.KindExternalService), "turn cancelled by caller", err.Error())
		status = model.TraceError
	}

	var final string
	var explanation *model.Explanation
	if result != nil {
		final = result.Response
		explanation = result.Explanation
	}
	e.recorder.Finalize(finalCtx, traceID, final, explanation, status)

	route := "unknown"
	if result != nil {
		if result.TraceID == "" {
			result.TraceID = traceID
		}
		if result.routeLabel != "" {
			route = result.routeLabel
		}
	}
	metrics.TurnsTotal.WithLabelValues(route, string(status)).Inc()

	if err != nil {
		return nil, err
	}
	return result, nil
}

// runTurn executes the node sequence and returns the draft result plus the
// final trace status. It never finalizes the trace itself.
func (e *Engine) runTurn(ctx context.Context, traceID, conversationID, message string) (*TurnResult, model.TraceStatus, error) {
	history := e.loadHistory(ctx, traceID, conversationID)

	// Intent classification, deterministic and local.
	start := time.Now()
	turnIntent := e.classifier.Classify(message, history)
	e.recorder.RecordStep(ctx, traceID, nodeClassifier, message, string(turnIntent), time.Since(start))
	e.recorder.RecordEdge(ctx, traceID, nodeStart, nodeClassifier, "")
	e.recorder.RecordEdge(ctx, traceID, nodeClassifier, nodeRouter, "classified")

	// Routing policy fetch; defaults always apply when the source is down.
	start = time.Now()
	routingPolicy := policy.FetchRoutingPolicy(ctx, e.policySource, conversationID)
	e.recorder.RecordStep(ctx, traceID, nodePolicy, conversationID,
		fmt.Sprintf("rules=%d topics=%d", len(routingPolicy.RedirectRules), len(routingPolicy.TopicPermissions)), time.Since(start))
	if err := ctx.Err(); err != nil {
		return nil, model.TraceError, err
	}

	// Route decision.
	start = time.Now()
	decision := e.router.Decide(ctx, turnIntent, routingPolicy, message, history)
	for _, w := range decision.Warnings {
		e.recorder.RecordError(ctx, traceID, string(errx.KindExternalService), "handoff evaluation failed closed to no match", w.Error())
	}
	e.recorder.RecordStep(ctx, traceID, nodeRouter, string(turnIntent), string(decision.Route), time.Since(start))
	e.recorder.SetRouting(ctx, traceID, turnIntent, decision.Route, decision.Reason)
	if err := ctx.Err(); err != nil {
		return nil, model.TraceError, err
	}

	result := &TurnResult{TraceID: traceID, routeLabel: string(decision.Route)}
	status := model.TraceCompleted

	switch decision.Route {
	case model.RouteCalculate:
		e.recorder.RecordEdge(ctx, traceID, nodeRouter, nodeCalculator, decision.Condition)
		text, calcStatus := e.runCalculator(ctx, traceID, decision.Expression)
		result.Response = text
		status = calcStatus
		e.recorder.RecordEdge(ctx, traceID, nodeCalculator, nodeFormatter, "computed")

	case model.RouteHandoff:
		e.recorder.RecordEdge(ctx, traceID, nodeRouter, nodeHandoff, decision.Condition)
		start = time.Now()
		result.Response = handoff.Notice
		result.HandoffReason = decision.Reason
		e.recorder.RecordStep(ctx, traceID, nodeHandoff, decision.Reason, handoff.Notice, time.Since(start))
		e.recorder.RecordEdge(ctx, traceID, nodeHandoff, nodeFormatter, "handoff_notice")

	case model.RouteBypass:
		e.recorder.RecordEdge(ctx, traceID, nodeRouter, nodeBypass, decision.Condition)
		start = time.Now()
		results, used, err := e.runBypass(ctx, traceID, turnIntent)
		e.recorder.RecordStep(ctx, traceID, nodeBypass, string(turnIntent), fmt.Sprintf("%d analyses", len(results)), time.Since(start))
		if err != nil {
			if isCancellation(err) {
				return result, model.TraceError, err
			}
			e.recorder.RecordError(ctx, traceID, string(errx.KindExternalService), "bypass pipeline failed", err.Error())
			result.Response = errx.ServiceUnavailableMessage
			status = model.TraceError
			break
		}
		draft := formatBypass(results)
		result.Explanation = &model.Explanation{ToolsUsed: used}
		result.Response = e.runComplianceNode(ctx, traceID, nodeBypass, message, draft)

	case model.RouteAgent:
		e.recorder.RecordEdge(ctx, traceID, nodeRouter, nodeAgent, decision.Condition)
		messages := buildAgentMessages(history, message)
		start = time.Now()
		draft, used, err := e.runReasoningLoop(ctx, traceID, messages)
		e.recorder.RecordStep(ctx, traceID, nodeAgent, message, draft, time.Since(start))
		if err != nil {
			if isCancellation(err) {
				return result, model.TraceError, err
			}
			e.recorder.RecordError(ctx, traceID, string(errx.KindExternalService), "reasoning loop failed", err.Error())
			result.Response = errx.ServiceUnavailableMessage
			status = model.TraceError
			break
		}
		if len(used) > 0 {
			result.Explanation = &model.Explanation{ToolsUsed: used}
		}
		result.Response = e.runComplianceNode(ctx, traceID, nodeAgent, message, draft)
	}

	// Formatter closes the graph for every path.
	e.recorder.RecordStep(ctx, traceID, nodeFormatter, "", result.Response, 0)
	e.recorder.RecordEdge(ctx, traceID, nodeFormatter, nodeEnd, "reply_ready")

	e.appendConversation(ctx, traceID, conversationID, message, result.Response)
	return result, status, nil
}

// runCalculator computes a detected arithmetic expression. Division by zero is
// fatal for the turn only.
func (e *Engine) runCalculator(ctx context.Context, traceID string, expr *calc.Expression) (string, model.TraceStatus) {
	start := time.Now()
	value, err := calc.Compute(expr)
	if err != nil {
		e.recorder.RecordStep(ctx, traceID, nodeCalculator,
			fmt.Sprintf("%v %c %v", expr.Operand1, expr.Operator, expr.Operand2), "", time.Since(start))
		e.recorder.RecordError(ctx, traceID, string(errx.KindArithmetic), "arithmetic evaluation failed", err.Error())
		return divisionByZeroMessage, model.TraceError
	}
	text := formatCalculation(expr, value)
	e.recorder.RecordStep(ctx, traceID, nodeCalculator,
		fmt.Sprintf("%v %c %v", expr.Operand1, expr.Operator, expr.Operand2), text, time.Since(start))
	return text, model.TraceCompleted
}

// runComplianceNode wraps the review pass with its trace bookkeeping.
func (e *Engine) runComplianceNode(ctx context.Context, traceID, fromNode, question, draft string) string {
	e.recorder.RecordEdge(ctx, traceID, fromNode, nodeCompliance, "draft_ready")
	start := time.Now()
	outcome := e.reviewCompliance(ctx, traceID, question, draft)
	e.recorder.RecordStep(ctx, traceID, nodeCompliance, draft, outcome.ValidatedText, time.Since(start))
	e.recorder.RecordEdge(ctx, traceID, nodeCompliance, nodeFormatter, reviewLabel(outcome))
	return outcome.ValidatedText
}

func reviewLabel(outcome model.ComplianceOutcome) string {
	if !outcome.Reviewed {
		return "unreviewed_draft"
	}
	if len(outcome.PoliciesConsulted) > 0 {
		return "reviewed_with_policies"
	}
	return "reviewed"
}

// loadHistory degrades to an empty history on read failure; the turn continues.
func (e *Engine) loadHistory(ctx context.Context, traceID, conversationID string) []*schema.Message {
	h, err := e.conversations.LoadHistory(ctx, conversationID)
	if err != nil {
		e.recorder.RecordError(ctx, traceID, string(errx.KindPersistence), "failed to load conversation history", err.Error())
		logx.Warn().Err(err).Str("conversation_id", conversationID).Msg("proceeding with empty history")
		return nil
	}
	return h.Messages
}

// appendConversation persists the completed turn. Write failures are recovered
// locally: audit completeness never blocks the reply.
func (e *Engine) appendConversation(ctx context.Context, traceID, conversationID, userText, assistantText string) {
	if err := e.conversations.AddMessage(ctx, conversationID, schema.UserMessage(userText)); err != nil {
		e.recorder.RecordError(ctx, traceID, string(errx.KindPersistence), "failed to append user message", err.Error())
		return
	}
	if assistantText == "" {
		return
	}
	if err := e.conversations.AddMessage(ctx, conversationID, schema.AssistantMessage(assistantText, nil)); err != nil {
		e.recorder.RecordError(ctx, traceID, string(errx.KindPersistence), "failed to append assistant message", err.Error())
	}
}

func buildAgentMessages(history []*schema.Message, message string) []*schema.Message {
	messages := make([]*schema.Message, 0, len(history)+2)
	messages = append(messages, schema.SystemMessage(agentSystemPrompt))
	messages = append(messages, history...)
	messages = append(messages, schema.UserMessage(message))
	return messages
}

func isCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
