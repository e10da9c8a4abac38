package engine_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Advisor-core-poc-v1/server/internal/advisor/engine"
	"github.com/Advisor-core-poc-v1/server/internal/advisor/gateway"
	"github.com/Advisor-core-poc-v1/server/internal/advisor/handoff"
	"github.com/Advisor-core-poc-v1/server/internal/advisor/model"
	"github.com/Advisor-core-poc-v1/server/internal/advisor/policy"
	"github.com/Advisor-core-poc-v1/server/internal/advisor/repo"
	"github.com/Advisor-core-poc-v1/server/internal/advisor/tools"
	"github.com/Advisor-core-poc-v1/server/internal/advisor/trace"
	errx "github.com/Advisor-core-poc-v1/server/internal/core/error"
)

// stubGateway scripts completions. WithTools shares the script and counter, so
// the counter covers the derived agent and compliance gateways too.
type stubGateway struct {
	complete func(ctx context.Context, messages []*schema.Message) (*schema.Message, error)
	calls    *atomic.Int32
}

func newStubGateway(fn func(ctx context.Context, messages []*schema.Message) (*schema.Message, error)) *stubGateway {
	return &stubGateway{complete: fn, calls: &atomic.Int32{}}
}

func (s *stubGateway) Complete(ctx context.Context, messages []*schema.Message) (*schema.Message, error) {
	s.calls.Add(1)
	return s.complete(ctx, messages)
}

func (s *stubGateway) WithTools(infos []*schema.ToolInfo) (gateway.ModelGateway, error) {
	return &stubGateway{complete: s.complete, calls: s.calls}, nil
}

func isCompliancePrompt(messages []*schema.Message) bool {
	return len(messages) > 0 && strings.Contains(messages[0].Content, "revisor de compliance")
}

// echoDraft extracts the draft from the compliance review prompt and returns it
// unchanged, simulating an approving reviewer.
func echoDraft(ctx context.Context, messages []*schema.Message) (*schema.Message, error) {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != schema.User {
			continue
		}
		if _, after, found := strings.Cut(messages[i].Content, "Resposta rascunhada:\n"); found {
			return schema.AssistantMessage(after, nil), nil
		}
	}
	return schema.AssistantMessage("", nil), nil
}

func alwaysNone(ctx context.Context, messages []*schema.Message) (*schema.Message, error) {
	return schema.AssistantMessage("NONE", nil), nil
}

type harness struct {
	eng        *engine.Engine
	store      *trace.RedisStore
	repo       *repo.RedisConversationRepository
	reasoning  *stubGateway
	classifier *stubGateway
}

func newHarness(t *testing.T, reasoning, classifier *stubGateway) *harness {
	t.Helper()
	registry, err := tools.NewRegistry(context.Background(), tools.AnalysisTools()...)
	require.NoError(t, err)
	return newHarnessWithRegistry(t, reasoning, classifier, registry)
}

func newHarnessWithRegistry(t *testing.T, reasoning, classifier *stubGateway, registry *tools.Registry) *harness {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()
	src := policy.NewStaticSource()
	policyRegistry, err := tools.NewRegistry(ctx, tools.NewPolicyTools(src)...)
	require.NoError(t, err)

	store := trace.NewRedisStore(client, time.Hour)
	conversations := repo.NewRedisConversationRepository(client, time.Hour)

	eng, err := engine.NewEngine(engine.Config{
		ReasoningGateway:  reasoning,
		ClassifierGateway: classifier,
		Registry:          registry,
		PolicyRegistry:    policyRegistry,
		PolicySource:      src,
		Recorder:          trace.NewRecorder(store, model.DetailFull),
		Conversations:     conversations,
	})
	require.NoError(t, err)

	return &harness{eng: eng, store: store, repo: conversations, reasoning: reasoning, classifier: classifier}
}

func (h *harness) trace(t *testing.T, traceID string) *model.ExecutionTrace {
	t.Helper()
	tr, err := h.store.Get(context.Background(), traceID)
	require.NoError(t, err)
	return tr
}

func TestProcessTurn_Arithmetic(t *testing.T) {
	h := newHarness(t, newStubGateway(echoDraft), newStubGateway(alwaysNone))

	result, err := h.eng.ProcessTurn(context.Background(), "conv-1", "8 mais 7")
	require.NoError(t, err)

	assert.Equal(t, "8 + 7 = 15", result.Response)
	assert.Zero(t, h.reasoning.calls.Load(), "arithmetic turns never reach a model")
	assert.Zero(t, h.classifier.calls.Load(), "arithmetic is decided before rule checks")

	tr := h.trace(t, result.TraceID)
	assert.Equal(t, model.RouteCalculate, tr.Route)
	assert.Equal(t, model.TraceCompleted, tr.Status)
	assert.Equal(t, "8 + 7 = 15", tr.FinalOutput)
}

func TestProcessTurn_PorReadsAsMultiplication(t *testing.T) {
	h := newHarness(t, newStubGateway(echoDraft), newStubGateway(alwaysNone))

	result, err := h.eng.ProcessTurn(context.Background(), "conv-1", "8 por 7")
	require.NoError(t, err)
	assert.Equal(t, "8 * 7 = 56", result.Response)
}

func TestProcessTurn_DivisionByZero(t *testing.T) {
	h := newHarness(t, newStubGateway(echoDraft), newStubGateway(alwaysNone))

	result, err := h.eng.ProcessTurn(context.Background(), "conv-1", "10 dividido por 0")
	require.NoError(t, err)

	assert.Contains(t, result.Response, "divisão por zero")
	tr := h.trace(t, result.TraceID)
	assert.Equal(t, model.TraceError, tr.Status)
	require.NotEmpty(t, tr.Errors)
	assert.Equal(t, string(errx.KindArithmetic), tr.Errors[0].Kind)
}

func TestProcessTurn_ProfileBypass(t *testing.T) {
	reasoning := newStubGateway(func(ctx context.Context, messages []*schema.Message) (*schema.Message, error) {
		require.True(t, isCompliancePrompt(messages), "only the compliance pass may call the model on a bypass turn")
		return echoDraft(ctx, messages)
	})
	h := newHarness(t, reasoning, newStubGateway(alwaysNone))

	result, err := h.eng.ProcessTurn(context.Background(), "conv-1", "qual é o meu perfil de investidor?")
	require.NoError(t, err)

	assert.Contains(t, result.Response, "CONSERVADOR")
	require.NotNil(t, result.Explanation)
	assert.Equal(t, []string{tools.ToolGetInvestorProfile}, result.Explanation.ToolsUsed)

	tr := h.trace(t, result.TraceID)
	assert.Equal(t, model.IntentSimpleProfileQuery, tr.Intent)
	assert.Equal(t, model.RouteBypass, tr.Route)
	require.Len(t, tr.ToolCalls, 1, "profile query runs exactly one tool")
	assert.Equal(t, tools.ToolGetInvestorProfile, tr.ToolCalls[0].ToolName)
	assert.Equal(t, int32(1), reasoning.calls.Load(), "one compliance call, no reasoning loop")
}

func TestProcessTurn_RedirectRuleHandoff(t *testing.T) {
	rule := "Solicitação de valores acima de R$ 100.000"
	classifier := newStubGateway(func(ctx context.Context, messages []*schema.Message) (*schema.Message, error) {
		if strings.Contains(messages[0].Content, "Regras vigentes") {
			return schema.AssistantMessage(rule, nil), nil
		}
		return schema.AssistantMessage("NONE", nil), nil
	})
	h := newHarness(t, newStubGateway(echoDraft), classifier)

	result, err := h.eng.ProcessTurn(context.Background(), "conv-1", "quero aplicar R$ 500.000 agora")
	require.NoError(t, err)

	assert.Equal(t, handoff.Notice, result.Response)
	assert.Equal(t, rule, result.HandoffReason)
	assert.Zero(t, h.reasoning.calls.Load(), "handoff replies are fixed text, no model call")

	tr := h.trace(t, result.TraceID)
	assert.Equal(t, model.RouteHandoff, tr.Route)
	assert.Equal(t, rule, tr.HandoffReason)
}

func TestProcessTurn_DisallowedTopicHandoff(t *testing.T) {
	classifier := newStubGateway(func(ctx context.Context, messages []*schema.Message) (*schema.Message, error) {
		if strings.Contains(messages[0].Content, "Temas vedados") {
			return schema.AssistantMessage("criptomoedas", nil), nil
		}
		return schema.AssistantMessage("NONE", nil), nil
	})
	h := newHarness(t, newStubGateway(echoDraft), classifier)

	result, err := h.eng.ProcessTurn(context.Background(), "conv-1", "devo comprar bitcoin?")
	require.NoError(t, err)

	assert.Equal(t, handoff.Notice, result.Response)
	assert.Equal(t, "criptomoedas", result.HandoffReason)
}

func TestProcessTurn_AgentToolLoop(t *testing.T) {
	var agentCalls atomic.Int32
	reasoning := newStubGateway(func(ctx context.Context, messages []*schema.Message) (*schema.Message, error) {
		if isCompliancePrompt(messages) {
			return echoDraft(ctx, messages)
		}
		if agentCalls.Add(1) == 1 {
			out := schema.AssistantMessage("", nil)
			out.ToolCalls = []schema.ToolCall{{
				ID:       "call-1",
				Function: schema.FunctionCall{Name: tools.ToolGetPortfolio, Arguments: "{}"},
			}}
			return out, nil
		}
		// Second pass has the tool observation; answer with it.
		return schema.AssistantMessage("Sua carteira soma R$ 250.000,00 em cinco posições.", nil), nil
	})
	h := newHarness(t, reasoning, newStubGateway(alwaysNone))

	result, err := h.eng.ProcessTurn(context.Background(), "conv-1", "o que tenho na minha carteira?")
	require.NoError(t, err)

	assert.Equal(t, "Sua carteira soma R$ 250.000,00 em cinco posições.", result.Response)
	require.NotNil(t, result.Explanation)
	assert.Equal(t, []string{tools.ToolGetPortfolio}, result.Explanation.ToolsUsed)

	tr := h.trace(t, result.TraceID)
	assert.Equal(t, model.RouteAgent, tr.Route)
	require.Len(t, tr.ToolCalls, 1)
	assert.Equal(t, tools.ToolGetPortfolio, tr.ToolCalls[0].ToolName)
	assert.Contains(t, tr.ToolCalls[0].Output, "Tesouro Selic 2029")
}

func TestProcessTurn_AgentUnknownToolIsRecoverable(t *testing.T) {
	var agentCalls atomic.Int32
	reasoning := newStubGateway(func(ctx context.Context, messages []*schema.Message) (*schema.Message, error) {
		if isCompliancePrompt(messages) {
			return echoDraft(ctx, messages)
		}
		if agentCalls.Add(1) == 1 {
			out := schema.AssistantMessage("", nil)
			out.ToolCalls = []schema.ToolCall{{
				Function: schema.FunctionCall{Name: "consultar_saldo", Arguments: "{}"},
			}}
			return out, nil
		}
		last := messages[len(messages)-1]
		require.Equal(t, schema.Tool, last.Role)
		require.Contains(t, last.Content, "unknown_tool")
		return schema.AssistantMessage("Não tenho essa informação, mas posso consultar sua carteira.", nil), nil
	})
	h := newHarness(t, reasoning, newStubGateway(alwaysNone))

	result, err := h.eng.ProcessTurn(context.Background(), "conv-1", "tudo bem?")
	require.NoError(t, err)

	assert.Equal(t, "Não tenho essa informação, mas posso consultar sua carteira.", result.Response)
	tr := h.trace(t, result.TraceID)
	assert.Equal(t, model.TraceCompleted, tr.Status)
	require.Len(t, tr.ToolCalls, 1)
	assert.Equal(t, "tool not found", tr.ToolCalls[0].Error)
}

func TestProcessTurn_AgentGatewayErrorDegradesToStableMessage(t *testing.T) {
	reasoning := newStubGateway(func(ctx context.Context, messages []*schema.Message) (*schema.Message, error) {
		return nil, errors.New("upstream 503")
	})
	h := newHarness(t, reasoning, newStubGateway(alwaysNone))

	result, err := h.eng.ProcessTurn(context.Background(), "conv-1", "bom dia, como funciona previdência?")
	require.NoError(t, err)

	assert.Equal(t, errx.ServiceUnavailableMessage, result.Response)
	tr := h.trace(t, result.TraceID)
	assert.Equal(t, model.TraceError, tr.Status)
}

func TestProcessTurn_AgentIterationCap(t *testing.T) {
	reasoning := newStubGateway(func(ctx context.Context, messages []*schema.Message) (*schema.Message, error) {
		if isCompliancePrompt(messages) {
			return echoDraft(ctx, messages)
		}
		// Always request another tool, never answer.
		out := schema.AssistantMessage("", nil)
		out.ToolCalls = []schema.ToolCall{{
			Function: schema.FunctionCall{Name: tools.ToolGetInvestorProfile, Arguments: "{}"},
		}}
		return out, nil
	})
	h := newHarness(t, reasoning, newStubGateway(alwaysNone))

	result, err := h.eng.ProcessTurn(context.Background(), "conv-1", "me ajuda?")
	require.NoError(t, err)

	assert.Equal(t, errx.ServiceUnavailableMessage, result.Response)
	tr := h.trace(t, result.TraceID)
	assert.LessOrEqual(t, len(tr.ToolCalls), 10)
	var capReached bool
	for _, e := range tr.Errors {
		if strings.Contains(e.Message, "iteration cap") {
			capReached = true
		}
	}
	assert.True(t, capReached)
}

func TestProcessTurn_AgentCapWrapUpNotice(t *testing.T) {
	wrapped := "Com as informações já coletadas, sua carteira está concentrada em renda fixa; a análise ficou incompleta."
	reasoning := newStubGateway(func(ctx context.Context, messages []*schema.Message) (*schema.Message, error) {
		if isCompliancePrompt(messages) {
			return echoDraft(ctx, messages)
		}
		last := messages[len(messages)-1]
		if last.Role == schema.System && strings.Contains(last.Content, "limite de chamadas de ferramenta") {
			return schema.AssistantMessage(wrapped, nil), nil
		}
		// Keep requesting tools until the cap forces a wrap-up.
		out := schema.AssistantMessage("", nil)
		out.ToolCalls = []schema.ToolCall{{
			Function: schema.FunctionCall{Name: tools.ToolGetPortfolio, Arguments: "{}"},
		}}
		return out, nil
	})
	h := newHarness(t, reasoning, newStubGateway(alwaysNone))

	result, err := h.eng.ProcessTurn(context.Background(), "conv-1", "analisa tudo que puder da minha carteira")
	require.NoError(t, err)

	assert.Equal(t, wrapped, result.Response, "the wrap-up answer is served, not the degradation message")

	tr := h.trace(t, result.TraceID)
	assert.Len(t, tr.ToolCalls, 10)
	var capReached bool
	for _, e := range tr.Errors {
		if strings.Contains(e.Message, "iteration cap") {
			capReached = true
		}
	}
	assert.True(t, capReached)
}

type profileToolArgs struct {
	UserID string `json:"user_id,omitempty"`
}

type profileToolOut struct {
	Perfil string `json:"perfil"`
}

func TestProcessTurn_BypassCancellationPropagates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The pipeline's only tool cancels the turn mid-flight and surfaces the
	// context error, as a tool blocked on a dead upstream would.
	cancelling := utils.NewTool(
		&schema.ToolInfo{
			Name: tools.ToolGetInvestorProfile,
			Desc: "Retorna o perfil de investidor do cliente.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"user_id": {Type: "string", Desc: "Identificador do cliente."},
			}),
		},
		func(ctx context.Context, in *profileToolArgs) (*profileToolOut, error) {
			cancel()
			return nil, ctx.Err()
		},
	)
	registry, err := tools.NewRegistry(context.Background(), cancelling)
	require.NoError(t, err)

	h := newHarnessWithRegistry(t, newStubGateway(echoDraft), newStubGateway(alwaysNone), registry)

	_, err = h.eng.ProcessTurn(ctx, "conv-cancel", "qual é o meu perfil de investidor?")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))

	summaries, err := h.store.List(context.Background(), model.TraceFilter{ConversationID: "conv-cancel"})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, model.TraceError, summaries[0].Status)

	tr := h.trace(t, summaries[0].TraceID)
	var cancelled bool
	for _, e := range tr.Errors {
		if strings.Contains(e.Message, "cancelled by caller") {
			cancelled = true
		}
	}
	assert.True(t, cancelled, "cancellation is recorded as such, not as a pipeline failure")
	for _, e := range tr.Errors {
		assert.NotEqual(t, "bypass pipeline failed", e.Message)
	}
}

func TestProcessTurn_ComplianceDegradesToUnreviewedDraft(t *testing.T) {
	reasoning := newStubGateway(func(ctx context.Context, messages []*schema.Message) (*schema.Message, error) {
		if isCompliancePrompt(messages) {
			return nil, errors.New("review model down")
		}
		return schema.AssistantMessage("ignored", nil), nil
	})
	h := newHarness(t, reasoning, newStubGateway(alwaysNone))

	result, err := h.eng.ProcessTurn(context.Background(), "conv-1", "qual é o meu perfil de investidor?")
	require.NoError(t, err)

	// The unreviewed draft is still served.
	assert.Contains(t, result.Response, "CONSERVADOR")

	tr := h.trace(t, result.TraceID)
	var degraded bool
	for _, e := range tr.Errors {
		if e.Kind == string(errx.KindComplianceUnavailable) {
			degraded = true
		}
	}
	assert.True(t, degraded, "degradation must be flagged on the trace")
}

func TestProcessTurn_ComplianceRewritesDraft(t *testing.T) {
	rewritten := "Projeções são estimativas e não garantem rentabilidade futura."
	reasoning := newStubGateway(func(ctx context.Context, messages []*schema.Message) (*schema.Message, error) {
		if isCompliancePrompt(messages) {
			return schema.AssistantMessage(rewritten, nil), nil
		}
		return schema.AssistantMessage("Você terá rentabilidade garantida de 12% ao ano.", nil), nil
	})
	h := newHarness(t, reasoning, newStubGateway(alwaysNone))

	result, err := h.eng.ProcessTurn(context.Background(), "conv-1", "vale a pena investir comigo?")
	require.NoError(t, err)
	assert.Equal(t, rewritten, result.Response)
}

func TestProcessTurn_Validation(t *testing.T) {
	h := newHarness(t, newStubGateway(echoDraft), newStubGateway(alwaysNone))

	_, err := h.eng.ProcessTurn(context.Background(), "conv-1", "   ")
	require.Error(t, err)
	assert.Equal(t, errx.KindValidation, errx.KindOf(err))

	_, err = h.eng.ProcessTurn(context.Background(), "", "oi")
	require.Error(t, err)
	assert.Equal(t, errx.KindValidation, errx.KindOf(err))
}

func TestProcessTurn_PersistsConversation(t *testing.T) {
	h := newHarness(t, newStubGateway(echoDraft), newStubGateway(alwaysNone))

	_, err := h.eng.ProcessTurn(context.Background(), "conv-9", "2 mais 2")
	require.NoError(t, err)

	history, err := h.repo.LoadHistory(context.Background(), "conv-9")
	require.NoError(t, err)
	require.Len(t, history.Messages, 2)
	assert.Equal(t, schema.User, history.Messages[0].Role)
	assert.Equal(t, "2 mais 2", history.Messages[0].Content)
	assert.Equal(t, schema.Assistant, history.Messages[1].Role)
	assert.Equal(t, "2 + 2 = 4", history.Messages[1].Content)
}

func TestProcessTurn_SameConversationSerialized(t *testing.T) {
	h := newHarness(t, newStubGateway(echoDraft), newStubGateway(alwaysNone))

	var wg sync.WaitGroup
	for _, msg := range []string{"1 mais 1", "2 mais 2", "3 mais 3"} {
		wg.Add(1)
		go func(m string) {
			defer wg.Done()
			_, err := h.eng.ProcessTurn(context.Background(), "conv-serial", m)
			assert.NoError(t, err)
		}(msg)
	}
	wg.Wait()

	history, err := h.repo.LoadHistory(context.Background(), "conv-serial")
	require.NoError(t, err)
	require.Len(t, history.Messages, 6, "turns never interleave their appends")
	for i, m := range history.Messages {
		if i%2 == 0 {
			assert.Equal(t, schema.User, m.Role)
		} else {
			assert.Equal(t, schema.Assistant, m.Role)
		}
	}
}

func TestProcessTurn_ConfirmationKeepsPriorIntent(t *testing.T) {
	reasoning := newStubGateway(func(ctx context.Context, messages []*schema.Message) (*schema.Message, error) {
		return echoDraft(ctx, messages)
	})
	h := newHarness(t, reasoning, newStubGateway(alwaysNone))
	ctx := context.Background()

	first, err := h.eng.ProcessTurn(ctx, "conv-multi", "minha carteira está diversificada?")
	require.NoError(t, err)
	tr := h.trace(t, first.TraceID)
	require.Equal(t, model.IntentDiversification, tr.Intent)

	second, err := h.eng.ProcessTurn(ctx, "conv-multi", "sim")
	require.NoError(t, err)
	tr = h.trace(t, second.TraceID)
	assert.Equal(t, model.IntentDiversification, tr.Intent, "confirmation turns inherit the prior intent")
	assert.Equal(t, model.RouteBypass, tr.Route)
}
