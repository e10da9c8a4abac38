package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/cloudwego/eino/schema"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Advisor-core-poc-v1/server/internal/advisor/engine"
	"github.com/Advisor-core-poc-v1/server/internal/advisor/gateway"
	"github.com/Advisor-core-poc-v1/server/internal/advisor/model"
	"github.com/Advisor-core-poc-v1/server/internal/advisor/policy"
	"github.com/Advisor-core-poc-v1/server/internal/advisor/repo"
	"github.com/Advisor-core-poc-v1/server/internal/advisor/tools"
	"github.com/Advisor-core-poc-v1/server/internal/advisor/trace"
	"github.com/Advisor-core-poc-v1/server/internal/api"
)

// stubGateway approves every compliance draft and answers agent prompts with
// fixed text; the classifier variant always reports no rule match.
type stubGateway struct {
	classifier bool
}

func (s *stubGateway) Complete(ctx context.Context, messages []*schema.Message) (*schema.Message, error) {
	if s.classifier {
		return schema.AssistantMessage("NONE", nil), nil
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role != schema.User {
			continue
		}
		if _, after, found := strings.Cut(messages[i].Content, "Resposta rascunhada:\n"); found {
			return schema.AssistantMessage(after, nil), nil
		}
	}
	return schema.AssistantMessage("Posso ajudar com sua carteira e seu perfil de investidor.", nil), nil
}

func (s *stubGateway) WithTools(infos []*schema.ToolInfo) (gateway.ModelGateway, error) {
	return s, nil
}

func newTestServer(t *testing.T) (http.Handler, *repo.RedisConversationRepository) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	ctx := context.Background()
	src := policy.NewStaticSource()

	registry, err := tools.NewRegistry(ctx, tools.AnalysisTools()...)
	require.NoError(t, err)
	policyRegistry, err := tools.NewRegistry(ctx, tools.NewPolicyTools(src)...)
	require.NoError(t, err)

	recorder := trace.NewRecorder(trace.NewRedisStore(client, time.Hour), model.DetailFull)
	conversations := repo.NewRedisConversationRepository(client, time.Hour)

	eng, err := engine.NewEngine(engine.Config{
		ReasoningGateway:  &stubGateway{},
		ClassifierGateway: &stubGateway{classifier: true},
		Registry:          registry,
		PolicyRegistry:    policyRegistry,
		PolicySource:      src,
		Recorder:          recorder,
		Conversations:     conversations,
	})
	require.NoError(t, err)

	return api.NewServer(eng, recorder, src, conversations).Handler(), conversations
}

func postChat(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, api.ChatResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var resp api.ChatResponse
	if w.Code == http.StatusOK {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	}
	return w, resp
}

func TestHealthz(t *testing.T) {
	h, _ := newTestServer(t)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
}

func TestChat_Arithmetic(t *testing.T) {
	h, _ := newTestServer(t)

	w, resp := postChat(t, h, `{"message":"8 mais 7"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "8 + 7 = 15", resp.Response)
	assert.NotEmpty(t, resp.TraceID)
	assert.NotEmpty(t, resp.ConversationID, "a conversation id is minted when the caller sends none")
}

func TestChat_ValidationErrors(t *testing.T) {
	h, _ := newTestServer(t)

	t.Run("empty message", func(t *testing.T) {
		w, _ := postChat(t, h, `{"message":"  "}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "error")
	})

	t.Run("malformed body", func(t *testing.T) {
		w, _ := postChat(t, h, `{not json`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestChat_ProfileQueryWithExplanation(t *testing.T) {
	h, _ := newTestServer(t)

	w, resp := postChat(t, h, `{"message":"qual é o meu perfil de investidor?","conversation_id":"conv-api"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, resp.Response, "CONSERVADOR")
	assert.Equal(t, "conv-api", resp.ConversationID)
	require.NotNil(t, resp.Explanation)
	assert.Equal(t, []string{tools.ToolGetInvestorProfile}, resp.Explanation.ToolsUsed)
}

func TestChat_ContextSeedsNewConversation(t *testing.T) {
	h, _ := newTestServer(t)

	// A bare confirmation only carries intent through the seeded context.
	body := `{"message":"sim","conversation_id":"conv-seeded","context":[
		{"role":"user","content":"minha carteira está bem diversificada?"},
		{"role":"assistant","content":"Posso analisar a diversificação. Confirma?"}
	]}`
	w, resp := postChat(t, h, body)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, resp.Response, "maior concentração", "seeded context restores the prior intent")
}

func TestClearConversation(t *testing.T) {
	h, conversations := newTestServer(t)

	_, resp := postChat(t, h, `{"message":"8 mais 7","conversation_id":"conv-clear"}`)
	require.NotEmpty(t, resp.TraceID)

	count, err := conversations.GetMessageCount(context.Background(), "conv-clear")
	require.NoError(t, err)
	require.Equal(t, 2, count)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/conversations/conv-clear", nil))
	require.Equal(t, http.StatusNoContent, w.Code)

	count, err = conversations.GetMessageCount(context.Background(), "conv-clear")
	require.NoError(t, err)
	assert.Zero(t, count)

	// The turn's trace survives the history wipe.
	tw := httptest.NewRecorder()
	h.ServeHTTP(tw, httptest.NewRequest(http.MethodGet, "/traces/"+resp.TraceID, nil))
	assert.Equal(t, http.StatusOK, tw.Code)
}

func TestGetTrace(t *testing.T) {
	h, _ := newTestServer(t)

	_, resp := postChat(t, h, `{"message":"8 mais 7","conversation_id":"conv-t"}`)
	require.NotEmpty(t, resp.TraceID)

	t.Run("existing trace", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/traces/"+resp.TraceID, nil))
		require.Equal(t, http.StatusOK, w.Code)

		var tr model.ExecutionTrace
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &tr))
		assert.Equal(t, resp.TraceID, tr.TraceID)
		assert.Equal(t, model.RouteCalculate, tr.Route)
		assert.Nil(t, tr.AccessLog, "access log never leaves the store")
	})

	t.Run("unknown trace", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/traces/no-such-id", nil))
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestListTraces(t *testing.T) {
	h, _ := newTestServer(t)

	postChat(t, h, `{"message":"8 mais 7","conversation_id":"conv-a"}`)
	postChat(t, h, `{"message":"qual é o meu perfil de investidor?","conversation_id":"conv-b"}`)

	t.Run("all", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/traces", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var payload struct {
			Traces []model.TraceSummary `json:"traces"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
		assert.Len(t, payload.Traces, 2)
	})

	t.Run("filtered by conversation", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/traces?conversation_id=conv-b", nil))
		require.Equal(t, http.StatusOK, w.Code)

		var payload struct {
			Traces []model.TraceSummary `json:"traces"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
		require.Len(t, payload.Traces, 1)
		assert.Equal(t, model.IntentSimpleProfileQuery, payload.Traces[0].Intent)
	})

	t.Run("invalid filter value", func(t *testing.T) {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/traces?has_handoff=maybe", nil))
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestListPolicies(t *testing.T) {
	h, _ := newTestServer(t)

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/compliance/policies", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var payload struct {
		Policies []model.CompliancePolicy `json:"policies"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &payload))
	assert.Len(t, payload.Policies, 4)
}
