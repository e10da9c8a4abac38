package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Advisor-core-poc-v1/server/internal/advisor/engine"
	"github.com/Advisor-core-poc-v1/server/internal/advisor/model"
	"github.com/Advisor-core-poc-v1/server/internal/advisor/policy"
	"github.com/Advisor-core-poc-v1/server/internal/advisor/trace"
	errx "github.com/Advisor-core-poc-v1/server/internal/core/error"
	logx "github.com/Advisor-core-poc-v1/server/pkg/logger"
)

// Server exposes the chat, trace-audit and admin surfaces over HTTP.
type Server struct {
	engine       *engine.Engine
	recorder     *trace.Recorder
	policySource policy.Source
	repo         model.ConversationRepository
}

func NewServer(eng *engine.Engine, rec *trace.Recorder, src policy.Source, repo model.ConversationRepository) *Server {
	return &Server{engine: eng, recorder: rec, policySource: src, repo: repo}
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Post("/chat", s.handleChat)
	r.Delete("/conversations/{conversationID}", s.handleClearConversation)
	r.Get("/traces", s.handleListTraces)
	r.Get("/traces/{traceID}", s.handleGetTrace)
	r.Get("/compliance/policies", s.handleListPolicies)

	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errx.NewKind(err, errx.KindValidation, "invalid request body"))
		return
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conversationID = uuid.NewString()
	}
	s.seedContext(r.Context(), conversationID, req.Context)

	result, err := s.engine.ProcessTurn(r.Context(), conversationID, req.Message)
	if err != nil {
		writeError(w, err)
		return
	}

	resp := ChatResponse{
		Response:       result.Response,
		TraceID:        result.TraceID,
		ConversationID: conversationID,
		HandoffReason:  result.HandoffReason,
	}
	if result.Explanation != nil {
		resp.Explanation = &ExplanationPayload{ToolsUsed: result.Explanation.ToolsUsed}
	}
	writeJSON(w, http.StatusOK, resp)
}

// seedContext stores caller-provided context messages for conversations that
// have no persisted history yet, enabling stateless clients to continue turns.
func (s *Server) seedContext(ctx context.Context, conversationID string, contextMessages []WireMessage) {
	if len(contextMessages) == 0 {
		return
	}
	count, err := s.repo.GetMessageCount(ctx, conversationID)
	if err != nil || count > 0 {
		return
	}
	for _, wm := range contextMessages {
		msg := wm.toSchema()
		if msg == nil {
			continue
		}
		if err := s.repo.AddMessage(ctx, conversationID, msg); err != nil {
			logx.Warn().Err(err).Str("conversation_id", conversationID).Msg("failed to seed context message")
			return
		}
	}
}

// handleClearConversation drops the persisted history of one conversation.
// Traces are untouched; the audit trail outlives the conversation.
func (s *Server) handleClearConversation(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	if err := s.repo.ClearHistory(r.Context(), conversationID); err != nil {
		writeError(w, err)
		return
	}
	logx.Info().Str("conversation_id", conversationID).Msg("conversation history cleared")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetTrace(w http.ResponseWriter, r *http.Request) {
	traceID := chi.URLParam(r, "traceID")
	t, err := s.recorder.GetTrace(r.Context(), traceID, r.Header.Get("X-Audit-Actor"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) handleListTraces(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter := model.TraceFilter{
		ConversationID: q.Get("conversation_id"),
		Status:         model.TraceStatus(q.Get("status")),
		Intent:         model.Intent(q.Get("intent")),
	}
	if v := q.Get("has_handoff"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, errx.NewKind(err, errx.KindValidation, "invalid has_handoff"))
			return
		}
		filter.HasHandoff = &b
	}
	if v := q.Get("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, errx.NewKind(err, errx.KindValidation, "invalid from timestamp"))
			return
		}
		filter.From = t
	}
	if v := q.Get("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			writeError(w, errx.NewKind(err, errx.KindValidation, "invalid to timestamp"))
			return
		}
		filter.To = t
	}

	summaries, err := s.recorder.ListTraces(r.Context(), filter)
	if err != nil {
		writeError(w, err)
		return
	}
	if summaries == nil {
		summaries = []model.TraceSummary{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"traces": summaries})
}

func (s *Server) handleListPolicies(w http.ResponseWriter, r *http.Request) {
	ps, err := s.policySource.Policies(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"policies": ps})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logx.Error().Err(err).Msg("failed to encode response")
	}
}

// writeError maps classified errors to their HTTP status with a safe message.
func writeError(w http.ResponseWriter, err error) {
	var appErr *errx.Error
	if errors.As(err, &appErr) {
		writeJSON(w, appErr.Status, map[string]string{"error": appErr.Message})
		return
	}
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": errx.SystemErrorMessage})
}

// WireMessage is the role-tagged message shape on the wire. Conversion to the
// internal message type is a pure mapping, not runtime type inspection.
type WireMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (wm WireMessage) toSchema() *schema.Message {
	switch schema.RoleType(wm.Role) {
	case schema.User:
		return schema.UserMessage(wm.Content)
	case schema.Assistant:
		return schema.AssistantMessage(wm.Content, nil)
	case schema.System:
		return schema.SystemMessage(wm.Content)
	default:
		return nil
	}
}

type ChatRequest struct {
	Message        string        `json:"message"`
	ConversationID string        `json:"conversation_id,omitempty"`
	Context        []WireMessage `json:"context,omitempty"`
}

type ExplanationPayload struct {
	ToolsUsed []string `json:"tools_used"`
}

type ChatResponse struct {
	Response       string              `json:"response"`
	TraceID        string              `json:"trace_id"`
	ConversationID string              `json:"conversation_id"`
	Explanation    *ExplanationPayload `json:"explanation,omitempty"`
	HandoffReason  string              `json:"handoff_reason,omitempty"`
}
