package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"github.com/Advisor-core-poc-v1/server/internal/advisor/engine"
	"github.com/Advisor-core-poc-v1/server/internal/advisor/gateway"
	"github.com/Advisor-core-poc-v1/server/internal/advisor/model"
	"github.com/Advisor-core-poc-v1/server/internal/advisor/policy"
	"github.com/Advisor-core-poc-v1/server/internal/advisor/repo"
	"github.com/Advisor-core-poc-v1/server/internal/advisor/tools"
	"github.com/Advisor-core-poc-v1/server/internal/advisor/trace"
	"github.com/Advisor-core-poc-v1/server/internal/api"
	"github.com/Advisor-core-poc-v1/server/internal/core"
	logx "github.com/Advisor-core-poc-v1/server/pkg/logger"
	pkgredis "github.com/Advisor-core-poc-v1/server/pkg/redis"
)

// AppConfig defines all configurable parameters for the advisory service,
// sourced from environment variables (loaded from .env for local runs).
type AppConfig struct {
	Environment string `envconfig:"ENVIRONMENT" default:"development"`

	// Infrastructure
	Redis pkgredis.Config

	// LLM provider
	APIKey  string `envconfig:"GEMINI_API_KEY" required:"true"`
	BaseURL string `envconfig:"GEMINI_BASE_URL"`

	// Orchestration configs
	Gateway      model.GatewayModelConfig
	Classifier   model.ClassifierModelConfig
	Agent        model.AgentConfig
	Compliance   model.ComplianceConfig
	Conversation model.ConversationConfig
	Trace        model.TraceConfig
	Policy       model.PolicySourceConfig
	Server       model.ServerConfig
}

func main() {
	ctx := context.Background()

	if err := godotenv.Load(".env"); err != nil {
		logx.Warn().Err(err).Msg("Could not load .env file")
	}

	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		logx.Fatal().Err(err).Msg("Failed to process environment config")
	}
	logx.Init(logx.LoggerOpts{Environment: core.ParseEnvironment(cfg.Environment)})

	rdb, err := cfg.Redis.New()
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to initialise Redis client")
	}
	defer rdb.Close()

	conversationTTL := mustDuration(cfg.Conversation.TTL, "CONVERSATION_TTL")
	traceTTL := mustDuration(cfg.Trace.TTL, "TRACE_TTL")

	detail := model.ParseDetailLevel(cfg.Trace.DetailLevel)
	recorder := trace.NewRecorder(trace.NewRedisStore(rdb, traceTTL), detail)

	policySource := buildPolicySource(cfg.Policy)

	analysisRegistry, err := tools.NewRegistry(ctx, tools.AnalysisTools()...)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to build analysis tool registry")
	}
	policyRegistry, err := tools.NewRegistry(ctx, tools.NewPolicyTools(policySource)...)
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to build policy tool registry")
	}

	gateways, err := gateway.NewGeminiGateways(ctx, gateway.GeminiConfig{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		Reasoning:  cfg.Gateway,
		Classifier: cfg.Classifier,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to construct model gateways")
	}

	conversations := repo.NewRedisConversationRepository(rdb, conversationTTL)

	eng, err := engine.NewEngine(engine.Config{
		ReasoningGateway:        gateways.Reasoning,
		ClassifierGateway:       gateways.Classifier,
		Registry:                analysisRegistry,
		PolicyRegistry:          policyRegistry,
		PolicySource:            policySource,
		Recorder:                recorder,
		Conversations:           conversations,
		AgentMaxIterations:      cfg.Agent.MaxIterations,
		ComplianceMaxIterations: cfg.Compliance.MaxIterations,
	})
	if err != nil {
		logx.Fatal().Err(err).Msg("Failed to assemble engine")
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           api.NewServer(eng, recorder, policySource, conversations).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logx.Info().Str("addr", cfg.Server.Addr).Msg("advisory server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.Fatal().Err(err).Msg("server failed")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	logx.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logx.Error().Err(err).Msg("graceful shutdown failed")
	}
}

// buildPolicySource prefers the remote admin service when configured; the
// static catalog otherwise. Remote failures already degrade to defaults at
// fetch time.
func buildPolicySource(cfg model.PolicySourceConfig) policy.Source {
	if cfg.BaseURL == "" {
		return policy.NewStaticSource()
	}
	timeout, err := time.ParseDuration(cfg.Timeout)
	if err != nil || timeout <= 0 {
		timeout = 5 * time.Second
	}
	return policy.NewHTTPSource(cfg.BaseURL, timeout)
}

func mustDuration(v, name string) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil {
		logx.Fatal().Str("value", v).Str("var", name).Err(err).Msg("invalid duration")
	}
	return d
}
