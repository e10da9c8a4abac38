package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino-ext/components/model/gemini"
	"google.golang.org/genai"

	"github.com/Advisor-core-poc-v1/server/internal/advisor/model"
	logx "github.com/Advisor-core-poc-v1/server/pkg/logger"
)

// GeminiConfig holds what is needed to construct the production gateways.
type GeminiConfig struct {
	APIKey     string
	BaseURL    string
	Reasoning  model.GatewayModelConfig
	Classifier model.ClassifierModelConfig
}

// Gateways bundles the two model instances the engine needs: the reasoning
// model for the agent/compliance loops and a cold classifier for rule matching.
type Gateways struct {
	Reasoning  ModelGateway
	Classifier ModelGateway
}

// NewGeminiGateways creates both gateways over a shared genai client.
func NewGeminiGateways(ctx context.Context, cfg GeminiConfig) (*Gateways, error) {
	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions.BaseURL = cfg.BaseURL
	}

	client, err := genai.NewClient(ctx, clientCfg)
	if err != nil {
		logx.Error().Err(err).Msg("Error creating Gemini client")
		return nil, fmt.Errorf("error creating Gemini client: %w", err)
	}

	reasoning, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       cfg.Reasoning.Model,
		Temperature: &cfg.Reasoning.Temperature,
		MaxTokens:   &cfg.Reasoning.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating reasoning model")
		return nil, fmt.Errorf("error creating reasoning model: %w", err)
	}

	classifier, err := gemini.NewChatModel(ctx, &gemini.Config{
		Client:      client,
		Model:       cfg.Classifier.Model,
		Temperature: &cfg.Classifier.Temperature,
		MaxTokens:   &cfg.Classifier.MaxTokens,
	})
	if err != nil {
		logx.Error().Err(err).Msg("Error creating classifier model")
		return nil, fmt.Errorf("error creating classifier model: %w", err)
	}

	return &Gateways{
		Reasoning:  NewChatGateway(reasoning, cfg.Reasoning.Model, parseTimeout(cfg.Reasoning.Timeout, 30*time.Second)),
		Classifier: NewChatGateway(classifier, cfg.Classifier.Model, parseTimeout(cfg.Classifier.Timeout, 10*time.Second)),
	}, nil
}

func parseTimeout(v string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
