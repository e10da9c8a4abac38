package model

// ================ Config ================
type ConversationConfig struct {
	TTL string `envconfig:"CONVERSATION_TTL" default:"15m"`
}

// GatewayModelConfig configures the primary reasoning model behind the gateway.
type GatewayModelConfig struct {
	Model       string  `envconfig:"GATEWAY_MODEL" default:"gemini-2.5-flash"`
	MaxTokens   int     `envconfig:"GATEWAY_MAX_TOKENS" default:"2000"`
	Temperature float32 `envconfig:"GATEWAY_TEMPERATURE" default:"0.4"`
	Timeout     string  `envconfig:"GATEWAY_TIMEOUT" default:"30s"`
}

// ClassifierModelConfig configures the constrained classification model used by
// the handoff evaluator. It runs cold so rule matching stays stable.
type ClassifierModelConfig struct {
	Model       string  `envconfig:"CLASSIFIER_MODEL" default:"gemini-2.5-flash-lite"`
	MaxTokens   int     `envconfig:"CLASSIFIER_MAX_TOKENS" default:"256"`
	Temperature float32 `envconfig:"CLASSIFIER_TEMPERATURE" default:"0.0"`
	Timeout     string  `envconfig:"CLASSIFIER_TIMEOUT" default:"10s"`
}

type AgentConfig struct {
	MaxIterations int `envconfig:"AGENT_MAX_ITERATIONS" default:"10"`
}

type ComplianceConfig struct {
	MaxIterations int `envconfig:"COMPLIANCE_MAX_ITERATIONS" default:"3"`
}

type TraceConfig struct {
	// DetailLevel controls how raw prompts/responses are persisted: omitted, truncated, full.
	DetailLevel string `envconfig:"TRACE_DETAIL_LEVEL" default:"full"`
	TTL         string `envconfig:"TRACE_TTL" default:"720h"`
}

type PolicySourceConfig struct {
	BaseURL string `envconfig:"POLICY_BASE_URL"`
	Timeout string `envconfig:"POLICY_TIMEOUT" default:"5s"`
}

type ServerConfig struct {
	Addr string `envconfig:"SERVER_ADDR" default:":8080"`
}
