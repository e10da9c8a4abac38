package gateway

import (
	"context"
	"time"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	errx "github.com/Advisor-core-poc-v1/server/internal/core/error"
	logx "github.com/Advisor-core-poc-v1/server/pkg/logger"
)

// ModelGateway is the synchronous call-and-response contract to the external LLM.
// The returned message carries either free text (Content) or a structured
// tool-invocation request (ToolCalls).
type ModelGateway interface {
	Complete(ctx context.Context, messages []*schema.Message) (*schema.Message, error)

	// WithTools returns a derived gateway whose completions may request the
	// given tools. The receiver is left unchanged.
	WithTools(tools []*schema.ToolInfo) (ModelGateway, error)
}

// ChatGateway adapts an Eino tool-calling chat model to the ModelGateway
// contract, enforcing a per-call timeout on every completion.
type ChatGateway struct {
	model   einomodel.ToolCallingChatModel
	name    string
	timeout time.Duration
}

// NewChatGateway wraps a chat model. A non-positive timeout disables the deadline.
func NewChatGateway(m einomodel.ToolCallingChatModel, name string, timeout time.Duration) *ChatGateway {
	return &ChatGateway{model: m, name: name, timeout: timeout}
}

func (g *ChatGateway) Complete(ctx context.Context, messages []*schema.Message) (*schema.Message, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	out, err := g.model.Generate(ctx, messages)
	if err != nil {
		logx.Error().Err(err).Str("model", g.name).Dur("elapsed", time.Since(start)).Msg("model completion failed")
		return nil, errx.NewKind(err, errx.KindExternalService, "model gateway call failed")
	}

	logx.Debug().
		Str("model", g.name).
		Dur("elapsed", time.Since(start)).
		Int("tool_calls", len(out.ToolCalls)).
		Msg("model completion")
	return out, nil
}

func (g *ChatGateway) WithTools(tools []*schema.ToolInfo) (ModelGateway, error) {
	bound, err := g.model.WithTools(tools)
	if err != nil {
		logx.Error().Err(err).Str("model", g.name).Msg("failed to bind tools to model")
		return nil, errx.NewKind(err, errx.KindExternalService, "failed to bind tools")
	}
	return &ChatGateway{model: bound, name: g.name, timeout: g.timeout}, nil
}

var _ ModelGateway = (*ChatGateway)(nil)
