package tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/schema"

	errx "github.com/Advisor-core-poc-v1/server/internal/core/error"
	logx "github.com/Advisor-core-poc-v1/server/pkg/logger"
)

// ErrToolNotFound is returned when a caller asks for an unregistered tool name.
var ErrToolNotFound = errors.New("tool not found")

// Registry is the fixed catalog of named, pure callables available to the
// reasoning loop and the bypass executor. Registered once at process start,
// immutable thereafter, safe for unlimited concurrent use.
type Registry struct {
	byName map[string]tool.InvokableTool
	infos  []*schema.ToolInfo
}

// NewRegistry resolves the descriptors of the given tools and indexes them by name.
func NewRegistry(ctx context.Context, ts ...tool.BaseTool) (*Registry, error) {
	r := &Registry{byName: make(map[string]tool.InvokableTool, len(ts))}
	for _, t := range ts {
		info, err := t.Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("resolve tool info: %w", err)
		}
		inv, ok := t.(tool.InvokableTool)
		if !ok {
			return nil, fmt.Errorf("tool %q is not invokable", info.Name)
		}
		if _, dup := r.byName[info.Name]; dup {
			return nil, fmt.Errorf("duplicate tool name %q", info.Name)
		}
		r.byName[info.Name] = inv
		r.infos = append(r.infos, info)
	}
	return r, nil
}

// Infos returns the descriptor catalog in registration order.
func (r *Registry) Infos() []*schema.ToolInfo {
	return r.infos
}

// Has reports whether a tool name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Invoke runs a registered tool by name with JSON arguments. Unknown names are
// rejected with a typed error rather than a panic so the reasoning loop can
// synthesize an error observation and continue.
func (r *Registry) Invoke(ctx context.Context, name, argumentsJSON string) (string, error) {
	t, ok := r.byName[name]
	if !ok {
		logx.Warn().Str("tool_name", name).Msg("unknown tool requested")
		return "", errx.NewKind(fmt.Errorf("%w: %s", ErrToolNotFound, name), errx.KindToolNotFound, "unknown tool")
	}

	out, err := t.InvokableRun(ctx, argumentsJSON)
	if err != nil {
		logx.Error().Err(err).Str("tool_name", name).Msg("tool invocation failed")
		return "", errx.NewKind(err, errx.KindExternalService, "tool invocation failed")
	}
	return out, nil
}
