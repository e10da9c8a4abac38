package router

import (
	"context"

	"github.com/cloudwego/eino/schema"

	"github.com/Advisor-core-poc-v1/server/internal/advisor/calc"
	"github.com/Advisor-core-poc-v1/server/internal/advisor/model"
	logx "github.com/Advisor-core-poc-v1/server/pkg/logger"
)

// RuleMatcher is the single seam through which the router consults business
// rules. The router itself never calls the model gateway.
type RuleMatcher interface {
	MatchesRedirectRule(ctx context.Context, message string, rules []string) (string, bool, error)
	RequestsDisallowedTopic(ctx context.Context, message string, permissions map[string]bool) (string, bool, error)
}

// Decision is the routing outcome for one turn.
type Decision struct {
	Route model.Route
	// Condition labels the table entry that fired, recorded on the trace edge.
	Condition string
	// Reason carries the matched rule or topic when Route is handoff.
	Reason string
	// Expression is the detected arithmetic when Route is calculate.
	Expression *calc.Expression
	// Warnings are non-fatal evaluation failures (matcher failed closed).
	Warnings []error
}

// Router is a stateless dispatcher: (intent, policy, message, history) → route.
// The decision table below is ordered; the first matching entry wins, and
// identical inputs always produce identical decisions.
type Router struct {
	matcher RuleMatcher
}

func New(matcher RuleMatcher) *Router {
	return &Router{matcher: matcher}
}

// Decide walks the decision table in order:
//
//	1. arithmetic expression        → calculate
//	2. disallowed topic requested   → handoff
//	3. redirect rule matched        → handoff
//	4. intent in bypass catalog     → bypass
//	5. default                      → agent
//
// Matcher failures fail closed: the entry is treated as "no match", the
// failure is surfaced as a warning, and the walk continues.
func (r *Router) Decide(ctx context.Context, intent model.Intent, policy model.RoutingPolicy, message string, history []*schema.Message) Decision {
	d := Decision{}

	if expr, ok := calc.Detect(message); ok {
		d.Route = model.RouteCalculate
		d.Condition = "arithmetic"
		d.Expression = expr
		return d
	}

	if topic, ok, err := r.matcher.RequestsDisallowedTopic(ctx, message, policy.TopicPermissions); err != nil {
		logx.Warn().Err(err).Msg("topic check failed, failing closed to no match")
		d.Warnings = append(d.Warnings, err)
	} else if ok {
		d.Route = model.RouteHandoff
		d.Condition = "disallowed_topic"
		d.Reason = topic
		return d
	}

	if rule, ok, err := r.matcher.MatchesRedirectRule(ctx, message, policy.RedirectRules); err != nil {
		logx.Warn().Err(err).Msg("redirect rule check failed, failing closed to no match")
		d.Warnings = append(d.Warnings, err)
	} else if ok {
		d.Route = model.RouteHandoff
		d.Condition = "redirect_rule"
		d.Reason = rule
		return d
	}

	if model.BypassIntents[intent] {
		d.Route = model.RouteBypass
		d.Condition = "bypass_intent"
		return d
	}

	d.Route = model.RouteAgent
	d.Condition = "default"
	return d
}
