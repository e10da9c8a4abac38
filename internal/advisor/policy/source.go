package policy

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/Advisor-core-poc-v1/server/internal/advisor/model"
	errx "github.com/Advisor-core-poc-v1/server/internal/core/error"
	logx "github.com/Advisor-core-poc-v1/server/pkg/logger"
)

// Source serves business-compliance policy data. Callers must treat every
// failure as recoverable: the hardcoded defaults always apply when the source
// is unreachable, so a missing policy never fails a conversation turn.
type Source interface {
	RedirectRules(ctx context.Context, userID string) (model.RoutingPolicy, error)
	Policy(ctx context.Context, id string) (model.CompliancePolicy, error)
	Policies(ctx context.Context) ([]model.CompliancePolicy, error)
}

// FetchRoutingPolicy retrieves the routing policy for a user, substituting the
// hardcoded default on any failure. It never returns an error.
func FetchRoutingPolicy(ctx context.Context, src Source, userID string) model.RoutingPolicy {
	if src == nil {
		return model.DefaultRoutingPolicy()
	}
	p, err := src.RedirectRules(ctx, userID)
	if err != nil {
		logx.Warn().Err(err).Str("user_id", userID).Msg("policy source unavailable, using default routing policy")
		return model.DefaultRoutingPolicy()
	}
	if len(p.RedirectRules) == 0 && len(p.TopicPermissions) == 0 {
		return model.DefaultRoutingPolicy()
	}
	return p
}

// HTTPSource fetches policies from the external policy service.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSource(baseURL string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &HTTPSource{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (s *HTTPSource) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+path, nil)
	if err != nil {
		return errx.NewKind(err, errx.KindExternalService, "build policy request")
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return errx.NewKind(err, errx.KindExternalService, "policy source request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errx.NewKind(fmt.Errorf("policy source returned %d", resp.StatusCode), errx.KindExternalService, "policy source error status")
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errx.NewKind(err, errx.KindExternalService, "decode policy response")
	}
	return nil
}

func (s *HTTPSource) RedirectRules(ctx context.Context, userID string) (model.RoutingPolicy, error) {
	var payload struct {
		Rules            []string        `json:"rules"`
		TopicPermissions map[string]bool `json:"topic_permissions"`
	}
	if err := s.get(ctx, "/redirect-rules?user_id="+url.QueryEscape(userID), &payload); err != nil {
		return model.RoutingPolicy{}, err
	}
	return model.RoutingPolicy{RedirectRules: payload.Rules, TopicPermissions: payload.TopicPermissions}, nil
}

func (s *HTTPSource) Policy(ctx context.Context, id string) (model.CompliancePolicy, error) {
	var p model.CompliancePolicy
	if err := s.get(ctx, "/policies/"+url.PathEscape(id), &p); err != nil {
		return model.CompliancePolicy{}, err
	}
	return p, nil
}

func (s *HTTPSource) Policies(ctx context.Context) ([]model.CompliancePolicy, error) {
	var payload struct {
		Policies []model.CompliancePolicy `json:"policies"`
	}
	if err := s.get(ctx, "/policies", &payload); err != nil {
		return nil, err
	}
	return payload.Policies, nil
}

var _ Source = (*HTTPSource)(nil)
