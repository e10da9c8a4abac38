package policy

import (
	"context"
	"fmt"

	"github.com/Advisor-core-poc-v1/server/internal/advisor/model"
)

// StaticSource serves the built-in policy set. It backs local runs and acts as
// the compliance-document fallback when no external policy service is configured.
type StaticSource struct{}

func NewStaticSource() *StaticSource {
	return &StaticSource{}
}

var staticPolicies = []model.CompliancePolicy{
	{
		ID:          "pol-001",
		Title:       "Vedação a promessa de rentabilidade",
		Description: "Respostas não podem garantir ou prometer rentabilidade futura. Projeções devem ser apresentadas como estimativas com premissas explícitas.",
	},
	{
		ID:          "pol-002",
		Title:       "Adequação ao perfil (suitability)",
		Description: "Recomendações de produto devem ser compatíveis com o perfil de investidor vigente do cliente e mencionar a classificação do perfil.",
	},
	{
		ID:          "pol-003",
		Title:       "Limite operacional do canal",
		Description: "Operações acima de R$ 100.000 exigem atendimento humano. O assistente deve encaminhar o cliente ao gerente de conta.",
	},
	{
		ID:          "pol-004",
		Title:       "Temas vedados",
		Description: "O assistente não orienta sobre criptomoedas, day trade ou estruturas em jurisdições não cooperantes.",
	},
}

func (s *StaticSource) RedirectRules(ctx context.Context, userID string) (model.RoutingPolicy, error) {
	return model.DefaultRoutingPolicy(), nil
}

func (s *StaticSource) Policy(ctx context.Context, id string) (model.CompliancePolicy, error) {
	for _, p := range staticPolicies {
		if p.ID == id {
			return p, nil
		}
	}
	return model.CompliancePolicy{}, fmt.Errorf("policy not found: %s", id)
}

func (s *StaticSource) Policies(ctx context.Context) ([]model.CompliancePolicy, error) {
	out := make([]model.CompliancePolicy, len(staticPolicies))
	copy(out, staticPolicies)
	return out, nil
}

var _ Source = (*StaticSource)(nil)
