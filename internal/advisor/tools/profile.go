package tools

import (
	"context"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/Advisor-core-poc-v1/server/internal/advisor/model"
)

const ToolGetInvestorProfile = "get_investor_profile"

type GetInvestorProfileInput struct {
	UserID string `json:"user_id,omitempty"`
}

type GetInvestorProfileOutput struct {
	Perfil        string  `json:"perfil"`
	Score         int     `json:"score"`
	RiskTolerance string  `json:"risk_tolerance"`
	HorizonYears  int     `json:"horizon_years"`
	MonthlyIncome float64 `json:"monthly_income"`
}

func createGetInvestorProfileTool() tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolGetInvestorProfile,
			Desc: "Retorna o perfil de investidor (suitability) do cliente: classificação (CONSERVADOR, MODERADO, ARROJADO), score, tolerância a risco e horizonte. Use sempre que o cliente perguntar sobre o próprio perfil.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"user_id": {
					Type: "string",
					Desc: "Identificador do cliente. Opcional; quando omitido usa o cliente da sessão.",
				},
			}),
		},
		func(ctx context.Context, in *GetInvestorProfileInput) (*GetInvestorProfileOutput, error) {
			p := profileFor(in.UserID)
			return &GetInvestorProfileOutput{
				Perfil:        p.Classification,
				Score:         p.Score,
				RiskTolerance: p.RiskTolerance,
				HorizonYears:  p.HorizonYears,
				MonthlyIncome: p.MonthlyIncome,
			}, nil
		},
	)
}

func profileFor(userID string) model.InvestorProfile {
	// Single-tenant fixture; the user_id parameter exists for forward
	// compatibility with the real suitability service.
	_ = userID
	return FixtureProfile
}
