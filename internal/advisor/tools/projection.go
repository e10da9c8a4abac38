package tools

import (
	"context"
	"fmt"
	"math"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"
)

const ToolProjectPortfolio = "project_portfolio"

type ProjectionInput struct {
	UserID         string  `json:"user_id,omitempty"`
	Years          int     `json:"years,omitempty"`
	MonthlyDeposit float64 `json:"monthly_deposit,omitempty"`
}

type ProjectionOutput struct {
	Years          int     `json:"years"`
	AnnualRatePct  float64 `json:"annual_rate_pct"`
	InitialValue   float64 `json:"initial_value"`
	MonthlyDeposit float64 `json:"monthly_deposit"`
	ProjectedValue float64 `json:"projected_value"`
	Summary        string  `json:"summary"`
}

func createProjectPortfolioTool() tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolProjectPortfolio,
			Desc: "Projeta o valor futuro da carteira com juros compostos, opcionalmente com aportes mensais. Use quando o cliente perguntar quanto terá daqui a alguns anos.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"user_id": {
					Type: "string",
					Desc: "Identificador do cliente. Opcional.",
				},
				"years": {
					Type: "number",
					Desc: "Horizonte da projeção em anos (padrão: horizonte do perfil).",
				},
				"monthly_deposit": {
					Type: "number",
					Desc: "Aporte mensal em reais (padrão: 0).",
				},
			}),
		},
		func(ctx context.Context, in *ProjectionInput) (*ProjectionOutput, error) {
			return projectPortfolio(in), nil
		},
	)
}

// projectionRatePct is the nominal annual rate assumed for a conservative mix.
const projectionRatePct = 9.5

func projectPortfolio(in *ProjectionInput) *ProjectionOutput {
	profile := profileFor(in.UserID)
	portfolio := portfolioFor(in.UserID)

	years := in.Years
	if years <= 0 {
		years = profile.HorizonYears
	}

	monthlyRate := math.Pow(1+projectionRatePct/100.0, 1.0/12.0) - 1
	months := years * 12

	value := portfolio.TotalValue * math.Pow(1+monthlyRate, float64(months))
	if in.MonthlyDeposit > 0 && monthlyRate > 0 {
		value += in.MonthlyDeposit * (math.Pow(1+monthlyRate, float64(months)) - 1) / monthlyRate
	}
	value = math.Round(value*100) / 100

	return &ProjectionOutput{
		Years:          years,
		AnnualRatePct:  projectionRatePct,
		InitialValue:   portfolio.TotalValue,
		MonthlyDeposit: in.MonthlyDeposit,
		ProjectedValue: value,
		Summary: fmt.Sprintf("Projeção de R$ %.2f em %d anos a %.1f%% a.a. partindo de R$ %.2f.",
			value, years, projectionRatePct, portfolio.TotalValue),
	}
}
