package tools

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/Advisor-core-poc-v1/server/internal/advisor/model"
)

const (
	ToolGetPortfolio       = "get_portfolio"
	ToolAnalyzeAdequacy    = "analyze_allocation_adequacy"
	ToolAnalyzeGoals       = "analyze_goal_alignment"
	ToolAnalyzeDiversity   = "analyze_diversification"
	ToolRecommendRebalance = "recommend_rebalance"
)

// ===================================
// Portfolio lookup
// ===================================

type GetPortfolioInput struct {
	UserID string `json:"user_id,omitempty"`
}

func createGetPortfolioTool() tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolGetPortfolio,
			Desc: "Retorna a carteira atual do cliente: valor total e posições por ativo com classe e percentual. Use quando o cliente perguntar o que tem na carteira ou quanto tem investido.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"user_id": {
					Type: "string",
					Desc: "Identificador do cliente. Opcional.",
				},
			}),
		},
		func(ctx context.Context, in *GetPortfolioInput) (*model.Portfolio, error) {
			return portfolioFor(in.UserID), nil
		},
	)
}

func portfolioFor(userID string) *model.Portfolio {
	_ = userID
	p := FixturePortfolio
	return &p
}

// classTotals aggregates position percentages per asset class.
func classTotals(p *model.Portfolio) map[string]float64 {
	totals := make(map[string]float64)
	for _, pos := range p.Positions {
		totals[pos.Class] += pos.Percentage
	}
	return totals
}

func sortedClasses(m map[string]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ===================================
// Allocation adequacy
// ===================================

type AdequacyInput struct {
	UserID string `json:"user_id,omitempty"`
}

type ClassDeviation struct {
	Class     string  `json:"class"`
	Current   float64 `json:"current_pct"`
	Target    float64 `json:"target_pct"`
	Deviation float64 `json:"deviation_pct"`
}

type AdequacyOutput struct {
	Perfil     string           `json:"perfil"`
	Adequate   bool             `json:"adequate"`
	Deviations []ClassDeviation `json:"deviations"`
	Summary    string           `json:"summary"`
}

func createAnalyzeAdequacyTool() tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolAnalyzeAdequacy,
			Desc: "Compara a alocação atual da carteira com a alocação de referência do perfil de investidor e aponta desvios por classe de ativo. Use para responder se a carteira está adequada ao perfil.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"user_id": {
					Type: "string",
					Desc: "Identificador do cliente. Opcional.",
				},
			}),
		},
		func(ctx context.Context, in *AdequacyInput) (*AdequacyOutput, error) {
			return analyzeAdequacy(in.UserID), nil
		},
	)
}

func analyzeAdequacy(userID string) *AdequacyOutput {
	profile := profileFor(userID)
	portfolio := portfolioFor(userID)
	target := targetAllocations[profile.Classification]
	current := classTotals(portfolio)

	out := &AdequacyOutput{Perfil: profile.Classification, Adequate: true}
	for _, class := range sortedClasses(target) {
		dev := current[class] - target[class]
		out.Deviations = append(out.Deviations, ClassDeviation{
			Class:     class,
			Current:   current[class],
			Target:    target[class],
			Deviation: dev,
		})
		if math.Abs(dev) > adequacyTolerancePct {
			out.Adequate = false
		}
	}
	if out.Adequate {
		out.Summary = fmt.Sprintf("Alocação dentro da tolerância de %.0f%% para o perfil %s.", adequacyTolerancePct, profile.Classification)
	} else {
		out.Summary = fmt.Sprintf("Alocação com desvios acima de %.0f%% em relação ao perfil %s.", adequacyTolerancePct, profile.Classification)
	}
	return out
}

const adequacyTolerancePct = 10.0

// ===================================
// Goal alignment
// ===================================

type GoalAlignmentInput struct {
	UserID string `json:"user_id,omitempty"`
}

type GoalAlignmentOutput struct {
	HorizonYears int    `json:"horizon_years"`
	Aligned      bool   `json:"aligned"`
	Summary      string `json:"summary"`
}

func createAnalyzeGoalsTool() tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolAnalyzeGoals,
			Desc: "Avalia se a carteira atual é compatível com o horizonte de investimento declarado pelo cliente. Use em análises de adequação a objetivos e prazos.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"user_id": {
					Type: "string",
					Desc: "Identificador do cliente. Opcional.",
				},
			}),
		},
		func(ctx context.Context, in *GoalAlignmentInput) (*GoalAlignmentOutput, error) {
			return analyzeGoalAlignment(in.UserID), nil
		},
	)
}

func analyzeGoalAlignment(userID string) *GoalAlignmentOutput {
	profile := profileFor(userID)
	portfolio := portfolioFor(userID)
	current := classTotals(portfolio)

	// Short horizons tolerate less variable-income exposure.
	variable := current["renda_variavel"] + current["multimercado"]
	limit := 20.0
	if profile.HorizonYears >= 10 {
		limit = 50.0
	} else if profile.HorizonYears >= 5 {
		limit = 30.0
	}

	aligned := variable <= limit
	summary := fmt.Sprintf("Exposição a renda variável e multimercado de %.1f%% para horizonte de %d anos (limite %.0f%%).",
		variable, profile.HorizonYears, limit)
	return &GoalAlignmentOutput{HorizonYears: profile.HorizonYears, Aligned: aligned, Summary: summary}
}

// ===================================
// Diversification
// ===================================

type DiversificationInput struct {
	UserID string `json:"user_id,omitempty"`
}

type DiversificationOutput struct {
	Classes         int     `json:"classes"`
	LargestClass    string  `json:"largest_class"`
	LargestPct      float64 `json:"largest_pct"`
	WellDiversified bool    `json:"well_diversified"`
	Summary         string  `json:"summary"`
}

func createAnalyzeDiversificationTool() tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolAnalyzeDiversity,
			Desc: "Mede a diversificação da carteira por classe de ativo e aponta concentração excessiva. Use quando o cliente perguntar se a carteira está diversificada.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"user_id": {
					Type: "string",
					Desc: "Identificador do cliente. Opcional.",
				},
			}),
		},
		func(ctx context.Context, in *DiversificationInput) (*DiversificationOutput, error) {
			return analyzeDiversification(in.UserID), nil
		},
	)
}

func analyzeDiversification(userID string) *DiversificationOutput {
	portfolio := portfolioFor(userID)
	current := classTotals(portfolio)

	out := &DiversificationOutput{Classes: len(current)}
	for _, class := range sortedClasses(current) {
		if current[class] > out.LargestPct {
			out.LargestPct = current[class]
			out.LargestClass = class
		}
	}
	out.WellDiversified = out.Classes >= 3 && out.LargestPct <= concentrationLimitPct
	out.Summary = fmt.Sprintf("Carteira distribuída em %d classes; maior concentração em %s (%.1f%%).",
		out.Classes, out.LargestClass, out.LargestPct)
	return out
}

const concentrationLimitPct = 70.0

// ===================================
// Rebalance recommendation
// ===================================

type RebalanceInput struct {
	UserID string `json:"user_id,omitempty"`
}

type RebalanceMove struct {
	Class     string  `json:"class"`
	Direction string  `json:"direction"`
	AmountBRL float64 `json:"amount_brl"`
}

type RebalanceOutput struct {
	Needed  bool            `json:"needed"`
	Moves   []RebalanceMove `json:"moves"`
	Summary string          `json:"summary"`
}

func createRecommendRebalanceTool() tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolRecommendRebalance,
			Desc: "Sugere movimentos de rebalanceamento (comprar/vender por classe de ativo) para aproximar a carteira da alocação de referência do perfil. Use quando o cliente pedir recomendação de ajustes.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"user_id": {
					Type: "string",
					Desc: "Identificador do cliente. Opcional.",
				},
			}),
		},
		func(ctx context.Context, in *RebalanceInput) (*RebalanceOutput, error) {
			return recommendRebalance(in.UserID), nil
		},
	)
}

func recommendRebalance(userID string) *RebalanceOutput {
	profile := profileFor(userID)
	portfolio := portfolioFor(userID)
	target := targetAllocations[profile.Classification]
	current := classTotals(portfolio)

	out := &RebalanceOutput{}
	for _, class := range sortedClasses(target) {
		dev := current[class] - target[class]
		if math.Abs(dev) <= adequacyTolerancePct {
			continue
		}
		direction := "comprar"
		if dev > 0 {
			direction = "vender"
		}
		out.Moves = append(out.Moves, RebalanceMove{
			Class:     class,
			Direction: direction,
			AmountBRL: math.Abs(dev) / 100.0 * portfolio.TotalValue,
		})
	}
	out.Needed = len(out.Moves) > 0
	if out.Needed {
		out.Summary = fmt.Sprintf("%d movimento(s) sugerido(s) para aproximar a carteira do perfil %s.", len(out.Moves), profile.Classification)
	} else {
		out.Summary = "Nenhum rebalanceamento necessário no momento."
	}
	return out
}
