package engine

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Advisor-core-poc-v1/server/internal/advisor/calc"
	"github.com/Advisor-core-poc-v1/server/internal/advisor/model"
	"github.com/Advisor-core-poc-v1/server/internal/advisor/tools"
)

// analysisResult pairs a tool name with its raw JSON output, in pipeline order.
type analysisResult struct {
	Tool   string
	Output string
}

// formatCalculation renders the deterministic arithmetic answer.
func formatCalculation(expr *calc.Expression, result float64) string {
	return fmt.Sprintf("%s %c %s = %s",
		calc.FormatResult(expr.Operand1), expr.Operator, calc.FormatResult(expr.Operand2), calc.FormatResult(result))
}

// formatBypass turns the aggregated analysis outputs into user-facing prose
// without a model call, keeping bypass answers reproducible.
func formatBypass(results []analysisResult) string {
	var lines []string
	for _, r := range results {
		if line := renderAnalysis(r); line != "" {
			lines = append(lines, line)
		}
	}
	if len(lines) == 0 {
		return "Não há dados de análise disponíveis no momento."
	}
	return strings.Join(lines, "\n")
}

func renderAnalysis(r analysisResult) string {
	switch r.Tool {
	case tools.ToolGetInvestorProfile:
		var out tools.GetInvestorProfileOutput
		if json.Unmarshal([]byte(r.Output), &out) != nil {
			return ""
		}
		return fmt.Sprintf("Seu perfil de investidor é %s (score %d), com tolerância a risco %s e horizonte de %d anos.",
			out.Perfil, out.Score, out.RiskTolerance, out.HorizonYears)

	case tools.ToolGetPortfolio:
		var out model.Portfolio
		if json.Unmarshal([]byte(r.Output), &out) != nil {
			return ""
		}
		var positions []string
		for _, p := range out.Positions {
			positions = append(positions, fmt.Sprintf("%s (%.1f%%)", p.Asset, p.Percentage))
		}
		return fmt.Sprintf("Sua carteira soma R$ %.2f: %s.", out.TotalValue, strings.Join(positions, ", "))

	case tools.ToolAnalyzeAdequacy:
		var out tools.AdequacyOutput
		if json.Unmarshal([]byte(r.Output), &out) != nil {
			return ""
		}
		return out.Summary

	case tools.ToolAnalyzeGoals:
		var out tools.GoalAlignmentOutput
		if json.Unmarshal([]byte(r.Output), &out) != nil {
			return ""
		}
		return out.Summary

	case tools.ToolAnalyzeDiversity:
		var out tools.DiversificationOutput
		if json.Unmarshal([]byte(r.Output), &out) != nil {
			return ""
		}
		return out.Summary

	case tools.ToolRecommendRebalance:
		var out tools.RebalanceOutput
		if json.Unmarshal([]byte(r.Output), &out) != nil {
			return ""
		}
		if !out.Needed {
			return out.Summary
		}
		var moves []string
		for _, m := range out.Moves {
			moves = append(moves, fmt.Sprintf("%s R$ %.2f em %s", m.Direction, m.AmountBRL, m.Class))
		}
		return fmt.Sprintf("%s Sugestões: %s.", out.Summary, strings.Join(moves, "; "))

	case tools.ToolProjectPortfolio:
		var out tools.ProjectionOutput
		if json.Unmarshal([]byte(r.Output), &out) != nil {
			return ""
		}
		return out.Summary

	case tools.ToolSearchOpportunities:
		var out tools.SearchOpportunitiesOutput
		if json.Unmarshal([]byte(r.Output), &out) != nil {
			return ""
		}
		if out.Total == 0 {
			return "Nenhuma oportunidade encontrada com os critérios informados."
		}
		var items []string
		for _, o := range out.Opportunities {
			items = append(items, fmt.Sprintf("%s (%.1f%% a.a., aplicação mínima R$ %.2f)", o.Name, o.AnnualRate, o.MinimumAmount))
		}
		return fmt.Sprintf("Oportunidades compatíveis: %s.", strings.Join(items, "; "))
	}
	return ""
}
