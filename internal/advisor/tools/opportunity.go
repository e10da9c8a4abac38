package tools

import (
	"context"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"github.com/cloudwego/eino/components/tool/utils"
	"github.com/cloudwego/eino/schema"

	"github.com/Advisor-core-poc-v1/server/internal/advisor/model"
)

const ToolSearchOpportunities = "search_opportunities"

type SearchOpportunitiesInput struct {
	Query      string  `json:"query,omitempty"`
	Class      string  `json:"class,omitempty"`
	MaxAmount  float64 `json:"max_amount,omitempty"`
	MaxResults int     `json:"max_results,omitempty"`
}

type SearchOpportunitiesOutput struct {
	Opportunities []model.Opportunity `json:"opportunities"`
	Total         int                 `json:"total"`
}

func createSearchOpportunitiesTool() tool.BaseTool {
	return utils.NewTool(
		&schema.ToolInfo{
			Name: ToolSearchOpportunities,
			Desc: "Busca oportunidades de investimento disponíveis, com filtros por classe de ativo e aporte mínimo. Use quando o cliente pedir sugestões de onde investir.",
			ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
				"query": {
					Type: "string",
					Desc: "Palavras-chave livres, ex.: tesouro, CDB, fundo imobiliário.",
				},
				"class": {
					Type: "string",
					Desc: "Filtro por classe: renda_fixa, renda_variavel, multimercado, fundos_imobiliarios.",
				},
				"max_amount": {
					Type: "number",
					Desc: "Valor máximo disponível para o aporte inicial, em reais.",
				},
				"max_results": {
					Type: "number",
					Desc: "Número máximo de resultados (padrão: 5).",
				},
			}),
		},
		func(ctx context.Context, in *SearchOpportunitiesInput) (*SearchOpportunitiesOutput, error) {
			return searchOpportunities(in), nil
		},
	)
}

func searchOpportunities(in *SearchOpportunitiesInput) *SearchOpportunitiesOutput {
	max := in.MaxResults
	if max <= 0 {
		max = 5
	}

	query := strings.ToLower(strings.TrimSpace(in.Query))
	var matched []model.Opportunity
	for _, opp := range FixtureOpportunities {
		if in.Class != "" && !strings.EqualFold(opp.Class, in.Class) {
			continue
		}
		if in.MaxAmount > 0 && opp.MinimumAmount > in.MaxAmount {
			continue
		}
		if query != "" &&
			!strings.Contains(strings.ToLower(opp.Name), query) &&
			!strings.Contains(strings.ToLower(opp.Description), query) &&
			!strings.Contains(strings.ToLower(opp.Class), query) {
			continue
		}
		matched = append(matched, opp)
	}

	if len(matched) > max {
		matched = matched[:max]
	}
	return &SearchOpportunitiesOutput{Opportunities: matched, Total: len(matched)}
}
