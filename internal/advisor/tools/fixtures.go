package tools

import "github.com/Advisor-core-poc-v1/server/internal/advisor/model"

// Static business data served verbatim by the tools. The real deployment feeds
// these from the positions/suitability services; the fixture set keeps the
// orchestration engine runnable and the analyses reproducible.

var FixtureProfile = model.InvestorProfile{
	UserID:         "user-001",
	Classification: "CONSERVADOR",
	Score:          65,
	RiskTolerance:  "baixa",
	HorizonYears:   5,
	MonthlyIncome:  12000.00,
}

var FixturePortfolio = model.Portfolio{
	UserID:     "user-001",
	TotalValue: 250000.00,
	Positions: []model.Position{
		{Asset: "Tesouro Selic 2029", Class: "renda_fixa", Amount: 125000.00, Percentage: 50.0},
		{Asset: "CDB Banco Alfa 110% CDI", Class: "renda_fixa", Amount: 50000.00, Percentage: 20.0},
		{Asset: "Fundo Multimercado Beta", Class: "multimercado", Amount: 37500.00, Percentage: 15.0},
		{Asset: "ETF BOVA11", Class: "renda_variavel", Amount: 25000.00, Percentage: 10.0},
		{Asset: "FII HGLG11", Class: "fundos_imobiliarios", Amount: 12500.00, Percentage: 5.0},
	},
}

// targetAllocations maps profile classification to the reference allocation per
// asset class used by the adequacy and rebalance analyses.
var targetAllocations = map[string]map[string]float64{
	"CONSERVADOR": {
		"renda_fixa":          75.0,
		"multimercado":        10.0,
		"renda_variavel":      10.0,
		"fundos_imobiliarios": 5.0,
	},
	"MODERADO": {
		"renda_fixa":          50.0,
		"multimercado":        20.0,
		"renda_variavel":      20.0,
		"fundos_imobiliarios": 10.0,
	},
	"ARROJADO": {
		"renda_fixa":          25.0,
		"multimercado":        20.0,
		"renda_variavel":      45.0,
		"fundos_imobiliarios": 10.0,
	},
}

var FixtureOpportunities = []model.Opportunity{
	{
		ID:            "opp-001",
		Name:          "Tesouro IPCA+ 2035",
		Class:         "renda_fixa",
		MinimumAmount: 50.00,
		AnnualRate:    6.2,
		RiskLevel:     "baixo",
		Description:   "Título público indexado à inflação, adequado para horizonte longo e perfil conservador.",
	},
	{
		ID:            "opp-002",
		Name:          "CDB Banco Gama 115% CDI",
		Class:         "renda_fixa",
		MinimumAmount: 1000.00,
		AnnualRate:    12.1,
		RiskLevel:     "baixo",
		Description:   "CDB com liquidez no vencimento e cobertura FGC até o limite vigente.",
	},
	{
		ID:            "opp-003",
		Name:          "Fundo Multimercado Delta",
		Class:         "multimercado",
		MinimumAmount: 500.00,
		AnnualRate:    14.8,
		RiskLevel:     "medio",
		Description:   "Fundo multimercado macro com volatilidade controlada.",
	},
	{
		ID:            "opp-004",
		Name:          "ETF IVVB11",
		Class:         "renda_variavel",
		MinimumAmount: 300.00,
		AnnualRate:    18.5,
		RiskLevel:     "alto",
		Description:   "Exposição dolarizada ao S&P 500 para diversificação internacional.",
	},
	{
		ID:            "opp-005",
		Name:          "FII KNRI11",
		Class:         "fundos_imobiliarios",
		MinimumAmount: 150.00,
		AnnualRate:    9.4,
		RiskLevel:     "medio",
		Description:   "Fundo imobiliário híbrido com dividendos mensais.",
	},
}
