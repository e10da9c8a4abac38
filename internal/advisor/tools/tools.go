package tools

import (
	"github.com/cloudwego/eino/components/tool"

	"github.com/Advisor-core-poc-v1/server/internal/advisor/policy"
)

// AnalysisTools returns the portfolio-analysis catalog used by the reasoning
// loop and the bypass executor.
func AnalysisTools() []tool.BaseTool {
	return []tool.BaseTool{
		createGetInvestorProfileTool(),
		createGetPortfolioTool(),
		createAnalyzeAdequacyTool(),
		createAnalyzeGoalsTool(),
		createAnalyzeDiversificationTool(),
		createRecommendRebalanceTool(),
		createProjectPortfolioTool(),
		createSearchOpportunitiesTool(),
	}
}

// AllTools returns the full catalog: analyses plus compliance-policy lookups.
func AllTools(src policy.Source) []tool.BaseTool {
	return append(AnalysisTools(), NewPolicyTools(src)...)
}
