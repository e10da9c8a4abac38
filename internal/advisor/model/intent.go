package model

// Intent is the discrete classification of what the user is asking for,
// derived fresh on every turn by the lexical classifier.
type Intent string

const (
	IntentNone               Intent = "none"
	IntentPortfolioQuery     Intent = "portfolio_query"
	IntentAdequacyAnalysis   Intent = "adequacy_analysis"
	IntentDiversification    Intent = "diversification_analysis"
	IntentRebalance          Intent = "rebalance_recommendation"
	IntentProjection         Intent = "projection"
	IntentOpportunitySearch  Intent = "opportunity_search"
	IntentSimpleProfileQuery Intent = "simple_profile_query"
)

// BypassIntents is the fixed catalog of intents whose information need is known
// in advance and served by a fixed analysis pipeline instead of the reasoning loop.
var BypassIntents = map[Intent]bool{
	IntentAdequacyAnalysis:   true,
	IntentDiversification:    true,
	IntentRebalance:          true,
	IntentProjection:         true,
	IntentOpportunitySearch:  true,
	IntentSimpleProfileQuery: true,
}

// Route is the processing path chosen for a turn.
type Route string

const (
	RouteCalculate Route = "calculate"
	RouteHandoff   Route = "handoff"
	RouteBypass    Route = "bypass"
	RouteAgent     Route = "agent"
)
