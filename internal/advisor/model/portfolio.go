package model

// InvestorProfile is the static suitability profile served by the profile tool.
type InvestorProfile struct {
	UserID         string  `json:"user_id"`
	Classification string  `json:"classification"`
	Score          int     `json:"score"`
	RiskTolerance  string  `json:"risk_tolerance"`
	HorizonYears   int     `json:"horizon_years"`
	MonthlyIncome  float64 `json:"monthly_income"`
}

// Position is one holding inside a portfolio.
type Position struct {
	Asset      string  `json:"asset"`
	Class      string  `json:"class"`
	Amount     float64 `json:"amount"`
	Percentage float64 `json:"percentage"`
}

// Portfolio is the current allocation of a user.
type Portfolio struct {
	UserID     string     `json:"user_id"`
	TotalValue float64    `json:"total_value"`
	Positions  []Position `json:"positions"`
}

// Opportunity is an investment product the opportunity search can surface.
type Opportunity struct {
	ID            string  `json:"id"`
	Name          string  `json:"name"`
	Class         string  `json:"class"`
	MinimumAmount float64 `json:"minimum_amount"`
	AnnualRate    float64 `json:"annual_rate"`
	RiskLevel     string  `json:"risk_level"`
	Description   string  `json:"description"`
}
