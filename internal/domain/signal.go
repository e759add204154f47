package domain

import "time"

// AllocationSuggestion is a concrete position size proposal for one ticker.
type AllocationSuggestion struct {
	Ticker     string   `json:"ticker"`
	AmountEUR  float64  `json:"amount_eur"`
	Percentage float64  `json:"percentage"` // of total capital
	Shares     *float64 `json:"shares,omitempty"`
}

// InvestmentSignal is the externally visible unit produced by the pipeline.
// It is immutable after creation and consumed by reporting and storage
// collaborators via plain read access.
type InvestmentSignal struct {
	ID               string                `json:"id"`
	Ticker           string                `json:"ticker"`
	Name             string                `json:"name,omitempty"`
	Market           string                `json:"market,omitempty"`
	Sector           string                `json:"sector,omitempty"`
	CurrentPrice     float64               `json:"current_price"`
	Currency         Currency              `json:"currency"`
	TechnicalScore   float64               `json:"technical_score"`
	FundamentalScore float64               `json:"fundamental_score"`
	SentimentScore   float64               `json:"sentiment_score"`
	FinalScore       float64               `json:"final_score"`
	Recommendation   Recommendation        `json:"recommendation"`
	Confidence       float64               `json:"confidence"`
	ExpectedReturn   *ExpectedReturnRange  `json:"expected_return,omitempty"`
	KeyReasons       []string              `json:"key_reasons,omitempty"`
	Risk             *RiskAssessment       `json:"risk,omitempty"`
	Allocation       *AllocationSuggestion `json:"allocation,omitempty"`
	Metadata         *SecurityMetadata     `json:"metadata,omitempty"`
	GeneratedAt      time.Time             `json:"generated_at"`
	// AnalysisDate is the calendar date the analysis pertains to. It may be
	// in the past when the signal was produced by a backtest run.
	AnalysisDate time.Time `json:"analysis_date"`
}
