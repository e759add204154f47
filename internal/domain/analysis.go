package domain

// Recommendation is one of seven ordered action levels.
type Recommendation string

const (
	RecommendationStrongSell Recommendation = "strong_sell"
	RecommendationSell       Recommendation = "sell"
	RecommendationReduce     Recommendation = "reduce"
	RecommendationHold       Recommendation = "hold"
	RecommendationAccumulate Recommendation = "accumulate"
	RecommendationBuy        Recommendation = "buy"
	RecommendationStrongBuy  Recommendation = "strong_buy"
)

// Tier returns the ordinal strength of a recommendation, 1 (strong sell)
// through 7 (strong buy). Unknown values map to the hold tier.
func (r Recommendation) Tier() int {
	switch r {
	case RecommendationStrongSell:
		return 1
	case RecommendationSell:
		return 2
	case RecommendationReduce:
		return 3
	case RecommendationHold:
		return 4
	case RecommendationAccumulate:
		return 5
	case RecommendationBuy:
		return 6
	case RecommendationStrongBuy:
		return 7
	default:
		return 4
	}
}

// ExpectedReturnRange is an expected return interval in percent.
type ExpectedReturnRange struct {
	Low  float64 `json:"low"`
	High float64 `json:"high"`
}

// Midpoint returns the middle of the range.
func (r ExpectedReturnRange) Midpoint() float64 {
	return (r.Low + r.High) / 2.0
}

// ComponentResult is one analysis component (technical, fundamental or
// sentiment) in canonical form. Score is always within [0,100].
type ComponentResult struct {
	Score      float64                `json:"score"`
	Indicators map[string]interface{} `json:"indicators,omitempty"`
	Reasoning  string                 `json:"reasoning,omitempty"`
	Confidence *float64               `json:"confidence,omitempty"`
}

// UnifiedAnalysisResult is the canonical, mode-independent representation of
// a full analysis for one ticker, regardless of whether it was produced by
// the LLM pipeline or the rule-based analyzer.
type UnifiedAnalysisResult struct {
	Ticker         string               `json:"ticker"`
	Technical      ComponentResult      `json:"technical"`
	Fundamental    ComponentResult      `json:"fundamental"`
	Sentiment      ComponentResult      `json:"sentiment"`
	FinalScore     float64              `json:"final_score"`
	Recommendation Recommendation       `json:"recommendation"`
	Confidence     float64              `json:"confidence"`
	Risk           *RiskAssessment      `json:"risk,omitempty"`
	KeyReasons     []string             `json:"key_reasons,omitempty"`
	Rationale      string               `json:"rationale,omitempty"`
	Caveats        []string             `json:"caveats,omitempty"`
	ExpectedReturn *ExpectedReturnRange `json:"expected_return,omitempty"`
	TimeHorizon    string               `json:"time_horizon,omitempty"`
	// Diagnostics records non-fatal problems encountered while converting
	// producer output (e.g. unparsable component payloads).
	Diagnostics []string `json:"diagnostics,omitempty"`
}
