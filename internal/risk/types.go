// Package risk derives a qualitative and quantitative risk profile from
// volatility, liquidity, sector and portfolio-concentration signals. The
// assessor is a pure calculator: no I/O, deterministic for identical inputs.
package risk

import "github.com/pelorusfin/pelorus/internal/domain"

// Config holds the tunable risk thresholds.
type Config struct {
	// VolatilityHighPct is the ATR% above which volatility is "high".
	VolatilityHighPct float64
	// VolatilityVeryHighPct is the ATR% above which volatility is "very high".
	VolatilityVeryHighPct float64
	// IlliquidityThresholdEUR is the daily traded value below which a
	// security counts as illiquid. 5x this value marks highly liquid.
	IlliquidityThresholdEUR float64
}

// DefaultConfig returns the standard thresholds.
func DefaultConfig() Config {
	return Config{
		VolatilityHighPct:       3.0,
		VolatilityVeryHighPct:   5.0,
		IlliquidityThresholdEUR: 50000,
	}
}

// Inputs carries everything the assessor needs for one signal.
type Inputs struct {
	Ticker           string
	FinalScore       float64
	Confidence       float64
	TechnicalScore   float64
	FundamentalScore float64
	SentimentScore   float64
	ExpectedReturn   *domain.ExpectedReturnRange

	// VolatilityPct is ATR as a percentage of price. nil when the price
	// series was too short to compute it.
	VolatilityPct *float64
	// DailyValueEUR is the estimated average daily traded value.
	DailyValueEUR float64
	Sector        string
}

// concentrationLimit is the fraction of total portfolio value above which a
// single ticker counts as concentrated.
const concentrationLimit = 0.15

// conflictingSpread is the max-min component score spread above which the
// conflicting-signals flag fires.
const conflictingSpread = 40.0

// lowConfidenceThreshold marks signals whose stated confidence is too low
// to take at face value.
const lowConfidenceThreshold = 50.0

// Composite score level thresholds.
const (
	levelMediumAt   = 20.0
	levelHighAt     = 40.0
	levelVeryHighAt = 60.0
)

// Sector keyword lists for substring matching (lowercase). High risk takes
// precedence over cyclical; first match wins within each list.
var highRiskSectorKeywords = []string{"biotech", "crypto", "renewable", "penny"}

var cyclicalSectorKeywords = []string{"airline", "automotive", "auto", "construction", "energy", "mining", "travel"}
