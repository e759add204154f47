package risk

import (
	"fmt"
	"strings"

	"github.com/pelorusfin/pelorus/internal/domain"
)

// Assessor computes risk assessments. Stateless beyond its thresholds.
type Assessor struct {
	cfg Config
}

// NewAssessor creates an assessor with the given thresholds.
func NewAssessor(cfg Config) *Assessor {
	if cfg.VolatilityHighPct <= 0 {
		cfg.VolatilityHighPct = DefaultConfig().VolatilityHighPct
	}
	if cfg.VolatilityVeryHighPct <= 0 {
		cfg.VolatilityVeryHighPct = DefaultConfig().VolatilityVeryHighPct
	}
	if cfg.IlliquidityThresholdEUR <= 0 {
		cfg.IlliquidityThresholdEUR = DefaultConfig().IlliquidityThresholdEUR
	}
	return &Assessor{cfg: cfg}
}

// Assess derives the risk profile for one signal. Pure function of its
// inputs: identical inputs always yield identical level, buckets and flags.
//
// Flags are emitted in a fixed order: confidence, conflicting signals,
// negative return, volatility, liquidity, sector, concentration, momentum
// without fundamentals.
func (a *Assessor) Assess(in Inputs, portfolio domain.PortfolioContext) domain.RiskAssessment {
	volatility := a.volatilityBucket(in.VolatilityPct)
	liquidity := a.liquidityBucket(in.DailyValueEUR)
	sectorRisk, sectorCyclical := classifySector(in.Sector)
	concentrated := isConcentrated(in.Ticker, portfolio)

	var flags []string
	addFlag := func(format string, args ...interface{}) {
		flags = append(flags, fmt.Sprintf("%s: %s", in.Ticker, fmt.Sprintf(format, args...)))
	}

	if in.Confidence < lowConfidenceThreshold {
		addFlag("low analysis confidence (%.0f)", in.Confidence)
	}
	if spread := componentSpread(in); spread > conflictingSpread {
		addFlag("conflicting component signals (spread %.0f points)", spread)
	}
	if in.ExpectedReturn != nil && in.ExpectedReturn.Midpoint() < 0 {
		addFlag("expected return midpoint is negative (%.1f%%)", in.ExpectedReturn.Midpoint())
	}
	if volatility == domain.VolatilityHigh || volatility == domain.VolatilityVeryHigh {
		addFlag("elevated volatility (ATR %.1f%% of price)", *in.VolatilityPct)
	}
	if liquidity == domain.LiquidityIlliquid {
		addFlag("thin liquidity (%.0f EUR average daily traded value)", in.DailyValueEUR)
	}
	if sectorRisk != "" {
		addFlag("high-risk sector (%s)", in.Sector)
	} else if sectorCyclical != "" {
		addFlag("cyclical sector (%s)", in.Sector)
	}
	if concentrated {
		addFlag("existing position exceeds %.0f%% of portfolio value", concentrationLimit*100)
	}
	if in.TechnicalScore >= 70 && in.FundamentalScore < 50 {
		addFlag("momentum without fundamental support")
	}

	score := a.compositeScore(in, volatility, liquidity, len(flags))

	assessment := domain.RiskAssessment{
		Level:         levelForScore(score),
		Score:         score,
		Volatility:    volatility,
		Liquidity:     liquidity,
		Concentration: concentrated,
		Flags:         flags,
	}
	if sectorRisk != "" {
		assessment.SectorRisk = sectorRisk
	} else if sectorCyclical != "" {
		assessment.SectorRisk = sectorCyclical
	}
	return assessment
}

func (a *Assessor) volatilityBucket(atrPct *float64) domain.VolatilityLevel {
	if atrPct == nil {
		return domain.VolatilityNormal
	}
	switch {
	case *atrPct < 1.0:
		return domain.VolatilityLow
	case *atrPct < a.cfg.VolatilityHighPct:
		return domain.VolatilityNormal
	case *atrPct < a.cfg.VolatilityVeryHighPct:
		return domain.VolatilityHigh
	default:
		return domain.VolatilityVeryHigh
	}
}

func (a *Assessor) liquidityBucket(dailyValueEUR float64) domain.LiquidityLevel {
	switch {
	case dailyValueEUR < a.cfg.IlliquidityThresholdEUR:
		return domain.LiquidityIlliquid
	case dailyValueEUR < 5*a.cfg.IlliquidityThresholdEUR:
		return domain.LiquidityNormal
	default:
		return domain.LiquidityHighlyLiquid
	}
}

// compositeScore builds the numeric risk score by additive adjustments,
// then levelForScore maps it onto the four discrete levels.
func (a *Assessor) compositeScore(in Inputs, volatility domain.VolatilityLevel, liquidity domain.LiquidityLevel, flagCount int) float64 {
	score := 0.0

	// Weak signals are riskier to act on; strong ones slightly less so.
	if in.FinalScore < 40 {
		score += 15
	} else if in.FinalScore >= 70 {
		score -= 10
	}
	if in.Confidence < lowConfidenceThreshold {
		score += 10
	}

	switch volatility {
	case domain.VolatilityLow:
		score -= 5
	case domain.VolatilityHigh:
		score += 10
	case domain.VolatilityVeryHigh:
		score += 25
	}

	switch liquidity {
	case domain.LiquidityIlliquid:
		score += 20
	case domain.LiquidityHighlyLiquid:
		score -= 5
	}

	score += 5 * float64(flagCount)

	if score < 0 {
		score = 0
	}
	return score
}

func levelForScore(score float64) domain.RiskLevel {
	switch {
	case score < levelMediumAt:
		return domain.RiskLow
	case score < levelHighAt:
		return domain.RiskMedium
	case score < levelVeryHighAt:
		return domain.RiskHigh
	default:
		return domain.RiskVeryHigh
	}
}

// classifySector matches the sector name against the high-risk and cyclical
// keyword lists. High risk takes precedence; first keyword match wins.
func classifySector(sector string) (highRisk, cyclical string) {
	lower := strings.ToLower(sector)
	if lower == "" {
		return "", ""
	}
	for _, keyword := range highRiskSectorKeywords {
		if strings.Contains(lower, keyword) {
			return fmt.Sprintf("high-risk sector: %s", sector), ""
		}
	}
	for _, keyword := range cyclicalSectorKeywords {
		if strings.Contains(lower, keyword) {
			return "", fmt.Sprintf("cyclical sector: %s", sector)
		}
	}
	return "", ""
}

func isConcentrated(ticker string, portfolio domain.PortfolioContext) bool {
	total := portfolio.TotalValue()
	if total <= 0 {
		return false
	}
	return portfolio.PositionValue(ticker)/total > concentrationLimit
}

func componentSpread(in Inputs) float64 {
	min, max := in.TechnicalScore, in.TechnicalScore
	for _, s := range []float64{in.FundamentalScore, in.SentimentScore} {
		if s < min {
			min = s
		}
		if s > max {
			max = s
		}
	}
	return max - min
}
