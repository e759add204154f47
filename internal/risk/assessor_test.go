package risk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pelorusfin/pelorus/internal/domain"
)

func floatPtr(f float64) *float64 { return &f }

func TestAssessVolatileIlliquidBiotechWithConcentration(t *testing.T) {
	assessor := NewAssessor(DefaultConfig())

	in := Inputs{
		Ticker:           "BIOX",
		FinalScore:       50,
		Confidence:       60,
		TechnicalScore:   50,
		FundamentalScore: 50,
		SentimentScore:   50,
		VolatilityPct:    floatPtr(6.0),
		DailyValueEUR:    10000,
		Sector:           "Biotechnology",
	}
	portfolio := domain.PortfolioContext{Positions: []domain.Position{
		{Ticker: "BIOX", CurrentValue: 5000},
		{Ticker: "SAP", CurrentValue: 5000},
	}}

	got := assessor.Assess(in, portfolio)

	assert.Equal(t, domain.RiskVeryHigh, got.Level)
	assert.Equal(t, domain.VolatilityVeryHigh, got.Volatility)
	assert.Equal(t, domain.LiquidityIlliquid, got.Liquidity)
	assert.True(t, got.Concentration)

	// Exactly four flags: volatility, illiquidity, sector, concentration.
	require.Len(t, got.Flags, 4)
	for _, flag := range got.Flags {
		assert.True(t, strings.HasPrefix(flag, "BIOX: "), "flag %q must be ticker-prefixed", flag)
	}
	assert.Contains(t, got.Flags[0], "volatility")
	assert.Contains(t, got.Flags[1], "liquidity")
	assert.Contains(t, got.Flags[2], "sector")
	assert.Contains(t, got.Flags[3], "portfolio value")
}

func TestAssessIsDeterministic(t *testing.T) {
	assessor := NewAssessor(DefaultConfig())
	in := Inputs{
		Ticker:           "ASML",
		FinalScore:       72,
		Confidence:       45,
		TechnicalScore:   80,
		FundamentalScore: 30,
		SentimentScore:   60,
		VolatilityPct:    floatPtr(2.2),
		DailyValueEUR:    400000,
		Sector:           "Semiconductors",
	}
	portfolio := domain.PortfolioContext{Positions: []domain.Position{
		{Ticker: "ASML", CurrentValue: 1000},
		{Ticker: "SAP", CurrentValue: 9000},
	}}

	first := assessor.Assess(in, portfolio)
	second := assessor.Assess(in, portfolio)

	assert.Equal(t, first.Level, second.Level)
	assert.Equal(t, first.Volatility, second.Volatility)
	assert.Equal(t, first.Liquidity, second.Liquidity)
	assert.ElementsMatch(t, first.Flags, second.Flags)
	assert.Equal(t, first.Score, second.Score)
}

func TestAssessQuietLargeCaplIsLowRisk(t *testing.T) {
	assessor := NewAssessor(DefaultConfig())
	in := Inputs{
		Ticker:           "SAP",
		FinalScore:       75,
		Confidence:       85,
		TechnicalScore:   70,
		FundamentalScore: 75,
		SentimentScore:   65,
		VolatilityPct:    floatPtr(0.8),
		DailyValueEUR:    2_000_000,
		Sector:           "Software",
	}

	got := assessor.Assess(in, domain.PortfolioContext{})

	assert.Equal(t, domain.RiskLow, got.Level)
	assert.Equal(t, domain.VolatilityLow, got.Volatility)
	assert.Equal(t, domain.LiquidityHighlyLiquid, got.Liquidity)
	assert.False(t, got.Concentration)
	assert.Empty(t, got.Flags)
}

func TestAssessFlagEmissionOrder(t *testing.T) {
	assessor := NewAssessor(DefaultConfig())
	in := Inputs{
		Ticker:           "PNY",
		FinalScore:       30,
		Confidence:       20,                                             // confidence flag
		TechnicalScore:   90,                                             // spread 70 -> conflicting; momentum
		FundamentalScore: 20,                                             // fundamentals weak
		SentimentScore:   40,                                             //
		ExpectedReturn:   &domain.ExpectedReturnRange{Low: -10, High: 2}, // negative midpoint
		VolatilityPct:    floatPtr(7.0),
		DailyValueEUR:    1000,
		Sector:           "Penny Stocks",
	}
	portfolio := domain.PortfolioContext{Positions: []domain.Position{
		{Ticker: "PNY", CurrentValue: 800},
		{Ticker: "SAP", CurrentValue: 200},
	}}

	got := assessor.Assess(in, portfolio)

	require.Len(t, got.Flags, 8)
	assert.Contains(t, got.Flags[0], "confidence")
	assert.Contains(t, got.Flags[1], "conflicting")
	assert.Contains(t, got.Flags[2], "expected return")
	assert.Contains(t, got.Flags[3], "volatility")
	assert.Contains(t, got.Flags[4], "liquidity")
	assert.Contains(t, got.Flags[5], "sector")
	assert.Contains(t, got.Flags[6], "portfolio value")
	assert.Contains(t, got.Flags[7], "momentum")
	assert.Equal(t, domain.RiskVeryHigh, got.Level)
}

func TestVolatilityBuckets(t *testing.T) {
	assessor := NewAssessor(DefaultConfig())
	tests := []struct {
		atr  *float64
		want domain.VolatilityLevel
	}{
		{floatPtr(0.5), domain.VolatilityLow},
		{floatPtr(1.0), domain.VolatilityNormal},
		{floatPtr(2.9), domain.VolatilityNormal},
		{floatPtr(3.0), domain.VolatilityHigh},
		{floatPtr(4.9), domain.VolatilityHigh},
		{floatPtr(5.0), domain.VolatilityVeryHigh},
		{nil, domain.VolatilityNormal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, assessor.volatilityBucket(tt.atr))
	}
}

func TestLiquidityBuckets(t *testing.T) {
	assessor := NewAssessor(DefaultConfig())

	assert.Equal(t, domain.LiquidityIlliquid, assessor.liquidityBucket(49_999))
	assert.Equal(t, domain.LiquidityNormal, assessor.liquidityBucket(50_000))
	assert.Equal(t, domain.LiquidityNormal, assessor.liquidityBucket(249_999))
	assert.Equal(t, domain.LiquidityHighlyLiquid, assessor.liquidityBucket(250_000))
}

func TestSectorClassificationPrecedence(t *testing.T) {
	// "Crypto Mining" matches both lists; high risk wins.
	high, cyclical := classifySector("Crypto Mining")
	assert.NotEmpty(t, high)
	assert.Empty(t, cyclical)

	high, cyclical = classifySector("Automotive")
	assert.Empty(t, high)
	assert.NotEmpty(t, cyclical)

	high, cyclical = classifySector("Software")
	assert.Empty(t, high)
	assert.Empty(t, cyclical)
}
