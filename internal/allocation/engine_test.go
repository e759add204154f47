package allocation

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pelorusfin/pelorus/internal/domain"
)

func newTestEngine(cfg Config) *Engine {
	return NewEngine(cfg, zerolog.Nop())
}

func buySignal(ticker, sector string, confidence float64, retLow, retHigh float64) *domain.InvestmentSignal {
	return &domain.InvestmentSignal{
		Ticker:         ticker,
		Sector:         sector,
		Market:         "XETRA",
		CurrentPrice:   100,
		Recommendation: domain.RecommendationBuy,
		Confidence:     confidence,
		FinalScore:     65,
		ExpectedReturn: &domain.ExpectedReturnRange{Low: retLow, High: retHigh},
	}
}

func TestAllocateConservesTotals(t *testing.T) {
	engine := newTestEngine(Config{TotalCapitalEUR: 10000, MaxPositionPct: 10, MaxSectorPct: 20})

	signals := []*domain.InvestmentSignal{
		buySignal("SAP", "Technology", 80, 5, 15),
		buySignal("ASML", "Semiconductors", 75, 4, 12),
		buySignal("ALV", "Insurance", 70, 3, 9),
	}

	got := engine.Allocate(signals, domain.PortfolioContext{})

	sum := 0.0
	for _, s := range got.Suggestions {
		sum += s.AmountEUR
	}
	assert.InDelta(t, got.TotalAllocatedEUR, sum, 0.001)
	assert.LessOrEqual(t, got.TotalAllocatedEUR, got.AvailableEUR)
	assert.InDelta(t, got.AvailableEUR, got.TotalAllocatedEUR+got.UnallocatedEUR, 0.001)
}

func TestAllocateKellySizing(t *testing.T) {
	engine := newTestEngine(Config{TotalCapitalEUR: 10000, MaxPositionPct: 10, MaxSectorPct: 20})

	// win 0.8, avg return 10: raw Kelly (0.8*10-0.2)/10 = 0.78, capped at
	// 0.25 of the 1000 EUR position cap.
	got := engine.Allocate([]*domain.InvestmentSignal{
		buySignal("SAP", "Technology", 80, 5, 15),
	}, domain.PortfolioContext{})

	require.Len(t, got.Suggestions, 1)
	assert.InDelta(t, 250, got.Suggestions[0].AmountEUR, 0.001)
	assert.InDelta(t, 2.5, got.Suggestions[0].Percentage, 0.001)
	require.NotNil(t, got.Suggestions[0].Shares)
	assert.InDelta(t, 2.5, *got.Suggestions[0].Shares, 0.001)
}

func TestAllocateSectorCapShrinksNeverRejects(t *testing.T) {
	// 4% sector cap is 400 EUR; each signal wants 250, so the second one is
	// shrunk to the remaining 150 rather than dropped.
	engine := newTestEngine(Config{TotalCapitalEUR: 10000, MaxPositionPct: 10, MaxSectorPct: 4})

	got := engine.Allocate([]*domain.InvestmentSignal{
		buySignal("SAP", "Technology", 80, 5, 15),
		buySignal("IFX", "Technology", 75, 5, 15),
	}, domain.PortfolioContext{})

	require.Len(t, got.Suggestions, 2)
	assert.InDelta(t, 250, got.Suggestions[0].AmountEUR, 0.001)
	assert.InDelta(t, 150, got.Suggestions[1].AmountEUR, 0.001)
	assert.InDelta(t, 400, got.TotalAllocatedEUR, 0.001)
}

func TestAllocateSectorCapCountsExistingPositions(t *testing.T) {
	engine := newTestEngine(Config{TotalCapitalEUR: 10000, MaxPositionPct: 10, MaxSectorPct: 20})

	portfolio := domain.PortfolioContext{Positions: []domain.Position{
		{Ticker: "ADBE", Sector: "Technology", CurrentValue: 1900},
	}}

	got := engine.Allocate([]*domain.InvestmentSignal{
		buySignal("SAP", "Technology", 80, 5, 15),
	}, portfolio)

	// 2000 EUR sector cap with 1900 already held leaves 100 EUR of room.
	require.Len(t, got.Suggestions, 1)
	assert.InDelta(t, 100, got.Suggestions[0].AmountEUR, 0.001)
}

func TestAllocateZeroesDustPositions(t *testing.T) {
	engine := newTestEngine(Config{TotalCapitalEUR: 10000, MaxPositionPct: 10, MaxSectorPct: 20})

	portfolio := domain.PortfolioContext{Positions: []domain.Position{
		{Ticker: "ADBE", Sector: "Technology", CurrentValue: 1970},
	}}

	got := engine.Allocate([]*domain.InvestmentSignal{
		buySignal("SAP", "Technology", 80, 5, 15),
	}, portfolio)

	// Sector room is 30 EUR, below the 50 EUR minimum ticket.
	assert.Empty(t, got.Suggestions)
	assert.Zero(t, got.TotalAllocatedEUR)
}

func TestAllocateSkipsLowConfidence(t *testing.T) {
	engine := newTestEngine(Config{TotalCapitalEUR: 10000, MaxPositionPct: 10, MaxSectorPct: 20})

	got := engine.Allocate([]*domain.InvestmentSignal{
		buySignal("SAP", "Technology", 49, 5, 15),
	}, domain.PortfolioContext{})

	assert.Empty(t, got.Suggestions)
}

func TestAllocateSkipsNonPositiveExpectedReturn(t *testing.T) {
	engine := newTestEngine(Config{TotalCapitalEUR: 10000, MaxPositionPct: 10, MaxSectorPct: 20})

	negative := buySignal("SAP", "Technology", 80, -10, -2)
	missing := buySignal("ASML", "Semiconductors", 80, 0, 0)
	missing.ExpectedReturn = nil

	got := engine.Allocate([]*domain.InvestmentSignal{negative, missing}, domain.PortfolioContext{})

	assert.Empty(t, got.Suggestions)
}

func TestAllocateRespectsCashBuffer(t *testing.T) {
	engine := newTestEngine(Config{TotalCapitalEUR: 10000, MaxPositionPct: 10, MaxSectorPct: 20})

	portfolio := domain.PortfolioContext{Positions: []domain.Position{
		{Ticker: "ADBE", Sector: "Media", CurrentValue: 9800},
	}}

	got := engine.Allocate([]*domain.InvestmentSignal{
		buySignal("SAP", "Technology", 80, 5, 15),
	}, portfolio)

	// 200 EUR available, 5% buffer leaves 190 investable; the 250 EUR
	// position is shrunk to fit.
	require.Len(t, got.Suggestions, 1)
	assert.InDelta(t, 190, got.Suggestions[0].AmountEUR, 0.001)
	assert.InDelta(t, 200, got.AvailableEUR, 0.001)
}

func TestRankSignalsOrdering(t *testing.T) {
	strongBuy := buySignal("WEAK", "Technology", 55, 5, 15)
	strongBuy.Recommendation = domain.RecommendationStrongBuy

	confident := buySignal("CONF", "Technology", 90, 5, 15)
	tieBreak := buySignal("AAAA", "Technology", 90, 5, 15)

	ranked := rankSignals([]*domain.InvestmentSignal{confident, strongBuy, tieBreak})

	// Tier dominates confidence; ticker breaks the full tie.
	require.Len(t, ranked, 3)
	assert.Equal(t, "WEAK", ranked[0].Ticker)
	assert.Equal(t, "AAAA", ranked[1].Ticker)
	assert.Equal(t, "CONF", ranked[2].Ticker)
}

func TestAllocateDeterministic(t *testing.T) {
	engine := newTestEngine(Config{TotalCapitalEUR: 10000, MaxPositionPct: 10, MaxSectorPct: 20})
	signals := []*domain.InvestmentSignal{
		buySignal("SAP", "Technology", 80, 5, 15),
		buySignal("ASML", "Semiconductors", 80, 5, 15),
		buySignal("ALV", "Insurance", 70, 3, 9),
	}

	first := engine.Allocate(signals, domain.PortfolioContext{})
	second := engine.Allocate(signals, domain.PortfolioContext{})

	require.Equal(t, len(first.Suggestions), len(second.Suggestions))
	for i := range first.Suggestions {
		assert.Equal(t, first.Suggestions[i].Ticker, second.Suggestions[i].Ticker)
		assert.Equal(t, first.Suggestions[i].AmountEUR, second.Suggestions[i].AmountEUR)
	}
	assert.Equal(t, first.DiversificationScore, second.DiversificationScore)
}

func TestDiversificationScoreExtremes(t *testing.T) {
	engine := newTestEngine(Config{TotalCapitalEUR: 10000, MaxPositionPct: 10, MaxSectorPct: 20})

	single := engine.Allocate([]*domain.InvestmentSignal{
		buySignal("SAP", "Technology", 80, 5, 15),
	}, domain.PortfolioContext{})
	// One sector on one market is fully concentrated.
	assert.Zero(t, single.DiversificationScore)

	spread := engine.Allocate([]*domain.InvestmentSignal{
		buySignal("SAP", "Technology", 80, 5, 15),
		buySignal("ASML", "Semiconductors", 80, 5, 15),
		buySignal("ALV", "Insurance", 80, 5, 15),
		buySignal("DTE", "Telecom", 80, 5, 15),
	}, domain.PortfolioContext{})
	assert.Greater(t, spread.DiversificationScore, 50.0)
}
