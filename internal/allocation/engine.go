package allocation

import (
	"math"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"github.com/pelorusfin/pelorus/internal/domain"
	"github.com/pelorusfin/pelorus/pkg/formulas"
)

const (
	// cashBufferPct of available capital is kept uninvested each run.
	cashBufferPct = 0.05
	// minTicketEUR is the smallest position worth opening. Anything that
	// would end below this after constraints is zeroed out instead of
	// leaving a dust position.
	minTicketEUR = 50.0
	// kellyCap limits the modified Kelly fraction per position.
	kellyCap = 0.25
	// minConfidence below which a signal is not allocated at all.
	minConfidence = 50.0

	sectorWeight = 0.70
	marketWeight = 0.30
)

// Config carries the capital and concentration limits for one allocation run.
type Config struct {
	TotalCapitalEUR float64
	MaxPositionPct  float64
	MaxSectorPct    float64
}

// Constraints records the absolute limit values that were enforced, so
// consumers can see what shaped the result.
type Constraints struct {
	MaxPositionEUR float64 `json:"max_position_eur"`
	MaxSectorEUR   float64 `json:"max_sector_eur"`
	MinTicketEUR   float64 `json:"min_ticket_eur"`
	CashBufferPct  float64 `json:"cash_buffer_pct"`
}

// PortfolioAllocation is the result of one allocation run over a batch of
// signals. The sum of suggestion amounts always equals TotalAllocatedEUR and
// never exceeds AvailableEUR.
type PortfolioAllocation struct {
	Suggestions          []domain.AllocationSuggestion `json:"suggestions"`
	SectorBreakdown      map[string]float64            `json:"sector_breakdown"`     // % of allocated
	MarketBreakdown      map[string]float64            `json:"market_breakdown"`     // % of allocated
	InstrumentBreakdown  map[string]float64            `json:"instrument_breakdown"` // % of allocated
	DiversificationScore float64                       `json:"diversification_score"`
	TotalCapitalEUR      float64                       `json:"total_capital_eur"`
	AlreadyAllocatedEUR  float64                       `json:"already_allocated_eur"`
	AvailableEUR         float64                       `json:"available_eur"`
	TotalAllocatedEUR    float64                       `json:"total_allocated_eur"`
	UnallocatedEUR       float64                       `json:"unallocated_eur"`
	Constraints          Constraints                   `json:"constraints"`
	GeneratedAt          time.Time                     `json:"generated_at"`
}

// Engine converts a batch of investment signals into concrete position sizes
// under capital, per-position and per-sector constraints.
type Engine struct {
	cfg Config
	log zerolog.Logger
}

func NewEngine(cfg Config, log zerolog.Logger) *Engine {
	if cfg.MaxPositionPct <= 0 {
		cfg.MaxPositionPct = 10
	}
	if cfg.MaxSectorPct <= 0 {
		cfg.MaxSectorPct = 20
	}
	return &Engine{
		cfg: cfg,
		log: log.With().Str("component", "allocation_engine").Logger(),
	}
}

// Allocate walks the signals in ranked order and sizes each position with a
// capped modified Kelly formula, then applies the position, sector, capital
// and minimum-ticket constraints in that order. Constraint violations shrink
// the position to fit, never reject the signal outright; only the minimum
// ticket check zeroes a position. The walk is deterministic: identical inputs
// always produce identical suggestions.
func (e *Engine) Allocate(signals []*domain.InvestmentSignal, portfolio domain.PortfolioContext) *PortfolioAllocation {
	committed := portfolio.TotalValue()
	available := e.cfg.TotalCapitalEUR - committed
	if available < 0 {
		available = 0
	}
	investable := available * (1 - cashBufferPct)

	maxPositionEUR := e.cfg.TotalCapitalEUR * e.cfg.MaxPositionPct / 100
	maxSectorEUR := e.cfg.TotalCapitalEUR * e.cfg.MaxSectorPct / 100

	ranked := rankSignals(signals)

	result := &PortfolioAllocation{
		SectorBreakdown:     make(map[string]float64),
		MarketBreakdown:     make(map[string]float64),
		InstrumentBreakdown: make(map[string]float64),
		TotalCapitalEUR:     e.cfg.TotalCapitalEUR,
		AlreadyAllocatedEUR: committed,
		AvailableEUR:        available,
		Constraints: Constraints{
			MaxPositionEUR: maxPositionEUR,
			MaxSectorEUR:   maxSectorEUR,
			MinTicketEUR:   minTicketEUR,
			CashBufferPct:  cashBufferPct,
		},
		GeneratedAt: time.Now().UTC(),
	}

	allocated := 0.0
	sectorAmounts := make(map[string]float64)
	marketAmounts := make(map[string]float64)
	instrumentAmounts := make(map[string]float64)

	for _, sig := range ranked {
		if allocated >= investable {
			break
		}
		if sig.Confidence < minConfidence {
			e.log.Debug().Str("ticker", sig.Ticker).Float64("confidence", sig.Confidence).
				Msg("skipping low-confidence signal")
			continue
		}

		amount := kellyPosition(sig, maxPositionEUR)
		if amount <= 0 {
			continue
		}

		// Constraint order: position cap, sector cap, capital cap, min ticket.
		if amount > maxPositionEUR {
			amount = maxPositionEUR
		}
		// Sector exposure counts existing holdings, so a sector the
		// portfolio already leans into gets less new money.
		if sig.Sector != "" {
			held := portfolio.SectorValue(sig.Sector) + sectorAmounts[sig.Sector]
			if room := maxSectorEUR - held; amount > room {
				amount = math.Max(room, 0)
			}
		}
		if remaining := investable - allocated; amount > remaining {
			amount = remaining
		}
		if amount < minTicketEUR {
			continue
		}

		suggestion := domain.AllocationSuggestion{
			Ticker:     sig.Ticker,
			AmountEUR:  round2(amount),
			Percentage: round2(amount / e.cfg.TotalCapitalEUR * 100),
		}
		if sig.CurrentPrice > 0 {
			shares := amount / sig.CurrentPrice
			suggestion.Shares = &shares
		}
		result.Suggestions = append(result.Suggestions, suggestion)

		allocated += suggestion.AmountEUR
		if sig.Sector != "" {
			sectorAmounts[sig.Sector] += suggestion.AmountEUR
		}
		if sig.Market != "" {
			marketAmounts[sig.Market] += suggestion.AmountEUR
		}
		instrumentAmounts[instrumentOf(sig)] += suggestion.AmountEUR
	}

	result.TotalAllocatedEUR = round2(allocated)
	result.UnallocatedEUR = round2(available - allocated)
	result.SectorBreakdown = breakdownPercent(sectorAmounts, allocated)
	result.MarketBreakdown = breakdownPercent(marketAmounts, allocated)
	result.InstrumentBreakdown = breakdownPercent(instrumentAmounts, allocated)
	result.DiversificationScore = diversification(sectorAmounts, marketAmounts)

	e.log.Info().
		Int("suggestions", len(result.Suggestions)).
		Float64("total_allocated_eur", result.TotalAllocatedEUR).
		Float64("diversification", result.DiversificationScore).
		Msg("allocation run complete")

	return result
}

// rankSignals returns a new slice sorted by (recommendation tier, confidence,
// final score) descending. Ticker ascending is the final tie-break so the
// order is total and reproducible.
func rankSignals(signals []*domain.InvestmentSignal) []*domain.InvestmentSignal {
	ranked := make([]*domain.InvestmentSignal, len(signals))
	copy(ranked, signals)
	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if at, bt := a.Recommendation.Tier(), b.Recommendation.Tier(); at != bt {
			return at > bt
		}
		if a.Confidence != b.Confidence {
			return a.Confidence > b.Confidence
		}
		if a.FinalScore != b.FinalScore {
			return a.FinalScore > b.FinalScore
		}
		return a.Ticker < b.Ticker
	})
	return ranked
}

// kellyPosition sizes a position as a capped modified Kelly fraction of the
// per-position cap. A non-positive expected return produces a zero position.
func kellyPosition(sig *domain.InvestmentSignal, maxPositionEUR float64) float64 {
	if sig.ExpectedReturn == nil {
		return 0
	}
	avgReturn := sig.ExpectedReturn.Midpoint()
	if avgReturn <= 0 {
		return 0
	}
	winRate := sig.Confidence / 100
	fraction := (winRate*avgReturn - (1 - winRate)) / math.Max(avgReturn, 1)
	fraction = formulas.Clamp(fraction, 0, kellyCap)
	return fraction * maxPositionEUR
}

func instrumentOf(sig *domain.InvestmentSignal) string {
	if sig.Metadata != nil && sig.Metadata.InstrumentType != "" {
		return string(sig.Metadata.InstrumentType)
	}
	return string(domain.InstrumentEquity)
}

func breakdownPercent(amounts map[string]float64, total float64) map[string]float64 {
	out := make(map[string]float64, len(amounts))
	if total <= 0 {
		return out
	}
	for k, v := range amounts {
		out[k] = round2(v / total * 100)
	}
	return out
}

// diversification scores the run's spread across sectors and markets with
// 100x(1-Herfindahl), weighted 70% sector and 30% market.
func diversification(sectorAmounts, marketAmounts map[string]float64) float64 {
	sectorScore := formulas.DiversificationScore(formulas.Herfindahl(sectorAmounts))
	marketScore := formulas.DiversificationScore(formulas.Herfindahl(marketAmounts))
	return formulas.ClampScore(sectorWeight*sectorScore + marketWeight*marketScore)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
