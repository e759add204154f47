// Package signal turns unified analysis results into investment signals and
// persists them. Signal creation is the one stage where total failure for a
// ticker (no price from any source) is an expected, skippable outcome.
package signal

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pelorusfin/pelorus/internal/domain"
	"github.com/pelorusfin/pelorus/internal/risk"
)

// PriceStore is the local daily price store consulted before any provider
// fetch. Both lookups return nil without error when no price is stored.
type PriceStore interface {
	LatestPrice(ticker string) (*domain.Quote, error)
	// PriceOn returns the close for the exact date, or the nearest prior
	// date when the market was closed on the requested one.
	PriceOn(ticker string, date time.Time) (*domain.Quote, error)
}

// PriceSource is the provider-router fallback used when the local store has
// no price for a ticker.
type PriceSource interface {
	GetLatestPrice(ctx context.Context, ticker string) (*domain.Quote, error)
	GetPrices(ctx context.Context, ticker string, start, end time.Time) ([]domain.PriceBar, error)
}

// MarketSnapshot carries the descriptive and liquidity data gathered during
// assembly, used to fill the signal and to assess risk when the unified
// result did not already carry an assessment.
type MarketSnapshot struct {
	Metadata      *domain.SecurityMetadata
	VolatilityPct *float64
	DailyValueEUR float64
}

// Creator builds investment signals from unified analysis results.
type Creator struct {
	store    PriceStore
	market   PriceSource
	assessor *risk.Assessor
	log      zerolog.Logger
}

func NewCreator(store PriceStore, market PriceSource, assessor *risk.Assessor, log zerolog.Logger) *Creator {
	return &Creator{
		store:    store,
		market:   market,
		assessor: assessor,
		log:      log.With().Str("component", "signal_creator").Logger(),
	}
}

// Create joins a price lookup with the unified result. It returns (nil, nil)
// when no price can be obtained from any source: a signal without a price is
// meaningless, and the miss is logged rather than propagated so one bad
// ticker does not abort a batch run. Risk is assessed here only when the
// unified result did not already carry an assessment.
func (c *Creator) Create(ctx context.Context, unified *domain.UnifiedAnalysisResult, portfolio domain.PortfolioContext, snapshot MarketSnapshot, analysisDate time.Time) (*domain.InvestmentSignal, error) {
	quote := c.lookupPrice(ctx, unified.Ticker, analysisDate)
	if quote == nil {
		c.log.Warn().Str("ticker", unified.Ticker).Time("analysis_date", analysisDate).
			Msg("no price from any source, skipping signal")
		return nil, nil
	}

	riskAssessment := unified.Risk
	if riskAssessment == nil {
		assessed := c.assessor.Assess(risk.Inputs{
			Ticker:           unified.Ticker,
			FinalScore:       unified.FinalScore,
			Confidence:       unified.Confidence,
			TechnicalScore:   unified.Technical.Score,
			FundamentalScore: unified.Fundamental.Score,
			SentimentScore:   unified.Sentiment.Score,
			ExpectedReturn:   unified.ExpectedReturn,
			VolatilityPct:    snapshot.VolatilityPct,
			DailyValueEUR:    snapshot.DailyValueEUR,
			Sector:           sectorOf(snapshot),
		}, portfolio)
		riskAssessment = &assessed
	}

	sig := &domain.InvestmentSignal{
		ID:               uuid.NewString(),
		Ticker:           unified.Ticker,
		CurrentPrice:     quote.Price,
		Currency:         quote.Currency,
		TechnicalScore:   unified.Technical.Score,
		FundamentalScore: unified.Fundamental.Score,
		SentimentScore:   unified.Sentiment.Score,
		FinalScore:       unified.FinalScore,
		Recommendation:   unified.Recommendation,
		Confidence:       unified.Confidence,
		ExpectedReturn:   unified.ExpectedReturn,
		KeyReasons:       unified.KeyReasons,
		Risk:             riskAssessment,
		Metadata:         snapshot.Metadata,
		GeneratedAt:      time.Now().UTC(),
		AnalysisDate:     analysisDate,
	}
	if snapshot.Metadata != nil {
		sig.Name = snapshot.Metadata.Name
		sig.Market = snapshot.Metadata.Market
		sig.Sector = snapshot.Metadata.Sector
	}
	return sig, nil
}

// lookupPrice tries the local store first and falls back to the provider
// router. Today's signals use the latest-price path; back-test dates use the
// exact-date-else-nearest-prior path.
func (c *Creator) lookupPrice(ctx context.Context, ticker string, analysisDate time.Time) *domain.Quote {
	today := isSameDay(analysisDate, time.Now().UTC()) || analysisDate.IsZero()

	if c.store != nil {
		var quote *domain.Quote
		var err error
		if today {
			quote, err = c.store.LatestPrice(ticker)
		} else {
			quote, err = c.store.PriceOn(ticker, analysisDate)
		}
		if err != nil {
			c.log.Debug().Err(err).Str("ticker", ticker).Msg("price store lookup failed")
		} else if quote != nil {
			return quote
		}
	}

	if c.market == nil {
		return nil
	}
	if today {
		quote, err := c.market.GetLatestPrice(ctx, ticker)
		if err != nil {
			c.log.Debug().Err(err).Str("ticker", ticker).Msg("provider latest price failed")
			return nil
		}
		return quote
	}

	// Pull a small window ending on the analysis date and take the last bar
	// at or before it.
	bars, err := c.market.GetPrices(ctx, ticker, analysisDate.AddDate(0, 0, -7), analysisDate)
	if err != nil || len(bars) == 0 {
		if err != nil {
			c.log.Debug().Err(err).Str("ticker", ticker).Msg("provider historical prices failed")
		}
		return nil
	}
	var best *domain.PriceBar
	for i := range bars {
		if bars[i].Date.After(analysisDate) {
			continue
		}
		if best == nil || bars[i].Date.After(best.Date) {
			best = &bars[i]
		}
	}
	if best == nil {
		return nil
	}
	return &domain.Quote{Ticker: ticker, Price: best.Close, AsOf: best.Date, Source: "provider"}
}

func sectorOf(snapshot MarketSnapshot) string {
	if snapshot.Metadata != nil {
		return snapshot.Metadata.Sector
	}
	return ""
}

func isSameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
