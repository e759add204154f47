// Package assembler builds point-in-time data bundles for analysis. It is the
// backtesting-correctness boundary: nothing dated after the requested as-of
// date may appear in an assembled context, even when a provider ignores the
// requested range. The provider boundary is untrusted, so dates are filtered
// here again regardless of what the provider already did.
package assembler

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/pelorusfin/pelorus/internal/domain"
)

// MarketSource is the data access surface the assembler consumes. The
// provider fallback router satisfies it.
type MarketSource interface {
	GetPrices(ctx context.Context, ticker string, start, end time.Time) ([]domain.PriceBar, error)
	GetNews(ctx context.Context, ticker string, limit int, asOf time.Time) ([]domain.NewsArticle, error)
	GetFinancialStatements(ctx context.Context, ticker, statementType string, limit int) ([]domain.FinancialStatement, error)
	GetAnalystRatings(ctx context.Context, ticker string) ([]domain.AnalystRating, error)
	GetMetadata(ctx context.Context, ticker string) (*domain.SecurityMetadata, error)
}

// Context is the point-in-time data bundle for one (ticker, as-of) pair.
// Invariant: every dated item has a date <= AsOf.
type Context struct {
	Ticker   string
	AsOf     time.Time
	Lookback int // days

	Prices     []domain.PriceBar
	Statements []domain.FinancialStatement
	News       []domain.NewsArticle
	Rating     *domain.AnalystRating // single most recent snapshot, not a series
	Metadata   *domain.SecurityMetadata

	DataAvailable bool
	Warnings      []string
}

// sparseCoverageRatio is the fraction of theoretical trading days below
// which the assembled price series is flagged as sparse.
const sparseCoverageRatio = 0.40

const defaultNewsLimit = 25

// Assembler builds point-in-time contexts from a market source.
type Assembler struct {
	source MarketSource
	log    zerolog.Logger
}

// New creates a new assembler.
func New(source MarketSource, log zerolog.Logger) *Assembler {
	return &Assembler{
		source: source,
		log:    log.With().Str("component", "assembler").Logger(),
	}
}

// Assemble fetches all data types for the ticker over a lookback window
// ending at asOf. Each data type is fetched independently: a failure in one
// never affects the others or fails the whole assembly. Records dated
// strictly after asOf are discarded.
func (a *Assembler) Assemble(ctx context.Context, ticker string, asOf time.Time, lookbackDays int) (*Context, error) {
	if lookbackDays <= 0 {
		lookbackDays = 365
	}
	start := asOf.AddDate(0, 0, -lookbackDays)

	result := &Context{
		Ticker:        ticker,
		AsOf:          asOf,
		Lookback:      lookbackDays,
		DataAvailable: true,
	}

	a.assemblePrices(ctx, result, start)
	a.assembleStatements(ctx, result)
	a.assembleNews(ctx, result)
	a.assembleRating(ctx, result)
	a.assembleMetadata(ctx, result)

	return result, nil
}

func (a *Assembler) assemblePrices(ctx context.Context, c *Context, start time.Time) {
	bars, err := a.source.GetPrices(ctx, c.Ticker, start, c.AsOf)
	if err != nil {
		a.log.Warn().Str("ticker", c.Ticker).Err(err).Msg("Price fetch failed during assembly")
		c.DataAvailable = false
		c.Warnings = append(c.Warnings, fmt.Sprintf("no price data available: %v", err))
		return
	}

	kept := make([]domain.PriceBar, 0, len(bars))
	dropped := 0
	for _, bar := range bars {
		if bar.Date.After(c.AsOf) {
			dropped++
			continue
		}
		kept = append(kept, bar)
	}
	if dropped > 0 {
		// A provider handing back future-dated bars is a data-quality
		// problem worth surfacing, even though the filter contains it.
		a.log.Warn().
			Str("ticker", c.Ticker).
			Int("dropped", dropped).
			Time("as_of", c.AsOf).
			Msg("Dropped future-dated price bars")
	}
	c.Prices = kept

	if len(kept) == 0 {
		c.DataAvailable = false
		c.Warnings = append(c.Warnings, "no price data within the lookback window")
		return
	}

	expected := theoreticalTradingDays(c.Lookback)
	if expected > 0 && float64(len(kept)) < sparseCoverageRatio*float64(expected) {
		c.Warnings = append(c.Warnings, fmt.Sprintf(
			"sparse price data: %d bars for %d expected trading days", len(kept), expected))
	}
}

func (a *Assembler) assembleStatements(ctx context.Context, c *Context) {
	statements, err := a.source.GetFinancialStatements(ctx, c.Ticker, "income", 4)
	if err != nil {
		a.log.Debug().Str("ticker", c.Ticker).Err(err).Msg("Statements unavailable, skipping")
		c.Warnings = append(c.Warnings, "financial statements unavailable")
		return
	}
	kept := make([]domain.FinancialStatement, 0, len(statements))
	for _, s := range statements {
		if s.PeriodEnd.After(c.AsOf) {
			continue
		}
		kept = append(kept, s)
	}
	c.Statements = kept
}

func (a *Assembler) assembleNews(ctx context.Context, c *Context) {
	articles, err := a.source.GetNews(ctx, c.Ticker, defaultNewsLimit, c.AsOf)
	if err != nil {
		// The router already degrades news to empty; an error here means
		// something unexpected, but news is enrichment either way.
		a.log.Debug().Str("ticker", c.Ticker).Err(err).Msg("News unavailable, skipping")
		return
	}
	kept := make([]domain.NewsArticle, 0, len(articles))
	for _, article := range articles {
		if article.PublishedAt.After(c.AsOf) {
			continue
		}
		kept = append(kept, article)
	}
	c.News = kept
}

func (a *Assembler) assembleRating(ctx context.Context, c *Context) {
	ratings, err := a.source.GetAnalystRatings(ctx, c.Ticker)
	if err != nil {
		a.log.Debug().Str("ticker", c.Ticker).Err(err).Msg("Ratings unavailable, skipping")
		return
	}

	var latest *domain.AnalystRating
	for i := range ratings {
		r := ratings[i]
		if r.Date.After(c.AsOf) {
			continue
		}
		if latest == nil || r.Date.After(latest.Date) {
			latest = &r
		}
	}
	c.Rating = latest
}

func (a *Assembler) assembleMetadata(ctx context.Context, c *Context) {
	meta, err := a.source.GetMetadata(ctx, c.Ticker)
	if err != nil {
		a.log.Debug().Str("ticker", c.Ticker).Err(err).Msg("Metadata unavailable, skipping")
		return
	}
	c.Metadata = meta
}

// theoreticalTradingDays approximates the number of trading days in a
// lookback window as five sevenths of the calendar days.
func theoreticalTradingDays(lookbackDays int) int {
	return int(math.Ceil(float64(lookbackDays) * 5.0 / 7.0))
}
