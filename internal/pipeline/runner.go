// Package pipeline orchestrates a full analysis run over the configured
// universe: assemble point-in-time data, score it, normalize the result,
// create signals and size an allocation over the batch.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pelorusfin/pelorus/internal/allocation"
	"github.com/pelorusfin/pelorus/internal/analysis"
	"github.com/pelorusfin/pelorus/internal/assembler"
	"github.com/pelorusfin/pelorus/internal/domain"
	"github.com/pelorusfin/pelorus/internal/normalizer"
	"github.com/pelorusfin/pelorus/internal/signal"
	"github.com/pelorusfin/pelorus/pkg/formulas"
)

// defaultLookbackDays of price history assembled per ticker.
const defaultLookbackDays = 180

// SignalStore is the persistence surface the runner needs.
type SignalStore interface {
	SaveSignal(sig *domain.InvestmentSignal) error
	SavePrices(ticker string, bars []domain.PriceBar, currency domain.Currency) error
	SaveAllocation(alloc *allocation.PortfolioAllocation) error
}

// Runner wires the pipeline stages together for batch runs.
type Runner struct {
	assembler *assembler.Assembler
	analyzer  *analysis.Analyzer
	creator   *signal.Creator
	engine    *allocation.Engine
	store     SignalStore
	universe  []string
	lookback  int
	log       zerolog.Logger
}

func NewRunner(
	asm *assembler.Assembler,
	analyzer *analysis.Analyzer,
	creator *signal.Creator,
	engine *allocation.Engine,
	store SignalStore,
	universe []string,
	log zerolog.Logger,
) *Runner {
	return &Runner{
		assembler: asm,
		analyzer:  analyzer,
		creator:   creator,
		engine:    engine,
		store:     store,
		universe:  universe,
		lookback:  defaultLookbackDays,
		log:       log.With().Str("component", "pipeline").Logger(),
	}
}

// Result summarizes one batch run.
type Result struct {
	AsOf       time.Time
	Signals    []*domain.InvestmentSignal
	Allocation *allocation.PortfolioAllocation
	Skipped    []string
}

// Run analyzes every ticker in the universe for the given date, persists the
// produced signals and sizes an allocation over the batch. A ticker that
// yields no signal (typically no price) is skipped and recorded, never fatal;
// the run only fails on persistence errors.
func (r *Runner) Run(ctx context.Context, asOf time.Time, portfolio domain.PortfolioContext) (*Result, error) {
	result := &Result{AsOf: asOf}

	r.log.Info().Time("as_of", asOf).Int("universe", len(r.universe)).Msg("pipeline run starting")

	for _, ticker := range r.universe {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		sig, err := r.runTicker(ctx, ticker, asOf, portfolio)
		if err != nil {
			return nil, err
		}
		if sig == nil {
			result.Skipped = append(result.Skipped, ticker)
			continue
		}
		result.Signals = append(result.Signals, sig)
	}

	if len(result.Signals) > 0 {
		result.Allocation = r.engine.Allocate(result.Signals, portfolio)
		if err := r.attachSuggestions(result); err != nil {
			return nil, err
		}
		if err := r.store.SaveAllocation(result.Allocation); err != nil {
			return nil, fmt.Errorf("failed to persist allocation: %w", err)
		}
	}

	r.log.Info().
		Int("signals", len(result.Signals)).
		Int("skipped", len(result.Skipped)).
		Msg("pipeline run finished")
	return result, nil
}

func (r *Runner) runTicker(ctx context.Context, ticker string, asOf time.Time, portfolio domain.PortfolioContext) (*domain.InvestmentSignal, error) {
	mc, err := r.assembler.Assemble(ctx, ticker, asOf, r.lookback)
	if err != nil {
		return nil, fmt.Errorf("failed to assemble context for %s: %w", ticker, err)
	}

	// Persist whatever prices the assembly fetched so the store can serve
	// future lookups without a provider round trip.
	if len(mc.Prices) > 0 {
		currency := domain.CurrencyEUR
		if mc.Metadata != nil && mc.Metadata.Currency != "" {
			currency = mc.Metadata.Currency
		}
		if err := r.store.SavePrices(ticker, mc.Prices, currency); err != nil {
			return nil, fmt.Errorf("failed to persist prices for %s: %w", ticker, err)
		}
	}

	technical, fundamental, sentiment, synthesis := r.analyzer.Analyze(mc)
	unified := normalizer.FromRuleBased(ticker, technical, fundamental, sentiment, synthesis)

	sig, err := r.creator.Create(ctx, unified, portfolio, snapshotFrom(mc), asOf)
	if err != nil {
		return nil, fmt.Errorf("failed to create signal for %s: %w", ticker, err)
	}
	if sig == nil {
		return nil, nil
	}
	if err := r.store.SaveSignal(sig); err != nil {
		return nil, fmt.Errorf("failed to persist signal for %s: %w", ticker, err)
	}
	return sig, nil
}

// attachSuggestions links each allocation suggestion back onto its signal and
// re-persists the affected signals.
func (r *Runner) attachSuggestions(result *Result) error {
	byTicker := make(map[string]*domain.InvestmentSignal, len(result.Signals))
	for _, sig := range result.Signals {
		byTicker[sig.Ticker] = sig
	}
	for i := range result.Allocation.Suggestions {
		suggestion := result.Allocation.Suggestions[i]
		sig, ok := byTicker[suggestion.Ticker]
		if !ok {
			continue
		}
		sig.Allocation = &suggestion
		if err := r.store.SaveSignal(sig); err != nil {
			return fmt.Errorf("failed to persist allocation for %s: %w", suggestion.Ticker, err)
		}
	}
	return nil
}

// snapshotFrom distills the assembled context into the market snapshot the
// signal creator and risk assessor need.
func snapshotFrom(mc *assembler.Context) signal.MarketSnapshot {
	snapshot := signal.MarketSnapshot{Metadata: mc.Metadata}

	if len(mc.Prices) > 0 {
		bars := make([]formulas.Bar, len(mc.Prices))
		for i, p := range mc.Prices {
			bars[i] = formulas.Bar{High: p.High, Low: p.Low, Close: p.Close, Volume: p.Volume}
		}
		snapshot.VolatilityPct = formulas.ATRPercent(bars, 14)
		snapshot.DailyValueEUR = formulas.AverageDailyValue(bars)
	}
	return snapshot
}
