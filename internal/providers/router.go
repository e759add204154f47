package providers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/pelorusfin/pelorus/internal/domain"
)

// Router tries providers in priority order per capability: one primary and
// N backups. Providers flagged unavailable are skipped. ErrNotSupported is
// silent; any other failure increments the provider's failure counter and
// the next provider is tried. The first success short-circuits and resets
// the winning provider's counter.
//
// Failure counters are advisory observability state only. They are owned by
// the Router instance, the counter map is never mutated after construction,
// and increments are plain writes (no atomicity requirement - the counters
// are never used for correctness decisions such as circuit breaking).
type Router struct {
	providers []Provider
	failures  map[string]*int64
	log       zerolog.Logger
}

// NewRouter creates a fallback router over providers in priority order.
func NewRouter(providers []Provider, log zerolog.Logger) *Router {
	failures := make(map[string]*int64, len(providers))
	for _, p := range providers {
		var n int64
		failures[p.Name()] = &n
	}
	return &Router{
		providers: providers,
		failures:  failures,
		log:       log.With().Str("component", "provider_router").Logger(),
	}
}

// FailureCounts returns a snapshot of per-provider failure counters.
func (r *Router) FailureCounts() map[string]int64 {
	snapshot := make(map[string]int64, len(r.failures))
	for name, n := range r.failures {
		snapshot[name] = *n
	}
	return snapshot
}

// ProviderNames returns the configured providers in priority order, with
// availability at the time of the call.
func (r *Router) ProviderNames() []string {
	names := make([]string, 0, len(r.providers))
	for _, p := range r.providers {
		names = append(names, p.Name())
	}
	return names
}

func (r *Router) recordFailure(p Provider, capability string, err error) {
	*r.failures[p.Name()]++
	r.log.Warn().
		Str("provider", p.Name()).
		Str("capability", capability).
		Err(err).
		Msg("Provider failed, trying next")
}

func (r *Router) recordSuccess(p Provider) {
	*r.failures[p.Name()] = 0
}

// GetPrices fetches the daily price series from the first provider that can
// deliver it. Exhausting all providers is a hard failure (ErrNoPrice).
func (r *Router) GetPrices(ctx context.Context, ticker string, start, end time.Time) ([]domain.PriceBar, error) {
	for _, p := range r.providers {
		if !p.Available() {
			continue
		}
		bars, err := p.GetPrices(ctx, ticker, start, end)
		if err != nil {
			if !errors.Is(err, ErrNotSupported) {
				r.recordFailure(p, "prices", err)
			}
			continue
		}
		r.recordSuccess(p)
		return bars, nil
	}
	return nil, fmt.Errorf("%w: prices for %s", ErrNoPrice, ticker)
}

// GetLatestPrice fetches the most recent price quote. Like GetPrices,
// exhaustion is a hard failure.
func (r *Router) GetLatestPrice(ctx context.Context, ticker string) (*domain.Quote, error) {
	for _, p := range r.providers {
		if !p.Available() {
			continue
		}
		quote, err := p.GetLatestPrice(ctx, ticker)
		if err != nil {
			if !errors.Is(err, ErrNotSupported) {
				r.recordFailure(p, "latest_price", err)
			}
			continue
		}
		r.recordSuccess(p)
		return quote, nil
	}
	return nil, fmt.Errorf("%w: latest price for %s", ErrNoPrice, ticker)
}

// GetNews fetches news articles. News is enrichment, not load-bearing:
// when every provider fails the router degrades to an empty result so that
// missing news never blocks signal generation.
func (r *Router) GetNews(ctx context.Context, ticker string, limit int, asOf time.Time) ([]domain.NewsArticle, error) {
	for _, p := range r.providers {
		if !p.Available() {
			continue
		}
		articles, err := p.GetNews(ctx, ticker, limit, asOf)
		if err != nil {
			if !errors.Is(err, ErrNotSupported) {
				r.recordFailure(p, "news", err)
			}
			continue
		}
		r.recordSuccess(p)
		return articles, nil
	}
	r.log.Debug().Str("ticker", ticker).Msg("No provider delivered news, degrading to empty")
	return []domain.NewsArticle{}, nil
}

// GetFinancialStatements fetches financial statements from the first capable provider.
func (r *Router) GetFinancialStatements(ctx context.Context, ticker, statementType string, limit int) ([]domain.FinancialStatement, error) {
	for _, p := range r.providers {
		if !p.Available() {
			continue
		}
		statements, err := p.GetFinancialStatements(ctx, ticker, statementType, limit)
		if err != nil {
			if !errors.Is(err, ErrNotSupported) {
				r.recordFailure(p, "financial_statements", err)
			}
			continue
		}
		r.recordSuccess(p)
		return statements, nil
	}
	return nil, fmt.Errorf("all providers exhausted: financial statements for %s", ticker)
}

// GetAnalystRatings fetches analyst ratings from the first capable provider.
func (r *Router) GetAnalystRatings(ctx context.Context, ticker string) ([]domain.AnalystRating, error) {
	for _, p := range r.providers {
		if !p.Available() {
			continue
		}
		ratings, err := p.GetAnalystRatings(ctx, ticker)
		if err != nil {
			if !errors.Is(err, ErrNotSupported) {
				r.recordFailure(p, "analyst_ratings", err)
			}
			continue
		}
		r.recordSuccess(p)
		return ratings, nil
	}
	return nil, fmt.Errorf("all providers exhausted: analyst ratings for %s", ticker)
}

// GetMetadata fetches security metadata from the first capable provider.
func (r *Router) GetMetadata(ctx context.Context, ticker string) (*domain.SecurityMetadata, error) {
	for _, p := range r.providers {
		if !p.Available() {
			continue
		}
		meta, err := p.GetMetadata(ctx, ticker)
		if err != nil {
			if !errors.Is(err, ErrNotSupported) {
				r.recordFailure(p, "metadata", err)
			}
			continue
		}
		r.recordSuccess(p)
		return meta, nil
	}
	return nil, fmt.Errorf("all providers exhausted: metadata for %s", ticker)
}
