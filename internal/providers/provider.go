// Package providers defines the market data provider capability interface
// and the fallback router that tries providers in priority order.
package providers

import (
	"context"
	"errors"
	"time"

	"github.com/pelorusfin/pelorus/internal/domain"
)

// ErrNotSupported is returned by a provider for a capability it does not
// implement. The router treats it as non-fatal and silently moves on to the
// next provider.
var ErrNotSupported = errors.New("capability not supported")

// ErrNoPrice is returned by the router when every provider failed to deliver
// price data. Price is load-bearing: callers cannot proceed without it.
var ErrNoPrice = errors.New("no provider could deliver price data")

// Provider is a uniform capability object for one external data source.
// Each capability either returns data, returns ErrNotSupported, or fails
// with a retryable error (retries happen inside the adapter).
//
// Providers are constructed once per process and hold no per-request state.
type Provider interface {
	// Name identifies the provider in logs and failure counters.
	Name() string

	// Available reports whether the provider can be used at all
	// (e.g. false when credentials are missing).
	Available() bool

	GetPrices(ctx context.Context, ticker string, start, end time.Time) ([]domain.PriceBar, error)
	GetLatestPrice(ctx context.Context, ticker string) (*domain.Quote, error)
	GetNews(ctx context.Context, ticker string, limit int, asOf time.Time) ([]domain.NewsArticle, error)
	GetFinancialStatements(ctx context.Context, ticker, statementType string, limit int) ([]domain.FinancialStatement, error)
	GetAnalystRatings(ctx context.Context, ticker string) ([]domain.AnalystRating, error)
	GetMetadata(ctx context.Context, ticker string) (*domain.SecurityMetadata, error)
}
