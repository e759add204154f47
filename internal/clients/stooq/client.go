// Package stooq provides the Stooq adapter, a keyless CSV source used as the
// last price fallback. Only daily price history is supported.
package stooq

import (
	"context"
	"encoding/csv"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pelorusfin/pelorus/internal/domain"
	"github.com/pelorusfin/pelorus/internal/providers"
	"github.com/pelorusfin/pelorus/internal/providers/httpx"
)

// Client for stooq.com daily CSV downloads.
type Client struct {
	baseURL string
	http    *httpx.Client
	log     zerolog.Logger
}

// NewClient creates a new Stooq client.
func NewClient(log zerolog.Logger) *Client {
	return &Client{
		baseURL: "https://stooq.com/q/d/l/",
		http:    httpx.New(10*time.Second, 1, log),
		log:     log.With().Str("client", "stooq").Logger(),
	}
}

// Name identifies the provider.
func (c *Client) Name() string { return "stooq" }

// Available is always true - the CSV endpoint needs no credentials.
func (c *Client) Available() bool { return true }

// GetPrices fetches the daily OHLCV series as CSV.
func (c *Client) GetPrices(ctx context.Context, ticker string, start, end time.Time) ([]domain.PriceBar, error) {
	params := url.Values{}
	params.Set("s", strings.ToLower(ticker))
	params.Set("d1", start.Format("20060102"))
	params.Set("d2", end.Format("20060102"))
	params.Set("i", "d")

	body, err := c.http.Get(ctx, c.baseURL+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("stooq daily series for %s: %w", ticker, err)
	}

	records, err := csv.NewReader(strings.NewReader(string(body))).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("stooq returned malformed CSV for %s: %w", ticker, err)
	}
	// Header row plus at least one data row expected:
	// Date,Open,High,Low,Close,Volume
	if len(records) < 2 {
		return nil, fmt.Errorf("stooq returned no data for %s", ticker)
	}

	bars := make([]domain.PriceBar, 0, len(records)-1)
	for _, rec := range records[1:] {
		if len(rec) < 6 {
			continue
		}
		date, err := time.Parse("2006-01-02", rec[0])
		if err != nil {
			continue
		}
		closePrice := parseFloat(rec[4])
		if closePrice <= 0 {
			continue
		}
		volume, _ := strconv.ParseInt(rec[5], 10, 64)
		bars = append(bars, domain.PriceBar{
			Date:     date,
			Open:     parseFloat(rec[1]),
			High:     parseFloat(rec[2]),
			Low:      parseFloat(rec[3]),
			Close:    closePrice,
			AdjClose: closePrice,
			Volume:   volume,
		})
	}
	if len(bars) == 0 {
		return nil, fmt.Errorf("stooq returned no parsable rows for %s", ticker)
	}
	return bars, nil
}

// GetLatestPrice returns the last close from a short lookback window.
func (c *Client) GetLatestPrice(ctx context.Context, ticker string) (*domain.Quote, error) {
	now := time.Now()
	bars, err := c.GetPrices(ctx, ticker, now.AddDate(0, 0, -10), now)
	if err != nil {
		return nil, err
	}
	last := bars[len(bars)-1]
	return &domain.Quote{
		Ticker: ticker,
		Price:  last.Close,
		// Stooq does not report currency; EUR listings are the primary use.
		Currency: domain.CurrencyEUR,
		AsOf:     last.Date,
		Source:   c.Name(),
	}, nil
}

// GetNews is not supported.
func (c *Client) GetNews(_ context.Context, _ string, _ int, _ time.Time) ([]domain.NewsArticle, error) {
	return nil, providers.ErrNotSupported
}

// GetFinancialStatements is not supported.
func (c *Client) GetFinancialStatements(_ context.Context, _, _ string, _ int) ([]domain.FinancialStatement, error) {
	return nil, providers.ErrNotSupported
}

// GetAnalystRatings is not supported.
func (c *Client) GetAnalystRatings(_ context.Context, _ string) ([]domain.AnalystRating, error) {
	return nil, providers.ErrNotSupported
}

// GetMetadata is not supported.
func (c *Client) GetMetadata(_ context.Context, _ string) (*domain.SecurityMetadata, error) {
	return nil, providers.ErrNotSupported
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
