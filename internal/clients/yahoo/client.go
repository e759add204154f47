// Package yahoo provides the Yahoo Finance adapter. It covers daily prices,
// latest quotes, analyst recommendation trends and basic metadata. News and
// financial statements are not supported through this endpoint.
package yahoo

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/pelorusfin/pelorus/internal/clientdata"
	"github.com/pelorusfin/pelorus/internal/domain"
	"github.com/pelorusfin/pelorus/internal/providers"
	"github.com/pelorusfin/pelorus/internal/providers/httpx"
)

// Client for the Yahoo Finance chart/quoteSummary endpoints.
type Client struct {
	baseURL   string
	http      *httpx.Client
	cacheRepo *clientdata.Repository
	log       zerolog.Logger
}

// NewClient creates a new Yahoo Finance client. No credentials are needed.
// cacheRepo is optional - if nil, rating snapshots are not cached.
func NewClient(cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	return &Client{
		baseURL:   "https://query1.finance.yahoo.com",
		http:      httpx.New(10*time.Second, 2, log),
		cacheRepo: cacheRepo,
		log:       log.With().Str("client", "yahoo").Logger(),
	}
}

// Name identifies the provider.
func (c *Client) Name() string { return "yahoo" }

// Available is always true - the public endpoints need no credentials.
func (c *Client) Available() bool { return true }

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Currency           string  `json:"currency"`
				ExchangeName       string  `json:"exchangeName"`
				InstrumentType     string  `json:"instrumentType"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []float64 `json:"open"`
					High   []float64 `json:"high"`
					Low    []float64 `json:"low"`
					Close  []float64 `json:"close"`
					Volume []int64   `json:"volume"`
				} `json:"quote"`
				AdjClose []struct {
					AdjClose []float64 `json:"adjclose"`
				} `json:"adjclose"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

func (c *Client) fetchChart(ctx context.Context, ticker string, start, end time.Time) (*chartResponse, error) {
	params := url.Values{}
	params.Set("period1", fmt.Sprintf("%d", start.Unix()))
	params.Set("period2", fmt.Sprintf("%d", end.Unix()))
	params.Set("interval", "1d")
	params.Set("events", "history")

	endpoint := fmt.Sprintf("%s/v8/finance/chart/%s?%s", c.baseURL, url.PathEscape(ticker), params.Encode())

	var resp chartResponse
	if err := c.http.GetJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("yahoo chart for %s: %w", ticker, err)
	}
	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("yahoo chart for %s: %s", ticker, resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 {
		return nil, fmt.Errorf("yahoo returned no chart data for %s", ticker)
	}
	return &resp, nil
}

// GetPrices fetches the daily OHLCV series.
func (c *Client) GetPrices(ctx context.Context, ticker string, start, end time.Time) ([]domain.PriceBar, error) {
	resp, err := c.fetchChart(ctx, ticker, start, end.AddDate(0, 0, 1))
	if err != nil {
		return nil, err
	}

	result := resp.Chart.Result[0]
	if len(result.Indicators.Quote) == 0 {
		return nil, fmt.Errorf("yahoo returned no quote series for %s", ticker)
	}
	quote := result.Indicators.Quote[0]

	var adjClose []float64
	if len(result.Indicators.AdjClose) > 0 {
		adjClose = result.Indicators.AdjClose[0].AdjClose
	}

	bars := make([]domain.PriceBar, 0, len(result.Timestamp))
	for i, ts := range result.Timestamp {
		if i >= len(quote.Close) || quote.Close[i] == 0 {
			continue
		}
		bar := domain.PriceBar{
			Date:   time.Unix(ts, 0).UTC().Truncate(24 * time.Hour),
			Open:   at(quote.Open, i),
			High:   at(quote.High, i),
			Low:    at(quote.Low, i),
			Close:  quote.Close[i],
			Volume: atInt(quote.Volume, i),
		}
		if i < len(adjClose) && adjClose[i] > 0 {
			bar.AdjClose = adjClose[i]
		} else {
			bar.AdjClose = bar.Close
		}
		bars = append(bars, bar)
	}
	return bars, nil
}

// GetLatestPrice fetches the regular market price from chart metadata.
func (c *Client) GetLatestPrice(ctx context.Context, ticker string) (*domain.Quote, error) {
	now := time.Now()
	resp, err := c.fetchChart(ctx, ticker, now.AddDate(0, 0, -7), now)
	if err != nil {
		return nil, err
	}

	meta := resp.Chart.Result[0].Meta
	if meta.RegularMarketPrice <= 0 {
		return nil, fmt.Errorf("yahoo returned no market price for %s", ticker)
	}

	return &domain.Quote{
		Ticker:   ticker,
		Price:    meta.RegularMarketPrice,
		Currency: domain.Currency(meta.Currency),
		AsOf:     now,
		Source:   c.Name(),
	}, nil
}

// GetNews is not supported through the chart endpoint.
func (c *Client) GetNews(_ context.Context, _ string, _ int, _ time.Time) ([]domain.NewsArticle, error) {
	return nil, providers.ErrNotSupported
}

// GetFinancialStatements is not supported through the chart endpoint.
func (c *Client) GetFinancialStatements(_ context.Context, _, _ string, _ int) ([]domain.FinancialStatement, error) {
	return nil, providers.ErrNotSupported
}

type quoteSummaryResponse struct {
	QuoteSummary struct {
		Result []struct {
			RecommendationTrend struct {
				Trend []struct {
					Period     string `json:"period"`
					StrongBuy  int    `json:"strongBuy"`
					Buy        int    `json:"buy"`
					Hold       int    `json:"hold"`
					Sell       int    `json:"sell"`
					StrongSell int    `json:"strongSell"`
				} `json:"trend"`
			} `json:"recommendationTrend"`
		} `json:"result"`
	} `json:"quoteSummary"`
}

// GetAnalystRatings fetches the current recommendation trend snapshot,
// cache-first. Consensus moves slowly, so a day-old snapshot is fine.
func (c *Client) GetAnalystRatings(ctx context.Context, ticker string) ([]domain.AnalystRating, error) {
	if c.cacheRepo != nil {
		var cached []domain.AnalystRating
		if found, err := c.cacheRepo.GetIfFresh("provider_ratings", ticker, &cached); err == nil && found {
			c.log.Debug().Str("ticker", ticker).Msg("Ratings cache hit")
			return cached, nil
		}
	}

	endpoint := fmt.Sprintf("%s/v10/finance/quoteSummary/%s?modules=recommendationTrend",
		c.baseURL, url.PathEscape(ticker))

	var resp quoteSummaryResponse
	if err := c.http.GetJSON(ctx, endpoint, &resp); err != nil {
		return nil, fmt.Errorf("yahoo recommendation trend for %s: %w", ticker, err)
	}
	if len(resp.QuoteSummary.Result) == 0 {
		return nil, fmt.Errorf("yahoo returned no recommendation trend for %s", ticker)
	}

	ratings := make([]domain.AnalystRating, 0, 1)
	for _, trend := range resp.QuoteSummary.Result[0].RecommendationTrend.Trend {
		// "0m" is the current month's snapshot; older periods are history.
		if trend.Period != "0m" {
			continue
		}
		ratings = append(ratings, domain.AnalystRating{
			Ticker:     ticker,
			Rating:     dominantRating(trend.StrongBuy, trend.Buy, trend.Hold, trend.Sell, trend.StrongSell),
			StrongBuy:  trend.StrongBuy,
			Buy:        trend.Buy,
			Hold:       trend.Hold,
			Sell:       trend.Sell,
			StrongSell: trend.StrongSell,
			Date:       time.Now().UTC().Truncate(24 * time.Hour),
		})
	}
	if len(ratings) == 0 {
		return nil, fmt.Errorf("yahoo returned no current-period rating for %s", ticker)
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store("provider_ratings", ticker, ratings, clientdata.TTLRatings); err != nil {
			c.log.Warn().Err(err).Msg("Failed to cache ratings")
		}
	}
	return ratings, nil
}

// GetMetadata derives basic metadata from chart meta. Sector and name are
// not available here, so lower-priority providers fill the gaps.
func (c *Client) GetMetadata(ctx context.Context, ticker string) (*domain.SecurityMetadata, error) {
	now := time.Now()
	resp, err := c.fetchChart(ctx, ticker, now.AddDate(0, 0, -7), now)
	if err != nil {
		return nil, err
	}

	meta := resp.Chart.Result[0].Meta
	instrument := domain.InstrumentUnknown
	switch meta.InstrumentType {
	case "EQUITY":
		instrument = domain.InstrumentEquity
	case "ETF":
		instrument = domain.InstrumentETF
	}

	return &domain.SecurityMetadata{
		Ticker:         ticker,
		Market:         meta.ExchangeName,
		Currency:       domain.Currency(meta.Currency),
		InstrumentType: instrument,
	}, nil
}

func dominantRating(strongBuy, buy, hold, sell, strongSell int) string {
	best, rating := strongBuy, "strong_buy"
	if buy > best {
		best, rating = buy, "buy"
	}
	if hold > best {
		best, rating = hold, "hold"
	}
	if sell > best {
		best, rating = sell, "sell"
	}
	if strongSell > best {
		rating = "strong_sell"
	}
	return rating
}

func at(values []float64, i int) float64 {
	if i < len(values) {
		return values[i]
	}
	return 0
}

func atInt(values []int64, i int) int64 {
	if i < len(values) {
		return values[i]
	}
	return 0
}
