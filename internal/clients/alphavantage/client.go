// Package alphavantage provides the Alpha Vantage market data adapter.
// It covers daily prices, latest quotes, news, financial statements and
// security metadata. Analyst ratings are not offered by this API.
package alphavantage

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/pelorusfin/pelorus/internal/clientdata"
	"github.com/pelorusfin/pelorus/internal/domain"
	"github.com/pelorusfin/pelorus/internal/providers"
	"github.com/pelorusfin/pelorus/internal/providers/httpx"
)

// Client for alphavantage.co
type Client struct {
	baseURL   string
	apiKey    string
	http      *httpx.Client
	cacheRepo *clientdata.Repository
	log       zerolog.Logger
}

// NewClient creates a new Alpha Vantage client.
// cacheRepo is optional - if nil, caching is disabled.
func NewClient(apiKey string, cacheRepo *clientdata.Repository, log zerolog.Logger) *Client {
	return &Client{
		baseURL: "https://www.alphavantage.co/query",
		apiKey:  apiKey,
		// Free tier allows 5 requests/minute; stay under it.
		http:      httpx.New(15*time.Second, 5.0/60.0, log),
		cacheRepo: cacheRepo,
		log:       log.With().Str("client", "alphavantage").Logger(),
	}
}

// Name identifies the provider.
func (c *Client) Name() string { return "alphavantage" }

// Available reports whether an API key is configured.
func (c *Client) Available() bool { return c.apiKey != "" }

func (c *Client) endpoint(params url.Values) string {
	params.Set("apikey", c.apiKey)
	return c.baseURL + "?" + params.Encode()
}

type dailySeriesResponse struct {
	Series map[string]map[string]string `json:"Time Series (Daily)"`
	Note   string                       `json:"Note"`
}

// GetPrices fetches the daily OHLCV series, cache-first.
func (c *Client) GetPrices(ctx context.Context, ticker string, start, end time.Time) ([]domain.PriceBar, error) {
	cacheKey := fmt.Sprintf("%s:%s:%s", ticker, start.Format("20060102"), end.Format("20060102"))
	if c.cacheRepo != nil {
		var cached []domain.PriceBar
		if found, err := c.cacheRepo.GetIfFresh("provider_prices", cacheKey, &cached); err == nil && found {
			c.log.Debug().Str("ticker", ticker).Msg("Price cache hit")
			return cached, nil
		}
	}

	params := url.Values{}
	params.Set("function", "TIME_SERIES_DAILY")
	params.Set("symbol", ticker)
	params.Set("outputsize", "full")

	var resp dailySeriesResponse
	if err := c.http.GetJSON(ctx, c.endpoint(params), &resp); err != nil {
		return nil, fmt.Errorf("alphavantage daily series for %s: %w", ticker, err)
	}
	if resp.Note != "" {
		return nil, fmt.Errorf("alphavantage throttled: %s", resp.Note)
	}
	if len(resp.Series) == 0 {
		return nil, fmt.Errorf("alphavantage returned no daily series for %s", ticker)
	}

	bars := make([]domain.PriceBar, 0, len(resp.Series))
	for dateStr, fields := range resp.Series {
		date, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			continue
		}
		if date.Before(start) || date.After(end) {
			continue
		}
		bar := domain.PriceBar{
			Date:   date,
			Open:   parseFloat(fields["1. open"]),
			High:   parseFloat(fields["2. high"]),
			Low:    parseFloat(fields["3. low"]),
			Close:  parseFloat(fields["4. close"]),
			Volume: int64(parseFloat(fields["5. volume"])),
		}
		bar.AdjClose = bar.Close
		bars = append(bars, bar)
	}
	sort.Slice(bars, func(i, j int) bool { return bars[i].Date.Before(bars[j].Date) })

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store("provider_prices", cacheKey, bars, clientdata.TTLPrices); err != nil {
			c.log.Warn().Err(err).Msg("Failed to cache price series")
		}
	}
	return bars, nil
}

type globalQuoteResponse struct {
	Quote map[string]string `json:"Global Quote"`
}

// GetLatestPrice fetches the most recent quote. A short-lived cache keeps
// repeated lookups within one batch run from burning through the rate limit.
func (c *Client) GetLatestPrice(ctx context.Context, ticker string) (*domain.Quote, error) {
	if c.cacheRepo != nil {
		var cached domain.Quote
		if found, err := c.cacheRepo.GetIfFresh("current_prices", ticker, &cached); err == nil && found {
			return &cached, nil
		}
	}

	params := url.Values{}
	params.Set("function", "GLOBAL_QUOTE")
	params.Set("symbol", ticker)

	var resp globalQuoteResponse
	if err := c.http.GetJSON(ctx, c.endpoint(params), &resp); err != nil {
		return nil, fmt.Errorf("alphavantage quote for %s: %w", ticker, err)
	}

	price := parseFloat(resp.Quote["05. price"])
	if price <= 0 {
		return nil, fmt.Errorf("alphavantage returned no quote for %s", ticker)
	}

	asOf := time.Now()
	if day, err := time.Parse("2006-01-02", resp.Quote["07. latest trading day"]); err == nil {
		asOf = day
	}

	quote := &domain.Quote{
		Ticker: ticker,
		Price:  price,
		// Alpha Vantage quotes US listings in USD.
		Currency: domain.CurrencyUSD,
		AsOf:     asOf,
		Source:   c.Name(),
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store("current_prices", ticker, quote, clientdata.TTLCurrentPrice); err != nil {
			c.log.Warn().Err(err).Msg("Failed to cache quote")
		}
	}
	return quote, nil
}

type newsResponse struct {
	Feed []struct {
		Title         string `json:"title"`
		Summary       string `json:"summary"`
		Source        string `json:"source"`
		URL           string `json:"url"`
		TimePublished string `json:"time_published"`
	} `json:"feed"`
}

// GetNews fetches news published on or before asOf, cache-first.
func (c *Client) GetNews(ctx context.Context, ticker string, limit int, asOf time.Time) ([]domain.NewsArticle, error) {
	if limit <= 0 {
		limit = 20
	}

	cacheKey := fmt.Sprintf("%s:%s:%d", ticker, asOf.Format("20060102"), limit)
	if c.cacheRepo != nil {
		var cached []domain.NewsArticle
		if found, err := c.cacheRepo.GetIfFresh("provider_news", cacheKey, &cached); err == nil && found {
			c.log.Debug().Str("ticker", ticker).Msg("News cache hit")
			return cached, nil
		}
	}

	params := url.Values{}
	params.Set("function", "NEWS_SENTIMENT")
	params.Set("tickers", ticker)
	params.Set("time_to", asOf.UTC().Format("20060102T1504"))
	params.Set("limit", strconv.Itoa(limit))

	var resp newsResponse
	if err := c.http.GetJSON(ctx, c.endpoint(params), &resp); err != nil {
		return nil, fmt.Errorf("alphavantage news for %s: %w", ticker, err)
	}

	articles := make([]domain.NewsArticle, 0, len(resp.Feed))
	for _, item := range resp.Feed {
		published, err := time.Parse("20060102T150405", item.TimePublished)
		if err != nil {
			continue
		}
		articles = append(articles, domain.NewsArticle{
			Title:       item.Title,
			Summary:     item.Summary,
			Source:      item.Source,
			URL:         item.URL,
			PublishedAt: published,
		})
		if len(articles) >= limit {
			break
		}
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store("provider_news", cacheKey, articles, clientdata.TTLNews); err != nil {
			c.log.Warn().Err(err).Msg("Failed to cache news")
		}
	}
	return articles, nil
}

type incomeStatementResponse struct {
	AnnualReports []map[string]string `json:"annualReports"`
}

// GetFinancialStatements fetches annual statements, cache-first.
// Only the income statement is mapped; other statement types fall back to it.
func (c *Client) GetFinancialStatements(ctx context.Context, ticker, statementType string, limit int) ([]domain.FinancialStatement, error) {
	if limit <= 0 {
		limit = 4
	}

	cacheKey := fmt.Sprintf("%s:%s", ticker, statementType)
	if c.cacheRepo != nil {
		var cached []domain.FinancialStatement
		if found, err := c.cacheRepo.GetIfFresh("provider_statements", cacheKey, &cached); err == nil && found {
			return cached, nil
		}
	}

	params := url.Values{}
	params.Set("function", "INCOME_STATEMENT")
	params.Set("symbol", ticker)

	var resp incomeStatementResponse
	if err := c.http.GetJSON(ctx, c.endpoint(params), &resp); err != nil {
		return nil, fmt.Errorf("alphavantage statements for %s: %w", ticker, err)
	}

	statements := make([]domain.FinancialStatement, 0, limit)
	for _, report := range resp.AnnualReports {
		periodEnd, err := time.Parse("2006-01-02", report["fiscalDateEnding"])
		if err != nil {
			continue
		}
		items := make(map[string]float64, len(report))
		for k, v := range report {
			if k == "fiscalDateEnding" || k == "reportedCurrency" {
				continue
			}
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				items[k] = f
			}
		}
		statements = append(statements, domain.FinancialStatement{
			Ticker:        ticker,
			StatementType: "income",
			PeriodEnd:     periodEnd,
			Items:         items,
		})
		if len(statements) >= limit {
			break
		}
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store("provider_statements", cacheKey, statements, clientdata.TTLStatements); err != nil {
			c.log.Warn().Err(err).Msg("Failed to cache statements")
		}
	}
	return statements, nil
}

// GetAnalystRatings is not offered by Alpha Vantage.
func (c *Client) GetAnalystRatings(_ context.Context, _ string) ([]domain.AnalystRating, error) {
	return nil, providers.ErrNotSupported
}

type overviewResponse struct {
	Name      string `json:"Name"`
	Exchange  string `json:"Exchange"`
	Sector    string `json:"Sector"`
	Industry  string `json:"Industry"`
	Currency  string `json:"Currency"`
	AssetType string `json:"AssetType"`
}

// GetMetadata fetches the company overview, cache-first.
func (c *Client) GetMetadata(ctx context.Context, ticker string) (*domain.SecurityMetadata, error) {
	if c.cacheRepo != nil {
		var cached domain.SecurityMetadata
		if found, err := c.cacheRepo.GetIfFresh("provider_metadata", ticker, &cached); err == nil && found {
			return &cached, nil
		}
	}

	params := url.Values{}
	params.Set("function", "OVERVIEW")
	params.Set("symbol", ticker)

	var resp overviewResponse
	if err := c.http.GetJSON(ctx, c.endpoint(params), &resp); err != nil {
		return nil, fmt.Errorf("alphavantage overview for %s: %w", ticker, err)
	}
	if resp.Name == "" {
		return nil, fmt.Errorf("alphavantage returned no overview for %s", ticker)
	}

	instrument := domain.InstrumentEquity
	if resp.AssetType == "ETF" {
		instrument = domain.InstrumentETF
	}

	meta := &domain.SecurityMetadata{
		Ticker:         ticker,
		Name:           resp.Name,
		Market:         resp.Exchange,
		Sector:         resp.Sector,
		Industry:       resp.Industry,
		Currency:       domain.Currency(resp.Currency),
		InstrumentType: instrument,
	}

	if c.cacheRepo != nil {
		if err := c.cacheRepo.Store("provider_metadata", ticker, meta, clientdata.TTLMetadata); err != nil {
			c.log.Warn().Err(err).Msg("Failed to cache metadata")
		}
	}
	return meta, nil
}

func parseFloat(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
