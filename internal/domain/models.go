// Package domain provides core domain models and types.
package domain

import "time"

// Currency represents a currency code
type Currency string

const (
	CurrencyEUR Currency = "EUR"
	CurrencyUSD Currency = "USD"
	CurrencyGBP Currency = "GBP"
)

// InstrumentType represents the type of financial instrument
type InstrumentType string

const (
	InstrumentEquity  InstrumentType = "EQUITY"
	InstrumentETF     InstrumentType = "ETF"
	InstrumentUnknown InstrumentType = "UNKNOWN"
)

// PriceBar represents a single day's OHLCV price data
type PriceBar struct {
	Date     time.Time `json:"date"`
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	AdjClose float64   `json:"adj_close"`
	Volume   int64     `json:"volume"`
}

// Quote holds a latest-price snapshot from a price source
type Quote struct {
	Ticker   string    `json:"ticker"`
	Price    float64   `json:"price"`
	Currency Currency  `json:"currency"`
	AsOf     time.Time `json:"as_of"`
	Source   string    `json:"source,omitempty"`
}

// NewsArticle represents a single news item for a ticker
type NewsArticle struct {
	Title       string    `json:"title"`
	Summary     string    `json:"summary,omitempty"`
	Source      string    `json:"source,omitempty"`
	URL         string    `json:"url,omitempty"`
	PublishedAt time.Time `json:"published_at"`
}

// FinancialStatement represents one reported financial statement period.
// Items is a flat metric map (e.g. "totalRevenue", "netIncome") as reported
// by the provider - no normalization of line-item names is attempted here.
type FinancialStatement struct {
	Ticker        string             `json:"ticker"`
	StatementType string             `json:"statement_type"` // income, balance, cashflow
	PeriodEnd     time.Time          `json:"period_end"`
	Items         map[string]float64 `json:"items"`
}

// AnalystRating represents a single analyst consensus snapshot
type AnalystRating struct {
	Ticker      string    `json:"ticker"`
	Rating      string    `json:"rating"` // e.g. "buy", "hold"
	TargetPrice float64   `json:"target_price,omitempty"`
	StrongBuy   int       `json:"strong_buy"`
	Buy         int       `json:"buy"`
	Hold        int       `json:"hold"`
	Sell        int       `json:"sell"`
	StrongSell  int       `json:"strong_sell"`
	Date        time.Time `json:"date"`
}

// SecurityMetadata holds static descriptive data for a security
type SecurityMetadata struct {
	Ticker         string         `json:"ticker"`
	Name           string         `json:"name"`
	Market         string         `json:"market"` // exchange / market identifier
	Sector         string         `json:"sector"`
	Industry       string         `json:"industry,omitempty"`
	Currency       Currency       `json:"currency"`
	InstrumentType InstrumentType `json:"instrument_type"`
}

// Position represents an existing portfolio position
type Position struct {
	Ticker       string  `json:"ticker"`
	Quantity     float64 `json:"quantity"`
	AverageCost  float64 `json:"average_cost"`
	CurrentValue float64 `json:"current_value"` // market value in EUR
	Sector       string  `json:"sector,omitempty"`
	Market       string  `json:"market,omitempty"`
}

// PortfolioContext carries the current portfolio state needed by risk and
// allocation calculations. It is assembled by the caller and treated as
// read-only by the pipeline.
type PortfolioContext struct {
	Positions []Position `json:"positions"`
}

// TotalValue returns the summed market value of all positions in EUR.
func (pc PortfolioContext) TotalValue() float64 {
	total := 0.0
	for _, p := range pc.Positions {
		total += p.CurrentValue
	}
	return total
}

// PositionValue returns the market value held in a single ticker (0 if none).
func (pc PortfolioContext) PositionValue(ticker string) float64 {
	total := 0.0
	for _, p := range pc.Positions {
		if p.Ticker == ticker {
			total += p.CurrentValue
		}
	}
	return total
}

// SectorValue returns the summed market value held in a sector.
func (pc PortfolioContext) SectorValue(sector string) float64 {
	total := 0.0
	for _, p := range pc.Positions {
		if p.Sector == sector {
			total += p.CurrentValue
		}
	}
	return total
}
