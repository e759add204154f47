package signal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/pelorusfin/pelorus/internal/allocation"
	"github.com/pelorusfin/pelorus/internal/domain"
)

const dateLayout = "2006-01-02"

// Repository persists signals, daily closes and allocation runs. Signals are
// stored as JSON payloads with a few indexed columns for querying; the daily
// price table doubles as the local PriceStore consulted by the Creator.
type Repository struct {
	db  *sql.DB
	log zerolog.Logger
}

func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:  db,
		log: log.With().Str("repo", "signal").Logger(),
	}
}

// InitSchema creates the signal tables if they do not exist.
func (r *Repository) InitSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS signals (
			id TEXT PRIMARY KEY,
			ticker TEXT NOT NULL,
			recommendation TEXT NOT NULL,
			final_score REAL NOT NULL,
			confidence REAL NOT NULL,
			analysis_date TEXT NOT NULL,
			generated_at TIMESTAMP NOT NULL,
			payload TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_ticker ON signals(ticker, analysis_date)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_date ON signals(analysis_date)`,
		`CREATE TABLE IF NOT EXISTS daily_prices (
			ticker TEXT NOT NULL,
			date TEXT NOT NULL,
			close REAL NOT NULL,
			currency TEXT NOT NULL DEFAULT 'EUR',
			PRIMARY KEY (ticker, date)
		)`,
		`CREATE TABLE IF NOT EXISTS allocations (
			id TEXT PRIMARY KEY,
			generated_at TIMESTAMP NOT NULL,
			payload TEXT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := r.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create signal schema: %w", err)
		}
	}
	return nil
}

// SaveSignal upserts one signal by id.
func (r *Repository) SaveSignal(sig *domain.InvestmentSignal) error {
	payload, err := json.Marshal(sig)
	if err != nil {
		return fmt.Errorf("failed to marshal signal %s: %w", sig.Ticker, err)
	}
	_, err = r.db.Exec(`
		INSERT INTO signals (id, ticker, recommendation, final_score, confidence, analysis_date, generated_at, payload)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			recommendation = excluded.recommendation,
			final_score = excluded.final_score,
			confidence = excluded.confidence,
			analysis_date = excluded.analysis_date,
			generated_at = excluded.generated_at,
			payload = excluded.payload`,
		sig.ID, sig.Ticker, string(sig.Recommendation), sig.FinalScore, sig.Confidence,
		sig.AnalysisDate.Format(dateLayout), sig.GeneratedAt, string(payload))
	if err != nil {
		return fmt.Errorf("failed to save signal %s: %w", sig.Ticker, err)
	}
	return nil
}

// SignalsByDate returns all signals for one analysis date, strongest first.
func (r *Repository) SignalsByDate(date time.Time) ([]*domain.InvestmentSignal, error) {
	return r.querySignals(`
		SELECT payload FROM signals
		WHERE analysis_date = ?
		ORDER BY final_score DESC, ticker ASC`, date.Format(dateLayout))
}

// SignalsByTicker returns the most recent signals for one ticker.
func (r *Repository) SignalsByTicker(ticker string, limit int) ([]*domain.InvestmentSignal, error) {
	if limit <= 0 {
		limit = 30
	}
	return r.querySignals(`
		SELECT payload FROM signals
		WHERE ticker = ?
		ORDER BY analysis_date DESC, generated_at DESC
		LIMIT ?`, ticker, limit)
}

// LatestSignals returns the newest signal per ticker from the most recent
// analysis date present in the store.
func (r *Repository) LatestSignals() ([]*domain.InvestmentSignal, error) {
	return r.querySignals(`
		SELECT payload FROM signals
		WHERE analysis_date = (SELECT MAX(analysis_date) FROM signals)
		ORDER BY final_score DESC, ticker ASC`)
}

func (r *Repository) querySignals(query string, args ...interface{}) ([]*domain.InvestmentSignal, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()

	var signals []*domain.InvestmentSignal
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan signal row: %w", err)
		}
		var sig domain.InvestmentSignal
		if err := json.Unmarshal([]byte(payload), &sig); err != nil {
			// A corrupt row should not hide the rest.
			r.log.Warn().Err(err).Msg("skipping unreadable signal payload")
			continue
		}
		signals = append(signals, &sig)
	}
	return signals, rows.Err()
}

// SavePrices upserts daily closes for one ticker.
func (r *Repository) SavePrices(ticker string, bars []domain.PriceBar, currency domain.Currency) error {
	if len(bars) == 0 {
		return nil
	}
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin price transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO daily_prices (ticker, date, close, currency)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(ticker, date) DO UPDATE SET close = excluded.close, currency = excluded.currency`)
	if err != nil {
		return fmt.Errorf("failed to prepare price upsert: %w", err)
	}
	defer stmt.Close()

	for _, bar := range bars {
		if _, err := stmt.Exec(ticker, bar.Date.Format(dateLayout), bar.Close, string(currency)); err != nil {
			return fmt.Errorf("failed to upsert price for %s: %w", ticker, err)
		}
	}
	return tx.Commit()
}

// LatestPrice returns the most recent stored close for a ticker, or nil when
// none is stored.
func (r *Repository) LatestPrice(ticker string) (*domain.Quote, error) {
	return r.scanQuote(ticker, `
		SELECT date, close, currency FROM daily_prices
		WHERE ticker = ?
		ORDER BY date DESC LIMIT 1`, ticker)
}

// PriceOn returns the close for the exact date when present, otherwise the
// nearest prior close. Returns nil when nothing at or before the date exists.
func (r *Repository) PriceOn(ticker string, date time.Time) (*domain.Quote, error) {
	return r.scanQuote(ticker, `
		SELECT date, close, currency FROM daily_prices
		WHERE ticker = ? AND date <= ?
		ORDER BY date DESC LIMIT 1`, ticker, date.Format(dateLayout))
}

func (r *Repository) scanQuote(ticker, query string, args ...interface{}) (*domain.Quote, error) {
	var dateStr, currency string
	var close float64
	err := r.db.QueryRow(query, args...).Scan(&dateStr, &close, &currency)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query price for %s: %w", ticker, err)
	}
	asOf, err := time.Parse(dateLayout, dateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse stored price date %q: %w", dateStr, err)
	}
	return &domain.Quote{
		Ticker:   ticker,
		Price:    close,
		Currency: domain.Currency(currency),
		AsOf:     asOf,
		Source:   "store",
	}, nil
}

// SaveAllocation stores one allocation run.
func (r *Repository) SaveAllocation(alloc *allocation.PortfolioAllocation) error {
	payload, err := json.Marshal(alloc)
	if err != nil {
		return fmt.Errorf("failed to marshal allocation: %w", err)
	}
	_, err = r.db.Exec(`
		INSERT INTO allocations (id, generated_at, payload) VALUES (?, ?, ?)`,
		uuid.NewString(), alloc.GeneratedAt, string(payload))
	if err != nil {
		return fmt.Errorf("failed to save allocation: %w", err)
	}
	return nil
}

// LatestAllocation returns the most recent allocation run, or nil when no
// run has been stored yet.
func (r *Repository) LatestAllocation() (*allocation.PortfolioAllocation, error) {
	var payload string
	err := r.db.QueryRow(`
		SELECT payload FROM allocations
		ORDER BY generated_at DESC LIMIT 1`).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest allocation: %w", err)
	}
	var alloc allocation.PortfolioAllocation
	if err := json.Unmarshal([]byte(payload), &alloc); err != nil {
		return nil, fmt.Errorf("failed to unmarshal allocation payload: %w", err)
	}
	return &alloc, nil
}
