package clientdata

import "time"

// TTL constants for different data types.
// These are added to time.Now() when storing to calculate expires_at.
const (
	// Very stable data (rarely changes)
	TTLMetadata = 30 * 24 * time.Hour // Static security info (name, sector, market)

	// Quarterly financial data (updates with filings)
	TTLStatements = 45 * 24 * time.Hour

	// Daily data
	TTLPrices  = 24 * time.Hour // Daily price series for a lookback window
	TTLRatings = 24 * time.Hour // Analyst consensus snapshots
	TTLNews    = 6 * time.Hour

	// Short-lived data
	TTLCurrentPrice = 10 * time.Minute // Current price cache for batch runs
)
