// Package formulas provides financial calculation functions shared across
// the risk and allocation modules.
package formulas

import (
	"math"

	"github.com/markcheno/go-talib"
)

// DefaultATRPeriod is the standard Average True Range lookback.
const DefaultATRPeriod = 14

// ATRPercent calculates the Average True Range as a percentage of the last
// close. Returns nil when there is not enough data for the requested period.
//
// ATR% is the volatility input to risk assessment: <1% is calm, >5% is
// very volatile for a daily series.
func ATRPercent(bars []Bar, period int) *float64 {
	if period <= 0 {
		period = DefaultATRPeriod
	}
	if len(bars) <= period {
		return nil
	}

	high := make([]float64, len(bars))
	low := make([]float64, len(bars))
	closes := make([]float64, len(bars))
	for i, b := range bars {
		high[i] = b.High
		low[i] = b.Low
		closes[i] = b.Close
	}

	atr := talib.Atr(high, low, closes, period)
	last := atr[len(atr)-1]
	lastClose := closes[len(closes)-1]
	if math.IsNaN(last) || lastClose <= 0 {
		return nil
	}

	pct := last / lastClose * 100.0
	return &pct
}

// Bar is the minimal OHLC shape the formulas need. Defined here so the
// package has no dependency on the domain layer.
type Bar struct {
	High   float64
	Low    float64
	Close  float64
	Volume int64
}

// AverageDailyValue estimates the average daily traded value (volume x close)
// over the given bars. Returns 0 for an empty series.
func AverageDailyValue(bars []Bar) float64 {
	if len(bars) == 0 {
		return 0
	}
	values := make([]float64, len(bars))
	for i, b := range bars {
		values[i] = float64(b.Volume) * b.Close
	}
	return Mean(values)
}
