package analysis

import (
	"fmt"
	"math"

	"github.com/markcheno/go-talib"

	"github.com/pelorusfin/pelorus/internal/domain"
	"github.com/pelorusfin/pelorus/pkg/formulas"
)

const rsiPeriod = 14

// scoreTechnical derives a 0-100 technical score from the price series.
// Components: RSI positioning, moving-average trend, blended momentum.
// Too little data yields the neutral score with low confidence rather
// than an error.
func scoreTechnical(prices []domain.PriceBar) domain.ComponentResult {
	closes := make([]float64, len(prices))
	bars := make([]formulas.Bar, len(prices))
	for i, p := range prices {
		closes[i] = p.Close
		bars[i] = formulas.Bar{High: p.High, Low: p.Low, Close: p.Close, Volume: p.Volume}
	}

	if len(closes) < rsiPeriod+1 {
		conf := 20.0
		return domain.ComponentResult{
			Score:      50,
			Reasoning:  fmt.Sprintf("only %d price bars, not enough for technical indicators", len(closes)),
			Confidence: &conf,
		}
	}

	score := 50.0
	indicators := make(map[string]interface{})
	var reasons []string

	rsi := lastValid(talib.Rsi(closes, rsiPeriod))
	if rsi != nil {
		indicators["rsi_14"] = round2(*rsi)
		switch {
		case *rsi < 30:
			score += 10
			reasons = append(reasons, fmt.Sprintf("RSI %.0f oversold", *rsi))
		case *rsi > 70:
			score -= 10
			reasons = append(reasons, fmt.Sprintf("RSI %.0f overbought", *rsi))
		}
	}

	current := closes[len(closes)-1]
	sma20 := lastValid(talib.Sma(closes, 20))
	sma50 := lastValid(talib.Sma(closes, 50))
	if sma20 != nil {
		indicators["sma_20"] = round2(*sma20)
		if current > *sma20 {
			score += 10
			reasons = append(reasons, "price above 20-day average")
		} else {
			score -= 5
		}
	}
	if sma20 != nil && sma50 != nil {
		indicators["sma_50"] = round2(*sma50)
		if *sma20 > *sma50 {
			score += 10
			reasons = append(reasons, "20-day average above 50-day, uptrend intact")
		} else {
			score -= 10
			reasons = append(reasons, "20-day average below 50-day, trend weak")
		}
	}

	if momentum := blendedMomentum(closes); momentum != nil {
		indicators["momentum_pct"] = round2(*momentum * 100)
		score += formulas.Clamp(*momentum*200, -20, 20)
		if *momentum > 0.05 {
			reasons = append(reasons, fmt.Sprintf("positive momentum %.1f%%", *momentum*100))
		} else if *momentum < -0.05 {
			reasons = append(reasons, fmt.Sprintf("negative momentum %.1f%%", *momentum*100))
		}
	}

	if atr := formulas.ATRPercent(bars, rsiPeriod); atr != nil {
		indicators["atr_pct"] = round2(*atr)
	}

	if vol := realizedVolatility(closes); vol != nil {
		indicators["realized_vol_pct"] = round2(*vol)
	}

	conf := confidenceForSeries(len(closes))
	return domain.ComponentResult{
		Score:      formulas.ClampScore(score),
		Indicators: indicators,
		Reasoning:  joinReasons(reasons, "no notable technical pattern"),
		Confidence: &conf,
	}
}

// realizedVolatility annualizes the standard deviation of daily returns
// over the series, in percent. Returns nil below two usable returns.
func realizedVolatility(closes []float64) *float64 {
	returns := formulas.DailyReturns(closes)
	if len(returns) < 2 {
		return nil
	}
	vol := formulas.StdDev(returns) * math.Sqrt(252) * 100
	return &vol
}

// blendedMomentum mixes 30-day and 90-day price performance 60/40. Returns
// nil below 30 bars.
func blendedMomentum(closes []float64) *float64 {
	if len(closes) < 30 {
		return nil
	}
	current := closes[len(closes)-1]

	var m30 float64
	if p := closes[len(closes)-30]; p > 0 {
		m30 = (current - p) / p
	}
	if len(closes) < 90 {
		return &m30
	}
	var m90 float64
	if p := closes[len(closes)-90]; p > 0 {
		m90 = (current - p) / p
	}
	blended := m30*0.6 + m90*0.4
	return &blended
}

func confidenceForSeries(n int) float64 {
	switch {
	case n >= 90:
		return 85
	case n >= 50:
		return 70
	case n >= 30:
		return 55
	default:
		return 40
	}
}

// lastValid returns the final non-NaN value of a talib output series.
func lastValid(series []float64) *float64 {
	for i := len(series) - 1; i >= 0; i-- {
		if series[i] == series[i] {
			v := series[i]
			return &v
		}
	}
	return nil
}
