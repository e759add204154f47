// Package analysis is the deterministic, rule-based analysis producer. It
// scores each ticker's technical, fundamental and sentiment picture from the
// assembled point-in-time data and synthesizes a final recommendation. The
// same inputs always produce the same outputs.
package analysis

import (
	"math"
	"strings"

	"github.com/rs/zerolog"

	"github.com/pelorusfin/pelorus/internal/assembler"
	"github.com/pelorusfin/pelorus/internal/domain"
	"github.com/pelorusfin/pelorus/internal/normalizer"
	"github.com/pelorusfin/pelorus/pkg/formulas"
)

// Component weights for the final score.
const (
	technicalWeight   = 0.40
	fundamentalWeight = 0.35
	sentimentWeight   = 0.25
)

type Analyzer struct {
	log zerolog.Logger
}

func NewAnalyzer(log zerolog.Logger) *Analyzer {
	return &Analyzer{log: log.With().Str("component", "analyzer").Logger()}
}

// Analyze scores the assembled context and returns the three component
// results plus the synthesized verdict, ready for normalization.
func (a *Analyzer) Analyze(mc *assembler.Context) (domain.ComponentResult, domain.ComponentResult, domain.ComponentResult, normalizer.RuleBasedSynthesis) {
	technical := scoreTechnical(mc.Prices)
	fundamental := scoreFundamental(mc.Statements)
	sentiment := scoreSentiment(mc.News, mc.Rating, mc.AsOf)

	finalScore := formulas.ClampScore(
		technical.Score*technicalWeight +
			fundamental.Score*fundamentalWeight +
			sentiment.Score*sentimentWeight)

	confidence := synthesisConfidence(technical, fundamental, sentiment, mc)

	synthesis := normalizer.RuleBasedSynthesis{
		FinalScore:     finalScore,
		Recommendation: recommendationForScore(finalScore),
		Confidence:     confidence,
		KeyReasons:     keyReasons(technical, fundamental, sentiment),
		Rationale:      rationale(mc.Ticker, finalScore),
		ExpectedReturn: expectedReturn(finalScore, technical),
		TimeHorizon:    "3-6 months",
	}
	for _, w := range mc.Warnings {
		synthesis.Caveats = append(synthesis.Caveats, w)
	}

	a.log.Debug().Str("ticker", mc.Ticker).
		Float64("final_score", finalScore).
		Str("recommendation", string(synthesis.Recommendation)).
		Msg("rule-based analysis complete")

	return technical, fundamental, sentiment, synthesis
}

// recommendationForScore maps the weighted score onto the seven-level scale.
func recommendationForScore(score float64) domain.Recommendation {
	switch {
	case score >= 80:
		return domain.RecommendationStrongBuy
	case score >= 68:
		return domain.RecommendationBuy
	case score >= 58:
		return domain.RecommendationAccumulate
	case score >= 44:
		return domain.RecommendationHold
	case score >= 35:
		return domain.RecommendationReduce
	case score >= 25:
		return domain.RecommendationSell
	default:
		return domain.RecommendationStrongSell
	}
}

// synthesisConfidence averages the per-component confidences and discounts
// for missing data and assembly warnings.
func synthesisConfidence(technical, fundamental, sentiment domain.ComponentResult, mc *assembler.Context) float64 {
	confidence := 0.0
	parts := 0
	for _, c := range []*float64{technical.Confidence, fundamental.Confidence, sentiment.Confidence} {
		if c != nil {
			confidence += *c
			parts++
		}
	}
	if parts == 0 {
		return 30
	}
	confidence /= float64(parts)
	if !mc.DataAvailable {
		confidence -= 20
	}
	confidence -= 5 * float64(len(mc.Warnings))
	return formulas.Clamp(confidence, 10, 95)
}

// expectedReturn centers the range on the score's distance from neutral and
// widens it with observed volatility.
func expectedReturn(finalScore float64, technical domain.ComponentResult) *domain.ExpectedReturnRange {
	mid := (finalScore - 50) / 5 // score 75 -> +5% midpoint

	spread := 4.0
	if atr, ok := technical.Indicators["atr_pct"].(float64); ok {
		spread = math.Max(2, atr*2)
	}
	return &domain.ExpectedReturnRange{
		Low:  round2(mid - spread),
		High: round2(mid + spread),
	}
}

func keyReasons(components ...domain.ComponentResult) []string {
	var reasons []string
	for _, c := range components {
		if c.Reasoning == "" {
			continue
		}
		for _, part := range strings.Split(c.Reasoning, "; ") {
			if part != "" {
				reasons = append(reasons, part)
			}
		}
	}
	if len(reasons) > 5 {
		reasons = reasons[:5]
	}
	return reasons
}

func rationale(ticker string, finalScore float64) string {
	switch {
	case finalScore >= 68:
		return ticker + " shows a favorable combined technical, fundamental and sentiment picture"
	case finalScore < 44:
		return ticker + " shows a weak combined picture across the analysis components"
	default:
		return ticker + " shows a mixed picture with no dominant direction"
	}
}

func joinReasons(reasons []string, fallback string) string {
	if len(reasons) == 0 {
		return fallback
	}
	return strings.Join(reasons, "; ")
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
