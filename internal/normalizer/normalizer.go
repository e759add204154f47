// Package normalizer converts heterogeneous analysis outputs into the
// canonical UnifiedAnalysisResult. Two producers exist: the LLM pipeline
// (free-form payloads) and the deterministic rule-based analyzer. Both paths
// are pure functions, and neither is ever the reason an analysis run aborts:
// malformed payloads degrade to empty components with a diagnostics entry.
package normalizer

import (
	"fmt"
	"strings"

	"github.com/pelorusfin/pelorus/internal/domain"
	"github.com/pelorusfin/pelorus/pkg/formulas"
)

// neutralScore is the default for any missing score, confidence or final
// score: never null-propagate into downstream scoring.
const neutralScore = 50.0

// LLMOutputs carries the raw per-stage payloads from the LLM pipeline.
// Each field may be a map, a JSON string/bytes, or text wrapping a fenced
// JSON block.
type LLMOutputs struct {
	Technical   interface{}
	Fundamental interface{}
	Sentiment   interface{}
	// Synthesis is the joint final stage. Its component scores are
	// authoritative and overwrite whatever the per-component payloads said.
	Synthesis interface{}
}

// FromLLMOutputs normalizes raw LLM stage outputs into the unified shape.
func FromLLMOutputs(ticker string, outputs LLMOutputs) *domain.UnifiedAnalysisResult {
	result := &domain.UnifiedAnalysisResult{Ticker: ticker}

	result.Technical = componentFromPayload("technical", outputs.Technical, result)
	result.Fundamental = componentFromPayload("fundamental", outputs.Fundamental, result)
	result.Sentiment = componentFromPayload("sentiment", outputs.Sentiment, result)

	synthesis, err := decodePayload(outputs.Synthesis)
	if err != nil {
		result.Diagnostics = append(result.Diagnostics, fmt.Sprintf("synthesis: %v", err))
		synthesis = map[string]interface{}{}
	}

	// Synthesis-stage component scores are the source of truth. Write them
	// back onto each component so downstream consumers see one number per
	// component regardless of origin.
	result.Technical.Score = formulas.ClampScore(getFloat(synthesis, neutralScore, "technical_score"))
	result.Fundamental.Score = formulas.ClampScore(getFloat(synthesis, neutralScore, "fundamental_score"))
	result.Sentiment.Score = formulas.ClampScore(getFloat(synthesis, neutralScore, "sentiment_score"))

	result.FinalScore = formulas.ClampScore(getFloat(synthesis, neutralScore, "final_score", "overall_score"))
	result.Confidence = formulas.ClampScore(getFloat(synthesis, neutralScore, "confidence"))
	result.Recommendation = ParseRecommendation(getString(synthesis, "recommendation", "action"))
	result.KeyReasons = getStringSlice(synthesis, "key_reasons")
	result.Rationale = getString(synthesis, "rationale", "summary")
	result.Caveats = getStringSlice(synthesis, "caveats")
	result.TimeHorizon = getString(synthesis, "time_horizon")
	result.ExpectedReturn = expectedReturnFromPayload(synthesis)

	if level := getString(synthesis, "risk_level", "risk"); level != "" {
		result.Risk = &domain.RiskAssessment{Level: ParseRiskLevel(level)}
	}

	return result
}

// RuleBasedSynthesis is the top-level portion of the rule-based analyzer's
// output, already structured.
type RuleBasedSynthesis struct {
	FinalScore     float64
	Recommendation domain.Recommendation
	Confidence     float64
	Risk           *domain.RiskAssessment
	KeyReasons     []string
	Rationale      string
	Caveats        []string
	ExpectedReturn *domain.ExpectedReturnRange
	TimeHorizon    string
}

// FromRuleBased normalizes the deterministic analyzer's output. Unlike the
// LLM path the component scores are kept as produced (only clamped); risk is
// pulled through without reinterpretation when already provided, otherwise
// left unset for later computation.
func FromRuleBased(ticker string, technical, fundamental, sentiment domain.ComponentResult, synthesis RuleBasedSynthesis) *domain.UnifiedAnalysisResult {
	technical.Score = formulas.ClampScore(technical.Score)
	fundamental.Score = formulas.ClampScore(fundamental.Score)
	sentiment.Score = formulas.ClampScore(sentiment.Score)

	recommendation := synthesis.Recommendation
	if recommendation == "" {
		recommendation = domain.RecommendationHold
	}

	return &domain.UnifiedAnalysisResult{
		Ticker:         ticker,
		Technical:      technical,
		Fundamental:    fundamental,
		Sentiment:      sentiment,
		FinalScore:     formulas.ClampScore(synthesis.FinalScore),
		Recommendation: recommendation,
		Confidence:     formulas.ClampScore(synthesis.Confidence),
		Risk:           synthesis.Risk,
		KeyReasons:     synthesis.KeyReasons,
		Rationale:      synthesis.Rationale,
		Caveats:        synthesis.Caveats,
		ExpectedReturn: synthesis.ExpectedReturn,
		TimeHorizon:    synthesis.TimeHorizon,
	}
}

func componentFromPayload(name string, raw interface{}, result *domain.UnifiedAnalysisResult) domain.ComponentResult {
	payload, err := decodePayload(raw)
	if err != nil {
		result.Diagnostics = append(result.Diagnostics, fmt.Sprintf("%s: %v", name, err))
		return domain.ComponentResult{Score: neutralScore}
	}

	component := domain.ComponentResult{
		Score:      formulas.ClampScore(getFloat(payload, neutralScore, "score")),
		Reasoning:  getString(payload, "reasoning", "analysis"),
		Indicators: payload,
	}
	if _, ok := payload["confidence"]; ok {
		confidence := formulas.ClampScore(getFloat(payload, neutralScore, "confidence"))
		component.Confidence = &confidence
	}
	return component
}

func expectedReturnFromPayload(synthesis map[string]interface{}) *domain.ExpectedReturnRange {
	if nested := getMap(synthesis, "expected_return"); nested != nil {
		return &domain.ExpectedReturnRange{
			Low:  getFloat(nested, 0, "low", "min"),
			High: getFloat(nested, 0, "high", "max"),
		}
	}
	_, hasLow := synthesis["expected_return_low"]
	_, hasHigh := synthesis["expected_return_high"]
	if hasLow || hasHigh {
		return &domain.ExpectedReturnRange{
			Low:  getFloat(synthesis, 0, "expected_return_low"),
			High: getFloat(synthesis, 0, "expected_return_high"),
		}
	}
	return nil
}

// ParseRecommendation maps free-text recommendation levels onto the seven
// canonical values. Unknown text maps to hold.
func ParseRecommendation(s string) domain.Recommendation {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	normalized = strings.ReplaceAll(normalized, "-", "_")

	switch normalized {
	case "strong_sell":
		return domain.RecommendationStrongSell
	case "sell":
		return domain.RecommendationSell
	case "reduce", "moderate_sell", "underweight":
		return domain.RecommendationReduce
	case "hold", "neutral":
		return domain.RecommendationHold
	case "accumulate", "moderate_buy", "overweight":
		return domain.RecommendationAccumulate
	case "buy":
		return domain.RecommendationBuy
	case "strong_buy":
		return domain.RecommendationStrongBuy
	default:
		return domain.RecommendationHold
	}
}

// ParseRiskLevel maps free-text risk levels onto the canonical four,
// including the common "moderate" synonym for medium.
func ParseRiskLevel(s string) domain.RiskLevel {
	normalized := strings.ToLower(strings.TrimSpace(s))
	normalized = strings.ReplaceAll(normalized, " ", "_")
	normalized = strings.ReplaceAll(normalized, "-", "_")

	switch normalized {
	case "low":
		return domain.RiskLow
	case "medium", "moderate":
		return domain.RiskMedium
	case "high":
		return domain.RiskHigh
	case "very_high", "extreme":
		return domain.RiskVeryHigh
	default:
		return domain.RiskMedium
	}
}
