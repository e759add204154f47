package normalizer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pelorusfin/pelorus/internal/domain"
)

func TestFromLLMOutputsFencedJSON(t *testing.T) {
	synthesis := "Here is my assessment:\n```json\n{\"technical_score\": 72, \"fundamental_score\": 64," +
		" \"sentiment_score\": 55, \"final_score\": 66, \"recommendation\": \"buy\", \"confidence\": 80," +
		" \"key_reasons\": [\"strong momentum\"], \"expected_return\": {\"low\": 5, \"high\": 15}}\n```"

	result := FromLLMOutputs("ASML", LLMOutputs{
		Technical: `{"score": 12, "reasoning": "uptrend intact"}`,
		Synthesis: synthesis,
	})

	// Synthesis scores are authoritative and overwrite the component's own.
	assert.Equal(t, 72.0, result.Technical.Score)
	assert.Equal(t, 64.0, result.Fundamental.Score)
	assert.Equal(t, 55.0, result.Sentiment.Score)
	assert.Equal(t, 66.0, result.FinalScore)
	assert.Equal(t, domain.RecommendationBuy, result.Recommendation)
	assert.Equal(t, 80.0, result.Confidence)
	assert.Equal(t, []string{"strong momentum"}, result.KeyReasons)
	assert.Equal(t, "uptrend intact", result.Technical.Reasoning)

	require.NotNil(t, result.ExpectedReturn)
	assert.Equal(t, 5.0, result.ExpectedReturn.Low)
	assert.Equal(t, 15.0, result.ExpectedReturn.High)
}

func TestFromLLMOutputsMalformedComponentDegrades(t *testing.T) {
	result := FromLLMOutputs("SAP", LLMOutputs{
		Technical:   "not json at all {",
		Fundamental: map[string]interface{}{"score": 70.0},
		Synthesis:   map[string]interface{}{"fundamental_score": 70.0, "final_score": 60.0},
	})

	// Malformed technical payload becomes a neutral component, the run
	// continues, and the failure is kept as a diagnostic.
	assert.Equal(t, 50.0, result.Technical.Score)
	assert.Equal(t, 70.0, result.Fundamental.Score)
	assert.Equal(t, 60.0, result.FinalScore)
	require.Len(t, result.Diagnostics, 1)
	assert.Contains(t, result.Diagnostics[0], "technical")
}

func TestFromLLMOutputsClampsOutOfRangeScores(t *testing.T) {
	result := FromLLMOutputs("AIR", LLMOutputs{
		Synthesis: map[string]interface{}{
			"technical_score":   -15.0,
			"fundamental_score": 140.0,
			"sentiment_score":   101.0,
			"final_score":       -1.0,
			"confidence":        250.0,
		},
	})

	assert.Equal(t, 0.0, result.Technical.Score)
	assert.Equal(t, 100.0, result.Fundamental.Score)
	assert.Equal(t, 100.0, result.Sentiment.Score)
	assert.Equal(t, 0.0, result.FinalScore)
	assert.Equal(t, 100.0, result.Confidence)
}

func TestFromLLMOutputsMissingScoresDefaultToNeutral(t *testing.T) {
	result := FromLLMOutputs("AIR", LLMOutputs{})

	assert.Equal(t, 50.0, result.Technical.Score)
	assert.Equal(t, 50.0, result.Fundamental.Score)
	assert.Equal(t, 50.0, result.Sentiment.Score)
	assert.Equal(t, 50.0, result.FinalScore)
	assert.Equal(t, 50.0, result.Confidence)
	assert.Equal(t, domain.RecommendationHold, result.Recommendation)
	assert.Nil(t, result.Risk)
}

func TestFromLLMOutputsModerateRiskMapsToMedium(t *testing.T) {
	result := FromLLMOutputs("AIR", LLMOutputs{
		Synthesis: map[string]interface{}{"risk_level": "Moderate"},
	})

	require.NotNil(t, result.Risk)
	assert.Equal(t, domain.RiskMedium, result.Risk.Level)
}

func TestFromRuleBasedPullsRiskThrough(t *testing.T) {
	risk := &domain.RiskAssessment{Level: domain.RiskHigh, Flags: []string{"AIR: volatile"}}

	result := FromRuleBased("AIR",
		domain.ComponentResult{Score: 110},
		domain.ComponentResult{Score: -5},
		domain.ComponentResult{Score: 60},
		RuleBasedSynthesis{
			FinalScore:     55,
			Recommendation: domain.RecommendationAccumulate,
			Confidence:     65,
			Risk:           risk,
		})

	assert.Equal(t, 100.0, result.Technical.Score)
	assert.Equal(t, 0.0, result.Fundamental.Score)
	assert.Equal(t, 60.0, result.Sentiment.Score)
	assert.Same(t, risk, result.Risk)
	assert.Equal(t, domain.RecommendationAccumulate, result.Recommendation)
}

func TestFromRuleBasedWithoutRiskLeavesUnset(t *testing.T) {
	result := FromRuleBased("SAP",
		domain.ComponentResult{Score: 50},
		domain.ComponentResult{Score: 50},
		domain.ComponentResult{Score: 50},
		RuleBasedSynthesis{FinalScore: 50, Confidence: 50})

	assert.Nil(t, result.Risk)
	assert.Equal(t, domain.RecommendationHold, result.Recommendation)
}

func TestParseRecommendation(t *testing.T) {
	tests := []struct {
		in   string
		want domain.Recommendation
	}{
		{"Strong Buy", domain.RecommendationStrongBuy},
		{"strong-sell", domain.RecommendationStrongSell},
		{"moderate buy", domain.RecommendationAccumulate},
		{"NEUTRAL", domain.RecommendationHold},
		{"underweight", domain.RecommendationReduce},
		{"garbage", domain.RecommendationHold},
		{"", domain.RecommendationHold},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseRecommendation(tt.in), "input %q", tt.in)
	}
}

func TestDecodePayloadVariants(t *testing.T) {
	t.Run("already parsed map", func(t *testing.T) {
		m, err := decodePayload(map[string]interface{}{"score": 1.0})
		require.NoError(t, err)
		assert.Equal(t, 1.0, m["score"])
	})

	t.Run("raw json string", func(t *testing.T) {
		m, err := decodePayload(`{"score": 2}`)
		require.NoError(t, err)
		assert.Equal(t, 2.0, m["score"])
	})

	t.Run("fenced block without language tag", func(t *testing.T) {
		m, err := decodePayload("```\n{\"score\": 3}\n```")
		require.NoError(t, err)
		assert.Equal(t, 3.0, m["score"])
	})

	t.Run("nil is empty, not malformed", func(t *testing.T) {
		m, err := decodePayload(nil)
		require.NoError(t, err)
		assert.Empty(t, m)
	})

	t.Run("unsupported type errors", func(t *testing.T) {
		_, err := decodePayload(42)
		assert.Error(t, err)
	})
}
