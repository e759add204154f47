package analysis

import (
	"fmt"
	"strings"
	"time"

	"github.com/pelorusfin/pelorus/internal/domain"
	"github.com/pelorusfin/pelorus/pkg/formulas"
)

var positiveWords = []string{
	"beat", "beats", "upgrade", "upgraded", "raises", "record", "strong",
	"surge", "growth", "outperform", "profit", "wins", "expands",
}

var negativeWords = []string{
	"miss", "misses", "downgrade", "downgraded", "cuts", "weak", "falls",
	"lawsuit", "probe", "recall", "layoffs", "warning", "loss", "underperform",
}

// scoreSentiment derives a 0-100 sentiment score from headline keyword tone
// (recency-weighted, half weight beyond a week old) and the analyst
// consensus snapshot. News tone weighs 60%, analyst consensus 40%; a missing
// side falls back to neutral for that part.
func scoreSentiment(news []domain.NewsArticle, rating *domain.AnalystRating, asOf time.Time) domain.ComponentResult {
	newsScore, newsCount := headlineTone(news, asOf)
	analystScore := analystConsensus(rating)

	if newsCount == 0 && rating == nil {
		conf := 20.0
		return domain.ComponentResult{
			Score:      50,
			Reasoning:  "no news or analyst coverage available",
			Confidence: &conf,
		}
	}

	score := newsScore*0.6 + analystScore*0.4

	indicators := map[string]interface{}{
		"news_count":    newsCount,
		"news_tone":     round2(newsScore),
		"analyst_score": round2(analystScore),
	}

	var reasons []string
	switch {
	case newsScore >= 60:
		reasons = append(reasons, fmt.Sprintf("positive news tone across %d recent articles", newsCount))
	case newsScore <= 40 && newsCount > 0:
		reasons = append(reasons, fmt.Sprintf("negative news tone across %d recent articles", newsCount))
	}
	if rating != nil {
		total := rating.StrongBuy + rating.Buy + rating.Hold + rating.Sell + rating.StrongSell
		if total > 0 {
			reasons = append(reasons, fmt.Sprintf("analyst consensus %s (%d analysts)", rating.Rating, total))
		}
	}

	conf := 45.0
	if newsCount >= 5 && rating != nil {
		conf = 70
	} else if newsCount >= 5 || rating != nil {
		conf = 55
	}

	return domain.ComponentResult{
		Score:      formulas.ClampScore(score),
		Indicators: indicators,
		Reasoning:  joinReasons(reasons, "mixed or sparse sentiment signals"),
		Confidence: &conf,
	}
}

// headlineTone scans titles and summaries for tone keywords. Articles older
// than a week relative to asOf count half. Returns a 0-100 score and the
// number of articles considered.
func headlineTone(news []domain.NewsArticle, asOf time.Time) (float64, int) {
	if len(news) == 0 {
		return 50, 0
	}
	weekAgo := asOf.AddDate(0, 0, -7)

	var tone, totalWeight float64
	for _, article := range news {
		text := strings.ToLower(article.Title + " " + article.Summary)
		hits := 0.0
		for _, w := range positiveWords {
			if strings.Contains(text, w) {
				hits++
			}
		}
		for _, w := range negativeWords {
			if strings.Contains(text, w) {
				hits--
			}
		}
		weight := 1.0
		if article.PublishedAt.Before(weekAgo) {
			weight = 0.5
		}
		tone += hits * weight
		totalWeight += weight
	}
	if totalWeight == 0 {
		return 50, len(news)
	}
	// Average hits per article, mapped so +/-1 net keyword moves 15 points.
	avg := tone / totalWeight
	return formulas.ClampScore(50 + avg*15), len(news)
}

// analystConsensus maps the rating distribution onto 0-100, 50 when no
// distribution is known.
func analystConsensus(rating *domain.AnalystRating) float64 {
	if rating == nil {
		return 50
	}
	total := rating.StrongBuy + rating.Buy + rating.Hold + rating.Sell + rating.StrongSell
	if total == 0 {
		return 50
	}
	weighted := float64(rating.StrongBuy)*100 + float64(rating.Buy)*75 +
		float64(rating.Hold)*50 + float64(rating.Sell)*25
	return weighted / float64(total)
}
