package analysis

import (
	"fmt"
	"sort"

	"github.com/pelorusfin/pelorus/internal/domain"
	"github.com/pelorusfin/pelorus/pkg/formulas"
)

// Line-item keys as reported by the statement providers.
const (
	itemTotalRevenue = "totalRevenue"
	itemNetIncome    = "netIncome"
)

// scoreFundamental derives a 0-100 fundamental score from reported income
// statements: revenue growth, earnings growth and net margin. Missing data
// degrades to the neutral score with low confidence.
func scoreFundamental(statements []domain.FinancialStatement) domain.ComponentResult {
	income := make([]domain.FinancialStatement, 0, len(statements))
	for _, s := range statements {
		if s.StatementType == "income" || s.StatementType == "" {
			income = append(income, s)
		}
	}
	if len(income) == 0 {
		conf := 20.0
		return domain.ComponentResult{
			Score:      50,
			Reasoning:  "no financial statements available",
			Confidence: &conf,
		}
	}

	// Newest first.
	sort.Slice(income, func(i, j int) bool {
		return income[i].PeriodEnd.After(income[j].PeriodEnd)
	})

	latest := income[0]
	score := 50.0
	indicators := make(map[string]interface{})
	var reasons []string

	revenue := latest.Items[itemTotalRevenue]
	netIncome := latest.Items[itemNetIncome]

	if len(income) > 1 {
		prev := income[1]
		if growth, ok := growthPct(revenue, prev.Items[itemTotalRevenue]); ok {
			indicators["revenue_growth_pct"] = round2(growth)
			switch {
			case growth > 10:
				score += 15
				reasons = append(reasons, fmt.Sprintf("revenue growing %.1f%% year over year", growth))
			case growth > 0:
				score += 5
			default:
				score -= 10
				reasons = append(reasons, fmt.Sprintf("revenue shrinking %.1f%%", growth))
			}
		}
		if growth, ok := growthPct(netIncome, prev.Items[itemNetIncome]); ok {
			indicators["earnings_growth_pct"] = round2(growth)
			switch {
			case growth > 15:
				score += 15
				reasons = append(reasons, fmt.Sprintf("earnings up %.1f%%", growth))
			case growth > 0:
				score += 5
			default:
				score -= 10
				reasons = append(reasons, fmt.Sprintf("earnings down %.1f%%", growth))
			}
		}
	}

	if revenue > 0 {
		margin := netIncome / revenue * 100
		indicators["net_margin_pct"] = round2(margin)
		switch {
		case margin > 15:
			score += 10
			reasons = append(reasons, fmt.Sprintf("strong net margin %.1f%%", margin))
		case margin < 0:
			score -= 15
			reasons = append(reasons, "company is unprofitable")
		}
	}

	conf := 40.0
	if len(income) >= 2 {
		conf = 70
	}
	return domain.ComponentResult{
		Score:      formulas.ClampScore(score),
		Indicators: indicators,
		Reasoning:  joinReasons(reasons, "fundamentals stable, no strong signal"),
		Confidence: &conf,
	}
}

// growthPct returns the period-over-period change in percent. Reported zero
// or negative bases make the ratio meaningless, so those report not-ok.
func growthPct(current, previous float64) (float64, bool) {
	if previous <= 0 {
		return 0, false
	}
	return (current - previous) / previous * 100, true
}
