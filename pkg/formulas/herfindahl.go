package formulas

// Herfindahl calculates the Herfindahl index over allocation amounts: the sum
// of squared fractions of the total. 1.0 means full concentration in one
// bucket, approaching 0 means a perfectly spread allocation.
func Herfindahl(amounts map[string]float64) float64 {
	total := 0.0
	for _, v := range amounts {
		if v > 0 {
			total += v
		}
	}
	if total <= 0 {
		return 1.0
	}

	hhi := 0.0
	for _, v := range amounts {
		if v <= 0 {
			continue
		}
		frac := v / total
		hhi += frac * frac
	}
	return hhi
}

// DiversificationScore converts a Herfindahl index into a 0-100 score where
// 100 means perfectly diversified and 0 means fully concentrated.
func DiversificationScore(hhi float64) float64 {
	return ClampScore(100.0 * (1.0 - hhi))
}
