package domain

// RiskLevel is the overall qualitative risk classification.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskVeryHigh RiskLevel = "very_high"
)

// VolatilityLevel buckets ATR as a percentage of price.
type VolatilityLevel string

const (
	VolatilityLow      VolatilityLevel = "low"
	VolatilityNormal   VolatilityLevel = "normal"
	VolatilityHigh     VolatilityLevel = "high"
	VolatilityVeryHigh VolatilityLevel = "very_high"
)

// LiquidityLevel buckets estimated daily traded value.
type LiquidityLevel string

const (
	LiquidityIlliquid     LiquidityLevel = "illiquid"
	LiquidityNormal       LiquidityLevel = "normal"
	LiquidityHighlyLiquid LiquidityLevel = "highly_liquid"
)

// RiskAssessment is the qualitative and quantitative risk profile for one
// signal. Computed fresh per signal and never mutated after creation.
type RiskAssessment struct {
	Level         RiskLevel       `json:"level"`
	Score         float64         `json:"score"` // composite numeric score backing Level
	Volatility    VolatilityLevel `json:"volatility"`
	Liquidity     LiquidityLevel  `json:"liquidity"`
	Concentration bool            `json:"concentration"`
	SectorRisk    string          `json:"sector_risk,omitempty"`
	// Flags are human-readable, ticker-prefixed sentences, one per triggered
	// condition, in a fixed emission order.
	Flags []string `json:"flags,omitempty"`
}
