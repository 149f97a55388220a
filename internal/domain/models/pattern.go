package models

type Reliability string

const (
	ReliabilityHigh   Reliability = "high"
	ReliabilityMedium Reliability = "medium"
	ReliabilityLow    Reliability = "low"
)

type PatternResult struct {
	Name        string      `json:"name"`
	Type        Signal      `json:"type"`
	Confidence  float64     `json:"confidence"`
	Reliability Reliability `json:"reliability"`
	Description string      `json:"description"`
}

// PatternSummary counts detected formations by direction.
type PatternSummary struct {
	Bullish  int    `json:"bullish"`
	Bearish  int    `json:"bearish"`
	Neutral  int    `json:"neutral"`
	Dominant Signal `json:"dominant"`
}
