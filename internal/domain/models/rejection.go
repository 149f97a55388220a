package models

import "time"

type RejectionCategory string

const (
	CategoryConfidence  RejectionCategory = "confidence"
	CategoryHeat        RejectionCategory = "heat"
	CategoryRiskReward  RejectionCategory = "riskReward"
	CategoryTimeframe   RejectionCategory = "timeframe"
	CategoryCooldown    RejectionCategory = "cooldown"
	CategoryVolume      RejectionCategory = "volume"
	CategoryFundamental RejectionCategory = "fundamental"
)

// RejectionCategories lists every category in display order.
var RejectionCategories = []RejectionCategory{
	CategoryConfidence, CategoryHeat, CategoryRiskReward, CategoryTimeframe,
	CategoryCooldown, CategoryVolume, CategoryFundamental,
}

type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// RejectionRecord is immutable once logged.
type RejectionRecord struct {
	ID         string            `json:"id"`
	Timestamp  time.Time         `json:"timestamp"`
	Symbol     string            `json:"symbol"`
	StrategyID string            `json:"strategy_id"`
	Category   RejectionCategory `json:"category"`
	Reason     string            `json:"reason"`
	Threshold  float64           `json:"threshold"`
	Actual     float64           `json:"actual"`
	Severity   Severity          `json:"severity"`
}

type ReasonCount struct {
	Reason string `json:"reason"`
	Count  int    `json:"count"`
}

type RejectionTrends struct {
	Hourly [24]int `json:"hourly"`
	Daily  [7]int  `json:"daily"`
}

type SuggestionType string

const (
	SuggestionTuneFilter    SuggestionType = "tune_filter"
	SuggestionExcludeSymbol SuggestionType = "exclude_symbol"
	SuggestionPauseScanning SuggestionType = "pause_scanning"
)

type Suggestion struct {
	Type       SuggestionType    `json:"type"`
	Category   RejectionCategory `json:"category,omitempty"`
	Symbol     string            `json:"symbol,omitempty"`
	Percentage float64           `json:"percentage"`
	Count      int               `json:"count"`
	Message    string            `json:"message"`
}

type RejectionAnalytics struct {
	TotalRejections int                       `json:"total_rejections"`
	ByCategory      map[RejectionCategory]int `json:"by_category"`
	BySymbol        map[string]int            `json:"by_symbol"`
	ByStrategy      map[string]int            `json:"by_strategy"`
	TopReasons      []ReasonCount             `json:"top_reasons"`
	Trends          RejectionTrends           `json:"trends"`
	Suggestions     []Suggestion              `json:"suggestions"`
}

// RejectionFilter narrows Recent listings. Zero values match everything.
type RejectionFilter struct {
	Symbol     string
	StrategyID string
	Category   RejectionCategory
	Since      time.Time
	Limit      int
}
