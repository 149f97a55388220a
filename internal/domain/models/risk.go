package models

import "time"

// RiskParameters are runtime-tunable limits, all percentages of portfolio value.
type RiskParameters struct {
	MaxRiskPerTrade      float64 `json:"max_risk_per_trade" yaml:"max_risk_per_trade" default:"2.0" validate:"gt=0,lte=100"`
	MaxPortfolioRisk     float64 `json:"max_portfolio_risk" yaml:"max_portfolio_risk" default:"10.0" validate:"gt=0,lte=100"`
	MaxPositionSize      float64 `json:"max_position_size" yaml:"max_position_size" default:"5.0" validate:"gt=0,lte=100"`
	MaxDailyLoss         float64 `json:"max_daily_loss" yaml:"max_daily_loss" default:"5.0" validate:"gt=0,lte=100"`
	CorrelationLimit     int     `json:"correlation_limit" yaml:"correlation_limit" default:"3" validate:"gte=1"`
	MinRiskReward        float64 `json:"min_risk_reward" yaml:"min_risk_reward" default:"1.5" validate:"gte=0"`
	EnforceMinRiskReward bool    `json:"enforce_min_risk_reward" yaml:"enforce_min_risk_reward"`
}

// DefaultRiskParameters returns the documented defaults.
func DefaultRiskParameters() RiskParameters {
	return RiskParameters{
		MaxRiskPerTrade:  2.0,
		MaxPortfolioRisk: 10.0,
		MaxPositionSize:  5.0,
		MaxDailyLoss:     5.0,
		CorrelationLimit: 3,
		MinRiskReward:    1.5,
	}
}

type PositionRisk struct {
	Symbol            string    `json:"symbol"`
	ExposurePercent   float64   `json:"exposure_percent"`
	RiskAmountPercent float64   `json:"risk_amount_percent"`
	EntryTime         time.Time `json:"entry_time"`
}

type PortfolioState struct {
	OpenPositions   map[string]PositionRisk `json:"open_positions"`
	DailyPnLPercent float64                 `json:"daily_pnl_percent"`
	Parameters      RiskParameters          `json:"risk_parameters"`
}

// TotalExposure sums open exposure.
func (p PortfolioState) TotalExposure() float64 {
	var total float64
	for _, pos := range p.OpenPositions {
		total += pos.ExposurePercent
	}
	return total
}

type RiskAssessment struct {
	Allowed                        bool              `json:"allowed"`
	Reason                         string            `json:"reason"`
	Category                       RejectionCategory `json:"category,omitempty"`
	Severity                       Severity          `json:"severity,omitempty"`
	Threshold                      float64           `json:"threshold,omitempty"`
	Actual                         float64           `json:"actual,omitempty"`
	RecommendedPositionSizePercent float64           `json:"recommended_position_size_percent"`
	RiskAmountPercent              float64           `json:"risk_amount_percent"`
	ExposurePercent                float64           `json:"exposure_percent"`
	RiskRewardRatio                float64           `json:"risk_reward_ratio"`
	Warnings                       []string          `json:"warnings"`
}

// Rejection converts a blocked assessment into a ledger record.
func (a RiskAssessment) Rejection(sig StrategySignal, at time.Time) RejectionRecord {
	return RejectionRecord{
		Timestamp:  at,
		Symbol:     sig.Symbol,
		StrategyID: sig.LedgerID(),
		Category:   a.Category,
		Reason:     a.Reason,
		Threshold:  a.Threshold,
		Actual:     a.Actual,
		Severity:   a.Severity,
	}
}

// RiskStatus is the read-only dashboard view of the gate.
type RiskStatus struct {
	OpenPositions     []PositionRisk `json:"open_positions"`
	TotalExposure     float64        `json:"total_exposure"`
	RemainingCapacity float64        `json:"remaining_capacity"`
	DailyPnLPercent   float64        `json:"daily_pnl_percent"`
	TradingHalted     bool           `json:"trading_halted"`
	Parameters        RiskParameters `json:"risk_parameters"`
	Day               string         `json:"day"`
}
