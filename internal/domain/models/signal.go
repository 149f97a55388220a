package models

import (
	"encoding/json"
	"strings"
	"time"
)

type Action string

const (
	ActionBuy  Action = "buy"
	ActionSell Action = "sell"
)

// Direction maps an action to the indicator signal it agrees with.
func (a Action) Direction() Signal {
	if a == ActionBuy {
		return SignalBullish
	}
	return SignalBearish
}

// ActionFor maps a directional signal to an action. Neutral has none.
func ActionFor(s Signal) (Action, bool) {
	switch s {
	case SignalBullish:
		return ActionBuy, true
	case SignalBearish:
		return ActionSell, true
	default:
		return "", false
	}
}

// CompositeStrategyID identifies merged candidates.
const CompositeStrategyID = "composite"

// StrategySignal is a candidate produced by an evaluator. It is never persisted until approved.
type StrategySignal struct {
	StrategyID      string           `json:"strategy_id"`
	Symbol          string           `json:"symbol"`
	Action          Action           `json:"action"`
	EntryPrice      float64          `json:"entry_price"`
	StopLoss        float64          `json:"stop_loss"`
	TargetPrice     float64          `json:"target_price"`
	Confidence      float64          `json:"confidence"`
	RiskRewardRatio float64          `json:"risk_reward_ratio"`
	Reasoning       []string         `json:"reasoning"`
	Contributors    []string         `json:"contributors,omitempty"`
	Metadata        StrategyMetadata `json:"-"`
	GeneratedAt     time.Time        `json:"generated_at"`
}

// Strategies returns the ids whose weights an outcome of this signal should update.
func (s StrategySignal) Strategies() []string {
	if len(s.Contributors) > 0 {
		return s.Contributors
	}
	return []string{s.StrategyID}
}

// LedgerID names the signal in rejection records: composites list their contributors joined by "+".
func (s StrategySignal) LedgerID() string {
	return strings.Join(s.Strategies(), StrategySeparator)
}

// StrategySeparator joins contributor ids in a ledger strategy id.
const StrategySeparator = "+"

// SplitLedgerID reverses LedgerID.
func SplitLedgerID(id string) []string {
	if id == "" {
		return nil
	}
	return strings.Split(id, StrategySeparator)
}

func (s StrategySignal) MarshalJSON() ([]byte, error) {
	type alias StrategySignal
	var meta *taggedMetadata
	if s.Metadata != nil {
		meta = &taggedMetadata{Kind: s.Metadata.Kind(), Data: s.Metadata}
	}
	return json.Marshal(struct {
		alias
		Metadata *taggedMetadata `json:"metadata,omitempty"`
	}{alias: alias(s), Metadata: meta})
}

type taggedMetadata struct {
	Kind string           `json:"kind"`
	Data StrategyMetadata `json:"data"`
}

// StrategyMetadata is a closed set of per-strategy details. Consumers switch on the
// concrete type.
type StrategyMetadata interface {
	Kind() string
	isStrategyMetadata()
}

type MomentumMeta struct {
	LookbackBars  int     `json:"lookback_bars"`
	ChangePercent float64 `json:"change_percent"`
	BreakoutLevel float64 `json:"breakout_level"`
}

type RSIExtremeMeta struct {
	RSI       float64 `json:"rsi"`
	Threshold float64 `json:"threshold"`
}

type VolumeSpikeMeta struct {
	VolumeRatio   float64 `json:"volume_ratio"`
	AverageVolume float64 `json:"average_volume"`
}

type PersonalMeta struct {
	MACDDirection       Signal            `json:"macd_direction"`
	VolumeRatio         float64           `json:"volume_ratio"`
	TimeframeTrends     map[string]Signal `json:"timeframe_trends"`
	ConfirmingPatterns  []string          `json:"confirming_patterns,omitempty"`
	IndicatorConfidence float64           `json:"indicator_confidence"`
}

type CompositeMeta struct {
	Weights map[string]float64 `json:"weights"`
	// Conservative names the contributor whose prices and R/R were kept.
	Conservative string `json:"conservative"`
}

func (MomentumMeta) Kind() string    { return "momentum" }
func (RSIExtremeMeta) Kind() string  { return "rsi_extreme" }
func (VolumeSpikeMeta) Kind() string { return "volume_spike" }
func (PersonalMeta) Kind() string    { return "personal" }
func (CompositeMeta) Kind() string   { return "composite" }

func (MomentumMeta) isStrategyMetadata()    {}
func (RSIExtremeMeta) isStrategyMetadata()  {}
func (VolumeSpikeMeta) isStrategyMetadata() {}
func (PersonalMeta) isStrategyMetadata()    {}
func (CompositeMeta) isStrategyMetadata()   {}

// StrategyWeight is the adaptive scalar for one strategy plus its rolling statistics.
type StrategyWeight struct {
	StrategyID        string    `json:"strategy_id"`
	Weight            float64   `json:"weight"`
	TotalSignals      int       `json:"total_signals"`
	SuccessfulSignals int       `json:"successful_signals"`
	SuccessRate       float64   `json:"success_rate"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// TradeOutcome is reported by the bookkeeping collaborator when a position closes.
type TradeOutcome struct {
	Symbol     string    `json:"symbol" validate:"required"`
	StrategyID string    `json:"strategy_id"`
	Strategies []string  `json:"strategies"`
	Win        bool      `json:"win"`
	PnLPercent float64   `json:"pnl_percent"`
	ClosedAt   time.Time `json:"closed_at"`
}

// StrategyIDs merges the single and list forms. Joined ledger ids are split.
func (o TradeOutcome) StrategyIDs() []string {
	ids := make([]string, 0, len(o.Strategies)+1)
	seen := make(map[string]struct{}, len(o.Strategies)+1)
	for _, raw := range append([]string{o.StrategyID}, o.Strategies...) {
		for _, id := range SplitLedgerID(raw) {
			if id == "" {
				continue
			}
			if _, ok := seen[id]; ok {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		}
	}
	return ids
}

// ApprovedSignal is what the dispatcher receives.
type ApprovedSignal struct {
	Signal     StrategySignal `json:"signal"`
	Assessment RiskAssessment `json:"assessment"`
	ApprovedAt time.Time      `json:"approved_at"`
}
