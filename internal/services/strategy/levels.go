package strategy

import (
	"SignalGate/internal/domain/models"
	"SignalGate/internal/services/indicators"
)

const atrPeriod = 14

// Levels derives stop and target prices from an entry.
// The stop distance is the larger of a fixed percent and an ATR multiple.
type Levels struct {
	StopLossPercent   float64
	StopATRMultiplier float64
	TargetRiskReward  float64
}

func (l Levels) bracket(action models.Action, entry float64, candles []models.Candle) (stop, target float64, ok bool) {
	if entry <= 0 || l.TargetRiskReward <= 0 {
		return 0, 0, false
	}
	dist := entry * l.StopLossPercent / 100
	if atr, err := indicators.ATR(candles, atrPeriod); err == nil && l.StopATRMultiplier > 0 {
		dist = max(dist, atr*l.StopATRMultiplier)
	}
	if dist <= 0 {
		return 0, 0, false
	}
	if action == models.ActionBuy {
		stop, target = entry-dist, entry+dist*l.TargetRiskReward
	} else {
		stop, target = entry+dist, entry-dist*l.TargetRiskReward
	}
	if stop <= 0 || target <= 0 {
		return 0, 0, false
	}
	return stop, target, true
}

// scaled returns a copy with the reward multiple scaled.
func (l Levels) scaled(f float64) Levels {
	l.TargetRiskReward *= f
	return l
}

func newSignal(id, symbol string, action models.Action, entry, stop, target, confidence float64, snap models.MarketSnapshot) *models.StrategySignal {
	risk := entry - stop
	if risk < 0 {
		risk = -risk
	}
	reward := target - entry
	if reward < 0 {
		reward = -reward
	}
	return &models.StrategySignal{
		StrategyID:      id,
		Symbol:          symbol,
		Action:          action,
		EntryPrice:      entry,
		StopLoss:        stop,
		TargetPrice:     target,
		Confidence:      clamp01(confidence),
		RiskRewardRatio: reward / risk,
		GeneratedAt:     snap.FetchedAt,
	}
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}
