package strategy

import (
	"fmt"

	"SignalGate/internal/domain/models"
	"SignalGate/internal/domain/service"
	"SignalGate/internal/services/features"
	"SignalGate/internal/services/indicators"
)

const (
	IDMomentum    = "momentum"
	IDRSIExtreme  = "rsi_extreme"
	IDVolumeSpike = "volume_spike"
	IDPersonal    = "personal"
)

// Momentum fires on a breakout of the prior range backed by a minimum percent move.
type Momentum struct {
	Lookback         int
	MinChangePercent float64
	Levels           Levels
}

func (m Momentum) ID() string { return IDMomentum }

func (m Momentum) Evaluate(symbol string, snap models.MarketSnapshot, analysis models.CompositeAnalysis, _ []models.PatternResult) (*models.StrategySignal, bool) {
	candles := snap.Primary()
	if m.Lookback < 2 || len(candles) < m.Lookback+1 {
		return nil, false
	}
	last := candles[len(candles)-1]
	prior := candles[len(candles)-1-m.Lookback : len(candles)-1]
	hi, lo := prior[0].High, prior[0].Low
	for _, c := range prior[1:] {
		hi = max(hi, c.High)
		lo = min(lo, c.Low)
	}
	change := features.ChangePercent(candles, m.Lookback)

	var action models.Action
	var level float64
	switch {
	case change >= m.MinChangePercent && last.Close > hi:
		action, level = models.ActionBuy, hi
	case change <= -m.MinChangePercent && last.Close < lo:
		action, level = models.ActionSell, lo
	default:
		return nil, false
	}

	stop, target, ok := m.Levels.bracket(action, last.Close, candles)
	if !ok {
		return nil, false
	}
	excess := (abs(change) - m.MinChangePercent) / (m.MinChangePercent * 4)
	conf := min(0.5+excess, 0.9)
	reasons := []string{
		fmt.Sprintf("%.2f%% move over %d bars", change, m.Lookback),
		fmt.Sprintf("close %.6g broke %d-bar range at %.6g", last.Close, m.Lookback, level),
	}
	if analysis.MACD != nil && analysis.MACD.Direction == action.Direction() {
		conf += 0.05
		reasons = append(reasons, "MACD agrees with breakout direction")
	}

	sig := newSignal(m.ID(), symbol, action, last.Close, stop, target, conf, snap)
	sig.Reasoning = reasons
	sig.Metadata = models.MomentumMeta{LookbackBars: m.Lookback, ChangePercent: change, BreakoutLevel: level}
	return sig, true
}

// RSIExtreme fades RSI readings beyond configurable extremes.
type RSIExtreme struct {
	Period     int
	Oversold   float64
	Overbought float64
	Levels     Levels
}

func (r RSIExtreme) ID() string { return IDRSIExtreme }

func (r RSIExtreme) Evaluate(symbol string, snap models.MarketSnapshot, _ models.CompositeAnalysis, _ []models.PatternResult) (*models.StrategySignal, bool) {
	candles := snap.Primary()
	rsi, err := indicators.RSI(models.Closes(candles), r.Period)
	if err != nil {
		return nil, false
	}

	var action models.Action
	var conf, threshold float64
	switch {
	case rsi.Value <= r.Oversold:
		action, threshold = models.ActionBuy, r.Oversold
		conf = 0.5 + (r.Oversold-rsi.Value)/max(r.Oversold, 1)*0.5
	case rsi.Value >= r.Overbought:
		action, threshold = models.ActionSell, r.Overbought
		conf = 0.5 + (rsi.Value-r.Overbought)/max(100-r.Overbought, 1)*0.5
	default:
		return nil, false
	}

	entry := candles[len(candles)-1].Close
	stop, target, ok := r.Levels.bracket(action, entry, candles)
	if !ok {
		return nil, false
	}
	sig := newSignal(r.ID(), symbol, action, entry, stop, target, conf, snap)
	sig.Reasoning = []string{fmt.Sprintf("RSI(%d) %.1f beyond %.0f", r.Period, rsi.Value, threshold)}
	sig.Metadata = models.RSIExtremeMeta{RSI: rsi.Value, Threshold: threshold}
	return sig, true
}

// VolumeSpike follows the body direction of a bar printed on outsized volume.
type VolumeSpike struct {
	Lookback   int
	Multiplier float64
	Levels     Levels
}

func (v VolumeSpike) ID() string { return IDVolumeSpike }

func (v VolumeSpike) Evaluate(symbol string, snap models.MarketSnapshot, _ models.CompositeAnalysis, _ []models.PatternResult) (*models.StrategySignal, bool) {
	candles := snap.Primary()
	ratio := features.VolumeRatio(candles, v.Lookback)
	if ratio < v.Multiplier || v.Multiplier <= 0 {
		return nil, false
	}
	last := candles[len(candles)-1]
	var action models.Action
	switch {
	case last.IsBullish():
		action = models.ActionBuy
	case last.IsBearish():
		action = models.ActionSell
	default:
		return nil, false
	}

	stop, target, ok := v.Levels.bracket(action, last.Close, candles)
	if !ok {
		return nil, false
	}
	conf := min(0.5+(ratio/v.Multiplier-1)*0.2, 0.9)
	sig := newSignal(v.ID(), symbol, action, last.Close, stop, target, conf, snap)
	sig.Reasoning = []string{fmt.Sprintf("volume %.1fx the %d-bar average", ratio, v.Lookback)}
	sig.Metadata = models.VolumeSpikeMeta{VolumeRatio: ratio, AverageVolume: last.Volume / ratio}
	return sig, true
}

// Settings configures the built-in evaluators.
type Settings struct {
	Enabled []string
	Levels  Levels

	MomentumLookback  int
	MomentumMinChange float64

	RSIPeriod     int
	RSIOversold   float64
	RSIOverbought float64

	VolumeLookback   int
	VolumeMultiplier float64

	PersonalMinVolumeRatio float64
	PersonalTimeframes     []string
	PersonalTrendBars      int
	PersonalRequirePattern bool
}

// NewEvaluators builds the enabled evaluators in the configured order.
func NewEvaluators(s Settings) ([]service.StrategyEvaluator, error) {
	out := make([]service.StrategyEvaluator, 0, len(s.Enabled))
	for _, id := range s.Enabled {
		switch id {
		case IDMomentum:
			out = append(out, Momentum{Lookback: s.MomentumLookback, MinChangePercent: s.MomentumMinChange, Levels: s.Levels.scaled(1.25)})
		case IDRSIExtreme:
			out = append(out, RSIExtreme{Period: s.RSIPeriod, Oversold: s.RSIOversold, Overbought: s.RSIOverbought, Levels: s.Levels})
		case IDVolumeSpike:
			out = append(out, VolumeSpike{Lookback: s.VolumeLookback, Multiplier: s.VolumeMultiplier, Levels: s.Levels.scaled(0.9)})
		case IDPersonal:
			out = append(out, Personal{
				MinVolumeRatio: s.PersonalMinVolumeRatio,
				VolumeLookback: s.VolumeLookback,
				Timeframes:     s.PersonalTimeframes,
				TrendBars:      s.PersonalTrendBars,
				RequirePattern: s.PersonalRequirePattern,
				Levels:         s.Levels.scaled(1.5),
			})
		default:
			return nil, fmt.Errorf("unknown strategy %q", id)
		}
	}
	return out, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
