package strategy

import (
	"fmt"

	"SignalGate/internal/domain/models"
	"SignalGate/internal/services/features"
)

// Personal requires momentum, volume and multi-timeframe confluence at the same time.
type Personal struct {
	MinVolumeRatio float64
	VolumeLookback int
	Timeframes     []string
	TrendBars      int
	RequirePattern bool
	Levels         Levels
}

func (p Personal) ID() string { return IDPersonal }

func (p Personal) Evaluate(symbol string, snap models.MarketSnapshot, analysis models.CompositeAnalysis, patterns []models.PatternResult) (*models.StrategySignal, bool) {
	if analysis.MACD == nil {
		return nil, false
	}
	dir := analysis.MACD.Direction
	action, ok := models.ActionFor(dir)
	if !ok {
		return nil, false
	}

	primary := snap.Primary()
	ratio := features.VolumeRatio(primary, p.VolumeLookback)
	if ratio < p.MinVolumeRatio {
		return nil, false
	}

	trends := make(map[string]models.Signal, len(p.Timeframes)+1)
	trends[snap.PrimaryTimeframe] = features.Trend(primary, p.TrendBars)
	for _, tf := range p.Timeframes {
		trends[tf] = features.Trend(snap.Candles[tf], p.TrendBars)
	}
	for _, tr := range trends {
		if tr != dir {
			return nil, false
		}
	}

	var confirming []string
	for _, pat := range patterns {
		if pat.Type == dir {
			confirming = append(confirming, pat.Name)
		}
	}
	if p.RequirePattern && len(confirming) == 0 {
		return nil, false
	}

	entry := primary[len(primary)-1].Close
	stop, target, ok := p.Levels.bracket(action, entry, primary)
	if !ok {
		return nil, false
	}

	conf := 0.6 + 0.1*float64(min(len(confirming), 2))
	if analysis.OverallSignal == dir {
		conf += 0.1 * analysis.Confidence
	}
	conf = min(conf, 0.95)

	reasons := []string{
		fmt.Sprintf("MACD %s", dir),
		fmt.Sprintf("volume %.1fx average", ratio),
		fmt.Sprintf("%d timeframes trending %s", len(trends), dir),
	}
	for _, name := range confirming {
		reasons = append(reasons, name+" confirms")
	}

	sig := newSignal(p.ID(), symbol, action, entry, stop, target, conf, snap)
	sig.Reasoning = reasons
	sig.Metadata = models.PersonalMeta{
		MACDDirection:       dir,
		VolumeRatio:         ratio,
		TimeframeTrends:     trends,
		ConfirmingPatterns:  confirming,
		IndicatorConfidence: analysis.Confidence,
	}
	return sig, true
}
