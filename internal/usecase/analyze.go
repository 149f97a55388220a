package usecase

import (
	"context"
	"fmt"
	"time"

	"SignalGate/internal/domain/models"
	domrepo "SignalGate/internal/domain/repository"
	"SignalGate/internal/services/features"
)

// AnalysisReport is the one-shot view of a symbol: indicators, patterns and
// the features the pre-gate filters look at.
type AnalysisReport struct {
	Symbol    string                   `json:"symbol"`
	Timeframe domrepo.Timeframe        `json:"timeframe"`
	Bars      int                      `json:"bars"`
	LastClose float64                  `json:"last_close"`
	Analysis  models.CompositeAnalysis `json:"analysis"`
	Patterns  []models.PatternResult   `json:"patterns"`
	Heat      float64                  `json:"heat"`
	Volume    float64                  `json:"volume_ratio"`
	Trend     models.Signal            `json:"trend"`
	At        time.Time                `json:"at"`
}

// Analyst runs the indicator and pattern passes on demand, outside the scan loop.
type Analyst struct {
	source   domrepo.CandleSource
	analyzer Analyzer
	patterns PatternDetector
	filters  FilterConfig
	now      func() time.Time
}

func NewAnalyst(source domrepo.CandleSource, analyzer Analyzer, patterns PatternDetector, filters FilterConfig) *Analyst {
	return &Analyst{source: source, analyzer: analyzer, patterns: patterns, filters: filters, now: time.Now}
}

func (a *Analyst) Analyze(ctx context.Context, symbol string, tf domrepo.Timeframe, n int) (AnalysisReport, error) {
	candles, err := a.source.GetLatestNCandles(ctx, symbol, n, tf)
	if err != nil {
		return AnalysisReport{}, err
	}
	if len(candles) == 0 {
		return AnalysisReport{}, fmt.Errorf("%w: no %s candles for %s", models.ErrDataUnavailable, tf, symbol)
	}

	heatWindow := a.filters.HeatWindow
	if heatWindow <= 1 {
		heatWindow = 20
	}
	lookback := a.filters.VolumeLookback
	if lookback < 1 {
		lookback = 20
	}
	return AnalysisReport{
		Symbol:    symbol,
		Timeframe: tf,
		Bars:      len(candles),
		LastClose: candles[len(candles)-1].Close,
		Analysis:  a.analyzer.Analyze(candles),
		Patterns:  a.patterns.Confirm(a.patterns.Detect(candles), candles),
		Heat:      features.Heat(candles, heatWindow),
		Volume:    features.VolumeRatio(candles, lookback),
		Trend:     features.Trend(candles, heatWindow),
		At:        a.now(),
	}, nil
}
