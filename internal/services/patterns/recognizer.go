package patterns

import (
	"math"

	"SignalGate/internal/domain/models"
)

// Config holds the geometric thresholds used by the detectors.
type Config struct {
	MinConfidence   float64 // report only patterns strictly above this
	DojiBodyRatio   float64 // body / range
	ShadowBodyRatio float64 // long shadow / body for hammer-type candles
	TinyShadowRatio float64 // short shadow / body for hammer-type candles
	MarubozuShadow  float64 // shadow / range
	StarBodyRatio   float64 // middle candle body / range in stars
	StrongBodyRatio float64 // body / range of the outer candles in stars
	TrendCandles    int     // candles inspected for prior trend context
	VolumeThreshold float64 // relative volume change for confirmation
}

func DefaultConfig() Config {
	return Config{
		MinConfidence:   60,
		DojiBodyRatio:   0.1,
		ShadowBodyRatio: 2.0,
		TinyShadowRatio: 0.1,
		MarubozuShadow:  0.05,
		StarBodyRatio:   0.3,
		StrongBodyRatio: 0.5,
		TrendCandles:    5,
		VolumeThreshold: 0.2,
	}
}

// Recognizer detects candlestick formations on the tail of a series. Stateless.
type Recognizer struct {
	cfg Config
}

func NewRecognizer(cfg Config) *Recognizer {
	return &Recognizer{cfg: cfg}
}

type detector func(r *Recognizer, candles []models.Candle) []models.PatternResult

var detectors = []detector{
	(*Recognizer).doji,
	(*Recognizer).hammer,
	(*Recognizer).shootingStar,
	(*Recognizer).marubozu,
	(*Recognizer).engulfing,
	(*Recognizer).piercing,
	(*Recognizer).harami,
	(*Recognizer).star,
	(*Recognizer).threeCandles,
}

// Detect returns the formations ending at the last candle with confidence above the minimum.
func (r *Recognizer) Detect(candles []models.Candle) []models.PatternResult {
	out := []models.PatternResult{}
	if len(candles) == 0 {
		return out
	}
	for _, d := range detectors {
		for _, p := range d(r, candles) {
			if p.Confidence > r.cfg.MinConfidence {
				out = append(out, p)
			}
		}
	}
	return out
}

// Strength adjusts a pattern's confidence by volume confirmation on the last candle:
// +10 when volume rose more than the threshold, -5 when it fell more than it.
func (r *Recognizer) Strength(p models.PatternResult, candles []models.Candle) float64 {
	conf := p.Confidence
	if len(candles) < 2 {
		return clamp(conf)
	}
	last, prev := candles[len(candles)-1].Volume, candles[len(candles)-2].Volume
	switch {
	case last > prev*(1+r.cfg.VolumeThreshold):
		conf += 10
	case last < prev*(1-r.cfg.VolumeThreshold):
		conf -= 5
	}
	return clamp(conf)
}

// Confirm returns copies of patterns with volume-adjusted confidence.
func (r *Recognizer) Confirm(patterns []models.PatternResult, candles []models.Candle) []models.PatternResult {
	out := make([]models.PatternResult, len(patterns))
	for i, p := range patterns {
		p.Confidence = r.Strength(p, candles)
		out[i] = p
	}
	return out
}

// Summary counts patterns by direction and names the dominant side.
func Summary(patterns []models.PatternResult) models.PatternSummary {
	var s models.PatternSummary
	for _, p := range patterns {
		switch p.Type {
		case models.SignalBullish:
			s.Bullish++
		case models.SignalBearish:
			s.Bearish++
		default:
			s.Neutral++
		}
	}
	switch {
	case s.Bullish > s.Bearish:
		s.Dominant = models.SignalBullish
	case s.Bearish > s.Bullish:
		s.Dominant = models.SignalBearish
	default:
		s.Dominant = models.SignalNeutral
	}
	return s
}

// priorTrend compares closes over the TrendCandles bars that precede the last skip+1 candles.
func (r *Recognizer) priorTrend(candles []models.Candle, skip int) models.Signal {
	end := len(candles) - 2 - skip
	if end < 1 {
		return models.SignalNeutral
	}
	start := max(0, end-r.cfg.TrendCandles)
	switch {
	case candles[end].Close < candles[start].Close:
		return models.SignalBearish
	case candles[end].Close > candles[start].Close:
		return models.SignalBullish
	default:
		return models.SignalNeutral
	}
}

func midpoint(c models.Candle) float64 { return (c.Open + c.Close) / 2 }

func bodyTop(c models.Candle) float64 { return math.Max(c.Open, c.Close) }

func bodyBottom(c models.Candle) float64 { return math.Min(c.Open, c.Close) }

func clamp(v float64) float64 { return math.Max(0, math.Min(100, v)) }

func tail(candles []models.Candle, n int) ([]models.Candle, bool) {
	if len(candles) < n {
		return nil, false
	}
	return candles[len(candles)-n:], true
}
