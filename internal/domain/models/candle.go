package models

import (
	"math"
	"time"
)

// Candle represents an OHLCV bar. Series are ascending by Timestamp with no duplicates.
type Candle struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
	Volume    float64   `json:"volume"`
}

// Body returns the absolute distance between open and close.
func (c Candle) Body() float64 {
	if c.Close >= c.Open {
		return c.Close - c.Open
	}
	return c.Open - c.Close
}

// Range returns high minus low.
func (c Candle) Range() float64 { return c.High - c.Low }

func (c Candle) UpperShadow() float64 { return c.High - max(c.Open, c.Close) }

func (c Candle) LowerShadow() float64 { return min(c.Open, c.Close) - c.Low }

func (c Candle) IsBullish() bool { return c.Close > c.Open }

func (c Candle) IsBearish() bool { return c.Close < c.Open }

// Valid reports whether the bar is internally consistent.
func (c Candle) Valid() bool {
	if !Finite(c.Open, c.High, c.Low, c.Close, c.Volume) {
		return false
	}
	if c.Open <= 0 || c.High <= 0 || c.Low <= 0 || c.Close <= 0 || c.Volume < 0 {
		return false
	}
	return c.High >= max(c.Open, c.Close) && c.Low <= min(c.Open, c.Close)
}

// Finite reports whether none of vs is NaN or infinite.
func Finite(vs ...float64) bool {
	for _, v := range vs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Closes extracts close prices.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// Volumes extracts volumes.
func Volumes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Volume
	}
	return out
}

// MarketSnapshot is the per-symbol input to one scan cycle.
// Candles is keyed by timeframe ("1m", "5m", "1h", ...).
type MarketSnapshot struct {
	Symbol           string
	PrimaryTimeframe string
	Candles          map[string][]Candle
	FetchedAt        time.Time
}

// Primary returns the candles of the primary timeframe.
func (s MarketSnapshot) Primary() []Candle {
	return s.Candles[s.PrimaryTimeframe]
}

// LastPrice returns the latest close of the primary timeframe, or 0.
func (s MarketSnapshot) LastPrice() float64 {
	p := s.Primary()
	if len(p) == 0 {
		return 0
	}
	return p[len(p)-1].Close
}
