package features

import (
	"math"
	"time"

	"SignalGate/internal/domain/models"
	"SignalGate/internal/domain/repository"
)

// LogReturns computes r_t = ln(C_t / C_{t-1}). Non-positive closes contribute 0.
func LogReturns(candles []models.Candle) []float64 {
	if len(candles) < 2 {
		return nil
	}
	out := make([]float64, 0, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		prev, cur := candles[i-1].Close, candles[i].Close
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// Heat is the sample standard deviation of the last window log returns, in percent per bar.
// Returns 0 when there are fewer than window returns.
func Heat(candles []models.Candle, window int) float64 {
	rets := LogReturns(candles)
	if window <= 1 || len(rets) < window {
		return 0
	}
	var sum, sum2 float64
	for _, r := range rets[len(rets)-window:] {
		sum += r
		sum2 += r * r
	}
	n := float64(window)
	mean := sum / n
	variance := (sum2 - n*mean*mean) / (n - 1)
	if variance < 0 {
		variance = 0
	}
	return math.Sqrt(variance) * 100
}

// VolumeRatio is the last bar's volume over the mean of the lookback bars before it.
// Returns 0 when the window is short or the mean is zero.
func VolumeRatio(candles []models.Candle, lookback int) float64 {
	if lookback < 1 || len(candles) < lookback+1 {
		return 0
	}
	var sum float64
	for _, c := range candles[len(candles)-1-lookback : len(candles)-1] {
		sum += c.Volume
	}
	mean := sum / float64(lookback)
	if mean == 0 {
		return 0
	}
	return candles[len(candles)-1].Volume / mean
}

// Trend compares the last close with the mean close of the trailing bars window.
func Trend(candles []models.Candle, bars int) models.Signal {
	if bars < 2 || len(candles) < bars {
		return models.SignalNeutral
	}
	window := candles[len(candles)-bars:]
	var sum float64
	for _, c := range window {
		sum += c.Close
	}
	mean := sum / float64(bars)
	last := window[len(window)-1].Close
	switch {
	case last > mean && last > window[0].Close:
		return models.SignalBullish
	case last < mean && last < window[0].Close:
		return models.SignalBearish
	default:
		return models.SignalNeutral
	}
}

// ChangePercent is the percent move from the close lookback bars ago to the last close.
func ChangePercent(candles []models.Candle, lookback int) float64 {
	if lookback < 1 || len(candles) < lookback+1 {
		return 0
	}
	from := candles[len(candles)-1-lookback].Close
	if from <= 0 {
		return 0
	}
	return (candles[len(candles)-1].Close - from) / from * 100
}

// Staleness is how many whole bars have elapsed since the last candle opened, minus one.
// A fresh series reports 0.
func Staleness(candles []models.Candle, tf repository.Timeframe, now time.Time) int {
	if len(candles) == 0 {
		return math.MaxInt32
	}
	elapsed := now.Sub(candles[len(candles)-1].Timestamp)
	bars := int(elapsed/tf.Duration()) - 1
	return max(bars, 0)
}
