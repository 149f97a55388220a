package indicators

import (
	"fmt"
	"math"

	"SignalGate/internal/domain/models"
)

const (
	rsiOversold   = 30.0
	rsiOverbought = 70.0
	// rsZeroLoss is the relative strength used when the average loss is zero.
	rsZeroLoss = 100.0
)

// RSI computes the Relative Strength Index with Wilder's smoothing.
func RSI(prices []float64, period int) (models.RSIResult, error) {
	if period < 1 {
		return models.RSIResult{}, fmt.Errorf("rsi: period must be positive, got %d", period)
	}
	if len(prices) < period+1 {
		return models.RSIResult{}, fmt.Errorf("%w: rsi(%d) needs %d prices, got %d",
			models.ErrInsufficientData, period, period+1, len(prices))
	}

	var avgGain, avgLoss float64
	for i := 1; i <= period; i++ {
		g, l := splitChange(prices[i] - prices[i-1])
		avgGain += g
		avgLoss += l
	}
	p := float64(period)
	avgGain /= p
	avgLoss /= p

	for i := period + 1; i < len(prices); i++ {
		g, l := splitChange(prices[i] - prices[i-1])
		avgGain = (avgGain*(p-1) + g) / p
		avgLoss = (avgLoss*(p-1) + l) / p
	}

	var value float64
	switch {
	case avgGain == 0 && avgLoss == 0:
		value = 50
	case avgLoss == 0:
		value = 100 - 100/(1+rsZeroLoss)
	default:
		value = 100 - 100/(1+avgGain/avgLoss)
	}
	value = clamp(value, 0, 100)

	res := models.RSIResult{Value: value, State: models.RSINeutral, Signal: models.SignalNeutral}
	switch {
	case value <= rsiOversold:
		res.State = models.RSIOversold
		res.Signal = models.SignalBullish
	case value >= rsiOverbought:
		res.State = models.RSIOverbought
		res.Signal = models.SignalBearish
	case value > 50:
		res.Signal = models.SignalBullish
	case value < 50:
		res.Signal = models.SignalBearish
	}
	return res, nil
}

func splitChange(ch float64) (gain, loss float64) {
	if ch > 0 {
		return ch, 0
	}
	return 0, -ch
}

// MACD computes the MACD line, signal line and histogram at the last point.
func MACD(prices []float64, fast, slow, signal int) (models.MACDResult, error) {
	if fast < 1 || slow <= fast || signal < 1 {
		return models.MACDResult{}, fmt.Errorf("macd: invalid periods %d/%d/%d", fast, slow, signal)
	}
	if len(prices) < slow {
		return models.MACDResult{}, fmt.Errorf("%w: macd needs %d prices, got %d",
			models.ErrInsufficientData, slow, len(prices))
	}

	emaFast := EMA(prices, fast)
	emaSlow := EMA(prices, slow)
	line := make([]float64, 0, len(prices)-slow+1)
	for i := slow - 1; i < len(prices); i++ {
		line = append(line, emaFast[i]-emaSlow[i])
	}
	sig := EMA(line, signal)

	n := len(line)
	res := models.MACDResult{
		MACD:      line[n-1],
		Signal:    sig[n-1],
		Crossover: models.CrossoverNone,
	}
	res.Histogram = res.MACD - res.Signal

	if n >= 2 {
		prev := line[n-2] - sig[n-2]
		curr := res.Histogram
		switch {
		case prev <= 0 && curr > 0:
			res.Crossover = models.CrossoverBullish
		case prev >= 0 && curr < 0:
			res.Crossover = models.CrossoverBearish
		}
	}

	switch {
	case res.Crossover == models.CrossoverBullish, res.Crossover == models.CrossoverNone && res.Histogram > 0:
		res.Direction = models.SignalBullish
	case res.Crossover == models.CrossoverBearish, res.Crossover == models.CrossoverNone && res.Histogram < 0:
		res.Direction = models.SignalBearish
	default:
		res.Direction = models.SignalNeutral
	}
	return res, nil
}

// EMA returns the exponential moving average series seeded with the first value.
func EMA(values []float64, period int) []float64 {
	if len(values) == 0 || period < 1 {
		return nil
	}
	k := 2.0 / float64(period+1)
	out := make([]float64, len(values))
	out[0] = values[0]
	for i := 1; i < len(values); i++ {
		out[i] = values[i]*k + out[i-1]*(1-k)
	}
	return out
}

// SMA returns the simple mean of the last period values.
func SMA(values []float64, period int) (float64, error) {
	if period < 1 || len(values) < period {
		return 0, fmt.Errorf("%w: sma(%d) over %d values", models.ErrInsufficientData, period, len(values))
	}
	var sum float64
	for _, v := range values[len(values)-period:] {
		sum += v
	}
	return sum / float64(period), nil
}

// ATR computes the Average True Range with Wilder's smoothing.
func ATR(candles []models.Candle, period int) (float64, error) {
	if period < 1 || len(candles) < period+1 {
		return 0, fmt.Errorf("%w: atr(%d) needs %d candles, got %d",
			models.ErrInsufficientData, period, period+1, len(candles))
	}
	tr := make([]float64, len(candles)-1)
	for i := 1; i < len(candles); i++ {
		c, prevClose := candles[i], candles[i-1].Close
		tr[i-1] = math.Max(c.High-c.Low, math.Max(math.Abs(c.High-prevClose), math.Abs(c.Low-prevClose)))
	}

	var atr float64
	for _, v := range tr[:period] {
		atr += v
	}
	atr /= float64(period)
	alpha := 1.0 / float64(period)
	for _, v := range tr[period:] {
		atr = atr*(1-alpha) + v*alpha
	}
	return atr, nil
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
