package indicators

import (
	"fmt"

	"SignalGate/internal/domain/models"
)

// Engine holds indicator periods. It has no mutable state and is safe for concurrent use.
type Engine struct {
	rsiPeriod   int
	macdFast    int
	macdSlow    int
	macdSignal  int
	profileBins int
}

type Option func(*Engine)

func WithRSIPeriod(period int) Option {
	return func(e *Engine) { e.rsiPeriod = period }
}

func WithMACD(fast, slow, signal int) Option {
	return func(e *Engine) {
		e.macdFast = fast
		e.macdSlow = slow
		e.macdSignal = signal
	}
}

func WithProfileBins(bins int) Option {
	return func(e *Engine) { e.profileBins = bins }
}

func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		rsiPeriod:   14,
		macdFast:    12,
		macdSlow:    26,
		macdSignal:  9,
		profileBins: 20,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) RSI(prices []float64) (models.RSIResult, error) {
	return RSI(prices, e.rsiPeriod)
}

func (e *Engine) MACD(prices []float64) (models.MACDResult, error) {
	return MACD(prices, e.macdFast, e.macdSlow, e.macdSignal)
}

func (e *Engine) VolumeProfile(prices, volumes []float64) (models.VolumeProfile, error) {
	return VolumeProfileOf(prices, volumes, e.profileBins)
}

// Analyze runs AnalyzeAll over a candle window using the last close as the current price.
func (e *Engine) Analyze(candles []models.Candle) models.CompositeAnalysis {
	var current float64
	if len(candles) > 0 {
		current = candles[len(candles)-1].Close
	}
	return e.AnalyzeAll(models.Closes(candles), models.Volumes(candles), current)
}

// AnalyzeAll runs every indicator and tallies directional votes. A failing indicator
// is left nil and its error recorded; the others still vote.
func (e *Engine) AnalyzeAll(prices, volumes []float64, current float64) models.CompositeAnalysis {
	out := models.CompositeAnalysis{OverallSignal: models.SignalNeutral}
	errs := map[string]string{}
	vote := func(s models.Signal, weight int) {
		switch s {
		case models.SignalBullish:
			out.BullishVotes += weight
		case models.SignalBearish:
			out.BearishVotes += weight
		}
	}

	if rsi, err := e.RSI(prices); err != nil {
		errs["rsi"] = err.Error()
	} else {
		out.RSI = &rsi
		vote(rsi.Signal, 1)
	}

	if macd, err := e.MACD(prices); err != nil {
		errs["macd"] = err.Error()
	} else {
		out.MACD = &macd
		weight := 1
		if macd.Crossover != models.CrossoverNone {
			weight = 2
		}
		vote(macd.Direction, weight)
	}

	if len(prices) > 0 {
		hi, lo := prices[0], prices[0]
		for _, p := range prices {
			hi = max(hi, p)
			lo = min(lo, p)
		}
		trend := models.TrendUp
		if prices[len(prices)-1] < prices[0] {
			trend = models.TrendDown
		}
		if fib, err := Fibonacci(hi, lo, trend); err != nil {
			errs["fibonacci"] = err.Error()
		} else {
			out.Fibonacci = fib
		}
	} else {
		errs["fibonacci"] = fmt.Errorf("%w: no prices", models.ErrInsufficientData).Error()
	}

	if vwap, err := VWAP(prices, volumes, current); err != nil {
		errs["vwap"] = err.Error()
	} else {
		out.VWAP = &vwap
		vote(vwap.Result().Signal, 1)
	}

	if vp, err := e.VolumeProfile(prices, volumes); err != nil {
		errs["volume_profile"] = err.Error()
	} else {
		out.VolumeProfile = &vp
		switch {
		case current > vp.POC:
			vote(models.SignalBullish, 1)
		case current < vp.POC:
			vote(models.SignalBearish, 1)
		}
	}

	total := out.BullishVotes + out.BearishVotes
	switch {
	case out.BullishVotes > out.BearishVotes:
		out.OverallSignal = models.SignalBullish
		out.Confidence = float64(out.BullishVotes) / float64(total)
	case out.BearishVotes > out.BullishVotes:
		out.OverallSignal = models.SignalBearish
		out.Confidence = float64(out.BearishVotes) / float64(total)
	}

	if len(errs) > 0 {
		out.Errors = errs
	}
	return out
}
