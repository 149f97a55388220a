package patterns

import (
	"SignalGate/internal/domain/models"
)

func (r *Recognizer) engulfing(candles []models.Candle) []models.PatternResult {
	cs, ok := tail(candles, 2)
	if !ok {
		return nil
	}
	prev, curr := cs[0], cs[1]
	if curr.Body() <= prev.Body() || prev.Body() == 0 {
		return nil
	}
	conf := 70.0
	if curr.Body() >= prev.Body()*1.5 {
		conf += 10
	}
	trend := r.priorTrend(candles, 1)

	switch {
	case prev.IsBearish() && curr.IsBullish() && curr.Open <= prev.Close && curr.Close >= prev.Open:
		if trend == models.SignalBearish {
			conf += 10
		}
		return []models.PatternResult{{
			Name:        "Bullish Engulfing",
			Type:        models.SignalBullish,
			Confidence:  clamp(conf),
			Reliability: models.ReliabilityHigh,
			Description: "Bullish body fully engulfs the prior bearish body",
		}}
	case prev.IsBullish() && curr.IsBearish() && curr.Open >= prev.Close && curr.Close <= prev.Open:
		if trend == models.SignalBullish {
			conf += 10
		}
		return []models.PatternResult{{
			Name:        "Bearish Engulfing",
			Type:        models.SignalBearish,
			Confidence:  clamp(conf),
			Reliability: models.ReliabilityHigh,
			Description: "Bearish body fully engulfs the prior bullish body",
		}}
	}
	return nil
}

// piercing covers Piercing Line and Dark Cloud Cover.
func (r *Recognizer) piercing(candles []models.Candle) []models.PatternResult {
	cs, ok := tail(candles, 2)
	if !ok {
		return nil
	}
	prev, curr := cs[0], cs[1]
	mid := midpoint(prev)

	switch {
	case prev.IsBearish() && curr.IsBullish() && curr.Open < prev.Close && curr.Close > mid && curr.Close < prev.Open:
		return []models.PatternResult{{
			Name:        "Piercing Line",
			Type:        models.SignalBullish,
			Confidence:  70,
			Reliability: models.ReliabilityMedium,
			Description: "Opens below the prior close and recovers past its midpoint",
		}}
	case prev.IsBullish() && curr.IsBearish() && curr.Open > prev.Close && curr.Close < mid && curr.Close > prev.Open:
		return []models.PatternResult{{
			Name:        "Dark Cloud Cover",
			Type:        models.SignalBearish,
			Confidence:  70,
			Reliability: models.ReliabilityMedium,
			Description: "Opens above the prior close and falls past its midpoint",
		}}
	}
	return nil
}

func (r *Recognizer) harami(candles []models.Candle) []models.PatternResult {
	cs, ok := tail(candles, 2)
	if !ok {
		return nil
	}
	prev, curr := cs[0], cs[1]
	if curr.Body() == 0 || curr.Body() >= prev.Body() {
		return nil
	}
	if bodyTop(curr) > bodyTop(prev) || bodyBottom(curr) < bodyBottom(prev) {
		return nil
	}
	switch {
	case prev.IsBearish() && curr.IsBullish():
		return []models.PatternResult{{
			Name:        "Bullish Harami",
			Type:        models.SignalBullish,
			Confidence:  65,
			Reliability: models.ReliabilityLow,
			Description: "Small bullish body inside the prior bearish body",
		}}
	case prev.IsBullish() && curr.IsBearish():
		return []models.PatternResult{{
			Name:        "Bearish Harami",
			Type:        models.SignalBearish,
			Confidence:  65,
			Reliability: models.ReliabilityLow,
			Description: "Small bearish body inside the prior bullish body",
		}}
	}
	return nil
}

func (r *Recognizer) strong(c models.Candle) bool {
	rng := c.Range()
	return rng > 0 && c.Body()/rng >= r.cfg.StrongBodyRatio
}

// star covers Morning Star and Evening Star.
func (r *Recognizer) star(candles []models.Candle) []models.PatternResult {
	cs, ok := tail(candles, 3)
	if !ok {
		return nil
	}
	first, middle, last := cs[0], cs[1], cs[2]
	if !r.strong(first) || !r.strong(last) {
		return nil
	}
	if rng := middle.Range(); rng > 0 && middle.Body()/rng > r.cfg.StarBodyRatio {
		return nil
	}
	mid := midpoint(first)

	switch {
	case first.IsBearish() && last.IsBullish() && last.Close > mid:
		return []models.PatternResult{{
			Name:        "Morning Star",
			Type:        models.SignalBullish,
			Confidence:  80,
			Reliability: models.ReliabilityHigh,
			Description: "Three-candle bullish reversal through a small-bodied star",
		}}
	case first.IsBullish() && last.IsBearish() && last.Close < mid:
		return []models.PatternResult{{
			Name:        "Evening Star",
			Type:        models.SignalBearish,
			Confidence:  80,
			Reliability: models.ReliabilityHigh,
			Description: "Three-candle bearish reversal through a small-bodied star",
		}}
	}
	return nil
}

// threeCandles covers Three White Soldiers and Three Black Crows.
func (r *Recognizer) threeCandles(candles []models.Candle) []models.PatternResult {
	cs, ok := tail(candles, 3)
	if !ok {
		return nil
	}
	c1, c2, c3 := cs[0], cs[1], cs[2]
	conf := 75.0
	if r.strong(c1) && r.strong(c2) && r.strong(c3) {
		conf += 5
	}

	opensWithin := func(c, prev models.Candle) bool {
		return c.Open >= bodyBottom(prev) && c.Open <= bodyTop(prev)
	}

	switch {
	case c1.IsBullish() && c2.IsBullish() && c3.IsBullish() &&
		opensWithin(c2, c1) && c2.Close > c1.Close &&
		opensWithin(c3, c2) && c3.Close > c2.Close:
		return []models.PatternResult{{
			Name:        "Three White Soldiers",
			Type:        models.SignalBullish,
			Confidence:  conf,
			Reliability: models.ReliabilityHigh,
			Description: "Three advancing bullish candles, each opening within the prior body",
		}}
	case c1.IsBearish() && c2.IsBearish() && c3.IsBearish() &&
		opensWithin(c2, c1) && c2.Close < c1.Close &&
		opensWithin(c3, c2) && c3.Close < c2.Close:
		return []models.PatternResult{{
			Name:        "Three Black Crows",
			Type:        models.SignalBearish,
			Confidence:  conf,
			Reliability: models.ReliabilityHigh,
			Description: "Three declining bearish candles, each opening within the prior body",
		}}
	}
	return nil
}
