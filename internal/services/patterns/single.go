package patterns

import (
	"SignalGate/internal/domain/models"
)

func (r *Recognizer) doji(candles []models.Candle) []models.PatternResult {
	c := candles[len(candles)-1]
	rng := c.Range()
	if rng <= 0 {
		return nil
	}
	ratio := c.Body() / rng
	if ratio > r.cfg.DojiBodyRatio {
		return nil
	}
	return []models.PatternResult{{
		Name:        "Doji",
		Type:        models.SignalNeutral,
		Confidence:  clamp(65 + (1-ratio/r.cfg.DojiBodyRatio)*15),
		Reliability: models.ReliabilityLow,
		Description: "Open and close nearly equal: indecision",
	}}
}

// hammer covers Hammer and Hanging Man; they share geometry and differ by prior trend.
func (r *Recognizer) hammer(candles []models.Candle) []models.PatternResult {
	c := candles[len(candles)-1]
	body := c.Body()
	if body <= 0 || c.LowerShadow() < body*r.cfg.ShadowBodyRatio || c.UpperShadow() > body*r.cfg.TinyShadowRatio {
		return nil
	}
	conf := 65.0
	if c.LowerShadow() >= body*3 {
		conf += 10
	}
	trend := r.priorTrend(candles, 0)
	if trend == models.SignalBullish {
		return []models.PatternResult{{
			Name:        "Hanging Man",
			Type:        models.SignalBearish,
			Confidence:  clamp(conf + 5),
			Reliability: models.ReliabilityMedium,
			Description: "Long lower shadow after an advance: selling pressure emerging",
		}}
	}
	if trend == models.SignalBearish {
		conf += 10
	}
	return []models.PatternResult{{
		Name:        "Hammer",
		Type:        models.SignalBullish,
		Confidence:  clamp(conf),
		Reliability: models.ReliabilityMedium,
		Description: "Long lower shadow rejection: potential bullish reversal",
	}}
}

// shootingStar covers Shooting Star and its downtrend twin, the Inverted Hammer.
func (r *Recognizer) shootingStar(candles []models.Candle) []models.PatternResult {
	c := candles[len(candles)-1]
	body := c.Body()
	if body <= 0 || c.UpperShadow() < body*r.cfg.ShadowBodyRatio || c.LowerShadow() > body*r.cfg.TinyShadowRatio {
		return nil
	}
	conf := 65.0
	if c.UpperShadow() >= body*3 {
		conf += 10
	}
	trend := r.priorTrend(candles, 0)
	if trend == models.SignalBearish {
		return []models.PatternResult{{
			Name:        "Inverted Hammer",
			Type:        models.SignalBullish,
			Confidence:  clamp(conf),
			Reliability: models.ReliabilityLow,
			Description: "Long upper shadow after a decline: buyers probing higher",
		}}
	}
	if trend == models.SignalBullish {
		conf += 10
	}
	return []models.PatternResult{{
		Name:        "Shooting Star",
		Type:        models.SignalBearish,
		Confidence:  clamp(conf),
		Reliability: models.ReliabilityMedium,
		Description: "Long upper shadow rejection: potential bearish reversal",
	}}
}

func (r *Recognizer) marubozu(candles []models.Candle) []models.PatternResult {
	c := candles[len(candles)-1]
	rng := c.Range()
	if rng <= 0 || c.Body() == 0 {
		return nil
	}
	limit := rng * r.cfg.MarubozuShadow
	if c.UpperShadow() > limit || c.LowerShadow() > limit {
		return nil
	}
	p := models.PatternResult{
		Name:        "Bullish Marubozu",
		Type:        models.SignalBullish,
		Confidence:  75,
		Reliability: models.ReliabilityMedium,
		Description: "Full-range bullish body with no shadows: strong buying",
	}
	if c.IsBearish() {
		p.Name = "Bearish Marubozu"
		p.Type = models.SignalBearish
		p.Description = "Full-range bearish body with no shadows: strong selling"
	}
	return []models.PatternResult{p}
}
