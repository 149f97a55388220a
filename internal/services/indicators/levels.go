package indicators

import (
	"fmt"
	"math"
	"sort"

	"SignalGate/internal/domain/models"
)

// FibonacciRatios are the retracement levels reported, ascending.
var FibonacciRatios = []float64{0, 0.236, 0.382, 0.5, 0.618, 0.786, 1}

const (
	vwapDeadbandPercent = 0.2
	vwapStrengthScale   = 10.0
	valueAreaShare      = 0.70
	highVolumeFactor    = 1.5
	lowVolumeFactor     = 0.5
)

// Fibonacci returns retracement levels between low and high in ratio order.
// Prices run from high to low on an uptrend and from low to high on a downtrend.
func Fibonacci(high, low float64, trend models.Trend) ([]models.FibonacciLevel, error) {
	switch {
	case !models.Finite(high, low):
		return nil, fmt.Errorf("%w: fibonacci non-finite bounds %v/%v", models.ErrInvalidPriceData, high, low)
	case low < 0:
		return nil, fmt.Errorf("%w: fibonacci negative low %.8f", models.ErrInvalidPriceData, low)
	case high < low:
		return nil, fmt.Errorf("%w: fibonacci high %.8f below low %.8f", models.ErrInvalidPriceData, high, low)
	}
	up := trend != models.TrendDown
	rng := high - low

	levels := make([]models.FibonacciLevel, 0, len(FibonacciRatios))
	for _, r := range FibonacciRatios {
		lvl := models.FibonacciLevel{Level: r}
		if up {
			lvl.Price = high - rng*r
		} else {
			lvl.Price = low + rng*r
		}
		if (r < 0.5) == up {
			lvl.Type = models.LevelResistance
		} else {
			lvl.Type = models.LevelSupport
		}
		levels = append(levels, lvl)
	}
	return levels, nil
}

// VWAP computes the volume-weighted average price and where current sits against it.
func VWAP(prices, volumes []float64, current float64) (models.VWAPResult, error) {
	if len(prices) == 0 || len(prices) != len(volumes) {
		return models.VWAPResult{}, fmt.Errorf("%w: vwap got %d prices and %d volumes",
			models.ErrInsufficientData, len(prices), len(volumes))
	}
	if !models.Finite(prices...) || !models.Finite(volumes...) || !models.Finite(current) {
		return models.VWAPResult{}, fmt.Errorf("%w: vwap got non-finite input", models.ErrInvalidPriceData)
	}
	var pv, vol float64
	for i, p := range prices {
		pv += p * volumes[i]
		vol += volumes[i]
	}
	if vol <= 0 {
		return models.VWAPResult{}, fmt.Errorf("%w: vwap total volume is zero", models.ErrDegenerateSeries)
	}
	vwap := pv / vol
	if vwap <= 0 || !models.Finite(vwap) {
		return models.VWAPResult{}, fmt.Errorf("%w: vwap %.8f", models.ErrInvalidPriceData, vwap)
	}

	dev := (current - vwap) / vwap * 100
	res := models.VWAPResult{
		VWAP:     vwap,
		Position: models.VWAPAt,
		Strength: math.Min(math.Abs(dev)*vwapStrengthScale, 100),
	}
	switch {
	case dev > vwapDeadbandPercent:
		res.Position = models.VWAPAbove
	case dev < -vwapDeadbandPercent:
		res.Position = models.VWAPBelow
	}
	return res, nil
}

// VolumeProfileOf buckets traded volume into equal-width price bins.
// Reported prices are bin centres.
func VolumeProfileOf(prices, volumes []float64, bins int) (models.VolumeProfile, error) {
	if bins < 1 {
		return models.VolumeProfile{}, fmt.Errorf("volume profile: bins must be positive, got %d", bins)
	}
	if len(prices) == 0 || len(prices) != len(volumes) {
		return models.VolumeProfile{}, fmt.Errorf("%w: volume profile got %d prices and %d volumes",
			models.ErrInsufficientData, len(prices), len(volumes))
	}
	if !models.Finite(prices...) || !models.Finite(volumes...) {
		return models.VolumeProfile{}, fmt.Errorf("%w: volume profile got non-finite input", models.ErrInvalidPriceData)
	}

	lo, hi := prices[0], prices[0]
	for _, p := range prices[1:] {
		lo = math.Min(lo, p)
		hi = math.Max(hi, p)
	}
	if hi-lo == 0 || !models.Finite(hi-lo) {
		return models.VolumeProfile{}, fmt.Errorf("%w: zero price range", models.ErrDegenerateSeries)
	}

	width := (hi - lo) / float64(bins)
	binVol := make([]float64, bins)
	var total float64
	for i, p := range prices {
		if volumes[i] < 0 {
			return models.VolumeProfile{}, fmt.Errorf("%w: negative volume at %d", models.ErrInvalidPriceData, i)
		}
		idx := min(int((p-lo)/width), bins-1)
		binVol[idx] += volumes[i]
		total += volumes[i]
	}
	if total == 0 {
		return models.VolumeProfile{}, fmt.Errorf("%w: zero volume", models.ErrDegenerateSeries)
	}

	center := func(i int) float64 { return lo + width*(float64(i)+0.5) }

	order := make([]int, bins)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return binVol[order[a]] > binVol[order[b]] })

	// order[0] is the POC, so it is always inside the value area.
	loIdx, hiIdx := order[0], order[0]
	var cum float64
	for _, idx := range order {
		cum += binVol[idx]
		loIdx = min(loIdx, idx)
		hiIdx = max(hiIdx, idx)
		if cum >= total*valueAreaShare {
			break
		}
	}

	mean := total / float64(bins)
	res := models.VolumeProfile{
		POC:             center(order[0]),
		VAL:             center(loIdx),
		VAH:             center(hiIdx),
		HighVolumeNodes: []float64{},
		LowVolumeNodes:  []float64{},
	}
	for i, v := range binVol {
		switch {
		case v > mean*highVolumeFactor:
			res.HighVolumeNodes = append(res.HighVolumeNodes, center(i))
		case v < mean*lowVolumeFactor:
			res.LowVolumeNodes = append(res.LowVolumeNodes, center(i))
		}
	}
	return res, nil
}
