package models

type Signal string

const (
	SignalBullish Signal = "bullish"
	SignalBearish Signal = "bearish"
	SignalNeutral Signal = "neutral"
)

type RSIState string

const (
	RSIOversold   RSIState = "oversold"
	RSIOverbought RSIState = "overbought"
	RSINeutral    RSIState = "neutral"
)

type MACDCrossover string

const (
	CrossoverBullish MACDCrossover = "bullish_crossover"
	CrossoverBearish MACDCrossover = "bearish_crossover"
	CrossoverNone    MACDCrossover = "none"
)

type Trend string

const (
	TrendUp   Trend = "up"
	TrendDown Trend = "down"
)

type LevelType string

const (
	LevelSupport    LevelType = "support"
	LevelResistance LevelType = "resistance"
)

type VWAPPosition string

const (
	VWAPAbove VWAPPosition = "above"
	VWAPBelow VWAPPosition = "below"
	VWAPAt    VWAPPosition = "at"
)

// IndicatorResult is the common shape every indicator reports.
type IndicatorResult struct {
	Name   string             `json:"name"`
	Values map[string]float64 `json:"values"`
	Signal Signal             `json:"signal"`
	State  string             `json:"state,omitempty"`
}

type RSIResult struct {
	Value  float64  `json:"value"`
	State  RSIState `json:"state"`
	Signal Signal   `json:"signal"`
}

func (r RSIResult) Result() IndicatorResult {
	return IndicatorResult{
		Name:   "rsi",
		Values: map[string]float64{"rsi": r.Value},
		Signal: r.Signal,
		State:  string(r.State),
	}
}

type MACDResult struct {
	MACD      float64       `json:"macd"`
	Signal    float64       `json:"signal"`
	Histogram float64       `json:"histogram"`
	Crossover MACDCrossover `json:"crossover"`
	Direction Signal        `json:"direction"`
}

func (m MACDResult) Result() IndicatorResult {
	return IndicatorResult{
		Name:   "macd",
		Values: map[string]float64{"macd": m.MACD, "signal": m.Signal, "histogram": m.Histogram},
		Signal: m.Direction,
		State:  string(m.Crossover),
	}
}

type FibonacciLevel struct {
	Level float64   `json:"level"`
	Price float64   `json:"price"`
	Type  LevelType `json:"type"`
}

type VWAPResult struct {
	VWAP     float64      `json:"vwap"`
	Position VWAPPosition `json:"position"`
	Strength float64      `json:"strength"`
}

func (v VWAPResult) Result() IndicatorResult {
	sig := SignalNeutral
	switch v.Position {
	case VWAPAbove:
		sig = SignalBullish
	case VWAPBelow:
		sig = SignalBearish
	}
	return IndicatorResult{
		Name:   "vwap",
		Values: map[string]float64{"vwap": v.VWAP, "strength": v.Strength},
		Signal: sig,
		State:  string(v.Position),
	}
}

type VolumeProfile struct {
	POC             float64   `json:"poc"`
	VAH             float64   `json:"vah"`
	VAL             float64   `json:"val"`
	HighVolumeNodes []float64 `json:"high_volume_nodes"`
	LowVolumeNodes  []float64 `json:"low_volume_nodes"`
}

// CompositeAnalysis is the output of the full indicator pass. Nil members failed
// and their reasons are in Errors.
type CompositeAnalysis struct {
	RSI           *RSIResult        `json:"rsi,omitempty"`
	MACD          *MACDResult       `json:"macd,omitempty"`
	Fibonacci     []FibonacciLevel  `json:"fibonacci,omitempty"`
	VWAP          *VWAPResult       `json:"vwap,omitempty"`
	VolumeProfile *VolumeProfile    `json:"volume_profile,omitempty"`
	OverallSignal Signal            `json:"overall_signal"`
	Confidence    float64           `json:"confidence"`
	BullishVotes  int               `json:"bullish_votes"`
	BearishVotes  int               `json:"bearish_votes"`
	Errors        map[string]string `json:"errors,omitempty"`
}
