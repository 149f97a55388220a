package usecase

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"SignalGate/internal/domain/models"
	domrepo "SignalGate/internal/domain/repository"
	"SignalGate/internal/services/strategy"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSnapshots struct {
	snap models.MarketSnapshot
	err  error
}

func (f fakeSnapshots) Load(context.Context, string) (models.MarketSnapshot, error) {
	return f.snap, f.err
}

type fakeAnalyzer struct{}

func (fakeAnalyzer) Analyze([]models.Candle) models.CompositeAnalysis {
	return models.CompositeAnalysis{OverallSignal: models.SignalBullish, Confidence: 0.6}
}

type fakePatterns struct{}

func (fakePatterns) Detect([]models.Candle) []models.PatternResult {
	return []models.PatternResult{{Name: "Hammer", Type: models.SignalBullish, Confidence: 70}}
}

func (fakePatterns) Confirm(p []models.PatternResult, _ []models.Candle) []models.PatternResult {
	return p
}

type fakeScorer struct {
	res   strategy.ScoreResult
	panic bool
	calls int
}

func (f *fakeScorer) Score(string, models.MarketSnapshot, models.CompositeAnalysis, []models.PatternResult) strategy.ScoreResult {
	f.calls++
	if f.panic {
		panic("index out of range")
	}
	return f.res
}

type fakeGate struct {
	assessment models.RiskAssessment
	err        error
	calls      int
}

func (f *fakeGate) Evaluate(context.Context, models.StrategySignal) (models.RiskAssessment, error) {
	f.calls++
	return f.assessment, f.err
}

type fakeLedger struct {
	mu   sync.Mutex
	recs []models.RejectionRecord
}

func (f *fakeLedger) Log(_ context.Context, rec models.RejectionRecord) models.RejectionRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec.ID = "rej-" + string(rec.Category)
	f.recs = append(f.recs, rec)
	return rec
}

type fakeDispatcher struct {
	sent []models.ApprovedSignal
	err  error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, sig models.ApprovedSignal) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sig)
	return nil
}

var cycleNow = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

func freshSnapshot(symbol string) models.MarketSnapshot {
	return models.MarketSnapshot{
		Symbol:           symbol,
		PrimaryTimeframe: "1m",
		Candles:          map[string][]models.Candle{"1m": series(symbol, 60, cycleNow)},
		FetchedAt:        cycleNow,
	}
}

func buyCandidate(conf float64) models.StrategySignal {
	return models.StrategySignal{
		StrategyID:      models.CompositeStrategyID,
		Contributors:    []string{"momentum", "personal"},
		Symbol:          "BTCUSDT",
		Action:          models.ActionBuy,
		EntryPrice:      100,
		StopLoss:        98,
		TargetPrice:     106,
		Confidence:      conf,
		RiskRewardRatio: 3,
	}
}

type cycleFixture struct {
	snaps      fakeSnapshots
	scorer     *fakeScorer
	gate       *fakeGate
	ledger     *fakeLedger
	dispatcher *fakeDispatcher
}

func newFixture(candidates ...models.StrategySignal) *cycleFixture {
	return &cycleFixture{
		snaps:      fakeSnapshots{snap: freshSnapshot("BTCUSDT")},
		scorer:     &fakeScorer{res: strategy.ScoreResult{Candidates: candidates, Raw: candidates}},
		gate:       &fakeGate{assessment: models.RiskAssessment{Allowed: true, RecommendedPositionSizePercent: 4}},
		ledger:     &fakeLedger{},
		dispatcher: &fakeDispatcher{},
	}
}

func (f *cycleFixture) cycle(opts ...CycleOption) *ScanCycle {
	opts = append([]CycleOption{WithCycleClock(func() time.Time { return cycleNow })}, opts...)
	return NewScanCycle(f.snaps, fakeAnalyzer{}, fakePatterns{}, f.scorer, f.gate, f.ledger, f.dispatcher, opts...)
}

func TestScanCycleApprovesAndDispatches(t *testing.T) {
	f := newFixture(buyCandidate(0.8))
	rep := f.cycle(WithFilters(FilterConfig{MinConfidence: 0.55, StaleAfterBars: 3})).Run(context.Background(), "BTCUSDT")

	require.NoError(t, rep.Err)
	require.Len(t, rep.Candidates, 1)
	assert.Equal(t, OutcomeApproved, rep.Candidates[0].Outcome)
	assert.Equal(t, 1, rep.Approved())
	require.Len(t, f.dispatcher.sent, 1)
	assert.Equal(t, 4.0, f.dispatcher.sent[0].Assessment.RecommendedPositionSizePercent)
	assert.True(t, f.dispatcher.sent[0].ApprovedAt.Equal(cycleNow))
	assert.Empty(t, f.ledger.recs)
	assert.Len(t, rep.Patterns, 1)
	assert.Equal(t, models.SignalBullish, rep.Analysis.OverallSignal)
}

func TestScanCycleGateRejectionGoesToLedger(t *testing.T) {
	f := newFixture(buyCandidate(0.8))
	f.gate.assessment = models.RiskAssessment{
		Allowed:   false,
		Reason:    "portfolio heat 11.00% exceeds 10.00%",
		Category:  models.CategoryHeat,
		Severity:  models.SeverityMedium,
		Threshold: 10,
		Actual:    11,
	}
	rep := f.cycle().Run(context.Background(), "BTCUSDT")

	require.NoError(t, rep.Err)
	assert.Equal(t, OutcomeRejected, rep.Candidates[0].Outcome)
	require.Len(t, f.ledger.recs, 1)
	rec := f.ledger.recs[0]
	assert.Equal(t, models.CategoryHeat, rec.Category)
	assert.Equal(t, "momentum+personal", rec.StrategyID)
	assert.Equal(t, 11.0, rec.Actual)
	assert.Empty(t, f.dispatcher.sent)
}

func TestScanCycleLogsDiscardedConflicts(t *testing.T) {
	f := newFixture(buyCandidate(0.8))
	f.scorer.res.Discarded = []models.RejectionRecord{{Symbol: "BTCUSDT", StrategyID: "rsi_extreme", Category: models.CategoryConfidence}}
	f.cycle().Run(context.Background(), "BTCUSDT")

	require.Len(t, f.ledger.recs, 1)
	assert.Equal(t, "rsi_extreme", f.ledger.recs[0].StrategyID)
}

func TestScanCyclePreGateFilters(t *testing.T) {
	stale := freshSnapshot("BTCUSDT")
	stale.Candles["1m"] = series("BTCUSDT", 60, cycleNow.Add(-10*time.Minute))

	quiet := freshSnapshot("BTCUSDT")
	quiet.Candles["1m"][59].Volume = 10

	volatile := freshSnapshot("BTCUSDT")
	for i := range volatile.Candles["1m"] {
		c := &volatile.Candles["1m"][i]
		if i%2 == 0 {
			c.Open, c.Close, c.High, c.Low = 100, 110, 111, 99
		} else {
			c.Open, c.Close, c.High, c.Low = 110, 100, 111, 99
		}
	}

	cases := []struct {
		name     string
		snap     models.MarketSnapshot
		conf     float64
		filters  FilterConfig
		category models.RejectionCategory
	}{
		{"low confidence", freshSnapshot("BTCUSDT"), 0.4, FilterConfig{MinConfidence: 0.55}, models.CategoryConfidence},
		{"stale data", stale, 0.8, FilterConfig{StaleAfterBars: 3}, models.CategoryTimeframe},
		{"thin volume", quiet, 0.8, FilterConfig{MinVolumeRatio: 0.3, VolumeLookback: 20}, models.CategoryVolume},
		{"too hot", volatile, 0.8, FilterConfig{MaxHeat: 5, HeatWindow: 20}, models.CategoryHeat},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(buyCandidate(tc.conf))
			f.snaps.snap = tc.snap
			rep := f.cycle(WithFilters(tc.filters)).Run(context.Background(), "BTCUSDT")

			require.NoError(t, rep.Err)
			assert.Equal(t, OutcomeFiltered, rep.Candidates[0].Outcome)
			assert.Zero(t, f.gate.calls, "filtered candidates never reach the gate")
			require.Len(t, f.ledger.recs, 1)
			assert.Equal(t, tc.category, f.ledger.recs[0].Category)
			assert.NotEmpty(t, f.ledger.recs[0].Reason)
		})
	}
}

func TestScanCycleDataUnavailableAbortsSymbol(t *testing.T) {
	f := newFixture(buyCandidate(0.8))
	f.snaps.err = models.ErrDataUnavailable
	rep := f.cycle().Run(context.Background(), "BTCUSDT")

	require.ErrorIs(t, rep.Err, models.ErrDataUnavailable)
	assert.Zero(t, f.scorer.calls)
	assert.Empty(t, rep.Candidates)
}

func TestScanCycleHonoursCancellationBetweenStages(t *testing.T) {
	f := newFixture(buyCandidate(0.8))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep := f.cycle().Run(ctx, "BTCUSDT")

	require.ErrorIs(t, rep.Err, context.Canceled)
	assert.Zero(t, f.scorer.calls)
	assert.Zero(t, f.gate.calls)
}

func TestScanCycleRecoversPanics(t *testing.T) {
	f := newFixture()
	f.scorer.panic = true

	var rep CycleReport
	require.NotPanics(t, func() { rep = f.cycle().Run(context.Background(), "BTCUSDT") })
	require.Error(t, rep.Err)
	assert.Contains(t, rep.Err.Error(), "cycle panic")
}

type panickingPatterns struct{ fakePatterns }

func (panickingPatterns) Detect([]models.Candle) []models.PatternResult {
	panic("detector bug")
}

func TestScanCycleRecoversAnalysisStagePanics(t *testing.T) {
	f := newFixture(buyCandidate(0.8))
	c := NewScanCycle(f.snaps, fakeAnalyzer{}, panickingPatterns{}, f.scorer, f.gate, f.ledger, f.dispatcher,
		WithCycleClock(func() time.Time { return cycleNow }))

	var rep CycleReport
	require.NotPanics(t, func() { rep = c.Run(context.Background(), "BTCUSDT") })
	require.Error(t, rep.Err)
	assert.Contains(t, rep.Err.Error(), "patterns panic: detector bug")
	assert.Zero(t, f.scorer.calls)
	assert.Empty(t, f.dispatcher.sent)

	// the next symbol is unaffected
	rep = f.cycle().Run(context.Background(), "BTCUSDT")
	require.NoError(t, rep.Err)
	assert.Equal(t, 1, rep.Approved())
}

func TestScanCycleLocalGateErrorSkipsCandidate(t *testing.T) {
	f := newFixture(buyCandidate(0.8))
	f.gate.err = models.ErrInvalidPriceData
	rep := f.cycle().Run(context.Background(), "BTCUSDT")

	require.NoError(t, rep.Err)
	assert.Equal(t, OutcomeSkipped, rep.Candidates[0].Outcome)
	assert.Empty(t, f.ledger.recs)
	assert.Empty(t, f.dispatcher.sent)
}

func TestScanCycleDispatchFailureKeepsDecision(t *testing.T) {
	f := newFixture(buyCandidate(0.8))
	f.dispatcher.err = errors.New("broker down")
	rep := f.cycle().Run(context.Background(), "BTCUSDT")

	require.NoError(t, rep.Err)
	assert.Equal(t, OutcomeDispatchFailed, rep.Candidates[0].Outcome)
	assert.Equal(t, 1, f.gate.calls)
}

type staticCandles []models.Candle

func (s staticCandles) GetLatestNCandles(context.Context, string, int, domrepo.Timeframe) ([]models.Candle, error) {
	return s, nil
}

func TestAnalystReport(t *testing.T) {
	a := NewAnalyst(staticCandles(series("ETHUSDT", 60, cycleNow)), fakeAnalyzer{}, fakePatterns{}, FilterConfig{})
	rep, err := a.Analyze(context.Background(), "ETHUSDT", domrepo.TF1m, 60)
	require.NoError(t, err)

	assert.Equal(t, 60, rep.Bars)
	assert.Equal(t, 104.5, rep.LastClose)
	assert.InDelta(t, 1.0, rep.Volume, 1e-12)
	assert.Len(t, rep.Patterns, 1)

	_, err = NewAnalyst(staticCandles(nil), fakeAnalyzer{}, fakePatterns{}, FilterConfig{}).
		Analyze(context.Background(), "ETHUSDT", domrepo.TF1m, 60)
	assert.ErrorIs(t, err, models.ErrDataUnavailable)
}

func TestAnalystValidatesThroughResilientSource(t *testing.T) {
	cs := series("ETHUSDT", 60, cycleNow)
	cs[59].High, cs[59].Close = math.Inf(1), math.Inf(1)
	fake := &fakeCandles{data: map[domrepo.Timeframe][]models.Candle{domrepo.TF1m: cs}}

	a := NewAnalyst(NewResilientCandleSource(fake, SourceConfig{}, nil), fakeAnalyzer{}, fakePatterns{}, FilterConfig{})
	_, err := a.Analyze(context.Background(), "ETHUSDT", domrepo.TF1m, 60)
	assert.ErrorIs(t, err, models.ErrDataUnavailable)
	assert.Equal(t, 1, fake.calls)
}
