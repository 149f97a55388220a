package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"SignalGate/internal/domain/models"
	"SignalGate/internal/services/strategy"
	"SignalGate/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRunner struct {
	delay    time.Duration
	inflight atomic.Int32
	peak     atomic.Int32
	calls    atomic.Int32
	onRun    func(ctx context.Context, symbol string) CycleReport
}

func (f *fakeRunner) Run(ctx context.Context, symbol string) CycleReport {
	f.calls.Add(1)
	n := f.inflight.Add(1)
	defer f.inflight.Add(-1)
	for {
		p := f.peak.Load()
		if n <= p || f.peak.CompareAndSwap(p, n) {
			break
		}
	}
	if f.onRun != nil {
		return f.onRun(ctx, symbol)
	}
	time.Sleep(f.delay)
	return CycleReport{Symbol: symbol, Candidates: []CandidateResult{{Outcome: OutcomeApproved}}}
}

type fakeMaintenance struct {
	mu      sync.Mutex
	deltas  map[string]float64
	cleared int
}

func (f *fakeMaintenance) TakeWeightAdjustments(int, float64) map[string]float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	d := f.deltas
	f.deltas = nil
	return d
}

func (f *fakeMaintenance) ClearOldRejections(time.Duration) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cleared++
	return 1
}

type fakeWeightStore struct {
	mu    sync.Mutex
	saved [][]models.StrategyWeight
	load  []models.StrategyWeight
	err   error
}

func (f *fakeWeightStore) SaveWeights(_ context.Context, w []models.StrategyWeight) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.saved = append(f.saved, w)
	return f.err
}

func (f *fakeWeightStore) LoadWeights(context.Context) ([]models.StrategyWeight, error) {
	return f.load, f.err
}

type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func symbols(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = string(rune('A'+i)) + "USDT"
	}
	return out
}

func TestSchedulerBoundsConcurrency(t *testing.T) {
	runner := &fakeRunner{delay: 20 * time.Millisecond}
	s := NewScheduler(SchedulerConfig{
		Symbols:        symbols(6),
		Interval:       time.Minute,
		CycleTimeout:   5 * time.Second,
		MaxConcurrency: 2,
	}, runner, nil, nil)

	rep := s.Tick(context.Background())

	assert.Equal(t, 6, rep.Symbols)
	assert.Equal(t, 6, rep.Completed)
	assert.Equal(t, 6, rep.Approved)
	assert.Zero(t, rep.Failed)
	assert.False(t, rep.TimedOut)
	assert.LessOrEqual(t, runner.peak.Load(), int32(2))
	assert.Equal(t, int32(6), runner.calls.Load())
}

func TestSchedulerAppliesFeedbackBeforeCycles(t *testing.T) {
	book := strategy.NewWeightBook(0.1, 0.5, []string{"momentum", "personal"})
	ledger := &fakeMaintenance{deltas: map[string]float64{"momentum": -0.1}}
	store := &fakeWeightStore{}

	var seen atomic.Value
	runner := &fakeRunner{onRun: func(_ context.Context, symbol string) CycleReport {
		seen.Store(book.Snapshot().Weight("momentum"))
		return CycleReport{Symbol: symbol}
	}}
	s := NewScheduler(SchedulerConfig{
		Symbols:              []string{"BTCUSDT"},
		AdjustmentMinSamples: 1,
		AdjustmentPenalty:    0.1,
	}, runner, ledger, book, WithWeightStore(store))

	s.Tick(context.Background())

	assert.InDelta(t, 0.4, seen.Load().(float64), 1e-12)
	assert.InDelta(t, 0.5, book.Snapshot().Weight("personal"), 1e-12)
	require.Len(t, store.saved, 1)
	require.Len(t, store.saved[0], 2)
	assert.Equal(t, "momentum", store.saved[0][0].StrategyID)
	assert.InDelta(t, 0.4, store.saved[0][0].Weight, 1e-12)

	// nothing pending: no new version, nothing persisted
	version := book.Snapshot().Version
	s.Tick(context.Background())
	assert.Equal(t, version, book.Snapshot().Version)
	assert.Len(t, store.saved, 1)
}

func TestSchedulerCycleTimeout(t *testing.T) {
	runner := &fakeRunner{onRun: func(ctx context.Context, symbol string) CycleReport {
		<-ctx.Done()
		return CycleReport{Symbol: symbol, Err: ctx.Err()}
	}}
	s := NewScheduler(SchedulerConfig{
		Symbols:        symbols(3),
		CycleTimeout:   30 * time.Millisecond,
		MaxConcurrency: 1,
	}, runner, nil, nil)

	rep := s.Tick(context.Background())

	assert.True(t, rep.TimedOut)
	assert.GreaterOrEqual(t, rep.Failed, 1)
	assert.Less(t, rep.Completed, 3, "symbols after the deadline are not started")
}

func TestSchedulerSkipsTickWhenLockHeld(t *testing.T) {
	locks := cache.NewMemoryCache(cache.WithMemoryCleanup(0))
	defer locks.Close()
	ok, err := locks.TryLock(context.Background(), "scan_tick", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)

	runner := &fakeRunner{}
	s := NewScheduler(SchedulerConfig{Symbols: symbols(2), LockTTL: time.Minute}, runner, nil, nil, WithTickLock(locks))

	rep := s.Tick(context.Background())
	assert.Zero(t, rep.Completed)
	assert.Zero(t, runner.calls.Load())

	require.NoError(t, locks.Unlock(context.Background(), "scan_tick"))
	rep = s.Tick(context.Background())
	assert.Equal(t, 2, rep.Completed)

	// released after the tick
	ok, err = locks.TryLock(context.Background(), "scan_tick", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestSchedulerClearsOldRejectionsOnInterval(t *testing.T) {
	clk := &stepClock{t: time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)}
	ledger := &fakeMaintenance{}
	s := NewScheduler(SchedulerConfig{
		Symbols:       []string{"BTCUSDT"},
		ClearInterval: time.Hour,
		MaxAge:        24 * time.Hour,
	}, &fakeRunner{}, ledger, nil, WithSchedulerClock(clk.Now))

	s.Tick(context.Background())
	assert.Zero(t, ledger.cleared)

	clk.Advance(30 * time.Minute)
	s.Tick(context.Background())
	assert.Zero(t, ledger.cleared)

	clk.Advance(31 * time.Minute)
	s.Tick(context.Background())
	assert.Equal(t, 1, ledger.cleared)

	s.Tick(context.Background())
	assert.Equal(t, 1, ledger.cleared)
}

func TestSchedulerRunStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	runner := &fakeRunner{onRun: func(_ context.Context, symbol string) CycleReport {
		cancel()
		return CycleReport{Symbol: symbol}
	}}
	s := NewScheduler(SchedulerConfig{Symbols: []string{"BTCUSDT"}, Interval: 10 * time.Millisecond}, runner, nil, nil)

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop")
	}
	assert.Equal(t, int32(1), runner.calls.Load())
}
