package ledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"SignalGate/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var now = time.Date(2026, 3, 4, 15, 0, 0, 0, time.UTC) // a Wednesday

func fixedClock() time.Time { return now }

type memStore struct {
	mu      sync.Mutex
	records []models.RejectionRecord
	initErr error
	err     error
	entered chan struct{}
	release chan struct{}
}

func (s *memStore) Init(context.Context) error { return s.initErr }

func (s *memStore) StoreRejections(ctx context.Context, recs []models.RejectionRecord) error {
	if s.entered != nil {
		s.entered <- struct{}{}
		select {
		case <-s.release:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = append(s.records, recs...)
	return nil
}

func (s *memStore) stored() []models.RejectionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.RejectionRecord(nil), s.records...)
}

type memPublisher struct {
	mu  sync.Mutex
	ids []string
}

func (p *memPublisher) PublishRejection(_ context.Context, rec models.RejectionRecord) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = append(p.ids, rec.ID)
	return nil
}

func record(symbol, strategy string, cat models.RejectionCategory, reason string, age time.Duration) models.RejectionRecord {
	return models.RejectionRecord{
		Timestamp:  now.Add(-age),
		Symbol:     symbol,
		StrategyID: strategy,
		Category:   cat,
		Reason:     reason,
	}
}

func TestLogAssignsIdentity(t *testing.T) {
	l := New(DefaultConfig(), WithClock(fixedClock))
	a := l.Log(context.Background(), models.RejectionRecord{Symbol: "BTCUSDT", Category: models.CategoryHeat})
	b := l.Log(context.Background(), models.RejectionRecord{Symbol: "BTCUSDT", Category: models.CategoryHeat})

	assert.NotEmpty(t, a.ID)
	assert.NotEqual(t, a.ID, b.ID)
	assert.Equal(t, now, a.Timestamp)
	assert.Equal(t, models.SeverityMedium, a.Severity)

	kept := l.Log(context.Background(), models.RejectionRecord{ID: "fixed", Timestamp: now.Add(-time.Minute), Severity: models.SeverityHigh})
	assert.Equal(t, "fixed", kept.ID)
	assert.Equal(t, models.SeverityHigh, kept.Severity)
}

func TestRingBufferEvictsOldest(t *testing.T) {
	l := New(Config{Capacity: 3}, WithClock(fixedClock))
	for i := 0; i < 5; i++ {
		l.Log(context.Background(), record(fmt.Sprintf("S%d", i), "momentum", models.CategoryHeat, "r", 0))
	}
	assert.Equal(t, 3, l.Len())

	recent := l.Recent(models.RejectionFilter{})
	require.Len(t, recent, 3)
	assert.Equal(t, "S4", recent[0].Symbol)
	assert.Equal(t, "S2", recent[2].Symbol)
}

func TestRecentFilters(t *testing.T) {
	l := New(DefaultConfig(), WithClock(fixedClock))
	ctx := context.Background()
	l.Log(ctx, record("BTCUSDT", "momentum", models.CategoryHeat, "a", 3*time.Hour))
	l.Log(ctx, record("BTCUSDT", "momentum+personal", models.CategoryCooldown, "b", time.Hour))
	l.Log(ctx, record("ETHUSDT", "rsi_extreme", models.CategoryHeat, "c", time.Minute))

	assert.Len(t, l.Recent(models.RejectionFilter{Symbol: "BTCUSDT"}), 2)
	assert.Len(t, l.Recent(models.RejectionFilter{StrategyID: "personal"}), 1)
	assert.Len(t, l.Recent(models.RejectionFilter{Category: models.CategoryHeat}), 2)
	assert.Len(t, l.Recent(models.RejectionFilter{Since: now.Add(-2 * time.Hour)}), 2)
	assert.Len(t, l.Recent(models.RejectionFilter{Limit: 1}), 1)
}

func TestAnalyticsSuggestsTuningDominantCategory(t *testing.T) {
	l := New(DefaultConfig(), WithClock(fixedClock))
	ctx := context.Background()
	others := []models.RejectionCategory{models.CategoryHeat, models.CategoryRiskReward, models.CategoryVolume, models.CategoryTimeframe, models.CategoryCooldown}
	for i := 0; i < 120; i++ {
		cat := models.CategoryConfidence
		if i >= 70 {
			cat = others[i%len(others)]
		}
		l.Log(ctx, record(fmt.Sprintf("SYM%dUSDT", i%10), "momentum", cat, string(cat)+" filter", 3*time.Hour))
	}

	a := l.Analytics()
	assert.Equal(t, 120, a.TotalRejections)
	assert.Equal(t, 70, a.ByCategory[models.CategoryConfidence])
	assert.Equal(t, 120, a.ByStrategy["momentum"])
	require.Len(t, a.Suggestions, 1)
	s := a.Suggestions[0]
	assert.Equal(t, models.SuggestionTuneFilter, s.Type)
	assert.Equal(t, models.CategoryConfidence, s.Category)
	assert.InDelta(t, 58.3, s.Percentage, 0.05)
	assert.Contains(t, s.Message, "confidence")

	assert.Equal(t, a, l.Analytics(), "analytics are idempotent")
}

func TestAnalyticsSymbolAndPauseSuggestions(t *testing.T) {
	l := New(DefaultConfig(), WithClock(fixedClock))
	ctx := context.Background()
	for i := 0; i < 25; i++ {
		sym := fmt.Sprintf("ALT%dUSDT", i%5)
		if i < 10 {
			sym = "DOGEUSDT"
		}
		cat := models.RejectionCategories[i%len(models.RejectionCategories)]
		l.Log(ctx, record(sym, "volume_spike", cat, "x", time.Duration(i)*time.Minute))
	}

	a := l.Analytics()
	var types []models.SuggestionType
	for _, s := range a.Suggestions {
		types = append(types, s.Type)
	}
	assert.Equal(t, []models.SuggestionType{models.SuggestionExcludeSymbol, models.SuggestionPauseScanning}, types)
	assert.Equal(t, "DOGEUSDT", a.Suggestions[0].Symbol)
	assert.InDelta(t, 40.0, a.Suggestions[0].Percentage, 1e-9)
	assert.Equal(t, 25, a.Suggestions[1].Count)
}

func TestAnalyticsTrendsAndTopReasons(t *testing.T) {
	var recs []models.RejectionRecord
	for i := 0; i < 12; i++ {
		for j := 0; j <= i; j++ {
			recs = append(recs, record("BTCUSDT", "momentum", models.CategoryHeat, fmt.Sprintf("reason-%02d", i), 0))
		}
	}
	recs = append(recs, record("BTCUSDT", "momentum", models.CategoryHeat, "yesterday", 24*time.Hour))

	a := Analyze(recs, now)
	require.Len(t, a.TopReasons, 10)
	assert.Equal(t, models.ReasonCount{Reason: "reason-11", Count: 12}, a.TopReasons[0])
	assert.Equal(t, "reason-02", a.TopReasons[9].Reason)
	assert.Equal(t, len(recs), a.Trends.Hourly[15])
	assert.Equal(t, len(recs)-1, a.Trends.Daily[time.Wednesday])
	assert.Equal(t, 1, a.Trends.Daily[time.Tuesday])
}

func TestAnalyticsEmpty(t *testing.T) {
	a := New(DefaultConfig()).Analytics()
	assert.Zero(t, a.TotalRejections)
	assert.NotNil(t, a.TopReasons)
	assert.NotNil(t, a.Suggestions)
	assert.NotNil(t, a.ByCategory)
}

func TestClearOldRejectionsKeepsSnapshots(t *testing.T) {
	l := New(DefaultConfig(), WithClock(fixedClock))
	ctx := context.Background()
	l.Log(ctx, record("BTCUSDT", "momentum", models.CategoryHeat, "old", 2*time.Hour))
	l.Log(ctx, record("ETHUSDT", "momentum", models.CategoryHeat, "new", 30*time.Minute))

	before := l.Analytics()
	assert.Equal(t, 1, l.ClearOldRejections(time.Hour))
	assert.Equal(t, 0, l.ClearOldRejections(time.Hour))

	assert.Equal(t, 2, before.TotalRejections)
	assert.Equal(t, 1, l.Analytics().TotalRejections)
	assert.Equal(t, "ETHUSDT", l.Recent(models.RejectionFilter{})[0].Symbol)

	l.Log(ctx, record("SOLUSDT", "momentum", models.CategoryHeat, "next", 0))
	assert.Equal(t, 2, l.Len())
}

func TestSubscribe(t *testing.T) {
	l := New(DefaultConfig(), WithClock(fixedClock))
	ch, cancel := l.Subscribe(1)
	slow, cancelSlow := l.Subscribe(1)
	defer cancelSlow()

	l.Log(context.Background(), record("BTCUSDT", "momentum", models.CategoryHeat, "a", 0))
	got := <-ch
	assert.Equal(t, "BTCUSDT", got.Symbol)

	// slow never reads; logging must not block
	for i := 0; i < 5; i++ {
		l.Log(context.Background(), record("ETHUSDT", "momentum", models.CategoryHeat, "b", 0))
	}
	assert.Len(t, slow, 1)

	cancel()
	for range ch {
	}
	cancel()
}

func TestPersistenceMirrorsRecords(t *testing.T) {
	store := &memStore{}
	pub := &memPublisher{}
	l := New(Config{PersistBatch: 2, PersistInterval: time.Hour}, WithClock(fixedClock), WithStore(store), WithPublisher(pub))
	require.NoError(t, l.Start(context.Background()))

	for i := 0; i < 3; i++ {
		l.Log(context.Background(), record("BTCUSDT", "momentum", models.CategoryHeat, "x", 0))
	}
	require.NoError(t, l.Close())

	assert.Len(t, store.stored(), 3)
	assert.Len(t, pub.ids, 3)
	assert.Zero(t, l.Failures())
}

func TestPersistenceFailureIsNonFatal(t *testing.T) {
	store := &memStore{err: errors.New("clickhouse: connection reset")}
	l := New(Config{PersistBatch: 1}, WithClock(fixedClock), WithStore(store))
	require.NoError(t, l.Start(context.Background()))

	for i := 0; i < 3; i++ {
		l.Log(context.Background(), record("BTCUSDT", "momentum", models.CategoryHeat, "x", 0))
	}
	require.NoError(t, l.Close())

	assert.Equal(t, int64(3), l.Failures())
	assert.Equal(t, 3, l.Len())
}

func TestPersistenceQueueFullDropsWithoutBlocking(t *testing.T) {
	store := &memStore{entered: make(chan struct{}), release: make(chan struct{})}
	l := New(Config{PersistBatch: 1, PersistBuffer: 1}, WithClock(fixedClock), WithStore(store))
	require.NoError(t, l.Start(context.Background()))
	ctx := context.Background()

	l.Log(ctx, record("BTCUSDT", "momentum", models.CategoryHeat, "1", 0))
	<-store.entered // worker is now blocked inside the store
	l.Log(ctx, record("BTCUSDT", "momentum", models.CategoryHeat, "2", 0))
	l.Log(ctx, record("BTCUSDT", "momentum", models.CategoryHeat, "3", 0))
	assert.Equal(t, int64(1), l.Failures())

	close(store.release)
	go func() {
		for range store.entered {
		}
	}()
	require.NoError(t, l.Close())
	close(store.entered)
	assert.Len(t, store.stored(), 2)
}

func TestStartFailsWhenStoreInitFails(t *testing.T) {
	l := New(DefaultConfig(), WithStore(&memStore{initErr: errors.New("no such database")}))
	err := l.Start(context.Background())
	assert.ErrorIs(t, err, models.ErrPersistenceFailure)
}

func TestTakeWeightAdjustments(t *testing.T) {
	l := New(DefaultConfig(), WithClock(fixedClock))
	ctx := context.Background()
	for i := 0; i < 10; i++ {
		l.Log(ctx, record("BTCUSDT", "momentum", models.CategoryHeat, "x", 0))
	}
	for i := 0; i < 5; i++ {
		l.Log(ctx, record("BTCUSDT", "rsi_extreme", models.CategoryHeat, "x", 0))
		l.Log(ctx, record("BTCUSDT", "momentum+personal", models.CategoryHeat, "x", 0))
	}

	adj := l.TakeWeightAdjustments(10, 0.05)
	require.Len(t, adj, 1)
	assert.InDelta(t, -0.05*15.0/25.0, adj["momentum"], 1e-12)

	assert.Nil(t, l.TakeWeightAdjustments(10, 0.05))
	assert.Len(t, l.TakeWeightAdjustments(5, 0.05), 2)
}
