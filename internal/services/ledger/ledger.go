package ledger

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"SignalGate/internal/domain/models"
	"SignalGate/internal/domain/repository"
	applogger "SignalGate/pkg/logger"

	"github.com/google/uuid"
)

// Config controls the in-memory buffer and the durable mirror.
type Config struct {
	Capacity        int
	PersistBuffer   int
	PersistBatch    int
	PersistInterval time.Duration
	PersistTimeout  time.Duration
}

func DefaultConfig() Config {
	return Config{
		Capacity:        5000,
		PersistBuffer:   1024,
		PersistBatch:    100,
		PersistInterval: 2 * time.Second,
		PersistTimeout:  5 * time.Second,
	}
}

type Option func(*Ledger)

func WithStore(s repository.RejectionStore) Option {
	return func(l *Ledger) { l.store = s }
}

func WithPublisher(p repository.RejectionPublisher) Option {
	return func(l *Ledger) { l.publisher = p }
}

func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

func WithLogger(lg *applogger.Logger) Option {
	return func(l *Ledger) {
		if lg != nil {
			l.logger = lg.Component("rejection_ledger")
		}
	}
}

func WithMetrics(m repository.Metrics) Option {
	return func(l *Ledger) {
		if m != nil {
			l.metrics = m
		}
	}
}

// Ledger keeps the most recent rejections in a ring buffer, mirrors them to
// durable storage in the background and fans them out to subscribers.
// Logging never blocks on storage.
type Ledger struct {
	cfg Config

	mu      sync.RWMutex
	ring    []models.RejectionRecord
	start   int
	size    int
	pending map[string]int

	subsMu  sync.Mutex
	subs    map[int]chan models.RejectionRecord
	nextSub int

	queue     chan models.RejectionRecord
	done      chan struct{}
	wg        sync.WaitGroup
	started   atomic.Bool
	closeOnce sync.Once
	failures  atomic.Int64

	store     repository.RejectionStore
	publisher repository.RejectionPublisher
	now       func() time.Time
	logger    *applogger.Logger
	metrics   repository.Metrics
}

func New(cfg Config, opts ...Option) *Ledger {
	def := DefaultConfig()
	if cfg.Capacity <= 0 {
		cfg.Capacity = def.Capacity
	}
	if cfg.PersistBuffer <= 0 {
		cfg.PersistBuffer = def.PersistBuffer
	}
	if cfg.PersistBatch <= 0 {
		cfg.PersistBatch = def.PersistBatch
	}
	if cfg.PersistInterval <= 0 {
		cfg.PersistInterval = def.PersistInterval
	}
	if cfg.PersistTimeout <= 0 {
		cfg.PersistTimeout = def.PersistTimeout
	}

	l := &Ledger{
		cfg:     cfg,
		ring:    make([]models.RejectionRecord, cfg.Capacity),
		pending: make(map[string]int),
		subs:    make(map[int]chan models.RejectionRecord),
		queue:   make(chan models.RejectionRecord, cfg.PersistBuffer),
		done:    make(chan struct{}),
		now:     time.Now,
		logger:  applogger.NewNop(),
		metrics: repository.NopMetrics{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Start initializes the store and launches the persistence worker. Without a
// store or publisher it is a no-op.
func (l *Ledger) Start(ctx context.Context) error {
	if l.store == nil && l.publisher == nil {
		return nil
	}
	if !l.started.CompareAndSwap(false, true) {
		return nil
	}
	if l.store != nil {
		initCtx, cancel := context.WithTimeout(ctx, l.cfg.PersistTimeout)
		err := l.store.Init(initCtx)
		cancel()
		if err != nil {
			l.started.Store(false)
			return fmt.Errorf("%w: init rejection store: %v", models.ErrPersistenceFailure, err)
		}
	}
	l.wg.Add(1)
	go l.persistLoop()
	return nil
}

// Close flushes queued records and closes every subscription.
func (l *Ledger) Close() error {
	l.closeOnce.Do(func() {
		close(l.done)
		l.wg.Wait()

		l.subsMu.Lock()
		for id, ch := range l.subs {
			close(ch)
			delete(l.subs, id)
		}
		l.subsMu.Unlock()
	})
	return nil
}

// Log records one rejection and returns it with its id and timestamp filled in.
func (l *Ledger) Log(_ context.Context, rec models.RejectionRecord) models.RejectionRecord {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = l.now()
	}
	if rec.Severity == "" {
		rec.Severity = models.SeverityMedium
	}

	l.mu.Lock()
	l.push(rec)
	for _, id := range models.SplitLedgerID(rec.StrategyID) {
		l.pending[id]++
	}
	l.mu.Unlock()

	l.metrics.RecordRejection(rec.Category)
	l.logger.Debug("rejection logged",
		applogger.Symbol(rec.Symbol),
		applogger.Strategy(rec.StrategyID),
		applogger.String("category", string(rec.Category)),
		applogger.String("reason", rec.Reason))

	if l.started.Load() {
		select {
		case l.queue <- rec:
		default:
			l.persistFailed(fmt.Errorf("%w: queue full, dropped %s", models.ErrPersistenceFailure, rec.ID), 1)
		}
	}
	l.fanOut(rec)
	return rec
}

// push appends to the ring, evicting the oldest record when full. Caller holds mu.
func (l *Ledger) push(rec models.RejectionRecord) {
	c := len(l.ring)
	if l.size < c {
		l.ring[(l.start+l.size)%c] = rec
		l.size++
		return
	}
	l.ring[l.start] = rec
	l.start = (l.start + 1) % c
}

// snapshot copies the buffer oldest first.
func (l *Ledger) snapshot() []models.RejectionRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.RejectionRecord, l.size)
	for i := 0; i < l.size; i++ {
		out[i] = l.ring[(l.start+i)%len(l.ring)]
	}
	return out
}

func (l *Ledger) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.size
}

// ClearOldRejections evicts records older than maxAge and returns how many were removed.
// Analytics already computed from an earlier snapshot are unaffected.
func (l *Ledger) ClearOldRejections(maxAge time.Duration) int {
	cutoff := l.now().Add(-maxAge)

	l.mu.Lock()
	defer l.mu.Unlock()

	kept := make([]models.RejectionRecord, 0, l.size)
	for i := 0; i < l.size; i++ {
		rec := l.ring[(l.start+i)%len(l.ring)]
		if !rec.Timestamp.Before(cutoff) {
			kept = append(kept, rec)
		}
	}
	removed := l.size - len(kept)
	if removed == 0 {
		return 0
	}

	l.ring = make([]models.RejectionRecord, len(l.ring))
	copy(l.ring, kept)
	l.start, l.size = 0, len(kept)
	l.logger.Debug("old rejections cleared", applogger.Int("removed", removed), applogger.Int("kept", len(kept)))
	return removed
}

// Recent lists records newest first.
func (l *Ledger) Recent(f models.RejectionFilter) []models.RejectionRecord {
	limit := f.Limit
	if limit <= 0 {
		limit = 100
	}
	all := l.snapshot()
	out := make([]models.RejectionRecord, 0, min(limit, len(all)))
	for i := len(all) - 1; i >= 0 && len(out) < limit; i-- {
		rec := all[i]
		if f.Symbol != "" && rec.Symbol != f.Symbol {
			continue
		}
		if f.StrategyID != "" && !containsStrategy(rec.StrategyID, f.StrategyID) {
			continue
		}
		if f.Category != "" && rec.Category != f.Category {
			continue
		}
		if !f.Since.IsZero() && rec.Timestamp.Before(f.Since) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func containsStrategy(ledgerID, id string) bool {
	for _, s := range models.SplitLedgerID(ledgerID) {
		if s == id {
			return true
		}
	}
	return false
}

// Failures counts records that could not be mirrored.
func (l *Ledger) Failures() int64 { return l.failures.Load() }

// TakeWeightAdjustments turns rejections accumulated since the last call into
// negative weight deltas. A strategy needs at least minSamples pending rejections;
// its delta is -penalty times its share of all pending rejections, and its
// counter is reset once consumed.
func (l *Ledger) TakeWeightAdjustments(minSamples int, penalty float64) map[string]float64 {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := 0
	for _, n := range l.pending {
		total += n
	}
	if total == 0 {
		return nil
	}
	out := make(map[string]float64)
	for id, n := range l.pending {
		if id == "" || n < minSamples {
			continue
		}
		out[id] = -penalty * float64(n) / float64(total)
		delete(l.pending, id)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
