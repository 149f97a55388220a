package usecase

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"SignalGate/internal/domain/models"
	domrepo "SignalGate/internal/domain/repository"
	"SignalGate/internal/services/strategy"
	"SignalGate/pkg/cache"
	applogger "SignalGate/pkg/logger"
)

// CycleRunner evaluates one symbol.
type CycleRunner interface {
	Run(ctx context.Context, symbol string) CycleReport
}

// LedgerMaintenance is the part of the rejection ledger the scheduler drives between cycles.
type LedgerMaintenance interface {
	TakeWeightAdjustments(minSamples int, penalty float64) map[string]float64
	ClearOldRejections(maxAge time.Duration) int
}

type SchedulerConfig struct {
	Symbols              []string
	Interval             time.Duration
	CycleTimeout         time.Duration
	MaxConcurrency       int
	ClearInterval        time.Duration
	MaxAge               time.Duration
	AdjustmentMinSamples int
	AdjustmentPenalty    float64
	// LockTTL > 0 makes a tick take a cache lock so only one instance scans at a time.
	LockTTL time.Duration
}

// TickReport aggregates one tick across symbols.
type TickReport struct {
	Started   time.Time
	Duration  time.Duration
	Symbols   int
	Completed int
	Approved  int
	Failed    int
	TimedOut  bool
}

// Scheduler fans each tick out across symbols with bounded concurrency and
// applies ledger feedback to the weights before the fan-out.
type Scheduler struct {
	cfg     SchedulerConfig
	runner  CycleRunner
	ledger  LedgerMaintenance
	weights *strategy.WeightBook
	store   domrepo.WeightStore
	lock    cache.Service
	metrics domrepo.Metrics
	logger  *applogger.Logger
	now     func() time.Time

	lastClear time.Time
	ticks     atomic.Int64
}

type SchedulerOption func(*Scheduler)

func WithWeightStore(s domrepo.WeightStore) SchedulerOption {
	return func(sc *Scheduler) { sc.store = s }
}

func WithTickLock(c cache.Service) SchedulerOption {
	return func(sc *Scheduler) { sc.lock = c }
}

func WithSchedulerMetrics(m domrepo.Metrics) SchedulerOption {
	return func(sc *Scheduler) {
		if m != nil {
			sc.metrics = m
		}
	}
}

func WithSchedulerLogger(l *applogger.Logger) SchedulerOption {
	return func(sc *Scheduler) {
		if l != nil {
			sc.logger = l.Component("scheduler")
		}
	}
}

func WithSchedulerClock(now func() time.Time) SchedulerOption {
	return func(sc *Scheduler) { sc.now = now }
}

func NewScheduler(cfg SchedulerConfig, runner CycleRunner, ledger LedgerMaintenance, weights *strategy.WeightBook, opts ...SchedulerOption) *Scheduler {
	if cfg.MaxConcurrency < 1 {
		cfg.MaxConcurrency = 1
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = cfg.Interval
	}
	s := &Scheduler{
		cfg:     cfg,
		runner:  runner,
		ledger:  ledger,
		weights: weights,
		metrics: domrepo.NopMetrics{},
		logger:  applogger.NewNop(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lastClear = s.now()
	return s
}

// Run ticks until ctx is cancelled. The first tick fires immediately.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started",
		applogger.Int("symbols", len(s.cfg.Symbols)),
		applogger.Duration("interval", s.cfg.Interval),
		applogger.Int("concurrency", s.cfg.MaxConcurrency))

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		s.Tick(ctx)
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped", applogger.Int64("ticks", s.ticks.Load()))
			return nil
		case <-ticker.C:
		}
	}
}

// Tick runs one full pass: feedback, fan-out, maintenance.
func (s *Scheduler) Tick(ctx context.Context) TickReport {
	rep := TickReport{Started: s.now(), Symbols: len(s.cfg.Symbols)}
	if ctx.Err() != nil {
		return rep
	}
	s.ticks.Add(1)

	if s.lock != nil && s.cfg.LockTTL > 0 {
		ok, err := s.lock.TryLock(ctx, "scan_tick", s.cfg.LockTTL)
		if err != nil {
			s.logger.Warn("tick lock unavailable, scanning anyway", applogger.Error(err))
		} else if !ok {
			s.logger.Debug("another instance holds the tick")
			return rep
		} else {
			defer func() { _ = s.lock.Unlock(context.WithoutCancel(ctx), "scan_tick") }()
		}
	}

	s.applyFeedback(ctx)

	cycleCtx, cancel := context.WithTimeout(ctx, s.cfg.CycleTimeout)
	defer cancel()

	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, s.cfg.MaxConcurrency)
	)
	for _, symbol := range s.cfg.Symbols {
		select {
		case sem <- struct{}{}:
		case <-cycleCtx.Done():
		}
		if cycleCtx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(symbol string) {
			defer wg.Done()
			defer func() { <-sem }()
			r := s.runner.Run(cycleCtx, symbol)

			mu.Lock()
			defer mu.Unlock()
			rep.Completed++
			rep.Approved += r.Approved()
			if r.Err != nil {
				rep.Failed++
			}
		}(symbol)
	}
	wg.Wait()

	rep.TimedOut = cycleCtx.Err() != nil && ctx.Err() == nil
	rep.Duration = s.now().Sub(rep.Started)
	if rep.TimedOut {
		s.metrics.RecordError("cycle_timeout")
		s.logger.Warn("tick exceeded cycle timeout",
			applogger.Int("completed", rep.Completed),
			applogger.Int("symbols", rep.Symbols))
	}
	s.metrics.RecordLatency("tick", rep.Duration.Seconds())
	s.logger.Debug("tick done",
		applogger.Int("completed", rep.Completed),
		applogger.Int("approved", rep.Approved),
		applogger.Int("failed", rep.Failed),
		applogger.Duration("duration", rep.Duration))

	s.maintain()
	return rep
}

// applyFeedback swaps in ledger-derived weight deltas before any cycle of the tick reads them.
func (s *Scheduler) applyFeedback(ctx context.Context) {
	if s.ledger == nil || s.weights == nil {
		return
	}
	deltas := s.ledger.TakeWeightAdjustments(s.cfg.AdjustmentMinSamples, s.cfg.AdjustmentPenalty)
	if len(deltas) == 0 {
		return
	}
	snap := s.weights.ApplyAdjustments(deltas)
	all := snap.All()
	for _, w := range all {
		s.metrics.SetStrategyWeight(w.StrategyID, w.Weight)
	}
	s.logger.Info("weights adjusted from rejections",
		applogger.Any("deltas", deltas),
		applogger.Int64("version", int64(snap.Version)))
	s.persistWeights(ctx, all)
}

func (s *Scheduler) persistWeights(ctx context.Context, weights []models.StrategyWeight) {
	if s.store == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := s.store.SaveWeights(ctx, weights); err != nil {
		s.metrics.RecordError("weight_store")
		s.logger.Warn("persist weights failed", applogger.Error(err))
	}
}

func (s *Scheduler) maintain() {
	if s.ledger == nil || s.cfg.ClearInterval <= 0 || s.cfg.MaxAge <= 0 {
		return
	}
	if s.now().Sub(s.lastClear) < s.cfg.ClearInterval {
		return
	}
	s.lastClear = s.now()
	if n := s.ledger.ClearOldRejections(s.cfg.MaxAge); n > 0 {
		s.logger.Info("old rejections evicted", applogger.Int("removed", n))
	}
}
