package usecase

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"SignalGate/internal/domain/models"
	domrepo "SignalGate/internal/domain/repository"
	"SignalGate/internal/services/features"
	"SignalGate/internal/services/strategy"
	applogger "SignalGate/pkg/logger"
	"SignalGate/pkg/tracing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// SnapshotSource yields the market snapshot of one symbol.
type SnapshotSource interface {
	Load(ctx context.Context, symbol string) (models.MarketSnapshot, error)
}

type Analyzer interface {
	Analyze(candles []models.Candle) models.CompositeAnalysis
}

// PatternDetector finds formations and applies volume confirmation.
type PatternDetector interface {
	Detect(candles []models.Candle) []models.PatternResult
	Confirm(patterns []models.PatternResult, candles []models.Candle) []models.PatternResult
}

type Scorer interface {
	Score(symbol string, snap models.MarketSnapshot, analysis models.CompositeAnalysis, patterns []models.PatternResult) strategy.ScoreResult
}

type Gatekeeper interface {
	Evaluate(ctx context.Context, sig models.StrategySignal) (models.RiskAssessment, error)
}

type RejectionLog interface {
	Log(ctx context.Context, rec models.RejectionRecord) models.RejectionRecord
}

// FilterConfig holds the checks applied to candidates before the risk gate.
// Zero thresholds disable the corresponding check.
type FilterConfig struct {
	MinConfidence  float64
	MaxHeat        float64
	HeatWindow     int
	MinVolumeRatio float64
	VolumeLookback int
	StaleAfterBars int
}

// Outcome is the terminal state of one candidate.
type Outcome string

const (
	OutcomeApproved       Outcome = "approved"
	OutcomeRejected       Outcome = "rejected"
	OutcomeFiltered       Outcome = "filtered"
	OutcomeSkipped        Outcome = "skipped"
	OutcomeDispatchFailed Outcome = "dispatch_failed"
)

type CandidateResult struct {
	Signal     models.StrategySignal   `json:"signal"`
	Outcome    Outcome                 `json:"outcome"`
	Assessment *models.RiskAssessment  `json:"assessment,omitempty"`
	Rejection  *models.RejectionRecord `json:"rejection,omitempty"`
	Error      string                  `json:"error,omitempty"`
}

// CycleReport summarizes one symbol's pass through the pipeline.
type CycleReport struct {
	Symbol     string                   `json:"symbol"`
	StartedAt  time.Time                `json:"started_at"`
	Duration   time.Duration            `json:"duration"`
	Analysis   models.CompositeAnalysis `json:"analysis"`
	Patterns   []models.PatternResult   `json:"patterns"`
	Candidates []CandidateResult        `json:"candidates"`
	Err        error                    `json:"-"`
}

func (r CycleReport) Approved() int { return r.count(OutcomeApproved) }

func (r CycleReport) count(o Outcome) int {
	n := 0
	for _, c := range r.Candidates {
		if c.Outcome == o {
			n++
		}
	}
	return n
}

// ScanCycle runs one symbol through fetch, analysis, scoring, filtering and
// the risk gate. Cancellation is checked between stages only.
type ScanCycle struct {
	source     SnapshotSource
	analyzer   Analyzer
	patterns   PatternDetector
	scorer     Scorer
	gate       Gatekeeper
	ledger     RejectionLog
	dispatcher domrepo.SignalDispatcher
	filters    FilterConfig
	dispatchTO time.Duration

	tracer  *tracing.Provider
	metrics domrepo.Metrics
	logger  *applogger.Logger
	now     func() time.Time
}

type CycleOption func(*ScanCycle)

func WithFilters(f FilterConfig) CycleOption {
	return func(c *ScanCycle) { c.filters = f }
}

func WithDispatchTimeout(d time.Duration) CycleOption {
	return func(c *ScanCycle) { c.dispatchTO = d }
}

func WithTracer(p *tracing.Provider) CycleOption {
	return func(c *ScanCycle) {
		if p != nil {
			c.tracer = p
		}
	}
}

func WithCycleMetrics(m domrepo.Metrics) CycleOption {
	return func(c *ScanCycle) {
		if m != nil {
			c.metrics = m
		}
	}
}

func WithCycleLogger(l *applogger.Logger) CycleOption {
	return func(c *ScanCycle) {
		if l != nil {
			c.logger = l.Component("scan_cycle")
		}
	}
}

func WithCycleClock(now func() time.Time) CycleOption {
	return func(c *ScanCycle) { c.now = now }
}

func NewScanCycle(
	source SnapshotSource,
	analyzer Analyzer,
	patterns PatternDetector,
	scorer Scorer,
	gate Gatekeeper,
	ledger RejectionLog,
	dispatcher domrepo.SignalDispatcher,
	opts ...CycleOption,
) *ScanCycle {
	c := &ScanCycle{
		source:     source,
		analyzer:   analyzer,
		patterns:   patterns,
		scorer:     scorer,
		gate:       gate,
		ledger:     ledger,
		dispatcher: dispatcher,
		dispatchTO: 3 * time.Second,
		tracer:     tracing.Nop(),
		metrics:    domrepo.NopMetrics{},
		logger:     applogger.NewNop(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Run never panics; a failure is reported in CycleReport.Err and only affects this symbol.
func (c *ScanCycle) Run(ctx context.Context, symbol string) (rep CycleReport) {
	rep = CycleReport{Symbol: symbol, StartedAt: c.now()}
	ctx, span := c.tracer.Start(ctx, "scan_cycle")
	span.SetAttributes(attribute.String("symbol", symbol))
	defer func() {
		if r := recover(); r != nil {
			rep.Err = fmt.Errorf("cycle panic: %v", r)
			c.metrics.RecordError("cycle_panic")
			c.logger.Error("scan cycle panic",
				applogger.Symbol(symbol),
				applogger.String("panic", fmt.Sprint(r)),
				applogger.String("stack", string(debug.Stack())))
		}
		rep.Duration = c.now().Sub(rep.StartedAt)
		c.metrics.RecordLatency("scan_cycle", rep.Duration.Seconds())
		if rep.Err != nil {
			span.RecordError(rep.Err)
			span.SetStatus(codes.Error, rep.Err.Error())
		}
		span.SetAttributes(attribute.Int("approved", rep.Approved()))
		span.End()
	}()

	snap, err := c.fetch(ctx, symbol)
	if err != nil {
		rep.Err = err
		if errors.Is(err, models.ErrDataUnavailable) {
			c.metrics.RecordError("data_unavailable")
			c.logger.Warn("market data unavailable, symbol skipped", applogger.Symbol(symbol), applogger.Error(err))
		}
		return rep
	}
	if rep.Err = ctx.Err(); rep.Err != nil {
		return rep
	}

	rep.Analysis, rep.Patterns, rep.Err = c.analyze(ctx, snap)
	if rep.Err != nil {
		c.metrics.RecordError("cycle_panic")
		c.logger.Warn("symbol skipped", applogger.Symbol(symbol), applogger.Error(rep.Err))
		return rep
	}
	if rep.Err = ctx.Err(); rep.Err != nil {
		return rep
	}

	_, scoreSpan := c.tracer.Start(ctx, "score")
	scored := c.scorer.Score(symbol, snap, rep.Analysis, rep.Patterns)
	scoreSpan.SetAttributes(attribute.Int("candidates", len(scored.Candidates)))
	scoreSpan.End()
	for _, sig := range scored.Raw {
		c.metrics.RecordSignal(sig.StrategyID, sig.Action)
	}
	for _, rec := range scored.Discarded {
		c.ledger.Log(ctx, rec)
	}

	for _, sig := range scored.Candidates {
		if rep.Err = ctx.Err(); rep.Err != nil {
			return rep
		}
		rep.Candidates = append(rep.Candidates, c.decide(ctx, snap, sig))
	}
	return rep
}

func (c *ScanCycle) fetch(ctx context.Context, symbol string) (models.MarketSnapshot, error) {
	ctx, span := c.tracer.Start(ctx, "fetch")
	defer span.End()
	start := time.Now()
	snap, err := c.source.Load(ctx, symbol)
	c.metrics.RecordLatency("fetch", time.Since(start).Seconds())
	if err != nil {
		span.RecordError(err)
		return snap, err
	}
	span.SetAttributes(attribute.Int("timeframes", len(snap.Candles)))
	return snap, nil
}

// analyze runs the indicator pass and the pattern pass concurrently. Both are pure.
// A panic in either pass is returned as an error instead of crashing the process.
func (c *ScanCycle) analyze(ctx context.Context, snap models.MarketSnapshot) (models.CompositeAnalysis, []models.PatternResult, error) {
	_, span := c.tracer.Start(ctx, "analyze")
	defer span.End()

	candles := snap.Primary()
	var (
		wg       sync.WaitGroup
		analysis models.CompositeAnalysis
		found    []models.PatternResult
		errs     [2]error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		defer c.recoverStage("indicators", &errs[0])
		analysis = c.analyzer.Analyze(candles)
	}()
	go func() {
		defer wg.Done()
		defer c.recoverStage("patterns", &errs[1])
		found = c.patterns.Confirm(c.patterns.Detect(candles), candles)
	}()
	wg.Wait()

	if err := errors.Join(errs[0], errs[1]); err != nil {
		span.RecordError(err)
		return analysis, nil, err
	}

	for name, msg := range analysis.Errors {
		c.logger.Debug("indicator skipped",
			applogger.Symbol(snap.Symbol),
			applogger.String("indicator", name),
			applogger.String("reason", msg))
	}
	span.SetAttributes(
		attribute.String("overall", string(analysis.OverallSignal)),
		attribute.Int("patterns", len(found)))
	return analysis, found, nil
}

func (c *ScanCycle) recoverStage(stage string, err *error) {
	if r := recover(); r != nil {
		*err = fmt.Errorf("%s panic: %v", stage, r)
		c.logger.Error("analysis stage panic",
			applogger.String("stage", stage),
			applogger.String("stack", string(debug.Stack())))
	}
}

// decide moves one candidate to a terminal state: filtered, rejected, approved or skipped.
func (c *ScanCycle) decide(ctx context.Context, snap models.MarketSnapshot, sig models.StrategySignal) CandidateResult {
	res := CandidateResult{Signal: sig}

	if rec, blocked := c.filter(snap, sig); blocked {
		logged := c.ledger.Log(ctx, rec)
		res.Outcome, res.Rejection = OutcomeFiltered, &logged
		return res
	}

	gateCtx, span := c.tracer.Start(ctx, "risk_gate")
	start := time.Now()
	assessment, err := c.gate.Evaluate(gateCtx, sig)
	c.metrics.RecordLatency("risk_gate", time.Since(start).Seconds())
	span.End()
	if err != nil {
		res.Outcome, res.Error = OutcomeSkipped, err.Error()
		if models.IsLocal(err) {
			c.logger.Debug("candidate skipped", applogger.Symbol(sig.Symbol), applogger.Strategy(sig.LedgerID()), applogger.Error(err))
		} else {
			c.logger.Warn("risk gate error", applogger.Symbol(sig.Symbol), applogger.Error(err))
		}
		return res
	}
	res.Assessment = &assessment

	if !assessment.Allowed {
		logged := c.ledger.Log(ctx, assessment.Rejection(sig, c.now()))
		res.Outcome, res.Rejection = OutcomeRejected, &logged
		return res
	}

	res.Outcome = OutcomeApproved
	if err := c.dispatch(ctx, sig, assessment); err != nil {
		res.Outcome, res.Error = OutcomeDispatchFailed, err.Error()
		c.metrics.RecordError("dispatch")
		c.logger.Error("dispatch failed", applogger.Symbol(sig.Symbol), applogger.Error(err))
	}
	return res
}

func (c *ScanCycle) dispatch(ctx context.Context, sig models.StrategySignal, a models.RiskAssessment) error {
	if c.dispatcher == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, c.dispatchTO)
	defer cancel()
	ctx, span := c.tracer.Start(ctx, "dispatch")
	defer span.End()
	return c.dispatcher.Dispatch(ctx, models.ApprovedSignal{Signal: sig, Assessment: a, ApprovedAt: c.now()})
}

// filter applies the pre-gate checks in order: staleness, volume, heat, confidence.
func (c *ScanCycle) filter(snap models.MarketSnapshot, sig models.StrategySignal) (models.RejectionRecord, bool) {
	f := c.filters
	primary := snap.Primary()
	rec := models.RejectionRecord{Symbol: sig.Symbol, StrategyID: sig.LedgerID(), Timestamp: c.now()}
	block := func(cat models.RejectionCategory, sev models.Severity, threshold, actual float64, format string, args ...any) (models.RejectionRecord, bool) {
		rec.Category, rec.Severity = cat, sev
		rec.Threshold, rec.Actual = threshold, actual
		rec.Reason = fmt.Sprintf(format, args...)
		return rec, true
	}

	if f.StaleAfterBars > 0 {
		tf := domrepo.Timeframe(snap.PrimaryTimeframe)
		if stale := features.Staleness(primary, tf, c.now()); stale > f.StaleAfterBars {
			return block(models.CategoryTimeframe, models.SeverityMedium, float64(f.StaleAfterBars), float64(stale),
				"%s data is %d bars stale (limit %d)", tf, stale, f.StaleAfterBars)
		}
	}
	if f.MinVolumeRatio > 0 {
		if ratio := features.VolumeRatio(primary, f.VolumeLookback); ratio < f.MinVolumeRatio {
			return block(models.CategoryVolume, models.SeverityLow, f.MinVolumeRatio, ratio,
				"volume ratio %.2f below %.2f", ratio, f.MinVolumeRatio)
		}
	}
	if f.MaxHeat > 0 {
		if heat := features.Heat(primary, f.HeatWindow); heat > f.MaxHeat {
			return block(models.CategoryHeat, models.SeverityMedium, f.MaxHeat, heat,
				"realized volatility %.2f%% above %.2f%%", heat, f.MaxHeat)
		}
	}
	if f.MinConfidence > 0 && sig.Confidence < f.MinConfidence {
		return block(models.CategoryConfidence, models.SeverityMedium, f.MinConfidence, sig.Confidence,
			"confidence %.2f below %.2f", sig.Confidence, f.MinConfidence)
	}
	return rec, false
}
