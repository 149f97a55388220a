package risk

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"SignalGate/internal/domain/models"
	"SignalGate/internal/domain/repository"
	applogger "SignalGate/pkg/logger"

	"github.com/go-playground/validator/v10"
)

const dayLayout = "2006-01-02"

var validate = validator.New()

// Option configures a Gate.
type Option func(*Gate)

func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// WithLocation sets the zone whose calendar day bounds daily PnL.
func WithLocation(loc *time.Location) Option {
	return func(g *Gate) {
		if loc != nil {
			g.loc = loc
		}
	}
}

func WithCooldown(c Cooldown) Option {
	return func(g *Gate) { g.cooldown = c }
}

// WithCorrelation enables the open-position correlation warning. A nil family disables it.
func WithCorrelation(q *QuoteFamily) Option {
	return func(g *Gate) { g.family = q }
}

func WithLogger(l *applogger.Logger) Option {
	return func(g *Gate) {
		if l != nil {
			g.logger = l.Component("risk_gate")
		}
	}
}

func WithMetrics(m repository.Metrics) Option {
	return func(g *Gate) {
		if m != nil {
			g.metrics = m
		}
	}
}

// Gate owns the portfolio state and decides whether a candidate signal may be taken.
//
// Evaluations of one symbol are serialized by a per-symbol mutex. The portfolio
// check and the commit of an approved position happen under one portfolio lock,
// so two concurrent candidates cannot both pass the exposure cap.
type Gate struct {
	symbolsMu sync.Mutex
	symbols   map[string]*sync.Mutex

	mu        sync.Mutex
	params    models.RiskParameters
	positions map[string]models.PositionRisk
	dailyPnL  float64
	day       string

	cooldown Cooldown
	family   *QuoteFamily
	now      func() time.Time
	loc      *time.Location
	logger   *applogger.Logger
	metrics  repository.Metrics
}

func NewGate(params models.RiskParameters, opts ...Option) (*Gate, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}
	g := &Gate{
		symbols:   make(map[string]*sync.Mutex),
		params:    params,
		positions: make(map[string]models.PositionRisk),
		now:       time.Now,
		loc:       time.UTC,
		logger:    applogger.NewNop(),
		metrics:   repository.NopMetrics{},
	}
	for _, opt := range opts {
		opt(g)
	}
	g.day = g.today()
	return g, nil
}

func validateParams(p models.RiskParameters) error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("risk parameters: %w", err)
	}
	if p.MaxPositionSize > p.MaxPortfolioRisk {
		return fmt.Errorf("risk parameters: max_position_size %.2f exceeds max_portfolio_risk %.2f",
			p.MaxPositionSize, p.MaxPortfolioRisk)
	}
	return nil
}

func (g *Gate) today() string {
	return g.now().In(g.loc).Format(dayLayout)
}

func (g *Gate) symbolLock(symbol string) *sync.Mutex {
	g.symbolsMu.Lock()
	defer g.symbolsMu.Unlock()

	m, ok := g.symbols[symbol]
	if !ok {
		m = &sync.Mutex{}
		g.symbols[symbol] = m
	}
	return m
}

// rollover resets daily PnL when the calendar day changes. Caller holds mu.
func (g *Gate) rollover() {
	if day := g.today(); day != g.day {
		g.logger.Info("daily pnl reset",
			applogger.String("previous_day", g.day),
			applogger.String("day", day),
			applogger.Float64("previous_pnl_percent", g.dailyPnL))
		g.day = day
		g.dailyPnL = 0
	}
}

// Evaluate runs one candidate through the gate. Price errors are returned as
// ErrInvalidPriceData; every other outcome is expressed in the assessment.
func (g *Gate) Evaluate(ctx context.Context, sig models.StrategySignal) (models.RiskAssessment, error) {
	if err := ctx.Err(); err != nil {
		return models.RiskAssessment{}, err
	}

	lock := g.symbolLock(sig.Symbol)
	lock.Lock()
	defer lock.Unlock()

	coolingDown := false
	if g.cooldown != nil {
		active, err := g.cooldown.Active(ctx, sig.Symbol)
		if err != nil {
			g.metrics.RecordError("cooldown")
			g.logger.Warn("cooldown lookup failed, continuing without it",
				applogger.Symbol(sig.Symbol), applogger.Error(err))
		}
		coolingDown = active
	}

	assessment, err := g.decide(sig, coolingDown)
	if err != nil {
		return assessment, err
	}
	g.metrics.RecordDecision(assessment.Allowed)

	if assessment.Allowed {
		if g.cooldown != nil {
			if err := g.cooldown.Start(ctx, sig.Symbol); err != nil {
				g.metrics.RecordError("cooldown")
				g.logger.Warn("cooldown start failed",
					applogger.Symbol(sig.Symbol), applogger.Error(err))
			}
		}
		g.logger.Info("signal approved",
			applogger.Symbol(sig.Symbol),
			applogger.Strategy(sig.StrategyID),
			applogger.Float64("size_percent", assessment.RecommendedPositionSizePercent),
			applogger.Float64("risk_reward", assessment.RiskRewardRatio),
			applogger.Strings("warnings", assessment.Warnings))
	} else {
		g.logger.Info("signal rejected",
			applogger.Symbol(sig.Symbol),
			applogger.Strategy(sig.StrategyID),
			applogger.String("category", string(assessment.Category)),
			applogger.String("reason", assessment.Reason))
	}
	return assessment, nil
}

func (g *Gate) decide(sig models.StrategySignal, coolingDown bool) (models.RiskAssessment, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.rollover()
	p := g.params

	if g.dailyPnL <= -p.MaxDailyLoss {
		return reject(models.CategoryCooldown, models.SeverityHigh, -p.MaxDailyLoss, g.dailyPnL,
			"daily loss limit reached (%.2f%% <= -%.2f%%), trading halted", g.dailyPnL, p.MaxDailyLoss), nil
	}
	if coolingDown {
		return reject(models.CategoryCooldown, models.SeverityLow, 0, 0,
			"%s is in its cooldown window", sig.Symbol), nil
	}

	if !models.Finite(sig.EntryPrice, sig.StopLoss, sig.TargetPrice) ||
		sig.EntryPrice <= 0 || sig.StopLoss <= 0 || sig.TargetPrice <= 0 || sig.EntryPrice == sig.StopLoss {
		return models.RiskAssessment{}, fmt.Errorf("%w: entry %v stop %v target %v",
			models.ErrInvalidPriceData, sig.EntryPrice, sig.StopLoss, sig.TargetPrice)
	}
	if !models.Finite(sig.Confidence) {
		return models.RiskAssessment{}, fmt.Errorf("%w: confidence %v", models.ErrInvalidPriceData, sig.Confidence)
	}

	riskPerUnit := abs(sig.EntryPrice - sig.StopLoss)
	reward := abs(sig.TargetPrice - sig.EntryPrice)
	rr := reward / riskPerUnit
	riskPercent := riskPerUnit / sig.EntryPrice * 100

	uncapped := p.MaxRiskPerTrade / riskPercent * 100
	capped := uncapped > p.MaxPositionSize
	size := min(p.MaxPositionSize, uncapped) * clamp01(sig.Confidence)
	if !models.Finite(size, rr) {
		return models.RiskAssessment{}, fmt.Errorf("%w: size %v risk/reward %v", models.ErrInvalidPriceData, size, rr)
	}

	a := models.RiskAssessment{
		RecommendedPositionSizePercent: size,
		ExposurePercent:                size,
		RiskAmountPercent:              size * riskPercent / 100,
		RiskRewardRatio:                rr,
	}

	exposure := g.totalExposure()
	if exposure+size > p.MaxPortfolioRisk {
		a.Category, a.Severity = models.CategoryHeat, models.SeverityMedium
		a.Threshold, a.Actual = p.MaxPortfolioRisk, exposure+size
		a.Reason = fmt.Sprintf("portfolio exposure would reach %.2f%% (open %.2f%% + %.2f%%), limit %.2f%%",
			exposure+size, exposure, size, p.MaxPortfolioRisk)
		return a, nil
	}
	if p.EnforceMinRiskReward && rr < p.MinRiskReward {
		a.Category, a.Severity = models.CategoryRiskReward, models.SeverityMedium
		a.Threshold, a.Actual = p.MinRiskReward, rr
		a.Reason = fmt.Sprintf("risk/reward %.2f below minimum %.2f", rr, p.MinRiskReward)
		return a, nil
	}

	if capped {
		a.Warnings = append(a.Warnings, fmt.Sprintf("position size capped at %.2f%% (uncapped %.2f%%)", p.MaxPositionSize, uncapped))
	}
	if n := g.correlatedCount(sig.Symbol); n >= p.CorrelationLimit {
		a.Warnings = append(a.Warnings, fmt.Sprintf("%d correlated %s positions open (limit %d)", n, g.family.Of(sig.Symbol), p.CorrelationLimit))
	}
	if rr < p.MinRiskReward {
		a.Warnings = append(a.Warnings, fmt.Sprintf("risk/reward %.2f below %.2f", rr, p.MinRiskReward))
	}

	a.Allowed = true
	a.Reason = "approved"
	g.commit(sig.Symbol, size, a.RiskAmountPercent)
	return a, nil
}

func reject(cat models.RejectionCategory, sev models.Severity, threshold, actual float64, format string, args ...any) models.RiskAssessment {
	return models.RiskAssessment{
		Category:  cat,
		Severity:  sev,
		Threshold: threshold,
		Actual:    actual,
		Reason:    fmt.Sprintf(format, args...),
	}
}

// commit records an approved position. Caller holds mu.
func (g *Gate) commit(symbol string, size, riskAmount float64) {
	pos, ok := g.positions[symbol]
	if !ok {
		pos = models.PositionRisk{Symbol: symbol, EntryTime: g.now()}
	}
	pos.ExposurePercent += size
	pos.RiskAmountPercent += riskAmount
	g.positions[symbol] = pos
	g.metrics.SetPortfolioExposure(g.totalExposure())
}

func (g *Gate) totalExposure() float64 {
	var total float64
	for _, pos := range g.positions {
		total += pos.ExposurePercent
	}
	return total
}

func (g *Gate) correlatedCount(symbol string) int {
	if g.family.Of(symbol) == "" {
		return 0
	}
	n := 0
	for s := range g.positions {
		if s != symbol && g.family.Correlated(s, symbol) {
			n++
		}
	}
	return n
}

// ErrUnknownPosition is returned when closing a symbol with no open position.
var ErrUnknownPosition = errors.New("no open position")

// ClosePosition removes the symbol's exposure and books its realized PnL.
func (g *Gate) ClosePosition(symbol string, pnlPercent float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !models.Finite(pnlPercent) {
		return fmt.Errorf("%w: pnl %v for %s", models.ErrInvalidPriceData, pnlPercent, symbol)
	}
	g.rollover()
	if _, ok := g.positions[symbol]; !ok {
		return fmt.Errorf("%w for %s", ErrUnknownPosition, symbol)
	}
	delete(g.positions, symbol)
	g.dailyPnL += pnlPercent
	g.metrics.SetPortfolioExposure(g.totalExposure())
	return nil
}

// RecordPnL books realized PnL not tied to a tracked position. Non-finite values are dropped.
func (g *Gate) RecordPnL(pnlPercent float64) {
	if !models.Finite(pnlPercent) {
		g.logger.Warn("non-finite pnl ignored", applogger.Float64("pnl", pnlPercent))
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()

	g.rollover()
	g.dailyPnL += pnlPercent
}

// Restore replaces the portfolio with a snapshot from the bookkeeping side.
func (g *Gate) Restore(state models.PortfolioState) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.positions = make(map[string]models.PositionRisk, len(state.OpenPositions))
	for s, pos := range state.OpenPositions {
		if !models.Finite(pos.ExposurePercent, pos.RiskAmountPercent) {
			g.logger.Warn("position with non-finite exposure dropped", applogger.Symbol(s))
			continue
		}
		pos.Symbol = s
		g.positions[s] = pos
	}
	g.day = g.today()
	g.dailyPnL = 0
	if models.Finite(state.DailyPnLPercent) {
		g.dailyPnL = state.DailyPnLPercent
	}
	g.metrics.SetPortfolioExposure(g.totalExposure())
}

func (g *Gate) Status() models.RiskStatus {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.rollover()
	open := make([]models.PositionRisk, 0, len(g.positions))
	for _, pos := range g.positions {
		open = append(open, pos)
	}
	sort.Slice(open, func(i, j int) bool { return open[i].Symbol < open[j].Symbol })

	exposure := g.totalExposure()
	return models.RiskStatus{
		OpenPositions:     open,
		TotalExposure:     exposure,
		RemainingCapacity: max(0, g.params.MaxPortfolioRisk-exposure),
		DailyPnLPercent:   g.dailyPnL,
		TradingHalted:     g.dailyPnL <= -g.params.MaxDailyLoss,
		Parameters:        g.params,
		Day:               g.day,
	}
}

func (g *Gate) Parameters() models.RiskParameters {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.params
}

// UpdateParameters swaps limits at runtime. Open positions are kept as-is.
func (g *Gate) UpdateParameters(params models.RiskParameters) error {
	if err := validateParams(params); err != nil {
		return err
	}
	g.mu.Lock()
	g.params = params
	g.mu.Unlock()

	g.logger.Info("risk parameters updated", applogger.Any("parameters", params))
	return nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func clamp01(v float64) float64 {
	return max(0, min(1, v))
}
