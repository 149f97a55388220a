package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"SignalGate/internal/domain/models"
	domrepo "SignalGate/internal/domain/repository"
	applogger "SignalGate/pkg/logger"

	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
)

// SourceConfig bounds reads against the candle store.
type SourceConfig struct {
	FetchTimeout    time.Duration
	Rate            float64
	Burst           int
	BreakerFailures uint32
	BreakerTimeout  time.Duration
}

// ResilientCandleSource wraps a CandleSource with a rate limit, a per-call
// timeout and a circuit breaker. Every failure surfaces as ErrDataUnavailable.
type ResilientCandleSource struct {
	next    domrepo.CandleSource
	limiter *rate.Limiter
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
	logger  *applogger.Logger
}

func NewResilientCandleSource(next domrepo.CandleSource, cfg SourceConfig, logger *applogger.Logger) *ResilientCandleSource {
	if logger == nil {
		logger = applogger.NewNop()
	}
	logger = logger.Component("candle_source")
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 5 * time.Second
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	limit := rate.Inf
	if cfg.Rate > 0 {
		limit = rate.Limit(cfg.Rate)
	}

	st := gobreaker.Settings{
		Name:    "candle_store",
		Timeout: cfg.BreakerTimeout,
		ReadyToTrip: func(c gobreaker.Counts) bool {
			return c.ConsecutiveFailures >= cfg.BreakerFailures
		},
		// the caller giving up says nothing about the store's health
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("breaker state changed",
				applogger.String("breaker", name),
				applogger.String("from", from.String()),
				applogger.String("to", to.String()))
		},
	}
	return &ResilientCandleSource{
		next:    next,
		limiter: rate.NewLimiter(limit, max(cfg.Burst, 1)),
		breaker: gobreaker.NewCircuitBreaker(st),
		timeout: cfg.FetchTimeout,
		logger:  logger,
	}
}

func (s *ResilientCandleSource) GetLatestNCandles(ctx context.Context, symbol string, n int, tf domrepo.Timeframe) ([]models.Candle, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: %s %s rate limit: %v", models.ErrDataUnavailable, symbol, tf, err)
	}
	out, err := s.breaker.Execute(func() (interface{}, error) {
		return s.next.GetLatestNCandles(ctx, symbol, n, tf)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", models.ErrDataUnavailable, symbol, tf, err)
	}
	candles, _ := out.([]models.Candle)
	if err := validateSeries(candles); err != nil {
		return nil, fmt.Errorf("%w: %s %s: %v", models.ErrDataUnavailable, symbol, tf, err)
	}
	return candles, nil
}

// State exposes the breaker state for health reporting.
func (s *ResilientCandleSource) State() gobreaker.State { return s.breaker.State() }

func validateSeries(candles []models.Candle) error {
	for i, c := range candles {
		if !c.Valid() {
			return fmt.Errorf("malformed candle at %s", c.Timestamp.Format(time.RFC3339))
		}
		if i > 0 && !c.Timestamp.After(candles[i-1].Timestamp) {
			return fmt.Errorf("series not strictly ascending at %s", c.Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}

// SnapshotLoader assembles the multi-timeframe input of one cycle.
type SnapshotLoader struct {
	source     domrepo.CandleSource
	primary    domrepo.Timeframe
	timeframes []domrepo.Timeframe
	lookback   int
	now        func() time.Time
	logger     *applogger.Logger
}

func NewSnapshotLoader(source domrepo.CandleSource, primary string, timeframes []string, lookback int, logger *applogger.Logger) *SnapshotLoader {
	if logger == nil {
		logger = applogger.NewNop()
	}
	l := &SnapshotLoader{
		source:   source,
		primary:  domrepo.NormalizeTimeframe(primary),
		lookback: lookback,
		now:      time.Now,
		logger:   logger.Component("snapshot_loader"),
	}
	for _, tf := range timeframes {
		t := domrepo.Timeframe(tf)
		if domrepo.IsValidTimeframe(t) && t != l.primary {
			l.timeframes = append(l.timeframes, t)
		}
	}
	return l
}

func (l *SnapshotLoader) Primary() domrepo.Timeframe { return l.primary }

// Load fails when the primary series cannot be read. A failing secondary
// timeframe is logged and left out of the snapshot.
func (l *SnapshotLoader) Load(ctx context.Context, symbol string) (models.MarketSnapshot, error) {
	snap := models.MarketSnapshot{
		Symbol:           symbol,
		PrimaryTimeframe: string(l.primary),
		Candles:          make(map[string][]models.Candle, len(l.timeframes)+1),
		FetchedAt:        l.now(),
	}
	primary, err := l.source.GetLatestNCandles(ctx, symbol, l.lookback, l.primary)
	if err != nil {
		return snap, err
	}
	if len(primary) == 0 {
		return snap, fmt.Errorf("%w: no %s candles for %s", models.ErrDataUnavailable, l.primary, symbol)
	}
	snap.Candles[string(l.primary)] = primary

	for _, tf := range l.timeframes {
		cs, err := l.source.GetLatestNCandles(ctx, symbol, l.lookback, tf)
		if err != nil {
			l.logger.Warn("secondary timeframe unavailable",
				applogger.Symbol(symbol),
				applogger.String("tf", string(tf)),
				applogger.Error(err))
			continue
		}
		snap.Candles[string(tf)] = cs
	}
	return snap, nil
}
