package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"SignalGate/internal/domain/models"
	domrepo "SignalGate/internal/domain/repository"
	"SignalGate/internal/services/risk"
	"SignalGate/internal/services/strategy"
	pkgkafka "SignalGate/pkg/kafka"
	applogger "SignalGate/pkg/logger"

	"github.com/go-playground/validator/v10"
)

// PositionBook is the part of the risk gate that closed trades update.
type PositionBook interface {
	ClosePosition(symbol string, pnlPercent float64) error
	RecordPnL(pnlPercent float64)
}

// TradeOutcomeHandler consumes closed-trade outcomes: it moves the weights of
// every contributing strategy, releases the position in the gate and persists
// the new weights.
type TradeOutcomeHandler struct {
	topic     string
	weights   *strategy.WeightBook
	positions PositionBook
	store     domrepo.WeightStore
	metrics   domrepo.Metrics
	logger    *applogger.Logger
	validate  *validator.Validate
	known     map[string]struct{}
}

func NewTradeOutcomeHandler(topic string, weights *strategy.WeightBook, positions PositionBook, store domrepo.WeightStore, metrics domrepo.Metrics, logger *applogger.Logger) *TradeOutcomeHandler {
	if metrics == nil {
		metrics = domrepo.NopMetrics{}
	}
	if logger == nil {
		logger = applogger.NewNop()
	}
	return &TradeOutcomeHandler{
		topic:     topic,
		weights:   weights,
		positions: positions,
		store:     store,
		metrics:   metrics,
		logger:    logger.Component("trade_outcomes"),
		validate:  validator.New(),
	}
}

// SetKnownStrategies restricts weight updates to the given ids. Outcomes naming
// other strategies still close the position but leave the weights alone.
func (h *TradeOutcomeHandler) SetKnownStrategies(ids []string) {
	h.known = make(map[string]struct{}, len(ids))
	for _, id := range ids {
		h.known[id] = struct{}{}
	}
}

func (h *TradeOutcomeHandler) Topic() string { return h.topic }

func (h *TradeOutcomeHandler) Handle(ctx context.Context, b []byte) error {
	start := time.Now()
	var o models.TradeOutcome
	if err := json.Unmarshal(b, &o); err != nil {
		h.metrics.RecordError("outcome_unmarshal")
		return fmt.Errorf("decode outcome: %w", err)
	}
	if err := h.validate.Struct(o); err != nil {
		h.metrics.RecordError("outcome_invalid")
		return fmt.Errorf("invalid outcome: %w", err)
	}
	if err := h.Apply(ctx, o); err != nil {
		return err
	}
	h.metrics.RecordLatency("trade_outcome", time.Since(start).Seconds())
	return nil
}

// Apply books one decoded outcome.
func (h *TradeOutcomeHandler) Apply(ctx context.Context, o models.TradeOutcome) error {
	ids := h.accepted(o.StrategyIDs())
	for _, id := range ids {
		w := h.weights.RecordOutcome(id, o.Win)
		h.metrics.SetStrategyWeight(id, w.Weight)
	}

	if h.positions != nil {
		if err := h.positions.ClosePosition(o.Symbol, o.PnLPercent); err != nil {
			if !errors.Is(err, risk.ErrUnknownPosition) {
				return err
			}
			// opened before a restart or by another instance
			h.positions.RecordPnL(o.PnLPercent)
			h.logger.Warn("outcome for untracked position", applogger.Symbol(o.Symbol))
		}
	}

	if h.store != nil && len(ids) > 0 {
		if err := h.store.SaveWeights(ctx, h.weights.Snapshot().All()); err != nil {
			h.metrics.RecordError("weight_store")
			h.logger.Warn("persist weights failed", applogger.Error(err))
		}
	}

	h.logger.Info("trade outcome applied",
		applogger.Symbol(o.Symbol),
		applogger.Strings("strategies", ids),
		applogger.Bool("win", o.Win),
		applogger.Float64("pnl_percent", o.PnLPercent),
		applogger.String("trace_id", pkgkafka.TraceIDFromContext(ctx)))
	return nil
}

func (h *TradeOutcomeHandler) accepted(ids []string) []string {
	if h.known == nil {
		return ids
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := h.known[id]; !ok {
			h.metrics.RecordError("outcome_unknown_strategy")
			h.logger.Warn("outcome for unknown strategy ignored", applogger.Strategy(id))
			continue
		}
		out = append(out, id)
	}
	return out
}

var _ pkgkafka.MessageHandler = (*TradeOutcomeHandler)(nil)
