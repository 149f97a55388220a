package repository

import (
	"context"

	"SignalGate/internal/domain/models"
)

// CandleSource provides read-only access to candle windows.
type CandleSource interface {
	GetLatestNCandles(ctx context.Context, symbol string, n int, tf Timeframe) ([]models.Candle, error)
}

// RejectionStore is the append-only durable mirror of the rejection ledger.
type RejectionStore interface {
	Init(ctx context.Context) error
	StoreRejections(ctx context.Context, records []models.RejectionRecord) error
}

// SignalDispatcher receives approved signals. Formatting and delivery are its concern.
type SignalDispatcher interface {
	Dispatch(ctx context.Context, sig models.ApprovedSignal) error
}

// RejectionPublisher streams rejection records to downstream consumers.
type RejectionPublisher interface {
	PublishRejection(ctx context.Context, rec models.RejectionRecord) error
}

// WeightStore persists strategy weight snapshots across restarts.
type WeightStore interface {
	SaveWeights(ctx context.Context, weights []models.StrategyWeight) error
	LoadWeights(ctx context.Context) ([]models.StrategyWeight, error)
}

// Metrics is the pipeline's instrumentation surface.
type Metrics interface {
	RecordSignal(strategy string, action models.Action)
	RecordDecision(allowed bool)
	RecordRejection(category models.RejectionCategory)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	SetPortfolioExposure(percent float64)
	SetStrategyWeight(strategy string, weight float64)
}

// NopMetrics discards everything.
type NopMetrics struct{}

func (NopMetrics) RecordSignal(string, models.Action)       {}
func (NopMetrics) RecordDecision(bool)                      {}
func (NopMetrics) RecordRejection(models.RejectionCategory) {}
func (NopMetrics) RecordError(string)                       {}
func (NopMetrics) RecordLatency(string, float64)            {}
func (NopMetrics) SetPortfolioExposure(float64)             {}
func (NopMetrics) SetStrategyWeight(string, float64)        {}

var _ Metrics = NopMetrics{}
