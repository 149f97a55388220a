package service

import "SignalGate/internal/domain/models"

// StrategyEvaluator is one independent strategy. It must not mutate its inputs.
type StrategyEvaluator interface {
	ID() string
	Evaluate(symbol string, snap models.MarketSnapshot, analysis models.CompositeAnalysis, patterns []models.PatternResult) (*models.StrategySignal, bool)
}
