package strategy

import (
	"fmt"
	"sort"

	"SignalGate/internal/domain/models"
	"SignalGate/internal/domain/service"
	applogger "SignalGate/pkg/logger"
)

// ScoreResult is the scorer output for one symbol and cycle.
type ScoreResult struct {
	// Candidates are ranked by confidence, highest first.
	Candidates []models.StrategySignal
	// Discarded holds conflicting-direction candidates that lost on weight.
	Discarded []models.RejectionRecord
	// Raw holds every evaluator output before merging.
	Raw           []models.StrategySignal
	WeightVersion uint64
}

// Scorer runs the evaluators over one snapshot and folds their output into candidates.
type Scorer struct {
	evaluators []service.StrategyEvaluator
	weights    *WeightBook
	logger     *applogger.Logger
}

func NewScorer(evaluators []service.StrategyEvaluator, weights *WeightBook, logger *applogger.Logger) *Scorer {
	if logger == nil {
		logger = applogger.NewNop()
	}
	return &Scorer{evaluators: evaluators, weights: weights, logger: logger.Component("scorer")}
}

func (s *Scorer) Weights() *WeightBook { return s.weights }

// StrategyIDs lists the evaluators in run order.
func (s *Scorer) StrategyIDs() []string {
	ids := make([]string, len(s.evaluators))
	for i, ev := range s.evaluators {
		ids[i] = ev.ID()
	}
	return ids
}

func (s *Scorer) Score(symbol string, snap models.MarketSnapshot, analysis models.CompositeAnalysis, patterns []models.PatternResult) ScoreResult {
	book := s.weights.Snapshot()
	res := ScoreResult{WeightVersion: book.Version}

	var buys, sells []models.StrategySignal
	for _, ev := range s.evaluators {
		sig, ok := ev.Evaluate(symbol, snap, analysis, patterns)
		if !ok || sig == nil {
			continue
		}
		sig.StrategyID = ev.ID()
		sig.Symbol = symbol
		res.Raw = append(res.Raw, *sig)
		if sig.Action == models.ActionBuy {
			buys = append(buys, *sig)
		} else {
			sells = append(sells, *sig)
		}
	}

	buy, buyWeight, hasBuy := merge(buys, book)
	sell, sellWeight, hasSell := merge(sells, book)

	switch {
	case hasBuy && hasSell:
		winner, loser := buy, sell
		winW, loseW := buyWeight, sellWeight
		if sellWeight > buyWeight || (sellWeight == buyWeight && sell.Confidence > buy.Confidence) {
			winner, loser = sell, buy
			winW, loseW = sellWeight, buyWeight
		}
		res.Candidates = []models.StrategySignal{winner}
		res.Discarded = []models.RejectionRecord{{
			Symbol:     symbol,
			StrategyID: loser.LedgerID(),
			Category:   models.CategoryConfidence,
			Reason: fmt.Sprintf("conflicting %s signal outweighed by %s (weight %.2f vs %.2f)",
				loser.Action, winner.Action, loseW, winW),
			Threshold: winW,
			Actual:    loseW,
			Severity:  models.SeverityLow,
		}}
		s.logger.Debug("conflicting candidates resolved",
			applogger.Symbol(symbol),
			applogger.String("kept", string(winner.Action)),
			applogger.Float64("kept_weight", winW),
			applogger.Float64("dropped_weight", loseW))
	case hasBuy:
		res.Candidates = []models.StrategySignal{buy}
	case hasSell:
		res.Candidates = []models.StrategySignal{sell}
	}

	sort.SliceStable(res.Candidates, func(i, j int) bool {
		return res.Candidates[i].Confidence > res.Candidates[j].Confidence
	})
	return res
}

// merge folds same-direction signals into one candidate and returns the summed weight.
func merge(signals []models.StrategySignal, book *WeightSnapshot) (models.StrategySignal, float64, bool) {
	switch len(signals) {
	case 0:
		return models.StrategySignal{}, 0, false
	case 1:
		return signals[0], book.Weight(signals[0].StrategyID), true
	}

	var totalW, weighted, plain float64
	conservative := 0
	weights := make(map[string]float64, len(signals))
	ids := make([]string, 0, len(signals))
	var reasons []string
	seen := map[string]struct{}{}

	for i, sig := range signals {
		w := book.Weight(sig.StrategyID)
		weights[sig.StrategyID] = w
		ids = append(ids, sig.StrategyID)
		totalW += w
		weighted += w * sig.Confidence
		plain += sig.Confidence
		if sig.RiskRewardRatio < signals[conservative].RiskRewardRatio {
			conservative = i
		}
		for _, r := range sig.Reasoning {
			if _, dup := seen[r]; dup {
				continue
			}
			seen[r] = struct{}{}
			reasons = append(reasons, r)
		}
	}

	out := signals[conservative]
	out.StrategyID = models.CompositeStrategyID
	out.Contributors = ids
	out.Reasoning = reasons
	if totalW > 0 {
		out.Confidence = weighted / totalW
	} else {
		out.Confidence = plain / float64(len(signals))
	}
	out.Metadata = models.CompositeMeta{Weights: weights, Conservative: signals[conservative].StrategyID}
	return out, totalW, true
}
