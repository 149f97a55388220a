package strategy

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"SignalGate/internal/domain/models"
)

// WeightSnapshot is an immutable view of every strategy weight at one version.
type WeightSnapshot struct {
	Version       uint64
	defaultWeight float64
	weights       map[string]models.StrategyWeight
}

// Weight returns the scalar for id, or the default for strategies never updated.
func (s *WeightSnapshot) Weight(id string) float64 {
	if w, ok := s.weights[id]; ok {
		return w.Weight
	}
	return s.defaultWeight
}

// All returns the weights sorted by strategy id.
func (s *WeightSnapshot) All() []models.StrategyWeight {
	out := make([]models.StrategyWeight, 0, len(s.weights))
	for _, w := range s.weights {
		out = append(out, w)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StrategyID < out[j].StrategyID })
	return out
}

// WeightBook owns the adaptive weights. Readers take a snapshot once per cycle;
// writers publish a new copy so a cycle never sees a partial update.
type WeightBook struct {
	mu            sync.Mutex
	current       atomic.Pointer[WeightSnapshot]
	alpha         float64
	defaultWeight float64
	now           func() time.Time
}

func NewWeightBook(alpha, defaultWeight float64, ids []string) *WeightBook {
	b := &WeightBook{alpha: alpha, defaultWeight: clamp01(defaultWeight), now: time.Now}
	weights := make(map[string]models.StrategyWeight, len(ids))
	for _, id := range ids {
		weights[id] = models.StrategyWeight{StrategyID: id, Weight: b.defaultWeight}
	}
	b.current.Store(&WeightSnapshot{defaultWeight: b.defaultWeight, weights: weights})
	return b
}

func (b *WeightBook) Snapshot() *WeightSnapshot { return b.current.Load() }

func (b *WeightBook) update(fn func(weights map[string]models.StrategyWeight)) *WeightSnapshot {
	b.mu.Lock()
	defer b.mu.Unlock()

	cur := b.current.Load()
	next := make(map[string]models.StrategyWeight, len(cur.weights))
	for k, v := range cur.weights {
		next[k] = v
	}
	fn(next)
	snap := &WeightSnapshot{Version: cur.Version + 1, defaultWeight: b.defaultWeight, weights: next}
	b.current.Store(snap)
	return snap
}

func (b *WeightBook) entry(weights map[string]models.StrategyWeight, id string) models.StrategyWeight {
	if w, ok := weights[id]; ok {
		return w
	}
	return models.StrategyWeight{StrategyID: id, Weight: b.defaultWeight}
}

// RecordOutcome folds one closed-trade result into the strategy's statistics and
// moves its weight toward the success rate.
func (b *WeightBook) RecordOutcome(id string, win bool) models.StrategyWeight {
	var out models.StrategyWeight
	b.update(func(weights map[string]models.StrategyWeight) {
		w := b.entry(weights, id)
		w.TotalSignals++
		if win {
			w.SuccessfulSignals++
		}
		w.SuccessRate = float64(w.SuccessfulSignals) / float64(w.TotalSignals)
		w.Weight = clamp01(w.Weight*(1-b.alpha) + w.SuccessRate*b.alpha)
		w.UpdatedAt = b.now()
		weights[id] = w
		out = w
	})
	return out
}

// ApplyAdjustments adds deltas to the named weights in a single swap.
func (b *WeightBook) ApplyAdjustments(deltas map[string]float64) *WeightSnapshot {
	if len(deltas) == 0 {
		return b.Snapshot()
	}
	return b.update(func(weights map[string]models.StrategyWeight) {
		now := b.now()
		for id, d := range deltas {
			w := b.entry(weights, id)
			w.Weight = clamp01(w.Weight + d)
			w.UpdatedAt = now
			weights[id] = w
		}
	})
}

// Restore replaces state with persisted weights. Unknown ids are kept.
func (b *WeightBook) Restore(saved []models.StrategyWeight) {
	if len(saved) == 0 {
		return
	}
	b.update(func(weights map[string]models.StrategyWeight) {
		for _, w := range saved {
			if w.StrategyID == "" {
				continue
			}
			w.Weight = clamp01(w.Weight)
			weights[w.StrategyID] = w
		}
	})
}
