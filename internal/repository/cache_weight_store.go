package repository

import (
	"context"
	"errors"
	"fmt"

	"SignalGate/internal/domain/models"
	domrepo "SignalGate/internal/domain/repository"
	"SignalGate/pkg/cache"
)

const weightsKey = "strategy_weights"

// CacheWeightStore keeps the latest weight snapshot in the shared cache without expiry.
type CacheWeightStore struct {
	cache cache.Service
}

func NewCacheWeightStore(c cache.Service) *CacheWeightStore {
	return &CacheWeightStore{cache: c}
}

func (s *CacheWeightStore) SaveWeights(ctx context.Context, weights []models.StrategyWeight) error {
	if err := s.cache.Set(ctx, weightsKey, weights, 0); err != nil {
		return fmt.Errorf("save weights: %w", err)
	}
	return nil
}

// LoadWeights returns nil without error when nothing was saved yet.
func (s *CacheWeightStore) LoadWeights(ctx context.Context) ([]models.StrategyWeight, error) {
	var out []models.StrategyWeight
	if err := s.cache.Get(ctx, weightsKey, &out); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, nil
		}
		return nil, fmt.Errorf("load weights: %w", err)
	}
	return out, nil
}

var _ domrepo.WeightStore = (*CacheWeightStore)(nil)
