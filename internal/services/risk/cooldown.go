package risk

import (
	"context"
	"time"

	"SignalGate/pkg/cache"
)

// Cooldown tracks per-symbol suppression windows.
type Cooldown interface {
	Active(ctx context.Context, symbol string) (bool, error)
	Start(ctx context.Context, symbol string) error
}

// CacheCooldown keeps windows in the shared cache so every instance observes them.
type CacheCooldown struct {
	cache  cache.Service
	window time.Duration
	now    func() time.Time
}

func NewCacheCooldown(c cache.Service, window time.Duration) *CacheCooldown {
	return &CacheCooldown{cache: c, window: window, now: time.Now}
}

func cooldownKey(symbol string) string {
	return cache.Key("cooldown", symbol)
}

func (c *CacheCooldown) Active(ctx context.Context, symbol string) (bool, error) {
	if c.window <= 0 {
		return false, nil
	}
	return c.cache.Exists(ctx, cooldownKey(symbol))
}

func (c *CacheCooldown) Start(ctx context.Context, symbol string) error {
	if c.window <= 0 {
		return nil
	}
	return c.cache.Set(ctx, cooldownKey(symbol), c.now().UTC().Format(time.RFC3339), c.window)
}

var _ Cooldown = (*CacheCooldown)(nil)
