package features

import (
	"math"
	"testing"
	"time"

	"SignalGate/internal/domain/models"
	"SignalGate/internal/domain/repository"

	"github.com/stretchr/testify/assert"
)

func closes(vals ...float64) []models.Candle {
	out := make([]models.Candle, len(vals))
	for i, v := range vals {
		out[i] = models.Candle{Close: v, Volume: 10}
	}
	return out
}

func TestLogReturns(t *testing.T) {
	rets := LogReturns(closes(100, 110, 0, 121))
	assert.Len(t, rets, 3)
	assert.InDelta(t, math.Log(1.1), rets[0], 1e-12)
	assert.Equal(t, 0.0, rets[1])
	assert.Equal(t, 0.0, rets[2])
	assert.Nil(t, LogReturns(closes(1)))
}

func TestHeat(t *testing.T) {
	assert.Equal(t, 0.0, Heat(closes(100, 101, 102), 5))

	flat := Heat(closes(100, 101, 102.01, 103.0301), 3)
	assert.InDelta(t, 0.0, flat, 1e-6)

	choppy := Heat(closes(100, 110, 100, 110, 100), 4)
	assert.Greater(t, choppy, 5.0)
}

func TestVolumeRatio(t *testing.T) {
	c := closes(1, 1, 1, 1)
	c[3].Volume = 30
	assert.InDelta(t, 3.0, VolumeRatio(c, 3), 1e-12)
	assert.Equal(t, 0.0, VolumeRatio(c, 4))
}

func TestTrend(t *testing.T) {
	assert.Equal(t, models.SignalBullish, Trend(closes(1, 2, 3, 4, 5), 5))
	assert.Equal(t, models.SignalBearish, Trend(closes(5, 4, 3, 2, 1), 5))
	assert.Equal(t, models.SignalNeutral, Trend(closes(1, 5, 1, 5, 1), 5))
	assert.Equal(t, models.SignalNeutral, Trend(closes(1, 2), 5))
}

func TestChangePercent(t *testing.T) {
	assert.InDelta(t, 10.0, ChangePercent(closes(100, 105, 110), 2), 1e-12)
	assert.Equal(t, 0.0, ChangePercent(closes(100), 2))
}

func TestStaleness(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 30, 0, time.UTC)
	c := []models.Candle{{Timestamp: now.Add(-30 * time.Second)}}
	assert.Equal(t, 0, Staleness(c, repository.TF1m, now))

	c[0].Timestamp = now.Add(-5 * time.Minute)
	assert.Equal(t, 4, Staleness(c, repository.TF1m, now))
	assert.Equal(t, 0, Staleness(c, repository.TF5m, now))
	assert.Greater(t, Staleness(nil, repository.TF1m, now), 1000)
}
