package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const minimal = `
scanner:
  symbols: ["BTCUSDT", "ETHUSDT"]
`

func TestParseAppliesDefaults(t *testing.T) {
	c, err := Parse([]byte(minimal))
	require.NoError(t, err)

	assert.Equal(t, "development", c.Environment)
	assert.Equal(t, 2.0, c.Risk.MaxRiskPerTrade)
	assert.Equal(t, 10.0, c.Risk.MaxPortfolioRisk)
	assert.Equal(t, 5.0, c.Risk.MaxPositionSize)
	assert.Equal(t, 5.0, c.Risk.MaxDailyLoss)
	assert.Equal(t, 3, c.Risk.CorrelationLimit)
	assert.Equal(t, 1.5, c.Risk.MinRiskReward)
	assert.Equal(t, 15*time.Minute, c.Risk.Cooldown)
	assert.Equal(t, 5000, c.Ledger.Capacity)
	assert.Equal(t, []string{"5m", "15m"}, c.Scanner.Timeframes)
	assert.Equal(t, []string{"momentum", "rsi_extreme", "volume_spike", "personal"}, c.Strategies.Enabled)
	assert.Equal(t, "signals.approved", c.Kafka.Topics.Signals)
	assert.Equal(t, 60*time.Second, c.Scanner.Interval)
	assert.True(t, c.Server.CORSEnabled())
	assert.Equal(t, 20.0, c.Server.RateLimitRPS)
}

func TestParseOverridesDefaults(t *testing.T) {
	c, err := Parse([]byte(`
scanner:
  symbols: ["BTCUSDT"]
  timeframes: ["1h"]
risk:
  max_portfolio_risk: 20
  enforce_min_risk_reward: true
server:
  cors: false
`))
	require.NoError(t, err)
	assert.Equal(t, []string{"1h"}, c.Scanner.Timeframes)
	assert.Equal(t, 20.0, c.Risk.MaxPortfolioRisk)
	assert.True(t, c.Risk.EnforceMinRiskReward)
	assert.False(t, c.Server.CORSEnabled())
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"no symbols":         `environment: development`,
		"bad timeframe":      "scanner:\n  symbols: [BTCUSDT]\n  primary_timeframe: 3m\n",
		"position over cap":  "scanner:\n  symbols: [BTCUSDT]\nrisk:\n  max_position_size: 20\n",
		"rsi bounds":         "scanner:\n  symbols: [BTCUSDT]\nstrategies:\n  rsi:\n    oversold: 80\n",
		"unknown strategy":   "scanner:\n  symbols: [BTCUSDT]\nstrategies:\n  enabled: [astrology]\n",
		"kafka w/o brokers":  "scanner:\n  symbols: [BTCUSDT]\nkafka:\n  enabled: true\n",
		"bad risk location":  "scanner:\n  symbols: [BTCUSDT]\nrisk:\n  location: Mars/Olympus\n",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadWithEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(minimal), 0o600))

	t.Setenv("SYMBOLS", "SOLUSDT, ADAUSDT,")
	t.Setenv("KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("HTTP_PORT", "9090")

	c, err := LoadWithEnv(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"SOLUSDT", "ADAUSDT"}, c.Scanner.Symbols)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, c.Kafka.Brokers)
	assert.True(t, c.Kafka.Enabled)
	assert.Equal(t, 9090, c.Server.Port)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
