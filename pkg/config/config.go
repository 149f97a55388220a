package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"SignalGate/pkg/logger"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string           `yaml:"environment" default:"development" validate:"oneof=development staging production test"`
	Server      ServerConfig     `yaml:"server"`
	Logger      logger.Config    `yaml:"logger"`
	Metrics     MetricsConfig    `yaml:"metrics"`
	Tracing     TracingConfig    `yaml:"tracing"`
	Kafka       KafkaConfig      `yaml:"kafka"`
	ClickHouse  ClickHouseConfig `yaml:"clickhouse"`
	Redis       RedisConfig      `yaml:"redis"`
	Scanner     ScannerConfig    `yaml:"scanner"`
	Risk        RiskConfig       `yaml:"risk"`
	Strategies  StrategiesConfig `yaml:"strategies"`
	Ledger      LedgerConfig     `yaml:"ledger"`
}

type ServerConfig struct {
	Port            int           `yaml:"port" default:"8080" validate:"gt=0,lt=65536"`
	ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
	WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
	RateLimitRPS    float64       `yaml:"rate_limit_rps" default:"20" validate:"gte=0"`
	RateLimitBurst  int           `yaml:"rate_limit_burst" default:"40" validate:"gte=0"`
	CORS            *bool         `yaml:"cors"`
}

// CORSEnabled defaults to true when the key is absent.
func (s ServerConfig) CORSEnabled() bool { return s.CORS == nil || *s.CORS }

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" default:"true"`
	Path    string `yaml:"path" default:"/metrics"`
}

type TracingConfig struct {
	Enabled     bool    `yaml:"enabled"`
	ServiceName string  `yaml:"service_name" default:"signalgate"`
	SampleRatio float64 `yaml:"sample_ratio" default:"1.0" validate:"gte=0,lte=1"`
}

type KafkaConfig struct {
	Enabled      bool     `yaml:"enabled"`
	Brokers      []string `yaml:"brokers" validate:"required_if=Enabled true"`
	RequiredAcks int      `yaml:"required_acks" default:"-1" validate:"oneof=-1 0 1"`
	Compression  string   `yaml:"compression" default:"snappy" validate:"oneof=none gzip snappy lz4 zstd"`
	Topics       struct {
		Signals    string `yaml:"signals" default:"signals.approved"`
		Rejections string `yaml:"rejections" default:"signals.rejected"`
		Outcomes   string `yaml:"outcomes" default:"trades.outcomes"`
		Errors     string `yaml:"errors" default:"logs.errors"`
	} `yaml:"topics"`
	Producer struct {
		MaxAttempts  int           `yaml:"max_attempts" default:"5"`
		Linger       time.Duration `yaml:"linger" default:"50ms"`
		BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
		BatchSize    int           `yaml:"batch_size" default:"100"`
		WriteTimeout time.Duration `yaml:"write_timeout" default:"5s"`
		ReadTimeout  time.Duration `yaml:"read_timeout" default:"5s"`
		Async        bool          `yaml:"async"`
	} `yaml:"producer"`
	Consumer struct {
		GroupID    string        `yaml:"group_id" default:"signalgate"`
		Workers    int           `yaml:"workers" default:"4" validate:"gte=1"`
		BufferSize int           `yaml:"buffer_size" default:"256"`
		RetryMax   int           `yaml:"retry_max" default:"3"`
		BackoffMin time.Duration `yaml:"backoff_min" default:"200ms"`
		BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
		DLQTopic   string        `yaml:"dlq_topic" default:"trades.outcomes.dlq"`
		MinBytes   int           `yaml:"min_bytes" default:"1"`
		MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
	} `yaml:"consumer"`
}

type ClickHouseConfig struct {
	Host             string        `yaml:"host" default:"localhost"`
	Port             int           `yaml:"port" default:"9000"`
	Database         string        `yaml:"database" default:"signalgate"`
	User             string        `yaml:"user" default:"default"`
	Password         string        `yaml:"password"`
	UseHTTP          bool          `yaml:"use_http"`
	AsyncInsert      bool          `yaml:"async_insert" default:"true"`
	WaitForAsync     bool          `yaml:"wait_for_async_insert"`
	DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
	MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	CandleTable      string        `yaml:"candle_table" default:"candles"`
	RejectionTable   string        `yaml:"rejection_table" default:"signal_rejections"`
}

type RedisConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Addr         string        `yaml:"addr" default:"localhost:6379"`
	Password     string        `yaml:"password"`
	DB           int           `yaml:"db"`
	Prefix       string        `yaml:"prefix" default:"signalgate"`
	PoolSize     int           `yaml:"pool_size" default:"10"`
	DialTimeout  time.Duration `yaml:"dial_timeout" default:"5s"`
	ReadTimeout  time.Duration `yaml:"read_timeout" default:"3s"`
	WriteTimeout time.Duration `yaml:"write_timeout" default:"3s"`
}

type ScannerConfig struct {
	Symbols          []string      `yaml:"symbols" validate:"min=1,dive,required"`
	PrimaryTimeframe string        `yaml:"primary_timeframe" default:"1m" validate:"oneof=1m 5m 15m 1h 4h 1d"`
	Timeframes       []string      `yaml:"timeframes" default:"[\"5m\",\"15m\"]" validate:"dive,oneof=1m 5m 15m 1h 4h 1d"`
	Lookback         int           `yaml:"lookback" default:"200" validate:"gte=30"`
	Interval         time.Duration `yaml:"interval" default:"60s" validate:"gt=0"`
	FetchTimeout     time.Duration `yaml:"fetch_timeout" default:"5s" validate:"gt=0"`
	CycleTimeout     time.Duration `yaml:"cycle_timeout" default:"45s" validate:"gt=0"`
	DispatchTimeout  time.Duration `yaml:"dispatch_timeout" default:"3s" validate:"gt=0"`
	MaxConcurrency   int           `yaml:"max_concurrency" default:"8" validate:"gte=1"`
	FetchRate        float64       `yaml:"fetch_rate" default:"20" validate:"gt=0"`
	FetchBurst       int           `yaml:"fetch_burst" default:"10" validate:"gte=1"`
	BreakerFailures  uint32        `yaml:"breaker_failures" default:"5" validate:"gte=1"`
	BreakerTimeout   time.Duration `yaml:"breaker_timeout" default:"30s"`
	StaleAfterBars   int           `yaml:"stale_after_bars" default:"3" validate:"gte=1"`
}

type RiskConfig struct {
	MaxRiskPerTrade      float64       `yaml:"max_risk_per_trade" default:"2.0" validate:"gt=0,lte=100"`
	MaxPortfolioRisk     float64       `yaml:"max_portfolio_risk" default:"10.0" validate:"gt=0,lte=100"`
	MaxPositionSize      float64       `yaml:"max_position_size" default:"5.0" validate:"gt=0,lte=100"`
	MaxDailyLoss         float64       `yaml:"max_daily_loss" default:"5.0" validate:"gt=0,lte=100"`
	CorrelationLimit     int           `yaml:"correlation_limit" default:"3" validate:"gte=1"`
	MinRiskReward        float64       `yaml:"min_risk_reward" default:"1.5" validate:"gte=0"`
	EnforceMinRiskReward bool          `yaml:"enforce_min_risk_reward"`
	Cooldown             time.Duration `yaml:"cooldown" default:"15m"`
	CorrelationMode      string        `yaml:"correlation_mode" default:"quote_family" validate:"oneof=quote_family none"`
	QuoteAssets          []string      `yaml:"quote_assets" default:"[\"FDUSD\",\"USDT\",\"USDC\",\"BUSD\",\"USD\",\"BTC\",\"ETH\"]"`
	Location             string        `yaml:"location" default:"UTC"`
}

type StrategiesConfig struct {
	Enabled           []string `yaml:"enabled" default:"[\"momentum\",\"rsi_extreme\",\"volume_spike\",\"personal\"]" validate:"min=1,dive,oneof=momentum rsi_extreme volume_spike personal"`
	LearningRate      float64  `yaml:"learning_rate" default:"0.1" validate:"gt=0,lte=1"`
	DefaultWeight     float64  `yaml:"default_weight" default:"0.5" validate:"gte=0,lte=1"`
	MinConfidence     float64  `yaml:"min_confidence" default:"0.55" validate:"gte=0,lte=1"`
	MaxHeat           float64  `yaml:"max_heat" default:"5.0" validate:"gt=0"`
	HeatWindow        int      `yaml:"heat_window" default:"20" validate:"gte=2"`
	MinVolumeRatio    float64  `yaml:"min_volume_ratio" default:"0.3" validate:"gte=0"`
	StopLossPercent   float64  `yaml:"stop_loss_percent" default:"1.5" validate:"gt=0"`
	StopATRMultiplier float64  `yaml:"stop_atr_multiplier" default:"1.5" validate:"gte=0"`
	TargetRiskReward  float64  `yaml:"target_risk_reward" default:"2.0" validate:"gt=0"`
	Momentum          struct {
		Lookback         int     `yaml:"lookback" default:"20" validate:"gte=2"`
		MinChangePercent float64 `yaml:"min_change_percent" default:"2.0" validate:"gt=0"`
	} `yaml:"momentum"`
	RSI struct {
		Period     int     `yaml:"period" default:"14" validate:"gte=2"`
		Oversold   float64 `yaml:"oversold" default:"25" validate:"gte=0,lte=100"`
		Overbought float64 `yaml:"overbought" default:"75" validate:"gte=0,lte=100"`
	} `yaml:"rsi"`
	Volume struct {
		Lookback        int     `yaml:"lookback" default:"20" validate:"gte=2"`
		SpikeMultiplier float64 `yaml:"spike_multiplier" default:"2.0" validate:"gt=1"`
	} `yaml:"volume"`
	Personal struct {
		MinVolumeRatio       float64  `yaml:"min_volume_ratio" default:"1.5" validate:"gt=0"`
		ConfluenceTimeframes []string `yaml:"confluence_timeframes" default:"[\"5m\",\"15m\"]"`
		TrendBars            int      `yaml:"trend_bars" default:"20" validate:"gte=2"`
		RequirePattern       bool     `yaml:"require_pattern"`
	} `yaml:"personal"`
	Patterns struct {
		MinConfidence float64 `yaml:"min_confidence" default:"60" validate:"gte=0,lte=100"`
	} `yaml:"patterns"`
}

type LedgerConfig struct {
	Capacity             int           `yaml:"capacity" default:"5000" validate:"gte=1"`
	MaxAge               time.Duration `yaml:"max_age" default:"24h"`
	ClearInterval        time.Duration `yaml:"clear_interval" default:"1h"`
	PersistBuffer        int           `yaml:"persist_buffer" default:"1024" validate:"gte=1"`
	PersistBatch         int           `yaml:"persist_batch" default:"100" validate:"gte=1"`
	PersistInterval      time.Duration `yaml:"persist_interval" default:"2s"`
	PersistTimeout       time.Duration `yaml:"persist_timeout" default:"5s"`
	AdjustmentMinSamples int           `yaml:"adjustment_min_samples" default:"10" validate:"gte=1"`
	AdjustmentPenalty    float64       `yaml:"adjustment_penalty" default:"0.05" validate:"gte=0,lte=1"`
}

var validate = validator.New()

// Load reads a YAML file on top of the tag defaults and validates the result.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(b)
}

// Parse decodes YAML bytes on top of the tag defaults and validates the result.
func Parse(b []byte) (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("apply defaults: %w", err)
	}
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides with environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("SYMBOLS"); v != "" {
		c.Scanner.Symbols = splitList(v)
	}
	if v := getenv("KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
		c.Kafka.Enabled = true
	}
	if v := getenv("CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
	}
	if v := getenv("CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := getenv("REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Logger.Level = v
	}
	if v := getenv("HTTP_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("HTTP_PORT: %w", err)
		}
		c.Server.Port = port
	}
	return nil
}

// Validate checks tag rules and the cross-field constraints tags cannot express.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if c.Risk.MaxPositionSize > c.Risk.MaxPortfolioRisk {
		return fmt.Errorf("risk.max_position_size (%.2f) cannot exceed risk.max_portfolio_risk (%.2f)",
			c.Risk.MaxPositionSize, c.Risk.MaxPortfolioRisk)
	}
	if c.Strategies.RSI.Oversold >= c.Strategies.RSI.Overbought {
		return fmt.Errorf("strategies.rsi.oversold must be below overbought")
	}
	if _, err := time.LoadLocation(c.Risk.Location); err != nil {
		return fmt.Errorf("risk.location: %w", err)
	}
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
