package di

import (
	"context"
	"fmt"
	"time"

	"SignalGate/internal/domain/models"
	domrepo "SignalGate/internal/domain/repository"
	"SignalGate/internal/handler/api"
	internalrepo "SignalGate/internal/repository"
	"SignalGate/internal/services/indicators"
	"SignalGate/internal/services/ledger"
	"SignalGate/internal/services/patterns"
	"SignalGate/internal/services/risk"
	"SignalGate/internal/services/strategy"
	"SignalGate/internal/usecase"
	"SignalGate/pkg/cache"
	pkgch "SignalGate/pkg/clickhouse"
	"SignalGate/pkg/config"
	xhttp "SignalGate/pkg/http"
	pkgkafka "SignalGate/pkg/kafka"
	applogger "SignalGate/pkg/logger"
	"SignalGate/pkg/metrics"
	"SignalGate/pkg/server"
	"SignalGate/pkg/tracing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// ProvideRegistry creates the process-wide Prometheus registry.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ProvideMetrics creates the pipeline metrics recorder.
func ProvideMetrics(reg *prometheus.Registry) *metrics.Recorder {
	return metrics.New(reg)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config, reg *prometheus.Registry) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithProducerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideLogger builds the root logger. With Kafka enabled, repeated error logs
// are aggregated and published to the errors topic.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*applogger.Logger, error) {
	l, err := applogger.New(&cfg.Logger)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if producer != nil && cfg.Kafka.Topics.Errors != "" {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.Topics.Errors,
			Publisher:      internalrepo.NewKafkaSignalPublisher(producer, internalrepo.KafkaTopics{}, nil),
			PublishTimeout: 10 * time.Second,
		})
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

func ProvideTracer(cfg *config.Config) (*tracing.Provider, error) {
	return tracing.New(tracing.Config{
		Enabled:     cfg.Tracing.Enabled,
		ServiceName: cfg.Tracing.ServiceName,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
}

// ProvideClickHouseClient connects to ClickHouse and creates the candle tables.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, error) {
	ch := cfg.ClickHouse
	client, err := pkgch.NewClient(
		pkgch.WithAddress(ch.Host, ch.Port),
		pkgch.WithDatabase(ch.Database),
		pkgch.WithCredentials(ch.User, ch.Password),
		pkgch.WithPool(10, 5, time.Hour),
		pkgch.WithHTTP(ch.UseHTTP),
		pkgch.WithAsyncInsert(ch.AsyncInsert, ch.WaitForAsync),
		pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout),
		pkgch.WithMaxExecutionTime(ch.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.CandleSchema(ch.CandleTable)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	l.Info("clickhouse ready", applogger.String("database", client.Database()))
	return client, nil
}

// ProvideCache returns Redis when enabled, otherwise a process-local cache.
// Cooldowns and the tick lock only span instances with Redis.
func ProvideCache(cfg *config.Config, l *applogger.Logger) (cache.Service, error) {
	if !cfg.Redis.Enabled {
		l.Warn("redis disabled, cooldowns and weights are process-local")
		return cache.NewMemoryCache(), nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Redis.Addr),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
		cache.WithRedisPool(cfg.Redis.PoolSize, 2, cfg.Redis.DialTimeout),
		cache.WithRedisPrefix(cfg.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

func ProvideCandleStore(client *pkgch.Client, cfg *config.Config, l *applogger.Logger) *internalrepo.CHCandleStore {
	return internalrepo.NewCHCandleStore(client.DB(), cfg.ClickHouse.CandleTable, l)
}

func ProvideRejectionStore(client *pkgch.Client, cfg *config.Config, l *applogger.Logger) *internalrepo.CHRejectionStore {
	return internalrepo.NewCHRejectionStore(client.DB(), cfg.ClickHouse.RejectionTable, l)
}

func ProvideWeightStore(c cache.Service) domrepo.WeightStore {
	return internalrepo.NewCacheWeightStore(c)
}

// ProvideSignalDispatcher publishes approved signals to Kafka, or logs them when Kafka is off.
func ProvideSignalDispatcher(producer *pkgkafka.Producer, cfg *config.Config, l *applogger.Logger) domrepo.SignalDispatcher {
	if producer == nil {
		return internalrepo.NewLogDispatcher(l)
	}
	return internalrepo.NewKafkaSignalPublisher(producer, kafkaTopics(cfg), l)
}

func ProvideRejectionPublisher(producer *pkgkafka.Producer, cfg *config.Config, l *applogger.Logger) domrepo.RejectionPublisher {
	if producer == nil || cfg.Kafka.Topics.Rejections == "" {
		return nil
	}
	return internalrepo.NewKafkaSignalPublisher(producer, kafkaTopics(cfg), l)
}

func kafkaTopics(cfg *config.Config) internalrepo.KafkaTopics {
	return internalrepo.KafkaTopics{Signals: cfg.Kafka.Topics.Signals, Rejections: cfg.Kafka.Topics.Rejections}
}

func riskParameters(cfg *config.Config) models.RiskParameters {
	r := cfg.Risk
	return models.RiskParameters{
		MaxRiskPerTrade:      r.MaxRiskPerTrade,
		MaxPortfolioRisk:     r.MaxPortfolioRisk,
		MaxPositionSize:      r.MaxPositionSize,
		MaxDailyLoss:         r.MaxDailyLoss,
		CorrelationLimit:     r.CorrelationLimit,
		MinRiskReward:        r.MinRiskReward,
		EnforceMinRiskReward: r.EnforceMinRiskReward,
	}
}

func ProvideRiskGate(cfg *config.Config, c cache.Service, m *metrics.Recorder, l *applogger.Logger) (*risk.Gate, error) {
	loc, err := time.LoadLocation(cfg.Risk.Location)
	if err != nil {
		return nil, fmt.Errorf("risk location: %w", err)
	}
	opts := []risk.Option{
		risk.WithLocation(loc),
		risk.WithLogger(l),
		risk.WithMetrics(m),
	}
	if cfg.Risk.Cooldown > 0 {
		opts = append(opts, risk.WithCooldown(risk.NewCacheCooldown(c, cfg.Risk.Cooldown)))
	}
	if cfg.Risk.CorrelationMode == "quote_family" {
		opts = append(opts, risk.WithCorrelation(risk.NewQuoteFamily(cfg.Risk.QuoteAssets)))
	}
	g, err := risk.NewGate(riskParameters(cfg), opts...)
	if err != nil {
		return nil, fmt.Errorf("risk gate: %w", err)
	}
	return g, nil
}

// ProvideWeightBook creates the adaptive weights and restores the last persisted snapshot.
func ProvideWeightBook(cfg *config.Config, store domrepo.WeightStore, m *metrics.Recorder, l *applogger.Logger) *strategy.WeightBook {
	book := strategy.NewWeightBook(cfg.Strategies.LearningRate, cfg.Strategies.DefaultWeight, cfg.Strategies.Enabled)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	saved, err := store.LoadWeights(ctx)
	if err != nil {
		l.Warn("load strategy weights failed, starting from defaults", applogger.Error(err))
	} else if len(saved) > 0 {
		book.Restore(saved)
		l.Info("strategy weights restored", applogger.Int("strategies", len(saved)))
	}
	for _, w := range book.Snapshot().All() {
		m.SetStrategyWeight(w.StrategyID, w.Weight)
	}
	return book
}

func ProvideScorer(cfg *config.Config, book *strategy.WeightBook, l *applogger.Logger) (*strategy.Scorer, error) {
	s := cfg.Strategies
	evaluators, err := strategy.NewEvaluators(strategy.Settings{
		Enabled: s.Enabled,
		Levels: strategy.Levels{
			StopLossPercent:   s.StopLossPercent,
			StopATRMultiplier: s.StopATRMultiplier,
			TargetRiskReward:  s.TargetRiskReward,
		},
		MomentumLookback:       s.Momentum.Lookback,
		MomentumMinChange:      s.Momentum.MinChangePercent,
		RSIPeriod:              s.RSI.Period,
		RSIOversold:            s.RSI.Oversold,
		RSIOverbought:          s.RSI.Overbought,
		VolumeLookback:         s.Volume.Lookback,
		VolumeMultiplier:       s.Volume.SpikeMultiplier,
		PersonalMinVolumeRatio: s.Personal.MinVolumeRatio,
		PersonalTimeframes:     s.Personal.ConfluenceTimeframes,
		PersonalTrendBars:      s.Personal.TrendBars,
		PersonalRequirePattern: s.Personal.RequirePattern,
	})
	if err != nil {
		return nil, fmt.Errorf("strategies: %w", err)
	}
	return strategy.NewScorer(evaluators, book, l), nil
}

func ProvideLedger(cfg *config.Config, store *internalrepo.CHRejectionStore, pub domrepo.RejectionPublisher, m *metrics.Recorder, l *applogger.Logger) *ledger.Ledger {
	lc := cfg.Ledger
	return ledger.New(ledger.Config{
		Capacity:        lc.Capacity,
		PersistBuffer:   lc.PersistBuffer,
		PersistBatch:    lc.PersistBatch,
		PersistInterval: lc.PersistInterval,
		PersistTimeout:  lc.PersistTimeout,
	},
		ledger.WithStore(store),
		ledger.WithPublisher(pub),
		ledger.WithLogger(l),
		ledger.WithMetrics(m),
	)
}

func ProvideIndicatorEngine(cfg *config.Config) *indicators.Engine {
	return indicators.NewEngine(indicators.WithRSIPeriod(cfg.Strategies.RSI.Period))
}

func ProvidePatternRecognizer(cfg *config.Config) *patterns.Recognizer {
	pc := patterns.DefaultConfig()
	pc.MinConfidence = cfg.Strategies.Patterns.MinConfidence
	return patterns.NewRecognizer(pc)
}

// ProvideCandleSource guards the store with a rate limit and a circuit breaker.
func ProvideCandleSource(store *internalrepo.CHCandleStore, cfg *config.Config, l *applogger.Logger) *usecase.ResilientCandleSource {
	sc := cfg.Scanner
	return usecase.NewResilientCandleSource(store, usecase.SourceConfig{
		FetchTimeout:    sc.FetchTimeout,
		Rate:            sc.FetchRate,
		Burst:           sc.FetchBurst,
		BreakerFailures: sc.BreakerFailures,
		BreakerTimeout:  sc.BreakerTimeout,
	}, l)
}

func ProvideSnapshotLoader(source *usecase.ResilientCandleSource, cfg *config.Config, l *applogger.Logger) *usecase.SnapshotLoader {
	sc := cfg.Scanner
	return usecase.NewSnapshotLoader(source, sc.PrimaryTimeframe, sc.Timeframes, sc.Lookback, l)
}

func filterConfig(cfg *config.Config) usecase.FilterConfig {
	s := cfg.Strategies
	return usecase.FilterConfig{
		MinConfidence:  s.MinConfidence,
		MaxHeat:        s.MaxHeat,
		HeatWindow:     s.HeatWindow,
		MinVolumeRatio: s.MinVolumeRatio,
		VolumeLookback: s.Volume.Lookback,
		StaleAfterBars: cfg.Scanner.StaleAfterBars,
	}
}

func ProvideScanCycle(
	cfg *config.Config,
	loader *usecase.SnapshotLoader,
	engine *indicators.Engine,
	recognizer *patterns.Recognizer,
	scorer *strategy.Scorer,
	gate *risk.Gate,
	rejections *ledger.Ledger,
	dispatcher domrepo.SignalDispatcher,
	tracer *tracing.Provider,
	m *metrics.Recorder,
	l *applogger.Logger,
) *usecase.ScanCycle {
	return usecase.NewScanCycle(loader, engine, recognizer, scorer, gate, rejections, dispatcher,
		usecase.WithFilters(filterConfig(cfg)),
		usecase.WithDispatchTimeout(cfg.Scanner.DispatchTimeout),
		usecase.WithTracer(tracer),
		usecase.WithCycleMetrics(m),
		usecase.WithCycleLogger(l),
	)
}

func ProvideScheduler(
	cfg *config.Config,
	cycle *usecase.ScanCycle,
	rejections *ledger.Ledger,
	book *strategy.WeightBook,
	store domrepo.WeightStore,
	c cache.Service,
	m *metrics.Recorder,
	l *applogger.Logger,
) *usecase.Scheduler {
	sc := usecase.SchedulerConfig{
		Symbols:              cfg.Scanner.Symbols,
		Interval:             cfg.Scanner.Interval,
		CycleTimeout:         cfg.Scanner.CycleTimeout,
		MaxConcurrency:       cfg.Scanner.MaxConcurrency,
		ClearInterval:        cfg.Ledger.ClearInterval,
		MaxAge:               cfg.Ledger.MaxAge,
		AdjustmentMinSamples: cfg.Ledger.AdjustmentMinSamples,
		AdjustmentPenalty:    cfg.Ledger.AdjustmentPenalty,
	}
	if cfg.Redis.Enabled {
		sc.LockTTL = cfg.Scanner.Interval
	}
	return usecase.NewScheduler(sc, cycle, rejections, book,
		usecase.WithWeightStore(store),
		usecase.WithTickLock(c),
		usecase.WithSchedulerMetrics(m),
		usecase.WithSchedulerLogger(l),
	)
}

func ProvideOutcomeHandler(cfg *config.Config, book *strategy.WeightBook, scorer *strategy.Scorer, gate *risk.Gate, store domrepo.WeightStore, m *metrics.Recorder, l *applogger.Logger) *usecase.TradeOutcomeHandler {
	h := usecase.NewTradeOutcomeHandler(cfg.Kafka.Topics.Outcomes, book, gate, store, m, l)
	h.SetKnownStrategies(scorer.StrategyIDs())
	return h
}

// ProvideKafkaConsumer creates the outcome consumer, or nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, reg *prometheus.Registry, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled || cfg.Kafka.Topics.Outcomes == "" {
		return nil, nil
	}
	kc := cfg.Kafka.Consumer
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(kc.GroupID),
		pkgkafka.WithConsumerWorkers(kc.Workers),
		pkgkafka.WithConsumerBufferSize(kc.BufferSize),
		pkgkafka.WithConsumerRetry(kc.RetryMax, kc.BackoffMin, kc.BackoffMax),
		pkgkafka.WithConsumerDLQ(kc.DLQTopic),
		pkgkafka.WithConsumerFetch(kc.MinBytes, kc.MaxBytes),
		pkgkafka.WithConsumerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.SetHook(pkgkafka.HookChain{pkgkafka.TraceHook{}})
	return consumer, nil
}

// ProvideAnalyst shares the scanner's resilient source, so on-demand reads are
// validated and count against the same breaker and fetch budget.
func ProvideAnalyst(source *usecase.ResilientCandleSource, engine *indicators.Engine, recognizer *patterns.Recognizer, cfg *config.Config) *usecase.Analyst {
	return usecase.NewAnalyst(source, engine, recognizer, filterConfig(cfg))
}

func ProvideHTTPServer(
	cfg *config.Config,
	reg *prometheus.Registry,
	rejections *ledger.Ledger,
	history *internalrepo.CHRejectionStore,
	gate *risk.Gate,
	book *strategy.WeightBook,
	analyst *usecase.Analyst,
	outcomes *usecase.TradeOutcomeHandler,
	client *pkgch.Client,
	c cache.Service,
	l *applogger.Logger,
) *xhttp.Server {
	dashboard := api.NewDashboardHandler(l, rejections, gate, book)
	dashboard.SetHistory(history)

	checks := map[string]api.HealthCheck{"clickhouse": client.Health}
	if cfg.Redis.Enabled {
		checks["redis"] = func(ctx context.Context) error {
			_, err := c.Exists(ctx, "healthz")
			return err
		}
	}

	metricsPath := ""
	if cfg.Metrics.Enabled {
		metricsPath = cfg.Metrics.Path
	}
	return xhttp.NewServer(xhttp.Handlers{
		dashboard,
		api.NewAnalyzeHandler(l, analyst, outcomes),
		api.NewHealthHandler(checks),
	},
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithLogger(l),
		xhttp.WithMetrics(reg, reg, metricsPath),
		xhttp.WithRateLimit(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst),
		xhttp.WithCORS(cfg.Server.CORSEnabled()),
	)
}

// ProvideApp assembles the lifecycle. Clients are closed after every component using them stopped.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	rejections *ledger.Ledger,
	scheduler *usecase.Scheduler,
	consumer *pkgkafka.Consumer,
	outcomes *usecase.TradeOutcomeHandler,
	httpServer *xhttp.Server,
	tracer *tracing.Provider,
	producer *pkgkafka.Producer,
	client *pkgch.Client,
	c cache.Service,
) *server.App {
	opts := []server.Option{
		server.WithHTTPServer(httpServer),
		server.WithTracer(tracer),
		server.WithShutdownTimeout(cfg.Server.ShutdownTimeout),
		server.WithCleanup(server.Cleanup{Name: "clickhouse", Close: client.Close}),
	}
	if closer, ok := c.(interface{ Close() error }); ok {
		opts = append(opts, server.WithCleanup(server.Cleanup{Name: "cache", Close: closer.Close}))
	}
	if producer != nil {
		opts = append(opts, server.WithCleanup(server.Cleanup{Name: "kafka_producer", Close: producer.Close}))
	}
	if consumer != nil {
		opts = append(opts, server.WithConsumer(consumer, outcomes))
	}
	return server.New(l, rejections, scheduler, opts...)
}
