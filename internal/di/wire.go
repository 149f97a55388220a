//go:build wireinject
// +build wireinject

package di

import (
	"SignalGate/pkg/config"
	"SignalGate/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideRegistry,
		ProvideMetrics,
		ProvideTracer,

		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideClickHouseClient,
		ProvideCache,

		// Repositories
		ProvideCandleStore,
		ProvideRejectionStore,
		ProvideWeightStore,
		ProvideSignalDispatcher,
		ProvideRejectionPublisher,

		// Services
		ProvideRiskGate,
		ProvideWeightBook,
		ProvideScorer,
		ProvideLedger,
		ProvideIndicatorEngine,
		ProvidePatternRecognizer,

		// Use cases
		ProvideCandleSource,
		ProvideSnapshotLoader,
		ProvideScanCycle,
		ProvideScheduler,
		ProvideOutcomeHandler,
		ProvideAnalyst,

		// Transport
		ProvideKafkaConsumer,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
