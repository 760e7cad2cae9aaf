//go:build wireinject
// +build wireinject

package di

import (
	"MacroPull/pkg/config"
	"MacroPull/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideClock,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideFetchCache,

		// Repositories
		ProvideRecordStore,
		ProvidePublisher,

		// Provider adapters
		ProvideFREDClient,
		ProvideYahooClient,
		ProvideAlphaVantageClient,

		// Pipeline
		ProvideValidationEngine,
		ProvideIngestor,
		ProvideBackfiller,

		// Application
		ProvideApp,
	)
	return &server.App{}, nil
}
