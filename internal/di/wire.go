//go:build wireinject
// +build wireinject

package di

import (
	"MandiCast/pkg/config"
	"MandiCast/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Infrastructure clients
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		ProvideRedisClient,
		ProvideClickHouseClient,

		// Data and models
		ProvideCatalog,
		ProvideSeries,
		ProvideModelStore,
		ProvideModelRegistry,
		ProvideFeedCache,
		ProvidePriceFeed,

		// Audit path
		ProvideAuditStore,
		ProvideRedisQueue,
		ProvideAuditPublisher,
		ProvideAuditProcessor,
		ProvideAuditCollector,
		ProvideKafkaConsumer,
		ProvideKafkaAuditHandler,

		// Use cases
		ProvideInferencePool,
		ProvideForecastService,
		ProvideAggregateUseCase,
		ProvideHistoryUseCase,
		ProvidePredictionsUseCase,

		// Transport
		ProvideRateLimiter,
		ProvideMarketHandler,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
