//go:build wireinject
// +build wireinject

package di

import (
	"FinCast/internal/usecase"
	"FinCast/pkg/config"
	"FinCast/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideCache,

		// Repositories
		ProvideFSRegistry,
		ProvideModelRegistry,
		ProvideMarketData,

		// Services and use cases
		ProvideEngine,
		ProvideAssembler,
		usecase.NewPredictor,

		// Transport and application server
		ProvidePredictEchoHandler,
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializePredictor wires the forecasting pipeline without the HTTP server.
func InitializePredictor(cfg *config.Config) (*usecase.Predictor, func(), error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,
		ProvideClickHouseClient,
		ProvideCache,
		ProvideFSRegistry,
		ProvideModelRegistry,
		ProvideMarketData,
		ProvideEngine,
		ProvideAssembler,
		usecase.NewPredictor,
	)
	return nil, nil, nil
}
