//go:build !wireinject
// +build !wireinject

// Injector bodies for wire.go, kept in wire's output shape. Update them by
// hand when a provider signature changes, or regenerate with the wire tool.

package di

import (
	"FinCast/internal/usecase"
	"FinCast/pkg/config"
	"FinCast/pkg/server"
)

// Injectors from wire.go:

// InitializeApp wires up all dependencies and returns the application.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	fsModelRegistry, err := ProvideFSRegistry(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	modelRegistry, cleanup, err := ProvideModelRegistry(cfg, fsModelRegistry, logger)
	if err != nil {
		return nil, nil, err
	}
	client, cleanup2, err := ProvideClickHouseClient(cfg, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	service, cleanup3, err := ProvideCache(cfg, logger)
	if err != nil {
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	marketDataProvider, err := ProvideMarketData(cfg, client, service, logger)
	if err != nil {
		cleanup3()
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	inferenceEngine := ProvideEngine()
	assembler := ProvideAssembler()
	metrics := ProvideMetrics(cfg)
	predictor := usecase.NewPredictor(modelRegistry, marketDataProvider, inferenceEngine, assembler, metrics, logger)
	predictEchoHandler := ProvidePredictEchoHandler(cfg, logger, predictor, fsModelRegistry)
	app := ProvideApp(cfg, logger, predictEchoHandler)
	return app, func() {
		cleanup3()
		cleanup2()
		cleanup()
	}, nil
}

// InitializePredictor wires the forecasting pipeline without the HTTP server.
func InitializePredictor(cfg *config.Config) (*usecase.Predictor, func(), error) {
	logger, err := ProvideLogger(cfg)
	if err != nil {
		return nil, nil, err
	}
	fsModelRegistry, err := ProvideFSRegistry(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	modelRegistry, cleanup, err := ProvideModelRegistry(cfg, fsModelRegistry, logger)
	if err != nil {
		return nil, nil, err
	}
	client, cleanup2, err := ProvideClickHouseClient(cfg, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	service, cleanup3, err := ProvideCache(cfg, logger)
	if err != nil {
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	marketDataProvider, err := ProvideMarketData(cfg, client, service, logger)
	if err != nil {
		cleanup3()
		cleanup2()
		cleanup()
		return nil, nil, err
	}
	inferenceEngine := ProvideEngine()
	assembler := ProvideAssembler()
	metrics := ProvideMetrics(cfg)
	predictor := usecase.NewPredictor(modelRegistry, marketDataProvider, inferenceEngine, assembler, metrics, logger)
	return predictor, func() {
		cleanup3()
		cleanup2()
		cleanup()
	}, nil
}
