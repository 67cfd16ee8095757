//go:build wireinject
// +build wireinject

package di

import (
	"TradePulse/pkg/config"
	"TradePulse/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,
		ProvideConfigHolder,

		// Exchange surface and infrastructure
		ProvideMarket,
		ProvideHistorySink,
		ProvidePositionStore,

		// Engine and scheduler
		ProvideEngine,
		ProvideScheduler,

		// Control plane and application server
		ProvideHTTPHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
