//go:build wireinject
// +build wireinject

package di

import (
	"CostSim/pkg/config"
	"CostSim/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure
		ProvideMarketStream,
		ProvideCache,
		ProvideAuditSink,
		ProvideQueue,

		// Domain services
		ProvideSnapshotStore,
		ProvideEstimator,
		ProvideClassifier,
		ProvideRegressor,

		// Use cases
		ProvideCollector,
		ProvideSimulator,

		// HTTP
		ProvideHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
