//go:build wireinject
// +build wireinject

package di

import (
	pkgch "TFTracker/pkg/clickhouse"
	"TFTracker/pkg/config"
	"TFTracker/pkg/server"

	"github.com/google/wire"
)

// coreSet builds stores, the updater and its listeners.
var coreSet = wire.NewSet(
	// Infrastructure clients
	ProvideLogger,
	ProvideMetrics,
	ProvideClickHouseClient,
	ProvideRedisCache,
	ProvideCache,
	ProvideKafkaProducer,

	// Repositories
	ProvideSnapshotStore,
	ProvideAssetStore,
	ProvidePhaseStore,
	ProvideLocker,

	// Use cases
	ProvideClassifier,
	ProvideHub,
	ProvidePhaseQuery,
	ProvidePhaseUpdater,
	ProvideAssetRegistry,
)

// InitializeApp wires up all dependencies and returns the application.
func InitializeApp(cfg *config.Config) (*server.App, func(), error) {
	wire.Build(
		coreSet,
		ProvideKafkaConsumer,
		ProvideSnapshotEventsHandler,
		ProvidePhaseScheduler,
		ProvideSnapshotQuery,
		ProvideHealthChecks,
		ProvideHTTPServer,
		ProvideApp,
	)
	return nil, nil, nil
}

// InitializeRefresh wires the one-shot refresh command.
func InitializeRefresh(cfg *config.Config) (*Refresh, func(), error) {
	wire.Build(coreSet, ProvideRefresh)
	return nil, nil, nil
}

// InitializeMigrator wires the migrate command.
func InitializeMigrator(cfg *config.Config) (*pkgch.Migrator, func(), error) {
	wire.Build(ProvideLogger, ProvideMigrator)
	return nil, nil, nil
}
