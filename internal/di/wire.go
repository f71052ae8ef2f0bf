//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"go-verification-gateway/internal/app"
)

func InitializeApp() (*app.App, error) {
	panic(wire.Build(
		ConfigSet,
		ObservabilitySet,
		StoreSet,
		SessionSet,
		HTTPSet,
		AppSet,
	))
}

func InitializeMigrationRunner() (*MigrationRunner, error) {
	panic(wire.Build(
		ConfigSet,
		NewMigrationRunner,
	))
}
