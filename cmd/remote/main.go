package main

import (
	"context"

	"fleet_remote/internal/modules/backend"
	"fleet_remote/internal/modules/config"
	"fleet_remote/internal/modules/control"
	"fleet_remote/internal/modules/health"
	"fleet_remote/internal/modules/observability"
	"fleet_remote/internal/modules/postgres"
	"fleet_remote/internal/modules/session"
	"fleet_remote/internal/modules/stream"
	"fleet_remote/internal/modules/vault"

	telegram "fleet_remote/internal/modules/telegram_bot"

	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		fx.Provide(
			// lives until the app stops, background loops hang off it
			func(lc fx.Lifecycle) context.Context {
				ctx, cancel := context.WithCancel(context.Background())
				lc.Append(fx.StopHook(cancel))
				return ctx
			},
		),
		config.Module(),
		observability.Module(),
		postgres.Module(),
		backend.Module(),
		vault.Module(),
		session.Module(),
		telegram.Module(),
		control.Module(),
		stream.Module(),
		health.Module(),
	)
	app.Run()
}
