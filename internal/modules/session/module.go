package session

import (
	"fleet_remote/internal/backend"
	"fleet_remote/internal/session"
	"fleet_remote/internal/vault"

	"go.uber.org/fx"
)

// NewGate ...
func NewGate(client *backend.Client, v *vault.Vault) *session.Gate {
	return session.NewGate(client, v)
}

func Module() fx.Option {
	return fx.Module("session",
		fx.Provide(NewGate),
	)
}
