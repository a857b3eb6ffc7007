package backend

import (
	"fleet_remote/internal/backend"
	"fleet_remote/internal/modules/config"

	"go.uber.org/fx"
)

// NewClient builds the REST client from config.
func NewClient(cfg *config.Config) *backend.Client {
	return backend.NewClient(backend.Config{
		BaseURL:   cfg.Backend.BaseURL,
		Timeout:   cfg.Backend.Timeout,
		RateLimit: cfg.Backend.RateLimit,
		RateBurst: cfg.Backend.RateBurst,
	})
}

func Module() fx.Option {
	return fx.Module("backend",
		fx.Provide(NewClient),
	)
}
