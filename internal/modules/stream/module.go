package stream

import (
	"context"

	"fleet_remote/internal/fleet"
	"fleet_remote/internal/modules/config"
	"fleet_remote/internal/stream"
	"fleet_remote/pkg/logger"

	"go.uber.org/fx"
)

// Runner is started and stopped with the session.
type Runner interface {
	Start(ctx context.Context)
	Stop()
}

type disabled struct{}

func (disabled) Start(context.Context) {}
func (disabled) Stop()                 {}

// NewRunner returns the push watcher, or a no-op when the stream is off.
func NewRunner(cfg *config.Config, sync *fleet.Synchronizer) Runner {
	if !cfg.Stream.Enabled {
		return disabled{}
	}
	logger.Info("[WS] push updates from %s", cfg.Stream.URL)
	return stream.NewWatcher(stream.Config{
		URL:        cfg.Stream.URL,
		Backoff:    cfg.Stream.Backoff,
		MaxBackoff: cfg.Stream.MaxBackoff,
		MinGap:     cfg.Stream.MinGap,
	}, sync)
}

func Module() fx.Option {
	return fx.Module("stream",
		fx.Provide(NewRunner),
	)
}
