package observability

import (
	"context"

	"fleet_remote/internal/modules/config"
	"fleet_remote/pkg/logger"
	"fleet_remote/pkg/tracing"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
)

// NewFxLogger initialises the process logger from config and routes fx
// events through it.
func NewFxLogger(cfg *config.Config) (fxevent.Logger, error) {
	logger.SetServiceName(cfg.Service.Name)
	tracing.SetServiceName(cfg.Service.Name)

	if _, err := logger.Init(LoggerConfig(cfg)); err != nil {
		return nil, err
	}
	return &fxevent.ZapLogger{Logger: logger.L()}, nil
}

// LoggerConfig maps the log section of the config.
func LoggerConfig(cfg *config.Config) logger.Config {
	return logger.Config{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	}
}

// TracingConfig maps the tracing section of the config.
func TracingConfig(cfg *config.Config) tracing.Config {
	return tracing.Config{
		Host:       cfg.Tracing.Host,
		Port:       cfg.Tracing.Port,
		SampleRate: cfg.Tracing.SampleRate,
	}
}

func runTracer(lc fx.Lifecycle, cfg *config.Config) error {
	_, closer, err := tracing.InitTracer(TracingConfig(cfg))
	if err != nil {
		return err
	}
	if cfg.Tracing.Host != "" {
		logger.Info("tracing to jaeger agent %s:%d", cfg.Tracing.Host, cfg.Tracing.Port)
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			closer()
			_ = logger.L().Sync()
			return nil
		},
	})
	return nil
}

func Module() fx.Option {
	return fx.Options(
		fx.WithLogger(NewFxLogger),
		fx.Module("observability",
			fx.Invoke(runTracer),
		),
	)
}
