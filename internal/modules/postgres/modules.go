package postgres

import (
	"context"
	"fmt"

	"fleet_remote/internal/journal"
	"fleet_remote/internal/modules/config"
	"fleet_remote/pkg/db"
	"fleet_remote/pkg/logger"

	"go.uber.org/fx"
)

// Journal is what the rest of the app sees of the database.
type Journal struct {
	fx.Out

	Recorder journal.Recorder
	Reader   journal.Reader
}

// NewJournal connects to Postgres and prepares the command journal. Without
// a DSN the journal is a no-op.
func NewJournal(ctx context.Context, lc fx.Lifecycle, cfg *config.Config) (Journal, error) {
	if cfg.DB == "" {
		logger.Info("[DB] no dsn configured, command journal disabled")
		return Journal{Recorder: journal.Nop{}, Reader: journal.Nop{}}, nil
	}

	poolMaster, err := db.NewPool(ctx, db.PoolConfig{
		DSN: cfg.DB,
	})
	if err != nil {
		return Journal{}, fmt.Errorf("failed to create poolMaster: %w", err)
	}

	if err = poolMaster.Ping(ctx); err != nil {
		poolMaster.Close()
		return Journal{}, err
	}

	txm := db.NewPgTxManager(poolMaster)
	rec := journal.NewPgRecorder(txm)
	if err = rec.EnsureSchema(ctx); err != nil {
		txm.Close()
		return Journal{}, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			txm.Close()
			return nil
		},
	})
	return Journal{Recorder: rec, Reader: rec}, nil
}

func Module() fx.Option {
	return fx.Module("postgres",
		fx.Provide(NewJournal),
	)
}
