package vault

import (
	"fleet_remote/internal/modules/config"
	"fleet_remote/internal/vault"
	"fleet_remote/pkg/logger"

	"go.uber.org/fx"
)

// NewStore picks the encrypted file store when a passphrase is configured,
// otherwise credentials only live for the lifetime of the process.
func NewStore(cfg *config.Config) (vault.Store, error) {
	if cfg.Vault.Passphrase == "" {
		logger.Warn("[VAULT] no passphrase configured, credentials are kept in memory only")
		return vault.NewMemoryStore(), nil
	}
	fs, err := vault.NewFileStore(cfg.Vault.Path, cfg.Vault.Passphrase, cfg.Vault.WorkFactor)
	if err != nil {
		return nil, err
	}
	logger.Info("[VAULT] using encrypted store %s", fs.Path())
	return fs, nil
}

func Module() fx.Option {
	return fx.Module("vault",
		fx.Provide(
			NewStore,
			vault.New,
		),
	)
}
