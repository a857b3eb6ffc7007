package vault

import (
	"context"
	"errors"
	"fmt"

	"fleet_remote/internal/models"
)

// Store keys of the credential pair.
const (
	KeyAPIKey    = "api_key"
	KeyAPISecret = "api_secret"
)

// ErrIncomplete is returned by Save when either half is blank.
var ErrIncomplete = errors.New("vault: credential pair is incomplete")

// Vault saves and loads the credential pair as a unit.
type Vault struct {
	store Store
}

func New(store Store) *Vault {
	return &Vault{store: store}
}

// Save overwrites the stored pair. On a plain Store a failed second write
// restores the first key to what it was, so a half-updated pair is never
// left behind.
func (v *Vault) Save(ctx context.Context, creds models.Credentials) error {
	if !creds.Complete() {
		return ErrIncomplete
	}
	if bs, ok := v.store.(BatchStore); ok {
		if err := bs.SaveAll(ctx, map[string]string{
			KeyAPIKey:    creds.APIKey,
			KeyAPISecret: creds.APISecret,
		}); err != nil {
			return fmt.Errorf("vault: save pair: %w", err)
		}
		return nil
	}

	prev, hadPrev, err := v.store.Get(ctx, KeyAPIKey)
	if err != nil {
		return fmt.Errorf("vault: read %s: %w", KeyAPIKey, err)
	}
	if err := v.store.Save(ctx, KeyAPIKey, creds.APIKey); err != nil {
		return fmt.Errorf("vault: save %s: %w", KeyAPIKey, err)
	}
	if err := v.store.Save(ctx, KeyAPISecret, creds.APISecret); err != nil {
		var rbErr error
		if hadPrev {
			rbErr = v.store.Save(ctx, KeyAPIKey, prev)
		} else {
			rbErr = v.store.Delete(ctx, KeyAPIKey)
		}
		if rbErr != nil {
			return fmt.Errorf("vault: save %s: %w (rollback: %v)", KeyAPISecret, err, rbErr)
		}
		return fmt.Errorf("vault: save %s: %w", KeyAPISecret, err)
	}
	return nil
}

// Load returns the pair only when both halves are present and non-empty.
func (v *Vault) Load(ctx context.Context) (models.Credentials, bool, error) {
	key, okKey, err := v.store.Get(ctx, KeyAPIKey)
	if err != nil {
		return models.Credentials{}, false, fmt.Errorf("vault: read %s: %w", KeyAPIKey, err)
	}
	secret, okSecret, err := v.store.Get(ctx, KeyAPISecret)
	if err != nil {
		return models.Credentials{}, false, fmt.Errorf("vault: read %s: %w", KeyAPISecret, err)
	}

	creds := models.Credentials{APIKey: key, APISecret: secret}
	if !okKey || !okSecret || !creds.Complete() {
		return models.Credentials{}, false, nil
	}
	return creds, true, nil
}

// Clear removes both halves. Clearing an empty vault is not an error.
func (v *Vault) Clear(ctx context.Context) error {
	if bs, ok := v.store.(BatchStore); ok {
		if err := bs.DeleteAll(ctx, KeyAPIKey, KeyAPISecret); err != nil {
			return fmt.Errorf("vault: clear: %w", err)
		}
		return nil
	}
	// try both even if the first fails
	return errors.Join(
		v.store.Delete(ctx, KeyAPIKey),
		v.store.Delete(ctx, KeyAPISecret),
	)
}
