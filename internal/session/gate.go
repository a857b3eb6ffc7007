package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"fleet_remote/internal/models"
	"fleet_remote/pkg/logger"
)

var (
	ErrBlankCredentials  = errors.New("api key and api secret are required")
	ErrConnectInProgress = errors.New("a connect attempt is already in progress")
)

// State of the gate.
type State int

const (
	Uninitialized State = iota
	CheckingVault
	NoSession
	Connecting
	Session
)

func (s State) String() string {
	switch s {
	case Uninitialized:
		return "uninitialized"
	case CheckingVault:
		return "checking_vault"
	case NoSession:
		return "no_session"
	case Connecting:
		return "connecting"
	case Session:
		return "session"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Connector hands credentials to the backend.
type Connector interface {
	Connect(ctx context.Context, creds models.Credentials) (models.CommandOutcome, error)
}

// CredentialVault persists the credential pair.
type CredentialVault interface {
	Save(ctx context.Context, creds models.Credentials) error
	Load(ctx context.Context) (models.Credentials, bool, error)
	Clear(ctx context.Context) error
}

// Gate owns the session: it never lets commands run before a successful
// connect and allows one connect attempt at a time.
type Gate struct {
	backend Connector
	vault   CredentialVault

	mu    sync.Mutex
	state State
	creds models.Credentials
	subs  []func(State)
}

func NewGate(backend Connector, vault CredentialVault) *Gate {
	return &Gate{backend: backend, vault: vault}
}

// Bootstrap looks for stored credentials and hands them back as a pre-fill.
// It never connects. Vault errors are logged and treated as no stored pair.
func (g *Gate) Bootstrap(ctx context.Context) (models.Credentials, bool) {
	g.setState(CheckingVault)

	creds, ok, err := g.vault.Load(ctx)
	if err != nil {
		logger.Warn("[SESSION] vault unavailable, starting without stored credentials: %v", err)
		creds, ok = models.Credentials{}, false
	}

	g.setState(NoSession)
	if ok {
		logger.Info("[SESSION] stored credentials found for key %s", creds.Masked())
	}
	return creds, ok
}

// Connect forwards the pair to the backend. A rejection comes back as a
// not-accepted outcome with the backend message; transport failures as an
// error. Only a successful connect persists the pair and opens the session.
func (g *Gate) Connect(ctx context.Context, apiKey, apiSecret string) (models.CommandOutcome, error) {
	creds := models.Credentials{
		APIKey:    strings.TrimSpace(apiKey),
		APISecret: strings.TrimSpace(apiSecret),
	}
	if !creds.Complete() {
		return models.CommandOutcome{}, ErrBlankCredentials
	}

	g.mu.Lock()
	if g.state == Connecting {
		g.mu.Unlock()
		return models.CommandOutcome{}, ErrConnectInProgress
	}
	prev := g.state
	g.state = Connecting
	g.mu.Unlock()
	g.notify(Connecting)

	out, err := g.backend.Connect(ctx, creds)
	if err != nil {
		logger.Warn("[SESSION] connect failed: %v", err)
		g.setState(prev)
		return models.CommandOutcome{}, fmt.Errorf("connect: %w", err)
	}
	if !out.Accepted {
		logger.Warn("[SESSION] connect rejected: %s", out.Message)
		g.mu.Lock()
		g.creds = models.Credentials{}
		g.mu.Unlock()
		g.setState(NoSession)
		return out, nil
	}

	if err := g.vault.Save(ctx, creds); err != nil {
		logger.Warn("[SESSION] connected but could not store credentials: %v", err)
	}

	g.mu.Lock()
	g.creds = creds
	g.mu.Unlock()
	g.setState(Session)
	logger.Info("[SESSION] connected with key %s", creds.Masked())
	return out, nil
}

// Clear drops the session and the stored pair. The state is reset even if
// the vault fails; the vault error is returned for display only.
func (g *Gate) Clear(ctx context.Context) error {
	err := g.vault.Clear(ctx)
	if err != nil {
		logger.Warn("[SESSION] clearing vault: %v", err)
	}

	g.mu.Lock()
	g.creds = models.Credentials{}
	g.mu.Unlock()
	g.setState(NoSession)
	return err
}

func (g *Gate) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// Active reports whether the session is open.
func (g *Gate) Active() bool { return g.State() == Session }

// Credentials returns the pair of the open session.
func (g *Gate) Credentials() (models.Credentials, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.creds, g.state == Session
}

// Subscribe registers fn for state changes. fn runs on the goroutine that
// changed the state.
func (g *Gate) Subscribe(fn func(State)) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.subs = append(g.subs, fn)
}

func (g *Gate) setState(s State) {
	g.mu.Lock()
	changed := g.state != s
	g.state = s
	g.mu.Unlock()
	if changed {
		g.notify(s)
	}
}

func (g *Gate) notify(s State) {
	g.mu.Lock()
	subs := make([]func(State), len(g.subs))
	copy(subs, g.subs)
	g.mu.Unlock()

	for _, fn := range subs {
		fn(s)
	}
}
