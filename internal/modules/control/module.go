package control

import (
	"context"
	"errors"
	"sync/atomic"

	"fleet_remote/internal/backend"
	"fleet_remote/internal/fleet"
	"fleet_remote/internal/journal"
	"fleet_remote/internal/modules/config"
	"fleet_remote/internal/modules/stream"
	"fleet_remote/internal/notify"
	"fleet_remote/internal/session"
	"fleet_remote/pkg/logger"

	"go.uber.org/fx"
)

func NewSynchronizer(cfg *config.Config, client *backend.Client) *fleet.Synchronizer {
	return fleet.NewSynchronizer(client, cfg.Sync.Interval)
}

func NewDispatcher(client *backend.Client, sync *fleet.Synchronizer, confirm fleet.Confirmer, rec journal.Recorder) *fleet.Dispatcher {
	return fleet.NewDispatcher(client, sync, confirm, rec)
}

// Params ...
type Params struct {
	fx.In

	Ctx    context.Context
	LC     fx.Lifecycle
	Cfg    *config.Config
	Gate   *session.Gate
	Sync   *fleet.Synchronizer
	Stream stream.Runner
	Notify notify.Notifier
}

// Alerts tells the operator when polling starts failing and when it
// recovers, once per transition.
type Alerts struct {
	n       notify.Notifier
	failing atomic.Bool
}

func NewAlerts(n notify.Notifier) *Alerts { return &Alerts{n: n} }

func (a *Alerts) Observe(ev fleet.SyncEvent) {
	switch {
	case errors.Is(ev.Err, fleet.ErrStopped):
	case ev.Err != nil:
		if a.failing.CompareAndSwap(false, true) {
			a.n.Send("⚠️ Backend unreachable, showing the last known state")
		}
	default:
		if a.failing.CompareAndSwap(true, false) {
			a.n.Send("✅ Backend reachable again")
		}
	}
}

// Reset forgets a failure streak, used when the session closes.
func (a *Alerts) Reset() { a.failing.Store(false) }

// Loop is the synchronizer as seen by the session wiring.
type Loop interface {
	Start(ctx context.Context)
	Reset()
}

// FollowSession starts polling and the push watcher when a session opens.
// When it closes both stop and the previous account's snapshot is dropped.
func FollowSession(ctx context.Context, loop Loop, push stream.Runner, alerts *Alerts) func(session.State) {
	return func(s session.State) {
		switch s {
		case session.Session:
			loop.Start(ctx)
			push.Start(ctx)
		case session.NoSession:
			push.Stop()
			loop.Reset()
			alerts.Reset()
		}
	}
}

// Run ties polling to the session: the loop and the push watcher run only
// while a backend session is active.
func Run(p Params) {
	alerts := NewAlerts(p.Notify)
	p.Sync.Subscribe(alerts.Observe)

	p.Gate.Subscribe(FollowSession(p.Ctx, p.Sync, p.Stream, alerts))

	p.LC.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			creds, ok := p.Gate.Bootstrap(ctx)
			if !ok || !p.Cfg.Session.ConnectOnStart {
				return nil
			}
			// connecting can take a while, do not hold up startup
			go func() {
				out, err := p.Gate.Connect(p.Ctx, creds.APIKey, creds.APISecret)
				switch {
				case err != nil:
					logger.Warn("[SESSION] connect on start failed: %v", err)
				case !out.Accepted:
					logger.Warn("[SESSION] connect on start rejected: %s", out.Message)
				}
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			p.Stream.Stop()
			p.Sync.Stop()
			return nil
		},
	})
}

func Module() fx.Option {
	return fx.Module("control",
		fx.Provide(
			NewSynchronizer,
			NewDispatcher,
		),
		fx.Invoke(Run),
	)
}
