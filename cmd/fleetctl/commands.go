package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"fleet_remote/internal/fleet"
	"fleet_remote/internal/models"
	"fleet_remote/internal/render"
	"fleet_remote/pkg/logger"

	"github.com/pkg/errors"
	flag "github.com/spf13/pflag"
)

var errRejected = errors.New("rejected by the backend")

func newFlags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

func (a *app) login(ctx context.Context, args []string) error {
	fs := newFlags("login")
	key := fs.String("key", os.Getenv("FLEET_API_KEY"), "api key")
	secret := fs.String("secret", os.Getenv("FLEET_API_SECRET"), "api secret")
	if err := fs.Parse(args); err != nil {
		return err
	}

	prefill, stored := a.gate.Bootstrap(ctx)
	if *key == "" && *secret == "" {
		if !stored {
			return errors.New("no stored keys, pass --key and --secret")
		}
		*key, *secret = prefill.APIKey, prefill.APISecret
		a.println("Using stored key " + prefill.Masked())
	}

	out, err := a.gate.Connect(ctx, *key, *secret)
	return a.report(out, err)
}

func (a *app) logout(ctx context.Context) error {
	if err := a.gate.Clear(ctx); err != nil {
		return errors.Wrap(err, "remove stored keys")
	}
	a.println("Stored keys removed")
	return nil
}

func (a *app) status(ctx context.Context) error {
	snap, err := a.sync.RefreshNow(ctx)
	if err != nil {
		return errors.Wrap(err, "fetch fleet")
	}
	a.println(render.Snapshot(snap, time.Now()))
	a.println(render.Bots(snap.Bots))
	return nil
}

func (a *app) watch(ctx context.Context) error {
	a.sync.Subscribe(func(ev fleet.SyncEvent) {
		switch {
		case ev.Snapshot != nil:
			a.println("\n" + render.Snapshot(*ev.Snapshot, time.Now()))
			a.println(render.Bots(ev.Snapshot.Bots))
		case ev.Err != nil && !errors.Is(ev.Err, fleet.ErrStopped):
			a.println("⚠️ poll failed: " + render.Error(ev.Err))
		}
	})
	a.sync.Start(ctx)
	<-ctx.Done()
	a.sync.Stop()
	return nil
}

func (a *app) positions(ctx context.Context) error {
	ps, err := a.client.Positions(ctx)
	if err != nil {
		return errors.Wrap(err, "fetch positions")
	}
	a.println(render.Positions(ps))
	return nil
}

func (a *app) add(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return errors.New("usage: fleetctl add static|dynamic [flags]")
	}
	fs := newFlags("add " + args[0])
	form := fleet.CreationForm{Mode: args[0]}
	fs.StringVar(&form.Symbol, "symbol", "", "instrument, static mode only")
	fs.StringVar(&form.Count, "count", "1", "number of bots, dynamic mode only")
	fs.StringVar(&form.Leverage, "lev", "", "leverage, 1..100")
	fs.StringVar(&form.Percent, "percent", "", "percent of balance per bot")
	fs.StringVar(&form.TakeProfit, "tp", "", "take profit, percent")
	fs.StringVar(&form.StopLoss, "sl", "", "stop loss, percent")
	fs.StringVar(&form.ROITrigger, "roi", "", "roi trigger, percent (optional)")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	req, err := fleet.ParseCreation(form)
	if err != nil {
		return err
	}
	return a.report(a.disp.CreateBots(ctx, req))
}

func (a *app) stopOne(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: fleetctl stop <bot_id>")
	}
	// best effort, only used to name the bot in the prompt
	if _, err := a.sync.RefreshNow(ctx); err != nil {
		logger.Debug("refresh before stop: %v", err)
	}
	return a.report(a.disp.StopOne(ctx, args[0]))
}

func (a *app) stopAll(ctx context.Context) error {
	if _, err := a.sync.RefreshNow(ctx); err != nil {
		return errors.Wrap(err, "fetch fleet")
	}
	return a.report(a.disp.StopAll(ctx))
}

func (a *app) history(ctx context.Context, args []string) error {
	fs := newFlags("history")
	limit := fs.IntP("limit", "n", 20, "number of entries")
	if err := fs.Parse(args); err != nil {
		return err
	}
	entries, err := a.journal.Recent(ctx, *limit)
	if err != nil {
		return errors.Wrap(err, "read history")
	}
	a.println(render.History(entries, time.Now()))
	return nil
}

// report prints a command result. Rejections exit non-zero.
func (a *app) report(out models.CommandOutcome, err error) error {
	if err != nil {
		logger.Debug("command failed: %+v", err)
		return fmt.Errorf("%s", render.Error(err))
	}
	a.println(render.Outcome(out))
	if !out.Accepted {
		return errRejected
	}
	return nil
}
