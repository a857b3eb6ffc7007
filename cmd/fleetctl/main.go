package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"fleet_remote/internal/backend"
	"fleet_remote/internal/fleet"
	"fleet_remote/internal/journal"
	"fleet_remote/internal/modules/config"
	"fleet_remote/internal/notify"
	"fleet_remote/internal/session"
	"fleet_remote/internal/vault"
	"fleet_remote/pkg/db"
	"fleet_remote/pkg/logger"

	"github.com/pkg/errors"
	flag "github.com/spf13/pflag"
)

const usage = `fleetctl - drive the bot fleet from a terminal

Usage:
  fleetctl [global flags] <command> [flags]

Commands:
  login      connect to the backend and store the keys
  logout     forget the stored keys
  status     fleet summary and bots
  watch      poll and print the fleet until interrupted
  positions  open exchange positions
  add        create bots
  stop       stop one bot by id
  stop-all   stop every bot
  history    last recorded commands

Global flags:
`

type app struct {
	cfg     *config.Config
	client  *backend.Client
	vault   *vault.Vault
	gate    *session.Gate
	sync    *fleet.Synchronizer
	disp    *fleet.Dispatcher
	journal journal.Reader
	term    *notify.Terminal
	out     io.Writer
	closers []func()
}

func main() {
	global := flag.NewFlagSet("fleetctl", flag.ContinueOnError)
	global.SetInterspersed(false)
	cfgPath := global.String("config", "", "config file (default configs/$CONFIG_FILE)")
	yes := global.BoolP("yes", "y", false, "do not ask for confirmation")
	level := global.String("log-level", "warn", "log level")
	global.Usage = func() {
		fmt.Fprint(os.Stderr, usage)
		global.PrintDefaults()
	}
	if err := global.Parse(os.Args[1:]); err != nil {
		os.Exit(2)
	}
	if global.NArg() == 0 {
		global.Usage()
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, *cfgPath, *level, *yes)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fleetctl:", err)
		os.Exit(1)
	}
	defer a.close()

	if err := a.run(ctx, global.Arg(0), global.Args()[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "fleetctl:", err)
		a.close()
		os.Exit(1)
	}
}

func newApp(ctx context.Context, cfgPath, level string, yes bool) (*app, error) {
	var (
		cfg *config.Config
		err error
	)
	if cfgPath != "" {
		cfg, err = config.Load(cfgPath)
	} else {
		cfg, err = config.NewConfig()
	}
	if err != nil {
		return nil, errors.Wrap(err, "load config")
	}

	logger.SetServiceName("fleetctl")
	if _, err = logger.Init(logger.Config{Level: level}); err != nil {
		return nil, err
	}
	return build(ctx, cfg, yes, os.Stdin, os.Stdout)
}

// build wires the app from a loaded config.
func build(ctx context.Context, cfg *config.Config, yes bool, in io.Reader, out io.Writer) (*app, error) {
	var err error
	a := &app{cfg: cfg, out: out, term: notify.NewTerminal(in, out)}

	a.client = backend.NewClient(backend.Config{
		BaseURL:   cfg.Backend.BaseURL,
		Timeout:   cfg.Backend.Timeout,
		RateLimit: cfg.Backend.RateLimit,
		RateBurst: cfg.Backend.RateBurst,
	})

	var store vault.Store = vault.NewMemoryStore()
	if cfg.Vault.Passphrase != "" {
		if store, err = vault.NewFileStore(cfg.Vault.Path, cfg.Vault.Passphrase, cfg.Vault.WorkFactor); err != nil {
			return nil, errors.Wrap(err, "open vault")
		}
	}
	a.vault = vault.New(store)
	a.gate = session.NewGate(a.client, a.vault)

	var rec journal.Recorder = journal.Nop{}
	a.journal = journal.Nop{}
	if cfg.DB != "" {
		pool, err := db.NewPool(ctx, db.PoolConfig{DSN: cfg.DB})
		if err != nil {
			return nil, errors.Wrap(err, "connect journal database")
		}
		txm := db.NewPgTxManager(pool)
		a.closers = append(a.closers, txm.Close)
		pg := journal.NewPgRecorder(txm)
		if err = pg.EnsureSchema(ctx); err != nil {
			txm.Close()
			return nil, err
		}
		rec, a.journal = pg, pg
	}

	var confirm fleet.Confirmer = a.term
	if yes {
		confirm = notify.AutoConfirm{}
	}
	a.sync = fleet.NewSynchronizer(a.client, cfg.Sync.Interval)
	a.disp = fleet.NewDispatcher(a.client, a.sync, confirm, rec)
	return a, nil
}

func (a *app) close() {
	for _, c := range a.closers {
		c()
	}
	a.closers = nil
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "login":
		return a.login(ctx, args)
	case "logout":
		return a.logout(ctx)
	case "status":
		return a.status(ctx)
	case "watch":
		return a.watch(ctx)
	case "positions":
		return a.positions(ctx)
	case "add":
		return a.add(ctx, args)
	case "stop":
		return a.stopOne(ctx, args)
	case "stop-all":
		return a.stopAll(ctx)
	case "history":
		return a.history(ctx, args)
	default:
		return fmt.Errorf("unknown command %q, run fleetctl --help", cmd)
	}
}

func (a *app) println(s string) { fmt.Fprintln(a.out, strings.TrimRight(s, "\n")) }
