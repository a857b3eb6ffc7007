package health

import (
	"context"
	"net"
	"net/http"
	"time"

	"fleet_remote/internal/fleet"
	"fleet_remote/internal/modules/config"
	"fleet_remote/internal/modules/health/service"
	"fleet_remote/internal/session"
	"fleet_remote/pkg/logger"

	"github.com/bytedance/sonic"
	"go.uber.org/fx"
)

type Config struct {
	Addr string // e.g. ":8080", empty disables the admin server
}

func NewConfig(cfg *config.Config) Config {
	return Config{Addr: cfg.Service.AdminAddr}
}

func writeJSON(w http.ResponseWriter, v any) {
	b, err := sonic.Marshal(v)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(b)
}

func NewMux(state *service.State) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/livez", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		if !state.Ready() {
			http.Error(w, "not ready", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
	})

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{
			"ready":     state.Ready(),
			"session":   state.Session().String(),
			"uptimeSec": int64(state.Uptime().Seconds()),
			"syncs":     state.Syncs(),
			"failures":  state.Failures(),
			"lastError": state.LastError(),
			"lastSyncUnix": func() int64 {
				t := state.LastSync()
				if t.IsZero() {
					return 0
				}
				return t.Unix()
			}(),
		}
		if snap, ok := state.Snapshot(); ok {
			resp["bots"] = len(snap.Bots)
		}
		writeJSON(w, resp)
	})

	mux.HandleFunc("/snapshot", func(w http.ResponseWriter, r *http.Request) {
		snap, ok := state.Snapshot()
		if !ok {
			http.Error(w, "no snapshot yet", http.StatusNotFound)
			return
		}
		writeJSON(w, snap)
	})

	return mux
}

func RunHTTP(lc fx.Lifecycle, cfg Config, mux *http.ServeMux) {
	if cfg.Addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			ln, err := net.Listen("tcp", cfg.Addr)
			if err != nil {
				return err
			}
			logger.Info("[ADMIN] listening on %s", ln.Addr())
			go func() { _ = srv.Serve(ln) }()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

// Watch feeds the admin state from the gate and the synchronizer.
func Watch(state *service.State, gate *session.Gate, sync *fleet.Synchronizer) {
	gate.Subscribe(state.SetSession)
	sync.Subscribe(state.Observe)
}

func Module() fx.Option {
	return fx.Module("health",
		fx.Provide(
			service.NewState,
			NewConfig,
			NewMux,
		),
		fx.Invoke(Watch, RunHTTP),
	)
}
