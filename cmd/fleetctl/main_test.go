package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"fleet_remote/internal/models"
	"fleet_remote/internal/modules/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const twoBots = `[{"bot_id":"b1","symbol":"BTCUSDC","status":"open","lev":10,"percent":5,"tp":100,"sl":50,"average_down_count":0},
	{"bot_id":"b2","symbol":null,"status":"searching","lev":10,"percent":5,"tp":100,"sl":50,"average_down_count":0}]`

type call struct {
	route string
	body  string
}

type fakeServer struct {
	mu    sync.Mutex
	calls []call
	bots  string
}

func (f *fakeServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	route := r.Method + " " + r.URL.Path

	f.mu.Lock()
	f.calls = append(f.calls, call{route: route, body: string(b)})
	bots := f.bots
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	switch route {
	case "GET /api/system-info":
		_, _ = io.WriteString(w, `{"total_bots":2,"trading_bots":1,"searching_bots":1,"total_unrealized_pnl":0}`)
	case "GET /api/bots":
		_, _ = io.WriteString(w, bots)
	case "GET /api/balance":
		_, _ = io.WriteString(w, `{"balance":100}`)
	case "POST /api/connect":
		_, _ = io.WriteString(w, `{"success":true,"message":"connected"}`)
	case "POST /api/stop-bot":
		_, _ = io.WriteString(w, `{"success":true,"message":"stopped"}`)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeServer) routes() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	for i, c := range f.calls {
		out[i] = c.route
	}
	return out
}

func (f *fakeServer) bodyOf(route string) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, c := range f.calls {
		if c.route == route {
			return c.body
		}
	}
	return ""
}

func newTestApp(t *testing.T, bots string, yes bool, stdin string) (*app, *fakeServer, *bytes.Buffer) {
	t.Helper()
	t.Setenv("FLEET_API_KEY", "")
	t.Setenv("FLEET_API_SECRET", "")

	fs := &fakeServer{bots: bots}
	srv := httptest.NewServer(fs)
	t.Cleanup(srv.Close)

	cfg := &config.Config{}
	cfg.Backend.BaseURL = srv.URL
	cfg.Backend.Timeout = 2 * time.Second
	cfg.Sync.Interval = time.Hour

	out := &bytes.Buffer{}
	a, err := build(context.Background(), cfg, yes, strings.NewReader(stdin), out)
	require.NoError(t, err)
	t.Cleanup(a.close)
	return a, fs, out
}

func indexOf(routes []string, route string) int {
	for i, r := range routes {
		if r == route {
			return i
		}
	}
	return -1
}

func TestLogin(t *testing.T) {
	tests := []struct {
		name    string
		stored  *models.Credentials
		args    []string
		wantKey string
		wantErr string
	}{
		{
			name:    "explicit keys",
			args:    []string{"--key", "k1", "--secret", "s1"},
			wantKey: `{"api_key":"k1","api_secret":"s1"}`,
		},
		{
			name:    "stored keys",
			stored:  &models.Credentials{APIKey: "storedkey", APISecret: "storedsecret"},
			wantKey: `{"api_key":"storedkey","api_secret":"storedsecret"}`,
		},
		{
			name:    "explicit keys win over stored",
			stored:  &models.Credentials{APIKey: "storedkey", APISecret: "storedsecret"},
			args:    []string{"--key", "k2", "--secret", "s2"},
			wantKey: `{"api_key":"k2","api_secret":"s2"}`,
		},
		{
			name:    "nothing to log in with",
			wantErr: "no stored keys",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a, fs, _ := newTestApp(t, twoBots, true, "")
			ctx := context.Background()
			if tt.stored != nil {
				require.NoError(t, a.vault.Save(ctx, *tt.stored))
			}

			err := a.run(ctx, "login", tt.args)
			if tt.wantErr != "" {
				require.ErrorContains(t, err, tt.wantErr)
				assert.Equal(t, -1, indexOf(fs.routes(), "POST /api/connect"))
				return
			}
			require.NoError(t, err)
			assert.JSONEq(t, tt.wantKey, fs.bodyOf("POST /api/connect"))

			saved, ok, err := a.vault.Load(ctx)
			require.NoError(t, err)
			require.True(t, ok)
			assert.JSONEq(t, tt.wantKey,
				`{"api_key":"`+saved.APIKey+`","api_secret":"`+saved.APISecret+`"}`)
		})
	}
}

func TestStopAllRefreshesBeforeDispatch(t *testing.T) {
	a, fs, out := newTestApp(t, twoBots, true, "")

	require.NoError(t, a.run(context.Background(), "stop-all", nil))

	routes := fs.routes()
	stop := indexOf(routes, "POST /api/stop-bot")
	require.NotEqual(t, -1, stop)
	assert.Less(t, indexOf(routes, "GET /api/bots"), stop)
	assert.JSONEq(t, `{"bot_id":"all"}`, fs.bodyOf("POST /api/stop-bot"))
	assert.Contains(t, out.String(), "✅ stopped")
}

func TestStopAllTypedPhrase(t *testing.T) {
	a, fs, out := newTestApp(t, twoBots, false, "stop ALL 2 bots\n")

	require.NoError(t, a.run(context.Background(), "stop-all", nil))
	assert.NotEqual(t, -1, indexOf(fs.routes(), "POST /api/stop-bot"))
	assert.Contains(t, out.String(), `Type "stop ALL 2 bots" to confirm`)
}

func TestStopAllEmptyFleet(t *testing.T) {
	a, fs, out := newTestApp(t, `[]`, true, "")

	err := a.run(context.Background(), "stop-all", nil)
	assert.ErrorIs(t, err, errRejected)
	assert.Equal(t, -1, indexOf(fs.routes(), "POST /api/stop-bot"))
	assert.Contains(t, out.String(), "nothing to stop")
}

func TestStopRefusesAllID(t *testing.T) {
	a, fs, _ := newTestApp(t, twoBots, true, "")

	err := a.run(context.Background(), "stop", []string{"all"})
	require.ErrorContains(t, err, "use stop-all to stop every bot")
	assert.Equal(t, -1, indexOf(fs.routes(), "POST /api/stop-bot"))
}

func TestUnknownCommand(t *testing.T) {
	a, _, _ := newTestApp(t, twoBots, true, "")
	assert.Error(t, a.run(context.Background(), "launch", nil))
}
