package health

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"fleet_remote/internal/fleet"
	"fleet_remote/internal/models"
	"fleet_remote/internal/modules/health/service"
	"fleet_remote/internal/session"

	"github.com/bytedance/sonic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func get(t *testing.T, srv *httptest.Server, path string) (int, string) {
	t.Helper()
	resp, err := http.Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b)
}

func TestReadinessFollowsSessionAndSnapshot(t *testing.T) {
	state := service.NewState()
	srv := httptest.NewServer(NewMux(state))
	defer srv.Close()

	code, _ := get(t, srv, "/livez")
	assert.Equal(t, http.StatusOK, code)

	code, _ = get(t, srv, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	code, _ = get(t, srv, "/snapshot")
	assert.Equal(t, http.StatusNotFound, code)

	state.SetSession(session.Session)
	code, _ = get(t, srv, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)

	snap := models.NewFleetSnapshot(models.SystemInfo{TotalBots: 1}, []models.Bot{{BotID: "b1", Status: "open"}}, 50, time.Unix(1700000000, 0))
	state.Observe(fleet.SyncEvent{Snapshot: &snap, At: snap.AsOf})

	code, body := get(t, srv, "/readyz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ready", body)

	code, body = get(t, srv, "/snapshot")
	require.Equal(t, http.StatusOK, code)
	var got models.FleetSnapshot
	require.NoError(t, sonic.UnmarshalString(body, &got))
	assert.Equal(t, 50.0, got.Balance)
	require.Len(t, got.Bots, 1)

	state.SetSession(session.NoSession)
	code, _ = get(t, srv, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	code, _ = get(t, srv, "/snapshot")
	assert.Equal(t, http.StatusNotFound, code)
}

func TestHealthzReportsFailures(t *testing.T) {
	state := service.NewState()
	srv := httptest.NewServer(NewMux(state))
	defer srv.Close()

	state.Observe(fleet.SyncEvent{Err: errors.New("bots: boom")})
	state.Observe(fleet.SyncEvent{Err: fleet.ErrStopped})

	code, body := get(t, srv, "/healthz")
	require.Equal(t, http.StatusOK, code)

	var resp map[string]any
	require.NoError(t, sonic.UnmarshalString(body, &resp))
	assert.Equal(t, false, resp["ready"])
	assert.Equal(t, "bots: boom", resp["lastError"])
	assert.EqualValues(t, 1, resp["failures"])
	assert.EqualValues(t, 0, resp["syncs"])
}
