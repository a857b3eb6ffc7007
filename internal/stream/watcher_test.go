package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"fleet_remote/internal/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingRefresher struct{ n atomic.Int32 }

func (c *countingRefresher) RefreshNow(context.Context) (models.FleetSnapshot, error) {
	c.n.Add(1)
	return models.FleetSnapshot{}, nil
}

func wsServer(t *testing.T, frames []string, hold bool) *httptest.Server {
	t.Helper()
	up := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for _, f := range frames {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		if hold {
			// keep the socket open until the client goes away
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/user_001"
}

func TestWatcherRefreshesOnUpdate(t *testing.T) {
	srv := wsServer(t, []string{
		`{"type":"update","system_info":{},"bots_info":[]}`,
		`{"type":"ping"}`,
		`not json`,
	}, true)

	ref := &countingRefresher{}
	w := NewWatcher(Config{URL: wsURL(srv), MinGap: -1}, ref)
	w.Start(context.Background())
	defer w.Stop()

	require.Eventually(t, func() bool { return ref.n.Load() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int64(1), w.Updates())
}

func TestWatcherThrottlesBursts(t *testing.T) {
	frame := `{"type":"update"}`
	srv := wsServer(t, []string{frame, frame, frame, frame}, true)

	ref := &countingRefresher{}
	w := NewWatcher(Config{URL: wsURL(srv), MinGap: time.Hour}, ref)
	w.Start(context.Background())
	defer w.Stop()

	require.Eventually(t, func() bool { return w.Updates() == 4 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, int32(1), ref.n.Load())
}

func TestWatcherReconnects(t *testing.T) {
	srv := wsServer(t, []string{`{"type":"update"}`}, false)

	ref := &countingRefresher{}
	w := NewWatcher(Config{URL: wsURL(srv), Backoff: 10 * time.Millisecond, MinGap: -1}, ref)
	w.Start(context.Background())
	defer w.Stop()

	require.Eventually(t, func() bool { return w.Connections() >= 2 }, 2*time.Second, 5*time.Millisecond)
	assert.GreaterOrEqual(t, ref.n.Load(), int32(1))
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	w := NewWatcher(Config{URL: "ws://127.0.0.1:1/ws/x", Backoff: 5 * time.Millisecond}, &countingRefresher{})
	w.Start(context.Background())
	w.Stop()
	w.Stop()
}

func TestBackoffIsCapped(t *testing.T) {
	w := NewWatcher(Config{Backoff: time.Second, MaxBackoff: 3 * time.Second}, &countingRefresher{})
	assert.Equal(t, time.Second, w.backoff(1))
	assert.Equal(t, 2*time.Second, w.backoff(2))
	assert.Equal(t, 3*time.Second, w.backoff(10))
}
