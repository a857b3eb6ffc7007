package stream

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"fleet_remote/internal/models"
	"fleet_remote/pkg/logger"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
)

const (
	frameUpdate = "update"

	defaultBackoff    = time.Second
	defaultMaxBackoff = 30 * time.Second
	defaultMinGap     = 2 * time.Second
)

// Refresher is the synchronizer side the watcher pokes.
type Refresher interface {
	RefreshNow(ctx context.Context) (models.FleetSnapshot, error)
}

// Config ...
type Config struct {
	URL        string // ws://host/ws/<user_id>
	Backoff    time.Duration
	MaxBackoff time.Duration
	// MinGap drops update frames arriving sooner than this after the last
	// triggered refresh.
	MinGap time.Duration
}

// Watcher listens to the backend push channel and turns every update frame
// into a coalesced refresh. The frame payload itself is ignored, snapshots
// only come from the regular three-way fetch.
type Watcher struct {
	cfg    Config
	dialer *websocket.Dialer
	fleet  Refresher
	now    func() time.Time

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	last    time.Time
	updates atomic.Int64
	conns   atomic.Int64
}

func NewWatcher(cfg Config, fleet Refresher) *Watcher {
	if cfg.Backoff <= 0 {
		cfg.Backoff = defaultBackoff
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = defaultMaxBackoff
	}
	if cfg.MinGap < 0 {
		cfg.MinGap = 0
	} else if cfg.MinGap == 0 {
		cfg.MinGap = defaultMinGap
	}
	return &Watcher{
		cfg:    cfg,
		dialer: &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		fleet:  fleet,
		now:    time.Now,
	}
}

// Start connects in the background. A second Start while running is a no-op.
func (w *Watcher) Start(ctx context.Context) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel
	w.done = make(chan struct{})
	go w.run(ctx, w.done)
}

// Stop disconnects and waits for the read loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Updates is the number of update frames seen.
func (w *Watcher) Updates() int64 { return w.updates.Load() }

// Connections is the number of successful dials.
func (w *Watcher) Connections() int64 { return w.conns.Load() }

func (w *Watcher) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	attempt := 0
	for {
		conn, _, err := w.dialer.DialContext(ctx, w.cfg.URL, nil)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			attempt++
			wait := w.backoff(attempt)
			logger.Warn("[WS] dial %s failed (attempt %d), retry in %s: %v", w.cfg.URL, attempt, wait, err)
			if !sleep(ctx, wait) {
				return
			}
			continue
		}

		attempt = 0
		w.conns.Add(1)
		logger.Info("[WS] connected to %s", w.cfg.URL)

		err = w.read(ctx, conn)
		if ctx.Err() != nil {
			return
		}
		logger.Warn("[WS] connection lost: %v", err)
		if !sleep(ctx, w.cfg.Backoff) {
			return
		}
	}
}

func (w *Watcher) read(ctx context.Context, conn *websocket.Conn) error {
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer func() {
		stop()
		_ = conn.Close()
	}()

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return err
		}

		var frame struct {
			Type string `json:"type"`
		}
		if err := sonic.Unmarshal(msg, &frame); err != nil {
			logger.Debug("[WS] skipping undecodable frame: %v", err)
			continue
		}
		if frame.Type != frameUpdate {
			continue
		}
		w.updates.Add(1)
		w.trigger(ctx)
	}
}

func (w *Watcher) trigger(ctx context.Context) {
	now := w.now()
	w.mu.Lock()
	if !w.last.IsZero() && now.Sub(w.last) < w.cfg.MinGap {
		w.mu.Unlock()
		return
	}
	w.last = now
	w.mu.Unlock()

	if _, err := w.fleet.RefreshNow(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("[WS] refresh on update failed: %v", err)
	}
}

// backoff grows linearly with attempts, capped at MaxBackoff.
func (w *Watcher) backoff(attempt int) time.Duration {
	d := time.Duration(attempt) * w.cfg.Backoff
	if d > w.cfg.MaxBackoff {
		return w.cfg.MaxBackoff
	}
	return d
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
