package fleet

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"fleet_remote/internal/models"
	"fleet_remote/pkg/logger"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// DefaultInterval is the poll cadence when none is configured.
const DefaultInterval = 10 * time.Second

var (
	// ErrSyncFailed wraps the first failing source of a poll.
	ErrSyncFailed = errors.New("fleet sync failed")
	// ErrStopped is returned for a fetch whose result was discarded by Stop.
	ErrStopped = errors.New("fleet synchronizer stopped")
)

const flightKey = "fleet"

// Source is the read side of the backend.
type Source interface {
	SystemInfo(ctx context.Context) (models.SystemInfo, error)
	Bots(ctx context.Context) ([]models.Bot, error)
	Balance(ctx context.Context) (float64, error)
}

// SyncEvent is published after every fetch. Snapshot is nil unless the fetch
// was committed and is shared by all listeners, read only. Err is ErrStopped
// for a fetch discarded by Stop or Reset.
type SyncEvent struct {
	Snapshot *models.FleetSnapshot
	Err      error
	At       time.Time
}

// Synchronizer keeps the fleet snapshot fresh. It is the only writer of the
// snapshot; at most one fetch is in flight at a time.
type Synchronizer struct {
	src      Source
	interval time.Duration
	now      func() time.Time

	flight singleflight.Group
	snap   atomic.Pointer[models.FleetSnapshot]

	mu      sync.Mutex
	running bool
	// epoch changes on every Start, Stop and Reset; a fetch commits only if
	// the epoch it started under is still current
	epoch uint64
	timer *time.Timer
	subs  []func(SyncEvent)
}

func NewSynchronizer(src Source, interval time.Duration) *Synchronizer {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Synchronizer{
		src:      src,
		interval: interval,
		now:      time.Now,
	}
}

// Interval ...
func (s *Synchronizer) Interval() time.Duration { return s.interval }

// Start fetches immediately and then again interval after each fetch
// completes. Cancelling ctx stops the loop like Stop. Calling Start on a
// running synchronizer does nothing.
func (s *Synchronizer) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.epoch++
	epoch := s.epoch
	s.mu.Unlock()

	context.AfterFunc(ctx, func() { s.stopEpoch(epoch) })

	logger.Info("[SYNC] loop started, interval %s", s.interval)
	go s.tick(ctx, epoch)
}

// Stop cancels the pending timer before returning. A fetch already in flight
// runs to completion but is not committed.
func (s *Synchronizer) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Reset stops the loop and forgets the committed snapshot. Used when the
// session that produced it ends; a fetch still in flight is discarded.
func (s *Synchronizer) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
	s.epoch++
	s.snap.Store(nil)
}

func (s *Synchronizer) stopEpoch(epoch uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.epoch == epoch {
		s.stopLocked()
	}
}

func (s *Synchronizer) stopLocked() {
	if !s.running {
		return
	}
	s.running = false
	s.epoch++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	logger.Info("[SYNC] loop stopped")
}

// Running reports whether the loop is scheduled.
func (s *Synchronizer) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

func (s *Synchronizer) tick(ctx context.Context, epoch uint64) {
	if !s.current(epoch) {
		return
	}
	_, err := s.RefreshNow(ctx)
	if errors.Is(err, ErrStopped) && s.current(epoch) {
		// joined a fetch left over from before a restart
		_, err = s.RefreshNow(ctx)
	}
	if err != nil && !errors.Is(err, ErrStopped) {
		logger.Warn("[SYNC] poll failed, keeping previous snapshot: %v", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running || s.epoch != epoch {
		return
	}
	s.timer = time.AfterFunc(s.interval, func() { s.tick(ctx, epoch) })
}

func (s *Synchronizer) current(epoch uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running && s.epoch == epoch
}

// RefreshNow fetches out of band, or joins the fetch already in flight and
// gets its result. The fetch itself is detached from ctx cancellation so a
// caller giving up does not fail the other waiters. Works whether or not the
// loop is running.
func (s *Synchronizer) RefreshNow(ctx context.Context) (models.FleetSnapshot, error) {
	ch := s.flight.DoChan(flightKey, func() (any, error) {
		s.mu.Lock()
		epoch := s.epoch
		s.mu.Unlock()
		return s.fetch(context.WithoutCancel(ctx), epoch)
	})

	select {
	case <-ctx.Done():
		return models.FleetSnapshot{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return models.FleetSnapshot{}, res.Err
		}
		return detach(res.Val.(models.FleetSnapshot)), nil
	}
}

// Current returns a copy of the last committed snapshot.
func (s *Synchronizer) Current() (models.FleetSnapshot, bool) {
	p := s.snap.Load()
	if p == nil {
		return models.FleetSnapshot{}, false
	}
	return detach(*p), true
}

// detach gives the caller its own bot list so the committed snapshot cannot
// be patched through it.
func detach(snap models.FleetSnapshot) models.FleetSnapshot {
	snap.Bots = slices.Clone(snap.Bots)
	return snap
}

// Subscribe registers fn for every poll outcome. Listeners run on the fetch
// goroutine and must not block or call RefreshNow synchronously.
func (s *Synchronizer) Subscribe(fn func(SyncEvent)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

func (s *Synchronizer) fetch(ctx context.Context, epoch uint64) (models.FleetSnapshot, error) {
	var (
		info    models.SystemInfo
		bots    []models.Bot
		balance float64
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		if info, err = s.src.SystemInfo(gctx); err != nil {
			return fmt.Errorf("system info: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		if bots, err = s.src.Bots(gctx); err != nil {
			return fmt.Errorf("bots: %w", err)
		}
		return nil
	})
	g.Go(func() (err error) {
		if balance, err = s.src.Balance(gctx); err != nil {
			return fmt.Errorf("balance: %w", err)
		}
		return nil
	})

	err := g.Wait()
	var snap models.FleetSnapshot
	if err == nil {
		snap = models.NewFleetSnapshot(info, bots, balance, s.now())
	}

	// a stopped fetch is inert whether it failed or not
	s.mu.Lock()
	if s.epoch != epoch {
		s.mu.Unlock()
		logger.Debug("[SYNC] discarding fetch finished after stop")
		s.publish(SyncEvent{Err: ErrStopped, At: s.now()})
		return models.FleetSnapshot{}, ErrStopped
	}
	if err == nil {
		s.snap.Store(&snap)
	}
	s.mu.Unlock()

	if err != nil {
		err = fmt.Errorf("%w: %w", ErrSyncFailed, err)
		s.publish(SyncEvent{Err: err, At: s.now()})
		return models.FleetSnapshot{}, err
	}

	logger.Debug("[SYNC] snapshot committed: %d bots, balance %.2f", len(snap.Bots), snap.Balance)
	s.publish(SyncEvent{Snapshot: &snap, At: snap.AsOf})
	return snap, nil
}

func (s *Synchronizer) publish(ev SyncEvent) {
	s.mu.Lock()
	subs := make([]func(SyncEvent), len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()

	for _, fn := range subs {
		fn(ev)
	}
}
