package service

import (
	"errors"
	"sync/atomic"
	"time"

	"fleet_remote/internal/fleet"
	"fleet_remote/internal/models"
	"fleet_remote/internal/session"
)

// State collects what the admin endpoints report. It is fed by the session
// gate and the synchronizer.
type State struct {
	startedAt time.Time

	session  atomic.Int32
	snapshot atomic.Pointer[models.FleetSnapshot]

	lastSyncUnix atomic.Int64 // unix seconds
	lastErr      atomic.Pointer[string]
	syncs        atomic.Int64
	failures     atomic.Int64
}

func NewState() *State {
	return &State{startedAt: time.Now()}
}

// SetSession records the gate state. Leaving the session drops the fleet
// data of the account that was connected.
func (s *State) SetSession(st session.State) {
	s.session.Store(int32(st))
	if st == session.NoSession {
		s.snapshot.Store(nil)
		s.lastErr.Store(nil)
	}
}

func (s *State) Session() session.State { return session.State(s.session.Load()) }

// Observe records a sync outcome. Discarded fetches are ignored.
func (s *State) Observe(ev fleet.SyncEvent) {
	if ev.Snapshot != nil {
		s.snapshot.Store(ev.Snapshot)
		s.syncs.Add(1)
		s.lastSyncUnix.Store(ev.At.Unix())
		s.lastErr.Store(nil)
		return
	}
	if ev.Err == nil || errors.Is(ev.Err, fleet.ErrStopped) {
		return
	}
	msg := ev.Err.Error()
	s.lastErr.Store(&msg)
	s.failures.Add(1)
}

// Ready means a session is open and at least one snapshot was committed.
func (s *State) Ready() bool {
	return s.Session() == session.Session && s.snapshot.Load() != nil
}

func (s *State) Snapshot() (models.FleetSnapshot, bool) {
	p := s.snapshot.Load()
	if p == nil {
		return models.FleetSnapshot{}, false
	}
	return *p, true
}

func (s *State) LastSync() time.Time {
	u := s.lastSyncUnix.Load()
	if u == 0 {
		return time.Time{}
	}
	return time.Unix(u, 0)
}

// LastError is the error of the latest failed poll, cleared by a success.
func (s *State) LastError() string {
	if p := s.lastErr.Load(); p != nil {
		return *p
	}
	return ""
}

func (s *State) Syncs() int64    { return s.syncs.Load() }
func (s *State) Failures() int64 { return s.failures.Load() }

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }
