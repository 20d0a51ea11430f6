package service

import (
	"sync/atomic"
	"time"
)

// State carries process health plus the runner metrics kept across cycles.
// Observability only; nothing reads these for decisions.
type State struct {
	ready     atomic.Bool
	startedAt time.Time

	lastRunUnix    atomic.Int64 // unix seconds of the last completed cycle
	cyclesTotal    atomic.Int64
	signalsEmitted atomic.Int64
}

func NewState() *State {
	s := &State{startedAt: time.Now()}
	s.ready.Store(false)
	return s
}

func (s *State) SetReady(v bool) { s.ready.Store(v) }
func (s *State) Ready() bool     { return s.ready.Load() }

func (s *State) TouchRun(t time.Time) { s.lastRunUnix.Store(t.Unix()) }
func (s *State) LastRun() time.Time {
	u := s.lastRunUnix.Load()
	if u == 0 {
		return time.Time{}
	}
	return time.Unix(u, 0)
}

func (s *State) IncCycles()         { s.cyclesTotal.Add(1) }
func (s *State) Cycles() int64      { return s.cyclesTotal.Load() }
func (s *State) AddSignals(n int64) { s.signalsEmitted.Add(n) }
func (s *State) Signals() int64     { return s.signalsEmitted.Load() }

func (s *State) Uptime() time.Duration { return time.Since(s.startedAt) }
