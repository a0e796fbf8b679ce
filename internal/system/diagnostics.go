package system

import (
	"time"

	"github.com/l1jgo/simcore/internal/core/event"
	coresys "github.com/l1jgo/simcore/internal/core/system"
	"github.com/l1jgo/simcore/internal/replication"
	"github.com/l1jgo/simcore/internal/world"
	"go.uber.org/zap"
)

// DiagnosticsSystem logs per-connection input queue statistics and world
// counters every interval ticks. Phase 4 (Output), after the output system.
type DiagnosticsSystem struct {
	worldState *world.State
	bus        *event.Bus
	entities   func() int
	interval   int
	tickCount  int
	log        *zap.Logger

	last map[uint64]replication.Stats // previous report per session

	fired     int
	despawned int
	joined    int
	left      int
}

func NewDiagnosticsSystem(ws *world.State, bus *event.Bus, entities func() int, interval int, log *zap.Logger) *DiagnosticsSystem {
	s := &DiagnosticsSystem{
		worldState: ws,
		bus:        bus,
		entities:   entities,
		interval:   interval,
		log:        log,
		last:       make(map[uint64]replication.Stats),
	}
	event.Subscribe(bus, func(event.ProjectileFired) { s.fired++ })
	event.Subscribe(bus, func(event.EntityDespawned) { s.despawned++ })
	event.Subscribe(bus, func(event.PlayerJoined) { s.joined++ })
	event.Subscribe(bus, func(e event.PlayerLeft) {
		s.left++
		delete(s.last, e.SessionID)
	})
	return s
}

func (s *DiagnosticsSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *DiagnosticsSystem) Update(_ time.Duration) {
	if s.interval <= 0 {
		return
	}
	s.tickCount++
	if s.tickCount < s.interval {
		return
	}
	s.tickCount = 0

	s.worldState.AllPlayers(func(p *world.PlayerInfo) {
		st := p.Queue.Stats()
		prev := s.last[p.SessionID]
		s.last[p.SessionID] = st
		if st == prev {
			return
		}
		s.log.Info("input queue",
			zap.Uint64("session", p.SessionID),
			zap.String("account", p.Account),
			zap.Int("depth", p.Queue.Len()),
			zap.Uint64("accepted", st.Accepted-prev.Accepted),
			zap.Uint64("gap", st.Gap-prev.Gap),
			zap.Uint64("stale", st.Stale-prev.Stale),
			zap.Uint64("overflow", st.Overflow-prev.Overflow),
			zap.Uint64("missing_total", p.Missing),
		)
	})
	s.log.Info("world",
		zap.Int("players", s.worldState.PlayerCount()),
		zap.Int("entities", s.entities()),
		zap.Int("joined", s.joined),
		zap.Int("left", s.left),
		zap.Int("fired", s.fired),
		zap.Int("despawned", s.despawned),
		zap.Uint64("desyncs_total", event.Emitted[event.DesyncReported](s.bus)),
	)
	s.fired, s.despawned, s.joined, s.left = 0, 0, 0, 0
}
