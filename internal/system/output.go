package system

import (
	"slices"
	"time"

	"github.com/l1jgo/simcore/internal/core/ecs"
	coresys "github.com/l1jgo/simcore/internal/core/system"
	"github.com/l1jgo/simcore/internal/linking"
	"github.com/l1jgo/simcore/internal/net"
	"github.com/l1jgo/simcore/internal/net/packet"
	"github.com/l1jgo/simcore/internal/sim"
	"github.com/l1jgo/simcore/internal/world"
)

// OutputSystem replicates the world to every player: spawn and despawn
// notices for linked entities the client has not seen or has lost, a state
// snapshot every interval ticks, then flushes all sessions. Phase 4 (Output).
type OutputSystem struct {
	worldState *world.State
	sim        *sim.Simulator
	store      *net.SessionStore
	clock      coresys.Clock
	interval   uint32

	// rebuilt each tick
	linked   map[linking.NetID]bool
	entities []packet.EntityState
	gone     []linking.NetID
}

func NewOutputSystem(ws *world.State, simulator *sim.Simulator, store *net.SessionStore, clock coresys.Clock, interval int) *OutputSystem {
	if interval <= 0 {
		interval = 1
	}
	return &OutputSystem{
		worldState: ws,
		sim:        simulator,
		store:      store,
		clock:      clock,
		interval:   uint32(interval),
		linked:     make(map[linking.NetID]bool, 128),
	}
}

func (s *OutputSystem) Phase() coresys.Phase { return coresys.PhaseOutput }

func (s *OutputSystem) Update(_ time.Duration) {
	frame := s.clock.Frame()
	s.collect()
	snapshot := frame%s.interval == 0

	s.worldState.AllPlayers(func(p *world.PlayerInfo) {
		s.diff(p)
		if snapshot {
			s.sendState(p, frame)
		}
	})

	s.store.ForEach(func(sess *net.Session) {
		sess.FlushOutput()
	})
}

// collect gathers every linked entity with a transform, in NetID order.
func (s *OutputSystem) collect() {
	clear(s.linked)
	s.entities = s.entities[:0]
	s.sim.Links.Each(func(id linking.NetID, h ecs.Handle) {
		m, ok := s.sim.Motion(h)
		if !ok {
			return
		}
		s.linked[id] = true
		s.entities = append(s.entities, packet.EntityState{NetID: id, Pos: m.Pos, Vel: m.Vel})
	})
}

func (s *OutputSystem) diff(p *world.PlayerInfo) {
	s.gone = s.gone[:0]
	for id := range p.Known {
		if !s.linked[id] {
			s.gone = append(s.gone, id)
		}
	}
	slices.Sort(s.gone)
	for _, id := range s.gone {
		p.Session.Send(packet.Despawn{NetID: id}.Encode())
		delete(p.Known, id)
	}
	for _, e := range s.entities {
		if p.Known[e.NetID] {
			continue
		}
		h := s.sim.Links.Resolve(e.NetID)
		p.Session.Send(packet.Spawn{NetID: e.NetID, Kind: byte(s.sim.Kind(h)), Pos: e.Pos}.Encode())
		p.Known[e.NetID] = true
	}
}

func (s *OutputSystem) sendState(p *world.PlayerInfo, frame uint32) {
	last := p.Queue.LastConsumed()
	ents := s.entities
	for {
		n := min(len(ents), packet.MaxStateEntities)
		p.Session.Send(packet.State{Frame: frame, LastInput: last, Entities: ents[:n]}.Encode())
		ents = ents[n:]
		if len(ents) == 0 {
			return
		}
	}
}
