package system

import (
	"time"

	"github.com/l1jgo/simcore/internal/config"
	coresys "github.com/l1jgo/simcore/internal/core/system"
	"github.com/l1jgo/simcore/internal/replication"
	"github.com/l1jgo/simcore/internal/sim"
	"github.com/l1jgo/simcore/internal/world"
	"go.uber.org/zap"
)

// SimulationSystem consumes at most one input per player per tick and
// applies it to the player's avatar. A player without a queued input is
// simulated per the missing-input policy and never blocks the tick.
// Phase 2 (Update).
type SimulationSystem struct {
	worldState *world.State
	sim        *sim.Simulator
	policy     string
	dt         float32 // fixed step in seconds
	log        *zap.Logger
}

func NewSimulationSystem(ws *world.State, simulator *sim.Simulator, policy string, tick time.Duration, log *zap.Logger) *SimulationSystem {
	return &SimulationSystem{
		worldState: ws,
		sim:        simulator,
		policy:     policy,
		dt:         float32(tick.Seconds()),
		log:        log,
	}
}

func (s *SimulationSystem) Phase() coresys.Phase { return coresys.PhaseUpdate }

func (s *SimulationSystem) Update(_ time.Duration) {
	s.worldState.AllPlayers(func(p *world.PlayerInfo) {
		in, ok := p.Queue.Dequeue()
		if ok {
			p.LastInput = in
			p.Dirty = true
		} else {
			in = s.fill(p)
			p.Missing++
		}
		if err := s.sim.Apply(p.Entity, in, s.dt); err != nil {
			s.log.Warn("apply input failed",
				zap.Uint64("session", p.SessionID),
				zap.Uint32("frame", in.Frame),
				zap.Error(err),
			)
		}
	})
}

// fill builds the input used when a player's queue is empty. Repeated
// inputs never fire.
func (s *SimulationSystem) fill(p *world.PlayerInfo) replication.Input {
	if s.policy == config.MissingIdle {
		return replication.Idle(p.LastInput.Frame)
	}
	in := p.LastInput
	in.Actions &^= replication.ActionFire
	return in
}

// ProjectileSystem advances projectiles and expires them. Phase 3 (PostUpdate).
type ProjectileSystem struct {
	sim *sim.Simulator
	dt  float32
}

func NewProjectileSystem(simulator *sim.Simulator, tick time.Duration) *ProjectileSystem {
	return &ProjectileSystem{sim: simulator, dt: float32(tick.Seconds())}
}

func (s *ProjectileSystem) Phase() coresys.Phase { return coresys.PhasePostUpdate }

func (s *ProjectileSystem) Update(_ time.Duration) {
	s.sim.StepProjectiles(s.dt)
}
