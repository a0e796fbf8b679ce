package system

import "time"

// Phase defines execution ordering within a single tick.
type Phase int

const (
	PhaseInput      Phase = iota // drain packet queues, handshakes, disconnects
	PhasePreUpdate               // dispatch events, reload rules
	PhaseUpdate                  // consume one input per player, simulate
	PhasePostUpdate              // projectiles
	PhaseOutput                  // spawn/despawn diff, state snapshots, flush
	PhasePersist                 // checkpoints, desync reports
	PhaseCleanup                 // destroy queued entities

	phaseCount
)

var phaseNames = [phaseCount]string{"input", "pre_update", "update", "post_update", "output", "persist", "cleanup"}

func (p Phase) String() string {
	if p < 0 || p >= phaseCount {
		return "unknown"
	}
	return phaseNames[p]
}

// System is the interface every game-loop system implements.
type System interface {
	Phase() Phase
	Update(dt time.Duration)
}

// Clock gives systems the frame being simulated.
type Clock interface {
	Frame() uint32
}
