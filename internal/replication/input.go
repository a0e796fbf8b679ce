// Package replication holds the per-connection input pipeline: input records
// and the gap-aware queue that admits them in frame order.
package replication

import "github.com/l1jgo/simcore/internal/core/vmath"

// ActionFlags is the set of discrete actions of one input record.
type ActionFlags uint8

const (
	ActionStrafeLeft ActionFlags = 1 << iota
	ActionForward
	ActionBoost
	ActionFire
	ActionStop
)

func (a ActionFlags) Has(f ActionFlags) bool { return a&f != 0 }

// Input is one client tick of input.
type Input struct {
	Frame     uint32
	Direction vmath.Vec3
	Actions   ActionFlags
}

// Idle returns an input for frame with no direction and no actions.
func Idle(frame uint32) Input { return Input{Frame: frame} }
