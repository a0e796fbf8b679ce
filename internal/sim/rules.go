package sim

import (
	"github.com/l1jgo/simcore/internal/core/vmath"
	"github.com/l1jgo/simcore/internal/replication"
)

// MotionState is the predicted and reconciled state of a moving entity.
type MotionState struct {
	Pos vmath.Vec3
	Vel vmath.Vec3
}

// Near reports whether both vectors of s are within eps of o.
func (s MotionState) Near(o MotionState, eps float32) bool {
	return s.Pos.Near(o.Pos, eps) && s.Vel.Near(o.Vel, eps)
}

// Rules advances a motion state by one input. Implementations must be
// deterministic: server and client run the same rules on the same inputs.
type Rules interface {
	Step(s MotionState, in replication.Input, dt float32) MotionState
}

const (
	DefaultAccel   = 20
	DefaultDamping = 0.9
)

// DefaultRules is the built-in thrust model.
//
// Stop zeroes velocity. Otherwise thrust is forward along the facing plus
// strafe to its left (facing × up), doubled by boost, and
//
//	vel = vel*damping + thrust*accel*dt
//	pos = pos + vel*dt
type DefaultRules struct {
	Accel   float32
	Damping float32
}

func NewDefaultRules() DefaultRules {
	return DefaultRules{Accel: DefaultAccel, Damping: DefaultDamping}
}

func (r DefaultRules) Step(s MotionState, in replication.Input, dt float32) MotionState {
	if in.Actions.Has(replication.ActionStop) {
		s.Vel = vmath.Vec3{}
		return s
	}
	s.Vel = s.Vel.Scale(r.Damping).Add(Thrust(in).Scale(r.Accel * dt))
	s.Pos = s.Pos.Add(s.Vel.Scale(dt))
	return s
}

// Thrust returns the unscaled thrust vector of in.
func Thrust(in replication.Input) vmath.Vec3 {
	facing := in.Direction.Normalize()
	var thrust vmath.Vec3
	if in.Actions.Has(replication.ActionForward) {
		thrust = thrust.Add(facing)
	}
	if in.Actions.Has(replication.ActionStrafeLeft) {
		thrust = thrust.Add(facing.Cross(vmath.Up))
	}
	if in.Actions.Has(replication.ActionBoost) {
		thrust = thrust.Scale(2)
	}
	return thrust
}
