// Package client predicts the local avatar ahead of the server and folds
// authoritative state back in through the rollback store.
package client

import (
	"errors"
	"fmt"
	"time"

	"github.com/l1jgo/simcore/internal/core/ecs"
	"github.com/l1jgo/simcore/internal/core/vmath"
	"github.com/l1jgo/simcore/internal/linking"
	"github.com/l1jgo/simcore/internal/net/packet"
	"github.com/l1jgo/simcore/internal/replication"
	"github.com/l1jgo/simcore/internal/rollback"
	"github.com/l1jgo/simcore/internal/sim"
)

// Options configure a Predictor.
type Options struct {
	Tick       time.Duration
	Window     int     // frames of prediction history
	Redundancy int     // input records resent per packet
	Tolerance  float32 // max per-axis error still counted as a match
}

func DefaultOptions() Options {
	return Options{Tick: 50 * time.Millisecond, Window: rollback.DefaultWindow, Redundancy: 4, Tolerance: 0.01}
}

// Stats counts reconciliation outcomes.
type Stats struct {
	Confirmed uint64
	Corrected uint64
	Resynced  uint64
	Desyncs   uint64
	Missed    uint64 // ticks whose prediction could not be snapshotted
}

// Predictor owns a local copy of the replicated world. Not safe for
// concurrent use.
type Predictor struct {
	World *ecs.World
	Links *linking.Context
	Sim   *sim.Simulator

	opts     Options
	dt       float32
	history  *rollback.Store[sim.MotionState]
	inputs   []replication.Input // contiguous, ascending
	frame    uint32
	selfID   linking.NetID
	self     ecs.Handle
	lastSeen uint32 // newest server frame applied
	settled  uint32 // server frame at which the own avatar was last reconciled
	stats    Stats
}

func NewPredictor(rules sim.Rules, opts Options) (*Predictor, error) {
	d := DefaultOptions()
	if opts.Tick <= 0 {
		opts.Tick = d.Tick
	}
	if opts.Window <= 0 {
		opts.Window = d.Window
	}
	if opts.Redundancy <= 0 {
		opts.Redundancy = d.Redundancy
	}
	reg, comps, err := sim.NewRegistry()
	if err != nil {
		return nil, fmt.Errorf("client registry: %w", err)
	}
	w, err := ecs.NewWorld(reg, ecs.NewChunkAllocator(0))
	if err != nil {
		return nil, fmt.Errorf("client world: %w", err)
	}
	links := linking.NewContext()
	links.Attach(w)

	p := &Predictor{
		World: w,
		Links: links,
		Sim:   sim.NewSimulator(w, comps, links, rules, sim.DefaultSettings()),
		opts:  opts,
		dt:    float32(opts.Tick.Seconds()),
	}
	p.history = rollback.NewStore[sim.MotionState](motionModel{p}, opts.Window)
	return p, nil
}

// motionModel re-simulates the own avatar from the recorded inputs.
type motionModel struct{ p *Predictor }

func (m motionModel) Capture(h ecs.Handle) (sim.MotionState, bool) { return m.p.Sim.Motion(h) }
func (m motionModel) Restore(h ecs.Handle, s sim.MotionState)      { m.p.Sim.SetMotion(h, s) }
func (m motionModel) Equal(a, b sim.MotionState) bool              { return a.Near(b, m.p.opts.Tolerance) }

func (m motionModel) Step(h ecs.Handle, frame uint32) {
	if in, ok := m.p.input(frame); ok {
		m.p.Sim.Move(h, in, m.p.dt)
	}
}

func (p *Predictor) Frame() uint32         { return p.frame }
func (p *Predictor) Self() ecs.Handle      { return p.self }
func (p *Predictor) SelfID() linking.NetID { return p.selfID }
func (p *Predictor) Stats() Stats          { return p.stats }

// History returns the number of retained predictions of the own avatar.
func (p *Predictor) History() int { return p.history.Len(p.self) }

// Motion returns the predicted state of the own avatar.
func (p *Predictor) Motion() sim.MotionState {
	m, _ := p.Sim.Motion(p.self)
	return m
}

// ApplyWelcome records the own NetID. The avatar itself arrives as a spawn.
func (p *Predictor) ApplyWelcome(w packet.Welcome) error {
	if w.Result != packet.WelcomeOK {
		return fmt.Errorf("welcome refused with result %d", w.Result)
	}
	p.selfID = w.NetID
	if h := p.Links.Resolve(w.NetID); !h.IsZero() {
		p.self = h
	}
	return nil
}

// ApplySpawn creates or repositions the entity named by s.
func (p *Predictor) ApplySpawn(s packet.Spawn) error {
	h := p.Links.Resolve(s.NetID)
	if h.IsZero() {
		h = p.World.CreateEntity()
		c := p.Sim.C
		err := ecs.Set(p.World, h, c.Transform, sim.Transform{X: s.Pos.X, Y: s.Pos.Y, Z: s.Pos.Z})
		if err == nil {
			_, err = ecs.Add(p.World, h, c.Velocity)
		}
		if err == nil {
			err = ecs.Set(p.World, h, c.NetRole, sim.NetRole{Kind: sim.Kind(s.Kind)})
		}
		if err == nil {
			err = p.Links.AddEntity(h, s.NetID)
		}
		if err != nil {
			p.World.DestroyEntity(h)
			return fmt.Errorf("spawn %d: %w", s.NetID, err)
		}
	} else {
		p.Sim.SetMotion(h, sim.MotionState{Pos: s.Pos})
	}
	if s.NetID == p.selfID {
		p.self = h
	}
	return nil
}

// ApplyDespawn destroys the entity named by d. Unknown ids are ignored.
func (p *Predictor) ApplyDespawn(d packet.Despawn) {
	h := p.Links.Resolve(d.NetID)
	if h.IsZero() {
		return
	}
	if h == p.self {
		p.history.Forget(h)
		p.self = ecs.InvalidHandle
	}
	p.World.DestroyEntity(h)
}

// Tick predicts one frame: the input is recorded, applied to the own avatar
// and snapshotted, remote entities are extrapolated by their velocity. It
// returns the C_INPUT packet carrying this input and its redundant
// predecessors.
func (p *Predictor) Tick(dir vmath.Vec3, actions replication.ActionFlags) []byte {
	p.frame++
	in := replication.Input{Frame: p.frame, Direction: dir, Actions: actions}
	p.record(in)

	ecs.Each2(p.World, p.Sim.C.Transform, p.Sim.C.Velocity, func(h ecs.Handle, t *sim.Transform, v *sim.Velocity) {
		if h != p.self {
			t.Set(t.Vec().Add(v.Vec().Scale(p.dt)))
		}
	})
	if !p.self.IsZero() {
		p.Sim.Move(p.self, in, p.dt)
		if err := p.history.Snapshot(p.self, p.frame); err != nil {
			p.stats.Missed++
		}
	}

	n := min(p.opts.Redundancy, len(p.inputs))
	return packet.EncodeInputs(p.inputs[len(p.inputs)-n:])
}

// ApplyState folds a server snapshot in. Remote entities snap to the server;
// the own avatar is reconciled at the last input frame the server applied.
// A *rollback.DesyncError means the correction was older than the history;
// the avatar has been reset to the server state and the error should be
// reported with ReportDesync. A frame may arrive split over several state
// packets; all of them are applied, the own avatar once per frame.
func (p *Predictor) ApplyState(st packet.State) (rollback.Result, error) {
	if st.Frame < p.lastSeen {
		return rollback.Result{Outcome: rollback.Stale}, nil
	}
	p.lastSeen = st.Frame

	res := rollback.Result{Outcome: rollback.Stale}
	var err error
	for _, e := range st.Entities {
		h := p.Links.Resolve(e.NetID)
		if h.IsZero() {
			continue
		}
		auth := sim.MotionState{Pos: e.Pos, Vel: e.Vel}
		if h != p.self {
			p.Sim.SetMotion(h, auth)
			continue
		}
		if st.LastInput == 0 || p.settled == st.Frame {
			continue
		}
		p.settled = st.Frame
		res, err = p.history.Reconcile(h, st.LastInput, auth)
		p.count(res, err)
	}
	return res, err
}

func (p *Predictor) count(res rollback.Result, err error) {
	switch res.Outcome {
	case rollback.Confirmed:
		p.stats.Confirmed++
	case rollback.Corrected:
		p.stats.Corrected++
	case rollback.Resynced:
		p.stats.Resynced++
	}
	if errors.Is(err, rollback.ErrDesync) {
		p.stats.Desyncs++
	}
}

// ReportDesync encodes a C_DESYNC packet for err, nil when err is not a desync.
func (p *Predictor) ReportDesync(err error) []byte {
	var de *rollback.DesyncError
	if !errors.As(err, &de) {
		return nil
	}
	return packet.Desync{NetID: p.selfID, Frame: de.Frame, Oldest: de.Oldest}.Encode()
}

func (p *Predictor) record(in replication.Input) {
	p.inputs = append(p.inputs, in)
	if over := len(p.inputs) - p.opts.Window; over > 0 {
		copy(p.inputs, p.inputs[over:])
		p.inputs = p.inputs[:p.opts.Window]
	}
}

func (p *Predictor) input(frame uint32) (replication.Input, bool) {
	if len(p.inputs) == 0 || frame < p.inputs[0].Frame {
		return replication.Input{}, false
	}
	i := int(frame - p.inputs[0].Frame)
	if i >= len(p.inputs) {
		return replication.Input{}, false
	}
	return p.inputs[i], true
}
