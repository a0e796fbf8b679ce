package client

import (
	"errors"
	"testing"
	"time"

	"github.com/l1jgo/simcore/internal/core/vmath"
	"github.com/l1jgo/simcore/internal/linking"
	"github.com/l1jgo/simcore/internal/net/packet"
	"github.com/l1jgo/simcore/internal/replication"
	"github.com/l1jgo/simcore/internal/rollback"
	"github.com/l1jgo/simcore/internal/sim"
)

const selfID linking.NetID = 5

var east = vmath.Vec3{X: 1}

func newPredictor(t *testing.T, window int) *Predictor {
	t.Helper()
	p, err := NewPredictor(sim.NewDefaultRules(), Options{Tick: 50 * time.Millisecond, Window: window, Redundancy: 4})
	if err != nil {
		t.Fatal(err)
	}
	if err := p.ApplyWelcome(packet.Welcome{Result: packet.WelcomeOK, NetID: selfID}); err != nil {
		t.Fatal(err)
	}
	if err := p.ApplySpawn(packet.Spawn{NetID: selfID, Kind: byte(sim.KindAvatar), Pos: vmath.Vec3{X: 1}}); err != nil {
		t.Fatal(err)
	}
	return p
}

// serverStates replays n forward inputs from the spawn point the way the
// server would. states[f] is the state after frame f.
func serverStates(n int) []sim.MotionState {
	rules := sim.NewDefaultRules()
	states := make([]sim.MotionState, n+1)
	states[0] = sim.MotionState{Pos: vmath.Vec3{X: 1}}
	for f := 1; f <= n; f++ {
		in := replication.Input{Frame: uint32(f), Direction: east, Actions: replication.ActionForward}
		states[f] = rules.Step(states[f-1], in, 0.05)
	}
	return states
}

func predict(p *Predictor, n int) []byte {
	var last []byte
	for i := 0; i < n; i++ {
		last = p.Tick(east, replication.ActionForward)
	}
	return last
}

func stateFor(frame, lastInput uint32, m sim.MotionState) packet.State {
	return packet.State{
		Frame:     frame,
		LastInput: lastInput,
		Entities:  []packet.EntityState{{NetID: selfID, Pos: m.Pos, Vel: m.Vel}},
	}
}

func TestMatchingStateConfirms(t *testing.T) {
	p := newPredictor(t, 16)
	states := serverStates(5)
	predict(p, 5)

	res, err := p.ApplyState(stateFor(4, 3, states[3]))
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != rollback.Confirmed {
		t.Errorf("expected confirmed, got %s", res.Outcome)
	}
	if p.History() != 2 {
		t.Errorf("expected frames 4 and 5 retained, got %d", p.History())
	}
	if p.Motion() != states[5] {
		t.Errorf("prediction drifted: expected %+v, got %+v", states[5], p.Motion())
	}
}

func TestMismatchResimulatesLaterFrames(t *testing.T) {
	p := newPredictor(t, 16)
	states := serverStates(5)
	predict(p, 5)

	auth := states[3]
	auth.Pos.X += 1
	res, err := p.ApplyState(stateFor(4, 3, auth))
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != rollback.Corrected || res.Resimulated != 2 {
		t.Errorf("expected corrected with 2 frames re-simulated, got %s/%d", res.Outcome, res.Resimulated)
	}
	want := states[5]
	want.Pos.X += 1
	if !p.Motion().Near(want, 1e-4) {
		t.Errorf("expected %+v after correction, got %+v", want, p.Motion())
	}
	if p.Stats().Corrected != 1 {
		t.Errorf("expected 1 correction, got %+v", p.Stats())
	}
}

func TestEvictedFrameReportsDesync(t *testing.T) {
	p := newPredictor(t, 4)
	states := serverStates(10)
	predict(p, 10)

	_, err := p.ApplyState(stateFor(3, 2, states[2]))
	var de *rollback.DesyncError
	if !errors.As(err, &de) {
		t.Fatalf("expected desync error, got %v", err)
	}
	if de.Frame != 2 || de.Oldest != 7 {
		t.Errorf("expected desync at 2 with oldest 7, got %d/%d", de.Frame, de.Oldest)
	}
	if p.Motion() != states[2] {
		t.Error("avatar not reset to the authoritative state")
	}

	report := p.ReportDesync(err)
	if len(report) == 0 || report[0] != packet.C_OPCODE_DESYNC {
		t.Fatal("expected a C_DESYNC packet")
	}
	d, err := packet.ReadDesync(packet.NewReader(report))
	if err != nil {
		t.Fatal(err)
	}
	if d.NetID != selfID || d.Frame != 2 || d.Oldest != 7 {
		t.Errorf("unexpected report %+v", d)
	}
	if p.ReportDesync(errors.New("other")) != nil {
		t.Error("non-desync errors must not produce a report")
	}

	// prediction continues from the restored state
	predict(p, 1)
	if p.History() != 1 {
		t.Errorf("expected fresh history after resync, got %d", p.History())
	}
}

func TestOldServerFramesIgnored(t *testing.T) {
	p := newPredictor(t, 16)
	states := serverStates(3)
	predict(p, 3)
	if _, err := p.ApplyState(stateFor(5, 2, states[2])); err != nil {
		t.Fatal(err)
	}
	res, _ := p.ApplyState(stateFor(4, 1, states[1]))
	if res.Outcome != rollback.Stale {
		t.Errorf("expected an older snapshot to be stale, got %s", res.Outcome)
	}
}

func TestTickSendsRedundantInputs(t *testing.T) {
	p := newPredictor(t, 16)
	data := predict(p, 6)
	batch, err := packet.ReadInputs(packet.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	if len(batch) != 4 || batch[0].Frame != 3 || batch[3].Frame != 6 {
		t.Errorf("expected frames 3..6, got %+v", batch)
	}

	// the server queue accepts the overlap of consecutive batches exactly once
	q := replication.NewInputQueue(16)
	for i := 0; i < 3; i++ {
		b, _ := packet.ReadInputs(packet.NewReader(p.Tick(east, 0)))
		for _, in := range b {
			q.Enqueue(in)
		}
	}
	if q.Len() != 6 || q.Stats().Stale != 6 {
		t.Errorf("expected frames 4..9 queued once each, got %d queued, %+v", q.Len(), q.Stats())
	}
}

func TestRemoteEntities(t *testing.T) {
	p := newPredictor(t, 16)
	if err := p.ApplySpawn(packet.Spawn{NetID: 9, Kind: byte(sim.KindProjectile), Pos: vmath.Vec3{}}); err != nil {
		t.Fatal(err)
	}
	h := p.Links.Resolve(9)
	if h.IsZero() || p.Sim.Kind(h) != sim.KindProjectile {
		t.Fatal("remote entity not linked")
	}

	st := packet.State{Frame: 1, Entities: []packet.EntityState{{NetID: 9, Pos: vmath.Vec3{Z: 2}, Vel: vmath.Vec3{Z: 20}}}}
	p.ApplyState(st)
	p.Tick(vmath.Vec3{}, 0)
	m, _ := p.Sim.Motion(h)
	if m.Pos.Z != 3 {
		t.Errorf("expected extrapolation to z=3, got %v", m.Pos.Z)
	}

	p.ApplyDespawn(packet.Despawn{NetID: 9})
	p.ApplyDespawn(packet.Despawn{NetID: 9})
	if p.World.Alive(h) || !p.Links.Resolve(9).IsZero() {
		t.Error("despawned entity still present")
	}

	p.ApplyDespawn(packet.Despawn{NetID: selfID})
	if !p.Self().IsZero() {
		t.Error("own avatar handle kept after despawn")
	}
}

func TestStateSplitOverPacketsAppliesEveryChunk(t *testing.T) {
	p := newPredictor(t, 16)
	if err := p.ApplySpawn(packet.Spawn{NetID: 9, Kind: byte(sim.KindProjectile)}); err != nil {
		t.Fatal(err)
	}
	h := p.Links.Resolve(9)
	states := serverStates(5)
	predict(p, 5)

	// own avatar in the first chunk, remote entity in the second
	first := stateFor(10, 3, states[3])
	second := packet.State{Frame: 10, LastInput: 3, Entities: []packet.EntityState{
		{NetID: 9, Pos: vmath.Vec3{X: 50}},
		{NetID: selfID, Pos: states[3].Pos, Vel: states[3].Vel},
	}}
	if _, err := p.ApplyState(first); err != nil {
		t.Fatal(err)
	}
	if _, err := p.ApplyState(second); err != nil {
		t.Fatal(err)
	}
	if m, _ := p.Sim.Motion(h); m.Pos.X != 50 {
		t.Errorf("expected remote entity snapped to x=50, got %+v", m.Pos)
	}
	if s := p.Stats(); s.Confirmed != 1 {
		t.Errorf("expected own avatar reconciled once per frame, got %+v", s)
	}

	// own avatar only in the second chunk
	if _, err := p.ApplyState(packet.State{Frame: 11, LastInput: 4, Entities: []packet.EntityState{{NetID: 9}}}); err != nil {
		t.Fatal(err)
	}
	res, err := p.ApplyState(stateFor(11, 4, states[4]))
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != rollback.Confirmed || p.Stats().Confirmed != 2 {
		t.Errorf("expected frame 4 confirmed from the second chunk, got %s, %+v", res.Outcome, p.Stats())
	}
}

func TestTickCountsMissedSnapshots(t *testing.T) {
	p := newPredictor(t, 16)
	predict(p, 2)
	if p.Stats().Missed != 0 {
		t.Fatalf("expected no missed snapshots, got %d", p.Stats().Missed)
	}
	p.World.DestroyEntity(p.Self())
	predict(p, 1)
	if p.Stats().Missed != 1 {
		t.Errorf("expected 1 missed snapshot, got %d", p.Stats().Missed)
	}
}
