package sim

import (
	"testing"

	"github.com/l1jgo/simcore/internal/core/ecs"
	"github.com/l1jgo/simcore/internal/core/vmath"
	"github.com/l1jgo/simcore/internal/linking"
	"github.com/l1jgo/simcore/internal/replication"
)

func setupSim(t *testing.T) *Simulator {
	t.Helper()
	reg, c, err := NewRegistry()
	if err != nil {
		t.Fatal(err)
	}
	w, err := ecs.NewWorld(reg, ecs.NewChunkAllocator(0))
	if err != nil {
		t.Fatal(err)
	}
	links := linking.NewContext()
	links.Attach(w)
	return NewSimulator(w, c, links, NewDefaultRules(), DefaultSettings())
}

func TestDefaultRulesForwardAndStop(t *testing.T) {
	r := NewDefaultRules()
	in := replication.Input{Frame: 1, Direction: vmath.Vec3{X: 0, Y: 0, Z: 2}, Actions: replication.ActionForward}

	s := r.Step(MotionState{}, in, 0.1)
	// vel = 0*0.9 + (0,0,1)*20*0.1 = (0,0,2); pos = vel*0.1
	if !s.Vel.Near(vmath.Vec3{Z: 2}, 1e-5) || !s.Pos.Near(vmath.Vec3{Z: 0.2}, 1e-5) {
		t.Errorf("unexpected forward step %+v", s)
	}

	in.Actions |= replication.ActionBoost
	b := r.Step(MotionState{}, in, 0.1)
	if !b.Vel.Near(vmath.Vec3{Z: 4}, 1e-5) {
		t.Errorf("expected boost to double thrust, got %+v", b.Vel)
	}

	stop := r.Step(s, replication.Input{Actions: replication.ActionStop | replication.ActionForward}, 0.1)
	if !stop.Vel.IsZero() || stop.Pos != s.Pos {
		t.Errorf("expected stop to zero velocity and hold position, got %+v", stop)
	}
}

func TestThrustStrafeLeft(t *testing.T) {
	in := replication.Input{Direction: vmath.Vec3{X: 1}, Actions: replication.ActionStrafeLeft}
	// (1,0,0) x (0,1,0) = (0,0,1)
	if got := Thrust(in); !got.Near(vmath.Vec3{Z: 1}, 1e-6) {
		t.Errorf("expected (0,0,1), got %+v", got)
	}
	if got := Thrust(replication.Input{Actions: replication.ActionForward}); !got.IsZero() {
		t.Errorf("zero direction must give zero thrust, got %+v", got)
	}
}

func TestApplyRecordsInputAndMoves(t *testing.T) {
	s := setupSim(t)
	h, id, err := s.SpawnAvatar(42, vmath.Vec3{X: 1})
	if err != nil {
		t.Fatal(err)
	}
	if id != 1 || s.Links.Resolve(id) != h {
		t.Fatalf("avatar not linked: id=%d", id)
	}
	if s.Kind(h) != KindAvatar {
		t.Errorf("expected avatar kind, got %s", s.Kind(h))
	}

	in := replication.Input{Frame: 7, Direction: vmath.Vec3{Z: 1}, Actions: replication.ActionForward}
	if err := s.Apply(h, in, 0.05); err != nil {
		t.Fatal(err)
	}
	ctl := ecs.MustGet(s.World, h, s.C.Controller)
	if ctl.LastFrame != 7 || ctl.Session != 42 {
		t.Errorf("controller not updated: %+v", *ctl)
	}
	m, _ := s.Motion(h)
	if m.Pos.Z <= 0 || m.Pos.X != 1 {
		t.Errorf("expected forward motion along z, got %+v", m.Pos)
	}
}

func TestFireSpawnsLinkedProjectileThatExpires(t *testing.T) {
	s := setupSim(t)
	s.Settings.ProjectileTTL = 3
	s.Settings.FireCooldown = 5
	h, owner, err := s.SpawnAvatar(1, vmath.Vec3{})
	if err != nil {
		t.Fatal(err)
	}
	var fired []linking.NetID
	s.OnFire = func(o, p linking.NetID) {
		if o != owner {
			t.Errorf("expected owner %d, got %d", owner, o)
		}
		fired = append(fired, p)
	}

	fire := replication.Input{Direction: vmath.Vec3{X: 1}, Actions: replication.ActionFire}
	for f := uint32(1); f <= 3; f++ {
		fire.Frame = f
		if err := s.Apply(h, fire, 0.05); err != nil {
			t.Fatal(err)
		}
	}
	if len(fired) != 1 {
		t.Fatalf("expected cooldown to allow one shot, got %d", len(fired))
	}
	if wp := ecs.MustGet(s.World, h, s.C.Weapon); wp.Shots != 1 {
		t.Errorf("expected 1 shot recorded, got %d", wp.Shots)
	}

	proj := s.Links.Resolve(fired[0])
	if !s.World.Alive(proj) || s.Kind(proj) != KindProjectile {
		t.Fatal("projectile not alive")
	}
	for i := 0; i < 3; i++ {
		s.StepProjectiles(0.05)
	}
	if s.World.Alive(proj) {
		t.Error("projectile alive after TTL")
	}
	if s.Links.Resolve(fired[0]) != ecs.InvalidHandle {
		t.Error("expired projectile still linked")
	}
}

func TestWeaponPersistsOnlyShots(t *testing.T) {
	s := setupSim(t)
	h, _, err := s.SpawnAvatar(1, vmath.Vec3{X: 3, Y: 4, Z: 5})
	if err != nil {
		t.Fatal(err)
	}
	wp := ecs.MustGet(s.World, h, s.C.Weapon)
	wp.Shots, wp.Cooldown = 12, 9

	doc, err := s.World.SaveEntity(h)
	if err != nil {
		t.Fatal(err)
	}
	for _, k := range doc.Keys() {
		if k == "controller" || k == "projectile" {
			t.Errorf("transient component %s saved", k)
		}
	}
	w, _ := doc.Child("weapon")
	if w.Len() != 1 {
		t.Errorf("expected only shots saved, got keys %v", w.Keys())
	}

	loaded, _, err := s.World.LoadEntity(doc)
	if err != nil {
		t.Fatal(err)
	}
	got := ecs.MustGet(s.World, loaded, s.C.Weapon)
	if got.Shots != 12 || got.Cooldown != 0 {
		t.Errorf("expected shots=12 cooldown=0, got %+v", *got)
	}
	if _, err := s.AdoptAvatar(loaded, 2); err != nil {
		t.Fatal(err)
	}
	if m, _ := s.Motion(loaded); m.Pos != (vmath.Vec3{X: 3, Y: 4, Z: 5}) {
		t.Errorf("restored position lost: %+v", m.Pos)
	}
}
