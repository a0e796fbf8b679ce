package sim

import (
	"fmt"

	"github.com/l1jgo/simcore/internal/core/ecs"
	"github.com/l1jgo/simcore/internal/core/vmath"
	"github.com/l1jgo/simcore/internal/linking"
	"github.com/l1jgo/simcore/internal/replication"
)

// Settings tune projectiles and weapons.
type Settings struct {
	ProjectileTTL   uint16  // ticks
	ProjectileSpeed float32 // units per second
	FireCooldown    uint16  // ticks between shots
}

func DefaultSettings() Settings {
	return Settings{ProjectileTTL: 60, ProjectileSpeed: 40, FireCooldown: 10}
}

// Simulator applies inputs to a world. Server and client each own one.
type Simulator struct {
	World    *ecs.World
	C        *Components
	Links    *linking.Context
	Rules    Rules
	Settings Settings

	// OnFire is called after a projectile spawns.
	OnFire func(owner, projectile linking.NetID)
}

func NewSimulator(w *ecs.World, c *Components, links *linking.Context, rules Rules, s Settings) *Simulator {
	return &Simulator{World: w, C: c, Links: links, Rules: rules, Settings: s}
}

// SpawnAvatar creates a controllable avatar at pos and links it.
func (s *Simulator) SpawnAvatar(session uint64, pos vmath.Vec3) (ecs.Handle, linking.NetID, error) {
	h := s.World.CreateEntity()
	if err := s.buildAvatar(h, session, pos); err != nil {
		s.World.DestroyEntity(h)
		return ecs.InvalidHandle, 0, err
	}
	id, err := s.Links.Link(h)
	if err != nil {
		s.World.DestroyEntity(h)
		return ecs.InvalidHandle, 0, err
	}
	return h, id, nil
}

// AdoptAvatar completes an entity restored from a saved document: any missing
// avatar component is added, then the entity is linked.
func (s *Simulator) AdoptAvatar(h ecs.Handle, session uint64) (linking.NetID, error) {
	pos := vmath.Vec3{}
	if t, ok := ecs.Get(s.World, h, s.C.Transform); ok {
		pos = t.Vec()
	}
	if err := s.buildAvatar(h, session, pos); err != nil {
		return 0, err
	}
	return s.Links.Link(h)
}

func (s *Simulator) buildAvatar(h ecs.Handle, session uint64, pos vmath.Vec3) error {
	w := s.World
	if _, ok := ecs.Get(w, h, s.C.Transform); !ok {
		if err := ecs.Set(w, h, s.C.Transform, Transform{X: pos.X, Y: pos.Y, Z: pos.Z}); err != nil {
			return fmt.Errorf("avatar transform: %w", err)
		}
	}
	if !w.HasComponent(h, s.C.Velocity.Type()) {
		if _, err := ecs.Add(w, h, s.C.Velocity); err != nil {
			return fmt.Errorf("avatar velocity: %w", err)
		}
	}
	if !w.HasComponent(h, s.C.Weapon.Type()) {
		if _, err := ecs.Add(w, h, s.C.Weapon); err != nil {
			return fmt.Errorf("avatar weapon: %w", err)
		}
	}
	if err := ecs.Set(w, h, s.C.Controller, Controller{Session: session}); err != nil {
		return fmt.Errorf("avatar controller: %w", err)
	}
	if err := ecs.Set(w, h, s.C.NetRole, NetRole{Kind: KindAvatar}); err != nil {
		return fmt.Errorf("avatar role: %w", err)
	}
	return nil
}

// Motion returns the motion state of h.
func (s *Simulator) Motion(h ecs.Handle) (MotionState, bool) {
	t, ok := ecs.Get(s.World, h, s.C.Transform)
	if !ok {
		return MotionState{}, false
	}
	v, ok := ecs.Get(s.World, h, s.C.Velocity)
	if !ok {
		return MotionState{Pos: t.Vec()}, true
	}
	return MotionState{Pos: t.Vec(), Vel: v.Vec()}, true
}

// SetMotion overwrites the motion state of h.
func (s *Simulator) SetMotion(h ecs.Handle, m MotionState) {
	if t, ok := ecs.Get(s.World, h, s.C.Transform); ok {
		t.Set(m.Pos)
	}
	if v, ok := ecs.Get(s.World, h, s.C.Velocity); ok {
		v.Set(m.Vel)
	}
}

// Move runs the rules on h without touching weapons. Clients use it to
// re-simulate predicted frames.
func (s *Simulator) Move(h ecs.Handle, in replication.Input, dt float32) bool {
	m, ok := s.Motion(h)
	if !ok {
		return false
	}
	s.SetMotion(h, s.Rules.Step(m, in, dt))
	return true
}

// Apply consumes one input for avatar h: records it on the controller,
// moves, and fires when the weapon is ready.
func (s *Simulator) Apply(h ecs.Handle, in replication.Input, dt float32) error {
	w := s.World
	ctl, ok := ecs.Get(w, h, s.C.Controller)
	if !ok {
		return fmt.Errorf("apply input to %s: %w", h, ecs.ErrComponentMissing)
	}
	ctl.LastFrame = in.Frame
	ctl.Dir = in.Direction
	ctl.Actions = in.Actions

	if !s.Move(h, in, dt) {
		return fmt.Errorf("move %s: %w", h, ecs.ErrComponentMissing)
	}

	wp, ok := ecs.Get(w, h, s.C.Weapon)
	if !ok {
		return nil
	}
	if wp.Cooldown > 0 {
		wp.Cooldown--
	}
	if !in.Actions.Has(replication.ActionFire) || wp.Cooldown > 0 || in.Direction.IsZero() {
		return nil
	}
	wp.Cooldown = s.Settings.FireCooldown
	wp.Shots++
	if _, err := s.spawnProjectile(h, in.Direction.Normalize()); err != nil {
		return fmt.Errorf("fire from %s: %w", h, err)
	}
	return nil
}

func (s *Simulator) spawnProjectile(owner ecs.Handle, facing vmath.Vec3) (ecs.Handle, error) {
	w := s.World
	m, _ := s.Motion(owner)
	ownerID := s.Links.ResolveReverse(owner)

	p := w.CreateEntity()
	pos := m.Pos.Add(facing)
	vel := facing.Scale(s.Settings.ProjectileSpeed)
	err := ecs.Set(w, p, s.C.Transform, Transform{X: pos.X, Y: pos.Y, Z: pos.Z})
	if err == nil {
		err = ecs.Set(w, p, s.C.Velocity, Velocity{X: vel.X, Y: vel.Y, Z: vel.Z})
	}
	if err == nil {
		err = ecs.Set(w, p, s.C.Projectile, Projectile{TTL: s.Settings.ProjectileTTL, Owner: ownerID})
	}
	if err == nil {
		err = ecs.Set(w, p, s.C.NetRole, NetRole{Kind: KindProjectile})
	}
	var id linking.NetID
	if err == nil {
		id, err = s.Links.Link(p)
	}
	if err != nil {
		w.DestroyEntity(p)
		return ecs.InvalidHandle, err
	}
	if s.OnFire != nil {
		s.OnFire(ownerID, id)
	}
	return p, nil
}

// StepProjectiles moves every projectile and destroys those whose TTL ran
// out. Destruction happens inside the pass and is deferred by the store.
func (s *Simulator) StepProjectiles(dt float32) int {
	expired := 0
	ecs.Each3(s.World, s.C.Transform, s.C.Velocity, s.C.Projectile,
		func(h ecs.Handle, t *Transform, v *Velocity, p *Projectile) {
			t.Set(t.Vec().Add(v.Vec().Scale(dt)))
			if p.TTL > 0 {
				p.TTL--
			}
			if p.TTL == 0 {
				s.World.DestroyEntity(h)
				expired++
			}
		})
	return expired
}

// Kind returns the replicated role of h.
func (s *Simulator) Kind(h ecs.Handle) Kind {
	if r, ok := ecs.Get(s.World, h, s.C.NetRole); ok {
		return r.Kind
	}
	return 0
}
