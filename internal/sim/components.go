// Package sim defines the simulation components and the rules that move them.
package sim

import (
	"fmt"

	"github.com/l1jgo/simcore/internal/core/ecs"
	"github.com/l1jgo/simcore/internal/core/vmath"
	"github.com/l1jgo/simcore/internal/linking"
	"github.com/l1jgo/simcore/internal/replication"
)

// Kind is the replicated role of an entity.
type Kind uint8

const (
	KindAvatar     Kind = 1
	KindProjectile Kind = 2
)

func (k Kind) String() string {
	switch k {
	case KindAvatar:
		return "avatar"
	case KindProjectile:
		return "projectile"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

type Transform struct {
	X float32 `yaml:"x"`
	Y float32 `yaml:"y"`
	Z float32 `yaml:"z"`
}

func (t Transform) Vec() vmath.Vec3   { return vmath.Vec3{X: t.X, Y: t.Y, Z: t.Z} }
func (t *Transform) Set(v vmath.Vec3) { t.X, t.Y, t.Z = v.X, v.Y, v.Z }

type Velocity struct {
	X float32 `yaml:"x"`
	Y float32 `yaml:"y"`
	Z float32 `yaml:"z"`
}

func (v Velocity) Vec() vmath.Vec3   { return vmath.Vec3{X: v.X, Y: v.Y, Z: v.Z} }
func (v *Velocity) Set(o vmath.Vec3) { v.X, v.Y, v.Z = o.X, o.Y, o.Z }

// Controller binds an entity to the session driving it. Transient.
type Controller struct {
	Session   uint64
	LastFrame uint32 // last input frame applied
	Dir       vmath.Vec3
	Actions   replication.ActionFlags
}

// Weapon: only the shot counter survives a save.
type Weapon struct {
	Cooldown uint16 // ticks until the next shot
	Shots    uint32
}

// Projectile is transient; projectiles never outlive the process.
type Projectile struct {
	TTL   uint16
	Owner linking.NetID
}

type NetRole struct {
	Kind Kind `yaml:"kind"`
}

// Components holds the ids of every registered simulation component.
type Components struct {
	Transform  ecs.ComponentID[Transform]
	Velocity   ecs.ComponentID[Velocity]
	Controller ecs.ComponentID[Controller]
	Weapon     ecs.ComponentID[Weapon]
	Projectile ecs.ComponentID[Projectile]
	NetRole    ecs.ComponentID[NetRole]
}

// NewRegistry registers the simulation components in a fixed order, so
// server and clients agree on component types.
func NewRegistry() (*ecs.Registry, *Components, error) {
	reg := ecs.NewRegistry()
	c := &Components{}
	var err error
	if c.Transform, err = ecs.RegisterComponent(reg, "transform", ecs.Hooks[Transform]{}); err != nil {
		return nil, nil, err
	}
	if c.Velocity, err = ecs.RegisterComponent(reg, "velocity", ecs.Hooks[Velocity]{}); err != nil {
		return nil, nil, err
	}
	if c.Controller, err = ecs.RegisterComponent(reg, "controller", ecs.Hooks[Controller]{Transient: true}); err != nil {
		return nil, nil, err
	}
	if c.Weapon, err = ecs.RegisterComponent(reg, "weapon", ecs.Hooks[Weapon]{
		Save: func(w *Weapon, d *ecs.Document) error { return d.Set("shots", w.Shots) },
		Load: func(w *Weapon, d *ecs.Document) error {
			_, err := d.Get("shots", &w.Shots)
			return err
		},
	}); err != nil {
		return nil, nil, err
	}
	if c.Projectile, err = ecs.RegisterComponent(reg, "projectile", ecs.Hooks[Projectile]{Transient: true}); err != nil {
		return nil, nil, err
	}
	if c.NetRole, err = ecs.RegisterComponent(reg, "net_role", ecs.Hooks[NetRole]{}); err != nil {
		return nil, nil, err
	}
	return reg, c, nil
}
