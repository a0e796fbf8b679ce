package ecs_test

import (
	"errors"
	"testing"

	"github.com/l1jgo/simcore/internal/core/ecs"
)

type withPointer struct {
	Name *string
}

type withSlice struct {
	Items []int32
}

type nested struct {
	Pos   Position
	Flags [4]uint8
}

func TestRegisterComponentAssignsSequentialTypes(t *testing.T) {
	reg := ecs.NewRegistry()
	pos, err := ecs.RegisterComponent(reg, "position", ecs.Hooks[Position]{})
	if err != nil {
		t.Fatal(err)
	}
	vel, err := ecs.RegisterComponent(reg, "velocity", ecs.Hooks[Velocity]{Transient: true})
	if err != nil {
		t.Fatal(err)
	}
	if pos.Type() != 0 || vel.Type() != 1 {
		t.Errorf("expected types 0 and 1, got %d and %d", pos.Type(), vel.Type())
	}
	if pos.Bit() == vel.Bit() {
		t.Error("distinct components share a signature bit")
	}

	meta, ok := reg.Lookup("velocity")
	if !ok {
		t.Fatal("velocity not found by name")
	}
	if !meta.Transient {
		t.Error("expected velocity to be transient")
	}
	if meta.Size != 8 || meta.Align != 4 {
		t.Errorf("expected size 8 align 4, got %d/%d", meta.Size, meta.Align)
	}
}

func TestRegisterComponentRejects(t *testing.T) {
	reg := ecs.NewRegistry()
	if _, err := ecs.RegisterComponent(reg, "position", ecs.Hooks[Position]{}); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		reg  func() error
		want error
	}{
		{"duplicate name", func() error {
			_, err := ecs.RegisterComponent(reg, "position", ecs.Hooks[Velocity]{})
			return err
		}, ecs.ErrDuplicateComponent},
		{"duplicate type", func() error {
			_, err := ecs.RegisterComponent(reg, "pos2", ecs.Hooks[Position]{})
			return err
		}, ecs.ErrDuplicateComponent},
		{"pointer field", func() error {
			_, err := ecs.RegisterComponent(reg, "ptr", ecs.Hooks[withPointer]{})
			return err
		}, ecs.ErrNotPlainData},
		{"slice field", func() error {
			_, err := ecs.RegisterComponent(reg, "slice", ecs.Hooks[withSlice]{})
			return err
		}, ecs.ErrNotPlainData},
		{"interface", func() error {
			_, err := ecs.RegisterComponent(reg, "iface", ecs.Hooks[any]{})
			return err
		}, ecs.ErrNotPlainData},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.reg(); !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
		})
	}

	if _, err := ecs.RegisterComponent(reg, "nested", ecs.Hooks[nested]{}); err != nil {
		t.Errorf("nested plain struct rejected: %v", err)
	}
	if reg.Len() != 2 {
		t.Errorf("failed registrations must not consume types, got %d", reg.Len())
	}
}

func TestRegistryFrozenByWorld(t *testing.T) {
	reg := ecs.NewRegistry()
	if _, err := ecs.RegisterComponent(reg, "position", ecs.Hooks[Position]{}); err != nil {
		t.Fatal(err)
	}
	if _, err := ecs.NewWorld(reg, ecs.NewChunkAllocator(0)); err != nil {
		t.Fatal(err)
	}
	if !reg.Frozen() {
		t.Fatal("expected registry frozen after NewWorld")
	}
	if _, err := ecs.RegisterComponent(reg, "velocity", ecs.Hooks[Velocity]{}); !errors.Is(err, ecs.ErrRegistryFrozen) {
		t.Errorf("expected ErrRegistryFrozen, got %v", err)
	}
}

func TestComponentLargerThanChunk(t *testing.T) {
	reg := ecs.NewRegistry()
	if _, err := ecs.RegisterComponent(reg, "blob", ecs.Hooks[[128]byte]{}); err != nil {
		t.Fatal(err)
	}
	if _, err := ecs.NewWorld(reg, ecs.NewChunkAllocator(64)); !errors.Is(err, ecs.ErrComponentTooLarge) {
		t.Errorf("expected ErrComponentTooLarge, got %v", err)
	}
}
