package ecs_test

import (
	"errors"
	"testing"

	"github.com/l1jgo/simcore/internal/core/ecs"
)

// --- Test Components ---
type Position struct {
	X float32 `yaml:"x"`
	Y float32 `yaml:"y"`
}

type Velocity struct {
	VX float32 `yaml:"vx"`
	VY float32 `yaml:"vy"`
}

type Health struct {
	Current int32 `yaml:"current"`
	Max     int32 `yaml:"max"`
}

type fixture struct {
	world     *ecs.World
	pos       ecs.ComponentID[Position]
	vel       ecs.ComponentID[Velocity]
	health    ecs.ComponentID[Health]
	destroyed map[string][]ecs.Handle
}

func setupWorld(t *testing.T, chunkSize int) *fixture {
	t.Helper()
	f := &fixture{destroyed: make(map[string][]ecs.Handle)}
	reg := ecs.NewRegistry()
	var err error
	f.pos, err = ecs.RegisterComponent(reg, "position", ecs.Hooks[Position]{
		Destroy: func(h ecs.Handle, _ *Position) { f.destroyed["position"] = append(f.destroyed["position"], h) },
	})
	if err != nil {
		t.Fatal(err)
	}
	f.vel, err = ecs.RegisterComponent(reg, "velocity", ecs.Hooks[Velocity]{
		Destroy: func(h ecs.Handle, _ *Velocity) { f.destroyed["velocity"] = append(f.destroyed["velocity"], h) },
	})
	if err != nil {
		t.Fatal(err)
	}
	f.health, err = ecs.RegisterComponent(reg, "health", ecs.Hooks[Health]{
		Init: func(_ ecs.Handle, c *Health) { c.Current, c.Max = 100, 100 },
	})
	if err != nil {
		t.Fatal(err)
	}
	f.world, err = ecs.NewWorld(reg, ecs.NewChunkAllocator(chunkSize))
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func TestCreateEntityIssuesFreshHandles(t *testing.T) {
	f := setupWorld(t, 0)
	w := f.world

	seen := make(map[ecs.Handle]bool)
	var live []ecs.Handle
	for i := 0; i < 100; i++ {
		h := w.CreateEntity()
		if h.IsZero() {
			t.Fatal("CreateEntity returned the zero handle")
		}
		if seen[h] {
			t.Fatalf("handle %s issued twice", h)
		}
		seen[h] = true
		live = append(live, h)
		if i%3 == 0 {
			w.DestroyEntity(live[0])
			live = live[1:]
		}
	}
	if w.Len() != len(live) {
		t.Errorf("expected %d live entities, got %d", len(live), w.Len())
	}
	if w.Signature(live[0]) != ecs.AliveBit {
		t.Errorf("new entity should have only the alive bit, got %b", w.Signature(live[0]))
	}
}

func TestComponentLifecycle(t *testing.T) {
	f := setupWorld(t, 0)
	w := f.world
	e := w.CreateEntity()

	p, err := ecs.Add(w, e, f.pos)
	if err != nil {
		t.Fatalf("add position: %v", err)
	}
	p.X, p.Y = 3, 4
	if !w.HasComponent(e, f.pos.Type()) {
		t.Error("expected HasComponent after AddComponent")
	}

	if _, err := ecs.Add(w, e, f.pos); !errors.Is(err, ecs.ErrComponentExists) {
		t.Errorf("expected ErrComponentExists, got %v", err)
	}

	h, err := ecs.Add(w, e, f.health)
	if err != nil {
		t.Fatal(err)
	}
	if h.Current != 100 {
		t.Errorf("expected Init hook to set health 100, got %d", h.Current)
	}

	if err := w.RemoveComponent(e, f.pos.Type()); err != nil {
		t.Fatalf("remove position: %v", err)
	}
	if w.HasComponent(e, f.pos.Type()) {
		t.Error("expected HasComponent false after RemoveComponent")
	}
	if err := w.RemoveComponent(e, f.pos.Type()); !errors.Is(err, ecs.ErrComponentMissing) {
		t.Errorf("expected ErrComponentMissing, got %v", err)
	}
	if len(f.destroyed["position"]) != 1 {
		t.Errorf("expected one position destroy callback, got %d", len(f.destroyed["position"]))
	}
}

func TestAddComponentErrors(t *testing.T) {
	f := setupWorld(t, 0)
	w := f.world

	if _, err := w.AddComponent(ecs.InvalidHandle, f.pos.Type()); !errors.Is(err, ecs.ErrEntityNotFound) {
		t.Errorf("expected ErrEntityNotFound for zero handle, got %v", err)
	}
	e := w.CreateEntity()
	if _, err := w.AddComponent(e, ecs.ComponentType(42)); !errors.Is(err, ecs.ErrUnknownComponent) {
		t.Errorf("expected ErrUnknownComponent, got %v", err)
	}
	w.DestroyEntity(e)
	if _, err := w.AddComponent(e, f.pos.Type()); !errors.Is(err, ecs.ErrEntityNotFound) {
		t.Errorf("expected ErrEntityNotFound for destroyed entity, got %v", err)
	}
}

func TestDestroyEntityRunsEachDestroyCallbackOnce(t *testing.T) {
	f := setupWorld(t, 0)
	w := f.world
	e := w.CreateEntity()
	ecs.Add(w, e, f.pos)
	ecs.Add(w, e, f.vel)
	ecs.Add(w, e, f.health)

	var hooked []ecs.Handle
	w.OnDestroy(func(h ecs.Handle) { hooked = append(hooked, h) })

	w.DestroyEntity(e)
	w.DestroyEntity(e) // already gone: no-op

	if len(f.destroyed["position"]) != 1 || len(f.destroyed["velocity"]) != 1 {
		t.Errorf("expected exactly one destroy per component, got %v", f.destroyed)
	}
	if len(hooked) != 1 || hooked[0] != e {
		t.Errorf("expected one destroy hook for %s, got %v", e, hooked)
	}
	if w.Alive(e) {
		t.Error("destroyed entity reported alive")
	}
	if w.Chunks().InUse() != 0 {
		t.Errorf("expected all chunks released, %d still in use", w.Chunks().InUse())
	}
}

// Rows compact on removal; data of the moved entity must follow its handle.
func TestCompactionKeepsDataBehindHandles(t *testing.T) {
	// 64-byte chunks hold 8 positions each
	f := setupWorld(t, 64)
	w := f.world

	var hs []ecs.Handle
	for i := 0; i < 20; i++ {
		h := w.CreateEntity()
		p, err := ecs.Add(w, h, f.pos)
		if err != nil {
			t.Fatal(err)
		}
		p.X = float32(i)
		hs = append(hs, h)
	}
	if w.Chunks().InUse() != 3 {
		t.Fatalf("expected 3 chunks for 20 rows, got %d", w.Chunks().InUse())
	}

	for i := 0; i < 20; i += 2 {
		w.DestroyEntity(hs[i])
	}
	for i := 1; i < 20; i += 2 {
		p, ok := ecs.Get(w, hs[i], f.pos)
		if !ok {
			t.Fatalf("entity %s lost its position", hs[i])
		}
		if p.X != float32(i) {
			t.Errorf("entity %s: expected X=%d, got %v", hs[i], i, p.X)
		}
	}
	if w.Chunks().InUse() != 2 {
		t.Errorf("expected trailing chunk returned (10 rows, 2 chunks), got %d in use", w.Chunks().InUse())
	}
	if w.Chunks().Owned() != 3 {
		t.Errorf("allocator must never shrink, owned %d", w.Chunks().Owned())
	}
}

func registerTag[T any](t *testing.T, reg *ecs.Registry, name string) ecs.ComponentType {
	t.Helper()
	id, err := ecs.RegisterComponent(reg, name, ecs.Hooks[T]{})
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	return id.Type()
}

func TestEntitySlotLimit(t *testing.T) {
	reg := ecs.NewRegistry()
	// distinct Go types are required, so use byte arrays of growing length
	ids := []ecs.ComponentType{
		registerTag[[1]byte](t, reg, "c1"),
		registerTag[[2]byte](t, reg, "c2"),
		registerTag[[3]byte](t, reg, "c3"),
		registerTag[[4]byte](t, reg, "c4"),
		registerTag[[5]byte](t, reg, "c5"),
		registerTag[[6]byte](t, reg, "c6"),
		registerTag[[7]byte](t, reg, "c7"),
		registerTag[[8]byte](t, reg, "c8"),
		registerTag[[9]byte](t, reg, "c9"),
		registerTag[[10]byte](t, reg, "c10"),
		registerTag[[11]byte](t, reg, "c11"),
		registerTag[[12]byte](t, reg, "c12"),
		registerTag[[13]byte](t, reg, "c13"),
		registerTag[[14]byte](t, reg, "c14"),
		registerTag[[15]byte](t, reg, "c15"),
	}
	w, err := ecs.NewWorld(reg, ecs.NewChunkAllocator(0))
	if err != nil {
		t.Fatal(err)
	}
	e := w.CreateEntity()
	for i, id := range ids {
		_, err := w.AddComponent(e, id)
		if i < ecs.MaxEntityComponents && err != nil {
			t.Fatalf("slot %d: %v", i, err)
		}
		if i == ecs.MaxEntityComponents && !errors.Is(err, ecs.ErrTooManyComponents) {
			t.Errorf("expected ErrTooManyComponents, got %v", err)
		}
	}
	if n := w.Signature(e).Count(); n != ecs.MaxEntityComponents {
		t.Errorf("expected %d components, got %d", ecs.MaxEntityComponents, n)
	}
}

func TestComponentRefIsWeak(t *testing.T) {
	f := setupWorld(t, 0)
	w := f.world
	e := w.CreateEntity()
	ref, err := w.AddComponent(e, f.pos.Type())
	if err != nil {
		t.Fatal(err)
	}
	p, ok := ecs.Deref(ref, f.pos)
	if !ok {
		t.Fatal("fresh ref did not resolve")
	}
	p.X = 9
	if _, ok := ecs.Deref(ref, f.pos); !ok {
		t.Error("ref should still resolve")
	}
	if _, ok := ecs.Deref(ref, f.health); ok {
		t.Error("ref resolved under the wrong component id")
	}

	w.DestroyEntity(e)
	if ref.Valid() {
		t.Error("ref valid after entity destroyed")
	}
	if _, ok := ecs.Deref(ref, f.pos); ok {
		t.Error("ref resolved after entity destroyed")
	}
}

func TestMarkForDestructionWaitsForFlush(t *testing.T) {
	f := setupWorld(t, 0)
	w := f.world
	e := w.CreateEntity()
	ecs.Add(w, e, f.pos)

	w.MarkForDestruction(e)
	if !w.Alive(e) {
		t.Fatal("entity destroyed before flush")
	}
	w.FlushDestroyQueue()
	if w.Alive(e) {
		t.Error("entity alive after flush")
	}
	if err := w.Err(); err != nil {
		t.Errorf("unexpected store fault: %v", err)
	}
}

func TestRemoveComponentCallbackDestroyingItsEntity(t *testing.T) {
	reg := ecs.NewRegistry()
	calls := make(map[string]int)
	var w *ecs.World
	a, err := ecs.RegisterComponent(reg, "a", ecs.Hooks[Position]{
		Destroy: func(h ecs.Handle, _ *Position) {
			calls["a"]++
			w.DestroyEntity(h)
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	b, err := ecs.RegisterComponent(reg, "b", ecs.Hooks[Velocity]{
		Destroy: func(ecs.Handle, *Velocity) { calls["b"]++ },
	})
	if err != nil {
		t.Fatal(err)
	}
	w, err = ecs.NewWorld(reg, ecs.NewChunkAllocator(0))
	if err != nil {
		t.Fatal(err)
	}
	e := w.CreateEntity()
	ecs.Add(w, e, a)
	ecs.Add(w, e, b)

	if err := w.RemoveComponent(e, a.Type()); err != nil {
		t.Fatalf("remove a: %v", err)
	}
	if calls["a"] != 1 || calls["b"] != 1 {
		t.Errorf("expected each destroy callback once, got %v", calls)
	}
	if w.Alive(e) || w.Len() != 0 {
		t.Errorf("expected entity gone, alive=%v len=%d", w.Alive(e), w.Len())
	}
	if w.Chunks().InUse() != 0 {
		t.Errorf("expected all chunks released, %d still in use", w.Chunks().InUse())
	}
	if err := w.Err(); err != nil {
		t.Errorf("unexpected store fault: %v", err)
	}
}
