package ecs_test

import (
	"strings"
	"testing"

	"github.com/l1jgo/simcore/internal/core/ecs"
)

func TestDocumentKeepsKeyOrder(t *testing.T) {
	d := ecs.NewDocument()
	d.Set("zeta", 1)
	d.Set("alpha", "two")
	d.Set("zeta", 3) // replaced in place

	if got := strings.Join(d.Keys(), ","); got != "zeta,alpha" {
		t.Errorf("expected zeta,alpha, got %s", got)
	}
	var z int
	if ok, err := d.Get("zeta", &z); !ok || err != nil || z != 3 {
		t.Errorf("expected zeta=3, got %d (ok=%v err=%v)", z, ok, err)
	}

	out, err := d.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	back, err := ecs.ParseDocument(out)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(back.Keys(), ","); got != "zeta,alpha" {
		t.Errorf("order lost on round trip: %s", got)
	}
}

func TestParseDocumentRejectsNonMapping(t *testing.T) {
	if _, err := ecs.ParseDocument([]byte("- a\n- b\n")); err == nil {
		t.Error("expected error for a top-level sequence")
	}
	d, err := ecs.ParseDocument(nil)
	if err != nil {
		t.Fatalf("empty input: %v", err)
	}
	if d.Len() != 0 {
		t.Errorf("expected empty document, got %d keys", d.Len())
	}
}

func TestSaveLoadEntity(t *testing.T) {
	f := setupWorld(t, 0)
	w := f.world
	e := w.CreateEntity()
	ecs.Set(w, e, f.pos, Position{X: 1.5, Y: -2})
	ecs.Set(w, e, f.health, Health{Current: 40, Max: 120})

	doc, err := w.SaveEntity(e)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(doc.Keys(), ","); got != "position,health" {
		t.Errorf("expected position,health, got %s", got)
	}

	data, err := doc.Marshal()
	if err != nil {
		t.Fatal(err)
	}
	parsed, err := ecs.ParseDocument(data)
	if err != nil {
		t.Fatal(err)
	}
	h, skipped, err := w.LoadEntity(parsed)
	if err != nil {
		t.Fatal(err)
	}
	if len(skipped) != 0 {
		t.Errorf("unexpected skipped keys %v", skipped)
	}
	p := ecs.MustGet(w, h, f.pos)
	hp := ecs.MustGet(w, h, f.health)
	if *p != (Position{X: 1.5, Y: -2}) || *hp != (Health{Current: 40, Max: 120}) {
		t.Errorf("round trip mismatch: %+v %+v", *p, *hp)
	}
}

// A field absent from the document keeps the value the Init hook set.
func TestLoadEntityMissingKeyKeepsDefault(t *testing.T) {
	f := setupWorld(t, 0)
	w := f.world
	doc, err := ecs.ParseDocument([]byte("health:\n  current: 7\nshield:\n  level: 3\n"))
	if err != nil {
		t.Fatal(err)
	}
	h, skipped, err := w.LoadEntity(doc)
	if err != nil {
		t.Fatal(err)
	}
	if len(skipped) != 1 || skipped[0] != "shield" {
		t.Errorf("expected shield skipped, got %v", skipped)
	}
	hp := ecs.MustGet(w, h, f.health)
	if hp.Current != 7 || hp.Max != 100 {
		t.Errorf("expected current=7 max=100, got %+v", *hp)
	}
}

func TestLoadEntityBadValueDestroysEntity(t *testing.T) {
	f := setupWorld(t, 0)
	w := f.world
	doc, err := ecs.ParseDocument([]byte("position:\n  x: [not, a, number]\n"))
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := w.LoadEntity(doc); err == nil {
		t.Fatal("expected decode error")
	}
	if w.Len() != 0 {
		t.Errorf("half-built entity left behind, %d live", w.Len())
	}
}
