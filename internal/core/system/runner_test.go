package system

import (
	"testing"
	"time"
)

type recorder struct {
	phase Phase
	name  string
	log   *[]string
}

func (r recorder) Phase() Phase         { return r.phase }
func (r recorder) Update(time.Duration) { *r.log = append(*r.log, r.name) }

func TestRunnerOrdersByPhaseStable(t *testing.T) {
	var log []string
	r := NewRunner()
	r.Register(recorder{PhaseOutput, "out", &log})
	r.Register(recorder{PhaseInput, "in", &log})
	r.Register(recorder{PhaseUpdate, "sim", &log})
	r.Register(recorder{PhaseUpdate, "fire", &log})
	r.Register(recorder{PhaseCleanup, "clean", &log})

	r.Tick(time.Millisecond)
	want := []string{"in", "sim", "fire", "out", "clean"}
	if len(log) != len(want) {
		t.Fatalf("expected %v, got %v", want, log)
	}
	for i := range want {
		if log[i] != want[i] {
			t.Errorf("expected %v, got %v", want, log)
			break
		}
	}
	if r.Frame() != 1 {
		t.Errorf("expected frame 1, got %d", r.Frame())
	}

	log = log[:0]
	r.TickPhase(PhaseInput, 0)
	if len(log) != 1 || log[0] != "in" || r.Frame() != 1 {
		t.Errorf("TickPhase ran %v at frame %d", log, r.Frame())
	}
}

func TestRunnerRecordsPhaseTimes(t *testing.T) {
	var log []string
	r := NewRunner()
	clock := time.Unix(0, 0)
	r.now = func() time.Time {
		clock = clock.Add(time.Millisecond)
		return clock
	}
	r.Register(recorder{PhaseUpdate, "a", &log})
	r.Register(recorder{PhaseUpdate, "b", &log})
	r.Register(recorder{PhaseOutput, "c", &log})

	r.Tick(0)
	times := r.LastTick()
	if times[PhaseUpdate] != 2*time.Millisecond {
		t.Errorf("expected 2ms in update, got %s", times[PhaseUpdate])
	}
	if times[PhaseOutput] != time.Millisecond {
		t.Errorf("expected 1ms in output, got %s", times[PhaseOutput])
	}
	if times.Total() != 3*time.Millisecond {
		t.Errorf("expected 3ms total, got %s", times.Total())
	}
	var phases []string
	times.Each(func(p Phase, _ time.Duration) { phases = append(phases, p.String()) })
	if len(phases) != 2 || phases[0] != "update" || phases[1] != "output" {
		t.Errorf("expected [update output], got %v", phases)
	}
}
