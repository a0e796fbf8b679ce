package system

import (
	"slices"
	"time"
)

// TickTimes is the wall time each phase took during one tick.
type TickTimes [phaseCount]time.Duration

// Total sums all phases.
func (t TickTimes) Total() time.Duration {
	var d time.Duration
	for _, p := range t {
		d += p
	}
	return d
}

// Each calls fn for every phase that ran for a measurable time.
func (t TickTimes) Each(fn func(Phase, time.Duration)) {
	for p, d := range t {
		if d > 0 {
			fn(Phase(p), d)
		}
	}
}

// Runner executes systems in phase order each tick and counts frames.
type Runner struct {
	systems []System
	sorted  bool
	frame   uint32
	last    TickTimes
	now     func() time.Time
}

func NewRunner() *Runner {
	return &Runner{
		systems: make([]System, 0, 16),
		now:     time.Now,
	}
}

func (r *Runner) Register(s System) {
	r.systems = append(r.systems, s)
	r.sorted = false
}

// Frame returns the number of the tick currently running, or of the last
// completed tick between ticks. The first tick is frame 1.
func (r *Runner) Frame() uint32 { return r.frame }

// LastTick returns the phase timings of the most recent Tick.
func (r *Runner) LastTick() TickTimes { return r.last }

func (r *Runner) Tick(dt time.Duration) {
	r.ensureSorted()
	r.frame++
	r.last = TickTimes{}
	for _, s := range r.systems {
		start := r.now()
		s.Update(dt)
		if p := s.Phase(); p >= 0 && p < phaseCount {
			r.last[p] += r.now().Sub(start)
		}
	}
}

// TickPhase runs only the systems of phase, without advancing the frame.
// Used to poll input between full ticks.
func (r *Runner) TickPhase(phase Phase, dt time.Duration) {
	r.ensureSorted()
	for _, s := range r.systems {
		if s.Phase() == phase {
			s.Update(dt)
		}
	}
}

func (r *Runner) ensureSorted() {
	if r.sorted {
		return
	}
	slices.SortStableFunc(r.systems, func(a, b System) int { return int(a.Phase()) - int(b.Phase()) })
	r.sorted = true
}
