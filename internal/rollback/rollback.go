// Package rollback keeps per-entity predicted states by frame and reconciles
// them against authoritative corrections.
package rollback

import (
	"errors"
	"fmt"

	"github.com/l1jgo/simcore/internal/core/ecs"
)

// DefaultWindow is the retention window used when none is configured.
const DefaultWindow = 64

var (
	// ErrDesync matches every *DesyncError.
	ErrDesync  = errors.New("rollback: desync")
	ErrNoState = errors.New("rollback: entity has no state to capture")
)

// Model binds the store to the simulation. Step applies the recorded input of
// frame to the current state of h.
type Model[S any] interface {
	Capture(h ecs.Handle) (S, bool)
	Restore(h ecs.Handle, s S)
	Step(h ecs.Handle, frame uint32)
	Equal(a, b S) bool
}

// Outcome is what Reconcile did.
type Outcome uint8

const (
	Stale     Outcome = iota // frame already confirmed
	Confirmed                // prediction matched
	Corrected                // authority restored, later frames re-simulated
	Resynced                 // no usable prediction, authority restored and history cleared
)

func (o Outcome) String() string {
	switch o {
	case Stale:
		return "stale"
	case Confirmed:
		return "confirmed"
	case Corrected:
		return "corrected"
	case Resynced:
		return "resynced"
	}
	return fmt.Sprintf("outcome(%d)", uint8(o))
}

type Result struct {
	Outcome     Outcome
	Resimulated int
}

// DesyncError reports a correction for a frame whose snapshot had already
// been evicted: the window is shorter than the round trip to the authority.
type DesyncError struct {
	Handle ecs.Handle
	Frame  uint32
	Oldest uint32 // oldest retained frame at the time, 0 if none
}

func (e *DesyncError) Error() string {
	return fmt.Sprintf("rollback: desync on %s at frame %d (oldest retained %d)", e.Handle, e.Frame, e.Oldest)
}

func (e *DesyncError) Unwrap() error { return ErrDesync }

type record[S any] struct {
	frame uint32
	state S
}

type history[S any] struct {
	records   []record[S] // ascending frames
	confirmed uint32
}

func (h *history[S]) find(frame uint32) int {
	for i := range h.records {
		if h.records[i].frame == frame {
			return i
		}
	}
	return -1
}

// drop removes every record at or before frame.
func (h *history[S]) drop(frame uint32) {
	i := 0
	for i < len(h.records) && h.records[i].frame <= frame {
		i++
	}
	n := copy(h.records, h.records[i:])
	clear(h.records[n:])
	h.records = h.records[:n]
}

// Store is not safe for concurrent use.
type Store[S any] struct {
	model   Model[S]
	window  uint32
	entries map[ecs.Handle]*history[S]
}

func NewStore[S any](model Model[S], window int) *Store[S] {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Store[S]{
		model:   model,
		window:  uint32(window),
		entries: make(map[ecs.Handle]*history[S]),
	}
}

func (s *Store[S]) Window() int { return int(s.window) }

// Snapshot records the current state of h as the prediction for frame.
// Re-snapshotting a frame replaces it and everything after it. Frames that
// fall out of the window are evicted.
func (s *Store[S]) Snapshot(h ecs.Handle, frame uint32) error {
	st, ok := s.model.Capture(h)
	if !ok {
		return fmt.Errorf("snapshot %s at %d: %w", h, frame, ErrNoState)
	}
	e := s.entries[h]
	if e == nil {
		e = &history[S]{records: make([]record[S], 0, s.window)}
		s.entries[h] = e
	}
	if frame <= e.confirmed {
		return nil
	}
	for n := len(e.records); n > 0 && e.records[n-1].frame >= frame; n-- {
		e.records[n-1] = record[S]{}
		e.records = e.records[:n-1]
	}
	e.records = append(e.records, record[S]{frame: frame, state: st})
	if frame >= s.window {
		e.drop(frame - s.window)
	}
	return nil
}

// Reconcile compares the prediction for frame with the authoritative state.
// When they differ the authority becomes the new baseline and every later
// retained frame is re-simulated and re-captured. When the prediction was
// already evicted the authority is restored, history is cleared, and a
// *DesyncError is returned; the caller keeps simulating.
func (s *Store[S]) Reconcile(h ecs.Handle, frame uint32, authoritative S) (Result, error) {
	e := s.entries[h]
	if e == nil {
		e = &history[S]{}
		s.entries[h] = e
	}
	if frame <= e.confirmed {
		return Result{Outcome: Stale}, nil
	}

	i := e.find(frame)
	if i < 0 {
		var err error
		if len(e.records) > 0 && frame < e.records[0].frame {
			err = &DesyncError{Handle: h, Frame: frame, Oldest: e.records[0].frame}
		}
		s.model.Restore(h, authoritative)
		clear(e.records)
		e.records = e.records[:0]
		e.confirmed = frame
		return Result{Outcome: Resynced}, err
	}

	if s.model.Equal(e.records[i].state, authoritative) {
		e.drop(frame)
		e.confirmed = frame
		return Result{Outcome: Confirmed}, nil
	}

	s.model.Restore(h, authoritative)
	later := e.records[i+1:]
	for j := range later {
		s.model.Step(h, later[j].frame)
		if st, ok := s.model.Capture(h); ok {
			later[j].state = st
		}
	}
	e.drop(frame)
	e.confirmed = frame
	return Result{Outcome: Corrected, Resimulated: len(later)}, nil
}

// Oldest returns the oldest retained frame of h, 0 when none.
func (s *Store[S]) Oldest(h ecs.Handle) uint32 {
	e := s.entries[h]
	if e == nil || len(e.records) == 0 {
		return 0
	}
	return e.records[0].frame
}

// Len returns the number of retained snapshots of h.
func (s *Store[S]) Len(h ecs.Handle) int {
	if e := s.entries[h]; e != nil {
		return len(e.records)
	}
	return 0
}

// Forget drops all history of h.
func (s *Store[S]) Forget(h ecs.Handle) {
	delete(s.entries, h)
}
