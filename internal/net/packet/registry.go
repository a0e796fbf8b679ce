package packet

import (
	"errors"
	"fmt"

	"go.uber.org/zap"
)

// SessionState represents the session's current protocol phase.
type SessionState int

const (
	StateHandshake     SessionState = iota // connected, awaiting hello
	StateInWorld                           // avatar spawned, sending input
	StateDisconnecting
)

func (s SessionState) String() string {
	switch s {
	case StateHandshake:
		return "Handshake"
	case StateInWorld:
		return "InWorld"
	case StateDisconnecting:
		return "Disconnecting"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

var (
	ErrEmptyPacket     = errors.New("packet: empty")
	ErrStateNotAllowed = errors.New("packet: opcode not allowed in state")
	ErrHandlerPanic    = errors.New("packet: handler panic")
)

// HandlerFunc is the callback signature for packet handlers.
// The session pointer is passed as an opaque interface to avoid import cycles.
type HandlerFunc func(sess any, r *Reader)

type handlerEntry struct {
	fn      HandlerFunc
	states  uint32 // bit per SessionState
	handled uint64
	denied  uint64
}

// OpcodeStats counts dispatches of one opcode.
type OpcodeStats struct {
	Opcode  byte
	Handled uint64
	Denied  uint64
}

// Registry maps opcodes to handlers with state-based access control.
// Dispatch runs on the game loop goroutine only.
type Registry struct {
	handlers [256]*handlerEntry
	unknown  uint64
	log      *zap.Logger
}

func NewRegistry(log *zap.Logger) *Registry {
	return &Registry{log: log}
}

// Register maps an opcode to a handler, restricted to the given session states.
// Registering an opcode twice replaces the earlier handler.
func (reg *Registry) Register(opcode byte, states []SessionState, fn HandlerFunc) {
	e := &handlerEntry{fn: fn}
	for _, s := range states {
		e.states |= 1 << uint(s)
	}
	reg.handlers[opcode] = e
}

// Dispatch finds the handler for the opcode in data[0], validates the session
// state, and calls the handler. Unknown opcodes are counted and dropped.
func (reg *Registry) Dispatch(sess any, state SessionState, data []byte) error {
	if len(data) == 0 {
		return ErrEmptyPacket
	}
	opcode := data[0]
	entry := reg.handlers[opcode]
	if entry == nil {
		reg.unknown++
		reg.log.Debug("unknown opcode", zap.Uint8("opcode", opcode), zap.Stringer("state", state))
		return nil
	}
	if entry.states&(1<<uint(state)) == 0 {
		entry.denied++
		reg.log.Warn("opcode not allowed in state",
			zap.String("opcode", OpcodeName(opcode)),
			zap.Stringer("state", state),
		)
		return fmt.Errorf("%s in %s: %w", OpcodeName(opcode), state, ErrStateNotAllowed)
	}

	entry.handled++
	return reg.safeCall(entry.fn, sess, NewReader(data), opcode)
}

// Registered reports whether opcode has a handler.
func (reg *Registry) Registered(opcode byte) bool {
	return reg.handlers[opcode] != nil
}

// Stats returns the counters of every registered opcode in opcode order, and
// the number of packets with an unknown opcode.
func (reg *Registry) Stats() ([]OpcodeStats, uint64) {
	var out []OpcodeStats
	for op, e := range reg.handlers {
		if e != nil {
			out = append(out, OpcodeStats{Opcode: byte(op), Handled: e.handled, Denied: e.denied})
		}
	}
	return out, reg.unknown
}

// safeCall executes a handler with panic recovery to prevent a single
// bad packet from crashing the entire game loop.
func (reg *Registry) safeCall(fn HandlerFunc, sess any, r *Reader, opcode byte) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			reg.log.Error("handler panic recovered",
				zap.String("opcode", OpcodeName(opcode)),
				zap.Any("panic", rec),
			)
			err = fmt.Errorf("%s: %w: %v", OpcodeName(opcode), ErrHandlerPanic, rec)
		}
	}()
	fn(sess, r)
	return nil
}
