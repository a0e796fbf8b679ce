package packet

import (
	"errors"
	"testing"

	"go.uber.org/zap"
)

func TestDispatchGatesByState(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	calls := 0
	reg.Register(C_OPCODE_INPUT, []SessionState{StateInWorld}, func(_ any, r *Reader) {
		calls++
		if r.Opcode() != C_OPCODE_INPUT {
			t.Errorf("expected reader over the input packet, got %d", r.Opcode())
		}
	})

	if err := reg.Dispatch(nil, StateHandshake, []byte{C_OPCODE_INPUT, 0}); !errors.Is(err, ErrStateNotAllowed) {
		t.Errorf("expected ErrStateNotAllowed in handshake state, got %v", err)
	}
	if err := reg.Dispatch(nil, StateInWorld, []byte{C_OPCODE_INPUT, 0}); err != nil {
		t.Fatal(err)
	}
	if calls != 1 {
		t.Errorf("expected 1 call, got %d", calls)
	}
	if err := reg.Dispatch(nil, StateInWorld, []byte{0x7f}); err != nil {
		t.Errorf("unknown opcodes are ignored, got %v", err)
	}
	if err := reg.Dispatch(nil, StateInWorld, nil); !errors.Is(err, ErrEmptyPacket) {
		t.Errorf("expected ErrEmptyPacket, got %v", err)
	}

	stats, unknown := reg.Stats()
	if len(stats) != 1 || stats[0].Handled != 1 || stats[0].Denied != 1 {
		t.Errorf("expected 1 handled and 1 denied input, got %+v", stats)
	}
	if unknown != 1 {
		t.Errorf("expected 1 unknown packet, got %d", unknown)
	}
}

func TestDispatchRecoversHandlerPanic(t *testing.T) {
	reg := NewRegistry(zap.NewNop())
	reg.Register(C_OPCODE_PING, []SessionState{StateInWorld}, func(any, *Reader) {
		panic("bad packet")
	})
	if err := reg.Dispatch(nil, StateInWorld, []byte{C_OPCODE_PING}); !errors.Is(err, ErrHandlerPanic) {
		t.Errorf("expected panic converted to ErrHandlerPanic, got %v", err)
	}
}

func TestOpcodeName(t *testing.T) {
	if n := OpcodeName(S_OPCODE_STATE); n != "S_STATE" {
		t.Errorf("expected S_STATE, got %s", n)
	}
	if n := OpcodeName(0x7f); n != "0x7f" {
		t.Errorf("expected 0x7f, got %s", n)
	}
}
