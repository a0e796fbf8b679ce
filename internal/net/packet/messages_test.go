package packet

import (
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/l1jgo/simcore/internal/core/vmath"
	"github.com/l1jgo/simcore/internal/replication"
)

// The input record layout is fixed byte for byte.
func TestInputRecordLayout(t *testing.T) {
	in := replication.Input{
		Frame:     0x01020304,
		Direction: vmath.Vec3{X: 1, Y: -2, Z: 0.5},
		Actions:   replication.ActionForward | replication.ActionStop,
	}
	b := EncodeInputs([]replication.Input{in})

	if b[0] != C_OPCODE_INPUT || b[1] != 1 {
		t.Fatalf("bad header % x", b[:2])
	}
	if len(b) != 2+12+5+4 {
		t.Fatalf("expected 23 bytes, got %d", len(b))
	}
	rec := b[2:]
	if math.Float32frombits(binary.LittleEndian.Uint32(rec[0:])) != 1 ||
		math.Float32frombits(binary.LittleEndian.Uint32(rec[4:])) != -2 ||
		math.Float32frombits(binary.LittleEndian.Uint32(rec[8:])) != 0.5 {
		t.Errorf("direction fields out of order: % x", rec[:12])
	}
	if want := []byte{0, 1, 0, 0, 1}; string(rec[12:17]) != string(want) {
		t.Errorf("expected flags % x, got % x", want, rec[12:17])
	}
	if binary.LittleEndian.Uint32(rec[17:]) != 0x01020304 {
		t.Errorf("frame not little-endian at the end: % x", rec[17:])
	}

	got, err := ReadInputs(NewReader(b))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0] != in {
		t.Errorf("expected %+v, got %+v", in, got)
	}
}

func TestReadInputsRejectsBadBatches(t *testing.T) {
	b := EncodeInputs([]replication.Input{{Frame: 1}, {Frame: 2}})
	if _, err := ReadInputs(NewReader(b[:len(b)-3])); !errors.Is(err, ErrTruncated) {
		t.Errorf("expected ErrTruncated, got %v", err)
	}
	if _, err := ReadInputs(NewReader([]byte{C_OPCODE_INPUT, MaxInputBatch + 1})); !errors.Is(err, ErrBatchSize) {
		t.Errorf("expected ErrBatchSize, got %v", err)
	}

	many := make([]replication.Input, MaxInputBatch+5)
	for i := range many {
		many[i].Frame = uint32(i + 1)
	}
	got, err := ReadInputs(NewReader(EncodeInputs(many)))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != MaxInputBatch || got[len(got)-1].Frame != uint32(len(many)) {
		t.Errorf("expected newest %d records kept, got %d ending at %d", MaxInputBatch, len(got), got[len(got)-1].Frame)
	}
}

func TestStateMessage(t *testing.T) {
	m := State{Frame: 90, LastInput: 88, Entities: []EntityState{
		{NetID: 1, Pos: vmath.Vec3{X: 1, Y: 2, Z: 3}, Vel: vmath.Vec3{Z: -1}},
		{NetID: 4, Pos: vmath.Vec3{X: 7}},
	}}
	got, err := ReadState(NewReader(m.Encode()))
	if err != nil {
		t.Fatal(err)
	}
	if got.Frame != 90 || got.LastInput != 88 || len(got.Entities) != 2 || got.Entities[0] != m.Entities[0] || got.Entities[1] != m.Entities[1] {
		t.Errorf("expected %+v, got %+v", m, got)
	}

	short := m.Encode()
	if _, err := ReadState(NewReader(short[:len(short)-1])); !errors.Is(err, ErrTruncated) {
		t.Errorf("expected ErrTruncated, got %v", err)
	}
}

func TestHelloNormalizesNames(t *testing.T) {
	// "é" as e + combining acute
	m := Hello{Version: ProtocolVersion, Account: "Rene\u0301", Password: "pw"}
	got, err := ReadHello(NewReader(m.Encode()))
	if err != nil {
		t.Fatal(err)
	}
	if got.Account != "Ren\u00e9" {
		t.Errorf("expected NFC name, got %q", got.Account)
	}
	if _, err := ReadHello(NewReader([]byte{C_OPCODE_HELLO, 1, 0, 'a'})); !errors.Is(err, ErrTruncated) {
		t.Errorf("expected ErrTruncated for unterminated string, got %v", err)
	}
}
