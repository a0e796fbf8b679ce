package packet

import (
	"errors"
	"fmt"

	"github.com/l1jgo/simcore/internal/core/vmath"
	"github.com/l1jgo/simcore/internal/linking"
	"github.com/l1jgo/simcore/internal/replication"
)

// MaxInputBatch caps the records of one C_OPCODE_INPUT.
const MaxInputBatch = 32

var (
	ErrTruncated = errors.New("packet: truncated")
	ErrBatchSize = errors.New("packet: input batch too large")
)

type Hello struct {
	Version  uint16
	Account  string
	Password string
}

func (m Hello) Encode() []byte {
	w := NewWriterWithOpcode(C_OPCODE_HELLO)
	w.WriteH(m.Version)
	w.WriteS(m.Account)
	w.WriteS(m.Password)
	return w.Bytes()
}

func ReadHello(r *Reader) (Hello, error) {
	m := Hello{Version: r.ReadH(), Account: r.ReadS(), Password: r.ReadS()}
	if r.Truncated() {
		return m, fmt.Errorf("hello: %w", ErrTruncated)
	}
	return m, nil
}

// inputFlags is the wire order of the action booleans.
var inputFlags = [...]replication.ActionFlags{
	replication.ActionStrafeLeft,
	replication.ActionForward,
	replication.ActionBoost,
	replication.ActionFire,
	replication.ActionStop,
}

// EncodeInputs writes a C_OPCODE_INPUT batch. Field order per record:
// dir.x, dir.y, dir.z, strafeLeft, forward, boost, fire, stop, frame.
func EncodeInputs(batch []replication.Input) []byte {
	if len(batch) > MaxInputBatch {
		batch = batch[len(batch)-MaxInputBatch:]
	}
	w := NewWriterWithOpcode(C_OPCODE_INPUT)
	w.WriteC(byte(len(batch)))
	for _, in := range batch {
		w.WriteF(in.Direction.X)
		w.WriteF(in.Direction.Y)
		w.WriteF(in.Direction.Z)
		for _, f := range inputFlags {
			w.WriteBool(in.Actions.Has(f))
		}
		w.WriteDU(in.Frame)
	}
	return w.Bytes()
}

// ReadInputs decodes a C_OPCODE_INPUT batch.
func ReadInputs(r *Reader) ([]replication.Input, error) {
	n := int(r.ReadC())
	if n > MaxInputBatch {
		return nil, fmt.Errorf("input batch of %d: %w", n, ErrBatchSize)
	}
	batch := make([]replication.Input, 0, n)
	for i := 0; i < n; i++ {
		var in replication.Input
		in.Direction = vmath.Vec3{X: r.ReadF(), Y: r.ReadF(), Z: r.ReadF()}
		for _, f := range inputFlags {
			if r.ReadBool() {
				in.Actions |= f
			}
		}
		in.Frame = r.ReadDU()
		batch = append(batch, in)
	}
	if r.Truncated() {
		return nil, fmt.Errorf("input batch: %w", ErrTruncated)
	}
	return batch, nil
}

type Ping struct {
	ClientTime uint32
}

func (m Ping) Encode() []byte {
	w := NewWriterWithOpcode(C_OPCODE_PING)
	w.WriteDU(m.ClientTime)
	return w.Bytes()
}

func ReadPing(r *Reader) (Ping, error) {
	m := Ping{ClientTime: r.ReadDU()}
	if r.Truncated() {
		return m, fmt.Errorf("ping: %w", ErrTruncated)
	}
	return m, nil
}

// Desync is a client's report that a correction could not be reconciled.
type Desync struct {
	NetID  linking.NetID
	Frame  uint32
	Oldest uint32
}

func (m Desync) Encode() []byte {
	w := NewWriterWithOpcode(C_OPCODE_DESYNC)
	w.WriteDU(uint32(m.NetID))
	w.WriteDU(m.Frame)
	w.WriteDU(m.Oldest)
	return w.Bytes()
}

func ReadDesync(r *Reader) (Desync, error) {
	m := Desync{NetID: linking.NetID(r.ReadDU()), Frame: r.ReadDU(), Oldest: r.ReadDU()}
	if r.Truncated() {
		return m, fmt.Errorf("desync: %w", ErrTruncated)
	}
	return m, nil
}

func EncodeQuit() []byte {
	return []byte{C_OPCODE_QUIT}
}

type Welcome struct {
	Result byte
	NetID  linking.NetID
	Frame  uint32
	TickMs uint16
}

func (m Welcome) Encode() []byte {
	w := NewWriterWithOpcode(S_OPCODE_WELCOME)
	w.WriteC(m.Result)
	w.WriteDU(uint32(m.NetID))
	w.WriteDU(m.Frame)
	w.WriteH(m.TickMs)
	return w.Bytes()
}

func ReadWelcome(r *Reader) (Welcome, error) {
	m := Welcome{Result: r.ReadC(), NetID: linking.NetID(r.ReadDU()), Frame: r.ReadDU(), TickMs: r.ReadH()}
	if r.Truncated() {
		return m, fmt.Errorf("welcome: %w", ErrTruncated)
	}
	return m, nil
}

type Spawn struct {
	NetID linking.NetID
	Kind  byte
	Pos   vmath.Vec3
}

func (m Spawn) Encode() []byte {
	w := NewWriterWithOpcode(S_OPCODE_SPAWN)
	w.WriteDU(uint32(m.NetID))
	w.WriteC(m.Kind)
	writeVec(w, m.Pos)
	return w.Bytes()
}

func ReadSpawn(r *Reader) (Spawn, error) {
	m := Spawn{NetID: linking.NetID(r.ReadDU()), Kind: r.ReadC(), Pos: readVec(r)}
	if r.Truncated() {
		return m, fmt.Errorf("spawn: %w", ErrTruncated)
	}
	return m, nil
}

type Despawn struct {
	NetID linking.NetID
}

func (m Despawn) Encode() []byte {
	w := NewWriterWithOpcode(S_OPCODE_DESPAWN)
	w.WriteDU(uint32(m.NetID))
	return w.Bytes()
}

func ReadDespawn(r *Reader) (Despawn, error) {
	m := Despawn{NetID: linking.NetID(r.ReadDU())}
	if r.Truncated() {
		return m, fmt.Errorf("despawn: %w", ErrTruncated)
	}
	return m, nil
}

type EntityState struct {
	NetID linking.NetID
	Pos   vmath.Vec3
	Vel   vmath.Vec3
}

// MaxStateEntities bounds one state packet so it fits a single frame.
const MaxStateEntities = 2048

// State is a snapshot of the entities a recipient knows about. LastInput is
// the last input frame of the recipient the server has applied.
type State struct {
	Frame     uint32
	LastInput uint32
	Entities  []EntityState
}

func (m State) Encode() []byte {
	w := NewWriterWithOpcode(S_OPCODE_STATE)
	w.WriteDU(m.Frame)
	w.WriteDU(m.LastInput)
	w.WriteH(uint16(len(m.Entities)))
	for _, e := range m.Entities {
		w.WriteDU(uint32(e.NetID))
		writeVec(w, e.Pos)
		writeVec(w, e.Vel)
	}
	return w.Bytes()
}

func ReadState(r *Reader) (State, error) {
	m := State{Frame: r.ReadDU(), LastInput: r.ReadDU()}
	n := int(r.ReadH())
	// 28 bytes per entity
	if n*28 > r.Remaining() {
		return m, fmt.Errorf("state of %d entities: %w", n, ErrTruncated)
	}
	m.Entities = make([]EntityState, n)
	for i := range m.Entities {
		m.Entities[i] = EntityState{NetID: linking.NetID(r.ReadDU()), Pos: readVec(r), Vel: readVec(r)}
	}
	if r.Truncated() {
		return m, fmt.Errorf("state: %w", ErrTruncated)
	}
	return m, nil
}

type Pong struct {
	ClientTime uint32
	Frame      uint32
}

func (m Pong) Encode() []byte {
	w := NewWriterWithOpcode(S_OPCODE_PONG)
	w.WriteDU(m.ClientTime)
	w.WriteDU(m.Frame)
	return w.Bytes()
}

func ReadPong(r *Reader) (Pong, error) {
	m := Pong{ClientTime: r.ReadDU(), Frame: r.ReadDU()}
	if r.Truncated() {
		return m, fmt.Errorf("pong: %w", ErrTruncated)
	}
	return m, nil
}

func writeVec(w *Writer, v vmath.Vec3) {
	w.WriteF(v.X)
	w.WriteF(v.Y)
	w.WriteF(v.Z)
}

func readVec(r *Reader) vmath.Vec3 {
	return vmath.Vec3{X: r.ReadF(), Y: r.ReadF(), Z: r.ReadF()}
}
