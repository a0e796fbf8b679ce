package packet

import "fmt"

// Client → server opcodes.
const (
	C_OPCODE_HELLO  byte = 0x01
	C_OPCODE_INPUT  byte = 0x02
	C_OPCODE_PING   byte = 0x03
	C_OPCODE_DESYNC byte = 0x04
	C_OPCODE_QUIT   byte = 0x05
)

// Server → client opcodes.
const (
	S_OPCODE_WELCOME byte = 0x81
	S_OPCODE_SPAWN   byte = 0x82
	S_OPCODE_DESPAWN byte = 0x83
	S_OPCODE_STATE   byte = 0x84
	S_OPCODE_PONG    byte = 0x85
)

// ProtocolVersion is sent in C_OPCODE_HELLO.
const ProtocolVersion uint16 = 1

// Welcome results.
const (
	WelcomeOK          byte = 0
	WelcomeBadVersion  byte = 1
	WelcomeBadAccount  byte = 2
	WelcomeBadPassword byte = 3
	WelcomeInUse       byte = 4
	WelcomeServerError byte = 5
)

var opcodeNames = map[byte]string{
	C_OPCODE_HELLO:   "C_HELLO",
	C_OPCODE_INPUT:   "C_INPUT",
	C_OPCODE_PING:    "C_PING",
	C_OPCODE_DESYNC:  "C_DESYNC",
	C_OPCODE_QUIT:    "C_QUIT",
	S_OPCODE_WELCOME: "S_WELCOME",
	S_OPCODE_SPAWN:   "S_SPAWN",
	S_OPCODE_DESPAWN: "S_DESPAWN",
	S_OPCODE_STATE:   "S_STATE",
	S_OPCODE_PONG:    "S_PONG",
}

// OpcodeName returns a printable name, or the hex value for unknown opcodes.
func OpcodeName(op byte) string {
	if n, ok := opcodeNames[op]; ok {
		return n
	}
	return fmt.Sprintf("0x%02x", op)
}
