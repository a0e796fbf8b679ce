package net

import (
	"fmt"
	"net"
	"time"

	"github.com/gorilla/websocket"
)

// Transport moves whole packet payloads. A Session owns its transport; one
// goroutine reads and one writes.
type Transport interface {
	ReadPacket() ([]byte, error)
	WritePacket(data []byte) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	RemoteAddr() string
	Close() error
}

// TCPTransport frames payloads with the 2-byte length header.
type TCPTransport struct {
	conn net.Conn
}

func NewTCPTransport(conn net.Conn) *TCPTransport {
	return &TCPTransport{conn: conn}
}

func (t *TCPTransport) ReadPacket() ([]byte, error)        { return ReadFrame(t.conn) }
func (t *TCPTransport) WritePacket(data []byte) error      { return WriteFrame(t.conn, data) }
func (t *TCPTransport) SetReadDeadline(d time.Time) error  { return t.conn.SetReadDeadline(d) }
func (t *TCPTransport) SetWriteDeadline(d time.Time) error { return t.conn.SetWriteDeadline(d) }
func (t *TCPTransport) RemoteAddr() string                 { return t.conn.RemoteAddr().String() }
func (t *TCPTransport) Close() error                       { return t.conn.Close() }

// WSTransport carries one payload per binary websocket message, without the
// length header.
type WSTransport struct {
	conn *websocket.Conn
}

func NewWSTransport(conn *websocket.Conn) *WSTransport {
	conn.SetReadLimit(MaxPayload)
	return &WSTransport{conn: conn}
}

func (t *WSTransport) ReadPacket() ([]byte, error) {
	for {
		kind, data, err := t.conn.ReadMessage()
		if err != nil {
			return nil, fmt.Errorf("read ws message: %w", err)
		}
		if kind != websocket.BinaryMessage {
			continue
		}
		if len(data) == 0 {
			return nil, fmt.Errorf("empty ws message")
		}
		return data, nil
	}
}

func (t *WSTransport) WritePacket(data []byte) error {
	if err := t.conn.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("write ws message: %w", err)
	}
	return nil
}

func (t *WSTransport) SetReadDeadline(d time.Time) error  { return t.conn.SetReadDeadline(d) }
func (t *WSTransport) SetWriteDeadline(d time.Time) error { return t.conn.SetWriteDeadline(d) }
func (t *WSTransport) RemoteAddr() string                 { return t.conn.RemoteAddr().String() }
func (t *WSTransport) Close() error                       { return t.conn.Close() }
