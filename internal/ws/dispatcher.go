package ws

import (
	"log"
	"time"

	"github.com/chatline/dm-app/internal/protocol"
)

// Dispatcher handles inbound WebSocket frames. Clients send messages through
// the REST write path, not the socket, so the only client frame the channel
// carries is the keepalive ping; anything else gets a structured error back.
type Dispatcher struct{}

// NewDispatcher creates a Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{}
}

// Dispatch is the onMessage callback implementation. It parses the raw bytes
// into a typed message, answers pings, and rejects everything else with an
// error event.
func (d *Dispatcher) Dispatch(conn *Connection, data []byte) {
	msgType, _, err := protocol.ParseClientMessage(data)
	if err != nil {
		log.Printf("ws: dispatch parse error conn=%s: %v", conn.ID, err)
		d.sendError(conn, "parse_error", "invalid message format")
		return
	}

	if msgType == protocol.TypePing {
		d.sendPong(conn)
		return
	}

	// ParseClientMessage only admits known types, so this is unreachable
	// today, but a new client type without a handler should fail loudly.
	log.Printf("ws: unsupported message type=%q conn=%s", msgType, conn.ID)
	d.sendError(conn, "unsupported_type", "unsupported message type")
}

// sendError sends a structured error message back to the client. Errors
// during construction or transmission are logged but not propagated.
func (d *Dispatcher) sendError(conn *Connection, code string, message string) {
	data, err := protocol.NewServerMessage(protocol.TypeError, protocol.ErrorMsg{
		Code:    code,
		Message: message,
	})
	if err != nil {
		log.Printf("ws: failed to build error message conn=%s: %v", conn.ID, err)
		return
	}
	if err := conn.Push(data); err != nil {
		log.Printf("ws: failed to send error message conn=%s: %v", conn.ID, err)
	}
}

// sendPong answers a client ping and refreshes the connection's activity
// timestamp.
func (d *Dispatcher) sendPong(conn *Connection) {
	conn.LastPing = time.Now()

	data, err := protocol.NewServerMessage(protocol.TypePong, protocol.PongMsg{})
	if err != nil {
		log.Printf("ws: failed to build pong conn=%s: %v", conn.ID, err)
		return
	}
	if err := conn.Push(data); err != nil {
		log.Printf("ws: failed to send pong conn=%s: %v", conn.ID, err)
	}
}
