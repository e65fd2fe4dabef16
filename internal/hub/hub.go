// Package hub implements the connection lifecycle: it takes accepted
// transport connections, registers verified identities in the presence
// directory, broadcasts roster snapshots on every change, and unwinds the
// registration on disconnect. The transport reports connect and disconnect
// events; the hub owns what they mean.
package hub

import (
	"log"

	"github.com/chatline/dm-app/internal/metrics"
	"github.com/chatline/dm-app/internal/presence"
	"github.com/chatline/dm-app/internal/protocol"
)

// Broadcaster sends a frame to every live transport connection, including
// unregistered ones.
type Broadcaster interface {
	Broadcast(data []byte)
}

// DeliverBus manages per-user delivery subscriptions for cross-instance
// fan-out.
type DeliverBus interface {
	SubscribeDeliver(userID string, handler func(data []byte)) error
	UnsubscribeDeliver(userID string) error
}

// Hub is the connection lifecycle manager. It owns the presence directory:
// every register/unregister flows through HandleConnect and
// HandleDisconnect, and every roster change is broadcast to all connections
// as a full users-online snapshot.
type Hub struct {
	dir   *presence.Directory
	conns Broadcaster
	bus   DeliverBus // nil when running a single instance
}

// New creates a Hub over the given directory and broadcaster and installs
// the roster-changed listener. bus may be nil.
func New(dir *presence.Directory, conns Broadcaster, bus DeliverBus) *Hub {
	h := &Hub{dir: dir, conns: conns, bus: bus}
	dir.SetOnChange(h.broadcastRoster)
	return h
}

// HandleConnect processes an accepted connection. A connection with a
// verified identity is registered in the directory (replacing any previous
// connection for that identity); one without stays unregistered but keeps
// its transport, so it still sees roster broadcasts. Every connection gets
// a connected acknowledgment either way.
func (h *Hub) HandleConnect(conn presence.Conn, connID, userID string) {
	metrics.ConnectionsTotal.Inc()

	ack, err := protocol.NewServerMessage(protocol.TypeConnected, protocol.ConnectedMsg{
		ConnectionID: connID,
		UserID:       userID,
		Registered:   userID != "",
	})
	if err != nil {
		log.Printf("hub: build connected ack conn=%s: %v", connID, err)
	} else if err := conn.Push(ack); err != nil {
		log.Printf("hub: send connected ack conn=%s: %v", connID, err)
	}

	if userID == "" {
		log.Printf("hub: connection conn=%s has no verified identity, running unregistered", connID)
		return
	}

	h.dir.Register(userID, conn)

	if h.bus != nil {
		if err := h.bus.SubscribeDeliver(userID, func(data []byte) {
			h.pushRemote(userID, data)
		}); err != nil {
			log.Printf("hub: delivery subscription for user=%s failed: %v", userID, err)
		}
	}
}

// HandleDisconnect processes a dropped connection. The unregister only
// removes the directory entry when conn is still the current handle for the
// identity; a disconnect of a superseded connection changes nothing and
// triggers no broadcast.
func (h *Hub) HandleDisconnect(conn presence.Conn, userID string) {
	metrics.ConnectionsTotal.Dec()

	if userID == "" {
		return
	}

	removed := h.dir.Unregister(userID, conn)
	if removed && h.bus != nil {
		if err := h.bus.UnsubscribeDeliver(userID); err != nil {
			log.Printf("hub: delivery unsubscribe for user=%s failed: %v", userID, err)
		}
	}
}

// broadcastRoster is the directory's roster-changed listener. The payload is
// the full snapshot; clients replace their local view entirely.
func (h *Hub) broadcastRoster(roster []string) {
	metrics.OnlineUsers.Set(float64(len(roster)))

	data, err := protocol.NewServerMessage(protocol.TypeUsersOnline, protocol.UsersOnlineMsg{
		Users: roster,
	})
	if err != nil {
		log.Printf("hub: build roster broadcast: %v", err)
		return
	}

	h.conns.Broadcast(data)
	metrics.RosterBroadcastsTotal.Inc()
}

// pushRemote handles a delivery event published by another instance. The
// current connection is resolved at event time, so events arriving across a
// reconnect land on the replacement connection.
func (h *Hub) pushRemote(userID string, data []byte) {
	conn := h.dir.Lookup(userID)
	if conn == nil {
		metrics.DeliveriesTotal.WithLabelValues("offline").Inc()
		return
	}
	if err := conn.Push(data); err != nil {
		log.Printf("hub: remote delivery push to user=%s failed: %v", userID, err)
		metrics.DeliveriesTotal.WithLabelValues("failed").Inc()
		return
	}
	metrics.DeliveriesTotal.WithLabelValues("pushed").Inc()
}
