// Package delivery routes freshly persisted messages to their recipient's
// live connection. Delivery is advisory: persistence is the durability
// authority, and a recipient with no connection simply reads the message
// from history later.
package delivery

import (
	"log"

	"github.com/chatline/dm-app/internal/metrics"
	"github.com/chatline/dm-app/internal/presence"
	"github.com/chatline/dm-app/internal/protocol"
	"github.com/chatline/dm-app/internal/store"
)

// RemoteBus hands delivery events to other server instances when the
// recipient is not connected locally. Publishing is best-effort, the same as
// a local push.
type RemoteBus interface {
	PublishDeliver(userID string, data []byte) error
}

// Router pushes persisted messages to online recipients. It must only be
// invoked after persistence has succeeded; an unpersisted message must never
// be pushed.
type Router struct {
	dir    *presence.Directory
	remote RemoteBus // nil when running a single instance
}

// NewRouter creates a Router over the given presence directory. remote may
// be nil, in which case messages for non-local recipients are dropped (they
// remain retrievable via history).
func NewRouter(dir *presence.Directory, remote RemoteBus) *Router {
	return &Router{dir: dir, remote: remote}
}

// Deliver pushes msg to the recipient's current connection if one exists.
// An offline recipient is not an error, push failures are swallowed, and
// there is no retry or queueing. Deliver never reports failure to the
// caller: once a message is persisted the send has succeeded.
func (r *Router) Deliver(msg *store.Message) {
	data, err := protocol.NewServerMessage(protocol.TypeNewMessage, protocol.NewMessageMsg{
		Message: *msg,
	})
	if err != nil {
		// Encoding a valid Message cannot ordinarily fail; log and move on.
		log.Printf("delivery: encode message id=%s: %v", msg.ID, err)
		metrics.DeliveriesTotal.WithLabelValues("failed").Inc()
		return
	}

	if conn := r.dir.Lookup(msg.ReceiverID); conn != nil {
		if err := conn.Push(data); err != nil {
			// The directory can briefly list a transport-dead connection;
			// the heartbeat will evict it. The message stays in history.
			log.Printf("delivery: push to user=%s failed: %v", msg.ReceiverID, err)
			metrics.DeliveriesTotal.WithLabelValues("failed").Inc()
			return
		}
		metrics.DeliveriesTotal.WithLabelValues("pushed").Inc()
		return
	}

	if r.remote != nil {
		if err := r.remote.PublishDeliver(msg.ReceiverID, data); err != nil {
			log.Printf("delivery: remote publish for user=%s failed: %v", msg.ReceiverID, err)
			metrics.DeliveriesTotal.WithLabelValues("failed").Inc()
			return
		}
		metrics.DeliveriesTotal.WithLabelValues("remote").Inc()
		return
	}

	metrics.DeliveriesTotal.WithLabelValues("offline").Inc()
}
