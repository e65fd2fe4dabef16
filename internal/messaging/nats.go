// Package messaging provides a NATS client wrapper for cross-instance
// delivery fan-out. When multiple server instances run behind a load
// balancer, a message persisted on one instance may need to reach a
// recipient whose connection lives on another; the dm.deliver.<user_id>
// subjects carry that hand-off. Delivery over NATS stays best-effort, the
// same as a local push.
package messaging

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

// SubjectDeliver is the subject prefix for per-recipient delivery events;
// the full subject is dm.deliver.<user_id>.
const SubjectDeliver = "dm.deliver"

// Client wraps the NATS connection with delivery pub/sub helpers.
type Client struct {
	conn *nats.Conn
	mu   sync.Mutex
	subs map[string]*nats.Subscription // user ID -> delivery subscription
}

// Config holds NATS connection settings.
type Config struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:           "nats://localhost:4222",
		Name:          "dm-app",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1,
	}
}

// NewClient connects to NATS with the given config and returns a ready
// client. It returns an error if the initial connection fails.
func NewClient(config Config) (*Client, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[nats] disconnected: %v", err)
			} else {
				log.Printf("[nats] disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[nats] connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.Printf("[nats] connected to %s", nc.ConnectedUrl())

	return &Client{
		conn: nc,
		subs: make(map[string]*nats.Subscription),
	}, nil
}

// PublishDeliver publishes a delivery event for the given recipient. Other
// instances holding that user's connection will push it; if nobody is
// subscribed the event is dropped, which is the defined best-effort outcome.
func (c *Client) PublishDeliver(userID string, data []byte) error {
	return c.conn.Publish(SubjectDeliver+"."+userID, data)
}

// SubscribeDeliver subscribes to delivery events for a locally connected
// user. Subscribing again for the same user is a no-op, so a reconnect that
// replaces the connection does not stack handlers; the handler should
// resolve the current connection at event time.
func (c *Client) SubscribeDeliver(userID string, handler func(data []byte)) error {
	c.mu.Lock()
	if _, ok := c.subs[userID]; ok {
		c.mu.Unlock()
		return nil
	}
	c.mu.Unlock()

	subject := SubjectDeliver + "." + userID
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Data)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", subject, err)
	}

	c.mu.Lock()
	if _, ok := c.subs[userID]; ok {
		// Lost the race to another register for the same user.
		c.mu.Unlock()
		_ = sub.Unsubscribe()
		return nil
	}
	c.subs[userID] = sub
	c.mu.Unlock()
	return nil
}

// UnsubscribeDeliver drops the delivery subscription for a user who is no
// longer connected locally. Unknown users are not an error.
func (c *Client) UnsubscribeDeliver(userID string) error {
	c.mu.Lock()
	sub, ok := c.subs[userID]
	if ok {
		delete(c.subs, userID)
	}
	c.mu.Unlock()

	if !ok {
		return nil
	}
	if err := sub.Unsubscribe(); err != nil {
		return fmt.Errorf("nats unsubscribe %s: %w", SubjectDeliver+"."+userID, err)
	}
	return nil
}

// Close drains all active subscriptions and closes the NATS connection.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	for userID, sub := range c.subs {
		if err := sub.Drain(); err != nil {
			log.Printf("[nats] drain %s: %v", userID, err)
		}
	}
	c.subs = make(map[string]*nats.Subscription)

	if err := c.conn.Drain(); err != nil {
		log.Printf("[nats] connection drain: %v", err)
	}

	log.Printf("[nats] client closed")
}
