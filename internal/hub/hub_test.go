package hub

import (
	"encoding/json"
	"sort"
	"testing"

	"github.com/chatline/dm-app/internal/presence"
	"github.com/chatline/dm-app/internal/protocol"
)

type fakeConn struct {
	pushed [][]byte
}

func (c *fakeConn) Push(data []byte) error {
	c.pushed = append(c.pushed, data)
	return nil
}

// fakeBroadcaster records every broadcast frame.
type fakeBroadcaster struct {
	frames [][]byte
}

func (b *fakeBroadcaster) Broadcast(data []byte) {
	b.frames = append(b.frames, data)
}

type fakeBus struct {
	subscribed   map[string]func([]byte)
	unsubscribed []string
}

func (b *fakeBus) SubscribeDeliver(userID string, handler func(data []byte)) error {
	if b.subscribed == nil {
		b.subscribed = make(map[string]func([]byte))
	}
	b.subscribed[userID] = handler
	return nil
}

func (b *fakeBus) UnsubscribeDeliver(userID string) error {
	b.unsubscribed = append(b.unsubscribed, userID)
	return nil
}

// rosterFrames decodes the users-online broadcasts out of the recorded
// frames, skipping other event types.
func rosterFrames(t *testing.T, frames [][]byte) [][]string {
	t.Helper()
	var rosters [][]string
	for _, frame := range frames {
		var event struct {
			Type  string   `json:"type"`
			Users []string `json:"users"`
		}
		if err := json.Unmarshal(frame, &event); err != nil {
			t.Fatalf("unmarshal broadcast: %v", err)
		}
		if event.Type != protocol.TypeUsersOnline {
			continue
		}
		sort.Strings(event.Users)
		rosters = append(rosters, event.Users)
	}
	return rosters
}

func sameRoster(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestConnectBroadcastsRoster(t *testing.T) {
	dir := presence.NewDirectory()
	bc := &fakeBroadcaster{}
	h := New(dir, bc, nil)

	c1 := &fakeConn{}
	c2 := &fakeConn{}

	h.HandleConnect(c1, "conn-1", "u1")
	h.HandleConnect(c2, "conn-2", "u2")
	h.HandleDisconnect(c1, "u1")

	rosters := rosterFrames(t, bc.frames)
	want := [][]string{
		{"u1"},
		{"u1", "u2"},
		{"u2"},
	}
	if len(rosters) != len(want) {
		t.Fatalf("got %d roster broadcasts, want %d: %v", len(rosters), len(want), rosters)
	}
	for i := range want {
		if !sameRoster(rosters[i], want[i]) {
			t.Errorf("broadcast %d roster = %v, want %v", i, rosters[i], want[i])
		}
	}
}

func TestConnectSendsAck(t *testing.T) {
	dir := presence.NewDirectory()
	h := New(dir, &fakeBroadcaster{}, nil)

	c := &fakeConn{}
	h.HandleConnect(c, "conn-1", "u1")

	if len(c.pushed) == 0 {
		t.Fatal("connection received no frames")
	}
	var ack struct {
		Type         string `json:"type"`
		ConnectionID string `json:"connection_id"`
		UserID       string `json:"user_id"`
		Registered   bool   `json:"registered"`
	}
	if err := json.Unmarshal(c.pushed[0], &ack); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	if ack.Type != protocol.TypeConnected {
		t.Errorf("first frame type = %q, want %q", ack.Type, protocol.TypeConnected)
	}
	if ack.ConnectionID != "conn-1" || ack.UserID != "u1" || !ack.Registered {
		t.Errorf("unexpected ack: %+v", ack)
	}
}

func TestConnectWithoutIdentityStaysUnregistered(t *testing.T) {
	dir := presence.NewDirectory()
	bc := &fakeBroadcaster{}
	h := New(dir, bc, nil)

	c := &fakeConn{}
	h.HandleConnect(c, "conn-1", "")

	if dir.Count() != 0 {
		t.Errorf("directory has %d entries, want 0", dir.Count())
	}
	if rosters := rosterFrames(t, bc.frames); len(rosters) != 0 {
		t.Errorf("got %d roster broadcasts for an unregistered connect, want 0", len(rosters))
	}

	// The ack still arrives, marked unregistered.
	if len(c.pushed) != 1 {
		t.Fatalf("connection received %d frames, want 1", len(c.pushed))
	}
	var ack struct {
		Registered bool `json:"registered"`
	}
	if err := json.Unmarshal(c.pushed[0], &ack); err != nil {
		t.Fatalf("unmarshal ack: %v", err)
	}
	if ack.Registered {
		t.Error("ack claims the connection is registered")
	}

	// Its disconnect changes nothing either.
	h.HandleDisconnect(c, "")
	if rosters := rosterFrames(t, bc.frames); len(rosters) != 0 {
		t.Errorf("unregistered disconnect broadcast a roster change")
	}
}

func TestDuplicateConnectionLastWins(t *testing.T) {
	dir := presence.NewDirectory()
	bc := &fakeBroadcaster{}
	h := New(dir, bc, nil)

	c1 := &fakeConn{}
	c2 := &fakeConn{}

	h.HandleConnect(c1, "conn-1", "u1")
	h.HandleConnect(c2, "conn-2", "u1")

	// Dropping the superseded connection must not remove u1 from the
	// roster, and produces no broadcast.
	before := len(rosterFrames(t, bc.frames))
	h.HandleDisconnect(c1, "u1")
	after := rosterFrames(t, bc.frames)
	if len(after) != before {
		t.Errorf("stale disconnect broadcast a roster change")
	}
	if dir.Lookup("u1") == nil {
		t.Fatal("u1 dropped out of the roster while conn-2 is still current")
	}

	// Dropping the current connection does remove u1.
	h.HandleDisconnect(c2, "u1")
	if dir.Lookup("u1") != nil {
		t.Fatal("u1 still in the roster after its current connection dropped")
	}
	final := rosterFrames(t, bc.frames)
	if len(final) != before+1 {
		t.Fatalf("got %d roster broadcasts, want %d", len(final), before+1)
	}
	if !sameRoster(final[len(final)-1], []string{}) {
		t.Errorf("final roster = %v, want empty", final[len(final)-1])
	}
}

func TestDisconnectIdempotent(t *testing.T) {
	dir := presence.NewDirectory()
	bc := &fakeBroadcaster{}
	h := New(dir, bc, nil)

	c := &fakeConn{}
	h.HandleConnect(c, "conn-1", "u1")

	h.HandleDisconnect(c, "u1")
	count := len(rosterFrames(t, bc.frames))
	h.HandleDisconnect(c, "u1")

	if got := len(rosterFrames(t, bc.frames)); got != count {
		t.Errorf("repeated disconnect double-broadcast the roster: %d -> %d", count, got)
	}
}

func TestDeliveryBusSubscriptionLifecycle(t *testing.T) {
	dir := presence.NewDirectory()
	bus := &fakeBus{}
	h := New(dir, &fakeBroadcaster{}, bus)

	c := &fakeConn{}
	h.HandleConnect(c, "conn-1", "u1")

	handler, ok := bus.subscribed["u1"]
	if !ok {
		t.Fatal("no delivery subscription created for u1")
	}

	// A remote delivery event lands on the current connection.
	handler([]byte(`{"type":"new-message"}`))
	found := false
	for _, frame := range c.pushed {
		if string(frame) == `{"type":"new-message"}` {
			found = true
		}
	}
	if !found {
		t.Error("remote delivery event never reached the connection")
	}

	h.HandleDisconnect(c, "u1")
	if len(bus.unsubscribed) != 1 || bus.unsubscribed[0] != "u1" {
		t.Errorf("unsubscribed = %v, want [u1]", bus.unsubscribed)
	}
}
