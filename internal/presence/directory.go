// Package presence tracks which authenticated users currently hold a live
// real-time connection. The Directory is the single source of truth for the
// online roster: at most one connection per user, last connect wins.
package presence

import (
	"sort"
	"sync"
)

// Conn is the handle the directory stores for an online user. Pushes over the
// handle are best-effort; the directory itself never writes to it. Handles
// are compared by interface equality, so every live connection must be a
// distinct pointer value.
type Conn interface {
	Push(data []byte) error
}

// Directory is a goroutine-safe mapping of user ID to active connection
// handle. All mutations fire the roster-changed listener (if set) with a
// fresh snapshot, outside the lock, so listeners may perform I/O.
type Directory struct {
	mu       sync.RWMutex
	byUser   map[string]Conn
	onChange func(roster []string)
}

// NewDirectory creates an empty Directory.
func NewDirectory() *Directory {
	return &Directory{
		byUser: make(map[string]Conn),
	}
}

// SetOnChange registers the roster-changed listener. It is invoked after
// every Register and after every Unregister that actually removed an entry,
// with the roster as it stood at the end of the mutation. Must be called
// before the directory is shared between goroutines.
func (d *Directory) SetOnChange(fn func(roster []string)) {
	d.onChange = fn
}

// Register maps userID to conn, unconditionally replacing any existing
// mapping. Replacement is the defined behavior for reconnects and duplicate
// tabs: the superseded handle simply stops being reachable through the
// directory, no attempt is made to close it.
func (d *Directory) Register(userID string, conn Conn) {
	d.mu.Lock()
	d.byUser[userID] = conn
	roster := d.rosterLocked()
	d.mu.Unlock()

	d.notify(roster)
}

// Unregister removes the mapping for userID only if conn is still the
// current handle. A mismatch means the connection was already superseded by
// a newer one, and the stale disconnect must not clobber it; that case is a
// silent no-op. Returns whether an entry was actually removed.
func (d *Directory) Unregister(userID string, conn Conn) bool {
	d.mu.Lock()
	current, ok := d.byUser[userID]
	removed := ok && current == conn
	if removed {
		delete(d.byUser, userID)
	}
	var roster []string
	if removed {
		roster = d.rosterLocked()
	}
	d.mu.Unlock()

	if removed {
		d.notify(roster)
	}
	return removed
}

// Lookup returns the current connection handle for userID, or nil if the
// user is not online.
func (d *Directory) Lookup(userID string) Conn {
	d.mu.RLock()
	conn := d.byUser[userID]
	d.mu.RUnlock()
	return conn
}

// Snapshot returns the current online roster as a sorted slice of user IDs.
// The slice is a copy and safe to retain.
func (d *Directory) Snapshot() []string {
	d.mu.RLock()
	roster := d.rosterLocked()
	d.mu.RUnlock()
	return roster
}

// Count returns the number of users currently online.
func (d *Directory) Count() int {
	d.mu.RLock()
	n := len(d.byUser)
	d.mu.RUnlock()
	return n
}

// rosterLocked builds a sorted roster slice. Caller must hold at least the
// read lock. Sorting is not part of the contract (the roster is a set) but
// keeps logs and broadcast payloads stable.
func (d *Directory) rosterLocked() []string {
	roster := make([]string, 0, len(d.byUser))
	for id := range d.byUser {
		roster = append(roster, id)
	}
	sort.Strings(roster)
	return roster
}

func (d *Directory) notify(roster []string) {
	if d.onChange != nil {
		d.onChange(roster)
	}
}
