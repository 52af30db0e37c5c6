package service

import (
	"sync"

	"github.com/neighbournet/neighbournet"
)

// Channel is a live-connection handle through which an actor can currently
// receive events. Send is fire-and-forget: implementations must not block
// indefinitely and may drop the event.
type Channel interface {
	Send(event neighbournet.Event) error
}

// PresenceDirectory maps an actor identity to at most one live channel.
// It is authoritative for reachability only, never for business state.
// All methods are safe under concurrent invocation from independent
// connection lifecycles.
type PresenceDirectory struct {
	mu      sync.RWMutex
	entries map[string]Channel
}

func NewPresenceDirectory() *PresenceDirectory {
	return &PresenceDirectory{entries: make(map[string]Channel)}
}

// Register associates actorID with ch, replacing any prior association.
// On reconnect only the latest channel is reachable.
func (d *PresenceDirectory) Register(actorID string, ch Channel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.entries[actorID] = ch
}

// Unregister removes the association only if the stored channel is ch.
// This guards against a stale disconnect racing a fresh reconnect: the
// old connection's teardown must not evict the new channel.
func (d *PresenceDirectory) Unregister(actorID string, ch Channel) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.entries[actorID] == ch {
		delete(d.entries, actorID)
	}
}

// Resolve returns the live channel for actorID, or nil when the actor is
// not reachable. Pure in-memory lookup, never blocks.
func (d *PresenceDirectory) Resolve(actorID string) Channel {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.entries[actorID]
}

// Online reports the number of currently reachable actors.
func (d *PresenceDirectory) Online() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.entries)
}
