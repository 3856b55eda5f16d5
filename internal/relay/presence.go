package relay

import "sync"

// PresenceRegistry maps an identity to its set of live connections. It is
// the only state shared by every connection, so all access goes through the
// lock. The registry is a pure state container: broadcasting presence
// changes is the caller's job.
type PresenceRegistry struct {
	mu      sync.RWMutex
	entries map[string]map[*Client]struct{}
	owners  map[*Client]string
	order   []string
}

func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{
		entries: make(map[string]map[*Client]struct{}),
		owners:  make(map[*Client]string),
	}
}

// Register adds c to identity's connection set, creating the entry if this
// is the identity's first live connection. Whichever connection claims an
// identity first is believed; no uniqueness check happens here. Returns
// true if the identity was previously absent.
func (pr *PresenceRegistry) Register(identity string, c *Client) bool {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	set, ok := pr.entries[identity]
	if !ok {
		set = make(map[*Client]struct{})
		pr.entries[identity] = set
		pr.order = append(pr.order, identity)
	}
	set[c] = struct{}{}
	pr.owners[c] = identity

	return !ok
}

// Unregister removes c from whichever identity holds it. An identity whose
// set empties is deleted outright, never left as an empty entry. Returns
// the identity c was bound to and whether it went fully offline.
func (pr *PresenceRegistry) Unregister(c *Client) (string, bool) {
	pr.mu.Lock()
	defer pr.mu.Unlock()

	identity, ok := pr.owners[c]
	if !ok {
		return "", false
	}
	delete(pr.owners, c)

	set := pr.entries[identity]
	delete(set, c)
	if len(set) > 0 {
		return identity, false
	}

	delete(pr.entries, identity)
	for i, id := range pr.order {
		if id == identity {
			pr.order = append(pr.order[:i], pr.order[i+1:]...)
			break
		}
	}

	return identity, true
}

// Resolve returns the live connections bound to identity, nil if it is
// unknown or fully disconnected.
func (pr *PresenceRegistry) Resolve(identity string) []*Client {
	pr.mu.RLock()
	defer pr.mu.RUnlock()

	set, ok := pr.entries[identity]
	if !ok {
		return nil
	}

	conns := make([]*Client, 0, len(set))
	for c := range set {
		conns = append(conns, c)
	}
	return conns
}

// Snapshot returns the registered identities in insertion order.
func (pr *PresenceRegistry) Snapshot() []string {
	pr.mu.RLock()
	defer pr.mu.RUnlock()

	identities := make([]string, len(pr.order))
	copy(identities, pr.order)
	return identities
}
