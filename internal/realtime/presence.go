package realtime

import "sync"

// Registry tracks which users currently hold an active connection.
// State is volatile: a process restart logically disconnects everyone.
// Connections register from their own goroutines, so access is guarded
// by a lock rather than relying on a single event loop.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]Client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[string]Client)}
}

// Register stores the single active handle for a user. A prior handle
// is closed and silently overwritten: last connection wins, there is
// no multi-device fan-out.
func (r *Registry) Register(userID string, client Client) {
	r.mu.Lock()
	prior := r.clients[userID]
	r.clients[userID] = client
	r.mu.Unlock()

	if prior != nil && prior != client {
		prior.Close()
	}
}

// Unregister removes the mapping for the user, but only if the handle
// being removed is still the registered one. A stale handle from a
// replaced connection must not evict its successor. Unknown users are
// a no-op.
func (r *Registry) Unregister(userID string, client Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if current, ok := r.clients[userID]; ok && current == client {
		delete(r.clients, userID)
	}
}

// Lookup returns the user's active handle, if any.
func (r *Registry) Lookup(userID string) (Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	client, ok := r.clients[userID]
	return client, ok
}

// IsOnline reports whether the user has an active connection.
func (r *Registry) IsOnline(userID string) bool {
	_, ok := r.Lookup(userID)
	return ok
}

// Broadcast sends an event to every registered connection.
func (r *Registry) Broadcast(env Envelope) {
	r.mu.RLock()
	targets := make([]Client, 0, len(r.clients))
	for _, client := range r.clients {
		targets = append(targets, client)
	}
	r.mu.RUnlock()

	for _, client := range targets {
		client.Send(env)
	}
}

// Online returns the ids of all connected users.
func (r *Registry) Online() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.clients))
	for id := range r.clients {
		ids = append(ids, id)
	}
	return ids
}
