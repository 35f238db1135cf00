package presence

import "sync"

// Registry maps user names to their current connection id, across all
// rooms. It backs direct-message routing: a name resolves to at most one
// connection, and a later registration for the same name wins.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]string
}

func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]string)}
}

// Register binds a name to a connection id, replacing any prior binding.
func (r *Registry) Register(name, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byName[name] = connID
}

// Resolve returns the connection id bound to a name, if any.
func (r *Registry) Resolve(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	connID, ok := r.byName[name]
	return connID, ok
}

// Unregister removes a name's binding. Unknown names are a no-op.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byName, name)
}

// Len returns the number of registered names.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byName)
}
