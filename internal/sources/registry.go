package sources

import (
	"sync"

	"github.com/helixir/federated-search-service/internal/domain"
)

// Registry manages provider connectors. It provides thread-safe registration
// and retrieval; concurrent fan-out lives in AggregatorManager and the
// fallback executor.
type Registry struct {
	mu         sync.RWMutex
	connectors map[domain.Source]Connector
}

// NewRegistry creates a new connector registry with an empty connector map.
func NewRegistry() *Registry {
	return &Registry{
		connectors: make(map[domain.Source]Connector),
	}
}

// Register adds a connector to the registry.
// If a connector for the same source already exists, it is replaced.
// This method is thread-safe.
func (r *Registry) Register(conn Connector) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.connectors[conn.Source()] = conn
}

// Get returns a connector by source, or nil if not found.
// This method is thread-safe.
func (r *Registry) Get(source domain.Source) Connector {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.connectors[source]
}

// All returns all registered connectors as a snapshot slice.
// This method is thread-safe.
func (r *Registry) All() []Connector {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connectors := make([]Connector, 0, len(r.connectors))
	for _, conn := range r.connectors {
		connectors = append(connectors, conn)
	}
	return connectors
}

// Enabled returns only connectors whose Enabled() method reports true.
// The returned slice is a snapshot. This method is thread-safe.
func (r *Registry) Enabled() []Connector {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connectors := make([]Connector, 0, len(r.connectors))
	for _, conn := range r.connectors {
		if conn.Enabled() {
			connectors = append(connectors, conn)
		}
	}
	return connectors
}

// Subset returns the registered connectors for the requested sources,
// skipping sources that are not registered. This method is thread-safe.
func (r *Registry) Subset(srcs []domain.Source) []Connector {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connectors := make([]Connector, 0, len(srcs))
	for _, s := range srcs {
		if conn, ok := r.connectors[s]; ok {
			connectors = append(connectors, conn)
		}
	}
	return connectors
}
