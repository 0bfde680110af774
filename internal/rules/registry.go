package rules

import (
	"net/http"
	"sync"

	"github.com/wfunc/turngame/internal/monitor"
	"go.uber.org/zap"
)

// Factory builds the client of one game type.
type Factory func(gameType string) Rules

// Registry caches one client per game type for the life of the process.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]Rules
	factory Factory
}

// NewRegistry creates HTTP clients under baseURL sharing httpClient.
func NewRegistry(baseURL string, httpClient *http.Client, log *zap.Logger, metrics *monitor.Metrics) *Registry {
	return NewRegistryWithFactory(func(gameType string) Rules {
		return NewClient(baseURL, gameType, httpClient, log, metrics)
	})
}

// NewRegistryWithFactory uses factory to build missing clients.
func NewRegistryWithFactory(factory Factory) *Registry {
	return &Registry{
		clients: make(map[string]Rules),
		factory: factory,
	}
}

// Get returns the client of gameType, creating it on first use.
func (r *Registry) Get(gameType string) Rules {
	r.mu.RLock()
	c, ok := r.clients[gameType]
	r.mu.RUnlock()
	if ok {
		return c
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[gameType]; ok {
		return c
	}
	c = r.factory(gameType)
	r.clients[gameType] = c
	return c
}

// Len returns the number of cached clients.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.clients)
}
