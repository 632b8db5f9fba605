package channels

import (
	"fmt"
	"sync"

	"github.com/golemcore/agentd/pkg/models"
)

// Registry maps channel types to their ports.
type Registry struct {
	mu    sync.RWMutex
	ports map[models.ChannelType]Port
}

// NewRegistry creates an empty channel registry.
func NewRegistry() *Registry {
	return &Registry{ports: make(map[models.ChannelType]Port)}
}

// Register adds a port for its channel type.
func (r *Registry) Register(p Port) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ct := p.ChannelType()
	if _, exists := r.ports[ct]; exists {
		return fmt.Errorf("channel %s already registered", ct)
	}
	r.ports[ct] = p
	return nil
}

// Get returns the port for a channel type.
func (r *Registry) Get(ct models.ChannelType) (Port, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.ports[ct]
	return p, ok
}
