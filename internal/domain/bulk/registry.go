package bulk

import (
	"fmt"
	"sync"
)

// AdapterRegistry is a mutex-guarded map from tool name to Adapter,
// grounded on the teacher's infrastructure/tool InMemoryRegistry: a
// process-wide registration point populated once at startup, read
// concurrently thereafter.
type AdapterRegistry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
}

func NewAdapterRegistry() *AdapterRegistry {
	return &AdapterRegistry{adapters: make(map[string]Adapter)}
}

func (r *AdapterRegistry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.ToolName()] = a
}

func (r *AdapterRegistry) Get(toolName string) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[toolName]
	if !ok {
		return nil, fmt.Errorf("bulk: no adapter registered for tool %q", toolName)
	}
	return a, nil
}
