// Package fedds executes SQL against federated (horizontally partitioned)
// databases. A Database handle opens connections through a pluggable
// backend, retries transient failures under a bounded policy and switches
// every connection into the configured federation context, fanning
// commands out across all federation members when asked to.
//
// Backends register themselves by name; import the ones you need with
// a blank import and build them with NewProvider.
package fedds

import (
	"fmt"
	"sort"
	"sync"
)

type ProviderFactory func(cfg any) (Provider, error)

var (
	mu        sync.RWMutex
	factories = map[string]ProviderFactory{}
)

func Register(name string, factory ProviderFactory) {
	if factory == nil {
		panic("fedds: provider factory is nil")
	}
	mu.Lock()
	defer mu.Unlock()

	if _, exists := factories[name]; exists {
		panic("fedds: provider already registered: " + name)
	}
	factories[name] = factory
}

// Provider opens connections to one database.
// It is configured once and then shared by the application.
type Provider interface {
	Opener
	Close() error
}

func NewProvider(name string, cfg any) (Provider, error) {
	mu.RLock()
	factory, ok := factories[name]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("fedds: unknown provider %q (forgotten import?)", name)
	}
	return factory(cfg)
}

// Providers lists registered provider names in sorted order.
func Providers() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
