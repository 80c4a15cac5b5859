package adapters

import (
	"fmt"
	"sort"
	"sync"
)

// BackendConstructor returns a new dialect/writer pair.
type BackendConstructor func() Backend

// Factory keeps the registered backends by name.
type Factory struct {
	registry map[string]BackendConstructor
	mu       sync.RWMutex
}

// NewFactory creates an empty factory.
func NewFactory() *Factory {
	return &Factory{
		registry: make(map[string]BackendConstructor),
	}
}

// Register installs a constructor for name, replacing any previous one.
//
//	factory.Register("postgres", func() adapters.Backend {
//	    return postgres.NewBackend()
//	})
func (f *Factory) Register(name string, constructor BackendConstructor) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.registry[name] = constructor
}

// Unregister removes the constructor for name.
func (f *Factory) Unregister(name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.registry, name)
}

// IsRegistered reports whether name has a constructor.
func (f *Factory) IsRegistered(name string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, ok := f.registry[name]
	return ok
}

// GetRegisteredTypes returns the registered names in sorted order.
func (f *Factory) GetRegisteredTypes() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()

	names := make([]string, 0, len(f.registry))
	for name := range f.registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Create builds the backend registered under name.
func (f *Factory) Create(name string) (Backend, error) {
	f.mu.RLock()
	constructor, ok := f.registry[name]
	f.mu.RUnlock()

	if !ok {
		return Backend{}, fmt.Errorf("unknown database type: %s (available types: %v)",
			name, f.GetRegisteredTypes())
	}

	backend := constructor()
	if err := backend.Validate(); err != nil {
		return Backend{}, fmt.Errorf("invalid backend %s: %w", name, err)
	}
	return backend, nil
}

// ========== Global Factory ==========

var globalFactory = NewFactory()

// Register installs a backend in the global factory.
// Backend packages call it from init():
//
//	func init() {
//	    adapters.Register(AdapterType, NewBackend)
//	}
func Register(name string, constructor BackendConstructor) {
	globalFactory.Register(name, constructor)
}

// Unregister removes a backend from the global factory.
func Unregister(name string) {
	globalFactory.Unregister(name)
}

// IsRegistered checks the global factory.
func IsRegistered(name string) bool {
	return globalFactory.IsRegistered(name)
}

// GetRegisteredTypes lists the global factory's backends.
func GetRegisteredTypes() []string {
	return globalFactory.GetRegisteredTypes()
}

// New builds a backend from the global factory.
//
//	import _ "github.com/ruslano69/bulkmerge/pkg/adapters/postgres"
//
//	backend, err := adapters.New("postgres")
func New(name string) (Backend, error) {
	return globalFactory.Create(name)
}

// MustNew is New that panics on error.
// Use it only in init() or main().
func MustNew(name string) Backend {
	backend, err := New(name)
	if err != nil {
		panic(fmt.Sprintf("failed to create backend: %v", err))
	}
	return backend
}
