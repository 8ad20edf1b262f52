package storage

import (
	"fmt"
	"sort"

	"github.com/sanctions-web/sanctions-web/internal/config"
)

// FactoryFunc builds a backend from the application configuration
type FactoryFunc func(*config.Config) (Storage, error)

var factories = make(map[string]FactoryFunc)

// Register registers a storage backend factory
func Register(name string, factory FactoryFunc) {
	factories[name] = factory
}

// Backends returns the names of all registered backends, sorted
func Backends() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewStorage creates the backend named by cfg.Storage.DefaultBackend
func NewStorage(cfg *config.Config) (Storage, error) {
	factory, ok := factories[cfg.Storage.DefaultBackend]
	if !ok {
		return nil, fmt.Errorf("unsupported storage backend: %q (registered: %v)", cfg.Storage.DefaultBackend, Backends())
	}

	return factory(cfg)
}
