package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Adapter abre conexiones de un driver ("postgres", "memory").
type Adapter interface {
	Name() string
	Connect(ctx context.Context, cfg Config) (Store, error)
}

// Config de conexión.
type Config struct {
	Driver string
	DSN    string

	// Pool (solo DBs)
	MaxConns int32
	MinConns int32
}

var (
	registryMu sync.RWMutex
	adapters   = make(map[string]Adapter)
)

// RegisterAdapter se llama en init() de cada adapter.
func RegisterAdapter(a Adapter) {
	registryMu.Lock()
	defer registryMu.Unlock()

	name := a.Name()
	if _, exists := adapters[name]; exists {
		panic(fmt.Sprintf("store: adapter %q already registered", name))
	}
	adapters[name] = a
}

// Drivers devuelve los drivers registrados, ordenados.
func Drivers() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()

	names := make([]string, 0, len(adapters))
	for name := range adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Open conecta usando el driver de cfg.
func Open(ctx context.Context, cfg Config) (Store, error) {
	registryMu.RLock()
	a, ok := adapters[cfg.Driver]
	registryMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("store: driver %q not registered (have %v)", cfg.Driver, Drivers())
	}
	return a.Connect(ctx, cfg)
}
