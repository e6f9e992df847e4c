// Package registry maps domain names to the providers that serve their
// environment and tasks. Entries are registered explicitly; nothing is
// discovered by import side effects.
package registry

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	// ErrDuplicate is returned when a name is registered twice.
	ErrDuplicate = errors.New("domain already registered")

	// ErrUnknown is returned by Lookup for unregistered names.
	ErrUnknown = errors.New("unknown domain")
)

// Environment is what an evaluation run needs to stand up a domain.
type Environment struct {
	Name        string
	DataDir     string
	Policy      string
	DB          map[string]any
	CurrentTime string
}

// Provider serves one domain.
type Provider interface {
	Environment() (*Environment, error)
	Tasks(split string) ([]any, error)
	TaskSplits() (map[string][]string, error)
}

// Registry is a name to Provider table, safe for concurrent use.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// New returns an empty Registry.
func New() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds p under name.
func (r *Registry) Register(name string, p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.providers[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicate, name)
	}
	r.providers[name] = p
	return nil
}

// Lookup returns the provider registered under name.
func (r *Registry) Lookup(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknown, name)
	}
	return p, nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for n := range r.providers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
