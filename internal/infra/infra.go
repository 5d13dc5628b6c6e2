// Package infra provides the infrastructure-backend abstraction a
// containerized step dispatches through: a single Launch capability,
// implemented by a local container-runtime backend and, optionally, a
// cluster batch backend.
package infra

import (
	"context"

	"github.com/aleozlx/playbook-go/internal/pbcontext"
	pberrors "github.com/aleozlx/playbook-go/pkg/errors"
)

// Backend launches a container_spec running argv and blocks until it
// completes, returning a human-readable description of what was launched.
type Backend interface {
	Launch(ctx context.Context, spec pbcontext.Context, argv []string) (string, *pberrors.TaskError)
}

// Registry resolves the `as-switch` key to a concrete Backend, defaulting to
// "docker".
type Registry struct {
	backends map[string]Backend
}

// NewRegistry constructs a Registry seeded with the given named backends.
func NewRegistry(backends map[string]Backend) *Registry {
	return &Registry{backends: backends}
}

// Resolve returns the backend registered under name, or the "docker" backend
// when name is empty.
func (r *Registry) Resolve(name string) (Backend, bool) {
	if name == "" {
		name = "docker"
	}
	b, ok := r.backends[name]
	return b, ok
}
