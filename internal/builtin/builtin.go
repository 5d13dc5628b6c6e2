package builtin

import (
	"github.com/aleozlx/playbook-go/internal/infra"
	"github.com/aleozlx/playbook-go/internal/logger"
)

// Builtins bundles the dependencies the stateful built-ins (shell, fork,
// ctxdump) need beyond their composed step context: an infrastructure
// backend to launch containers through, and a logger.
type Builtins struct {
	Backends *infra.Registry
	Log      *logger.Logger
}

// New constructs a Builtins dispatcher.
func New(backends *infra.Registry, log *logger.Logger) *Builtins {
	return &Builtins{Backends: backends, Log: log}
}
