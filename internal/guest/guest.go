// Package guest bridges a step's composed context to a user action
// implemented in an external language. The engine only defines the
// interface and a process-based implementation; an embedded guest runtime
// is explicitly out of scope.
package guest

import (
	"context"

	"github.com/aleozlx/playbook-go/internal/pbcontext"
)

// Adapter invokes a resolved user action, passing it the step's composed
// context, and reports the outcome.
type Adapter interface {
	// Invoke runs the action named by ctxStep's "action" key, resolved by
	// src (carrying the absolute-ish "src" path and optional "sys_path"
	// prepends). It returns a non-nil error on any raised exception, failed
	// import, or unsupported source extension. The process adapter returns
	// an *errors.ExecutionError for these; it attaches no TaskError kind.
	Invoke(ctx context.Context, src pbcontext.Context, ctxStep pbcontext.Context) error
}
