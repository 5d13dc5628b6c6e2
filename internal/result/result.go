// Package result defines TransientContext, the three-way outcome every step
// handler (built-in or guest-dispatched) produces for the main loop to fold.
package result

import (
	"github.com/aleozlx/playbook-go/internal/pbcontext"
	pberrors "github.com/aleozlx/playbook-go/pkg/errors"
)

// Kind discriminates which of the three TransientContext variants a
// TransientContext value holds.
type Kind int

const (
	// Stateful results are overlaid onto the running ctx_states and the
	// main loop continues to the next step.
	Stateful Kind = iota
	// Stateless results are discarded after the step completes; the main
	// loop continues without folding anything new into ctx_states.
	Stateless
	// Diverging results terminate the playbook with the accompanying exit
	// code, unless the "_exit" marker is set, in which case the process
	// exits immediately with code 0 whatever the accompanying code.
	Diverging
)

// TransientContext is the outcome of running exactly one step.
type TransientContext struct {
	kind     Kind
	ctx      pbcontext.Context
	exitCode pberrors.ExitCode
}

// NewStateful wraps a context that should be folded into ctx_states.
func NewStateful(ctx pbcontext.Context) TransientContext {
	return TransientContext{kind: Stateful, ctx: ctx}
}

// NewStateless wraps a context the main loop should not retain.
func NewStateless(ctx pbcontext.Context) TransientContext {
	return TransientContext{kind: Stateless, ctx: ctx}
}

// NewDiverging terminates the playbook with the given exit code.
func NewDiverging(code pberrors.ExitCode) TransientContext {
	return TransientContext{kind: Diverging, exitCode: code}
}

// AssumeStateless converts a (Context, error) pair, as returned by a
// built-in that never folds new state, into a TransientContext: success
// becomes Stateless, failure becomes Diverging(ErrTask).
func AssumeStateless(ctx pbcontext.Context, err error) TransientContext {
	if err != nil {
		return NewDiverging(pberrors.ErrTask)
	}
	return NewStateless(ctx)
}

// Kind reports which variant this result holds.
func (t TransientContext) Kind() Kind { return t.kind }

// Context returns the carried context and whether this result is Stateful
// or Stateless (Diverging carries no context).
func (t TransientContext) Context() (pbcontext.Context, bool) {
	if t.kind == Diverging {
		return pbcontext.Context{}, false
	}
	return t.ctx, true
}

// ExitCode returns the carried exit code and whether this result is
// Diverging.
func (t TransientContext) ExitCode() (pberrors.ExitCode, bool) {
	if t.kind != Diverging {
		return pberrors.ExitCode{}, false
	}
	return t.exitCode, true
}
