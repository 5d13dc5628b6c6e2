package engine

import (
	"path/filepath"
	"syscall"

	"github.com/aleozlx/playbook-go/internal/closure"
	"github.com/aleozlx/playbook-go/internal/result"
	pberrors "github.com/aleozlx/playbook-go/pkg/errors"
)

// exitFunc performs the post-fork unclean process exit; it is a variable so
// tests can substitute a non-terminating fake instead of killing the test
// binary via syscall.Exit.
var exitFunc = syscall.Exit

func playbookDirOf(playbookPath string) string {
	dir := filepath.Dir(playbookPath)
	if dir == "" {
		return "."
	}
	return dir
}

// Run drives the main loop from the given closure. When cl.Container is
// closure.Container (a resumed container-side process), it runs exactly the
// one designated step and returns; otherwise (the host, or a fork child,
// whose closure is host-side and starts at the step after the fork) it
// iterates the step list sequentially, folding Stateful results into
// ctx_states and stopping at the first Diverging result.
//
// A fork child's ctx_states carries the "_exit" marker; observing it after
// a step completes triggers an immediate unclean process exit (syscall.Exit)
// rather than a normal return, so the child never performs a second wait
// that would confuse its parent's reaping loop.
func (r *Runner) Run(cl closure.Closure) pberrors.ExitCode {
	if cl.Container == closure.Container {
		tc := r.runStep(cl.StepPtr, cl, true)
		return r.settle(&cl, tc)
	}

	for cl.StepPtr < len(r.Doc.Steps) {
		tc := r.runStep(cl.StepPtr, cl, false)
		code := r.settle(&cl, tc)
		if tc.Kind() == result.Diverging {
			return code
		}
		cl.StepPtr++
	}
	return pberrors.Success
}

// settle folds a step's result into the closure's ctx_states (for Stateful
// results) and enforces the post-fork "_exit" discipline. It returns the
// exit code implied by a Diverging result, or Success otherwise.
func (r *Runner) settle(cl *closure.Closure, tc result.TransientContext) pberrors.ExitCode {
	switch tc.Kind() {
	case result.Stateful:
		ctx, _ := tc.Context()
		cl.CtxStates = cl.CtxStates.Overlay(ctx)
	case result.Stateless:
		// nothing to fold
	case result.Diverging:
		code, _ := tc.ExitCode()
		if exitFlag, err := cl.CtxStates.UnpackBool("_exit"); err == nil && exitFlag {
			exitFunc(0)
		}
		return code
	}

	if exitFlag, err := cl.CtxStates.UnpackBool("_exit"); err == nil && exitFlag {
		exitFunc(0)
	}
	return pberrors.Success
}
