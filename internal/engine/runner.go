package engine

import (
	"context"
	"fmt"

	"github.com/aleozlx/playbook-go/internal/action"
	"github.com/aleozlx/playbook-go/internal/builtin"
	"github.com/aleozlx/playbook-go/internal/closure"
	"github.com/aleozlx/playbook-go/internal/guest"
	"github.com/aleozlx/playbook-go/internal/infra"
	"github.com/aleozlx/playbook-go/internal/logger"
	"github.com/aleozlx/playbook-go/internal/pbcontext"
	"github.com/aleozlx/playbook-go/internal/playbook"
	"github.com/aleozlx/playbook-go/internal/result"
	pberrors "github.com/aleozlx/playbook-go/pkg/errors"
)

// Runner drives a loaded playbook document through the step runner and
// main loop.
type Runner struct {
	Doc          *playbook.Document
	PlaybookPath string
	Verbosity    string

	Builtins *builtin.Builtins
	Backends *infra.Registry
	Guest    guest.Adapter
	Log      *logger.Logger
}

// New constructs a Runner for a loaded playbook.
func New(doc *playbook.Document, playbookPath, verbosity string, backends *infra.Registry, guestAdapter guest.Adapter, log *logger.Logger) *Runner {
	return &Runner{
		Doc:          doc,
		PlaybookPath: playbookPath,
		Verbosity:    verbosity,
		Builtins:     builtin.New(backends, log),
		Backends:     backends,
		Guest:        guestAdapter,
		Log:          log,
	}
}

// runStep computes step i's effective context and dispatches it, per the
// step runner algorithm: whitelist resolution first, built-in fallback,
// ErrYML if neither resolves.
func (r *Runner) runStep(i int, cl closure.Closure, resuming bool) result.TransientContext {
	if i < 0 || i >= len(r.Doc.Steps) {
		return result.NewDiverging(pberrors.ErrApp)
	}
	stepRaw := r.Doc.Steps[i]

	args := pbcontext.New().
		Set("playbook", pbcontext.String(r.PlaybookPath)).
		Set("i_step", pbcontext.Int(int64(i)))
	if resuming {
		args = args.Set("arg-resume", pbcontext.Bool(true))
	}

	ctxStep := compose(r.Doc.Global, stepRaw, args, cl.CtxStates, resuming)

	actionName, err := ctxStep.UnpackString("action")
	if err != nil {
		if r.Log != nil {
			r.Log.Error(err, "step has no action")
		}
		return result.NewDiverging(pberrors.ErrYML)
	}

	if whitelist, ok := ctxStep.ListContexts("whitelist"); ok {
		res := action.Resolve(actionName, whitelist, r.PlaybookPath, r.Log)
		if res.Origin == action.User {
			return r.dispatchUser(ctxStep, res, cl)
		}
	}

	if action.IsBuiltin(actionName) {
		return r.dispatchBuiltin(actionName, ctxStep, cl)
	}

	if r.Log != nil {
		r.Log.Error(nil, fmt.Sprintf("action not recognized: %s", actionName))
	}
	return result.NewDiverging(pberrors.ErrYML)
}

func (r *Runner) dispatchUser(ctxStep pbcontext.Context, res action.Resolution, cl closure.Closure) result.TransientContext {
	ctxSys := ctxStep.Hide("whitelist").Hide("i_step")

	if cl.Container == closure.Container {
		err := r.Guest.Invoke(context.Background(), res.Source, ctxSys)
		return result.AssumeStateless(pbcontext.New(), err)
	}

	if docker, ok := ctxSys.Subcontext("docker"); ok {
		return r.enterContainer(ctxSys, docker, cl)
	}

	err := r.Guest.Invoke(context.Background(), res.Source, ctxSys)
	return result.AssumeStateless(pbcontext.New(), err)
}

func (r *Runner) dispatchBuiltin(actionName string, ctxStep pbcontext.Context, cl closure.Closure) result.TransientContext {
	ctxSys := ctxStep.Hide("whitelist").Hide("i_step")
	if r.Log != nil {
		r.Log.Info("built-in: " + actionName)
	}

	switch actionName {
	case "sys_exit":
		return builtin.SysExit(ctxSys)
	case "sys_shell":
		return r.Builtins.SysShell(ctxSys)
	case "sys_vars":
		return r.Builtins.SysVars(ctxSys, playbookDirOf(r.PlaybookPath))
	case "sys_ctxdump":
		dir := playbookDirOf(r.PlaybookPath)
		if d, err := ctxSys.UnpackString("ctxdump"); err == nil {
			dir = d
		}
		return r.Builtins.SysCtxdump(ctxSys, dir)
	case "sys_fork":
		return r.Builtins.SysFork(ctxSys, cl, r.PlaybookPath, r.Verbosity)
	default:
		return result.NewDiverging(pberrors.ErrYML)
	}
}

// enterContainer implements the container entry protocol of 4.2.2: clone
// the closure with container=1, carry any docker.vars playbook relocation
// into the clone, and launch the selected backend synchronously.
func (r *Runner) enterContainer(ctxStep, docker pbcontext.Context, cl closure.Closure) result.TransientContext {
	childClosure := cl.Resumed()

	if vars, ok := docker.Subcontext("vars"); ok {
		if relocated, err := vars.UnpackString("playbook"); err == nil {
			childClosure = childClosure.WithCtxStates(childClosure.CtxStates.Set("playbook", pbcontext.String(relocated)))
		}
	}

	encoded, err := childClosure.Encode()
	if err != nil {
		if r.Log != nil {
			r.Log.Error(err, "failed to encode resume closure")
		}
		return result.NewDiverging(pberrors.ErrApp)
	}

	argv := []string{"--arg-resume", encoded, r.PlaybookPath}
	if r.Verbosity != "" {
		argv = append(argv, r.Verbosity)
	}

	backendName, _ := ctxStep.UnpackString("as-switch")
	backend, ok := r.Backends.Resolve(backendName)
	if !ok {
		if r.Log != nil {
			r.Log.Error(nil, fmt.Sprintf("unknown infrastructure backend: %s", backendName))
		}
		return result.NewDiverging(pberrors.ErrApp)
	}

	if image, err := docker.UnpackString("image"); err == nil && r.Log != nil {
		r.Log.Info("entering container: " + image)
	}

	if _, taskErr := backend.Launch(context.Background(), docker, argv); taskErr != nil {
		if r.Log != nil {
			r.Log.Error(taskErr, "container launch failed")
		}
		return result.NewDiverging(pberrors.ErrTask)
	}
	return result.NewStateless(pbcontext.New())
}
