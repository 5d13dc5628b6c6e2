package builtin

import (
	"os"
	"os/exec"
	"sync"

	"github.com/google/uuid"

	"github.com/aleozlx/playbook-go/internal/closure"
	"github.com/aleozlx/playbook-go/internal/pbcontext"
	"github.com/aleozlx/playbook-go/internal/result"
	pberrors "github.com/aleozlx/playbook-go/pkg/errors"
)

var forkNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("playbook-go/fork"))

type forkOutcome struct {
	spawnFailed bool
	failed      bool
}

// SysFork expands the step's grid into a cartesian product of child
// contexts and runs one child process per combination, each re-entering the
// engine at the step following the fork. Concurrency is bounded by the
// resource pool's size when `resource` is present; otherwise every child
// runs at once, mirroring the unbounded "one child worker per combination"
// spawn semantics.
func (b *Builtins) SysFork(ctx pbcontext.Context, cl closure.Closure, playbookPath string, verbosity string) result.TransientContext {
	gridEntries, ok := ctx.ListContexts("grid")
	if !ok {
		if b.Log != nil {
			b.Log.Error(nil, "sys_fork requires a `grid` key of single-key contexts")
		}
		return result.NewDiverging(pberrors.ErrApp)
	}
	axes, err := parseGrid(gridEntries)
	if err != nil {
		if b.Log != nil {
			b.Log.Error(err, "sys_fork: malformed grid")
		}
		return result.NewDiverging(pberrors.ErrApp)
	}
	combos := cartesian(axes)

	poolSize := len(combos)
	if resource, ok := ctx.Subcontext("resource"); ok {
		for _, k := range resource.Keys() {
			v, _ := resource.Get(k)
			if ids, ok := v.AsArray(); ok && len(ids) > 0 {
				poolSize = len(ids)
			}
			break
		}
	}
	if poolSize < 1 {
		poolSize = 1
	}

	selfExe, err := os.Executable()
	if err != nil {
		if b.Log != nil {
			b.Log.Error(err, "sys_fork: failed to resolve own executable")
		}
		return result.NewDiverging(pberrors.ErrSys)
	}

	sem := make(chan struct{}, poolSize)
	var wg sync.WaitGroup
	outcomes := make([]forkOutcome, len(combos))

	for i, combo := range combos {
		serialized, err := ctxSerializeForUUID(combo)
		if err != nil {
			outcomes[i] = forkOutcome{spawnFailed: true}
			continue
		}
		childUUID := uuid.NewSHA1(forkNamespace, serialized)

		childStates := cl.CtxStates.
			Overlay(combo).
			Set("_exit", pbcontext.Bool(true)).
			Set("fork_uuid", pbcontext.String(childUUID.String()))

		childClosure := closure.New(cl.StepPtr+1, childStates)

		wg.Add(1)
		sem <- struct{}{}
		go func(i int, cc closure.Closure) {
			defer wg.Done()
			defer func() { <-sem }()
			outcomes[i] = b.runForkChild(selfExe, cc, playbookPath, verbosity)
		}(i, childClosure)
	}
	wg.Wait()

	return result.NewDiverging(aggregateForkOutcomes(outcomes))
}

// aggregateForkOutcomes implements the fork exit aggregation law: Success
// iff every child exited 0, ErrTask if any failed or was signaled, ErrSys if
// any spawn itself failed (spawn failures take priority — they mean we
// cannot even say how many children ran).
func aggregateForkOutcomes(outcomes []forkOutcome) pberrors.ExitCode {
	anySpawnFailed := false
	anyFailed := false
	for _, o := range outcomes {
		if o.spawnFailed {
			anySpawnFailed = true
		}
		if o.failed {
			anyFailed = true
		}
	}

	switch {
	case anySpawnFailed:
		return pberrors.ErrSys
	case anyFailed:
		return pberrors.ErrTask
	default:
		return pberrors.Success
	}
}

func (b *Builtins) runForkChild(selfExe string, cc closure.Closure, playbookPath, verbosity string) forkOutcome {
	encoded, err := cc.Encode()
	if err != nil {
		return forkOutcome{spawnFailed: true}
	}

	args := []string{"--arg-resume", encoded, playbookPath}
	if verbosity != "" {
		args = append(args, verbosity)
	}

	cmd := exec.Command(selfExe, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Stdin = os.Stdin

	if err := cmd.Run(); err != nil {
		if b.Log != nil {
			b.Log.Warn("fork child exited abnormally")
		}
		return forkOutcome{failed: true}
	}
	return forkOutcome{}
}

func ctxSerializeForUUID(ctx pbcontext.Context) ([]byte, error) {
	return ctx.MarshalJSON()
}
