package builtin

import (
	"context"
	"strings"

	"github.com/aleozlx/playbook-go/internal/infra"
	"github.com/aleozlx/playbook-go/internal/pbcontext"
	"github.com/aleozlx/playbook-go/internal/result"
	pberrors "github.com/aleozlx/playbook-go/pkg/errors"
)

// SysShell drops the caller into a shell inside the container named by the
// step's docker sub-context. If bash is an Array its elements are joined
// into a single command line (each element containing a space is wrapped
// in double quotes) and run via bash -c; else an
// interactive bash session is launched. impersonate is always stripped:
// it is not secure to transition from the playbook into an interactive
// shell with an escalated identity.
func (b *Builtins) SysShell(ctx pbcontext.Context) result.TransientContext {
	ctxDocker, ok := ctx.Subcontext("docker")
	if !ok {
		if b.Log != nil {
			b.Log.Error(nil, "docker context not found")
		}
		return result.NewDiverging(pberrors.ErrYML)
	}
	ctxDocker = ctxDocker.Hide("impersonate")

	backend, ok := b.resolveBackend(ctx)
	if !ok {
		return result.NewDiverging(pberrors.ErrYML)
	}

	var argv []string
	if bash, err := ctx.UnpackStringArray("bash"); err == nil {
		argv = []string{"bash", "-c", quoteJoin(bash)}
	} else {
		if b.Log != nil {
			b.Log.Warn("just a bash shell, here goes nothing")
		}
		ctxDocker = ctxDocker.Set("interactive", pbcontext.Bool(true))
		argv = []string{"bash"}
	}

	if _, taskErr := backend.Launch(context.Background(), ctxDocker, argv); taskErr != nil {
		if b.Log != nil {
			b.Log.Error(taskErr, "the container exited abnormally")
		}
		return result.NewDiverging(pberrors.ErrYML)
	}
	return result.NewDiverging(pberrors.Success)
}

func (b *Builtins) resolveBackend(ctx pbcontext.Context) (infra.Backend, bool) {
	name, _ := ctx.UnpackString("as-switch")
	return b.Backends.Resolve(name)
}

func quoteJoin(parts []string) string {
	quoted := make([]string, len(parts))
	for i, p := range parts {
		if strings.Contains(p, " ") {
			quoted[i] = `"` + p + `"`
		} else {
			quoted[i] = p
		}
	}
	return strings.Join(quoted, " ")
}
