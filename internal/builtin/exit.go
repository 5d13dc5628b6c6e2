// Package builtin implements the engine's fixed set of built-in actions:
// sys_exit, sys_shell, sys_vars, sys_fork, and sys_ctxdump.
package builtin

import (
	"github.com/aleozlx/playbook-go/internal/pbcontext"
	"github.com/aleozlx/playbook-go/internal/result"
	pberrors "github.com/aleozlx/playbook-go/pkg/errors"
)

// SysExit forces program termination with a caller-chosen code, defaulting
// to 0 when exit_code is absent.
func SysExit(ctx pbcontext.Context) result.TransientContext {
	code, err := ctx.UnpackInt("exit_code")
	if err != nil {
		code = 0
	}
	return result.NewDiverging(pberrors.Any(int(code)))
}
