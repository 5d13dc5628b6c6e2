package builtin

import (
	"os"
	"path/filepath"

	"github.com/aleozlx/playbook-go/internal/pbcontext"
	"github.com/aleozlx/playbook-go/internal/result"
	pberrors "github.com/aleozlx/playbook-go/pkg/errors"
)

// SysVars dynamically imports variables into ctx_states. It is the only
// built-in that introduces statefulness: everything else either diverges
// or discards its result.
func (b *Builtins) SysVars(ctx pbcontext.Context, playbookDir string) result.TransientContext {
	states, ok := ctx.Subcontext("states")
	if !ok {
		return result.NewStateless(pbcontext.New())
	}
	from, err := states.UnpackString("from")
	if err != nil {
		return result.NewStateless(pbcontext.New())
	}

	path := from
	if !filepath.IsAbs(path) {
		path = filepath.Join(playbookDir, path)
	}
	contents, err := os.ReadFile(path)
	if err != nil {
		if b.Log != nil {
			b.Log.Error(err, "failed to read vars file")
		}
		return result.NewDiverging(pberrors.ErrSys)
	}

	parsed, err := pbcontext.FromYAML(contents)
	if err != nil {
		if b.Log != nil {
			b.Log.Error(err, "failed to parse vars file")
		}
		return result.NewDiverging(pberrors.ErrYML)
	}
	return result.NewStateful(parsed)
}
