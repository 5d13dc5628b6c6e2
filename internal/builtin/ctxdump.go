package builtin

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/aleozlx/playbook-go/internal/pbcontext"
	"github.com/aleozlx/playbook-go/internal/result"
)

// ctxdumpNamespace is the fixed URL namespace UUIDv5 dump names are derived
// against, so the same serialized context always yields the same file name.
var ctxdumpNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("playbook-go/ctxdump"))

// SysCtxdump writes the current composed context to
// <dir>/ctxdump-<UUIDv5(ctx)>.yml for debugging. Failures are logged at
// warning level and otherwise ignored — this built-in exists for
// diagnostics, not control flow.
func (b *Builtins) SysCtxdump(ctx pbcontext.Context, dir string) result.TransientContext {
	serialized, err := json.Marshal(ctx)
	if err != nil {
		if b.Log != nil {
			b.Log.Warn("ctxdump: failed to serialize context")
		}
		return result.NewStateless(pbcontext.New())
	}

	id := uuid.NewSHA1(ctxdumpNamespace, serialized)
	path := filepath.Join(dir, "ctxdump-"+id.String()+".yml")

	if err := os.MkdirAll(dir, 0o755); err != nil {
		if b.Log != nil {
			b.Log.Warn("ctxdump: failed to create dump directory")
		}
		return result.NewStateless(pbcontext.New())
	}

	if err := os.WriteFile(path, []byte(ctx.Display()+"\n"), 0o644); err != nil {
		if b.Log != nil {
			b.Log.Warn("ctxdump: failed to write dump file")
		}
	}
	return result.NewStateless(pbcontext.New())
}
