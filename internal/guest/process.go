package guest

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/aleozlx/playbook-go/internal/logger"
	"github.com/aleozlx/playbook-go/internal/pbcontext"
	pberrors "github.com/aleozlx/playbook-go/pkg/errors"
)

// interpreters maps a guest source file's extension to the interpreter
// binary that runs it. Only Python is wired: it is the one guest language
// the corpus's reference implementation actually embeds, and embedding a
// Go-native interpreter for any language is out of scope here.
var interpreters = map[string]string{
	".py": "python3",
}

// ProcessAdapter runs guest actions as interpreter subprocesses, passing the
// step context as a single JSON argument and letting the child import the
// resolved source module itself.
type ProcessAdapter struct {
	Log *logger.Logger
}

var _ Adapter = (*ProcessAdapter)(nil)

// Invoke shells out to the interpreter for src's file extension, running a
// small bootstrap that prepends sys_path, imports the module by file stem,
// and calls the function named by ctxStep's action key.
func (p *ProcessAdapter) Invoke(ctx context.Context, src pbcontext.Context, ctxStep pbcontext.Context) error {
	srcPath, err := src.UnpackString("src")
	if err != nil {
		return pberrors.NewExecutionError("guest", fmt.Errorf("resolved source descriptor has no src path"))
	}
	action, err := ctxStep.UnpackString("action")
	if err != nil {
		return pberrors.NewExecutionError("guest", fmt.Errorf("step context has no action"))
	}

	ext := filepath.Ext(srcPath)
	interpreter, ok := interpreters[ext]
	if !ok {
		return pberrors.NewExecutionError("guest", fmt.Errorf("it is not clear how to run %s", srcPath))
	}

	var sysPath []string
	if paths, err := src.UnpackStringArray("sys_path"); err == nil {
		sysPath = paths
	}
	sysPath = append(sysPath, filepath.Dir(srcPath))

	ctxJSON, err := ctxStep.MarshalJSON()
	if err != nil {
		return pberrors.NewExecutionError("guest", err)
	}

	bootstrap := pythonBootstrap(sysPath, filepath.Base(strings.TrimSuffix(srcPath, ext)), action)

	cmd := exec.CommandContext(ctx, interpreter, "-c", bootstrap, string(ctxJSON))
	cmd.Stdin = os.Stdin
	var stderr bytes.Buffer
	cmd.Stdout = os.Stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		if p.Log != nil && stderr.Len() > 0 {
			p.Log.Error(err, stderr.String())
		}
		return pberrors.NewExecutionError("guest", err)
	}
	return nil
}

func pythonBootstrap(sysPath []string, moduleStem, action string) string {
	var sb strings.Builder
	sb.WriteString("import sys, json\n")
	for _, p := range sysPath {
		fmt.Fprintf(&sb, "sys.path.insert(0, %q)\n", p)
	}
	fmt.Fprintf(&sb, "import %s as _mod\n", moduleStem)
	sb.WriteString("_ctx = json.loads(sys.argv[1])\n")
	fmt.Fprintf(&sb, "getattr(_mod, %q)(_ctx)\n", action)
	sb.WriteString("sys.stdout.flush()\nsys.stderr.flush()\n")
	return sb.String()
}
