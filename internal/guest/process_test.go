package guest

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleozlx/playbook-go/internal/pbcontext"
)

func TestPythonBootstrapInsertsSysPathAndCallsAction(t *testing.T) {
	script := pythonBootstrap([]string{"/a", "/b"}, "actions", "write_message")
	assert.Contains(t, script, `sys.path.insert(0, "/a")`)
	assert.Contains(t, script, `sys.path.insert(0, "/b")`)
	assert.Contains(t, script, "import actions as _mod")
	assert.Contains(t, script, `getattr(_mod, "write_message")(_ctx)`)
}

func TestInvokeRejectsUnknownExtension(t *testing.T) {
	adapter := &ProcessAdapter{}
	src := pbcontext.New().Set("src", pbcontext.String("script.rb"))
	err := adapter.Invoke(context.Background(), src, pbcontext.New().Set("action", pbcontext.String("noop")))
	assert.Error(t, err)
}

func TestInvokeRunsPythonActionEndToEnd(t *testing.T) {
	if _, err := exec.LookPath("python3"); err != nil {
		t.Skip("python3 not available in this environment")
	}

	dir := t.TempDir()
	scriptPath := filepath.Join(dir, "actions.py")
	require.NoError(t, os.WriteFile(scriptPath, []byte(
		"#[playbook(write_message)]\n"+
			"def write_message(ctx):\n"+
			"    with open(ctx['out']['Str'], 'w') as f:\n"+
			"        f.write(ctx['message']['Str'] + '\\n')\n",
	), 0o644))

	adapter := &ProcessAdapter{}
	src := pbcontext.New().Set("src", pbcontext.String(scriptPath))
	outPath := filepath.Join(dir, "output.txt")
	ctxStep := pbcontext.New().
		Set("action", pbcontext.String("write_message")).
		Set("message", pbcontext.String("Salut!")).
		Set("out", pbcontext.String(outPath))

	require.NoError(t, adapter.Invoke(context.Background(), src, ctxStep))

	contents, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "Salut!\n", string(contents))
}
