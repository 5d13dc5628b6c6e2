package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleozlx/playbook-go/internal/closure"
	"github.com/aleozlx/playbook-go/internal/infra"
	"github.com/aleozlx/playbook-go/internal/pbcontext"
	"github.com/aleozlx/playbook-go/internal/playbook"
)

func withFakeExit(t *testing.T) *int {
	t.Helper()
	calls := 0
	original := exitFunc
	exitFunc = func(code int) { calls++ }
	t.Cleanup(func() { exitFunc = original })
	return &calls
}

func TestSettleTriggersExitFuncWhenExitMarkerIsSet(t *testing.T) {
	calls := withFakeExit(t)

	doc := &playbook.Document{
		Global: pbcontext.New(),
		Steps: []pbcontext.Context{
			pbcontext.New().Set("action", pbcontext.String("sys_exit")).Set("exit_code", pbcontext.Int(1)),
		},
	}
	backends := infra.NewRegistry(map[string]infra.Backend{"docker": nopBackend{}})
	r := New(doc, "/tmp/play.yml", "", backends, &recordingGuest{}, nil)

	cl := closure.New(0, pbcontext.New().Set("_exit", pbcontext.Bool(true)))
	r.Run(cl)

	assert.Equal(t, 1, *calls, "the post-fork _exit marker must short-circuit via exitFunc")
}

func TestSettleDoesNotExitWithoutMarker(t *testing.T) {
	calls := withFakeExit(t)

	doc := &playbook.Document{
		Global: pbcontext.New(),
		Steps: []pbcontext.Context{
			pbcontext.New().Set("action", pbcontext.String("sys_exit")).Set("exit_code", pbcontext.Int(1)),
		},
	}
	backends := infra.NewRegistry(map[string]infra.Backend{"docker": nopBackend{}})
	r := New(doc, "/tmp/play.yml", "", backends, &recordingGuest{}, nil)

	code := r.Run(closure.New(0, pbcontext.New()))
	assert.Equal(t, 1, code.Code())
	assert.Equal(t, 0, *calls)
}

func TestPlaybookDirOfHandlesBareFilename(t *testing.T) {
	require.Equal(t, ".", playbookDirOf("play.yml"))
}
