package builtin

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleozlx/playbook-go/internal/pbcontext"
)

func TestSysCtxdumpWritesUUIDNamedFile(t *testing.T) {
	dir := t.TempDir()
	b := New(nil, nil)
	ctx := pbcontext.New().Set("a", pbcontext.Int(1))

	b.SysCtxdump(ctx, dir)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Regexp(t, `^ctxdump-[0-9a-f-]{36}\.yml$`, entries[0].Name())
}

func TestSysCtxdumpIsDeterministicForSameContext(t *testing.T) {
	dir1, dir2 := t.TempDir(), t.TempDir()
	b := New(nil, nil)
	ctx := pbcontext.New().Set("a", pbcontext.Int(1))

	b.SysCtxdump(ctx, dir1)
	b.SysCtxdump(ctx, dir2)

	e1, _ := os.ReadDir(dir1)
	e2, _ := os.ReadDir(dir2)
	require.Len(t, e1, 1)
	require.Len(t, e2, 1)
	assert.Equal(t, e1[0].Name(), e2[0].Name(), "same serialized context must yield the same UUIDv5 file name")
}

func TestSysCtxdumpCreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "dump")
	b := New(nil, nil)
	b.SysCtxdump(pbcontext.New(), dir)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}
