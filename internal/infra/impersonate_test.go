package infra

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShouldImpersonateFalseWhenEnvUnset(t *testing.T) {
	t.Setenv(ImpersonateEnvVar, "")
	_, ok := ShouldImpersonate()
	assert.False(t, ok)
}

func TestShouldImpersonateFalseOutsideContainer(t *testing.T) {
	t.Setenv(ImpersonateEnvVar, "uid=1000(alice) gid=1000(alice) groups=1000(alice)")
	_, ok := ShouldImpersonate()
	assert.False(t, ok, "test process is not running inside a docker container")
}

func TestImpersonateRejectsMalformedIDLine(t *testing.T) {
	err := Impersonate("not an id line", "/bin/true", nil)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "malformed IMPERSONATE identity line")
}

func TestIDLineRegexExtractsUIDAndGID(t *testing.T) {
	matches := idLineRegex.FindStringSubmatch("uid=1000(alice) gid=1000(alice) groups=1000(alice),27(sudo)")
	assert.NotNil(t, matches)
	assert.Equal(t, "1000", matches[1])
	assert.Equal(t, "1000", matches[2])
}

func TestResolveEntrypointAcceptsExistingAbsolutePath(t *testing.T) {
	path, err := resolveEntrypoint("/bin/true")
	assert.NoError(t, err)
	assert.Equal(t, "/bin/true", path)
}

func TestResolveEntrypointRejectsMissingAbsolutePath(t *testing.T) {
	_, err := resolveEntrypoint("/does/not/exist/playbook")
	assert.Error(t, err)
}

func TestResolveEntrypointSearchesPathForBareName(t *testing.T) {
	path, err := resolveEntrypoint("true")
	require.NoError(t, err)
	assert.True(t, filepath.IsAbs(path))
}

func TestResolveEntrypointRejectsUnknownBareName(t *testing.T) {
	_, err := resolveEntrypoint("definitely-not-a-real-command-xyz")
	assert.Error(t, err)
}

func TestResolveEntrypointRejectsEmptyName(t *testing.T) {
	_, err := resolveEntrypoint("")
	assert.Error(t, err)
}
