package builtin

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aleozlx/playbook-go/internal/pbcontext"
	"github.com/aleozlx/playbook-go/internal/result"
)

func TestSysExitDefaultsToZero(t *testing.T) {
	tc := SysExit(pbcontext.New())
	require.Equal(t, result.Diverging, tc.Kind())
	code, _ := tc.ExitCode()
	assert.Equal(t, 0, code.Code())
}

func TestSysExitHonorsExplicitCode(t *testing.T) {
	tc := SysExit(pbcontext.New().Set("exit_code", pbcontext.Int(7)))
	code, _ := tc.ExitCode()
	assert.Equal(t, 7, code.Code())
}
