package result

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aleozlx/playbook-go/internal/pbcontext"
	pberrors "github.com/aleozlx/playbook-go/pkg/errors"
)

func TestStatefulCarriesContext(t *testing.T) {
	ctx := pbcontext.New().Set("a", pbcontext.Int(1))
	tc := NewStateful(ctx)
	assert.Equal(t, Stateful, tc.Kind())
	got, ok := tc.Context()
	assert.True(t, ok)
	assert.True(t, ctx.Equal(got))
	_, divergent := tc.ExitCode()
	assert.False(t, divergent)
}

func TestStatelessCarriesContext(t *testing.T) {
	tc := NewStateless(pbcontext.New())
	assert.Equal(t, Stateless, tc.Kind())
	_, ok := tc.Context()
	assert.True(t, ok)
}

func TestDivergingCarriesExitCodeNotContext(t *testing.T) {
	tc := NewDiverging(pberrors.ErrTask)
	assert.Equal(t, Diverging, tc.Kind())
	_, ok := tc.Context()
	assert.False(t, ok)
	code, ok := tc.ExitCode()
	assert.True(t, ok)
	assert.Equal(t, pberrors.ErrTask, code)
}

func TestAssumeStatelessMapsErrorToDivergingErrTask(t *testing.T) {
	tc := AssumeStateless(pbcontext.New(), errors.New("boom"))
	assert.Equal(t, Diverging, tc.Kind())
	code, _ := tc.ExitCode()
	assert.Equal(t, pberrors.ErrTask, code)
}

func TestAssumeStatelessMapsNilErrorToStateless(t *testing.T) {
	tc := AssumeStateless(pbcontext.New(), nil)
	assert.Equal(t, Stateless, tc.Kind())
}
