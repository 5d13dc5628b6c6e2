package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aleozlx/playbook-go/internal/pbcontext"
)

func TestComposeAppliesRightBiasedOverlayInOrder(t *testing.T) {
	global := pbcontext.New().Set("a", pbcontext.Int(1)).Set("b", pbcontext.Int(1))
	stepRaw := pbcontext.New().Set("b", pbcontext.Int(2)).Set("c", pbcontext.Int(2))
	args := pbcontext.New().Set("c", pbcontext.Int(3))
	ctxStates := pbcontext.New()

	got := compose(global, stepRaw, args, ctxStates, false)

	a, _ := got.Get("a")
	b, _ := got.Get("b")
	c, _ := got.Get("c")
	av, _ := a.AsInt()
	bv, _ := b.AsInt()
	cv, _ := c.AsInt()
	assert.Equal(t, int64(1), av)
	assert.Equal(t, int64(2), bv)
	assert.Equal(t, int64(3), cv)
}

func TestComposeCtxStatesWinsOverEverythingElse(t *testing.T) {
	global := pbcontext.New().Set("a", pbcontext.Int(1))
	stepRaw := pbcontext.New().Set("a", pbcontext.Int(2))
	args := pbcontext.New().Set("a", pbcontext.Int(3))
	ctxStates := pbcontext.New().Set("a", pbcontext.Int(4))

	got := compose(global, stepRaw, args, ctxStates, false)
	a, _ := got.Get("a")
	av, _ := a.AsInt()
	assert.Equal(t, int64(4), av)
}

func TestComposeResumingLiftsDockerVarsAndHidesDocker(t *testing.T) {
	docker := pbcontext.New().
		Set("image", pbcontext.String("test-image")).
		Set("vars", pbcontext.Nested(pbcontext.New().Set("playbook", pbcontext.String("relocated.yml"))))
	stepRaw := pbcontext.New().Set("docker", pbcontext.Nested(docker))

	got := compose(pbcontext.New(), stepRaw, pbcontext.New(), pbcontext.New(), true)

	_, hasDocker := got.Subcontext("docker")
	assert.False(t, hasDocker)

	playbook, err := got.UnpackString("playbook")
	assert.NoError(t, err)
	assert.Equal(t, "relocated.yml", playbook)
}

func TestComposeNonResumingKeepsDockerIntact(t *testing.T) {
	docker := pbcontext.New().Set("image", pbcontext.String("test-image"))
	stepRaw := pbcontext.New().Set("docker", pbcontext.Nested(docker))

	got := compose(pbcontext.New(), stepRaw, pbcontext.New(), pbcontext.New(), false)
	_, hasDocker := got.Subcontext("docker")
	assert.True(t, hasDocker)
}
