package builtin

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/aleozlx/playbook-go/internal/closure"
	"github.com/aleozlx/playbook-go/internal/pbcontext"
	pberrors "github.com/aleozlx/playbook-go/pkg/errors"
)

func fakeClosure() closure.Closure {
	return closure.New(1, pbcontext.New())
}

func TestAggregateForkOutcomesSuccessWhenAllClean(t *testing.T) {
	outcomes := []forkOutcome{{}, {}, {}}
	assert.Equal(t, pberrors.Success, aggregateForkOutcomes(outcomes))
}

func TestAggregateForkOutcomesErrTaskOnAnyFailure(t *testing.T) {
	outcomes := []forkOutcome{{}, {failed: true}, {}}
	assert.Equal(t, pberrors.ErrTask, aggregateForkOutcomes(outcomes))
}

func TestAggregateForkOutcomesErrSysTakesPriorityOverFailed(t *testing.T) {
	outcomes := []forkOutcome{{spawnFailed: true}, {failed: true}}
	assert.Equal(t, pberrors.ErrSys, aggregateForkOutcomes(outcomes))
}

func TestRunForkChildSucceedsWithCleanExit(t *testing.T) {
	b := New(nil, nil)
	outcome := b.runForkChild("/bin/true", fakeClosure(), "/tmp/play.yml", "")
	assert.False(t, outcome.failed)
	assert.False(t, outcome.spawnFailed)
}

func TestRunForkChildReportsFailedOnNonZeroExit(t *testing.T) {
	b := New(nil, nil)
	outcome := b.runForkChild("/bin/false", fakeClosure(), "/tmp/play.yml", "")
	assert.True(t, outcome.failed)
}
