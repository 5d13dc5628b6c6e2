package builtin

import (
	"fmt"

	"github.com/aleozlx/playbook-go/internal/pbcontext"
)

// gridAxis is one {name: [values...]} entry of a fork grid.
type gridAxis struct {
	name   string
	values []pbcontext.Value
}

func parseGrid(entries []pbcontext.Context) ([]gridAxis, error) {
	axes := make([]gridAxis, 0, len(entries))
	for i, entry := range entries {
		keys := entry.Keys()
		if len(keys) != 1 {
			return nil, fmt.Errorf("grid entry %d must have exactly one key, got %d", i, len(keys))
		}
		name := keys[0]
		v, _ := entry.Get(name)
		values, ok := v.AsArray()
		if !ok {
			return nil, fmt.Errorf("grid entry %d: key %q must bind to an Array", i, name)
		}
		axes = append(axes, gridAxis{name: name, values: values})
	}
	return axes, nil
}

// cartesian expands axes into the full parameter space, in declaration
// order: the first axis varies slowest, mirroring nested-loop iteration.
func cartesian(axes []gridAxis) []pbcontext.Context {
	combos := []pbcontext.Context{pbcontext.New()}
	for _, axis := range axes {
		next := make([]pbcontext.Context, 0, len(combos)*len(axis.values))
		for _, combo := range combos {
			for _, v := range axis.values {
				next = append(next, combo.Set(axis.name, v))
			}
		}
		combos = next
	}
	return combos
}
