// Package closure implements the resume token that crosses a container
// boundary: a compact, self-describing record of where a playbook run was
// when it handed off to a freshly launched container, and what stateful
// context had accumulated by then.
package closure

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/aleozlx/playbook-go/internal/pbcontext"
)

// Side distinguishes which side of a container boundary a Closure describes.
type Side int

const (
	// Host is the side that launches containers and runs the main loop.
	Host Side = 0
	// Container is the side that has just been re-invoked inside one and
	// will execute exactly one step before exiting.
	Container Side = 1
)

// Closure is the resume token. It is serialized to a compact JSON string on
// the command line when the engine re-invokes itself inside a container,
// and decoded back at entry.
type Closure struct {
	Container Side
	StepPtr   int
	CtxStates pbcontext.Context
}

// New constructs a host-side Closure at the given step pointer.
func New(stepPtr int, ctxStates pbcontext.Context) Closure {
	return Closure{Container: Host, StepPtr: stepPtr, CtxStates: ctxStates}
}

// Resumed returns a copy of this Closure with Container set to Container,
// for handing off across a container entry.
func (c Closure) Resumed() Closure {
	c.Container = Container
	return c
}

// WithCtxStates returns a copy with CtxStates replaced, used when a step's
// docker.vars rebinds a key (e.g. playbook path relocation) that must carry
// into the closure the container side will decode.
func (c Closure) WithCtxStates(ctx pbcontext.Context) Closure {
	c.CtxStates = ctx
	return c
}

type wireClosure struct {
	C int                `json:"c"`
	P int                `json:"p"`
	S pbcontext.Context  `json:"s"`
}

// Encode serializes the Closure to its compact command-line JSON form.
func (c Closure) Encode() (string, error) {
	wire := wireClosure{C: int(c.Container), P: c.StepPtr, S: c.CtxStates}
	data, err := json.Marshal(wire)
	if err != nil {
		return "", fmt.Errorf("closure: encode: %w", err)
	}
	return string(data), nil
}

// Decode parses a Closure from its compact command-line JSON form.
func Decode(raw string) (Closure, error) {
	var wire wireClosure
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	if err := dec.Decode(&wire); err != nil {
		return Closure{}, fmt.Errorf("closure: decode: %w", err)
	}
	return Closure{Container: Side(wire.C), StepPtr: wire.P, CtxStates: wire.S}, nil
}

func (s Side) String() string {
	if s == Container {
		return "container"
	}
	return "host"
}
