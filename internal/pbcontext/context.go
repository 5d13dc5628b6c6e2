package pbcontext

import (
	"fmt"
	"sort"
)

// Context is an immutable, ordered mapping from string keys to Values.
// Every mutating-looking operation (Set, Hide, Overlay, ...) returns a new
// Context and leaves the receiver untouched; contexts may be shared freely
// across goroutines because no method ever mutates shared state.
//
// Key order only affects Display output, never equality or overlay
// semantics (spec invariant).
type Context struct {
	order []string
	vals  map[string]Value
}

// New returns the empty Context.
func New() Context {
	return Context{}
}

func (c Context) has(key string) bool {
	if c.vals == nil {
		return false
	}
	_, ok := c.vals[key]
	return ok
}

func cloneOrder(order []string) []string {
	cp := make([]string, len(order))
	copy(cp, order)
	return cp
}

func cloneVals(vals map[string]Value) map[string]Value {
	cp := make(map[string]Value, len(vals))
	for k, v := range vals {
		cp[k] = v
	}
	return cp
}

// Get returns the value bound to key and whether it is present.
func (c Context) Get(key string) (Value, bool) {
	if c.vals == nil {
		return Value{}, false
	}
	v, ok := c.vals[key]
	return v, ok
}

// Set returns a new Context with key bound to v, overwriting any prior
// binding. Key order is preserved for existing keys; new keys are appended.
func (c Context) Set(key string, v Value) Context {
	order := cloneOrder(c.order)
	vals := cloneVals(c.vals)
	if _, exists := vals[key]; !exists {
		order = append(order, key)
	}
	vals[key] = v
	return Context{order: order, vals: vals}
}

// SetOpt sets key to v only if v is present; otherwise it returns the
// receiver unchanged. Useful for conditionally carrying optional CLI flags
// into a Context without sprinkling nil checks at every call site.
func (c Context) SetOpt(key string, v Value, present bool) Context {
	if !present {
		return c
	}
	return c.Set(key, v)
}

// Hide returns a new Context with key removed. Hiding an absent key is a
// no-op (modulo the defensive copy).
func (c Context) Hide(key string) Context {
	if !c.has(key) {
		return c
	}
	vals := cloneVals(c.vals)
	delete(vals, key)
	order := make([]string, 0, len(c.order))
	for _, k := range c.order {
		if k != key {
			order = append(order, k)
		}
	}
	return Context{order: order, vals: vals}
}

// Overlay returns a new Context where keys present in other win; keys
// present in either side are present in the result. Overlay is right-
// biased: Overlay(other).Get(k) == other.Get(k) whenever other has k.
func (c Context) Overlay(other Context) Context {
	order := cloneOrder(c.order)
	vals := cloneVals(c.vals)
	for _, k := range other.order {
		if _, exists := vals[k]; !exists {
			order = append(order, k)
		}
		vals[k] = other.vals[k]
	}
	return Context{order: order, vals: vals}
}

// Subcontext returns the value at key if it is a Context.
func (c Context) Subcontext(key string) (Context, bool) {
	v, ok := c.Get(key)
	if !ok {
		return Context{}, false
	}
	return v.AsContext()
}

// ListContexts returns the value at key if it is an Array whose elements
// are all Contexts.
func (c Context) ListContexts(key string) ([]Context, bool) {
	v, ok := c.Get(key)
	if !ok {
		return nil, false
	}
	arr, ok := v.AsArray()
	if !ok {
		return nil, false
	}
	out := make([]Context, 0, len(arr))
	for _, item := range arr {
		sub, ok := item.AsContext()
		if !ok {
			return nil, false
		}
		out = append(out, sub)
	}
	return out, true
}

// Keys returns the context's keys in display order.
func (c Context) Keys() []string {
	return cloneOrder(c.order)
}

// Len reports the number of bindings in the context.
func (c Context) Len() int {
	return len(c.vals)
}

// Equal reports structural equality: same keys bound to equal values,
// irrespective of key order.
func (c Context) Equal(other Context) bool {
	if len(c.vals) != len(other.vals) {
		return false
	}
	for k, v := range c.vals {
		ov, ok := other.vals[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// UnpackString fetches a required String value, returning an error if the
// key is absent or bound to a different tag.
func (c Context) UnpackString(key string) (string, error) {
	v, ok := c.Get(key)
	if !ok {
		return "", fmt.Errorf("key %q is absent", key)
	}
	s, ok := v.AsString()
	if !ok {
		return "", fmt.Errorf("key %q is not a String (got %s)", key, v.Kind())
	}
	return s, nil
}

// UnpackInt fetches a required Integer value.
func (c Context) UnpackInt(key string) (int64, error) {
	v, ok := c.Get(key)
	if !ok {
		return 0, fmt.Errorf("key %q is absent", key)
	}
	i, ok := v.AsInt()
	if !ok {
		return 0, fmt.Errorf("key %q is not an Integer (got %s)", key, v.Kind())
	}
	return i, nil
}

// UnpackBool fetches a required Boolean value.
func (c Context) UnpackBool(key string) (bool, error) {
	v, ok := c.Get(key)
	if !ok {
		return false, fmt.Errorf("key %q is absent", key)
	}
	b, ok := v.AsBool()
	if !ok {
		return false, fmt.Errorf("key %q is not a Boolean (got %s)", key, v.Kind())
	}
	return b, nil
}

// UnpackStringArray fetches an Array of String values as a []string.
func (c Context) UnpackStringArray(key string) ([]string, error) {
	v, ok := c.Get(key)
	if !ok {
		return nil, fmt.Errorf("key %q is absent", key)
	}
	arr, ok := v.AsArray()
	if !ok {
		return nil, fmt.Errorf("key %q is not an Array (got %s)", key, v.Kind())
	}
	out := make([]string, 0, len(arr))
	for _, item := range arr {
		s, ok := item.AsString()
		if !ok {
			return nil, fmt.Errorf("key %q contains a non-String element", key)
		}
		out = append(out, s)
	}
	return out, nil
}

// Display renders the context in a YAML-compatible textual form. Keys are
// sorted for a stable, reviewable rendering; per spec, key order never
// affects equality, only display.
func (c Context) Display() string {
	node := c.toYAMLNode(true)
	return nodeToYAMLString(node)
}

func (c Context) sortedKeys() []string {
	keys := cloneOrder(c.order)
	sort.Strings(keys)
	return keys
}
