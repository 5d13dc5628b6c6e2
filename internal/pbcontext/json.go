package pbcontext

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// MarshalJSON renders the Context as a compact externally-tagged JSON object
// in declaration order: {"key": <tagged-value>, ...}. This is the wire
// format a Closure's ctx_states crosses a container boundary in, distinct
// from Display's sorted YAML rendering.
func (c Context) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range c.order {
		if i > 0 {
			buf.WriteByte(',')
		}
		keyJSON, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(keyJSON)
		buf.WriteByte(':')
		valJSON, err := c.vals[k].MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(valJSON)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a Context from its externally-tagged wire form,
// preserving the key order encountered so a decode/encode/decode cycle
// reproduces the original byte string (spec's closure round-trip law).
func (c *Context) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	delim, ok := tok.(json.Delim)
	if !ok || delim != '{' {
		return fmt.Errorf("pbcontext: expected a JSON object, got %v", tok)
	}

	result := New()
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("pbcontext: expected a string key, got %v", keyTok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		var v Value
		if err := v.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("pbcontext: key %q: %w", key, err)
		}
		result = result.Set(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}
	*c = result
	return nil
}

// MarshalJSON renders a Value in the closed-set externally-tagged form:
// Null becomes the bare string "Null"; every other scalar variant becomes a
// single-key object {"Tag": payload}; a Context-valued leaf is rendered as
// its own plain object with no wrapping tag, matching the wire closure
// examples where a nested context sits directly under its parent key.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return json.Marshal("Null")
	case KindString:
		return wrapTagged("Str", v.str)
	case KindInteger:
		return wrapTagged("Int", v.i)
	case KindReal:
		return wrapTagged("Real", v.real)
	case KindBoolean:
		return wrapTagged("Bool", v.b)
	case KindArray:
		return wrapTagged("Array", v.arr)
	case KindContext:
		return v.ctx.MarshalJSON()
	default:
		return nil, fmt.Errorf("pbcontext: cannot marshal value of kind %s", v.kind)
	}
}

func wrapTagged(tag string, payload any) ([]byte, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	tagJSON, _ := json.Marshal(tag)
	buf.Write(tagJSON)
	buf.WriteByte(':')
	buf.Write(payloadJSON)
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

var scalarTags = map[string]bool{
	"Str": true, "Int": true, "Real": true, "Bool": true, "Array": true,
}

// UnmarshalJSON decodes a Value from its externally-tagged wire form. An
// object carrying exactly one of the recognised scalar tags is decoded as
// that variant; any other object (including the empty object, and objects
// whose single key is not a recognised tag) is decoded as a nested Context.
func (v *Value) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(trimmed, &s); err != nil {
			return err
		}
		if s == "Null" {
			*v = Null()
			return nil
		}
		return fmt.Errorf("pbcontext: unrecognised scalar value %q", s)
	}

	var generic map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &generic); err != nil {
		return err
	}

	if len(generic) == 1 {
		for tag, payload := range generic {
			if scalarTags[tag] {
				return v.unmarshalTagged(tag, payload)
			}
		}
	}

	var ctx Context
	if err := ctx.UnmarshalJSON(trimmed); err != nil {
		return err
	}
	*v = Nested(ctx)
	return nil
}

func (v *Value) unmarshalTagged(tag string, payload json.RawMessage) error {
	switch tag {
	case "Str":
		var s string
		if err := json.Unmarshal(payload, &s); err != nil {
			return err
		}
		*v = String(s)
	case "Int":
		var i int64
		if err := json.Unmarshal(payload, &i); err != nil {
			return err
		}
		*v = Int(i)
	case "Real":
		var f float64
		if err := json.Unmarshal(payload, &f); err != nil {
			return err
		}
		*v = Real(f)
	case "Bool":
		var b bool
		if err := json.Unmarshal(payload, &b); err != nil {
			return err
		}
		*v = Bool(b)
	case "Array":
		var raws []json.RawMessage
		if err := json.Unmarshal(payload, &raws); err != nil {
			return err
		}
		items := make([]Value, len(raws))
		for i, raw := range raws {
			if err := items[i].UnmarshalJSON(raw); err != nil {
				return err
			}
		}
		*v = Array(items)
	default:
		return fmt.Errorf("pbcontext: unrecognised tag %q", tag)
	}
	return nil
}
