package pbcontext

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// FromYAML decodes a YAML document into a Context. The document's root node
// must be a mapping; this is how playbooks and sys_vars files are loaded.
func FromYAML(data []byte) (Context, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return Context{}, err
	}
	if len(node.Content) == 0 {
		return New(), nil
	}
	return contextFromNode(node.Content[0])
}

func contextFromNode(node *yaml.Node) (Context, error) {
	if node.Kind == yaml.DocumentNode {
		if len(node.Content) == 0 {
			return New(), nil
		}
		return contextFromNode(node.Content[0])
	}
	if node.Kind != yaml.MappingNode {
		return Context{}, fmt.Errorf("pbcontext: expected a mapping, got %s", kindName(node.Kind))
	}

	c := New()
	for i := 0; i+1 < len(node.Content); i += 2 {
		keyNode := node.Content[i]
		valNode := node.Content[i+1]
		v, err := valueFromNode(valNode)
		if err != nil {
			return Context{}, fmt.Errorf("pbcontext: key %q: %w", keyNode.Value, err)
		}
		c = c.Set(keyNode.Value, v)
	}
	return c, nil
}

func valueFromNode(node *yaml.Node) (Value, error) {
	switch node.Kind {
	case yaml.MappingNode:
		sub, err := contextFromNode(node)
		if err != nil {
			return Value{}, err
		}
		return Nested(sub), nil
	case yaml.SequenceNode:
		items := make([]Value, 0, len(node.Content))
		for _, child := range node.Content {
			v, err := valueFromNode(child)
			if err != nil {
				return Value{}, err
			}
			items = append(items, v)
		}
		return Array(items), nil
	case yaml.ScalarNode:
		return scalarFromNode(node)
	case yaml.AliasNode:
		return valueFromNode(node.Alias)
	default:
		return Value{}, fmt.Errorf("pbcontext: unsupported node kind %s", kindName(node.Kind))
	}
}

func scalarFromNode(node *yaml.Node) (Value, error) {
	switch node.Tag {
	case "!!null":
		return Null(), nil
	case "!!bool":
		var b bool
		if err := node.Decode(&b); err != nil {
			return Value{}, err
		}
		return Bool(b), nil
	case "!!int":
		var i int64
		if err := node.Decode(&i); err != nil {
			return Value{}, err
		}
		return Int(i), nil
	case "!!float":
		var f float64
		if err := node.Decode(&f); err != nil {
			return Value{}, err
		}
		return Real(f), nil
	default:
		return String(node.Value), nil
	}
}

func kindName(k yaml.Kind) string {
	switch k {
	case yaml.DocumentNode:
		return "document"
	case yaml.MappingNode:
		return "mapping"
	case yaml.SequenceNode:
		return "sequence"
	case yaml.ScalarNode:
		return "scalar"
	case yaml.AliasNode:
		return "alias"
	default:
		return "unknown"
	}
}

// toYAMLNode renders the Context as a yaml.Node tree. When sorted is true
// keys are emitted in lexical order, which is what Display uses; the
// round-trip decoder (FromYAML) does not care about order.
func (c Context) toYAMLNode(sorted bool) *yaml.Node {
	node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
	keys := c.order
	if sorted {
		keys = c.sortedKeys()
	}
	for _, k := range keys {
		v := c.vals[k]
		node.Content = append(node.Content,
			&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
			v.toYAMLNode(sorted),
		)
	}
	return node
}

func (v Value) toYAMLNode(sorted bool) *yaml.Node {
	switch v.kind {
	case KindNull:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	case KindString:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v.str}
	case KindInteger:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: fmt.Sprintf("%d", v.i)}
	case KindReal:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: fmt.Sprintf("%g", v.real)}
	case KindBoolean:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: fmt.Sprintf("%t", v.b)}
	case KindArray:
		node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range v.arr {
			node.Content = append(node.Content, item.toYAMLNode(sorted))
		}
		return node
	case KindContext:
		return v.ctx.toYAMLNode(sorted)
	default:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	}
}

func nodeToYAMLString(node *yaml.Node) string {
	var sb strings.Builder
	enc := yaml.NewEncoder(&sb)
	enc.SetIndent(2)
	if err := enc.Encode(node); err != nil {
		return fmt.Sprintf("<pbcontext: display error: %v>", err)
	}
	_ = enc.Close()
	return strings.TrimRight(sb.String(), "\n")
}
