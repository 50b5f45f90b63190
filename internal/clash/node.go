package clash

import (
	goyaml "github.com/goccy/go-yaml"
	"gopkg.in/yaml.v3"
)

// resolve returns a deep copy of n with aliases replaced by their targets,
// merge keys expanded in place and anchors dropped. Keys written explicitly
// win over merged ones, and earlier merge sources win over later ones.
func resolve(n *yaml.Node) *yaml.Node {
	switch n.Kind {
	case yaml.AliasNode:
		return resolve(n.Alias)
	case yaml.MappingNode:
		out := shallow(n)
		seen := make(map[string]bool, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			if !isMergeKey(n.Content[i]) {
				seen[n.Content[i].Value] = true
			}
		}
		for i := 0; i+1 < len(n.Content); i += 2 {
			key, value := n.Content[i], n.Content[i+1]
			if !isMergeKey(key) {
				out.Content = append(out.Content, resolve(key), resolve(value))
				continue
			}
			for _, src := range mergeSources(value) {
				for j := 0; j+1 < len(src.Content); j += 2 {
					if seen[src.Content[j].Value] {
						continue
					}
					seen[src.Content[j].Value] = true
					out.Content = append(out.Content, src.Content[j], src.Content[j+1])
				}
			}
		}
		return out
	case yaml.SequenceNode, yaml.DocumentNode:
		out := shallow(n)
		for _, c := range n.Content {
			out.Content = append(out.Content, resolve(c))
		}
		return out
	default:
		return shallow(n)
	}
}

// mergeSources lists the resolved mappings a merge value refers to.
func mergeSources(v *yaml.Node) []*yaml.Node {
	v = resolve(v)
	switch v.Kind {
	case yaml.MappingNode:
		return []*yaml.Node{v}
	case yaml.SequenceNode:
		var out []*yaml.Node
		for _, c := range v.Content {
			if c.Kind == yaml.MappingNode {
				out = append(out, c)
			}
		}
		return out
	default:
		return nil
	}
}

func isMergeKey(n *yaml.Node) bool {
	return n.Kind == yaml.ScalarNode && n.Value == "<<" &&
		n.Style&(yaml.SingleQuotedStyle|yaml.DoubleQuotedStyle) == 0
}

func shallow(n *yaml.Node) *yaml.Node {
	return &yaml.Node{
		Kind:   n.Kind,
		Style:  n.Style,
		Tag:    n.Tag,
		Value:  n.Value,
		Line:   n.Line,
		Column: n.Column,
	}
}

// plain converts n into values goccy/go-yaml encodes in the same order:
// mappings become MapSlice, scalars their typed value.
func plain(n *yaml.Node) any {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil
		}
		return plain(n.Content[0])
	case yaml.AliasNode:
		return plain(n.Alias)
	case yaml.MappingNode:
		out := make(goyaml.MapSlice, 0, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			out = append(out, goyaml.MapItem{
				Key:   plain(n.Content[i]),
				Value: plain(n.Content[i+1]),
			})
		}
		return out
	case yaml.SequenceNode:
		out := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			out = append(out, plain(c))
		}
		return out
	default:
		var v any
		if err := n.Decode(&v); err != nil {
			return n.Value
		}
		return v
	}
}
