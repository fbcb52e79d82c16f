package codec

import (
	"bytes"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/reoring/hayabib"
)

// DuplicateKeyError reports a key that appears twice in one YAML mapping.
type DuplicateKeyError struct {
	Key       string
	FirstLine int
	FirstCol  int
	Line      int
	Col       int
}

func (e *DuplicateKeyError) Error() string {
	return fmt.Sprintf("duplicate YAML key %q at %d:%d (first at %d:%d)", e.Key, e.Line, e.Col, e.FirstLine, e.FirstCol)
}

// Deserialize parses a YAML bibliography into an entry map. Empty input and
// a null document yield an empty map; any other non-mapping root fails with
// ErrMalformedDocument.
func Deserialize(data []byte) (*hayabib.EntryMap, error) {
	root, err := ParseYAML(data)
	if err != nil {
		return nil, err
	}
	return EntriesFromTree(root)
}

// Serialize renders an entry map as YAML, entry keys in map order.
func Serialize(m *hayabib.EntryMap) ([]byte, error) {
	return EncodeYAML(EntriesToTree(m))
}

// SerializeEntry renders one entry as a standalone labelled block "key: ...".
func SerializeEntry(key string, e *hayabib.Entry) ([]byte, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: empty entry key", hayabib.ErrMalformedDocument)
	}
	return EncodeYAML(Object{{Key: key, Value: EncodeEntry(e)}})
}

// DeserializeEntry parses a block produced by SerializeEntry.
func DeserializeEntry(data []byte) (string, *hayabib.Entry, error) {
	m, err := Deserialize(data)
	if err != nil {
		return "", nil, err
	}
	if m.Len() != 1 {
		return "", nil, fmt.Errorf("%w: expected exactly one entry, got %d", hayabib.ErrMalformedDocument, m.Len())
	}
	key := m.Keys()[0]
	e, _ := m.Get(key)
	return key, e, nil
}

// ParseYAML decodes the first YAML document into a tree. Mappings become
// Object, scalars keep the type their tag resolves to, and timestamps stay
// strings.
func ParseYAML(data []byte) (any, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", hayabib.ErrMalformedDocument, err)
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return nil, nil
	}
	b := &treeBuilder{}
	v, err := b.node(doc.Content[0], 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", hayabib.ErrMalformedDocument, err)
	}
	return v, nil
}

// MaxAliasNodes bounds how many nodes alias expansion may produce in one
// document. Nested aliases grow exponentially, so a small input can
// otherwise expand to billions of nodes.
const MaxAliasNodes = 1 << 20

// treeBuilder converts one YAML document, counting the nodes its aliases
// expand to.
type treeBuilder struct {
	aliasDepth int
	expanded   int
}

func (b *treeBuilder) node(n *yaml.Node, depth int) (any, error) {
	if depth > MaxDepth {
		return nil, fmt.Errorf("nesting deeper than %d at %d:%d", MaxDepth, n.Line, n.Column)
	}
	if b.aliasDepth > 0 {
		b.expanded++
		if b.expanded > MaxAliasNodes {
			return nil, fmt.Errorf("aliases expand to more than %d nodes at %d:%d", MaxAliasNodes, n.Line, n.Column)
		}
	}
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil, nil
		}
		return b.node(n.Content[0], depth)
	case yaml.AliasNode:
		b.aliasDepth++
		defer func() { b.aliasDepth-- }()
		return b.node(n.Alias, depth+1)
	case yaml.MappingNode:
		return b.mapping(n, depth)
	case yaml.SequenceNode:
		arr := make([]any, 0, len(n.Content))
		for _, c := range n.Content {
			v, err := b.node(c, depth+1)
			if err != nil {
				return nil, err
			}
			arr = append(arr, v)
		}
		return arr, nil
	case yaml.ScalarNode:
		return scalarValue(n), nil
	default:
		return nil, nil
	}
}

func (b *treeBuilder) mapping(n *yaml.Node, depth int) (Object, error) {
	out := make(Object, 0, len(n.Content)/2)
	first := make(map[string][2]int, len(n.Content)/2)
	index := make(map[string]int, len(n.Content)/2)
	merged := make(map[string]bool)
	for i := 0; i+1 < len(n.Content); i += 2 {
		k, v := n.Content[i], n.Content[i+1]
		if k.Kind == yaml.ScalarNode && k.ShortTag() == "!!merge" {
			if err := b.merge(&out, index, merged, v, depth); err != nil {
				return nil, err
			}
			continue
		}
		if k.Kind != yaml.ScalarNode {
			return nil, fmt.Errorf("non-scalar mapping key at %d:%d", k.Line, k.Column)
		}
		key := k.Value
		if pos, dup := first[key]; dup {
			return nil, &DuplicateKeyError{Key: key, FirstLine: pos[0], FirstCol: pos[1], Line: k.Line, Col: k.Column}
		}
		first[key] = [2]int{k.Line, k.Column}
		val, err := b.node(v, depth+1)
		if err != nil {
			return nil, err
		}
		if j, ok := index[key]; ok && merged[key] {
			// explicit keys override merged ones
			out[j].Value = val
			delete(merged, key)
			continue
		}
		index[key] = len(out)
		out = append(out, Member{Key: key, Value: val})
	}
	return out, nil
}

// merge applies a "<<" value: a mapping, or a sequence of mappings where
// earlier ones win. Keys already present are left alone.
func (b *treeBuilder) merge(out *Object, index map[string]int, merged map[string]bool, v *yaml.Node, depth int) error {
	src, err := b.node(v, depth+1)
	if err != nil {
		return err
	}
	var sources []Object
	switch t := src.(type) {
	case Object:
		sources = []Object{t}
	case []any:
		for _, it := range t {
			o, ok := it.(Object)
			if !ok {
				return fmt.Errorf("merge value must be a mapping at %d:%d", v.Line, v.Column)
			}
			sources = append(sources, o)
		}
	default:
		return fmt.Errorf("merge value must be a mapping at %d:%d", v.Line, v.Column)
	}
	for _, o := range sources {
		for _, m := range o {
			if _, ok := index[m.Key]; ok {
				continue
			}
			index[m.Key] = len(*out)
			merged[m.Key] = true
			*out = append(*out, m)
		}
	}
	return nil
}

func scalarValue(n *yaml.Node) any {
	switch n.ShortTag() {
	case "!!null":
		return nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err == nil {
			return b
		}
	case "!!int":
		var i int64
		if err := n.Decode(&i); err == nil {
			return i
		}
		// out of int64 range: keep as float
		var f float64
		if err := n.Decode(&f); err == nil {
			return f
		}
	case "!!float":
		var f float64
		if err := n.Decode(&f); err == nil {
			return f
		}
	}
	return n.Value
}

// EncodeYAML renders a tree as a YAML document with two-space indentation.
func EncodeYAML(v any) ([]byte, error) {
	n, err := treeToNode(v, 0)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(n); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func treeToNode(v any, depth int) (*yaml.Node, error) {
	if depth > MaxDepth {
		return nil, fmt.Errorf("%w: nesting deeper than %d", hayabib.ErrMalformedDocument, MaxDepth)
	}
	switch t := v.(type) {
	case Object:
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for _, m := range t {
			val, err := treeToNode(m.Value, depth+1)
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, strNode(m.Key), val)
		}
		return n, nil
	case map[string]any:
		o, _ := asObject(t)
		return treeToNode(o, depth)
	case []any:
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, it := range t {
			c, err := treeToNode(it, depth+1)
			if err != nil {
				return nil, err
			}
			n.Content = append(n.Content, c)
		}
		return n, nil
	case string:
		return strNode(t), nil
	case bool:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(t)}, nil
	case int:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.Itoa(t)}, nil
	case int64:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(t, 10)}, nil
	case float64:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: formatFloat(t)}, nil
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	default:
		return nil, fmt.Errorf("%w: cannot encode %T", hayabib.ErrMalformedDocument, v)
	}
}

// strNode tags a string explicitly so the encoder quotes values such as
// "42" or "1931-01-15" that would otherwise resolve to another type.
func strNode(s string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
}

// formatFloat keeps a fractional marker so integral floats do not read back
// as integers.
func formatFloat(f float64) string {
	switch {
	case math.IsInf(f, 1):
		return ".inf"
	case math.IsInf(f, -1):
		return "-.inf"
	case math.IsNaN(f):
		return ".nan"
	}
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}
