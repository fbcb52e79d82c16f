// Package codec converts between the hayabib entry model and its textual
// forms. The wire format is untagged: every union field is told apart by the
// shape of its value, and each union has its own decoder/encoder pair in this
// package.
//
// Decoding happens in two steps: text -> tree (Object, []any and scalars,
// preserving key order and scalar tags) -> model. Encoding goes the other way.
// Validation works on Plain trees (map[string]any).
package codec

import (
	"fmt"
	"maps"
	"slices"

	"github.com/reoring/hayabib"
)

// MaxDepth bounds the nesting of decoded trees. Parents can nest without a
// fixed limit, but a cyclic YAML alias must not recurse forever.
const MaxDepth = 1000

// Member is one key/value pair of an Object.
type Member struct {
	Key   string
	Value any
}

// Object is a mapping that keeps the order its keys appeared in.
type Object []Member

// Get returns the value stored under key.
func (o Object) Get(key string) (any, bool) {
	for _, m := range o {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

// Keys returns the keys in order.
func (o Object) Keys() []string {
	out := make([]string, len(o))
	for i, m := range o {
		out[i] = m.Key
	}
	return out
}

// asObject views v as an Object. Plain maps are accepted with sorted keys.
func asObject(v any) (Object, bool) {
	switch t := v.(type) {
	case Object:
		return t, true
	case map[string]any:
		o := make(Object, 0, len(t))
		for _, k := range slices.Sorted(maps.Keys(t)) {
			o = append(o, Member{Key: k, Value: t[k]})
		}
		return o, true
	default:
		return nil, false
	}
}

// Plain converts a tree into JSON-like values: Object becomes map[string]any.
func Plain(v any) any {
	switch t := v.(type) {
	case Object:
		m := make(map[string]any, len(t))
		for _, mem := range t {
			m[mem.Key] = Plain(mem.Value)
		}
		return m
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = Plain(vv)
		}
		return m
	case []any:
		arr := make([]any, len(t))
		for i := range t {
			arr[i] = Plain(t[i])
		}
		return arr
	case int:
		return int64(t)
	default:
		return v
	}
}

// toTree converts plain values back into a tree with sorted object keys.
func toTree(v any) any {
	switch t := v.(type) {
	case map[string]any:
		o, _ := asObject(t)
		for i := range o {
			o[i].Value = toTree(o[i].Value)
		}
		return o
	case Object:
		out := make(Object, len(t))
		for i, m := range t {
			out[i] = Member{Key: m.Key, Value: toTree(m.Value)}
		}
		return out
	case []any:
		arr := make([]any, len(t))
		for i := range t {
			arr[i] = toTree(t[i])
		}
		return arr
	case int:
		return int64(t)
	default:
		return v
	}
}

// EntriesFromTree decodes a root tree into an entry map. The root must be a
// mapping whose values are mappings; nil decodes to an empty map.
func EntriesFromTree(root any) (*hayabib.EntryMap, error) {
	m := hayabib.NewEntryMap()
	if root == nil {
		return m, nil
	}
	obj, ok := asObject(root)
	if !ok {
		return nil, fmt.Errorf("%w: root must be a mapping, got %s", hayabib.ErrMalformedDocument, kindOf(root))
	}
	for _, mem := range obj {
		if mem.Key == "" {
			return nil, fmt.Errorf("%w: empty entry key", hayabib.ErrMalformedDocument)
		}
		if m.Has(mem.Key) {
			return nil, fmt.Errorf("%w: duplicate entry key %q", hayabib.ErrMalformedDocument, mem.Key)
		}
		e, err := DecodeEntry(mem.Value)
		if err != nil {
			return nil, fmt.Errorf("entry %q: %w", mem.Key, err)
		}
		m.Set(mem.Key, e)
	}
	return m, nil
}

// EntriesToTree encodes an entry map into an ordered tree.
func EntriesToTree(m *hayabib.EntryMap) Object {
	out := make(Object, 0, m.Len())
	for k, e := range m.All() {
		out = append(out, Member{Key: k, Value: EncodeEntry(e)})
	}
	return out
}

func kindOf(v any) string {
	switch v.(type) {
	case Object, map[string]any:
		return "mapping"
	case []any:
		return "sequence"
	case string:
		return "string"
	case int64, float64:
		return "number"
	case bool:
		return "boolean"
	case nil:
		return "null"
	default:
		return fmt.Sprintf("%T", v)
	}
}
