package codec

import (
	"fmt"
	"maps"
	"slices"

	"github.com/reoring/hayabib"
)

// field binds one wire key to an Entry field. decode reports false when the
// value has a shape the model cannot hold; the raw value then goes to Extra.
type field struct {
	name   string
	decode func(e *hayabib.Entry, v any) bool
	encode func(e *hayabib.Entry) (any, bool)
}

func optional[T any](name string, slot func(*hayabib.Entry) **T, dec func(any) (*T, bool), enc func(*T) any) field {
	return field{
		name: name,
		decode: func(e *hayabib.Entry, v any) bool {
			x, ok := dec(v)
			if ok {
				*slot(e) = x
			}
			return ok
		},
		encode: func(e *hayabib.Entry) (any, bool) {
			x := *slot(e)
			if x == nil {
				return nil, false
			}
			return enc(x), true
		},
	}
}

func formattable(name string, slot func(*hayabib.Entry) **hayabib.FormattableString) field {
	return optional(name, slot, decodeFormattable, encodeFormattable)
}

func numeric(name string, slot func(*hayabib.Entry) **hayabib.Numeric) field {
	return optional(name, slot, decodeNumeric, encodeNumeric)
}

func text(name string, slot func(*hayabib.Entry) **string) field {
	return optional(name, slot, decodeString, func(s *string) any { return *s })
}

func integer(name string, slot func(*hayabib.Entry) **int64) field {
	return optional(name, slot, decodeInt, func(n *int64) any { return *n })
}

// fields is the canonical output order. The table refers to itself through
// parent entries, so it is filled in init.
var (
	fields     []field
	fieldIndex map[string]field
)

func init() {
	fields = fieldList()
	fieldIndex = make(map[string]field, len(fields))
	for _, f := range fields {
		fieldIndex[f.name] = f
	}
}

func fieldList() []field {
	return []field{
		{
			name: "type",
			decode: func(e *hayabib.Entry, v any) bool {
				s, ok := v.(string)
				if !ok || s == "" {
					return false
				}
				e.Type = s
				return true
			},
			encode: func(e *hayabib.Entry) (any, bool) { return e.Type, e.Type != "" },
		},
		formattable("title", func(e *hayabib.Entry) **hayabib.FormattableString { return &e.Title }),
		optional("author", func(e *hayabib.Entry) **hayabib.People { return &e.Author }, decodePeople, encodePeople),
		optional("date", func(e *hayabib.Entry) **hayabib.Date { return &e.Date }, decodeDate, encodeDate),
		optional("editor", func(e *hayabib.Entry) **hayabib.People { return &e.Editor }, decodePeople, encodePeople),
		{
			name: "affiliated",
			decode: func(e *hayabib.Entry, v any) bool {
				aff, ok := decodeAffiliated(v)
				if ok {
					e.Affiliated = aff
				}
				return ok
			},
			encode: func(e *hayabib.Entry) (any, bool) {
				if e.Affiliated == nil {
					return nil, false
				}
				return encodeAffiliated(e.Affiliated), true
			},
		},
		formattable("abstract", func(e *hayabib.Entry) **hayabib.FormattableString { return &e.Abstract }),
		formattable("genre", func(e *hayabib.Entry) **hayabib.FormattableString { return &e.Genre }),
		formattable("call-number", func(e *hayabib.Entry) **hayabib.FormattableString { return &e.CallNumber }),
		optional("publisher", func(e *hayabib.Entry) **hayabib.Publisher { return &e.Publisher }, decodePublisher, encodePublisher),
		formattable("location", func(e *hayabib.Entry) **hayabib.FormattableString { return &e.Location }),
		formattable("organization", func(e *hayabib.Entry) **hayabib.FormattableString { return &e.Organization }),
		numeric("issue", func(e *hayabib.Entry) **hayabib.Numeric { return &e.Issue }),
		numeric("volume", func(e *hayabib.Entry) **hayabib.Numeric { return &e.Volume }),
		integer("volume-total", func(e *hayabib.Entry) **int64 { return &e.VolumeTotal }),
		numeric("edition", func(e *hayabib.Entry) **hayabib.Numeric { return &e.Edition }),
		numeric("chapter", func(e *hayabib.Entry) **hayabib.Numeric { return &e.Chapter }),
		numeric("page-range", func(e *hayabib.Entry) **hayabib.Numeric { return &e.PageRange }),
		integer("page-total", func(e *hayabib.Entry) **int64 { return &e.PageTotal }),
		text("time-range", func(e *hayabib.Entry) **string { return &e.TimeRange }),
		text("runtime", func(e *hayabib.Entry) **string { return &e.Runtime }),
		optional("url", func(e *hayabib.Entry) **hayabib.URL { return &e.URL }, decodeURL, encodeURL),
		optional("serial-number", func(e *hayabib.Entry) **hayabib.SerialNumber { return &e.SerialNumber }, decodeSerial, encodeSerial),
		text("language", func(e *hayabib.Entry) **string { return &e.Language }),
		formattable("archive", func(e *hayabib.Entry) **hayabib.FormattableString { return &e.Archive }),
		formattable("archive-location", func(e *hayabib.Entry) **hayabib.FormattableString { return &e.ArchiveLocation }),
		formattable("note", func(e *hayabib.Entry) **hayabib.FormattableString { return &e.Note }),
		optional("parent", func(e *hayabib.Entry) **hayabib.Parents { return &e.Parent }, decodeParents, encodeParents),
	}
}

// DecodeEntry converts a mapping tree into an Entry. Only a non-mapping value
// is an error; fields the model cannot hold are kept in Extra.
func DecodeEntry(v any) (*hayabib.Entry, error) {
	obj, ok := asObject(v)
	if !ok {
		return nil, fmt.Errorf("%w: entry must be a mapping, got %s", hayabib.ErrMalformedDocument, kindOf(v))
	}
	e := &hayabib.Entry{}
	for _, m := range obj {
		if f, known := fieldIndex[m.Key]; known && f.decode(e, m.Value) {
			continue
		}
		if e.Extra == nil {
			e.Extra = make(map[string]any)
		}
		e.Extra[m.Key] = Plain(m.Value)
	}
	return e, nil
}

// EncodeEntry converts an Entry into an ordered tree: known fields first in
// canonical order, then Extra sorted by key.
func EncodeEntry(e *hayabib.Entry) Object {
	out := make(Object, 0, len(fields)+len(e.Extra))
	for _, f := range fields {
		if v, ok := f.encode(e); ok {
			out = append(out, Member{Key: f.name, Value: v})
		}
	}
	for _, k := range slices.Sorted(maps.Keys(e.Extra)) {
		out = append(out, Member{Key: k, Value: toTree(e.Extra[k])})
	}
	return out
}

func decodeString(v any) (*string, bool) {
	s, ok := v.(string)
	if !ok {
		return nil, false
	}
	return &s, true
}

func decodeInt(v any) (*int64, bool) {
	n, ok := v.(int64)
	if !ok {
		return nil, false
	}
	return &n, true
}

func decodeAffiliated(v any) ([]hayabib.Affiliated, bool) {
	arr, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]hayabib.Affiliated, 0, len(arr))
	for _, it := range arr {
		obj, ok := asObject(it)
		if !ok || len(obj) != 2 {
			return nil, false
		}
		role, ok := obj.Get("role")
		if !ok {
			return nil, false
		}
		rs, ok := role.(string)
		if !ok {
			return nil, false
		}
		names, ok := obj.Get("names")
		if !ok {
			return nil, false
		}
		ps, ok := decodePeople(names)
		if !ok {
			return nil, false
		}
		out = append(out, hayabib.Affiliated{Role: rs, Names: *ps})
	}
	return out, true
}

func encodeAffiliated(aff []hayabib.Affiliated) any {
	arr := make([]any, len(aff))
	for i, a := range aff {
		arr[i] = Object{
			{Key: "role", Value: a.Role},
			{Key: "names", Value: encodePeople(&a.Names)},
		}
	}
	return arr
}

// decodeParents accepts one entry mapping or a sequence of them.
func decodeParents(v any) (*hayabib.Parents, bool) {
	if arr, ok := v.([]any); ok {
		ps := &hayabib.Parents{List: true, Items: make([]*hayabib.Entry, 0, len(arr))}
		for _, it := range arr {
			e, err := DecodeEntry(it)
			if err != nil {
				return nil, false
			}
			ps.Items = append(ps.Items, e)
		}
		return ps, true
	}
	e, err := DecodeEntry(v)
	if err != nil {
		return nil, false
	}
	return hayabib.Parent(e), true
}

func encodeParents(ps *hayabib.Parents) any {
	if !ps.List && len(ps.Items) == 1 {
		return EncodeEntry(ps.Items[0])
	}
	arr := make([]any, len(ps.Items))
	for i, p := range ps.Items {
		arr[i] = EncodeEntry(p)
	}
	return arr
}
