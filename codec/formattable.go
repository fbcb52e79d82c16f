package codec

import "github.com/reoring/hayabib"

// decodeFormattable accepts a string or {value, short?, verbatim?}.
func decodeFormattable(v any) (*hayabib.FormattableString, bool) {
	if s, ok := v.(string); ok {
		return &hayabib.FormattableString{Value: s, Shape: hayabib.ShapeScalar}, true
	}
	obj, ok := asObject(v)
	if !ok {
		return nil, false
	}
	f := &hayabib.FormattableString{Shape: hayabib.ShapeObject}
	seenValue := false
	for _, m := range obj {
		switch m.Key {
		case "value":
			s, ok := m.Value.(string)
			if !ok {
				return nil, false
			}
			f.Value, seenValue = s, true
		case "short":
			s, ok := m.Value.(string)
			if !ok || s == "" {
				return nil, false
			}
			f.Short = s
		case "verbatim":
			b, ok := m.Value.(bool)
			if !ok {
				return nil, false
			}
			f.Verbatim = &b
		default:
			return nil, false
		}
	}
	if !seenValue {
		return nil, false
	}
	return f, true
}

func encodeFormattable(f *hayabib.FormattableString) any {
	if f.Shape == hayabib.ShapeScalar && f.Short == "" && f.Verbatim == nil {
		return f.Value
	}
	o := Object{{Key: "value", Value: f.Value}}
	if f.Short != "" {
		o = append(o, Member{Key: "short", Value: f.Short})
	}
	if f.Verbatim != nil {
		o = append(o, Member{Key: "verbatim", Value: *f.Verbatim})
	}
	return o
}
