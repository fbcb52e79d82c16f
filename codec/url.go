package codec

import "github.com/reoring/hayabib"

// decodeURL accepts a string or {value, date?}.
func decodeURL(v any) (*hayabib.URL, bool) {
	if s, ok := v.(string); ok {
		return &hayabib.URL{Value: s, Shape: hayabib.ShapeScalar}, true
	}
	obj, ok := asObject(v)
	if !ok {
		return nil, false
	}
	u := &hayabib.URL{Shape: hayabib.ShapeObject}
	seenValue := false
	for _, m := range obj {
		switch m.Key {
		case "value":
			s, ok := m.Value.(string)
			if !ok {
				return nil, false
			}
			u.Value, seenValue = s, true
		case "date":
			d, ok := decodeDate(m.Value)
			if !ok {
				return nil, false
			}
			u.Date = d
		default:
			return nil, false
		}
	}
	if !seenValue {
		return nil, false
	}
	return u, true
}

func encodeURL(u *hayabib.URL) any {
	if u.Shape == hayabib.ShapeScalar && u.Date == nil {
		return u.Value
	}
	o := Object{{Key: "value", Value: u.Value}}
	if u.Date != nil {
		o = append(o, Member{Key: "date", Value: encodeDate(u.Date)})
	}
	return o
}
