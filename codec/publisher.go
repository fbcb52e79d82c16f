package codec

import "github.com/reoring/hayabib"

// decodePublisher accepts a name string or {name, location?}.
func decodePublisher(v any) (*hayabib.Publisher, bool) {
	if s, ok := v.(string); ok {
		return &hayabib.Publisher{Name: s, Shape: hayabib.ShapeScalar}, true
	}
	obj, ok := asObject(v)
	if !ok {
		return nil, false
	}
	p := &hayabib.Publisher{Shape: hayabib.ShapeObject}
	seenName := false
	for _, m := range obj {
		s, ok := m.Value.(string)
		if !ok {
			return nil, false
		}
		switch m.Key {
		case "name":
			p.Name, seenName = s, true
		case "location":
			if s == "" {
				return nil, false
			}
			p.Location = s
		default:
			return nil, false
		}
	}
	if !seenName {
		return nil, false
	}
	return p, true
}

func encodePublisher(p *hayabib.Publisher) any {
	if p.Shape == hayabib.ShapeScalar && p.Location == "" {
		return p.Name
	}
	o := Object{{Key: "name", Value: p.Name}}
	if p.Location != "" {
		o = append(o, Member{Key: "location", Value: p.Location})
	}
	return o
}
