package codec

import "github.com/reoring/hayabib"

// decodePerson accepts a name string or {name, given-name?, prefix?, suffix?, alias?}.
func decodePerson(v any) (hayabib.Person, bool) {
	if s, ok := v.(string); ok {
		return hayabib.Person{Name: s, Shape: hayabib.ShapeScalar}, true
	}
	obj, ok := asObject(v)
	if !ok {
		return hayabib.Person{}, false
	}
	p := hayabib.Person{Shape: hayabib.ShapeObject}
	seenName := false
	for _, m := range obj {
		s, ok := m.Value.(string)
		if !ok {
			return hayabib.Person{}, false
		}
		var dst *string
		switch m.Key {
		case "name":
			p.Name, seenName = s, true
			continue
		case "given-name":
			dst = &p.GivenName
		case "prefix":
			dst = &p.Prefix
		case "suffix":
			dst = &p.Suffix
		case "alias":
			dst = &p.Alias
		default:
			return hayabib.Person{}, false
		}
		// An empty optional part would not survive encoding.
		if s == "" {
			return hayabib.Person{}, false
		}
		*dst = s
	}
	return p, seenName
}

func encodePerson(p hayabib.Person) any {
	if p.Shape == hayabib.ShapeScalar && p.GivenName == "" && p.Prefix == "" && p.Suffix == "" && p.Alias == "" {
		return p.Name
	}
	o := Object{{Key: "name", Value: p.Name}}
	for _, part := range []Member{
		{Key: "given-name", Value: p.GivenName},
		{Key: "prefix", Value: p.Prefix},
		{Key: "suffix", Value: p.Suffix},
		{Key: "alias", Value: p.Alias},
	} {
		if part.Value != "" {
			o = append(o, part)
		}
	}
	return o
}

// decodePeople accepts one person or a sequence of them.
func decodePeople(v any) (*hayabib.People, bool) {
	if arr, ok := v.([]any); ok {
		ps := &hayabib.People{List: true, Items: make([]hayabib.Person, 0, len(arr))}
		for _, it := range arr {
			p, ok := decodePerson(it)
			if !ok {
				return nil, false
			}
			ps.Items = append(ps.Items, p)
		}
		return ps, true
	}
	p, ok := decodePerson(v)
	if !ok {
		return nil, false
	}
	return &hayabib.People{Items: []hayabib.Person{p}}, true
}

func encodePeople(ps *hayabib.People) any {
	if !ps.List && len(ps.Items) == 1 {
		return encodePerson(ps.Items[0])
	}
	arr := make([]any, len(ps.Items))
	for i, p := range ps.Items {
		arr[i] = encodePerson(p)
	}
	return arr
}
