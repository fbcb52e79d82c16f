package codec

import "github.com/reoring/hayabib"

// decodeSerial accepts a string, an integer, or an object mapping scheme
// names to string identifiers. Scheme order is kept.
func decodeSerial(v any) (*hayabib.SerialNumber, bool) {
	switch t := v.(type) {
	case string:
		return &hayabib.SerialNumber{Kind: hayabib.SerialText, Text: t}, true
	case int64:
		return &hayabib.SerialNumber{Kind: hayabib.SerialInt, Int: t}, true
	}
	obj, ok := asObject(v)
	if !ok {
		return nil, false
	}
	sn := &hayabib.SerialNumber{Kind: hayabib.SerialSchemes, Schemes: make([]hayabib.Scheme, 0, len(obj))}
	for _, m := range obj {
		s, ok := m.Value.(string)
		if !ok {
			return nil, false
		}
		sn.Schemes = append(sn.Schemes, hayabib.Scheme{Name: m.Key, Value: s})
	}
	return sn, true
}

func encodeSerial(sn *hayabib.SerialNumber) any {
	switch sn.Kind {
	case hayabib.SerialText:
		return sn.Text
	case hayabib.SerialInt:
		return sn.Int
	}
	o := make(Object, 0, len(sn.Schemes))
	for _, sc := range sn.Schemes {
		o = append(o, Member{Key: sc.Name, Value: sc.Value})
	}
	return o
}
