package codec

import "github.com/reoring/hayabib"

// decodeNumeric accepts an integer, a float or a string.
func decodeNumeric(v any) (*hayabib.Numeric, bool) {
	switch t := v.(type) {
	case int64:
		return hayabib.Number(t), true
	case float64:
		return &hayabib.Numeric{Kind: hayabib.NumericFloat, Float: t}, true
	case string:
		return hayabib.NumericText(t), true
	default:
		return nil, false
	}
}

func encodeNumeric(n *hayabib.Numeric) any {
	switch n.Kind {
	case hayabib.NumericInt:
		return n.Int
	case hayabib.NumericFloat:
		return n.Float
	default:
		return n.Text
	}
}
