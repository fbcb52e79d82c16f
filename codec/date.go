package codec

import "github.com/reoring/hayabib"

// decodeDate accepts an integer year or a date string. The string is kept
// verbatim; checking it against the date pattern is the validator's job.
func decodeDate(v any) (*hayabib.Date, bool) {
	switch t := v.(type) {
	case int64:
		return hayabib.Year(t), true
	case string:
		return hayabib.DateText(t), true
	default:
		return nil, false
	}
}

func encodeDate(d *hayabib.Date) any {
	if d.Kind == hayabib.DateYear {
		return d.Year
	}
	return d.Text
}
