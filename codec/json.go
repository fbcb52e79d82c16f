package codec

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"

	json "github.com/goccy/go-json"

	"github.com/reoring/hayabib"
)

// DeserializeJSON parses a JSON bibliography. Object key order is kept by
// reading tokens instead of unmarshalling into maps.
func DeserializeJSON(data []byte) (*hayabib.EntryMap, error) {
	root, err := ParseJSON(data)
	if err != nil {
		return nil, err
	}
	return EntriesFromTree(root)
}

// SerializeJSON renders an entry map as indented JSON in map order.
func SerializeJSON(m *hayabib.EntryMap) ([]byte, error) {
	return EncodeJSON(EntriesToTree(m))
}

// ParseJSON decodes one JSON value into a tree. Integral numbers become
// int64, others float64. Empty input yields nil.
func ParseJSON(data []byte) (any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", hayabib.ErrMalformedDocument, err)
	}
	v, err := readJSON(dec, tok, 0)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", hayabib.ErrMalformedDocument, err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after JSON value", hayabib.ErrMalformedDocument)
	}
	return v, nil
}

func readJSON(dec *json.Decoder, tok json.Token, depth int) (any, error) {
	if depth > MaxDepth {
		return nil, fmt.Errorf("nesting deeper than %d", MaxDepth)
	}
	switch t := tok.(type) {
	case json.Delim:
		switch t {
		case '{':
			return readJSONObject(dec, depth)
		case '[':
			arr := []any{}
			for {
				next, err := dec.Token()
				if err != nil {
					return nil, err
				}
				if d, ok := next.(json.Delim); ok && d == ']' {
					return arr, nil
				}
				v, err := readJSON(dec, next, depth+1)
				if err != nil {
					return nil, err
				}
				arr = append(arr, v)
			}
		default:
			return nil, fmt.Errorf("unexpected delimiter %q", rune(t))
		}
	case json.Number:
		if i, err := strconv.ParseInt(string(t), 10, 64); err == nil {
			return i, nil
		}
		f, err := strconv.ParseFloat(string(t), 64)
		if err != nil {
			return nil, err
		}
		return f, nil
	case float64:
		return t, nil
	case string, bool, nil:
		return t, nil
	default:
		return nil, fmt.Errorf("unexpected token %T", tok)
	}
}

func readJSONObject(dec *json.Decoder, depth int) (Object, error) {
	out := Object{}
	seen := make(map[string]bool)
	for {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		if d, ok := tok.(json.Delim); ok && d == '}' {
			return out, nil
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("object key must be a string, got %T", tok)
		}
		if seen[key] {
			return nil, &DuplicateKeyError{Key: key}
		}
		seen[key] = true
		next, err := dec.Token()
		if err != nil {
			return nil, err
		}
		v, err := readJSON(dec, next, depth+1)
		if err != nil {
			return nil, err
		}
		out = append(out, Member{Key: key, Value: v})
	}
}

// EncodeJSON renders a tree as two-space indented JSON.
func EncodeJSON(v any) ([]byte, error) {
	var compact bytes.Buffer
	if err := writeJSON(&compact, v, 0); err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, compact.Bytes(), "", "  "); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}

func writeJSON(buf *bytes.Buffer, v any, depth int) error {
	if depth > MaxDepth {
		return fmt.Errorf("%w: nesting deeper than %d", hayabib.ErrMalformedDocument, MaxDepth)
	}
	switch t := v.(type) {
	case Object:
		buf.WriteByte('{')
		for i, m := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSONString(buf, m.Key); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := writeJSON(buf, m.Value, depth+1); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	case map[string]any:
		o, _ := asObject(t)
		return writeJSON(buf, o, depth)
	case []any:
		buf.WriteByte('[')
		for i, it := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeJSON(buf, it, depth+1); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case string:
		return writeJSONString(buf, t)
	case bool:
		buf.WriteString(strconv.FormatBool(t))
	case int:
		buf.WriteString(strconv.Itoa(t))
	case int64:
		buf.WriteString(strconv.FormatInt(t, 10))
	case float64:
		if math.IsInf(t, 0) || math.IsNaN(t) {
			return fmt.Errorf("%w: %v has no JSON form", hayabib.ErrMalformedDocument, t)
		}
		buf.WriteString(formatFloat(t))
	case nil:
		buf.WriteString("null")
	default:
		return fmt.Errorf("%w: cannot encode %T", hayabib.ErrMalformedDocument, v)
	}
	return nil
}

func writeJSONString(buf *bytes.Buffer, s string) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	buf.Write(b)
	return nil
}
