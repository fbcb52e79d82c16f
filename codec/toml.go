package codec

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/reoring/hayabib"
)

// DeserializeTOML imports a TOML bibliography. Tables keep the order their
// keys appear in the document. Dates become strings ("2006-01-02" for plain
// dates, RFC 3339 otherwise).
func DeserializeTOML(data []byte) (*hayabib.EntryMap, error) {
	var raw map[string]any
	md, err := toml.Decode(string(data), &raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", hayabib.ErrMalformedDocument, err)
	}
	order := make(map[string]int)
	for i, k := range md.Keys() {
		path := keyPath(k)
		if _, ok := order[path]; !ok {
			order[path] = i
		}
	}
	if len(raw) == 0 {
		return hayabib.NewEntryMap(), nil
	}
	return EntriesFromTree(tomlToTree(raw, "", order))
}

// keyPath joins a key. Elements of an array of tables share one path.
func keyPath(k toml.Key) string { return strings.Join(k, "\x00") }

func tomlToTree(v any, path string, order map[string]int) any {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		pos := func(k string) int {
			if i, ok := order[join(path, k)]; ok {
				return i
			}
			return len(order)
		}
		slices.SortFunc(keys, func(a, b string) int {
			if c := cmp.Compare(pos(a), pos(b)); c != 0 {
				return c
			}
			return strings.Compare(a, b)
		})
		o := make(Object, 0, len(keys))
		for _, k := range keys {
			o = append(o, Member{Key: k, Value: tomlToTree(t[k], join(path, k), order)})
		}
		return o
	case []map[string]any:
		arr := make([]any, len(t))
		for i := range t {
			arr[i] = tomlToTree(t[i], path, order)
		}
		return arr
	case []any:
		arr := make([]any, len(t))
		for i := range t {
			arr[i] = tomlToTree(t[i], path, order)
		}
		return arr
	case time.Time:
		if t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0 {
			return t.Format(time.DateOnly)
		}
		return t.Format(time.RFC3339)
	case int:
		return int64(t)
	default:
		return v
	}
}

func join(path, k string) string {
	if path == "" {
		return k
	}
	return path + "\x00" + k
}
