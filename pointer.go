package hayabib

import (
	"net/url"
	"strconv"
	"strings"
)

// EscapePointer escapes one JSON Pointer reference token.
func EscapePointer(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "~", "~0"), "/", "~1")
}

// unescapePointer reverses EscapePointer.
func unescapePointer(s string) string {
	return strings.ReplaceAll(strings.ReplaceAll(s, "~1", "/"), "~0", "~")
}

// Lookup resolves a JSON Pointer against a tree of map[string]any and []any.
// Tokens may also be percent-encoded, as they are in URI fragments. It
// returns the value and the decoded tokens that led to it.
func Lookup(v any, pointer string) (any, []string, bool) {
	if pointer == "" {
		return v, nil, true
	}
	if !strings.HasPrefix(pointer, "/") {
		return nil, nil, false
	}
	toks := strings.Split(pointer[1:], "/")
	keys := make([]string, 0, len(toks))
	for _, tok := range toks {
		switch t := v.(type) {
		case map[string]any:
			key, ok := memberKey(t, tok)
			if !ok {
				return nil, nil, false
			}
			v = t[key]
			keys = append(keys, key)
		case []any:
			i, err := strconv.Atoi(tok)
			if err != nil || i < 0 || i >= len(t) {
				return nil, nil, false
			}
			v = t[i]
			keys = append(keys, tok)
		default:
			return nil, nil, false
		}
	}
	return v, keys, true
}

func memberKey(m map[string]any, tok string) (string, bool) {
	if k := unescapePointer(tok); hasKey(m, k) {
		return k, true
	}
	if u, err := url.PathUnescape(tok); err == nil {
		if k := unescapePointer(u); hasKey(m, k) {
			return k, true
		}
	}
	return "", false
}

func hasKey(m map[string]any, k string) bool {
	_, ok := m[k]
	return ok
}

// JoinPointer builds a JSON Pointer from raw tokens.
func JoinPointer(keys []string) string {
	var b strings.Builder
	for _, k := range keys {
		b.WriteByte('/')
		b.WriteString(EscapePointer(k))
	}
	return b.String()
}
