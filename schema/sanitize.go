package schema

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/reoring/hayabib"
)

// Keywords whose value is a map of names to subschemas.
var schemaMaps = map[string]bool{
	"properties":        true,
	"patternProperties": true,
	"definitions":       true,
	"$defs":             true,
	"dependentSchemas":  true,
}

// Keywords whose value is a list of subschemas.
var schemaLists = map[string]bool{"allOf": true, "anyOf": true, "oneOf": true, "prefixItems": true}

// Keywords whose value is a single subschema.
var schemaValues = map[string]bool{
	"not":                   true,
	"if":                    true,
	"then":                  true,
	"else":                  true,
	"additionalProperties":  true,
	"additionalItems":       true,
	"propertyNames":         true,
	"contains":              true,
	"unevaluatedProperties": true,
	"unevaluatedItems":      true,
	"contentSchema":         true,
}

var knownDrafts = []string{
	"http://json-schema.org/draft-04/schema",
	"http://json-schema.org/draft-06/schema",
	"http://json-schema.org/draft-07/schema",
	"https://json-schema.org/draft/2019-09/schema",
	"https://json-schema.org/draft/2020-12/schema",
}

// IsSchemaMap reports whether keyword holds a map of named subschemas.
func IsSchemaMap(keyword string) bool { return schemaMaps[keyword] || keyword == "dependencies" }

// IsSchemaList reports whether keyword holds a list of subschemas.
func IsSchemaList(keyword string) bool { return schemaLists[keyword] }

// IsSchemaValue reports whether keyword holds one subschema. References
// count: keyword locations step through them into the target.
func IsSchemaValue(keyword string) bool {
	switch keyword {
	case "items", "$ref", "$dynamicRef", "$recursiveRef":
		return true
	}
	return schemaValues[keyword]
}

type sanitizer struct {
	root     map[string]any
	warnings []string
}

// sanitize copies root, leaving out what the compiler cannot work with:
// identifiers that would rebase references, unknown drafts, references that
// point nowhere and patterns Go cannot compile. Each of those is reported
// and then behaves as match-all.
func sanitize(root map[string]any) (map[string]any, []string) {
	s := &sanitizer{root: root}
	out, _ := s.schema(root, "#", true).(map[string]any)
	return out, s.warnings
}

func (s *sanitizer) warnf(format string, args ...any) {
	s.warnings = append(s.warnings, fmt.Sprintf(format, args...))
}

func (s *sanitizer) schema(v any, at string, top bool) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	out := make(map[string]any, len(m))
	for k, val := range m {
		here := at + "/" + hayabib.EscapePointer(k)
		switch {
		case k == "$id":
			// references resolve against the document itself
		case k == "$schema":
			if top && knownDraft(val) {
				out[k] = val
			} else if top {
				s.warnf("%s: unknown draft %v; using draft-07", here, val)
			}
		case k == "$ref":
			ref, _ := val.(string)
			if !s.resolves(ref) {
				s.warnf("%s: $ref %q does not resolve; treated as match-all", here, ref)
				continue
			}
			out[k] = val
		case k == "pattern":
			if p, isString := val.(string); isString {
				if _, err := regexp.Compile(p); err != nil {
					s.warnf("%s: pattern %q is not supported (%v); treated as match-all", here, p, err)
					continue
				}
			}
			out[k] = val
		case k == "patternProperties":
			out[k] = s.patterns(val, here)
		case schemaMaps[k], k == "dependencies":
			out[k] = s.named(val, here)
		case schemaLists[k]:
			out[k] = s.list(val, here)
		case k == "items":
			if _, isList := val.([]any); isList {
				out[k] = s.list(val, here)
			} else {
				out[k] = s.schema(val, here, false)
			}
		case schemaValues[k]:
			out[k] = s.schema(val, here, false)
		default:
			out[k] = val
		}
	}
	return out
}

// named copies a map of subschemas. Non-schema members (string lists under
// "dependencies") pass through.
func (s *sanitizer) named(v any, at string) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	out := make(map[string]any, len(m))
	for k, sub := range m {
		out[k] = s.schema(sub, at+"/"+hayabib.EscapePointer(k), false)
	}
	return out
}

func (s *sanitizer) patterns(v any, at string) any {
	m, ok := v.(map[string]any)
	if !ok {
		return v
	}
	out := make(map[string]any, len(m))
	for p, sub := range m {
		if _, err := regexp.Compile(p); err != nil {
			s.warnf("%s: pattern %q is not supported (%v); property pattern ignored", at, p, err)
			continue
		}
		out[p] = s.schema(sub, at+"/"+hayabib.EscapePointer(p), false)
	}
	return out
}

func (s *sanitizer) list(v any, at string) any {
	arr, ok := v.([]any)
	if !ok {
		return v
	}
	out := make([]any, len(arr))
	for i, sub := range arr {
		out[i] = s.schema(sub, fmt.Sprintf("%s/%d", at, i), false)
	}
	return out
}

// resolves reports whether ref is a fragment that points into the document.
func (s *sanitizer) resolves(ref string) bool {
	frag, ok := strings.CutPrefix(ref, "#")
	if !ok {
		return false
	}
	if u, err := url.PathUnescape(frag); err == nil && u == "" {
		return true
	}
	_, _, ok = hayabib.Lookup(s.root, frag)
	return ok
}

func knownDraft(v any) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	s = strings.TrimSuffix(s, "#")
	for _, d := range knownDrafts {
		if s == d {
			return true
		}
	}
	return false
}
