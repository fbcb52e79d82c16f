package validate

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"regexp"
	"slices"
	"strconv"
	"strings"

	json "github.com/goccy/go-json"
	jschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/reoring/hayabib"
	"github.com/reoring/hayabib/codec"
	"github.com/reoring/hayabib/i18n"
	"github.com/reoring/hayabib/schema"
)

// Validator scopes.
const (
	ScopeCollection = "collection"
	ScopeEntry      = "entry"
)

// Validator checks plain JSON-like values against one compiled schema.
type Validator struct {
	doc    *schema.Document
	schema *jschema.Schema
	scope  string
}

// Result is the outcome of one validation. Errors is empty when Valid.
type Result struct {
	Valid  bool
	Errors hayabib.Issues
}

// Document returns the schema document the validator was compiled from.
func (v *Validator) Document() *schema.Document { return v.doc }

// Scope is ScopeCollection or ScopeEntry.
func (v *Validator) Scope() string { return v.scope }

// Validate checks value. Ordered codec trees are accepted as well as plain
// maps. Issue paths are JSON pointers relative to value, sorted.
func (v *Validator) Validate(value any) Result {
	inst := jsonValue(codec.Plain(value))
	err := v.schema.Validate(inst)
	if err == nil {
		return Result{Valid: true}
	}
	var ve *jschema.ValidationError
	if !errors.As(err, &ve) {
		return Result{Errors: hayabib.Issues{{Code: hayabib.CodeInvalidType, Message: err.Error()}}}
	}
	m := &mapper{tree: v.doc.Tree(), inst: inst}
	m.collect(ve)
	if len(m.out) == 0 {
		path, _ := m.instance(ve.InstanceLocation)
		m.addMessage(path, hayabib.CodeNotAllowed, ve.Message)
	}
	slices.SortStableFunc(m.out, func(a, b hayabib.Issue) int {
		if c := strings.Compare(a.Path, b.Path); c != 0 {
			return c
		}
		return strings.Compare(a.Code, b.Code)
	})
	return Result{Errors: m.out}
}

// jsonValue converts numbers to float64, the form decoded JSON takes.
func jsonValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(t))
		for k, vv := range t {
			out[k] = jsonValue(vv)
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, vv := range t {
			out[i] = jsonValue(vv)
		}
		return out
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case float32:
		return float64(t)
	case json.Number:
		if f, err := t.Float64(); err == nil {
			return f
		}
		return t.String()
	default:
		return v
	}
}

// mapper flattens a validation error tree into issues.
type mapper struct {
	tree map[string]any
	inst any
	out  hayabib.Issues
}

func (m *mapper) collect(ve *jschema.ValidationError) {
	kw := keywordOf(ve.KeywordLocation)
	// contains lists every item that missed; the array is what failed
	if len(ve.Causes) == 0 || kw == "contains" {
		m.leaf(ve, kw)
		return
	}
	if kw == "oneOf" || kw == "anyOf" {
		m.union(ve)
		return
	}
	for _, c := range ve.Causes {
		m.collect(c)
	}
}

// union reports a oneOf or anyOf that no branch accepted. Branches whose
// type does not fit the value are set aside. One remaining branch reports
// its own errors; none left is a type mismatch; several is no_match.
func (m *mapper) union(ve *jschema.ValidationError) {
	var open []*jschema.ValidationError
	var expected []string
	for _, c := range ve.Causes {
		types, rejected := m.typeRejection(c, ve.InstanceLocation)
		if !rejected {
			open = append(open, c)
			continue
		}
		for _, t := range types {
			if !slices.Contains(expected, t) {
				expected = append(expected, t)
			}
		}
	}
	path, inst := m.instance(ve.InstanceLocation)
	switch len(open) {
	case 0:
		m.add(path, hayabib.CodeInvalidType, map[string]any{
			"expected": strings.Join(expected, " or "),
			"actual":   typeOf(inst),
		})
	case 1:
		m.collect(open[0])
	default:
		m.add(path, hayabib.CodeNoMatch, nil)
	}
}

// typeRejection reports whether a branch failed only on its type, and the
// types it declared.
func (m *mapper) typeRejection(ve *jschema.ValidationError, loc string) ([]string, bool) {
	for len(ve.Causes) == 1 && ve.InstanceLocation == loc {
		if kw := keywordOf(ve.KeywordLocation); kw == "oneOf" || kw == "anyOf" {
			break
		}
		ve = ve.Causes[0]
	}
	if len(ve.Causes) != 0 || ve.InstanceLocation != loc || keywordOf(ve.KeywordLocation) != "type" {
		return nil, false
	}
	val, _ := m.keywordValue(ve, "type")
	if types := typeNames(val); len(types) > 0 {
		return types, true
	}
	return typesFromMessage(ve.Message), true
}

func (m *mapper) leaf(ve *jschema.ValidationError, kw string) {
	path, inst := m.instance(ve.InstanceLocation)
	switch kw {
	case "required":
		val, _ := m.keywordValue(ve, kw)
		m.missing(path, inst, stringList(val), ve)
		return
	case "dependencies", "dependentRequired":
		val, _ := m.keywordValue(ve, kw)
		m.missing(path, inst, dependents(val, inst), ve)
		return
	case "additionalProperties", "unevaluatedProperties":
		m.unknown(path, inst, ve, kw)
		return
	}
	code, ok := keywordCodes[kw]
	if !ok {
		code = hayabib.CodeNotAllowed
	}
	params, ok := m.params(ve, kw, inst)
	if !ok {
		m.addMessage(path, code, ve.Message)
		return
	}
	m.add(path, code, params)
}

var keywordCodes = map[string]string{
	"type":             hayabib.CodeInvalidType,
	"enum":             hayabib.CodeInvalidEnum,
	"const":            hayabib.CodeConst,
	"pattern":          hayabib.CodePattern,
	"format":           hayabib.CodePattern,
	"minLength":        hayabib.CodeTooShort,
	"minItems":         hayabib.CodeTooShort,
	"minProperties":    hayabib.CodeTooShort,
	"maxLength":        hayabib.CodeTooLong,
	"maxItems":         hayabib.CodeTooLong,
	"maxProperties":    hayabib.CodeTooLong,
	"minimum":          hayabib.CodeTooSmall,
	"exclusiveMinimum": hayabib.CodeTooSmall,
	"maximum":          hayabib.CodeTooBig,
	"exclusiveMaximum": hayabib.CodeTooBig,
	"uniqueItems":      hayabib.CodeUniqueness,
	"oneOf":            hayabib.CodeAmbiguous,
	"anyOf":            hayabib.CodeNoMatch,
	"not":              hayabib.CodeNotAllowed,
}

var units = map[string]string{
	"minLength":     "characters",
	"maxLength":     "characters",
	"minItems":      "items",
	"maxItems":      "items",
	"minProperties": "properties",
	"maxProperties": "properties",
}

var indexes = regexp.MustCompile(`\d+`)

// params fills the message placeholders for kw. It reports false when the
// library message should be used instead.
func (m *mapper) params(ve *jschema.ValidationError, kw string, inst any) (map[string]any, bool) {
	val, found := m.keywordValue(ve, kw)
	switch kw {
	case "type":
		types := typeNames(val)
		if len(types) == 0 {
			types = typesFromMessage(ve.Message)
		}
		return map[string]any{"expected": strings.Join(types, " or "), "actual": typeOf(inst)}, len(types) > 0
	case "oneOf":
		// the validator stops at the second matching branch
		return map[string]any{"count": 2}, true
	case "anyOf", "not":
		return nil, true
	case "uniqueItems":
		ix := indexes.FindAllString(ve.Message, 2)
		if len(ix) < 2 {
			return nil, false
		}
		return map[string]any{"first": ix[0], "second": ix[1]}, true
	}
	if !found {
		return nil, false
	}
	switch kw {
	case "enum":
		list, ok := val.([]any)
		return map[string]any{"allowed": joinValues(list)}, ok
	case "const":
		return map[string]any{"expected": render(val)}, true
	case "pattern":
		return map[string]any{"pattern": render(val)}, true
	case "minLength", "minItems", "minProperties", "maxLength", "maxItems", "maxProperties":
		return map[string]any{"limit": render(val), "unit": units[kw]}, true
	case "minimum", "maximum":
		return map[string]any{"op": map[string]string{"minimum": ">=", "maximum": "<="}[kw], "limit": render(val)}, true
	case "exclusiveMinimum", "exclusiveMaximum":
		if _, isBool := val.(bool); isBool {
			return nil, false
		}
		return map[string]any{"op": map[string]string{"exclusiveMinimum": ">", "exclusiveMaximum": "<"}[kw], "limit": render(val)}, true
	}
	return nil, false
}

// missing reports one required issue per absent property.
func (m *mapper) missing(path string, inst any, names []string, ve *jschema.ValidationError) {
	obj, _ := inst.(map[string]any)
	var absent []string
	for _, n := range names {
		if _, ok := obj[n]; !ok {
			absent = append(absent, n)
		}
	}
	if len(absent) == 0 {
		absent = quoted(ve.Message)
	}
	if len(absent) == 0 {
		m.addMessage(path, hayabib.CodeRequired, ve.Message)
		return
	}
	for _, n := range absent {
		m.add(child(path, n), hayabib.CodeRequired, map[string]any{"property": n})
	}
}

// unknown reports one unknown_key issue per property the schema does not
// cover.
func (m *mapper) unknown(path string, inst any, ve *jschema.ValidationError, kw string) {
	var extra []string
	if obj, ok := inst.(map[string]any); ok && kw == "additionalProperties" {
		node := m.schemaNode(ve, kw)
		props, _ := node["properties"].(map[string]any)
		pats, _ := node["patternProperties"].(map[string]any)
		for _, k := range slices.Sorted(maps.Keys(obj)) {
			if _, ok := props[k]; !ok && !matchesAny(pats, k) {
				extra = append(extra, k)
			}
		}
	}
	if len(extra) == 0 {
		extra = quoted(ve.Message)
	}
	if len(extra) == 0 {
		m.addMessage(path, hayabib.CodeUnknownKey, ve.Message)
		return
	}
	for _, k := range extra {
		m.add(child(path, k), hayabib.CodeUnknownKey, map[string]any{"property": k})
	}
}

// dependents lists the properties that present properties require.
func dependents(deps any, inst any) []string {
	d, _ := deps.(map[string]any)
	obj, _ := inst.(map[string]any)
	var out []string
	for _, k := range slices.Sorted(maps.Keys(d)) {
		if _, present := obj[k]; present {
			out = append(out, stringList(d[k])...)
		}
	}
	return out
}

func matchesAny(patterns map[string]any, key string) bool {
	for p := range patterns {
		if re, err := regexp.Compile(p); err == nil && re.MatchString(key) {
			return true
		}
	}
	return false
}

// instance resolves an instance location to a normalized path and value.
func (m *mapper) instance(loc string) (string, any) {
	v, keys, ok := hayabib.Lookup(m.inst, loc)
	if !ok {
		return loc, nil
	}
	return hayabib.JoinPointer(keys), v
}

// schemaNode returns the schema object holding the keyword kw that ve's
// absolute keyword location names.
func (m *mapper) schemaNode(ve *jschema.ValidationError, kw string) map[string]any {
	_, frag, ok := strings.Cut(ve.AbsoluteKeywordLocation, "#")
	if !ok {
		return nil
	}
	i := strings.LastIndex(frag, "/"+kw)
	if i < 0 {
		return nil
	}
	if rest := frag[i+1+len(kw):]; rest != "" && rest[0] != '/' {
		return nil
	}
	node, _, _ := hayabib.Lookup(m.tree, frag[:i])
	obj, _ := node.(map[string]any)
	return obj
}

func (m *mapper) keywordValue(ve *jschema.ValidationError, kw string) (any, bool) {
	v, ok := m.schemaNode(ve, kw)[kw]
	return v, ok
}

func (m *mapper) add(path, code string, params map[string]any) { m.push(issue(path, code, params)) }

func (m *mapper) addMessage(path, code, msg string) {
	m.push(hayabib.Issue{Path: path, Code: code, Message: msg})
}

// push drops exact repeats; allOf branches can report the same failure.
func (m *mapper) push(it hayabib.Issue) {
	for _, o := range m.out {
		if o.Path == it.Path && o.Code == it.Code && o.Message == it.Message {
			return
		}
	}
	m.out = append(m.out, it)
}

// keywordOf returns the keyword a keyword location ends in, or "" when it
// ends at a subschema (a false schema failed there).
func keywordOf(loc string) string {
	if loc == "" {
		return ""
	}
	toks := strings.Split(strings.TrimPrefix(loc, "/"), "/")
	for i := 0; i < len(toks); i++ {
		kw := toks[i]
		switch {
		case i == len(toks)-1:
			return kw
		case schema.IsSchemaMap(kw), schema.IsSchemaList(kw), kw == "items" && isIndex(toks[i+1]):
			i++ // subschema name or index
			if kw == "dependencies" && (i == len(toks)-1 || i == len(toks)-2 && isIndex(toks[i+1])) {
				return kw // a list of required properties
			}
			if i == len(toks)-1 {
				return ""
			}
		case schema.IsSchemaValue(kw):
		default:
			return kw
		}
	}
	return ""
}

func isIndex(tok string) bool {
	_, err := strconv.Atoi(tok)
	return err == nil
}

var typeList = regexp.MustCompile(`expected (.+?), but got`)

func typesFromMessage(msg string) []string {
	sub := typeList.FindStringSubmatch(msg)
	if sub == nil {
		return nil
	}
	return strings.Split(sub[1], " or ")
}

var quotedName = regexp.MustCompile(`"(?:[^"\\]|\\.)*"`)

// quoted extracts the quoted names of a library message.
func quoted(msg string) []string {
	var out []string
	for _, q := range quotedName.FindAllString(msg, -1) {
		if s, err := strconv.Unquote(q); err == nil {
			out = append(out, s)
		}
	}
	return out
}

func typeNames(v any) []string {
	switch t := v.(type) {
	case string:
		return []string{t}
	case []any:
		return stringList(t)
	default:
		return nil
	}
}

func stringList(v any) []string {
	arr, _ := v.([]any)
	var out []string
	for _, it := range arr {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func child(path, key string) string { return path + "/" + hayabib.EscapePointer(key) }

func issue(path, code string, params map[string]any) hayabib.Issue {
	data := make(map[string]string, len(params))
	for k, v := range params {
		data[k] = fmt.Sprint(v)
	}
	return hayabib.Issue{Path: path, Code: code, Message: i18n.T(code, data), Params: params}
}

// typeOf names the JSON type of v. Integral numbers count as integers.
func typeOf(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case string:
		return "string"
	case float64:
		if !math.IsInf(t, 0) && t == math.Trunc(t) {
			return "integer"
		}
		return "number"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func joinValues(vs []any) string {
	out := make([]string, len(vs))
	for i, v := range vs {
		out[i] = render(v)
	}
	return strings.Join(out, ", ")
}

func render(v any) string {
	switch t := v.(type) {
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case string:
		return t
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}
