package i18n

import (
	"strings"
	"sync/atomic"
)

// Translator retrieves localized messages for Issue codes.
// data provides optional values to embed in the message; a "{name}"
// placeholder is replaced by data["name"].
type Translator interface {
	Message(code string, data map[string]string) string
}

var dictionaries = map[string]map[string]string{
	"en": {
		"invalid_type":    "expected {expected}, got {actual}",
		"required":        "required property {property} is missing",
		"unknown_key":     "property {property} is not allowed",
		"too_small":       "must be {op} {limit}",
		"too_big":         "must be {op} {limit}",
		"too_short":       "must have at least {limit} {unit}",
		"too_long":        "must have at most {limit} {unit}",
		"pattern":         "does not match pattern {pattern}",
		"invalid_enum":    "must be one of {allowed}",
		"no_match":        "does not match any allowed form",
		"union_ambiguous": "matches {count} forms where exactly one is allowed",
		"not_allowed":     "matches a form that is not allowed",
		"uniqueness":      "items {first} and {second} are equal",
		"reserved":        "{value} is a reserved identifier",
		"unresolved_ref":  "schema reference {ref} cannot be followed",
		"const":           "must equal {expected}",
	},
	"ja": {
		"invalid_type":    "型が不正です ({expected} が必要ですが {actual} です)",
		"required":        "必須プロパティ {property} がありません",
		"unknown_key":     "プロパティ {property} は許可されていません",
		"too_small":       "{limit} 以上である必要があります",
		"too_big":         "{limit} 以下である必要があります",
		"too_short":       "短すぎます (最小 {limit})",
		"too_long":        "長すぎます (最大 {limit})",
		"pattern":         "パターン {pattern} に一致しません",
		"invalid_enum":    "{allowed} のいずれかである必要があります",
		"no_match":        "許可された形式のいずれにも一致しません",
		"union_ambiguous": "{count} 個の形式に一致します (一つだけ許可されます)",
		"not_allowed":     "許可されていない形式に一致します",
		"uniqueness":      "要素 {first} と {second} が重複しています",
		"reserved":        "{value} は予約済みの識別子です",
		"unresolved_ref":  "スキーマ参照 {ref} を解決できません",
		"const":           "{expected} である必要があります",
	},
}

// dictTranslator is the built-in dictionary-based Translator.
type dictTranslator struct{ lang string }

func (t dictTranslator) Message(code string, data map[string]string) string {
	tmpl, ok := dictionaries[t.lang][code]
	if !ok {
		tmpl, ok = dictionaries["en"][code]
	}
	if !ok {
		return code
	}
	return expand(tmpl, data)
}

func expand(tmpl string, data map[string]string) string {
	if !strings.Contains(tmpl, "{") {
		return tmpl
	}
	pairs := make([]string, 0, 2*len(data))
	for k, v := range data {
		pairs = append(pairs, "{"+k+"}", v)
	}
	out := strings.NewReplacer(pairs...).Replace(tmpl)
	// drop placeholders nobody filled, with the space before them
	for {
		i := strings.IndexByte(out, '{')
		if i < 0 {
			return out
		}
		j := strings.IndexByte(out[i:], '}')
		if j < 0 {
			return out
		}
		start := i
		if start > 0 && out[start-1] == ' ' {
			start--
		}
		out = out[:start] + out[i+j+1:]
	}
}

type holder struct{ tr Translator }

var current atomic.Value // holder

func init() { current.Store(holder{dictTranslator{lang: "en"}}) }

// SetLanguage switches the built-in Translator language ("en"/"ja").
func SetLanguage(lang string) {
	if _, ok := dictionaries[lang]; !ok {
		lang = "en"
	}
	current.Store(holder{dictTranslator{lang: lang}})
}

// SetTranslator replaces the Translator implementation (not limited to the
// dictionary version). nil restores the English dictionary.
func SetTranslator(tr Translator) {
	if tr == nil {
		tr = dictTranslator{lang: "en"}
	}
	current.Store(holder{tr})
}

// T fetches a message for the given code using the current Translator.
func T(code string, data map[string]string) string {
	return current.Load().(holder).tr.Message(code, data)
}
