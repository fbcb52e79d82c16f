package hayabib

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Display returns the short form when one is set, otherwise the value.
func (f *FormattableString) Display() string {
	if f == nil {
		return ""
	}
	if f.Short != "" {
		return f.Short
	}
	return f.Value
}

// String returns the long form.
func (f *FormattableString) String() string {
	if f == nil {
		return ""
	}
	return f.Value
}

// Display renders a person as "Prefix Name, Given, Suffix".
func (p Person) Display() string {
	if p.Shape == ShapeScalar {
		return p.Name
	}
	name := p.Name
	if p.Prefix != "" {
		name = p.Prefix + " " + name
	}
	parts := []string{name}
	if p.GivenName != "" {
		parts = append(parts, p.GivenName)
	}
	if p.Suffix != "" {
		parts = append(parts, p.Suffix)
	}
	return strings.Join(parts, ", ")
}

// Display joins all names with "; ".
func (p *People) Display() string {
	if p == nil {
		return ""
	}
	out := make([]string, 0, len(p.Items))
	for _, it := range p.Items {
		out = append(out, it.Display())
	}
	return strings.Join(out, "; ")
}

// NormalizeEntryType lower-cases an entry type. Hayagriva treats the first
// letter case-insensitively.
func NormalizeEntryType(t string) string { return strings.ToLower(strings.TrimSpace(t)) }

// EntryTypeLabel returns a human label such as "Article" for "article".
func EntryTypeLabel(t string) string {
	t = NormalizeEntryType(t)
	if t == "" {
		return ""
	}
	r, n := utf8.DecodeRuneInString(t)
	return string(unicode.ToUpper(r)) + t[n:]
}
