package entries

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/reoring/hayabib"
)

// Duplicate reasons.
const (
	ByDOI   = "doi"
	ByISBN  = "isbn"
	ByTitle = "title"
)

// Group is a set of entries that appear to describe the same work.
type Group struct {
	Reason string   // ByDOI, ByISBN or ByTitle
	Value  string   // the normalized value they share
	Keys   []string // in collection order
}

// Duplicates groups the entries of collection id that share a DOI, an ISBN
// or a normalized title and year.
func (s *Service) Duplicates(ctx context.Context, id string) ([]Group, error) {
	c, err := s.st.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return FindDuplicates(c.Entries), nil
}

// FindDuplicates is Duplicates on an entry map. A title group naming the same
// keys as an identifier group is omitted.
func FindDuplicates(m *hayabib.EntryMap) []Group {
	type bucket struct {
		value string
		keys  []string
	}
	index := map[string]map[string]*bucket{ByDOI: {}, ByISBN: {}, ByTitle: {}}
	var order []struct{ reason, value string }
	add := func(reason, value, key string) {
		if value == "" {
			return
		}
		b, ok := index[reason][value]
		if !ok {
			b = &bucket{value: value}
			index[reason][value] = b
			order = append(order, struct{ reason, value string }{reason, value})
		}
		b.keys = append(b.keys, key)
	}
	for key, e := range m.All() {
		if e.SerialNumber != nil {
			if doi, ok := e.SerialNumber.Lookup(hayabib.SchemeDOI); ok {
				add(ByDOI, NormalizeDOI(doi), key)
			}
			if isbn, ok := e.SerialNumber.Lookup(hayabib.SchemeISBN); ok {
				add(ByISBN, NormalizeISBN(isbn), key)
			}
		}
		add(ByTitle, titleKey(e), key)
	}

	var out []Group
	seen := map[string]bool{}
	for _, reason := range []string{ByDOI, ByISBN, ByTitle} {
		for _, o := range order {
			if o.reason != reason {
				continue
			}
			b := index[reason][o.value]
			if len(b.keys) < 2 {
				continue
			}
			sig := strings.Join(b.keys, "\x00")
			if reason == ByTitle && seen[sig] {
				continue
			}
			seen[sig] = true
			out = append(out, Group{Reason: reason, Value: b.value, Keys: slices.Clone(b.keys)})
		}
	}
	return out
}

// NormalizeDOI lower-cases a DOI and strips resolver prefixes.
func NormalizeDOI(doi string) string {
	d := strings.ToLower(strings.TrimSpace(doi))
	for _, p := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "http://dx.doi.org/", "doi:"} {
		d = strings.TrimPrefix(d, p)
	}
	return strings.TrimSpace(d)
}

// NormalizeISBN keeps the digits and a trailing check character X.
func NormalizeISBN(isbn string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(isbn) {
		if unicode.IsDigit(r) || r == 'X' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// titleKey folds the title to lower-case words and appends the year.
func titleKey(e *hayabib.Entry) string {
	if e.Title == nil {
		return ""
	}
	words := strings.FieldsFunc(strings.ToLower(e.Title.Value), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	if len(words) == 0 {
		return ""
	}
	k := strings.Join(words, " ")
	if e.Date != nil {
		if y, _, _, ok := e.Date.Parts(); ok {
			k += " (" + strconv.FormatInt(y, 10) + ")"
		}
	}
	return k
}
