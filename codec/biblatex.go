package codec

import (
	"fmt"
	"strings"

	"github.com/reoring/hayabib"
)

var biblatexTypes = map[string]string{
	"article":     "article",
	"book":        "book",
	"chapter":     "incollection",
	"periodical":  "periodical",
	"report":      "report",
	"thesis":      "thesis",
	"proceedings": "proceedings",
}

var latexEscaper = strings.NewReplacer(
	`\`, `\textbackslash{}`,
	"&", `\&`,
	"#", `\#`,
	"$", `\$`,
	"%", `\%`,
	"_", `\_`,
	"{", `\{`,
	"}", `\}`,
	"~", `\~{}`,
	"^", `\^{}`,
)

func escapeLaTeX(s string) string { return latexEscaper.Replace(s) }

// BibLaTeX renders the entries as BibLaTeX records. Types without a direct
// counterpart become @misc; the container title, volume and number of an
// article come from its first parent.
func BibLaTeX(m *hayabib.EntryMap) string {
	var b strings.Builder
	for key, e := range m.All() {
		writeBibLaTeX(&b, key, e)
	}
	return b.String()
}

func writeBibLaTeX(b *strings.Builder, key string, e *hayabib.Entry) {
	typ := hayabib.NormalizeEntryType(e.EffectiveType())
	bt, ok := biblatexTypes[typ]
	if !ok {
		bt = "misc"
	}
	fmt.Fprintf(b, "@%s{%s", bt, key)
	field := func(name, value string) {
		if value != "" {
			fmt.Fprintf(b, ",\n  %s = {%s}", name, value)
		}
	}
	if e.Title != nil {
		field("title", escapeLaTeX(e.Title.String()))
	}
	if e.Author != nil {
		names := make([]string, 0, len(e.Author.Items))
		for _, p := range e.Author.Items {
			names = append(names, biblatexName(p))
		}
		field("author", escapeLaTeX(strings.Join(names, " and ")))
	}
	if e.Date != nil {
		field("date", biblatexDate(*e.Date))
	}
	if e.Publisher != nil {
		pub := e.Publisher.Name
		if e.Publisher.Location != "" {
			pub += ", " + e.Publisher.Location
		}
		field("publisher", escapeLaTeX(pub))
	}
	if e.URL != nil {
		field("url", e.URL.Value)
	}
	if e.SerialNumber != nil {
		if doi, ok := e.SerialNumber.Lookup(hayabib.SchemeDOI); ok {
			field("doi", doi)
		}
	}
	if e.PageRange != nil {
		field("pages", e.PageRange.String())
	}
	if typ == "article" {
		if ps := e.Parents(); len(ps) > 0 {
			p := ps[0]
			if p.Title != nil {
				field("journaltitle", escapeLaTeX(p.Title.String()))
			}
			if p.Volume != nil {
				field("volume", p.Volume.String())
			}
			if p.Issue != nil {
				field("number", p.Issue.String())
			}
		}
	}
	b.WriteString("\n}\n\n")
}

// biblatexName renders "Last, First" for structured names and the name
// string as is otherwise.
func biblatexName(p hayabib.Person) string {
	last := p.Name
	if p.Prefix != "" {
		last = p.Prefix + " " + last
	}
	if p.GivenName == "" {
		return last
	}
	if p.Suffix != "" {
		return last + ", " + p.Suffix + ", " + p.GivenName
	}
	return last + ", " + p.GivenName
}

func biblatexDate(d hayabib.Date) string {
	y, mon, day, ok := d.Parts()
	if !ok {
		return ""
	}
	switch {
	case mon != 0 && day != 0:
		return fmt.Sprintf("%04d-%02d-%02d", y, mon, day)
	case mon != 0:
		return fmt.Sprintf("%04d-%02d", y, mon)
	default:
		return fmt.Sprintf("%04d", y)
	}
}
