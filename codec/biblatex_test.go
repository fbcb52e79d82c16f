package codec_test

import (
	"strings"
	"testing"

	"github.com/reoring/hayabib"
	"github.com/reoring/hayabib/codec"
)

func TestBibLaTeX_Article(t *testing.T) {
	m := hayabib.NewEntryMap()
	m.Set("goedel1931", &hayabib.Entry{
		Type:      "article",
		Title:     hayabib.Text("Über formal unentscheidbare Sätze & Co_"),
		Author:    &hayabib.People{Items: []hayabib.Person{{Name: "Gödel", GivenName: "Kurt", Shape: hayabib.ShapeObject}}},
		Date:      hayabib.DateText("1931-01"),
		PageRange: hayabib.NumericText("173-198"),
		SerialNumber: &hayabib.SerialNumber{Kind: hayabib.SerialSchemes, Schemes: []hayabib.Scheme{
			{Name: "DOI", Value: "10.1007/BF01700692"},
		}},
		Parent: hayabib.Parent(&hayabib.Entry{
			Type:   "periodical",
			Title:  hayabib.Text("Monatshefte für Mathematik"),
			Volume: hayabib.Number(38),
			Issue:  hayabib.Number(1),
		}),
	})
	m.Set("web1", &hayabib.Entry{Type: "web", Title: hayabib.Text("Site"), Date: hayabib.Year(2020)})
	out := codec.BibLaTeX(m)
	for _, want := range []string{
		"@article{goedel1931",
		`title = {Über formal unentscheidbare Sätze \& Co\_}`,
		"author = {Gödel, Kurt}",
		"date = {1931-01}",
		"pages = {173-198}",
		"doi = {10.1007/BF01700692}",
		"journaltitle = {Monatshefte für Mathematik}",
		"volume = {38}",
		"number = {1}",
		"@misc{web1",
		"date = {2020}",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in:\n%s", want, out)
		}
	}
}

func TestBibLaTeX_MultipleAuthors(t *testing.T) {
	m := hayabib.NewEntryMap()
	m.Set("b", &hayabib.Entry{Type: "book", Author: hayabib.Names("Doe", "Roe"),
		Publisher: &hayabib.Publisher{Name: "Acme", Location: "Berlin", Shape: hayabib.ShapeObject}})
	out := codec.BibLaTeX(m)
	if !strings.Contains(out, "author = {Doe and Roe}") || !strings.Contains(out, "publisher = {Acme, Berlin}") {
		t.Fatalf("unexpected output:\n%s", out)
	}
}
