package codec_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/reoring/hayabib"
	"github.com/reoring/hayabib/codec"
)

func ptr[T any](v T) *T { return &v }

func diffMaps(t *testing.T, want, got *hayabib.EntryMap) {
	t.Helper()
	if d := cmp.Diff(want.Keys(), got.Keys()); d != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", d)
	}
	for k, w := range want.All() {
		g, _ := got.Get(k)
		if d := cmp.Diff(w, g); d != "" {
			t.Fatalf("entry %q mismatch (-want +got):\n%s", k, d)
		}
	}
}

func sampleMap() *hayabib.EntryMap {
	m := hayabib.NewEntryMap()
	m.Set("zeta", &hayabib.Entry{
		Type:    "article",
		Title:   &hayabib.FormattableString{Value: "The Long Title", Short: "Short", Verbatim: ptr(true), Shape: hayabib.ShapeObject},
		Author:  &hayabib.People{Items: []hayabib.Person{{Name: "Gödel", GivenName: "Kurt", Shape: hayabib.ShapeObject}}},
		Date:    hayabib.DateText("1931-01-15"),
		Issue:   hayabib.NumericText("42"),
		Volume:  hayabib.Number(38),
		Edition: &hayabib.Numeric{Kind: hayabib.NumericFloat, Float: 2.5},
		SerialNumber: &hayabib.SerialNumber{Kind: hayabib.SerialSchemes, Schemes: []hayabib.Scheme{
			{Name: "doi", Value: "10.1007/BF01700692"},
			{Name: "issn", Value: "0026-9255"},
		}},
		URL:    &hayabib.URL{Value: "https://example.org", Date: hayabib.DateText("2020-01-01"), Shape: hayabib.ShapeObject},
		Parent: hayabib.Parent(&hayabib.Entry{Type: "periodical", Title: hayabib.Text("Monatshefte")}),
		Extra:  map[string]any{"custom": "x", "tags": []any{"a", int64(1)}},
	})
	m.Set("alpha", &hayabib.Entry{
		Type:         "book",
		Title:        hayabib.Text("2001"),
		Author:       hayabib.Names("Doe, Jane", "Roe, Rick"),
		Date:         hayabib.Year(-300),
		Publisher:    &hayabib.Publisher{Name: "Acme", Location: "Berlin", Shape: hayabib.ShapeObject},
		Affiliated:   []hayabib.Affiliated{{Role: "translator", Names: *hayabib.Names("Smith")}},
		PageTotal:    ptr(int64(320)),
		Language:     ptr("en-US"),
		SerialNumber: &hayabib.SerialNumber{Kind: hayabib.SerialInt, Int: 123},
		URL:          &hayabib.URL{Value: "true"},
	})
	m.Set("middle", &hayabib.Entry{Type: "misc", Date: hayabib.DateText("1931")})
	return m
}

func TestYAML_RoundTrip(t *testing.T) {
	want := sampleMap()
	data, err := codec.Serialize(want)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	got, err := codec.Deserialize(data)
	if err != nil {
		t.Fatalf("deserialize: %v\n%s", err, data)
	}
	diffMaps(t, want, got)
}

func TestYAML_ScalarsStayScalars(t *testing.T) {
	in := []byte(`goedel:
  type: article
  title: On Formalism
  date: 1931
  serial-number: "10.1000/x"
  issue: "7"
  volume: 7
`)
	m, err := codec.Deserialize(in)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	e, _ := m.Get("goedel")
	if e.Title.Shape != hayabib.ShapeScalar || e.Title.Value != "On Formalism" {
		t.Fatalf("title: %+v", e.Title)
	}
	if e.Date.Kind != hayabib.DateYear || e.Date.Year != 1931 {
		t.Fatalf("date: %+v", e.Date)
	}
	if e.SerialNumber.Kind != hayabib.SerialText {
		t.Fatalf("serial: %+v", e.SerialNumber)
	}
	if e.Issue.Kind != hayabib.NumericString || e.Volume.Kind != hayabib.NumericInt {
		t.Fatalf("issue=%+v volume=%+v", e.Issue, e.Volume)
	}
	out, err := codec.Serialize(m)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	s := string(out)
	if !strings.Contains(s, "title: On Formalism\n") {
		t.Fatalf("title upgraded to object:\n%s", s)
	}
	if !strings.Contains(s, "date: 1931\n") {
		t.Fatalf("integer date lost:\n%s", s)
	}
	if !strings.Contains(s, `issue: "7"`) {
		t.Fatalf("string issue not quoted:\n%s", s)
	}
}

func TestYAML_TimestampStaysString(t *testing.T) {
	m, err := codec.Deserialize([]byte("a:\n  type: misc\n  date: 1931-01-15\n"))
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	e, _ := m.Get("a")
	if e.Date.Kind != hayabib.DateString || e.Date.Text != "1931-01-15" {
		t.Fatalf("date: %+v", e.Date)
	}
}

func TestYAML_NestedParentsKeepDepth(t *testing.T) {
	in := []byte(`chapter:
  type: chapter
  title: Inner
  parent:
    type: book
    title: Middle
    parent:
      type: book
      title: Outer Series
`)
	m, err := codec.Deserialize(in)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	data, err := codec.Serialize(m)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	back, err := codec.Deserialize(data)
	if err != nil {
		t.Fatalf("deserialize again: %v", err)
	}
	diffMaps(t, m, back)
	e, _ := back.Get("chapter")
	p1 := e.Parents()
	if len(p1) != 1 || p1[0].Title.Value != "Middle" {
		t.Fatalf("first parent: %+v", p1)
	}
	p2 := p1[0].Parents()
	if len(p2) != 1 || p2[0].Title.Value != "Outer Series" {
		t.Fatalf("second parent: %+v", p2)
	}
	if p2[0].Parent != nil {
		t.Fatalf("unexpected third level")
	}
}

func TestYAML_ParentListWithoutType(t *testing.T) {
	m, err := codec.Deserialize([]byte("a:\n  type: article\n  parent:\n    - title: P1\n    - title: P2\n"))
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	e, _ := m.Get("a")
	if !e.Parent.List || len(e.Parent.Items) != 2 {
		t.Fatalf("parents: %+v", e.Parent)
	}
	if got := e.Parent.Items[1].EffectiveType(); got != hayabib.DefaultEntryType {
		t.Fatalf("effective type = %q", got)
	}
}

func TestYAML_MalformedRoot(t *testing.T) {
	for _, in := range []string{"- a\n- b\n", "42\n", "just text\n", "a: 3\n", "a: [1]\n"} {
		_, err := codec.Deserialize([]byte(in))
		if !errors.Is(err, hayabib.ErrMalformedDocument) {
			t.Fatalf("%q: expected ErrMalformedDocument, got %v", in, err)
		}
	}
}

func TestYAML_EmptyInput(t *testing.T) {
	for _, in := range []string{"", "\n", "~\n"} {
		m, err := codec.Deserialize([]byte(in))
		if err != nil {
			t.Fatalf("%q: %v", in, err)
		}
		if m.Len() != 0 {
			t.Fatalf("%q: expected empty map, got %d", in, m.Len())
		}
	}
}

func TestYAML_DuplicateKey(t *testing.T) {
	_, err := codec.Deserialize([]byte("a:\n  type: misc\na:\n  type: book\n"))
	if !errors.Is(err, hayabib.ErrMalformedDocument) {
		t.Fatalf("expected ErrMalformedDocument, got %v", err)
	}
	var de *codec.DuplicateKeyError
	if !errors.As(err, &de) {
		t.Fatalf("expected DuplicateKeyError, got %T %v", err, err)
	}
	if de.Key != "a" || de.FirstLine != 1 || de.Line != 3 {
		t.Fatalf("unexpected positions: %+v", de)
	}
}

func TestYAML_MergeKeys(t *testing.T) {
	in := []byte(`base: &b
  type: book
  publisher: Springer
x:
  <<: *b
  type: anthology
  title: T
`)
	m, err := codec.Deserialize(in)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	x, _ := m.Get("x")
	if x.Type != "anthology" || x.Publisher == nil || x.Publisher.Name != "Springer" || x.Title.Value != "T" {
		t.Fatalf("merged entry: %+v", x)
	}
}

func TestYAML_UnknownShapesGoToExtra(t *testing.T) {
	in := []byte("a:\n  type: misc\n  title: [1, 2]\n  page-total: many\n  flavour: {sweet: true}\n")
	m, err := codec.Deserialize(in)
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	e, _ := m.Get("a")
	if e.Title != nil || e.PageTotal != nil {
		t.Fatalf("expected title and page-total in Extra: %+v", e)
	}
	want := map[string]any{
		"title":      []any{int64(1), int64(2)},
		"page-total": "many",
		"flavour":    map[string]any{"sweet": true},
	}
	if d := cmp.Diff(want, e.Extra); d != "" {
		t.Fatalf("extra mismatch (-want +got):\n%s", d)
	}
	data, err := codec.Serialize(m)
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}
	back, err := codec.Deserialize(data)
	if err != nil {
		t.Fatalf("deserialize again: %v", err)
	}
	diffMaps(t, m, back)
}

func TestYAML_KeyOrder(t *testing.T) {
	m, err := codec.Deserialize([]byte("c: {type: misc}\na: {type: misc}\nb: {type: misc}\n"))
	if err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if d := cmp.Diff([]string{"c", "a", "b"}, m.Keys()); d != "" {
		t.Fatalf("order (-want +got):\n%s", d)
	}
	data, _ := codec.Serialize(m)
	if !strings.HasPrefix(string(data), "c:") {
		t.Fatalf("first key not c:\n%s", data)
	}
}

func TestYAML_DepthLimit(t *testing.T) {
	var b strings.Builder
	b.WriteString("a:\n  type: misc\n")
	indent := "  "
	for i := 0; i < codec.MaxDepth+5; i++ {
		b.WriteString(indent + "parent:\n")
		indent += "  "
	}
	b.WriteString(indent + "title: deep\n")
	_, err := codec.Deserialize([]byte(b.String()))
	if !errors.Is(err, hayabib.ErrMalformedDocument) {
		t.Fatalf("expected ErrMalformedDocument, got %v", err)
	}
}

func TestYAML_AliasExpansionLimit(t *testing.T) {
	var b strings.Builder
	b.WriteString("a0: &a0 [lol, lol, lol, lol, lol, lol, lol, lol, lol, lol]\n")
	for i := 1; i <= 9; i++ {
		fmt.Fprintf(&b, "a%d: &a%d [", i, i)
		for j := range 10 {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "*a%d", i-1)
		}
		b.WriteString("]\n")
	}

	done := make(chan error, 1)
	go func() {
		_, err := codec.Deserialize([]byte(b.String()))
		done <- err
	}()
	select {
	case err := <-done:
		if !errors.Is(err, hayabib.ErrMalformedDocument) || !strings.Contains(err.Error(), "aliases expand") {
			t.Fatalf("expected alias expansion error, got %v", err)
		}
	case <-time.After(10 * time.Second):
		t.Fatal("alias expansion was not bounded")
	}
}

func TestYAML_SharedAnchorsWithinLimit(t *testing.T) {
	var b strings.Builder
	b.WriteString("base: &series\n  type: book\n  title: Lecture Notes in Logic\n")
	for i := range 200 {
		fmt.Fprintf(&b, "e%d:\n  type: article\n  parent: *series\n", i)
	}
	m, err := codec.Deserialize([]byte(b.String()))
	if err != nil {
		t.Fatalf("Deserialize: %v", err)
	}
	e, _ := m.Get("e199")
	if p := e.Parents(); len(p) != 1 || p[0].Type != "book" {
		t.Fatalf("parent = %+v", p)
	}
}

func TestSingleEntryBlock(t *testing.T) {
	in := []byte("goedel1931:\n  type: article\n  title: On Formalism\n  date: \"1931-01\"\n")
	key, e, err := codec.DeserializeEntry(in)
	if err != nil {
		t.Fatalf("deserialize entry: %v", err)
	}
	if key != "goedel1931" {
		t.Fatalf("key = %q", key)
	}
	out, err := codec.SerializeEntry(key, e)
	if err != nil {
		t.Fatalf("serialize entry: %v", err)
	}
	key2, e2, err := codec.DeserializeEntry(out)
	if err != nil {
		t.Fatalf("deserialize exported block: %v\n%s", err, out)
	}
	if key2 != key {
		t.Fatalf("key = %q", key2)
	}
	want := &hayabib.Entry{Type: "article", Title: hayabib.Text("On Formalism"), Date: hayabib.DateText("1931-01")}
	if d := cmp.Diff(want, e2); d != "" {
		t.Fatalf("entry mismatch (-want +got):\n%s", d)
	}
}

func TestDeserializeEntry_RequiresOneEntry(t *testing.T) {
	_, _, err := codec.DeserializeEntry([]byte("a: {type: misc}\nb: {type: misc}\n"))
	if !errors.Is(err, hayabib.ErrMalformedDocument) {
		t.Fatalf("expected ErrMalformedDocument, got %v", err)
	}
	if _, err := codec.SerializeEntry("", &hayabib.Entry{Type: "misc"}); !errors.Is(err, hayabib.ErrMalformedDocument) {
		t.Fatalf("expected ErrMalformedDocument for empty key, got %v", err)
	}
}

func TestPlain(t *testing.T) {
	e := &hayabib.Entry{Type: "book", Title: hayabib.Text("T"), Date: hayabib.Year(2001)}
	got := codec.Plain(codec.EncodeEntry(e))
	want := map[string]any{"type": "book", "title": "T", "date": int64(2001)}
	if d := cmp.Diff(want, got); d != "" {
		t.Fatalf("plain mismatch (-want +got):\n%s", d)
	}
}

func TestEntry_ParentsUseFieldTable(t *testing.T) {
	e := &hayabib.Entry{
		Type:  "article",
		Title: hayabib.Text("Chapter"),
		Parent: hayabib.Parent(&hayabib.Entry{
			Type:   "book",
			Date:   hayabib.Year(1931),
			Parent: hayabib.Parent(&hayabib.Entry{Type: "misc", Title: hayabib.Text("Series")}),
		}),
	}
	obj := codec.EncodeEntry(e)
	if diff := cmp.Diff([]string{"type", "title", "parent"}, obj.Keys()); diff != "" {
		t.Fatalf("keys mismatch (-want +got):\n%s", diff)
	}
	parent, _ := obj.Get("parent")
	if diff := cmp.Diff([]string{"type", "date", "parent"}, parent.(codec.Object).Keys()); diff != "" {
		t.Fatalf("parent keys mismatch (-want +got):\n%s", diff)
	}
	got, err := codec.DecodeEntry(obj)
	if err != nil {
		t.Fatalf("DecodeEntry: %v", err)
	}
	if diff := cmp.Diff(e, got); diff != "" {
		t.Fatalf("entry mismatch (-want +got):\n%s", diff)
	}
}
