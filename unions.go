package hayabib

import (
	"regexp"
	"strconv"
	"strings"
)

// Shape records which wire form a union value was written in, so that
// encoding reproduces it.
type Shape int

const (
	ShapeScalar Shape = iota
	ShapeObject
)

// FormattableString is a plain string or {value, short?, verbatim?}.
type FormattableString struct {
	Value    string
	Short    string // empty when absent
	Verbatim *bool
	Shape    Shape
}

// Text returns a scalar FormattableString.
func Text(s string) *FormattableString { return &FormattableString{Value: s} }

// Person is a name string or {name, given-name?, prefix?, suffix?, alias?}.
// In scalar form the whole string is kept in Name.
type Person struct {
	Name      string
	GivenName string
	Prefix    string
	Suffix    string
	Alias     string
	Shape     Shape
}

// People is a single Person or an ordered list of them.
type People struct {
	Items []Person
	List  bool
}

// Names returns People of scalar-form persons. One name gives the single
// form, any other count a list.
func Names(names ...string) *People {
	p := &People{List: len(names) != 1}
	for _, n := range names {
		p.Items = append(p.Items, Person{Name: n})
	}
	return p
}

// DateKind discriminates the two date forms.
type DateKind int

const (
	DateYear   DateKind = iota // integer year
	DateString                 // YYYY, YYYY-MM or YYYY-MM-DD, optionally signed
)

// Date is an integer year or an ISO 8601 partial date string.
type Date struct {
	Kind DateKind
	Year int64
	Text string
}

// Year returns a Date in integer form.
func Year(y int64) *Date { return &Date{Kind: DateYear, Year: y} }

// DateText returns a Date in string form.
func DateText(s string) *Date { return &Date{Kind: DateString, Text: s} }

var datePartsRe = regexp.MustCompile(`^([+-]?\d{1,})(?:-(\d{2})(?:-(\d{2}))?)?$`)

// Parts returns year, month and day. Month and day are zero when absent.
func (d Date) Parts() (year int64, month, day int, ok bool) {
	if d.Kind == DateYear {
		return d.Year, 0, 0, true
	}
	m := datePartsRe.FindStringSubmatch(strings.TrimSpace(d.Text))
	if m == nil {
		return 0, 0, 0, false
	}
	y, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, 0, 0, false
	}
	if m[2] != "" {
		month, _ = strconv.Atoi(m[2])
	}
	if m[3] != "" {
		day, _ = strconv.Atoi(m[3])
	}
	return y, month, day, true
}

// NumericKind discriminates the numeric-or-string forms.
type NumericKind int

const (
	NumericInt NumericKind = iota
	NumericFloat
	NumericString
)

// Numeric is a number or a string such as "1-5" or "second".
type Numeric struct {
	Kind  NumericKind
	Int   int64
	Float float64
	Text  string
}

// Number returns an integer Numeric.
func Number(n int64) *Numeric { return &Numeric{Kind: NumericInt, Int: n} }

// NumericText returns a string Numeric.
func NumericText(s string) *Numeric { return &Numeric{Kind: NumericString, Text: s} }

// String renders the value as it would appear in a citation.
func (n Numeric) String() string {
	switch n.Kind {
	case NumericInt:
		return strconv.FormatInt(n.Int, 10)
	case NumericFloat:
		return strconv.FormatFloat(n.Float, 'f', -1, 64)
	default:
		return n.Text
	}
}

// SerialKind discriminates the serial-number forms.
type SerialKind int

const (
	SerialText SerialKind = iota
	SerialInt
	SerialSchemes
)

// Well-known serial number schemes.
const (
	SchemeDOI    = "doi"
	SchemeISBN   = "isbn"
	SchemeISSN   = "issn"
	SchemePMID   = "pmid"
	SchemePMCID  = "pmcid"
	SchemeArXiv  = "arxiv"
	SchemeSerial = "serial"
)

// Scheme is one identifier inside an object-form serial number.
type Scheme struct {
	Name  string
	Value string
}

// SerialNumber is a bare string or number, or an ordered set of schemes.
type SerialNumber struct {
	Kind    SerialKind
	Text    string
	Int     int64
	Schemes []Scheme
}

// Lookup returns the value of a scheme. Scheme names match case-insensitively
// because the published schema and the original tooling disagree on case.
func (s SerialNumber) Lookup(scheme string) (string, bool) {
	for _, sc := range s.Schemes {
		if strings.EqualFold(sc.Name, scheme) {
			return sc.Value, true
		}
	}
	return "", false
}

// Publisher is a name string or {name, location?}.
type Publisher struct {
	Name     string
	Location string
	Shape    Shape
}

// URL is a string or {value, date?}.
type URL struct {
	Value string
	Date  *Date
	Shape Shape
}

// Parents is a single parent entry or a list of them. Parents may carry
// parents of their own.
type Parents struct {
	Items []*Entry
	List  bool
}

// Parent returns a Parents value holding one entry in single form.
func Parent(e *Entry) *Parents { return &Parents{Items: []*Entry{e}} }

// Affiliated lists people acting in a role other than author or editor.
type Affiliated struct {
	Role  string
	Names People
}
