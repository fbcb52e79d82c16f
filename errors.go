package hayabib

import (
	"errors"
	"fmt"
	"strings"
)

// Issue codes
const (
	CodeInvalidType   = "invalid_type"
	CodeRequired      = "required"
	CodeUnknownKey    = "unknown_key"
	CodeTooSmall      = "too_small"
	CodeTooBig        = "too_big"
	CodeTooShort      = "too_short"
	CodeTooLong       = "too_long"
	CodePattern       = "pattern"
	CodeInvalidEnum   = "invalid_enum"
	CodeConst         = "const"
	CodeNoMatch       = "no_match"
	CodeAmbiguous     = "union_ambiguous"
	CodeNotAllowed    = "not_allowed"
	CodeUniqueness    = "uniqueness"
	CodeReserved      = "reserved"
	CodeUnresolvedRef = "unresolved_ref"
)

// Sentinel errors. Callers match them with errors.Is.
var (
	ErrNotFound          = errors.New("hayabib: not found")
	ErrAlreadyExists     = errors.New("hayabib: already exists")
	ErrDuplicateEntry    = errors.New("hayabib: duplicate entry")
	ErrReservedID        = errors.New("hayabib: reserved id")
	ErrIDConflict        = errors.New("hayabib: id conflict")
	ErrInvalidDocument   = errors.New("hayabib: invalid document")
	ErrInvalidEntry      = errors.New("hayabib: invalid entry")
	ErrMalformedDocument = errors.New("hayabib: malformed document")
	ErrSchemaUnavailable = errors.New("hayabib: schema unavailable")
)

// Issue represents a single validation finding.
type Issue struct {
	Path    string // JSON Pointer (for example: /goedel1931/title).
	Code    string // One of the codes listed above.
	Message string
	// Params carries structured parameters (e.g., {"pattern": "^[a-z]{2,3}$"})
	// for i18n and rendering.
	Params map[string]any
}

// Issues is a collection of validation findings that implements error.
type Issues []Issue

// Error summarizes the first few issues.
func (iss Issues) Error() string {
	if len(iss) == 0 {
		return ""
	}
	const maxShown = 3
	b := &strings.Builder{}
	n := len(iss)
	lim := min(n, maxShown)
	for i := 0; i < lim; i++ {
		if i > 0 {
			b.WriteString("; ")
		}
		it := iss[i]
		path := it.Path
		if path == "" {
			path = "/"
		}
		fmt.Fprintf(b, "%s at %s", it.Code, path)
	}
	if n > lim {
		fmt.Fprintf(b, "; ... (total %d)", n)
	}
	return b.String()
}

// AppendIssues appends issues to the destination, initializing the slice when
// needed.
func AppendIssues(dst Issues, more ...Issue) Issues {
	if dst == nil {
		dst = Issues{}
	}
	return append(dst, more...)
}

// Prefix returns a copy of iss with every path rooted under prefix.
func (iss Issues) Prefix(prefix string) Issues {
	if len(iss) == 0 {
		return iss
	}
	out := make(Issues, len(iss))
	for i, it := range iss {
		it.Path = prefix + it.Path
		out[i] = it
	}
	return out
}

// ValidationError reports a schema validation failure. Kind is either
// ErrInvalidDocument or ErrInvalidEntry.
type ValidationError struct {
	Kind   error
	Issues Issues
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 0 {
		return e.Kind.Error()
	}
	return e.Kind.Error() + ": " + e.Issues.Error()
}

// Unwrap exposes both the kind sentinel and the issue list.
func (e *ValidationError) Unwrap() []error { return []error{e.Kind, e.Issues} }

// InvalidDocument builds a ValidationError for a whole collection.
func InvalidDocument(iss Issues) error {
	return &ValidationError{Kind: ErrInvalidDocument, Issues: iss}
}

// InvalidEntry builds a ValidationError for a single entry.
func InvalidEntry(iss Issues) error {
	return &ValidationError{Kind: ErrInvalidEntry, Issues: iss}
}

// AsIssues extracts Issues from an error using errors.As internally.
func AsIssues(err error) (Issues, bool) {
	if err == nil {
		return nil, false
	}
	var iss Issues
	if errors.As(err, &iss) {
		return iss, true
	}
	return nil, false
}
