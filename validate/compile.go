// Package validate turns a schema document into validators for whole
// collections and for single entries.
//
// Compilation is a pure function of the document. The Registry memoizes the
// result on the *schema.Document pointer, so a document is compiled at most
// once however many operations use it.
package validate

import (
	"errors"
	"fmt"
	"maps"
	"net/url"
	"slices"

	"github.com/reoring/hayabib"
	"github.com/reoring/hayabib/schema"
)

// ErrNoEntrySchema is returned when a document describes no single entry:
// no additionalProperties or patternProperties schema at the root and no
// topLevelEntry or entry definition.
var ErrNoEntrySchema = errors.New("validate: schema defines no entry schema")

// Compile builds the whole-collection and single-entry validators for doc.
// Constructs the document reports in its warnings are accepted as match-all
// and listed in the returned Diag.
func Compile(doc *schema.Document) (whole, entry *Validator, d Diag, err error) {
	if doc == nil {
		return nil, nil, nil, errors.New("validate: nil schema document")
	}
	diag := &simpleDiag{}
	for _, w := range doc.Warnings() {
		diag.warnf("%s", w)
	}
	at, ok := entryPointer(doc.Tree())
	if !ok {
		return nil, nil, diag, ErrNoEntrySchema
	}
	c, err := doc.NewCompiler()
	if err != nil {
		return nil, nil, diag, err
	}
	ws, err := c.Compile(schema.ResourceURL)
	if err != nil {
		return nil, nil, diag, fmt.Errorf("validate: compile collection schema: %w", err)
	}
	es, err := c.Compile(schema.ResourceURL + "#" + fragment(at))
	if err != nil {
		return nil, nil, diag, fmt.Errorf("validate: compile entry schema %s: %w", hayabib.JoinPointer(at), err)
	}
	whole = &Validator{doc: doc, schema: ws, scope: ScopeCollection}
	entry = &Validator{doc: doc, schema: es, scope: ScopeEntry}
	return whole, entry, diag, nil
}

// entryPointer finds the schema a single top-level entry is checked against.
func entryPointer(root map[string]any) ([]string, bool) {
	if _, ok := root["additionalProperties"].(map[string]any); ok {
		return []string{"additionalProperties"}, true
	}
	if pp, ok := root["patternProperties"].(map[string]any); ok {
		for _, p := range slices.Sorted(maps.Keys(pp)) {
			if _, ok := pp[p].(map[string]any); ok {
				return []string{"patternProperties", p}, true
			}
		}
	}
	for _, defs := range []string{"definitions", "$defs"} {
		m, _ := root[defs].(map[string]any)
		for _, name := range []string{"topLevelEntry", "entry"} {
			if _, ok := m[name].(map[string]any); ok {
				return []string{defs, name}, true
			}
		}
	}
	return nil, false
}

// fragment renders tokens as a URI fragment JSON pointer.
func fragment(tokens []string) string {
	var out string
	for _, t := range tokens {
		out += "/" + url.PathEscape(hayabib.EscapePointer(t))
	}
	return out
}
