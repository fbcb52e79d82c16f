// Package schema fetches, caches and serves the Hayagriva JSON Schema
// document. The Cache answers from memory, then from a persisted copy (and
// refreshes it in the background), then from the network, and finally from
// a built-in default so that the rest of the system keeps working offline.
package schema

import (
	"bytes"
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	jschema "github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/reoring/hayabib"
)

// DefaultURL is where the Hayagriva schema is published.
const DefaultURL = "https://jassielof.github.io/json-schemas/docs/hayagriva.schema.json"

// ResourceURL is the URL a document is registered under in the compilers
// NewCompiler returns. Keyword locations in validation errors start with it.
const ResourceURL = "mem://hayabib/schema.json"

// Source tells where a Document came from.
type Source int

const (
	SourceNetwork Source = iota
	SourcePersisted
	SourceBuiltin
)

// String names the source as logs and "schema show" print it.
func (s Source) String() string {
	switch s {
	case SourceNetwork:
		return "network"
	case SourcePersisted:
		return "persisted"
	case SourceBuiltin:
		return "builtin"
	default:
		return fmt.Sprintf("Source(%d)", int(s))
	}
}

// Document is an immutable, parsed schema document. Validators are keyed on
// the *Document pointer, so a changed schema is always a new Document.
type Document struct {
	raw       []byte
	root      map[string]any
	tree      map[string]any
	treeJSON  []byte
	warnings  []string
	digest    string
	source    Source
	fetchedAt time.Time
}

// NewDocument parses raw. It fails when raw is not a JSON object or not a
// schema the validator can compile.
func NewDocument(raw []byte, src Source, fetchedAt time.Time) (*Document, error) {
	var root map[string]any
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, fmt.Errorf("schema: decode document: %w", err)
	}
	if root == nil {
		return nil, fmt.Errorf("schema: document is not a JSON object")
	}
	tree, warnings := sanitize(root)
	treeJSON, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("schema: encode document: %w", err)
	}
	sum := sha256.Sum256(raw)
	d := &Document{
		raw:       slices.Clone(raw),
		root:      root,
		tree:      tree,
		treeJSON:  treeJSON,
		warnings:  warnings,
		digest:    hex.EncodeToString(sum[:]),
		source:    src,
		fetchedAt: fetchedAt,
	}
	c, err := d.NewCompiler()
	if err != nil {
		return nil, err
	}
	if _, err := c.Compile(ResourceURL); err != nil {
		return nil, fmt.Errorf("schema: %w", err)
	}
	return d, nil
}

// NewCompiler returns a compiler holding the document under ResourceURL.
// Documents without a known $schema compile as draft-07.
func (d *Document) NewCompiler() (*jschema.Compiler, error) {
	c := jschema.NewCompiler()
	c.Draft = jschema.Draft7
	if err := c.AddResource(ResourceURL, bytes.NewReader(d.treeJSON)); err != nil {
		return nil, fmt.Errorf("schema: add resource: %w", err)
	}
	return c, nil
}

// Raw returns a copy of the document bytes.
func (d *Document) Raw() []byte { return slices.Clone(d.raw) }

// Root returns the decoded document. Callers must not modify it.
func (d *Document) Root() map[string]any { return d.root }

// Tree returns the document as it is compiled: Root without the constructs
// listed in Warnings. Callers must not modify it.
func (d *Document) Tree() map[string]any { return d.tree }

// Warnings lists constructs that compile as match-all.
func (d *Document) Warnings() []string { return slices.Clone(d.warnings) }

// Digest is the hex SHA-256 of the raw bytes.
func (d *Document) Digest() string { return d.digest }

// Source reports where the document came from.
func (d *Document) Source() Source { return d.source }

// FetchedAt is when the document was fetched; zero for the built-in one.
func (d *Document) FetchedAt() time.Time { return d.fetchedAt }

// Definitions returns the root definitions, "definitions" and "$defs"
// merged. The latter wins on a name clash.
func (d *Document) Definitions() map[string]any {
	out := make(map[string]any)
	for _, k := range []string{"definitions", "$defs"} {
		if m, ok := d.root[k].(map[string]any); ok {
			maps.Copy(out, m)
		}
	}
	return out
}

// EntryTypes lists the entry kinds the document names, from the entryType
// definition's enum or, failing that, its examples.
func (d *Document) EntryTypes() []string { return d.names("entryType", "type") }

// Roles lists the affiliated roles.
func (d *Document) Roles() []string { return d.names("role", "affiliatedRole", "roles") }

// DatePattern returns the regular expression string dates must match.
func (d *Document) DatePattern() string { return patternOf(d.definition("date")) }

// LanguagePattern returns the regular expression string language tags must match.
func (d *Document) LanguagePattern() string { return patternOf(d.definition("language")) }

func (d *Document) names(defs ...string) []string {
	def := d.definition(defs...)
	if def == nil {
		return nil
	}
	if out := stringList(def["enum"]); len(out) > 0 {
		return out
	}
	return stringList(def["examples"])
}

func (d *Document) definition(names ...string) map[string]any {
	defs := d.Definitions()
	for _, n := range names {
		if m, ok := defs[n].(map[string]any); ok {
			return m
		}
	}
	return nil
}

// patternOf returns s's pattern or the first pattern among its branches.
func patternOf(s map[string]any) string {
	if s == nil {
		return ""
	}
	if p, ok := s["pattern"].(string); ok && p != "" {
		return p
	}
	for _, k := range []string{"oneOf", "anyOf", "allOf"} {
		branches, _ := s[k].([]any)
		for _, b := range branches {
			sub, _ := b.(map[string]any)
			if p := patternOf(sub); p != "" {
				return p
			}
		}
	}
	return ""
}

func stringList(v any) []string {
	arr, ok := v.([]any)
	if !ok {
		return nil
	}
	var out []string
	for _, it := range arr {
		if s, ok := it.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

//go:embed default_schema.json
var defaultSchema []byte

var (
	defaultOnce sync.Once
	defaultDoc  *Document
	defaultErr  error
)

// Default returns the built-in document. It is parsed once and shared.
func Default() (*Document, error) {
	defaultOnce.Do(func() {
		defaultDoc, defaultErr = NewDocument(defaultSchema, SourceBuiltin, time.Time{})
		if defaultErr != nil {
			defaultErr = fmt.Errorf("%w: built-in schema: %w", hayabib.ErrSchemaUnavailable, defaultErr)
		}
	})
	return defaultDoc, defaultErr
}
