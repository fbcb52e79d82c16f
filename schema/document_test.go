package schema_test

import (
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/reoring/hayabib/schema"
)

func TestNewDocument_DropsWhatCannotCompile(t *testing.T) {
	raw := `{
  "$schema": "http://example.org/custom-draft",
  "$id": "https://example.org/hayagriva.json",
  "type": "object",
  "definitions": {
    "remote": {"$ref": "https://example.org/other.json#/x"},
    "dangling": {"$ref": "#/definitions/gone"},
    "ok": {"$ref": "#/definitions/look"},
    "look": {"type": "string", "pattern": "^(?!x)"}
  },
  "patternProperties": {"(?<=a)b": {"type": "string"}, "^k": {"type": "object"}}
}`
	d, err := schema.NewDocument([]byte(raw), schema.SourceNetwork, time.Now())
	if err != nil {
		t.Fatalf("NewDocument: %v", err)
	}
	ws := d.Warnings()
	if len(ws) != 5 {
		t.Fatalf("warnings = %q", ws)
	}
	all := strings.Join(ws, "\n")
	for _, want := range []string{"custom-draft", "other.json", "#/definitions/gone", "(?!x)", "(?<=a)b"} {
		if !strings.Contains(all, want) {
			t.Fatalf("warnings lack %q:\n%s", want, all)
		}
	}

	tree := d.Tree()
	for _, k := range []string{"$schema", "$id"} {
		if _, ok := tree[k]; ok {
			t.Fatalf("tree kept %s", k)
		}
	}
	defs := tree["definitions"].(map[string]any)
	want := map[string]any{
		"remote":   map[string]any{},
		"dangling": map[string]any{},
		"ok":       map[string]any{"$ref": "#/definitions/look"},
		"look":     map[string]any{"type": "string"},
	}
	if diff := cmp.Diff(want, defs); diff != "" {
		t.Fatalf("definitions mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(map[string]any{"^k": map[string]any{"type": "object"}}, tree["patternProperties"]); diff != "" {
		t.Fatalf("patternProperties mismatch (-want +got):\n%s", diff)
	}

	if _, ok := d.Root()["$id"]; !ok {
		t.Fatalf("Root lost $id")
	}
	if got := d.Definitions()["look"].(map[string]any)["pattern"]; got != "^(?!x)" {
		t.Fatalf("Definitions pattern = %v", got)
	}
}

func TestDocument_DefinitionsMergesDefs(t *testing.T) {
	raw := `{"definitions": {"a": {"type": "string"}}, "$defs": {"b": {"type": "integer"}, "a": {"type": "null"}}}`
	d, err := schema.NewDocument([]byte(raw), schema.SourcePersisted, time.Now())
	if err != nil {
		t.Fatalf("NewDocument: %v", err)
	}
	want := map[string]any{
		"a": map[string]any{"type": "null"},
		"b": map[string]any{"type": "integer"},
	}
	if diff := cmp.Diff(want, d.Definitions()); diff != "" {
		t.Fatalf("definitions mismatch (-want +got):\n%s", diff)
	}
	if d.Source().String() != "persisted" {
		t.Fatalf("source = %v", d.Source())
	}
}
