package codec_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/reoring/hayabib"
	"github.com/reoring/hayabib/codec"
)

func TestDetectFormat(t *testing.T) {
	cases := map[string]codec.Format{
		"lib.yaml":       codec.FormatYAML,
		"lib.YML":        codec.FormatYAML,
		"dir/lib.json":   codec.FormatJSON,
		"lib.toml":       codec.FormatTOML,
		"references.bib": codec.FormatBibLaTeX,
	}
	for name, want := range cases {
		got, err := codec.DetectFormat(name)
		if err != nil || got != want {
			t.Fatalf("%s: got %q %v, want %q", name, got, err, want)
		}
	}
	for _, name := range []string{"lib", "lib.txt"} {
		if _, err := codec.DetectFormat(name); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestDecodeEncodeDirections(t *testing.T) {
	m := hayabib.NewEntryMap()
	m.Set("a", &hayabib.Entry{Type: "misc"})
	if _, err := codec.Encode(codec.FormatTOML, m); err == nil {
		t.Fatalf("expected TOML export to fail")
	}
	if _, err := codec.Decode(codec.FormatBibLaTeX, nil); err == nil {
		t.Fatalf("expected BibLaTeX import to fail")
	}
	for _, f := range []codec.Format{codec.FormatYAML, codec.FormatJSON} {
		data, err := codec.Encode(f, m)
		if err != nil {
			t.Fatalf("%s encode: %v", f, err)
		}
		back, err := codec.Decode(f, data)
		if err != nil || back.Len() != 1 {
			t.Fatalf("%s decode: %v %v", f, back, err)
		}
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := codec.WriteFile(path, []byte("a: 1\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := codec.WriteFile(path, []byte("b: 2\n")); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(got) != "b: 2\n" {
		t.Fatalf("content = %q", got)
	}
	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %v", entries)
	}
}
