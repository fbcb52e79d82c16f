package hayabib_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/reoring/hayabib"
)

func TestLookup(t *testing.T) {
	tree := map[string]any{
		"a/b": map[string]any{"c~d": []any{"x", "y"}},
		"":    "empty",
		"sp ace": map[string]any{
			"^x-": true,
		},
	}
	cases := []struct {
		pointer string
		want    any
		keys    []string
		ok      bool
	}{
		{"", tree, nil, true},
		{"/", "empty", []string{""}, true},
		{"/a~1b/c~0d/1", "y", []string{"a/b", "c~d", "1"}, true},
		{"/sp%20ace/%5Ex-", true, []string{"sp ace", "^x-"}, true},
		{"/a~1b/c~0d/2", nil, nil, false},
		{"/missing", nil, nil, false},
		{"no-slash", nil, nil, false},
	}
	for _, tc := range cases {
		got, keys, ok := hayabib.Lookup(tree, tc.pointer)
		if ok != tc.ok {
			t.Fatalf("%q: ok = %v", tc.pointer, ok)
		}
		if !ok {
			continue
		}
		if diff := cmp.Diff(tc.want, got); diff != "" {
			t.Fatalf("%q: value mismatch (-want +got):\n%s", tc.pointer, diff)
		}
		if diff := cmp.Diff(tc.keys, keys); diff != "" {
			t.Fatalf("%q: keys mismatch (-want +got):\n%s", tc.pointer, diff)
		}
	}
	if got := hayabib.JoinPointer([]string{"a/b", "c~d"}); got != "/a~1b/c~0d" {
		t.Fatalf("JoinPointer = %q", got)
	}
}
