// Package kvtest is a conformance suite for store.KV implementations.
package kvtest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/reoring/hayabib"
	"github.com/reoring/hayabib/store"
)

// Collection builds a small collection with two entries in a fixed order.
func Collection(id string) *hayabib.Collection {
	m := hayabib.NewEntryMap()
	m.Set("zermelo1908", &hayabib.Entry{Type: "article", Title: hayabib.Text("Untersuchungen über die Grundlagen der Mengenlehre"), Date: hayabib.Year(1908)})
	m.Set("goedel1931", &hayabib.Entry{
		Type:   "article",
		Title:  &hayabib.FormattableString{Value: "On Formally Undecidable Propositions", Short: "Undecidable", Shape: hayabib.ShapeObject},
		Author: hayabib.Names("Gödel, Kurt"),
		Date:   hayabib.DateText("1931-01"),
	})
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	return &hayabib.Collection{
		Metadata: hayabib.CollectionMetadata{ID: id, Title: "Logic", CreatedAt: ts, UpdatedAt: ts},
		Entries:  m,
	}
}

// Run exercises kv. It must start empty.
func Run(t *testing.T, kv store.KV) {
	t.Helper()
	ctx := context.Background()

	all, err := kv.GetAll(ctx)
	if err != nil || len(all) != 0 {
		t.Fatalf("GetAll on empty kv = %d, %v", len(all), err)
	}
	if _, err := kv.Get(ctx, "logic"); !errors.Is(err, hayabib.ErrNotFound) {
		t.Fatalf("Get absent: err = %v, want ErrNotFound", err)
	}

	want := Collection("logic")
	if err := kv.Add(ctx, want); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if err := kv.Add(ctx, Collection("logic")); !errors.Is(err, hayabib.ErrAlreadyExists) {
		t.Fatalf("second Add: err = %v, want ErrAlreadyExists", err)
	}
	got, err := kv.Get(ctx, "logic")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	Equal(t, want, got)
	if diff := cmp.Diff([]string{"zermelo1908", "goedel1931"}, got.Entries.Keys()); diff != "" {
		t.Fatalf("entry order mismatch (-want +got):\n%s", diff)
	}

	// the stored record is not shared with the caller
	got.Metadata.Title = "mutated"
	again, _ := kv.Get(ctx, "logic")
	if again.Metadata.Title != "Logic" {
		t.Fatalf("stored record aliased caller state")
	}

	other := Collection("algebra")
	other.Metadata.Title = "Algebra"
	if err := kv.Put(ctx, other); err != nil {
		t.Fatalf("Put new: %v", err)
	}
	other.Metadata.Description = "rings"
	if err := kv.Put(ctx, other); err != nil {
		t.Fatalf("Put existing: %v", err)
	}
	all, err = kv.GetAll(ctx)
	if err != nil || len(all) != 2 {
		t.Fatalf("GetAll = %d, %v", len(all), err)
	}
	if all[0].Metadata.ID != "algebra" || all[0].Metadata.Description != "rings" {
		t.Fatalf("GetAll[0] = %+v", all[0].Metadata)
	}

	title := "Mathematical Logic"
	stamp := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := kv.Update(ctx, "logic", store.Patch{Title: &title, UpdatedAt: &stamp}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ = kv.Get(ctx, "logic")
	if got.Metadata.Title != title || !got.Metadata.UpdatedAt.Equal(stamp) || got.Entries.Len() != 2 {
		t.Fatalf("after Update = %+v (%d entries)", got.Metadata, got.Entries.Len())
	}
	if err := kv.Update(ctx, "absent", store.Patch{Title: &title}); !errors.Is(err, hayabib.ErrNotFound) {
		t.Fatalf("Update absent: err = %v, want ErrNotFound", err)
	}

	if err := kv.Delete(ctx, "logic"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := kv.Delete(ctx, "logic"); err != nil {
		t.Fatalf("Delete absent: %v", err)
	}
	if _, err := kv.Get(ctx, "logic"); !errors.Is(err, hayabib.ErrNotFound) {
		t.Fatalf("Get after Delete: err = %v", err)
	}
}

// Equal fails the test when two collections differ in metadata or entries.
func Equal(t *testing.T, want, got *hayabib.Collection) {
	t.Helper()
	if diff := cmp.Diff(want.Metadata, got.Metadata); diff != "" {
		t.Fatalf("metadata mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(want.Entries.Keys(), got.Entries.Keys()); diff != "" {
		t.Fatalf("entry keys mismatch (-want +got):\n%s", diff)
	}
	for k, we := range want.Entries.All() {
		ge, _ := got.Entries.Get(k)
		if diff := cmp.Diff(we, ge); diff != "" {
			t.Fatalf("entry %q mismatch (-want +got):\n%s", k, diff)
		}
	}
}
