package store_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/reoring/hayabib"
	"github.com/reoring/hayabib/internal/metrics"
	"github.com/reoring/hayabib/schema"
	"github.com/reoring/hayabib/store"
	"github.com/reoring/hayabib/store/kvtest"
	"github.com/reoring/hayabib/store/memkv"
	"github.com/reoring/hayabib/validate"
)

type defaultSource struct{}

func (defaultSource) Schema(context.Context) (*schema.Document, error) { return schema.Default() }

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(time.Second)
	return c.now
}

type fixture struct {
	st      *store.Store
	kv      *memkv.KV
	metrics *metrics.Metrics
	clock   *clock
}

func newFixture(t *testing.T, kv store.KV) fixture {
	t.Helper()
	mem, _ := kv.(*memkv.KV)
	if kv == nil {
		mem = memkv.New()
		kv = mem
	}
	f := fixture{
		kv:      mem,
		metrics: metrics.New(nil),
		clock:   &clock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)},
	}
	f.st = store.New(kv, validate.NewRegistry(defaultSource{}),
		store.WithMetrics(f.metrics), store.WithClock(f.clock.Now))
	return f
}

func untyped(id string) *hayabib.Collection {
	c := kvtest.Collection(id)
	c.Entries.Set("bad", &hayabib.Entry{Title: hayabib.Text("no type")})
	return c
}

func TestCreate_RejectsReservedIDs(t *testing.T) {
	f := newFixture(t, nil)
	for _, id := range []string{hayabib.ReservedNew, hayabib.ReservedImport} {
		err := f.st.Create(context.Background(), kvtest.Collection(id))
		if !errors.Is(err, hayabib.ErrReservedID) {
			t.Fatalf("Create(%q): err = %v, want ErrReservedID", id, err)
		}
	}
	if f.kv.Len() != 0 {
		t.Fatalf("reserved collection was stored")
	}
}

func TestCreate_MetadataIssues(t *testing.T) {
	f := newFixture(t, nil)
	c := kvtest.Collection("")
	c.Metadata.Title = "  "
	err := f.st.Create(context.Background(), c)
	if !errors.Is(err, hayabib.ErrInvalidDocument) {
		t.Fatalf("err = %v, want ErrInvalidDocument", err)
	}
	iss, ok := hayabib.AsIssues(err)
	if !ok {
		t.Fatalf("expected issues in %v", err)
	}
	var paths []string
	for _, it := range iss {
		paths = append(paths, it.Path)
	}
	if diff := cmp.Diff([]string{"/metadata/id", "/metadata/title"}, paths); diff != "" {
		t.Fatalf("paths mismatch (-want +got):\n%s", diff)
	}
}

func TestCreate_StampsAndStores(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	c := kvtest.Collection("logic")
	c.Metadata.CreatedAt, c.Metadata.UpdatedAt = time.Time{}, time.Time{}
	if err := f.st.Create(ctx, c); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if c.Metadata.CreatedAt.IsZero() || !c.Metadata.UpdatedAt.Equal(c.Metadata.CreatedAt) {
		t.Fatalf("timestamps = %+v", c.Metadata)
	}
	got, err := f.st.Get(ctx, "logic")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	kvtest.Equal(t, c, got)

	if err := f.st.Create(ctx, kvtest.Collection("logic")); !errors.Is(err, hayabib.ErrAlreadyExists) {
		t.Fatalf("duplicate Create: err = %v, want ErrAlreadyExists", err)
	}
	if got := testutil.ToFloat64(f.metrics.StoreOps.WithLabelValues("create", metrics.OutcomeOK)); got != 1 {
		t.Fatalf("create ok = %v", got)
	}
	if got := testutil.ToFloat64(f.metrics.StoreOps.WithLabelValues("create", metrics.OutcomeError)); got != 1 {
		t.Fatalf("create error = %v", got)
	}
}

func TestCreate_ValidatesEntries(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	err := f.st.Create(ctx, untyped("logic"))
	if !errors.Is(err, hayabib.ErrInvalidDocument) {
		t.Fatalf("err = %v, want ErrInvalidDocument", err)
	}
	iss, _ := hayabib.AsIssues(err)
	if len(iss) != 1 || iss[0].Path != "/bad/type" || iss[0].Code != hayabib.CodeRequired {
		t.Fatalf("issues = %+v", iss)
	}
	if ok, _ := f.st.Exists(ctx, "logic"); ok {
		t.Fatalf("invalid collection was stored")
	}
	if err := f.st.Create(ctx, untyped("logic"), store.Prevalidated()); err != nil {
		t.Fatalf("prevalidated Create: %v", err)
	}
}

func TestGet_NotFound(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.st.Get(context.Background(), "absent"); !errors.Is(err, hayabib.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestReplace_Upserts(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	c := kvtest.Collection("logic")
	if err := f.st.Replace(ctx, c); err != nil {
		t.Fatalf("Replace absent: %v", err)
	}
	first := c.Metadata.UpdatedAt
	c.Metadata.Description = "second pass"
	if err := f.st.Replace(ctx, c); err != nil {
		t.Fatalf("Replace present: %v", err)
	}
	got, _ := f.st.Get(ctx, "logic")
	if got.Metadata.Description != "second pass" || !got.Metadata.UpdatedAt.After(first) {
		t.Fatalf("metadata = %+v", got.Metadata)
	}
	if err := f.st.Replace(ctx, untyped("logic")); !errors.Is(err, hayabib.ErrInvalidDocument) {
		t.Fatalf("invalid Replace: err = %v", err)
	}
}

func TestDelete_Idempotent(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if err := f.st.Create(ctx, kvtest.Collection("logic")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	for range 2 {
		if err := f.st.Delete(ctx, "logic"); err != nil {
			t.Fatalf("Delete: %v", err)
		}
	}
	list, err := f.st.List(ctx)
	if err != nil || len(list) != 0 {
		t.Fatalf("List = %d, %v", len(list), err)
	}
}

func TestRename_MovesCollection(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	a := kvtest.Collection("a")
	if err := f.st.Create(ctx, a); err != nil {
		t.Fatalf("Create: %v", err)
	}
	created := a.Metadata.CreatedAt

	updated := kvtest.Collection("b")
	updated.Metadata.CreatedAt = time.Time{}
	if err := f.st.Rename(ctx, "a", updated); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	list, _ := f.st.List(ctx)
	if len(list) != 1 || list[0].Metadata.ID != "b" {
		t.Fatalf("collections after rename = %+v", list)
	}
	if diff := cmp.Diff(a.Entries.Keys(), list[0].Entries.Keys()); diff != "" {
		t.Fatalf("entries mismatch (-want +got):\n%s", diff)
	}
	if !list[0].Metadata.CreatedAt.Equal(created) || !list[0].Metadata.UpdatedAt.After(created) {
		t.Fatalf("timestamps = %+v", list[0].Metadata)
	}
}

func TestRename_SameID(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	if err := f.st.Create(ctx, kvtest.Collection("a")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	u := kvtest.Collection("a")
	u.Metadata.Title = "Renamed title"
	if err := f.st.Rename(ctx, "a", u); err != nil {
		t.Fatalf("Rename: %v", err)
	}
	got, _ := f.st.Get(ctx, "a")
	if got.Metadata.Title != "Renamed title" {
		t.Fatalf("title = %q", got.Metadata.Title)
	}
}

func TestRename_Rejections(t *testing.T) {
	ctx := context.Background()
	setup := func(t *testing.T) fixture {
		f := newFixture(t, nil)
		for _, id := range []string{"a", "b"} {
			c := kvtest.Collection(id)
			c.Metadata.Title = "Title " + id
			if err := f.st.Create(ctx, c); err != nil {
				t.Fatalf("Create %s: %v", id, err)
			}
		}
		return f
	}
	cases := []struct {
		name    string
		oldID   string
		updated *hayabib.Collection
		want    error
	}{
		{"conflict", "a", kvtest.Collection("b"), hayabib.ErrIDConflict},
		{"reserved", "a", kvtest.Collection(hayabib.ReservedNew), hayabib.ErrReservedID},
		{"absent", "zzz", kvtest.Collection("c"), hayabib.ErrNotFound},
		{"invalid", "a", untyped("c"), hayabib.ErrInvalidDocument},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := setup(t)
			if err := f.st.Rename(ctx, tc.oldID, tc.updated); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
			for _, id := range []string{"a", "b"} {
				got, err := f.st.Get(ctx, id)
				if err != nil {
					t.Fatalf("Get %s after failed rename: %v", id, err)
				}
				if got.Metadata.Title != "Title "+id {
					t.Fatalf("collection %s changed: %+v", id, got.Metadata)
				}
			}
			if f.kv.Len() != 2 {
				t.Fatalf("collections = %d, want 2", f.kv.Len())
			}
		})
	}
}

type failingAdd struct {
	*memkv.KV
	fail bool
}

func (f *failingAdd) Add(ctx context.Context, c *hayabib.Collection) error {
	if f.fail {
		return errors.New("disk full")
	}
	return f.KV.Add(ctx, c)
}

func TestRename_InsertFailureIsReported(t *testing.T) {
	kv := &failingAdd{KV: memkv.New()}
	f := newFixture(t, kv)
	ctx := context.Background()
	if err := f.st.Create(ctx, kvtest.Collection("a")); err != nil {
		t.Fatalf("Create: %v", err)
	}
	kv.fail = true
	err := f.st.Rename(ctx, "a", kvtest.Collection("b"))
	if err == nil {
		t.Fatalf("expected rename to fail")
	}
	// the old record is already gone; the window is documented, not hidden
	if ok, _ := f.st.Exists(ctx, "a"); ok {
		t.Fatalf("old record still present")
	}
}

func TestPatch(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	c := kvtest.Collection("logic")
	if err := f.st.Create(ctx, c); err != nil {
		t.Fatalf("Create: %v", err)
	}
	title := "Foundations"
	if err := f.st.Patch(ctx, "logic", store.Patch{Title: &title}); err != nil {
		t.Fatalf("Patch: %v", err)
	}
	got, _ := f.st.Get(ctx, "logic")
	if got.Metadata.Title != title || !got.Metadata.UpdatedAt.After(c.Metadata.UpdatedAt) {
		t.Fatalf("metadata = %+v", got.Metadata)
	}
	if got.Entries.Len() != c.Entries.Len() {
		t.Fatalf("entries changed by a title patch")
	}

	empty := ""
	if err := f.st.Patch(ctx, "logic", store.Patch{Title: &empty}); !errors.Is(err, hayabib.ErrInvalidDocument) {
		t.Fatalf("empty title: err = %v", err)
	}
	bad := untyped("logic").Entries
	if err := f.st.Patch(ctx, "logic", store.Patch{Entries: bad}); !errors.Is(err, hayabib.ErrInvalidDocument) {
		t.Fatalf("invalid entries: err = %v", err)
	}
	if err := f.st.Patch(ctx, "absent", store.Patch{Title: &title}); !errors.Is(err, hayabib.ErrNotFound) {
		t.Fatalf("absent: err = %v", err)
	}
}
