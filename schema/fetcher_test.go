package schema_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/reoring/hayabib/schema"
)

func TestHTTPFetcher(t *testing.T) {
	var accept atomic.Value
	accept.Store("")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		accept.Store(r.Header.Get("Accept"))
		switch r.URL.Path {
		case "/ok.json":
			_, _ = w.Write([]byte(netDoc))
		default:
			http.Error(w, "gone", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	body, err := schema.HTTPFetcher{URL: srv.URL + "/ok.json", Client: srv.Client()}.Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(body) != netDoc {
		t.Fatalf("body = %q", body)
	}
	if accept.Load().(string) == "" {
		t.Fatalf("expected an Accept header")
	}
	if _, err := (schema.HTTPFetcher{URL: srv.URL + "/missing", Client: srv.Client()}).Fetch(context.Background()); err == nil {
		t.Fatalf("expected error for 404")
	}
}

func TestHTTPFetcher_CacheEndToEnd(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		_, _ = w.Write([]byte(netDoc))
	}))
	defer srv.Close()

	path := filepath.Join(t.TempDir(), "nested", "schema.json")
	c := schema.NewCache(schema.HTTPFetcher{URL: srv.URL, Client: srv.Client()}, schema.NewFilePersister(path))
	d, err := c.Schema(context.Background())
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	if got := d.EntryTypes(); len(got) != 3 {
		t.Fatalf("entry types = %v", got)
	}
	if hits.Load() != 1 {
		t.Fatalf("server hits = %d", hits.Load())
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("schema not persisted: %v", err)
	}
}

func TestFilePersister(t *testing.T) {
	ctx := context.Background()
	p := schema.NewFilePersister(filepath.Join(t.TempDir(), "a", "b", "schema.json"))
	if _, err := p.Load(ctx); !errors.Is(err, schema.ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss, got %v", err)
	}
	if err := p.Save(ctx, []byte(diskDoc)); err != nil {
		t.Fatalf("save: %v", err)
	}
	raw, err := p.Load(ctx)
	if err != nil || string(raw) != diskDoc {
		t.Fatalf("load = %q %v", raw, err)
	}
	if err := p.Purge(ctx); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if err := p.Purge(ctx); err != nil {
		t.Fatalf("second purge: %v", err)
	}
	if _, err := p.Load(ctx); !errors.Is(err, schema.ErrCacheMiss) {
		t.Fatalf("expected ErrCacheMiss after purge, got %v", err)
	}
}

func TestFilePersister_CorruptFileIsPurgedByCache(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.json")
	if err := os.WriteFile(path, []byte("\x00garbage"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	f := newFakeFetcher(netDoc)
	c := schema.NewCache(f, schema.NewFilePersister(path))
	if _, err := c.Schema(context.Background()); err != nil {
		t.Fatalf("schema: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil || string(raw) != netDoc {
		t.Fatalf("expected the fresh document on disk, got %q %v", raw, err)
	}
}
