package schema

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"
)

// ErrCacheMiss is returned by Persister.Load when nothing is stored.
var ErrCacheMiss = errors.New("schema: cache miss")

// Persister stores the last good document across process restarts.
type Persister interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, raw []byte) error
	Purge(ctx context.Context) error
}

// FilePersister keeps the document in a single file.
type FilePersister struct {
	path string
}

// NewFilePersister returns a persister writing to path. Parent directories
// are created on Save.
func NewFilePersister(path string) *FilePersister { return &FilePersister{path: path} }

// Path is the cache file location.
func (p *FilePersister) Path() string { return p.path }

// Load reads the cached document. A missing file is ErrCacheMiss.
func (p *FilePersister) Load(_ context.Context) ([]byte, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("schema: read cache %s: %w", p.path, err)
	}
	return data, nil
}

// Save writes raw to a temporary file and renames it into place.
func (p *FilePersister) Save(_ context.Context, raw []byte) error {
	dir := filepath.Dir(p.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("schema: create cache dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".schema-*")
	if err != nil {
		return fmt.Errorf("schema: create temp file: %w", err)
	}
	name := tmp.Name()
	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(name)
		return fmt.Errorf("schema: write cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("schema: close cache: %w", err)
	}
	if err := os.Rename(name, p.path); err != nil {
		_ = os.Remove(name)
		return fmt.Errorf("schema: rename cache: %w", err)
	}
	return nil
}

// Purge removes the cache file. A missing file is not an error.
func (p *FilePersister) Purge(_ context.Context) error {
	if err := os.Remove(p.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("schema: purge cache: %w", err)
	}
	return nil
}

// MemoryPersister keeps the document in memory.
type MemoryPersister struct {
	mu     sync.Mutex
	data   []byte
	purges int
}

// NewMemoryPersister returns an empty MemoryPersister.
func NewMemoryPersister() *MemoryPersister { return &MemoryPersister{} }

// Load returns a copy of the stored document, or ErrCacheMiss.
func (p *MemoryPersister) Load(_ context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.data == nil {
		return nil, ErrCacheMiss
	}
	return slices.Clone(p.data), nil
}

// Save stores a copy of raw.
func (p *MemoryPersister) Save(_ context.Context, raw []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data = slices.Clone(raw)
	if p.data == nil {
		p.data = []byte{}
	}
	return nil
}

// Purge forgets the stored document.
func (p *MemoryPersister) Purge(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.data = nil
	p.purges++
	return nil
}

// Purges reports how many times Purge was called.
func (p *MemoryPersister) Purges() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.purges
}

type nopPersister struct{}

func (nopPersister) Load(context.Context) ([]byte, error) { return nil, ErrCacheMiss }
func (nopPersister) Save(context.Context, []byte) error   { return nil }
func (nopPersister) Purge(context.Context) error          { return nil }
