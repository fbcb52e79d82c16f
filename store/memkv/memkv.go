// Package memkv is an in-process store.KV. Records are kept encoded, so
// callers never share mutable state with the store.
package memkv

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/reoring/hayabib"
	"github.com/reoring/hayabib/store"
)

// KV implements store.KV in memory.
type KV struct {
	mu      sync.Mutex
	records map[string][]byte
}

var _ store.KV = (*KV)(nil)

// New returns an empty KV.
func New() *KV { return &KV{records: make(map[string][]byte)} }

// GetAll returns every collection ordered by id.
func (kv *KV) GetAll(_ context.Context) ([]*hayabib.Collection, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	ids := make([]string, 0, len(kv.records))
	for id := range kv.records {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	out := make([]*hayabib.Collection, 0, len(ids))
	for _, id := range ids {
		c, err := store.DecodeRecord(kv.records[id])
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}

func (kv *KV) Get(_ context.Context, id string) (*hayabib.Collection, error) {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	data, ok := kv.records[id]
	if !ok {
		return nil, fmt.Errorf("memkv: %q: %w", id, hayabib.ErrNotFound)
	}
	return store.DecodeRecord(data)
}

func (kv *KV) Put(_ context.Context, c *hayabib.Collection) error {
	data, err := store.EncodeRecord(c)
	if err != nil {
		return err
	}
	kv.mu.Lock()
	kv.records[c.Metadata.ID] = data
	kv.mu.Unlock()
	return nil
}

func (kv *KV) Add(_ context.Context, c *hayabib.Collection) error {
	data, err := store.EncodeRecord(c)
	if err != nil {
		return err
	}
	kv.mu.Lock()
	defer kv.mu.Unlock()
	if _, ok := kv.records[c.Metadata.ID]; ok {
		return fmt.Errorf("memkv: %q: %w", c.Metadata.ID, hayabib.ErrAlreadyExists)
	}
	kv.records[c.Metadata.ID] = data
	return nil
}

func (kv *KV) Delete(_ context.Context, id string) error {
	kv.mu.Lock()
	delete(kv.records, id)
	kv.mu.Unlock()
	return nil
}

func (kv *KV) Update(_ context.Context, id string, p store.Patch) error {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	data, ok := kv.records[id]
	if !ok {
		return fmt.Errorf("memkv: %q: %w", id, hayabib.ErrNotFound)
	}
	c, err := store.DecodeRecord(data)
	if err != nil {
		return err
	}
	p.Apply(c)
	if data, err = store.EncodeRecord(c); err != nil {
		return err
	}
	kv.records[id] = data
	return nil
}

// Len returns the number of stored collections.
func (kv *KV) Len() int {
	kv.mu.Lock()
	defer kv.mu.Unlock()
	return len(kv.records)
}
