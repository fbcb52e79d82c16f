package store

import (
	"context"
	"time"

	"github.com/reoring/hayabib"
)

// KV is the keyed store collections persist into, keyed by metadata.id.
// There are no transactions spanning keys.
//
// Get and Update fail with hayabib.ErrNotFound when the id is absent; Add
// fails with hayabib.ErrAlreadyExists when it is present. Put is an upsert
// and Delete of an absent id is a no-op.
type KV interface {
	GetAll(ctx context.Context) ([]*hayabib.Collection, error)
	Get(ctx context.Context, id string) (*hayabib.Collection, error)
	Put(ctx context.Context, c *hayabib.Collection) error
	Add(ctx context.Context, c *hayabib.Collection) error
	Delete(ctx context.Context, id string) error
	Update(ctx context.Context, id string, p Patch) error
}

// Patch is a partial update of one collection. Nil fields are left alone.
type Patch struct {
	Title       *string
	Description *string
	Entries     *hayabib.EntryMap
	UpdatedAt   *time.Time
}

// Empty reports whether the patch changes nothing.
func (p Patch) Empty() bool {
	return p.Title == nil && p.Description == nil && p.Entries == nil && p.UpdatedAt == nil
}

// Apply writes the set fields into c.
func (p Patch) Apply(c *hayabib.Collection) {
	if p.Title != nil {
		c.Metadata.Title = *p.Title
	}
	if p.Description != nil {
		c.Metadata.Description = *p.Description
	}
	if p.Entries != nil {
		c.Entries = p.Entries
	}
	if p.UpdatedAt != nil {
		c.Metadata.UpdatedAt = *p.UpdatedAt
	}
}
