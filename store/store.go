// Package store is the bibliography store: validated CRUD for collections on
// top of a KV.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/reoring/hayabib"
	"github.com/reoring/hayabib/i18n"
	"github.com/reoring/hayabib/internal/metrics"
	"github.com/reoring/hayabib/validate"
)

// Validator checks a whole entry map. *validate.Registry implements it.
type Validator interface {
	ValidateEntries(ctx context.Context, m *hayabib.EntryMap) (validate.Result, error)
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the store logger.
func WithLogger(l *zap.Logger) Option { return func(s *Store) { s.log = l } }

// WithMetrics records operations.
func WithMetrics(m *metrics.Metrics) Option { return func(s *Store) { s.metrics = m } }

// WithClock replaces time.Now for timestamps.
func WithClock(now func() time.Time) Option { return func(s *Store) { s.now = now } }

// WriteOption tunes a single write.
type WriteOption func(*writeOptions)

type writeOptions struct{ prevalidated bool }

// Prevalidated skips whole-collection validation. It is for callers that
// already validated the part of the collection they changed.
func Prevalidated() WriteOption { return func(o *writeOptions) { o.prevalidated = true } }

// Store owns the collections.
type Store struct {
	kv      KV
	v       Validator
	log     *zap.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// New returns a Store over kv validating with v.
func New(kv KV, v Validator, opts ...Option) *Store {
	s := &Store{kv: kv, v: v, log: zap.NewNop(), now: time.Now}
	for _, o := range opts {
		o(s)
	}
	return s
}

// List returns every collection, in the KV's order.
func (s *Store) List(ctx context.Context) (_ []*hayabib.Collection, err error) {
	defer func() { s.metrics.StoreOp("list", err) }()
	cs, err := s.kv.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}
	return cs, nil
}

// Get returns the collection id, failing with ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (_ *hayabib.Collection, err error) {
	defer func() { s.metrics.StoreOp("get", err) }()
	c, err := s.kv.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get collection %q: %w", id, err)
	}
	c.EnsureEntries()
	return c, nil
}

// Exists reports whether a collection is stored under id.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	_, err := s.kv.Get(ctx, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, hayabib.ErrNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("look up collection %q: %w", id, err)
	}
}

// Create inserts c. It fails with ErrAlreadyExists when the id is taken and
// with ErrInvalidDocument when the entries do not validate.
func (s *Store) Create(ctx context.Context, c *hayabib.Collection, opts ...WriteOption) (err error) {
	defer func() { s.metrics.StoreOp("create", err) }()
	if err := s.prepare(ctx, c, opts); err != nil {
		return err
	}
	s.stamp(c)
	if err := s.kv.Add(ctx, c); err != nil {
		return fmt.Errorf("create collection %q: %w", c.Metadata.ID, err)
	}
	s.log.Debug("collection created", zap.String("id", c.Metadata.ID), zap.Int("entries", c.Entries.Len()))
	return nil
}

// Replace stores c whether or not its id existed.
func (s *Store) Replace(ctx context.Context, c *hayabib.Collection, opts ...WriteOption) (err error) {
	defer func() { s.metrics.StoreOp("replace", err) }()
	if err := s.prepare(ctx, c, opts); err != nil {
		return err
	}
	s.stamp(c)
	if err := s.kv.Put(ctx, c); err != nil {
		return fmt.Errorf("replace collection %q: %w", c.Metadata.ID, err)
	}
	s.log.Debug("collection replaced", zap.String("id", c.Metadata.ID), zap.Int("entries", c.Entries.Len()))
	return nil
}

// Delete removes id. Deleting an absent id succeeds.
func (s *Store) Delete(ctx context.Context, id string) (err error) {
	defer func() { s.metrics.StoreOp("delete", err) }()
	if err := s.kv.Delete(ctx, id); err != nil && !errors.Is(err, hayabib.ErrNotFound) {
		return fmt.Errorf("delete collection %q: %w", id, err)
	}
	return nil
}

// Rename stores updated in place of oldID. When the id changes the old
// record is deleted before the new one is inserted; the KV has no
// multi-key transaction, so a failure between the two steps loses the
// collection. That failure is logged at error level and returned.
func (s *Store) Rename(ctx context.Context, oldID string, updated *hayabib.Collection, opts ...WriteOption) (err error) {
	defer func() { s.metrics.StoreOp("rename", err) }()
	if err := s.prepare(ctx, updated, opts); err != nil {
		return err
	}
	newID := updated.Metadata.ID
	prev, err := s.kv.Get(ctx, oldID)
	if err != nil {
		return fmt.Errorf("rename collection %q: %w", oldID, err)
	}
	if newID != oldID {
		taken, err := s.Exists(ctx, newID)
		if err != nil {
			return err
		}
		if taken {
			return fmt.Errorf("rename collection %q to %q: %w", oldID, newID, hayabib.ErrIDConflict)
		}
	}
	if updated.Metadata.CreatedAt.IsZero() {
		updated.Metadata.CreatedAt = prev.Metadata.CreatedAt
	}
	s.stamp(updated)

	if newID == oldID {
		if err := s.kv.Put(ctx, updated); err != nil {
			return fmt.Errorf("rename collection %q: %w", oldID, err)
		}
		return nil
	}
	if err := s.kv.Delete(ctx, oldID); err != nil {
		return fmt.Errorf("rename collection %q: delete old record: %w", oldID, err)
	}
	if err := s.kv.Add(ctx, updated); err != nil {
		s.log.Error("collection lost between delete and insert during rename",
			zap.String("old_id", oldID), zap.String("new_id", newID), zap.Error(err))
		return fmt.Errorf("rename collection %q to %q: insert new record: %w", oldID, newID, err)
	}
	s.log.Debug("collection renamed", zap.String("old_id", oldID), zap.String("new_id", newID))
	return nil
}

// Patch applies a partial update to id and stamps UpdatedAt. New entries
// are validated unless Prevalidated is given.
func (s *Store) Patch(ctx context.Context, id string, p Patch, opts ...WriteOption) (err error) {
	defer func() { s.metrics.StoreOp("patch", err) }()
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return hayabib.InvalidDocument(hayabib.Issues{requiredIssue("/metadata/title", "title")})
	}
	if p.Entries != nil {
		if err := s.validate(ctx, id, p.Entries, opts); err != nil {
			return err
		}
	}
	now := s.now()
	p.UpdatedAt = &now
	if err := s.kv.Update(ctx, id, p); err != nil {
		return fmt.Errorf("patch collection %q: %w", id, err)
	}
	return nil
}

// prepare checks metadata and validates the entries.
func (s *Store) prepare(ctx context.Context, c *hayabib.Collection, opts []WriteOption) error {
	if c == nil {
		return fmt.Errorf("%w: nil collection", hayabib.ErrInvalidDocument)
	}
	if err := checkMetadata(c.Metadata); err != nil {
		return err
	}
	return s.validate(ctx, c.Metadata.ID, c.EnsureEntries(), opts)
}

func (s *Store) validate(ctx context.Context, id string, m *hayabib.EntryMap, opts []WriteOption) error {
	var o writeOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.prevalidated {
		return nil
	}
	res, err := s.v.ValidateEntries(ctx, m)
	if err != nil {
		return fmt.Errorf("validate collection %q: %w", id, err)
	}
	if !res.Valid {
		return hayabib.InvalidDocument(res.Errors)
	}
	return nil
}

func (s *Store) stamp(c *hayabib.Collection) {
	now := s.now()
	if c.Metadata.CreatedAt.IsZero() {
		c.Metadata.CreatedAt = now
	}
	c.Metadata.UpdatedAt = now
}

func checkMetadata(md hayabib.CollectionMetadata) error {
	if hayabib.IsReservedID(md.ID) {
		return fmt.Errorf("collection id %q: %w", md.ID, hayabib.ErrReservedID)
	}
	var iss hayabib.Issues
	if md.ID == "" {
		iss = hayabib.AppendIssues(iss, requiredIssue("/metadata/id", "id"))
	}
	if strings.TrimSpace(md.Title) == "" {
		iss = hayabib.AppendIssues(iss, requiredIssue("/metadata/title", "title"))
	}
	if len(iss) > 0 {
		return hayabib.InvalidDocument(iss)
	}
	return nil
}

func requiredIssue(path, property string) hayabib.Issue {
	return hayabib.Issue{
		Path:    path,
		Code:    hayabib.CodeRequired,
		Message: i18n.T(hayabib.CodeRequired, map[string]string{"property": property}),
		Params:  map[string]any{"property": property},
	}
}
