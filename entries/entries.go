// Package entries edits single entries inside stored collections. Each
// operation reads the collection, changes its entry map and writes the whole
// collection back; the entry validator replaces whole-collection validation
// on these writes.
package entries

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/reoring/hayabib"
	"github.com/reoring/hayabib/store"
	"github.com/reoring/hayabib/validate"
)

// Validator checks one top-level entry. *validate.Registry implements it.
type Validator interface {
	ValidateEntry(ctx context.Context, e *hayabib.Entry) (validate.Result, error)
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option { return func(s *Service) { s.log = l } }

// Service implements entry-level operations.
type Service struct {
	st  *store.Store
	v   Validator
	log *zap.Logger
}

// New returns a Service writing through st.
func New(st *store.Store, v Validator, opts ...Option) *Service {
	s := &Service{st: st, v: v, log: zap.NewNop()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ErrEmptyKey is returned for an empty entry key.
var ErrEmptyKey = errors.New("entries: empty entry key")

// Get returns entry key of collection id. Both must exist.
func (s *Service) Get(ctx context.Context, id, key string) (*hayabib.Entry, error) {
	c, err := s.st.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	e, ok := c.Entries.Get(key)
	if !ok {
		return nil, fmt.Errorf("entry %q in %q: %w", key, id, hayabib.ErrNotFound)
	}
	return e, nil
}

// Add inserts e under key. It fails with ErrDuplicateEntry when key is
// taken and with ErrInvalidEntry when e does not validate; in both cases the
// stored collection is unchanged.
func (s *Service) Add(ctx context.Context, id, key string, e *hayabib.Entry) error {
	if key == "" {
		return ErrEmptyKey
	}
	c, err := s.st.Get(ctx, id)
	if err != nil {
		return err
	}
	if c.Entries.Has(key) {
		return fmt.Errorf("entry %q in %q: %w", key, id, hayabib.ErrDuplicateEntry)
	}
	if err := s.check(ctx, key, e); err != nil {
		return err
	}
	c.Entries.Set(key, e)
	if err := s.st.Replace(ctx, c, store.Prevalidated()); err != nil {
		return err
	}
	s.log.Debug("entry added", zap.String("collection", id), zap.String("key", key))
	return nil
}

// Delete removes key from collection id. An absent key is not an error; an
// absent collection is.
func (s *Service) Delete(ctx context.Context, id, key string) error {
	c, err := s.st.Get(ctx, id)
	if err != nil {
		return err
	}
	if !c.Entries.Delete(key) {
		return nil
	}
	if err := s.st.Replace(ctx, c, store.Prevalidated()); err != nil {
		return err
	}
	s.log.Debug("entry deleted", zap.String("collection", id), zap.String("key", key))
	return nil
}

// Update validates e and stores it under newKey. When oldKey is non-empty,
// differs from newKey, and newKey is not taken, the entry at oldKey is
// superseded: it is renamed in place, so the entry keeps its position.
// When newKey is taken, oldKey is left alone and newKey is overwritten.
func (s *Service) Update(ctx context.Context, id, newKey string, e *hayabib.Entry, oldKey string) error {
	if newKey == "" {
		return ErrEmptyKey
	}
	if err := s.check(ctx, newKey, e); err != nil {
		return err
	}
	c, err := s.st.Get(ctx, id)
	if err != nil {
		return err
	}
	if oldKey != "" && oldKey != newKey && !c.Entries.Has(newKey) {
		c.Entries.Rename(oldKey, newKey)
	}
	c.Entries.Set(newKey, e)
	if err := s.st.Replace(ctx, c, store.Prevalidated()); err != nil {
		return err
	}
	s.log.Debug("entry updated", zap.String("collection", id),
		zap.String("key", newKey), zap.String("old_key", oldKey))
	return nil
}

// check runs the entry validator. Issue paths are rooted at the entry key so
// they read the same as whole-collection issues.
func (s *Service) check(ctx context.Context, key string, e *hayabib.Entry) error {
	if e == nil {
		return fmt.Errorf("entry %q: %w: nil entry", key, hayabib.ErrInvalidEntry)
	}
	res, err := s.v.ValidateEntry(ctx, e)
	if err != nil {
		return fmt.Errorf("validate entry %q: %w", key, err)
	}
	if !res.Valid {
		return hayabib.InvalidEntry(res.Errors.Prefix("/" + hayabib.EscapePointer(key)))
	}
	return nil
}
