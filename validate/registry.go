package validate

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/reoring/hayabib"
	"github.com/reoring/hayabib/codec"
	"github.com/reoring/hayabib/internal/metrics"
	"github.com/reoring/hayabib/schema"
)

// Source supplies the current schema document. *schema.Cache implements it.
type Source interface {
	Schema(ctx context.Context) (*schema.Document, error)
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the logger used for compilation warnings.
func WithLogger(l *zap.Logger) Option { return func(r *Registry) { r.log = l } }

// WithMetrics records compilations.
func WithMetrics(m *metrics.Metrics) Option { return func(r *Registry) { r.metrics = m } }

// Registry hands out validators for the current schema document, compiling
// each document once.
type Registry struct {
	src     Source
	log     *zap.Logger
	metrics *metrics.Metrics

	mu           sync.Mutex
	doc          *schema.Document
	set          compiled
	compilations int
}

type compiled struct {
	whole, entry *Validator
	diag         Diag
	err          error
}

// NewRegistry returns a Registry reading documents from src.
func NewRegistry(src Source, opts ...Option) *Registry {
	r := &Registry{src: src, log: zap.NewNop()}
	for _, o := range opts {
		o(r)
	}
	return r
}

// WholeCollection returns the validator for an entire collection.
func (r *Registry) WholeCollection(ctx context.Context) (*Validator, error) {
	c, err := r.current(ctx)
	if err != nil {
		return nil, err
	}
	return c.whole, nil
}

// Entry returns the validator for a single top-level entry.
func (r *Registry) Entry(ctx context.Context) (*Validator, error) {
	c, err := r.current(ctx)
	if err != nil {
		return nil, err
	}
	return c.entry, nil
}

// Compilations reports how many times a document has been compiled.
func (r *Registry) Compilations() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.compilations
}

// Diag returns the warnings of the most recent compilation, or nil.
func (r *Registry) Diag() Diag {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.set.diag
}

// ValidateEntries checks a whole entry map against the collection schema.
func (r *Registry) ValidateEntries(ctx context.Context, m *hayabib.EntryMap) (Result, error) {
	v, err := r.WholeCollection(ctx)
	if err != nil {
		return Result{}, err
	}
	return v.Validate(codec.EntriesToTree(m)), nil
}

// ValidateEntry checks one top-level entry.
func (r *Registry) ValidateEntry(ctx context.Context, e *hayabib.Entry) (Result, error) {
	v, err := r.Entry(ctx)
	if err != nil {
		return Result{}, err
	}
	return v.Validate(codec.EncodeEntry(e)), nil
}

func (r *Registry) current(ctx context.Context) (compiled, error) {
	doc, err := r.src.Schema(ctx)
	if err != nil {
		return compiled{}, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.doc == doc {
		return r.set, r.set.err
	}
	r.set = r.compile(doc)
	r.doc = doc
	return r.set, r.set.err
}

// compile runs with r.mu held. A document that does not compile or cannot
// describe entries is replaced by the built-in default so validation keeps
// working.
func (r *Registry) compile(doc *schema.Document) compiled {
	whole, entry, d, err := Compile(doc)
	r.count()
	if err != nil && doc.Source() != schema.SourceBuiltin {
		r.log.Warn("schema document is unusable; validating with the built-in default",
			zap.String("source", doc.Source().String()), zap.Error(err))
		def, derr := schema.Default()
		if derr != nil {
			return compiled{err: derr}
		}
		whole, entry, d, err = Compile(def)
		r.count()
	}
	if err != nil {
		return compiled{diag: d, err: err}
	}
	if d.HasWarnings() {
		r.log.Warn("schema compiled with warnings",
			zap.String("digest", doc.Digest()), zap.Strings("warnings", d.Warnings()))
	}
	return compiled{whole: whole, entry: entry, diag: d}
}

func (r *Registry) count() {
	r.compilations++
	r.metrics.Compiled()
}
