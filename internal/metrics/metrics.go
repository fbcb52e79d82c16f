// Package metrics holds the prometheus collectors shared by the schema cache,
// the validator registry and the store. A nil *Metrics is valid and records
// nothing.
package metrics

import (
	"io"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/common/expfmt"
)

const namespace = "hayabib"

// Outcome label values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics groups the collectors.
type Metrics struct {
	SchemaFetches *prometheus.CounterVec
	CacheHits     *prometheus.CounterVec
	Compilations  prometheus.Counter
	StoreOps      *prometheus.CounterVec
}

// New creates the collectors and registers them on reg. A nil reg leaves
// them unregistered, which tests use to read values directly.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		SchemaFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "schema",
			Name:      "fetches_total",
			Help:      "Network fetches of the schema document by outcome.",
		}, []string{"outcome"}),
		CacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "schema",
			Name:      "cache_hits_total",
			Help:      "Schema lookups by the cache layer that answered them.",
		}, []string{"layer"}),
		Compilations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "validate",
			Name:      "compilations_total",
			Help:      "Validator compilations, one per distinct schema document.",
		}),
		StoreOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "operations_total",
			Help:      "Bibliography store operations by operation and outcome.",
		}, []string{"op", "outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.SchemaFetches, m.CacheHits, m.Compilations, m.StoreOps)
	}
	return m
}

// NewRegistry returns a registry carrying the Go runtime and process
// collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// SchemaFetch counts one network fetch.
func (m *Metrics) SchemaFetch(err error) {
	if m == nil {
		return
	}
	m.SchemaFetches.WithLabelValues(outcome(err)).Inc()
}

// CacheHit counts a lookup answered by layer (memory, persisted, network, builtin).
func (m *Metrics) CacheHit(layer string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(layer).Inc()
}

// Compiled counts one validator compilation.
func (m *Metrics) Compiled() {
	if m == nil {
		return
	}
	m.Compilations.Inc()
}

// StoreOp counts one store operation.
func (m *Metrics) StoreOp(op string, err error) {
	if m == nil {
		return
	}
	m.StoreOps.WithLabelValues(op, outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeOK
}

// Dump writes every metric family gathered from g in the text exposition
// format.
func Dump(w io.Writer, g prometheus.Gatherer) error {
	mfs, err := g.Gather()
	if err != nil {
		return err
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range mfs {
		if err := enc.Encode(mf); err != nil {
			return err
		}
	}
	return nil
}
