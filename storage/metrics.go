package storage

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/trillian-merkle/fuelmerkle/common"
)

var (
	opTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fuelmerkle",
		Subsystem: "storage",
		Name:      "ops_total",
		Help:      "Total number of storage operations, by op and outcome.",
	}, []string{"op", "outcome"})

	opLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "fuelmerkle",
		Subsystem: "storage",
		Name:      "op_duration_seconds",
		Help:      "Latency of storage operations, by op.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})
)

func init() {
	prometheus.MustRegister(opTotal, opLatency)
}

// InstrumentedStore decorates another Store with Prometheus counters and
// latency histograms, keeping the core tree packages themselves free of
// any metrics concern (they stay synchronous and observation-free per the
// concurrency model; only the storage boundary is instrumented).
type InstrumentedStore struct {
	inner Store
}

// NewInstrumentedStore wraps inner with metrics collection.
func NewInstrumentedStore(inner Store) *InstrumentedStore {
	return &InstrumentedStore{inner: inner}
}

func (s *InstrumentedStore) observe(op string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	opTotal.WithLabelValues(op, outcome).Inc()
}

func (s *InstrumentedStore) Get(ctx context.Context, prefix, key common.Digest) ([]byte, bool, error) {
	timer := prometheus.NewTimer(opLatency.WithLabelValues("get"))
	defer timer.ObserveDuration()
	node, found, err := s.inner.Get(ctx, prefix, key)
	s.observe("get", err)
	return node, found, err
}

func (s *InstrumentedStore) Set(ctx context.Context, prefix, key common.Digest, node []byte) error {
	timer := prometheus.NewTimer(opLatency.WithLabelValues("set"))
	defer timer.ObserveDuration()
	err := s.inner.Set(ctx, prefix, key, node)
	s.observe("set", err)
	return err
}

func (s *InstrumentedStore) Take(ctx context.Context, prefix, key common.Digest) ([]byte, bool, error) {
	timer := prometheus.NewTimer(opLatency.WithLabelValues("take"))
	defer timer.ObserveDuration()
	node, found, err := s.inner.Take(ctx, prefix, key)
	s.observe("take", err)
	return node, found, err
}
