// Package metrics exposes Prometheus instrumentation for the watchlist:
// store call counts and latencies, snapshot size, poster cache hits and HTTP
// requests.
package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mesh-intelligence/watchlist/pkg/types"
)

// Outcome label values.
const (
	OutcomeOK          = "ok"
	OutcomeUnavailable = "unavailable"
	OutcomeWriteError  = "write_error"
	OutcomeMissing     = "missing"
	OutcomeInvalid     = "invalid"
)

var (
	storeOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchlist_store_operations_total",
			Help: "Store calls by backend, operation and outcome.",
		},
		[]string{"backend", "op", "outcome"},
	)

	storeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "watchlist_store_operation_duration_seconds",
			Help:    "Store call latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "op"},
	)

	snapshotRecords = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "watchlist_snapshot_records",
		Help: "Records currently held in the local snapshot.",
	})

	// PosterCacheHits and PosterCacheMisses count poster cache lookups.
	PosterCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "watchlist_poster_cache_hits_total",
		Help: "Poster lookups answered from cache.",
	})
	PosterCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "watchlist_poster_cache_misses_total",
		Help: "Poster lookups that went to the provider.",
	})

	httpRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "watchlist_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		},
		[]string{"method", "route", "status"},
	)
	httpDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "watchlist_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// SetSnapshotSize records the number of records in the snapshot.
func SetSnapshotSize(n int) {
	snapshotRecords.Set(float64(n))
}

// ObserveHTTP records one served request.
func ObserveHTTP(method, route string, status string, d time.Duration) {
	httpRequests.WithLabelValues(method, route, status).Inc()
	httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

// Outcome classifies a store error for the outcome label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return OutcomeOK
	case errors.Is(err, types.ErrItemMissing):
		return OutcomeMissing
	case errors.Is(err, types.ErrValidation):
		return OutcomeInvalid
	case errors.Is(err, types.ErrStoreWrite):
		return OutcomeWriteError
	default:
		return OutcomeUnavailable
	}
}

// store decorates a types.Store with call counts and latencies.
type store struct {
	next    types.Store
	backend string
}

// InstrumentStore wraps next so every call is counted under backend.
func InstrumentStore(next types.Store, backend string) types.Store {
	return &store{next: next, backend: backend}
}

func (s *store) observe(op string, start time.Time, err error) {
	storeDuration.WithLabelValues(s.backend, op).Observe(time.Since(start).Seconds())
	storeOperations.WithLabelValues(s.backend, op, Outcome(err)).Inc()
}

func (s *store) Scan(ctx context.Context) ([]types.Record, error) {
	start := time.Now()
	recs, err := s.next.Scan(ctx)
	s.observe(types.OpScan, start, err)
	return recs, err
}

func (s *store) Get(ctx context.Context, id string) (types.Record, error) {
	start := time.Now()
	rec, err := s.next.Get(ctx, id)
	s.observe(types.OpGet, start, err)
	return rec, err
}

func (s *store) Create(ctx context.Context, rec types.Record) (types.Record, error) {
	start := time.Now()
	out, err := s.next.Create(ctx, rec)
	s.observe(types.OpCreate, start, err)
	return out, err
}

func (s *store) Update(ctx context.Context, id string, changes types.Changes) (types.Attributes, error) {
	start := time.Now()
	attrs, err := s.next.Update(ctx, id, changes)
	s.observe(types.OpUpdate, start, err)
	return attrs, err
}

func (s *store) Delete(ctx context.Context, id string) error {
	start := time.Now()
	err := s.next.Delete(ctx, id)
	s.observe(types.OpDelete, start, err)
	return err
}

func (s *store) Close() error {
	return s.next.Close()
}
