package query

import (
	"errors"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics observes cache behaviour. A nil *Metrics records nothing.
type Metrics struct {
	hits          *prometheus.CounterVec
	misses        *prometheus.CounterVec
	shared        *prometheus.CounterVec
	invalidations *prometheus.CounterVec
	fetchDuration *prometheus.HistogramVec
}

// NewMetrics registers the cache collectors on reg. Collectors that are
// already registered are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		hits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "productdesk_query_cache_hits_total",
			Help: "Reads served from a fresh cache entry.",
		}, []string{"cache"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "productdesk_query_cache_miss_total",
			Help: "Reads that required a fetch.",
		}, []string{"cache"}),
		shared: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "productdesk_query_cache_coalesced_total",
			Help: "Reads that joined a fetch already in flight.",
		}, []string{"cache"}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "productdesk_query_cache_invalidated_entries_total",
			Help: "Entries marked stale by invalidation.",
		}, []string{"cache"}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "productdesk_query_fetch_duration_seconds",
			Help:    "Duration of fetches issued by the query cache.",
			Buckets: prometheus.DefBuckets,
		}, []string{"cache", "outcome"}),
	}

	if err := register(reg, &m.hits); err != nil {
		return nil, err
	}
	if err := register(reg, &m.misses); err != nil {
		return nil, err
	}
	if err := register(reg, &m.shared); err != nil {
		return nil, err
	}
	if err := register(reg, &m.invalidations); err != nil {
		return nil, err
	}
	if err := reg.Register(m.fetchDuration); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return nil, err
		}
		existing, ok := already.ExistingCollector.(*prometheus.HistogramVec)
		if !ok {
			return nil, fmt.Errorf("query metrics: unexpected collector type %T", already.ExistingCollector)
		}
		m.fetchDuration = existing
	}
	return m, nil
}

func register(reg prometheus.Registerer, counter **prometheus.CounterVec) error {
	if err := reg.Register(*counter); err != nil {
		var already prometheus.AlreadyRegisteredError
		if !errors.As(err, &already) {
			return err
		}
		existing, ok := already.ExistingCollector.(*prometheus.CounterVec)
		if !ok {
			return fmt.Errorf("query metrics: unexpected collector type %T", already.ExistingCollector)
		}
		*counter = existing
	}
	return nil
}

func (m *Metrics) hit(cache string) {
	if m == nil {
		return
	}
	m.hits.WithLabelValues(cache).Inc()
}

func (m *Metrics) miss(cache string) {
	if m == nil {
		return
	}
	m.misses.WithLabelValues(cache).Inc()
}

func (m *Metrics) coalesced(cache string) {
	if m == nil {
		return
	}
	m.shared.WithLabelValues(cache).Inc()
}

func (m *Metrics) invalidated(cache string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.invalidations.WithLabelValues(cache).Add(float64(n))
}

func (m *Metrics) observeFetch(cache string, err error, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	m.fetchDuration.WithLabelValues(cache, outcome).Observe(d.Seconds())
}
