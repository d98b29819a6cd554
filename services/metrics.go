package services

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the loader's Prometheus collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	loads           *prometheus.CounterVec
	cacheHits       prometheus.Counter
	rejectedRecords prometheus.Counter
	loadDuration    prometheus.Histogram
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "bids",
			Name:      "loads_total",
			Help:      "Dataset loads by result.",
		}, []string{"result"}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bids",
			Name:      "cache_hits_total",
			Help:      "Loads answered from the dataset cache.",
		}),
		rejectedRecords: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "bids",
			Name:      "rejected_records_total",
			Help:      "Records dropped by validation in successful loads.",
		}),
		loadDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "bids",
			Name:      "load_duration_seconds",
			Help:      "Time spent fetching, validating and processing a dataset.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
	for _, c := range []prometheus.Collector{m.loads, m.cacheHits, m.rejectedRecords, m.loadDuration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeLoad(result string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.loads.WithLabelValues(result).Inc()
	if result == "success" || result == "error" {
		m.loadDuration.Observe(elapsed.Seconds())
	}
}

func (m *Metrics) observeCacheHit() {
	if m == nil {
		return
	}
	m.cacheHits.Inc()
	m.loads.WithLabelValues("cached").Inc()
}

func (m *Metrics) observeRejected(n int) {
	if m == nil || n == 0 {
		return
	}
	m.rejectedRecords.Add(float64(n))
}
