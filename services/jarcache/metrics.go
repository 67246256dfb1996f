package jarcache

import "github.com/prometheus/client_golang/prometheus"

// Metrics tracks cache and transfer activity. Counters are created detached
// so tests can build engines freely; call Register once per process to expose
// them.
type Metrics struct {
	CacheHits        prometheus.Counter
	CacheMisses      prometheus.Counter
	DownloadFailures prometheus.Counter
	DownloadedBytes  prometheus.Counter
}

func NewMetrics() *Metrics {
	return &Metrics{
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jarvault",
			Name:      "cache_hits_total",
			Help:      "Requests served from an already populated storage key.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jarvault",
			Name:      "cache_misses_total",
			Help:      "Requests that required fetching from an upstream origin.",
		}),
		DownloadFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jarvault",
			Name:      "download_failures_total",
			Help:      "Origin downloads or store uploads that failed.",
		}),
		DownloadedBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "jarvault",
			Name:      "downloaded_bytes_total",
			Help:      "Bytes streamed from upstream origins.",
		}),
	}
}

// Register attaches the counters to the given registerer.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.CacheHits, m.CacheMisses, m.DownloadFailures, m.DownloadedBytes} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
