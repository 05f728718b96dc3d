// Package ringmetrics exports ring state and request outcomes to Prometheus.
package ringmetrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gotcp/ring"
)

const (
	NAMESPACE = "ring"
)

// Collector reports the slot usage and counters of every ring of a
// registry at scrape time.
type Collector struct {
	registry *ring.Registry

	tokens   *prometheus.Desc
	capacity *prometheus.Desc
	resets   *prometheus.Desc
	timeouts *prometheus.Desc
}

var _ prometheus.Collector = (*Collector)(nil)

func NewCollector(registry *ring.Registry) *Collector {
	return &Collector{
		registry: registry,
		tokens: prometheus.NewDesc(
			prometheus.BuildFQName(NAMESPACE, "", "tokens"),
			"Tokens by slot state.",
			[]string{"source", "state"}, nil,
		),
		capacity: prometheus.NewDesc(
			prometheus.BuildFQName(NAMESPACE, "", "capacity"),
			"Configured number of connections.",
			[]string{"source", "network"}, nil,
		),
		resets: prometheus.NewDesc(
			prometheus.BuildFQName(NAMESPACE, "", "resets_total"),
			"Connections dropped and dialled again.",
			[]string{"source"}, nil,
		),
		timeouts: prometheus.NewDesc(
			prometheus.BuildFQName(NAMESPACE, "", "timeouts_total"),
			"Requests failed by a response timeout.",
			[]string{"source"}, nil,
		),
	}
}

func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.tokens
	ch <- c.capacity
	ch <- c.resets
	ch <- c.timeouts
}

func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	for _, name := range c.registry.Names() {
		var r = c.registry.Get(name)
		if r == nil {
			continue
		}
		var stats = r.Stats()
		ch <- prometheus.MustNewConstMetric(c.tokens, prometheus.GaugeValue, float64(stats.Free), name, "free")
		ch <- prometheus.MustNewConstMetric(c.tokens, prometheus.GaugeValue, float64(stats.Busy), name, "busy")
		ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(r.Capacity()), name, r.Network())
		ch <- prometheus.MustNewConstMetric(c.resets, prometheus.CounterValue, float64(r.Resets()), name)
		ch <- prometheus.MustNewConstMetric(c.timeouts, prometheus.CounterValue, float64(r.Timeouts()), name)
	}
}

// Results records the outcome and latency of sampled requests.
type Results struct {
	latency *prometheus.HistogramVec
	total   *prometheus.CounterVec
}

func NewResults() *Results {
	return &Results{
		latency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: NAMESPACE,
				Name:      "request_duration_seconds",
				Help:      "Request latency from attach to delivery.",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 16),
			},
			[]string{"source"},
		),
		total: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: NAMESPACE,
				Name:      "requests_total",
				Help:      "Requests by response code.",
			},
			[]string{"source", "code"},
		),
	}
}

func (r *Results) Observe(source string, result *ring.Result) {
	r.total.WithLabelValues(source, result.ResponseCode).Inc()
	if result.Success {
		r.latency.WithLabelValues(source).Observe(result.Latency().Seconds())
	}
}

// Register adds every collector to reg.
func Register(reg prometheus.Registerer, c *Collector, r *Results) error {
	for _, collector := range []prometheus.Collector{c, r.latency, r.total} {
		if err := reg.Register(collector); err != nil {
			return err
		}
	}
	return nil
}
