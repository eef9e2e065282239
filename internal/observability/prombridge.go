package observability

import (
	"net/http"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PromBridge republishes collector snapshots through a Prometheus
// registry, so hosts that already scrape Prometheus can consume the
// engine's counters, gauges, and per-endpoint request statistics without
// a second pipeline. The bridge reads a fresh snapshot on every scrape.
type PromBridge struct {
	collector *MetricsCollector
	registry  *prometheus.Registry
	namespace string
}

// NewPromBridge creates a bridge over the given collector. namespace
// prefixes every exported metric name; empty selects "agentpulse".
func NewPromBridge(collector *MetricsCollector, namespace string) (*PromBridge, error) {
	if namespace == "" {
		namespace = "agentpulse"
	}
	b := &PromBridge{
		collector: collector,
		registry:  prometheus.NewRegistry(),
		namespace: namespace,
	}
	if err := b.registry.Register(b); err != nil {
		return nil, err
	}
	return b, nil
}

// Handler returns the scrape handler for the bridge's registry.
func (b *PromBridge) Handler() http.Handler {
	return promhttp.HandlerFor(b.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

// Describe implements prometheus.Collector. Metric names are derived from
// snapshot keys at scrape time, so descriptions are emitted by Collect.
func (b *PromBridge) Describe(ch chan<- *prometheus.Desc) {
	prometheus.DescribeByCollect(b, ch)
}

// Collect implements prometheus.Collector from a fresh snapshot.
func (b *PromBridge) Collect(ch chan<- prometheus.Metric) {
	snap := b.collector.GetAllMetrics()

	for name, value := range snap.Counters {
		ch <- prometheus.MustNewConstMetric(
			b.desc(name+"_total", "Counter "+name),
			prometheus.CounterValue, value,
		)
	}
	for name, value := range snap.Gauges {
		ch <- prometheus.MustNewConstMetric(
			b.desc(name, "Gauge "+name),
			prometheus.GaugeValue, value,
		)
	}

	reqDesc := b.descLabeled("requests_total", "Lifetime requests per endpoint", "endpoint")
	for endpoint, count := range snap.RequestCounts {
		ch <- prometheus.MustNewConstMetric(reqDesc, prometheus.CounterValue, float64(count), endpoint)
	}
	errDesc := b.descLabeled("request_errors_total", "Lifetime request errors per endpoint", "endpoint")
	for endpoint, count := range snap.ErrorCounts {
		ch <- prometheus.MustNewConstMetric(errDesc, prometheus.CounterValue, float64(count), endpoint)
	}

	p95Desc := b.descLabeled("response_time_p95_ms", "p95 response time per endpoint", "endpoint")
	p99Desc := b.descLabeled("response_time_p99_ms", "p99 response time per endpoint", "endpoint")
	avgDesc := b.descLabeled("response_time_avg_ms", "mean response time per endpoint", "endpoint")
	for endpoint, stats := range snap.ResponseTimeStats {
		ch <- prometheus.MustNewConstMetric(p95Desc, prometheus.GaugeValue, stats.P95MS, endpoint)
		ch <- prometheus.MustNewConstMetric(p99Desc, prometheus.GaugeValue, stats.P99MS, endpoint)
		ch <- prometheus.MustNewConstMetric(avgDesc, prometheus.GaugeValue, stats.AvgMS, endpoint)
	}

	rateDesc := b.descLabeled("error_rate_percent", "Windowed error rate per endpoint", "endpoint")
	for endpoint, rate := range snap.ErrorRates {
		ch <- prometheus.MustNewConstMetric(rateDesc, prometheus.GaugeValue, rate, endpoint)
	}

	ch <- prometheus.MustNewConstMetric(
		b.desc("uptime_seconds", "Engine uptime in seconds"),
		prometheus.GaugeValue, snap.UptimeSeconds,
	)
}

func (b *PromBridge) desc(name, help string) *prometheus.Desc {
	return prometheus.NewDesc(b.namespace+"_"+sanitizeMetricName(name), help, nil, nil)
}

func (b *PromBridge) descLabeled(name, help string, labels ...string) *prometheus.Desc {
	return prometheus.NewDesc(b.namespace+"_"+sanitizeMetricName(name), help, labels, nil)
}

// sanitizeMetricName maps arbitrary metric names onto the Prometheus
// charset [a-zA-Z0-9_].
func sanitizeMetricName(name string) string {
	var b strings.Builder
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_':
			b.WriteRune(r)
		case r >= '0' && r <= '9' && i > 0:
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}
