package observability

import (
	"sort"
	"sync"
	"time"
)

const (
	// DefaultMaxSamples is the default capacity of histogram and timer
	// sample windows.
	DefaultMaxSamples = 10000

	// DefaultErrorRateWindow is the trailing window used for per-endpoint
	// error rates when no explicit window is given.
	DefaultErrorRateWindow = 5 * time.Minute

	// responseTimeWindow bounds the per-endpoint response-time samples.
	responseTimeWindow = 1000

	// errorTimestampWindow bounds the per-endpoint error timestamp ring.
	errorTimestampWindow = 100
)

// MetricSummary holds distribution statistics derived from a sample window
// at query time. It is never stored.
type MetricSummary struct {
	Name        string    `json:"name"`
	Count       int       `json:"count"`
	Min         float64   `json:"min"`
	Max         float64   `json:"max"`
	Avg         float64   `json:"avg"`
	Median      float64   `json:"median"`
	P95         float64   `json:"p95"`
	P99         float64   `json:"p99"`
	LastUpdated time.Time `json:"last_updated"`
}

// ResponseTimeStats is the per-endpoint summary embedded in a metrics
// snapshot. All values are milliseconds.
type ResponseTimeStats struct {
	Count    int     `json:"count"`
	MinMS    float64 `json:"min_ms"`
	MaxMS    float64 `json:"max_ms"`
	AvgMS    float64 `json:"avg_ms"`
	MedianMS float64 `json:"median_ms"`
	P95MS    float64 `json:"p95_ms"`
	P99MS    float64 `json:"p99_ms"`
}

// MetricsSnapshot is the full pull-based view of collector state.
type MetricsSnapshot struct {
	Timestamp         time.Time                    `json:"timestamp"`
	UptimeSeconds     float64                      `json:"uptime_seconds"`
	Counters          map[string]float64           `json:"counters"`
	Gauges            map[string]float64           `json:"gauges"`
	RequestCounts     map[string]int64             `json:"request_counts"`
	ErrorCounts       map[string]int64             `json:"error_counts"`
	ResponseTimeStats map[string]ResponseTimeStats `json:"response_time_stats"`
	ErrorRates        map[string]float64           `json:"error_rates"`
}

// MetricsCollector aggregates counters, gauges, bounded histogram/timer
// sample windows, and per-endpoint request tracking. All public operations
// take a single mutex for the duration of the state access and perform no
// I/O while holding it, so the collector is safe for concurrent callers.
//
// Values are accepted as-is: negative or NaN durations are recorded without
// validation, which is the caller's responsibility.
type MetricsCollector struct {
	mu         sync.Mutex
	maxSamples int

	counters map[string]float64
	gauges   map[string]float64

	histograms map[string]*Ring[float64]
	timers     map[string]*Ring[float64]
	labels     map[string]map[string]string

	requestCounts map[string]int64
	errorCounts   map[string]int64
	responseTimes map[string]*Ring[float64]
	errorTimes    map[string]*Ring[time.Time]
	requestTimes  map[string]*Ring[time.Time]

	startTime time.Time
	now       func() time.Time
}

// NewMetricsCollector creates a collector whose histogram and timer windows
// hold at most maxSamples entries. maxSamples <= 0 selects
// DefaultMaxSamples.
func NewMetricsCollector(maxSamples int) *MetricsCollector {
	if maxSamples <= 0 {
		maxSamples = DefaultMaxSamples
	}
	return &MetricsCollector{
		maxSamples:    maxSamples,
		counters:      make(map[string]float64),
		gauges:        make(map[string]float64),
		histograms:    make(map[string]*Ring[float64]),
		timers:        make(map[string]*Ring[float64]),
		labels:        make(map[string]map[string]string),
		requestCounts: make(map[string]int64),
		errorCounts:   make(map[string]int64),
		responseTimes: make(map[string]*Ring[float64]),
		errorTimes:    make(map[string]*Ring[time.Time]),
		requestTimes:  make(map[string]*Ring[time.Time]),
		startTime:     time.Now(),
		now:           time.Now,
	}
}

// IncrementCounter adds value to the named counter, creating it at zero if
// absent.
func (c *MetricsCollector) IncrementCounter(name string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.counters[name] += value
	c.setLabelsLocked(name, labels)
}

// SetGauge overwrites the named gauge with value (last write wins).
func (c *MetricsCollector) SetGauge(name string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.gauges[name] = value
	c.setLabelsLocked(name, labels)
}

// RecordHistogram appends value to the named histogram's bounded sample
// window.
func (c *MetricsCollector) RecordHistogram(name string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ring, ok := c.histograms[name]
	if !ok {
		ring = NewRing[float64](c.maxSamples)
		c.histograms[name] = ring
	}
	ring.Append(value)
	c.setLabelsLocked(name, labels)
}

// RecordTimer appends a duration in milliseconds to the named timer's
// bounded sample window.
func (c *MetricsCollector) RecordTimer(name string, durationMS float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ring, ok := c.timers[name]
	if !ok {
		ring = NewRing[float64](c.maxSamples)
		c.timers[name] = ring
	}
	ring.Append(durationMS)
	c.setLabelsLocked(name, labels)
}

// RecordRequest increments the endpoint's request counter, appends the
// response time to its bounded window, and on failure records the current
// time in the endpoint's error-timestamp ring.
func (c *MetricsCollector) RecordRequest(endpoint string, responseTimeMS float64, success bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	c.requestCounts[endpoint]++

	rt, ok := c.responseTimes[endpoint]
	if !ok {
		rt = NewRing[float64](responseTimeWindow)
		c.responseTimes[endpoint] = rt
	}
	rt.Append(responseTimeMS)

	reqs, ok := c.requestTimes[endpoint]
	if !ok {
		reqs = NewRing[time.Time](responseTimeWindow)
		c.requestTimes[endpoint] = reqs
	}
	reqs.Append(now)

	if !success {
		c.errorCounts[endpoint]++
		errs, ok := c.errorTimes[endpoint]
		if !ok {
			errs = NewRing[time.Time](errorTimestampWindow)
			c.errorTimes[endpoint] = errs
		}
		errs.Append(now)
	}
}

// GetResponseTimeStats returns distribution statistics for an endpoint's
// response times, or nil when no samples have been recorded. Timer windows
// of the same name serve as the sample source for scoped timings recorded
// via RecordTimer.
func (c *MetricsCollector) GetResponseTimeStats(name string) *MetricSummary {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.responseTimeStatsLocked(name)
}

func (c *MetricsCollector) responseTimeStatsLocked(name string) *MetricSummary {
	ring, ok := c.responseTimes[name]
	if !ok || ring.Len() == 0 {
		ring, ok = c.timers[name]
		if !ok || ring.Len() == 0 {
			return nil
		}
	}

	samples := ring.Values()
	sum := 0.0
	for _, v := range samples {
		sum += v
	}
	sort.Float64s(samples)

	return &MetricSummary{
		Name:        name + "_response_time",
		Count:       len(samples),
		Min:         samples[0],
		Max:         samples[len(samples)-1],
		Avg:         sum / float64(len(samples)),
		Median:      median(samples),
		P95:         percentile(samples, 95),
		P99:         percentile(samples, 99),
		LastUpdated: c.now(),
	}
}

// GetErrorRate returns the endpoint's error rate as a percentage: errors
// recorded within the trailing window divided by the lifetime request
// count. The windowed-numerator/lifetime-denominator split intentionally
// preserves the behavior downstream dashboards were built against; see
// GetWindowedErrorRate for the consistent variant.
func (c *MetricsCollector) GetErrorRate(endpoint string, window time.Duration) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.errorRateLocked(endpoint, window)
}

func (c *MetricsCollector) errorRateLocked(endpoint string, window time.Duration) float64 {
	errs, ok := c.errorTimes[endpoint]
	if !ok {
		return 0
	}

	cutoff := c.now().Add(-window)
	recent := 0
	for _, ts := range errs.Values() {
		if ts.After(cutoff) {
			recent++
		}
	}

	total := c.requestCounts[endpoint]
	if total == 0 {
		return 0
	}
	return float64(recent) / float64(total) * 100
}

// GetWindowedErrorRate returns the endpoint's error rate as a percentage
// over requests within the trailing window only.
func (c *MetricsCollector) GetWindowedErrorRate(endpoint string, window time.Duration) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := c.now().Add(-window)

	recentRequests := 0
	if reqs, ok := c.requestTimes[endpoint]; ok {
		for _, ts := range reqs.Values() {
			if ts.After(cutoff) {
				recentRequests++
			}
		}
	}
	if recentRequests == 0 {
		return 0
	}

	recentErrors := 0
	if errs, ok := c.errorTimes[endpoint]; ok {
		for _, ts := range errs.Values() {
			if ts.After(cutoff) {
				recentErrors++
			}
		}
	}
	return float64(recentErrors) / float64(recentRequests) * 100
}

// GetAllMetrics returns a full snapshot of collector state: counters,
// gauges, per-endpoint request/error counts, response-time summaries,
// error rates, and process uptime.
func (c *MetricsCollector) GetAllMetrics() MetricsSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	snap := MetricsSnapshot{
		Timestamp:         now,
		UptimeSeconds:     now.Sub(c.startTime).Seconds(),
		Counters:          make(map[string]float64, len(c.counters)),
		Gauges:            make(map[string]float64, len(c.gauges)),
		RequestCounts:     make(map[string]int64, len(c.requestCounts)),
		ErrorCounts:       make(map[string]int64, len(c.errorCounts)),
		ResponseTimeStats: make(map[string]ResponseTimeStats, len(c.responseTimes)),
		ErrorRates:        make(map[string]float64, len(c.errorTimes)),
	}

	for k, v := range c.counters {
		snap.Counters[k] = v
	}
	for k, v := range c.gauges {
		snap.Gauges[k] = v
	}
	for k, v := range c.requestCounts {
		snap.RequestCounts[k] = v
	}
	for k, v := range c.errorCounts {
		snap.ErrorCounts[k] = v
	}
	for endpoint := range c.responseTimes {
		if stats := c.responseTimeStatsLocked(endpoint); stats != nil {
			snap.ResponseTimeStats[endpoint] = ResponseTimeStats{
				Count:    stats.Count,
				MinMS:    stats.Min,
				MaxMS:    stats.Max,
				AvgMS:    stats.Avg,
				MedianMS: stats.Median,
				P95MS:    stats.P95,
				P99MS:    stats.P99,
			}
		}
	}
	for endpoint := range c.errorTimes {
		snap.ErrorRates[endpoint] = c.errorRateLocked(endpoint, DefaultErrorRateWindow)
	}

	return snap
}

func (c *MetricsCollector) setLabelsLocked(name string, labels map[string]string) {
	if len(labels) == 0 {
		return
	}
	copied := make(map[string]string, len(labels))
	for k, v := range labels {
		copied[k] = v
	}
	c.labels[name] = copied
}

// Labels returns the labels last recorded for the named metric, or nil.
func (c *MetricsCollector) Labels(name string) map[string]string {
	c.mu.Lock()
	defer c.mu.Unlock()

	src, ok := c.labels[name]
	if !ok {
		return nil
	}
	out := make(map[string]string, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}
