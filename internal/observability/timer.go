package observability

import (
	"fmt"
	"time"
)

// TimerContext measures one scoped operation and forwards the elapsed
// milliseconds to the collector exactly once when stopped. The intended
// form is:
//
//	defer collector.StartTimer("intent_routing", nil).Stop()
//
// which emits the timing on every exit path, including panics.
type TimerContext struct {
	collector *MetricsCollector
	name      string
	labels    map[string]string
	start     time.Time
	stopped   bool
}

// StartTimer begins a scoped timing for the named timer metric.
func (c *MetricsCollector) StartTimer(name string, labels map[string]string) *TimerContext {
	return &TimerContext{
		collector: c,
		name:      name,
		labels:    labels,
		start:     time.Now(),
	}
}

// Stop records the elapsed time since StartTimer in milliseconds. Calls
// after the first are no-ops, so a deferred Stop may coexist with an
// explicit early one.
func (t *TimerContext) Stop() {
	if t.stopped {
		return
	}
	t.stopped = true
	elapsed := float64(time.Since(t.start)) / float64(time.Millisecond)
	t.collector.RecordTimer(t.name, elapsed, t.labels)
}

// RequestTracker wraps operations so that every invocation lands in the
// collector's per-endpoint request metrics, whether the operation returns
// normally, returns an error, or panics.
type RequestTracker struct {
	collector *MetricsCollector
}

// NewRequestTracker creates a RequestTracker feeding the given collector.
func NewRequestTracker(collector *MetricsCollector) *RequestTracker {
	return &RequestTracker{collector: collector}
}

// TrackRequest runs fn, records the elapsed time and success/failure for
// the endpoint, and returns fn's error unchanged. Panics propagate
// unchanged after the request is recorded as a failure; tracking never
// suppresses application errors.
func (rt *RequestTracker) TrackRequest(endpoint string, fn func() error) error {
	start := time.Now()
	success := false
	defer func() {
		elapsed := float64(time.Since(start)) / float64(time.Millisecond)
		rt.collector.RecordRequest(endpoint, elapsed, success)
	}()

	if err := fn(); err != nil {
		return err
	}
	success = true
	return nil
}

// TrackMCPCall tracks a call to an MCP server method under the endpoint
// name "mcp_<server>_<method>".
func (rt *RequestTracker) TrackMCPCall(serverName, method string, fn func() error) error {
	return rt.TrackRequest(fmt.Sprintf("mcp_%s_%s", serverName, method), fn)
}
