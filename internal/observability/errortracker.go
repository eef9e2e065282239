package observability

import (
	"fmt"
	"reflect"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
)

const (
	// DefaultMaxErrors caps the number of unique error events tracked.
	DefaultMaxErrors = 5000

	// evictionBatchSize is how many of the oldest events (by last-seen)
	// one pruning pass removes once DefaultMaxErrors is exceeded.
	evictionBatchSize = 100

	// recentErrorsWindow bounds the lightweight recent-errors ring that
	// backs the rolling error rate.
	recentErrorsWindow = 1000

	// errorRateWindow is the trailing window for the rolling error rate.
	errorRateWindow = 300 * time.Second
)

// ErrorContext carries the caller-supplied context of a failure. All
// fields are optional; absent numerics count as zero when rules are
// evaluated. Extra holds anything outside the recognized set.
type ErrorContext struct {
	Function            string         `json:"function,omitempty"`
	Module              string         `json:"module,omitempty"`
	Source              string         `json:"source,omitempty"`
	ServerName          string         `json:"server_name,omitempty"`
	ConsecutiveFailures int            `json:"consecutive_failures,omitempty"`
	Extra               map[string]any `json:"extra,omitempty"`
}

// ErrorEvent is the deduplicated record of a recurring error signature.
// Identical failures (same type, message, and originating function)
// collapse into one event with an incrementing count.
type ErrorEvent struct {
	ID            string        `json:"id"`
	Timestamp     time.Time     `json:"timestamp"`
	Category      ErrorCategory `json:"category"`
	Severity      AlertSeverity `json:"severity"`
	Message       string        `json:"message"`
	ExceptionType string        `json:"exception_type"`
	StackTrace    string        `json:"stack_trace,omitempty"`
	Context       ErrorContext  `json:"context"`
	Count         int           `json:"count"`
	FirstSeen     time.Time     `json:"first_seen"`
	LastSeen      time.Time     `json:"last_seen"`
}

// RecentError is the lightweight entry kept in the recent-errors ring.
type RecentError struct {
	ID        string        `json:"id"`
	Timestamp time.Time     `json:"timestamp"`
	Category  ErrorCategory `json:"category"`
	Message   string        `json:"message"`
}

// TopError is one entry of the occurrence-ranked error list in a summary.
type TopError struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// ErrorSummary is the pull-based view of tracker state.
type ErrorSummary struct {
	TotalUniqueErrors  int                   `json:"total_unique_errors"`
	TotalErrorCount    int                   `json:"total_error_count"`
	RecentErrorsCount  int                   `json:"recent_errors_count"`
	ErrorRatePerMinute float64               `json:"error_rate_per_minute"`
	CategoryBreakdown  map[ErrorCategory]int `json:"category_breakdown"`
	SeverityBreakdown  map[AlertSeverity]int `json:"severity_breakdown"`
	ActiveAlerts       int                   `json:"active_alerts"`
	TopErrors          []TopError            `json:"top_errors"`
}

// AlertDispatcher delivers alerts to external sinks. Dispatch must not
// block: the tracker calls it outside its lock but on the tracking path.
type AlertDispatcher interface {
	Dispatch(alert Alert)
}

// ErrorTrackerConfig configures an ErrorTracker.
type ErrorTrackerConfig struct {
	// MaxErrors caps unique tracked errors; <= 0 selects DefaultMaxErrors.
	MaxErrors int

	// Rules is the alert rule set; nil selects DefaultAlertRules. The
	// rules are fixed for the tracker's lifetime.
	Rules []AlertRule

	// Dispatcher receives created alerts. Nil disables delivery; alerts
	// are still recorded.
	Dispatcher AlertDispatcher

	// EventLog receives engine events (alerts fired, evictions). Optional.
	EventLog EventLog
}

// ErrorTracker classifies failures, deduplicates them into ErrorEvents,
// computes a rolling error rate, evaluates alert rules, and emits alerts.
// All shared state is guarded by one mutex; alert delivery happens outside
// it so a slow sink cannot stall tracking.
type ErrorTracker struct {
	mu             sync.Mutex
	maxErrors      int
	errors         map[string]*ErrorEvent
	recent         *Ring[RecentError]
	alerts         map[string]*Alert
	rules          []AlertRule
	lastAlertTimes map[string]time.Time

	dispatcher AlertDispatcher
	eventLog   EventLog
	now        func() time.Time
}

// NewErrorTracker creates a tracker from cfg.
func NewErrorTracker(cfg ErrorTrackerConfig) *ErrorTracker {
	maxErrors := cfg.MaxErrors
	if maxErrors <= 0 {
		maxErrors = DefaultMaxErrors
	}
	rules := cfg.Rules
	if rules == nil {
		rules = DefaultAlertRules()
	}
	return &ErrorTracker{
		maxErrors:      maxErrors,
		errors:         make(map[string]*ErrorEvent),
		recent:         NewRing[RecentError](recentErrorsWindow),
		alerts:         make(map[string]*Alert),
		rules:          rules,
		lastAlertTimes: make(map[string]time.Time),
		dispatcher:     cfg.Dispatcher,
		eventLog:       cfg.EventLog,
		now:            time.Now,
	}
}

// TrackError records a failure represented by a Go error. The error's
// dynamic type name and message form the dedup signature together with
// ctx.Function. Tracking never fails and never panics on missing context.
func (t *ErrorTracker) TrackError(err error, ctx ErrorContext) {
	if err == nil {
		return
	}
	t.TrackFailure(errorTypeName(err), err.Error(), ctx)
}

// TrackFailure records a failure from its exception type name and message,
// for callers (such as MCP tools) that report failures observed elsewhere.
func (t *ErrorTracker) TrackFailure(exceptionType, message string, ctx ErrorContext) {
	now := t.now()
	id := ErrorID(exceptionType, message, ctx.Function)
	category := categorizeError(exceptionType, message, ctx)

	t.mu.Lock()

	event, ok := t.errors[id]
	if ok {
		event.Count++
		event.LastSeen = now
	} else {
		event = &ErrorEvent{
			ID:            id,
			Timestamp:     now,
			Category:      category,
			Severity:      determineSeverity(category, 1),
			Message:       message,
			ExceptionType: exceptionType,
			StackTrace:    string(debug.Stack()),
			Context:       ctx,
			Count:         1,
			FirstSeen:     now,
			LastSeen:      now,
		}
		t.errors[id] = event
	}

	event.Severity = determineSeverity(category, event.Count)

	t.recent.Append(RecentError{
		ID:        id,
		Timestamp: now,
		Category:  category,
		Message:   message,
	})

	fired := t.evaluateRulesLocked(event, now)
	evicted := t.evictLocked()

	t.mu.Unlock()

	// Delivery and event logging happen outside the lock.
	for _, alert := range fired {
		logEvent(t.eventLog, "WARN", EventAlertFired, alert.Message, map[string]any{
			"alert_id": alert.ID,
			"severity": string(alert.Severity),
		})
		if t.dispatcher != nil {
			t.dispatcher.Dispatch(alert)
		}
	}
	if evicted > 0 {
		logEvent(t.eventLog, "INFO", EventErrorsEvicted, "evicted oldest error events", map[string]any{
			"evicted": evicted,
		})
	}
}

// evaluateRulesLocked checks every enabled rule against a fresh alert
// context, honoring the per-(rule, error-id) cooldown, and returns copies
// of the alerts created.
func (t *ErrorTracker) evaluateRulesLocked(event *ErrorEvent, now time.Time) []Alert {
	ctx := AlertContext{
		ErrorRatePerMinute:  t.errorRateLocked(now),
		Category:            event.Category,
		Message:             event.Message,
		Count:               event.Count,
		ServerName:          event.Context.ServerName,
		ConsecutiveFailures: event.Context.ConsecutiveFailures,
	}
	if ctx.ServerName == "" {
		ctx.ServerName = "unknown"
	}

	var fired []Alert
	for _, rule := range t.rules {
		if !rule.Enabled {
			continue
		}
		ruleKey := rule.Name + "_" + event.ID
		if last, ok := t.lastAlertTimes[ruleKey]; ok && now.Sub(last) < rule.Cooldown {
			continue
		}
		if !rule.Matches(ctx) {
			continue
		}

		alert := &Alert{
			ID:        fmt.Sprintf("%s_%d", rule.Name, now.UnixNano()),
			Severity:  rule.Severity,
			Title:     "Agent Pulse Alert: " + rule.Name,
			Message:   rule.RenderMessage(ctx),
			Timestamp: now,
			Context:   ctx,
		}
		t.alerts[alert.ID] = alert
		t.lastAlertTimes[ruleKey] = now
		fired = append(fired, *alert)
	}
	return fired
}

// evictLocked prunes the oldest events by last-seen once the tracked set
// exceeds the cap, returning how many were removed.
func (t *ErrorTracker) evictLocked() int {
	if len(t.errors) <= t.maxErrors {
		return 0
	}
	events := make([]*ErrorEvent, 0, len(t.errors))
	for _, e := range t.errors {
		events = append(events, e)
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].LastSeen.Before(events[j].LastSeen)
	})
	n := evictionBatchSize
	if n > len(events) {
		n = len(events)
	}
	for _, e := range events[:n] {
		delete(t.errors, e.ID)
	}
	return n
}

// errorRateLocked is the rolling error rate: recent-ring entries within
// the trailing 300 seconds, divided by 5, yielding errors per minute.
func (t *ErrorTracker) errorRateLocked(now time.Time) float64 {
	cutoff := now.Add(-errorRateWindow)
	count := 0
	for _, e := range t.recent.Values() {
		if e.Timestamp.After(cutoff) {
			count++
		}
	}
	return float64(count) / errorRateWindow.Minutes()
}

// ErrorRatePerMinute returns the current rolling error rate.
func (t *ErrorTracker) ErrorRatePerMinute() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.errorRateLocked(t.now())
}

// GetErrorSummary returns aggregate statistics over all tracked errors and
// alerts.
func (t *ErrorTracker) GetErrorSummary() ErrorSummary {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	summary := ErrorSummary{
		TotalUniqueErrors:  len(t.errors),
		ErrorRatePerMinute: t.errorRateLocked(now),
		CategoryBreakdown:  make(map[ErrorCategory]int),
		SeverityBreakdown:  make(map[AlertSeverity]int),
	}

	recentCutoff := now.Add(-time.Hour)
	top := make([]TopError, 0, len(t.errors))
	for _, e := range t.errors {
		summary.TotalErrorCount += e.Count
		summary.CategoryBreakdown[e.Category] += e.Count
		summary.SeverityBreakdown[e.Severity]++
		if e.LastSeen.After(recentCutoff) {
			summary.RecentErrorsCount++
		}
		top = append(top, TopError{ID: e.ID, Message: e.Message, Count: e.Count})
	}

	sort.Slice(top, func(i, j int) bool {
		if top[i].Count != top[j].Count {
			return top[i].Count > top[j].Count
		}
		return top[i].ID < top[j].ID
	})
	if len(top) > 10 {
		top = top[:10]
	}
	summary.TopErrors = top

	for _, a := range t.alerts {
		if !a.Resolved {
			summary.ActiveAlerts++
		}
	}
	return summary
}

// Errors returns copies of all tracked error events.
func (t *ErrorTracker) Errors() []ErrorEvent {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]ErrorEvent, 0, len(t.errors))
	for _, e := range t.errors {
		out = append(out, *e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastSeen.After(out[j].LastSeen) })
	return out
}

// Error returns a copy of the event with the given signature ID, or false
// if no such event is tracked.
func (t *ErrorTracker) Error(id string) (ErrorEvent, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.errors[id]
	if !ok {
		return ErrorEvent{}, false
	}
	return *e, true
}

// Alerts returns copies of all alerts, newest first. When activeOnly is
// set, resolved alerts are excluded.
func (t *ErrorTracker) Alerts(activeOnly bool) []Alert {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Alert, 0, len(t.alerts))
	for _, a := range t.alerts {
		if activeOnly && a.Resolved {
			continue
		}
		out = append(out, *a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	return out
}

// Rules returns the tracker's immutable rule set.
func (t *ErrorTracker) Rules() []AlertRule {
	out := make([]AlertRule, len(t.rules))
	copy(out, t.rules)
	return out
}

// AcknowledgeAlert marks the alert acknowledged. Unknown IDs and repeated
// calls are no-ops.
func (t *ErrorTracker) AcknowledgeAlert(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if a, ok := t.alerts[id]; ok {
		a.Acknowledged = true
	}
}

// ResolveAlert marks the alert resolved, its terminal state. Unknown IDs
// and repeated calls are no-ops.
func (t *ErrorTracker) ResolveAlert(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if a, ok := t.alerts[id]; ok {
		a.Resolved = true
	}
}

// ErrorID is the deterministic dedup signature: a 64-bit xxhash of the
// exception type, message, and originating function, hex encoded.
func ErrorID(exceptionType, message, function string) string {
	sig := exceptionType + ":" + message + ":" + function
	return fmt.Sprintf("%016x", xxhash.Sum64String(sig))
}

// errorTypeName extracts the dynamic type name of an error, stripped of
// package path and indirection, for classification and dedup.
func errorTypeName(err error) string {
	t := reflect.TypeOf(err)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t == nil {
		return "error"
	}
	if name := t.Name(); name != "" {
		return name
	}
	return t.String()
}

// categorizeError is an ordered keyword classifier over the exception type
// name and message text; the first match wins and unmatched errors fall
// through to CategoryUnknown.
func categorizeError(exceptionType, message string, ctx ErrorContext) ErrorCategory {
	typeName := strings.ToLower(exceptionType)
	msg := strings.ToLower(message)

	if containsAny(typeName, "connection", "network", "socket") ||
		containsAny(msg, "connection refused", "network unreachable", "timeout") {
		return CategoryConnection
	}
	if containsAny(typeName, "auth", "permission", "access") ||
		containsAny(msg, "unauthorized", "forbidden", "invalid token", "api key") {
		return CategoryAuthentication
	}
	if strings.Contains(typeName, "timeout") || strings.Contains(msg, "timeout") {
		return CategoryTimeout
	}
	if containsAny(msg, "rate limit", "too many requests", "429") {
		return CategoryRateLimit
	}
	if containsAny(typeName, "validation", "value", "type") {
		return CategoryValidation
	}
	if containsAny(typeName, "memory", "disk", "resource") {
		return CategorySystemResource
	}
	if ctx.Source == "mcp_server" {
		return CategoryMCPServer
	}
	return CategoryUnknown
}

func containsAny(s string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(s, kw) {
			return true
		}
	}
	return false
}

// determineSeverity maps category and occurrence count to a severity,
// evaluated top-down.
func determineSeverity(category ErrorCategory, count int) AlertSeverity {
	switch {
	case category == CategorySystemResource:
		return SeverityCritical
	case category == CategoryMCPServer && count > 3:
		return SeverityHigh
	case (category == CategoryConnection || category == CategoryTimeout) && count > 5:
		return SeverityHigh
	case count > 10:
		return SeverityMedium
	default:
		return SeverityLow
	}
}
