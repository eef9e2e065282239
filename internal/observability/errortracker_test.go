package observability

import (
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

type connectionError struct{ msg string }

func (e *connectionError) Error() string { return e.msg }

type valueError struct{ msg string }

func (e *valueError) Error() string { return e.msg }

// captureDispatcher records dispatched alerts for assertions.
type captureDispatcher struct {
	mu     sync.Mutex
	alerts []Alert
}

func (d *captureDispatcher) Dispatch(alert Alert) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.alerts = append(d.alerts, alert)
}

func (d *captureDispatcher) Alerts() []Alert {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Alert, len(d.alerts))
	copy(out, d.alerts)
	return out
}

func newTestTracker(cfg ErrorTrackerConfig) (*ErrorTracker, *time.Time) {
	tr := NewErrorTracker(cfg)
	current := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	tr.now = func() time.Time { return current }
	return tr, &current
}

func TestErrorTracker_DeduplicatesBySignature(t *testing.T) {
	tr, _ := newTestTracker(ErrorTrackerConfig{})

	for i := 0; i < 5; i++ {
		tr.TrackError(&connectionError{msg: "connection refused"}, ErrorContext{Function: "dial"})
	}

	events := tr.Errors()
	if len(events) != 1 {
		t.Fatalf("got %d unique errors, want 1", len(events))
	}
	if events[0].Count != 5 {
		t.Errorf("Count = %d, want 5", events[0].Count)
	}
	if events[0].Category != CategoryConnection {
		t.Errorf("Category = %s, want connection", events[0].Category)
	}
}

func TestErrorTracker_ErrorLookupByID(t *testing.T) {
	tr, _ := newTestTracker(ErrorTrackerConfig{})

	tr.TrackError(&connectionError{msg: "connection refused"}, ErrorContext{Function: "dial"})
	tr.TrackError(&connectionError{msg: "connection refused"}, ErrorContext{Function: "dial"})

	id := ErrorID("connectionError", "connection refused", "dial")
	e, ok := tr.Error(id)
	if !ok {
		t.Fatalf("Error(%s) not found", id)
	}
	if e.Count != 2 {
		t.Errorf("Count = %d, want 2", e.Count)
	}
	if e.Category != CategoryConnection {
		t.Errorf("Category = %s, want connection", e.Category)
	}

	if _, ok := tr.Error("no-such-id"); ok {
		t.Error("Error returned ok for an unknown id")
	}
}

func TestErrorTracker_FunctionSeparatesSignatures(t *testing.T) {
	tr, _ := newTestTracker(ErrorTrackerConfig{})

	tr.TrackError(errors.New("boom"), ErrorContext{Function: "alpha"})
	tr.TrackError(errors.New("boom"), ErrorContext{Function: "beta"})

	if got := len(tr.Errors()); got != 2 {
		t.Errorf("got %d unique errors, want 2 (different functions)", got)
	}
}

func TestErrorTracker_NilErrorIgnored(t *testing.T) {
	tr, _ := newTestTracker(ErrorTrackerConfig{})

	tr.TrackError(nil, ErrorContext{})

	if got := len(tr.Errors()); got != 0 {
		t.Errorf("got %d errors after nil track, want 0", got)
	}
}

func TestCategorizeError(t *testing.T) {
	tests := []struct {
		exceptionType string
		message       string
		ctx           ErrorContext
		want          ErrorCategory
	}{
		{"connectionError", "connection refused", ErrorContext{}, CategoryConnection},
		{"SomeError", "network unreachable", ErrorContext{}, CategoryConnection},
		// A timeout message hits the connection keyword list first.
		{"SomeError", "operation timeout", ErrorContext{}, CategoryConnection},
		{"timeoutError", "deadline exceeded", ErrorContext{}, CategoryTimeout},
		{"authError", "bad credentials", ErrorContext{}, CategoryAuthentication},
		{"SomeError", "401 unauthorized", ErrorContext{}, CategoryAuthentication},
		{"SomeError", "429 too many requests", ErrorContext{}, CategoryRateLimit},
		{"valueError", "bad input", ErrorContext{}, CategoryValidation},
		{"validationError", "field missing", ErrorContext{}, CategoryValidation},
		{"memoryError", "allocation failed", ErrorContext{}, CategorySystemResource},
		{"SomeError", "it broke", ErrorContext{Source: "mcp_server"}, CategoryMCPServer},
		{"SomeError", "it broke", ErrorContext{}, CategoryUnknown},
	}

	for _, tt := range tests {
		got := categorizeError(tt.exceptionType, tt.message, tt.ctx)
		if got != tt.want {
			t.Errorf("categorizeError(%q, %q, source=%q) = %s, want %s",
				tt.exceptionType, tt.message, tt.ctx.Source, got, tt.want)
		}
	}
}

func TestDetermineSeverity(t *testing.T) {
	tests := []struct {
		category ErrorCategory
		count    int
		want     AlertSeverity
	}{
		{CategorySystemResource, 1, SeverityCritical},
		{CategoryMCPServer, 4, SeverityHigh},
		{CategoryMCPServer, 3, SeverityLow},
		{CategoryConnection, 6, SeverityHigh},
		{CategoryTimeout, 6, SeverityHigh},
		{CategoryConnection, 5, SeverityLow},
		{CategoryUnknown, 11, SeverityMedium},
		{CategoryUnknown, 10, SeverityLow},
		{CategoryValidation, 1, SeverityLow},
	}

	for _, tt := range tests {
		if got := determineSeverity(tt.category, tt.count); got != tt.want {
			t.Errorf("determineSeverity(%s, %d) = %s, want %s", tt.category, tt.count, got, tt.want)
		}
	}
}

func TestErrorTracker_SeverityEscalatesWithCount(t *testing.T) {
	tr, _ := newTestTracker(ErrorTrackerConfig{})

	for i := 0; i < 6; i++ {
		tr.TrackError(&connectionError{msg: "connection refused"}, ErrorContext{Function: "dial"})
	}

	events := tr.Errors()
	if len(events) != 1 {
		t.Fatalf("got %d events, want 1", len(events))
	}
	if events[0].Severity != SeverityHigh {
		t.Errorf("Severity after 6 occurrences = %s, want high", events[0].Severity)
	}
}

func TestErrorTracker_CriticalSystemErrorAlert(t *testing.T) {
	disp := &captureDispatcher{}
	tr, _ := newTestTracker(ErrorTrackerConfig{Dispatcher: disp})

	tr.TrackFailure("memoryError", "out of memory", ErrorContext{Function: "load"})

	alerts := disp.Alerts()
	if len(alerts) != 1 {
		t.Fatalf("dispatched %d alerts, want 1", len(alerts))
	}
	if alerts[0].Severity != SeverityCritical {
		t.Errorf("Severity = %s, want critical", alerts[0].Severity)
	}
	if want := "Critical system resource error: out of memory"; alerts[0].Message != want {
		t.Errorf("Message = %q, want %q", alerts[0].Message, want)
	}

	stored := tr.Alerts(false)
	if len(stored) != 1 {
		t.Errorf("tracker holds %d alerts, want 1", len(stored))
	}
}

func TestErrorTracker_MCPServerDownAlert(t *testing.T) {
	disp := &captureDispatcher{}
	tr, _ := newTestTracker(ErrorTrackerConfig{Dispatcher: disp})

	tr.TrackFailure("SomeError", "rpc failed", ErrorContext{
		Source:              "mcp_server",
		ServerName:          "files",
		ConsecutiveFailures: 4,
	})

	alerts := disp.Alerts()
	if len(alerts) != 1 {
		t.Fatalf("dispatched %d alerts, want 1", len(alerts))
	}
	if want := "MCP server files appears to be down (3+ consecutive failures)"; alerts[0].Message != want {
		t.Errorf("Message = %q, want %q", alerts[0].Message, want)
	}
}

func TestErrorTracker_AuthenticationFailuresAlert(t *testing.T) {
	disp := &captureDispatcher{}
	tr, _ := newTestTracker(ErrorTrackerConfig{Dispatcher: disp})

	for i := 0; i < 6; i++ {
		tr.TrackFailure("authError", "invalid token", ErrorContext{Function: "login"})
	}

	alerts := disp.Alerts()
	if len(alerts) != 1 {
		t.Fatalf("dispatched %d alerts, want exactly 1 (count must exceed 5, then cooldown holds)", len(alerts))
	}
	if alerts[0].Severity != SeverityMedium {
		t.Errorf("Severity = %s, want medium", alerts[0].Severity)
	}
	if want := "Multiple authentication failures detected (6 attempts)"; alerts[0].Message != want {
		t.Errorf("Message = %q, want %q", alerts[0].Message, want)
	}
}

func TestErrorTracker_CooldownSuppressesRefiring(t *testing.T) {
	disp := &captureDispatcher{}
	tr, current := newTestTracker(ErrorTrackerConfig{Dispatcher: disp})

	tr.TrackFailure("memoryError", "out of memory", ErrorContext{Function: "load"})
	if got := len(disp.Alerts()); got != 1 {
		t.Fatalf("dispatched %d alerts after first track, want 1", got)
	}

	// Within cooldown: suppressed.
	*current = current.Add(2 * time.Minute)
	tr.TrackFailure("memoryError", "out of memory", ErrorContext{Function: "load"})
	if got := len(disp.Alerts()); got != 1 {
		t.Fatalf("dispatched %d alerts within cooldown, want still 1", got)
	}

	// Past cooldown: fires again.
	*current = current.Add(4 * time.Minute)
	tr.TrackFailure("memoryError", "out of memory", ErrorContext{Function: "load"})
	if got := len(disp.Alerts()); got != 2 {
		t.Fatalf("dispatched %d alerts past cooldown, want 2", got)
	}
}

func TestErrorTracker_CooldownIsPerSignature(t *testing.T) {
	disp := &captureDispatcher{}
	tr, _ := newTestTracker(ErrorTrackerConfig{Dispatcher: disp})

	tr.TrackFailure("memoryError", "out of memory", ErrorContext{Function: "load"})
	tr.TrackFailure("memoryError", "disk full", ErrorContext{Function: "store"})

	if got := len(disp.Alerts()); got != 2 {
		t.Errorf("dispatched %d alerts, want 2 (cooldown keyed per rule and signature)", got)
	}
}

func TestErrorTracker_HighErrorRateAlert(t *testing.T) {
	disp := &captureDispatcher{}
	tr, current := newTestTracker(ErrorTrackerConfig{Dispatcher: disp})

	// Push the rolling rate past 10 errors/minute: more than 50 errors in
	// the trailing 300 seconds. Unique messages avoid other rules.
	for i := 0; i < 52; i++ {
		*current = current.Add(time.Second)
		tr.TrackFailure("SomeError", fmt.Sprintf("oddity %d", i), ErrorContext{})
	}

	var rateAlerts int
	for _, a := range disp.Alerts() {
		if a.Severity == SeverityHigh {
			rateAlerts++
		}
	}
	if rateAlerts == 0 {
		t.Fatalf("no high_error_rate alert dispatched; rate = %g", tr.ErrorRatePerMinute())
	}
}

func TestErrorTracker_ErrorRatePerMinute(t *testing.T) {
	tr, current := newTestTracker(ErrorTrackerConfig{})

	for i := 0; i < 10; i++ {
		tr.TrackFailure("SomeError", fmt.Sprintf("e%d", i), ErrorContext{})
	}

	// 10 errors in the trailing 300s window over 5 minutes.
	if got := tr.ErrorRatePerMinute(); !almostEqual(got, 2) {
		t.Errorf("ErrorRatePerMinute = %g, want 2", got)
	}

	// Once the window has passed, the rate drops to zero.
	*current = current.Add(6 * time.Minute)
	if got := tr.ErrorRatePerMinute(); got != 0 {
		t.Errorf("ErrorRatePerMinute after window = %g, want 0", got)
	}
}

func TestErrorTracker_EvictsOldestWhenFull(t *testing.T) {
	tr, current := newTestTracker(ErrorTrackerConfig{MaxErrors: 100})

	for i := 0; i < 101; i++ {
		*current = current.Add(time.Second)
		tr.TrackFailure("SomeError", fmt.Sprintf("e%d", i), ErrorContext{})
	}

	events := tr.Errors()
	if len(events) != 1 {
		t.Fatalf("got %d events after eviction, want 1 (oldest batch pruned)", len(events))
	}
	if events[0].Message != "e100" {
		t.Errorf("survivor = %q, want the newest (e100)", events[0].Message)
	}
}

func TestErrorTracker_GetErrorSummary(t *testing.T) {
	tr, _ := newTestTracker(ErrorTrackerConfig{})

	tr.TrackFailure("connectionError", "connection refused", ErrorContext{Function: "dial"})
	tr.TrackFailure("connectionError", "connection refused", ErrorContext{Function: "dial"})
	tr.TrackFailure("memoryError", "out of memory", ErrorContext{Function: "load"})

	s := tr.GetErrorSummary()
	if s.TotalUniqueErrors != 2 {
		t.Errorf("TotalUniqueErrors = %d, want 2", s.TotalUniqueErrors)
	}
	if s.TotalErrorCount != 3 {
		t.Errorf("TotalErrorCount = %d, want 3", s.TotalErrorCount)
	}
	if s.CategoryBreakdown[CategoryConnection] != 2 {
		t.Errorf("connection breakdown = %d, want 2", s.CategoryBreakdown[CategoryConnection])
	}
	if s.CategoryBreakdown[CategorySystemResource] != 1 {
		t.Errorf("system_resource breakdown = %d, want 1", s.CategoryBreakdown[CategorySystemResource])
	}
	if s.SeverityBreakdown[SeverityCritical] != 1 {
		t.Errorf("critical breakdown = %d, want 1", s.SeverityBreakdown[SeverityCritical])
	}
	if s.RecentErrorsCount != 2 {
		t.Errorf("RecentErrorsCount = %d, want 2", s.RecentErrorsCount)
	}
	if s.ActiveAlerts != 1 {
		t.Errorf("ActiveAlerts = %d, want 1 (critical_system_error fired)", s.ActiveAlerts)
	}

	if len(s.TopErrors) != 2 || s.TopErrors[0].Count != 2 {
		t.Errorf("TopErrors = %+v, want the connection error ranked first", s.TopErrors)
	}
}

func TestErrorTracker_TopErrorsCappedAtTen(t *testing.T) {
	tr, _ := newTestTracker(ErrorTrackerConfig{})

	for i := 0; i < 15; i++ {
		tr.TrackFailure("SomeError", fmt.Sprintf("e%d", i), ErrorContext{})
	}

	s := tr.GetErrorSummary()
	if len(s.TopErrors) != 10 {
		t.Errorf("TopErrors length = %d, want 10", len(s.TopErrors))
	}
}

func TestErrorTracker_AcknowledgeAndResolve(t *testing.T) {
	tr, _ := newTestTracker(ErrorTrackerConfig{})

	tr.TrackFailure("memoryError", "out of memory", ErrorContext{})
	alerts := tr.Alerts(false)
	if len(alerts) != 1 {
		t.Fatalf("got %d alerts, want 1", len(alerts))
	}
	id := alerts[0].ID

	tr.AcknowledgeAlert(id)
	tr.AcknowledgeAlert(id)
	if got := tr.Alerts(false)[0]; !got.Acknowledged || got.Resolved {
		t.Errorf("after acknowledge: %+v", got)
	}

	tr.ResolveAlert(id)
	tr.ResolveAlert(id)
	if got := tr.Alerts(false)[0]; !got.Resolved {
		t.Errorf("after resolve: %+v", got)
	}

	if got := tr.Alerts(true); len(got) != 0 {
		t.Errorf("active alerts after resolve = %d, want 0", len(got))
	}

	// Unknown IDs are no-ops.
	tr.AcknowledgeAlert("nope")
	tr.ResolveAlert("nope")
}

func TestErrorTypeName(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&connectionError{msg: "x"}, "connectionError"},
		{&valueError{msg: "x"}, "valueError"},
		{errors.New("x"), "errorString"},
		{fmt.Errorf("wrapped: %w", errors.New("x")), "wrapError"},
	}

	for _, tt := range tests {
		if got := errorTypeName(tt.err); got != tt.want {
			t.Errorf("errorTypeName(%T) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestErrorID_Deterministic(t *testing.T) {
	a := ErrorID("connectionError", "connection refused", "dial")
	b := ErrorID("connectionError", "connection refused", "dial")
	c := ErrorID("connectionError", "connection refused", "listen")

	if a != b {
		t.Errorf("same inputs produced different IDs: %s vs %s", a, b)
	}
	if a == c {
		t.Error("different functions produced the same ID")
	}
	if len(a) != 16 {
		t.Errorf("ID length = %d, want 16 hex chars", len(a))
	}
}
