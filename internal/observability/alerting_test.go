package observability

import (
	"testing"
)

func TestDefaultAlertRules(t *testing.T) {
	rules := DefaultAlertRules()
	if len(rules) != 4 {
		t.Fatalf("got %d default rules, want 4", len(rules))
	}

	byName := make(map[string]AlertRule, len(rules))
	for _, r := range rules {
		if !r.Enabled {
			t.Errorf("rule %s disabled by default", r.Name)
		}
		if r.Cooldown != DefaultRuleCooldown {
			t.Errorf("rule %s cooldown = %v, want %v", r.Name, r.Cooldown, DefaultRuleCooldown)
		}
		byName[r.Name] = r
	}

	if r := byName["high_error_rate"]; r.Kind != RuleErrorRateAbove || r.Threshold != 10 || r.Severity != SeverityHigh {
		t.Errorf("high_error_rate = %+v", r)
	}
	if r := byName["critical_system_error"]; r.Kind != RuleCategoryIs || r.Category != CategorySystemResource || r.Severity != SeverityCritical {
		t.Errorf("critical_system_error = %+v", r)
	}
	if r := byName["mcp_server_down"]; r.Kind != RuleCategoryConsecutiveAbove || r.Category != CategoryMCPServer || r.Threshold != 3 || r.Severity != SeverityHigh {
		t.Errorf("mcp_server_down = %+v", r)
	}
	if r := byName["authentication_failures"]; r.Kind != RuleCategoryCountAbove || r.Category != CategoryAuthentication || r.Threshold != 5 || r.Severity != SeverityMedium {
		t.Errorf("authentication_failures = %+v", r)
	}
}

func TestAlertRule_Matches(t *testing.T) {
	tests := []struct {
		name string
		rule AlertRule
		ctx  AlertContext
		want bool
	}{
		{
			name: "error rate above threshold",
			rule: AlertRule{Kind: RuleErrorRateAbove, Threshold: 10},
			ctx:  AlertContext{ErrorRatePerMinute: 10.5},
			want: true,
		},
		{
			name: "error rate at threshold does not fire",
			rule: AlertRule{Kind: RuleErrorRateAbove, Threshold: 10},
			ctx:  AlertContext{ErrorRatePerMinute: 10},
			want: false,
		},
		{
			name: "category match",
			rule: AlertRule{Kind: RuleCategoryIs, Category: CategorySystemResource},
			ctx:  AlertContext{Category: CategorySystemResource},
			want: true,
		},
		{
			name: "category mismatch",
			rule: AlertRule{Kind: RuleCategoryIs, Category: CategorySystemResource},
			ctx:  AlertContext{Category: CategoryConnection},
			want: false,
		},
		{
			name: "count above threshold",
			rule: AlertRule{Kind: RuleCategoryCountAbove, Category: CategoryAuthentication, Threshold: 5},
			ctx:  AlertContext{Category: CategoryAuthentication, Count: 6},
			want: true,
		},
		{
			name: "count at threshold does not fire",
			rule: AlertRule{Kind: RuleCategoryCountAbove, Category: CategoryAuthentication, Threshold: 5},
			ctx:  AlertContext{Category: CategoryAuthentication, Count: 5},
			want: false,
		},
		{
			name: "count above but category differs",
			rule: AlertRule{Kind: RuleCategoryCountAbove, Category: CategoryAuthentication, Threshold: 5},
			ctx:  AlertContext{Category: CategoryTimeout, Count: 100},
			want: false,
		},
		{
			name: "consecutive failures above threshold",
			rule: AlertRule{Kind: RuleCategoryConsecutiveAbove, Category: CategoryMCPServer, Threshold: 3},
			ctx:  AlertContext{Category: CategoryMCPServer, ConsecutiveFailures: 4},
			want: true,
		},
		{
			name: "consecutive failures at threshold does not fire",
			rule: AlertRule{Kind: RuleCategoryConsecutiveAbove, Category: CategoryMCPServer, Threshold: 3},
			ctx:  AlertContext{Category: CategoryMCPServer, ConsecutiveFailures: 3},
			want: false,
		},
		{
			name: "unknown kind never matches",
			rule: AlertRule{Kind: RuleKind("bogus")},
			ctx:  AlertContext{ErrorRatePerMinute: 1000, Count: 1000},
			want: false,
		},
		{
			name: "empty context tolerated",
			rule: AlertRule{Kind: RuleErrorRateAbove, Threshold: 10},
			ctx:  AlertContext{},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rule.Matches(tt.ctx); got != tt.want {
				t.Errorf("Matches() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAlertRule_RenderMessage(t *testing.T) {
	tests := []struct {
		name string
		rule AlertRule
		ctx  AlertContext
		want string
	}{
		{
			name: "error rate placeholder",
			rule: AlertRule{MessageTemplate: "High error rate detected: {error_rate_per_minute} errors/minute"},
			ctx:  AlertContext{ErrorRatePerMinute: 12.4},
			want: "High error rate detected: 12.4 errors/minute",
		},
		{
			name: "message placeholder",
			rule: AlertRule{MessageTemplate: "Critical system resource error: {message}"},
			ctx:  AlertContext{Message: "out of memory"},
			want: "Critical system resource error: out of memory",
		},
		{
			name: "server name placeholder",
			rule: AlertRule{MessageTemplate: "MCP server {server_name} appears to be down (3+ consecutive failures)"},
			ctx:  AlertContext{ServerName: "files"},
			want: "MCP server files appears to be down (3+ consecutive failures)",
		},
		{
			name: "count placeholder",
			rule: AlertRule{MessageTemplate: "Multiple authentication failures detected ({count} attempts)"},
			ctx:  AlertContext{Count: 7},
			want: "Multiple authentication failures detected (7 attempts)",
		},
		{
			name: "missing fields render as zero values",
			rule: AlertRule{MessageTemplate: "{server_name}:{count}"},
			ctx:  AlertContext{},
			want: ":0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rule.RenderMessage(tt.ctx); got != tt.want {
				t.Errorf("RenderMessage() = %q, want %q", got, tt.want)
			}
		})
	}
}
