package observability

import (
	"strconv"
	"strings"
	"time"
)

// AlertSeverity represents the urgency of an alert or error event.
type AlertSeverity string

const (
	SeverityLow      AlertSeverity = "low"
	SeverityMedium   AlertSeverity = "medium"
	SeverityHigh     AlertSeverity = "high"
	SeverityCritical AlertSeverity = "critical"
)

// ErrorCategory classifies the nature of a tracked error.
type ErrorCategory string

const (
	CategoryConnection     ErrorCategory = "connection"
	CategoryAuthentication ErrorCategory = "authentication"
	CategoryTimeout        ErrorCategory = "timeout"
	CategoryRateLimit      ErrorCategory = "rate_limit"
	CategoryValidation     ErrorCategory = "validation"
	CategorySystemResource ErrorCategory = "system_resource"
	CategoryMCPServer      ErrorCategory = "mcp_server"
	CategoryUnknown        ErrorCategory = "unknown"
)

// AlertContext is the snapshot of error-tracking state that alert rules
// are evaluated against. Missing numeric fields are zero and missing
// strings empty, so rules tolerate partial context by construction.
type AlertContext struct {
	ErrorRatePerMinute  float64       `json:"error_rate_per_minute"`
	Category            ErrorCategory `json:"category"`
	Message             string        `json:"message"`
	Count               int           `json:"count"`
	ServerName          string        `json:"server_name"`
	ConsecutiveFailures int           `json:"consecutive_failures"`
}

// Alert is a triggered alert condition. Lifecycle: created (unacknowledged,
// unresolved), optionally acknowledged, then resolved. Transitions are
// operator-driven only.
type Alert struct {
	ID           string        `json:"id"`
	Severity     AlertSeverity `json:"severity"`
	Title        string        `json:"title"`
	Message      string        `json:"message"`
	Timestamp    time.Time     `json:"timestamp"`
	Context      AlertContext  `json:"context"`
	Acknowledged bool          `json:"acknowledged"`
	Resolved     bool          `json:"resolved"`
}

// RuleKind identifies the predicate a rule applies to its alert context.
// Rules are tagged descriptors rather than closures so the active rule set
// is inspectable and serializable.
type RuleKind string

const (
	// RuleErrorRateAbove fires when the rolling error rate per minute
	// exceeds Threshold.
	RuleErrorRateAbove RuleKind = "error_rate_above"

	// RuleCategoryIs fires when the error's category equals Category.
	RuleCategoryIs RuleKind = "category_is"

	// RuleCategoryCountAbove fires when the error's category equals
	// Category and its occurrence count exceeds Threshold.
	RuleCategoryCountAbove RuleKind = "category_count_above"

	// RuleCategoryConsecutiveAbove fires when the error's category equals
	// Category and the reported consecutive failure count exceeds
	// Threshold.
	RuleCategoryConsecutiveAbove RuleKind = "category_consecutive_above"
)

// AlertRule is a declarative alert condition. Rules are registered once at
// tracker construction and immutable thereafter. A given (rule, error-id)
// pair fires at most once per Cooldown window.
type AlertRule struct {
	Name            string        `json:"name" yaml:"name"`
	Kind            RuleKind      `json:"kind" yaml:"kind"`
	Category        ErrorCategory `json:"category,omitempty" yaml:"category,omitempty"`
	Threshold       float64       `json:"threshold,omitempty" yaml:"threshold,omitempty"`
	Severity        AlertSeverity `json:"severity" yaml:"severity"`
	MessageTemplate string        `json:"message_template" yaml:"message_template"`
	Cooldown        time.Duration `json:"cooldown" yaml:"cooldown"`
	Enabled         bool          `json:"enabled" yaml:"enabled"`
}

// DefaultRuleCooldown is the cooldown applied to the default rule set.
const DefaultRuleCooldown = 300 * time.Second

// DefaultAlertRules returns the built-in rule set.
func DefaultAlertRules() []AlertRule {
	return []AlertRule{
		{
			Name:            "high_error_rate",
			Kind:            RuleErrorRateAbove,
			Threshold:       10,
			Severity:        SeverityHigh,
			MessageTemplate: "High error rate detected: {error_rate_per_minute} errors/minute",
			Cooldown:        DefaultRuleCooldown,
			Enabled:         true,
		},
		{
			Name:            "critical_system_error",
			Kind:            RuleCategoryIs,
			Category:        CategorySystemResource,
			Severity:        SeverityCritical,
			MessageTemplate: "Critical system resource error: {message}",
			Cooldown:        DefaultRuleCooldown,
			Enabled:         true,
		},
		{
			Name:            "mcp_server_down",
			Kind:            RuleCategoryConsecutiveAbove,
			Category:        CategoryMCPServer,
			Threshold:       3,
			Severity:        SeverityHigh,
			MessageTemplate: "MCP server {server_name} appears to be down (3+ consecutive failures)",
			Cooldown:        DefaultRuleCooldown,
			Enabled:         true,
		},
		{
			Name:            "authentication_failures",
			Kind:            RuleCategoryCountAbove,
			Category:        CategoryAuthentication,
			Threshold:       5,
			Severity:        SeverityMedium,
			MessageTemplate: "Multiple authentication failures detected ({count} attempts)",
			Cooldown:        DefaultRuleCooldown,
			Enabled:         true,
		},
	}
}

// Matches reports whether the rule's predicate holds for the given context.
func (r AlertRule) Matches(ctx AlertContext) bool {
	switch r.Kind {
	case RuleErrorRateAbove:
		return ctx.ErrorRatePerMinute > r.Threshold
	case RuleCategoryIs:
		return ctx.Category == r.Category
	case RuleCategoryCountAbove:
		return ctx.Category == r.Category && float64(ctx.Count) > r.Threshold
	case RuleCategoryConsecutiveAbove:
		return ctx.Category == r.Category && float64(ctx.ConsecutiveFailures) > r.Threshold
	default:
		return false
	}
}

// RenderMessage expands the {field} placeholders of the rule's message
// template from the alert context.
func (r AlertRule) RenderMessage(ctx AlertContext) string {
	replacer := strings.NewReplacer(
		"{error_rate_per_minute}", strconv.FormatFloat(ctx.ErrorRatePerMinute, 'g', -1, 64),
		"{category}", string(ctx.Category),
		"{message}", ctx.Message,
		"{count}", strconv.Itoa(ctx.Count),
		"{server_name}", ctx.ServerName,
		"{consecutive_failures}", strconv.Itoa(ctx.ConsecutiveFailures),
	)
	return replacer.Replace(r.MessageTemplate)
}
