// Package mcp provides an MCP (Model Context Protocol) server that exposes
// the Agent Pulse observability engine as MCP tools for AI agent hosts.
package mcp

import (
	"context"
	"fmt"
	"time"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/valter-silva-au/agent-pulse/internal/observability"
)

// Server wraps the engine services and exposes them as MCP tools.
type Server struct {
	server    *gomcp.Server
	collector *observability.MetricsCollector
	tracker   *observability.ErrorTracker
}

// NewServer creates a new MCP server over the given collector and tracker.
func NewServer(collector *observability.MetricsCollector, tracker *observability.ErrorTracker, version string) *Server {
	if version == "" {
		version = "dev"
	}

	s := &Server{
		collector: collector,
		tracker:   tracker,
	}

	s.server = gomcp.NewServer(
		&gomcp.Implementation{Name: "pulse", Version: version},
		nil,
	)

	s.registerTools()

	return s
}

// Run starts the MCP server on stdio, blocking until the client disconnects
// or the context is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &gomcp.StdioTransport{})
}

// MCPServer returns the underlying mcp.Server for testing purposes.
func (s *Server) MCPServer() *gomcp.Server {
	return s.server
}

// --- Tool input/output types ---

type incrementCounterInput struct {
	Name   string            `json:"name" jsonschema:"required,the counter name (e.g. requests_total)"`
	Value  float64           `json:"value,omitempty" jsonschema:"amount to add. Defaults to 1."`
	Labels map[string]string `json:"labels,omitempty" jsonschema:"optional label set recorded for the metric"`
}

type setGaugeInput struct {
	Name   string            `json:"name" jsonschema:"required,the gauge name (e.g. active_sessions)"`
	Value  float64           `json:"value" jsonschema:"required,the value to set"`
	Labels map[string]string `json:"labels,omitempty" jsonschema:"optional label set recorded for the metric"`
}

type recordTimerInput struct {
	Name       string            `json:"name" jsonschema:"required,the timer name (e.g. llm_call)"`
	DurationMS float64           `json:"duration_ms" jsonschema:"required,elapsed duration in milliseconds"`
	Labels     map[string]string `json:"labels,omitempty" jsonschema:"optional label set recorded for the metric"`
}

type recordRequestInput struct {
	Endpoint       string  `json:"endpoint" jsonschema:"required,the endpoint or operation name"`
	ResponseTimeMS float64 `json:"response_time_ms" jsonschema:"required,response time in milliseconds"`
	Success        bool    `json:"success" jsonschema:"whether the request succeeded"`
}

type recordOutput struct {
	Message string `json:"message"`
}

type trackErrorInput struct {
	ExceptionType       string `json:"exception_type" jsonschema:"required,the error type name (e.g. ConnectionError)"`
	Message             string `json:"message" jsonschema:"required,the error message"`
	Function            string `json:"function,omitempty" jsonschema:"function where the error originated"`
	Module              string `json:"module,omitempty" jsonschema:"module where the error originated"`
	Source              string `json:"source,omitempty" jsonschema:"error source; mcp_server forces the mcp_server category"`
	ServerName          string `json:"server_name,omitempty" jsonschema:"MCP server name, if the error came from one"`
	ConsecutiveFailures int    `json:"consecutive_failures,omitempty" jsonschema:"consecutive failure count for the source"`
}

type trackErrorOutput struct {
	ErrorID  string `json:"error_id"`
	Category string `json:"category"`
	Severity string `json:"severity"`
	Count    int    `json:"count"`
}

type getMetricsInput struct{}

type endpointOutput struct {
	Endpoint     string  `json:"endpoint"`
	Count        int     `json:"count"`
	AvgMS        float64 `json:"avg_ms"`
	P95MS        float64 `json:"p95_ms"`
	P99MS        float64 `json:"p99_ms"`
	ErrorRatePct float64 `json:"error_rate_percent"`
}

type metricsOutput struct {
	Timestamp     string             `json:"timestamp"`
	UptimeSeconds float64            `json:"uptime_seconds"`
	Counters      map[string]float64 `json:"counters"`
	Gauges        map[string]float64 `json:"gauges"`
	Endpoints     []endpointOutput   `json:"endpoints"`
}

type getErrorSummaryInput struct{}

type topErrorOutput struct {
	ID      string `json:"id"`
	Message string `json:"message"`
	Count   int    `json:"count"`
}

type errorSummaryOutput struct {
	TotalUniqueErrors  int              `json:"total_unique_errors"`
	TotalErrorCount    int              `json:"total_error_count"`
	RecentErrorsCount  int              `json:"recent_errors_count"`
	ErrorRatePerMinute float64          `json:"error_rate_per_minute"`
	CategoryBreakdown  map[string]int   `json:"category_breakdown"`
	SeverityBreakdown  map[string]int   `json:"severity_breakdown"`
	ActiveAlerts       int              `json:"active_alerts"`
	TopErrors          []topErrorOutput `json:"top_errors"`
}

type getAlertsInput struct {
	ActiveOnly bool `json:"active_only,omitempty" jsonschema:"return only unresolved alerts"`
}

type alertOutput struct {
	ID           string `json:"id"`
	Severity     string `json:"severity"`
	Title        string `json:"title"`
	Message      string `json:"message"`
	Timestamp    string `json:"timestamp"`
	Acknowledged bool   `json:"acknowledged"`
	Resolved     bool   `json:"resolved"`
}

type getAlertsOutput struct {
	Alerts []alertOutput `json:"alerts"`
	Count  int           `json:"count"`
}

type alertIDInput struct {
	AlertID string `json:"alert_id" jsonschema:"required,the alert identifier returned by get_alerts"`
}

type alertActionOutput struct {
	Message string `json:"message"`
}

// --- Tool registration ---

func (s *Server) registerTools() {
	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "increment_counter",
		Description: "Increment a named counter metric by an amount (default 1).",
	}, s.handleIncrementCounter)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "set_gauge",
		Description: "Set a named gauge metric to a value, replacing the previous value.",
	}, s.handleSetGauge)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "record_timer",
		Description: "Record an elapsed duration in milliseconds against a named timer.",
	}, s.handleRecordTimer)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "record_request",
		Description: "Record a request against an endpoint: response time plus success/failure, feeding per-endpoint latency stats and error rates.",
	}, s.handleRecordRequest)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "track_error",
		Description: "Report an error occurrence. Identical errors deduplicate into a single signature with an occurrence count; alert rules are evaluated on each report.",
	}, s.handleTrackError)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_metrics",
		Description: "Get the full metrics snapshot: counters, gauges, per-endpoint response-time stats, and error rates.",
	}, s.handleGetMetrics)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_error_summary",
		Description: "Get the deduplicated error summary: unique signatures, totals, rolling rate, category/severity breakdowns, and top errors.",
	}, s.handleGetErrorSummary)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "get_alerts",
		Description: "List alerts fired by the rule engine, newest first, optionally filtered to unresolved alerts.",
	}, s.handleGetAlerts)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "acknowledge_alert",
		Description: "Mark an alert as acknowledged. Acknowledging is idempotent and unknown IDs are ignored.",
	}, s.handleAcknowledgeAlert)

	gomcp.AddTool(s.server, &gomcp.Tool{
		Name:        "resolve_alert",
		Description: "Mark an alert as resolved. Resolving is idempotent and unknown IDs are ignored.",
	}, s.handleResolveAlert)
}

// --- Tool handlers ---

func (s *Server) handleIncrementCounter(_ context.Context, _ *gomcp.CallToolRequest, input incrementCounterInput) (*gomcp.CallToolResult, recordOutput, error) {
	if input.Name == "" {
		return errorResult("name is required"), recordOutput{}, nil
	}
	value := input.Value
	if value == 0 {
		value = 1
	}
	s.collector.IncrementCounter(input.Name, value, input.Labels)
	return nil, recordOutput{Message: fmt.Sprintf("counter %s incremented by %g", input.Name, value)}, nil
}

func (s *Server) handleSetGauge(_ context.Context, _ *gomcp.CallToolRequest, input setGaugeInput) (*gomcp.CallToolResult, recordOutput, error) {
	if input.Name == "" {
		return errorResult("name is required"), recordOutput{}, nil
	}
	s.collector.SetGauge(input.Name, input.Value, input.Labels)
	return nil, recordOutput{Message: fmt.Sprintf("gauge %s set to %g", input.Name, input.Value)}, nil
}

func (s *Server) handleRecordTimer(_ context.Context, _ *gomcp.CallToolRequest, input recordTimerInput) (*gomcp.CallToolResult, recordOutput, error) {
	if input.Name == "" {
		return errorResult("name is required"), recordOutput{}, nil
	}
	s.collector.RecordTimer(input.Name, input.DurationMS, input.Labels)
	return nil, recordOutput{Message: fmt.Sprintf("timer %s recorded %.1fms", input.Name, input.DurationMS)}, nil
}

func (s *Server) handleRecordRequest(_ context.Context, _ *gomcp.CallToolRequest, input recordRequestInput) (*gomcp.CallToolResult, recordOutput, error) {
	if input.Endpoint == "" {
		return errorResult("endpoint is required"), recordOutput{}, nil
	}
	s.collector.RecordRequest(input.Endpoint, input.ResponseTimeMS, input.Success)
	return nil, recordOutput{Message: fmt.Sprintf("request recorded for %s", input.Endpoint)}, nil
}

func (s *Server) handleTrackError(_ context.Context, _ *gomcp.CallToolRequest, input trackErrorInput) (*gomcp.CallToolResult, trackErrorOutput, error) {
	if input.ExceptionType == "" {
		return errorResult("exception_type is required"), trackErrorOutput{}, nil
	}
	if input.Message == "" {
		return errorResult("message is required"), trackErrorOutput{}, nil
	}

	ctx := observability.ErrorContext{
		Function:            input.Function,
		Module:              input.Module,
		Source:              input.Source,
		ServerName:          input.ServerName,
		ConsecutiveFailures: input.ConsecutiveFailures,
	}
	s.tracker.TrackFailure(input.ExceptionType, input.Message, ctx)

	// Report the tracked event's signature back.
	id := observability.ErrorID(input.ExceptionType, input.Message, input.Function)
	if e, ok := s.tracker.Error(id); ok {
		return nil, trackErrorOutput{
			ErrorID:  e.ID,
			Category: string(e.Category),
			Severity: string(e.Severity),
			Count:    e.Count,
		}, nil
	}
	return nil, trackErrorOutput{ErrorID: id}, nil
}

func (s *Server) handleGetMetrics(_ context.Context, _ *gomcp.CallToolRequest, _ getMetricsInput) (*gomcp.CallToolResult, metricsOutput, error) {
	snap := s.collector.GetAllMetrics()

	out := metricsOutput{
		Timestamp:     snap.Timestamp.Format(time.RFC3339),
		UptimeSeconds: snap.UptimeSeconds,
		Counters:      snap.Counters,
		Gauges:        snap.Gauges,
		Endpoints:     make([]endpointOutput, 0, len(snap.ResponseTimeStats)),
	}
	for endpoint, stats := range snap.ResponseTimeStats {
		out.Endpoints = append(out.Endpoints, endpointOutput{
			Endpoint:     endpoint,
			Count:        stats.Count,
			AvgMS:        stats.AvgMS,
			P95MS:        stats.P95MS,
			P99MS:        stats.P99MS,
			ErrorRatePct: snap.ErrorRates[endpoint],
		})
	}

	return nil, out, nil
}

func (s *Server) handleGetErrorSummary(_ context.Context, _ *gomcp.CallToolRequest, _ getErrorSummaryInput) (*gomcp.CallToolResult, errorSummaryOutput, error) {
	summary := s.tracker.GetErrorSummary()

	out := errorSummaryOutput{
		TotalUniqueErrors:  summary.TotalUniqueErrors,
		TotalErrorCount:    summary.TotalErrorCount,
		RecentErrorsCount:  summary.RecentErrorsCount,
		ErrorRatePerMinute: summary.ErrorRatePerMinute,
		CategoryBreakdown:  make(map[string]int, len(summary.CategoryBreakdown)),
		SeverityBreakdown:  make(map[string]int, len(summary.SeverityBreakdown)),
		ActiveAlerts:       summary.ActiveAlerts,
		TopErrors:          make([]topErrorOutput, len(summary.TopErrors)),
	}
	for category, count := range summary.CategoryBreakdown {
		out.CategoryBreakdown[string(category)] = count
	}
	for severity, count := range summary.SeverityBreakdown {
		out.SeverityBreakdown[string(severity)] = count
	}
	for i, e := range summary.TopErrors {
		out.TopErrors[i] = topErrorOutput{ID: e.ID, Message: e.Message, Count: e.Count}
	}

	return nil, out, nil
}

func (s *Server) handleGetAlerts(_ context.Context, _ *gomcp.CallToolRequest, input getAlertsInput) (*gomcp.CallToolResult, getAlertsOutput, error) {
	alerts := s.tracker.Alerts(input.ActiveOnly)

	out := getAlertsOutput{
		Alerts: make([]alertOutput, len(alerts)),
		Count:  len(alerts),
	}
	for i, a := range alerts {
		out.Alerts[i] = alertOutput{
			ID:           a.ID,
			Severity:     string(a.Severity),
			Title:        a.Title,
			Message:      a.Message,
			Timestamp:    a.Timestamp.Format(time.RFC3339),
			Acknowledged: a.Acknowledged,
			Resolved:     a.Resolved,
		}
	}

	return nil, out, nil
}

func (s *Server) handleAcknowledgeAlert(_ context.Context, _ *gomcp.CallToolRequest, input alertIDInput) (*gomcp.CallToolResult, alertActionOutput, error) {
	if input.AlertID == "" {
		return errorResult("alert_id is required"), alertActionOutput{}, nil
	}
	s.tracker.AcknowledgeAlert(input.AlertID)
	return nil, alertActionOutput{Message: fmt.Sprintf("alert %s acknowledged", input.AlertID)}, nil
}

func (s *Server) handleResolveAlert(_ context.Context, _ *gomcp.CallToolRequest, input alertIDInput) (*gomcp.CallToolResult, alertActionOutput, error) {
	if input.AlertID == "" {
		return errorResult("alert_id is required"), alertActionOutput{}, nil
	}
	s.tracker.ResolveAlert(input.AlertID)
	return nil, alertActionOutput{Message: fmt.Sprintf("alert %s resolved", input.AlertID)}, nil
}

// --- Helpers ---

func errorResult(msg string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: msg}},
		IsError: true,
	}
}
