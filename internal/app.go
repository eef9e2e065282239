// Package internal provides the App struct that wires the Agent Pulse
// observability engine together and initializes the CLI layer.
package internal

import (
	"os"
	"path/filepath"
	"time"

	"github.com/valter-silva-au/agent-pulse/internal/cli"
	"github.com/valter-silva-au/agent-pulse/internal/core"
	"github.com/valter-silva-au/agent-pulse/internal/observability"
	"github.com/valter-silva-au/agent-pulse/pkg/models"
)

// App holds all service dependencies for the Agent Pulse engine.
type App struct {
	BasePath string
	Config   *models.Config

	ConfigMgr core.ConfigurationManager

	EventLog   observability.EventLog
	Collector  *observability.MetricsCollector
	Tracker    *observability.ErrorTracker
	Dispatcher *observability.Dispatcher
	Exporter   *observability.SnapshotExporter
	Bridge     *observability.PromBridge
}

// NewApp creates and wires all components of the engine. basePath is the
// directory holding .pulseconfig and the engine's working files.
func NewApp(basePath string) (*App, error) {
	app := &App{BasePath: basePath}

	// --- Configuration ---
	app.ConfigMgr = core.NewConfigurationManager(basePath)
	cfg, err := app.ConfigMgr.LoadConfig()
	if err != nil {
		return nil, err
	}
	app.Config = cfg

	// --- Engine event log ---
	eventLogPath := cfg.EventLogPath
	if eventLogPath != "" && !filepath.IsAbs(eventLogPath) {
		eventLogPath = filepath.Join(basePath, eventLogPath)
	}
	if eventLogPath != "" {
		app.EventLog, err = observability.NewJSONLEventLog(eventLogPath)
		if err != nil {
			// Non-fatal: the event log is best-effort.
			app.EventLog = nil
		}
	}

	// --- Alert delivery ---
	var sinks []observability.AlertSink
	if cfg.Notifications.Enabled {
		if cfg.Notifications.WebhookURL != "" {
			sinks = append(sinks, observability.NewWebhookSink(cfg.Notifications.WebhookURL))
		}
		if cfg.Notifications.Email.Enabled {
			sinks = append(sinks, observability.NewEmailSink(observability.EmailConfig{
				Host: cfg.Notifications.Email.SMTPHost,
				Port: cfg.Notifications.Email.SMTPPort,
				From: cfg.Notifications.Email.From,
				To:   cfg.Notifications.Email.To,
			}))
		}
	}
	if len(sinks) > 0 {
		app.Dispatcher = observability.NewDispatcher(observability.DispatcherConfig{
			Workers:   cfg.Notifications.Workers,
			QueueSize: cfg.Notifications.QueueSize,
			Timeout:   time.Duration(cfg.Notifications.TimeoutSeconds) * time.Second,
			EventLog:  app.EventLog,
		}, sinks...)
	}

	// --- Engine ---
	app.Collector = observability.NewMetricsCollector(cfg.Engine.MaxSamples)
	trackerCfg := observability.ErrorTrackerConfig{
		MaxErrors: cfg.Engine.MaxErrors,
		EventLog:  app.EventLog,
	}
	if app.Dispatcher != nil {
		trackerCfg.Dispatcher = app.Dispatcher
	}
	app.Tracker = observability.NewErrorTracker(trackerCfg)

	// --- Exporter ---
	exportPath := cfg.Export.Path
	if exportPath != "" && !filepath.IsAbs(exportPath) {
		exportPath = filepath.Join(basePath, exportPath)
	}
	app.Exporter = observability.NewSnapshotExporter(app.Collector, app.Tracker, exportPath, app.EventLog)

	// --- Prometheus bridge ---
	if cfg.Serve.Enabled {
		bridge, err := observability.NewPromBridge(app.Collector, cfg.Serve.Namespace)
		if err != nil {
			return nil, err
		}
		app.Bridge = bridge
	}

	// --- Wire CLI package-level variables ---
	cli.BasePath = basePath
	cli.Config = cfg
	cli.Collector = app.Collector
	cli.Tracker = app.Tracker
	cli.Exporter = app.Exporter
	cli.Bridge = app.Bridge
	cli.SnapshotPath = exportPath

	return app, nil
}

// Close releases resources held by the App: the delivery pool drains and
// the event log file handle closes. Safe to call with nil members.
func (a *App) Close() error {
	if a.Dispatcher != nil {
		a.Dispatcher.Close()
	}
	if a.EventLog != nil {
		return a.EventLog.Close()
	}
	return nil
}

// ResolveBasePath determines the base path for the Agent Pulse data
// directory. It checks the PULSE_HOME env var, then walks up from the
// current directory looking for a .pulseconfig, falling back to the cwd.
func ResolveBasePath() string {
	if home := os.Getenv("PULSE_HOME"); home != "" {
		return home
	}
	dir, err := os.Getwd()
	if err != nil {
		return "."
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, ".pulseconfig")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	cwd, _ := os.Getwd()
	return cwd
}
