// Package models defines the configuration records shared between the
// config loader, the engine wiring, and the CLI.
package models

// EngineConfig sizes the in-memory engine.
type EngineConfig struct {
	MaxSamples int `yaml:"max_samples" mapstructure:"max_samples"`
	MaxErrors  int `yaml:"max_errors" mapstructure:"max_errors"`
}

// EmailSinkConfig configures the SMTP alert sink.
type EmailSinkConfig struct {
	Enabled  bool     `yaml:"enabled" mapstructure:"enabled"`
	SMTPHost string   `yaml:"smtp_host" mapstructure:"smtp_host"`
	SMTPPort int      `yaml:"smtp_port" mapstructure:"smtp_port"`
	From     string   `yaml:"from" mapstructure:"from"`
	To       []string `yaml:"to,omitempty" mapstructure:"to"`
}

// NotificationConfig configures alert delivery.
type NotificationConfig struct {
	Enabled        bool            `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL     string          `yaml:"webhook_url,omitempty" mapstructure:"webhook_url"`
	Email          EmailSinkConfig `yaml:"email" mapstructure:"email"`
	Workers        int             `yaml:"workers" mapstructure:"workers"`
	QueueSize      int             `yaml:"queue_size" mapstructure:"queue_size"`
	TimeoutSeconds int             `yaml:"timeout_seconds" mapstructure:"timeout_seconds"`
}

// ExportConfig configures the snapshot exporter.
type ExportConfig struct {
	Path            string `yaml:"path" mapstructure:"path"`
	IntervalMinutes int    `yaml:"interval_minutes" mapstructure:"interval_minutes"`
}

// ServeConfig configures the Prometheus scrape endpoint.
type ServeConfig struct {
	Enabled   bool   `yaml:"enabled" mapstructure:"enabled"`
	Addr      string `yaml:"addr" mapstructure:"addr"`
	Namespace string `yaml:"namespace" mapstructure:"namespace"`
}

// Config holds all settings read from .pulseconfig via Viper.
type Config struct {
	Engine        EngineConfig       `yaml:"engine" mapstructure:"engine"`
	Notifications NotificationConfig `yaml:"notifications" mapstructure:"notifications"`
	Export        ExportConfig       `yaml:"export" mapstructure:"export"`
	Serve         ServeConfig        `yaml:"serve" mapstructure:"serve"`
	EventLogPath  string             `yaml:"event_log_path" mapstructure:"event_log_path"`
}
