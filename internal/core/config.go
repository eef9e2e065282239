// Package core contains configuration loading for Agent Pulse.
package core

import (
	"fmt"

	"github.com/spf13/viper"
	"github.com/valter-silva-au/agent-pulse/pkg/models"
)

// ConfigurationManager loads and validates the .pulseconfig file.
type ConfigurationManager interface {
	LoadConfig() (*models.Config, error)
	ValidateConfig(cfg *models.Config) error
}

// viperConfigManager implements ConfigurationManager using Viper for
// reading YAML configuration files.
type viperConfigManager struct {
	// basePath is the directory where .pulseconfig resides.
	basePath string
}

// NewConfigurationManager creates a ConfigurationManager reading
// configuration relative to basePath.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

// DefaultConfig returns a Config populated with sensible defaults.
func DefaultConfig() *models.Config {
	return &models.Config{
		Engine: models.EngineConfig{
			MaxSamples: 10000,
			MaxErrors:  5000,
		},
		Notifications: models.NotificationConfig{
			Enabled: false,
			Email: models.EmailSinkConfig{
				Enabled:  false,
				SMTPHost: "localhost",
				SMTPPort: 587,
			},
			Workers:        4,
			QueueSize:      64,
			TimeoutSeconds: 10,
		},
		Export: models.ExportConfig{
			Path:            "pulse_snapshot.json",
			IntervalMinutes: 5,
		},
		Serve: models.ServeConfig{
			Enabled:   false,
			Addr:      ":9090",
			Namespace: "agentpulse",
		},
		EventLogPath: ".pulse_events.jsonl",
	}
}

// LoadConfig reads the .pulseconfig file from the base path using Viper.
// If the file does not exist, defaults are returned.
func (cm *viperConfigManager) LoadConfig() (*models.Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	v.SetConfigName(".pulseconfig")
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)

	// Set Viper defaults so missing keys fall back gracefully.
	v.SetDefault("engine.max_samples", cfg.Engine.MaxSamples)
	v.SetDefault("engine.max_errors", cfg.Engine.MaxErrors)
	v.SetDefault("notifications.enabled", cfg.Notifications.Enabled)
	v.SetDefault("notifications.webhook_url", cfg.Notifications.WebhookURL)
	v.SetDefault("notifications.email.enabled", cfg.Notifications.Email.Enabled)
	v.SetDefault("notifications.email.smtp_host", cfg.Notifications.Email.SMTPHost)
	v.SetDefault("notifications.email.smtp_port", cfg.Notifications.Email.SMTPPort)
	v.SetDefault("notifications.email.from", cfg.Notifications.Email.From)
	v.SetDefault("notifications.workers", cfg.Notifications.Workers)
	v.SetDefault("notifications.queue_size", cfg.Notifications.QueueSize)
	v.SetDefault("notifications.timeout_seconds", cfg.Notifications.TimeoutSeconds)
	v.SetDefault("export.path", cfg.Export.Path)
	v.SetDefault("export.interval_minutes", cfg.Export.IntervalMinutes)
	v.SetDefault("serve.enabled", cfg.Serve.Enabled)
	v.SetDefault("serve.addr", cfg.Serve.Addr)
	v.SetDefault("serve.namespace", cfg.Serve.Namespace)
	v.SetDefault("event_log_path", cfg.EventLogPath)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading .pulseconfig: %w", err)
	}

	cfg.Engine.MaxSamples = v.GetInt("engine.max_samples")
	cfg.Engine.MaxErrors = v.GetInt("engine.max_errors")
	cfg.Notifications.Enabled = v.GetBool("notifications.enabled")
	cfg.Notifications.WebhookURL = v.GetString("notifications.webhook_url")
	cfg.Notifications.Email.Enabled = v.GetBool("notifications.email.enabled")
	cfg.Notifications.Email.SMTPHost = v.GetString("notifications.email.smtp_host")
	cfg.Notifications.Email.SMTPPort = v.GetInt("notifications.email.smtp_port")
	cfg.Notifications.Email.From = v.GetString("notifications.email.from")
	cfg.Notifications.Email.To = v.GetStringSlice("notifications.email.to")
	cfg.Notifications.Workers = v.GetInt("notifications.workers")
	cfg.Notifications.QueueSize = v.GetInt("notifications.queue_size")
	cfg.Notifications.TimeoutSeconds = v.GetInt("notifications.timeout_seconds")
	cfg.Export.Path = v.GetString("export.path")
	cfg.Export.IntervalMinutes = v.GetInt("export.interval_minutes")
	cfg.Serve.Enabled = v.GetBool("serve.enabled")
	cfg.Serve.Addr = v.GetString("serve.addr")
	cfg.Serve.Namespace = v.GetString("serve.namespace")
	cfg.EventLogPath = v.GetString("event_log_path")

	if err := cm.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ValidateConfig rejects configurations the engine cannot run with.
func (cm *viperConfigManager) ValidateConfig(cfg *models.Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.Engine.MaxSamples < 0 {
		return fmt.Errorf("engine.max_samples must not be negative, got %d", cfg.Engine.MaxSamples)
	}
	if cfg.Engine.MaxErrors < 0 {
		return fmt.Errorf("engine.max_errors must not be negative, got %d", cfg.Engine.MaxErrors)
	}
	if cfg.Notifications.Email.Enabled {
		if cfg.Notifications.Email.SMTPHost == "" {
			return fmt.Errorf("notifications.email.smtp_host is required when email is enabled")
		}
		if len(cfg.Notifications.Email.To) == 0 {
			return fmt.Errorf("notifications.email.to is required when email is enabled")
		}
	}
	if cfg.Export.IntervalMinutes < 0 {
		return fmt.Errorf("export.interval_minutes must not be negative, got %d", cfg.Export.IntervalMinutes)
	}
	return nil
}
