package observability

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Snapshot bundles the pull-based views of both engine halves. Durability
// is the exporter's responsibility: the engine itself keeps no state
// across restarts.
type Snapshot struct {
	Timestamp time.Time       `json:"timestamp" yaml:"timestamp"`
	Metrics   MetricsSnapshot `json:"metrics" yaml:"metrics"`
	Errors    ErrorSummary    `json:"errors" yaml:"errors"`
	Alerts    []Alert         `json:"alerts" yaml:"alerts"`
}

// SnapshotExporter periodically serializes collector and tracker snapshots
// to a file, in JSON or YAML depending on the file extension.
type SnapshotExporter struct {
	collector *MetricsCollector
	tracker   *ErrorTracker
	path      string
	eventLog  EventLog
}

// NewSnapshotExporter creates an exporter writing to path. A ".yaml" or
// ".yml" extension selects YAML; anything else JSON.
func NewSnapshotExporter(collector *MetricsCollector, tracker *ErrorTracker, path string, eventLog EventLog) *SnapshotExporter {
	return &SnapshotExporter{
		collector: collector,
		tracker:   tracker,
		path:      path,
		eventLog:  eventLog,
	}
}

// Snapshot captures the current state of both engine halves.
func (e *SnapshotExporter) Snapshot() Snapshot {
	return Snapshot{
		Timestamp: time.Now().UTC(),
		Metrics:   e.collector.GetAllMetrics(),
		Errors:    e.tracker.GetErrorSummary(),
		Alerts:    e.tracker.Alerts(false),
	}
}

// Export writes one snapshot atomically (temp file then rename).
func (e *SnapshotExporter) Export() error {
	snap := e.Snapshot()

	var data []byte
	var err error
	if isYAMLPath(e.path) {
		data, err = yaml.Marshal(snap)
	} else {
		data, err = json.MarshalIndent(snap, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}

	tmp := e.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing snapshot: %w", err)
	}
	if err := os.Rename(tmp, e.path); err != nil {
		return fmt.Errorf("replacing snapshot: %w", err)
	}

	logEvent(e.eventLog, "INFO", EventExportWritten, "snapshot exported", map[string]any{
		"path": e.path,
	})
	return nil
}

// Run exports on the given interval until the context is cancelled. Export
// failures are logged and do not stop the loop.
func (e *SnapshotExporter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := e.Export(); err != nil {
				logEvent(e.eventLog, "ERROR", EventExportFailed, err.Error(), map[string]any{
					"path": e.path,
				})
			}
		}
	}
}

// LoadSnapshot reads a snapshot previously written by an exporter.
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}

	var snap Snapshot
	if isYAMLPath(path) {
		err = yaml.Unmarshal(data, &snap)
	} else {
		err = json.Unmarshal(data, &snap)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding snapshot %s: %w", filepath.Base(path), err)
	}
	return &snap, nil
}

func isYAMLPath(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
