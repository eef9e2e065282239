package cli

import (
	"github.com/valter-silva-au/agent-pulse/internal/observability"
	"github.com/valter-silva-au/agent-pulse/pkg/models"
)

// Engine service instances, set during app initialization in app.go.
var (
	BasePath     string
	Config       *models.Config
	Collector    *observability.MetricsCollector
	Tracker      *observability.ErrorTracker
	Exporter     *observability.SnapshotExporter
	Bridge       *observability.PromBridge
	SnapshotPath string
)
