package cli

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/valter-silva-au/agent-pulse/internal/observability"
)

var metricsJSON bool

var metricsCmd = &cobra.Command{
	Use:   "metrics",
	Short: "Display the latest exported metrics snapshot",
	Long: `Display counters, gauges, per-endpoint response-time summaries, and
error rates from the snapshot most recently written by a running engine
(pulse serve).`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := loadSnapshot()
		if err != nil {
			return err
		}

		if metricsJSON {
			data, err := json.MarshalIndent(snap.Metrics, "", "  ")
			if err != nil {
				return fmt.Errorf("formatting metrics as JSON: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		m := snap.Metrics
		fmt.Printf("Metrics snapshot (%s)\n\n", snap.Timestamp.Format(time.RFC3339))
		fmt.Printf("  %-24s %s\n", "Uptime:", (time.Duration(m.UptimeSeconds) * time.Second).String())

		if len(m.Counters) > 0 {
			fmt.Println("\n  Counters:")
			for _, name := range sortedKeys(m.Counters) {
				fmt.Printf("    %-28s %g\n", name+":", m.Counters[name])
			}
		}
		if len(m.Gauges) > 0 {
			fmt.Println("\n  Gauges:")
			for _, name := range sortedKeys(m.Gauges) {
				fmt.Printf("    %-28s %g\n", name+":", m.Gauges[name])
			}
		}

		if len(m.ResponseTimeStats) > 0 {
			fmt.Println("\n  Endpoints:")
			fmt.Printf("    %-28s %8s %10s %10s %10s %8s\n", "endpoint", "count", "avg_ms", "p95_ms", "p99_ms", "err%")
			for _, endpoint := range sortedKeys(m.ResponseTimeStats) {
				stats := m.ResponseTimeStats[endpoint]
				fmt.Printf("    %-28s %8d %10.1f %10.1f %10.1f %8.1f\n",
					endpoint, stats.Count, stats.AvgMS, stats.P95MS, stats.P99MS, m.ErrorRates[endpoint])
			}
		}

		return nil
	},
}

// loadSnapshot reads the exported snapshot the viewer commands render.
func loadSnapshot() (*observability.Snapshot, error) {
	if SnapshotPath == "" {
		return nil, fmt.Errorf("no snapshot path configured (set export.path in .pulseconfig)")
	}
	snap, err := observability.LoadSnapshot(SnapshotPath)
	if err != nil {
		return nil, fmt.Errorf("no snapshot available at %s (is pulse serve running?): %w", SnapshotPath, err)
	}
	return snap, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func init() {
	metricsCmd.Flags().BoolVar(&metricsJSON, "json", false, "Output metrics as JSON")
	rootCmd.AddCommand(metricsCmd)
}
