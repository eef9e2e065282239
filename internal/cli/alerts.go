package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var (
	alertsJSON   bool
	alertsActive bool
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "Show alerts from the latest snapshot",
	Long: `Show alerts recorded by a running engine, newest first.

Acknowledging and resolving alerts are live operations on the engine and
are exposed as the acknowledge_alert and resolve_alert MCP tools of
pulse serve.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := loadSnapshot()
		if err != nil {
			return err
		}

		alerts := snap.Alerts
		if alertsActive {
			filtered := alerts[:0]
			for _, a := range alerts {
				if !a.Resolved {
					filtered = append(filtered, a)
				}
			}
			alerts = filtered
		}

		if alertsJSON {
			data, err := json.MarshalIndent(alerts, "", "  ")
			if err != nil {
				return fmt.Errorf("formatting alerts as JSON: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		if len(alerts) == 0 {
			fmt.Println("No alerts.")
			return nil
		}

		fmt.Printf("%d alert(s):\n\n", len(alerts))
		for _, alert := range alerts {
			state := "open"
			switch {
			case alert.Resolved:
				state = "resolved"
			case alert.Acknowledged:
				state = "acknowledged"
			}
			fmt.Printf("  [%s] %s (%s)\n", strings.ToUpper(string(alert.Severity)), alert.Message, state)
			fmt.Printf("         id %s, fired at %s\n\n", alert.ID, alert.Timestamp.Format("2006-01-02 15:04 UTC"))
		}

		return nil
	},
}

func init() {
	alertsCmd.Flags().BoolVar(&alertsJSON, "json", false, "Output alerts as JSON")
	alertsCmd.Flags().BoolVar(&alertsActive, "active", false, "Show only unresolved alerts")
	rootCmd.AddCommand(alertsCmd)
}
