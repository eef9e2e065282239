package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var errorsJSON bool

var errorsCmd = &cobra.Command{
	Use:   "errors",
	Short: "Display the error summary from the latest snapshot",
	Long: `Display the deduplicated error summary: unique error signatures, total
occurrences, rolling error rate, category and severity breakdowns, and
the top errors by occurrence count.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		snap, err := loadSnapshot()
		if err != nil {
			return err
		}

		if errorsJSON {
			data, err := json.MarshalIndent(snap.Errors, "", "  ")
			if err != nil {
				return fmt.Errorf("formatting error summary as JSON: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		s := snap.Errors
		fmt.Println("Error summary")
		fmt.Println()
		fmt.Printf("  %-26s %d\n", "Unique errors:", s.TotalUniqueErrors)
		fmt.Printf("  %-26s %d\n", "Total occurrences:", s.TotalErrorCount)
		fmt.Printf("  %-26s %d\n", "Seen in last hour:", s.RecentErrorsCount)
		fmt.Printf("  %-26s %.2f\n", "Errors per minute:", s.ErrorRatePerMinute)
		fmt.Printf("  %-26s %d\n", "Active alerts:", s.ActiveAlerts)

		if len(s.CategoryBreakdown) > 0 {
			fmt.Println("\n  By category:")
			for category, count := range s.CategoryBreakdown {
				fmt.Printf("    %-22s %d\n", string(category)+":", count)
			}
		}
		if len(s.SeverityBreakdown) > 0 {
			fmt.Println("\n  By severity:")
			for severity, count := range s.SeverityBreakdown {
				fmt.Printf("    %-22s %d\n", string(severity)+":", count)
			}
		}
		if len(s.TopErrors) > 0 {
			fmt.Println("\n  Top errors:")
			for _, e := range s.TopErrors {
				fmt.Printf("    %5dx %s (%s)\n", e.Count, e.Message, e.ID)
			}
		}

		return nil
	},
}

func init() {
	errorsCmd.Flags().BoolVar(&errorsJSON, "json", false, "Output the summary as JSON")
	rootCmd.AddCommand(errorsCmd)
}
