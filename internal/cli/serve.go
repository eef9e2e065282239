package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"
	pulsemcp "github.com/valter-silva-au/agent-pulse/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the engine with its MCP tool surface on stdio",
	Long: `Run the Agent Pulse engine: an MCP server on stdio exposing the
recording tools (record_request, track_error, increment_counter,
set_gauge, record_timer) and the query tools (get_metrics,
get_error_summary, get_alerts, acknowledge_alert, resolve_alert).

While serving, snapshots are exported on the configured interval for the
viewer commands, and when serve.enabled is set a Prometheus scrape
endpoint is served on serve.addr.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if Collector == nil || Tracker == nil {
			return fmt.Errorf("engine not initialized")
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if Exporter != nil {
			interval := time.Duration(Config.Export.IntervalMinutes) * time.Minute
			if interval <= 0 {
				interval = 5 * time.Minute
			}
			go Exporter.Run(ctx, interval)
		}

		if Bridge != nil {
			mux := http.NewServeMux()
			mux.Handle("/metrics", Bridge.Handler())
			httpServer := &http.Server{Addr: Config.Serve.Addr, Handler: mux}
			go func() {
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					fmt.Fprintf(os.Stderr, "metrics endpoint: %v\n", err)
				}
			}()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = httpServer.Shutdown(shutdownCtx)
			}()
		}

		srv := pulsemcp.NewServer(Collector, Tracker, appVersion)
		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("running MCP server: %w", err)
		}

		// Final export so viewer commands see the last state.
		if Exporter != nil {
			_ = Exporter.Export()
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
