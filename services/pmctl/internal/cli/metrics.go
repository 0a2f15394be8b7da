package cli

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// MetricsCmd returns the command that shows service metrics.
func MetricsCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "metrics",
		Short: "Show metrics reported by the services",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := app.Client().ServiceMetrics(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, name := range result.KnownServices {
				m, ok := result.Services[name]
				if !ok || m == nil {
					fmt.Fprintf(out, "%s %s\n", name, color.New(color.FgRed).Sprint("offline"))
					continue
				}

				status := color.New(color.FgGreen).Sprint(m.Status)
				if m.Status != "healthy" {
					status = color.New(color.FgYellow).Sprint(m.Status)
				}
				fmt.Fprintf(out, "%s %s (updated %s)\n", name, status, formatTime(m.LastUpdated))
				fmt.Fprintf(out, "  received %d  processed %d  published %d  errors %d\n",
					m.MessagesReceived, m.MessagesProcessed, m.MessagesPublished, m.ProcessingErrors)

				counters := make([]string, 0, len(m.CustomCounters))
				for k := range m.CustomCounters {
					counters = append(counters, k)
				}
				sort.Strings(counters)
				for _, k := range counters {
					fmt.Fprintf(out, "  %s: %d\n", k, m.CustomCounters[k])
				}
			}
			return nil
		},
	}
}
