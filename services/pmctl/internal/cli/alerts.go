package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/afikmenashe/patient-alerting/services/pmctl/internal/client"
	"github.com/afikmenashe/patient-alerting/services/pmctl/internal/report"
)

// exportPageSize matches the largest page the monitoring API serves.
const exportPageSize = 200

// AlertsCmd returns the alerts command group.
func AlertsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "alerts",
		Aliases: []string{"alert"},
		Short:   "Inspect and manage patient alerts",
	}
	cmd.AddCommand(alertsListCmd(app))
	cmd.AddCommand(alertsGetCmd(app))
	cmd.AddCommand(alertsAckCmd(app))
	cmd.AddCommand(alertsResolveCmd(app))
	cmd.AddCommand(alertsCloseCmd(app))
	cmd.AddCommand(alertsCountCmd(app))
	cmd.AddCommand(alertsExportCmd(app))
	return cmd
}

func addAlertFilterFlags(cmd *cobra.Command, f *client.AlertFilter) {
	cmd.Flags().StringVar(&f.PatientID, "patient", "", "Filter by patient ID")
	cmd.Flags().StringVar(&f.Severity, "severity", "", "Filter by severity (Information, Warning, Critical)")
	cmd.Flags().StringVar(&f.Status, "status", "", "Filter by status")
	cmd.Flags().BoolVar(&f.ActiveOnly, "active", false, "Only New, Acknowledged and InProgress alerts")
}

func alertsListCmd(app *App) *cobra.Command {
	var filter client.AlertFilter

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List alerts, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := app.Client().ListAlerts(cmd.Context(), filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(result.Alerts) == 0 {
				fmt.Fprintln(out, "No alerts found.")
				return nil
			}

			tw := newTable(out)
			fmt.Fprintln(tw, "ID\tPATIENT\tTIME\tSEVERITY\tSTATUS\tTITLE")
			for _, a := range result.Alerts {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
					a.ID, a.PatientID, formatTime(a.AlertDateTime), severityColor(a.Severity), statusColor(a.Status), a.Title)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\nShowing %d of %d alerts\n", len(result.Alerts), result.Total)
			return nil
		},
	}

	addAlertFilterFlags(cmd, &filter)
	cmd.Flags().IntVar(&filter.Limit, "limit", 50, "Maximum alerts to show")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "Alerts to skip")
	return cmd
}

func alertsGetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "get [alert-id]",
		Short: "Show one alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := app.Client().GetAlert(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Alert %s (version %d)\n", a.ID, a.Version)
			fmt.Fprintf(out, "  Patient:     %s\n", a.PatientID)
			fmt.Fprintf(out, "  Title:       %s\n", a.Title)
			fmt.Fprintf(out, "  Severity:    %s\n", severityColor(a.Severity))
			fmt.Fprintf(out, "  Status:      %s\n", statusColor(a.Status))
			fmt.Fprintf(out, "  Time:        %s\n", formatTime(a.AlertDateTime))
			if a.Description != nil {
				fmt.Fprintf(out, "  Description: %s\n", *a.Description)
			}
			if a.TriggeringObservationID != nil {
				fmt.Fprintf(out, "  Observation: %s\n", *a.TriggeringObservationID)
			}
			if a.AcknowledgedBy != nil {
				fmt.Fprintf(out, "  Acknowledged by %s\n", *a.AcknowledgedBy)
			}
			if a.ResolvedBy != nil {
				fmt.Fprintf(out, "  Resolved by %s: %s\n", *a.ResolvedBy, valueOr(a.ResolutionNotes, "(no notes)"))
			}
			if a.ClosedBy != nil {
				fmt.Fprintf(out, "  Closed by %s\n", *a.ClosedBy)
			}
			return nil
		},
	}
}

func printTransition(cmd *cobra.Command, verb string, t *client.AlertTransition) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s Alert %s %s (status %s)\n", check(), t.AlertID, verb, statusColor(t.Status))
}

func alertsAckCmd(app *App) *cobra.Command {
	var by string

	cmd := &cobra.Command{
		Use:     "ack [alert-id]",
		Aliases: []string{"acknowledge"},
		Short:   "Acknowledge a New alert",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := app.Client().AcknowledgeAlert(cmd.Context(), args[0], by)
			if err != nil {
				return err
			}
			printTransition(cmd, "acknowledged", t)
			return nil
		},
	}
	cmd.Flags().StringVar(&by, "by", "", "Who acknowledges the alert")
	cmd.MarkFlagRequired("by")
	return cmd
}

func alertsResolveCmd(app *App) *cobra.Command {
	var by, notes string

	cmd := &cobra.Command{
		Use:   "resolve [alert-id]",
		Short: "Resolve an alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := app.Client().ResolveAlert(cmd.Context(), args[0], by, notes)
			if err != nil {
				return err
			}
			printTransition(cmd, "resolved", t)
			return nil
		},
	}
	cmd.Flags().StringVar(&by, "by", "", "Who resolves the alert")
	cmd.Flags().StringVar(&notes, "notes", "", "Resolution notes")
	cmd.MarkFlagRequired("by")
	return cmd
}

func alertsCloseCmd(app *App) *cobra.Command {
	var by string

	cmd := &cobra.Command{
		Use:   "close [alert-id]",
		Short: "Close a Resolved alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := app.Client().CloseAlert(cmd.Context(), args[0], by)
			if err != nil {
				return err
			}
			printTransition(cmd, "closed", t)
			return nil
		},
	}
	cmd.Flags().StringVar(&by, "by", "", "Who closes the alert")
	cmd.MarkFlagRequired("by")
	return cmd
}

func alertsCountCmd(app *App) *cobra.Command {
	var patientID string

	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count active alerts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := app.Client().CountActiveAlerts(cmd.Context(), patientID)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d active alerts\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&patientID, "patient", "", "Count for one patient")
	return cmd
}

func alertsExportCmd(app *App) *cobra.Command {
	var filter client.AlertFilter
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export matching alerts to an xlsx workbook",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var all []*client.Alert
			filter.Limit = exportPageSize
			for filter.Offset = 0; ; filter.Offset += exportPageSize {
				page, err := app.Client().ListAlerts(cmd.Context(), filter)
				if err != nil {
					return err
				}
				all = append(all, page.Alerts...)
				if len(page.Alerts) < exportPageSize || int64(len(all)) >= page.Total {
					break
				}
			}

			data, err := report.AlertsWorkbook(all)
			if err != nil {
				return fmt.Errorf("failed to build workbook: %w", err)
			}
			if err := os.WriteFile(output, data, 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", output, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Exported %d alerts to %s\n", check(), len(all), output)
			return nil
		},
	}

	addAlertFilterFlags(cmd, &filter)
	cmd.Flags().StringVarP(&output, "output", "o", "alerts.xlsx", "Output file")
	return cmd
}
