package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/afikmenashe/patient-alerting/services/pmctl/internal/client"
)

// NotificationsCmd returns the notifications command group.
func NotificationsCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"notification", "notif"},
		Short:   "Inspect and drive notification delivery",
	}
	cmd.AddCommand(notificationsListCmd(app))
	cmd.AddCommand(notificationsGetCmd(app))
	cmd.AddCommand(notificationOperationCmd(app, "send", "Deliver a Pending notification now", (*client.Client).SendNotification))
	cmd.AddCommand(notificationOperationCmd(app, "retry", "Re-attempt delivery of a Failed notification", (*client.Client).RetryNotification))
	cmd.AddCommand(notificationOperationCmd(app, "cancel", "Cancel a Pending notification", (*client.Client).CancelNotification))
	cmd.AddCommand(notificationsPendingCmd(app))
	return cmd
}

func notificationsListCmd(app *App) *cobra.Command {
	var filter client.NotificationFilter
	var failed bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notifications, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if failed {
				filter.Status = "Failed"
			}
			result, err := app.Client().ListNotifications(cmd.Context(), filter)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(result.Notifications) == 0 {
				fmt.Fprintln(out, "No notifications found.")
				return nil
			}

			tw := newTable(out)
			fmt.Fprintln(tw, "ID\tPATIENT\tRECIPIENT\tCHANNEL\tPRIORITY\tSTATUS\tRETRIES\tCREATED")
			for _, n := range result.Notifications {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
					n.ID, n.PatientID, n.RecipientType, n.Channel, n.Priority, statusColor(n.Status), n.RetryCount, formatTime(n.CreatedAt))
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\nShowing %d of %d notifications\n", len(result.Notifications), result.Total)
			return nil
		},
	}

	cmd.Flags().StringVar(&filter.PatientID, "patient", "", "Filter by patient ID")
	cmd.Flags().StringVar(&filter.RecipientType, "recipient", "", "Filter by recipient type")
	cmd.Flags().StringVar(&filter.Channel, "channel", "", "Filter by channel")
	cmd.Flags().StringVar(&filter.Status, "status", "", "Filter by status")
	cmd.Flags().StringVar(&filter.Priority, "priority", "", "Filter by priority")
	cmd.Flags().BoolVar(&failed, "failed", false, "Only Failed notifications")
	cmd.Flags().IntVar(&filter.Limit, "limit", 50, "Maximum notifications to show")
	cmd.Flags().IntVar(&filter.Offset, "offset", 0, "Notifications to skip")
	return cmd
}

func notificationsGetCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "get [notification-id]",
		Short: "Show one notification",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := app.Client().GetNotification(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Notification %s\n", n.ID)
			fmt.Fprintf(out, "  Patient:   %s\n", n.PatientID)
			fmt.Fprintf(out, "  Recipient: %s (%s)\n", n.RecipientType, valueOr(n.RecipientID, "no id"))
			fmt.Fprintf(out, "  Channel:   %s\n", n.Channel)
			fmt.Fprintf(out, "  Priority:  %s\n", n.Priority)
			fmt.Fprintf(out, "  Status:    %s (retries %d)\n", statusColor(n.Status), n.RetryCount)
			fmt.Fprintf(out, "  Subject:   %s\n", n.Subject)
			if n.RelatedEntityID != nil {
				fmt.Fprintf(out, "  Related:   %s %s\n", valueOr(n.RelatedEntityType, "entity"), *n.RelatedEntityID)
			}
			if n.SentAt != nil {
				fmt.Fprintf(out, "  Sent:      %s\n", formatTime(*n.SentAt))
			}
			if n.ErrorMessage != nil {
				fmt.Fprintf(out, "  Error:     %s\n", *n.ErrorMessage)
			}
			return nil
		},
	}
}

type notificationOperation func(c *client.Client, ctx context.Context, id string) (*client.Operation, error)

func notificationOperationCmd(app *App, verb, short string, op notificationOperation) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " [notification-id]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := op(app.Client(), cmd.Context(), args[0])
			if err != nil {
				return err
			}

			mark := check()
			if verb != "cancel" && !result.Delivered {
				mark = cross()
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s Notification %s: %s\n", mark, result.NotificationID, statusColor(result.Status))
			return nil
		},
	}
}

func notificationsPendingCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "Count Pending notifications",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := app.Client().PendingNotificationCount(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d pending notifications\n", n)
			return nil
		},
	}
}
