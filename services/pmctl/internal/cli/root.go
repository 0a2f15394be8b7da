// Package cli implements the pmctl command tree.
package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/afikmenashe/patient-alerting/services/pmctl/internal/client"
)

// App carries the resolved settings and API client to subcommands.
type App struct {
	viper  *viper.Viper
	config *Config
	client *client.Client
}

// Client returns the API client. It is set once the root pre-run has loaded settings.
func (a *App) Client() *client.Client {
	return a.client
}

// RootCmd returns the pmctl root command with all subcommands attached.
func RootCmd() *cobra.Command {
	app := &App{viper: newViper()}
	var configFile string

	root := &cobra.Command{
		Use:   "pmctl",
		Short: "Operator CLI for patient monitoring alerts and notifications",
		Long: `pmctl talks to the monitoring and notification admin APIs.

Settings come from flags, PMCTL_* environment variables and ~/.pmctl.yaml,
in that order of precedence.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := readConfigFile(app.viper, configFile); err != nil {
				return err
			}
			cfg, err := configFrom(app.viper)
			if err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			if cfg.NoColor {
				color.NoColor = true
			}
			app.config = cfg
			app.client = client.New(client.Config{
				MonitoringURL:   cfg.MonitoringURL,
				NotificationURL: cfg.NotificationURL,
				Timeout:         cfg.Timeout,
			})
			return nil
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "Config file (default ~/.pmctl.yaml)")
	flags.String(KeyMonitoringURL, "http://localhost:8080", "Monitoring service base URL")
	flags.String(KeyNotificationURL, "http://localhost:8081", "Notification service base URL")
	flags.Duration(KeyTimeout, app.viper.GetDuration(KeyTimeout), "Request timeout")
	flags.Bool(KeyNoColor, false, "Disable coloured output")
	for _, key := range []string{KeyMonitoringURL, KeyNotificationURL, KeyTimeout, KeyNoColor} {
		_ = app.viper.BindPFlag(key, flags.Lookup(key))
	}

	root.AddCommand(AlertsCmd(app))
	root.AddCommand(NotificationsCmd(app))
	root.AddCommand(MetricsCmd(app))
	return root
}
