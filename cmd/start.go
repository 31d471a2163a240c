package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"firestige.xyz/vrouter/internal/daemon"
)

var pidFile string

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Run the router in foreground",
	Long: `Run the vrouter process in foreground.

The process will:
  1. Load configuration and initialize logging
  2. Load the static route table
  3. Open every configured interface through the selected link
  4. Forward frames until SIGTERM/SIGINT (SIGHUP reloads log settings)

Examples:
  vrouter start -c /etc/vrouter/config.yml
  vrouter start -c replay.yml -p /tmp/vrouter.pid`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStart(configFile, pidFile)
	},
}

func init() {
	startCmd.Flags().StringVarP(&pidFile, "pidfile", "p", "/var/run/vrouter.pid",
		"PID file path, empty to disable")
}

func runStart(configPath, pidPath string) error {
	d, err := daemon.New(configPath, pidPath)
	if err != nil {
		return err
	}
	if err := d.Start(); err != nil {
		d.Stop()
		return fmt.Errorf("failed to start: %w", err)
	}
	return d.Run()
}
