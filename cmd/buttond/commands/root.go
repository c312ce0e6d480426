package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var (
	// Global flags
	configPath  string
	backendName string
	jsonOutput  bool
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "buttond",
		Short: "buttond - hardware-event trigger daemon",
		Long: `buttond polls locally attached devices for user-initiated state
changes exposed through each device's option table (e.g. a physical
button press) and invokes configured handler programs when a watched
option transitions from one configured condition to another.

Features:
  - One polling worker per device with per-device trigger serialization
  - Regex rule matching against live device option names
  - Environment export of option values to handler processes
  - Live configuration reload (SIGHUP or file watch)
  - Begin/trigger/end notifications and Prometheus metrics`,
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
	}

	// Persistent flags available to all commands
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "/etc/buttond/buttond.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&backendName, "backend", "mem", "hardware backend to use")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	// Add subcommands
	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newDevicesCommand())

	return rootCmd
}
