package commands

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/buttond/buttond/pkg/config"
)

func newValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}

			if jsonOutput {
				summary := map[string]interface{}{
					"valid":            true,
					"poll_interval_ms": cfg.Global.PollIntervalMS,
					"global_triggers":  len(cfg.Global.Triggers),
					"global_exports":   len(cfg.Global.Exports),
					"device_sections":  len(cfg.Devices),
				}
				out, err := json.MarshalIndent(summary, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"configuration OK: %d global trigger rule(s), %d export rule(s), %d device section(s), poll interval %s\n",
				len(cfg.Global.Triggers), len(cfg.Global.Exports), len(cfg.Devices), cfg.Global.PollInterval())
			return nil
		},
	}
}
