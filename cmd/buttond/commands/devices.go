package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/buttond/buttond/pkg/hal"
)

func newDevicesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "Enumerate devices visible through the selected backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, err := hal.New(backendName)
			if err != nil {
				return err
			}
			devices, err := backend.Devices(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOutput {
				out, err := json.MarshalIndent(devices, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(out))
				return nil
			}

			if len(devices) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no devices found")
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "#\tNAME\tVENDOR\tMODEL\tTYPE")
			for i, d := range devices {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\n", i, d.Name, d.Vendor, d.Model, d.Type)
			}
			return w.Flush()
		},
	}
}
