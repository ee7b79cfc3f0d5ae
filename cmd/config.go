package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/DachengChen/aibridge/applog"
	"github.com/DachengChen/aibridge/config"
	"github.com/spf13/cobra"
)

func newConfigCmd(e *env) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change the configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			shown := *e.cfg
			if shown.Tunnel.KeyPassphrase != "" {
				shown.Tunnel.KeyPassphrase = "********"
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(&shown)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set-url URL",
		Short: "Set the AI endpoint URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e.cfg.Relay.APIURL = args[0]
			if err := config.SaveAppConfigTo(e.cfgPath, e.cfg); err != nil {
				return err
			}
			applog.Event("config", "api url set to %s", args[0])
			fmt.Fprintf(cmd.OutOrStdout(), "api_url = %s\n", args[0])
			return nil
		},
	})

	return cmd
}
