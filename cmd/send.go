package cmd

import (
	"encoding/json"
	"strings"

	"github.com/DachengChen/aibridge/bridge"
	"github.com/spf13/cobra"
)

func newSendCmd(e *env) *cobra.Command {
	var apiURL string
	cmd := &cobra.Command{
		Use:   "send [--url URL] MESSAGE...",
		Short: "Send one message and print the JSON reply",
		Long: `Send POSTs {"message": MESSAGE} to the AI endpoint and prints the
{"reply": ...} object. On failure the error text goes to stderr and the
exit code is 1.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if apiURL == "" {
				apiURL = e.cfg.Relay.APIURL
			}
			b := bridge.New(e.relay())
			resp, err := b.SendMessage(cmd.Context(), strings.Join(args, " "), apiURL)
			if err != nil {
				return err
			}
			return json.NewEncoder(cmd.OutOrStdout()).Encode(resp)
		},
	}
	cmd.Flags().StringVar(&apiURL, "url", "", "AI endpoint URL (default from config)")
	return cmd
}

func newInvokeCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "invoke NAME [ARGS_JSON]",
		Short: "Invoke a bridge command with raw JSON arguments",
		Example: `  aibridge invoke send_message_to_ai '{"message":"hi","api_url":"http://localhost:9999"}'`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw := json.RawMessage("{}")
			if len(args) == 2 {
				raw = json.RawMessage(args[1])
			}
			b := bridge.New(e.relay())
			out, err := b.Invoke(cmd.Context(), args[0], raw)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(append(out, '\n'))
			return err
		},
	}
}
