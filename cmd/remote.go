package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/DachengChen/aibridge/applog"
	"github.com/DachengChen/aibridge/remote"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func newRemoteCmd(e *env) *cobra.Command {
	var (
		host         string
		port         int
		stream       bool
		useTools     bool
		listCommands bool
		yes          bool
		noAsk        bool
	)
	cmd := &cobra.Command{
		Use:   "remote [--host H] [--port P] TEXT...",
		Short: "Send one text request to the remote agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			rc := e.cfg.Remote
			if host != "" {
				rc.Host = host
			}
			if port != 0 {
				rc.Port = port
			}
			if !cmd.Flags().Changed("tools") {
				useTools = rc.UseTools
			}
			if !listCommands && len(args) == 0 {
				return errors.New("remote: TEXT is required unless --commands is set")
			}

			client := remote.NewClient(remote.Config{
				Addr:     rc.Addr(),
				Timeout:  time.Duration(rc.TimeoutSeconds) * time.Second,
				Dial:     e.dial(),
				ToolCall: remote.LocalTools,
				Confirm:  confirmOnTerminal(cmd.InOrStdin(), cmd.ErrOrStderr(), yes),
				Logger:   applog.Logger(),
			})
			if err := client.Connect(cmd.Context()); err != nil {
				return err
			}
			defer client.Close()

			out := cmd.OutOrStdout()
			if listCommands {
				cmds, err := client.GetCommands(cmd.Context())
				if err != nil {
					return err
				}
				sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
				for _, c := range cmds {
					fmt.Fprintf(out, "%-20s %s\n", c.Name, c.Description)
				}
				return nil
			}

			var sh *remote.StreamHandler
			if stream {
				sh = &remote.StreamHandler{OnChunk: func(chunk string) { fmt.Fprint(out, chunk) }}
			}
			ask := rc.AskBeforeTools && !noAsk
			reqCfg := &remote.RequestConfig{MaxTokens: rc.MaxTokens, AskBeforeToolExecution: &ask}
			resp, err := client.SendText(cmd.Context(), strings.Join(args, " "), reqCfg, stream, useTools, sh)
			if err != nil {
				return err
			}
			if stream {
				fmt.Fprintln(out)
			} else {
				fmt.Fprintln(out, resp.Response.Text)
			}
			if u := resp.TokenUsage; u != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "tokens: %d prompt, %d completion, %d total\n",
					u.PromptTokens, u.CompletionTokens, u.TotalTokens)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "agent host (default from config)")
	cmd.Flags().IntVar(&port, "port", 0, "agent port (default from config)")
	cmd.Flags().BoolVar(&stream, "stream", false, "stream the reply as it is generated")
	cmd.Flags().BoolVar(&useTools, "tools", false, "let the agent call local tools (default from config)")
	cmd.Flags().BoolVar(&listCommands, "commands", false, "list the agent's commands instead of sending")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "approve every confirmation the agent asks for")
	cmd.Flags().BoolVar(&noAsk, "no-ask", false, "let the agent run tools without asking")
	return cmd
}

// confirmOnTerminal asks on w and reads the answer from r; only y or yes
// approves.
func confirmOnTerminal(r io.Reader, w io.Writer, yes bool) remote.ConfirmationHandler {
	in := bufio.NewReader(r)
	return func(ctx context.Context, c remote.Confirmation) (remote.Decision, error) {
		prompt := "agent asks for confirmation"
		switch {
		case c.Tool != nil:
			args, _ := json.Marshal(c.Tool.Arguments)
			prompt = fmt.Sprintf("run tool %s %s?", c.Tool.Name, args)
		case c.Turn != nil:
			prompt = c.Turn.Message
		}
		if yes {
			fmt.Fprintf(w, "%s [y/N] y\n", prompt)
			return remote.Decision{Approved: true}, nil
		}
		fmt.Fprintf(w, "%s [y/N] ", prompt)

		line := make(chan string, 1)
		go func() {
			s, _ := in.ReadString('\n')
			line <- s
		}()
		select {
		case s := <-line:
			switch strings.ToLower(strings.TrimSpace(s)) {
			case "y", "yes":
				return remote.Decision{Approved: true}, nil
			}
			return remote.Decision{Reason: "declined"}, nil
		case <-ctx.Done():
			return remote.Decision{}, ctx.Err()
		}
	}
}
