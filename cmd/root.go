// Package cmd contains all Cobra commands for aibridge.
//
// The root command launches the TUI directly; the subcommands expose the
// same relay, remote agent and stub servers for scripts and testing.
package cmd

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/DachengChen/aibridge/ai"
	"github.com/DachengChen/aibridge/applog"
	"github.com/DachengChen/aibridge/bridge"
	"github.com/DachengChen/aibridge/config"
	"github.com/DachengChen/aibridge/history"
	"github.com/DachengChen/aibridge/ssh"
	"github.com/DachengChen/aibridge/tui"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// env is the state shared by subcommands once the config is loaded.
type env struct {
	configFlag   string
	logLevelFlag string

	cfg     *config.AppConfig
	cfgPath string
	dialer  *ssh.Dialer
}

func (e *env) load() error {
	path := e.configFlag
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return err
		}
		path = p
	}

	cfg, err := config.LoadAppConfigFrom(path)
	if err != nil {
		return err
	}
	if e.logLevelFlag != "" {
		cfg.Log.Level = e.logLevelFlag
	}
	if err := cfg.Validate(); err != nil {
		return errors.Wrap(err, "invalid config")
	}

	if err := applog.InitDir(filepath.Join(filepath.Dir(path), "logs"), cfg.Log.Level); err != nil {
		fmt.Fprintf(os.Stderr, "warning: logging disabled: %v\n", err)
	}

	if cfg.Tunnel.Enabled {
		d, err := ssh.NewDialer(cfg.Tunnel)
		if err != nil {
			return err
		}
		e.dialer = d
		applog.Info("routing traffic through ssh bastion %s", cfg.Tunnel.Host)
	}

	e.cfg = cfg
	e.cfgPath = path
	applog.Info("aibridge started with config %s", path)
	return nil
}

// relay builds the relay, dialling through the bastion when enabled.
func (e *env) relay() *ai.Relay {
	opts := []ai.Option{ai.WithLogger(applog.Logger())}
	if e.dialer != nil {
		opts = append(opts, ai.WithHTTPClient(e.dialer.HTTPClient()))
	}
	return ai.NewRelay(opts...)
}

func (e *env) dial() func(ctx context.Context, network, addr string) (net.Conn, error) {
	if e.dialer == nil {
		return nil
	}
	return e.dialer.DialContext
}

func (e *env) close() {
	if e.dialer != nil {
		e.dialer.Close()
		e.dialer = nil
	}
	applog.Close()
}

func newRootCmd() (*cobra.Command, *env) {
	e := &env{}
	root := &cobra.Command{
		Use:   "aibridge",
		Short: "Relay chat messages to an AI endpoint",
		Long: `aibridge relays chat messages to an AI service:
  • TUI chat that POSTs {"message": ...} and shows {"reply": ...}
  • Remote agent console over websocket
  • Optional SSH bastion for all outbound traffic
  • Stub endpoints for local development

Run 'aibridge' to start the TUI.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return e.load()
		},
		// Running with no subcommand launches the TUI.
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTUI(cmd.Context(), e)
		},
	}
	root.PersistentFlags().StringVar(&e.configFlag, "config", "", "config file (default ~/.aibridge/config.json)")
	root.PersistentFlags().StringVar(&e.logLevelFlag, "log-level", "", "log level: trace, debug, info, warn, error")

	root.AddCommand(
		newSendCmd(e),
		newInvokeCmd(e),
		newRemoteCmd(e),
		newStubCmd(e),
		newConfigCmd(e),
	)
	return root, e
}

func runTUI(ctx context.Context, e *env) error {
	store, err := history.Open(ctx, e.cfg.History, e.dial())
	if err != nil {
		return err
	}
	defer store.Close()

	endpoints, err := config.OpenEndpointStore(filepath.Join(filepath.Dir(e.cfgPath), "endpoints.json"))
	if err != nil {
		applog.Error("load endpoints: %v", err)
		endpoints = nil
	}

	return tui.Start(tui.Deps{
		Config:     e.cfg,
		ConfigPath: e.cfgPath,
		Bridge:     bridge.New(e.relay()),
		History:    store,
		Endpoints:  endpoints,
		Dial:       e.dial(),
	})
}

// Execute runs the root command until it finishes or a signal arrives.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root, e := newRootCmd()
	defer e.close()
	return root.ExecuteContext(ctx)
}
