package cmd

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/DachengChen/aibridge/applog"
	"github.com/DachengChen/aibridge/stub"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newStubCmd(_ *env) *cobra.Command {
	var (
		addr       string
		wsAddr     string
		prefix     string
		ratePerSec float64
		burst      int
		latency    time.Duration
		chunkDelay time.Duration
	)
	cmd := &cobra.Command{
		Use:   "stub",
		Short: "Run the development AI endpoint and remote agent",
		Long: `Stub serves two development stand-ins:
  • an HTTP endpoint that answers {"message": m} with {"reply": PREFIX+m}
  • a websocket agent speaking the remote protocol (echo, streaming,
    command list, tool calls)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := applog.Logger()
			servers := []*http.Server{
				{
					Addr: addr,
					Handler: stub.NewRelayHandler(stub.RelayOptions{
						Prefix:        prefix,
						Latency:       latency,
						RatePerSecond: ratePerSec,
						Burst:         burst,
						Logger:        logger,
					}),
					ReadHeaderTimeout: 10 * time.Second,
				},
				{
					Addr: wsAddr,
					Handler: stub.NewAgentHandler(stub.AgentOptions{
						ChunkDelay: chunkDelay,
						Logger:     logger,
					}),
					ReadHeaderTimeout: 10 * time.Second,
				},
			}

			ctx := cmd.Context()
			g, gctx := errgroup.WithContext(ctx)
			for _, srv := range servers {
				g.Go(func() error {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						return errors.Wrapf(err, "listen %s", srv.Addr)
					}
					return nil
				})
			}
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
				defer cancel()
				for _, srv := range servers {
					if err := srv.Shutdown(shutdownCtx); err != nil {
						logger.Error().Err(err).Str("addr", srv.Addr).Msg("stub shutdown error")
					}
				}
				return nil
			})

			fmt.Fprintf(cmd.OutOrStdout(), "stub relay on http://%s, agent on ws://%s\n", addr, wsAddr)
			applog.Info("stub servers started relay=%s agent=%s", addr, wsAddr)
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":9999", "relay endpoint listen address")
	cmd.Flags().StringVar(&wsAddr, "ws-addr", ":8080", "agent websocket listen address")
	cmd.Flags().StringVar(&prefix, "prefix", "echo: ", "text prepended to each reply")
	cmd.Flags().Float64Var(&ratePerSec, "rate", 0, "requests per second before 429 (0 = unlimited)")
	cmd.Flags().IntVar(&burst, "burst", 1, "rate limiter burst")
	cmd.Flags().DurationVar(&latency, "latency", 0, "simulated model latency")
	cmd.Flags().DurationVar(&chunkDelay, "chunk-delay", 100*time.Millisecond, "delay between streamed chunks")
	return cmd
}
