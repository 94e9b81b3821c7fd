package main

import (
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lexcodex/wayforward/server"
)

func newServeCmd() *cobra.Command {
	var (
		addr    string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr == "" {
				addr = envOrDefault("WAYFORWARD_ADDR", globalCfg.Server.Addr)
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			rt, err := newRuntime(ctx, globalCfg, runtimeOptions{store: true})
			if err != nil {
				return err
			}
			defer rt.Close()

			api := &server.APIServer{
				Analyzer:       rt.analyzer,
				Improver:       rt.improver,
				Gatherer:       rt.registry,
				AllowedOrigins: globalCfg.Server.AllowedOrigins,
				RequestTimeout: timeout,
				Logger:         rt.logger.Named("api"),
			}
			if rt.store != nil {
				api.Runs = rt.store
			}
			cmd.Printf("Starting API server on %s using %s/%s\n", addr, globalCfg.Model.Provider, globalCfg.Model.Name)
			err = api.ServeContext(ctx, addr)
			if errors.Is(err, ctx.Err()) {
				return nil
			}
			return err
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (defaults to server.addr)")
	cmd.Flags().DurationVar(&timeout, "request-timeout", 0, "Per-request deadline; 0 leaves it to the coordinator timeout")
	return cmd
}
