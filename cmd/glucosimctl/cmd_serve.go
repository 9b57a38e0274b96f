package main

import (
	"fmt"
	"net"

	"github.com/spf13/cobra"

	"glucosim/internal/server"
)

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the environment to remote agents over gRPC",
		Long: `Serve the simulation engine as the glucosim.v1.Environment gRPC service.

Each remote agent opens its own session with CreateSession and drives it
with Reset, Step, Render and Close. Idle sessions are evicted after the
configured idle timeout.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
				cfg.Server.Addr = addr
			}
			if cmd.Flags().Changed("max-sessions") {
				limit, _ := cmd.Flags().GetInt("max-sessions")
				cfg.Server.MaxSessions = limit
			}
			logger := newLogger(cmd, cfg)

			svc, err := server.NewService(server.Options{
				Defaults:    cfg.EngineConfig(),
				MaxSessions: cfg.Server.MaxSessions,
				IdleTimeout: cfg.Server.IdleTimeout,
				Logger:      logger,
			})
			if err != nil {
				return err
			}

			lis, err := net.Listen("tcp", cfg.Server.Addr)
			if err != nil {
				return fmt.Errorf("listen %s: %w", cfg.Server.Addr, err)
			}
			if err := server.Serve(cmd.Context(), lis, svc); err != nil {
				return err
			}
			logger.Info("environment service stopped")
			return nil
		},
	}

	cmd.Flags().String("addr", "", "Listen address (default from config or $GLUCOSIM_ADDR)")
	cmd.Flags().Int("max-sessions", 0, "Maximum concurrent sessions, 0 for unlimited")
	return cmd
}
