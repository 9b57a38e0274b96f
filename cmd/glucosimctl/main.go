package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"glucosim/internal/config"
	"glucosim/internal/logging"
	"glucosim/pkg/glucosim"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "glucosimctl",
		Short: "Daily glucose and exercise simulation",
		Long: `glucosimctl drives the daily glucose/exercise simulation engine.

It serves the environment to remote agents, rolls out scripted or random
policies, scores policies against fixed evaluation seed sets, and inspects
recorded runs.`,
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String("config", "", "Path to a YAML config file (default $GLUCOSIM_CONFIG)")
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug, trace, warn, error")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text, json, tint")

	rootCmd.AddCommand(
		newVersionCmd(),
		newServeCmd(),
		newRolloutCmd(),
		newEvaluateCmd(),
		newRunsCmd(),
		newShowCmd(),
		newExportCmd(),
	)
	return rootCmd
}

// loadConfig resolves the config file, environment and global flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.Logging.Level = level
	}
	if format, _ := cmd.Flags().GetString("log-format"); format != "" {
		cfg.Logging.Format = format
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	return logging.New(cfg.Logging.Level, cfg.Logging.Format, cmd.ErrOrStderr())
}

// openClient builds the run client shared by the rollout and inspection commands.
func openClient(cmd *cobra.Command, cfg *config.Config) (*glucosim.Client, error) {
	engine := cfg.EngineConfig()
	return glucosim.New(glucosim.Options{
		StoreKind:    cfg.Storage.Backend,
		DBPath:       cfg.Storage.Path,
		ArtifactsDir: cfg.Storage.ArtifactsDir,
		Engine:       &engine,
		Logger:       newLogger(cmd, cfg),
	})
}

func jsonOutput(cmd *cobra.Command) bool {
	jsonOut, _ := cmd.Flags().GetBool("json")
	return jsonOut
}

func writeJSON(w io.Writer, value any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(value)
}
