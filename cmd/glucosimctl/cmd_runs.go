package main

import (
	"fmt"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"glucosim/pkg/glucosim"
)

func newRunsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded runs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			limit, _ := cmd.Flags().GetInt("limit")

			client, err := openClient(cmd, cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			runs, err := client.Runs(cmd.Context(), glucosim.RunsRequest{Limit: limit})
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), runs)
			}

			out := cmd.OutOrStdout()
			if len(runs) == 0 {
				fmt.Fprintln(out, "No runs recorded. Run 'glucosimctl rollout' first.")
				return nil
			}
			for _, r := range runs {
				fmt.Fprintf(out, "%s  %-10s %-24s episodes=%-4d seed=%-6d reward=%.4f tir=%.1f%%\n",
					r.RunID, createdAgo(r.CreatedAtUTC), r.Policy, r.Episodes, r.Seed, r.MeanReward, 100*r.MeanTimeInRange)
			}
			return nil
		},
	}

	cmd.Flags().Int("limit", 20, "Maximum number of runs to list")
	return cmd
}

func createdAgo(createdAtUTC string) string {
	created, err := time.Parse(time.RFC3339Nano, createdAtUTC)
	if err != nil {
		return createdAtUTC
	}
	return humanize.Time(created)
}
