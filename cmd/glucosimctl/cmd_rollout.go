package main

import (
	"fmt"
	"sort"

	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"glucosim/pkg/glucosim"
)

func newRolloutCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rollout",
		Short: "Play a batch of simulated days with a scripted policy",
		Long: `Play a batch of simulated days and record every transition.

Policies: random, heuristic, fixed:<action>, cycle:<action>,<action>,...
Episode i is reset with seed+i, so a run is reproducible from its seed.

Example:
  glucosimctl rollout --policy cycle:light_walk,rest --episodes 20 --seed 7`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			req := glucosim.RunRequest{
				Policy:   cfg.Rollout.Policy,
				Episodes: cfg.Rollout.Episodes,
				Seed:     cfg.Rollout.Seed,
				Workers:  cfg.Rollout.Workers,
			}
			if cmd.Flags().Changed("policy") {
				req.Policy, _ = cmd.Flags().GetString("policy")
			}
			if cmd.Flags().Changed("episodes") {
				req.Episodes, _ = cmd.Flags().GetInt("episodes")
			}
			if cmd.Flags().Changed("seed") {
				req.Seed, _ = cmd.Flags().GetInt64("seed")
			}
			if cmd.Flags().Changed("workers") {
				req.Workers, _ = cmd.Flags().GetInt("workers")
			}
			req.Workbook, _ = cmd.Flags().GetBool("xlsx")
			if req.Episodes <= 0 {
				return fmt.Errorf("episodes must be > 0")
			}

			client, err := openClient(cmd, cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			summary, err := client.Run(cmd.Context(), req)
			if err != nil {
				return err
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]any{
					"run_id":        summary.RunID,
					"artifacts_dir": summary.ArtifactsDir,
					"workbook":      summary.WorkbookPath,
					"summary":       summary.Summary,
				})
			}
			out := cmd.OutOrStdout()
			s := summary.Summary
			fmt.Fprintf(out, "run_id=%s policy=%s episodes=%d\n", summary.RunID, req.Policy, s.Episodes)
			fmt.Fprintf(out, "mean_reward=%.4f reward_std=%.4f best=%.4f worst=%.4f\n", s.MeanReward, s.RewardStd, s.BestReward, s.WorstReward)
			fmt.Fprintf(out, "time_in_range=%.1f%% mean_final_steps=%.0f truncated=%d\n", 100*s.MeanTimeInRange, s.MeanFinalSteps, s.Truncated)
			reasons := lo.Keys(s.Terminations)
			sort.Strings(reasons)
			for _, reason := range reasons {
				fmt.Fprintf(out, "termination %s=%d\n", reason, s.Terminations[reason])
			}
			fmt.Fprintf(out, "artifacts=%s\n", summary.ArtifactsDir)
			if summary.WorkbookPath != "" {
				fmt.Fprintf(out, "workbook=%s\n", summary.WorkbookPath)
			}
			return nil
		},
	}

	cmd.Flags().String("policy", "random", "Policy spec")
	cmd.Flags().Int("episodes", 10, "Number of simulated days")
	cmd.Flags().Int64("seed", 1, "Base seed")
	cmd.Flags().Int("workers", 4, "Parallel episode workers")
	cmd.Flags().Bool("xlsx", false, "Also write run.xlsx with summary and episode sheets")
	return cmd
}
