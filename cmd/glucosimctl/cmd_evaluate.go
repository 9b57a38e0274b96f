package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"glucosim/internal/scape"
	"glucosim/pkg/glucosim"
)

func newEvaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Score a policy on a fixed evaluation seed set",
		Long: `Score a policy against one evaluation mode of a scape.

Modes gt, validation, test and benchmark each replay a fixed set of seeds,
so fitness values are comparable across policies.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			scapeName, _ := cmd.Flags().GetString("scape")
			mode, _ := cmd.Flags().GetString("mode")
			policy, _ := cmd.Flags().GetString("policy")
			seed, _ := cmd.Flags().GetInt64("seed")

			client, err := openClient(cmd, cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			modes := []string{mode}
			if mode == "all" {
				modes = scape.Modes()
			}
			results := make([]glucosim.EvaluateSummary, 0, len(modes))
			for _, m := range modes {
				summary, err := client.Evaluate(cmd.Context(), glucosim.EvaluateRequest{
					Scape:  scapeName,
					Mode:   m,
					Policy: policy,
					Seed:   seed,
				})
				if err != nil {
					return err
				}
				results = append(results, summary)
			}

			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), results)
			}
			out := cmd.OutOrStdout()
			for _, r := range results {
				fmt.Fprintf(out, "scape=%s mode=%s policy=%s fitness=%.6f\n", r.Scape, r.Mode, r.Policy, r.Fitness)
				keys := make([]string, 0, len(r.Trace))
				for k := range r.Trace {
					keys = append(keys, k)
				}
				sort.Strings(keys)
				for _, k := range keys {
					fmt.Fprintf(out, "  %s=%v\n", k, r.Trace[k])
				}
			}
			return nil
		},
	}

	cmd.Flags().String("scape", "diabetes-exercise", "Scape name or alias")
	cmd.Flags().String("mode", "gt", "Evaluation mode: gt, validation, test, benchmark or all")
	cmd.Flags().String("policy", "heuristic", "Policy spec")
	cmd.Flags().Int64("seed", 1, "Seed for stochastic policies")
	return cmd
}
