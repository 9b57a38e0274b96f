package main

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"glucosim/pkg/glucosim"
)

func newShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show [run-id]",
		Short: "Show the episodes of a run, or the transitions of one episode",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			latest, _ := cmd.Flags().GetBool("latest")
			episodeID, _ := cmd.Flags().GetString("episode")
			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}
			if runID == "" && !latest && episodeID == "" {
				return errors.New("show requires a run id, --latest or --episode")
			}

			client, err := openClient(cmd, cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			if episodeID != "" {
				return showTransitions(cmd, client, runID, episodeID)
			}

			episodes, err := client.Episodes(cmd.Context(), glucosim.EpisodesRequest{RunID: runID, Latest: latest})
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), episodes)
			}
			out := cmd.OutOrStdout()
			for _, e := range episodes {
				reason := e.TerminationReason
				if reason == "" {
					reason = "-"
				}
				fmt.Fprintf(out, "%3d %s seed=%-6d steps=%-3d reward=%8.3f tir=%5.1f%% final_steps=%-7s end=%s\n",
					e.Index, e.ID, e.Seed, e.Steps, e.TotalReward, 100*e.TimeInRange, humanize.Comma(int64(e.FinalSteps)), reason)
			}
			return nil
		},
	}

	cmd.Flags().Bool("latest", false, "Show the most recent run")
	cmd.Flags().String("episode", "", "Episode id whose transitions to print")
	return cmd
}

func showTransitions(cmd *cobra.Command, client *glucosim.Client, runID, episodeID string) error {
	transitions, err := client.Transitions(cmd.Context(), glucosim.TransitionsRequest{RunID: runID, EpisodeID: episodeID})
	if err != nil {
		return err
	}
	if jsonOutput(cmd) {
		return writeJSON(cmd.OutOrStdout(), transitions)
	}
	out := cmd.OutOrStdout()
	for _, t := range transitions {
		obs := t.Observation
		if len(obs) < 6 {
			return fmt.Errorf("transition %d has %d observation values", t.Step, len(obs))
		}
		fmt.Fprintf(out, "%2d %-14s glucose=%6.1f hr=%5.1f fatigue=%.2f adherence=%.2f hour=%02d steps=%-7s reward=%7.3f",
			t.Step, t.ActionName, obs[0], obs[1], obs[2], obs[3], int(obs[4]), humanize.Comma(int64(obs[5])), t.Reward)
		if t.TerminationReason != "" {
			fmt.Fprintf(out, " end=%s", t.TerminationReason)
		}
		fmt.Fprintln(out)
	}
	return nil
}
