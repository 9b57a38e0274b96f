package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"glucosim/pkg/glucosim"
)

func newExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export [run-id]",
		Short: "Copy a run's artifacts to an export directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			latest, _ := cmd.Flags().GetBool("latest")
			outDir, _ := cmd.Flags().GetString("out")
			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}

			client, err := openClient(cmd, cfg)
			if err != nil {
				return err
			}
			defer client.Close()

			exported, err := client.Export(cmd.Context(), glucosim.ExportRequest{RunID: runID, Latest: latest, OutDir: outDir})
			if err != nil {
				return err
			}
			if jsonOutput(cmd) {
				return writeJSON(cmd.OutOrStdout(), map[string]string{
					"run_id":    exported.RunID,
					"directory": exported.Directory,
				})
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "exported run_id=%s dir=%s\n", exported.RunID, exported.Directory)
			return err
		},
	}

	cmd.Flags().Bool("latest", false, "Export the most recent run")
	cmd.Flags().String("out", "exports", "Export directory")
	return cmd
}
