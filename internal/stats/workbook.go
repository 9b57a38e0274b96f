package stats

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/xuri/excelize/v2"
)

const (
	workbookFile  = "run.xlsx"
	summarySheet  = "Summary"
	episodesSheet = "Episodes"
)

// WriteRunWorkbook renders the run summary and per-episode records into a
// spreadsheet next to the JSON artifacts.
func WriteRunWorkbook(runDir string, artifacts RunArtifacts) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", summarySheet); err != nil {
		return "", err
	}
	if _, err := f.NewSheet(episodesSheet); err != nil {
		return "", err
	}

	summary := artifacts.Summary
	rows := [][]any{
		{"run_id", artifacts.Config.RunID},
		{"scape", artifacts.Config.Scape},
		{"policy", artifacts.Config.Policy},
		{"seed", artifacts.Config.Seed},
		{"episodes", summary.Episodes},
		{"total_steps", summary.TotalSteps},
		{"mean_reward", summary.MeanReward},
		{"reward_std", summary.RewardStd},
		{"best_reward", summary.BestReward},
		{"worst_reward", summary.WorstReward},
		{"mean_time_in_range", summary.MeanTimeInRange},
		{"mean_final_steps", summary.MeanFinalSteps},
		{"truncated", summary.Truncated},
	}
	reasons := make([]string, 0, len(summary.Terminations))
	for reason := range summary.Terminations {
		reasons = append(reasons, reason)
	}
	sort.Strings(reasons)
	for _, reason := range reasons {
		rows = append(rows, []any{"terminated:" + reason, summary.Terminations[reason]})
	}
	for i, row := range rows {
		if err := setRow(f, summarySheet, i+1, row); err != nil {
			return "", err
		}
	}

	header := []any{"index", "id", "seed", "steps", "total_reward", "mean_reward", "time_in_range", "mean_glucose", "min_glucose", "max_glucose", "final_steps", "terminated", "truncated", "termination_reason"}
	if err := setRow(f, episodesSheet, 1, header); err != nil {
		return "", err
	}
	for i, e := range artifacts.Episodes {
		row := []any{e.Index, e.ID, e.Seed, e.Steps, e.TotalReward, e.MeanReward, e.TimeInRange, e.MeanGlucose, e.MinGlucose, e.MaxGlucose, e.FinalSteps, e.Terminated, e.Truncated, e.TerminationReason}
		if err := setRow(f, episodesSheet, i+2, row); err != nil {
			return "", err
		}
	}

	path := filepath.Join(runDir, workbookFile)
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	return path, nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}
