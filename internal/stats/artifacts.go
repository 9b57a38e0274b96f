package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"glucosim/internal/model"
)

const (
	runIndexFile     = "run_index.json"
	configFile       = "config.json"
	summaryFile      = "summary.json"
	episodesFile     = "episodes.json"
	transitionsDir   = "transitions"
	observationWidth = 6
)

type RunConfig struct {
	RunID         string          `json:"run_id"`
	Scape         string          `json:"scape"`
	Policy        string          `json:"policy"`
	Seed          int64           `json:"seed"`
	Episodes      int             `json:"episodes"`
	Workers       int             `json:"workers"`
	DayLength     int             `json:"day_length"`
	StepTarget    float64         `json:"step_target"`
	GlucoseTarget float64         `json:"glucose_target"`
	MealSchedule  map[int]float64 `json:"meal_schedule,omitempty"`
}

type RunArtifacts struct {
	Config      RunConfig                           `json:"config"`
	Summary     RunSummary                          `json:"summary"`
	Episodes    []model.EpisodeRecord               `json:"episodes"`
	Transitions map[string][]model.TransitionRecord `json:"-"`
}

type RunIndexEntry struct {
	RunID           string  `json:"run_id"`
	Scape           string  `json:"scape"`
	Policy          string  `json:"policy"`
	Episodes        int     `json:"episodes"`
	Seed            int64   `json:"seed"`
	MeanReward      float64 `json:"mean_reward"`
	MeanTimeInRange float64 `json:"mean_time_in_range"`
	CreatedAtUTC    string  `json:"created_at_utc"`
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, configFile), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, summaryFile), artifacts.Summary); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, episodesFile), artifacts.Episodes); err != nil {
		return "", err
	}

	if len(artifacts.Transitions) > 0 {
		if err := os.MkdirAll(filepath.Join(runDir, transitionsDir), 0o755); err != nil {
			return "", err
		}
		for episodeID, transitions := range artifacts.Transitions {
			path := filepath.Join(runDir, transitionsDir, episodeID+".csv")
			if err := WriteTransitionsCSV(path, transitions); err != nil {
				return "", fmt.Errorf("write transitions %s: %w", episodeID, err)
			}
		}
	}

	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	var index []RunIndexEntry
	if _, err := readJSON(filepath.Join(baseDir, runIndexFile), &index); err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	// Later appended entries come first among equal timestamps.
	for i, j := 0, len(entries)-1; i < j; i, j = i+1, j-1 {
		entries[i], entries[j] = entries[j], entries[i]
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAtUTC > entries[j].CreatedAtUTC
	})
	return entries, nil
}

func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range []string{configFile, summaryFile, episodesFile} {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	for _, optional := range []string{workbookFile} {
		if err := copyIfExists(filepath.Join(src, optional), filepath.Join(dst, optional)); err != nil {
			return "", err
		}
	}

	entries, err := os.ReadDir(filepath.Join(src, transitionsDir))
	if err != nil {
		if os.IsNotExist(err) {
			return dst, nil
		}
		return "", err
	}
	if err := os.MkdirAll(filepath.Join(dst, transitionsDir), 0o755); err != nil {
		return "", err
	}
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".csv") {
			continue
		}
		if err := copyFile(filepath.Join(src, transitionsDir, entry.Name()), filepath.Join(dst, transitionsDir, entry.Name())); err != nil {
			return "", err
		}
	}
	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, configFile), &cfg)
	return cfg, ok, err
}

func ReadRunSummary(baseDir, runID string) (RunSummary, bool, error) {
	var summary RunSummary
	ok, err := readJSON(filepath.Join(baseDir, runID, summaryFile), &summary)
	return summary, ok, err
}

func ReadRunEpisodes(baseDir, runID string) ([]model.EpisodeRecord, bool, error) {
	var episodes []model.EpisodeRecord
	ok, err := readJSON(filepath.Join(baseDir, runID, episodesFile), &episodes)
	return episodes, ok, err
}

// WriteTransitionsCSV writes one row per step with the post-step observation
// spread over named columns.
func WriteTransitionsCSV(path string, transitions []model.TransitionRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(transitionHeader()); err != nil {
		return err
	}
	for _, t := range transitions {
		if err := writer.Write(transitionRow(t)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadTransitionsCSV(baseDir, runID, episodeID string) ([]model.TransitionRecord, bool, error) {
	file, err := os.Open(filepath.Join(baseDir, runID, transitionsDir, episodeID+".csv"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []model.TransitionRecord{}, true, nil
		}
		return nil, false, err
	}
	if len(header) != len(transitionHeader()) {
		return nil, false, fmt.Errorf("transitions header must have %d columns, got %d", len(transitionHeader()), len(header))
	}

	transitions := make([]model.TransitionRecord, 0, 32)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		t, err := parseTransitionRow(record)
		if err != nil {
			return nil, false, err
		}
		transitions = append(transitions, t)
	}
	return transitions, true, nil
}

func transitionHeader() []string {
	return []string{
		"step", "action", "action_name",
		"glucose", "heart_rate", "fatigue", "adherence", "time_of_day", "steps",
		"reward", "terminated", "truncated", "termination_reason",
	}
}

func transitionRow(t model.TransitionRecord) []string {
	row := []string{strconv.Itoa(t.Step), strconv.Itoa(t.Action), t.ActionName}
	for i := 0; i < observationWidth; i++ {
		value := 0.0
		if i < len(t.Observation) {
			value = t.Observation[i]
		}
		row = append(row, formatFloat(value))
	}
	return append(row,
		formatFloat(t.Reward),
		strconv.FormatBool(t.Terminated),
		strconv.FormatBool(t.Truncated),
		t.TerminationReason,
	)
}

func parseTransitionRow(record []string) (model.TransitionRecord, error) {
	if len(record) != len(transitionHeader()) {
		return model.TransitionRecord{}, fmt.Errorf("transition row must have %d columns, got %d", len(transitionHeader()), len(record))
	}

	var t model.TransitionRecord
	var err error
	if t.Step, err = strconv.Atoi(record[0]); err != nil {
		return model.TransitionRecord{}, fmt.Errorf("parse step: %w", err)
	}
	if t.Action, err = strconv.Atoi(record[1]); err != nil {
		return model.TransitionRecord{}, fmt.Errorf("parse action: %w", err)
	}
	t.ActionName = record[2]
	t.Observation = make([]float64, observationWidth)
	for i := 0; i < observationWidth; i++ {
		if t.Observation[i], err = strconv.ParseFloat(record[3+i], 64); err != nil {
			return model.TransitionRecord{}, fmt.Errorf("parse observation[%d]: %w", i, err)
		}
	}
	if t.Reward, err = strconv.ParseFloat(record[9], 64); err != nil {
		return model.TransitionRecord{}, fmt.Errorf("parse reward: %w", err)
	}
	if t.Terminated, err = strconv.ParseBool(record[10]); err != nil {
		return model.TransitionRecord{}, fmt.Errorf("parse terminated: %w", err)
	}
	if t.Truncated, err = strconv.ParseBool(record[11]); err != nil {
		return model.TransitionRecord{}, fmt.Errorf("parse truncated: %w", err)
	}
	t.TerminationReason = record[12]
	return t, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func readJSON(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, err
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyIfExists(src, dst string) error {
	if _, err := os.Stat(src); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return copyFile(src, dst)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
