package stats

import (
	"os"
	"path/filepath"
	"testing"

	"glucosim/internal/model"
)

func sampleArtifacts(runID string) RunArtifacts {
	transitions := []model.TransitionRecord{
		transition(1, "light_walk", 108.5, 1500, 0.71),
		transition(2, "rest", 111.25, 1500, 0.44),
	}
	transitions[1].Truncated = true
	transitions[1].TerminationReason = "end_of_day"

	summary := SummarizeEpisode(transitions)
	episode := model.EpisodeRecord{ID: "episode-1", RunID: runID, Seed: 7}
	summary.ApplyTo(&episode)

	return RunArtifacts{
		Config: RunConfig{
			RunID:         runID,
			Scape:         "diabetes-exercise",
			Policy:        "random",
			Seed:          7,
			Episodes:      1,
			Workers:       1,
			DayLength:     24,
			StepTarget:    10000,
			GlucoseTarget: 110,
		},
		Summary:     SummarizeRun([]model.EpisodeRecord{episode}),
		Episodes:    []model.EpisodeRecord{episode},
		Transitions: map[string][]model.TransitionRecord{"episode-1": transitions},
	}
}

func TestWriteAndExportRunArtifacts(t *testing.T) {
	baseDir := t.TempDir()
	outDir := filepath.Join(t.TempDir(), "exports")

	runDir, err := WriteRunArtifacts(baseDir, sampleArtifacts("run-123"))
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}
	for _, file := range []string{"config.json", "summary.json", "episodes.json", "transitions/episode-1.csv"} {
		if _, err := os.Stat(filepath.Join(runDir, file)); err != nil {
			t.Fatalf("expected file %s: %v", file, err)
		}
	}

	exportedDir, err := ExportRunArtifacts(baseDir, "run-123", outDir)
	if err != nil {
		t.Fatalf("export artifacts: %v", err)
	}
	for _, file := range []string{"config.json", "summary.json", "episodes.json", "transitions/episode-1.csv"} {
		if _, err := os.Stat(filepath.Join(exportedDir, file)); err != nil {
			t.Fatalf("expected exported file %s: %v", file, err)
		}
	}
}

func TestWriteRunArtifactsRequiresRunID(t *testing.T) {
	if _, err := WriteRunArtifacts(t.TempDir(), RunArtifacts{}); err == nil {
		t.Fatal("expected missing run id error")
	}
}

func TestReadRunArtifactsBack(t *testing.T) {
	baseDir := t.TempDir()
	if _, err := WriteRunArtifacts(baseDir, sampleArtifacts("run-1")); err != nil {
		t.Fatalf("write artifacts: %v", err)
	}

	cfg, ok, err := ReadRunConfig(baseDir, "run-1")
	if err != nil || !ok {
		t.Fatalf("read config ok=%t err=%v", ok, err)
	}
	if cfg.Policy != "random" || cfg.DayLength != 24 {
		t.Fatalf("unexpected config: %+v", cfg)
	}

	summary, ok, err := ReadRunSummary(baseDir, "run-1")
	if err != nil || !ok {
		t.Fatalf("read summary ok=%t err=%v", ok, err)
	}
	if summary.Episodes != 1 || summary.Truncated != 1 {
		t.Fatalf("unexpected summary: %+v", summary)
	}

	episodes, ok, err := ReadRunEpisodes(baseDir, "run-1")
	if err != nil || !ok {
		t.Fatalf("read episodes ok=%t err=%v", ok, err)
	}
	if len(episodes) != 1 || episodes[0].TerminationReason != "end_of_day" {
		t.Fatalf("unexpected episodes: %+v", episodes)
	}

	transitions, ok, err := ReadTransitionsCSV(baseDir, "run-1", "episode-1")
	if err != nil || !ok {
		t.Fatalf("read transitions ok=%t err=%v", ok, err)
	}
	if len(transitions) != 2 {
		t.Fatalf("unexpected transitions: %+v", transitions)
	}
	if transitions[0].Observation[0] != 108.5 || transitions[1].Observation[5] != 1500 || !transitions[1].Truncated {
		t.Fatalf("unexpected transition contents: %+v", transitions)
	}

	if _, ok, err := ReadRunConfig(baseDir, "missing"); err != nil || ok {
		t.Fatalf("expected missing config, ok=%t err=%v", ok, err)
	}
	if _, ok, err := ReadTransitionsCSV(baseDir, "run-1", "missing"); err != nil || ok {
		t.Fatalf("expected missing transitions, ok=%t err=%v", ok, err)
	}
}

func TestRunIndexAppendAndList(t *testing.T) {
	baseDir := t.TempDir()

	entries := []RunIndexEntry{
		{RunID: "run-a", CreatedAtUTC: "2026-01-01T00:00:00Z"},
		{RunID: "run-b", CreatedAtUTC: "2026-01-02T00:00:00Z"},
		{RunID: "run-c", CreatedAtUTC: "2026-01-02T00:00:00Z"},
	}
	for _, entry := range entries {
		if err := AppendRunIndex(baseDir, entry); err != nil {
			t.Fatalf("append %s: %v", entry.RunID, err)
		}
	}
	if err := AppendRunIndex(baseDir, RunIndexEntry{RunID: "run-a", Policy: "fixed:rest", CreatedAtUTC: "2026-01-01T00:00:00Z"}); err != nil {
		t.Fatalf("replace run-a: %v", err)
	}

	listed, err := ListRunIndex(baseDir)
	if err != nil {
		t.Fatalf("list index: %v", err)
	}
	if len(listed) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(listed))
	}
	if listed[0].RunID != "run-c" || listed[1].RunID != "run-b" || listed[2].RunID != "run-a" {
		t.Fatalf("unexpected order: %+v", listed)
	}
	if listed[2].Policy != "fixed:rest" {
		t.Fatalf("expected replaced entry, got %+v", listed[2])
	}
}

func TestRunIndexKeepsAppendOrderAcrossRewrites(t *testing.T) {
	baseDir := t.TempDir()
	const stamp = "2026-03-01T08:00:00Z"
	ids := []string{"run-1", "run-2", "run-3", "run-4"}
	for i, id := range ids {
		if err := AppendRunIndex(baseDir, RunIndexEntry{RunID: id, CreatedAtUTC: stamp}); err != nil {
			t.Fatalf("append %s: %v", id, err)
		}
		listed, err := ListRunIndex(baseDir)
		if err != nil {
			t.Fatalf("list index: %v", err)
		}
		if listed[0].RunID != id {
			t.Fatalf("after appending %s the newest entry is %s", id, listed[0].RunID)
		}
		for j := range listed {
			if want := ids[i-j]; listed[j].RunID != want {
				t.Fatalf("position %d after %d appends: got %s, want %s", j, i+1, listed[j].RunID, want)
			}
		}
	}
}

func TestListRunIndexEmpty(t *testing.T) {
	listed, err := ListRunIndex(t.TempDir())
	if err != nil {
		t.Fatalf("list index: %v", err)
	}
	if len(listed) != 0 {
		t.Fatalf("expected empty index, got %+v", listed)
	}
}
