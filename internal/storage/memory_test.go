package storage

import (
	"context"
	"testing"

	"glucosim/internal/model"
)

func TestMemoryStoreRunRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	run := model.RunRecord{
		VersionedRecord: CurrentVersion(),
		ID:              "run-1",
		Scape:           "diabetes-exercise",
		Policy:          "random",
		Episodes:        3,
		MeanReward:      0.42,
		CreatedAtUTC:    "2026-01-02T03:04:05Z",
	}
	if err := store.SaveRun(ctx, run); err != nil {
		t.Fatalf("save run: %v", err)
	}

	loaded, ok, err := store.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("get run: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted run")
	}
	if loaded.Policy != "random" || loaded.Episodes != 3 {
		t.Fatalf("unexpected run: %+v", loaded)
	}

	if _, ok, err := store.GetRun(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing run, ok=%t err=%v", ok, err)
	}
}

func TestMemoryStoreListRunsNewestFirst(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	stamps := []string{"2026-01-01T00:00:00Z", "2026-01-03T00:00:00Z", "2026-01-02T00:00:00Z"}
	for i, stamp := range stamps {
		run := model.RunRecord{VersionedRecord: CurrentVersion(), ID: string(rune('a' + i)), CreatedAtUTC: stamp}
		if err := store.SaveRun(ctx, run); err != nil {
			t.Fatalf("save run %d: %v", i, err)
		}
	}

	runs, err := store.ListRuns(ctx, 0)
	if err != nil {
		t.Fatalf("list runs: %v", err)
	}
	if len(runs) != 3 || runs[0].ID != "b" || runs[1].ID != "c" || runs[2].ID != "a" {
		t.Fatalf("unexpected run order: %+v", runs)
	}

	limited, err := store.ListRuns(ctx, 2)
	if err != nil {
		t.Fatalf("list limited runs: %v", err)
	}
	if len(limited) != 2 || limited[0].ID != "b" {
		t.Fatalf("unexpected limited runs: %+v", limited)
	}
}

func TestMemoryStoreEpisodesByRun(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	input := []model.EpisodeRecord{
		{VersionedRecord: CurrentVersion(), ID: "e2", RunID: "run-1", Index: 1},
		{VersionedRecord: CurrentVersion(), ID: "e1", RunID: "run-1", Index: 0},
		{VersionedRecord: CurrentVersion(), ID: "e3", RunID: "run-2", Index: 0},
	}
	for _, episode := range input {
		if err := store.SaveEpisode(ctx, episode); err != nil {
			t.Fatalf("save episode %s: %v", episode.ID, err)
		}
	}

	episodes, err := store.ListEpisodes(ctx, "run-1")
	if err != nil {
		t.Fatalf("list episodes: %v", err)
	}
	if len(episodes) != 2 || episodes[0].ID != "e1" || episodes[1].ID != "e2" {
		t.Fatalf("unexpected episodes: %+v", episodes)
	}

	loaded, ok, err := store.GetEpisode(ctx, "e3")
	if err != nil || !ok {
		t.Fatalf("get episode ok=%t err=%v", ok, err)
	}
	if loaded.RunID != "run-2" {
		t.Fatalf("unexpected episode: %+v", loaded)
	}
}

func TestMemoryStoreTransitionsAreCopied(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	if err := store.Init(ctx); err != nil {
		t.Fatalf("init: %v", err)
	}

	input := []model.TransitionRecord{
		{Step: 1, Action: 1, ActionName: "light_walk", Observation: []float64{110, 72, 0.02, 0.72, 1, 1500}, Reward: 0.5},
		{Step: 2, Action: 0, ActionName: "rest", Observation: []float64{112, 70, 0, 0.715, 2, 1500}, Reward: 0.3},
	}
	if err := store.SaveTransitions(ctx, "e1", input); err != nil {
		t.Fatalf("save transitions: %v", err)
	}
	input[0].Reward = -99

	output, ok, err := store.GetTransitions(ctx, "e1")
	if err != nil {
		t.Fatalf("get transitions: %v", err)
	}
	if !ok {
		t.Fatal("expected persisted transitions")
	}
	if len(output) != 2 || output[0].Reward != 0.5 || output[1].ActionName != "rest" {
		t.Fatalf("unexpected transitions: %+v", output)
	}

	if _, ok, err := store.GetTransitions(ctx, "missing"); err != nil || ok {
		t.Fatalf("expected missing transitions, ok=%t err=%v", ok, err)
	}
}
