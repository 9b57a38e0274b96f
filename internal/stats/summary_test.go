package stats

import (
	"math"
	"testing"

	"glucosim/internal/model"
)

func transition(step int, action string, glucose, steps, reward float64) model.TransitionRecord {
	return model.TransitionRecord{
		Step:        step,
		ActionName:  action,
		Observation: []float64{glucose, 80, 0.1, 0.7, float64(step), steps},
		Reward:      reward,
	}
}

func TestSummarizeEpisode(t *testing.T) {
	transitions := []model.TransitionRecord{
		transition(1, "rest", 65, 0, -1.0),
		transition(2, "light_walk", 110, 1500, 1.0),
		transition(3, "light_walk", 150, 3000, 0.5),
		transition(4, "moderate_jog", 200, 6500, -0.5),
	}
	transitions[3].Terminated = true
	transitions[3].TerminationReason = "severe_hyperglycemia"

	summary := SummarizeEpisode(transitions)
	if summary.Steps != 4 {
		t.Fatalf("unexpected steps: %d", summary.Steps)
	}
	if summary.TotalReward != 0 || summary.MeanReward != 0 {
		t.Fatalf("unexpected reward totals: total=%f mean=%f", summary.TotalReward, summary.MeanReward)
	}
	if summary.MinReward != -1 || summary.MaxReward != 1 {
		t.Fatalf("unexpected reward range: [%f, %f]", summary.MinReward, summary.MaxReward)
	}
	if summary.TimeInRange != 0.5 || summary.TimeBelowRange != 0.25 || summary.TimeAboveRange != 0.25 {
		t.Fatalf("unexpected range fractions: %+v", summary)
	}
	if summary.MeanGlucose != 131.25 || summary.MinGlucose != 65 || summary.MaxGlucose != 200 {
		t.Fatalf("unexpected glucose stats: %+v", summary)
	}
	if summary.FinalSteps != 6500 {
		t.Fatalf("unexpected final steps: %f", summary.FinalSteps)
	}
	if summary.ActionCounts["light_walk"] != 2 || summary.ActionCounts["rest"] != 1 {
		t.Fatalf("unexpected action counts: %+v", summary.ActionCounts)
	}
	if !summary.Terminated || summary.TerminationReason != "severe_hyperglycemia" {
		t.Fatalf("unexpected termination: %+v", summary)
	}
}

func TestSummarizeEpisodeEmpty(t *testing.T) {
	summary := SummarizeEpisode(nil)
	if summary.Steps != 0 || summary.ActionCounts == nil {
		t.Fatalf("unexpected empty summary: %+v", summary)
	}
}

func TestEpisodeSummaryApplyTo(t *testing.T) {
	summary := SummarizeEpisode([]model.TransitionRecord{transition(1, "rest", 120, 0, 0.3)})
	summary.Truncated = true
	summary.TerminationReason = "end_of_day"

	var episode model.EpisodeRecord
	summary.ApplyTo(&episode)
	if episode.Steps != 1 || episode.TimeInRange != 1 || !episode.Truncated || episode.TerminationReason != "end_of_day" {
		t.Fatalf("unexpected episode: %+v", episode)
	}
}

func TestSummarizeRun(t *testing.T) {
	episodes := []model.EpisodeRecord{
		{Steps: 24, MeanReward: 0.5, TimeInRange: 1, FinalSteps: 9000, Truncated: true, TerminationReason: "end_of_day"},
		{Steps: 10, MeanReward: -0.5, TimeInRange: 0.5, FinalSteps: 3000, Terminated: true, TerminationReason: "severe_hypoglycemia"},
	}

	summary := SummarizeRun(episodes)
	if summary.Episodes != 2 || summary.TotalSteps != 34 {
		t.Fatalf("unexpected counts: %+v", summary)
	}
	if summary.MeanReward != 0 || math.Abs(summary.RewardStd-0.5) > 1e-12 {
		t.Fatalf("unexpected reward stats: mean=%f std=%f", summary.MeanReward, summary.RewardStd)
	}
	if summary.BestReward != 0.5 || summary.WorstReward != -0.5 {
		t.Fatalf("unexpected reward extremes: %+v", summary)
	}
	if summary.MeanTimeInRange != 0.75 || summary.MeanFinalSteps != 6000 {
		t.Fatalf("unexpected means: %+v", summary)
	}
	if summary.Truncated != 1 || summary.Terminations["severe_hypoglycemia"] != 1 || len(summary.Terminations) != 1 {
		t.Fatalf("unexpected outcomes: %+v", summary)
	}
}
